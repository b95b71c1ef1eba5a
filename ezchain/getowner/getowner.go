// Package getowner implements GetOwner, the proof-validation predicate at
// the center of the protocol (spec §4.3): given a Value's proof and a
// receipt claiming a transfer, decide whether the proof legitimately
// carries ownership to the claimed recipient. It is grounded on the
// teacher's database.ApplyTransaction — the same "walk the ledger,
// validate the invariants, accept or reject" shape — generalized from a
// single global balance check to a per-Value proof-of-custody walk across
// two independent chains (AC and CC).
package getowner

import (
	"fmt"

	"github.com/Re20Cboy/EZchain/ezchain/acchain"
	"github.com/Re20Cboy/EZchain/ezchain/ccchain"
	"github.com/Re20Cboy/EZchain/ezchain/errs"
	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/hashing"
)

// Receipt carries everything GetOwner needs about the claimed transfer: who
// is claiming to have sent the value, the final transaction doing so, and
// who is running the check (the intended recipient).
type Receipt struct {
	SenderID   value.NodeID
	ReceiverID value.NodeID
	FinalTx    value.TX
}

// Options tunes GetOwner for the two call sites that use it: the Inf
// Verifier's pre-inclusion check (§4.2), and the Receipt Handler's
// post-inclusion check (§4.4).
type Options struct {
	// PreInclusion, when true, skips the abs_list membership check for the
	// proof's final transaction-set, since that set has not yet been
	// embedded in an AC block — it is still sitting in the Inf being
	// verified before the miner packs it.
	PreInclusion bool
}

// Verify runs the §4.3 algorithm over prf for value v against the node's
// local AC and CC chains, reporting whether receipt legitimately transfers
// v. A false return is always paired with one of the ezchain/errs
// taxonomy members explaining why.
func Verify(v value.ID, prf value.Proof, receipt Receipt, ac *acchain.Chain, cc *ccchain.Chain, hasher hashing.Hasher, opts Options) (bool, error) {
	if len(prf.Sets) == 0 {
		return false, errs.ErrEmptyPrf
	}

	if err := checkGenesisOrCCAnchor(prf, cc); err != nil {
		return false, err
	}

	remaining := make([][]value.TX, len(prf.Sets))
	authors := make([]value.NodeID, len(prf.Sets))

	for l, set := range prf.Sets {
		author, err := set.Author()
		if err != nil {
			return false, err
		}
		authors[l] = author

		if l > 0 {
			prevHeight := prf.Sets[l-1].Height
			if set.Height < prevHeight {
				return false, fmt.Errorf("getowner: set %d height %d precedes previous height %d: %w", l, set.Height, prevHeight, errs.ErrPrfType)
			}
			if ac.AuthoredBetween(prevHeight, set.Height, author) {
				return false, fmt.Errorf("getowner: owner %d authored an Inf strictly between heights %d and %d: %w", author, prevHeight, set.Height, errs.ErrPrfIncomplete)
			}
		}

		abs := set.Abs(hasher)
		skipAbsCheck := opts.PreInclusion && l == len(prf.Sets)-1
		if !skipAbsCheck {
			blk, ok := ac.AtHeight(set.Height)
			if !ok {
				return false, fmt.Errorf("getowner: AC chain does not cover height %d: %w", set.Height, errs.ErrACCHeight)
			}
			if !blk.ContainsAbs(abs) {
				return false, fmt.Errorf("getowner: AC block at height %d does not list tx-set digest %s: %w", set.Height, abs, errs.ErrPrfIncomplete)
			}
		}

		txs := set.Txs
		if ccBlk, ok := cc.TipAtOrBefore(set.Height); ok {
			status, masked := ccBlk.FailStatus(abs)
			switch status {
			case ccchain.StatusFullFail:
				txs = nil
			case ccchain.StatusPartialFail:
				txs = without(set.Txs, masked)
			}
		}
		remaining[l] = txs
	}

	groupStart := 0
	var finalOwner value.NodeID
	var finalTx value.TX
	haveFinal := false

	for l := 1; l <= len(prf.Sets); l++ {
		if l < len(prf.Sets) && authors[l] == authors[groupStart] {
			continue
		}

		owner, tx, err := spentOnceInGroup(v, authors[groupStart], remaining[groupStart:l])
		if err != nil {
			return false, err
		}
		finalOwner = owner
		finalTx = tx
		haveFinal = true
		groupStart = l
	}

	if !haveFinal {
		return false, errs.ErrEmptyPrf
	}

	if finalOwner != receipt.SenderID {
		return false, fmt.Errorf("getowner: final owner %d does not match claimed sender %d: %w", finalOwner, receipt.SenderID, errs.ErrWrongOwner)
	}
	if finalTx.RecvID != receipt.ReceiverID {
		return false, fmt.Errorf("getowner: final recipient %d does not match receiving node %d: %w", finalTx.RecvID, receipt.ReceiverID, errs.ErrRecvNode)
	}

	return true, nil
}

// checkGenesisOrCCAnchor implements the proof's starting-point rule: if no
// CC block has finalized anything at or before the proof's first height,
// the first set must be the value's genesis record; otherwise a CC anchor
// must already account for everything before it (enforced implicitly by
// the per-set CC masking loop in Verify, which starts from cc_tip).
func checkGenesisOrCCAnchor(prf value.Proof, cc *ccchain.Chain) error {
	first := prf.Sets[0]
	if _, ok := cc.TipAtOrBefore(first.Height); ok {
		return nil
	}

	if len(first.Txs) == 0 {
		return errs.ErrEmptyPrf
	}
	if prf.InitID != first.Txs[0].OwnerID {
		return fmt.Errorf("getowner: first set owner %d does not match proof genesis owner %d: %w", first.Txs[0].OwnerID, prf.InitID, errs.ErrInitHigh)
	}
	if first.Height != prf.InitHigh {
		return fmt.Errorf("getowner: first set height %d does not match genesis height %d: %w", first.Height, prf.InitHigh, errs.ErrInitHigh)
	}
	return nil
}

// spentOnceInGroup enforces §4.3(c): across every set authored by the same
// owner in a contiguous run, exactly one surviving transaction may spend
// v. It returns that transaction and its owner.
func spentOnceInGroup(v value.ID, owner value.NodeID, sets [][]value.TX) (value.NodeID, value.TX, error) {
	var found value.TX
	count := 0
	for _, txs := range sets {
		for _, tx := range txs {
			if tx.ValueID != v {
				continue
			}
			count++
			found = tx
		}
	}

	switch {
	case count == 0:
		return 0, value.TX{}, fmt.Errorf("getowner: owner %d never spends value %d in this proof segment: %w", owner, v, errs.ErrNotSpend)
	case count > 1:
		return 0, value.TX{}, fmt.Errorf("getowner: owner %d spends value %d more than once in this proof segment: %w", owner, v, errs.ErrDoubleSpent)
	}

	return owner, found, nil
}

// without returns a copy of txs with every transaction present in masked
// removed, matched by TxID (the identity CC uses to refer to a specific
// rejected transaction within a set).
func without(txs []value.TX, masked []value.TX) []value.TX {
	if len(masked) == 0 {
		return txs
	}
	maskedIDs := make(map[uint64]bool, len(masked))
	for _, tx := range masked {
		maskedIDs[tx.TxID] = true
	}

	out := make([]value.TX, 0, len(txs))
	for _, tx := range txs {
		if !maskedIDs[tx.TxID] {
			out = append(out, tx)
		}
	}
	return out
}
