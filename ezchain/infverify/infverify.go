// Package infverify implements the Inf Verifier (spec §4.2): for each
// inbound Inf, recompute its digest and validate every (transaction,
// proof) pair's proof against the local AC/CC chains before the Inf is
// buffered for packing or CC participation. It is grounded on the
// teacher's database.ApplyTransaction call sites in
// foundation/blockchain/state/worker_sharetx.go, which validate an inbound
// transaction before admitting it to the mempool the same way this
// package validates an inbound Inf before admitting it to the node's
// accepted-Inf buffer.
package infverify

import (
	"fmt"

	"github.com/Re20Cboy/EZchain/ezchain/acchain"
	"github.com/Re20Cboy/EZchain/ezchain/ccchain"
	"github.com/Re20Cboy/EZchain/ezchain/errs"
	"github.com/Re20Cboy/EZchain/ezchain/getowner"
	"github.com/Re20Cboy/EZchain/ezchain/infpool"
	"github.com/Re20Cboy/EZchain/foundation/hashing"
)

// Verify runs the §4.2 algorithm over an inbound Inf: it recomputes the
// digest and rejects a mismatch (inf_abs), then runs GetOwner in
// pre-inclusion mode over every (tx, proof) pair, rejecting the whole Inf
// on the first failure. The Receipt handed to GetOwner names the entry's
// own sender (Tx.OwnerID) and recipient (Tx.RecvID).
func Verify(inf infpool.Inf, ac *acchain.Chain, cc *ccchain.Chain, hasher hashing.Hasher) error {
	if len(inf.Entries) == 0 {
		return errs.ErrInfEmpty
	}

	recomputed := inf.ComputeAbs(hasher)
	if recomputed != inf.Abs {
		return fmt.Errorf("infverify: digest mismatch for inf from node %d: claimed %s, recomputed %s: %w", inf.NodeID, inf.Abs, recomputed, errs.ErrInfAbs)
	}

	for i, entry := range inf.Entries {
		if err := entry.Tx.Validate(); err != nil {
			return fmt.Errorf("infverify: entry %d: %w", i, err)
		}

		receipt := getowner.Receipt{
			SenderID:   entry.Tx.OwnerID,
			ReceiverID: entry.Tx.RecvID,
			FinalTx:    entry.Tx,
		}

		ok, err := getowner.Verify(entry.Tx.ValueID, entry.Proof, receipt, ac, cc, hasher, getowner.Options{PreInclusion: true})
		if err != nil {
			return fmt.Errorf("infverify: entry %d: %w", i, err)
		}
		if !ok {
			return fmt.Errorf("infverify: entry %d: proof did not validate: %w", i, errs.ErrPrfType)
		}
	}

	return nil
}

// AuthorsOK checks the §3 single-author rule that every TX in the Inf
// shares the Inf's claimed author, matching the uniform-owner rule an
// author-authentic Inf must satisfy before it is ever handed to GetOwner.
func AuthorsOK(inf infpool.Inf) bool {
	for _, e := range inf.Entries {
		if e.Tx.OwnerID != inf.NodeID {
			return false
		}
	}
	return true
}
