// Package compact implements Proof Compaction (spec §4.6): trimming a
// held Value's proof down to the segment after the latest CC
// finalization, keeping per-Value proof growth roughly constant across
// epochs. It is grounded on the teacher's mempool.Pool truncation logic in
// foundation/blockchain/mempool/mempool.go (Truncate), the same
// "drop everything before a retained cut point" shape, applied here to a
// proof's transaction-sets instead of a mempool's pending transactions.
package compact

import (
	"github.com/Re20Cboy/EZchain/ezchain/ccchain"
	"github.com/Re20Cboy/EZchain/ezchain/errs"
	"github.com/Re20Cboy/EZchain/ezchain/value"
)

// AfterCC trims prf to the segment that remains meaningful once CC block c
// has finalized everything up to c.ACBHeight: every recorded set whose
// height is < c.ACBHeight is dropped except the last one (the anchor
// showing current ownership), matching §4.6's "find the latest index j
// such that txs_h[j] < acb_height; drop txs_vec[0..j-1]".
//
// It is an error (after_cc) for compaction to produce an empty proof —
// every proof must retain at least its anchor.
func AfterCC(prf value.Proof, c ccchain.Block) (value.Proof, error) {
	if len(prf.Sets) == 0 {
		return value.Proof{}, errs.ErrEmptyPrf
	}

	cut := -1
	for i, s := range prf.Sets {
		if s.Height < c.ACBHeight {
			cut = i
		}
	}

	if cut <= 0 {
		// Nothing predates the CC boundary by more than the anchor, or
		// the whole proof already starts at/after it: nothing to trim.
		return prf.Clone(), nil
	}

	kept := prf.Clone()
	kept.Sets = kept.Sets[cut:]
	if len(kept.Sets) == 0 {
		return value.Proof{}, errs.ErrAfterCC
	}

	return kept, nil
}

// CompactAll applies AfterCC to every proof in held, returning the updated
// map. A proof that would become empty is dropped from the result with
// its value id reported in the second return value so the caller (the
// node's CC-finalize handler) can log the after_cc condition rather than
// silently losing track of a value.
func CompactAll(held map[value.ID]value.Proof, c ccchain.Block) (map[value.ID]value.Proof, []value.ID) {
	out := make(map[value.ID]value.Proof, len(held))
	var failed []value.ID

	for id, prf := range held {
		compacted, err := AfterCC(prf, c)
		if err != nil {
			failed = append(failed, id)
			continue
		}
		out[id] = compacted
	}

	return out, failed
}
