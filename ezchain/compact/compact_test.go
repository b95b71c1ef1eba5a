package compact_test

import (
	"testing"

	"github.com/Re20Cboy/EZchain/ezchain/ccchain"
	"github.com/Re20Cboy/EZchain/ezchain/compact"
	"github.com/Re20Cboy/EZchain/ezchain/value"
)

func buildProof(heights ...uint64) value.Proof {
	p := value.Proof{InitID: 0, InitHigh: heights[0], Val: 7}
	for i, h := range heights {
		p.Sets = append(p.Sets, value.TxSet{
			Height: h,
			Txs:    []value.TX{{TxID: uint64(i + 1), ValueID: 7, OwnerID: value.NodeID(i), RecvID: value.NodeID(i + 1)}},
		})
	}
	return p
}

func TestAfterCCRetainsAnchorOnly(t *testing.T) {
	// Five AC blocks' worth of proof history, CC finalizes up through
	// height 5: only the anchor at height 4 (the latest set predating the
	// boundary) should survive, matching scenario S3.
	prf := buildProof(1, 2, 3, 4, 5)
	cc := ccchain.Block{ACBHeight: 5}

	got, err := compact.AfterCC(prf, cc)
	if err != nil {
		t.Fatalf("AfterCC() error = %v", err)
	}
	if got.Sets[0].Height < 4 {
		t.Fatalf("AfterCC() anchor height = %d, want >= 4", got.Sets[0].Height)
	}
	if len(got.Sets) != 2 {
		t.Fatalf("AfterCC() kept %d sets, want 2 (anchor at 4, set at 5)", len(got.Sets))
	}
}

func TestAfterCCNoopWhenNothingPredatesBoundary(t *testing.T) {
	prf := buildProof(5, 6)
	cc := ccchain.Block{ACBHeight: 5}

	got, err := compact.AfterCC(prf, cc)
	if err != nil {
		t.Fatalf("AfterCC() error = %v", err)
	}
	if len(got.Sets) != 2 {
		t.Fatalf("AfterCC() kept %d sets, want 2 (nothing to trim)", len(got.Sets))
	}
}

func TestAfterCCDoesNotMutateOriginal(t *testing.T) {
	prf := buildProof(1, 2, 3)
	cc := ccchain.Block{ACBHeight: 3}

	_, err := compact.AfterCC(prf, cc)
	if err != nil {
		t.Fatalf("AfterCC() error = %v", err)
	}
	if len(prf.Sets) != 3 {
		t.Fatalf("AfterCC() mutated the original proof: len(Sets) = %d, want 3", len(prf.Sets))
	}
}

func TestCompactAllKeepsAnchoredProofs(t *testing.T) {
	held := map[value.ID]value.Proof{
		7: buildProof(1, 2),
		8: buildProof(10),
	}
	cc := ccchain.Block{ACBHeight: 5}

	out, failed := compact.CompactAll(held, cc)
	if _, ok := out[8]; !ok {
		t.Fatalf("CompactAll() dropped value 8 which predates nothing")
	}
	if _, ok := out[7]; !ok {
		t.Fatalf("CompactAll() value 7 should retain its anchor, not be dropped")
	}
	if len(failed) != 0 {
		t.Fatalf("CompactAll() failed = %v, want empty", failed)
	}
}
