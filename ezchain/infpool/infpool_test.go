package infpool_test

import (
	"math/rand/v2"
	"testing"

	"github.com/Re20Cboy/EZchain/ezchain/infpool"
	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/hashing"
)

func TestGenerateTxSkipsWhenNoValuesHeld(t *testing.T) {
	p := infpool.New(1)
	rng := rand.New(rand.NewPCG(1, 2))

	_, ok := infpool.GenerateTx(p, nil, []value.NodeID{2, 3}, rng, func() uint64 { return 1 })
	if ok {
		t.Fatalf("GenerateTx() with no held values: want ok=false")
	}
}

func TestGenerateTxNeverTargetsSelf(t *testing.T) {
	p := infpool.New(1)
	rng := rand.New(rand.NewPCG(1, 2))
	held := map[value.ID]value.Proof{7: {}}

	for i := 0; i < 20; i++ {
		tx, ok := infpool.GenerateTx(p, held, []value.NodeID{1, 2}, rng, func() uint64 { return uint64(i + 1) })
		if !ok {
			t.Fatalf("GenerateTx() iteration %d: want ok=true", i)
		}
		if tx.RecvID == tx.OwnerID {
			t.Fatalf("GenerateTx() produced self-transfer: %+v", tx)
		}
	}
}

func TestSealEmptyPoolIsNoop(t *testing.T) {
	p := infpool.New(1)
	h := hashing.NewKeccak256Hasher()

	_, ok, err := infpool.Seal(p, nil, 1, h)
	if err != nil || ok {
		t.Fatalf("Seal() on empty pool = ok=%v, err=%v, want false, nil", ok, err)
	}
}

func TestSealProducesDigestAndClearsPool(t *testing.T) {
	p := infpool.New(1)
	rng := rand.New(rand.NewPCG(1, 2))
	held := map[value.ID]value.Proof{7: {InitID: 1, InitHigh: 0, Val: 7}}

	if _, ok := infpool.GenerateTx(p, held, []value.NodeID{1, 2}, rng, func() uint64 { return 1 }); !ok {
		t.Fatalf("GenerateTx() want ok=true")
	}

	h := hashing.NewKeccak256Hasher()
	inf, ok, err := infpool.Seal(p, held, 1, h)
	if err != nil || !ok {
		t.Fatalf("Seal() = ok=%v, err=%v, want true, nil", ok, err)
	}
	if inf.Abs == "" {
		t.Fatalf("Seal() produced empty digest")
	}
	if inf.Entries[0].Proof.TipHeight() != 1 {
		t.Fatalf("Seal() did not extend the entry proof to height 1, got %d", inf.Entries[0].Proof.TipHeight())
	}
	if len(p.Pending()) != 0 {
		t.Fatalf("Seal() did not clear the pending pool")
	}
}
