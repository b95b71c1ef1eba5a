package ccchain_test

import (
	"testing"

	"github.com/Re20Cboy/EZchain/ezchain/ccchain"
	"github.com/Re20Cboy/EZchain/ezchain/value"
)

func TestChainAppendRejectsDuplicateHeight(t *testing.T) {
	c := ccchain.New()
	b1 := ccchain.Block{Height: 1, ID: "c1", PrevID: ccchain.GenesisID, ACBHeight: 5}
	if err := c.Append(b1); err != nil {
		t.Fatalf("Append(b1) error = %v", err)
	}

	dup := ccchain.Block{Height: 1, ID: "c1dup", PrevID: ccchain.GenesisID, ACBHeight: 5}
	if err := c.Append(dup); err == nil {
		t.Fatalf("Append() with duplicate height: want error, got nil")
	}
}

func TestTipAtOrBefore(t *testing.T) {
	c := ccchain.New()
	b1 := ccchain.Block{Height: 1, ID: "c1", PrevID: ccchain.GenesisID, ACBHeight: 5}
	b2 := ccchain.Block{Height: 2, ID: "c2", PrevID: "c1", ACBHeight: 10}
	for _, b := range []ccchain.Block{b1, b2} {
		if err := c.Append(b); err != nil {
			t.Fatalf("Append(%s) error = %v", b.ID, err)
		}
	}

	if _, ok := c.TipAtOrBefore(4); ok {
		t.Fatalf("TipAtOrBefore(4) = ok, want not found")
	}
	got, ok := c.TipAtOrBefore(5)
	if !ok || got.ID != "c1" {
		t.Fatalf("TipAtOrBefore(5) = %+v, ok=%v, want c1", got, ok)
	}
	got, ok = c.TipAtOrBefore(12)
	if !ok || got.ID != "c2" {
		t.Fatalf("TipAtOrBefore(12) = %+v, ok=%v, want c2", got, ok)
	}
}

func TestFailStatus(t *testing.T) {
	partialTxs := []value.TX{{TxID: 1, ValueID: 7, OwnerID: 1, RecvID: 2}}
	b := ccchain.Block{
		FailTxs: map[string]int32{
			"full":    ccchain.FailFullSet,
			"partial": 0,
		},
		FailTxn: [][]value.TX{partialTxs},
	}

	status, txs := b.FailStatus("full")
	if status != ccchain.StatusFullFail || txs != nil {
		t.Fatalf("FailStatus(full) = %v, %v, want StatusFullFail, nil", status, txs)
	}

	status, txs = b.FailStatus("partial")
	if status != ccchain.StatusPartialFail || len(txs) != 1 {
		t.Fatalf("FailStatus(partial) = %v, %v, want StatusPartialFail, %v", status, txs, partialTxs)
	}

	status, txs = b.FailStatus("missing")
	if status != ccchain.StatusClean || txs != nil {
		t.Fatalf("FailStatus(missing) = %v, %v, want StatusClean, nil", status, txs)
	}
}
