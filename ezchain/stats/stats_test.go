package stats_test

import (
	"testing"
	"time"

	"github.com/Re20Cboy/EZchain/ezchain/stats"
)

func TestSnapshotComputesCCPT(t *testing.T) {
	r := stats.New()
	r.RecordSend(100)
	r.RecordTx()
	r.RecordSend(50)
	r.RecordTx()

	snap := r.Snapshot()
	if snap.CCPT != 75 {
		t.Fatalf("Snapshot().CCPT = %v, want 75", snap.CCPT)
	}
}

func TestSnapshotZeroTxCountAvoidsDivideByZero(t *testing.T) {
	r := stats.New()
	snap := r.Snapshot()
	if snap.CCPT != 0 {
		t.Fatalf("Snapshot().CCPT = %v, want 0 with no recorded transactions", snap.CCPT)
	}
}

func TestStorageAccumulates(t *testing.T) {
	r := stats.New()
	r.RecordACStorage(10)
	r.RecordACStorage(5)
	r.RecordCCStorage(7)
	r.RecordPBStorage(3)

	snap := r.Snapshot()
	if snap.ACCStorage != 15 {
		t.Fatalf("ACCStorage = %d, want 15", snap.ACCStorage)
	}
	if snap.CCCStorage != 7 {
		t.Fatalf("CCCStorage = %d, want 7", snap.CCCStorage)
	}
	if snap.PBCStorage != 3 {
		t.Fatalf("PBCStorage = %d, want 3", snap.PBCStorage)
	}
}

func TestRecordErrorAppendsToLog(t *testing.T) {
	r := stats.New()
	now := time.Now()
	r.RecordError("wrong_owner", now)
	r.RecordError("double_spent", now.Add(time.Second))

	errs := r.Errors()
	if len(errs) != 2 {
		t.Fatalf("Errors() len = %d, want 2", len(errs))
	}
	if errs[0].Kind != "wrong_owner" || errs[1].Kind != "double_spent" {
		t.Fatalf("Errors() = %+v, want in insertion order", errs)
	}
}

func TestErrorsReturnsCopy(t *testing.T) {
	r := stats.New()
	r.RecordError("x", time.Now())

	got := r.Errors()
	got[0].Kind = "mutated"

	if r.Errors()[0].Kind != "x" {
		t.Fatalf("Errors() leaked internal slice: mutation through returned copy affected recorder state")
	}
}
