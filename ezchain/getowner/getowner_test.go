package getowner_test

import (
	"errors"
	"testing"

	"github.com/Re20Cboy/EZchain/ezchain/acchain"
	"github.com/Re20Cboy/EZchain/ezchain/ccchain"
	"github.com/Re20Cboy/EZchain/ezchain/errs"
	"github.com/Re20Cboy/EZchain/ezchain/getowner"
	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/hashing"
)

const testValue value.ID = 7

func buildGenesisChain(t *testing.T, h hashing.Hasher, set value.TxSet) *acchain.Chain {
	t.Helper()
	ac := acchain.New()
	abs := set.Abs(h)
	b := acchain.NewBlock(acchain.GenesisID, 0, set.Txs[0].OwnerID, 100, "b1", []acchain.PackedInf{{Author: set.Txs[0].OwnerID, Abs: abs}})
	if err := ac.Append(b); err != nil {
		t.Fatalf("Append(b1) error = %v", err)
	}
	return ac
}

func TestVerifyHappyPath(t *testing.T) {
	h := hashing.NewKeccak256Hasher()

	set := value.TxSet{Height: 1, Txs: []value.TX{{TxID: 1, ValueID: testValue, OwnerID: 0, RecvID: 1}}}
	ac := buildGenesisChain(t, h, set)
	cc := ccchain.New()

	prf := value.Proof{InitID: 0, InitHigh: 1, Val: testValue, Sets: []value.TxSet{set}}
	receipt := getowner.Receipt{SenderID: 0, ReceiverID: 1, FinalTx: set.Txs[0]}

	ok, err := getowner.Verify(testValue, prf, receipt, ac, cc, h, getowner.Options{})
	if err != nil || !ok {
		t.Fatalf("Verify() = %v, %v, want true, nil", ok, err)
	}
}

func TestVerifyRejectsWrongOwner(t *testing.T) {
	h := hashing.NewKeccak256Hasher()

	set := value.TxSet{Height: 1, Txs: []value.TX{{TxID: 1, ValueID: testValue, OwnerID: 0, RecvID: 1}}}
	ac := buildGenesisChain(t, h, set)
	cc := ccchain.New()

	prf := value.Proof{InitID: 0, InitHigh: 1, Val: testValue, Sets: []value.TxSet{set}}
	receipt := getowner.Receipt{SenderID: 99, ReceiverID: 1, FinalTx: set.Txs[0]}

	ok, err := getowner.Verify(testValue, prf, receipt, ac, cc, h, getowner.Options{})
	if ok || !errors.Is(err, errs.ErrWrongOwner) {
		t.Fatalf("Verify() = %v, %v, want false, ErrWrongOwner", ok, err)
	}
}

func TestVerifyDetectsDoubleSpend(t *testing.T) {
	h := hashing.NewKeccak256Hasher()

	set := value.TxSet{Height: 1, Txs: []value.TX{
		{TxID: 1, ValueID: testValue, OwnerID: 0, RecvID: 1},
		{TxID: 2, ValueID: testValue, OwnerID: 0, RecvID: 2},
	}}
	ac := buildGenesisChain(t, h, set)
	cc := ccchain.New()

	prf := value.Proof{InitID: 0, InitHigh: 1, Val: testValue, Sets: []value.TxSet{set}}
	receipt := getowner.Receipt{SenderID: 0, ReceiverID: 1, FinalTx: set.Txs[0]}

	ok, err := getowner.Verify(testValue, prf, receipt, ac, cc, h, getowner.Options{})
	if ok || !errors.Is(err, errs.ErrDoubleSpent) {
		t.Fatalf("Verify() = %v, %v, want false, ErrDoubleSpent", ok, err)
	}
}

func TestVerifyContinuityViolation(t *testing.T) {
	h := hashing.NewKeccak256Hasher()

	set1 := value.TxSet{Height: 1, Txs: []value.TX{{TxID: 1, ValueID: testValue, OwnerID: 0, RecvID: 1}}}
	set2 := value.TxSet{Height: 3, Txs: []value.TX{{TxID: 2, ValueID: testValue, OwnerID: 1, RecvID: 2}}}

	ac := acchain.New()
	abs1 := set1.Abs(h)
	b1 := acchain.NewBlock(acchain.GenesisID, 0, 0, 100, "b1", []acchain.PackedInf{{Author: 0, Abs: abs1}})
	if err := ac.Append(b1); err != nil {
		t.Fatalf("Append(b1) error = %v", err)
	}
	// A block between heights 1 and 3 authored by node 1 (the owner of
	// set2) violates continuity: node 1 must not have authored anything
	// else before the block that records set2.
	b2 := acchain.NewBlock(b1.ID, b1.Height, 1, 200, "b2", []acchain.PackedInf{{Author: 1, Abs: "unrelated"}})
	if err := ac.Append(b2); err != nil {
		t.Fatalf("Append(b2) error = %v", err)
	}
	abs2 := set2.Abs(h)
	b3 := acchain.NewBlock(b2.ID, b2.Height, 1, 300, "b3", []acchain.PackedInf{{Author: 1, Abs: abs2}})
	if err := ac.Append(b3); err != nil {
		t.Fatalf("Append(b3) error = %v", err)
	}

	cc := ccchain.New()
	prf := value.Proof{InitID: 0, InitHigh: 1, Val: testValue, Sets: []value.TxSet{set1, set2}}
	receipt := getowner.Receipt{SenderID: 1, ReceiverID: 2, FinalTx: set2.Txs[0]}

	ok, err := getowner.Verify(testValue, prf, receipt, ac, cc, h, getowner.Options{})
	if ok || !errors.Is(err, errs.ErrPrfIncomplete) {
		t.Fatalf("Verify() = %v, %v, want false, ErrPrfIncomplete", ok, err)
	}
}

func TestVerifyMissingInfIsRejected(t *testing.T) {
	h := hashing.NewKeccak256Hasher()

	set := value.TxSet{Height: 1, Txs: []value.TX{{TxID: 1, ValueID: testValue, OwnerID: 0, RecvID: 1}}}
	ac := acchain.New()
	// Block exists at height 1 but never lists this set's digest: the
	// Inf was never received by anyone but its producer.
	b1 := acchain.NewBlock(acchain.GenesisID, 0, 0, 100, "b1", nil)
	if err := ac.Append(b1); err != nil {
		t.Fatalf("Append(b1) error = %v", err)
	}

	cc := ccchain.New()
	prf := value.Proof{InitID: 0, InitHigh: 1, Val: testValue, Sets: []value.TxSet{set}}
	receipt := getowner.Receipt{SenderID: 0, ReceiverID: 1, FinalTx: set.Txs[0]}

	ok, err := getowner.Verify(testValue, prf, receipt, ac, cc, h, getowner.Options{})
	if ok || !errors.Is(err, errs.ErrPrfIncomplete) {
		t.Fatalf("Verify() = %v, %v, want false, ErrPrfIncomplete", ok, err)
	}
}

func TestVerifyCCFullFailSkipsSet(t *testing.T) {
	h := hashing.NewKeccak256Hasher()

	set := value.TxSet{Height: 1, Txs: []value.TX{{TxID: 1, ValueID: testValue, OwnerID: 0, RecvID: 1}}}
	ac := buildGenesisChain(t, h, set)

	cc := ccchain.New()
	abs := set.Abs(h)
	ccBlk := ccchain.Block{
		Height: 1, ID: "c1", PrevID: ccchain.GenesisID, ACBHeight: 1,
		FailTxs: map[string]int32{abs: ccchain.FailFullSet},
	}
	if err := cc.Append(ccBlk); err != nil {
		t.Fatalf("Append(ccBlk) error = %v", err)
	}

	prf := value.Proof{InitID: 0, InitHigh: 1, Val: testValue, Sets: []value.TxSet{set}}
	receipt := getowner.Receipt{SenderID: 0, ReceiverID: 1, FinalTx: set.Txs[0]}

	ok, err := getowner.Verify(testValue, prf, receipt, ac, cc, h, getowner.Options{})
	if ok || !errors.Is(err, errs.ErrNotSpend) {
		t.Fatalf("Verify() = %v, %v, want false, ErrNotSpend (CC marked the whole set failed)", ok, err)
	}
}

func TestVerifyPreInclusionSkipsFinalAbsCheck(t *testing.T) {
	h := hashing.NewKeccak256Hasher()

	set := value.TxSet{Height: 1, Txs: []value.TX{{TxID: 1, ValueID: testValue, OwnerID: 0, RecvID: 1}}}
	// No AC block exists yet at height 1: this set is still sitting in an
	// unmined Inf, exactly the pre-inclusion case the Inf Verifier hits.
	ac := acchain.New()
	cc := ccchain.New()

	prf := value.Proof{InitID: 0, InitHigh: 1, Val: testValue, Sets: []value.TxSet{set}}
	receipt := getowner.Receipt{SenderID: 0, ReceiverID: 1, FinalTx: set.Txs[0]}

	ok, err := getowner.Verify(testValue, prf, receipt, ac, cc, h, getowner.Options{PreInclusion: true})
	if err != nil || !ok {
		t.Fatalf("Verify() pre-inclusion = %v, %v, want true, nil", ok, err)
	}

	ok, err = getowner.Verify(testValue, prf, receipt, ac, cc, h, getowner.Options{})
	if ok || err == nil {
		t.Fatalf("Verify() post-inclusion without AC block = %v, %v, want false, error", ok, err)
	}
}
