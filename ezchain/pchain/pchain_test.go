package pchain_test

import (
	"testing"

	"github.com/Re20Cboy/EZchain/ezchain/pchain"
	"github.com/Re20Cboy/EZchain/ezchain/value"
)

func TestAppendSequential(t *testing.T) {
	c := pchain.New()

	if err := c.Append(pchain.Entry{Height: 1, Digest: "a"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := c.Append(pchain.Entry{Height: 3, Digest: "b"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
}

func TestAppendRejectsNonIncreasingHeight(t *testing.T) {
	c := pchain.New()
	if err := c.Append(pchain.Entry{Height: 5, Digest: "a"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := c.Append(pchain.Entry{Height: 5, Digest: "b"}); err == nil {
		t.Fatalf("Append() at equal height = nil error, want error")
	}
	if err := c.Append(pchain.Entry{Height: 4, Digest: "c"}); err == nil {
		t.Fatalf("Append() at lower height = nil error, want error")
	}
}

func TestAppendRejectsDuplicateHeight(t *testing.T) {
	c := pchain.New()
	if err := c.Append(pchain.Entry{Height: 1, Digest: "a"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := c.Append(pchain.Entry{Height: 1, Digest: "b"}); err == nil {
		t.Fatalf("Append() duplicate height = nil error, want error")
	}
}

func TestAtHeightAndAll(t *testing.T) {
	c := pchain.New()
	entry := pchain.Entry{
		Height: 2,
		Txs:    []value.TX{{TxID: 1, ValueID: 1, OwnerID: 1, RecvID: 2}},
		Digest: "d",
	}
	if err := c.Append(entry); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, ok := c.AtHeight(2)
	if !ok {
		t.Fatalf("AtHeight(2) ok = false, want true")
	}
	if got.Digest != "d" {
		t.Fatalf("AtHeight(2).Digest = %q, want %q", got.Digest, "d")
	}

	if _, ok := c.AtHeight(99); ok {
		t.Fatalf("AtHeight(99) ok = true, want false")
	}

	if all := c.All(); len(all) != 1 {
		t.Fatalf("All() len = %d, want 1", len(all))
	}
}
