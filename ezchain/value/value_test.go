package value_test

import (
	"testing"

	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/hashing"
)

func TestTXValidate(t *testing.T) {
	tests := []struct {
		name    string
		tx      value.TX
		wantErr bool
	}{
		{
			name: "valid",
			tx:   value.TX{TxID: 1, ValueID: 7, OwnerID: 1, RecvID: 2},
		},
		{
			name:    "self transfer",
			tx:      value.TX{TxID: 1, ValueID: 7, OwnerID: 1, RecvID: 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTxSetAuthor(t *testing.T) {
	set := value.TxSet{
		Height: 3,
		Txs: []value.TX{
			{TxID: 1, ValueID: 1, OwnerID: 1, RecvID: 2},
			{TxID: 2, ValueID: 5, OwnerID: 1, RecvID: 3},
		},
	}
	author, err := set.Author()
	if err != nil {
		t.Fatalf("Author() error = %v", err)
	}
	if author != 1 {
		t.Fatalf("Author() = %d, want 1", author)
	}

	mixed := value.TxSet{
		Height: 3,
		Txs: []value.TX{
			{TxID: 1, ValueID: 1, OwnerID: 1, RecvID: 2},
			{TxID: 2, ValueID: 5, OwnerID: 9, RecvID: 3},
		},
	}
	if _, err := mixed.Author(); err == nil {
		t.Fatalf("Author() on mixed-owner set: want error, got nil")
	}
}

func TestProofAppendMonotonic(t *testing.T) {
	p := value.Proof{InitID: 1, InitHigh: 1, Val: 7}
	p, err := p.Append(value.TxSet{Height: 1, Txs: []value.TX{{TxID: 1, ValueID: 7, OwnerID: 1, RecvID: 2}}})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	p, err = p.Append(value.TxSet{Height: 3, Txs: []value.TX{{TxID: 2, ValueID: 7, OwnerID: 2, RecvID: 3}}})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if _, err := p.Append(value.TxSet{Height: 2, Txs: []value.TX{{TxID: 3, ValueID: 7, OwnerID: 3, RecvID: 1}}}); err == nil {
		t.Fatalf("Append() with decreasing height: want error, got nil")
	}
}

func TestProofCloneIndependent(t *testing.T) {
	p := value.Proof{InitID: 1, InitHigh: 1, Val: 7}
	p, _ = p.Append(value.TxSet{Height: 1, Txs: []value.TX{{TxID: 1, ValueID: 7, OwnerID: 1, RecvID: 2}}})

	clone := p.Clone()
	clone.Sets[0].Txs[0].RecvID = 99

	if p.Sets[0].Txs[0].RecvID == 99 {
		t.Fatalf("Clone() shares backing array with original")
	}
}

func TestProofEncodeDecodeRoundTrip(t *testing.T) {
	p := value.Proof{InitID: 1, InitHigh: 1, Val: 7}
	p, _ = p.Append(value.TxSet{Height: 1, Txs: []value.TX{{TxID: 1, ValueID: 7, OwnerID: 1, RecvID: 2}}})
	p, _ = p.Append(value.TxSet{Height: 4, Txs: []value.TX{{TxID: 2, ValueID: 7, OwnerID: 2, RecvID: 3}}})

	encoded := p.Encode()
	decoded, err := value.DecodeProof(encoded)
	if err != nil {
		t.Fatalf("DecodeProof() error = %v", err)
	}

	if decoded.InitID != p.InitID || decoded.InitHigh != p.InitHigh || decoded.Val != p.Val {
		t.Fatalf("DecodeProof() header = %+v, want %+v", decoded, p)
	}
	if len(decoded.Sets) != len(p.Sets) {
		t.Fatalf("DecodeProof() set count = %d, want %d", len(decoded.Sets), len(p.Sets))
	}
	for i := range p.Sets {
		if decoded.Sets[i].Height != p.Sets[i].Height {
			t.Fatalf("set %d height = %d, want %d", i, decoded.Sets[i].Height, p.Sets[i].Height)
		}
		if len(decoded.Sets[i].Txs) != len(p.Sets[i].Txs) {
			t.Fatalf("set %d tx count = %d, want %d", i, len(decoded.Sets[i].Txs), len(p.Sets[i].Txs))
		}
		if decoded.Sets[i].Txs[0] != p.Sets[i].Txs[0] {
			t.Fatalf("set %d tx = %+v, want %+v", i, decoded.Sets[i].Txs[0], p.Sets[i].Txs[0])
		}
	}
}

func TestTxSetAbsDeterministic(t *testing.T) {
	h := hashing.NewKeccak256Hasher()
	set := value.TxSet{Height: 1, Txs: []value.TX{{TxID: 1, ValueID: 7, OwnerID: 1, RecvID: 2}}}

	a := set.Abs(h)
	b := set.Clone().Abs(h)
	if a != b {
		t.Fatalf("Abs() not deterministic: %s != %s", a, b)
	}

	other := value.TxSet{Height: 1, Txs: []value.TX{{TxID: 1, ValueID: 7, OwnerID: 1, RecvID: 3}}}
	if set.Abs(h) == other.Abs(h) {
		t.Fatalf("Abs() collision between distinct tx-sets")
	}
}
