// Package value implements the Value & Proof model: transactions, the
// transaction-sets (Inf segments) a proof is built from, and the proof
// itself. It is grounded on foundation/blockchain/storage's BlockTx/Account
// shape in the teacher stack, generalized from a single global balance
// ledger to a per-value ownership chain, and on foundation/wire for the
// on-the-wire encoding every node must agree on byte-for-byte.
package value

import (
	"fmt"

	"github.com/Re20Cboy/EZchain/ezchain/errs"
	"github.com/Re20Cboy/EZchain/foundation/hashing"
	"github.com/Re20Cboy/EZchain/foundation/wire"
)

// ID identifies a Value: a globally unique, non-negative integer currency
// unit, minted once at genesis and never reused.
type ID uint64

// NodeID identifies a participant in the network. The core treats it as an
// opaque comparable key; the app layer is free to map it to a richer peer
// identity (address, public key, host:port).
type NodeID uint64

// TX is a single transfer of one Value from OwnerID to RecvID. ACBHeight is
// carried on the wire and covered by the set digest; embedding the
// enclosing Inf in an AC block does not set it, so it keeps the value the
// TX was built with.
type TX struct {
	TxID      uint64
	ValueID   ID
	OwnerID   NodeID
	RecvID    NodeID
	ACBHeight uint64
}

// Validate enforces the one structural invariant a TX carries on its own:
// a transaction can never be addressed to its own author.
func (t TX) Validate() error {
	if t.OwnerID == t.RecvID {
		return fmt.Errorf("tx %d: owner and recipient are the same node %d: %w", t.TxID, t.OwnerID, errs.ErrTxType)
	}
	return nil
}

func (t TX) wire() wire.TX {
	return wire.TX{
		TxID:    t.TxID,
		Val:     uint64(t.ValueID),
		OwnerID: uint64(t.OwnerID),
		ACBHigh: t.ACBHeight,
		RecvID:  uint64(t.RecvID),
	}
}

// Wire returns the wire-format encoding of t, used by packages outside
// value that need to embed a transaction in a larger wire structure (an
// Inf entry, a receipt).
func (t TX) Wire() wire.TX {
	return t.wire()
}

func txFromWire(w wire.TX) TX {
	return TX{
		TxID:      w.TxID,
		ValueID:   ID(w.Val),
		OwnerID:   NodeID(w.OwnerID),
		ACBHeight: w.ACBHigh,
		RecvID:    NodeID(w.RecvID),
	}
}

// TxSet is one checkpoint of a proof: every transaction one owner authored
// at a single AC height. A well-formed TxSet's transactions all share the
// same OwnerID; this is enforced by Author, never assumed by callers.
type TxSet struct {
	Txs    []TX
	Height uint64
}

// Author returns the single owner every TX in the set shares. It rejects a
// mixed-author set, which can never arise from a correctly sealed Inf but
// could arise from a forged proof.
func (s TxSet) Author() (NodeID, error) {
	if len(s.Txs) == 0 {
		return 0, fmt.Errorf("tx-set at height %d has no transactions: %w", s.Height, errs.ErrPrfType)
	}
	owner := s.Txs[0].OwnerID
	for _, tx := range s.Txs[1:] {
		if tx.OwnerID != owner {
			return 0, fmt.Errorf("tx-set at height %d mixes owners %d and %d: %w", s.Height, owner, tx.OwnerID, errs.ErrPrfType)
		}
	}
	return owner, nil
}

// Abs computes the digest a TxSet is referenced by on the AC chain: the
// hash of the concatenation of each transaction's wire-encoded fields, in
// insertion order, matching INF::getTxAbs.
func (s TxSet) Abs(h hashing.Hasher) string {
	var buf []byte
	for _, tx := range s.Txs {
		buf = append(buf, []byte(wire.EncodeTX(tx.wire()))...)
		buf = append(buf, ';')
	}
	return h.HashBytes(buf)
}

// WithTxs returns a copy of the set with Txs replaced, without mutating
// the original.
func (s TxSet) WithTxs(txs []TX) TxSet {
	return TxSet{Txs: txs, Height: s.Height}
}

// Clone deep-copies the set's transaction slice.
func (s TxSet) Clone() TxSet {
	txs := make([]TX, len(s.Txs))
	copy(txs, s.Txs)
	return TxSet{Txs: txs, Height: s.Height}
}

// Proof is the ordered chain-of-custody witness for a single Value: the
// sequence of transaction-sets that have touched it since genesis, plus
// the genesis anchor (InitID, InitHigh) and the value it proves ownership
// of. Proofs are cloned rather than shared on every outbound transmission,
// the way accounts.Accounts.Clone deep-copies before handing state to
// another goroutine.
type Proof struct {
	InitID   NodeID
	InitHigh uint64
	Val      ID
	Sets     []TxSet
}

// Clone returns a structurally independent deep copy of p: its own Sets
// slice, with each TxSet's own Txs slice, sharing no backing array with p.
func (p Proof) Clone() Proof {
	sets := make([]TxSet, len(p.Sets))
	for i, s := range p.Sets {
		sets[i] = s.Clone()
	}
	return Proof{InitID: p.InitID, InitHigh: p.InitHigh, Val: p.Val, Sets: sets}
}

// Append returns a copy of p with set appended, preserving height
// monotonicity (P2); callers must only call this with a set whose height
// is >= the proof's current tip height.
func (p Proof) Append(set TxSet) (Proof, error) {
	if n := len(p.Sets); n > 0 && set.Height < p.Sets[n-1].Height {
		return Proof{}, fmt.Errorf("proof append: height %d precedes tip %d: %w", set.Height, p.Sets[n-1].Height, errs.ErrPrfType)
	}
	next := p.Clone()
	next.Sets = append(next.Sets, set.Clone())
	return next, nil
}

// TipHeight returns the AC height of the proof's most recent recorded set,
// or zero for an empty proof.
func (p Proof) TipHeight() uint64 {
	if len(p.Sets) == 0 {
		return 0
	}
	return p.Sets[len(p.Sets)-1].Height
}

// Wire returns the wire-format encoding of p's structure, used by packages
// outside value that need to embed a proof in a larger wire structure (an
// Inf entry).
func (p Proof) Wire() wire.Proof {
	w := wire.Proof{InitID: uint64(p.InitID), InitHigh: p.InitHigh, Val: uint64(p.Val)}
	for _, s := range p.Sets {
		ws := wire.TXSet{Height: s.Height}
		for _, tx := range s.Txs {
			ws.Txs = append(ws.Txs, tx.wire())
		}
		w.Sets = append(w.Sets, ws)
	}
	return w
}

// Encode renders p using the original node's delimited grammar.
func (p Proof) Encode() string {
	return wire.EncodeProof(p.Wire())
}

// DecodeProof parses the grammar Encode produces.
func DecodeProof(str string) (Proof, error) {
	w, err := wire.DecodeProof(str)
	if err != nil {
		return Proof{}, fmt.Errorf("decode proof: %w", err)
	}

	p := Proof{InitID: NodeID(w.InitID), InitHigh: w.InitHigh, Val: ID(w.Val)}
	for _, ws := range w.Sets {
		s := TxSet{Height: ws.Height}
		for _, wt := range ws.Txs {
			s.Txs = append(s.Txs, txFromWire(wt))
		}
		p.Sets = append(p.Sets, s)
	}
	return p, nil
}
