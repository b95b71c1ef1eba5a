// Package infpool implements the Inf Pool: the node's outbound staging
// area for transactions it originates (spec §4.1). It is grounded on
// foundation/blockchain/mempool's sort-and-select pattern — a small local
// buffer that accumulates entries until a trigger seals and ships them —
// generalized from a shared miner's mempool to a single node's personal
// pool of the transactions staged for its next Inf.
package infpool

import (
	"fmt"
	"math/rand/v2"

	"github.com/Re20Cboy/EZchain/ezchain/errs"
	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/hashing"
	"github.com/Re20Cboy/EZchain/foundation/wire"
)

// Entry is one (transaction, proof) pair inside an Inf: the transaction
// spending a value, and the sender's proof of having held it, handed to
// the recipient so they can run GetOwner.
type Entry struct {
	Tx    value.TX
	Proof value.Proof
}

// Inf is a sealed transaction-set: everything one node published in a
// single publication, identified by its content digest. Height is filled
// in once an AC block embeds it.
type Inf struct {
	NodeID  value.NodeID
	Entries []Entry
	Abs     string
	Height  uint64
}

// TxSet extracts the plain TxSet view of the Inf's transactions, the shape
// GetOwner and the AC miner operate on.
func (inf Inf) TxSet() value.TxSet {
	set := value.TxSet{Height: inf.Height}
	for _, e := range inf.Entries {
		set.Txs = append(set.Txs, e.Tx)
	}
	return set
}

// ComputeAbs recomputes the Inf's digest over its entries' transactions,
// matching INF::getTxAbs: the hash of the concatenation of each
// transaction's wire-encoded fields, in insertion order.
func (inf Inf) ComputeAbs(h hashing.Hasher) string {
	return inf.TxSet().Abs(h)
}

// Encode renders the Inf using the original delimited grammar: each entry
// as its transaction record followed by its nested proof, then the digest
// and height.
func (inf Inf) Encode() string {
	w := wire.Inf{NodeID: uint64(inf.NodeID), Abs: inf.Abs, Height: inf.Height}
	for _, e := range inf.Entries {
		w.Entries = append(w.Entries, wire.EncodeInfEntry(e.Tx.Wire(), e.Proof.Wire()))
	}
	return wire.EncodeInf(w)
}

// Pool is the per-node outbound staging area: the transactions staged
// since the last Seal. It does not keep a sealed Inf; Seal returns that
// to the caller.
type Pool struct {
	nodeID  value.NodeID
	pending []value.TX
}

// New constructs an empty Pool for nodeID.
func New(nodeID value.NodeID) *Pool {
	return &Pool{nodeID: nodeID}
}

// Pending returns the transactions staged but not yet sealed.
func (p *Pool) Pending() []value.TX {
	out := make([]value.TX, len(p.pending))
	copy(out, p.pending)
	return out
}

// GenerateTx mints one outgoing transaction for a uniformly random held
// value to a uniformly random peer, and stages it. If the node holds no
// value, it is a no-op returning ok=false — the source silently skips tx
// generation in that case and this follows it (spec §9 Open Question,
// decided).
func GenerateTx(p *Pool, held map[value.ID]value.Proof, peers []value.NodeID, rng *rand.Rand, nextTxID func() uint64) (value.TX, bool) {
	if len(held) == 0 || len(peers) == 0 {
		return value.TX{}, false
	}

	ids := make([]value.ID, 0, len(held))
	for id := range held {
		ids = append(ids, id)
	}
	chosenValue := ids[rng.IntN(len(ids))]
	recipient := peers[rng.IntN(len(peers))]
	for recipient == p.nodeID && len(peers) > 1 {
		recipient = peers[rng.IntN(len(peers))]
	}

	tx := value.TX{
		TxID:    nextTxID(),
		ValueID: chosenValue,
		OwnerID: p.nodeID,
		RecvID:  recipient,
	}
	p.pending = append(p.pending, tx)
	return tx, true
}

// Seal packs every pending transaction into a new Inf, computes its
// digest, and clears the staging area. height is the AC height this Inf
// is destined for (the node's current tip height plus one): each entry's
// proof is extended with the Inf's own combined transaction-set stamped
// at that height, so a receiving node's pre-inclusion GetOwner call
// (§4.2, Options.PreInclusion) sees the same set whose digest the Inf's
// abs names, before it ever lands in an AC block. Seal is a no-op
// returning ok=false on an empty pool (spec §7: inf_empty).
func Seal(p *Pool, proofs map[value.ID]value.Proof, height uint64, h hashing.Hasher) (Inf, bool, error) {
	if len(p.pending) == 0 {
		return Inf{}, false, nil
	}

	inf := Inf{NodeID: p.nodeID, Height: height}
	for _, tx := range p.pending {
		if _, ok := proofs[tx.ValueID]; !ok {
			return Inf{}, false, fmt.Errorf("infpool: no held proof for value %d being spent by node %d: %w", tx.ValueID, p.nodeID, errs.ErrPrfType)
		}
		inf.Entries = append(inf.Entries, Entry{Tx: tx})
	}
	inf.Abs = inf.ComputeAbs(h)

	set := inf.TxSet()
	for i, e := range inf.Entries {
		extended, err := proofs[e.Tx.ValueID].Append(set)
		if err != nil {
			return Inf{}, false, fmt.Errorf("infpool: extending proof for value %d: %w", e.Tx.ValueID, err)
		}
		inf.Entries[i].Proof = extended
	}

	p.pending = nil
	return inf, true, nil
}
