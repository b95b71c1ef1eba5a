package node

import (
	"sync"
	"time"

	"github.com/Re20Cboy/EZchain/ezchain/acchain"
	"github.com/Re20Cboy/EZchain/ezchain/ccchain"
	"github.com/Re20Cboy/EZchain/ezchain/consensus"
	"github.com/Re20Cboy/EZchain/ezchain/errs"
	"github.com/Re20Cboy/EZchain/ezchain/getowner"
	"github.com/Re20Cboy/EZchain/ezchain/infpool"
	"github.com/Re20Cboy/EZchain/ezchain/infverify"
	"github.com/Re20Cboy/EZchain/ezchain/pchain"
	"github.com/Re20Cboy/EZchain/ezchain/stats"
	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/eventbus"
)

// Node is one participant's full local state: the AC and CC chains it has
// observed, its own Inf Pool and Personal Chain, the Values it currently
// holds proofs for, and the CC consensus engine it runs when it is a
// committee member. It is grounded on the teacher's state.State — one
// struct aggregating every collaborator a node's worker loop needs — with
// HandleEvent standing in for state.Worker's single-goroutine dispatch.
type Node struct {
	mu sync.Mutex

	id  value.NodeID
	cfg Config

	ac   *acchain.Chain
	cc   *ccchain.Chain
	pc   *pchain.Chain
	pool *infpool.Pool

	held         map[value.ID]value.Proof
	acceptedInfs map[string]infpool.Inf
	epochInfs    map[string]infpool.Inf

	epoch           uint64
	epochStartACHt  uint64
	inCommittee     bool
	engine          *consensus.Engine
	committee       []value.NodeID

	stats *stats.Recorder
}

// New constructs a Node. A nil Store is the one fatal condition named in
// §7 (blob store unavailable at init); every other collaborator in cfg is
// defaulted by Config.setDefaults if omitted.
func New(cfg Config) (*Node, error) {
	if cfg.Store == nil {
		return nil, errs.ErrBlobStoreUnavailable
	}
	cfg.setDefaults()

	n := &Node{
		id:           cfg.SelfID,
		cfg:          cfg,
		ac:           acchain.New(),
		cc:           ccchain.New(),
		pc:           pchain.New(),
		pool:         infpool.New(cfg.SelfID),
		held:         make(map[value.ID]value.Proof),
		acceptedInfs: make(map[string]infpool.Inf),
		epochInfs:    make(map[string]infpool.Inf),
		stats:        stats.New(),
		engine:       consensus.New(cfg.SelfID, cfg.Verifier, cfg.Hasher),
	}
	return n, nil
}

// ID returns the node's own identity.
func (n *Node) ID() value.NodeID { return n.id }

// ACChain exposes the node's AC chain read-only view, used by the ops
// surface and by tests inspecting the happy path.
func (n *Node) ACChain() *acchain.Chain { return n.ac }

// CCChain exposes the node's CC chain read-only view.
func (n *Node) CCChain() *ccchain.Chain { return n.cc }

// Statistics returns the node's current statistics snapshot (spec §6).
func (n *Node) Statistics() stats.Snapshot {
	return n.stats.Snapshot()
}

// Held returns a copy of the Value -> Proof table this node currently
// believes it owns, used by tests to inspect a node's holdings.
func (n *Node) Held() map[value.ID]value.Proof {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make(map[value.ID]value.Proof, len(n.held))
	for id, prf := range n.held {
		out[id] = prf.Clone()
	}
	return out
}

// SeedHolding installs a genesis proof for id without going through
// GetOwner, used by test fixtures and the CLI's genesis bootstrap — the
// Go equivalent of the source's initial `N_V` Poisson-distributed value
// assignment.
func (n *Node) SeedHolding(id value.ID, prf value.Proof) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.held[id] = prf.Clone()
}

// Summary is a read-only snapshot of a node's chain tips and committee
// membership, the shape the ops surface's /v1/ops/node route reports.
type Summary struct {
	NodeID      value.NodeID
	ACHeight    uint64
	CCHeight    uint64
	Epoch       uint64
	InCommittee bool
	IsLeader    bool
	Phase       string
	Committee   []value.NodeID
}

// Summary builds the current Summary for this node.
func (n *Node) Summary() Summary {
	n.mu.Lock()
	defer n.mu.Unlock()

	return Summary{
		NodeID:      n.id,
		ACHeight:    n.ac.Height(),
		CCHeight:    n.cc.Height(),
		Epoch:       n.epoch,
		InCommittee: n.inCommittee,
		IsLeader:    n.inCommittee && n.engine.IsLeader(),
		Phase:       n.engine.Phase().String(),
		Committee:   append([]value.NodeID(nil), n.committee...),
	}
}

func (n *Node) recordError(kind string) {
	n.stats.RecordError(kind, time.Unix(0, n.cfg.Bus.Now()))
	n.cfg.Log("validation_error", "node", n.id, "kind", kind)
}

// HandleEvent is the single mutator of node-local state (spec §5): every
// inbound message, regardless of sender, is dispatched through here.
// Validation failures are local and non-fatal (§7) — they are logged and
// recorded, never returned, except for the two fatal conditions already
// handled at New and in the consensus engine's leader selection.
func (n *Node) HandleEvent(evt eventbus.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch evt.Kind {
	case KindGenTx:
		n.handleGenTx()
	case KindHash:
		n.handleHash(evt)
	case KindInfForPack:
		n.handleInfForPack(evt)
	case KindACB:
		n.handleACB(evt)
	case KindReceipt:
		n.handleReceipt(evt)
	case KindGamma1:
		n.handleGamma1(evt)
	case KindGamma2:
		n.handleGamma2(evt)
	case KindGamma3:
		n.handleGamma3(evt)
	case KindGamma4:
		n.handleGamma4(evt)
	case KindCCB5:
		n.handleFinalCC(evt)
	default:
		n.cfg.Log("unhandled_event", "node", n.id, "kind", evt.Kind)
	}
}

func (n *Node) peersExceptSelf() []value.NodeID {
	out := make([]value.NodeID, 0, len(n.cfg.Peers))
	for _, p := range n.cfg.Peers {
		if p != n.id {
			out = append(out, p)
		}
	}
	return out
}

func (n *Node) peerStrings(ids []value.NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = consensus.MemberID(id)
	}
	return out
}

// handleGenTx mints one outgoing transaction against this node's held
// Values, per §4.1.
func (n *Node) handleGenTx() {
	tx, ok := infpool.GenerateTx(n.pool, n.held, n.peersExceptSelf(), n.cfg.Rand, n.cfg.NextTxID)
	if !ok {
		return
	}
	n.cfg.Log("generated_tx", "node", n.id, "value", tx.ValueID, "to", tx.RecvID)
}

// handleHash is the mining-timer tick (§4.1): seal the pool into an Inf,
// pack every currently-accepted Inf (this node's own plus any peer Infs
// gossiped and verified since the last block) into a new AC block, append
// it locally, dispatch receipts, and broadcast it to peers.
func (n *Node) handleHash(evt eventbus.Event) {
	provisionalHeight := n.ac.Height() + 1
	if inf, ok, err := infpool.Seal(n.pool, n.held, provisionalHeight, n.cfg.Hasher); err != nil {
		n.recordError("seal")
	} else if ok {
		if !infverify.AuthorsOK(inf) {
			n.recordError(errs.ErrTxType.Error())
		} else {
			for _, e := range inf.Entries {
				delete(n.held, e.Tx.ValueID)
			}
			n.acceptedInfs[inf.Abs] = inf
			n.epochInfs[inf.Abs] = inf
			n.broadcastInfForPack(inf)
		}
	}

	if len(n.acceptedInfs) == 0 {
		return
	}

	tip, _ := n.ac.Tip()
	height := tip.Height

	packed := make([]acchain.PackedInf, 0, len(n.acceptedInfs))
	source := make([]infpool.Inf, 0, len(n.acceptedInfs))
	for abs, inf := range n.acceptedInfs {
		inf.Height = height + 1
		packed = append(packed, acchain.PackedInf{Author: inf.NodeID, Abs: abs})
		source = append(source, inf)
	}

	block := acchain.NewBlock(tip.ID, height, n.id, n.cfg.Bus.Now(), n.cfg.NewID(), packed)
	if err := n.ac.Append(block); err != nil {
		n.recordError("ac_append")
		return
	}
	n.stats.RecordACStorage(uint64(len(packed) * 64))

	// Broadcast the block before dispatching receipts: a receipt's
	// post-inclusion GetOwner check needs the recipient's AC chain to
	// already cover this height (§4.4), so peers must ingest ACB first.
	n.cfg.Bus.Broadcast(n.peerStrings(n.peersExceptSelf()), eventbus.Event{
		Kind:    KindACB,
		ID:      n.cfg.NewID(),
		NodeID:  consensus.MemberID(n.id),
		EvtTime: n.cfg.Bus.Now(),
		Payload: ACBPayload{Block: block, Source: source},
	})

	for _, inf := range source {
		n.storeInPersonalChain(inf)
		n.dispatchReceipts(inf, block.Height)
	}
	n.acceptedInfs = make(map[string]infpool.Inf)

	n.cfg.Log("mined_ac_block", "node", n.id, "height", block.Height)
}

func (n *Node) storeInPersonalChain(inf infpool.Inf) {
	if inf.NodeID != n.id {
		return
	}
	entry := pchain.Entry{Height: inf.Height, Digest: inf.Abs}
	for _, e := range inf.Entries {
		entry.Txs = append(entry.Txs, e.Tx)
		entry.Proofs = append(entry.Proofs, e.Proof)
	}
	if err := n.pc.Append(entry); err != nil {
		n.recordError("pchain_append")
	}
	n.stats.RecordPBStorage(uint64(len(entry.Txs) * 64))
}

// dispatchReceipts implements §4.4: for every TX in inf, the node that
// just packed inf into an AC block at height sends a receipt to the
// recipient carrying the sender's proof, already extended at seal time
// (infpool.Seal) with this inf's own transaction-set.
func (n *Node) dispatchReceipts(inf infpool.Inf, height uint64) {
	for _, e := range inf.Entries {
		n.cfg.Bus.Send(consensus.MemberID(e.Tx.RecvID), eventbus.Event{
			Kind:    KindReceipt,
			ID:      n.cfg.NewID(),
			NodeID:  consensus.MemberID(n.id),
			EvtTime: n.cfg.Bus.Now(),
			Payload: ReceiptPayload{
				SenderID:   e.Tx.OwnerID,
				ReceiverID: e.Tx.RecvID,
				Tx:         e.Tx,
				Proof:      e.Proof,
				ACBHeight:  height,
			},
		})
		n.stats.RecordSend(uint64(len(e.Proof.Sets) * 64))
		n.stats.RecordTx()
	}
}

// broadcastInfForPack gossips a freshly-sealed Inf to peers so they can
// verify and buffer it for their own next AC block, before this node's
// own mining timer fires again.
func (n *Node) broadcastInfForPack(inf infpool.Inf) {
	n.cfg.Bus.Broadcast(n.peerStrings(n.peersExceptSelf()), eventbus.Event{
		Kind:    KindInfForPack,
		ID:      n.cfg.NewID(),
		NodeID:  consensus.MemberID(n.id),
		EvtTime: n.cfg.Bus.Now(),
		Payload: InfForPackPayload{Inf: inf},
	})
}

// handleInfForPack verifies a peer's candidate Inf (§4.2) and, if valid,
// buffers it for this node's next self-authored AC block.
func (n *Node) handleInfForPack(evt eventbus.Event) {
	payload, ok := evt.Payload.(InfForPackPayload)
	if !ok {
		return
	}

	if err := infverify.Verify(payload.Inf, n.ac, n.cc, n.cfg.Hasher); err != nil {
		n.recordError(unwrapKind(err))
		return
	}

	n.acceptedInfs[payload.Inf.Abs] = payload.Inf
	n.epochInfs[payload.Inf.Abs] = payload.Inf
}

// handleACB absorbs a peer-produced AC block into the local chain. A
// block that does not extend the local tip (a fork or a gap, per the
// decided no-reorg fork-choice policy) is dropped, not retried.
func (n *Node) handleACB(evt eventbus.Event) {
	payload, ok := evt.Payload.(ACBPayload)
	if !ok {
		return
	}

	if err := n.ac.Append(payload.Block); err != nil {
		n.recordError("ac_append")
		return
	}
	n.stats.RecordACStorage(uint64(len(payload.Block.AbsList) * 64))

	for _, inf := range payload.Source {
		delete(n.acceptedInfs, inf.Abs)
		n.epochInfs[inf.Abs] = inf
	}

	n.cfg.Log("observed_ac_block", "node", n.id, "height", payload.Block.Height, "producer", payload.Block.ProducerID)
}

// handleReceipt runs GetOwner (§4.3) in post-inclusion mode over a
// dispatched receipt and, on success, adopts the Value into this node's
// holdings (§4.4's "the Value enters val_prf").
func (n *Node) handleReceipt(evt eventbus.Event) {
	payload, ok := evt.Payload.(ReceiptPayload)
	if !ok {
		return
	}
	if payload.ReceiverID != n.id {
		return
	}

	receipt := getowner.Receipt{
		SenderID:   payload.SenderID,
		ReceiverID: payload.ReceiverID,
		FinalTx:    payload.Tx,
	}

	valid, err := getowner.Verify(payload.Tx.ValueID, payload.Proof, receipt, n.ac, n.cc, n.cfg.Hasher, getowner.Options{})
	if err != nil {
		n.recordError(unwrapKind(err))
		return
	}
	if !valid {
		n.recordError(errs.ErrWrongOwner.Error())
		return
	}

	n.held[payload.Tx.ValueID] = payload.Proof.Clone()
	n.cfg.Log("adopted_value", "node", n.id, "value", payload.Tx.ValueID, "height", payload.ACBHeight)
}

func unwrapKind(err error) string {
	return err.Error()
}
