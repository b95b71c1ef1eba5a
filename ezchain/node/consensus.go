package node

import (
	"github.com/Re20Cboy/EZchain/ezchain/acchain"
	"github.com/Re20Cboy/EZchain/ezchain/ccchain"
	"github.com/Re20Cboy/EZchain/ezchain/compact"
	"github.com/Re20Cboy/EZchain/ezchain/consensus"
	"github.com/Re20Cboy/EZchain/ezchain/errs"
	"github.com/Re20Cboy/EZchain/ezchain/infpool"
	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/eventbus"
	"github.com/Re20Cboy/EZchain/foundation/threshold"
)

func (n *Node) signFunc() func(payload any) (threshold.Signature, error) {
	return func(payload any) (threshold.Signature, error) {
		return n.cfg.Verifier.Sign(payload, consensus.MemberID(n.id), n.cfg.SignKey)
	}
}

// epochACBlocks returns every AC block above epochStartACHt, oldest first —
// both the committee membership source and the leader-selection input
// §4.5 describes. epochStartACHt moves only when appendAndCompact appends
// a CC block, so after an epoch whose round does not finalize, that
// epoch's blocks are still in the window of the next one.
func (n *Node) epochACBlocks() []acchain.Block {
	var out []acchain.Block
	for h := n.epochStartACHt + 1; h <= n.ac.Height(); h++ {
		if b, ok := n.ac.AtHeight(h); ok {
			out = append(out, b)
		}
	}
	return out
}

func (n *Node) epochListedAbs() []string {
	var out []string
	for h := n.epochStartACHt + 1; h <= n.ac.Height(); h++ {
		if b, ok := n.ac.AtHeight(h); ok {
			out = append(out, b.AbsList...)
		}
	}
	return out
}

// StartEpoch is driven by the T_TIMER tick (§4.5 INIT). It determines
// whether this node is in the new committee (every producer of at least
// one AC block returned by epochACBlocks) and, if so, starts the
// consensus engine for this round.
func (n *Node) StartEpoch(epoch uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	blocks := n.epochACBlocks()
	seen := map[value.NodeID]bool{}
	var committee []value.NodeID
	for _, b := range blocks {
		if !seen[b.ProducerID] {
			seen[b.ProducerID] = true
			committee = append(committee, b.ProducerID)
		}
	}

	n.epoch = epoch
	n.committee = committee
	n.inCommittee = seen[n.id]

	if !n.inCommittee {
		return nil
	}

	tip, ok := n.cc.Tip()
	prevID := ccchain.GenesisID
	height := uint64(1)
	if ok {
		prevID = tip.ID
		height = tip.Height + 1
	}

	return n.engine.Start(height, prevID, n.ac.Height(), epoch, committee, blocks)
}

// BroadcastGamma1 gossips this node's accepted-Inf-since-last-epoch set to
// every other committee member, opening the BROADCAST_INF window.
func (n *Node) BroadcastGamma1() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.inCommittee {
		return
	}

	infs := make([]infpool.Inf, 0, len(n.epochInfs))
	for _, inf := range n.epochInfs {
		infs = append(infs, inf)
	}

	for _, member := range n.committee {
		if member == n.id {
			continue
		}
		n.cfg.Bus.Send(consensus.MemberID(member), eventbus.Event{
			Kind:    KindGamma1,
			ID:      n.cfg.NewID(),
			NodeID:  consensus.MemberID(n.id),
			EvtTime: n.cfg.Bus.Now(),
			Payload: Gamma1Payload{From: n.id, Infs: infs},
		})
	}
}

func (n *Node) handleGamma1(evt eventbus.Event) {
	payload, ok := evt.Payload.(Gamma1Payload)
	if !ok || !n.inCommittee {
		return
	}
	for _, inf := range payload.Infs {
		n.engine.ObserveInf(inf.Abs)
		for _, e := range inf.Entries {
			n.engine.RevalidateEntry(inf.Abs, e.Tx, e.Proof, n.ac, n.cc)
		}
	}
}

// CloseGamma1 ends the BROADCAST_INF window: anything listed in an AC
// block this epoch but never vouched for by a committee broadcast is
// marked fully failed, matching scenario S5.
func (n *Node) CloseGamma1() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.inCommittee {
		return
	}
	n.engine.EndGamma1(n.epochListedAbs())
}

// ProposeGamma2 is the leader's PROPOSE action: sign the draft and
// broadcast it to the rest of the committee.
func (n *Node) ProposeGamma2() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.inCommittee || !n.engine.IsLeader() {
		return
	}

	block, sig, err := n.engine.ProposeAsLeader(n.signFunc())
	if err != nil {
		n.recordError("propose")
		return
	}
	n.engine.CollectSignature(sig)

	for _, member := range n.committee {
		if member == n.id {
			continue
		}
		n.cfg.Bus.Send(consensus.MemberID(member), eventbus.Event{
			Kind:    KindGamma2,
			ID:      n.cfg.NewID(),
			NodeID:  consensus.MemberID(n.id),
			EvtTime: n.cfg.Bus.Now(),
			Payload: Gamma2Payload{From: n.id, Block: block},
		})
	}
}

func (n *Node) handleGamma2(evt eventbus.Event) {
	payload, ok := evt.Payload.(Gamma2Payload)
	if !ok || !n.inCommittee {
		return
	}

	if !payload.IsVote {
		sig, agree := n.engine.VoteOnProposal(payload.Block, n.signFunc())
		if !agree {
			n.recordError("gamma2_disagree")
			return
		}
		n.cfg.Bus.Send(consensus.MemberID(payload.From), eventbus.Event{
			Kind:    KindGamma2,
			ID:      n.cfg.NewID(),
			NodeID:  consensus.MemberID(n.id),
			EvtTime: n.cfg.Bus.Now(),
			Payload: Gamma2Payload{From: n.id, IsVote: true, Signature: sig},
		})
		return
	}

	if !n.engine.IsLeader() {
		return
	}
	if n.engine.CollectSignature(payload.Signature) {
		n.engine.AdvanceToAppeal()
		n.openAppealWindow()
	}
}

// Gamma2Timeout handles the leader's view-change edge: rolls the view
// forward and re-derives the leader, per scenario S4.
func (n *Node) Gamma2Timeout() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.inCommittee {
		return
	}
	if err := n.engine.ViewChangeGamma2(); err != nil {
		n.recordError(errs.ErrNoLeaderCandidate.Error())
	}
}

func (n *Node) openAppealWindow() {
	n.cfg.Bus.Broadcast(n.peerStrings(n.cfg.Peers), eventbus.Event{
		Kind:    KindCCB1,
		ID:      n.cfg.NewID(),
		NodeID:  consensus.MemberID(n.id),
		EvtTime: n.cfg.Bus.Now(),
		Payload: CCBAnnouncePayload{Block: n.engine.Draft()},
	})
}

// Appeal submits a proof-of-spend for a transaction this node believes
// was wrongly marked invalid in the announced proposal (§4.5 APPEAL).
func (n *Node) Appeal(leader value.NodeID, abs string, tx value.TX, prf value.Proof) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cfg.Bus.Send(consensus.MemberID(leader), eventbus.Event{
		Kind:    KindGamma3,
		ID:      n.cfg.NewID(),
		NodeID:  consensus.MemberID(n.id),
		EvtTime: n.cfg.Bus.Now(),
		Payload: Gamma3Payload{Abs: abs, Tx: tx, Proof: prf},
	})
}

func (n *Node) handleGamma3(evt eventbus.Event) {
	payload, ok := evt.Payload.(Gamma3Payload)
	if !ok || !n.inCommittee || !n.engine.IsLeader() {
		return
	}
	if !n.engine.ReceiveAppeal(payload.Abs, payload.Tx, payload.Proof, n.ac, n.cc) {
		n.recordError("appeal_rejected")
	}
}

// CloseAppeal is the leader's APPEAL -> FINALIZE transition, driven once
// the Gamma3 window elapses.
func (n *Node) CloseAppeal() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.inCommittee || !n.engine.IsLeader() {
		return
	}
	n.engine.AdvanceToFinalize()

	block, sig, err := n.engine.FinalizeAsLeader(n.signFunc())
	if err != nil {
		n.recordError("finalize")
		return
	}
	n.engine.CollectFinalSignature(sig)

	for _, member := range n.committee {
		if member == n.id {
			continue
		}
		n.cfg.Bus.Send(consensus.MemberID(member), eventbus.Event{
			Kind:    KindGamma4,
			ID:      n.cfg.NewID(),
			NodeID:  consensus.MemberID(n.id),
			EvtTime: n.cfg.Bus.Now(),
			Payload: Gamma4Payload{From: n.id, Block: block},
		})
	}
}

func (n *Node) handleGamma4(evt eventbus.Event) {
	payload, ok := evt.Payload.(Gamma4Payload)
	if !ok || !n.inCommittee {
		return
	}

	if !payload.IsVote {
		sig, agree := n.engine.VoteOnFinalize(payload.Block, n.signFunc())
		if !agree {
			n.recordError("gamma4_disagree")
			return
		}
		n.cfg.Bus.Send(consensus.MemberID(payload.From), eventbus.Event{
			Kind:    KindGamma4,
			ID:      n.cfg.NewID(),
			NodeID:  consensus.MemberID(n.id),
			EvtTime: n.cfg.Bus.Now(),
			Payload: Gamma4Payload{From: n.id, IsVote: true, Signature: sig},
		})
		return
	}

	if !n.engine.IsLeader() {
		return
	}
	if n.engine.CollectFinalSignature(payload.Signature) {
		final := n.engine.Finalize()
		n.appendAndCompact(final)
		n.cfg.Bus.Broadcast(n.peerStrings(n.cfg.Peers), eventbus.Event{
			Kind:    KindCCB5,
			ID:      n.cfg.NewID(),
			NodeID:  consensus.MemberID(n.id),
			EvtTime: n.cfg.Bus.Now(),
			Payload: CCBAnnouncePayload{Block: final},
		})
	}
}

// Gamma4Timeout mirrors Gamma2Timeout for the FINALIZE phase's
// view-change self-edge.
func (n *Node) Gamma4Timeout() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.inCommittee {
		return
	}
	if err := n.engine.ViewChangeGamma4(); err != nil {
		n.recordError(errs.ErrNoLeaderCandidate.Error())
	}
}

func (n *Node) handleFinalCC(evt eventbus.Event) {
	payload, ok := evt.Payload.(CCBAnnouncePayload)
	if !ok {
		return
	}
	n.appendAndCompact(payload.Block)
}

func (n *Node) appendAndCompact(block ccchain.Block) {
	if err := n.cc.Append(block); err != nil {
		n.recordError("cc_append")
		return
	}
	n.stats.RecordCCStorage(uint64(len(block.FailTxs) * 64))

	compacted, failed := compact.CompactAll(n.held, block)
	n.held = compacted
	for range failed {
		n.recordError(errs.ErrAfterCC.Error())
	}

	n.epochStartACHt = n.ac.Height()
	n.epochInfs = make(map[string]infpool.Inf, 0)
	n.inCommittee = false
}
