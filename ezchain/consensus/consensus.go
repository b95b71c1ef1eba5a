// Package consensus implements the CC Consensus Engine (spec §4.5): the
// four-phase, view-changeable committee protocol that produces a CC block
// finalizing disputed or missing Infs once per epoch. It is grounded on
// foundation/blockchain/poa's committee round-robin (getLeader-by-offset,
// a fixed set of eligible signers) generalized from proof-of-authority
// block production to a BFT-style multi-phase agreement over an
// already-built draft block, with foundation/threshold standing in for
// poa's "next signer" selection as the quorum-verification primitive.
package consensus

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/Re20Cboy/EZchain/ezchain/acchain"
	"github.com/Re20Cboy/EZchain/ezchain/ccchain"
	"github.com/Re20Cboy/EZchain/ezchain/errs"
	"github.com/Re20Cboy/EZchain/ezchain/getowner"
	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/hashing"
	"github.com/Re20Cboy/EZchain/foundation/threshold"
)

// MemberID renders a node id the way the committee's threshold signatures
// identify their signer, matching Signature.MemberID's string shape.
func MemberID(id value.NodeID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func memberIDs(ids []value.NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = MemberID(id)
	}
	return out
}

// Phase enumerates the CC protocol's state machine (spec §4.5): IDLE ->
// INIT -> Gamma1 -> Gamma2 -> Gamma3 -> Gamma4 -> IDLE, with view-change
// self-loops on Gamma2 and Gamma4.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInit
	PhaseGamma1
	PhaseGamma2
	PhaseGamma3
	PhaseGamma4
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseInit:
		return "INIT"
	case PhaseGamma1:
		return "GAMMA1"
	case PhaseGamma2:
		return "GAMMA2"
	case PhaseGamma3:
		return "GAMMA3"
	case PhaseGamma4:
		return "GAMMA4"
	default:
		return "UNKNOWN"
	}
}

// GetLeader selects the leader for view cnt: the producer of the last AC
// block of the epoch for cnt=0, then walking backward through the epoch's
// block producers on each view change, matching "Leader = producer of the
// last AC block of this epoch (selectable by cnt offset on view change)".
// A cnt with no corresponding block is the one non-safety fatal condition
// named in §7: an impossible structural invariant, not a local validation
// failure.
func GetLeader(epochBlocks []acchain.Block, cnt int) (value.NodeID, error) {
	if cnt < 0 || cnt >= len(epochBlocks) {
		return 0, fmt.Errorf("consensus: no AC block producer at epoch offset %d: %w", cnt, errs.ErrNoLeaderCandidate)
	}
	return epochBlocks[len(epochBlocks)-1-cnt].ProducerID, nil
}

// Engine runs one node's view of the CC protocol. It holds no network
// transport of its own — node.Node drives it by calling its phase methods
// in response to scheduled timers and inbound committee messages, and
// reads SigningPayload/Draft to know what to broadcast.
type Engine struct {
	mu sync.Mutex

	selfID   value.NodeID
	verifier threshold.Verifier
	hasher   hashing.Hasher

	phase       Phase
	committee   []value.NodeID
	epochBlocks []acchain.Block
	cnt         int
	leaderID    value.NodeID
	draft       ccchain.Block
	seenAbs     map[string]bool
	sigSet      []threshold.Signature
	inCC        bool
}

// New constructs an Engine for selfID using verifier for quorum checks.
func New(selfID value.NodeID, verifier threshold.Verifier, hasher hashing.Hasher) *Engine {
	return &Engine{
		selfID:   selfID,
		verifier: verifier,
		hasher:   hasher,
		phase:    PhaseIdle,
	}
}

// Phase returns the engine's current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// InCommittee reports whether selfID is a member of the current committee.
func (e *Engine) InCommittee() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inCC
}

// IsLeader reports whether selfID is the current view's leader.
func (e *Engine) IsLeader() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase != PhaseIdle && e.leaderID == e.selfID
}

// Draft returns a copy of the in-progress CC block.
func (e *Engine) Draft() ccchain.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneBlock(e.draft)
}

// Start enters INIT then immediately Gamma1 for a node that is a member of
// the committee that produced at least one AC block in the previous
// epoch. height/prevID are the next CC block's coordinates; pHigh is the
// node's local AC chain height (acb_height); epochBlocks is every AC block
// produced during the epoch just closed, oldest first, used for leader
// selection on view change.
func (e *Engine) Start(height uint64, prevID string, pHigh uint64, epoch uint64, committee []value.NodeID, epochBlocks []acchain.Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	leader, err := GetLeader(epochBlocks, 0)
	if err != nil {
		return err
	}

	e.committee = append([]value.NodeID(nil), committee...)
	e.epochBlocks = append([]acchain.Block(nil), epochBlocks...)
	e.cnt = 0
	e.leaderID = leader
	e.inCC = contains(committee, e.selfID)
	e.draft = ccchain.Block{
		Height:    height,
		PrevID:    prevID,
		ACBHeight: pHigh,
		Epoch:     epoch,
		FailTxs:   make(map[string]int32),
	}
	e.seenAbs = make(map[string]bool)
	e.sigSet = nil
	e.phase = PhaseGamma1

	return nil
}

// ObserveInf records that one committee member's broadcast in the Gamma1
// window vouches for digest abs being genuinely seen during the epoch.
func (e *Engine) ObserveInf(abs string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseGamma1 {
		return
	}
	if e.seenAbs == nil {
		e.seenAbs = make(map[string]bool)
	}
	e.seenAbs[abs] = true
}

// RevalidateEntry re-runs GetOwner against a committee member's claimed
// (tx, proof) entry for digest abs during Gamma1, appending tx to the
// draft's fail set if it does not validate — the "re-validated with
// GetOwner; failures are appended to cb_ptr.fail_txn" step.
func (e *Engine) RevalidateEntry(abs string, tx value.TX, prf value.Proof, ac *acchain.Chain, cc *ccchain.Chain) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseGamma1 {
		return
	}

	receipt := getowner.Receipt{SenderID: tx.OwnerID, ReceiverID: tx.RecvID, FinalTx: tx}
	ok, _ := getowner.Verify(tx.ValueID, prf, receipt, ac, cc, e.hasher, getowner.Options{})
	if ok {
		return
	}
	e.appendFailureLocked(abs, tx)
}

func (e *Engine) appendFailureLocked(abs string, tx value.TX) {
	if idx, exists := e.draft.FailTxs[abs]; exists && idx != ccchain.FailFullSet {
		e.draft.FailTxn[idx] = append(e.draft.FailTxn[idx], tx)
		return
	}
	idx := int32(len(e.draft.FailTxn))
	e.draft.FailTxn = append(e.draft.FailTxn, []value.TX{tx})
	e.draft.FailTxs[abs] = idx
}

// EndGamma1 closes the BROADCAST_INF window: every digest the local AC
// chain listed during the epoch but that was never vouched for by any
// committee broadcast is marked fully failed (missing Inf, scenario S5),
// then the engine advances to PROPOSE.
func (e *Engine) EndGamma1(acListedAbs []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, abs := range acListedAbs {
		if e.seenAbs[abs] {
			continue
		}
		if _, exists := e.draft.FailTxs[abs]; exists {
			continue
		}
		e.draft.FailTxs[abs] = ccchain.FailFullSet
	}

	e.phase = PhaseGamma2
}

// SigningPayload returns the value committee members sign over during
// Gamma2/Gamma4: the draft block as it currently stands.
func (e *Engine) SigningPayload() ccchain.Block {
	return e.Draft()
}

// ProposeAsLeader is the leader's Gamma2 action: it signs its own draft
// and returns the payload other members must compare against and the
// leader's own signature, to be broadcast to the committee.
func (e *Engine) ProposeAsLeader(signKey func(payload any) (threshold.Signature, error)) (ccchain.Block, threshold.Signature, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseGamma2 || e.leaderID != e.selfID {
		return ccchain.Block{}, threshold.Signature{}, fmt.Errorf("consensus: ProposeAsLeader called out of turn in phase %s", e.phase)
	}

	sig, err := signKey(cloneBlock(e.draft))
	if err != nil {
		return ccchain.Block{}, threshold.Signature{}, err
	}
	e.sigSet = append(e.sigSet, sig)

	return cloneBlock(e.draft), sig, nil
}

// VoteOnProposal is a non-leader committee member's Gamma2 action:
// compare the leader's proposed block against the member's own draft and,
// if they agree, produce a signature over it to return to the leader.
func (e *Engine) VoteOnProposal(proposed ccchain.Block, signKey func(payload any) (threshold.Signature, error)) (threshold.Signature, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseGamma2 {
		return threshold.Signature{}, false
	}
	if !blocksEqual(proposed, e.draft) {
		return threshold.Signature{}, false
	}

	sig, err := signKey(cloneBlock(proposed))
	if err != nil {
		return threshold.Signature{}, false
	}
	return sig, true
}

// VoteOnFinalize mirrors VoteOnProposal for the Gamma4 re-signing round.
func (e *Engine) VoteOnFinalize(proposed ccchain.Block, signKey func(payload any) (threshold.Signature, error)) (threshold.Signature, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseGamma4 {
		return threshold.Signature{}, false
	}
	if !blocksEqual(proposed, e.draft) {
		return threshold.Signature{}, false
	}

	sig, err := signKey(cloneBlock(proposed))
	if err != nil {
		return threshold.Signature{}, false
	}
	return sig, true
}

// CollectSignature is the leader's accumulation step: it records a
// member's signature and reports whether quorum (more than half the
// committee) has now been met.
func (e *Engine) CollectSignature(sig threshold.Signature) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sigSet = append(e.sigSet, sig)
	return e.verifier.Verify(cloneBlock(e.draft), memberIDs(e.committee), e.sigSet)
}

// AdvanceToAppeal moves the leader from PROPOSE to APPEAL once quorum on
// the draft has been met.
func (e *Engine) AdvanceToAppeal() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.phase = PhaseGamma3
}

// ViewChangeGamma2 handles a Gamma2 timeout with no signed proposal: the
// committee rolls the view forward and re-derives the leader, looping back
// into Gamma2 (the γ2 -> γ2 self-edge).
func (e *Engine) ViewChangeGamma2() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseGamma2 {
		return fmt.Errorf("consensus: ViewChangeGamma2 called in phase %s", e.phase)
	}

	e.cnt++
	leader, err := GetLeader(e.epochBlocks, e.cnt)
	if err != nil {
		return err
	}
	e.leaderID = leader
	e.sigSet = nil
	return nil
}

// ReceiveAppeal is the APPEAL-phase action (§4.5 γ3): any node whose
// transaction is currently listed invalid may submit a proof-of-spend;
// the committee re-validates it with GetOwner and, on success, removes it
// from the draft's fail set.
func (e *Engine) ReceiveAppeal(abs string, tx value.TX, prf value.Proof, ac *acchain.Chain, cc *ccchain.Chain) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseGamma3 {
		return false
	}

	idx, exists := e.draft.FailTxs[abs]
	if !exists {
		return false
	}

	receipt := getowner.Receipt{SenderID: tx.OwnerID, ReceiverID: tx.RecvID, FinalTx: tx}
	ok, _ := getowner.Verify(tx.ValueID, prf, receipt, ac, cc, e.hasher, getowner.Options{})
	if !ok {
		return false
	}

	if idx == ccchain.FailFullSet {
		delete(e.draft.FailTxs, abs)
		return true
	}

	remaining := e.draft.FailTxn[idx][:0:0]
	for _, failed := range e.draft.FailTxn[idx] {
		if failed.TxID != tx.TxID {
			remaining = append(remaining, failed)
		}
	}
	if len(remaining) == 0 {
		delete(e.draft.FailTxs, abs)
	} else {
		e.draft.FailTxn[idx] = remaining
	}
	return true
}

// AdvanceToFinalize moves the engine from APPEAL to FINALIZE.
func (e *Engine) AdvanceToFinalize() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.phase = PhaseGamma4
}

// FinalizeAsLeader is the leader's Gamma4 action: re-sign the
// appeal-amended draft and reset the signature set to collect a fresh
// quorum over the final content.
func (e *Engine) FinalizeAsLeader(signKey func(payload any) (threshold.Signature, error)) (ccchain.Block, threshold.Signature, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseGamma4 || e.leaderID != e.selfID {
		return ccchain.Block{}, threshold.Signature{}, fmt.Errorf("consensus: FinalizeAsLeader called out of turn in phase %s", e.phase)
	}

	sig, err := signKey(cloneBlock(e.draft))
	if err != nil {
		return ccchain.Block{}, threshold.Signature{}, err
	}
	e.sigSet = []threshold.Signature{sig}

	return cloneBlock(e.draft), sig, nil
}

// CollectFinalSignature mirrors CollectSignature for the Gamma4 quorum.
func (e *Engine) CollectFinalSignature(sig threshold.Signature) bool {
	return e.CollectSignature(sig)
}

// ViewChangeGamma4 handles a Gamma4 timeout with no finalized block: the
// γ4 -> γ4 self-edge. Re-derives the leader the same way Gamma2 does.
func (e *Engine) ViewChangeGamma4() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseGamma4 {
		return fmt.Errorf("consensus: ViewChangeGamma4 called in phase %s", e.phase)
	}

	e.cnt++
	leader, err := GetLeader(e.epochBlocks, e.cnt)
	if err != nil {
		return err
	}
	e.leaderID = leader
	e.sigSet = nil
	return nil
}

// Finalize completes the round: the finalized CC block is returned and
// the engine resets to IDLE, clearing committee, seenAbs, sigSet, leaderID
// and inCC exactly as §4.5's terminal transition requires.
func (e *Engine) Finalize() ccchain.Block {
	e.mu.Lock()
	defer e.mu.Unlock()

	final := cloneBlock(e.draft)
	e.reset()
	return final
}

// Abort resets the engine to IDLE without producing a block, used when a
// node drops out of a round it can no longer usefully participate in.
func (e *Engine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}

func (e *Engine) reset() {
	e.phase = PhaseIdle
	e.committee = nil
	e.epochBlocks = nil
	e.cnt = 0
	e.leaderID = 0
	e.draft = ccchain.Block{}
	e.seenAbs = nil
	e.sigSet = nil
	e.inCC = false
}

func contains(ids []value.NodeID, target value.NodeID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

func blocksEqual(a, b ccchain.Block) bool {
	if a.Height != b.Height || a.PrevID != b.PrevID || a.ACBHeight != b.ACBHeight || a.Epoch != b.Epoch {
		return false
	}
	if len(a.FailTxs) != len(b.FailTxs) {
		return false
	}
	for k, v := range a.FailTxs {
		if b.FailTxs[k] != v {
			return false
		}
	}
	return true
}

func cloneBlock(b ccchain.Block) ccchain.Block {
	out := b
	out.FailTxs = make(map[string]int32, len(b.FailTxs))
	for k, v := range b.FailTxs {
		out.FailTxs[k] = v
	}
	out.FailTxn = make([][]value.TX, len(b.FailTxn))
	for i, txs := range b.FailTxn {
		out.FailTxn[i] = append([]value.TX(nil), txs...)
	}
	return out
}
