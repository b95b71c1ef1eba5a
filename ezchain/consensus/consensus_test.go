package consensus_test

import (
	"crypto/ecdsa"
	"testing"

	"github.com/Re20Cboy/EZchain/ezchain/acchain"
	"github.com/Re20Cboy/EZchain/ezchain/consensus"
	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/threshold"
)

// fakeVerifier accepts a quorum once it has seen a strict majority of
// distinct committee member ids, without touching the cryptographic
// signature fields at all — the engine's job is to drive the protocol
// correctly, not to exercise ECDSA itself (that belongs to
// foundation/threshold's own tests).
type fakeVerifier struct{}

func (fakeVerifier) Sign(payload any, memberID string, key *ecdsa.PrivateKey) (threshold.Signature, error) {
	return threshold.Signature{MemberID: memberID}, nil
}

func (fakeVerifier) Verify(payload any, committee []string, sigs []threshold.Signature) bool {
	seen := map[string]bool{}
	for _, s := range sigs {
		seen[s.MemberID] = true
	}
	return len(seen)*2 > len(committee)
}

func sign(memberID string) func(payload any) (threshold.Signature, error) {
	return func(payload any) (threshold.Signature, error) {
		return threshold.Signature{MemberID: memberID}, nil
	}
}

func epochBlocks() []acchain.Block {
	return []acchain.Block{
		{Height: 1, ID: "b1", ProducerID: 1},
		{Height: 2, ID: "b2", ProducerID: 2},
		{Height: 3, ID: "b3", ProducerID: 3},
	}
}

func TestGetLeaderWalksBackwardThroughEpoch(t *testing.T) {
	blocks := epochBlocks()

	leader, err := consensus.GetLeader(blocks, 0)
	if err != nil || leader != 3 {
		t.Fatalf("GetLeader(0) = (%v, %v), want (3, nil)", leader, err)
	}

	leader, err = consensus.GetLeader(blocks, 1)
	if err != nil || leader != 2 {
		t.Fatalf("GetLeader(1) = (%v, %v), want (2, nil)", leader, err)
	}
}

func TestGetLeaderOutOfRangeIsFatal(t *testing.T) {
	blocks := epochBlocks()
	if _, err := consensus.GetLeader(blocks, 5); err == nil {
		t.Fatalf("GetLeader(5) error = nil, want ErrNoLeaderCandidate")
	}
}

func TestEngineHappyPathProducesFinalBlock(t *testing.T) {
	committee := []value.NodeID{1, 2, 3}
	blocks := epochBlocks()

	leaderEngine := consensus.New(3, fakeVerifier{}, nil)
	if err := leaderEngine.Start(1, acchain.GenesisID, 3, 1, committee, blocks); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !leaderEngine.IsLeader() {
		t.Fatalf("IsLeader() = false, want true for node 3 at cnt=0")
	}

	leaderEngine.EndGamma1(nil)
	if leaderEngine.Phase() != consensus.PhaseGamma2 {
		t.Fatalf("Phase() = %v, want PhaseGamma2", leaderEngine.Phase())
	}

	proposed, leaderSig, err := leaderEngine.ProposeAsLeader(sign(consensus.MemberID(3)))
	if err != nil {
		t.Fatalf("ProposeAsLeader() error = %v", err)
	}
	if proposed.Height != 1 {
		t.Fatalf("proposed.Height = %d, want 1", proposed.Height)
	}

	met := leaderEngine.CollectSignature(leaderSig)
	if met {
		t.Fatalf("CollectSignature() quorum met with one of three signatures")
	}

	sig2 := threshold.Signature{MemberID: consensus.MemberID(2)}
	met = leaderEngine.CollectSignature(sig2)
	if !met {
		t.Fatalf("CollectSignature() quorum not met with two of three signatures")
	}

	leaderEngine.AdvanceToAppeal()
	if leaderEngine.Phase() != consensus.PhaseGamma3 {
		t.Fatalf("Phase() = %v, want PhaseGamma3", leaderEngine.Phase())
	}

	leaderEngine.AdvanceToFinalize()
	finalBlock, finalSig, err := leaderEngine.FinalizeAsLeader(sign(consensus.MemberID(3)))
	if err != nil {
		t.Fatalf("FinalizeAsLeader() error = %v", err)
	}

	leaderEngine.CollectFinalSignature(finalSig)
	if !leaderEngine.CollectFinalSignature(threshold.Signature{MemberID: consensus.MemberID(2)}) {
		t.Fatalf("CollectFinalSignature() quorum not met with the leader's final signature plus one member's final vote")
	}
	_ = finalBlock

	final := leaderEngine.Finalize()
	if final.Height != 1 {
		t.Fatalf("Finalize().Height = %d, want 1", final.Height)
	}
	if leaderEngine.Phase() != consensus.PhaseIdle {
		t.Fatalf("Phase() after Finalize() = %v, want PhaseIdle", leaderEngine.Phase())
	}
	if leaderEngine.InCommittee() {
		t.Fatalf("InCommittee() after Finalize() = true, want false (reset)")
	}
}

func TestEngineGamma1MarksMissingInfAsFullFail(t *testing.T) {
	committee := []value.NodeID{1, 2, 3}
	blocks := epochBlocks()

	e := consensus.New(3, fakeVerifier{}, nil)
	if err := e.Start(1, acchain.GenesisID, 3, 1, committee, blocks); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	e.ObserveInf("abs-seen")
	e.EndGamma1([]string{"abs-seen", "abs-missing"})

	draft := e.Draft()
	if idx, ok := draft.FailTxs["abs-missing"]; !ok || idx != -1 {
		t.Fatalf("draft.FailTxs[abs-missing] = (%d, %v), want (-1, true)", idx, ok)
	}
	if _, ok := draft.FailTxs["abs-seen"]; ok {
		t.Fatalf("draft.FailTxs[abs-seen] exists, want absent (was vouched for)")
	}
}

func TestEngineViewChangeAdvancesLeader(t *testing.T) {
	committee := []value.NodeID{1, 2, 3}
	blocks := epochBlocks()

	e := consensus.New(2, fakeVerifier{}, nil)
	if err := e.Start(1, acchain.GenesisID, 3, 1, committee, blocks); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	e.EndGamma1(nil)

	if err := e.ViewChangeGamma2(); err != nil {
		t.Fatalf("ViewChangeGamma2() error = %v", err)
	}
	if !e.IsLeader() {
		t.Fatalf("IsLeader() = false after view change to cnt=1, want true for node 2")
	}
}

func TestEngineViewChangeExhaustionIsFatal(t *testing.T) {
	committee := []value.NodeID{1}
	blocks := []acchain.Block{{Height: 1, ID: "b1", ProducerID: 1}}

	e := consensus.New(1, fakeVerifier{}, nil)
	if err := e.Start(1, acchain.GenesisID, 1, 1, committee, blocks); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	e.EndGamma1(nil)

	if err := e.ViewChangeGamma2(); err == nil {
		t.Fatalf("ViewChangeGamma2() error = nil, want error when no further leader candidate exists")
	}
}
