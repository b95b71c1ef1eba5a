// Package node implements the Node actor: the single-mutator event
// dispatch loop that wires every other ezchain/* package into one running
// participant (spec §5, §6). It is grounded on the teacher's
// app/services/node/main.go wiring (logger, config, worker loop) and on
// foundation/blockchain/state.Worker's single-goroutine-per-concern
// design, generalized from mining-plus-peer-sync to the Inf/AC/CC pipeline.
package node

import (
	"github.com/Re20Cboy/EZchain/ezchain/acchain"
	"github.com/Re20Cboy/EZchain/ezchain/ccchain"
	"github.com/Re20Cboy/EZchain/ezchain/infpool"
	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/threshold"
)

// Event kinds, matching spec §6's enumeration one-for-one.
const (
	KindGenTx      = "GEN_TX"
	KindHash       = "HASH"
	KindACB        = "ACB"
	KindInfForPack = "INF_FOR_PACK"
	KindTTimer     = "T_TIMER"
	KindGamma1     = "GAMMA1"
	KindGamma2     = "GAMMA2"
	KindGamma3     = "GAMMA3"
	KindGamma4     = "GAMMA4"
	KindCCB1       = "CCB_1"
	KindCCB2       = "CCB_2"
	KindCCB3       = "CCB_3"
	KindCCB4       = "CCB_4"
	KindCCB5       = "CCB_5"
	KindSig        = "SIG"
	KindReceipt    = "RECEIPT"
)

// GenTxPayload carries nothing: GEN_TX is a bare tick telling the receiving
// node's Inf Pool to mint one transaction, per §4.1.
type GenTxPayload struct{}

// HashPayload is the mining-timer tick (the source's "HASH" event): fires
// independently per node with mean inter-arrival round*N.
type HashPayload struct{}

// ACBPayload carries one AC block broadcast by its producer, plus the
// verified Infs it was built from so a receiving node's local buffer stays
// consistent with the block contents without a second round trip.
type ACBPayload struct {
	Block  acchain.Block
	Source []infpool.Inf
}

// InfForPackPayload carries one verified Inf a node is offering to a
// peer's next AC block — the "gossip the Inf before mining" step implicit
// in §4.1/§4.2's pipeline.
type InfForPackPayload struct {
	Inf infpool.Inf
}

// TTimerPayload is the epoch boundary tick (§4.5 INIT).
type TTimerPayload struct {
	Epoch uint64
}

// Gamma1Payload carries one committee member's accumulated accepted Inf
// set during BROADCAST_INF.
type Gamma1Payload struct {
	From value.NodeID
	Infs []infpool.Inf
}

// Gamma2Payload carries the leader's proposed draft CC block, or a
// member's returned signature over it, during PROPOSE.
type Gamma2Payload struct {
	From      value.NodeID
	Block     ccchain.Block
	Signature threshold.Signature
	IsVote    bool
}

// Gamma3Payload carries one appeal during APPEAL: a claim that tx, backed
// by prf, legitimately spends the value the proposal marked invalid.
type Gamma3Payload struct {
	Abs   string
	Tx    value.TX
	Proof value.Proof
}

// Gamma4Payload mirrors Gamma2Payload for the re-signed, appeal-amended
// block during FINALIZE.
type Gamma4Payload struct {
	From      value.NodeID
	Block     ccchain.Block
	Signature threshold.Signature
	IsVote    bool
}

// CCBAnnouncePayload carries a CC block being announced to the whole
// network: CCB_1 for the quorum-backed proposal opening the APPEAL
// window, CCB_5 for the finalized block every node appends and compacts
// against.
type CCBAnnouncePayload struct {
	Block ccchain.Block
}

// SigPayload carries a bare signature message used outside the Gamma2/4
// propose-and-vote exchange, e.g. a late-arriving vote.
type SigPayload struct {
	From      value.NodeID
	Signature threshold.Signature
}

// ReceiptPayload is dispatched by an AC block's producer (§4.4) to every
// recipient of a TX embedded in one of its packed Infs.
type ReceiptPayload struct {
	SenderID   value.NodeID
	ReceiverID value.NodeID
	Tx         value.TX
	Proof      value.Proof
	ACBHeight  uint64
}
