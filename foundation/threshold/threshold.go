// Package threshold implements committee threshold-signature verification.
// The original node stubbed this check out and always accepted a CC block;
// here it is implemented for real by collecting one ECDSA signature per
// committee member (grounded on foundation/blockchain/signature.Sign,
// VerifySignature and FromAddress) and accepting once a strict majority of
// distinct committee members has signed the same payload.
package threshold

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidRecoveryID is returned when a collected signature carries a
// recovery id outside the values this package produces.
var ErrInvalidRecoveryID = errors.New("threshold: invalid recovery id")

// thresholdID stamps every message this package signs, the way the
// signature package stamps its messages with an ardanID, so a threshold
// signature can never be confused with a signature produced elsewhere.
const thresholdID = 41

// Signature is one committee member's signature over a CC-block payload.
type Signature struct {
	MemberID string   `json:"member_id"`
	V        *big.Int `json:"v"`
	R        *big.Int `json:"r"`
	S        *big.Int `json:"s"`
}

// Verifier checks whether a set of collected signatures meets quorum for a
// given payload and committee.
type Verifier interface {
	Sign(payload any, memberID string, key *ecdsa.PrivateKey) (Signature, error)
	Verify(payload any, committee []string, sigs []Signature) bool
}

// ECDSAQuorum is the default Verifier. Quorum is met once more than half of
// the distinct committee members supplied a valid signature over the exact
// same payload.
type ECDSAQuorum struct{}

// NewECDSAQuorum returns the default production Verifier.
func NewECDSAQuorum() ECDSAQuorum {
	return ECDSAQuorum{}
}

// Sign produces a member's signature over payload.
func (ECDSAQuorum) Sign(payload any, memberID string, key *ecdsa.PrivateKey) (Signature, error) {
	data, err := stamp(payload)
	if err != nil {
		return Signature{}, err
	}

	sig, err := crypto.Sign(data, key)
	if err != nil {
		return Signature{}, err
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	v := new(big.Int).SetBytes([]byte{sig[64] + thresholdID})

	return Signature{MemberID: memberID, V: v, R: r, S: s}, nil
}

// Verify reports whether sigs contains valid, distinct-member signatures
// over payload from more than half of committee.
func (ECDSAQuorum) Verify(payload any, committee []string, sigs []Signature) bool {
	if len(committee) == 0 {
		return false
	}

	inCommittee := make(map[string]bool, len(committee))
	for _, id := range committee {
		inCommittee[id] = true
	}

	data, err := stamp(payload)
	if err != nil {
		return false
	}

	confirmed := make(map[string]bool, len(sigs))
	for _, sig := range sigs {
		if !inCommittee[sig.MemberID] || confirmed[sig.MemberID] {
			continue
		}
		if err := verifyOne(data, sig); err != nil {
			continue
		}
		confirmed[sig.MemberID] = true
	}

	return len(confirmed)*2 > len(committee)
}

func verifyOne(data []byte, sig Signature) error {
	uintV := sig.V.Uint64() - thresholdID
	if uintV != 0 && uintV != 1 {
		return ErrInvalidRecoveryID
	}

	if !crypto.ValidateSignatureValues(byte(uintV), sig.R, sig.S, false) {
		return errors.New("threshold: invalid signature values")
	}

	rBytes := sig.R.Bytes()
	sBytes := sig.S.Bytes()

	raw := make([]byte, crypto.SignatureLength)
	copy(raw[32-len(rBytes):32], rBytes)
	copy(raw[64-len(sBytes):64], sBytes)
	raw[64] = byte(uintV)

	publicKey, err := crypto.SigToPub(data, raw)
	if err != nil {
		return err
	}

	rs := raw[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return errors.New("threshold: signature does not verify")
	}

	return nil
}

// stamp hashes payload with a package-specific domain separator, keccak256
// over JSON, mirroring the way the signature package stamps signed values.
func stamp(payload any) ([]byte, error) {
	v, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	payloadHash := crypto.Keccak256(v)
	domain := []byte("\x19EZchain Threshold Message:\n32")
	return crypto.Keccak256(domain, payloadHash), nil
}

// Address recovers the signer address bound to a signature, useful for
// audit logging when a quorum check fails.
func Address(payload any, sig Signature) (string, error) {
	data, err := stamp(payload)
	if err != nil {
		return "", err
	}

	uintV := sig.V.Uint64() - thresholdID
	rBytes := sig.R.Bytes()
	sBytes := sig.S.Bytes()

	raw := make([]byte, crypto.SignatureLength)
	copy(raw[32-len(rBytes):32], rBytes)
	copy(raw[64-len(sBytes):64], sBytes)
	raw[64] = byte(uintV)

	publicKey, err := crypto.SigToPub(data, raw)
	if err != nil {
		return "", err
	}

	return crypto.PubkeyToAddress(*publicKey).String(), nil
}

// SignatureString renders a Signature in the same hex-encoded [R|S|V] shape
// the signature package uses for display and log lines.
func SignatureString(sig Signature) string {
	rBytes := sig.R.Bytes()
	sBytes := sig.S.Bytes()

	raw := make([]byte, crypto.SignatureLength)
	copy(raw[32-len(rBytes):32], rBytes)
	copy(raw[64-len(sBytes):64], sBytes)
	raw[64] = byte(sig.V.Uint64())

	return hexutil.Encode(raw)
}
