// Package wire implements the delimited text encoding transactions, proofs
// and Infs are put on the network with. It is a direct port of the
// grammar the original node used for tx_to_str/Prf::prf_to_str and
// INF::inf_to_str/str_2_inf: fields separated by ',', records terminated
// by ';', proof segments joined by '/' and '|', and Inf entries by '$'.
// Every node in the network must agree on this exact grammar since a
// transaction's proof is only meaningful when every hop parses it the
// same way.
package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// TX is the wire shape of a single value transfer.
type TX struct {
	TxID     uint64
	Val      uint64
	OwnerID  uint64
	ACBHigh  uint64
	RecvID   uint64
	ProofStr string
}

// EncodeTX renders t as "txID,val,ownerID,acbHigh,recvID;" followed by the
// nested proof string, exactly as the original tx_to_str did.
func EncodeTX(t TX) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(t.TxID, 10))
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(t.Val, 10))
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(t.OwnerID, 10))
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(t.ACBHigh, 10))
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(t.RecvID, 10))
	b.WriteByte(';')
	b.WriteString(t.ProofStr)
	return b.String()
}

// DecodeTX parses a single transaction record starting at the beginning of
// str. The trailing nested proof string's length is not known ahead of
// time, so the caller walking a longer buffer (a proof's transaction set)
// supplies proofEnd, the offset in str of the next record boundary; the
// text between the record's ';' and proofEnd is returned as ProofStr.
func DecodeTX(str string, proofEnd int) (TX, error) {
	fields := make([]int, 0, 4)
	from := 0
	for i := 0; i < 4; i++ {
		idx := strings.IndexByte(str[from:], ',')
		if idx < 0 {
			return TX{}, fmt.Errorf("wire: malformed tx record %q", str)
		}
		fields = append(fields, from+idx)
		from = from + idx + 1
	}

	semi := strings.IndexByte(str[from:], ';')
	if semi < 0 {
		return TX{}, fmt.Errorf("wire: malformed tx record %q: missing terminator", str)
	}
	recvEnd := from + semi

	txID, err := strconv.ParseUint(str[0:fields[0]], 10, 64)
	if err != nil {
		return TX{}, fmt.Errorf("wire: tx_id: %w", err)
	}
	val, err := strconv.ParseUint(str[fields[0]+1:fields[1]], 10, 64)
	if err != nil {
		return TX{}, fmt.Errorf("wire: val: %w", err)
	}
	ownerID, err := strconv.ParseUint(str[fields[1]+1:fields[2]], 10, 64)
	if err != nil {
		return TX{}, fmt.Errorf("wire: owner_id: %w", err)
	}
	acbHigh, err := strconv.ParseUint(str[fields[2]+1:fields[3]], 10, 64)
	if err != nil {
		return TX{}, fmt.Errorf("wire: acb_high: %w", err)
	}
	recvID, err := strconv.ParseUint(str[fields[3]+1:recvEnd], 10, 64)
	if err != nil {
		return TX{}, fmt.Errorf("wire: recv_id: %w", err)
	}

	proofStr := ""
	if proofEnd > recvEnd+1 {
		proofStr = str[recvEnd+1 : proofEnd]
	}

	return TX{
		TxID:     txID,
		Val:      val,
		OwnerID:  ownerID,
		ACBHigh:  acbHigh,
		RecvID:   recvID,
		ProofStr: proofStr,
	}, nil
}

// TXSet is one recorded checkpoint of a proof: the transactions applied at
// that point plus the AC height at which the set was recorded.
type TXSet struct {
	Txs    []TX
	Height uint64
}

// Proof is the wire shape of a value's ownership proof: the value's
// initial owner and AC height, its face value, and the chronological
// sequence of transaction sets recorded against it since.
type Proof struct {
	InitID   uint64
	InitHigh uint64
	Val      uint64
	Sets     []TXSet
}

// EncodeProof renders p using the original grammar:
// "sz,initID,initHigh,val;" followed by, for each set, its concatenated
// tx records, a '/', the set's height, and a '|', then a trailing
// "-txCount" tail (kept for wire compatibility; readers recompute the
// count while parsing rather than trusting the tail).
func EncodeProof(p Proof) string {
	var b strings.Builder

	b.WriteString(strconv.Itoa(len(p.Sets)))
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(p.InitID, 10))
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(p.InitHigh, 10))
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(p.Val, 10))
	b.WriteByte(';')

	txCount := 0
	for _, set := range p.Sets {
		for _, tx := range set.Txs {
			b.WriteString(EncodeTX(tx))
			txCount++
		}
		b.WriteByte('/')
		b.WriteString(strconv.FormatUint(set.Height, 10))
		b.WriteByte('|')
	}

	b.WriteByte('-')
	b.WriteString(strconv.Itoa(txCount))

	return b.String()
}

// DecodeProof parses the grammar EncodeProof produces.
func DecodeProof(str string) (Proof, error) {
	from := 0

	to := strings.IndexByte(str[from:], ',')
	if to < 0 {
		return Proof{}, fmt.Errorf("wire: malformed proof %q", str)
	}
	sz, err := strconv.Atoi(str[from : from+to])
	if err != nil {
		return Proof{}, fmt.Errorf("wire: proof set count: %w", err)
	}
	from += to + 1

	to = strings.IndexByte(str[from:], ',')
	if to < 0 {
		return Proof{}, fmt.Errorf("wire: malformed proof %q", str)
	}
	initID, err := strconv.ParseUint(str[from:from+to], 10, 64)
	if err != nil {
		return Proof{}, fmt.Errorf("wire: init_id: %w", err)
	}
	from += to + 1

	to = strings.IndexByte(str[from:], ',')
	if to < 0 {
		return Proof{}, fmt.Errorf("wire: malformed proof %q", str)
	}
	initHigh, err := strconv.ParseUint(str[from:from+to], 10, 64)
	if err != nil {
		return Proof{}, fmt.Errorf("wire: init_high: %w", err)
	}
	from += to + 1

	to = strings.IndexByte(str[from:], ';')
	if to < 0 {
		return Proof{}, fmt.Errorf("wire: malformed proof %q", str)
	}
	val, err := strconv.ParseUint(str[from:from+to], 10, 64)
	if err != nil {
		return Proof{}, fmt.Errorf("wire: val: %w", err)
	}
	from += to + 1

	sets := make([]TXSet, 0, sz)
	for i := 0; i < sz; i++ {
		segRel := strings.IndexByte(str[from:], '/')
		if segRel < 0 {
			return Proof{}, fmt.Errorf("wire: malformed proof %q: missing set boundary", str)
		}
		seg := from + segRel

		var txs []TX
		for from < seg {
			semiRel := strings.IndexByte(str[from:], ';')
			if semiRel < 0 {
				return Proof{}, fmt.Errorf("wire: malformed proof %q: missing tx terminator", str)
			}
			proofEnd := from + semiRel + 1
			tx, err := DecodeTX(str[from:], proofEnd-from)
			if err != nil {
				return Proof{}, err
			}
			txs = append(txs, tx)
			from = proofEnd
		}

		from = seg + 1
		barRel := strings.IndexByte(str[from:], '|')
		if barRel < 0 {
			return Proof{}, fmt.Errorf("wire: malformed proof %q: missing height terminator", str)
		}
		height, err := strconv.ParseUint(str[from:from+barRel], 10, 64)
		if err != nil {
			return Proof{}, fmt.Errorf("wire: set height: %w", err)
		}
		from += barRel + 1

		sets = append(sets, TXSet{Txs: txs, Height: height})
	}

	return Proof{InitID: initID, InitHigh: initHigh, Val: val, Sets: sets}, nil
}

// EncodeInfEntry renders a single (transaction, proof) pair the way an Inf
// packs each of its members: the transaction record followed immediately
// by its proof and a trailing '$' delimiter.
func EncodeInfEntry(t TX, p Proof) string {
	t.ProofStr = EncodeProof(p)
	return EncodeTX(t) + "$"
}

// Inf is the wire shape of an announced information set: everything one
// node claims to have collected and validated during an epoch.
type Inf struct {
	NodeID  uint64
	Entries []string
	Abs     string
	Height  uint64
}

// EncodeInf renders inf as "nodeID,count$" followed by each entry, then
// the digest and height, matching INF::inf_to_str.
func EncodeInf(inf Inf) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(inf.NodeID, 10))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(len(inf.Entries)))
	b.WriteByte('$')
	for _, e := range inf.Entries {
		b.WriteString(e)
	}
	b.WriteString(inf.Abs)
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(inf.Height, 10))
	return b.String()
}

// DecodeInf parses the grammar EncodeInf produces, matching
// INF::str_2_inf.
func DecodeInf(str string) (Inf, error) {
	from := 0
	to := strings.IndexByte(str[from:], ',')
	if to < 0 {
		return Inf{}, fmt.Errorf("wire: malformed inf %q", str)
	}
	nodeID, err := strconv.ParseUint(str[from:from+to], 10, 64)
	if err != nil {
		return Inf{}, fmt.Errorf("wire: inf node_id: %w", err)
	}
	from += to + 1

	dollar := strings.IndexByte(str[from:], '$')
	if dollar < 0 {
		return Inf{}, fmt.Errorf("wire: malformed inf %q: missing count terminator", str)
	}
	sz, err := strconv.Atoi(str[from : from+dollar])
	if err != nil {
		return Inf{}, fmt.Errorf("wire: inf entry count: %w", err)
	}
	from += dollar + 1

	entries := make([]string, 0, sz)
	for i := 0; i < sz; i++ {
		endRel := strings.IndexByte(str[from:], '$')
		if endRel < 0 {
			return Inf{}, fmt.Errorf("wire: malformed inf %q: missing entry terminator", str)
		}
		end := from + endRel + 1
		entries = append(entries, str[from:end])
		from = end
	}

	inf := Inf{NodeID: nodeID, Entries: entries}

	if from < len(str) {
		commaRel := strings.IndexByte(str[from:], ',')
		if commaRel < 0 {
			return Inf{}, fmt.Errorf("wire: malformed inf %q: missing abs terminator", str)
		}
		inf.Abs = str[from : from+commaRel]
		from += commaRel + 1
	}

	if from < len(str) {
		height, err := strconv.ParseUint(str[from:], 10, 64)
		if err != nil {
			return Inf{}, fmt.Errorf("wire: inf height: %w", err)
		}
		inf.Height = height
	}

	return inf, nil
}

// TxAbstract returns the digest input for an Inf's transaction set: every
// entry truncated to its "txID,val,ownerID,acbHigh,recvID;" prefix,
// concatenated in order, matching INF::getTxAbs().
func TxAbstract(entries []string) string {
	var b strings.Builder
	for _, e := range entries {
		semi := strings.IndexByte(e, ';')
		if semi < 0 {
			continue
		}
		b.WriteString(e[:semi+1])
	}
	return b.String()
}
