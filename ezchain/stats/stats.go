// Package stats implements the statistics hook named in spec §6: a
// read-only snapshot of communication cost and storage usage, plus the
// local error log the §7 propagation policy requires every validation
// failure to be recorded into. It is grounded on the teacher's
// events.Events package in the way it accumulates lightweight records for
// later retrieval, generalized from "push to websocket subscribers" to
// "accumulate counters and an error log a node can be asked for."
package stats

import (
	"sync"
	"time"
)

// Snapshot is the statistic() result: average communication cost per
// transaction, and the three storage figures, in bytes.
type Snapshot struct {
	CCPT       float64
	ACCStorage uint64
	CCCStorage uint64
	PBCStorage uint64
}

// ErrorRecord is one entry in the CSV-equivalent error log: the kind of
// validation failure (one of the ezchain/errs taxonomy members, by
// message, or a short label for a failed node step such as "ac_append")
// and the logical timestamp it occurred at.
type ErrorRecord struct {
	Kind string
	At   time.Time
}

// Recorder accumulates the figures Snapshot reports and the error log
// every local, non-fatal validation failure is appended to (§7).
type Recorder struct {
	mu sync.Mutex

	bytesSent uint64
	txCount   uint64
	acBytes   uint64
	ccBytes   uint64
	pbBytes   uint64
	errorLog  []ErrorRecord
}

// New constructs an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

// RecordSend accounts for n bytes of outbound traffic attributable to
// publishing transactions, for the CCPT figure.
func (r *Recorder) RecordSend(n uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bytesSent += n
}

// RecordTx counts one transaction towards the CCPT denominator.
func (r *Recorder) RecordTx() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txCount++
}

// RecordACStorage adds n bytes to the running AC-chain storage figure.
func (r *Recorder) RecordACStorage(n uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acBytes += n
}

// RecordCCStorage adds n bytes to the running CC-chain storage figure.
func (r *Recorder) RecordCCStorage(n uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ccBytes += n
}

// RecordPBStorage adds n bytes to the running personal-chain storage figure.
func (r *Recorder) RecordPBStorage(n uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pbBytes += n
}

// RecordError appends an error record to the local log. It never returns
// an error itself and never blocks the caller, matching §7's "local and
// non-fatal" propagation policy — a Byzantine peer can only ever grow this
// log, never crash the node.
func (r *Recorder) RecordError(kind string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorLog = append(r.errorLog, ErrorRecord{Kind: kind, At: at})
}

// Errors returns a copy of the accumulated error log.
func (r *Recorder) Errors() []ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ErrorRecord, len(r.errorLog))
	copy(out, r.errorLog)
	return out
}

// Snapshot computes the current statistic() result.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ccpt float64
	if r.txCount > 0 {
		ccpt = float64(r.bytesSent) / float64(r.txCount)
	}

	return Snapshot{
		CCPT:       ccpt,
		ACCStorage: r.acBytes,
		CCCStorage: r.ccBytes,
		PBCStorage: r.pbBytes,
	}
}
