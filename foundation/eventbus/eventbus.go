// Package eventbus multiplexes event delivery to per-node channels the way
// the teacher's foundation/events package multiplexes many producers into
// per-subscriber channels without a lock inside the consumer. It adds the
// scheduling primitives the AC-chain's Poisson mining timer and the CC
// protocol's phase timeouts need: events can be delivered immediately or
// scheduled against a logical clock that a test harness (in lieu of the
// out-of-scope simulation harness) drives forward explicitly.
package eventbus

import (
	"container/heap"
	"sync"
)

// Event is the unit of delivery on the bus. Kind identifies which phase of
// the protocol produced it; Payload carries the small per-phase struct
// (ACBPayload, Gamma1Payload, ...) that ezchain/node.Node.HandleEvent type
// switches on. TreeID follows a value's proof tree across nodes so a
// duplicated or retransmitted event keeps its identity.
type Event struct {
	Kind     string
	ID       string
	TreeID   string
	NodeID   string
	Payload  any
	Abstract string
	EvtTime  int64
}

// Bus is the interface ezchain/node.Node and the AC/CC engines depend on.
// The production node uses Memory; tests can substitute a fake for
// deterministic single-goroutine delivery.
type Bus interface {
	Now() int64
	Subscribe(nodeID string) <-chan Event
	Unsubscribe(nodeID string)
	Send(nodeID string, evt Event)
	Broadcast(nodeIDs []string, evt Event)
	ScheduleAt(t int64, nodeID string, evt Event) string
	Cancel(scheduleID string) bool
	Advance(delta int64) int
}

// messageBuffer bounds per-node channels the same way the teacher bounds
// its websocket event channel: a slow receiver drops rather than blocks
// the sender.
const messageBuffer = 100

type scheduled struct {
	id     string
	nodeID string
	at     int64
	seq    uint64
	evt    Event
}

// scheduleQueue is a min-heap on (at, seq) so events due at the same
// logical time are delivered in submission order.
type scheduleQueue []*scheduled

func (q scheduleQueue) Len() int { return len(q) }
func (q scheduleQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}
func (q scheduleQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *scheduleQueue) Push(x any)   { *q = append(*q, x.(*scheduled)) }
func (q *scheduleQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Memory is the default in-memory Bus.
type Memory struct {
	mu       sync.Mutex
	now      int64
	seq      uint64
	nextID   uint64
	subs     map[string]chan Event
	pending  scheduleQueue
	byID     map[string]*scheduled
}

// NewMemory constructs an empty Memory bus with its logical clock at zero.
func NewMemory() *Memory {
	return &Memory{
		subs: make(map[string]chan Event),
		byID: make(map[string]*scheduled),
	}
}

// Now returns the bus's current logical time.
func (m *Memory) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Subscribe returns the channel a node reads its events from, creating it
// if this is the first subscription for nodeID.
func (m *Memory) Subscribe(nodeID string) <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.subs[nodeID]
	if !ok {
		ch = make(chan Event, messageBuffer)
		m.subs[nodeID] = ch
	}
	return ch
}

// Unsubscribe closes and removes nodeID's channel. Safe to call when the
// node was never subscribed.
func (m *Memory) Unsubscribe(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.subs[nodeID]
	if !ok {
		return
	}
	delete(m.subs, nodeID)
	close(ch)
}

// Send delivers evt to nodeID's channel immediately, dropping it if the
// receiver's buffer is full rather than blocking the sender.
func (m *Memory) Send(nodeID string, evt Event) {
	m.mu.Lock()
	ch, ok := m.subs[nodeID]
	m.mu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- evt:
	default:
	}
}

// Broadcast delivers evt to every id in nodeIDs, e.g. gossiping a mined AC
// block or a committee message to the whole peer set.
func (m *Memory) Broadcast(nodeIDs []string, evt Event) {
	for _, id := range nodeIDs {
		m.Send(id, evt)
	}
}

// ScheduleAt queues evt for delivery to nodeID once the logical clock
// reaches t (immediately if t is already due). It returns a schedule id
// that can later be passed to Cancel, used for view-change timers that
// must be cancelled if the expected message arrives first.
func (m *Memory) ScheduleAt(t int64, nodeID string, evt Event) string {
	m.mu.Lock()

	m.nextID++
	id := formatScheduleID(m.nextID)

	if t <= m.now {
		m.mu.Unlock()
		m.Send(nodeID, evt)
		return id
	}

	m.seq++
	item := &scheduled{id: id, nodeID: nodeID, at: t, seq: m.seq, evt: evt}
	m.byID[id] = item
	heap.Push(&m.pending, item)
	m.mu.Unlock()

	return id
}

// Cancel removes a previously scheduled event before it fires. It reports
// whether the schedule id was still pending.
func (m *Memory) Cancel(scheduleID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.byID[scheduleID]
	if !ok {
		return false
	}
	delete(m.byID, scheduleID)

	for i, other := range m.pending {
		if other == item {
			heap.Remove(&m.pending, i)
			break
		}
	}
	return true
}

// Advance moves the logical clock forward by delta, delivering every
// scheduled event now due, and returns how many were delivered.
func (m *Memory) Advance(delta int64) int {
	m.mu.Lock()
	m.now += delta
	due := m.dueLocked()
	m.mu.Unlock()

	for _, item := range due {
		m.Send(item.nodeID, item.evt)
	}
	return len(due)
}

func (m *Memory) dueLocked() []*scheduled {
	var due []*scheduled
	for m.pending.Len() > 0 && m.pending[0].at <= m.now {
		item := heap.Pop(&m.pending).(*scheduled)
		delete(m.byID, item.id)
		due = append(due, item)
	}
	return due
}

func formatScheduleID(n uint64) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n == 0 {
		return "0"
	}
	buf := make([]byte, 0, 16)
	for n > 0 {
		buf = append(buf, alphabet[n%uint64(len(alphabet))])
		n /= uint64(len(alphabet))
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return "sched-" + string(buf)
}
