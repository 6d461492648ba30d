package clock

import "container/heap"

// pendingEvent is one entry in the manual scheduler's event heap.
type pendingEvent struct {
	id       EventID
	fireAt   float64
	seq      uint64 // insertion order, used as a tie-breaker
	fn       func()
	cancelled bool
	index    int // heap.Interface bookkeeping
}

type eventHeap []*pendingEvent

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].fireAt != h[j].fireAt {
		return h[i].fireAt < h[j].fireAt
	}
	//1.- Same simulated instant: insertion order decides.
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *eventHeap) Push(x any) {
	e := x.(*pendingEvent)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Manual is a deterministic Scheduler driven explicitly by RunUntil/Advance,
// used by every package's unit tests so they never depend on wall-clock time.
type Manual struct {
	now     float64
	nextID  EventID
	nextSeq uint64
	heap    eventHeap
	byID    map[EventID]*pendingEvent
}

// NewManual constructs a manual scheduler starting at simulated time zero.
func NewManual() *Manual {
	return &Manual{byID: make(map[EventID]*pendingEvent)}
}

// Now implements Scheduler.
func (m *Manual) Now() float64 { return m.now }

// Schedule implements Scheduler.
func (m *Manual) Schedule(delaySeconds float64, fn func()) EventID {
	if delaySeconds < 0 {
		delaySeconds = 0
	}
	m.nextID++
	id := m.nextID
	m.nextSeq++
	e := &pendingEvent{id: id, fireAt: m.now + delaySeconds, seq: m.nextSeq, fn: fn}
	heap.Push(&m.heap, e)
	m.byID[id] = e
	return id
}

// Cancel implements Scheduler.
func (m *Manual) Cancel(id EventID) {
	if e, ok := m.byID[id]; ok {
		e.cancelled = true
		delete(m.byID, id)
	}
}

// Advance runs every event due within the next delaySeconds, moving the
// simulated clock forward by exactly that much even if no event fires.
func (m *Manual) Advance(delaySeconds float64) {
	m.RunUntil(m.now + delaySeconds)
}

// RunUntil fires every pending event with fireAt <= target, in (time, then
// insertion) order, advancing m.now to target once drained.
func (m *Manual) RunUntil(target float64) {
	for len(m.heap) > 0 && m.heap[0].fireAt <= target {
		e := heap.Pop(&m.heap).(*pendingEvent)
		delete(m.byID, e.id)
		if e.cancelled {
			continue
		}
		//1.- Advance "now" to the event's own time before running it, so a
		// handler that reads Now() sees the instant it was scheduled for.
		m.now = e.fireAt
		e.fn()
	}
	if target > m.now {
		m.now = target
	}
}

// Pending reports how many events are still queued (tests use this to
// assert that cancellation actually removed an event).
func (m *Manual) Pending() int { return len(m.byID) }
