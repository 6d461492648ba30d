// Package resequence implements the consumer resequencing queue: a
// bounded min-heap keyed by dataID paired with an arrival-time FIFO,
// restoring in-order delivery under multi-path reordering while
// guaranteeing liveness via a force-skip policy when the buffer is full
// or an element has waited too long.
//
// Grounded on the teacher's internal/replay.Loader (ordered replay with
// gap handling) for the pop-if-contiguous drain loop, and
// internal/replay's time-based cleaner sweep for the maxWaitTime expiry
// policy. Stdlib container/heap is used for the min-heap — justified: no
// pack library supplies a generic ordered priority queue.
package resequence

import (
	"container/heap"

	"github.com/sart-mesh/rntp/internal/clock"
)

// entry is one buffered, not-yet-deliverable data unit.
type entry struct {
	dataID     uint32
	payload    []byte
	arriveTime float64
	index      int
}

type seqHeap []*entry

func (h seqHeap) Len() int            { return len(h) }
func (h seqHeap) Less(i, j int) bool  { return h[i].dataID < h[j].dataID }
func (h seqHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *seqHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *seqHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// DeliverFunc hands an in-order (or force-skipped) data unit up to the
// consuming application.
type DeliverFunc func(dataID uint32, payload []byte)

// Config bundles the resequencing queue's tunables: the configured
// CONSUMER_MAX_WAIT_TIME_IN_SECS and the queue size.
type Config struct {
	Size        int
	MaxWaitTime float64
	// OnSkip, if set, is called whenever a force-delivery advances
	// lastData over a gap instead of delivering the next contiguous
	// dataID -- either because the buffer was full or because the
	// oldest buffered element aged past MaxWaitTime.
	OnSkip func(dataID uint32)
}

// Queue is the per-consumer resequencing queue.
type Queue struct {
	cfg      Config
	sched    clock.Scheduler
	deliver  DeliverFunc
	lastData int64 // -1 means "nothing delivered yet"
	seq      seqHeap
	timeFIFO []*entry
	timerID  clock.EventID
}

// New constructs a resequencing queue. deliver is called for every data
// unit released, in the order the queue releases them (not necessarily
// strict dataID order, per the skip policy).
func New(cfg Config, sched clock.Scheduler, deliver DeliverFunc) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	return &Queue{cfg: cfg, sched: sched, deliver: deliver, lastData: -1}
}

// LastDataID returns the highest dataID delivered so far, or -1 if none.
func (q *Queue) LastDataID() int64 { return q.lastData }

// Len returns the number of elements currently buffered, awaiting either
// their missing predecessor or expiry.
func (q *Queue) Len() int { return len(q.seq) }

// Arrive handles a freshly received data unit: buffer it, then drain
// every contiguous run now available.
func (q *Queue) Arrive(dataID uint32, payload []byte) {
	now := q.now()

	if q.lastData == -1 {
		q.deliver(dataID, payload)
		q.lastData = int64(dataID)
		return
	}
	if int64(dataID) == q.lastData+1 {
		q.deliver(dataID, payload)
		q.lastData = int64(dataID)
		q.releaseQueue(now)
		q.rescheduleTimer()
		return
	}
	if len(q.seq) >= q.cfg.Size {
		//1.- Buffer full: force-deliver the oldest-by-dataID element to make
		// room, sacrificing order for liveness.
		e := heap.Pop(&q.seq).(*entry)
		q.removeFromTimeFIFO(e.dataID)
		q.deliver(e.dataID, e.payload)
		q.lastData = int64(e.dataID)
		if q.cfg.OnSkip != nil {
			q.cfg.OnSkip(e.dataID)
		}
	}
	e := &entry{dataID: dataID, payload: payload, arriveTime: now}
	heap.Push(&q.seq, e)
	q.timeFIFO = append(q.timeFIFO, e)
	q.releaseQueue(now)
	q.rescheduleTimer()
}

// releaseQueue drains every contiguous element, then expires stale
// elements by arrival time, repeating until neither progresses: an expiry
// can make previously out-of-order elements contiguous, so the two passes
// alternate until the buffer is quiet.
func (q *Queue) releaseQueue(now float64) {
	for {
		progressed := false
		for len(q.seq) > 0 && int64(q.seq[0].dataID) == q.lastData+1 {
			e := heap.Pop(&q.seq).(*entry)
			q.removeFromTimeFIFO(e.dataID)
			q.deliver(e.dataID, e.payload)
			q.lastData = int64(e.dataID)
			progressed = true
		}
		if len(q.timeFIFO) > 0 && q.timeFIFO[0].arriveTime <= now-q.cfg.MaxWaitTime {
			oldest := q.timeFIFO[0]
			q.removeFromHeap(oldest.dataID)
			q.removeFromTimeFIFO(oldest.dataID)
			q.deliver(oldest.dataID, oldest.payload)
			q.lastData = int64(oldest.dataID)
			progressed = true
			if q.cfg.OnSkip != nil {
				q.cfg.OnSkip(oldest.dataID)
			}
		}
		if !progressed {
			return
		}
	}
}

func (q *Queue) removeFromHeap(dataID uint32) {
	for i, e := range q.seq {
		if e.dataID == dataID {
			heap.Remove(&q.seq, i)
			return
		}
	}
}

func (q *Queue) removeFromTimeFIFO(dataID uint32) {
	for i, e := range q.timeFIFO {
		if e.dataID == dataID {
			q.timeFIFO = append(q.timeFIFO[:i], q.timeFIFO[i+1:]...)
			return
		}
	}
}

// rescheduleTimer cancels any pending auto-release timer and schedules a
// new one for oldestArrive + maxWaitTime, or cancels outright if the
// buffer has drained.
func (q *Queue) rescheduleTimer() {
	if q.sched == nil {
		return
	}
	q.sched.Cancel(q.timerID)
	if len(q.timeFIFO) == 0 {
		return
	}
	oldest := q.timeFIFO[0]
	delay := (oldest.arriveTime + q.cfg.MaxWaitTime) - q.now()
	if delay < 0 {
		delay = 0
	}
	q.timerID = q.sched.Schedule(delay, func() { q.releaseQueue(q.now()); q.rescheduleTimer() })
}

func (q *Queue) now() float64 {
	if q.sched == nil {
		return 0
	}
	return q.sched.Now()
}
