// Package sendqueue implements the per-TransportStates capsule send queue:
// a FIFO of CapsuleToSend entries supporting hide-in-place
// (transientlyPopFront) rather than destructive pop, an O(1) membership
// set, and an append-only mutation log.
//
// Grounded on the teacher's internal/networking.ArcChunkIndex, which pairs
// a primary index with a side lookup set kept in lockstep, and on
// internal/replay.Writer's pattern of logging every state-changing call.
package sendqueue

import (
	"fmt"
	"sync"

	"github.com/sart-mesh/rntp/internal/wire"
)

// Code identifies why a capsule entered the queue.
type Code int

const (
	FromProducer Code = iota
	FromPreviousHop
	ForRetrying
)

func (c Code) String() string {
	switch c {
	case FromProducer:
		return "from_producer"
	case FromPreviousHop:
		return "from_previous_hop"
	case ForRetrying:
		return "for_retrying"
	default:
		return "unknown"
	}
}

// CapsuleToSend is one queue element.
type CapsuleToSend struct {
	Capsule       *wire.Capsule
	Data          []byte
	NTimesRetried int
	Code          Code
	hidden        bool
}

// BufferLogger receives one line per mutation (push/hide/restore/remove).
// Tests can supply nil; internal/transport points this at its Logger's
// LogBuffer, the per-category buffer sink.
type BufferLogger func(line string)

// Queue is the per-(consumer,prefix) capsule send queue.
type Queue struct {
	mu      sync.Mutex
	entries []*CapsuleToSend
	inBuf   map[uint32]struct{}
	log     BufferLogger
}

// New constructs an empty queue. log may be nil.
func New(log BufferLogger) *Queue {
	return &Queue{inBuf: make(map[uint32]struct{}), log: log}
}

func (q *Queue) logf(format string, args ...any) {
	if q.log != nil {
		q.log(fmt.Sprintf(format, args...))
	}
}

// Push appends a new, visible entry.
func (q *Queue) Push(e *CapsuleToSend) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e.hidden = false
	q.entries = append(q.entries, e)
	q.inBuf[e.Capsule.DataID] = struct{}{}
	q.logf("push dataID=%d code=%s", e.Capsule.DataID, e.Code)
}

// Front returns the first non-hidden entry, or nil if none.
func (q *Queue) Front() *CapsuleToSend {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if !e.hidden {
			return e
		}
	}
	return nil
}

// TransientlyPopFront hides the first non-hidden entry (it stays in the
// buffer so Remove/Restore can still find it) and returns it.
func (q *Queue) TransientlyPopFront() *CapsuleToSend {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if !e.hidden {
			e.hidden = true
			q.logf("hide dataID=%d", e.Capsule.DataID)
			return e
		}
	}
	return nil
}

// Restore unhides the entry for dataID, if present.
func (q *Queue) Restore(dataID uint32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.Capsule.DataID == dataID {
			e.hidden = false
			q.logf("restore dataID=%d", dataID)
			return
		}
	}
}

// Remove fully erases the entry for dataID (e.g., on ack).
func (q *Queue) Remove(dataID uint32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.Capsule.DataID == dataID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			delete(q.inBuf, dataID)
			q.logf("remove dataID=%d", dataID)
			return
		}
	}
}

// CountElements returns the number of non-hidden entries.
func (q *Queue) CountElements() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, e := range q.entries {
		if !e.hidden {
			n++
		}
	}
	return n
}

// Contains answers membership in O(1) via the side set.
func (q *Queue) Contains(dataID uint32) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.inBuf[dataID]
	return ok
}

// Len returns the total buffer length, hidden entries included; callers
// use this alongside CountElements to check the spec's invariant
// countElements() + nHiddenElements == buffer length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
