package resequence

import (
	"reflect"
	"testing"

	"github.com/sart-mesh/rntp/internal/clock"
)

func TestResequencingWithLoss(t *testing.T) {
	sched := clock.NewManual()
	var delivered []uint32
	q := New(Config{Size: 10, MaxWaitTime: 5}, sched, func(id uint32, _ []byte) {
		delivered = append(delivered, id)
	})

	sched.Advance(0)
	q.Arrive(0, nil)
	sched.Advance(0.1)
	q.Arrive(1, nil)
	sched.Advance(0.1) // now = 0.2, dataID 3 arrives here
	q.Arrive(3, nil)
	sched.Advance(0.1)
	q.Arrive(4, nil)
	sched.Advance(0.1)
	q.Arrive(5, nil)

	if got, want := delivered, []uint32{0, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected immediate delivery of %v before the timeout, got %v", want, got)
	}
	if q.LastDataID() != 1 {
		t.Fatalf("expected lastDataId=1 before timeout, got %d", q.LastDataID())
	}

	// The auto-release timer was scheduled for (arrival of 3) + maxWaitTime
	// = 0.2 + 5 = 5.2.
	sched.RunUntil(6)

	want := []uint32{0, 1, 3, 4, 5}
	if !reflect.DeepEqual(delivered, want) {
		t.Fatalf("expected %v after timeout, got %v", want, delivered)
	}
	if q.LastDataID() != 5 {
		t.Fatalf("expected lastDataId=5 after timeout, got %d", q.LastDataID())
	}
}

func TestFullBufferForceDeliversOldestByDataID(t *testing.T) {
	sched := clock.NewManual()
	var delivered []uint32
	q := New(Config{Size: 2, MaxWaitTime: 100}, sched, func(id uint32, _ []byte) {
		delivered = append(delivered, id)
	})

	q.Arrive(0, nil) // delivered immediately, lastData=0
	q.Arrive(5, nil) // buffered
	q.Arrive(6, nil) // buffered, now full (size 2)
	q.Arrive(7, nil) // full: evict min (5), deliver it, buffer 7; 6 and 7 are then contiguous and drain

	want := []uint32{0, 5, 6, 7}
	if !reflect.DeepEqual(delivered, want) {
		t.Fatalf("expected forced delivery of the oldest-by-dataID element followed by the contiguous run, got %v", delivered)
	}
	if q.LastDataID() != 7 {
		t.Fatalf("expected lastDataId advanced past the force-delivered element to the end of the contiguous run, got %d", q.LastDataID())
	}
}

func TestContiguousDeliveryDrainsBuffer(t *testing.T) {
	sched := clock.NewManual()
	var delivered []uint32
	q := New(Config{Size: 10, MaxWaitTime: 100}, sched, func(id uint32, _ []byte) {
		delivered = append(delivered, id)
	})

	q.Arrive(0, nil)
	q.Arrive(2, nil)
	q.Arrive(1, nil) // fills the gap; 1 then 2 drain contiguously

	want := []uint32{0, 1, 2}
	if !reflect.DeepEqual(delivered, want) {
		t.Fatalf("expected contiguous drain of %v, got %v", want, delivered)
	}
}
