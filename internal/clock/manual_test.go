package clock

import "testing"

func TestManualOrdersByTimeThenInsertion(t *testing.T) {
	m := NewManual()
	var order []string
	m.Schedule(2, func() { order = append(order, "b") })
	m.Schedule(1, func() { order = append(order, "a") })
	m.Schedule(1, func() { order = append(order, "a2") })

	m.RunUntil(5)

	want := []string{"a", "a2", "b"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestManualCancel(t *testing.T) {
	m := NewManual()
	fired := false
	id := m.Schedule(1, func() { fired = true })
	m.Cancel(id)
	m.RunUntil(10)
	if fired {
		t.Fatalf("cancelled event fired")
	}
	if m.Pending() != 0 {
		t.Fatalf("expected no pending events, got %d", m.Pending())
	}
}

func TestManualReentrantSchedule(t *testing.T) {
	m := NewManual()
	count := 0
	var step func()
	step = func() {
		count++
		if count < 3 {
			m.Schedule(1, step)
		}
	}
	m.Schedule(1, step)
	m.RunUntil(10)
	if count != 3 {
		t.Fatalf("expected 3 reentrant fires, got %d", count)
	}
}
