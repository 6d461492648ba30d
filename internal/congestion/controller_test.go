package congestion

import "testing"

func TestSingleHopCongestionRamp(t *testing.T) {
	// initWin=1, threshold=16: slow start doubles the window each ack
	// while it stays under threshold (1,2,4,8,16 over 4 acks), landing
	// exactly on the threshold with no overshoot. Every ack after that
	// runs congestion avoidance, incrementing window and threshold
	// together by one, so they stay locked in step from then on.
	c := New(1, 16, nil)
	for i := 0; i < 4; i++ {
		c.AckReceived()
	}
	if c.Window() != 16 || c.Threshold() != 16 {
		t.Fatalf("expected slow start to land on window=threshold=16, got window=%d threshold=%d", c.Window(), c.Threshold())
	}
	for i := 0; i < 28; i++ {
		c.AckReceived()
	}
	if c.Window() != 44 || c.Threshold() != 44 {
		t.Fatalf("expected 28 further avoidance acks to add 28, got window=%d threshold=%d", c.Window(), c.Threshold())
	}
}

func TestTimeoutHalving(t *testing.T) {
	c := New(20, 16, nil)
	c.window = 20
	c.threshold = 16
	c.AckTimeout(true)
	if c.Window() != 10 || c.Threshold() != 8 {
		t.Fatalf("expected window=10 threshold=8, got window=%d threshold=%d", c.Window(), c.Threshold())
	}
}

func TestTimeoutHalvingClampsToOne(t *testing.T) {
	c := New(1, 1, nil)
	c.AckTimeout(true)
	if c.Window() != 1 || c.Threshold() != 1 {
		t.Fatalf("expected halving to clamp at 1, got window=%d threshold=%d", c.Window(), c.Threshold())
	}
}

func TestTimeoutNoRouteStalls(t *testing.T) {
	c := New(10, 8, nil)
	c.AckTimeout(false)
	if c.Window() != 0 {
		t.Fatalf("expected stall to zero the window, got %d", c.Window())
	}
}

func TestChannelWokeRestoresOnlyWhenStalled(t *testing.T) {
	c := New(4, 8, nil)
	c.AckTimeout(false)
	if c.Window() != 0 {
		t.Fatalf("precondition: expected stalled window")
	}
	c.ChannelWoke()
	if c.Window() != 4 || c.Threshold() != 8 {
		t.Fatalf("expected restore to initial window=4 threshold=8, got window=%d threshold=%d", c.Window(), c.Threshold())
	}

	// A channel wake while not stalled is a no-op.
	c.AckReceived()
	before := c.Window()
	c.ChannelWoke()
	if c.Window() != before {
		t.Fatalf("expected channel wake to be a no-op while not stalled")
	}
}

func TestAckIsIdempotentGivenDuplicateSuppressionUpstream(t *testing.T) {
	// The controller itself has no dedup logic; §4.7 guarantees the
	// caller never feeds the same ack twice. This test only pins down
	// that a single ack moves the state exactly once.
	c := New(1, 16, nil)
	c.AckReceived()
	if c.Window() != 2 {
		t.Fatalf("expected single ack to double window once, got %d", c.Window())
	}
}
