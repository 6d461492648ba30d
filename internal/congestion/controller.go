// Package congestion implements the per-TransportStates congestion window
// controller: slow start, congestion avoidance, timeout-driven
// multiplicative decrease, stall-on-no-route, and channel-wake restoration.
//
// Grounded on the teacher's internal/networking.BudgetPlanner, which
// tracks an admission budget with the same shape (grow while under a
// threshold, halve on backoff pressure, reset on an external all-clear
// signal) though over byte budgets rather than packet counts.
package congestion

import "fmt"

// TransitionLogger receives one line per state transition, for callers
// that log every window-size change.
type TransitionLogger func(line string)

// Controller is the per-TransportStates window/threshold pair.
type Controller struct {
	window    uint32
	threshold uint32
	initWin   uint32
	initThres uint32
	log       TransitionLogger
}

// New constructs a controller at its initial window/threshold. log may be
// nil.
func New(initWin, initThreshold uint32, log TransitionLogger) *Controller {
	return &Controller{
		window:    initWin,
		threshold: initThreshold,
		initWin:   initWin,
		initThres: initThreshold,
		log:       log,
	}
}

func (c *Controller) logf(format string, args ...any) {
	if c.log != nil {
		c.log(fmt.Sprintf(format, args...))
	}
}

// Window returns the current congestion window.
func (c *Controller) Window() uint32 { return c.window }

// Threshold returns the current slow-start threshold.
func (c *Controller) Threshold() uint32 { return c.threshold }

// AckReceived applies the ack-received transition: slow start (window *=2)
// while 1 <= window < threshold, else congestion avoidance (window += 1,
// threshold += 1).
func (c *Controller) AckReceived() {
	if c.window >= 1 && c.window < c.threshold {
		c.window *= 2
	} else {
		c.window++
		c.threshold++
	}
	c.logf("ack_received window=%d threshold=%d", c.window, c.threshold)
}

// AckTimeout applies the ack-timeout transition. hasRoute distinguishes a
// timeout with a still-viable route (halve window and threshold, min 1)
// from a timeout with no route at all (stall: window := 0).
func (c *Controller) AckTimeout(hasRoute bool) {
	if !hasRoute {
		c.window = 0
		c.logf("ack_timeout_no_route window=0 threshold=%d", c.threshold)
		return
	}
	c.window = halve(c.window)
	c.threshold = halve(c.threshold)
	c.logf("ack_timeout window=%d threshold=%d", c.window, c.threshold)
}

func halve(v uint32) uint32 {
	v /= 2
	if v < 1 {
		v = 1
	}
	return v
}

// ChannelWoke applies the channel-waken transition: if the window is
// stalled at zero, restore the initial window and threshold.
func (c *Controller) ChannelWoke() {
	if c.window == 0 {
		c.window = c.initWin
		c.threshold = c.initThres
		c.logf("channel_woke window=%d threshold=%d", c.window, c.threshold)
	}
}
