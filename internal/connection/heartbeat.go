package connection

import (
	"time"

	"github.com/benbjohnson/clock"
)

// heartbeat owns the ping interval timer and the pong grace timer.
// Every method must be called with the manager lock held. Timer callbacks
// run without the lock, so they receive a sequence number and the manager
// checks it with tickCurrent/graceCurrent before acting.
type heartbeat struct {
	clock    clock.Clock
	interval time.Duration
	grace    time.Duration
	onTick   func(seq uint64)
	onStall  func(seq uint64)

	tickSeq    uint64
	graceSeq   uint64
	tickTimer  *clock.Timer
	graceTimer *clock.Timer
	lastPing   time.Time
	lastPong   time.Time
}

func newHeartbeat(clk clock.Clock, interval, grace time.Duration, onTick, onStall func(uint64)) *heartbeat {
	return &heartbeat{
		clock:    clk,
		interval: interval,
		grace:    grace,
		onTick:   onTick,
		onStall:  onStall,
	}
}

// start arms the first ping one interval from now.
func (h *heartbeat) start() {
	h.stop()
	h.armTick()
}

// stop cancels both timers and invalidates callbacks already in flight.
func (h *heartbeat) stop() {
	if h.tickTimer != nil {
		h.tickTimer.Stop()
		h.tickTimer = nil
	}
	h.cancelGrace()
	h.tickSeq++
}

// pinged records a sent ping, re-arms the interval and opens the grace
// window unless one is already open.
func (h *heartbeat) pinged() {
	h.lastPing = h.clock.Now()
	h.armTick()

	if h.grace <= 0 || h.graceTimer != nil {
		return
	}
	h.graceSeq++
	seq := h.graceSeq
	h.graceTimer = h.clock.AfterFunc(h.grace, func() { h.onStall(seq) })
}

// ponged closes the grace window and restarts the interval from now.
func (h *heartbeat) ponged() {
	h.lastPong = h.clock.Now()
	h.cancelGrace()
	if h.tickTimer != nil {
		h.tickTimer.Stop()
	}
	h.armTick()
}

func (h *heartbeat) tickCurrent(seq uint64) bool  { return seq == h.tickSeq }
func (h *heartbeat) graceCurrent(seq uint64) bool { return h.graceTimer != nil && seq == h.graceSeq }

func (h *heartbeat) armTick() {
	h.tickSeq++
	if h.interval <= 0 {
		h.tickTimer = nil
		return
	}
	seq := h.tickSeq
	h.tickTimer = h.clock.AfterFunc(h.interval, func() { h.onTick(seq) })
}

func (h *heartbeat) cancelGrace() {
	if h.graceTimer != nil {
		h.graceTimer.Stop()
		h.graceTimer = nil
	}
	h.graceSeq++
}
