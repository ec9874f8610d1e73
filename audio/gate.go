/*
NAME
  gate.go

DESCRIPTION
  gate.go implements the transmit-gating and echo-guard discipline that
  binds every audio backend to the half-duplex invariant: at no instant
  may both "is transmitting" and "samples being consumed" hold at once.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package audio

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultEchoGuard is the delay after a transmission ends during which
// captured samples are discarded, tolerating speaker ringing and the
// AD/DA pipeline's residual delay.
const DefaultEchoGuard = 80 * time.Millisecond

// Gate is the transmit context of spec: a single shared mutable record
// tracking whether the device is currently transmitting and when the
// last transmission ended. It is exclusively owned by a Device
// implementation; every other layer only reads through IsTransmitting.
type Gate struct {
	echoGuard time.Duration

	mu           sync.Mutex
	lastTXEnd    time.Time
	transmitting atomic.Bool
}

// NewGate returns a Gate enforcing the given echo-guard duration.
func NewGate(echoGuard time.Duration) *Gate {
	return &Gate{echoGuard: echoGuard}
}

// BeginTX raises the transmitting flag. Must be paired with EndTX.
func (g *Gate) BeginTX() {
	g.transmitting.Store(true)
}

// EndTX lowers the transmitting flag and stamps the end-of-transmission
// time used by ShouldDiscard's echo-guard window.
func (g *Gate) EndTX() {
	g.mu.Lock()
	g.lastTXEnd = time.Now()
	g.mu.Unlock()
	g.transmitting.Store(false)
}

// IsTransmitting reports whether a transmission is currently in progress.
func (g *Gate) IsTransmitting() bool {
	return g.transmitting.Load()
}

// ShouldDiscard reports whether a captured sample arriving at t must be
// dropped: either because a transmission is in progress, or because t
// falls within the echo-guard window following the last transmission's
// end.
func (g *Gate) ShouldDiscard(t time.Time) bool {
	if g.transmitting.Load() {
		return true
	}
	g.mu.Lock()
	last := g.lastTXEnd
	g.mu.Unlock()
	if last.IsZero() {
		return false
	}
	return t.Sub(last) < g.echoGuard
}
