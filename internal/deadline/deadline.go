// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package deadline bounds a polling wait on shared device memory. Each poll
// that has not yet seen its condition is throttled by a holdoff so that the
// device firmware is not starved of the same memory.
package deadline

import "time"

const (
	Timeout = 10 * time.Second
	Holdoff = 100 * time.Microsecond
)

type Clock interface {
	Now() time.Time
	Sleep(time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// System is the monotonic wall clock.
var System Clock = systemClock{}

type Result bool

const (
	Continue Result = false
	Expired  Result = true
)

func (r Result) String() string {
	if r == Expired {
		return "expired"
	}
	return "continue"
}

type Deadline struct {
	clock   Clock
	at      time.Time
	holdoff time.Duration
}

// Start a deadline d from now. A nil clock is the System clock.
func Start(clock Clock, d, holdoff time.Duration) *Deadline {
	if clock == nil {
		clock = System
	}
	return &Deadline{
		clock:   clock,
		at:      clock.Now().Add(d),
		holdoff: holdoff,
	}
}

// Default starts the fixed Timeout deadline with the fixed Holdoff.
func Default(clock Clock) *Deadline { return Start(clock, Timeout, Holdoff) }

func (d *Deadline) At() time.Time { return d.at }

// PollOrWait sleeps one holdoff and returns Continue if the deadline has
// not passed; otherwise it returns Expired without sleeping.
func (d *Deadline) PollOrWait() Result {
	if !d.clock.Now().Before(d.at) {
		return Expired
	}
	d.clock.Sleep(d.holdoff)
	return Continue
}

// Wait polls done until it returns true or the deadline expires.
func (d *Deadline) Wait(done func() bool) Result {
	for !done() {
		if d.PollOrWait() == Expired {
			return Expired
		}
	}
	return Continue
}
