// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package cmc drives the card management controller, a co-processor reached
// through three windows of a PCIe BAR. Open brings it out of reset, checks
// its identity and profile, finds its mailbox and fetches the card's sensor
// table; Execute then runs one mailbox request/response exchange at a time.
//
// A Device is not safe for concurrent use. The firmware sees only a busy bit,
// so callers sharing a Device must serialize all mailbox use themselves.
package cmc

import (
	"fmt"

	"github.com/platinasystems/cmc/elib/hw"
	"github.com/platinasystems/cmc/internal/deadline"
	"github.com/platinasystems/cmc/internal/sensor"
	uuid "github.com/satori/go.uuid"
)

// State of bring-up. Transitions only move forward, or to Failed.
type State int

const (
	Unmapped State = iota
	Mapped
	OutOfReset
	Ready
	Identified
	VariantKnown
	MailboxFound
	FeaturesEnabled
	Operational
	Failed
)

var stateNames = [...]string{
	Unmapped:        "unmapped",
	Mapped:          "mapped",
	OutOfReset:      "out-of-reset",
	Ready:           "ready",
	Identified:      "identified",
	VariantKnown:    "variant-known",
	MailboxFound:    "mailbox-found",
	FeaturesEnabled: "features-enabled",
	Operational:     "operational",
	Failed:          "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Device struct {
	Layout Layout
	// Session identifies this bring-up in logs and published data.
	Session uuid.UUID

	Version uint32
	Variant *Variant

	// Byte offsets within the shared window.
	MailboxHeader  uint
	MailboxPayload uint

	// Sensors views CardInfo, the card-info response payload.
	Sensors  *sensor.Table
	CardInfo []byte

	clock deadline.Clock
	state State

	reset, interrupt, shared hw.Window

	// Deadline of the current or last wait.
	deadline *deadline.Deadline
}

type Option func(*Device)

// WithClock replaces the system clock used for ready and mailbox waits.
func WithClock(c deadline.Clock) Option {
	return func(d *Device) { d.clock = c }
}

// New returns an Unmapped device; see BringUp.
func New(l Layout, opts ...Option) *Device {
	d := &Device{
		Layout: l,
		clock:  deadline.System,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open maps and brings up the device.
func Open(m hw.Mapper, l Layout, opts ...Option) (*Device, error) {
	d := New(l, opts...)
	if err := d.BringUp(m); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) State() State { return d.state }

// Usable reports whether Execute may be called.
func (d *Device) Usable() bool { return d.state == Operational }

// Deadline returns the deadline of the current or most recent wait, if any.
func (d *Device) Deadline() *deadline.Deadline { return d.deadline }

// InterruptStatus samples the interrupt status register for diagnostics.
func (d *Device) InterruptStatus() (uint32, error) {
	if d.interrupt == nil {
		return 0, ErrNotUsable
	}
	return regInterruptStatus.Get(d.interrupt), nil
}

// FirmwareError samples the firmware error register for diagnostics.
func (d *Device) FirmwareError() (uint32, error) {
	if d.shared == nil {
		return 0, ErrNotUsable
	}
	return regError.Get(d.shared), nil
}

// Close drops the register windows; the device must be brought up again
// before further use.
func (d *Device) Close() error {
	d.reset, d.interrupt, d.shared = nil, nil, nil
	d.Sensors, d.CardInfo = nil, nil
	d.Version, d.Variant = 0, nil
	d.MailboxHeader, d.MailboxPayload = 0, 0
	d.deadline = nil
	d.state = Unmapped
	return nil
}

func (d *Device) String() string {
	s := fmt.Sprint("cmc ", d.state)
	if d.Variant != nil {
		s += fmt.Sprintf(" %s version 0x%08x", d.Variant, d.Version)
	}
	return s
}
