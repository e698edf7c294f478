// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmc

import (
	"fmt"

	"github.com/platinasystems/cmc/elib/hw"
	"github.com/platinasystems/cmc/internal/deadline"
	"github.com/platinasystems/cmc/internal/sensor"
	"github.com/platinasystems/log"
	uuid "github.com/satori/go.uuid"
)

// BringUp runs each step in order and stops at the first failure, leaving
// the device Failed.
func (d *Device) BringUp(m hw.Mapper) error {
	if d.state != Unmapped {
		return fmt.Errorf("bring-up: %w: %s", ErrNotUsable, d.state)
	}
	d.Session = uuid.NewV4()
	for _, step := range []struct {
		name string
		f    func() error
		done State
	}{
		{"map", func() error { return d.mapWindows(m) }, Mapped},
		{"reset", d.leaveReset, OutOfReset},
		{"ready", d.waitReady, Ready},
		{"identity", d.checkIdentity, Identified},
		{"profile", d.detectVariant, VariantKnown},
		{"mailbox", d.findMailbox, MailboxFound},
		{"features", d.enableFeatures, FeaturesEnabled},
		{"card-info", d.fetchCardInfo, Operational},
	} {
		if err := step.f(); err != nil {
			d.state = Failed
			log.Print("daemon", "err", "cmc ", d.Session, ": ",
				step.name, ": ", err)
			return fmt.Errorf("bring-up: %s: %w", step.name, err)
		}
		d.state = step.done
	}
	log.Printf("daemon", "info", "cmc %s: %s version 0x%08x, %d modules",
		d.Session, d.Variant, d.Version, d.Variant.Modules)
	return nil
}

func (d *Device) mapWindows(m hw.Mapper) error {
	if err := d.Layout.Check(); err != nil {
		return fmt.Errorf("%w: %v", ErrMap, err)
	}
	for _, x := range []struct {
		name string
		r    Region
		w    *hw.Window
	}{
		{"reset", d.Layout.Reset, &d.reset},
		{"interrupt", d.Layout.Interrupt, &d.interrupt},
		{"shared", d.Layout.Shared, &d.shared},
	} {
		w, err := m.Map(d.Layout.Bar, x.r.Base, x.r.Size)
		if err != nil {
			return fmt.Errorf("%w: %s window %s: %v", ErrMap, x.name,
				x.r, err)
		}
		if w == nil {
			return fmt.Errorf("%w: %s window %s", ErrMap, x.name, x.r)
		}
		*x.w = w
	}
	return nil
}

// leaveReset releases a held co-processor. A ready flag left set by a
// previous run can survive reset, so it is cleared first while still held.
func (d *Device) leaveReset() error {
	v := regReset.Get(d.reset)
	if v&resetRunning != 0 {
		return nil
	}
	if regStatus.Get(d.shared)&statusReady != 0 {
		regStatus.ClearBits(d.shared, statusReady)
	}
	regReset.Set(d.reset, v|resetRunning)
	return nil
}

func (d *Device) waitReady() error {
	d.deadline = deadline.Default(d.clock)
	var status uint32
	if d.deadline.Wait(func() bool {
		status = regStatus.Get(d.shared)
		return status&statusReady != 0
	}) == deadline.Expired {
		return &TimeoutError{
			Op:        waitReady,
			Status:    status,
			Interrupt: regInterruptStatus.Get(d.interrupt),
			Deadline:  d.deadline.At(),
		}
	}
	return nil
}

func (d *Device) checkIdentity() error {
	if id := regIdentity.Get(d.shared); id != Identity {
		return fmt.Errorf("%w: 0x%08x", ErrIdentity, id)
	}
	d.Version = regVersion.Get(d.shared)
	return nil
}

func (d *Device) detectVariant() error {
	pattern := regProfile.Get(d.shared)
	if d.Variant = LookupVariant(pattern); d.Variant == nil {
		return fmt.Errorf("%w: 0x%08x", ErrVariant, pattern)
	}
	return nil
}

func (d *Device) findMailbox() error {
	o := uint(regMailboxOffset.Get(d.shared))
	if o&3 != 0 || o+FrameBytes < o || o+FrameBytes > d.shared.Size() {
		return fmt.Errorf("%w: 0x%x+0x%x > 0x%x", ErrMailboxFrame, o,
			FrameBytes, d.shared.Size())
	}
	d.MailboxHeader = o
	d.MailboxPayload = o + HeaderBytes
	return nil
}

func (d *Device) enableFeatures() error {
	if d.Variant.Features != 0 {
		regControl.SetBits(d.shared, d.Variant.Features)
	}
	return nil
}

func (d *Device) fetchCardInfo() error {
	t := NewTransaction(OpCardInfo, nil)
	if err := d.execute(t); err != nil {
		return err
	}
	tbl, err := sensor.Decode(t.Response, len(t.Response))
	if err != nil {
		return err
	}
	d.CardInfo, d.Sensors = t.Response, tbl
	return nil
}
