// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmc

import (
	"fmt"

	"github.com/platinasystems/cmc/elib/hw"
)

// Reset control window
const regReset hw.U32 = 0x0000

// Interrupt status window
const regInterruptStatus hw.U32 = 0x0000

// Shared memory window
const (
	regIdentity      hw.U32 = 0x0000 // always Identity (R)
	regVersion       hw.U32 = 0x0004 // firmware version (R)
	regStatus        hw.U32 = 0x0008 // register map status (RW)
	regError         hw.U32 = 0x000c // firmware error flags (R)
	regProfile       hw.U32 = 0x0014 // card profile pattern (R)
	regControl       hw.U32 = 0x0018 // mailbox and feature control (RW)
	regMailboxOffset hw.U32 = 0x0300 // mailbox frame offset (R)
	regMailboxError  hw.U32 = 0x0304 // last mailbox error code (R)
)

// "test"
const Identity = 0x74736574

const (
	resetRunning = 1 << 0 // 0: held in reset
	statusReady  = 1 << 0 // register map ready

	controlBusy = 1 << 5 // mailbox owned by firmware

	ControlGpioEnable        = 1 << 26
	ControlTempMonitorEnable = 1 << 27
)

// Mailbox frame: one header word followed by the payload.
const (
	FrameBytes  = 0x1000
	HeaderBytes = 4
	MaxPayload  = FrameBytes - HeaderBytes

	headerOpcodeShift = 24
	headerLengthMask  = 0xfff
)

// Region is a byte range of a BAR.
type Region struct {
	Base uint64 `yaml:"base"`
	Size uint64 `yaml:"size"`
}

func (r Region) End() uint64 { return r.Base + r.Size }

func (r Region) Overlaps(o Region) bool {
	return r.Base < o.End() && o.Base < r.End()
}

func (r Region) String() string {
	return fmt.Sprintf("0x%x-0x%x", r.Base, r.End()-1)
}

// Layout locates the three register windows within a BAR.
type Layout struct {
	Bar       uint   `yaml:"bar"`
	Reset     Region `yaml:"reset"`
	Interrupt Region `yaml:"interrupt"`
	Shared    Region `yaml:"shared"`
}

var DefaultLayout = Layout{
	Bar:       0,
	Reset:     Region{Base: 0x131000, Size: 0x1000},
	Interrupt: Region{Base: 0x133000, Size: 0x1000},
	Shared:    Region{Base: 0x140000, Size: 0x18000},
}

// Check that each window holds its registers and no two overlap.
func (l Layout) Check() error {
	for _, x := range []struct {
		name string
		r    Region
		min  uint64
	}{
		{"reset", l.Reset, uint64(regReset) + 4},
		{"interrupt", l.Interrupt, uint64(regInterruptStatus) + 4},
		{"shared", l.Shared, uint64(regMailboxError) + 4},
	} {
		if x.r.Size < x.min {
			return fmt.Errorf("%s window %s: smaller than 0x%x bytes",
				x.name, x.r, x.min)
		}
		if x.r.Base&3 != 0 || x.r.Size&3 != 0 {
			return fmt.Errorf("%s window %s: unaligned", x.name, x.r)
		}
		if x.r.End() < x.r.Base {
			return fmt.Errorf("%s window %s: wraps", x.name, x.r)
		}
	}
	switch {
	case l.Reset.Overlaps(l.Interrupt):
		return fmt.Errorf("reset %s and interrupt %s windows overlap",
			l.Reset, l.Interrupt)
	case l.Reset.Overlaps(l.Shared):
		return fmt.Errorf("reset %s and shared %s windows overlap",
			l.Reset, l.Shared)
	case l.Interrupt.Overlaps(l.Shared):
		return fmt.Errorf("interrupt %s and shared %s windows overlap",
			l.Interrupt, l.Shared)
	}
	return nil
}
