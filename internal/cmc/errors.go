// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmc

import (
	"errors"
	"fmt"
	"time"

	"github.com/platinasystems/cmc/internal/sensor"
)

var (
	ErrMap          = errors.New("register window unavailable")
	ErrIdentity     = errors.New("unexpected identity")
	ErrVariant      = errors.New("unknown card profile")
	ErrMailboxFrame = errors.New("mailbox frame outside shared window")
	ErrNotUsable    = errors.New("device not usable")
	ErrBusy         = errors.New("mailbox busy")
	ErrLength       = errors.New("bad request length")
	ErrCage         = errors.New("no such cage")
	ErrPage         = errors.New("no such page")

	// The firmware replied with a length that does not fit the frame.
	ErrResponseLength = errors.New("bad response length")
)

// TimeoutError reports a wait that outlived its deadline along with the
// registers sampled at expiry.
type TimeoutError struct {
	// Op is "ready" for the bring-up wait, else the mailbox opcode name.
	Op        string
	Header    uint32
	Status    uint32
	Control   uint32
	Interrupt uint32
	Deadline  time.Time
}

func (e *TimeoutError) Error() string {
	if e.Op == waitReady {
		return fmt.Sprintf("timeout waiting for ready: status 0x%08x interrupt 0x%08x",
			e.Status, e.Interrupt)
	}
	return fmt.Sprintf("%s: timeout: header 0x%08x control 0x%08x",
		e.Op, e.Header, e.Control)
}

func (e *TimeoutError) Timeout() bool { return true }

const waitReady = "ready"

// DeviceError is a nonzero mailbox error code reported by the firmware.
type DeviceError struct {
	Code   uint32
	Header uint32
}

var deviceErrors = map[uint32]string{
	0x01: "bad opcode",
	0x02: "card info missing",
	0x03: "bad length",
	0x04: "satellite write failed",
	0x05: "satellite update failed",
	0x06: "satellite load failed",
	0x07: "satellite erase failed",
	0x09: "module diagnostics failed",
	0x0a: "module access failed",
}

// CodeName returns the name of a device error code.
func CodeName(code uint32) string {
	if s, found := deviceErrors[code]; found {
		return s
	}
	return fmt.Sprintf("unknown error 0x%x", code)
}

func (e *DeviceError) Opcode() Opcode { return Opcode(e.Header >> headerOpcodeShift) }

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: header 0x%08x: %s", e.Opcode(), e.Header,
		CodeName(e.Code))
}

// IsTimeout reports whether a ready or mailbox wait expired.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsDeviceError reports whether the firmware failed a transaction.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}

// IsCorrupt reports whether a response was malformed.
func IsCorrupt(err error) bool {
	for _, target := range []error{
		sensor.ErrUnknownKey,
		sensor.ErrDuplicateKey,
		sensor.ErrTruncated,
		ErrResponseLength,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
