// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmc

import (
	"fmt"

	"github.com/platinasystems/cmc/elib/hw"
	"github.com/platinasystems/cmc/internal/deadline"
)

// TxState is the progress of one mailbox exchange.
type TxState int

const (
	Idle TxState = iota
	RequestWritten
	WaitingForCompletion
	Complete
	TimedOut
)

var txStateNames = [...]string{
	Idle:                 "idle",
	RequestWritten:       "request-written",
	WaitingForCompletion: "waiting-for-completion",
	Complete:             "complete",
	TimedOut:             "timed-out",
}

func (s TxState) String() string {
	if s >= 0 && int(s) < len(txStateNames) {
		return txStateNames[s]
	}
	return fmt.Sprintf("txstate(%d)", int(s))
}

// Transaction is one request and its response. Header carries the opcode in
// its high byte and, for opcodes without a fixed size, the payload length in
// its low 12 bits; Execute replaces it with the header the firmware left.
type Transaction struct {
	Header   uint32
	Request  []byte
	Response []byte
	// Code is the nonzero device error code of a failed exchange.
	Code  uint32
	State TxState
}

func NewTransaction(op Opcode, request []byte) *Transaction {
	return &Transaction{
		Header:  Header(op, len(request)),
		Request: request,
	}
}

// Header frames an opcode and payload length.
func Header(op Opcode, n int) uint32 {
	return uint32(op)<<headerOpcodeShift | uint32(n)&headerLengthMask
}

func (t *Transaction) Opcode() Opcode { return Opcode(t.Header >> headerOpcodeShift) }

// Length is the header's payload length field.
func (t *Transaction) Length() int { return int(t.Header & headerLengthMask) }

func (t *Transaction) requestLength() int {
	if n := t.Opcode().RequestSize(); n != FromHeader {
		return n
	}
	return t.Length()
}

// Execute runs one exchange. It does not wait for, or retry on, a busy
// mailbox. A device error leaves the Device usable; a timeout does not.
func (d *Device) Execute(t *Transaction) error {
	if d.state != Operational {
		return fmt.Errorf("%s: %w: %s", t.Opcode(), ErrNotUsable, d.state)
	}
	return d.execute(t)
}

func (d *Device) execute(t *Transaction) error {
	op := t.Opcode()
	t.State, t.Code, t.Response = Idle, 0, nil

	ctl := regControl.Get(d.shared)
	if ctl&controlBusy != 0 {
		return fmt.Errorf("%s: %w: control 0x%08x", op, ErrBusy, ctl)
	}

	// A header length must describe the whole request; the 12 bit field
	// wraps on longer ones.
	n := t.requestLength()
	if n > MaxPayload || n > len(t.Request) ||
		(op.RequestSize() == FromHeader && n != len(t.Request)) {
		return fmt.Errorf("%s: %w: %d bytes, have %d", op, ErrLength, n,
			len(t.Request))
	}
	d.shared.Write32(d.MailboxHeader, t.Header)
	hw.WriteBytes(d.shared, d.MailboxPayload, t.Request[:n])
	t.State = RequestWritten

	regControl.Set(d.shared, ctl|controlBusy)
	t.State = WaitingForCompletion

	d.deadline = deadline.Default(d.clock)
	if d.deadline.Wait(func() bool {
		ctl = regControl.Get(d.shared)
		return ctl&controlBusy == 0
	}) == deadline.Expired {
		t.State = TimedOut
		d.state = Failed
		return &TimeoutError{
			Op:       op.String(),
			Header:   t.Header,
			Control:  ctl,
			Deadline: d.deadline.At(),
		}
	}
	t.State = Complete

	if code := regMailboxError.Get(d.shared); code != 0 {
		t.Code = code
		return &DeviceError{Code: code, Header: t.Header}
	}

	// The reply length follows the request opcode, not whatever the
	// firmware left in the opcode byte.
	t.Header = d.shared.Read32(d.MailboxHeader)
	if n = op.ResponseSize(); n == FromHeader {
		n = t.Length()
	}
	if n > MaxPayload {
		return fmt.Errorf("%s: %w: header 0x%08x", op, ErrResponseLength,
			t.Header)
	}
	t.Response = make([]byte, n)
	hw.ReadBytes(d.shared, d.MailboxPayload, t.Response)
	return nil
}
