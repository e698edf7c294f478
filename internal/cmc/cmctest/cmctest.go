// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package cmctest emulates management controller firmware behind fake
// register windows so that bring-up and mailbox traffic can run without a
// card.
package cmctest

import (
	"encoding/binary"
	"sync"

	"github.com/platinasystems/cmc/elib/hw/hwtest"
	"github.com/platinasystems/cmc/internal/deadline/deadlinetest"
	"github.com/platinasystems/cmc/internal/sensor"
)

// Register offsets as the firmware publishes them.
const (
	Reset = 0x0000

	InterruptStatus = 0x0000

	Identity      = 0x0000
	Version       = 0x0004
	Status        = 0x0008
	Error         = 0x000c
	Profile       = 0x0014
	Control       = 0x0018
	MailboxOffset = 0x0300
	MailboxError  = 0x0304
)

const (
	ResetRunning = 1 << 0
	StatusReady  = 1 << 0
	ControlBusy  = 1 << 5

	Magic          = 0x74736574
	DefaultProfile = 0x51320001
	DefaultVersion = 0x00040310
	DefaultMailbox = 0x1000
)

// Request payload sizes of the opcodes with a fixed size.
var requestSize = map[uint8]int{
	0x04: 0,
	0x0b: 8,
	0x0d: 4,
	0x0e: 8,
}

// Handler serves one request; a nonzero code fails it.
type Handler func(op uint8, hdr uint32, req []byte) (code, reply uint32, resp []byte)

type Region struct {
	Base, Size uint64
}

type Firmware struct {
	Clock  *deadlinetest.Clock
	Mapper *hwtest.Mapper

	Reset, Interrupt, Shared *hwtest.Window

	// NeverReady leaves the status ready bit clear after reset.
	NeverReady bool
	// Stuck never completes a mailbox request.
	Stuck   bool
	Handler Handler

	CardInfo []byte

	mu       sync.Mutex
	LowSpeed map[uint32]uint32

	Releases        int
	StatusAtRelease uint32
	Requests        [][]byte
}

// CardInfo returns a TLV stream with a "A1\0" card revision and the 225W
// power class.
func CardInfo() []byte {
	return []byte{
		byte(sensor.CardRevision), 3, 'A', '1', 0,
		byte(sensor.TotalPower), 1, 0x02,
	}
}

// New returns firmware held in reset, with a valid identity, the
// DefaultProfile and its mailbox at DefaultMailbox.
func New(reset, interrupt, shared Region) *Firmware {
	f := &Firmware{
		Clock:     deadlinetest.New(),
		Reset:     hwtest.New("reset", uint(reset.Size)),
		Interrupt: hwtest.New("interrupt", uint(interrupt.Size)),
		Shared:    hwtest.New("shared", uint(shared.Size)),
		CardInfo:  CardInfo(),
		LowSpeed:  make(map[uint32]uint32),
	}
	f.Handler = f.Handle
	f.Mapper = &hwtest.Mapper{
		ByBase: map[uint64]*hwtest.Window{
			reset.Base:     f.Reset,
			interrupt.Base: f.Interrupt,
			shared.Base:    f.Shared,
		},
	}
	f.Shared.Poke(Identity, Magic)
	f.Shared.Poke(Version, DefaultVersion)
	f.Shared.Poke(Profile, DefaultProfile)
	f.Shared.Poke(MailboxOffset, DefaultMailbox)
	f.Reset.OnWrite = f.onReset
	f.Shared.OnWrite = f.onShared
	return f
}

func (f *Firmware) onReset(w *hwtest.Window, o uint, data uint32) {
	if o != Reset || data&ResetRunning == 0 {
		return
	}
	f.Releases++
	f.StatusAtRelease = f.Shared.Peek(Status)
	if !f.NeverReady {
		f.Shared.Poke(Status, f.StatusAtRelease|StatusReady)
	}
}

func (f *Firmware) onShared(w *hwtest.Window, o uint, data uint32) {
	if o != Control || data&ControlBusy == 0 || f.Stuck {
		return
	}
	mb := uint(w.Peek(MailboxOffset))
	hdr := w.Peek(mb)
	op := uint8(hdr >> 24)
	n, found := requestSize[op]
	if !found {
		n = int(hdr & 0xfff)
	}
	req := PeekBytes(w, mb+4, n)
	f.Requests = append(f.Requests, req)
	code, reply, resp := f.Handler(op, hdr, req)
	w.Poke(MailboxError, code)
	if code == 0 {
		w.Poke(mb, reply)
		w.PokeBytes(mb+4, resp)
	}
	w.Poke(o, data&^ControlBusy)
}

// Header frames an opcode and payload length.
func Header(op uint8, n int) uint32 {
	return uint32(op)<<24 | uint32(n)&0xfff
}

// Handle serves card info, module pages and low-speed signals held in
// LowSpeed; other opcodes fail with the bad opcode code.
func (f *Firmware) Handle(op uint8, hdr uint32, req []byte) (uint32, uint32, []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch op {
	case 0x04:
		return 0, Header(op, len(f.CardInfo)), f.CardInfo
	case 0x0d:
		cage := binary.LittleEndian.Uint32(req)
		resp := make([]byte, 4)
		binary.LittleEndian.PutUint32(resp, f.LowSpeed[cage])
		return 0, hdr, resp
	case 0x0e:
		cage := binary.LittleEndian.Uint32(req)
		f.LowSpeed[cage] = binary.LittleEndian.Uint32(req[4:])
		return 0, hdr, nil
	case 0x0b:
		cage := binary.LittleEndian.Uint32(req)
		page := binary.LittleEndian.Uint32(req[4:])
		b := make([]byte, 128)
		for i := range b {
			b[i] = byte(cage<<4|page) + byte(i)
		}
		return 0, Header(op, len(b)), b
	}
	return 0x01, hdr, nil
}

// SetLowSpeed presets the signals of a cage.
func (f *Firmware) SetLowSpeed(cage, v uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LowSpeed[cage] = v
}

// PeekBytes returns n bytes of little endian words without logging.
func PeekBytes(w *hwtest.Window, o uint, n int) []byte {
	b := make([]byte, 4*((n+3)/4))
	for i := 0; i < len(b); i += 4 {
		binary.LittleEndian.PutUint32(b[i:], w.Peek(o+uint(i)))
	}
	return b[:n]
}
