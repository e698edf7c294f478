// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package hwtest provides register windows backed by plain memory whose
// accesses are recorded and may be intercepted to play the device side.
package hwtest

import (
	"fmt"
	"sync"

	"github.com/platinasystems/cmc/elib/hw"
)

type Access struct {
	Write  bool
	Offset uint
	Data   uint32
}

func (a Access) String() string {
	op := "rd"
	if a.Write {
		op = "wr"
	}
	return fmt.Sprintf("%s 0x%04x 0x%08x", op, a.Offset, a.Data)
}

// Window is a fake hw.Window. OnRead runs before each load, OnWrite after
// each store; either may Poke registers to emulate firmware.
type Window struct {
	Name string

	OnRead  func(w *Window, o uint)
	OnWrite func(w *Window, o uint, data uint32)

	mu   sync.Mutex
	size uint
	regs map[uint]uint32
	log  []Access
}

func New(name string, size uint) *Window {
	return &Window{
		Name: name,
		size: size,
		regs: make(map[uint]uint32),
	}
}

func (w *Window) Size() uint { return w.size }

func (w *Window) Read32(o uint) uint32 {
	w.check(o)
	if w.OnRead != nil {
		w.OnRead(w, o)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	v := w.regs[o]
	w.log = append(w.log, Access{Offset: o, Data: v})
	return v
}

func (w *Window) Write32(o uint, data uint32) {
	w.check(o)
	w.mu.Lock()
	w.regs[o] = data
	w.log = append(w.log, Access{Write: true, Offset: o, Data: data})
	w.mu.Unlock()
	if w.OnWrite != nil {
		w.OnWrite(w, o, data)
	}
}

// Peek returns a register without logging the access.
func (w *Window) Peek(o uint) uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.regs[o]
}

// Poke sets a register without logging the access.
func (w *Window) Poke(o uint, data uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.regs[o] = data
}

// PokeBytes stores b as little endian words without logging.
func (w *Window) PokeBytes(o uint, b []byte) {
	var x [4]byte
	for i := 0; i < len(b); i += 4 {
		x = [4]byte{}
		copy(x[:], b[i:])
		w.Poke(o+uint(i), uint32(x[0])|uint32(x[1])<<8|
			uint32(x[2])<<16|uint32(x[3])<<24)
	}
}

// Log returns a copy of the recorded accesses.
func (w *Window) Log() []Access {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Access(nil), w.log...)
}

func (w *Window) Reads(o uint) (n int) {
	for _, a := range w.Log() {
		if !a.Write && a.Offset == o {
			n++
		}
	}
	return
}

func (w *Window) Writes(o uint) (l []uint32) {
	for _, a := range w.Log() {
		if a.Write && a.Offset == o {
			l = append(l, a.Data)
		}
	}
	return
}

func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.log = w.log[:0]
}

func (w *Window) check(o uint) {
	if err := hw.CheckRegAddr(w.Name, w, o); err != nil {
		panic(err)
	}
}

// Mapper maps the windows registered by base address. A missing base is a
// mapping failure; a base registered as nil returns a nil window.
type Mapper struct {
	ByBase map[uint64]*Window
	Err    error
}

func (m *Mapper) Map(bar uint, base, size uint64) (hw.Window, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	w, found := m.ByBase[base]
	if !found {
		return nil, fmt.Errorf("bar%d 0x%x: not mapped", bar, base)
	}
	if w == nil {
		return nil, nil
	}
	if uint64(w.size) < size {
		return nil, fmt.Errorf("bar%d 0x%x: 0x%x byte window < 0x%x",
			bar, base, w.size, size)
	}
	return w, nil
}
