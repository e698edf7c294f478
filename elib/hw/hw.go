// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Memory mapped register read/write
package hw

import (
	"encoding/binary"
	"fmt"
)

// Window is a byte range of device memory accessed as 32-bit registers.
// Every call is a direct access to the device; nothing is cached.
type Window interface {
	Read32(offset uint) uint32
	Write32(offset uint, data uint32)
	// Size in bytes.
	Size() uint
}

// Mapper returns the register window at [base, base+size) of the given BAR.
type Mapper interface {
	Map(bar uint, base, size uint64) (Window, error)
}

// U32 is the byte offset of a 32-bit register within a window.
type U32 uint

func (r U32) Offset() uint           { return uint(r) }
func (r U32) Get(w Window) uint32    { return w.Read32(uint(r)) }
func (r U32) Set(w Window, x uint32) { w.Write32(uint(r), x) }

func (r U32) IsSet(w Window, bit uint) bool { return r.Get(w)&(1<<bit) != 0 }

// SetBits read-modify-writes the register with the given mask set.
func (r U32) SetBits(w Window, mask uint32) { r.Set(w, r.Get(w)|mask) }

// ClearBits read-modify-writes the register with the given mask cleared.
func (r U32) ClearBits(w Window, mask uint32) { r.Set(w, r.Get(w)&^mask) }

func CheckRegAddr(name string, w Window, o uint) error {
	if o&3 != 0 || o+4 > w.Size() {
		return fmt.Errorf("%s: 0x%x: outside of 0x%x byte window", name, o, w.Size())
	}
	return nil
}

// Words returns the number of 32-bit registers needed to hold n bytes.
func Words(n int) int { return (n + 3) / 4 }

// WriteBytes stores b as little endian words starting at offset o; the last
// word is zero padded.
func WriteBytes(w Window, o uint, b []byte) {
	var word [4]byte
	for i := 0; i < len(b); i += 4 {
		word = [4]byte{}
		copy(word[:], b[i:])
		w.Write32(o+uint(i), binary.LittleEndian.Uint32(word[:]))
	}
}

// ReadBytes fills b from the little endian words starting at offset o.
func ReadBytes(w Window, o uint, b []byte) {
	var word [4]byte
	for i := 0; i < len(b); i += 4 {
		binary.LittleEndian.PutUint32(word[:], w.Read32(o+uint(i)))
		copy(b[i:], word[:])
	}
}
