// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package hw

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Mem is a Window over mapped device memory, usually a slice of a mmap'd
// PCI resource. Loads and stores are single 32-bit atomic accesses so the
// compiler can neither elide nor merge them.
type Mem []byte

func (m Mem) Size() uint { return uint(len(m)) }

func (m Mem) Read32(o uint) uint32 { return atomic.LoadUint32(m.addr(o)) }

func (m Mem) Write32(o uint, data uint32) { atomic.StoreUint32(m.addr(o), data) }

// Must point to readable memory since the compiler may load through the
// pointer for its nil check.
func (m Mem) addr(o uint) *uint32 {
	if o&3 != 0 || o+4 > uint(len(m)) {
		panic(fmt.Errorf("hw: register 0x%x outside of 0x%x byte window",
			o, len(m)))
	}
	return (*uint32)(unsafe.Pointer(&m[o]))
}
