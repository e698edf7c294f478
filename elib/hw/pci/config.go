// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pci

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// ConfigAccessor reads and writes little endian configuration space. Each
// backend is chosen by whoever builds the Device.
type ConfigAccessor interface {
	ReadConfig(offset uint, b []byte) error
	WriteConfig(offset uint, b []byte) error
}

// SysfsConfig accesses the "config" file of a sysfs PCI device directory.
type SysfsConfig string

func (fn SysfsConfig) ReadConfig(o uint, b []byte) error {
	return fn.rw(o, b, false)
}

func (fn SysfsConfig) WriteConfig(o uint, b []byte) error {
	return fn.rw(o, b, true)
}

func (fn SysfsConfig) rw(o uint, b []byte, isWrite bool) (err error) {
	mode := os.O_RDONLY
	if isWrite {
		mode = os.O_RDWR
	}
	f, err := os.OpenFile(string(fn), mode, 0)
	if err != nil {
		return err
	}
	defer func() {
		if xerr := f.Close(); err == nil {
			err = xerr
		}
	}()
	if isWrite {
		_, err = f.WriteAt(b, int64(o))
	} else if _, err = f.ReadAt(b, int64(o)); err == io.EOF {
		err = fmt.Errorf("%s: 0x%x: short read", fn, o)
	}
	return
}

// MemConfig is configuration space held in memory, e.g. a saved snapshot.
type MemConfig []byte

func (m MemConfig) ReadConfig(o uint, b []byte) error {
	if o+uint(len(b)) > uint(len(m)) {
		return fmt.Errorf("config 0x%x+%d: out of range", o, len(b))
	}
	copy(b, m[o:])
	return nil
}

func (m MemConfig) WriteConfig(o uint, b []byte) error {
	if o+uint(len(b)) > uint(len(m)) {
		return fmt.Errorf("config 0x%x+%d: out of range", o, len(b))
	}
	copy(m[o:], b)
	return nil
}

func ReadUint8(c ConfigAccessor, o uint) (uint8, error) {
	var b [1]byte
	err := c.ReadConfig(o, b[:])
	return b[0], err
}

func ReadUint16(c ConfigAccessor, o uint) (uint16, error) {
	var b [2]byte
	err := c.ReadConfig(o, b[:])
	return binary.LittleEndian.Uint16(b[:]), err
}

func ReadUint32(c ConfigAccessor, o uint) (uint32, error) {
	var b [4]byte
	err := c.ReadConfig(o, b[:])
	return binary.LittleEndian.Uint32(b[:]), err
}

func WriteUint16(c ConfigAccessor, o uint, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return c.WriteConfig(o, b[:])
}

func WriteUint32(c ConfigAccessor, o uint, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return c.WriteConfig(o, b[:])
}
