// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pci

// Linux PCI code

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/platinasystems/cmc/elib/hw"
)

var SysBusPciPath = "/sys/bus/pci/devices"

// Open the sysfs device at the given address and discover its resources.
// Nothing is mapped until Map or MapResource.
func Open(a BusAddress) (*Device, error) {
	d := &Device{
		Addr: a,
		path: filepath.Join(SysBusPciPath, a.String()),
	}
	if _, err := os.Stat(d.path); err != nil {
		return nil, err
	}
	d.Config = SysfsConfig(d.SysfsPath("config"))
	v, err := d.SysfsReadHexFile("vendor")
	if err != nil {
		return nil, err
	}
	d.ID.Vendor = VendorID(v)
	if v, err = d.SysfsReadHexFile("device"); err != nil {
		return nil, err
	}
	d.ID.Device = VendorDeviceID(v)
	if err = d.findResources(); err != nil {
		return nil, fmt.Errorf("%s: resource: %v", &d.Addr, err)
	}
	return d, nil
}

func (d *Device) SysfsPath(format string, args ...interface{}) (path string) {
	path = filepath.Join(d.path, fmt.Sprintf(format, args...))
	return
}

func (d *Device) SysfsReadHexFile(format string, args ...interface{}) (v uint, err error) {
	b, err := os.ReadFile(d.SysfsPath(format, args...))
	if err != nil {
		return
	}
	if _, err = fmt.Sscanf(string(b), "0x%x", &v); err != nil {
		err = fmt.Errorf("%s: %v", d.SysfsPath(format, args...), err)
	}
	return
}

// EnableMemory sets the command register memory space enable bit if clear.
func (d *Device) EnableMemory() error {
	v, err := d.ReadConfigUint16(RegCommand)
	if err != nil {
		return err
	}
	if Command(v)&MemoryEnable != 0 {
		return nil
	}
	return WriteUint16(d.Config, RegCommand, v|uint16(MemoryEnable))
}

func (d *Device) MapResource(bar uint) (mem []byte, err error) {
	if bar >= uint(len(d.Resources)) {
		return nil, fmt.Errorf("%s: resource%d: no such BAR", &d.Addr, bar)
	}
	r := &d.Resources[bar]
	if r.Mem != nil {
		return r.Mem, nil
	}
	if r.Size == 0 {
		return nil, fmt.Errorf("%s: resource%d: empty", &d.Addr, bar)
	}
	f, err := os.OpenFile(d.SysfsPath("resource%d", r.Index), os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return
	}
	defer f.Close()
	r.Mem, err = syscall.Mmap(int(f.Fd()), 0, int(r.Size), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		err = fmt.Errorf("mmap resource%d: %s", r.Index, err)
		return
	}
	return r.Mem, nil
}

func (d *Device) UnmapResource(bar uint) (err error) {
	if bar >= uint(len(d.Resources)) {
		return
	}
	if d.Resources[bar].Mem != nil {
		err = syscall.Munmap(d.Resources[bar].Mem)
		d.Resources[bar].Mem = nil
		if err != nil {
			return fmt.Errorf("munmap resource%d: %s", bar, err)
		}
	}
	return
}

// Map returns the register window [base, base+size) of the given BAR,
// mapping the BAR on first use.
func (d *Device) Map(bar uint, base, size uint64) (hw.Window, error) {
	mem, err := d.MapResource(bar)
	if err != nil {
		return nil, err
	}
	if size == 0 || base+size < base || base+size > uint64(len(mem)) {
		return nil, fmt.Errorf("%s: resource%d: 0x%x+0x%x: outside of 0x%x byte BAR",
			&d.Addr, bar, base, size, len(mem))
	}
	return hw.Mem(mem[base : base+size]), nil
}

// Close unmaps all mapped resources.
func (d *Device) Close() (err error) {
	for i := range d.Resources {
		if xerr := d.UnmapResource(uint(i)); err == nil {
			err = xerr
		}
	}
	return
}

// Loop through BARs to find resources.
func (d *Device) findResources() (err error) {
	b, err := os.ReadFile(d.SysfsPath("resource"))
	if err != nil {
		return
	}
	r := bytes.NewReader(b)
	d.Resources = d.Resources[:0]
	for i := 0; r.Len() > 0 && i < 6; i++ {
		var (
			v [3]uint64
			n int
		)
		if n, err = fmt.Fscanf(r, "0x%x 0x%x 0x%x\n", &v[0], &v[1], &v[2]); n != 3 || err != nil {
			if n != 3 {
				err = fmt.Errorf("short read")
			}
			return
		}
		size := v[0]
		if v[0] != 0 {
			size = 1 + v[1] - v[0]
		}
		d.Resources = append(d.Resources, Resource{
			Index: uint32(i),
			Base:  v[0],
			Size:  size,
		})
	}
	return
}
