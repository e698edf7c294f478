// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Generic devices on PCI bus.
package pci

import (
	"errors"
	"fmt"
	"strings"
)

var ErrCapLoop = errors.New("capability list loop")

// Standard configuration header offsets.
const (
	RegVendor           = 0x00
	RegDevice           = 0x02
	RegCommand          = 0x04
	RegStatus           = 0x06
	RegRevision         = 0x08
	RegClass            = 0x0a
	RegBaseAddress      = 0x10
	nBaseAddress        = 6
	RegSubVendor        = 0x2c
	RegSubDevice        = 0x2e
	RegCapabilityOffset = 0x34
)

// Configuration header is 64 bytes; capabilities follow.
const (
	HeaderBytes = 0x40
	ConfigBytes = 0x100
)

type Command uint16

const (
	IOEnable Command = 1 << iota
	MemoryEnable
	BusMasterEnable
	SpecialCycles
	WriteInvalidate
	VgaPaletteSnoop
	Parity
	AddressDataStepping
	SERR
	BackToBackWrite
	INTxEmulationDisable
)

type Status uint16

const StatusCapabilityList Status = 1 << 4

// Device/vendor ID from PCI config space.
type VendorID uint16
type VendorDeviceID uint16

func (v VendorID) String() string       { return fmt.Sprintf("0x%04x", uint16(v)) }
func (d VendorDeviceID) String() string { return fmt.Sprintf("0x%04x", uint16(d)) }

// Vendor/Device pair
type DeviceID struct {
	Vendor VendorID
	Device VendorDeviceID
}

func (d DeviceID) String() string {
	return fmt.Sprintf("%04x:%04x", uint16(d.Vendor), uint16(d.Device))
}

// BaseAddressReg is a raw BAR; the low bits are flags.
type BaseAddressReg uint32

const (
	barIO           BaseAddressReg = 1 << 0
	barTypeMask     BaseAddressReg = 3 << 1
	barType64       BaseAddressReg = 2 << 1
	barPrefetchable BaseAddressReg = 1 << 3
)

func (b BaseAddressReg) IsMem() bool        { return b&barIO == 0 }
func (b BaseAddressReg) Is64() bool         { return b.IsMem() && b&barTypeMask == barType64 }
func (b BaseAddressReg) Prefetchable() bool { return b.IsMem() && b&barPrefetchable != 0 }

// Addr is the low address word with the flag bits cleared.
func (b BaseAddressReg) Addr() uint32 {
	if b.IsMem() {
		return uint32(b &^ 0xf)
	}
	return uint32(b &^ 3)
}

func (b BaseAddressReg) String() string {
	switch {
	case !b.IsMem():
		return "i/o"
	case b.Is64() && b.Prefetchable():
		return "mem 64-bit prefetchable"
	case b.Is64():
		return "mem 64-bit"
	case b.Prefetchable():
		return "mem 32-bit prefetchable"
	}
	return "mem 32-bit"
}

type Capability uint8

const (
	PowerManagement Capability = iota + 1
	AGP
	VitalProductData
	SlotIdentification
	MSI
	CompactPCIHotSwap
	PCIX
	HyperTransport
	VendorSpecific
	DebugPort
	CompactPciCentralControl
	PCIHotPlugController
	SSVID
	AGP3
	SecureDevice
	PCIE
	MSIX
	SATA
	AdvancedFeatures
)

var capabilityNames = [...]string{
	PowerManagement:          "power-management",
	AGP:                      "agp",
	VitalProductData:         "vpd",
	SlotIdentification:       "slot-id",
	MSI:                      "msi",
	CompactPCIHotSwap:        "compact-pci-hot-swap",
	PCIX:                     "pci-x",
	HyperTransport:           "hyper-transport",
	VendorSpecific:           "vendor-specific",
	DebugPort:                "debug-port",
	CompactPciCentralControl: "compact-pci-central-control",
	PCIHotPlugController:     "hot-plug",
	SSVID:                    "ssvid",
	AGP3:                     "agp3",
	SecureDevice:             "secure-device",
	PCIE:                     "pcie",
	MSIX:                     "msi-x",
	SATA:                     "sata",
	AdvancedFeatures:         "advanced-features",
}

func (c Capability) String() string {
	if int(c) < len(capabilityNames) && len(capabilityNames[c]) > 0 {
		return capabilityNames[c]
	}
	return fmt.Sprintf("capability(0x%02x)", uint8(c))
}

type BusAddress struct {
	Domain        uint16
	Bus, Slot, Fn uint8
}

func (a BusAddress) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%01x", a.Domain, a.Bus, a.Slot, a.Fn)
}

// ParseBusAddress accepts DOMAIN:BUS:SLOT.FN or BUS:SLOT.FN in hex.
func ParseBusAddress(s string) (a BusAddress, err error) {
	switch strings.Count(s, ":") {
	case 2:
		_, err = fmt.Sscanf(s, "%x:%x:%x.%x",
			&a.Domain, &a.Bus, &a.Slot, &a.Fn)
	case 1:
		_, err = fmt.Sscanf(s, "%x:%x.%x", &a.Bus, &a.Slot, &a.Fn)
	default:
		err = errors.New("missing ':'")
	}
	if err == nil && (a.Slot > 0x1f || a.Fn > 7) {
		err = errors.New("slot or function out of range")
	}
	if err != nil {
		return BusAddress{}, fmt.Errorf("%q: invalid bus address: %v",
			s, err)
	}
	return a, nil
}

type Resource struct {
	Index      uint32 // index of BAR
	Base, Size uint64
	Mem        []byte
}

func (r Resource) String() string {
	return fmt.Sprintf("{%d: 0x%x-0x%x}", r.Index, r.Base, r.Base+r.Size-1)
}

type Device struct {
	Addr      BusAddress
	ID        DeviceID
	Config    ConfigAccessor
	Resources []Resource
	path      string
}

func (d *Device) String() string {
	return fmt.Sprintf("%s %v %v", &d.Addr, d.ID.Vendor, d.ID.Device)
}

func (d *Device) ReadConfigUint8(o uint) (uint8, error)  { return ReadUint8(d.Config, o) }
func (d *Device) ReadConfigUint16(o uint) (uint16, error) { return ReadUint16(d.Config, o) }
func (d *Device) ReadConfigUint32(o uint) (uint32, error) { return ReadUint32(d.Config, o) }

// BaseAddress reads BAR i from config space and joins the upper word of a
// 64-bit memory BAR.
func (d *Device) BaseAddress(i int) (b BaseAddressReg, addr uint64, err error) {
	if i < 0 || i >= nBaseAddress {
		return 0, 0, fmt.Errorf("bar%d: out of range", i)
	}
	o := uint(RegBaseAddress + 4*i)
	v, err := d.ReadConfigUint32(o)
	if err != nil {
		return 0, 0, err
	}
	b = BaseAddressReg(v)
	addr = uint64(b.Addr())
	if b.Is64() {
		if i == nBaseAddress-1 {
			return b, 0, fmt.Errorf("bar%d: 64-bit bar in last slot", i)
		}
		hi, err := d.ReadConfigUint32(o + 4)
		if err != nil {
			return b, 0, err
		}
		addr |= uint64(hi) << 32
	}
	return b, addr, nil
}

// ForeachCap walks the capability list until f is done or fails. The walk
// is bounded by the number of dword slots in config space and stops with
// ErrCapLoop if an offset repeats.
func (d *Device) ForeachCap(f func(c Capability, offset uint) (done bool, err error)) error {
	status, err := d.ReadConfigUint16(RegStatus)
	if err != nil {
		return err
	}
	if Status(status)&StatusCapabilityList == 0 {
		return nil
	}
	next, err := d.ReadConfigUint8(RegCapabilityOffset)
	if err != nil {
		return err
	}
	var visited [ConfigBytes / 4]bool
	for o := uint(next) &^ 3; o >= HeaderBytes; {
		if visited[o/4] {
			return fmt.Errorf("%s: 0x%02x: %w", &d.Addr, o, ErrCapLoop)
		}
		visited[o/4] = true
		var h [2]byte
		if err = d.Config.ReadConfig(o, h[:]); err != nil {
			return err
		}
		if done, err := f(Capability(h[0]), o); err != nil || done {
			return err
		}
		o = uint(h[1]) &^ 3
	}
	return nil
}

func (d *Device) FindCap(c Capability) (offset uint, found bool, err error) {
	err = d.ForeachCap(func(h Capability, o uint) (bool, error) {
		if h == c {
			offset, found = o, true
		}
		return found, nil
	})
	return
}
