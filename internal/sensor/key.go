// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sensor

import "fmt"

// Key is the tag byte of a card information record.
type Key uint8

const (
	SerialNumber Key = 0x21
	MacAddress0  Key = 0x22
	MacAddress1  Key = 0x23
	MacAddress2  Key = 0x24
	MacAddress3  Key = 0x25
	CardRevision Key = 0x26
	CardName     Key = 0x27
	SatelliteVer Key = 0x28
	TotalPower   Key = 0x29
	FanPresence  Key = 0x2a
	ConfigMode   Key = 0x2b
	DynamicMacs  Key = 0x4b
)

// Slot is the table index of a known Key.
type Slot int

const NoSlot Slot = -1

type keyInfo struct {
	key  Key
	name string
	kind kind
}

type kind uint8

const (
	kindHex kind = iota
	kindString
	kindMac
	kindPower
)

// Slot order; each key has exactly one.
var slots = [...]keyInfo{
	{SerialNumber, "serial-number", kindString},
	{MacAddress0, "mac-address-0", kindMac},
	{MacAddress1, "mac-address-1", kindMac},
	{MacAddress2, "mac-address-2", kindMac},
	{MacAddress3, "mac-address-3", kindMac},
	{CardRevision, "card-revision", kindString},
	{CardName, "card-name", kindString},
	{SatelliteVer, "satellite-version", kindString},
	{TotalPower, "total-power-available", kindPower},
	{FanPresence, "fan-presence", kindHex},
	{ConfigMode, "config-mode", kindHex},
	{DynamicMacs, "dynamic-mac-addresses", kindHex},
}

const NumSlots = len(slots)

var slotByKey = func() (m [256]Slot) {
	for i := range m {
		m[i] = NoSlot
	}
	for i, s := range slots {
		m[s.key] = Slot(i)
	}
	return
}()

func (k Key) Slot() Slot { return slotByKey[k] }

func (k Key) Known() bool { return k.Slot() != NoSlot }

func (k Key) String() string {
	if s := k.Slot(); s != NoSlot {
		return slots[s].name
	}
	return fmt.Sprintf("key(0x%02x)", uint8(k))
}

// Keys returns the known keys in slot order.
func Keys() []Key {
	l := make([]Key, NumSlots)
	for i, s := range slots {
		l[i] = s.key
	}
	return l
}
