// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmc

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// LowSpeedIO holds the sideband signals of one module cage.
type LowSpeedIO uint32

const (
	ResetL LowSpeedIO = 1 << iota
	LPMode
	ModSelL
	IntL
	ModPrsL
)

var lowSpeedNames = []string{"ResetL", "LPMode", "ModSelL", "IntL", "ModPrsL"}

func (v LowSpeedIO) String() string {
	var l []string
	for i, name := range lowSpeedNames {
		if v&(1<<uint(i)) != 0 {
			l = append(l, name)
		}
	}
	if rest := v &^ (1<<uint(len(lowSpeedNames)) - 1); rest != 0 {
		l = append(l, fmt.Sprintf("0x%x", uint32(rest)))
	}
	if len(l) == 0 {
		return "none"
	}
	return strings.Join(l, "|")
}

// ParseLowSpeedIO accepts the String form.
func ParseLowSpeedIO(s string) (LowSpeedIO, error) {
	var v LowSpeedIO
	if s == "none" || s == "" {
		return v, nil
	}
next:
	for _, field := range strings.Split(s, "|") {
		for i, name := range lowSpeedNames {
			if strings.EqualFold(field, name) {
				v |= 1 << uint(i)
				continue next
			}
		}
		var x uint32
		if _, err := fmt.Sscanf(field, "0x%x", &x); err != nil {
			return 0, fmt.Errorf("%q: unknown signal", field)
		}
		v |= LowSpeedIO(x)
	}
	return v, nil
}

// Present reports whether a module is seated; ModPrsL is active low.
func (v LowSpeedIO) Present() bool { return v&ModPrsL == 0 }

func (d *Device) checkCage(cage int) error {
	if d.Variant == nil {
		return ErrNotUsable
	}
	if cage < 0 || cage >= d.Variant.Modules {
		return fmt.Errorf("%w: %d, %s has %d", ErrCage, cage, d.Variant,
			d.Variant.Modules)
	}
	return nil
}

func words(l ...uint32) []byte {
	b := make([]byte, 4*len(l))
	for i, x := range l {
		binary.LittleEndian.PutUint32(b[4*i:], x)
	}
	return b
}

// LowSpeed reads the sideband signals of a cage.
func (d *Device) LowSpeed(cage int) (LowSpeedIO, error) {
	if err := d.checkCage(cage); err != nil {
		return 0, err
	}
	t := NewTransaction(OpReadLowSpeed, words(uint32(cage)))
	if err := d.Execute(t); err != nil {
		return 0, err
	}
	return LowSpeedIO(binary.LittleEndian.Uint32(t.Response)), nil
}

// SetLowSpeed drives the writable sideband signals of a cage.
func (d *Device) SetLowSpeed(cage int, v LowSpeedIO) error {
	if err := d.checkCage(cage); err != nil {
		return err
	}
	return d.Execute(NewTransaction(OpWriteLowSpeed,
		words(uint32(cage), uint32(v))))
}

// ModulePage reads one page of a module's memory map.
func (d *Device) ModulePage(cage, page int) ([]byte, error) {
	if err := d.checkCage(cage); err != nil {
		return nil, err
	}
	if page < 0 || page > 0xff {
		return nil, fmt.Errorf("%w: %d", ErrPage, page)
	}
	t := NewTransaction(OpModulePage, words(uint32(cage), uint32(page)))
	if err := d.Execute(t); err != nil {
		return nil, err
	}
	return t.Response, nil
}
