// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sensor

import (
	"bytes"
	"fmt"
	"net"
	"strings"
)

// Record is a view of one key's data within the decoded buffer.
type Record struct {
	Key    Key
	Offset int // of Data within the buffer
	Data   []byte
}

func (r Record) Len() int { return len(r.Data) }

// String formats the record data according to its key.
func (r Record) String() string {
	s := r.Key.Slot()
	if s == NoSlot {
		return fmt.Sprintf("%x", r.Data)
	}
	switch slots[s].kind {
	case kindString:
		return strings.TrimRight(string(r.Data), "\x00")
	case kindMac:
		if len(r.Data) == 6 {
			return net.HardwareAddr(r.Data).String()
		}
	case kindPower:
		if len(r.Data) == 1 {
			if w, found := powerByClass[r.Data[0]]; found {
				return w
			}
		}
	}
	return fmt.Sprintf("0x%x", r.Data)
}

var powerByClass = map[byte]string{
	0: "75W",
	1: "150W",
	2: "225W",
	3: "300W",
}

// Table has one slot per known key; a slot is empty if its key was absent.
type Table struct {
	buf     []byte
	records [NumSlots]Record
	present [NumSlots]bool
}

func (t *Table) Get(k Key) (Record, bool) {
	s := k.Slot()
	if s == NoSlot || !t.present[s] {
		return Record{}, false
	}
	return t.records[s], true
}

// Len is the number of populated slots.
func (t *Table) Len() (n int) {
	for _, ok := range t.present {
		if ok {
			n++
		}
	}
	return
}

// Consumed is the number of buffer bytes accounted for by the records.
func (t *Table) Consumed() (n int) {
	t.Each(func(r Record) { n += 2 + r.Len() })
	return
}

// Bytes returns the decoded buffer.
func (t *Table) Bytes() []byte { return t.buf }

// Each calls f with each populated record in slot order.
func (t *Table) Each(f func(Record)) {
	for i, ok := range t.present {
		if ok {
			f(t.records[i])
		}
	}
}

func (t *Table) Records() []Record {
	l := make([]Record, 0, NumSlots)
	t.Each(func(r Record) { l = append(l, r) })
	return l
}

// Map returns formatted values by key name.
func (t *Table) Map() map[string]string {
	m := make(map[string]string, NumSlots)
	t.Each(func(r Record) { m[r.Key.String()] = r.String() })
	return m
}

func (t *Table) String() string {
	buf := new(bytes.Buffer)
	t.Each(func(r Record) {
		fmt.Fprintf(buf, "%s: %s\n", r.Key, r)
	})
	return buf.String()
}
