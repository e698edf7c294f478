// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package sensor decodes the card information response, a stream of
//
//	KEY(1) LENGTH(1) DATA(LENGTH)
//
// records, into a table with one slot per known key. The table references
// the response buffer; record data is never copied.
package sensor

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownKey   = errors.New("unknown key")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrTruncated    = errors.New("truncated or corrupt response")
)

// DecodeError locates the record that failed to decode.
type DecodeError struct {
	Offset int // of the record's key byte
	Key    Key
	Length int // declared record data length, if read
	// First occurrence of a duplicated key.
	Existing *Record
	Err      error
}

func (e *DecodeError) Error() string {
	s := fmt.Sprintf("card info @0x%03x: %s: %v", e.Offset, e.Key, e.Err)
	if e.Existing != nil {
		s += fmt.Sprintf(" (first @0x%03x length %d)",
			e.Existing.Offset-2, e.Existing.Len())
	}
	return s
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode the first length bytes of buf. The result is either a complete
// table whose records account for exactly length bytes, or an error.
func Decode(buf []byte, length int) (*Table, error) {
	t := new(Table)
	if err := t.decode(buf, length); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) decode(buf []byte, length int) error {
	if length < 0 || length > len(buf) {
		return fmt.Errorf("card info length %d of %d byte buffer: %w",
			length, len(buf), ErrTruncated)
	}
	buf = buf[:length:length]
	for o := 0; o < length; {
		k := Key(buf[o])
		s := k.Slot()
		if s == NoSlot {
			return &DecodeError{Offset: o, Key: k, Err: ErrUnknownKey}
		}
		if t.present[s] {
			first := t.records[s]
			return &DecodeError{
				Offset:   o,
				Key:      k,
				Existing: &first,
				Err:      ErrDuplicateKey,
			}
		}
		if o+2 > length {
			return &DecodeError{Offset: o, Key: k, Err: ErrTruncated}
		}
		n := int(buf[o+1])
		start, end := o+2, o+2+n
		if end > length {
			return &DecodeError{
				Offset: o,
				Key:    k,
				Length: n,
				Err:    ErrTruncated,
			}
		}
		t.records[s] = Record{
			Key:    k,
			Offset: start,
			Data:   buf[start:end:end],
		}
		t.present[s] = true
		o = end
	}
	t.buf = buf
	return nil
}
