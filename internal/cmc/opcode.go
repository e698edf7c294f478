// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmc

import "fmt"

type Opcode uint8

const (
	OpCardInfo      Opcode = 0x04
	OpModulePage    Opcode = 0x0b
	OpReadLowSpeed  Opcode = 0x0d
	OpWriteLowSpeed Opcode = 0x0e
)

// Payload size implied by the opcode; FromHeader means the header's length
// field gives the size.
const FromHeader = -1

type opcodeInfo struct {
	name     string
	request  int
	response int
}

var opcodes = map[Opcode]opcodeInfo{
	OpCardInfo:      {"card-info", 0, FromHeader},
	OpModulePage:    {"module-page", 8, FromHeader},
	OpReadLowSpeed:  {"read-low-speed-io", 4, 4},
	OpWriteLowSpeed: {"write-low-speed-io", 8, 0},
}

func (op Opcode) String() string {
	if info, found := opcodes[op]; found {
		return info.name
	}
	return fmt.Sprintf("opcode(0x%02x)", uint8(op))
}

// RequestSize returns the fixed request payload size or FromHeader.
func (op Opcode) RequestSize() int {
	if info, found := opcodes[op]; found {
		return info.request
	}
	return FromHeader
}

// ResponseSize returns the fixed response payload size or FromHeader.
func (op Opcode) ResponseSize() int {
	if info, found := opcodes[op]; found {
		return info.response
	}
	return FromHeader
}
