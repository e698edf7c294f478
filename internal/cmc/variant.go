// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmc

// Variant is a card profile identified by the profile register.
type Variant struct {
	Pattern uint32
	Name    string
	Modules int
	// Control register bits to set once the variant is known.
	Features uint32
}

func (v *Variant) String() string { return v.Name }

// Variants is the closed table of supported cards; patterns are unique.
var Variants = []Variant{
	{
		Pattern:  0x51320001,
		Name:     "2xQSFP",
		Modules:  2,
		Features: ControlTempMonitorEnable,
	},
	{
		Pattern:  0x51320002,
		Name:     "2xQSFP-DD",
		Modules:  2,
		Features: ControlTempMonitorEnable,
	},
	{
		Pattern:  0x53340001,
		Name:     "4xSFP",
		Modules:  4,
		Features: ControlGpioEnable,
	},
	{
		Pattern: 0x51310001,
		Name:    "1xQSFP",
		Modules: 1,
	},
}

// LookupVariant returns nil if no variant has the pattern.
func LookupVariant(pattern uint32) *Variant {
	for i := range Variants {
		if Variants[i].Pattern == pattern {
			return &Variants[i]
		}
	}
	return nil
}
