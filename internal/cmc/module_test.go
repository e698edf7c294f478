// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowSpeed(t *testing.T) {
	f, d := openTest(t)
	for cage := 0; cage < d.Variant.Modules; cage++ {
		want := ResetL | LowSpeedIO(cage)<<1
		require.NoError(t, d.SetLowSpeed(cage, want))
		assert.Equal(t, uint32(want), f.LowSpeed[uint32(cage)])
		got, err := d.LowSpeed(cage)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, cage := range []int{-1, d.Variant.Modules} {
		_, err := d.LowSpeed(cage)
		assert.True(t, errors.Is(err, ErrCage), "%d", cage)
		assert.True(t, errors.Is(d.SetLowSpeed(cage, 0), ErrCage))
		_, err = d.ModulePage(cage, 0)
		assert.True(t, errors.Is(err, ErrCage))
	}
	assert.Len(t, f.Requests, 2*d.Variant.Modules)
}

func TestModulePage(t *testing.T) {
	f, d := openTest(t)
	b, err := d.ModulePage(1, 3)
	require.NoError(t, err)
	require.Len(t, b, 128)
	assert.Equal(t, byte(0x13), b[0])
	assert.Equal(t, byte(0x13+127), b[127])

	n := len(f.Requests)
	for _, page := range []int{-1, 0x100} {
		_, err = d.ModulePage(1, page)
		assert.True(t, errors.Is(err, ErrPage), "%d", page)
	}
	assert.Len(t, f.Requests, n)
}

func TestModuleNotUsable(t *testing.T) {
	d := New(DefaultLayout)
	_, err := d.LowSpeed(0)
	assert.True(t, errors.Is(err, ErrNotUsable))
}

func TestLowSpeedIOString(t *testing.T) {
	for _, x := range []struct {
		v LowSpeedIO
		s string
	}{
		{0, "none"},
		{ResetL, "ResetL"},
		{ResetL | ModPrsL, "ResetL|ModPrsL"},
		{LPMode | 0x100, "LPMode|0x100"},
	} {
		assert.Equal(t, x.s, x.v.String())
		v, err := ParseLowSpeedIO(x.s)
		require.NoError(t, err)
		assert.Equal(t, x.v, v)
	}
	v, err := ParseLowSpeedIO("resetl|lpmode")
	require.NoError(t, err)
	assert.Equal(t, ResetL|LPMode, v)
	_, err = ParseLowSpeedIO("ResetL|bogus")
	assert.Error(t, err)
	assert.True(t, ResetL.Present())
	assert.False(t, ModPrsL.Present())
}

func TestLookupVariant(t *testing.T) {
	seen := make(map[uint32]bool)
	for i := range Variants {
		v := &Variants[i]
		assert.False(t, seen[v.Pattern], v.Name)
		seen[v.Pattern] = true
		assert.Same(t, v, LookupVariant(v.Pattern))
	}
	assert.Nil(t, LookupVariant(0))
}

func TestCodeName(t *testing.T) {
	assert.Equal(t, "card info missing", CodeName(2))
	assert.Equal(t, "unknown error 0xff", CodeName(0xff))
}
