// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmc

import (
	"errors"
	"testing"

	"github.com/platinasystems/cmc/elib/hw/hwtest"
	"github.com/platinasystems/cmc/internal/deadline"
	"github.com/platinasystems/cmc/internal/sensor"
	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBringUp(t *testing.T) {
	f := newFirmware()
	d, err := f.open()
	require.NoError(t, err)

	assert.Equal(t, Operational, d.State())
	assert.True(t, d.Usable())
	assert.NotEqual(t, uuid.Nil, d.Session)
	assert.Equal(t, "2xQSFP", d.Variant.Name)
	assert.Equal(t, uint32(0x00040310), d.Version)
	assert.Equal(t, byte(4), d.Session.Version())
	assert.Equal(t, uint(testMailbox), d.MailboxHeader)
	assert.Equal(t, uint(testMailbox+4), d.MailboxPayload)
	assert.Equal(t, 1, f.Releases)
	assert.Zero(t, f.Clock.Sleeps())

	ctl := f.Shared.Peek(regControl.Offset())
	assert.NotZero(t, ctl&ControlTempMonitorEnable)
	assert.Zero(t, ctl&ControlGpioEnable)
	assert.Zero(t, ctl&controlBusy)

	require.NotNil(t, d.Sensors)
	assert.Equal(t, 2, d.Sensors.Len())
	assert.Equal(t, len(testCardInfo()), d.Sensors.Consumed())
	r, ok := d.Sensors.Get(sensor.CardRevision)
	require.True(t, ok)
	assert.Equal(t, []byte("A1\x00"), r.Data)
	assert.Equal(t, 2, r.Offset)
	r, ok = d.Sensors.Get(sensor.TotalPower)
	require.True(t, ok)
	assert.Equal(t, []byte{0x02}, r.Data)
	assert.Equal(t, 7, r.Offset)
	assert.Equal(t, testCardInfo(), d.CardInfo)
}

func TestBringUpVariants(t *testing.T) {
	for _, x := range []struct {
		pattern uint32
		name    string
		set     uint32
	}{
		{0x51320002, "2xQSFP-DD", ControlTempMonitorEnable},
		{0x53340001, "4xSFP", ControlGpioEnable},
		{0x51310001, "1xQSFP", 0},
	} {
		t.Run(x.name, func(t *testing.T) {
			f := newFirmware()
			f.Shared.Poke(regProfile.Offset(), x.pattern)
			d, err := f.open()
			require.NoError(t, err)
			assert.Equal(t, x.name, d.Variant.Name)
			assert.Equal(t, x.set, f.Shared.Peek(regControl.Offset())&
				(ControlGpioEnable|ControlTempMonitorEnable))
			if x.set == 0 {
				// Only the mailbox notify writes control.
				assert.Len(t, f.Shared.Writes(regControl.Offset()), 1)
			}
		})
	}
}

func TestBringUpReset(t *testing.T) {
	t.Run("stale-ready-cleared-while-held", func(t *testing.T) {
		f := newFirmware()
		f.Shared.Poke(regStatus.Offset(), statusReady)
		_, err := f.open()
		require.NoError(t, err)
		assert.Equal(t, []uint32{0}, f.Shared.Writes(regStatus.Offset()))
		assert.Zero(t, f.StatusAtRelease&statusReady)
		assert.Equal(t, []uint32{resetRunning},
			f.Reset.Writes(regReset.Offset()))
	})
	t.Run("held-without-stale-ready", func(t *testing.T) {
		f := newFirmware()
		_, err := f.open()
		require.NoError(t, err)
		assert.Empty(t, f.Shared.Writes(regStatus.Offset()))
		assert.Equal(t, 1, f.Releases)
	})
	t.Run("already-running", func(t *testing.T) {
		f := newFirmware()
		f.Reset.Poke(regReset.Offset(), resetRunning)
		f.Shared.Poke(regStatus.Offset(), statusReady)
		_, err := f.open()
		require.NoError(t, err)
		assert.Empty(t, f.Reset.Writes(regReset.Offset()))
		assert.Empty(t, f.Shared.Writes(regStatus.Offset()))
	})
}

func TestBringUpNeverReady(t *testing.T) {
	f := newFirmware()
	f.NeverReady = true
	f.Interrupt.Poke(regInterruptStatus.Offset(), 0xdead)
	d := f.device()
	start := f.Clock.Now()
	err := d.BringUp(f.Mapper)
	elapsed := f.Clock.Now().Sub(start)

	require.True(t, IsTimeout(err))
	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, uint32(0xdead), te.Interrupt)
	assert.Zero(t, te.Status&statusReady)
	assert.Contains(t, err.Error(), "ready")

	assert.GreaterOrEqual(t, int64(elapsed), int64(deadline.Timeout))
	assert.LessOrEqual(t, int64(elapsed), int64(deadline.Timeout+deadline.Holdoff))
	assert.Zero(t, f.Shared.Reads(regIdentity.Offset()))
	assert.Equal(t, Failed, d.State())
	assert.False(t, d.Usable())
}

func TestBringUpIdentity(t *testing.T) {
	f := newFirmware()
	f.Shared.Poke(regIdentity.Offset(), 0x12345678)
	d := f.device()
	err := d.BringUp(f.Mapper)
	require.True(t, errors.Is(err, ErrIdentity))
	assert.Contains(t, err.Error(), "0x12345678")
	assert.Equal(t, 1, f.Shared.Reads(regIdentity.Offset()))
	assert.Zero(t, f.Shared.Reads(regVersion.Offset()))
	assert.Zero(t, f.Shared.Reads(regProfile.Offset()))
	assert.Zero(t, f.Shared.Reads(regMailboxOffset.Offset()))
	assert.Equal(t, Failed, d.State())
}

func TestBringUpVariantUnknown(t *testing.T) {
	f := newFirmware()
	f.Shared.Poke(regProfile.Offset(), 0x0badcafe)
	d, err := f.open()
	assert.Nil(t, d)
	require.True(t, errors.Is(err, ErrVariant))
	assert.Zero(t, f.Shared.Reads(regMailboxOffset.Offset()))
	assert.Empty(t, f.Shared.Writes(regControl.Offset()))
}

func TestBringUpMailboxFrame(t *testing.T) {
	for _, o := range []uint32{
		uint32(DefaultLayout.Shared.Size) - FrameBytes + 4,
		0xffffffff,
		testMailbox + 2,
	} {
		f := newFirmware()
		f.Shared.Poke(regMailboxOffset.Offset(), o)
		_, err := f.open()
		assert.True(t, errors.Is(err, ErrMailboxFrame), "0x%x", o)
		assert.Empty(t, f.Shared.Writes(regControl.Offset()), "0x%x", o)
	}
	f := newFirmware()
	o := uint32(DefaultLayout.Shared.Size) - FrameBytes
	f.Shared.Poke(regMailboxOffset.Offset(), o)
	d, err := f.open()
	require.NoError(t, err)
	assert.Equal(t, uint(o), d.MailboxHeader)
	assert.Equal(t, 2, d.Sensors.Len())
}

func TestBringUpMap(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		f := newFirmware()
		delete(f.Mapper.ByBase, DefaultLayout.Interrupt.Base)
		d := f.device()
		err := d.BringUp(f.Mapper)
		require.True(t, errors.Is(err, ErrMap))
		assert.Contains(t, err.Error(), "interrupt")
		assert.Equal(t, Failed, d.State())
		assert.Empty(t, f.Reset.Log())
	})
	t.Run("nil-window", func(t *testing.T) {
		f := newFirmware()
		f.Mapper.ByBase[DefaultLayout.Shared.Base] = nil
		_, err := f.open()
		assert.True(t, errors.Is(err, ErrMap))
	})
	t.Run("mapper-error", func(t *testing.T) {
		f := newFirmware()
		f.Mapper.Err = errors.New("no such bar")
		_, err := f.open()
		assert.True(t, errors.Is(err, ErrMap))
		assert.Contains(t, err.Error(), "no such bar")
	})
	t.Run("overlapping-layout", func(t *testing.T) {
		f := newFirmware()
		l := DefaultLayout
		l.Interrupt = l.Reset
		f.Mapper.ByBase = map[uint64]*hwtest.Window{}
		_, err := Open(f.Mapper, l, WithClock(f.Clock))
		assert.True(t, errors.Is(err, ErrMap))
		assert.Contains(t, err.Error(), "overlap")
	})
}

func TestBringUpCardInfo(t *testing.T) {
	t.Run("duplicate-key", func(t *testing.T) {
		f := newFirmware()
		f.CardInfo = append(testCardInfo(), byte(sensor.TotalPower), 1, 3)
		d := f.device()
		err := d.BringUp(f.Mapper)
		require.True(t, IsCorrupt(err))
		assert.True(t, errors.Is(err, sensor.ErrDuplicateKey))
		assert.False(t, IsDeviceError(err))
		assert.Equal(t, Failed, d.State())
		assert.Nil(t, d.Sensors)
	})
	t.Run("unknown-key", func(t *testing.T) {
		f := newFirmware()
		f.CardInfo = []byte{0x7f, 0}
		_, err := f.open()
		assert.True(t, errors.Is(err, sensor.ErrUnknownKey))
	})
	t.Run("device-error", func(t *testing.T) {
		f := newFirmware()
		f.Handler = func(uint8, uint32, []byte) (uint32, uint32, []byte) {
			return 0x02, 0, nil
		}
		_, err := f.open()
		require.True(t, IsDeviceError(err))
		assert.Contains(t, err.Error(), "card info missing")
		assert.False(t, IsCorrupt(err))
	})
	t.Run("empty", func(t *testing.T) {
		f := newFirmware()
		f.CardInfo = nil
		d, err := f.open()
		require.NoError(t, err)
		assert.Zero(t, d.Sensors.Len())
	})
}

func TestBringUpTwice(t *testing.T) {
	f := newFirmware()
	d, err := f.open()
	require.NoError(t, err)
	assert.True(t, errors.Is(d.BringUp(f.Mapper), ErrNotUsable))
	require.NoError(t, d.Close())
	assert.Equal(t, Unmapped, d.State())
	assert.Nil(t, d.Variant)
	assert.Nil(t, d.Sensors)
	session := d.Session
	require.NoError(t, d.BringUp(f.Mapper))
	assert.Equal(t, Operational, d.State())
	assert.NotEqual(t, session, d.Session)
}

func TestLayoutCheck(t *testing.T) {
	require.NoError(t, DefaultLayout.Check())
	l := DefaultLayout
	l.Shared.Size = 0x100
	assert.Error(t, l.Check())
	l = DefaultLayout
	l.Reset.Base++
	assert.Error(t, l.Check())
	l = DefaultLayout
	l.Shared.Base = l.Interrupt.Base + 0x800
	assert.Error(t, l.Check())
}
