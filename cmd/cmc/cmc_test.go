// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/platinasystems/cmc/elib/hw/pci"
	"github.com/platinasystems/cmc/goes"
	mc "github.com/platinasystems/cmc/internal/cmc"
	"github.com/platinasystems/cmc/internal/cmc/cmctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCard(t *testing.T) (*cmctest.Firmware, *Card) {
	t.Helper()
	l := mc.DefaultLayout
	f := cmctest.New(cmctest.Region(l.Reset), cmctest.Region(l.Interrupt),
		cmctest.Region(l.Shared))
	c := NewCard(f.Mapper, l, mc.WithClock(f.Clock))
	require.NoError(t, c.BringUp())
	return f, c
}

func run(ctx context.Context, args ...string) (string, error) {
	w := new(strings.Builder)
	ctx = goes.WithPath(goes.WithOutput(ctx, w), "cmc")
	ctx, args = goes.Preempt(ctx, args)
	err := Commands.Select(ctx, args...)
	return w.String(), err
}

func TestInfo(t *testing.T) {
	_, c := testCard(t)
	out, err := run(WithCard(context.Background(), c), "info")
	require.NoError(t, err)
	for _, s := range []string{
		"card: emulated\n",
		"state: operational\n",
		"variant: 2xQSFP\n",
		"modules: 2\n",
		"version: 0x00040310\n",
		"mailbox: 0x1000\n",
		"firmware-error: 0x00000000\n",
	} {
		assert.Contains(t, out, s)
	}
	assert.Contains(t, out, "session: "+c.Dev.Session.String())
	assert.NotContains(t, out, "bar0")

	cfg := make(pci.MemConfig, pci.ConfigBytes)
	copy(cfg[pci.RegBaseAddress:], []byte{0x0c, 0, 0, 0xfb, 0x38, 0, 0, 0})
	c.PCI = &pci.Device{Config: cfg}
	out, err = run(WithCard(context.Background(), c), "info")
	require.NoError(t, err)
	assert.Contains(t, out, "card: 0000:00:00.0\n")
	assert.Contains(t, out, "bar0: 0x38fb000000 mem 64-bit prefetchable\n")
}

func TestSensors(t *testing.T) {
	_, c := testCard(t)
	out, err := run(WithCard(context.Background(), c), "sensors")
	require.NoError(t, err)
	assert.Equal(t, "card-revision: A1\ntotal-power-available: 225W\n", out)
}

func TestLowSpeed(t *testing.T) {
	f, c := testCard(t)
	ctx := WithCard(context.Background(), c)

	_, err := run(ctx, "lowspeed", "-w", "1", "ResetL|LPMode")
	require.NoError(t, err)
	assert.Equal(t, uint32(mc.ResetL|mc.LPMode), f.LowSpeed[1])

	f.SetLowSpeed(0, uint32(mc.ModPrsL))
	out, err := run(ctx, "lowspeed")
	require.NoError(t, err)
	assert.Equal(t, "cage0: ModPrsL\ncage1: ResetL|LPMode\n", out)

	out, err = run(ctx, "lowspeed", "1")
	require.NoError(t, err)
	assert.Equal(t, "cage1: ResetL|LPMode\n", out)

	_, err = run(ctx, "lowspeed", "2")
	assert.True(t, errors.Is(err, mc.ErrCage))
	_, err = run(ctx, "lowspeed", "-w", "0", "bogus")
	assert.Error(t, err)
	_, err = run(ctx, "lowspeed", "-w", "0")
	assert.Error(t, err)
}

func TestPage(t *testing.T) {
	_, c := testCard(t)
	ctx := WithCard(context.Background(), c)
	out, err := run(ctx, "page", "1", "0x3")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "00000000  13 14 15 16"), out)
	assert.Equal(t, 8, strings.Count(out, "\n"))

	_, err = run(ctx, "page", "1")
	assert.Error(t, err)
	_, err = run(ctx, "page", "1", "256")
	assert.Error(t, err)
}

func TestCaps(t *testing.T) {
	_, c := testCard(t)
	ctx := WithCard(context.Background(), c)
	_, err := run(ctx, "caps")
	assert.Error(t, err)

	cfg := make(pci.MemConfig, pci.ConfigBytes)
	cfg[pci.RegStatus] = byte(pci.StatusCapabilityList)
	cfg[pci.RegCapabilityOffset] = 0x40
	cfg[0x40], cfg[0x41] = byte(pci.PCIE), 0x60
	cfg[0x60], cfg[0x61] = byte(pci.MSIX), 0
	c.PCI = &pci.Device{Config: cfg}
	out, err := run(ctx, "caps")
	require.NoError(t, err)
	assert.Equal(t, "0x40: pcie\n0x60: msi-x\n", out)
}

func TestBringUpCommand(t *testing.T) {
	f, c := testCard(t)
	ctx := WithCard(context.Background(), c)
	session := c.Dev.Session
	out, err := run(ctx, "bringup")
	require.NoError(t, err)
	assert.Equal(t, "cmc operational 2xQSFP version 0x00040310\n", out)
	assert.NotEqual(t, session, c.Dev.Session)

	f.Stuck = true
	_, err = run(ctx, "bringup")
	require.Error(t, err)
	assert.True(t, mc.IsTimeout(err))
	assert.Equal(t, mc.Failed, c.Dev.State())

	_, err = run(ctx, "sensors")
	assert.True(t, errors.Is(err, mc.ErrNotUsable))
	_, err = run(ctx, "lowspeed")
	assert.True(t, errors.Is(err, mc.ErrNotUsable))
}

func TestPanicStatus(t *testing.T) {
	_, c := testCard(t)
	ctx := goes.WithPath(WithCard(context.Background(), c), "cmc")
	err := goes.Run(ctx, func(ctx context.Context, args ...string) error {
		return locked(ctx, func(c *Card) error {
			panic("mailbox")
		})
	})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(),
		"cmc: panic: mailbox (emulated operational)\n"), err.Error())
	assert.True(t, c.TryLock())
	c.Unlock()
}

func TestNoCard(t *testing.T) {
	for _, cmd := range Commands.Keys() {
		_, err := run(context.Background(), cmd)
		assert.True(t, errors.Is(err, ErrNoCard), cmd)
	}
}

func TestHelp(t *testing.T) {
	out, err := run(context.Background(), "help", "lowspeed")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out,
		"usage: cmc lowspeed [CAGE | -w CAGE SIGNAL[|SIGNAL]...]\n"), out)

	out, err = run(context.Background(), "complete", "low")
	require.NoError(t, err)
	assert.Equal(t, "lowspeed\n", out)
}

func TestRemote(t *testing.T) {
	var wg sync.WaitGroup
	defer wg.Wait()
	_, c := testCard(t)
	name := fmt.Sprint("cmc-test-", os.Getpid())
	ln, err := goes.Listen(name)
	require.NoError(t, err)
	sctx, cancel := context.WithCancel(WithCard(context.Background(), c))
	defer cancel()
	wg.Add(1)
	go Commands.Service(sctx, &wg, ln)

	w := new(strings.Builder)
	ctx := goes.WithPath(goes.WithOutput(context.Background(), w), "cmc")
	require.NoError(t, Main(ctx, "-socket", name, "sensors"))
	assert.Equal(t, "card-revision: A1\ntotal-power-available: 225W\n",
		w.String())

	w.Reset()
	err = Main(ctx, "-socket", name, "lowspeed", "7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cage")
}
