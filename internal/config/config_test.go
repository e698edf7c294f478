// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platinasystems/cmc/elib/hw/pci"
	"github.com/platinasystems/cmc/internal/cmc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("device: 0000:03:00.0\n"))
	require.NoError(t, err)
	assert.Equal(t, cmc.DefaultLayout, cfg.Layout)
	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Equal(t, SinkPublisher, cfg.Sink.Kind)
	assert.Equal(t, "cmcd", cfg.Socket)
	assert.Equal(t, pci.BusAddress{Bus: 3}, cfg.Address())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
device: "0001:81:00.1"
layout:
  bar: 2
  shared:
    base: 0x200000
    size: 0x20000
interval: 250ms
retry:
  min: 100ms
  max: 2s
  factor: 1.5
  jitter: true
sink:
  kind: redis
  address: localhost:6379
  key: cmc:card0
socket: cmcd-card0
`))
	require.NoError(t, err)
	assert.Equal(t, pci.BusAddress{Domain: 1, Bus: 0x81, Fn: 1}, cfg.Address())
	assert.Equal(t, uint(2), cfg.Layout.Bar)
	assert.Equal(t, cmc.Region{Base: 0x200000, Size: 0x20000}, cfg.Layout.Shared)
	assert.Equal(t, cmc.DefaultLayout.Reset, cfg.Layout.Reset)
	assert.Equal(t, 250*time.Millisecond, cfg.Interval)
	assert.Equal(t, Retry{
		Min:    100 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 1.5,
		Jitter: true,
	}, cfg.Retry)
	assert.Equal(t, Sink{
		Kind:    SinkRedis,
		Address: "localhost:6379",
		Key:     "cmc:card0",
	}, cfg.Sink)
	assert.Equal(t, "cmcd-card0", cfg.Socket)
}

func TestParseErrors(t *testing.T) {
	for _, x := range []struct {
		name, yaml, want string
	}{
		{"no-device", "interval: 1s\n", "device: missing"},
		{"bad-device", "device: 03-00-0\n", "device:"},
		{"bad-slot", "device: 03:20.0\n", "out of range"},
		{"overlap", "device: 03:00.0\nlayout:\n  interrupt:\n    base: 0x131000\n", "overlap"},
		{"interval", "device: 03:00.0\ninterval: 0s\n", "interval"},
		{"retry-min", "device: 03:00.0\nretry:\n  min: 0s\n", "retry: min"},
		{"retry-max", "device: 03:00.0\nretry:\n  max: 1ms\n", "retry: max"},
		{"retry-factor", "device: 03:00.0\nretry:\n  factor: 0.5\n", "factor"},
		{"sink-kind", "device: 03:00.0\nsink:\n  kind: kafka\n", "unknown kind"},
		{"redis-address", "device: 03:00.0\nsink:\n  kind: redis\n", "missing address"},
		{"socket", "device: 03:00.0\nsocket: \"\"\n", "socket"},
		{"yaml", "device: [\n", "parse"},
	} {
		t.Run(x.name, func(t *testing.T) {
			cfg, err := Parse([]byte(x.yaml))
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), x.want)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "cmcd.yaml")
	require.NoError(t, os.WriteFile(fn, []byte("device: 03:00.0\nsink:\n  kind: none\n"), 0644))
	cfg, err := Load(fn)
	require.NoError(t, err)
	assert.Equal(t, SinkNone, cfg.Sink.Kind)

	require.NoError(t, os.WriteFile(fn, []byte("sink:\n  kind: none\n"), 0644))
	_, err = Load(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), fn)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, os.IsNotExist(err))
}
