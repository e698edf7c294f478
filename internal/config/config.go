// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package config loads the YAML description of the card to manage and where
// to publish what it reports.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/platinasystems/cmc/elib/hw/pci"
	"github.com/platinasystems/cmc/internal/cmc"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "/etc/goes/cmcd.yaml"

type Config struct {
	// Device is the PCI bus address, DOMAIN:BUS:SLOT.FN.
	Device string     `yaml:"device"`
	Layout cmc.Layout `yaml:"layout"`

	// Interval between publications of per-cage low-speed signals.
	Interval time.Duration `yaml:"interval"`

	Retry  Retry  `yaml:"retry"`
	Sink   Sink   `yaml:"sink"`
	Socket string `yaml:"socket"`
}

// Retry paces bring-up attempts after a failure.
type Retry struct {
	Min    time.Duration `yaml:"min"`
	Max    time.Duration `yaml:"max"`
	Factor float64       `yaml:"factor"`
	Jitter bool          `yaml:"jitter"`
}

const (
	SinkNone      = "none"
	SinkPublisher = "publisher"
	SinkRedis     = "redis"
)

type Sink struct {
	Kind string `yaml:"kind"`
	// Address of the redis server for SinkRedis.
	Address string `yaml:"address"`
	// Key prefixes published fields, or names the hash for SinkRedis.
	Key string `yaml:"key"`
}

func Default() *Config {
	return &Config{
		Layout:   cmc.DefaultLayout,
		Interval: 5 * time.Second,
		Retry: Retry{
			Min:    time.Second,
			Max:    time.Minute,
			Factor: 2,
		},
		Sink: Sink{
			Kind: SinkPublisher,
			Key:  "cmc",
		},
		Socket: "cmcd",
	}
}

// Parse YAML over the defaults then validate.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration without changing it.
func (cfg *Config) Validate() error {
	if cfg.Device == "" {
		return fmt.Errorf("device: missing")
	}
	if _, err := pci.ParseBusAddress(cfg.Device); err != nil {
		return fmt.Errorf("device: %w", err)
	}
	if err := cfg.Layout.Check(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("interval: %v: must be positive", cfg.Interval)
	}
	r := cfg.Retry
	switch {
	case r.Min <= 0:
		return fmt.Errorf("retry: min %v: must be positive", r.Min)
	case r.Max < r.Min:
		return fmt.Errorf("retry: max %v < min %v", r.Max, r.Min)
	case r.Factor < 1:
		return fmt.Errorf("retry: factor %v < 1", r.Factor)
	}
	switch cfg.Sink.Kind {
	case SinkNone, SinkPublisher:
	case SinkRedis:
		if cfg.Sink.Address == "" {
			return fmt.Errorf("sink: redis: missing address")
		}
		if cfg.Sink.Key == "" {
			return fmt.Errorf("sink: redis: missing key")
		}
	default:
		return fmt.Errorf("sink: %q: unknown kind", cfg.Sink.Kind)
	}
	if cfg.Socket == "" {
		return fmt.Errorf("socket: missing")
	}
	return nil
}

// Address returns the parsed device address of a valid configuration.
func (cfg *Config) Address() pci.BusAddress {
	a, _ := pci.ParseBusAddress(cfg.Device)
	return a
}
