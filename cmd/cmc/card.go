// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmc

import (
	"context"
	"fmt"
	"sync"

	"github.com/platinasystems/cmc/elib/hw"
	"github.com/platinasystems/cmc/elib/hw/pci"
	"github.com/platinasystems/cmc/goes"
	mc "github.com/platinasystems/cmc/internal/cmc"
	"github.com/platinasystems/cmc/internal/config"
)

// Card serializes all use of one controller. Lock it around every call to
// Dev.
type Card struct {
	sync.Mutex
	Mapper hw.Mapper
	// PCI is nil for an emulated card.
	PCI *pci.Device
	Dev *mc.Device
}

// NewCard returns a card whose controller has yet to be brought up.
func NewCard(m hw.Mapper, l mc.Layout, opts ...mc.Option) *Card {
	return &Card{
		Mapper: m,
		Dev:    mc.New(l, opts...),
	}
}

// OpenCard opens the PCI function named by cfg with memory decode enabled.
// The controller is left for BringUp.
func OpenCard(cfg *config.Config, opts ...mc.Option) (*Card, error) {
	p, err := pci.Open(cfg.Address())
	if err != nil {
		return nil, err
	}
	if err = p.EnableMemory(); err != nil {
		p.Close()
		return nil, err
	}
	c := NewCard(p, cfg.Layout, opts...)
	c.PCI = p
	return c, nil
}

// BringUp restarts the controller from Unmapped.
func (c *Card) BringUp() error {
	c.Lock()
	defer c.Unlock()
	if c.Dev.State() != mc.Unmapped {
		c.Dev.Close()
	}
	return c.Dev.BringUp(c.Mapper)
}

func (c *Card) Close() error {
	c.Lock()
	defer c.Unlock()
	c.Dev.Close()
	if c.PCI != nil {
		return c.PCI.Close()
	}
	return nil
}

// Status is the card and its controller state, or busy while locked.
func (c *Card) Status() string {
	if !c.TryLock() {
		return fmt.Sprint(c, " busy")
	}
	defer c.Unlock()
	return fmt.Sprint(c, " ", c.Dev.State())
}

func (c *Card) String() string {
	if c.PCI != nil {
		return c.PCI.Addr.String()
	}
	return "emulated"
}

type cardKey struct{}

// WithCard gives commands the card and reports its status with a panic.
func WithCard(ctx context.Context, c *Card) context.Context {
	ctx = context.WithValue(ctx, cardKey{}, c)
	return goes.WithStatus(ctx, c.Status)
}

func CardOf(ctx context.Context) *Card {
	c, _ := ctx.Value(cardKey{}).(*Card)
	return c
}
