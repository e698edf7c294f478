// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package cmcd brings up the card management controller, publishes what it
// reports and serves the cmc commands on an abstract socket.
package cmcd

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/platinasystems/cmc/cmd/cmc"
	"github.com/platinasystems/cmc/goes"
	mc "github.com/platinasystems/cmc/internal/cmc"
	"github.com/platinasystems/cmc/internal/config"
	"github.com/platinasystems/cmc/internal/sink"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
)

// Main runs the daemon until its context is done.
//
//	cmcd [-config FILE]
func Main(ctx context.Context, args ...string) error {
	switch goes.Preemption(ctx) {
	case "":
	case "help":
		goes.Usage(ctx, "[-config FILE]\n",
			"Bring up the card management controller and publish its state.\n",
			"FILE defaults to ", config.DefaultPath, ".")
		fallthrough
	default:
		return nil
	}
	parm, args := parms.New(args, "-config")
	if len(args) > 0 {
		return goes.ErrorfWith(ctx, "%v: unexpected", args)
	}
	fn := parm.ByName["-config"]
	if len(fn) == 0 {
		fn = config.DefaultPath
	}
	cfg, err := config.Load(fn)
	if err != nil {
		return err
	}
	c, err := cmc.OpenCard(cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	s, err := sink.New(cfg.Sink)
	if err != nil {
		return err
	}
	defer s.Close()
	ln, err := goes.Listen(cfg.Socket)
	if err != nil {
		return err
	}
	return New(cfg, c, s).Run(ctx, ln)
}

type Daemon struct {
	Card     *cmc.Card
	Sink     sink.Sink
	Interval time.Duration
	Retry    *backoff.Backoff

	// last published value by field
	last map[string]string
	log  *log.RateLimited
}

func New(cfg *config.Config, c *cmc.Card, s sink.Sink) *Daemon {
	return &Daemon{
		Card:     c,
		Sink:     s,
		Interval: cfg.Interval,
		Retry: &backoff.Backoff{
			Min:    cfg.Retry.Min,
			Max:    cfg.Retry.Max,
			Factor: cfg.Retry.Factor,
			Jitter: cfg.Retry.Jitter,
		},
		last: make(map[string]string),
	}
}

// Run serves the cmc commands on ln and polls the card until ctx is done.
// A failed poll is retried with backoff, bringing the controller up again.
func (d *Daemon) Run(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	d.log = log.NewRateLimited(4, time.Minute)
	defer d.log.Close()
	wg.Add(1)
	go cmc.Commands.Service(cmc.WithCard(ctx, d.Card), &wg, ln)
	for {
		wait := d.Interval
		if err := d.Poll(); err != nil {
			wait = d.Retry.Duration()
			d.log.Print("daemon", "err", d.Card, ": ", err,
				"; retry in ", wait)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// Poll brings up the controller if it isn't usable then publishes any
// change to its state or the low-speed signals of each cage.
func (d *Daemon) Poll() error {
	c := d.Card
	c.Lock()
	usable := c.Dev.Usable()
	c.Unlock()
	if !usable {
		if err := c.BringUp(); err != nil {
			d.failed(err)
			return err
		}
		d.Retry.Reset()
	}
	m, err := d.snapshot()
	if err != nil {
		d.failed(err)
		return err
	}
	return d.publishMap(m)
}

func (d *Daemon) snapshot() (map[string]string, error) {
	c := d.Card
	c.Lock()
	defer c.Unlock()
	dev := c.Dev
	if !dev.Usable() {
		return nil, fmt.Errorf("%w: %s", mc.ErrNotUsable, dev.State())
	}
	m := dev.Sensors.Map()
	m["state"] = dev.State().String()
	m["session"] = dev.Session.String()
	m["variant"] = dev.Variant.Name
	m["version"] = fmt.Sprintf("0x%08x", dev.Version)
	m["error"] = ""
	for i := 0; i < dev.Variant.Modules; i++ {
		v, err := dev.LowSpeed(i)
		if err != nil {
			return nil, err
		}
		m[fmt.Sprint("cage", i, ".lowspeed")] = v.String()
		m[fmt.Sprint("cage", i, ".present")] = fmt.Sprint(v.Present())
	}
	return m, nil
}

// failed publishes the state and error, ignoring sink failures.
func (d *Daemon) failed(err error) {
	d.Card.Lock()
	state := d.Card.Dev.State().String()
	d.Card.Unlock()
	d.publishMap(map[string]string{
		"state": state,
		"error": err.Error(),
	})
}

// publishMap publishes the fields that changed since last published.
func (d *Daemon) publishMap(m map[string]string) error {
	changed := make(map[string]string)
	for k, v := range m {
		if last, found := d.last[k]; !found || last != v {
			changed[k] = v
		}
	}
	if err := sink.PublishMap(d.Sink, changed); err != nil {
		return err
	}
	for k, v := range changed {
		d.last[k] = v
	}
	return nil
}
