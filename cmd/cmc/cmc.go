// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package cmc is the card management controller command. By default it
// forwards its arguments to the cmcd service; with -direct it opens the card
// itself.
package cmc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/platinasystems/cmc/elib/hw/pci"
	"github.com/platinasystems/cmc/goes"
	mc "github.com/platinasystems/cmc/internal/cmc"
	"github.com/platinasystems/cmc/internal/config"
	"github.com/platinasystems/cmc/internal/sensor"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"
)

var ErrNoCard = errors.New("no card")

// Commands are served by cmcd and run by "cmc -direct".
var Commands = goes.Selection{
	"bringup":  BringUp,
	"caps":     Caps,
	"info":     Info,
	"lowspeed": LowSpeed,
	"page":     Page,
	"sensors":  Sensors,
}

// Main runs a command remotely through "@SOCKET", or directly with
//
//	cmc -direct [-config FILE] COMMAND [ARGS]...
func Main(ctx context.Context, args ...string) error {
	flag, args := flags.New(args, "-direct")
	parm, args := parms.New(args, "-config", "-socket")
	fn := parm.ByName["-config"]
	if !flag.ByName["-direct"] {
		socket := parm.ByName["-socket"]
		if len(socket) == 0 && len(fn) > 0 {
			cfg, err := config.Load(fn)
			if err != nil {
				return err
			}
			socket = cfg.Socket
		}
		if len(socket) == 0 {
			socket = config.Default().Socket
		}
		return goes.RPC(ctx, socket, args...)
	}
	if len(goes.Preemption(ctx)) > 0 {
		return Commands.Select(ctx, args...)
	}
	if len(fn) == 0 {
		fn = config.DefaultPath
	}
	cfg, err := config.Load(fn)
	if err != nil {
		return err
	}
	c, err := OpenCard(cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	if err = c.BringUp(); err != nil {
		return err
	}
	return Commands.Select(WithCard(ctx, c), args...)
}

// preempted serves "help" with the given usage and ignores "complete".
func preempted(ctx context.Context, usage ...interface{}) bool {
	switch goes.Preemption(ctx) {
	case "":
		return false
	case "help":
		goes.Usage(ctx, usage...)
	}
	return true
}

// locked runs f with the context's card locked.
func locked(ctx context.Context, f func(c *Card) error) error {
	c := CardOf(ctx)
	if c == nil {
		return goes.ErrorfWith(ctx, "%w", ErrNoCard)
	}
	c.Lock()
	defer c.Unlock()
	if err := f(c); err != nil {
		return goes.ErrorfWith(ctx, "%w", err)
	}
	return ctx.Err()
}

type field struct {
	name, value string
}

// show prints a padded table to a terminal and "NAME: VALUE" lines
// otherwise.
func show(o goes.Output, fields []field) {
	if !o.IsTerminal() {
		for _, f := range fields {
			o.Print(f.name, ": ", f.value, "\n")
		}
		return
	}
	w := 0
	for _, f := range fields {
		if len(f.name) > w {
			w = len(f.name)
		}
	}
	for _, f := range fields {
		o.Printf("%-*s  %s\n", w, f.name, f.value)
	}
}

func hex32(v uint32) string { return fmt.Sprintf("0x%08x", v) }

func Info(ctx context.Context, args ...string) error {
	if preempted(ctx, "\n", "Show controller state, identity and mailbox.") {
		return nil
	}
	return locked(ctx, func(c *Card) error {
		d := c.Dev
		fields := []field{
			{"card", c.String()},
			{"state", d.State().String()},
			{"session", d.Session.String()},
		}
		if c.PCI != nil {
			b, addr, err := c.PCI.BaseAddress(0)
			if err != nil {
				return err
			}
			fields = append(fields,
				field{"bar0", fmt.Sprintf("0x%x %s", addr, b)})
		}
		if d.Variant != nil {
			fields = append(fields,
				field{"variant", d.Variant.Name},
				field{"modules", strconv.Itoa(d.Variant.Modules)},
				field{"version", hex32(d.Version)})
		}
		if d.MailboxPayload != 0 {
			fields = append(fields,
				field{"mailbox", fmt.Sprintf("0x%x", d.MailboxHeader)})
		}
		if v, err := d.InterruptStatus(); err == nil {
			fields = append(fields, field{"interrupt-status", hex32(v)})
		}
		if v, err := d.FirmwareError(); err == nil {
			fields = append(fields, field{"firmware-error", hex32(v)})
		}
		show(goes.OutputOf(ctx), fields)
		return nil
	})
}

func Sensors(ctx context.Context, args ...string) error {
	if preempted(ctx, "\n", "Show the card information records.") {
		return nil
	}
	return locked(ctx, func(c *Card) error {
		if c.Dev.Sensors == nil {
			return fmt.Errorf("%w: %s", mc.ErrNotUsable, c.Dev.State())
		}
		var fields []field
		c.Dev.Sensors.Each(func(r sensor.Record) {
			fields = append(fields, field{r.Key.String(), r.String()})
		})
		show(goes.OutputOf(ctx), fields)
		return nil
	})
}

func cage(s string) (int, error) {
	i, err := strconv.ParseInt(s, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid cage", s)
	}
	return int(i), nil
}

func LowSpeed(ctx context.Context, args ...string) error {
	if preempted(ctx, "[CAGE | -w CAGE SIGNAL[|SIGNAL]...]\n",
		"Show or set the low-speed signals of module cages.\n",
		"SIGNAL is one of ResetL, LPMode, ModSelL, IntL, ModPrsL or a number.") {
		return nil
	}
	flag, args := flags.New(args, "-w")
	return locked(ctx, func(c *Card) error {
		d := c.Dev
		if flag.ByName["-w"] {
			if len(args) != 2 {
				return fmt.Errorf("-w: want CAGE and SIGNALS")
			}
			i, err := cage(args[0])
			if err != nil {
				return err
			}
			v, err := mc.ParseLowSpeedIO(args[1])
			if err != nil {
				return err
			}
			return d.SetLowSpeed(i, v)
		}
		var cages []int
		switch len(args) {
		case 0:
			if d.Variant == nil {
				return fmt.Errorf("%w: %s", mc.ErrNotUsable, d.State())
			}
			for i := 0; i < d.Variant.Modules; i++ {
				cages = append(cages, i)
			}
		case 1:
			i, err := cage(args[0])
			if err != nil {
				return err
			}
			cages = append(cages, i)
		default:
			return fmt.Errorf("%v: unexpected", args[1:])
		}
		var fields []field
		for _, i := range cages {
			v, err := d.LowSpeed(i)
			if err != nil {
				return err
			}
			fields = append(fields, field{fmt.Sprint("cage", i), v.String()})
		}
		show(goes.OutputOf(ctx), fields)
		return nil
	})
}

func Page(ctx context.Context, args ...string) error {
	if preempted(ctx, "CAGE PAGE\n",
		"Dump a management page of the module in CAGE.") {
		return nil
	}
	return locked(ctx, func(c *Card) error {
		if len(args) != 2 {
			return fmt.Errorf("want CAGE and PAGE")
		}
		i, err := cage(args[0])
		if err != nil {
			return err
		}
		page, err := strconv.ParseUint(args[1], 0, 8)
		if err != nil {
			return fmt.Errorf("%s: invalid page", args[1])
		}
		b, err := c.Dev.ModulePage(i, int(page))
		if err != nil {
			return err
		}
		goes.OutputOf(ctx).Print(hex.Dump(b))
		return nil
	})
}

func Caps(ctx context.Context, args ...string) error {
	if preempted(ctx, "\n", "List the PCI capabilities of the card.") {
		return nil
	}
	return locked(ctx, func(c *Card) error {
		if c.PCI == nil {
			return fmt.Errorf("%s: no pci function", c)
		}
		var fields []field
		err := c.PCI.ForeachCap(func(id pci.Capability, o uint) (bool, error) {
			fields = append(fields, field{fmt.Sprintf("0x%02x", o), id.String()})
			return false, nil
		})
		show(goes.OutputOf(ctx), fields)
		return err
	})
}

func BringUp(ctx context.Context, args ...string) error {
	if preempted(ctx, "\n", "Reset the controller and bring it up again.") {
		return nil
	}
	c := CardOf(ctx)
	if c == nil {
		return goes.ErrorfWith(ctx, "%w", ErrNoCard)
	}
	if err := c.BringUp(); err != nil {
		return goes.ErrorfWith(ctx, "%w", err)
	}
	c.Lock()
	s := c.Dev.String()
	c.Unlock()
	goes.OutputOf(ctx).Println(s)
	return nil
}
