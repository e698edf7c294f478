// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package goes selects and runs the commands of goes-cmc. Each is a
//
//	func(ctx context.Context, args ...string) error
//
// whose context carries the command path, output, any "help" or "complete"
// preemption and a status reported with a recovered panic.
package goes

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"syscall"

	"github.com/platinasystems/log"
)

// Prog is the name goes-cmc was run as, e.g. cmcd through a link.
var Prog = filepath.Base(os.Args[0])

var TerminationSignals = []os.Signal{
	os.Interrupt,
	os.Signal(syscall.SIGTERM),
}

type Func = func(context.Context, ...string) error

type Selection map[string]Func

func (m Selection) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Main runs the command named by Prog, or else by the first argument, until
// interrupted then exits 1 if it failed.
func (m Selection) Main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		TerminationSignals...)
	ctx = WithPath(WithOutput(ctx, os.Stdout), Prog)
	ctx, args := Preempt(ctx, os.Args[1:])
	f, found := m[Prog]
	if !found {
		f = m.Select
	}
	err := Run(ctx, f, args...)
	stop()
	if err != nil {
		fmt.Fprint(os.Stderr, Prog, ": ", err, "\n")
		os.Exit(1)
	}
}

// Select runs the command named by the first argument.
func (m Selection) Select(ctx context.Context, args ...string) error {
	if len(args) > 0 {
		if f, found := m[args[0]]; found {
			return f(WithPath(ctx, args[0]), args[1:]...)
		}
	}
	switch Preemption(ctx) {
	case "complete":
		for _, s := range CompleteStrings(m.Keys(), args) {
			OutputOf(ctx).Println(s)
		}
	case "help":
		Usage(ctx, "COMMAND [ARGS]...\n", m)
	default:
		if len(args) == 0 {
			return ErrorfWith(ctx, "incomplete")
		}
		return ErrorfWith(ctx, "%s: command not found", args[0])
	}
	return nil
}

// Run calls f and returns a panic as an error with the context's status and
// the panicking frames. The panic is also logged.
func Run(ctx context.Context, f Func, args ...string) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		sb := new(strings.Builder)
		fmt.Fprint(sb, "panic: ", r)
		if status := StatusOf(ctx); status != nil {
			fmt.Fprint(sb, " (", status(), ")")
		}
		fmt.Fprintln(sb)
		stack(sb)
		err = ErrorfWith(ctx, "%s", sb)
		log.Print("daemon", "err", err)
	}()
	return f(ctx, args...)
}

func stack(sb *strings.Builder) {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(3, pcs)
	if n == 0 {
		return
	}
	frames := runtime.CallersFrames(pcs[:n])
	for more := true; more; {
		var f runtime.Frame
		f, more = frames.Next()
		if strings.Contains(f.File, "runtime/") {
			continue
		}
		fmt.Fprint(sb, "    ", f.Function, "()\n")
		fmt.Fprint(sb, "        ", f.File, ":", f.Line, "\n")
	}
}
