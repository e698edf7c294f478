// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package goes

import (
	"context"
	"fmt"
	"strings"
)

type key int

const (
	pathKey key = iota
	outputKey
	statusKey
)

// PathOf returns each element appended to the context, oldest first.
func PathOf(ctx context.Context) []string {
	var l []string
	for v := ctx.Value(pathKey); v != nil; v = ctx.Value(pathKey) {
		p := v.(path)
		l = append(l, p.name)
		ctx = p.Context
	}
	for i, j := 0, len(l)-1; i < j; i, j = i+1, j-1 {
		l[i], l[j] = l[j], l[i]
	}
	return l
}

// WithPath appends an element to the context path.
func WithPath(ctx context.Context, name string) context.Context {
	return path{ctx, name}
}

type path struct {
	context.Context
	name string
}

func (p path) Value(k interface{}) interface{} {
	if k == pathKey {
		return p
	}
	return p.Context.Value(k)
}

// ErrorfWith prefaces the formatted error with the context path.
func ErrorfWith(ctx context.Context, format string, args ...interface{}) error {
	return fmt.Errorf(strings.Join(PathOf(ctx), " ")+": "+format, args...)
}

// WithStatus attaches a description of what the commands work on, e.g. a
// card and its state, for Run to report with a panic.
func WithStatus(ctx context.Context, f func() string) context.Context {
	return context.WithValue(ctx, statusKey, f)
}

func StatusOf(ctx context.Context) func() string {
	f, _ := ctx.Value(statusKey).(func() string)
	return f
}

var preemptive = map[string]bool{
	"complete": true,
	"help":     true,
}

// Preemption returns "complete" or "help" if either follows the program in
// the context path; otherwise it returns an empty string.
func Preemption(ctx context.Context) string {
	path := PathOf(ctx)
	if len(path) > 1 && preemptive[path[1]] {
		return path[1]
	}
	return ""
}

// Preempt moves leading "complete" and "help" arguments to the context.
func Preempt(ctx context.Context, args []string) (context.Context, []string) {
	for len(args) > 0 && preemptive[args[0]] {
		ctx = WithPath(ctx, args[0])
		args = args[1:]
	}
	return ctx, args
}
