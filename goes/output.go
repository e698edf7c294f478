// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package goes

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

func WithOutput(ctx context.Context, w io.Writer) context.Context {
	return Output{ctx, w}
}

// Output writes to the context's writer until the context is done.
type Output struct {
	context.Context
	w io.Writer
}

func OutputOf(ctx context.Context) Output {
	if v := ctx.Value(outputKey); v != nil {
		return v.(Output)
	}
	return Output{ctx, nil}
}

func (o Output) Print(args ...interface{}) {
	if o.Err() != nil || o.w == nil {
		return
	}
	fmt.Fprint(o.w, args...)
}

func (o Output) Printf(format string, args ...interface{}) {
	if o.Err() != nil || o.w == nil {
		return
	}
	fmt.Fprintf(o.w, format, args...)
}

func (o Output) Println(args ...interface{}) {
	if o.Err() != nil || o.w == nil {
		return
	}
	fmt.Fprintln(o.w, args...)
}

// IsTerminal reports whether output goes to a tty.
func (o Output) IsTerminal() bool {
	f, ok := o.w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func (o Output) Value(k interface{}) interface{} {
	if k == outputKey {
		return o
	}
	return o.Context.Value(k)
}

func (o Output) Write(data []byte) (int, error) {
	if err := o.Err(); err != nil {
		return 0, err
	}
	if o.w == nil {
		return len(data), nil
	}
	return o.w.Write(data)
}
