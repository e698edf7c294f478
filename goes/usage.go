// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package goes

import "context"

// Usage prints
//
//	usage: PATH ARGS...
//
// where PATH is the context path less any "help" preemption. The ARGS are
// printed without separation; a Selection prints its command names.
func Usage(ctx context.Context, args ...interface{}) {
	o := OutputOf(ctx)
	o.Print("usage:")
	for i, s := range PathOf(ctx) {
		if i == 1 && s == "help" {
			continue
		}
		o.Print(" ", s)
	}
	if len(args) == 0 {
		o.Println()
		return
	}
	o.Print(" ")
	end := "\n"
	for _, v := range args {
		switch t := v.(type) {
		case Selection:
			end = ""
			for _, s := range t.Keys() {
				if len(s) > 0 {
					o.Println(" ", s)
				}
			}
		default:
			o.Print(v)
		}
	}
	o.Print(end)
}
