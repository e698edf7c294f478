// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package goes

import "strings"

// CompleteStrings returns the nonempty members of l prefixed by the last
// argument.
func CompleteStrings(l []string, args []string) (c []string) {
	var prefix string
	if len(args) > 0 {
		prefix = args[len(args)-1]
	}
	for _, s := range l {
		if len(s) > 0 && strings.HasPrefix(s, prefix) {
			c = append(c, s)
		}
	}
	return
}
