// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// This is the card management controller machine. Link it as cmc or cmcd to
// run that command directly.
package main

import (
	"github.com/platinasystems/cmc/cmd/cmc"
	"github.com/platinasystems/cmc/cmd/cmcd"
	"github.com/platinasystems/cmc/goes"
)

func main() {
	goes.Selection{
		"cmc":  cmc.Main,
		"cmcd": cmcd.Main,
	}.Main()
}
