// Copyright © 2016-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package goes

import (
	"context"
	"net/rpc"

	"github.com/platinasystems/atsock"
)

// RPC forwards args, and any preemption, to the Service listening on "@NAME"
// then prints its result.
func RPC(ctx context.Context, name string, args ...string) error {
	var res string
	if p := Preemption(ctx); len(p) > 0 {
		args = append([]string{p}, args...)
	}
	conn, err := atsock.Dial(name)
	if err != nil {
		return err
	}
	c := rpc.NewClient(conn)
	call := c.Go("Service.Select", args, &res, nil)
	select {
	case <-call.Done:
		err = call.Error
		c.Close()
	case <-ctx.Done():
		err = ctx.Err()
		c.Close()
		<-call.Done
	}
	if len(res) > 0 {
		OutputOf(ctx).Print(res)
	}
	return err
}
