// Copyright © 2016-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package goes

import (
	"context"
	"fmt"
	"net"
	"net/rpc"
	"strings"
	"sync"
	"time"

	"github.com/platinasystems/atsock"
)

const ServiceTimeout = 30 * time.Second

// Listen on the abstract socket "@NAME".
func Listen(name string) (net.Listener, error) { return atsock.Listen(name) }

// Service runs the Selection for each remote call accepted on ln until ctx
// is done, then closes ln and every open connection. Each call is given
// ctx's values, such as the card, but its own timeout.
func (m Selection) Service(
	ctx context.Context,
	wg *sync.WaitGroup,
	ln net.Listener,
) {
	defer wg.Done()
	svr := rpc.NewServer()
	svr.Register(&Service{ctx, ln.Addr().String(), m})
	conns := new(connSet)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			if !conns.add(conn) {
				conn.Close()
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				svr.ServeConn(conn)
				conns.remove(conn)
			}()
		}
	}()
	<-ctx.Done()
	ln.Close()
	conns.close()
}

// connSet holds the served connections until closed.
type connSet struct {
	sync.Mutex
	m      map[net.Conn]struct{}
	closed bool
}

func (s *connSet) add(c net.Conn) bool {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return false
	}
	if s.m == nil {
		s.m = make(map[net.Conn]struct{})
	}
	s.m[c] = struct{}{}
	return true
}

func (s *connSet) remove(c net.Conn) {
	s.Lock()
	delete(s.m, c)
	s.Unlock()
}

func (s *connSet) close() {
	s.Lock()
	defer s.Unlock()
	s.closed = true
	for c := range s.m {
		c.Close()
	}
}

type Service struct {
	ctx context.Context
	lns string
	m   Selection
}

// Select is the remote call. A panicking command fails the call, not the
// service.
func (svc *Service) Select(args []string, result *string) error {
	w := new(strings.Builder)
	ctx, cancel := context.WithTimeout(svc.ctx, ServiceTimeout)
	defer cancel()
	ctx = WithPath(WithOutput(ctx, w), svc.lns)
	ctx, args = Preempt(ctx, args)
	err := Run(ctx, svc.m.Select, args...)
	if err != nil {
		fmt.Fprintln(w, err)
	}
	*result = w.String()
	return err
}
