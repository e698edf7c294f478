// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package deadline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/platinasystems/cmc/internal/deadline"
	"github.com/platinasystems/cmc/internal/deadline/deadlinetest"
)

func TestPollOrWait(t *testing.T) {
	clock := deadlinetest.New()
	d := deadline.Start(clock, time.Millisecond, 100*time.Microsecond)
	n := 0
	for d.PollOrWait() == deadline.Continue {
		n++
	}
	assert.Equal(t, 10, n)
	assert.Equal(t, 10, clock.Sleeps())
	t.Run("expired-does-not-sleep", func(t *testing.T) {
		assert.Equal(t, deadline.Expired, d.PollOrWait())
		assert.Equal(t, 10, clock.Sleeps())
	})
}

func TestWait(t *testing.T) {
	t.Run("done", func(t *testing.T) {
		clock := deadlinetest.New()
		d := deadline.Default(clock)
		polls := 0
		r := d.Wait(func() bool {
			polls++
			return polls == 3
		})
		assert.Equal(t, deadline.Continue, r)
		assert.Equal(t, 2, clock.Sleeps())
		assert.Equal(t, 2*deadline.Holdoff, clock.Slept())
	})
	t.Run("never", func(t *testing.T) {
		clock := deadlinetest.New()
		start := clock.Now()
		d := deadline.Default(clock)
		r := d.Wait(func() bool { return false })
		assert.Equal(t, deadline.Expired, r)
		elapsed := clock.Now().Sub(start)
		assert.GreaterOrEqual(t, elapsed, deadline.Timeout)
		assert.LessOrEqual(t, elapsed, deadline.Timeout+deadline.Holdoff)
	})
	t.Run("already-passed", func(t *testing.T) {
		clock := deadlinetest.New()
		d := deadline.Start(clock, 0, deadline.Holdoff)
		assert.Equal(t, deadline.Expired, d.Wait(func() bool { return false }))
		assert.Zero(t, clock.Sleeps())
	})
}

func TestSystem(t *testing.T) {
	d := deadline.Start(nil, 5*time.Millisecond, time.Millisecond)
	start := time.Now()
	r := d.Wait(func() bool { return false })
	assert.Equal(t, deadline.Expired, r)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}
