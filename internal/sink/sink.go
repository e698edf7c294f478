// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package sink publishes card state as field/value pairs, either through the
// local goes redis publisher or to a redis server hash.
package sink

import (
	"fmt"
	"sort"
	"sync"

	"github.com/garyburd/redigo/redis"
	"github.com/platinasystems/cmc/internal/config"
	"github.com/platinasystems/redis/publisher"
)

type Sink interface {
	Publish(field, value string) error
	Close() error
}

// New returns the sink described by cfg.
func New(cfg config.Sink) (Sink, error) {
	switch cfg.Kind {
	case config.SinkNone:
		return Discard, nil
	case config.SinkPublisher:
		pub, err := publisher.New()
		if err != nil {
			return nil, err
		}
		return NewPublisher(pub, cfg.Key), nil
	case config.SinkRedis:
		conn, err := redis.Dial("tcp", cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("redis %s: %w", cfg.Address, err)
		}
		return NewRedis(conn, cfg.Key), nil
	}
	return nil, fmt.Errorf("%q: unknown sink", cfg.Kind)
}

// PublishMap publishes m in field order and returns the first failure.
func PublishMap(s Sink, m map[string]string) error {
	fields := make([]string, 0, len(m))
	for k := range m {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, k := range fields {
		if err := s.Publish(k, m[k]); err != nil {
			return err
		}
	}
	return nil
}

type discard struct{}

func (discard) Publish(string, string) error { return nil }
func (discard) Close() error                 { return nil }

var Discard Sink = discard{}

// Printer is satisfied by *publisher.Publisher.
type Printer interface {
	Print(a ...interface{}) (int, error)
	Close() error
}

// Publisher prints "KEY.FIELD: VALUE" lines to the local redis publisher.
type Publisher struct {
	p   Printer
	key string
}

func NewPublisher(p Printer, key string) *Publisher {
	return &Publisher{p: p, key: key}
}

func (s *Publisher) Publish(field, value string) error {
	k := field
	if len(s.key) > 0 {
		k = s.key + "." + field
	}
	_, err := s.p.Print(k, ": ", value)
	return err
}

func (s *Publisher) Close() error { return s.p.Close() }

// Redis sets fields of one hash on a redis server.
type Redis struct {
	mu   sync.Mutex
	conn redis.Conn
	key  string
}

func NewRedis(conn redis.Conn, key string) *Redis {
	return &Redis{conn: conn, key: key}
}

func (s *Redis) Publish(field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.conn.Do("HSET", s.key, field, value); err != nil {
		return fmt.Errorf("hset %s %s: %w", s.key, field, err)
	}
	return nil
}

func (s *Redis) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
