// Package kv implements the repository interfaces on top of a kvstore.Store.
//
// Each entity type lives under one key as a JSON array ("users",
// "projects", "tasks"). Reads load the whole array; every mutation is a
// single kvstore Update, so concurrent writers to the same collection are
// serialised rather than overwriting each other.
package kv

import (
	"time"

	"github.com/rs/xid"
)

const (
	UsersKey    = "users"
	ProjectsKey = "projects"
	TasksKey    = "tasks"
)

type options struct {
	now   func() time.Time
	newID func() string
}

// Option customises a store; tests use it to pin the clock and ids.
type Option func(*options)

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func buildOptions(opts []Option) options {
	o := options{
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
		newID: func() string {
			return xid.New().String()
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// bump returns a timestamp strictly after prev, so updatedAt always moves
// forward even when two writes land within one clock tick.
func bump(now, prev time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Millisecond)
}
