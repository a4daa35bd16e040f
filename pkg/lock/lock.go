// Package lock serializes work on a shared key, such as one dentist's schedule.
package lock

import (
	"context"
	"fmt"
	"sync"
)

// Release gives the lock back. Calling it more than once is safe.
type Release func()

type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// Noop hands out locks without coordinating anything.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (Release, error) {
	return func() {}, nil
}

// Local is an in-process keyed mutex. Waiters respect context cancellation.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) Acquire(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.unref(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, s)
		return nil, fmt.Errorf("acquiring lock %q: %w", key, ctx.Err())
	}
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// held reports how many keys currently have holders or waiters.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
