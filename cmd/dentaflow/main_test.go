package main

import (
	"context"
	"testing"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/lock"
	"go.uber.org/zap"
)

func TestNewLocker(t *testing.T) {
	tests := []struct {
		backend string
		check   func(lock.Locker) bool
	}{
		{config.LockBackendNone, func(l lock.Locker) bool { _, ok := l.(lock.Noop); return ok }},
		{config.LockBackendLocal, func(l lock.Locker) bool { _, ok := l.(*lock.Local); return ok }},
		{"", func(l lock.Locker) bool { _, ok := l.(*lock.Local); return ok }},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := &config.Config{Scheduling: config.SchedulingConfig{LockBackend: tt.backend}}
			l, closeFn, err := newLocker(context.Background(), cfg, zap.NewNop())
			if err != nil {
				t.Fatal(err)
			}
			if !tt.check(l) {
				t.Errorf("backend %q built %T", tt.backend, l)
			}
			if closeFn == nil {
				t.Fatal("close func must never be nil")
			}
			if err := closeFn(); err != nil {
				t.Errorf("close: %v", err)
			}
		})
	}
}

func TestNewLocker_RedisUnreachable(t *testing.T) {
	cfg := &config.Config{
		Scheduling: config.SchedulingConfig{LockBackend: config.LockBackendRedis},
		Redis:      config.RedisConfig{Addr: "127.0.0.1:1"},
	}
	if _, _, err := newLocker(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected an error when redis cannot be reached")
	}
}
