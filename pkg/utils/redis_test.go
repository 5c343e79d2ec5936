package utils

import (
	"context"
	"testing"
	"time"
)

func TestLockReleaseScriptInitialized(t *testing.T) {
	if lockReleaseScript == nil {
		t.Fatalf("expected release script to be initialized")
	}
}

func TestRedisLocker_RejectsInvalidArgs(t *testing.T) {
	var nilLocker *RedisLocker
	if _, _, err := nilLocker.Acquire(context.Background(), "x", "o", time.Second); err == nil {
		t.Fatalf("expected error for nil locker")
	}
	l := NewRedisLocker(nil, "callme:lock:")
	if _, _, err := l.Acquire(context.Background(), "x", "o", time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestRedisConfigDefaults(t *testing.T) {
	c := RedisConfig{}.withDefaults()
	if c.PoolSize <= 0 || c.PingTimeout <= 0 || c.DialTimeout <= 0 {
		t.Fatalf("expected defaults, got %+v", c)
	}
}
