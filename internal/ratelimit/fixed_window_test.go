package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestFixedWindowLimiterAllowsWithinQuota(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redisSrv.Addr(), "", "test:ratelimit", 2, time.Second)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	if !limiter.Allow("user-1") {
		t.Fatalf("first request should pass")
	}
	if !limiter.Allow("user-1") {
		t.Fatalf("second request should pass")
	}
	if limiter.Allow("user-1") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow("user-2") {
		t.Fatalf("independent key should pass")
	}
}

func TestFixedWindowLimiterFailsClosed(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redisSrv.Addr(), "", "test:ratelimit", 1, time.Second)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	redisSrv.Close()
	if limiter.Allow("user-1") {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterRequiresRedisAddr(t *testing.T) {
	if limiter, err := NewRedisFixedWindowLimiter("", "", "test:ratelimit", 1, time.Second); err == nil || limiter != nil {
		t.Fatalf("expected constructor error for empty redis addr")
	}
}
