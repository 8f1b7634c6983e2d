package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisLimiterClient struct {
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	lastGetKey string
	count      string
	getErr     error
	evalErr    error
	evalCalls  int
}

func (m *mockRedisLimiterClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.evalCalls++
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.evalErr != nil {
		cmd.SetErr(m.evalErr)
		return cmd
	}
	cmd.SetVal(int64(1))
	return cmd
}

func (m *mockRedisLimiterClient) Get(ctx context.Context, key string) *redis.StringCmd {
	m.lastGetKey = key
	cmd := redis.NewStringCmd(ctx)
	if m.getErr != nil {
		cmd.SetErr(m.getErr)
		return cmd
	}
	cmd.SetVal(m.count)
	return cmd
}

// fakeClock permite avanzar el tiempo del limiter sin dormir.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(window time.Duration, max int) (*loginRateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLoginRateLimiter(window, max).(*loginRateLimiter)
	l.now = clock.now
	return l, clock
}

func TestLoginRateLimiter_SlidingWindow(t *testing.T) {
	l, clock := newTestLimiter(time.Minute, 2)

	l.RecordFailure("10.0.0.1")
	if !l.Allow("10.0.0.1") {
		t.Fatalf("expected attempt after one failure to pass")
	}
	l.RecordFailure("10.0.0.1")
	if l.Allow("10.0.0.1") {
		t.Fatalf("expected attempt after two failures to be limited")
	}
	if !l.Allow("10.0.0.2") {
		t.Fatalf("expected independent keys")
	}

	clock.advance(61 * time.Second)
	if !l.Allow("10.0.0.1") {
		t.Fatalf("expected window to slide")
	}
}

func TestLoginRateLimiter_AllowDoesNotCount(t *testing.T) {
	l, _ := newTestLimiter(time.Minute, 2)

	for i := 0; i < 100; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("check %d: expected allow without recorded failures", i)
		}
	}
	if len(l.failures) != 0 {
		t.Fatalf("expected Allow to leave no entries, got %d keys", len(l.failures))
	}
}

func TestLoginRateLimiter_ForgetsIdleKeys(t *testing.T) {
	l, clock := newTestLimiter(time.Minute, 3)

	for i := 0; i < 1000; i++ {
		l.RecordFailure(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}
	if len(l.failures) != 1000 {
		t.Fatalf("expected 1000 tracked keys, got %d", len(l.failures))
	}

	clock.advance(2 * time.Minute)
	l.Allow("192.168.1.1")
	if len(l.failures) != 0 {
		t.Fatalf("expected expired keys to be swept, got %d", len(l.failures))
	}
}

func TestLoginRateLimiter_PruneDeletesEmptyKey(t *testing.T) {
	l, clock := newTestLimiter(time.Minute, 3)

	l.RecordFailure("10.0.0.1")
	clock.advance(30 * time.Second)
	l.RecordFailure("10.0.0.2")
	clock.advance(45 * time.Second)

	// 10.0.0.1 vence aquí; la barrida todavía no corresponde.
	l.lastSweep = clock.now()
	l.Allow("10.0.0.1")
	if _, ok := l.failures["10.0.0.1"]; ok {
		t.Fatalf("expected expired key to be deleted on access")
	}
	if _, ok := l.failures["10.0.0.2"]; !ok {
		t.Fatalf("expected live key to be kept")
	}
}

func TestRedisLoginRateLimiter(t *testing.T) {
	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisLoginRateLimiter
		if !l.Allow("10.0.0.1") {
			t.Fatalf("expected fail-open for nil limiter")
		}
		l.RecordFailure("10.0.0.1")
	})

	t.Run("allow when no failures recorded", func(t *testing.T) {
		mock := &mockRedisLimiterClient{getErr: redis.Nil}
		l := &redisLoginRateLimiter{client: mock, window: time.Minute, max: 3, prefix: "login:rl:"}
		if !l.Allow(" 10.0.0.1 ") {
			t.Fatalf("expected allow when key is missing")
		}
		if mock.lastGetKey != "login:rl:10.0.0.1" {
			t.Fatalf("unexpected key normalization, got %q", mock.lastGetKey)
		}
		if mock.evalCalls != 0 {
			t.Fatalf("expected Allow not to increment the counter")
		}
	})

	t.Run("allow when failures below max", func(t *testing.T) {
		l := &redisLoginRateLimiter{client: &mockRedisLimiterClient{count: "2"}, window: time.Minute, max: 3, prefix: "login:rl:"}
		if !l.Allow("10.0.0.1") {
			t.Fatalf("expected allow when failures < max")
		}
	})

	t.Run("deny when failures reach max", func(t *testing.T) {
		l := &redisLoginRateLimiter{client: &mockRedisLimiterClient{count: "3"}, window: time.Minute, max: 3, prefix: "login:rl:"}
		if l.Allow("10.0.0.1") {
			t.Fatalf("expected deny when failures >= max")
		}
	})

	t.Run("redis error fail-open", func(t *testing.T) {
		l := &redisLoginRateLimiter{client: &mockRedisLimiterClient{getErr: errors.New("redis down")}, window: time.Minute, max: 3, prefix: "login:rl:"}
		if !l.Allow("10.0.0.1") {
			t.Fatalf("expected fail-open on redis errors")
		}
	})

	t.Run("record failure runs the script with window ttl", func(t *testing.T) {
		mock := &mockRedisLimiterClient{}
		l := &redisLoginRateLimiter{client: mock, window: 2 * time.Minute, max: 3, prefix: "login:rl:"}
		l.RecordFailure("  ")
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "login:rl:unknown" {
			t.Fatalf("unexpected key for empty client, got %+v", mock.lastKeys)
		}
		if len(mock.lastArgs) != 1 || mock.lastArgs[0] != 120 {
			t.Fatalf("expected TTL seconds=120, got %+v", mock.lastArgs)
		}
		if mock.lastScript != redisLoginFailureScript {
			t.Fatalf("expected script to match")
		}
	})
}
