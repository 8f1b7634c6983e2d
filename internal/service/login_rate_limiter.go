package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginRateLimiter limita los intentos de login fallidos por clave (IP del cliente).
// Allow solo consulta; RecordFailure registra un intento fallido.
type LoginRateLimiter interface {
	Allow(key string) bool
	RecordFailure(key string)
}

type loginRateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	failures  map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewLoginRateLimiter crea un rate limiter en memoria con ventana deslizante.
func NewLoginRateLimiter(window time.Duration, max int) LoginRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &loginRateLimiter{
		window:   window,
		max:      max,
		failures: make(map[string][]time.Time),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (l *loginRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweep(now)
	return len(l.prune(key, now)) < l.max
}

func (l *loginRateLimiter) RecordFailure(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweep(now)
	l.failures[key] = append(l.prune(key, now), now)
}

// prune descarta los fallos fuera de la ventana y borra la clave si queda vacía.
func (l *loginRateLimiter) prune(key string, now time.Time) []time.Time {
	entries, ok := l.failures[key]
	if !ok {
		return nil
	}
	cutoff := now.Add(-l.window)
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.failures, key)
		return nil
	}
	l.failures[key] = kept
	return kept
}

// sweep recorre todas las claves como mucho una vez por ventana, para que
// las IPs que no vuelven no queden en memoria.
func (l *loginRateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key := range l.failures {
		l.prune(key, now)
	}
}

const redisLoginFailureScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisLimiterClient interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

type redisLoginRateLimiter struct {
	client redisLimiterClient
	window time.Duration
	max    int
	prefix string
}

func NewRedisLoginRateLimiter(client *redis.Client, window time.Duration, max int) LoginRateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisLoginRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "login:rl:",
	}
}

func (l *redisLoginRateLimiter) key(raw string) string {
	normalizedKey := strings.ToLower(strings.TrimSpace(raw))
	if normalizedKey == "" {
		normalizedKey = "unknown"
	}
	return l.prefix + normalizedKey
}

// Allow lee el contador de fallos de la ventana fija. Si Redis falla, deja pasar.
func (l *redisLoginRateLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	// redis.Nil (sin fallos en la ventana) y errores de conexión dejan pasar.
	count, err := l.client.Get(ctx, l.key(key)).Int()
	if err != nil {
		return true
	}
	return count < l.max
}

// RecordFailure incrementa el contador y fija el TTL en el primer fallo de la ventana.
func (l *redisLoginRateLimiter) RecordFailure(key string) {
	if l == nil || l.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	_ = l.client.Eval(ctx, redisLoginFailureScript, []string{l.key(key)}, seconds).Err()
}
