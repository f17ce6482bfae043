package mcp

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// clientLimiter keeps one token bucket per client address. Loopback clients
// are never limited, and a non-positive rate or burst disables limiting.
type clientLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	rate    float64
	burst   float64
	clients map[string]*bucket
}

type bucket struct {
	tokens float64
	seen   time.Time
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	return &clientLimiter{
		now:     time.Now,
		rate:    rps,
		burst:   float64(burst),
		clients: make(map[string]*bucket),
	}
}

// take spends one token of client's bucket. When the bucket is empty it
// reports false and the time until the next token.
func (l *clientLimiter) take(client string) (bool, time.Duration) {
	if l == nil || l.rate <= 0 || l.burst <= 0 {
		return true, 0
	}
	key, loopback := clientKey(client)
	if key == "" || loopback {
		return true, 0
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.clients[key]
	if !ok {
		b = &bucket{tokens: l.burst, seen: now}
		l.clients[key] = b
	}
	if elapsed := now.Sub(b.seen).Seconds(); elapsed > 0 {
		b.tokens = math.Min(l.burst, b.tokens+elapsed*l.rate)
	}
	b.seen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	return false, time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
}

// forget drops buckets that have been idle for longer than idle.
func (l *clientLimiter) forget(idle time.Duration) {
	if l == nil || idle <= 0 {
		return
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.clients {
		if now.Sub(b.seen) > idle {
			delete(l.clients, key)
		}
	}
}

// retryAfter renders wait as whole seconds for the Retry-After header.
func retryAfter(wait time.Duration) string {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// clientAddress returns the address a request is limited by. X-Forwarded-For
// is only honoured when the direct peer is loopback, i.e. a reverse proxy on
// the same host.
func clientAddress(r *http.Request) string {
	if r == nil {
		return ""
	}
	peer := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if _, loopback := clientKey(peer); loopback {
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		if forwarded := strings.TrimSpace(first); forwarded != "" {
			return forwarded
		}
	}
	return peer
}

// clientKey canonicalizes addr for bucketing and reports whether it is a
// loopback address. Ports, brackets and IPv6 zones are dropped.
func clientKey(addr string) (key string, loopback bool) {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.Trim(addr, "[]")
	if i := strings.IndexByte(addr, '%'); i >= 0 {
		addr = addr[:i]
	}
	if addr == "" {
		return "", false
	}
	if strings.EqualFold(addr, "localhost") {
		return "localhost", true
	}
	if ip := net.ParseIP(addr); ip != nil {
		return ip.String(), ip.IsLoopback()
	}
	return strings.ToLower(addr), false
}
