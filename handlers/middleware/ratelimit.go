package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type rateLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits api calls per client ip, or per token for authenticated calls.
type RateLimiter struct {
	settings         *Settings
	logger           logrus.FieldLogger
	costs            *CallCosts
	mutex            sync.Mutex
	limiters         map[string]*rateLimitEntry
	whitelistedIPs   map[string]bool
	whitelistedCIDRs []*net.IPNet
	cleanupTicker    *time.Ticker
	stopChan         chan struct{}
}

func NewRateLimiter(settings *Settings, costs *CallCosts, logger logrus.FieldLogger) *RateLimiter {
	if costs == nil {
		costs = NewCallCosts()
	}

	limiter := &RateLimiter{
		settings:       settings,
		logger:         logger.WithField("module", "api-ratelimit"),
		costs:          costs,
		limiters:       map[string]*rateLimitEntry{},
		whitelistedIPs: map[string]bool{},
		cleanupTicker:  time.NewTicker(5 * time.Minute),
		stopChan:       make(chan struct{}),
	}

	for _, entry := range settings.WhitelistedIPs {
		if _, ipNet, err := net.ParseCIDR(entry); err == nil {
			limiter.whitelistedCIDRs = append(limiter.whitelistedCIDRs, ipNet)
		} else if ip := net.ParseIP(entry); ip != nil {
			limiter.whitelistedIPs[ip.String()] = true
		} else {
			limiter.logger.WithField("entry", entry).Warn("invalid IP/CIDR in whitelist, ignoring")
		}
	}

	go limiter.cleanupLoop()

	return limiter
}

func (m *RateLimiter) Stop() {
	m.cleanupTicker.Stop()
	close(m.stopChan)
}

func (m *RateLimiter) cleanupLoop() {
	for {
		select {
		case <-m.stopChan:
			return
		case <-m.cleanupTicker.C:
			m.cleanup(time.Now().Add(-10 * time.Minute))
		}
	}
}

func (m *RateLimiter) cleanup(cutoff time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for key, entry := range m.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(m.limiters, key)
		}
	}
}

func (m *RateLimiter) isWhitelisted(ip string) bool {
	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}
	if m.whitelistedIPs[clientIP.String()] {
		return true
	}
	for _, ipNet := range m.whitelistedCIDRs {
		if ipNet.Contains(clientIP) {
			return true
		}
	}
	return false
}

// getLimiter returns the limiter for key. limit is per minute.
func (m *RateLimiter) getLimiter(key string, limit uint, burst uint) *rate.Limiter {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if burst == 0 {
		burst = 10
	}

	entry, exists := m.limiters[key]
	if !exists {
		entry = &rateLimitEntry{
			limiter: rate.NewLimiter(rate.Limit(limit)/60, int(burst)),
		}
		m.limiters[key] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter
}

func (m *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := GetClientIP(r, m.settings.ProxyCount)

		limit := m.settings.DefaultRateLimit
		burst := m.settings.DefaultRateLimitBurst
		key := fmt.Sprintf("ip:%s", clientIP)
		enforce := !m.settings.DisableDefaultRateLimit

		if tokenInfo := GetTokenInfo(r); tokenInfo != nil {
			// token limits apply even when the default limit is disabled
			limit = tokenInfo.RateLimit
			burst = tokenInfo.RateLimit
			key = fmt.Sprintf("token:%s", tokenInfo.Name)
			enforce = true
		}

		if !enforce || limit == 0 || m.isWhitelisted(clientIP) {
			next.ServeHTTP(w, r)
			return
		}

		limiter := m.getLimiter(key, limit, burst)
		resetTime := strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10)
		w.Header().Set("X-RateLimit-Limit", strconv.FormatUint(uint64(limit), 10))
		w.Header().Set("X-RateLimit-Reset", resetTime)

		cost := m.costs.Get(r)
		if !limiter.AllowN(time.Now(), cost) {
			w.Header().Set("X-RateLimit-Remaining", "0")
			m.logger.WithFields(logrus.Fields{
				"client_ip":      clientIP,
				"rate_limit_key": key,
				"rate_limit":     limit,
				"call_cost":      cost,
			}).Warn("API rate limit exceeded")
			APIErrorResponse(w, http.StatusTooManyRequests, "ERROR: rate limit exceeded")
			return
		}

		remaining := limiter.Tokens()
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatFloat(remaining, 'f', 0, 64))

		next.ServeHTTP(w, r)
	})
}
