package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-dashboard/types"
)

// Settings is the subset of the api config the middleware stack reads.
type Settings struct {
	CorsOrigins             []string
	AuthSecret              string
	RequireAuth             bool
	DefaultRateLimit        uint
	DefaultRateLimitBurst   uint
	DisableDefaultRateLimit bool
	WhitelistedIPs          []string
	ProxyCount              uint
}

func SettingsFromConfig(cfg *types.Config) *Settings {
	return &Settings{
		CorsOrigins:             cfg.Api.CorsOrigins,
		AuthSecret:              cfg.Api.AuthSecret,
		RequireAuth:             cfg.Api.RequireAuth,
		DefaultRateLimit:        cfg.Api.DefaultRateLimit,
		DefaultRateLimitBurst:   cfg.Api.DefaultRateLimitBurst,
		DisableDefaultRateLimit: cfg.Api.DisableDefaultRateLimit,
		WhitelistedIPs:          cfg.Api.WhitelistedIPs,
		ProxyCount:              cfg.Api.ProxyCount,
	}
}

// APIErrorResponse writes the error envelope used by all api endpoints.
func APIErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]string{
		"status": message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logrus.WithError(err).Error("failed to encode API error response")
	}
}

// GetClientIP returns the client address, skipping proxyCount trusted proxies in X-Forwarded-For.
func GetClientIP(r *http.Request, proxyCount uint) string {
	if proxyCount > 0 {
		forwardIps := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
		forwardIdx := len(forwardIps) - int(proxyCount)
		if forwardIdx >= 0 {
			if ip := strings.TrimSpace(forwardIps[forwardIdx]); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
