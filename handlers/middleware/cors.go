package middleware

import (
	"net/http"
	"regexp"
	"strings"
)

type Cors struct {
	patterns []*regexp.Regexp
}

func NewCors(settings *Settings) *Cors {
	cors := &Cors{}
	for _, origin := range settings.CorsOrigins {
		cors.patterns = append(cors.patterns, compileOrigin(origin))
	}
	return cors
}

func compileOrigin(pattern string) *regexp.Regexp {
	if pattern == "*" {
		return regexp.MustCompile(".*")
	}
	quoted := strings.ReplaceAll(regexp.QuoteMeta(pattern), "\\*", ".*")
	return regexp.MustCompile("^" + quoted + "$")
}

func (c *Cors) allowed(origin string) bool {
	for _, pattern := range c.patterns {
		if pattern.MatchString(origin) {
			return true
		}
	}
	return false
}

func (c *Cors) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && c.allowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
