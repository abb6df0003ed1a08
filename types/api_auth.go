package types

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// APITokenClaims are the JWT claims of an API access token.
type APITokenClaims struct {
	Name           string   `json:"name"`
	RateLimit      uint     `json:"rate_limit,omitempty"`      // requests per minute, 0 = no limit
	DomainPatterns []string `json:"domain_patterns,omitempty"` // allowed request hosts, empty = any
	jwt.RegisteredClaims
}

// APITokenInfo describes the authenticated token of a request.
type APITokenInfo struct {
	Name           string
	RateLimit      uint
	DomainPatterns []string
	ExpiresAt      *time.Time
	IssuedAt       time.Time
}
