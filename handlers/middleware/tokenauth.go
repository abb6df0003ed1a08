package middleware

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-dashboard/types"
)

type contextKey string

const (
	contextKeyTokenInfo contextKey = "token_info"
)

// TokenAuth authenticates bearer tokens signed with the api auth secret.
type TokenAuth struct {
	settings *Settings
	logger   logrus.FieldLogger
}

func NewTokenAuth(settings *Settings, logger logrus.FieldLogger) *TokenAuth {
	return &TokenAuth{
		settings: settings,
		logger:   logger.WithField("module", "api-auth"),
	}
}

// IssueToken signs a new api token. A zero ttl issues a token without expiry.
func IssueToken(secret string, name string, rateLimit uint, domainPatterns []string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("authentication secret not configured")
	}

	now := time.Now()
	claims := &types.APITokenClaims{
		Name:           name,
		RateLimit:      rateLimit,
		DomainPatterns: domainPatterns,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (m *TokenAuth) authenticateToken(tokenString string) (*types.APITokenInfo, error) {
	if m.settings.AuthSecret == "" {
		return nil, fmt.Errorf("authentication secret not configured")
	}

	claims := &types.APITokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.settings.AuthSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %v", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	tokenInfo := &types.APITokenInfo{
		Name:           claims.Name,
		RateLimit:      claims.RateLimit,
		DomainPatterns: claims.DomainPatterns,
	}
	if claims.IssuedAt != nil {
		tokenInfo.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		tokenInfo.ExpiresAt = &claims.ExpiresAt.Time
	}

	return tokenInfo, nil
}

func matchDomain(requestDomain string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if pattern == requestDomain {
			return true
		}
		if matched, _ := filepath.Match(pattern, requestDomain); matched {
			return true
		}
	}
	return false
}

func (m *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tokenInfo *types.APITokenInfo
		clientIP := GetClientIP(r, m.settings.ProxyCount)

		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				APIErrorResponse(w, http.StatusUnauthorized, "ERROR: invalid authorization header format")
				return
			}

			var err error
			tokenInfo, err = m.authenticateToken(parts[1])
			if err != nil {
				m.logger.WithError(err).WithField("client_ip", clientIP).Warn("API authentication failed")
				APIErrorResponse(w, http.StatusUnauthorized, "ERROR: invalid authentication token")
				return
			}

			if !matchDomain(r.Host, tokenInfo.DomainPatterns) {
				m.logger.WithFields(logrus.Fields{
					"client_ip":      clientIP,
					"token_name":     tokenInfo.Name,
					"request_domain": r.Host,
				}).Warn("API request rejected: domain not allowed for token")
				APIErrorResponse(w, http.StatusForbidden, "ERROR: token not valid for this domain")
				return
			}
		}

		if tokenInfo == nil {
			if m.settings.RequireAuth && r.Method != http.MethodOptions {
				m.logger.WithField("client_ip", clientIP).Warn("API request rejected: authentication required")
				APIErrorResponse(w, http.StatusUnauthorized, "ERROR: authentication required")
				return
			}
		} else {
			r = r.WithContext(context.WithValue(r.Context(), contextKeyTokenInfo, tokenInfo))
		}

		next.ServeHTTP(w, r)
	})
}

// GetTokenInfo returns the authenticated token of the request, if any.
func GetTokenInfo(r *http.Request) *types.APITokenInfo {
	if tokenInfo, ok := r.Context().Value(contextKeyTokenInfo).(*types.APITokenInfo); ok {
		return tokenInfo
	}
	return nil
}
