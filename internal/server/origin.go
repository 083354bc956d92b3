package server

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// OriginPolicy decides which request origins may open a WebSocket or make
// cross-origin requests. A "*" entry allows every origin, including
// requests that carry no Origin header at all.
type OriginPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
	logger   *zap.Logger
}

// NewOriginPolicy builds a policy from a configured origin list. Invalid
// entries are logged and skipped.
func NewOriginPolicy(origins []string, logger *zap.Logger) *OriginPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &OriginPolicy{
		allowed: make(map[string]struct{}, len(origins)),
		logger:  logger,
	}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}

		if trimmed == "*" {
			p.allowAll = true
			continue
		}

		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			logger.Warn("ignoring invalid origin in configuration", zap.String("origin", origin))
			continue
		}
		p.allowed[normalized] = struct{}{}
	}

	return p
}

// AllowAll reports whether the policy accepts any origin.
func (p *OriginPolicy) AllowAll() bool {
	return p.allowAll
}

// Allowed reports whether the given Origin header value is acceptable.
func (p *OriginPolicy) Allowed(origin string) bool {
	if p.allowAll {
		return true
	}

	if origin == "" {
		return false
	}

	normalized, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}

	_, exists := p.allowed[normalized]
	return exists
}

// CheckOrigin satisfies websocket.Upgrader.CheckOrigin.
func (p *OriginPolicy) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if p.Allowed(origin) {
		return true
	}

	p.logger.Info("blocked websocket connection from disallowed origin", zap.String("origin", origin))
	return false
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	normalized := strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)
	return normalized, true
}
