package security

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// Block reasons reported to the OnBlock hook
const (
	ReasonRateLimit = "rate_limit"
	ReasonBot       = "bot"
)

var botSignatures = []string{
	"bot",
	"crawler",
	"spider",
	"scrapy",
	"curl/",
	"wget/",
	"python-requests",
	"go-http-client",
	"headlesschrome",
}

// Gate sits in front of every route, rejecting automated clients and
// clients over their rate limit. It fails open: if a check panics the
// request is let through.
type Gate struct {
	limiter *RateLimiter
	// OnBlock, when set, is called with the reason for every rejected request.
	OnBlock func(reason string)
	// AllowedAgents are user agent substrings exempt from bot detection.
	AllowedAgents []string
}

// NewGate creates a gate backed by limiter. A nil limiter disables rate limiting.
func NewGate(limiter *RateLimiter) *Gate {
	return &Gate{limiter: limiter}
}

// Middleware wraps next with the gate's checks
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, reason := g.check(r)
		if status == http.StatusOK {
			next.ServeHTTP(w, r)
			return
		}

		if g.OnBlock != nil {
			g.OnBlock(reason)
		}
		slog.Warn("Request blocked", "reason", reason, "ip", GetClientIP(r), "path", r.URL.Path)

		kind, message := "Forbidden", "Access denied"
		if status == http.StatusTooManyRequests {
			kind, message = "TooManyRequests", "Too many requests, please try again later"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": message})
	})
}

func (g *Gate) check(r *http.Request) (status int, reason string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Security gate failed, allowing request", "panic", rec)
			status, reason = http.StatusOK, ""
		}
	}()

	if g.isBot(r.UserAgent()) {
		return http.StatusForbidden, ReasonBot
	}
	if g.limiter != nil && !g.limiter.Allow(GetClientIP(r)) {
		return http.StatusTooManyRequests, ReasonRateLimit
	}
	return http.StatusOK, ""
}

func (g *Gate) isBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, allowed := range g.AllowedAgents {
		if allowed != "" && strings.Contains(ua, strings.ToLower(allowed)) {
			return false
		}
	}
	for _, sig := range botSignatures {
		if strings.Contains(ua, sig) {
			return true
		}
	}
	return false
}
