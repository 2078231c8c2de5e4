package gateway

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// RateLimitMiddleware enforces the sliding-window limiter and stamps every
// response with the RateLimit-* headers spec.md §6 requires, regardless of
// whether the request was allowed.
func (g *Gateway) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := rateLimitKey(r)
		result := g.limiter.Increment(key, 1)

		w.Header().Set("RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		windowSeconds := int(time.Until(result.ResetAt).Round(time.Second).Seconds())
		if windowSeconds < 0 {
			windowSeconds = 0
		}
		w.Header().Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d", result.Limit, windowSeconds))

		if !result.Allowed {
			if g.metrics != nil {
				g.metrics.RecordRateLimit("denied")
			}
			w.Header().Set("Retry-After", strconv.Itoa(windowSeconds))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprintf(w, `{"error":{"message":"rate limit exceeded","type":"rate_limit"}}`)
			return
		}
		if g.metrics != nil {
			g.metrics.RecordRateLimit("allowed")
		}
		next.ServeHTTP(w, r)
	})
}

func rateLimitKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.RemoteAddr
}

// APIKeyMiddleware enforces API_KEY_REQUIRED for the gateway's own routes,
// separate from any provider credentials the upstream adapters hold.
func (g *Gateway) APIKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.config.APIKeyRequired {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" || key != g.config.APIKey {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintf(w, `{"error":{"message":"missing or invalid API key","type":"auth"}}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AdminKeyMiddleware gates admin routes behind the configured admin key,
// returning 403 (not 401) per spec.md's admin route table.
func (g *Gateway) AdminKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Admin-Key")
		if g.config.AdminKey == "" || key != g.config.AdminKey {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprintf(w, `{"error":{"message":"admin key required","type":"auth"}}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}
