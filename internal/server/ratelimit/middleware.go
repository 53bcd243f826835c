// Provides the HTTP middleware enforcing the write limit.

package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/maruel/localcrm/internal/server/reqctx"
)

// WriteHeaders writes rate limit headers to the response.
func WriteHeaders(w http.ResponseWriter, result Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if !result.Allowed {
		h.Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
	}
}

// IsWrite reports whether method modifies state.
func IsWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Middleware limits write requests per client IP. Reads pass through untouched.
// Rejected requests are answered by reject, which must write the response.
//
// A nil limiter disables limiting.
func Middleware(l *Limiter, reject func(http.ResponseWriter, *http.Request, Result), next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsWrite(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		res := l.Allow("ip:" + reqctx.GetClientIP(r) + ":write")
		WriteHeaders(w, res)
		if !res.Allowed {
			reject(w, r, res)
			return
		}
		next.ServeHTTP(w, r)
	})
}
