// Provides the middleware applied to every request.

package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/maruel/ksid"

	apierrors "github.com/maruel/localcrm/internal/errors"
	"github.com/maruel/localcrm/internal/server/ratelimit"
	"github.com/maruel/localcrm/internal/server/reqctx"
)

// statusWriter records the status code written by the handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// requestMetadata assigns a request ID, records the client IP in the context and
// logs each request once it completes.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := ksid.NewID()
		ip := reqctx.GetClientIP(r)
		ctx := reqctx.WithRequestID(reqctx.WithClientIP(r.Context(), ip), id)
		w.Header().Set("X-Request-ID", id.String())
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(ctx))
		slog.InfoContext(ctx, "http",
			"rid", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"ip", ip,
			"dur", time.Since(start).Round(time.Microsecond),
		)
	})
}

// rejectRateLimited answers a request that exceeded the write limit: JSON for the API
// and plain text for HTML forms.
func rejectRateLimited(w http.ResponseWriter, r *http.Request, res ratelimit.Result) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(r.Context(), w, apierrors.NewAPIError(http.StatusTooManyRequests, apierrors.ErrTooManyRequests, "rate limit exceeded").
			WithDetail("retry_after", int(res.RetryAfter.Seconds())))
		return
	}
	http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
}

