// Package accesslog provides a middleware that records every RESTful API call in a log message.
package accesslog

import (
	"net/http"
	"time"

	"github.com/KretovDmitry/bistro/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestIDHeader is echoed back to the client and reused when the client sends it.
const RequestIDHeader = "X-Request-ID"

// Handler returns a middleware that records an access log message for every HTTP request being processed.
func Handler(l logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		f := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := logger.WithRequestID(r.Context(), id)
			r = r.WithContext(ctx)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			l.With(ctx, "duration", time.Since(start).Milliseconds(), "status", status).
				Infof("%s %s %s %d %d", r.Method, r.URL.Path, r.Proto, status, ww.BytesWritten())
		}
		return http.HandlerFunc(f)
	}
}
