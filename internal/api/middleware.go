package api

import (
	"net/http"
	"time"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/logger"
	"codeberg.org/mutker/vitalsd/internal/metrics"
	"codeberg.org/mutker/vitalsd/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger logs one debug line per request and counts it by route
// pattern, so path parameters never explode label cardinality.
func requestLogger(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				route := "unmatched"
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}

				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				m.HTTPRequest(route, r.Method, status)

				logger.Debug().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("route", route).
					Int("status", status).
					Int("bytes", ww.BytesWritten()).
					Dur("elapsed", time.Since(start)).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// fatalOnPoison turns a poisoned store into a process exit. Every other
// panic is re-raised for middleware.Recoverer.
func fatalOnPoison(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.HasCode(err, telemetry.ErrStorePoisoned) {
				exit(err)
				return
			}
			panic(rec)
		}()

		next.ServeHTTP(w, r)
	})
}

// exit is replaced in tests.
var exit = func(err error) {
	logger.FatalWithCode(err).Msg("Telemetry store is poisoned, shutting down")
}
