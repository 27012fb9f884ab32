package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"interviewer/pkg/logx"
)

// NewRouter builds the HTTP router for h. Additional handlers, such as a
// metrics endpoint, are mounted at their paths.
func NewRouter(h *Handler, mounts map[string]http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(chiMiddleware.Recoverer)

	h.RegisterRoutes(r)
	for path, handler := range mounts {
		r.Handle(path, handler)
	}
	return r
}

// requestLogger logs each request through logx at debug level and any
// server error at warn level.
func requestLogger(logger *logx.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				logger.Warn("%s %s -> %d in %v (request %s)", r.Method, r.URL.Path, status,
					time.Since(start), chiMiddleware.GetReqID(r.Context()))
				return
			}
			logger.Debug("%s %s -> %d in %v", r.Method, r.URL.Path, status, time.Since(start))
		})
	}
}
