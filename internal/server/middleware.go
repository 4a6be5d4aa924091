package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/conneroisu/contactform/internal/logging"
	"github.com/conneroisu/contactform/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const contentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; " +
	"style-src 'self' 'unsafe-inline'; connect-src 'self' ws: wss:; object-src 'none'; " +
	"frame-ancestors 'none'; base-uri 'self'; form-action 'self'"

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(securityHeaders)

	r.Get("/", s.handleIndex)
	r.With(s.checkOrigin).Post("/", s.handleFormSubmit)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.With(s.checkOrigin).Post("/field", s.handleField)
		r.With(s.checkOrigin).Post("/submit", s.handleSubmit)
	})

	r.Get("/ws", s.ws.ServeHTTP)
	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(s.registry))

	return r
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

// checkOrigin rejects state-changing requests sent by a browser from a page
// this server did not serve. Requests without Origin or Referer come from
// non-browser clients and pass.
func (s *Server) checkOrigin(next http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(s.cfg.Server.AllowedOrigins))
	for _, o := range s.cfg.Server.AllowedOrigins {
		allowed[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			if ref, err := url.Parse(r.Header.Get("Referer")); err == nil && ref.Host != "" {
				origin = ref.Scheme + "://" + ref.Host
			}
		}

		if origin != "" {
			u, err := url.Parse(origin)
			_, listed := allowed[strings.ToLower(origin)]
			if err != nil || (!listed && !strings.EqualFold(u.Host, r.Host)) {
				s.logger.Warn(r.Context(), nil, "Rejected cross-origin request",
					"origin", logging.SanitizeForLog(origin),
					"path", r.URL.Path,
					"request_id", middleware.GetReqID(r.Context()))
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
