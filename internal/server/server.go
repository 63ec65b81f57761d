// Package server exposes AR sessions over HTTP and WebSocket. The browser
// forwards pointer and touch events; the server answers with transform
// state, CSS layer styles, camera status and snapshot downloads.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ar-tryon/internal/arsession"
	"ar-tryon/internal/artwork"
	"ar-tryon/internal/logger"
	"ar-tryon/internal/metrics"
)

// Options configures a Server.
type Options struct {
	// CORSOrigins lists allowed origins; empty allows any.
	CORSOrigins []string
	Logger      *zap.Logger
	// SnapshotRate and SnapshotBurst bound exports per session; zero
	// picks the defaults.
	SnapshotRate  float64
	SnapshotBurst int
	// AttachTimeout closes a session whose socket has not connected in
	// time; zero picks DefaultAttachTimeout.
	AttachTimeout time.Duration
}

// Server holds the HTTP handlers.
type Server struct {
	catalog  artwork.Catalog
	sessions *arsession.Registry
	origins  []string
	log      *zap.Logger
	exports  *exportLimiter
	attach   *attachWatch
	upgrader websocket.Upgrader
}

// New creates a Server over catalog and sessions.
func New(catalog artwork.Catalog, sessions *arsession.Registry, opts Options) *Server {
	s := &Server{
		catalog:  catalog,
		sessions: sessions,
		origins:  opts.CORSOrigins,
		log:      logger.OrNop(opts.Logger).Named("http"),
		exports:  newExportLimiter(opts.SnapshotRate, opts.SnapshotBurst),
		attach:   newAttachWatch(opts.AttachTimeout),
	}
	sessions.OnRemove(s.forget)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return s.allowOrigin(r.Header.Get("Origin")) },
	}
	return s
}

// Router returns the routed handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(metrics.Instrument)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/health", s.health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/paintings", s.listPaintings)
		r.Get("/paintings/{id}", s.getPainting)

		r.Route("/ar/sessions", func(r chi.Router) {
			r.Post("/", s.openSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Delete("/", s.closeSession)
				r.Get("/ws", s.serveWS)
				r.Get("/snapshot", s.snapshot)
				r.Get("/preview", s.preview)
			})
		})
	})
	return r
}

// forget releases per-session server state once the session is gone.
func (s *Server) forget(id string) {
	s.exports.Forget(id)
	s.attach.Attached(id)
}

func (s *Server) allowOrigin(origin string) bool {
	if origin == "" || len(s.origins) == 0 {
		return true
	}
	for _, o := range s.origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.allowOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		} else if len(s.origins) == 0 {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request, at warn for 4xx and error for 5xx.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int("body_size", ww.BytesWritten()),
		}
		switch {
		case status >= 500:
			s.log.Error("request", fields...)
		case status >= 400:
			s.log.Warn("request", fields...)
		default:
			s.log.Debug("request", fields...)
		}
	})
}
