package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tally/internal/cache"
	"tally/internal/ledger"
	"tally/internal/middleware/ratelimit"
	"tally/internal/middleware/trace"
	"tally/internal/services"
	appweb "tally/web"
)

// overviewCacheKey is the single key for the rendered session overview.
const overviewCacheKey = "session"

// Options tunes the presentation-layer plumbing around the ledger.
type Options struct {
	RateLimitPerMinute int
	OverviewCacheSize  int
	OverviewCacheTTL   time.Duration
}

// DefaultOptions returns the settings used when no configuration is supplied.
func DefaultOptions() Options {
	return Options{
		RateLimitPerMinute: 60,
		OverviewCacheSize:  16,
		OverviewCacheTTL:   5 * time.Minute,
	}
}

type Server struct {
	http.Server
	templates *template.Template

	writer   ledger.TransactionWriter
	remover  ledger.TransactionRemover
	overview *services.OverviewBuilder

	limiter *ratelimit.Limiter

	// Cache for the rendered overview partial, invalidated on every
	// mutation so consumers always observe post-mutation aggregates.
	overviewCache *cache.LRU[[]byte]

	stopCacheSweep chan struct{}
	shutdownOnce   sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, w ledger.TransactionWriter, rm ledger.TransactionRemover, ov *services.OverviewBuilder, opts Options) *Server {
	if opts.RateLimitPerMinute <= 0 {
		opts = DefaultOptions()
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr: addr,
		},
		writer:         w,
		remover:        rm,
		overview:       ov,
		limiter:        ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		overviewCache:  cache.NewLRU[[]byte](opts.OverviewCacheSize, opts.OverviewCacheTTL),
		stopCacheSweep: make(chan struct{}),
	}

	go s.startCacheSweep()

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Tiny cache for static assets
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/transactions", s.withSecurityHeaders(s.handleCreateTransaction))
	mux.HandleFunc("/transactions/delete", s.withSecurityHeaders(s.handleDeleteTransaction))
	// UI partials
	mux.HandleFunc("/ui/overview", s.withSecurityHeaders(s.handleOverview))

	s.Handler = trace.NewMiddleware(clientIP).Middleware(mux)

	return s
}

// withSecurityHeaders adds security headers and rate limiting on mutating
// requests. Request logging lives in the trace middleware.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if (r.Method == http.MethodPost || r.Method == http.MethodDelete) && !s.limiter.Allow(clientIP(r)) {
			slog.WarnContext(r.Context(), "Rate limit exceeded", "client_ip", clientIP(r), "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next(w, r)
	}
}

// clientIP extracts the client address, considering proxies.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// startCacheSweep runs periodic cleanup for the overview cache.
func (s *Server) startCacheSweep() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.overviewCache.SweepExpired(); n > 0 {
				slog.Debug("Overview cache sweep completed", "entries_removed", n)
			}
		case <-s.stopCacheSweep:
			return
		}
	}
}

// invalidateOverview drops the cached overview partial after a mutation.
func (s *Server) invalidateOverview() {
	s.overviewCache.Delete(overviewCacheKey)
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		close(s.stopCacheSweep)
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	data := struct {
		Day   int
		Month int
		Year  int
	}{
		Day:   now.Day(),
		Month: int(now.Month()),
		Year:  now.Year(),
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
