// Package server exposes the Fetcharr HTTP API.
package server

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fetcharr/internal/cache"
	"fetcharr/internal/domain/consts"
	"fetcharr/internal/fetch"
	"fetcharr/internal/jobs"
	"fetcharr/internal/repo"
	"fetcharr/internal/utils/logging"
)

var (
	mgr      *jobs.Manager
	sessions *repo.SessionStore
	engine   fetch.Engine

	infoCache   = cache.New(consts.InfoCacheTTL, consts.CacheMaxEntries)
	searchCache = cache.New(consts.SearchCacheTTL, consts.CacheMaxEntries)

	startTime      time.Time
	requestCounter atomic.Int64
	cleanupEveryN  int64 = consts.DefaultCleanupEveryN
)

// Deps are the collaborators injected into the router.
type Deps struct {
	Manager  *jobs.Manager
	Sessions *repo.SessionStore
	Engine   fetch.Engine

	// CleanupEveryN triggers retention cleanup once per N inbound requests.
	CleanupEveryN int
}

// NewRouter returns the Fetcharr HTTP handler.
func NewRouter(d Deps) http.Handler {
	// Inject collaborators
	mgr = d.Manager
	sessions = d.Sessions
	engine = d.Engine
	if d.CleanupEveryN > 0 {
		cleanupEveryN = int64(d.CleanupEveryN)
	}
	startTime = time.Now()

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cleanupMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Route("/downloads", func(r chi.Router) {
			r.Post("/", handleStartDownload)
			r.Post("/batch", handleBatchDownload)
			r.Get("/", handleMyDownloads)
			r.Get("/{id}", handleGetDownload)
			r.Get("/{id}/file", handleDownloadFile)
			r.Post("/{id}/cancel", handleCancelDownload)
			r.Post("/{id}/retry", handleRetryDownload)
			r.Delete("/{id}", handleClearDownload)
		})

		r.Post("/info", handleVideoInfo)
		r.Post("/search", handleSearch)
		r.Get("/stats", handleStats)
		r.Get("/options", handleOptions)
		r.Get("/history/export", handleExportHistory)
		r.Delete("/history", handleClearHistory)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/directory", handleGetDirectory)
			r.Post("/directory", handleSetDirectory)
			r.Post("/rate-limit", handleSetRateLimit)
		})
	})

	return r
}

// requestLogger logs each request at debug verbosity.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.D(1, "%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

// cleanupMiddleware piggybacks retention cleanup and cache purging on every
// Nth inbound request.
func cleanupMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n := requestCounter.Add(1); n%cleanupEveryN == 0 {
			mgr.CleanupExpired()
			infoCache.PurgeExpired()
			searchCache.PurgeExpired()
		}
		next.ServeHTTP(w, r)
	})
}
