package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fetcharr/internal/cfg"
	"fetcharr/internal/domain/keys"
	"fetcharr/internal/fetch"
	"fetcharr/internal/jobs"
	"fetcharr/internal/repo"
	"fetcharr/internal/scraper"
	"fetcharr/internal/server"
	"fetcharr/internal/utils/logging"
)

func main() {
	cfg.InitCommands()
	if err := cfg.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !cfg.GetBool(keys.Execute) {
		return // Exit early if not meant to execute (help invoked)
	}

	logging.Setup(cfg.GetInt(keys.DebugLevel), nil)
	logging.I("fetcharr started at: %v", time.Now().Format("2006-01-02 15:04:05 MST"))

	db, err := repo.OpenDB(cfg.GetString(keys.DBPath))
	if err != nil {
		logging.E("Database setup failed: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	engine := fetch.NewYtDLP(cfg.GetString(keys.YtdlpPath))

	mgrCfg := jobs.Config{
		DownloadRoot: cfg.GetString(keys.DownloadDir),
		MaxWorkers:   cfg.GetInt(keys.MaxDownloads),
		Retention:    time.Duration(cfg.GetInt(keys.RetentionHours)) * time.Hour,
		Engine:       engine,
		Preview:      scraper.NewPreviewer().Preview,
	}

	if cfg.GetBool(keys.CookieSource) {
		cookieDir := filepath.Join(filepath.Dir(cfg.GetString(keys.DBPath)), "cookies")
		cookies, err := scraper.NewCookieManager(cookieDir)
		if err != nil {
			logging.W("Browser cookie support disabled: %v", err)
		} else {
			mgrCfg.Cookies = cookies
		}
	}

	mgr, err := jobs.NewManager(mgrCfg)
	if err != nil {
		// The configured root may be unusable (e.g. read-only volume); fall
		// back to a local directory before giving up.
		logging.W("Could not use download directory: %v", err)
		mgrCfg.DownloadRoot = "downloads"
		if mgr, err = jobs.NewManager(mgrCfg); err != nil {
			logging.E("Manager setup failed: %v", err)
			os.Exit(1)
		}
	}
	defer mgr.Shutdown()

	if kb := cfg.GetInt(keys.RateLimitKB); kb > 0 {
		mgr.SetRateLimit(kb)
	}

	handler := server.NewRouter(server.Deps{
		Manager:       mgr,
		Sessions:      repo.NewSessionStore(db),
		Engine:        engine,
		CleanupEveryN: cfg.GetInt(keys.CleanupEveryN),
	})

	addr := ":" + cfg.GetString(keys.Port)
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		logging.S("Fetcharr web server running on http://localhost%s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.E("server failed: %v", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logging.I("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.E("HTTP shutdown error: %v", err)
	}
}
