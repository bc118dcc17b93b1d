// cmd/web/main.go
//
// Bookshelf – HTTP entry point.
//
// Start-up sequence
// -----------------
//
//  1. Console bootstrap logger, so config errors are visible.
//
//  2. Layered config (conf/.env → conf/global.yaml → BOOKSHELF_* env),
//     vault references resolved.
//
//  3. Daily rotating logger (tees to console when running in a TTY).
//
//  4. Session store backend (memory, file, mysql, sqlite, or redis).
//
//  5. Backend API client, CSRF signer, and view engine.
//
//  6. Browser-session registry and its eviction loop.
//
//  7. chi router behind an http.Server with timeouts; SIGINT/SIGTERM
//     drain in-flight requests before exit.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yanizio/bookshelf/internal/api"
	"github.com/yanizio/bookshelf/internal/config"
	"github.com/yanizio/bookshelf/internal/form"
	"github.com/yanizio/bookshelf/internal/logger"
	"github.com/yanizio/bookshelf/internal/server"
	"github.com/yanizio/bookshelf/internal/store"
	"github.com/yanizio/bookshelf/internal/view"
	"github.com/yanizio/bookshelf/internal/web"
)

const shutdownGrace = 15 * time.Second

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	boot := logger.Bootstrap()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Configuration ───────────────────────────────────────────────
	//
	cfg, err := config.Load(ctx)
	if err != nil {
		boot.Fatalw("config load failed", "err", err)
	}

	log, err := logger.New(cfg.Log.Dir, cfg.Log.Level, runningInTTY())
	if err != nil {
		boot.Fatalw("start logger", "err", err)
	}
	defer func() { _ = log.Sync() }()

	//
	// ── 2.  Session store ───────────────────────────────────────────────
	//
	backend, err := store.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatalw("session store open failed", "driver", cfg.Store.Driver, "err", err)
	}
	defer backend.Close()
	log.Infow("session store online", "driver", cfg.Store.Driver)

	//
	// ── 3.  Backend client, CSRF, views ─────────────────────────────────
	//
	client, err := api.New(cfg.API, nil, log.Named("api"))
	if err != nil {
		log.Fatalw("api client", "err", err)
	}
	csrf, err := form.NewCSRF(cfg.HTTP.CSRFKey)
	if err != nil {
		log.Fatalw("csrf key", "err", err)
	}
	views := view.New(log.Named("view"))

	//
	// ── 4.  Browser-session registry ────────────────────────────────────
	//
	reg := web.NewRegistry(backend, client, cfg.Sessions, log.Named("session"))
	go reg.Run(ctx)

	//
	// ── 5.  HTTP server ─────────────────────────────────────────────────
	//
	streams, closeStreams := context.WithCancel(context.Background())
	router := web.NewRouter(web.Options{
		Registry:     reg,
		Views:        views,
		CSRF:         csrf,
		SecureCookie: cfg.HTTP.SecureCookie,
		ForceHTTPS:   cfg.HTTP.ForceHTTPS,
		Log:          log,
		Done:         streams.Done(),
	})
	srv := server.New(cfg.HTTP.ListenAddr, router)
	srv.RegisterOnShutdown(closeStreams)

	errCh := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", cfg.HTTP.ListenAddr, "api", client.BaseURL().String())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("http server", "err", err)
		}
	case <-ctx.Done():
		log.Infow("shutting down", "grace", shutdownGrace)
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warnw("graceful shutdown incomplete", "err", err)
		}
	}
}
