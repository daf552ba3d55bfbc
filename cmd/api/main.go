// cmd/api/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appcfg "github.com/aaruvan/tokenchamp/internal/infra/config"
	"github.com/aaruvan/tokenchamp/internal/platform/di"
	"github.com/aaruvan/tokenchamp/internal/platform/scheduler"
)

const shutdownTimeout = 25 * time.Second

func main() {
	ctx := context.Background()

	// .env は任意（Cloud Run では環境変数を直接使う）
	if err := godotenv.Load(); err == nil {
		log.Printf("[boot] loaded .env")
	}

	cfg := appcfg.Load()

	// ─────────────────────────────────────────────────────────────
	// DI container & heavy deps; keep /healthz even on failure
	// ─────────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var (
		cont    *di.Container
		sweeper *scheduler.StallSweeper
	)
	if c, err := di.Build(ctx, cfg, di.Options{WithChain: true}); err != nil {
		log.Printf("[boot] WARN: di init failed: %v (serving /healthz only)", err)
	} else {
		cont = c
		defer cont.Close()

		if cont.Infra.FirebaseAuth == nil {
			log.Printf("[boot] operator auth DISABLED")
		} else {
			log.Printf("[boot] operator auth: %T", cont.Infra.FirebaseAuth)
		}

		mux.Handle("/", cont.Router())

		// 停滞した mint の自動再開
		if cfg.SweepInterval > 0 {
			s, err := scheduler.NewStallSweeper(cont.Dispatcher, cfg.SweepInterval, cfg.StallAfter)
			if err != nil {
				log.Printf("[boot] WARN: sweeper not started: %v", err)
			} else {
				sweeper = s
			}
		} else {
			log.Printf("[boot] sweeper disabled (SWEEP_INTERVAL=0)")
		}
	}

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		// POST /winners/{id}/mint は同期でパイプラインを回す
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// ─────────────────────────────────────────────────────────────
	// Graceful shutdown: HTTP → sweeper → dispatcher drain
	// ─────────────────────────────────────────────────────────────
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		sig := <-c
		log.Printf("[boot] received signal: %v; shutting down...", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[boot] server shutdown error: %v", err)
		}
		if err := sweeper.Shutdown(); err != nil {
			log.Printf("[boot] sweeper shutdown error: %v", err)
		}
		if cont != nil && cont.Dispatcher != nil {
			if err := cont.Dispatcher.Shutdown(shutdownCtx); err != nil {
				// 中断した attempt は lease 失効後に sweeper が再開する
				log.Printf("[boot] dispatcher drain incomplete: %v", err)
			}
		}
		close(idleConnsClosed)
	}()

	log.Printf("[boot] listening on :%s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[boot] server error: %v", err)
	}

	<-idleConnsClosed
	log.Printf("[boot] server stopped")
}
