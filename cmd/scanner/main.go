package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"idscan/internal/capture"
	"idscan/internal/config"
	"idscan/internal/connectivity"
	"idscan/internal/recognizer"
	"idscan/internal/scanner"
	"idscan/internal/server"
	"idscan/internal/session"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("scanner failed: %v", err)
	}
}

func run(cfg config.App) error {
	store, err := session.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if store.Active() {
		log.Printf("restored session %q with %d record(s)", store.Slot(), store.Count())
	}

	verifier := recognizer.New(cfg.RecognizerURL, cfg.RecognizerAPIKey, cfg.RecognizerModel,
		cfg.Institution, cfg.MinConfidence, cfg.RecognizerTimeout, cfg.RecognizerSkip)

	var source capture.Source
	if cfg.CaptureSource == "dir" {
		source = capture.NewDirSource(cfg.CaptureDir)
	} else {
		source = capture.NewHTTPSource(cfg.CaptureURL)
	}

	monitor := connectivity.NewMonitor(cfg.ProbeAddr, cfg.ProbeInterval)

	loop := scanner.New(scanner.Config{
		Interval:       cfg.ScanInterval,
		AcceptedHold:   cfg.AcceptedHold,
		RejectedHold:   cfg.RejectedHold,
		DuplicateHold:  cfg.DuplicateHold,
		CallFailedHold: cfg.CallFailedHold,
	}, source, verifier, store, monitor.Online)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Run(ctx)
	go loop.Run(ctx)

	handler := server.New(store, loop, monitor, verifier)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler.Router(cfg.RateLimitPerMin),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}

	log.Println("scanner exited")
	return nil
}
