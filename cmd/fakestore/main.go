package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/joho/godotenv"

	"smartvision/common"
	"smartvision/config"
	"smartvision/fakestore"
	"smartvision/geometry"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file loaded: %v", err)
	}
	cfg := config.Load()

	addr := flag.String("addr", getEnv("FAKE_STORE_ADDR", ":8000"), "Listen address.")
	token := flag.String("token", os.Getenv("FAKE_STORE_CSRF_TOKEN"), "Fixed anti-forgery token, random when empty.")
	flag.Parse()

	if err := common.SetupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	opts := []fakestore.Option{fakestore.WithToken(*token)}
	if ms, err := strconv.Atoi(os.Getenv("FAKE_STORE_LATENCY_MS")); err == nil && ms > 0 {
		opts = append(opts, fakestore.WithLatency(time.Duration(ms)*time.Millisecond))
	}
	if cfg.BoundaryFile != "" {
		b, err := geometry.LoadBoundaryFile(cfg.BoundaryFile)
		if err != nil {
			log.Fatalf("Failed to load boundary: %v", err)
		}
		opts = append(opts, fakestore.WithBoundary(b))
	}

	store := fakestore.New(cfg, opts...)
	defer store.Close()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           store.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Fake store listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Shutting down fake store...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Shutdown failed: %v", err)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
