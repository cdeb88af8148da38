package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"microfe/pkg/bus"
	gos3 "microfe/pkg/s3"
	"microfe/pkg/telemetry"
	"microfe/services/api"
	"microfe/services/compiler"
	"microfe/services/registry"
	"microfe/services/renderer"
	"microfe/services/uploader"
)

func main() {
	if err := run("registryd"); err != nil {
		log.New(os.Stderr, "", log.LstdFlags).Fatal(err)
	}
}

func run(serviceName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "%s: telemetry shutdown error: %v\n", serviceName, err)
		}
	}()

	cfg, err := api.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := registry.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	if cfg.CDNBucket != "" {
		s3Client, err := gos3.NewClientFromEnv()
		if err != nil {
			return fmt.Errorf("init s3 mirror: %w", err)
		}
		store.WithMirror(s3Client, cfg.CDNBucket)
	}

	runtime, err := compiler.NewRuntime(cfg.RuntimeCommand)
	if err != nil {
		return fmt.Errorf("start js runtime: %w", err)
	}
	defer runtime.Stop()

	var events *bus.Bus
	if cfg.NATSURL != "" {
		events, err = bus.New(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect event bus: %w", err)
		}
		defer events.Close()
	}

	uploads := uploader.New(store, compiler.New(runtime, store), events)
	renders := renderer.New(runtime)

	service, err := api.New(store, uploads, renders, cfg, tel.Logger)
	if err != nil {
		return fmt.Errorf("init api: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc("/readyz", readyHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", service.Routes())

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: tel.Middleware(mux),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "%s: server shutdown error: %v\n", serviceName, err)
		}
	}()

	tel.Logger.Printf("INFO listening on %s", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		tel.Logger.Printf("ERROR server failed: %v", err)
		return err
	}

	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
