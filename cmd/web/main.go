package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"thirdcoast.systems/contentdna/cmd/web/internal/web"
	"thirdcoast.systems/contentdna/internal/application"
	"thirdcoast.systems/contentdna/internal/config"
	"thirdcoast.systems/contentdna/internal/db"
)

func setupLogger(conf *config.Config) {
	opts := &slog.HandlerOptions{Level: conf.SlogLevel()}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if conf.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	slog.Info("Starting web service")

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogger(conf)

	pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	dbc, err := db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		slog.Error("failed to create database connection", "error", err)
		os.Exit(1)
	}
	defer dbc.Close()

	if err := dbc.Migrate(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	clients, err := application.NewClients(ctx, *conf)
	if err != nil {
		slog.Error("failed to create provider clients", "error", err)
		os.Exit(1)
	}

	if conf.Fetcher.UpdateOnStart {
		if err := clients.Fetcher.SelfUpdate(ctx); err != nil {
			slog.Warn("yt-dlp update failed", "error", err)
		}
	}

	store := dbc.Store()
	registry := clients.NewRegistry(store, *conf)
	if n, err := registry.Resume(ctx); err != nil {
		slog.Error("failed to resume video jobs", "error", err)
	} else if n > 0 {
		slog.Info("Resumed video jobs", "count", n)
	}

	orchestrator := clients.NewOrchestrator(store, registry, *conf)

	e, err := web.NewWebserver(orchestrator, registry, clients.Blobs, web.Options{
		MaxRequestBody: conf.MaxRequestBody,
	})
	if err != nil {
		slog.Error("failed to create webserver", "error", err)
		os.Exit(1)
	}

	addr := ":" + strconv.Itoa(conf.WebServerPort)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
		if err := registry.Shutdown(shutdownCtx); err != nil {
			slog.Warn("video job pollers did not stop in time", "error", err)
		}
	}()

	slog.Info("Listening", "addr", addr)
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		stop()
		<-stopped
		os.Exit(1)
	}
	<-stopped
	slog.Info("Web service stopped")
}
