package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"

	"github.com/tendant/simple-pins/pkg/pinboard/api"
	"github.com/tendant/simple-pins/pkg/pinboard/config"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, release, err := cfg.BuildStore(ctx)
	if err != nil {
		slog.Error("Failed to open content store", "type", cfg.DatabaseType, "err", err)
		os.Exit(1)
	}
	defer release()

	gateway, err := cfg.BuildGateway(ctx, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize asset gateway", "storage", cfg.Storage.Type, "err", err)
		os.Exit(1)
	}

	handlerOpts := []api.HandlerOption{
		api.WithLogger(slog.Default()),
		api.WithOrchestratorOptions(cfg.OrchestratorOptions()...),
	}
	if cfg.JWTSecret != "" {
		handlerOpts = append(handlerOpts, api.WithTokenAuth(api.NewTokenAuth(cfg.JWTSecret)))
	} else {
		slog.Warn("JWT_SECRET is not set; write routes are disabled")
	}
	handler := api.NewHandler(store, gateway, handlerOpts...)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	server.R.Mount("/api/v1", handler.Routes())
	// Assets are only served locally when their URLs point back at this server.
	if prefix := strings.TrimRight(cfg.AssetURLPrefix, "/"); strings.HasPrefix(prefix, "/") {
		server.R.Mount(prefix, handler.AssetRoutes())
	}

	slog.Info("Pinboard server starting",
		"env", cfg.Environment,
		"database", cfg.DatabaseType,
		"storage", cfg.Storage.Type,
	)
	server.Run()
}
