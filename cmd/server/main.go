package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"depositdapp/internal/app"
	"depositdapp/internal/config"
	"depositdapp/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("DAPP_CONFIG"))
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("app error: %v", err)
	}
	defer a.Close()

	if err := a.Serve(ctx); err != nil {
		log.Printf("server stopped: %v", err)
	}
}
