// Package main provides the main entry point for the pantry API server
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"

	"github.com/alchemorsel/pantry/internal/infrastructure/config"
	"github.com/alchemorsel/pantry/internal/infrastructure/container"
)

func main() {
	configPath := flag.String("config", os.Getenv("PANTRY_CONFIG"), "Configuration file path")
	flag.Parse()

	var cfg *config.Config
	app := fx.New(
		fx.NopLogger, // Use our own logger instead of Fx's
		container.Module(*configPath),
		fx.Populate(&cfg),
	)
	if err := app.Err(); err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	// Create context that cancels on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
	defer startCancel()
	if err := app.Start(startCtx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	// Wait for a signal or a server failure
	select {
	case <-ctx.Done():
	case <-app.Done():
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stop application gracefully: %v\n", err)
		os.Exit(1)
	}
}
