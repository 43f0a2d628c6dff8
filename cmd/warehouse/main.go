package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jetsetgo/warehouse-console/internal/api"
	"github.com/jetsetgo/warehouse-console/internal/config"
	"github.com/jetsetgo/warehouse-console/internal/storage"
)

func main() {
	fmt.Println("Warehouse Console")
	fmt.Println("=================")

	// Capture the std logger for GET /api/logs
	logBuf := api.NewLogBuffer(500)
	api.InstallLogCapture(logBuf)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Printf("WARN: Could not load config file: %v", err)
		log.Println("Using default configuration")
		cfg = config.Default()
		cfg.ConfigPath = "config.yaml"
		cfg.ApplyEnv(os.LookupEnv)
	}

	fmt.Printf("Console Port: %d\n", cfg.Server.Port)
	fmt.Printf("Backend Endpoint: %s\n", cfg.Backend.Endpoint)
	fmt.Printf("Storage Driver: %s\n", cfg.Storage.Driver)

	durable, err := storage.Open(cfg.Storage)
	if err != nil {
		log.Fatalf("ERROR: Could not open %s storage: %v", cfg.Storage.Driver, err)
	}
	if c, ok := durable.(io.Closer); ok {
		defer c.Close()
	}

	server := api.NewServer(cfg, durable, storage.NewMemoryStore(), logBuf)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if server.Restore(ctx) {
		log.Println("Restored previous session")
	}

	fmt.Printf("\nStarting console on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("Press Ctrl+C to stop")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("ERROR: Server error: %v", err)
		os.Exit(1)
	}
}
