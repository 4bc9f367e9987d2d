package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"qroll/internal/config"
	"qroll/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	log.SetFlags(log.Ltime)

	// ──── Load Environment Variables ────
	cfg := config.Load()

	// ──── Open Session Storage ────
	store, closeStore, err := storage.Open(cfg.StorageType, cfg.StoragePath, cfg.RedisURL)
	if err != nil {
		log.Printf("✗ Session storage unavailable: %v", err)
		return 1
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ──── Start CLI ────
	cli := newCommandLine(cfg, store, os.Stdout)
	defer cli.close()

	if err := cli.run(ctx, os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			log.Printf("✗ %v", err)
		}
		return 1
	}
	return 0
}
