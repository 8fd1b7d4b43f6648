package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"EarnPull/internal/di"
	"EarnPull/pkg/config"
	"EarnPull/pkg/util"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	lookup := flag.String("lookup", "", "comma separated tickers to resolve once, then exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf(".env load failed: %v", err)
	}

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s snapshot=%s", cfg.Environment, cfg.Earnings.SnapshotPath)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if *lookup != "" {
		if err := app.Lookup(context.Background(), util.SplitList(*lookup), os.Stdout); err != nil {
			log.Printf("lookup error: %v", err)
			os.Exit(1)
		}
		return
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
