package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sumbird/sumbird/cache"
	"github.com/sumbird/sumbird/config"
	"github.com/sumbird/sumbird/dates"
	"github.com/sumbird/sumbird/pipeline"
)

func main() {
	if os.Getenv("DEBUG") != "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	var cfgPath string
	var opts pipeline.Options
	var cleanCache bool
	flag.StringVar(&cfgPath, "config", config.DefaultPath(), "path to a TOML config")
	flag.StringVar(&opts.Date, "date", "", "target date (YYYY-MM-DD), yesterday when empty")
	flag.BoolVar(&opts.Force, "force", false, "redo stages even when their output exists")
	flag.BoolVar(&opts.SkipTelegram, "skip-telegram", false, "do not post to the telegram channel")
	flag.BoolVar(&opts.SkipPDF, "skip-pdf", false, "do not render the newsletter PDF")
	flag.BoolVar(&cleanCache, "clean", false, "remove all cache entries")
	flag.Parse()

	// Read config and create if default is missing
	conf, err := config.Read(cfgPath)
	if errors.Is(err, os.ErrNotExist) && cfgPath == config.DefaultPath() {
		if err := config.Write(cfgPath, conf); err != nil {
			log.Fatalf("failed to write default config with %s", err)
		}
	} else if err != nil {
		log.Fatalf("failed to read config with %s", err)
	}

	// Load credentials
	credPath := config.DefaultCredentialsPath()
	creds, err := config.ReadCredentials(credPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("failed to read credentials: %s", err)
	}

	location, err := dates.Load(conf.Timezone)
	if err != nil {
		log.Fatalf("failed to load timezone '%s': %s", conf.Timezone, err)
	}

	dbPath := conf.DatabasePath
	if dbPath == "" {
		dbPath = cache.DefaultCachePath()
	}
	store, err := cache.NewCache(dbPath)
	if err != nil {
		log.Fatalf("failed to initialize cache database with %s", err)
	}
	defer store.Close()

	if cleanCache {
		if err := store.Clear(); err != nil {
			log.Fatalf("failed to clear cache: %s", err)
		}
		slog.Info("cache cleared")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pipeline.New(conf, creds, store, location, opts).Run(ctx); err != nil {
		log.Fatalf("pipeline failed: %s", err)
	}
}
