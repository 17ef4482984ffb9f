// Package main runs a single generation cycle and exits. Intended for
// cron-style deployments and backfills where the long-running API server
// does not own the schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/currents/internal/archive"
	"github.com/onnwee/currents/internal/article"
	"github.com/onnwee/currents/internal/config"
	"github.com/onnwee/currents/internal/db"
	"github.com/onnwee/currents/internal/engine"
	"github.com/onnwee/currents/internal/middleware"
	"github.com/onnwee/currents/internal/ranking"
	"github.com/onnwee/currents/internal/rerank"
	"github.com/onnwee/currents/internal/snapshot"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file")
	at := flag.String("at", "", "UTC hour to generate, RFC 3339 (default: now)")
	force := flag.Bool("force", false, "regenerate even if the snapshot already exists")
	noOracle := flag.Bool("no-oracle", false, "skip the reranking oracle for this cycle")
	timeout := flag.Duration("timeout", engine.DefaultCycleTimeout, "cycle timeout")
	flag.Parse()

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	target := time.Now().UTC()
	if *at != "" {
		parsed, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid -at value:", err)
			os.Exit(1)
		}
		target = parsed.UTC()
	}

	conn, err := db.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	articles := article.NewPostgresStore(conn, logger)
	pool := article.NewPoolBuilder(articles, logger)
	scorer := ranking.NewScorer(cfg.Tier1Sources)
	snapshots := snapshot.NewRedisStore(redisClient, logger)

	var oracle engine.Oracle
	if cfg.RerankerURL != "" && !*noOracle {
		client, err := rerank.NewClient(rerank.ClientConfig{
			BaseURL: cfg.RerankerURL,
			APIKey:  cfg.RerankerAPIKey,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to create reranker client", "error", err)
			os.Exit(1)
		}
		oracle = client
	}

	rankingEngine := engine.New(engine.Config{}, pool, scorer, oracle, snapshots, logger)

	if cfg.ArchiveEnabled() {
		archiver, err := archive.New(archive.Config{
			BucketName:      cfg.R2BucketName,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Endpoint:        cfg.R2Endpoint,
			Logger:          logger,
		})
		if err != nil {
			logger.Error("failed to create snapshot archiver", "error", err)
			os.Exit(1)
		}
		rankingEngine = rankingEngine.WithArchiver(archiver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	snap, err := rankingEngine.GenerateCycle(ctx, target, engine.CycleOptions{
		UseOracle:     oracle != nil,
		OnlyIfMissing: !*force,
	})
	if err != nil {
		logger.Error("generation cycle failed", "error", err)
		os.Exit(1)
	}

	logger.Info("generation cycle completed",
		"date", snap.Date,
		"hour", snap.Hour,
		"items", len(snap.Items),
		"duration_seconds", time.Since(start).Seconds())
}
