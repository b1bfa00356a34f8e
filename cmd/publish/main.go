package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/app"
	"github.com/timmy/ideaforge/internal/config"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/logger"
	"github.com/timmy/ideaforge/internal/service"
)

// Exit codes, so a cron wrapper can tell an empty pool from a failure.
const (
	exitOK      = 0
	exitFailed  = 1
	exitNothing = 3
)

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "ideaforge-publish",
	})
	logger.SetDefaultLogger(appLogger)

	draft := flag.String("draft", "", "Publish as draft (true/false); empty uses publisher.draft")
	platforms := flag.String("platforms", "", "Comma-separated platforms; empty uses publisher.platforms")
	dryRun := flag.Bool("dry-run", false, "Select and generate only, print the article")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	os.Exit(run(appLogger, *configPath, *draft, *platforms, *dryRun))
}

// parseRunOptions turns the raw flags into publish options. An empty draft
// keeps the configured default; anything strconv.ParseBool rejects is an error.
func parseRunOptions(draft, platforms string, dryRun bool) (service.PublishOptions, error) {
	opts := service.PublishOptions{DryRun: dryRun}
	if draft != "" {
		v, err := strconv.ParseBool(draft)
		if err != nil {
			return opts, goerr.Wrap(err, "invalid -draft value", goerr.V("draft", draft))
		}
		opts.Draft = &v
	}
	for _, p := range strings.Split(platforms, ",") {
		if p = strings.TrimSpace(p); p != "" {
			opts.Platforms = append(opts.Platforms, p)
		}
	}
	return opts, nil
}

func run(appLogger *logger.Logger, configPath, draft, platforms string, dryRun bool) int {
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Error("Failed to load config")
		return exitFailed
	}

	opts, err := parseRunOptions(draft, platforms, dryRun)
	if err != nil {
		appLogger.WithError(err).Error("Invalid flags")
		return exitFailed
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Publish.Timeout)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	a, err := app.New(ctx, cfg, app.Options{WithPublishing: true})
	if err != nil {
		appLogger.WithError(err).Error("Failed to initialize services")
		return exitFailed
	}
	defer a.Close()

	appLogger.WithFields(logger.Fields{
		"dry_run":   dryRun,
		"platforms": opts.Platforms,
		"timeout":   cfg.Publish.Timeout.String(),
	}).Info("Starting publish run")

	result, err := a.Publish.Run(ctx, opts)
	if errors.Is(err, domain.ErrNoUnusedIdeas) {
		appLogger.Warn("Nothing to publish: every idea is used")
		return exitNothing
	}
	if err != nil {
		entry := appLogger.WithError(err)
		if result != nil {
			entry = entry.WithField(logger.FieldRunID, result.RunID)
		}
		entry.Error("Publish run failed")
		return exitFailed
	}

	if result.DryRun {
		fmt.Println(result.Content)
		return exitOK
	}

	for _, p := range result.Platforms {
		appLogger.WithFields(logger.Fields{
			logger.FieldRunID:    result.RunID,
			logger.FieldIdeaID:   result.Idea.ID,
			logger.FieldPlatform: p.Platform,
			"success":            p.Success,
			"url":                p.URL,
		}).Info("Platform result")
	}
	if result.ArchiveURL != "" {
		appLogger.WithField(logger.FieldRunID, result.RunID).Infof("Article archived at %s", result.ArchiveURL)
	}
	return exitOK
}
