// Package commands hosts the opsync CLI commands.
package commands

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/systmms/opsync/internal/config"
	"github.com/systmms/opsync/internal/groups"
	"github.com/systmms/opsync/internal/ha"
	"github.com/systmms/opsync/internal/logging"
	"github.com/systmms/opsync/internal/op"
	"github.com/systmms/opsync/internal/ratelimit"
	"github.com/systmms/opsync/internal/secrets"
	"github.com/systmms/opsync/internal/store"
	syncengine "github.com/systmms/opsync/internal/sync"
)

// Options carries the root command's persistent flags.
type Options struct {
	// Debug forces debug-level logging regardless of APP_LOG_LEVEL.
	Debug bool

	// EnvFile is an extra .env file loaded before the environment is read.
	EnvFile string
}

// app bundles the wired runtime dependencies every command needs.
type app struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	db     *gorm.DB

	op   *op.CLI
	sink *ha.Client

	items    store.ItemRepo
	secrets  store.SecretRepo
	settings store.SettingRepo

	groups       *groups.Service
	cache        *syncengine.ItemCache
	reconciler   *syncengine.Reconciler
	limits       *ratelimit.Tracker
	orchestrator *syncengine.Orchestrator
}

// buildApp loads configuration and wires the full dependency graph.
func buildApp(opts *Options) (*app, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.Debug {
		cfg.LogLevel = "debug"
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	itemRepo := store.NewItemRepo(db)
	secretRepo := store.NewSecretRepo(db)
	groupRepo := store.NewGroupRepo(db)
	settingRepo := store.NewSettingRepo(db)

	opClient := op.NewCLI(cfg.ServiceAccountToken, logger)
	sink := ha.NewClient(cfg.SupervisorURL, cfg.SupervisorToken, logger)
	groupSvc := groups.NewService(groupRepo, logger)

	ttr := time.Duration(cfg.TTRMinutes) * time.Minute
	cache := syncengine.NewItemCache(opClient, itemRepo, secretRepo, settingRepo, sink, ttr, logger)

	files := secrets.NewFile(cfg.ConfigFolder, logger)
	reconciler := syncengine.NewReconciler(files, secretRepo, groupSvc, sink, logger)

	limits := ratelimit.NewTracker(opClient, settingRepo, logger)
	orchestrator := syncengine.NewOrchestrator(cache, reconciler, groupSvc, sink, limits, logger)

	return &app{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		op:           opClient,
		sink:         sink,
		items:        itemRepo,
		secrets:      secretRepo,
		settings:     settingRepo,
		groups:       groupSvc,
		cache:        cache,
		reconciler:   reconciler,
		limits:       limits,
		orchestrator: orchestrator,
	}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}
