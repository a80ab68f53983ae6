package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	containerbuilder "agora/contexts/participation/container-builder"
	containerpg "agora/contexts/participation/container-builder/adapters/postgres"
	containertally "agora/contexts/participation/container-builder/adapters/tally"
	delegationgraph "agora/contexts/participation/delegation-graph"
	delegationpg "agora/contexts/participation/delegation-graph/adapters/postgres"
	delegationworkers "agora/contexts/participation/delegation-graph/application/workers"
	signingorchestrator "agora/contexts/participation/signing-orchestrator"
	signingcontainer "agora/contexts/participation/signing-orchestrator/adapters/container"
	signingpg "agora/contexts/participation/signing-orchestrator/adapters/postgres"
	"agora/contexts/participation/signing-orchestrator/adapters/provider"
	signingtally "agora/contexts/participation/signing-orchestrator/adapters/tally"
	signingworkers "agora/contexts/participation/signing-orchestrator/application/workers"
	tallyengine "agora/contexts/participation/tally-engine"
	tallydelegation "agora/contexts/participation/tally-engine/adapters/delegation"
	tallypg "agora/contexts/participation/tally-engine/adapters/postgres"
	tallyworkers "agora/contexts/participation/tally-engine/application/workers"
	"agora/internal/platform/config"
	"agora/internal/platform/db"
	"agora/internal/platform/httpserver"
	"agora/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres        *db.Postgres
	membership      delegationworkers.MembershipRevocationConsumer
	sweeper         tallyworkers.DeadlineSweeper
	reaper          signingworkers.SessionReaper
	delegationRelay delegationworkers.OutboxRelay
	tallyRelay      tallyworkers.OutboxRelay
	signingRelay    signingworkers.OutboxRelay
	relaysDisabled  bool
	pollInterval    time.Duration
	logger          *slog.Logger
}

type modules struct {
	delegations delegationgraph.Module
	tally       tallyengine.Module
	signing     signingorchestrator.Module
	containers  containerbuilder.Module
}

func buildModules(pg *db.Postgres, cfg config.Config, logger *slog.Logger) modules {
	delegationRepo := delegationpg.NewRepository(pg.DB, logger)
	tallyRepo := tallypg.NewRepository(pg.DB, logger)
	signingRepo := signingpg.NewRepository(pg.DB, logger)
	containerRepo := containerpg.NewRepository(pg.DB, logger)

	delegationModule := delegationgraph.NewModule(delegationgraph.Dependencies{
		Delegations: delegationRepo,
		Votes:       delegationRepo,
		Oracle:      delegationRepo,
		Outbox:      delegationRepo,
		Clock:       delegationpg.SystemClock{},
		IDGen:       delegationpg.UUIDGenerator{},
		Logger:      logger,
	})

	tallyModule := tallyengine.NewModule(tallyengine.Dependencies{
		Votes:    tallyRepo,
		Ballots:  tallyRepo,
		Oracle:   tallyRepo,
		Resolver: tallydelegation.Resolver{Graph: delegationModule.Resolver},
		Outbox:   tallyRepo,
		Clock:    tallypg.SystemClock{},
		IDGen:    tallypg.UUIDGenerator{},
		Logger:   logger,
	})

	containerModule := containerbuilder.NewModule(containerbuilder.Dependencies{
		Artifacts: containerRepo,
		Options:   containertally.Catalog{Results: tallyModule.Results},
		Secret:    cfg.DownloadSecret,
		BasePath:  "/api/downloads",
		Clock:     containerpg.SystemClock{},
		IDGen:     containerpg.UUIDGenerator{},
		Logger:    logger,
	})

	// The signature providers run in simulator mode until the national
	// gateway credentials are provisioned per environment.
	simulator := provider.NewSimulator()
	signingModule := signingorchestrator.NewModule(signingorchestrator.Dependencies{
		Sessions:   signingRepo,
		Links:      signingRepo,
		Votes:      signingtally.VoteCatalog{Results: tallyModule.Results},
		Oracle:     tallyRepo,
		IDCard:     simulator,
		MobileID:   simulator,
		Containers: signingcontainer.Builder{Containers: containerModule.Builder},
		Caster:     signingtally.Caster{Ballots: tallyModule.Ballots},
		Outbox:     signingRepo,
		Clock:      signingpg.SystemClock{},
		IDGen:      signingpg.UUIDGenerator{},
		Logger:     logger,
	})

	return modules{
		delegations: delegationModule,
		tally:       tallyModule,
		signing:     signingModule,
		containers:  containerModule,
	}
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	mods := buildModules(pg, cfg, logger)
	server := httpserver.New(
		mods.tally,
		mods.delegations,
		mods.signing,
		mods.containers,
		logger,
		normalizeAddr(cfg.HTTPPort),
	)
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	delegationRepo := delegationpg.NewRepository(pg.DB, logger)
	tallyRepo := tallypg.NewRepository(pg.DB, logger)
	signingRepo := signingpg.NewRepository(pg.DB, logger)

	return &WorkerApp{
		postgres: pg,
		membership: delegationworkers.MembershipRevocationConsumer{
			Subscriber:    kafka,
			Dedup:         delegationRepo,
			Delegations:   delegationRepo,
			Outbox:        delegationRepo,
			Clock:         delegationpg.SystemClock{},
			IDGen:         delegationpg.UUIDGenerator{},
			ConsumerGroup: "delegation-graph-membership-cg",
			DedupTTL:      7 * 24 * time.Hour,
			Disabled:      !cfg.EnableMembershipConsumer,
			Logger:        logger,
		},
		sweeper: tallyworkers.DeadlineSweeper{
			Votes:    tallyRepo,
			Outbox:   tallyRepo,
			Clock:    tallypg.SystemClock{},
			IDGen:    tallypg.UUIDGenerator{},
			Disabled: !cfg.EnableDeadlineSweeper,
			Logger:   logger,
		},
		reaper: signingworkers.SessionReaper{
			Sessions:  signingRepo,
			Outbox:    signingRepo,
			Clock:     signingpg.SystemClock{},
			IDGen:     signingpg.UUIDGenerator{},
			BatchSize: 100,
			Disabled:  !cfg.EnableSessionReaper,
			Logger:    logger,
		},
		delegationRelay: delegationworkers.OutboxRelay{
			Outbox:    delegationRepo,
			Publisher: kafka,
			Clock:     delegationpg.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		tallyRelay: tallyworkers.OutboxRelay{
			Outbox:    tallyRepo,
			Publisher: kafka,
			Clock:     tallypg.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		signingRelay: signingworkers.OutboxRelay{
			Outbox:    signingRepo,
			Publisher: kafka,
			Clock:     signingpg.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		relaysDisabled: !cfg.EnableOutboxRelays,
		pollInterval:   2 * time.Second,
		logger:         logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.membership.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.sweeper.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.reaper.RunOnce(ctx); err != nil {
			return err
		}
		if !w.relaysDisabled {
			if err := w.delegationRelay.RunOnce(ctx); err != nil {
				return err
			}
			if err := w.tallyRelay.RunOnce(ctx); err != nil {
				return err
			}
			if err := w.signingRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
