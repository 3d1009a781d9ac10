package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vietddude/archiver/internal/core/config"
	"github.com/vietddude/archiver/internal/core/domain"
	"github.com/vietddude/archiver/internal/download/fetch"
	"github.com/vietddude/archiver/internal/download/health"
	"github.com/vietddude/archiver/internal/download/rotation"
	"github.com/vietddude/archiver/internal/download/scheduler"
	"github.com/vietddude/archiver/internal/infra/blockstore"
	"github.com/vietddude/archiver/internal/infra/gateway"
	redisclient "github.com/vietddude/archiver/internal/infra/redis"
	"github.com/vietddude/archiver/internal/infra/storage"
	"github.com/vietddude/archiver/internal/infra/storage/memory"
	"github.com/vietddude/archiver/internal/infra/storage/postgres"
)

// Archiver is the main application struct that wires one download run.
type Archiver struct {
	cfg          Config
	cancel       *domain.CancelFlag
	store        *blockstore.Store
	ledger       storage.FailureLedger
	runs         storage.RunRepository
	controller   *rotation.Controller
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger

	mu      sync.Mutex
	clients []*gateway.Client
}

// Config holds the application configuration.
type Config struct {
	Range       domain.HeightRange
	Gateways    []domain.Gateway
	Proxies     []string
	Download    config.DownloadConfig
	Storage     config.StorageConfig
	MetricsPort int // 0 disables the status server
	Redis       redisclient.Config
	Database    postgres.Config
}

// NewArchiver validates the configuration and initializes every dependency.
// Configuration problems are reported before any network or disk activity.
func NewArchiver(ctx context.Context, cfg Config, cancel *domain.CancelFlag) (*Archiver, error) {
	if err := cfg.Range.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Gateways) == 0 {
		return nil, domain.ConfigErrorf("gateway table is empty")
	}
	proxies := domain.NormalizeProxies(cfg.Proxies)
	for _, p := range proxies {
		if p == nil {
			continue
		}
		if _, err := gateway.ParseProxyURL(p.Address); err != nil {
			return nil, err
		}
	}
	if cancel == nil {
		cancel = domain.NewCancelFlag()
	}

	a := &Archiver{
		cfg:    cfg,
		cancel: cancel,
		log:    slog.Default().With("component", "archiver"),
	}

	// 1. Initialize Storage
	var err error
	if a.ledger, a.redisClient, err = OpenLedger(cfg.Redis); err != nil {
		return nil, err
	}
	if a.runs, a.db, err = OpenRunRepository(ctx, cfg.Database); err != nil {
		a.closeStores()
		return nil, err
	}

	a.store, err = blockstore.NewStore(cfg.Storage.OutputDir, cfg.Range, cfg.Storage.Compress)
	if err != nil {
		a.closeStores()
		return nil, err
	}

	// 2. Controller
	a.controller = rotation.NewController(
		rotation.Config{
			BatchSize: cfg.Download.BatchSize,
			Scheduler: scheduler.Config{
				PaceEvery:    cfg.Download.PaceEvery,
				PaceInterval: cfg.Download.PaceInterval,
			},
			ResumeFromWatermark: cfg.Download.ResumeFromWatermark,
		},
		cfg.Range,
		cfg.Gateways,
		proxies,
		a.newFetcher,
		a.runs,
		cancel,
	)

	// 3. Status server
	if cfg.MetricsPort > 0 {
		monitor := health.NewMonitor(a.controller, a.ledger, a, cfg.Range)
		a.healthServer = health.NewServer(monitor, cfg.MetricsPort)
	}

	return a, nil
}

// OpenLedger returns the Redis ledger when url is set, otherwise an in-memory one.
func OpenLedger(cfg redisclient.Config) (storage.FailureLedger, *redisclient.Client, error) {
	if cfg.URL == "" {
		slog.Info("Using memory failure ledger")
		return memory.NewFailureLedger(), nil, nil
	}

	client, err := redisclient.NewClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init redis: %w", err)
	}
	slog.Info("Using Redis failure ledger")
	return redisclient.NewFailureLedger(client, cfg.TTL), client, nil
}

// OpenRunRepository returns the PostgreSQL run history when url is set,
// otherwise an in-memory one. Migrations run on open.
func OpenRunRepository(ctx context.Context, cfg postgres.Config) (storage.RunRepository, *postgres.DB, error) {
	if cfg.URL == "" {
		slog.Info("Using memory run history")
		return memory.NewRunRepo(), nil, nil
	}

	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	slog.Info("Using PostgreSQL run history")
	return postgres.NewRunRepo(db), db, nil
}

// newFetcher builds the gateway client and worker for one proxy attempt.
func (a *Archiver) newFetcher(proxy *domain.Proxy) (scheduler.Fetcher, error) {
	client, err := gateway.NewClient(proxy, gateway.Options{
		Timeout:       a.cfg.Download.RequestTimeout,
		FormatHeader:  a.cfg.Download.FormatHeader,
		FormatVersion: a.cfg.Download.FormatVersion,
	})
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.clients = append(a.clients, client)
	a.mu.Unlock()

	return fetch.NewWorker(client, a.store, a.ledger, a.cfg.Range, proxy, a.cancel), nil
}

// Clients returns request statistics for every proxy used so far.
func (a *Archiver) Clients() []gateway.HealthStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	statuses := make([]gateway.HealthStatus, 0, len(a.clients))
	for _, c := range a.clients {
		statuses = append(statuses, c.GetHealth())
	}
	return statuses
}

// Status returns the controller snapshot.
func (a *Archiver) Status() rotation.Snapshot {
	return a.controller.Status()
}

// OutputDir is the directory block files are written to.
func (a *Archiver) OutputDir() string {
	return a.store.Dir()
}

// Run starts the status server, if configured, and executes the download.
func (a *Archiver) Run(ctx context.Context) (*domain.RunResult, error) {
	if a.healthServer != nil {
		go func() {
			if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("Status server failed", "error", err)
			}
		}()
		a.log.Info("Status server listening", "port", a.cfg.MetricsPort)
	}

	a.log.Info("Archiving blocks",
		"start", a.cfg.Range.Start,
		"end", a.cfg.Range.End,
		"output", a.store.Dir(),
	)
	return a.controller.Run(ctx)
}

// Close releases clients, stores and the status server.
func (a *Archiver) Close(ctx context.Context) error {
	var errs []error

	if a.healthServer != nil {
		if err := a.healthServer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	a.mu.Lock()
	for _, c := range a.clients {
		c.Close()
	}
	a.clients = nil
	a.mu.Unlock()

	errs = append(errs, a.closeStores())
	return errors.Join(errs...)
}

func (a *Archiver) closeStores() error {
	var errs []error
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	return errors.Join(errs...)
}
