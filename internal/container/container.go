// Package container wires the ledger, its persistence and the check dispatcher
// from configuration.
package container

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/spinnaker/spinnaker-sub014/internal/application/checks"
	"github.com/spinnaker/spinnaker-sub014/internal/config"
	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
	"github.com/spinnaker/spinnaker-sub014/internal/infrastructure/lease"
	"github.com/spinnaker/spinnaker-sub014/internal/infrastructure/persistence"
	"github.com/spinnaker/spinnaker-sub014/internal/ledger"
)

// defaultShutdownTimeout is the default timeout for graceful shutdown of components.
const defaultShutdownTimeout = 10 * time.Second

// Closeable represents a component that can be closed/shutdown.
type Closeable interface {
	Close() error
}

// App holds the wired components for one process.
type App struct {
	config *config.Config
	logger *log.Logger
	mu     sync.RWMutex
	closed bool

	store      *persistence.FileStore
	publisher  *persistence.InMemoryEventPublisher
	lease      lease.Lease
	dispatcher *checks.Dispatcher

	// ledgerOpts are appended to the options the store is opened with.
	ledgerOpts []ledger.Option
	// redisFactory builds the Redis client when scheduler.redis_addr is set.
	redisFactory func(*redis.Options) redis.UniversalClient

	closeables []Closeable
}

// Option customizes an App before initialization.
type Option func(*App)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *log.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithLedgerOptions passes extra options to the ledger, e.g. a fixed clock.
func WithLedgerOptions(opts ...ledger.Option) Option {
	return func(a *App) {
		a.ledgerOpts = append(a.ledgerOpts, opts...)
	}
}

// New creates an uninitialized App.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, rperrors.Config("container.New", "configuration is required")
	}

	a := &App{
		config: cfg,
		logger: log.Default(),
		redisFactory: func(o *redis.Options) redis.UniversalClient {
			return redis.NewClient(o)
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// registerCloseable registers a component for cleanup during shutdown.
func (a *App) registerCloseable(closeable Closeable) {
	if closeable != nil {
		a.closeables = append(a.closeables, closeable)
	}
}

// RegisterCloseable allows external components to register for cleanup during shutdown.
// Components are closed in reverse order of registration (LIFO).
func (a *App) RegisterCloseable(closeable Closeable) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.registerCloseable(closeable)
}

// Initialize opens the store and builds the dispatcher.
func (a *App) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return rperrors.New(rperrors.KindState, "container is closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := a.initInfrastructure(); err != nil {
		return err
	}
	return a.initApplicationLayer()
}

func (a *App) initInfrastructure() error {
	a.publisher = persistence.NewInMemoryEventPublisher()
	a.publisher.Subscribe(persistence.LoggingHandler(a.logger))

	storeCfg := persistence.FileStoreConfig{
		Dir:              a.config.Storage.Path,
		RetryAttempts:    a.config.Persistence.RetryAttempts,
		RetryInitialWait: a.config.Persistence.RetryInitialWait,
		RetryMaxWait:     a.config.Persistence.RetryMaxWait,
		Logger:           a.logger,
	}
	opts := append([]ledger.Option{
		ledger.WithLogger(a.logger),
		ledger.WithEventPublisher(a.publisher),
	}, a.ledgerOpts...)

	store, err := persistence.NewFileStore(storeCfg, opts...)
	if err != nil {
		return rperrors.StateWrap(err, "container.initInfrastructure", "failed to open ledger store")
	}
	a.store = store

	sched := a.config.Scheduler
	if sched.UsesRedis() {
		client := a.redisFactory(&redis.Options{
			Addr:     sched.RedisAddr,
			Password: sched.RedisPassword,
			DB:       sched.RedisDB,
		})
		a.registerCloseable(client)
		a.lease = lease.NewRedisLease(client, lease.WithLogger(a.logger))
		a.logger.Debug("using redis check lease", "addr", sched.RedisAddr)
	} else {
		a.lease = lease.NewLocalLease(nil)
	}
	return nil
}

func (a *App) initApplicationLayer() error {
	sched := a.config.Scheduler
	dispatcher, err := checks.NewDispatcher(a.store, a.lease, checks.Config{
		MinTimeSinceLastCheck: sched.MinTimeSinceLastCheck,
		BatchSize:             sched.BatchSize,
		LeaseTTL:              sched.LeaseTTL,
	}, a.logger)
	if err != nil {
		return err
	}
	a.dispatcher = dispatcher
	return nil
}

// Store returns the ledger.
func (a *App) Store() ledger.Store {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.store
}

// Events returns the event publisher the ledger writes to.
func (a *App) Events() *persistence.InMemoryEventPublisher {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.publisher
}

// Dispatcher returns the check dispatcher.
func (a *App) Dispatcher() *checks.Dispatcher {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dispatcher
}

// Config returns the configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// Close gracefully shuts down all components.
func (a *App) Close() error {
	return a.CloseWithTimeout(defaultShutdownTimeout)
}

// CloseWithTimeout gracefully shuts down the container with a custom timeout.
func (a *App) CloseWithTimeout(timeout time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	a.logger.Debug("initiating container shutdown", "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for i := len(a.closeables) - 1; i >= 0; i-- {
		if err := a.closeWithContext(ctx, a.closeables[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		a.logger.Warn("some components failed to close cleanly", "error_count", len(errs))
		return errs[0]
	}
	return nil
}

// closeWithContext closes a component with context cancellation support.
func (a *App) closeWithContext(ctx context.Context, closeable Closeable) error {
	done := make(chan error, 1)
	go func() {
		done <- closeable.Close()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		a.logger.Warn("component close timed out", "error", ctx.Err())
		return ctx.Err()
	}
}

// NewInitialized creates and initializes a new App.
func NewInitialized(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := a.Initialize(ctx); err != nil {
		return nil, err
	}
	return a, nil
}
