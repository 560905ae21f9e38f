// Package checks provides the use case that hands out artifacts due for a
// version check.
package checks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
	"github.com/spinnaker/spinnaker-sub014/internal/infrastructure/lease"
	"github.com/spinnaker/spinnaker-sub014/internal/ledger"
)

// Config controls how many artifacts are handed out and how often.
type Config struct {
	// MinTimeSinceLastCheck is the minimum age of the previous check.
	MinTimeSinceLastCheck time.Duration
	// BatchSize caps the number of artifacts per Next call.
	BatchSize int
	// LeaseTTL is how long a claimed artifact stays reserved for this process.
	LeaseTTL time.Duration
}

// DefaultConfig returns the dispatcher defaults.
func DefaultConfig() Config {
	return Config{
		MinTimeSinceLastCheck: 30 * time.Second,
		BatchSize:             20,
		LeaseTTL:              time.Minute,
	}
}

// Validate validates the Config.
func (c Config) Validate() error {
	const op = "checks.Config.Validate"
	switch {
	case c.MinTimeSinceLastCheck < 0:
		return rperrors.Validation(op, "min time since last check cannot be negative")
	case c.BatchSize <= 0:
		return rperrors.Validation(op, "batch size must be positive")
	case c.LeaseTTL <= 0:
		return rperrors.Validation(op, "lease ttl must be positive")
	}
	return nil
}

// Dispatcher claims due artifacts from the ledger and keeps only those this
// process wins the lease for.
type Dispatcher struct {
	scheduler ledger.Scheduler
	lease     lease.Lease
	config    Config
	logger    *log.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(scheduler ledger.Scheduler, l lease.Lease, cfg Config, logger *log.Logger) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if scheduler == nil {
		return nil, rperrors.Config("checks.NewDispatcher", "scheduler is required")
	}
	if l == nil {
		return nil, rperrors.Config("checks.NewDispatcher", "lease is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		scheduler: scheduler,
		lease:     l,
		config:    cfg,
		logger:    logger.With("usecase", "check_dispatch"),
	}, nil
}

// Next returns the artifacts this process should check now.
// An artifact whose lease is held elsewhere is dropped from the batch; it
// becomes due again after MinTimeSinceLastCheck.
func (d *Dispatcher) Next(ctx context.Context) ([]artifact.DeliveryArtifact, error) {
	due, err := d.scheduler.ItemsDueForCheck(ctx, d.config.MinTimeSinceLastCheck, d.config.BatchSize)
	if err != nil {
		return nil, err
	}

	owned := make([]artifact.DeliveryArtifact, 0, len(due))
	for _, art := range due {
		ok, err := d.lease.Acquire(ctx, art.ID, d.config.LeaseTTL)
		if err != nil {
			d.releaseAll(ctx, owned)
			return nil, err
		}
		if !ok {
			d.logger.Debug("check lease held elsewhere", "artifact", art.Key().String())
			continue
		}
		owned = append(owned, art)
	}

	if len(owned) > 0 {
		d.logger.Info("dispatching artifact checks", "due", len(due), "owned", len(owned))
	}
	return owned, nil
}

// Done releases the lease of a finished check.
func (d *Dispatcher) Done(ctx context.Context, art artifact.DeliveryArtifact) error {
	return d.lease.Release(ctx, art.ID)
}

func (d *Dispatcher) releaseAll(ctx context.Context, arts []artifact.DeliveryArtifact) {
	for _, art := range arts {
		if err := d.lease.Release(ctx, art.ID); err != nil {
			d.logger.Warn("failed to release check lease", "artifact", art.Key().String(), "error", err)
		}
	}
}
