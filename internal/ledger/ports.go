// Package ledger implements the artifact promotion ledger: the artifact catalog,
// the version ledger, and the per-environment promotion, pin and veto bookkeeping.
package ledger

import (
	"context"
	"time"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
)

// Clock provides time-related functionality.
// This abstraction enables testing with controlled time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// EventPublisher receives the domain events of successful mutations.
type EventPublisher interface {
	Publish(ctx context.Context, events ...promotion.DomainEvent) error
}

// Catalog stores delivery configs, artifact declarations and observed versions.
type Catalog interface {
	StoreDeliveryConfig(ctx context.Context, config artifact.DeliveryConfig) error
	GetDeliveryConfig(ctx context.Context, name string) (artifact.DeliveryConfig, error)
	DeleteDeliveryConfig(ctx context.Context, name string) error

	Register(ctx context.Context, art artifact.DeliveryArtifact) (artifact.DeliveryArtifact, error)
	Get(ctx context.Context, name string, typ artifact.Type, deliveryConfig string) ([]artifact.DeliveryArtifact, error)
	GetByReference(ctx context.Context, deliveryConfig, reference string) (artifact.DeliveryArtifact, error)
	GetByID(ctx context.Context, id string) (artifact.DeliveryArtifact, error)
	IsRegistered(ctx context.Context, name string, typ artifact.Type) bool
	GetAll(ctx context.Context, types ...artifact.Type) []artifact.DeliveryArtifact
	Delete(ctx context.Context, art artifact.DeliveryArtifact) error

	StoreVersion(ctx context.Context, name string, typ artifact.Type, version string, status artifact.ReleaseStatus) (bool, error)
	Versions(ctx context.Context, art artifact.DeliveryArtifact) ([]string, error)
	RawVersions(ctx context.Context, name string, typ artifact.Type) ([]artifact.VersionRecord, error)
	LatestVersion(ctx context.Context, art artifact.DeliveryArtifact) (string, error)
}

// Promotions tracks the lifecycle of versions within environments.
type Promotions interface {
	ApproveVersionFor(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) (bool, error)
	LatestVersionApprovedIn(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, env string) (string, error)
	MarkAsDeployingTo(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) error
	MarkAsSuccessfullyDeployedTo(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) error
	MarkAsSkipped(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env, supersededBy string) error
	WasSuccessfullyDeployedTo(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) (bool, error)
	IsCurrentlyDeployedTo(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) (bool, error)
	IsApprovedFor(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) (bool, error)
	VersionStatus(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) (promotion.Status, error)
}

// Vetoes records vetoes and the rollback relationship they create.
type Vetoes interface {
	MarkAsVetoedIn(ctx context.Context, deliveryConfig string, veto promotion.EnvironmentArtifactVeto, force bool) (bool, error)
	DeleteVeto(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) (bool, error)
	VetoedEnvironmentVersions(ctx context.Context, deliveryConfig string) ([]promotion.EnvironmentArtifactVetoes, error)
}

// Pins records environment-level version overrides.
type Pins interface {
	PinEnvironment(ctx context.Context, deliveryConfig string, pin promotion.EnvironmentArtifactPin) error
	GetPinnedEnvironments(ctx context.Context, deliveryConfig string) ([]promotion.PinnedEnvironment, error)
	DeletePin(ctx context.Context, deliveryConfig, env, reference string) error
}

// Summaries computes read-only projections.
type Summaries interface {
	GetEnvironmentSummaries(ctx context.Context, deliveryConfig string) ([]promotion.EnvironmentSummary, error)
	GetArtifactSummaryInEnvironment(ctx context.Context, deliveryConfig, env, reference, version string) (*promotion.ArtifactSummaryInEnvironment, error)
}

// Scheduler hands out artifacts that are due for a version check.
type Scheduler interface {
	ItemsDueForCheck(ctx context.Context, minTimeSinceLastCheck time.Duration, limit int) ([]artifact.DeliveryArtifact, error)
}

// Store is the full ledger contract.
type Store interface {
	Catalog
	Promotions
	Vetoes
	Pins
	Summaries
	Scheduler
	Snapshot(ctx context.Context) (*State, error)
}
