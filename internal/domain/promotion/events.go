package promotion

import (
	"time"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
)

// DomainEvent is the interface for all ledger events.
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
	AggregateID() string
}

// ArtifactRegisteredEvent is emitted when an artifact is registered or updated.
type ArtifactRegisteredEvent struct {
	ArtifactID string
	Key        artifact.Key
	Updated    bool
	At         time.Time
}

func (e *ArtifactRegisteredEvent) EventName() string     { return "artifact.registered" }
func (e *ArtifactRegisteredEvent) OccurredAt() time.Time { return e.At }
func (e *ArtifactRegisteredEvent) AggregateID() string   { return e.ArtifactID }

// VersionStoredEvent is emitted when a previously unseen version is recorded.
type VersionStoredEvent struct {
	Key     artifact.VersionKey
	Version string
	Status  artifact.ReleaseStatus
	At      time.Time
}

func (e *VersionStoredEvent) EventName() string     { return "artifact.version_stored" }
func (e *VersionStoredEvent) OccurredAt() time.Time { return e.At }
func (e *VersionStoredEvent) AggregateID() string   { return e.Key.String() }

// StatusChangedEvent is emitted on every promotion status transition.
type StatusChangedEvent struct {
	Key     EnvironmentKey
	Version string
	From    Status
	To      Status
	At      time.Time
}

func (e *StatusChangedEvent) EventName() string     { return "promotion.status_changed" }
func (e *StatusChangedEvent) OccurredAt() time.Time { return e.At }
func (e *StatusChangedEvent) AggregateID() string   { return e.Key.String() }

// VersionVetoedEvent is emitted when a veto is recorded.
type VersionVetoedEvent struct {
	Key        EnvironmentKey
	Version    string
	RollbackTo string
	VetoedBy   string
	Forced     bool
	At         time.Time
}

func (e *VersionVetoedEvent) EventName() string     { return "promotion.vetoed" }
func (e *VersionVetoedEvent) OccurredAt() time.Time { return e.At }
func (e *VersionVetoedEvent) AggregateID() string   { return e.Key.String() }

// VetoDeletedEvent is emitted when a veto is reversed.
type VetoDeletedEvent struct {
	Key     EnvironmentKey
	Version string
	At      time.Time
}

func (e *VetoDeletedEvent) EventName() string     { return "promotion.veto_deleted" }
func (e *VetoDeletedEvent) OccurredAt() time.Time { return e.At }
func (e *VetoDeletedEvent) AggregateID() string   { return e.Key.String() }

// EnvironmentPinnedEvent is emitted when a pin is stored.
type EnvironmentPinnedEvent struct {
	Key      EnvironmentKey
	Version  string
	PinnedBy string
	At       time.Time
}

func (e *EnvironmentPinnedEvent) EventName() string     { return "promotion.pinned" }
func (e *EnvironmentPinnedEvent) OccurredAt() time.Time { return e.At }
func (e *EnvironmentPinnedEvent) AggregateID() string   { return e.Key.String() }

// PinDeletedEvent is emitted when a pin is removed.
type PinDeletedEvent struct {
	Key     EnvironmentKey
	Version string
	At      time.Time
}

func (e *PinDeletedEvent) EventName() string     { return "promotion.pin_deleted" }
func (e *PinDeletedEvent) OccurredAt() time.Time { return e.At }
func (e *PinDeletedEvent) AggregateID() string   { return e.Key.String() }
