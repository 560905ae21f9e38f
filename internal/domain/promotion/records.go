package promotion

import (
	"fmt"
	"time"
)

// EnvironmentKey scopes all promotion bookkeeping to one artifact in one environment of one delivery config.
type EnvironmentKey struct {
	ArtifactID     string `json:"artifactId"`
	DeliveryConfig string `json:"deliveryConfig"`
	Environment    string `json:"environment"`
}

// String returns a readable form of the key.
func (k EnvironmentKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.DeliveryConfig, k.Environment, k.ArtifactID)
}

// PinRecord is an operator override of the latest approved version.
type PinRecord struct {
	Version  string    `json:"version"`
	PinnedBy string    `json:"pinnedBy,omitempty"`
	PinnedAt time.Time `json:"pinnedAt"`
	Comment  string    `json:"comment,omitempty"`
}

// SkipRecord records that a version was superseded before it was deployed.
type SkipRecord struct {
	Version      string    `json:"version"`
	SupersededBy string    `json:"supersededBy,omitempty"`
	SupersededAt time.Time `json:"supersededAt"`
}

// DeployedRecord is one entry of the append-only deployment history.
type DeployedRecord struct {
	Version    string    `json:"version"`
	DeployedAt time.Time `json:"deployedAt"`
}

// VetoRecord holds the details of a recorded veto.
type VetoRecord struct {
	Version    string    `json:"version"`
	RollbackTo string    `json:"rollbackTo,omitempty"`
	VetoedBy   string    `json:"vetoedBy,omitempty"`
	VetoedAt   time.Time `json:"vetoedAt"`
	Comment    string    `json:"comment,omitempty"`
}

// EnvironmentArtifactPin is a request to pin a version of an artifact in an environment.
type EnvironmentArtifactPin struct {
	TargetEnvironment string `json:"targetEnvironment" yaml:"targetEnvironment"`
	Reference         string `json:"reference" yaml:"reference"`
	Version           string `json:"version" yaml:"version"`
	PinnedBy          string `json:"pinnedBy,omitempty" yaml:"pinnedBy,omitempty"`
	Comment           string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// EnvironmentArtifactVeto is a request to veto a version of an artifact in an environment.
type EnvironmentArtifactVeto struct {
	TargetEnvironment string `json:"targetEnvironment" yaml:"targetEnvironment"`
	Reference         string `json:"reference" yaml:"reference"`
	Version           string `json:"version" yaml:"version"`
	VetoedBy          string `json:"vetoedBy,omitempty" yaml:"vetoedBy,omitempty"`
	Comment           string `json:"comment,omitempty" yaml:"comment,omitempty"`
}
