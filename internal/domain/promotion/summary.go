package promotion

import (
	"time"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
)

// ArtifactVersionStatus groups the versions of one artifact in one environment by status.
type ArtifactVersionStatus struct {
	Current   string   `json:"current,omitempty"`
	Deploying string   `json:"deploying,omitempty"`
	Pending   []string `json:"pending"`
	Approved  []string `json:"approved"`
	Previous  []string `json:"previous"`
	Vetoed    []string `json:"vetoed"`
	Skipped   []string `json:"skipped"`
}

// ArtifactVersions is the projection of one artifact within an environment.
type ArtifactVersions struct {
	Name      string                `json:"name"`
	Type      artifact.Type         `json:"type"`
	Reference string                `json:"reference"`
	Versions  ArtifactVersionStatus `json:"versions"`
	Pinned    *PinRecord            `json:"pinned,omitempty"`
}

// EnvironmentSummary is the projection of every artifact in one environment.
type EnvironmentSummary struct {
	Name      string             `json:"name"`
	Artifacts []ArtifactVersions `json:"artifacts"`
}

// ArtifactSummaryInEnvironment is the history of one version in one environment.
type ArtifactSummaryInEnvironment struct {
	Environment string      `json:"environment"`
	Version     string      `json:"version"`
	State       Status      `json:"state"`
	DeployedAt  *time.Time  `json:"deployedAt,omitempty"`
	ReplacedAt  *time.Time  `json:"replacedAt,omitempty"`
	ReplacedBy  string      `json:"replacedBy,omitempty"`
	IsPinned    bool        `json:"isPinned"`
	Pinned      *PinRecord  `json:"pinned,omitempty"`
	Vetoed      *VetoRecord `json:"vetoed,omitempty"`
}

// PinnedEnvironment is an active pin within a delivery config.
type PinnedEnvironment struct {
	DeliveryConfigName string        `json:"deliveryConfigName"`
	TargetEnvironment  string        `json:"targetEnvironment"`
	ArtifactName       string        `json:"artifactName"`
	ArtifactType       artifact.Type `json:"artifactType"`
	Reference          string        `json:"reference"`
	PinRecord
}

// EnvironmentArtifactVetoes lists the vetoed versions of one artifact in one environment.
type EnvironmentArtifactVetoes struct {
	DeliveryConfigName string   `json:"deliveryConfigName"`
	TargetEnvironment  string   `json:"targetEnvironment"`
	ArtifactName       string   `json:"artifactName"`
	Reference          string   `json:"reference"`
	Versions           []string `json:"versions"`
}
