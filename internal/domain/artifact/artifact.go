// Package artifact provides the domain model for delivery artifacts and their versions.
package artifact

import (
	"fmt"
	"regexp"
	"slices"

	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
)

// Type identifies the kind of build output an artifact describes.
type Type string

const (
	// TypeDebian is a Debian package artifact.
	TypeDebian Type = "deb"
	// TypeDocker is a container image artifact whose versions are image tags.
	TypeDocker Type = "docker"
)

// AllTypes returns every supported artifact type.
func AllTypes() []Type {
	return []Type{TypeDebian, TypeDocker}
}

// IsValid returns true if the type is supported.
func (t Type) IsValid() bool {
	return t == TypeDebian || t == TypeDocker
}

// String returns the string representation of the type.
func (t Type) String() string {
	return string(t)
}

// ParseType parses a string into a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid artifact type: %q (must be deb or docker)", s)
	}
	return t, nil
}

// ReleaseStatus is the optional release maturity attached to a stored version.
type ReleaseStatus string

const (
	StatusUnknown   ReleaseStatus = ""
	StatusSnapshot  ReleaseStatus = "SNAPSHOT"
	StatusCandidate ReleaseStatus = "CANDIDATE"
	StatusRelease   ReleaseStatus = "RELEASE"
	StatusFinal     ReleaseStatus = "FINAL"
)

// IsValid returns true if the status is a known value. The empty status is valid.
func (s ReleaseStatus) IsValid() bool {
	switch s {
	case StatusUnknown, StatusSnapshot, StatusCandidate, StatusRelease, StatusFinal:
		return true
	default:
		return false
	}
}

// TagStrategy selects how docker tags are ordered.
type TagStrategy string

const (
	// TagStrategySemver orders the captured tag value as a semantic version.
	TagStrategySemver TagStrategy = "semver-tag"
	// TagStrategyIncreasing orders the captured tag value as an unsigned integer.
	TagStrategyIncreasing TagStrategy = "increasing-tag"
)

// IsValid returns true if the strategy is supported.
func (s TagStrategy) IsValid() bool {
	return s == TagStrategySemver || s == TagStrategyIncreasing
}

// DefaultTagPattern accepts every tag and captures all of it.
const DefaultTagPattern = `^.*$`

// DebianPolicy is the eligibility policy for Debian artifacts.
type DebianPolicy struct {
	// Statuses is the release-status allow-list. Empty means every version is eligible.
	Statuses []ReleaseStatus `json:"statuses,omitempty" yaml:"statuses,omitempty"`
}

// DockerPolicy is the eligibility policy for container image artifacts.
type DockerPolicy struct {
	// TagPattern is the regular expression a tag must match.
	TagPattern string `json:"tagPattern,omitempty" yaml:"tagPattern,omitempty"`
	// CaptureGroup selects the submatch used for ordering; 0 is the whole match.
	CaptureGroup int `json:"captureGroup,omitempty" yaml:"captureGroup,omitempty"`
	// Strategy is how captured values are ordered.
	Strategy TagStrategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`
}

// DeliveryArtifact is an artifact declared by a delivery config.
type DeliveryArtifact struct {
	// ID is the surrogate identity assigned on first registration.
	ID string `json:"id"`
	// Name is the package or image name.
	Name string `json:"name"`
	// Type is the artifact type.
	Type Type `json:"type"`
	// Reference is unique within the owning delivery config. Defaults to Name.
	Reference string `json:"reference"`
	// DeliveryConfigName is the owning delivery config.
	DeliveryConfigName string `json:"deliveryConfigName"`

	Debian DebianPolicy `json:"debian,omitempty"`
	Docker DockerPolicy `json:"docker,omitempty"`
}

// NewDebianArtifact creates a Debian artifact restricted to the given statuses.
func NewDebianArtifact(name, deliveryConfig, reference string, statuses ...ReleaseStatus) DeliveryArtifact {
	return DeliveryArtifact{
		Name:               name,
		Type:               TypeDebian,
		Reference:          reference,
		DeliveryConfigName: deliveryConfig,
		Debian:             DebianPolicy{Statuses: statuses},
	}.WithDefaults()
}

// NewDockerArtifact creates a container image artifact.
func NewDockerArtifact(name, deliveryConfig, reference string, policy DockerPolicy) DeliveryArtifact {
	return DeliveryArtifact{
		Name:               name,
		Type:               TypeDocker,
		Reference:          reference,
		DeliveryConfigName: deliveryConfig,
		Docker:             policy,
	}.WithDefaults()
}

// WithDefaults returns a copy with the reference and type-specific defaults filled in.
func (a DeliveryArtifact) WithDefaults() DeliveryArtifact {
	if a.Reference == "" {
		a.Reference = a.Name
	}
	if a.Type == TypeDocker {
		if a.Docker.TagPattern == "" {
			a.Docker.TagPattern = DefaultTagPattern
		}
		if a.Docker.Strategy == "" {
			a.Docker.Strategy = TagStrategySemver
		}
	}
	a.Debian.Statuses = slices.Clone(a.Debian.Statuses)
	return a
}

// Key returns the natural identity of the artifact.
func (a DeliveryArtifact) Key() Key {
	return Key{
		Name:           a.Name,
		Type:           a.Type,
		DeliveryConfig: a.DeliveryConfigName,
		Reference:      a.Reference,
	}
}

// VersionKey returns the key under which the artifact's versions are stored.
func (a DeliveryArtifact) VersionKey() VersionKey {
	return VersionKey{Name: a.Name, Type: a.Type}
}

// Validate checks that the artifact is well formed.
func (a DeliveryArtifact) Validate() error {
	const op = "artifact.Validate"

	if a.Name == "" {
		return rperrors.Validation(op, "artifact name is required")
	}
	if !a.Type.IsValid() {
		return rperrors.Validation(op, fmt.Sprintf("invalid artifact type %q", a.Type))
	}
	if a.DeliveryConfigName == "" {
		return rperrors.Validation(op, "delivery config name is required")
	}
	for _, s := range a.Debian.Statuses {
		if !s.IsValid() || s == StatusUnknown {
			return rperrors.Validation(op, fmt.Sprintf("invalid release status %q", s))
		}
	}
	if a.Type == TypeDocker {
		re, err := regexp.Compile(a.Docker.TagPattern)
		if err != nil {
			return rperrors.Wrap(err, rperrors.KindValidation, op, "invalid tag pattern")
		}
		if a.Docker.CaptureGroup < 0 || a.Docker.CaptureGroup > re.NumSubexp() {
			return rperrors.Validation(op, fmt.Sprintf("capture group %d out of range for pattern %q",
				a.Docker.CaptureGroup, a.Docker.TagPattern))
		}
		if !a.Docker.Strategy.IsValid() {
			return rperrors.Validation(op, fmt.Sprintf("invalid tag strategy %q", a.Docker.Strategy))
		}
	}
	return nil
}

// Key is the natural identity of a DeliveryArtifact.
type Key struct {
	Name           string
	Type           Type
	DeliveryConfig string
	Reference      string
}

// String returns a readable form of the key.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s@%s:%s", k.Type, k.Name, k.DeliveryConfig, k.Reference)
}

// VersionKey scopes stored versions. Versions are shared by every artifact with the same name and type.
type VersionKey struct {
	Name string
	Type Type
}

// String returns a readable form of the key.
func (k VersionKey) String() string {
	return fmt.Sprintf("%s/%s", k.Type, k.Name)
}

// VersionRecord is a stored version with its optional release status.
type VersionRecord struct {
	Version string        `json:"version"`
	Status  ReleaseStatus `json:"status,omitempty"`
}
