package artifact

import (
	"fmt"
	"slices"

	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
)

// DeliveryConfig is the slice of a delivery config the ledger needs: its name
// and the ordered environments of its pipeline.
type DeliveryConfig struct {
	Name           string   `json:"name" yaml:"name"`
	Application    string   `json:"application,omitempty" yaml:"application,omitempty"`
	ServiceAccount string   `json:"serviceAccount,omitempty" yaml:"serviceAccount,omitempty"`
	Environments   []string `json:"environments" yaml:"environments"`
}

// HasEnvironment reports whether the config declares the environment.
func (c DeliveryConfig) HasEnvironment(name string) bool {
	return slices.Contains(c.Environments, name)
}

// Validate checks that the config is well formed.
func (c DeliveryConfig) Validate() error {
	const op = "artifact.DeliveryConfig.Validate"

	if c.Name == "" {
		return rperrors.Validation(op, "delivery config name is required")
	}
	seen := make(map[string]struct{}, len(c.Environments))
	for _, env := range c.Environments {
		if env == "" {
			return rperrors.Validation(op, "environment name cannot be empty")
		}
		if _, dup := seen[env]; dup {
			return rperrors.Validation(op, fmt.Sprintf("duplicate environment %q", env))
		}
		seen[env] = struct{}{}
	}
	return nil
}
