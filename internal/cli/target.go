package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
	"github.com/spinnaker/spinnaker-sub014/internal/ledger"
)

// Flags naming the artifact and environment a command acts on.
var (
	targetConfig   string
	targetArtifact string
	targetEnv      string
)

func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&targetConfig, "delivery-config", "D", "", "delivery config name")
}

func addArtifactFlags(cmd *cobra.Command) {
	addConfigFlag(cmd)
	cmd.Flags().StringVarP(&targetArtifact, "artifact", "a", "", "artifact reference within the delivery config")
}

func addTargetFlags(cmd *cobra.Command) {
	addArtifactFlags(cmd)
	cmd.Flags().StringVarP(&targetEnv, "env", "e", "", "target environment")
}

func requireFlags(op string, values map[string]string) error {
	for name, value := range values {
		if value == "" {
			return rperrors.Validation(op, "--"+name+" is required")
		}
	}
	return nil
}

// resolveArtifact looks up the artifact named by --delivery-config and --artifact.
func resolveArtifact(ctx context.Context, store ledger.Store) (artifact.DeliveryArtifact, error) {
	if err := requireFlags("cli.resolveArtifact", map[string]string{
		"delivery-config": targetConfig,
		"artifact":        targetArtifact,
	}); err != nil {
		return artifact.DeliveryArtifact{}, err
	}
	return store.GetByReference(ctx, targetConfig, targetArtifact)
}

// resolveTarget is resolveArtifact plus a required --env.
func resolveTarget(ctx context.Context, store ledger.Store) (artifact.DeliveryArtifact, error) {
	if err := requireFlags("cli.resolveTarget", map[string]string{"env": targetEnv}); err != nil {
		return artifact.DeliveryArtifact{}, err
	}
	return resolveArtifact(ctx, store)
}

// parseStatuses splits a comma separated release status list.
func parseStatuses(s string) []artifact.ReleaseStatus {
	var out []artifact.ReleaseStatus
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, artifact.ReleaseStatus(part))
		}
	}
	return out
}
