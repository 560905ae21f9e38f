package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
	"github.com/spinnaker/spinnaker-sub014/internal/ledger"
)

var supersededBy string

var approveCmd = &cobra.Command{
	Use:   "approve VERSION",
	Short: "Approve a version for an environment",
	Long: `Approve a version of an artifact for an environment.

Approving is a no-op for a version that was already approved or has moved
past approval.

Examples:
  ledger approve 1.2.3 -D checkout -a checkout -e staging`,
	Args: cobra.ExactArgs(1),
	RunE: runApprove,
}

var deployingCmd = &cobra.Command{
	Use:   "deploying VERSION",
	Short: "Mark a version as deploying to an environment",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeploying,
}

var deployedCmd = &cobra.Command{
	Use:   "deployed VERSION",
	Short: "Mark a version as successfully deployed to an environment",
	Long: `Mark a version as the current version of an environment.

The previously current version becomes PREVIOUS, and older approved or
pending versions are skipped as superseded by this one.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeployed,
}

var skipCmd = &cobra.Command{
	Use:   "skip VERSION",
	Short: "Mark a version as skipped in an environment",
	Args:  cobra.ExactArgs(1),
	RunE:  runSkip,
}

var statusCmd = &cobra.Command{
	Use:   "status VERSION",
	Short: "Show the promotion status of a version in an environment",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the latest eligible version, or the latest approved in --env",
	Args:  cobra.NoArgs,
	RunE:  runLatest,
}

func init() {
	for _, c := range []*cobra.Command{approveCmd, deployingCmd, deployedCmd, skipCmd, statusCmd} {
		addTargetFlags(c)
	}
	addTargetFlags(latestCmd)
	skipCmd.Flags().StringVar(&supersededBy, "superseded-by", "", "version that replaced the skipped one")

	rootCmd.AddCommand(approveCmd, deployingCmd, deployedCmd, skipCmd, statusCmd, latestCmd)
}

// PromotionOutput is the output of the promotion commands.
type PromotionOutput struct {
	DeliveryConfig string           `json:"delivery_config"`
	Artifact       string           `json:"artifact"`
	Environment    string           `json:"environment"`
	Version        string           `json:"version"`
	Status         promotion.Status `json:"status"`
	Changed        *bool            `json:"changed,omitempty"`
}

// promote resolves the target, applies the mutation and reports the resulting status.
func promote(cmd *cobra.Command, version string, mutate func(context.Context, ledger.Store, artifact.DeliveryArtifact) (*bool, error)) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(cmd.ErrOrStderr(), app)
	store := app.Store()

	art, err := resolveTarget(ctx, store)
	if err != nil {
		return err
	}

	var changed *bool
	if mutate != nil {
		if changed, err = mutate(ctx, store, art); err != nil {
			return err
		}
	}
	status, err := store.VersionStatus(ctx, targetConfig, art, version, targetEnv)
	if err != nil {
		return err
	}

	output := PromotionOutput{
		DeliveryConfig: targetConfig,
		Artifact:       art.Reference,
		Environment:    targetEnv,
		Version:        version,
		Status:         status,
		Changed:        changed,
	}
	if outputJSON {
		return writeJSON(out, output)
	}
	msg := fmt.Sprintf("%s %s in %s: %s", art.Reference, version, targetEnv, status)
	if changed != nil && !*changed {
		printInfo(out, msg+" (unchanged)")
		return nil
	}
	if mutate == nil {
		fmt.Fprintln(out, msg)
		return nil
	}
	printSuccess(out, msg)
	return nil
}

func runApprove(cmd *cobra.Command, args []string) error {
	version := args[0]
	return promote(cmd, version, func(ctx context.Context, store ledger.Store, art artifact.DeliveryArtifact) (*bool, error) {
		ok, err := store.ApproveVersionFor(ctx, targetConfig, art, version, targetEnv)
		return &ok, err
	})
}

func runDeploying(cmd *cobra.Command, args []string) error {
	version := args[0]
	return promote(cmd, version, func(ctx context.Context, store ledger.Store, art artifact.DeliveryArtifact) (*bool, error) {
		return nil, store.MarkAsDeployingTo(ctx, targetConfig, art, version, targetEnv)
	})
}

func runDeployed(cmd *cobra.Command, args []string) error {
	version := args[0]
	return promote(cmd, version, func(ctx context.Context, store ledger.Store, art artifact.DeliveryArtifact) (*bool, error) {
		return nil, store.MarkAsSuccessfullyDeployedTo(ctx, targetConfig, art, version, targetEnv)
	})
}

func runSkip(cmd *cobra.Command, args []string) error {
	version := args[0]
	return promote(cmd, version, func(ctx context.Context, store ledger.Store, art artifact.DeliveryArtifact) (*bool, error) {
		return nil, store.MarkAsSkipped(ctx, targetConfig, art, version, targetEnv, supersededBy)
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	return promote(cmd, args[0], nil)
}

// LatestOutput is the output of the latest command.
type LatestOutput struct {
	Artifact    string `json:"artifact"`
	Environment string `json:"environment,omitempty"`
	Version     string `json:"version"`
}

func runLatest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(cmd.ErrOrStderr(), app)
	store := app.Store()

	art, err := resolveArtifact(ctx, store)
	if err != nil {
		return err
	}

	output := LatestOutput{Artifact: art.Reference, Environment: targetEnv}
	if targetEnv == "" {
		output.Version, err = store.LatestVersion(ctx, art)
	} else {
		output.Version, err = store.LatestVersionApprovedIn(ctx, targetConfig, art, targetEnv)
	}
	if err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(out, output)
	}
	if output.Version == "" {
		printInfo(out, "No version found for "+art.Reference)
		return nil
	}
	fmt.Fprintln(out, output.Version)
	return nil
}
