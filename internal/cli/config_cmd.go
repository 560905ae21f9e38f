package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spinnaker/spinnaker-sub014/internal/config"
	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
)

var (
	manifestFile   string
	applyPrune     bool
	initConfigPath string
	initForce      bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage delivery configs and the ledger configuration",
}

var configApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create or update a delivery config and its artifacts from a manifest",
	Long: `Apply a delivery config manifest.

The manifest names the delivery config, its ordered environments and the
artifacts it declares:

  name: checkout
  environments: [staging, prod]
  artifacts:
    - name: checkout
      type: deb
      statuses: [RELEASE]
    - name: org/checkout-api
      type: docker
      reference: api
      tagPattern: '^v(\d+\.\d+\.\d+)$'
      captureGroup: 1
      strategy: semver-tag

Examples:
  ledger config apply -f delivery.yaml
  cat delivery.yaml | ledger config apply -f -`,
	Args: cobra.NoArgs,
	RunE: runConfigApply,
}

var configShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show a delivery config and its artifacts",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigShow,
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a delivery config together with the artifacts it declares",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigDelete,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default ledger configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configApplyCmd.Flags().StringVarP(&manifestFile, "file", "f", "", "manifest file, or - for stdin")
	configApplyCmd.Flags().BoolVar(&applyPrune, "prune", false, "delete artifacts of the config that the manifest no longer declares")
	_ = configApplyCmd.MarkFlagRequired("file")

	configInitCmd.Flags().StringVar(&initConfigPath, "path", "ledger.config.yaml", "where to write the configuration")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configApplyCmd, configShowCmd, configDeleteCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

// DeliveryConfigOutput is the output of config apply and config show.
type DeliveryConfigOutput struct {
	Config    artifact.DeliveryConfig     `json:"config"`
	Artifacts []artifact.DeliveryArtifact `json:"artifacts"`
	Pruned    []string                    `json:"pruned,omitempty"`
}

func runConfigApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	m, err := readManifest(manifestFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	arts, err := m.DeliveryArtifacts()
	if err != nil {
		return err
	}

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(cmd.ErrOrStderr(), app)
	store := app.Store()

	if err := store.StoreDeliveryConfig(ctx, m.DeliveryConfig); err != nil {
		return fmt.Errorf("failed to store delivery config: %w", err)
	}

	output := DeliveryConfigOutput{Config: m.DeliveryConfig}
	if applyPrune {
		declared := make(map[artifact.Key]struct{}, len(arts))
		for _, art := range arts {
			declared[art.WithDefaults().Key()] = struct{}{}
		}
		// Prune first so a reference can move to a new artifact in one apply.
		for _, existing := range configArtifacts(cmd, app, m.Name) {
			if _, ok := declared[existing.Key()]; ok {
				continue
			}
			if err := store.Delete(ctx, existing); err != nil {
				return fmt.Errorf("failed to prune %s: %w", existing.Reference, err)
			}
			output.Pruned = append(output.Pruned, existing.Reference)
		}
	}

	for _, art := range arts {
		registered, err := store.Register(ctx, art)
		if err != nil {
			return fmt.Errorf("failed to register %s: %w", art.Reference, err)
		}
		output.Artifacts = append(output.Artifacts, registered)
	}

	if outputJSON {
		return writeJSON(out, output)
	}
	printSuccess(out, fmt.Sprintf("Applied delivery config %s (%d artifacts)", m.Name, len(output.Artifacts)))
	for _, ref := range output.Pruned {
		printSubtle(out, "  pruned "+ref)
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(cmd.ErrOrStderr(), app)

	dc, err := app.Store().GetDeliveryConfig(ctx, args[0])
	if err != nil {
		return err
	}
	output := DeliveryConfigOutput{Config: dc, Artifacts: configArtifacts(cmd, app, dc.Name)}

	if outputJSON {
		return writeJSON(out, output)
	}
	printTitle(out, "Delivery config "+dc.Name)
	if dc.Application != "" {
		fmt.Fprintf(out, "  application:  %s\n", dc.Application)
	}
	fmt.Fprintf(out, "  environments: %s\n", strings.Join(dc.Environments, " → "))
	fmt.Fprintln(out)
	fmt.Fprintln(out, styles.Bold.Render("Artifacts"))
	if len(output.Artifacts) == 0 {
		printSubtle(out, "  none")
	}
	for _, art := range output.Artifacts {
		fmt.Fprintf(out, "  %-20s %-7s %s\n", art.Reference, art.Type, art.Name)
	}
	return nil
}

func runConfigDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(cmd.ErrOrStderr(), app)

	if err := app.Store().DeleteDeliveryConfig(ctx, args[0]); err != nil {
		return err
	}
	if outputJSON {
		return writeJSON(out, map[string]string{"deleted": args[0]})
	}
	printSuccess(out, "Deleted delivery config "+args[0])
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if _, err := os.Stat(initConfigPath); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", initConfigPath)
	}
	if err := config.WriteDefaultConfig(initConfigPath); err != nil {
		return err
	}
	printSuccess(out, "Wrote "+initConfigPath)
	return nil
}

// configArtifacts returns the artifacts declared by the named delivery config.
func configArtifacts(cmd *cobra.Command, app cliApp, name string) []artifact.DeliveryArtifact {
	var arts []artifact.DeliveryArtifact
	for _, art := range app.Store().GetAll(cmd.Context()) {
		if art.DeliveryConfigName == name {
			arts = append(arts, art)
		}
	}
	return arts
}
