package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
)

var (
	pinBy      string
	pinComment string
)

var pinCmd = &cobra.Command{
	Use:   "pin VERSION",
	Short: "Pin an environment to a version of an artifact",
	Long: `Pin an environment to a version. While the pin exists the pinned
version is the latest approved version of the environment.

Examples:
  ledger pin 1.2.2 -D checkout -a checkout -e prod --by alice`,
	Args: cobra.ExactArgs(1),
	RunE: runPin,
}

var unpinCmd = &cobra.Command{
	Use:   "unpin",
	Short: "Remove the pin of an artifact in an environment",
	Args:  cobra.NoArgs,
	RunE:  runUnpin,
}

var pinsCmd = &cobra.Command{
	Use:   "pins",
	Short: "List the pinned environments of a delivery config",
	Args:  cobra.NoArgs,
	RunE:  runPins,
}

func init() {
	addTargetFlags(pinCmd)
	pinCmd.Flags().StringVar(&pinBy, "by", "", "who pinned the version")
	pinCmd.Flags().StringVar(&pinComment, "comment", "", "why the version was pinned")

	addTargetFlags(unpinCmd)
	addConfigFlag(pinsCmd)

	rootCmd.AddCommand(pinCmd, unpinCmd, pinsCmd)
}

func runPin(cmd *cobra.Command, args []string) error {
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
	pin := promotion.EnvironmentArtifactPin{
		TargetEnvironment: targetEnv,
		Reference:         art.Reference,
		Version:           args[0],
		PinnedBy:          pinBy,
		Comment:           pinComment,
	}
	if err := store.PinEnvironment(ctx, targetConfig, pin); err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(out, pin)
	}
	printSuccess(out, fmt.Sprintf("Pinned %s in %s to %s", art.Reference, targetEnv, args[0]))
	return nil
}

func runUnpin(cmd *cobra.Command, args []string) error {
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
	if err := store.DeletePin(ctx, targetConfig, targetEnv, art.Reference); err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(out, map[string]string{"unpinned": art.Reference, "environment": targetEnv})
	}
	printSuccess(out, fmt.Sprintf("Unpinned %s in %s", art.Reference, targetEnv))
	return nil
}

func runPins(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if err := requireFlags("cli.pins", map[string]string{"delivery-config": targetConfig}); err != nil {
		return err
	}
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(cmd.ErrOrStderr(), app)

	pins, err := app.Store().GetPinnedEnvironments(ctx, targetConfig)
	if err != nil {
		return err
	}

	if outputJSON {
		if pins == nil {
			pins = []promotion.PinnedEnvironment{}
		}
		return writeJSON(out, pins)
	}
	if len(pins) == 0 {
		printInfo(out, "No pinned environments in "+targetConfig)
		return nil
	}
	printTitle(out, "Pinned environments")
	for _, p := range pins {
		fmt.Fprintf(out, "  %-12s %-20s %s\n", p.TargetEnvironment, p.Reference, p.Version)
	}
	return nil
}
