package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
)

var (
	vetoForce   bool
	vetoBy      string
	vetoComment string
)

var vetoCmd = &cobra.Command{
	Use:   "veto VERSION",
	Short: "Veto a version in an environment",
	Long: `Veto a version so it is never deployed to the environment again.

Vetoing a version records the version the environment rolls back to.
A pinned version cannot be vetoed. Without --force, vetoing an already
vetoed version, or one that would repeat an earlier rollback, is a no-op.

Examples:
  ledger veto 1.2.3 -D checkout -a checkout -e prod --by alice --comment "breaks checkout"`,
	Args: cobra.ExactArgs(1),
	RunE: runVeto,
}

var unvetoCmd = &cobra.Command{
	Use:   "unveto VERSION",
	Short: "Remove the veto of a version in an environment",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnveto,
}

var vetoesCmd = &cobra.Command{
	Use:   "vetoes",
	Short: "List the vetoed versions of a delivery config",
	Args:  cobra.NoArgs,
	RunE:  runVetoes,
}

func init() {
	addTargetFlags(vetoCmd)
	vetoCmd.Flags().BoolVar(&vetoForce, "force", false, "veto even if it repeats an earlier rollback")
	vetoCmd.Flags().StringVar(&vetoBy, "by", "", "who vetoed the version")
	vetoCmd.Flags().StringVar(&vetoComment, "comment", "", "why the version was vetoed")

	addTargetFlags(unvetoCmd)
	addConfigFlag(vetoesCmd)

	rootCmd.AddCommand(vetoCmd, unvetoCmd, vetoesCmd)
}

// VetoOutput is the output of veto and unveto.
type VetoOutput struct {
	Artifact    string `json:"artifact"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Changed     bool   `json:"changed"`
}

func runVeto(cmd *cobra.Command, args []string) error {
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
	output := VetoOutput{Artifact: art.Reference, Environment: targetEnv, Version: args[0]}
	output.Changed, err = store.MarkAsVetoedIn(ctx, targetConfig, promotion.EnvironmentArtifactVeto{
		TargetEnvironment: targetEnv,
		Reference:         art.Reference,
		Version:           args[0],
		VetoedBy:          vetoBy,
		Comment:           vetoComment,
	}, vetoForce)
	if err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(out, output)
	}
	if !output.Changed {
		printWarning(out, fmt.Sprintf("%s %s was not vetoed in %s", art.Reference, args[0], targetEnv))
		return nil
	}
	printSuccess(out, fmt.Sprintf("Vetoed %s %s in %s", art.Reference, args[0], targetEnv))
	return nil
}

func runUnveto(cmd *cobra.Command, args []string) error {
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
	output := VetoOutput{Artifact: art.Reference, Environment: targetEnv, Version: args[0]}
	output.Changed, err = store.DeleteVeto(ctx, targetConfig, art, args[0], targetEnv)
	if err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(out, output)
	}
	if !output.Changed {
		printInfo(out, fmt.Sprintf("%s %s is not vetoed in %s", art.Reference, args[0], targetEnv))
		return nil
	}
	printSuccess(out, fmt.Sprintf("Removed veto of %s %s in %s", art.Reference, args[0], targetEnv))
	return nil
}

func runVetoes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if err := requireFlags("cli.vetoes", map[string]string{"delivery-config": targetConfig}); err != nil {
		return err
	}
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(cmd.ErrOrStderr(), app)

	vetoes, err := app.Store().VetoedEnvironmentVersions(ctx, targetConfig)
	if err != nil {
		return err
	}

	if outputJSON {
		if vetoes == nil {
			vetoes = []promotion.EnvironmentArtifactVetoes{}
		}
		return writeJSON(out, vetoes)
	}
	if len(vetoes) == 0 {
		printInfo(out, "No vetoed versions in "+targetConfig)
		return nil
	}
	printTitle(out, "Vetoed versions")
	for _, v := range vetoes {
		fmt.Fprintf(out, "  %-12s %-20s %v\n", v.TargetEnvironment, v.Reference, v.Versions)
	}
	return nil
}
