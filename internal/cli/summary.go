package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show every environment of a delivery config and the state of its versions",
	Long: `Show, for every environment of a delivery config in pipeline order, the
current, deploying, pending, approved, previous, vetoed and skipped versions
of each artifact.

Examples:
  ledger summary -D checkout
  ledger summary -D checkout --json`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

var versionSummaryCmd = &cobra.Command{
	Use:   "version-summary VERSION",
	Short: "Show the history of one version in one environment",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersionSummary,
}

func init() {
	addConfigFlag(summaryCmd)
	addTargetFlags(versionSummaryCmd)

	rootCmd.AddCommand(summaryCmd, versionSummaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if err := requireFlags("cli.summary", map[string]string{"delivery-config": targetConfig}); err != nil {
		return err
	}
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(cmd.ErrOrStderr(), app)

	summaries, err := app.Store().GetEnvironmentSummaries(ctx, targetConfig)
	if err != nil {
		return err
	}

	if outputJSON {
		if summaries == nil {
			summaries = []promotion.EnvironmentSummary{}
		}
		return writeJSON(out, summaries)
	}
	printTitle(out, "Delivery config "+targetConfig)
	for _, env := range summaries {
		fmt.Fprintln(out)
		fmt.Fprintln(out, styles.Bold.Render(env.Name))
		if len(env.Artifacts) == 0 {
			printSubtle(out, "  no artifacts")
		}
		for _, art := range env.Artifacts {
			printArtifactVersions(out, art)
		}
	}
	return nil
}

func printArtifactVersions(w io.Writer, art promotion.ArtifactVersions) {
	header := fmt.Sprintf("  %s (%s %s)", art.Reference, art.Type, art.Name)
	if art.Pinned != nil {
		header += styles.Warning.Render(" pinned to " + art.Pinned.Version)
	}
	fmt.Fprintln(w, header)

	v := art.Versions
	row := func(label string, versions ...string) {
		var nonEmpty []string
		for _, s := range versions {
			if s != "" {
				nonEmpty = append(nonEmpty, s)
			}
		}
		if len(nonEmpty) == 0 {
			return
		}
		fmt.Fprintf(w, "    %-10s %s\n", label, strings.Join(nonEmpty, ", "))
	}
	row("current", v.Current)
	row("deploying", v.Deploying)
	row("approved", v.Approved...)
	row("pending", v.Pending...)
	row("previous", v.Previous...)
	row("vetoed", v.Vetoed...)
	row("skipped", v.Skipped...)
}

func runVersionSummary(cmd *cobra.Command, args []string) error {
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
	summary, err := store.GetArtifactSummaryInEnvironment(ctx, targetConfig, targetEnv, art.Reference, args[0])
	if err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(out, summary)
	}
	printTitle(out, fmt.Sprintf("%s %s in %s", art.Reference, summary.Version, summary.Environment))
	fmt.Fprintf(out, "  state:       %s\n", summary.State)
	if summary.DeployedAt != nil {
		fmt.Fprintf(out, "  deployed at: %s\n", summary.DeployedAt.Format(time.RFC3339))
	}
	if summary.ReplacedBy != "" {
		fmt.Fprintf(out, "  replaced by: %s\n", summary.ReplacedBy)
	}
	if summary.ReplacedAt != nil {
		fmt.Fprintf(out, "  replaced at: %s\n", summary.ReplacedAt.Format(time.RFC3339))
	}
	if summary.Pinned != nil {
		fmt.Fprintf(out, "  pinned by:   %s %s\n", summary.Pinned.PinnedBy, styles.Subtle.Render(summary.Pinned.Comment))
	}
	if summary.Vetoed != nil {
		fmt.Fprintf(out, "  vetoed by:   %s %s\n", summary.Vetoed.VetoedBy, styles.Subtle.Render(summary.Vetoed.Comment))
		if summary.Vetoed.RollbackTo != "" {
			fmt.Fprintf(out, "  rolled back: %s\n", summary.Vetoed.RollbackTo)
		}
	}
	return nil
}
