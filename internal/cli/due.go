package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
)

var dueRelease bool

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "Claim the artifacts due for a version check",
	Long: `Claim a batch of artifacts whose versions have not been checked for at
least scheduler.min_time_since_last_check. Claimed artifacts are stamped as
checked and leased to this process for scheduler.lease_ttl.

With scheduler.redis_addr set, the lease is shared so concurrent callers
never receive the same artifact.`,
	Args: cobra.NoArgs,
	RunE: runDue,
}

var machineCmd = &cobra.Command{
	Use:   "machine",
	Short: "Print the promotion lifecycle as XState JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := promotion.ExportXStateJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

func init() {
	dueCmd.Flags().BoolVar(&dueRelease, "release", false, "release the leases before exiting")

	rootCmd.AddCommand(dueCmd, machineCmd)
}

func runDue(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(cmd.ErrOrStderr(), app)
	dispatcher := app.Dispatcher()

	due, err := dispatcher.Next(ctx)
	if err != nil {
		return err
	}
	if dueRelease {
		for _, art := range due {
			if err := dispatcher.Done(ctx, art); err != nil {
				return err
			}
		}
	}

	if outputJSON {
		if due == nil {
			due = []artifact.DeliveryArtifact{}
		}
		return writeJSON(out, due)
	}
	if len(due) == 0 {
		printInfo(out, "No artifacts due for a check")
		return nil
	}
	for _, art := range due {
		fmt.Fprintf(out, "%s\t%s\t%s\n", art.Type, art.Name, art.Key())
	}
	return nil
}
