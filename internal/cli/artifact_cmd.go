package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
)

var (
	registerName         string
	registerType         string
	registerReference    string
	registerStatuses     string
	registerTagPattern   string
	registerCaptureGroup int
	registerStrategy     string

	listType string

	storeType   string
	storeStatus string

	versionsRaw bool
)

var artifactCmd = &cobra.Command{
	Use:     "artifact",
	Aliases: []string{"artifacts"},
	Short:   "Manage artifacts and their observed versions",
}

var artifactRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Declare an artifact in a delivery config",
	Long: `Declare an artifact in a delivery config. Registering the same
name, type and reference again updates the declaration in place.

Examples:
  ledger artifact register -D checkout --name checkout --type deb --statuses RELEASE,FINAL
  ledger artifact register -D checkout --name org/api --type docker --tag-pattern '^v(.*)$' --capture-group 1`,
	Args: cobra.NoArgs,
	RunE: runArtifactRegister,
}

var artifactListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered artifacts",
	Args:  cobra.NoArgs,
	RunE:  runArtifactList,
}

var artifactStoreCmd = &cobra.Command{
	Use:   "store NAME VERSION",
	Short: "Record an observed version of an artifact",
	Long: `Record an observed version. The version is shared by every artifact
with the same name and type, whichever delivery config declares it.

Examples:
  ledger artifact store checkout 1.2.3-h45 --type deb --status RELEASE
  ledger artifact store org/api v1.4.0 --type docker`,
	Args: cobra.ExactArgs(2),
	RunE: runArtifactStore,
}

var artifactVersionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List the eligible versions of an artifact, most deployable first",
	Args:  cobra.NoArgs,
	RunE:  runArtifactVersions,
}

var artifactDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove an artifact declaration and its promotion history",
	Args:  cobra.NoArgs,
	RunE:  runArtifactDelete,
}

func init() {
	addConfigFlag(artifactRegisterCmd)
	artifactRegisterCmd.Flags().StringVar(&registerName, "name", "", "package or image name")
	artifactRegisterCmd.Flags().StringVar(&registerType, "type", string(artifact.TypeDebian), "artifact type (deb, docker)")
	artifactRegisterCmd.Flags().StringVar(&registerReference, "reference", "", "reference within the delivery config (default: name)")
	artifactRegisterCmd.Flags().StringVar(&registerStatuses, "statuses", "", "comma separated release statuses a deb version must have")
	artifactRegisterCmd.Flags().StringVar(&registerTagPattern, "tag-pattern", "", "regular expression docker tags must match")
	artifactRegisterCmd.Flags().IntVar(&registerCaptureGroup, "capture-group", 0, "tag pattern group used for ordering")
	artifactRegisterCmd.Flags().StringVar(&registerStrategy, "strategy", "", "docker tag ordering (semver-tag, increasing-tag)")

	artifactListCmd.Flags().StringVar(&listType, "type", "", "only list artifacts of this type")

	artifactStoreCmd.Flags().StringVar(&storeType, "type", string(artifact.TypeDebian), "artifact type (deb, docker)")
	artifactStoreCmd.Flags().StringVar(&storeStatus, "status", "", "release status (SNAPSHOT, CANDIDATE, RELEASE, FINAL)")

	addArtifactFlags(artifactVersionsCmd)
	artifactVersionsCmd.Flags().BoolVar(&versionsRaw, "raw", false, "show every stored version in the order observed")

	addArtifactFlags(artifactDeleteCmd)

	artifactCmd.AddCommand(artifactRegisterCmd, artifactListCmd, artifactStoreCmd, artifactVersionsCmd, artifactDeleteCmd)
	rootCmd.AddCommand(artifactCmd)
}

func runArtifactRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if err := requireFlags("cli.artifactRegister", map[string]string{
		"delivery-config": targetConfig,
		"name":            registerName,
	}); err != nil {
		return err
	}
	decl := ManifestArtifact{
		Name:         registerName,
		Type:         artifact.Type(registerType),
		Reference:    registerReference,
		Statuses:     parseStatuses(registerStatuses),
		TagPattern:   registerTagPattern,
		CaptureGroup: registerCaptureGroup,
		Strategy:     artifact.TagStrategy(registerStrategy),
	}
	art, err := decl.toArtifact(targetConfig)
	if err != nil {
		return err
	}

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(cmd.ErrOrStderr(), app)

	if _, err := app.Store().GetDeliveryConfig(ctx, targetConfig); err != nil {
		return err
	}
	registered, err := app.Store().Register(ctx, art)
	if err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(out, registered)
	}
	printSuccess(out, fmt.Sprintf("Registered %s in %s", registered.Key(), targetConfig))
	return nil
}

func runArtifactList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(cmd.ErrOrStderr(), app)

	var types []artifact.Type
	if listType != "" {
		types = append(types, artifact.Type(listType))
	}
	arts := app.Store().GetAll(ctx, types...)

	if outputJSON {
		if arts == nil {
			arts = []artifact.DeliveryArtifact{}
		}
		return writeJSON(out, arts)
	}
	if len(arts) == 0 {
		printInfo(out, "No artifacts registered")
		return nil
	}
	printTitle(out, "Artifacts")
	for _, art := range arts {
		fmt.Fprintf(out, "  %-16s %-20s %-7s %s\n", art.DeliveryConfigName, art.Reference, art.Type, art.Name)
	}
	return nil
}

// StoreVersionOutput is the output of artifact store.
type StoreVersionOutput struct {
	Name    string                 `json:"name"`
	Type    artifact.Type          `json:"type"`
	Version string                 `json:"version"`
	Status  artifact.ReleaseStatus `json:"status,omitempty"`
	Added   bool                   `json:"added"`
}

func runArtifactStore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(cmd.ErrOrStderr(), app)

	output := StoreVersionOutput{
		Name:    args[0],
		Type:    artifact.Type(strings.ToLower(storeType)),
		Version: args[1],
		Status:  artifact.ReleaseStatus(strings.ToUpper(storeStatus)),
	}
	output.Added, err = app.Store().StoreVersion(ctx, output.Name, output.Type, output.Version, output.Status)
	if err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(out, output)
	}
	if output.Added {
		printSuccess(out, fmt.Sprintf("Stored %s %s", output.Name, output.Version))
	} else {
		printInfo(out, fmt.Sprintf("%s %s was already stored", output.Name, output.Version))
	}
	return nil
}

// VersionsOutput is the output of artifact versions.
type VersionsOutput struct {
	Reference string                   `json:"reference"`
	Versions  []string                 `json:"versions,omitempty"`
	Raw       []artifact.VersionRecord `json:"raw,omitempty"`
}

func runArtifactVersions(cmd *cobra.Command, args []string) error {
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

	output := VersionsOutput{Reference: art.Reference}
	if versionsRaw {
		output.Raw, err = store.RawVersions(ctx, art.Name, art.Type)
	} else {
		output.Versions, err = store.Versions(ctx, art)
	}
	if err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(out, output)
	}
	if len(output.Versions) == 0 && len(output.Raw) == 0 {
		printInfo(out, "No versions stored for "+art.Reference)
		return nil
	}
	printTitle(out, "Versions of "+art.Reference)
	for _, v := range output.Versions {
		fmt.Fprintf(out, "  %s\n", v)
	}
	for _, r := range output.Raw {
		fmt.Fprintf(out, "  %-24s %s\n", r.Version, styles.Subtle.Render(string(r.Status)))
	}
	return nil
}

func runArtifactDelete(cmd *cobra.Command, args []string) error {
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
	if err := store.Delete(ctx, art); err != nil {
		return err
	}
	if outputJSON {
		return writeJSON(out, map[string]string{"deleted": art.Reference})
	}
	printSuccess(out, "Deleted "+art.Reference)
	return nil
}
