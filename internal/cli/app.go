package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spinnaker/spinnaker-sub014/internal/application/checks"
	"github.com/spinnaker/spinnaker-sub014/internal/config"
	"github.com/spinnaker/spinnaker-sub014/internal/container"
	"github.com/spinnaker/spinnaker-sub014/internal/ledger"
)

// cliApp is the slice of the container the commands use.
type cliApp interface {
	Close() error
	Store() ledger.Store
	Dispatcher() *checks.Dispatcher
}

var newContainerApp = func(ctx context.Context, cfg *config.Config) (cliApp, error) {
	app, err := container.NewInitialized(ctx, cfg, container.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return app, nil
}

func openApp(ctx context.Context) (cliApp, error) {
	app, err := newContainerApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize container: %w", err)
	}
	return app, nil
}

func closeApp(w io.Writer, app cliApp) {
	if app == nil {
		return
	}
	if err := app.Close(); err != nil {
		printWarning(w, fmt.Sprintf("Failed to close app: %v", err))
	}
}
