package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
)

func TestApproveVersionFor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	approved, err := f.store.ApproveVersionFor(ctx, testConfig, f.api, "1.0.0", testEnv)
	require.NoError(t, err)
	assert.True(t, approved)

	approved, err = f.store.ApproveVersionFor(ctx, testConfig, f.api, "1.0.0", testEnv)
	require.NoError(t, err)
	assert.False(t, approved, "second approval is a no-op")

	assert.Equal(t, promotion.StatusApproved, f.status(t, testEnv, "1.0.0"))
	assert.Equal(t, promotion.StatusPending, f.status(t, "test", "1.0.0"), "approval is scoped to one environment")

	ok, err := f.store.IsApprovedFor(ctx, testConfig, f.api, "1.0.0", testEnv)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestApproveVersionFor_KeepsLaterStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deploy(t, testEnv, "1.0.0")
	approved, err := f.store.ApproveVersionFor(ctx, testConfig, f.api, "1.0.0", testEnv)
	require.NoError(t, err)
	assert.True(t, approved)
	assert.Equal(t, promotion.StatusCurrent, f.status(t, testEnv, "1.0.0"))
	assert.Equal(t, "1.0.0", f.latestApproved(t, testEnv))
}

func TestApproveVersionFor_UnregisteredArtifact(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.ApproveVersionFor(context.Background(), testConfig,
		artifact.NewDebianArtifact("web", testConfig, "web"), "1.0.0", testEnv)
	require.Error(t, err)
	assert.True(t, errors.Is(err, artifact.ErrArtifactNotFound))
}

func TestPromotion_UndeclaredEnvironment(t *testing.T) {
	const env = "no-such-env"
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"ApproveVersionFor", func() error {
			_, err := f.store.ApproveVersionFor(ctx, testConfig, f.api, "1.0.0", env)
			return err
		}},
		{"LatestVersionApprovedIn", func() error {
			_, err := f.store.LatestVersionApprovedIn(ctx, testConfig, f.api, env)
			return err
		}},
		{"MarkAsDeployingTo", func() error {
			return f.store.MarkAsDeployingTo(ctx, testConfig, f.api, "1.0.0", env)
		}},
		{"MarkAsSuccessfullyDeployedTo", func() error {
			return f.store.MarkAsSuccessfullyDeployedTo(ctx, testConfig, f.api, "1.0.0", env)
		}},
		{"MarkAsSkipped", func() error {
			return f.store.MarkAsSkipped(ctx, testConfig, f.api, "1.0.0", env, "1.1.0")
		}},
		{"WasSuccessfullyDeployedTo", func() error {
			_, err := f.store.WasSuccessfullyDeployedTo(ctx, testConfig, f.api, "1.0.0", env)
			return err
		}},
		{"IsCurrentlyDeployedTo", func() error {
			_, err := f.store.IsCurrentlyDeployedTo(ctx, testConfig, f.api, "1.0.0", env)
			return err
		}},
		{"IsApprovedFor", func() error {
			_, err := f.store.IsApprovedFor(ctx, testConfig, f.api, "1.0.0", env)
			return err
		}},
		{"VersionStatus", func() error {
			_, err := f.store.VersionStatus(ctx, testConfig, f.api, "1.0.0", env)
			return err
		}},
		{"DeleteVeto", func() error {
			_, err := f.store.DeleteVeto(ctx, testConfig, f.api, "1.0.0", env)
			return err
		}},
		{"MarkAsVetoedIn", func() error {
			_, err := f.store.MarkAsVetoedIn(ctx, testConfig, promotion.EnvironmentArtifactVeto{
				TargetEnvironment: env, Reference: f.api.Reference, Version: "1.0.0",
			}, false)
			return err
		}},
		{"PinEnvironment", func() error {
			return f.store.PinEnvironment(ctx, testConfig, promotion.EnvironmentArtifactPin{
				TargetEnvironment: env, Reference: f.api.Reference, Version: "1.0.0",
			})
		}},
		{"DeletePin", func() error {
			return f.store.DeletePin(ctx, testConfig, env, f.api.Reference)
		}},
		{"DeletePin all artifacts", func() error {
			return f.store.DeletePin(ctx, testConfig, env, "")
		}},
		{"GetArtifactSummaryInEnvironment", func() error {
			_, err := f.store.GetArtifactSummaryInEnvironment(ctx, testConfig, env, f.api.Reference, "1.0.0")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, rperrors.IsKind(err, rperrors.KindValidation), "got %v", err)
		})
	}

	f.store.envMu.Lock()
	defer f.store.envMu.Unlock()
	assert.Empty(t, f.store.envs, "rejected calls record no state")
}

func TestPromotion_QueriesDoNotRecordState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.store.IsApprovedFor(ctx, testConfig, f.api, "1.0.0", testEnv)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, promotion.StatusPending, f.status(t, testEnv, "1.0.0"))
	assert.Empty(t, f.latestApproved(t, testEnv))

	f.store.envMu.Lock()
	defer f.store.envMu.Unlock()
	assert.Empty(t, f.store.envs)
}

func TestLatestVersionApprovedIn(t *testing.T) {
	f := newFixture(t)
	f.storeVersions(t, "1.9.0", "1.10.0")

	assert.Empty(t, f.latestApproved(t, testEnv))

	f.approve(t, testEnv, "1.0.0")
	assert.Equal(t, "1.0.0", f.latestApproved(t, testEnv))

	f.approve(t, testEnv, "1.10.0", "1.9.0")
	assert.Equal(t, "1.10.0", f.latestApproved(t, testEnv))
}

func TestScenario_DeployingNewerVersionSkipsOlderApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.approve(t, testEnv, "1.0.0")
	assert.Equal(t, "1.0.0", f.latestApproved(t, testEnv))

	f.approve(t, testEnv, "1.1.0")
	f.deploy(t, testEnv, "1.1.0")

	assert.Equal(t, promotion.StatusCurrent, f.status(t, testEnv, "1.1.0"))
	assert.Equal(t, promotion.StatusSkipped, f.status(t, testEnv, "1.0.0"))

	summary, err := f.store.GetArtifactSummaryInEnvironment(ctx, testConfig, testEnv, "default", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", summary.ReplacedBy)
}

func TestMarkAsSuccessfullyDeployedTo_DemotesCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.approve(t, testEnv, "1.0.0")
	f.deploy(t, testEnv, "1.0.0")
	f.approve(t, testEnv, "1.1.0")
	f.deploy(t, testEnv, "1.1.0")

	assert.Equal(t, promotion.StatusPrevious, f.status(t, testEnv, "1.0.0"))
	assert.Equal(t, promotion.StatusCurrent, f.status(t, testEnv, "1.1.0"))

	current, err := f.store.IsCurrentlyDeployedTo(ctx, testConfig, f.api, "1.0.0", testEnv)
	require.NoError(t, err)
	assert.False(t, current)

	deployed, err := f.store.WasSuccessfullyDeployedTo(ctx, testConfig, f.api, "1.0.0", testEnv)
	require.NoError(t, err)
	assert.True(t, deployed)

	// Rolling back to an older deployed version is allowed.
	f.deploy(t, testEnv, "1.0.0")
	assert.Equal(t, promotion.StatusCurrent, f.status(t, testEnv, "1.0.0"))
	assert.Equal(t, promotion.StatusPrevious, f.status(t, testEnv, "1.1.0"))
}

func TestMarkAsSuccessfullyDeployedTo_NewerApprovalStaysApproved(t *testing.T) {
	f := newFixture(t)
	f.storeVersions(t, "1.2.0")

	f.approve(t, testEnv, "1.0.0", "1.1.0", "1.2.0")
	f.deploy(t, testEnv, "1.1.0")

	assert.Equal(t, promotion.StatusSkipped, f.status(t, testEnv, "1.0.0"))
	assert.Equal(t, promotion.StatusCurrent, f.status(t, testEnv, "1.1.0"))
	assert.Equal(t, promotion.StatusApproved, f.status(t, testEnv, "1.2.0"))
}

func TestAtMostOneCurrent(t *testing.T) {
	f := newFixture(t)
	f.storeVersions(t, "1.2.0", "1.3.0")
	versions := []string{"1.0.0", "1.3.0", "1.1.0", "1.1.0", "1.2.0", "1.0.0"}

	for _, v := range versions {
		f.deploy(t, testEnv, v)

		current := 0
		for _, candidate := range []string{"1.0.0", "1.1.0", "1.2.0", "1.3.0"} {
			if f.status(t, testEnv, candidate) == promotion.StatusCurrent {
				current++
			}
		}
		assert.Equal(t, 1, current, "after deploying %s", v)
		assert.Equal(t, promotion.StatusCurrent, f.status(t, testEnv, v))
	}
}

func TestConcurrentDeploysKeepSingleCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	versions := make([]string, 20)
	for i := range versions {
		versions[i] = fmt.Sprintf("2.%d.0", i)
	}
	f.storeVersions(t, versions...)

	var wg sync.WaitGroup
	for _, v := range versions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.store.ApproveVersionFor(ctx, testConfig, f.api, v, testEnv)
			_ = f.store.MarkAsDeployingTo(ctx, testConfig, f.api, v, testEnv)
			_ = f.store.MarkAsSuccessfullyDeployedTo(ctx, testConfig, f.api, v, testEnv)
		}()
	}
	wg.Wait()

	summaries, err := f.store.GetEnvironmentSummaries(ctx, testConfig)
	require.NoError(t, err)
	for _, summary := range summaries {
		if summary.Name != testEnv {
			continue
		}
		require.Len(t, summary.Artifacts, 1)
		assert.NotEmpty(t, summary.Artifacts[0].Versions.Current)
	}

	current := 0
	for _, v := range versions {
		if f.status(t, testEnv, v) == promotion.StatusCurrent {
			current++
		}
	}
	assert.Equal(t, 1, current)
}

func TestMarkAsDeployingTo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.approve(t, testEnv, "1.1.0")
	require.NoError(t, f.store.MarkAsDeployingTo(ctx, testConfig, f.api, "1.1.0", testEnv))
	assert.Equal(t, promotion.StatusDeploying, f.status(t, testEnv, "1.1.0"))

	// Repeated reports are accepted.
	require.NoError(t, f.store.MarkAsDeployingTo(ctx, testConfig, f.api, "1.1.0", testEnv))

	ok, err := f.store.IsApprovedFor(ctx, testConfig, f.api, "1.1.0", testEnv)
	require.NoError(t, err)
	assert.True(t, ok, "deploying keeps the approval")

	f.deploy(t, testEnv, "1.1.0")
	assert.Equal(t, promotion.StatusCurrent, f.status(t, testEnv, "1.1.0"))
}

func TestMarkAsDeployingTo_VetoedVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.approve(t, testEnv, "1.1.0")
	require.True(t, f.veto(t, testEnv, "1.1.0", false))

	err := f.store.MarkAsDeployingTo(ctx, testConfig, f.api, "1.1.0", testEnv)
	require.Error(t, err)
	assert.True(t, errors.Is(err, promotion.ErrInvalidTransition))
	assert.True(t, rperrors.IsKind(err, rperrors.KindState))

	err = f.store.MarkAsSuccessfullyDeployedTo(ctx, testConfig, f.api, "1.1.0", testEnv)
	require.Error(t, err)
	assert.True(t, errors.Is(err, promotion.ErrInvalidTransition))

	deployed, err := f.store.WasSuccessfullyDeployedTo(ctx, testConfig, f.api, "1.1.0", testEnv)
	require.NoError(t, err)
	assert.False(t, deployed, "a rejected deploy leaves no history")
}

func TestMarkAsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.approve(t, testEnv, "1.0.0")
	require.NoError(t, f.store.MarkAsSkipped(ctx, testConfig, f.api, "1.0.0", testEnv, "1.1.0"))
	assert.Equal(t, promotion.StatusSkipped, f.status(t, testEnv, "1.0.0"))

	require.NoError(t, f.store.MarkAsSkipped(ctx, testConfig, f.api, "1.0.0", testEnv, "1.1.0"))

	summary, err := f.store.GetArtifactSummaryInEnvironment(ctx, testConfig, testEnv, "default", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", summary.ReplacedBy)
	require.NotNil(t, summary.ReplacedAt)
	assert.Equal(t, f.clock.Now(), *summary.ReplacedAt)

	f.deploy(t, testEnv, "1.1.0")
	err = f.store.MarkAsSkipped(ctx, testConfig, f.api, "1.1.0", testEnv, "1.2.0")
	assert.True(t, errors.Is(err, promotion.ErrInvalidTransition), "a current version cannot be skipped")
}

func TestPromotionEvents(t *testing.T) {
	f := newFixture(t)
	f.approve(t, testEnv, "1.0.0")
	f.deploy(t, testEnv, "1.0.0")

	names := f.publisher.names()
	assert.Contains(t, names, "artifact.registered")
	assert.Contains(t, names, "promotion.status_changed")

	var transitions []string
	f.publisher.mu.Lock()
	for _, e := range f.publisher.events {
		if changed, ok := e.(*promotion.StatusChangedEvent); ok {
			transitions = append(transitions, string(changed.From)+"->"+string(changed.To))
		}
	}
	f.publisher.mu.Unlock()
	assert.Equal(t, []string{"PENDING->APPROVED", "APPROVED->CURRENT"}, transitions)
}
