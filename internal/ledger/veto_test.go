package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
)

func TestVeto_ExcludesFromApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.approve(t, testEnv, "1.0.0", "1.1.0")
	f.deploy(t, testEnv, "1.1.0")
	require.True(t, f.veto(t, testEnv, "1.1.0", false))

	ok, err := f.store.IsApprovedFor(ctx, testConfig, f.api, "1.1.0", testEnv)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "1.0.0", f.latestApproved(t, testEnv))
	assert.Equal(t, promotion.StatusVetoed, f.status(t, testEnv, "1.1.0"))

	deployed, err := f.store.WasSuccessfullyDeployedTo(ctx, testConfig, f.api, "1.1.0", testEnv)
	require.NoError(t, err)
	assert.False(t, deployed)

	// A vetoed version cannot be approved again until the veto is deleted.
	approved, err := f.store.ApproveVersionFor(ctx, testConfig, f.api, "1.1.0", testEnv)
	require.NoError(t, err)
	assert.False(t, approved)
}

func TestVeto_PinnedVersionCannotBeVetoed(t *testing.T) {
	f := newFixture(t)

	f.approve(t, testEnv, "1.0.0", "1.1.0")
	f.pin(t, testEnv, "1.1.0")

	assert.False(t, f.veto(t, testEnv, "1.1.0", false))
	assert.False(t, f.veto(t, testEnv, "1.1.0", true), "force does not override a pin")
	assert.Equal(t, promotion.StatusApproved, f.status(t, testEnv, "1.1.0"))
	assert.Equal(t, "1.1.0", f.latestApproved(t, testEnv))
}

func TestScenario_RepeatedVetoIsNoOpWithoutForce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.approve(t, testEnv, "1.0.0", "1.1.0")
	f.deploy(t, testEnv, "1.1.0")

	require.True(t, f.veto(t, testEnv, "1.1.0", false))
	summary, err := f.store.GetArtifactSummaryInEnvironment(ctx, testConfig, testEnv, "default", "1.1.0")
	require.NoError(t, err)
	require.NotNil(t, summary.Vetoed)
	assert.Equal(t, "1.0.0", summary.Vetoed.RollbackTo)

	assert.False(t, f.veto(t, testEnv, "1.1.0", false))
	assert.True(t, f.veto(t, testEnv, "1.1.0", true))
	assert.Equal(t, promotion.StatusVetoed, f.status(t, testEnv, "1.1.0"))
}

func TestVeto_RepeatedRollbackPairIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.approve(t, testEnv, "1.0.0", "1.1.0")
	f.deploy(t, testEnv, "1.1.0")
	require.True(t, f.veto(t, testEnv, "1.1.0", false))

	deleted, err := f.store.DeleteVeto(ctx, testConfig, f.api, "1.1.0", testEnv)
	require.NoError(t, err)
	require.True(t, deleted)
	require.Equal(t, promotion.StatusApproved, f.status(t, testEnv, "1.1.0"))

	assert.False(t, f.veto(t, testEnv, "1.1.0", false), "1.1.0 -> 1.0.0 was already rolled back once")
	assert.Equal(t, promotion.StatusApproved, f.status(t, testEnv, "1.1.0"))

	assert.True(t, f.veto(t, testEnv, "1.1.0", true))
	assert.Equal(t, promotion.StatusVetoed, f.status(t, testEnv, "1.1.0"))
}

func TestVeto_NewRollbackTargetIsNotARepeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.storeVersions(t, "1.0.5")

	f.approve(t, testEnv, "1.0.0", "1.1.0")
	require.True(t, f.veto(t, testEnv, "1.1.0", false)) // 1.1.0 -> 1.0.0

	deleted, err := f.store.DeleteVeto(ctx, testConfig, f.api, "1.1.0", testEnv)
	require.NoError(t, err)
	require.True(t, deleted)

	f.approve(t, testEnv, "1.0.5")
	assert.True(t, f.veto(t, testEnv, "1.1.0", false), "rolls back to 1.0.5 this time")

	summary, err := f.store.GetArtifactSummaryInEnvironment(ctx, testConfig, testEnv, "default", "1.1.0")
	require.NoError(t, err)
	require.NotNil(t, summary.Vetoed)
	assert.Equal(t, "1.0.5", summary.Vetoed.RollbackTo)
}

func TestVeto_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.MarkAsVetoedIn(ctx, testConfig, promotion.EnvironmentArtifactVeto{
		TargetEnvironment: "staging", Reference: "default", Version: "1.0.0",
	}, false)
	assert.True(t, rperrors.IsKind(err, rperrors.KindValidation))

	_, err = f.store.MarkAsVetoedIn(ctx, testConfig, promotion.EnvironmentArtifactVeto{
		TargetEnvironment: testEnv, Reference: "missing", Version: "1.0.0",
	}, false)
	assert.True(t, errors.Is(err, artifact.ErrArtifactNotFound))

	_, err = f.store.MarkAsVetoedIn(ctx, "other-config", promotion.EnvironmentArtifactVeto{
		TargetEnvironment: testEnv, Reference: "default", Version: "1.0.0",
	}, false)
	assert.True(t, errors.Is(err, artifact.ErrNoSuchDeliveryConfig))
}

func TestDeleteVeto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.approve(t, testEnv, "1.0.0", "1.1.0")
	require.True(t, f.veto(t, testEnv, "1.1.0", false))

	deleted, err := f.store.DeleteVeto(ctx, testConfig, f.api, "1.1.0", testEnv)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, promotion.StatusApproved, f.status(t, testEnv, "1.1.0"))
	assert.Equal(t, "1.1.0", f.latestApproved(t, testEnv))

	st := f.store.lookupEnv(promotion.EnvironmentKey{ArtifactID: f.api.ID, DeliveryConfig: testConfig, Environment: testEnv})
	st.mu.Lock()
	assert.Equal(t, "1.0.0", st.vetoedTo["1.1.0"], "the rollback history is kept")
	assert.Empty(t, st.rolledBackFrom)
	st.mu.Unlock()

	deleted, err = f.store.DeleteVeto(ctx, testConfig, f.api, "1.1.0", testEnv)
	require.NoError(t, err)
	assert.False(t, deleted, "nothing to delete")
}

func TestDeleteVeto_KeepsForeignRollbackMapping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.storeVersions(t, "1.2.0")

	f.approve(t, testEnv, "1.0.0", "1.1.0", "1.2.0")
	require.True(t, f.veto(t, testEnv, "1.1.0", false)) // 1.1.0 -> 1.0.0
	require.True(t, f.veto(t, testEnv, "1.2.0", false)) // 1.2.0 -> 1.0.0

	deleted, err := f.store.DeleteVeto(ctx, testConfig, f.api, "1.1.0", testEnv)
	require.NoError(t, err)
	require.True(t, deleted)

	st := f.store.lookupEnv(promotion.EnvironmentKey{ArtifactID: f.api.ID, DeliveryConfig: testConfig, Environment: testEnv})
	st.mu.Lock()
	defer st.mu.Unlock()
	assert.Equal(t, "1.2.0", st.rolledBackFrom["1.0.0"])
	assert.Equal(t, "1.0.0", st.vetoedTo["1.2.0"])
	assert.Equal(t, "1.0.0", st.vetoedTo["1.1.0"])
}

func TestVetoedEnvironmentVersions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.approve(t, testEnv, "1.0.0", "1.1.0")
	require.True(t, f.veto(t, testEnv, "1.0.0", false))
	require.True(t, f.veto(t, testEnv, "1.1.0", false))

	vetoes, err := f.store.VetoedEnvironmentVersions(ctx, testConfig)
	require.NoError(t, err)
	require.Len(t, vetoes, 1)
	assert.Equal(t, testEnv, vetoes[0].TargetEnvironment)
	assert.Equal(t, "default", vetoes[0].Reference)
	assert.Equal(t, []string{"1.1.0", "1.0.0"}, vetoes[0].Versions)

	_, err = f.store.VetoedEnvironmentVersions(ctx, "other-config")
	assert.True(t, errors.Is(err, artifact.ErrNoSuchDeliveryConfig))
}
