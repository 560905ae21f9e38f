package ledger

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
)

const (
	testConfig = "prod-config"
	testEnv    = "prod"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []promotion.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...promotion.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

type fixture struct {
	store     *InMemoryStore
	clock     *fakeClock
	publisher *recordingPublisher
	api       artifact.DeliveryArtifact
}

// newFixture returns a store holding the prod-config delivery config with a
// test and a prod environment, the debian artifact "api", and versions 1.0.0 and 1.1.0.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	clock := newFakeClock()
	publisher := &recordingPublisher{}
	ids := 0
	store, err := NewInMemoryStore(
		WithClock(clock),
		WithEventPublisher(publisher),
		WithLogger(log.New(io.Discard)),
		WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("artifact-%d", ids)
		}),
	)
	require.NoError(t, err)

	require.NoError(t, store.StoreDeliveryConfig(ctx, artifact.DeliveryConfig{
		Name:         testConfig,
		Application:  "api",
		Environments: []string{"test", testEnv},
	}))
	api, err := store.Register(ctx, artifact.NewDebianArtifact("api", testConfig, "default"))
	require.NoError(t, err)

	for _, v := range []string{"1.0.0", "1.1.0"} {
		_, err := store.StoreVersion(ctx, "api", artifact.TypeDebian, v, artifact.StatusRelease)
		require.NoError(t, err)
	}

	return &fixture{store: store, clock: clock, publisher: publisher, api: api}
}

func (f *fixture) approve(t *testing.T, env string, versions ...string) {
	t.Helper()
	for _, v := range versions {
		_, err := f.store.ApproveVersionFor(context.Background(), testConfig, f.api, v, env)
		require.NoError(t, err)
	}
}

func (f *fixture) deploy(t *testing.T, env, version string) {
	t.Helper()
	require.NoError(t, f.store.MarkAsSuccessfullyDeployedTo(context.Background(), testConfig, f.api, version, env))
}

func (f *fixture) status(t *testing.T, env, version string) promotion.Status {
	t.Helper()
	s, err := f.store.VersionStatus(context.Background(), testConfig, f.api, version, env)
	require.NoError(t, err)
	return s
}

func (f *fixture) latestApproved(t *testing.T, env string) string {
	t.Helper()
	v, err := f.store.LatestVersionApprovedIn(context.Background(), testConfig, f.api, env)
	require.NoError(t, err)
	return v
}

func (f *fixture) storeVersions(t *testing.T, versions ...string) {
	t.Helper()
	for _, v := range versions {
		_, err := f.store.StoreVersion(context.Background(), "api", artifact.TypeDebian, v, artifact.StatusRelease)
		require.NoError(t, err)
	}
}

func (f *fixture) veto(t *testing.T, env, version string, force bool) bool {
	t.Helper()
	ok, err := f.store.MarkAsVetoedIn(context.Background(), testConfig, promotion.EnvironmentArtifactVeto{
		TargetEnvironment: env,
		Reference:         f.api.Reference,
		Version:           version,
		VetoedBy:          "oncall@example.com",
	}, force)
	require.NoError(t, err)
	return ok
}

func (f *fixture) pin(t *testing.T, env, version string) {
	t.Helper()
	require.NoError(t, f.store.PinEnvironment(context.Background(), testConfig, promotion.EnvironmentArtifactPin{
		TargetEnvironment: env,
		Reference:         f.api.Reference,
		Version:           version,
		PinnedBy:          "oncall@example.com",
	}))
}
