package container

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinnaker/spinnaker-sub014/internal/config"
	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
	"github.com/spinnaker/spinnaker-sub014/internal/infrastructure/lease"
)

// mockCloseable implements Closeable for testing.
type mockCloseable struct {
	closeCount int32
	closeDelay time.Duration
	closeErr   error
	order      *[]string
	name       string
}

func (m *mockCloseable) Close() error {
	if m.closeDelay > 0 {
		time.Sleep(m.closeDelay)
	}
	atomic.AddInt32(&m.closeCount, 1)
	if m.order != nil {
		*m.order = append(*m.order, m.name)
	}
	return m.closeErr
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Path = t.TempDir()
	return cfg
}

func quiet() Option {
	return WithLogger(log.New(io.Discard))
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil)
	assert.True(t, rperrors.IsKind(err, rperrors.KindConfig))
}

func TestNewInitialized_WiresLedger(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	app, err := NewInitialized(ctx, cfg, quiet())
	require.NoError(t, err)
	defer app.Close()

	assert.Same(t, cfg, app.Config())
	_, ok := app.lease.(*lease.LocalLease)
	assert.True(t, ok, "local lease without redis_addr")

	store := app.Store()
	require.NoError(t, store.StoreDeliveryConfig(ctx, artifact.DeliveryConfig{Name: "shop", Environments: []string{"prod"}}))
	_, err = store.Register(ctx, artifact.NewDebianArtifact("cart", "shop", "cart"))
	require.NoError(t, err)
	assert.Len(t, app.Events().GetEventsByName("artifact.registered"), 1)

	due, err := app.Dispatcher().Next(ctx)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	// A second process over the same directory sees the persisted ledger.
	other, err := NewInitialized(ctx, cfg, quiet())
	require.NoError(t, err)
	defer other.Close()
	arts := other.Store().GetAll(ctx)
	require.Len(t, arts, 1)
	assert.Equal(t, "cart", arts[0].Name)
}

func TestInitialize_UsesRedisLeaseWhenConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.RedisAddr = "127.0.0.1:6390"
	cfg.Scheduler.RedisDB = 2

	app, err := New(cfg, quiet())
	require.NoError(t, err)
	var got *redis.Options
	app.redisFactory = func(o *redis.Options) redis.UniversalClient {
		got = o
		return redis.NewClient(o)
	}
	require.NoError(t, app.Initialize(context.Background()))

	require.NotNil(t, got)
	assert.Equal(t, "127.0.0.1:6390", got.Addr)
	assert.Equal(t, 2, got.DB)
	_, ok := app.lease.(*lease.RedisLease)
	assert.True(t, ok)
	assert.Len(t, app.closeables, 1, "the redis client is closed with the app")
	assert.NoError(t, app.Close())
}

func TestInitialize_InvalidSchedulerConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.BatchSize = 0

	_, err := NewInitialized(context.Background(), cfg, quiet())
	assert.True(t, rperrors.IsKind(err, rperrors.KindValidation))
}

func TestInitialize_AfterClose(t *testing.T) {
	app, err := New(testConfig(t), quiet())
	require.NoError(t, err)
	require.NoError(t, app.Close())

	err = app.Initialize(context.Background())
	assert.True(t, rperrors.IsKind(err, rperrors.KindState))
}

func TestApp_Close_LIFOAndIdempotent(t *testing.T) {
	app, err := New(testConfig(t), quiet())
	require.NoError(t, err)

	var order []string
	first := &mockCloseable{name: "first", order: &order}
	second := &mockCloseable{name: "second", order: &order}
	app.RegisterCloseable(first)
	app.RegisterCloseable(second)
	app.RegisterCloseable(nil)

	require.NoError(t, app.Close())
	require.NoError(t, app.Close())

	assert.Equal(t, []string{"second", "first"}, order)
	assert.Equal(t, int32(1), atomic.LoadInt32(&first.closeCount))
}

func TestApp_Close_ReturnsFirstError(t *testing.T) {
	app, err := New(testConfig(t), quiet())
	require.NoError(t, err)

	boom := errors.New("boom")
	app.RegisterCloseable(&mockCloseable{closeErr: errors.New("earlier")})
	app.RegisterCloseable(&mockCloseable{closeErr: boom})

	assert.ErrorIs(t, app.Close(), boom)
}

func TestApp_CloseWithTimeout(t *testing.T) {
	app, err := New(testConfig(t), quiet())
	require.NoError(t, err)
	app.RegisterCloseable(&mockCloseable{closeDelay: 200 * time.Millisecond})

	err = app.CloseWithTimeout(10 * time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
