// Package persistence provides durable and event-publishing infrastructure for the ledger.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
	"github.com/spinnaker/spinnaker-sub014/internal/ledger"
)

// SnapshotFileName is the name of the snapshot inside the storage directory.
const SnapshotFileName = "ledger.json"

// FileStoreConfig configures a FileStore.
type FileStoreConfig struct {
	// Dir holds the snapshot. It is created with 0700 permissions.
	Dir string

	RetryAttempts    int
	RetryInitialWait time.Duration
	RetryMaxWait     time.Duration

	Logger *log.Logger
}

// DefaultFileStoreConfig returns the defaults for a snapshot in dir.
func DefaultFileStoreConfig(dir string) FileStoreConfig {
	return FileStoreConfig{
		Dir:              dir,
		RetryAttempts:    3,
		RetryInitialWait: 50 * time.Millisecond,
		RetryMaxWait:     time.Second,
	}
}

// FileStore is a ledger whose state survives restarts.
// Every successful mutation of the embedded InMemoryStore is followed by a
// full snapshot written atomically to Dir/ledger.json.
type FileStore struct {
	*ledger.InMemoryStore

	path    string
	writeMu sync.Mutex
	retrier retry.Retry[struct{}]
	logger  *log.Logger
	ops     fsOps
}

// Ensure FileStore implements the interface.
var _ ledger.Store = (*FileStore)(nil)

// NewFileStore opens the snapshot in cfg.Dir, or starts an empty ledger if
// none exists yet. opts are applied to the underlying in-memory ledger.
func NewFileStore(cfg FileStoreConfig, opts ...ledger.Option) (*FileStore, error) {
	const op = "persistence.NewFileStore"

	if cfg.Dir == "" {
		return nil, rperrors.Config(op, "storage directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, rperrors.IOWrap(err, op, "failed to create storage directory")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	path := filepath.Join(cfg.Dir, SnapshotFileName)

	state, err := loadState(path)
	if err != nil {
		return nil, rperrors.IOWrap(err, op, "failed to load ledger snapshot")
	}
	mem, err := ledger.NewInMemoryStoreFromState(state, opts...)
	if err != nil {
		return nil, err
	}

	s := &FileStore{
		InMemoryStore: mem,
		path:          path,
		logger:        logger,
		ops:           osFSOps(),
	}
	if cfg.RetryAttempts > 0 {
		s.retrier = retry.New[struct{}](retry.Config{
			MaxAttempts:   cfg.RetryAttempts,
			InitialDelay:  cfg.RetryInitialWait,
			MaxDelay:      cfg.RetryMaxWait,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
			Jitter:        true,
			IsRetryable:   isRetryableWrite,
		})
	}

	if state != nil {
		logger.Debug("loaded ledger snapshot", "path", path, "artifacts", len(state.Artifacts), "environments", len(state.Environments))
	}
	return s, nil
}

// Path returns the snapshot location.
func (s *FileStore) Path() string {
	return s.path
}

func loadState(path string) (*ledger.State, error) {
	data, err := readSnapshotFile(path, MaxSnapshotFileSize)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state ledger.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func isRetryableWrite(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// persist snapshots the ledger and replaces the file.
// The snapshot is taken under writeMu so the last write always carries
// every mutation that finished before it started.
func (s *FileStore) persist(ctx context.Context) error {
	const op = "persistence.FileStore.persist"

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	state, err := s.InMemoryStore.Snapshot(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return rperrors.Wrap(err, rperrors.KindInternal, op, "failed to encode ledger snapshot")
	}

	write := func(context.Context) (struct{}, error) {
		return struct{}{}, replaceSnapshotFile(s.path, data, s.ops)
	}
	if s.retrier != nil {
		_, err = s.retrier.Do(ctx, write)
	} else {
		_, err = write(ctx)
	}
	if err != nil {
		s.logger.Error("failed to persist ledger snapshot", "path", s.path, "error", err)
		return rperrors.IOWrap(err, op, "failed to write ledger snapshot")
	}
	return nil
}

func (s *FileStore) persistIf(ctx context.Context, changed bool, err error) (bool, error) {
	if err != nil || !changed {
		return changed, err
	}
	return changed, s.persist(ctx)
}

func (s *FileStore) persistAfter(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	return s.persist(ctx)
}

// StoreDeliveryConfig stores the config and persists the ledger.
func (s *FileStore) StoreDeliveryConfig(ctx context.Context, config artifact.DeliveryConfig) error {
	return s.persistAfter(ctx, s.InMemoryStore.StoreDeliveryConfig(ctx, config))
}

// DeleteDeliveryConfig deletes the config and persists the ledger.
func (s *FileStore) DeleteDeliveryConfig(ctx context.Context, name string) error {
	return s.persistAfter(ctx, s.InMemoryStore.DeleteDeliveryConfig(ctx, name))
}

// Register registers the artifact and persists the ledger.
func (s *FileStore) Register(ctx context.Context, art artifact.DeliveryArtifact) (artifact.DeliveryArtifact, error) {
	registered, err := s.InMemoryStore.Register(ctx, art)
	if err != nil {
		return registered, err
	}
	return registered, s.persist(ctx)
}

// Delete removes the artifact and persists the ledger.
func (s *FileStore) Delete(ctx context.Context, art artifact.DeliveryArtifact) error {
	return s.persistAfter(ctx, s.InMemoryStore.Delete(ctx, art))
}

// StoreVersion records the version and persists the ledger when it was new.
func (s *FileStore) StoreVersion(ctx context.Context, name string, typ artifact.Type, version string, status artifact.ReleaseStatus) (bool, error) {
	added, err := s.InMemoryStore.StoreVersion(ctx, name, typ, version, status)
	return s.persistIf(ctx, added, err)
}

// ApproveVersionFor approves the version and persists the ledger when it changed.
func (s *FileStore) ApproveVersionFor(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) (bool, error) {
	approved, err := s.InMemoryStore.ApproveVersionFor(ctx, deliveryConfig, art, version, env)
	return s.persistIf(ctx, approved, err)
}

// MarkAsDeployingTo records the deployment start and persists the ledger.
func (s *FileStore) MarkAsDeployingTo(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) error {
	return s.persistAfter(ctx, s.InMemoryStore.MarkAsDeployingTo(ctx, deliveryConfig, art, version, env))
}

// MarkAsSuccessfullyDeployedTo records the deployment and persists the ledger.
func (s *FileStore) MarkAsSuccessfullyDeployedTo(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) error {
	return s.persistAfter(ctx, s.InMemoryStore.MarkAsSuccessfullyDeployedTo(ctx, deliveryConfig, art, version, env))
}

// MarkAsSkipped records the skip and persists the ledger.
func (s *FileStore) MarkAsSkipped(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env, supersededBy string) error {
	return s.persistAfter(ctx, s.InMemoryStore.MarkAsSkipped(ctx, deliveryConfig, art, version, env, supersededBy))
}

// MarkAsVetoedIn vetoes the version and persists the ledger when it changed.
func (s *FileStore) MarkAsVetoedIn(ctx context.Context, deliveryConfig string, veto promotion.EnvironmentArtifactVeto, force bool) (bool, error) {
	vetoed, err := s.InMemoryStore.MarkAsVetoedIn(ctx, deliveryConfig, veto, force)
	return s.persistIf(ctx, vetoed, err)
}

// DeleteVeto removes the veto and persists the ledger when it changed.
func (s *FileStore) DeleteVeto(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) (bool, error) {
	deleted, err := s.InMemoryStore.DeleteVeto(ctx, deliveryConfig, art, version, env)
	return s.persistIf(ctx, deleted, err)
}

// PinEnvironment pins the version and persists the ledger.
func (s *FileStore) PinEnvironment(ctx context.Context, deliveryConfig string, pin promotion.EnvironmentArtifactPin) error {
	return s.persistAfter(ctx, s.InMemoryStore.PinEnvironment(ctx, deliveryConfig, pin))
}

// DeletePin removes pins and persists the ledger.
func (s *FileStore) DeletePin(ctx context.Context, deliveryConfig, env, reference string) error {
	return s.persistAfter(ctx, s.InMemoryStore.DeletePin(ctx, deliveryConfig, env, reference))
}

// ItemsDueForCheck claims due artifacts and persists their check stamps.
func (s *FileStore) ItemsDueForCheck(ctx context.Context, minTimeSinceLastCheck time.Duration, limit int) ([]artifact.DeliveryArtifact, error) {
	due, err := s.InMemoryStore.ItemsDueForCheck(ctx, minTimeSinceLastCheck, limit)
	if err != nil || len(due) == 0 {
		return due, err
	}
	return due, s.persist(ctx)
}
