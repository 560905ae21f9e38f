package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/felixgeelhaar/statekit"
	"github.com/google/uuid"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
)

// checkContext checks if the context is canceled and returns the error if so.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// versionLedger is the observed version list of one (name, type) pair.
type versionLedger struct {
	records []artifact.VersionRecord
	seen    map[string]struct{}
}

func newVersionLedger() *versionLedger {
	return &versionLedger{seen: make(map[string]struct{})}
}

func (l *versionLedger) add(record artifact.VersionRecord) bool {
	if _, ok := l.seen[record.Version]; ok {
		return false
	}
	l.seen[record.Version] = struct{}{}
	l.records = append(l.records, record)
	return true
}

// envState is the promotion bookkeeping of one EnvironmentKey.
// mu must be held for every read and every read-modify-write.
type envState struct {
	mu sync.Mutex

	statuses map[string]promotion.Status
	approved map[string]struct{}
	deployed map[string]struct{}
	history  []promotion.DeployedRecord
	skips    map[string]promotion.SkipRecord
	pin      *promotion.PinRecord
	vetoes   map[string]promotion.VetoRecord
	// vetoedTo maps a version to the version its last veto rolled back to and
	// survives DeleteVeto. rolledBackFrom is the reverse direction for active vetoes.
	vetoedTo       map[string]string
	rolledBackFrom map[string]string
}

func newEnvState() *envState {
	return &envState{
		statuses:       make(map[string]promotion.Status),
		approved:       make(map[string]struct{}),
		deployed:       make(map[string]struct{}),
		skips:          make(map[string]promotion.SkipRecord),
		vetoes:         make(map[string]promotion.VetoRecord),
		vetoedTo:       make(map[string]string),
		rolledBackFrom: make(map[string]string),
	}
}

func (e *envState) status(version string) promotion.Status {
	if s, ok := e.statuses[version]; ok {
		return s
	}
	return promotion.StatusPending
}

// withStatus returns the tracked versions holding the status.
func (e *envState) withStatus(status promotion.Status) []string {
	var out []string
	for v, s := range e.statuses {
		if s == status {
			out = append(out, v)
		}
	}
	return out
}

// referenceKey identifies an artifact by the reference it is declared under.
// A reference is unique within its delivery config.
type referenceKey struct {
	deliveryConfig string
	reference      string
}

// InMemoryStore is a concurrency-safe in-process implementation of Store.
//
// Catalog data (configs, artifacts, versions, check stamps) is guarded by mu.
// Each EnvironmentKey has its own mutex; a goroutine holding an environment
// mutex never acquires mu.
type InMemoryStore struct {
	mu          sync.RWMutex
	configs     map[string]artifact.DeliveryConfig
	artifacts   map[string]artifact.DeliveryArtifact // by id
	byKey       map[artifact.Key]string
	byReference map[referenceKey]string
	versions    map[artifact.VersionKey]*versionLedger
	lastChecked map[string]time.Time

	envMu sync.Mutex
	envs  map[promotion.EnvironmentKey]*envState

	clock     Clock
	publisher EventPublisher
	logger    *log.Logger
	lifecycle *promotion.Lifecycle
	newID     func() string
}

// Option configures an InMemoryStore.
type Option func(*InMemoryStore)

// WithClock sets the clock used for timestamps.
func WithClock(clock Clock) Option {
	return func(s *InMemoryStore) {
		s.clock = clock
	}
}

// WithEventPublisher sets the sink for domain events.
func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *InMemoryStore) {
		s.publisher = publisher
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *InMemoryStore) {
		s.logger = logger
	}
}

// WithIDGenerator overrides the surrogate id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *InMemoryStore) {
		s.newID = newID
	}
}

// NewInMemoryStore creates an empty ledger.
func NewInMemoryStore(opts ...Option) (*InMemoryStore, error) {
	lifecycle, err := promotion.DefaultLifecycle()
	if err != nil {
		return nil, rperrors.Wrap(err, rperrors.KindInternal, "ledger.NewInMemoryStore", "failed to build promotion lifecycle")
	}

	s := &InMemoryStore{
		configs:     make(map[string]artifact.DeliveryConfig),
		artifacts:   make(map[string]artifact.DeliveryArtifact),
		byKey:       make(map[artifact.Key]string),
		byReference: make(map[referenceKey]string),
		versions:    make(map[artifact.VersionKey]*versionLedger),
		lastChecked: make(map[string]time.Time),
		envs:        make(map[promotion.EnvironmentKey]*envState),
		clock:       RealClock{},
		logger:      log.Default(),
		lifecycle:   lifecycle,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ensure InMemoryStore implements the interface.
var _ Store = (*InMemoryStore)(nil)

// env returns the state for the key, creating it on first use.
func (s *InMemoryStore) env(key promotion.EnvironmentKey) *envState {
	s.envMu.Lock()
	defer s.envMu.Unlock()
	st, ok := s.envs[key]
	if !ok {
		st = newEnvState()
		s.envs[key] = st
	}
	return st
}

// lookupEnv returns the state for the key, or nil if nothing was ever recorded for it.
func (s *InMemoryStore) lookupEnv(key promotion.EnvironmentKey) *envState {
	s.envMu.Lock()
	defer s.envMu.Unlock()
	return s.envs[key]
}

// lockEnv resolves the artifact and returns its locked environment state,
// creating the state on first use. The caller must unlock st.mu.
func (s *InMemoryStore) lockEnv(op, deliveryConfig string, art artifact.DeliveryArtifact, env string) (promotion.EnvironmentKey, artifact.DeliveryArtifact, *envState, error) {
	key, resolved, err := s.environmentKey(op, deliveryConfig, art, env)
	if err != nil {
		return promotion.EnvironmentKey{}, artifact.DeliveryArtifact{}, nil, err
	}
	st := s.env(key)
	st.mu.Lock()
	return key, resolved, st, nil
}

// readEnv is lockEnv for queries: a key with no recorded state yields an empty,
// unshared state instead of allocating one in the store. The caller must unlock st.mu.
func (s *InMemoryStore) readEnv(op, deliveryConfig string, art artifact.DeliveryArtifact, env string) (artifact.DeliveryArtifact, *envState, error) {
	key, resolved, err := s.environmentKey(op, deliveryConfig, art, env)
	if err != nil {
		return artifact.DeliveryArtifact{}, nil, err
	}
	st := s.lookupEnv(key)
	if st == nil {
		st = newEnvState()
	}
	st.mu.Lock()
	return resolved, st, nil
}

func (s *InMemoryStore) environmentKey(op, deliveryConfig string, art artifact.DeliveryArtifact, env string) (promotion.EnvironmentKey, artifact.DeliveryArtifact, error) {
	resolved, err := s.resolve(op, deliveryConfig, art, env)
	if err != nil {
		return promotion.EnvironmentKey{}, artifact.DeliveryArtifact{}, err
	}
	return promotion.EnvironmentKey{
		ArtifactID:     resolved.ID,
		DeliveryConfig: deliveryConfig,
		Environment:    env,
	}, resolved, nil
}

// resolve finds the registered artifact matching the natural key of art within the
// config, and checks that the config declares env.
func (s *InMemoryStore) resolve(op, deliveryConfig string, art artifact.DeliveryArtifact, env string) (artifact.DeliveryArtifact, error) {
	art = art.WithDefaults()
	art.DeliveryConfigName = deliveryConfig

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkEnvironmentLocked(op, deliveryConfig, env); err != nil {
		return artifact.DeliveryArtifact{}, err
	}
	if existing, ok := s.artifacts[art.ID]; ok && existing.DeliveryConfigName == deliveryConfig {
		return existing, nil
	}
	id, ok := s.byKey[art.Key()]
	if !ok {
		return artifact.DeliveryArtifact{}, rperrors.NotFoundWrap(
			&artifact.ArtifactNotFoundError{Reference: art.Reference, DeliveryConfigName: deliveryConfig},
			op, "artifact is not registered").WithDetail("artifact", art.Key().String())
	}
	return s.artifacts[id], nil
}

// checkEnvironmentLocked checks that the config exists and declares env. s.mu must be held.
func (s *InMemoryStore) checkEnvironmentLocked(op, deliveryConfig, env string) error {
	config, err := s.configLocked(op, deliveryConfig)
	if err != nil {
		return err
	}
	if !config.HasEnvironment(env) {
		return rperrors.Validation(op,
			fmt.Sprintf("delivery config %q has no environment %q", deliveryConfig, env)).
			WithDetail("environment", env)
	}
	return nil
}

// transition moves a version through the lifecycle and records the change.
func (s *InMemoryStore) transition(st *envState, key promotion.EnvironmentKey, version string, event statekit.EventType, events *[]promotion.DomainEvent) error {
	from := st.status(version)
	to, err := s.lifecycle.Transition(from, event)
	if err != nil {
		return err
	}
	st.statuses[version] = to
	if from != to {
		*events = append(*events, &promotion.StatusChangedEvent{
			Key:     key,
			Version: version,
			From:    from,
			To:      to,
			At:      s.clock.Now(),
		})
	}
	return nil
}

// publish forwards events to the publisher. Failures are logged; the mutation already happened.
func (s *InMemoryStore) publish(ctx context.Context, events []promotion.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish ledger events", "count", len(events), "error", err)
	}
}
