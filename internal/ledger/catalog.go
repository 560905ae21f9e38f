package ledger

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
)

// StoreDeliveryConfig creates or replaces a delivery config.
func (s *InMemoryStore) StoreDeliveryConfig(ctx context.Context, config artifact.DeliveryConfig) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	config.Environments = slices.Clone(config.Environments)
	s.mu.Lock()
	s.configs[config.Name] = config
	s.mu.Unlock()

	s.logger.Debug("stored delivery config", "config", config.Name, "environments", len(config.Environments))
	return nil
}

// GetDeliveryConfig returns the named delivery config.
func (s *InMemoryStore) GetDeliveryConfig(ctx context.Context, name string) (artifact.DeliveryConfig, error) {
	if err := checkContext(ctx); err != nil {
		return artifact.DeliveryConfig{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.configLocked("ledger.GetDeliveryConfig", name)
}

func (s *InMemoryStore) configLocked(op, name string) (artifact.DeliveryConfig, error) {
	config, ok := s.configs[name]
	if !ok {
		return artifact.DeliveryConfig{}, rperrors.NotFoundWrap(
			&artifact.NoSuchDeliveryConfigError{Name: name}, op, "delivery config lookup failed")
	}
	config.Environments = slices.Clone(config.Environments)
	return config, nil
}

// DeleteDeliveryConfig removes a delivery config together with the artifacts it declares.
func (s *InMemoryStore) DeleteDeliveryConfig(ctx context.Context, name string) error {
	const op = "ledger.DeleteDeliveryConfig"
	if err := checkContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if _, err := s.configLocked(op, name); err != nil {
		s.mu.Unlock()
		return err
	}
	delete(s.configs, name)
	var removed []string
	for id, art := range s.artifacts {
		if art.DeliveryConfigName == name {
			s.deleteArtifactLocked(art)
			removed = append(removed, id)
		}
	}
	s.mu.Unlock()

	s.dropEnvironments(removed...)
	s.logger.Debug("deleted delivery config", "config", name, "artifacts", len(removed))
	return nil
}

// Register stores an artifact declaration. Registering the same natural key again
// updates the declaration in place and keeps its id. A reference already declared
// in the config by a different artifact is a conflict.
func (s *InMemoryStore) Register(ctx context.Context, art artifact.DeliveryArtifact) (artifact.DeliveryArtifact, error) {
	const op = "ledger.Register"
	if err := checkContext(ctx); err != nil {
		return artifact.DeliveryArtifact{}, err
	}
	art = art.WithDefaults()
	if err := art.Validate(); err != nil {
		return artifact.DeliveryArtifact{}, err
	}

	s.mu.Lock()
	key := art.Key()
	ref := referenceKey{deliveryConfig: art.DeliveryConfigName, reference: art.Reference}
	if holder, ok := s.byReference[ref]; ok && s.artifacts[holder].Key() != key {
		existing := s.artifacts[holder]
		s.mu.Unlock()
		return artifact.DeliveryArtifact{}, rperrors.Conflict(op,
			fmt.Sprintf("reference %q is already declared by %s", art.Reference, existing.Key())).
			WithDetail("delivery_config", art.DeliveryConfigName).
			WithDetail("reference", art.Reference)
	}
	id, updated := s.byKey[key]
	if !updated {
		id = s.newID()
		s.byKey[key] = id
		s.byReference[ref] = id
	}
	art.ID = id
	s.artifacts[id] = art
	if _, ok := s.versions[art.VersionKey()]; !ok {
		s.versions[art.VersionKey()] = newVersionLedger()
	}
	s.mu.Unlock()

	s.logger.Debug("registered artifact", "artifact", key.String(), "id", id, "updated", updated)
	s.publish(ctx, []promotion.DomainEvent{&promotion.ArtifactRegisteredEvent{
		ArtifactID: id,
		Key:        key,
		Updated:    updated,
		At:         s.clock.Now(),
	}})
	return art, nil
}

// Get returns the artifacts with the given name and type declared by the config.
func (s *InMemoryStore) Get(ctx context.Context, name string, typ artifact.Type, deliveryConfig string) ([]artifact.DeliveryArtifact, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []artifact.DeliveryArtifact
	for _, art := range s.artifacts {
		if art.Name == name && art.Type == typ && art.DeliveryConfigName == deliveryConfig {
			out = append(out, art)
		}
	}
	sortArtifacts(out)
	return out, nil
}

// GetByReference returns the artifact declared under reference in the config.
func (s *InMemoryStore) GetByReference(ctx context.Context, deliveryConfig, reference string) (artifact.DeliveryArtifact, error) {
	if err := checkContext(ctx); err != nil {
		return artifact.DeliveryArtifact{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byReferenceLocked("ledger.GetByReference", deliveryConfig, reference)
}

func (s *InMemoryStore) byReferenceLocked(op, deliveryConfig, reference string) (artifact.DeliveryArtifact, error) {
	if id, ok := s.byReference[referenceKey{deliveryConfig: deliveryConfig, reference: reference}]; ok {
		return s.artifacts[id], nil
	}
	return artifact.DeliveryArtifact{}, rperrors.NotFoundWrap(
		&artifact.ArtifactNotFoundError{Reference: reference, DeliveryConfigName: deliveryConfig},
		op, "artifact lookup failed").WithDetail("reference", reference)
}

// GetByID returns the artifact with the surrogate id.
func (s *InMemoryStore) GetByID(ctx context.Context, id string) (artifact.DeliveryArtifact, error) {
	if err := checkContext(ctx); err != nil {
		return artifact.DeliveryArtifact{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	art, ok := s.artifacts[id]
	if !ok {
		return artifact.DeliveryArtifact{}, rperrors.NotFoundWrap(
			&artifact.NoSuchArtifactError{ID: id}, "ledger.GetByID", "artifact lookup failed").WithDetail("id", id)
	}
	return art, nil
}

// IsRegistered reports whether any artifact with the name and type is registered.
func (s *InMemoryStore) IsRegistered(ctx context.Context, name string, typ artifact.Type) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.versions[artifact.VersionKey{Name: name, Type: typ}]
	return ok
}

// GetAll returns every registered artifact, optionally restricted to the given types.
func (s *InMemoryStore) GetAll(ctx context.Context, types ...artifact.Type) []artifact.DeliveryArtifact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]artifact.DeliveryArtifact, 0, len(s.artifacts))
	for _, art := range s.artifacts {
		if len(types) == 0 || slices.Contains(types, art.Type) {
			out = append(out, art)
		}
	}
	sortArtifacts(out)
	return out
}

// Delete removes an artifact declaration and its promotion bookkeeping. Stored versions
// are dropped only when no other declaration shares the artifact's name and type.
func (s *InMemoryStore) Delete(ctx context.Context, art artifact.DeliveryArtifact) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	art = art.WithDefaults()

	s.mu.Lock()
	id, ok := s.byKey[art.Key()]
	if !ok {
		s.mu.Unlock()
		return rperrors.NotFoundWrap(
			&artifact.ArtifactNotFoundError{Reference: art.Reference, DeliveryConfigName: art.DeliveryConfigName},
			"ledger.Delete", "artifact is not registered")
	}
	s.deleteArtifactLocked(s.artifacts[id])
	s.mu.Unlock()

	s.dropEnvironments(id)
	s.logger.Debug("deleted artifact", "artifact", art.Key().String(), "id", id)
	return nil
}

// deleteArtifactLocked removes the artifact from the catalog. s.mu must be held for writing.
func (s *InMemoryStore) deleteArtifactLocked(art artifact.DeliveryArtifact) {
	delete(s.artifacts, art.ID)
	delete(s.byKey, art.Key())
	ref := referenceKey{deliveryConfig: art.DeliveryConfigName, reference: art.Reference}
	if s.byReference[ref] == art.ID {
		delete(s.byReference, ref)
	}
	delete(s.lastChecked, art.ID)

	vk := art.VersionKey()
	for _, other := range s.artifacts {
		if other.VersionKey() == vk {
			return
		}
	}
	delete(s.versions, vk)
}

// dropEnvironments removes the promotion state of the given artifact ids.
func (s *InMemoryStore) dropEnvironments(ids ...string) {
	if len(ids) == 0 {
		return
	}
	s.envMu.Lock()
	defer s.envMu.Unlock()
	for key := range s.envs {
		if slices.Contains(ids, key.ArtifactID) {
			delete(s.envs, key)
		}
	}
}

// StoreVersion records a version for every artifact with the name and type.
// It returns true if the version was not seen before.
func (s *InMemoryStore) StoreVersion(ctx context.Context, name string, typ artifact.Type, version string, status artifact.ReleaseStatus) (bool, error) {
	const op = "ledger.StoreVersion"
	if err := checkContext(ctx); err != nil {
		return false, err
	}
	if version == "" {
		return false, rperrors.Validation(op, "version is required")
	}
	if !status.IsValid() {
		return false, rperrors.Validation(op, "invalid release status "+string(status))
	}

	key := artifact.VersionKey{Name: name, Type: typ}
	s.mu.Lock()
	ledger, ok := s.versions[key]
	if !ok {
		s.mu.Unlock()
		return false, rperrors.NotFoundWrap(&artifact.NoSuchArtifactError{Name: name, Type: typ}, op, "cannot store version")
	}
	added := ledger.add(artifact.VersionRecord{Version: version, Status: status})
	s.mu.Unlock()

	if added {
		s.logger.Debug("stored version", "artifact", key.String(), "version", version, "status", status)
		s.publish(ctx, []promotion.DomainEvent{&promotion.VersionStoredEvent{
			Key:     key,
			Version: version,
			Status:  status,
			At:      s.clock.Now(),
		}})
	}
	return added, nil
}

// Versions returns the eligible versions of the artifact, most deployable first.
func (s *InMemoryStore) Versions(ctx context.Context, art artifact.DeliveryArtifact) ([]string, error) {
	records, err := s.RawVersions(ctx, art.Name, art.Type)
	if err != nil {
		return nil, err
	}
	return art.WithDefaults().EligibleVersions(records), nil
}

// RawVersions returns every stored version of the name and type in the order observed.
func (s *InMemoryStore) RawVersions(ctx context.Context, name string, typ artifact.Type) ([]artifact.VersionRecord, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rawVersionsLocked("ledger.RawVersions", artifact.VersionKey{Name: name, Type: typ})
}

func (s *InMemoryStore) rawVersionsLocked(op string, key artifact.VersionKey) ([]artifact.VersionRecord, error) {
	ledger, ok := s.versions[key]
	if !ok {
		return nil, rperrors.NotFoundWrap(&artifact.NoSuchArtifactError{Name: key.Name, Type: key.Type}, op, "no versions")
	}
	return slices.Clone(ledger.records), nil
}

// LatestVersion returns the most deployable eligible version, or "" if there is none.
func (s *InMemoryStore) LatestVersion(ctx context.Context, art artifact.DeliveryArtifact) (string, error) {
	versions, err := s.Versions(ctx, art)
	if err != nil || len(versions) == 0 {
		return "", err
	}
	return versions[0], nil
}

func sortArtifacts(arts []artifact.DeliveryArtifact) {
	slices.SortFunc(arts, func(a, b artifact.DeliveryArtifact) int {
		return strings.Compare(a.Key().String(), b.Key().String())
	})
}
