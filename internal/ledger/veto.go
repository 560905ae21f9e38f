package ledger

import (
	"context"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
)

// MarkAsVetoedIn vetoes a version in an environment and records the version it rolls back to.
//
// It returns false without changing anything when the version is pinned, or, unless
// force is set, when the version is already vetoed or the veto would repeat a
// rollback between the same two versions.
func (s *InMemoryStore) MarkAsVetoedIn(ctx context.Context, deliveryConfig string, veto promotion.EnvironmentArtifactVeto, force bool) (bool, error) {
	const op = "ledger.MarkAsVetoedIn"
	if err := checkContext(ctx); err != nil {
		return false, err
	}
	if veto.Version == "" {
		return false, rperrors.Validation(op, "version is required")
	}
	art, err := s.resolveReference(op, deliveryConfig, veto.Reference, veto.TargetEnvironment)
	if err != nil {
		return false, err
	}
	key, resolved, st, err := s.lockEnv(op, deliveryConfig, art, veto.TargetEnvironment)
	if err != nil {
		return false, err
	}

	var events []promotion.DomainEvent
	vetoed, err := func() (bool, error) {
		defer st.mu.Unlock()

		version := veto.Version
		if st.pin != nil && st.pin.Version == version {
			s.logger.Warn("refusing to veto pinned version", "key", key.String(), "version", version)
			return false, nil
		}

		status := st.status(version)
		target := rollbackTarget(resolved, st, version)
		if !force {
			if status == promotion.StatusVetoed {
				return false, nil
			}
			if target != "" && st.vetoedTo[version] == target {
				s.logger.Warn("veto would repeat a rollback", "key", key.String(), "version", version, "target", target)
				return false, nil
			}
		}

		if status != promotion.StatusVetoed {
			if err := s.transition(st, key, version, promotion.EventVeto, &events); err != nil {
				return false, err
			}
		}
		delete(st.approved, version)
		delete(st.deployed, version)

		now := s.clock.Now()
		st.vetoes[version] = promotion.VetoRecord{
			Version:    version,
			RollbackTo: target,
			VetoedBy:   veto.VetoedBy,
			VetoedAt:   now,
			Comment:    veto.Comment,
		}
		if previous, ok := st.vetoedTo[version]; ok && st.rolledBackFrom[previous] == version {
			delete(st.rolledBackFrom, previous)
		}
		delete(st.vetoedTo, version)
		if target != "" {
			st.vetoedTo[version] = target
			st.rolledBackFrom[target] = version
		}

		events = append(events, &promotion.VersionVetoedEvent{
			Key:        key,
			Version:    version,
			RollbackTo: target,
			VetoedBy:   veto.VetoedBy,
			Forced:     force,
			At:         now,
		})
		return true, nil
	}()
	if err != nil || !vetoed {
		return false, err
	}

	s.logger.Info("vetoed version", "key", key.String(), "version", veto.Version, "force", force)
	s.publish(ctx, events)
	return true, nil
}

// rollbackTarget returns the newest approved version older than version.
func rollbackTarget(art artifact.DeliveryArtifact, st *envState, version string) string {
	target := ""
	for v := range st.approved {
		if v == version || art.Compare(v, version) >= 0 {
			continue
		}
		if target == "" || art.Compare(v, target) > 0 {
			target = v
		}
	}
	return target
}

// DeleteVeto reverses a veto and returns the version to APPROVED. The recorded
// rollback of the version is kept, so vetoing it onto the same target again needs
// force; the reverse mapping of the target is cleared if it still points back here.
// It returns false if the version is not vetoed.
func (s *InMemoryStore) DeleteVeto(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}
	key, _, st, err := s.lockEnv("ledger.DeleteVeto", deliveryConfig, art, env)
	if err != nil {
		return false, err
	}

	var events []promotion.DomainEvent
	deleted, err := func() (bool, error) {
		defer st.mu.Unlock()

		if st.status(version) != promotion.StatusVetoed {
			return false, nil
		}
		if err := s.transition(st, key, version, promotion.EventUnveto, &events); err != nil {
			return false, err
		}
		st.approved[version] = struct{}{}
		delete(st.vetoes, version)
		if target, ok := st.vetoedTo[version]; ok && st.rolledBackFrom[target] == version {
			delete(st.rolledBackFrom, target)
		}
		events = append(events, &promotion.VetoDeletedEvent{Key: key, Version: version, At: s.clock.Now()})
		return true, nil
	}()
	if err != nil || !deleted {
		return false, err
	}

	s.logger.Info("deleted veto", "key", key.String(), "version", version)
	s.publish(ctx, events)
	return true, nil
}

// VetoedEnvironmentVersions lists, per environment and artifact of the config, the vetoed versions.
func (s *InMemoryStore) VetoedEnvironmentVersions(ctx context.Context, deliveryConfig string) ([]promotion.EnvironmentArtifactVetoes, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	config, arts, err := s.configArtifacts("ledger.VetoedEnvironmentVersions", deliveryConfig)
	if err != nil {
		return nil, err
	}

	var out []promotion.EnvironmentArtifactVetoes
	for _, env := range config.Environments {
		for _, art := range arts {
			st := s.lookupEnv(promotion.EnvironmentKey{ArtifactID: art.ID, DeliveryConfig: deliveryConfig, Environment: env})
			if st == nil {
				continue
			}
			st.mu.Lock()
			versions := st.withStatus(promotion.StatusVetoed)
			st.mu.Unlock()
			if len(versions) == 0 {
				continue
			}
			art.SortDescending(versions)
			out = append(out, promotion.EnvironmentArtifactVetoes{
				DeliveryConfigName: deliveryConfig,
				TargetEnvironment:  env,
				ArtifactName:       art.Name,
				Reference:          art.Reference,
				Versions:           versions,
			})
		}
	}
	return out, nil
}

// resolveReference looks up the artifact declared under reference, and checks that
// the config declares the environment.
func (s *InMemoryStore) resolveReference(op, deliveryConfig, reference, env string) (artifact.DeliveryArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkEnvironmentLocked(op, deliveryConfig, env); err != nil {
		return artifact.DeliveryArtifact{}, err
	}
	return s.byReferenceLocked(op, deliveryConfig, reference)
}

// configArtifacts returns the config and its artifacts ordered by reference.
func (s *InMemoryStore) configArtifacts(op, deliveryConfig string) (artifact.DeliveryConfig, []artifact.DeliveryArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	config, err := s.configLocked(op, deliveryConfig)
	if err != nil {
		return artifact.DeliveryConfig{}, nil, err
	}
	var arts []artifact.DeliveryArtifact
	for _, art := range s.artifacts {
		if art.DeliveryConfigName == deliveryConfig {
			arts = append(arts, art)
		}
	}
	sortArtifacts(arts)
	return config, arts, nil
}
