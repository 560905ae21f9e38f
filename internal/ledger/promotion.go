package ledger

import (
	"context"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
)

// ApproveVersionFor adds the version to the environment's approved set.
// It returns false when the version was already approved or is vetoed.
// A version that is already deploying or deployed keeps its status.
func (s *InMemoryStore) ApproveVersionFor(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}
	key, _, st, err := s.lockEnv("ledger.ApproveVersionFor", deliveryConfig, art, env)
	if err != nil {
		return false, err
	}

	var events []promotion.DomainEvent
	approved, err := func() (bool, error) {
		defer st.mu.Unlock()

		status := st.status(version)
		if status == promotion.StatusVetoed {
			s.logger.Warn("refusing to approve vetoed version", "key", key.String(), "version", version)
			return false, nil
		}
		if _, ok := st.approved[version]; ok {
			return false, nil
		}
		if status == promotion.StatusPending {
			if err := s.transition(st, key, version, promotion.EventApprove, &events); err != nil {
				return false, err
			}
		}
		st.approved[version] = struct{}{}
		return true, nil
	}()
	if err != nil {
		return false, err
	}

	if approved {
		s.logger.Debug("approved version", "key", key.String(), "version", version)
		s.publish(ctx, events)
	}
	return approved, nil
}

// LatestVersionApprovedIn returns the pinned version when the environment is pinned,
// otherwise the newest approved version. It returns "" when nothing is approved.
func (s *InMemoryStore) LatestVersionApprovedIn(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, env string) (string, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}
	resolved, st, err := s.readEnv("ledger.LatestVersionApprovedIn", deliveryConfig, art, env)
	if err != nil {
		return "", err
	}
	defer st.mu.Unlock()

	if st.pin != nil {
		return st.pin.Version, nil
	}
	latest := ""
	for v := range st.approved {
		if latest == "" || resolved.Compare(v, latest) > 0 {
			latest = v
		}
	}
	return latest, nil
}

// MarkAsDeployingTo records that a deployment of the version has started.
func (s *InMemoryStore) MarkAsDeployingTo(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	key, _, st, err := s.lockEnv("ledger.MarkAsDeployingTo", deliveryConfig, art, env)
	if err != nil {
		return err
	}

	var events []promotion.DomainEvent
	err = s.transition(st, key, version, promotion.EventStartDeploy, &events)
	st.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Debug("deploying version", "key", key.String(), "version", version)
	s.publish(ctx, events)
	return nil
}

// MarkAsSuccessfullyDeployedTo makes the version CURRENT. The previous CURRENT
// version becomes PREVIOUS and every older APPROVED version becomes SKIPPED.
func (s *InMemoryStore) MarkAsSuccessfullyDeployedTo(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	key, resolved, st, err := s.lockEnv("ledger.MarkAsSuccessfullyDeployedTo", deliveryConfig, art, env)
	if err != nil {
		return err
	}

	var events []promotion.DomainEvent
	err = func() error {
		defer st.mu.Unlock()

		if !st.status(version).CanTransition(promotion.EventDeploySucceeded) {
			return promotion.NewTransitionError(st.status(version), promotion.EventDeploySucceeded)
		}

		now := s.clock.Now()
		st.history = append(st.history, promotion.DeployedRecord{Version: version, DeployedAt: now})
		st.deployed[version] = struct{}{}

		for _, current := range st.withStatus(promotion.StatusCurrent) {
			if current == version {
				continue
			}
			if err := s.transition(st, key, current, promotion.EventSupersede, &events); err != nil {
				return err
			}
		}
		for _, approved := range st.withStatus(promotion.StatusApproved) {
			if approved == version || resolved.Compare(approved, version) >= 0 {
				continue
			}
			if err := s.transition(st, key, approved, promotion.EventSkip, &events); err != nil {
				return err
			}
			st.skips[approved] = promotion.SkipRecord{Version: approved, SupersededBy: version, SupersededAt: now}
		}

		delete(st.skips, version)
		return s.transition(st, key, version, promotion.EventDeploySucceeded, &events)
	}()
	if err != nil {
		return err
	}

	s.logger.Debug("deployed version", "key", key.String(), "version", version)
	s.publish(ctx, events)
	return nil
}

// MarkAsSkipped records that the version was superseded before it was deployed.
// Skipping an already skipped version is a no-op.
func (s *InMemoryStore) MarkAsSkipped(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env, supersededBy string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	key, _, st, err := s.lockEnv("ledger.MarkAsSkipped", deliveryConfig, art, env)
	if err != nil {
		return err
	}

	var events []promotion.DomainEvent
	err = func() error {
		defer st.mu.Unlock()

		if st.status(version) == promotion.StatusSkipped {
			return nil
		}
		if err := s.transition(st, key, version, promotion.EventSkip, &events); err != nil {
			return err
		}
		st.skips[version] = promotion.SkipRecord{
			Version:      version,
			SupersededBy: supersededBy,
			SupersededAt: s.clock.Now(),
		}
		return nil
	}()
	if err != nil {
		return err
	}

	s.publish(ctx, events)
	return nil
}

// WasSuccessfullyDeployedTo reports whether the version was deployed and not vetoed since.
func (s *InMemoryStore) WasSuccessfullyDeployedTo(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) (bool, error) {
	return s.query(ctx, "ledger.WasSuccessfullyDeployedTo", deliveryConfig, art, env, func(st *envState) bool {
		_, ok := st.deployed[version]
		return ok
	})
}

// IsCurrentlyDeployedTo reports whether the version is CURRENT.
func (s *InMemoryStore) IsCurrentlyDeployedTo(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) (bool, error) {
	return s.query(ctx, "ledger.IsCurrentlyDeployedTo", deliveryConfig, art, env, func(st *envState) bool {
		return st.status(version) == promotion.StatusCurrent
	})
}

// IsApprovedFor reports whether the version is in the environment's approved set.
func (s *InMemoryStore) IsApprovedFor(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) (bool, error) {
	return s.query(ctx, "ledger.IsApprovedFor", deliveryConfig, art, env, func(st *envState) bool {
		_, ok := st.approved[version]
		return ok
	})
}

// VersionStatus returns the promotion status of the version, PENDING when untracked.
func (s *InMemoryStore) VersionStatus(ctx context.Context, deliveryConfig string, art artifact.DeliveryArtifact, version, env string) (promotion.Status, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}
	_, st, err := s.readEnv("ledger.VersionStatus", deliveryConfig, art, env)
	if err != nil {
		return "", err
	}
	defer st.mu.Unlock()
	return st.status(version), nil
}

func (s *InMemoryStore) query(ctx context.Context, op, deliveryConfig string, art artifact.DeliveryArtifact, env string, pred func(*envState) bool) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}
	_, st, err := s.readEnv(op, deliveryConfig, art, env)
	if err != nil {
		return false, err
	}
	defer st.mu.Unlock()
	return pred(st), nil
}
