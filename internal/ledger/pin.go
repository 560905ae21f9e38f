package ledger

import (
	"context"
	"fmt"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
)

// PinEnvironment stores the pin for the artifact and environment, replacing any existing pin.
func (s *InMemoryStore) PinEnvironment(ctx context.Context, deliveryConfig string, pin promotion.EnvironmentArtifactPin) error {
	const op = "ledger.PinEnvironment"
	if err := checkContext(ctx); err != nil {
		return err
	}
	if pin.Version == "" {
		return rperrors.Validation(op, "version is required")
	}
	art, err := s.resolveReference(op, deliveryConfig, pin.Reference, pin.TargetEnvironment)
	if err != nil {
		return err
	}
	key, _, st, err := s.lockEnv(op, deliveryConfig, art, pin.TargetEnvironment)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	st.pin = &promotion.PinRecord{
		Version:  pin.Version,
		PinnedBy: pin.PinnedBy,
		PinnedAt: now,
		Comment:  pin.Comment,
	}
	st.mu.Unlock()

	s.logger.Info("pinned environment", "key", key.String(), "version", pin.Version, "by", pin.PinnedBy)
	s.publish(ctx, []promotion.DomainEvent{&promotion.EnvironmentPinnedEvent{
		Key:      key,
		Version:  pin.Version,
		PinnedBy: pin.PinnedBy,
		At:       now,
	}})
	return nil
}

// GetPinnedEnvironments lists the active pins of the config.
func (s *InMemoryStore) GetPinnedEnvironments(ctx context.Context, deliveryConfig string) ([]promotion.PinnedEnvironment, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	config, arts, err := s.configArtifacts("ledger.GetPinnedEnvironments", deliveryConfig)
	if err != nil {
		return nil, err
	}

	var out []promotion.PinnedEnvironment
	for _, env := range config.Environments {
		for _, art := range arts {
			st := s.lookupEnv(promotion.EnvironmentKey{ArtifactID: art.ID, DeliveryConfig: deliveryConfig, Environment: env})
			if st == nil {
				continue
			}
			st.mu.Lock()
			pin := st.pin
			st.mu.Unlock()
			if pin == nil {
				continue
			}
			out = append(out, promotion.PinnedEnvironment{
				DeliveryConfigName: deliveryConfig,
				TargetEnvironment:  env,
				ArtifactName:       art.Name,
				ArtifactType:       art.Type,
				Reference:          art.Reference,
				PinRecord:          *pin,
			})
		}
	}
	return out, nil
}

// DeletePin removes the pin of one artifact in the environment, or of every
// artifact of the config when reference is empty.
func (s *InMemoryStore) DeletePin(ctx context.Context, deliveryConfig, env, reference string) error {
	const op = "ledger.DeletePin"
	if err := checkContext(ctx); err != nil {
		return err
	}

	var arts []artifact.DeliveryArtifact
	if reference != "" {
		art, err := s.resolveReference(op, deliveryConfig, reference, env)
		if err != nil {
			return err
		}
		arts = append(arts, art)
	} else {
		config, all, err := s.configArtifacts(op, deliveryConfig)
		if err != nil {
			return err
		}
		if !config.HasEnvironment(env) {
			return rperrors.Validation(op, fmt.Sprintf("delivery config %q has no environment %q", deliveryConfig, env))
		}
		arts = all
	}

	var events []promotion.DomainEvent
	for _, art := range arts {
		key := promotion.EnvironmentKey{ArtifactID: art.ID, DeliveryConfig: deliveryConfig, Environment: env}
		st := s.lookupEnv(key)
		if st == nil {
			continue
		}
		st.mu.Lock()
		if st.pin != nil {
			events = append(events, &promotion.PinDeletedEvent{Key: key, Version: st.pin.Version, At: s.clock.Now()})
			st.pin = nil
		}
		st.mu.Unlock()
	}

	if len(events) > 0 {
		s.logger.Info("deleted pins", "config", deliveryConfig, "environment", env, "count", len(events))
		s.publish(ctx, events)
	}
	return nil
}
