package ledger

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
)

// StateVersion is the current snapshot schema version.
const StateVersion = 1

// State is a serialisable copy of the whole ledger.
type State struct {
	SchemaVersion   int                         `json:"schemaVersion"`
	DeliveryConfigs []artifact.DeliveryConfig   `json:"deliveryConfigs"`
	Artifacts       []artifact.DeliveryArtifact `json:"artifacts"`
	Versions        []VersionsState             `json:"versions"`
	LastChecked     map[string]time.Time        `json:"lastChecked,omitempty"`
	Environments    []EnvironmentState          `json:"environments"`
}

// VersionsState is the stored version list of one name and type.
type VersionsState struct {
	Name     string                   `json:"name"`
	Type     artifact.Type            `json:"type"`
	Versions []artifact.VersionRecord `json:"versions"`
}

// EnvironmentState is the promotion bookkeeping of one EnvironmentKey.
type EnvironmentState struct {
	Key            promotion.EnvironmentKey    `json:"key"`
	Statuses       map[string]promotion.Status `json:"statuses,omitempty"`
	Approved       []string                    `json:"approved,omitempty"`
	Deployed       []string                    `json:"deployed,omitempty"`
	History        []promotion.DeployedRecord  `json:"history,omitempty"`
	Skips          []promotion.SkipRecord      `json:"skips,omitempty"`
	Pin            *promotion.PinRecord        `json:"pin,omitempty"`
	Vetoes         []promotion.VetoRecord      `json:"vetoes,omitempty"`
	VetoedTo       map[string]string           `json:"vetoedTo,omitempty"`
	RolledBackFrom map[string]string           `json:"rolledBackFrom,omitempty"`
}

// Snapshot returns a deep copy of the ledger. Each environment is copied under its
// own lock; the catalog is copied under a read lock.
func (s *InMemoryStore) Snapshot(ctx context.Context) (*State, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	state := &State{SchemaVersion: StateVersion}

	s.mu.RLock()
	for _, config := range s.configs {
		config.Environments = slices.Clone(config.Environments)
		state.DeliveryConfigs = append(state.DeliveryConfigs, config)
	}
	for _, art := range s.artifacts {
		state.Artifacts = append(state.Artifacts, art.WithDefaults())
	}
	for key, l := range s.versions {
		state.Versions = append(state.Versions, VersionsState{
			Name:     key.Name,
			Type:     key.Type,
			Versions: slices.Clone(l.records),
		})
	}
	state.LastChecked = maps.Clone(s.lastChecked)
	s.mu.RUnlock()

	s.envMu.Lock()
	envs := maps.Clone(s.envs)
	s.envMu.Unlock()

	for key, st := range envs {
		st.mu.Lock()
		es := EnvironmentState{
			Key:            key,
			Statuses:       maps.Clone(st.statuses),
			Approved:       sortedKeys(st.approved),
			Deployed:       sortedKeys(st.deployed),
			History:        slices.Clone(st.history),
			VetoedTo:       maps.Clone(st.vetoedTo),
			RolledBackFrom: maps.Clone(st.rolledBackFrom),
		}
		for _, skip := range st.skips {
			es.Skips = append(es.Skips, skip)
		}
		for _, veto := range st.vetoes {
			es.Vetoes = append(es.Vetoes, veto)
		}
		if st.pin != nil {
			pin := *st.pin
			es.Pin = &pin
		}
		st.mu.Unlock()

		sort.Slice(es.Skips, func(i, j int) bool { return es.Skips[i].Version < es.Skips[j].Version })
		sort.Slice(es.Vetoes, func(i, j int) bool { return es.Vetoes[i].Version < es.Vetoes[j].Version })
		state.Environments = append(state.Environments, es)
	}

	sort.Slice(state.DeliveryConfigs, func(i, j int) bool {
		return state.DeliveryConfigs[i].Name < state.DeliveryConfigs[j].Name
	})
	sortArtifacts(state.Artifacts)
	sort.Slice(state.Versions, func(i, j int) bool {
		a, b := state.Versions[i], state.Versions[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Name < b.Name
	})
	sort.Slice(state.Environments, func(i, j int) bool {
		return strings.Compare(state.Environments[i].Key.String(), state.Environments[j].Key.String()) < 0
	})
	return state, nil
}

// NewInMemoryStoreFromState rebuilds a ledger from a snapshot.
func NewInMemoryStoreFromState(state *State, opts ...Option) (*InMemoryStore, error) {
	const op = "ledger.NewInMemoryStoreFromState"

	s, err := NewInMemoryStore(opts...)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return s, nil
	}
	if state.SchemaVersion > StateVersion {
		return nil, rperrors.Newf(rperrors.KindValidation,
			"%s: unsupported ledger schema version %d", op, state.SchemaVersion)
	}

	for _, config := range state.DeliveryConfigs {
		if err := config.Validate(); err != nil {
			return nil, err
		}
		config.Environments = slices.Clone(config.Environments)
		s.configs[config.Name] = config
	}
	for _, art := range state.Artifacts {
		art = art.WithDefaults()
		if art.ID == "" {
			return nil, rperrors.Validation(op, "artifact "+art.Key().String()+" has no id")
		}
		if err := art.Validate(); err != nil {
			return nil, err
		}
		ref := referenceKey{deliveryConfig: art.DeliveryConfigName, reference: art.Reference}
		if holder, ok := s.byReference[ref]; ok && holder != art.ID {
			return nil, rperrors.Conflict(op, fmt.Sprintf("reference %q of %s is declared twice", art.Reference, art.DeliveryConfigName))
		}
		s.artifacts[art.ID] = art
		s.byKey[art.Key()] = art.ID
		s.byReference[ref] = art.ID
		if _, ok := s.versions[art.VersionKey()]; !ok {
			s.versions[art.VersionKey()] = newVersionLedger()
		}
	}
	for _, vs := range state.Versions {
		key := artifact.VersionKey{Name: vs.Name, Type: vs.Type}
		l, ok := s.versions[key]
		if !ok {
			l = newVersionLedger()
			s.versions[key] = l
		}
		for _, rec := range vs.Versions {
			l.add(rec)
		}
	}
	for id, at := range state.LastChecked {
		if _, ok := s.artifacts[id]; ok {
			s.lastChecked[id] = at
		}
	}

	for _, es := range state.Environments {
		if _, ok := s.artifacts[es.Key.ArtifactID]; !ok {
			continue
		}
		st := newEnvState()
		for v, status := range es.Statuses {
			if !status.IsValid() || status == promotion.StatusPending {
				return nil, rperrors.Validation(op, "invalid stored status "+string(status)+" for "+es.Key.String())
			}
			st.statuses[v] = status
		}
		if current := st.withStatus(promotion.StatusCurrent); len(current) > 1 {
			return nil, rperrors.Newf(rperrors.KindConflict,
				"%s: %s has %d CURRENT versions", op, es.Key, len(current))
		}
		for _, v := range es.Approved {
			st.approved[v] = struct{}{}
		}
		for _, v := range es.Deployed {
			st.deployed[v] = struct{}{}
		}
		st.history = slices.Clone(es.History)
		for _, skip := range es.Skips {
			st.skips[skip.Version] = skip
		}
		for _, veto := range es.Vetoes {
			st.vetoes[veto.Version] = veto
		}
		if es.Pin != nil {
			pin := *es.Pin
			st.pin = &pin
		}
		maps.Copy(st.vetoedTo, es.VetoedTo)
		maps.Copy(st.rolledBackFrom, es.RolledBackFrom)
		s.envs[es.Key] = st
	}
	return s, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := slices.Collect(maps.Keys(set))
	slices.Sort(keys)
	return keys
}
