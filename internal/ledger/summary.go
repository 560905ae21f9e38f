package ledger

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	"github.com/spinnaker/spinnaker-sub014/internal/domain/promotion"
)

// GetEnvironmentSummaries projects every artifact of the config in every environment.
// Environments are summarised concurrently; each artifact's bookkeeping is read under
// its environment lock, so no summary ever shows two CURRENT versions.
func (s *InMemoryStore) GetEnvironmentSummaries(ctx context.Context, deliveryConfig string) ([]promotion.EnvironmentSummary, error) {
	const op = "ledger.GetEnvironmentSummaries"
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	config, arts, err := s.configArtifacts(op, deliveryConfig)
	if err != nil {
		return nil, err
	}

	eligible := make([][]string, len(arts))
	s.mu.RLock()
	for i, art := range arts {
		records, err := s.rawVersionsLocked(op, art.VersionKey())
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		eligible[i] = art.EligibleVersions(records)
	}
	s.mu.RUnlock()

	summaries := make([]promotion.EnvironmentSummary, len(config.Environments))
	g, gctx := errgroup.WithContext(ctx)
	for i, env := range config.Environments {
		g.Go(func() error {
			if err := checkContext(gctx); err != nil {
				return err
			}
			summary := promotion.EnvironmentSummary{
				Name:      env,
				Artifacts: make([]promotion.ArtifactVersions, 0, len(arts)),
			}
			for j, art := range arts {
				key := promotion.EnvironmentKey{ArtifactID: art.ID, DeliveryConfig: deliveryConfig, Environment: env}
				summary.Artifacts = append(summary.Artifacts, s.artifactVersions(key, art, eligible[j]))
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// artifactVersions groups the artifact's versions in one environment by status.
// Untracked eligible versions are pending when newer than the current version and
// skipped when older.
func (s *InMemoryStore) artifactVersions(key promotion.EnvironmentKey, art artifact.DeliveryArtifact, eligible []string) promotion.ArtifactVersions {
	out := promotion.ArtifactVersions{
		Name:      art.Name,
		Type:      art.Type,
		Reference: art.Reference,
		Versions: promotion.ArtifactVersionStatus{
			Pending:  []string{},
			Approved: []string{},
			Previous: []string{},
			Vetoed:   []string{},
			Skipped:  []string{},
		},
	}

	st := s.lookupEnv(key)
	if st == nil {
		out.Versions.Pending = append(out.Versions.Pending, eligible...)
		return out
	}

	st.mu.Lock()
	statuses := make(map[string]promotion.Status, len(st.statuses))
	for v, status := range st.statuses {
		statuses[v] = status
	}
	if st.pin != nil {
		pin := *st.pin
		out.Pinned = &pin
	}
	st.mu.Unlock()

	versions := &out.Versions
	var deploying []string
	for v, status := range statuses {
		switch status {
		case promotion.StatusCurrent:
			versions.Current = v
		case promotion.StatusDeploying:
			deploying = append(deploying, v)
		case promotion.StatusApproved:
			versions.Approved = append(versions.Approved, v)
		case promotion.StatusPrevious:
			versions.Previous = append(versions.Previous, v)
		case promotion.StatusVetoed:
			versions.Vetoed = append(versions.Vetoed, v)
		case promotion.StatusSkipped:
			versions.Skipped = append(versions.Skipped, v)
		}
	}
	if len(deploying) > 0 {
		art.SortDescending(deploying)
		versions.Deploying = deploying[0]
	}

	for _, v := range eligible {
		if _, tracked := statuses[v]; tracked {
			continue
		}
		if versions.Current != "" && art.Compare(v, versions.Current) < 0 {
			versions.Skipped = append(versions.Skipped, v)
			continue
		}
		versions.Pending = append(versions.Pending, v)
	}

	art.SortDescending(versions.Approved)
	art.SortDescending(versions.Previous)
	art.SortDescending(versions.Vetoed)
	art.SortDescending(versions.Skipped)
	return out
}

// GetArtifactSummaryInEnvironment returns the history of one version in one environment.
func (s *InMemoryStore) GetArtifactSummaryInEnvironment(ctx context.Context, deliveryConfig, env, reference, version string) (*promotion.ArtifactSummaryInEnvironment, error) {
	const op = "ledger.GetArtifactSummaryInEnvironment"
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	art, err := s.resolveReference(op, deliveryConfig, reference, env)
	if err != nil {
		return nil, err
	}

	summary := &promotion.ArtifactSummaryInEnvironment{
		Environment: env,
		Version:     version,
		State:       promotion.StatusPending,
	}
	st := s.lookupEnv(promotion.EnvironmentKey{ArtifactID: art.ID, DeliveryConfig: deliveryConfig, Environment: env})
	if st == nil {
		return summary, nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	summary.State = st.status(version)

	deployedAt := -1
	for i, rec := range st.history {
		if rec.Version == version {
			deployedAt = i
		}
	}
	if deployedAt >= 0 {
		at := st.history[deployedAt].DeployedAt
		summary.DeployedAt = &at
		if deployedAt+1 < len(st.history) {
			next := st.history[deployedAt+1]
			summary.ReplacedBy = next.Version
			summary.ReplacedAt = &next.DeployedAt
		}
	}
	if summary.ReplacedBy == "" {
		if skip, ok := st.skips[version]; ok {
			summary.ReplacedBy = skip.SupersededBy
			at := skip.SupersededAt
			summary.ReplacedAt = &at
		}
	}

	if st.pin != nil && st.pin.Version == version {
		pin := *st.pin
		summary.IsPinned = true
		summary.Pinned = &pin
	}
	if veto, ok := st.vetoes[version]; ok {
		summary.Vetoed = &veto
	}
	return summary, nil
}
