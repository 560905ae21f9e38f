package ledger

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
)

// ItemsDueForCheck returns up to limit artifacts not checked within minTimeSinceLastCheck,
// never-checked artifacts first, then the least recently checked. The returned artifacts
// are stamped as checked in the same critical section, so concurrent callers never
// receive the same artifact.
func (s *InMemoryStore) ItemsDueForCheck(ctx context.Context, minTimeSinceLastCheck time.Duration, limit int) ([]artifact.DeliveryArtifact, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	cutoff := now.Add(-minTimeSinceLastCheck)

	due := make([]artifact.DeliveryArtifact, 0, min(limit, len(s.artifacts)))
	for id, art := range s.artifacts {
		if last, ok := s.lastChecked[id]; ok && !last.Before(cutoff) {
			continue
		}
		due = append(due, art)
	}
	slices.SortFunc(due, func(a, b artifact.DeliveryArtifact) int {
		la, lb := s.lastChecked[a.ID], s.lastChecked[b.ID]
		if c := la.Compare(lb); c != 0 {
			return c
		}
		return strings.Compare(a.Key().String(), b.Key().String())
	})
	if len(due) > limit {
		due = due[:limit]
	}

	for _, art := range due {
		s.lastChecked[art.ID] = now
	}
	if len(due) > 0 {
		s.logger.Debug("claimed artifacts for check", "count", len(due))
	}
	return due, nil
}
