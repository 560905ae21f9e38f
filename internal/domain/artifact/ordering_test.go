package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func records(versions ...string) []VersionRecord {
	out := make([]VersionRecord, len(versions))
	for i, v := range versions {
		out[i] = VersionRecord{Version: v}
	}
	return out
}

func TestDebianOrdering(t *testing.T) {
	a := NewDebianArtifact("api", "prod-config", "default")

	tests := []struct {
		name string
		x, y string
		want int
	}{
		{"minor bump", "1.1.0", "1.0.0", 1},
		{"numeric not lexical", "1.10.0", "1.9.0", 1},
		{"equal", "1.0.0", "1.0.0", 0},
		{"debian revision", "1.0.0-2", "1.0.0-1", 1},
		{"tilde sorts before release", "1.0.0~rc1", "1.0.0", -1},
		{"epoch wins", "1:0.1", "2.0", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Compare(tt.x, tt.y)
			switch {
			case tt.want > 0:
				assert.Positive(t, got)
			case tt.want < 0:
				assert.Negative(t, got)
			default:
				assert.Zero(t, got)
			}
		})
	}
}

func TestDebianEligibility(t *testing.T) {
	a := NewDebianArtifact("api", "prod-config", "default", StatusRelease, StatusFinal)

	assert.True(t, a.IsEligible(VersionRecord{Version: "1.0.0", Status: StatusRelease}))
	assert.True(t, a.IsEligible(VersionRecord{Version: "1.0.0", Status: StatusFinal}))
	assert.False(t, a.IsEligible(VersionRecord{Version: "1.0.0", Status: StatusSnapshot}))
	assert.False(t, a.IsEligible(VersionRecord{Version: "1.0.0"}))

	open := NewDebianArtifact("api", "prod-config", "default")
	assert.True(t, open.IsEligible(VersionRecord{Version: "1.0.0"}))
	assert.True(t, open.IsEligible(VersionRecord{Version: "1.0.0", Status: StatusSnapshot}))
}

func TestEligibleVersions_SortedNewestFirst(t *testing.T) {
	a := NewDebianArtifact("api", "prod-config", "default", StatusRelease)
	got := a.EligibleVersions([]VersionRecord{
		{Version: "1.0.0", Status: StatusRelease},
		{Version: "1.10.0", Status: StatusRelease},
		{Version: "1.2.0", Status: StatusSnapshot},
		{Version: "1.9.0", Status: StatusRelease},
	})
	assert.Equal(t, []string{"1.10.0", "1.9.0", "1.0.0"}, got)
}

func TestDockerSemverTags(t *testing.T) {
	a := NewDockerArtifact("org/api", "prod-config", "image", DockerPolicy{
		TagPattern:   `^master-v(\d+\.\d+\.\d+)$`,
		CaptureGroup: 1,
	})

	got := a.EligibleVersions(records("master-v1.2.0", "latest", "master-v1.10.0", "feature-v9.0.0", "master-v1.9.3"))
	assert.Equal(t, []string{"master-v1.10.0", "master-v1.9.3", "master-v1.2.0"}, got)
}

func TestDockerIncreasingTags(t *testing.T) {
	a := NewDockerArtifact("org/api", "prod-config", "image", DockerPolicy{
		TagPattern:   `^build-(\d+)$`,
		CaptureGroup: 1,
		Strategy:     TagStrategyIncreasing,
	})

	assert.False(t, a.IsEligible(VersionRecord{Version: "build-abc"}))
	got := a.EligibleVersions(records("build-9", "build-100", "build-12"))
	assert.Equal(t, []string{"build-100", "build-12", "build-9"}, got)
}

func TestSortDescending_UnparseableLast(t *testing.T) {
	a := NewDockerArtifact("org/api", "prod-config", "image", DockerPolicy{})
	versions := []string{"latest", "v1.0.0", "stable", "v2.0.0"}
	a.SortDescending(versions)
	assert.Equal(t, []string{"v2.0.0", "v1.0.0", "stable", "latest"}, versions)
}

func TestCompare_TotalOrder(t *testing.T) {
	a := NewDockerArtifact("org/api", "prod-config", "image", DockerPolicy{})
	// Equal semantic versions still order deterministically.
	assert.NotZero(t, a.Compare("v1.0.0", "1.0.0"))
	assert.Equal(t, -a.Compare("v1.0.0", "1.0.0"), a.Compare("1.0.0", "v1.0.0"))
}
