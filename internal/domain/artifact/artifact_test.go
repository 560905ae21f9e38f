package artifact

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
)

func TestParseType(t *testing.T) {
	for _, typ := range AllTypes() {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseType("rpm")
	assert.Error(t, err)
}

func TestWithDefaults(t *testing.T) {
	a := DeliveryArtifact{Name: "org/api", Type: TypeDocker, DeliveryConfigName: "cfg"}.WithDefaults()
	assert.Equal(t, "org/api", a.Reference)
	assert.Equal(t, DefaultTagPattern, a.Docker.TagPattern)
	assert.Equal(t, TagStrategySemver, a.Docker.Strategy)

	d := NewDebianArtifact("api", "cfg", "")
	assert.Equal(t, "api", d.Reference)
	assert.Empty(t, d.Docker.TagPattern)
}

func TestKeys(t *testing.T) {
	a := NewDebianArtifact("api", "prod-config", "default")
	assert.Equal(t, Key{Name: "api", Type: TypeDebian, DeliveryConfig: "prod-config", Reference: "default"}, a.Key())
	assert.Equal(t, VersionKey{Name: "api", Type: TypeDebian}, a.VersionKey())
	assert.Equal(t, "deb/api@prod-config:default", a.Key().String())
	assert.Equal(t, "deb/api", a.VersionKey().String())
}

func TestDeliveryArtifact_Validate(t *testing.T) {
	tests := []struct {
		name    string
		a       DeliveryArtifact
		wantErr bool
	}{
		{"valid debian", NewDebianArtifact("api", "cfg", "default", StatusRelease), false},
		{"valid docker", NewDockerArtifact("org/api", "cfg", "img", DockerPolicy{TagPattern: `^v(.*)$`, CaptureGroup: 1}), false},
		{"missing name", NewDebianArtifact("", "cfg", "default"), true},
		{"missing config", NewDebianArtifact("api", "", "default"), true},
		{"bad type", DeliveryArtifact{Name: "api", Type: "rpm", DeliveryConfigName: "cfg"}, true},
		{"bad status", NewDebianArtifact("api", "cfg", "default", "NIGHTLY"), true},
		{"bad pattern", NewDockerArtifact("org/api", "cfg", "img", DockerPolicy{TagPattern: `(`}), true},
		{"capture out of range", NewDockerArtifact("org/api", "cfg", "img", DockerPolicy{CaptureGroup: 2}), true},
		{"bad strategy", NewDockerArtifact("org/api", "cfg", "img", DockerPolicy{Strategy: "random"}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.a.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, rperrors.IsKind(err, rperrors.KindValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDeliveryConfig_Validate(t *testing.T) {
	assert.NoError(t, DeliveryConfig{Name: "cfg", Environments: []string{"test", "prod"}}.Validate())
	assert.Error(t, DeliveryConfig{Environments: []string{"prod"}}.Validate())
	assert.Error(t, DeliveryConfig{Name: "cfg", Environments: []string{"prod", "prod"}}.Validate())
	assert.Error(t, DeliveryConfig{Name: "cfg", Environments: []string{""}}.Validate())

	cfg := DeliveryConfig{Name: "cfg", Environments: []string{"test", "prod"}}
	assert.True(t, cfg.HasEnvironment("prod"))
	assert.False(t, cfg.HasEnvironment("staging"))
}

func TestErrors_Unwrap(t *testing.T) {
	var err error = &ArtifactNotFoundError{Reference: "img", DeliveryConfigName: "cfg"}
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
	assert.Contains(t, err.Error(), `"img"`)

	err = &NoSuchArtifactError{ID: "abc"}
	assert.True(t, errors.Is(err, ErrNoSuchArtifact))
	assert.Equal(t, `no artifact with id "abc"`, err.Error())

	err = &NoSuchArtifactError{Name: "api", Type: TypeDebian}
	assert.Contains(t, err.Error(), "of type deb")

	err = &NoSuchDeliveryConfigError{Name: "cfg"}
	assert.True(t, errors.Is(err, ErrNoSuchDeliveryConfig))
}
