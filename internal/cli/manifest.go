package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spinnaker/spinnaker-sub014/internal/domain/artifact"
	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
)

// Manifest is the YAML document applied by `ledger config apply`: a delivery
// config and the artifacts it declares.
type Manifest struct {
	artifact.DeliveryConfig `yaml:",inline"`
	Artifacts               []ManifestArtifact `yaml:"artifacts"`
}

// ManifestArtifact declares one artifact of a manifest.
type ManifestArtifact struct {
	Name         string                   `yaml:"name"`
	Type         artifact.Type            `yaml:"type"`
	Reference    string                   `yaml:"reference,omitempty"`
	Statuses     []artifact.ReleaseStatus `yaml:"statuses,omitempty"`
	TagPattern   string                   `yaml:"tagPattern,omitempty"`
	CaptureGroup int                      `yaml:"captureGroup,omitempty"`
	Strategy     artifact.TagStrategy     `yaml:"strategy,omitempty"`
}

// readManifest reads a manifest from path, or from stdin when path is "-".
func readManifest(path string, stdin io.Reader) (*Manifest, error) {
	const op = "cli.readManifest"

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, rperrors.IOWrap(err, op, "failed to read manifest")
	}
	return parseManifest(data)
}

// parseManifest decodes and validates a manifest. Unknown keys are rejected.
func parseManifest(data []byte) (*Manifest, error) {
	const op = "cli.parseManifest"

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var m Manifest
	if err := decoder.Decode(&m); err != nil {
		return nil, rperrors.Wrap(err, rperrors.KindValidation, op, "invalid manifest")
	}
	if err := m.DeliveryConfig.Validate(); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(m.Artifacts))
	for _, a := range m.Artifacts {
		art, err := a.toArtifact(m.Name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[art.Reference]; dup {
			return nil, rperrors.Validation(op, fmt.Sprintf("duplicate artifact reference %q", art.Reference))
		}
		seen[art.Reference] = struct{}{}
	}
	return &m, nil
}

// DeliveryArtifacts returns the manifest artifacts bound to its delivery config.
func (m *Manifest) DeliveryArtifacts() ([]artifact.DeliveryArtifact, error) {
	arts := make([]artifact.DeliveryArtifact, 0, len(m.Artifacts))
	for _, a := range m.Artifacts {
		art, err := a.toArtifact(m.Name)
		if err != nil {
			return nil, err
		}
		arts = append(arts, art)
	}
	return arts, nil
}

func (a ManifestArtifact) toArtifact(deliveryConfig string) (artifact.DeliveryArtifact, error) {
	var art artifact.DeliveryArtifact
	switch artifact.Type(strings.ToLower(string(a.Type))) {
	case artifact.TypeDebian:
		art = artifact.NewDebianArtifact(a.Name, deliveryConfig, a.Reference, a.Statuses...)
	case artifact.TypeDocker:
		art = artifact.NewDockerArtifact(a.Name, deliveryConfig, a.Reference, artifact.DockerPolicy{
			TagPattern:   a.TagPattern,
			CaptureGroup: a.CaptureGroup,
			Strategy:     a.Strategy,
		})
	default:
		return art, rperrors.Validation("cli.ManifestArtifact", fmt.Sprintf("artifact %q has unsupported type %q", a.Name, a.Type))
	}
	return art, art.Validate()
}
