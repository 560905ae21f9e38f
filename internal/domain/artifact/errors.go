package artifact

import (
	"errors"
	"fmt"
)

// Domain errors for catalog lookups.
var (
	// ErrArtifactNotFound indicates a reference was never registered for a delivery config.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrNoSuchArtifact indicates an unknown artifact id, or a name/type pair that was never registered.
	ErrNoSuchArtifact = errors.New("no such artifact")

	// ErrNoSuchDeliveryConfig indicates a delivery config lookup miss.
	ErrNoSuchDeliveryConfig = errors.New("no such delivery config")
)

// ArtifactNotFoundError identifies the reference that could not be resolved.
type ArtifactNotFoundError struct {
	Reference          string
	DeliveryConfigName string
}

// Error implements the error interface.
func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("no artifact with reference %q in delivery config %q",
		e.Reference, e.DeliveryConfigName)
}

// Unwrap returns the sentinel for errors.Is compatibility.
func (e *ArtifactNotFoundError) Unwrap() error {
	return ErrArtifactNotFound
}

// NoSuchArtifactError identifies an unknown artifact by id or by name and type.
type NoSuchArtifactError struct {
	ID   string
	Name string
	Type Type
}

// Error implements the error interface.
func (e *NoSuchArtifactError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("no artifact with id %q", e.ID)
	}
	return fmt.Sprintf("no registered artifact named %q of type %s", e.Name, e.Type)
}

// Unwrap returns the sentinel for errors.Is compatibility.
func (e *NoSuchArtifactError) Unwrap() error {
	return ErrNoSuchArtifact
}

// NoSuchDeliveryConfigError identifies the missing delivery config.
type NoSuchDeliveryConfigError struct {
	Name string
}

// Error implements the error interface.
func (e *NoSuchDeliveryConfigError) Error() string {
	return fmt.Sprintf("no delivery config named %q", e.Name)
}

// Unwrap returns the sentinel for errors.Is compatibility.
func (e *NoSuchDeliveryConfigError) Unwrap() error {
	return ErrNoSuchDeliveryConfig
}
