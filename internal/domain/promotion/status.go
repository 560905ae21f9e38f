// Package promotion provides the domain model for promoting artifact versions
// through the environments of a delivery config.
package promotion

import "fmt"

// Status is the promotion status of one version within one environment.
type Status string

const (
	// StatusPending means the version never entered the environment. It is never stored.
	StatusPending Status = "PENDING"
	// StatusApproved means the version may be deployed to the environment.
	StatusApproved Status = "APPROVED"
	// StatusDeploying means a deployment of the version is in progress.
	StatusDeploying Status = "DEPLOYING"
	// StatusCurrent means the version is what the environment runs. At most one per environment.
	StatusCurrent Status = "CURRENT"
	// StatusPrevious means the version was current and has been replaced.
	StatusPrevious Status = "PREVIOUS"
	// StatusSkipped means the version was superseded before it was ever deployed.
	StatusSkipped Status = "SKIPPED"
	// StatusVetoed means the version was marked unsafe for the environment.
	StatusVetoed Status = "VETOED"
)

// AllStatuses returns every promotion status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusPending,
		StatusApproved,
		StatusDeploying,
		StatusCurrent,
		StatusPrevious,
		StatusSkipped,
		StatusVetoed,
	}
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeploying, StatusCurrent,
		StatusPrevious, StatusSkipped, StatusVetoed:
		return true
	default:
		return false
	}
}

// IsSettled returns true for the statuses a version can only leave through an explicit transition.
func (s Status) IsSettled() bool {
	return s == StatusCurrent || s == StatusPrevious || s == StatusSkipped || s == StatusVetoed
}

// ParseStatus parses a string into a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid promotion status: %q", s)
	}
	return status, nil
}

// Description returns a human-readable description of the status.
func (s Status) Description() string {
	switch s {
	case StatusPending:
		return "Not yet evaluated for this environment"
	case StatusApproved:
		return "Approved and waiting to be deployed"
	case StatusDeploying:
		return "Deployment in progress"
	case StatusCurrent:
		return "Currently deployed"
	case StatusPrevious:
		return "Previously deployed, since replaced"
	case StatusSkipped:
		return "Superseded before it was deployed"
	case StatusVetoed:
		return "Marked unsafe for this environment"
	default:
		return "Unknown status"
	}
}
