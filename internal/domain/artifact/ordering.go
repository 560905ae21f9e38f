package artifact

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	deb "github.com/knqyf263/go-deb-version"
)

// versionPolicy is the eligibility filter and ordering for one artifact type.
type versionPolicy interface {
	eligible(record VersionRecord) bool
	compare(a, b string) int
}

// policy selects the type-specific policy of the artifact.
func (a DeliveryArtifact) policy() versionPolicy {
	switch a.Type {
	case TypeDocker:
		return dockerPolicy{DockerPolicy: a.WithDefaults().Docker}
	default:
		return debianPolicy{DebianPolicy: a.Debian}
	}
}

// IsEligible reports whether a stored version passes the artifact's eligibility policy.
func (a DeliveryArtifact) IsEligible(record VersionRecord) bool {
	return a.policy().eligible(record)
}

// Compare orders two versions of the artifact. A positive result means a is newer than b.
// Versions the policy cannot parse sort below parseable ones.
func (a DeliveryArtifact) Compare(x, y string) int {
	return a.policy().compare(x, y)
}

// SortDescending sorts versions in place, newest first.
func (a DeliveryArtifact) SortDescending(versions []string) {
	p := a.policy()
	slices.SortStableFunc(versions, func(x, y string) int {
		return p.compare(y, x)
	})
}

// EligibleVersions filters records through the policy and returns them newest first.
func (a DeliveryArtifact) EligibleVersions(records []VersionRecord) []string {
	p := a.policy()
	versions := make([]string, 0, len(records))
	for _, r := range records {
		if p.eligible(r) {
			versions = append(versions, r.Version)
		}
	}
	slices.SortStableFunc(versions, func(x, y string) int {
		return p.compare(y, x)
	})
	return versions
}

type debianPolicy struct {
	DebianPolicy
}

func (p debianPolicy) eligible(record VersionRecord) bool {
	if len(p.Statuses) == 0 {
		return true
	}
	return slices.Contains(p.Statuses, record.Status)
}

func (p debianPolicy) compare(a, b string) int {
	return compareWith(a, b, deb.NewVersion, func(x, y deb.Version) int {
		switch {
		case x.LessThan(y):
			return -1
		case x.GreaterThan(y):
			return 1
		default:
			return 0
		}
	})
}

type dockerPolicy struct {
	DockerPolicy
}

func (p dockerPolicy) eligible(record VersionRecord) bool {
	value, ok := p.capture(record.Version)
	if !ok {
		return false
	}
	switch p.Strategy {
	case TagStrategyIncreasing:
		_, err := strconv.ParseUint(value, 10, 64)
		return err == nil
	default:
		_, err := semver.NewVersion(value)
		return err == nil
	}
}

func (p dockerPolicy) compare(a, b string) int {
	switch p.Strategy {
	case TagStrategyIncreasing:
		return compareWith(a, b, p.parseIncreasing, func(x, y uint64) int {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		})
	default:
		return compareWith(a, b, p.parseSemver, func(x, y *semver.Version) int {
			return x.Compare(y)
		})
	}
}

func (p dockerPolicy) parseSemver(tag string) (*semver.Version, error) {
	value, ok := p.capture(tag)
	if !ok {
		return nil, fmt.Errorf("tag %q does not match %q", tag, p.TagPattern)
	}
	return semver.NewVersion(value)
}

func (p dockerPolicy) parseIncreasing(tag string) (uint64, error) {
	value, ok := p.capture(tag)
	if !ok {
		return 0, fmt.Errorf("tag %q does not match %q", tag, p.TagPattern)
	}
	return strconv.ParseUint(value, 10, 64)
}

// capture returns the configured submatch of the tag.
func (p dockerPolicy) capture(tag string) (string, bool) {
	re, err := compilePattern(p.TagPattern)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(tag)
	if m == nil || p.CaptureGroup >= len(m) {
		return "", false
	}
	return m[p.CaptureGroup], true
}

var patternCache sync.Map // map[string]*regexp.Regexp

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}

// compareWith orders two raw versions with a type-specific parser and comparator.
// Unparseable versions sort below parseable ones; ties fall back to lexical order
// so the result is total.
func compareWith[V any](a, b string, parse func(string) (V, error), cmp func(x, y V) int) int {
	va, errA := parse(a)
	vb, errB := parse(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	if c := cmp(va, vb); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
