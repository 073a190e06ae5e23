// Package versions holds the semantic-version reasoning used by the
// registry probers: picking the highest release per tracked major line and
// inferring which major line an npm-style dependency range points at.
package versions

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Set is the highest known version in each tracked major line. A nil slot
// means no parseable version with that major component was seen.
type Set struct {
	V0 *semver.Version
	V1 *semver.Version
}

// Strings returns both slots rendered as version strings, nil for empty slots.
func (s Set) Strings() (v0, v1 *string) {
	if s.V0 != nil {
		str := s.V0.String()
		v0 = &str
	}
	if s.V1 != nil {
		str := s.V1.String()
		v1 = &str
	}
	return v0, v1
}

// Resolve parses raw version strings, discards unparseable entries, and
// selects the highest version whose major component is 0 and the highest
// whose major component is 1. Leading "v" prefixes are accepted.
func Resolve(raw []string) Set {
	parsed := make([]*semver.Version, 0, len(raw))
	for _, s := range raw {
		v, err := semver.NewVersion(strings.TrimSpace(s))
		if err != nil {
			continue
		}
		parsed = append(parsed, v)
	}
	sort.Sort(sort.Reverse(semver.Collection(parsed)))

	var set Set
	for _, v := range parsed {
		switch v.Major() {
		case 0:
			if set.V0 == nil {
				set.V0 = v
			}
		case 1:
			if set.V1 == nil {
				set.V1 = v
			}
		}
	}
	return set
}

const workspacePrefix = "workspace:"

// NormalizeRange rewrites a raw manifest dependency range into a form the
// constraint parser accepts. Workspace references are stripped to their
// underlying range, and the bare wildcard symbols left behind by
// "workspace:*" style declarations become the minimal unbounded range.
// The literal dist-tag "latest" carries no version information; it is
// reported as unusable rather than guessed at.
func NormalizeRange(raw string) (rng string, usable bool) {
	r := strings.TrimSpace(raw)
	r = strings.TrimPrefix(r, workspacePrefix)
	switch r {
	case "*", "^", "~":
		return ">=0.0.0", true
	case "", "latest":
		return "", false
	}
	return r, true
}

// Satisfies reports whether version satisfies the (already normalized)
// range expression.
func Satisfies(rng, version string) (bool, error) {
	c, err := semver.NewConstraint(rng)
	if err != nil {
		return false, fmt.Errorf("parse range %q: %w", rng, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("parse version %q: %w", version, err)
	}
	return c.Check(v), nil
}

var versionLiteral = regexp.MustCompile(`\d+(?:\.\d+)?(?:\.\d+)?(?:-[0-9A-Za-z.-]+)?`)

// MajorOfMinimum infers the major component of the minimum version that
// satisfies an npm-style range expression.
//
// The minimum satisfying version of a range is either 0.0.0 or sits at one
// of the range's own boundary literals (possibly bumped past a strict
// bound), so it is enough to probe those candidates in ascending order and
// take the first one the constraint admits.
func MajorOfMinimum(rng string) (uint64, error) {
	c, err := semver.NewConstraint(rng)
	if err != nil {
		return 0, fmt.Errorf("parse range %q: %w", rng, err)
	}

	candidates := []*semver.Version{semver.MustParse("0.0.0")}
	for _, lit := range versionLiteral.FindAllString(rng, -1) {
		v, err := semver.NewVersion(lit)
		if err != nil {
			continue
		}
		patch := v.IncPatch()
		minor := v.IncMinor()
		major := v.IncMajor()
		candidates = append(candidates, v, &patch, &minor, &major)
	}
	sort.Sort(semver.Collection(candidates))

	for _, v := range candidates {
		if c.Check(v) {
			return v.Major(), nil
		}
	}
	return 0, fmt.Errorf("range %q admits no candidate version", rng)
}
