package platform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Application version ids have the form "<application_id>:v<semver>", e.g.
// "he-tme:v1.2.0". The version part must be a strict semantic version.
var applicationIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ParseVersionID splits and validates an application version id. The id must
// match <name>:v<semver>; anything else fails with a ValidationError before
// any network call is made.
func ParseVersionID(id string) (applicationID string, version *semver.Version, err error) {
	invalid := func() (string, *semver.Version, error) {
		return "", nil, &ValidationError{
			Message: fmt.Sprintf("invalid application version id format: %q (expected <name>:v<semver>)", id),
		}
	}

	name, rest, found := strings.Cut(id, ":")
	if !found || name == "" || !applicationIDPattern.MatchString(name) {
		return invalid()
	}
	if !strings.HasPrefix(rest, "v") {
		return invalid()
	}
	v, parseErr := semver.StrictNewVersion(strings.TrimPrefix(rest, "v"))
	if parseErr != nil {
		return invalid()
	}
	return name, v, nil
}

// IsVersionID reports whether id carries an explicit version, as opposed to a
// bare application id.
func IsVersionID(id string) bool {
	return strings.Contains(id, ":")
}

// LatestVersion picks the highest semantic version from a version listing.
// Pre-release versions sort before their release per semver ordering. Returns
// a NotFoundError when the listing is empty or nothing parses.
func LatestVersion(applicationID string, versions []ApplicationVersion) (*ApplicationVersion, error) {
	var best *ApplicationVersion
	var bestParsed *semver.Version
	for i := range versions {
		parsed, err := semver.StrictNewVersion(strings.TrimPrefix(versions[i].Version, "v"))
		if err != nil {
			continue
		}
		if bestParsed == nil || parsed.GreaterThan(bestParsed) {
			best = &versions[i]
			bestParsed = parsed
		}
	}
	if best == nil {
		return nil, &NotFoundError{Resource: "latest version for application", ID: applicationID}
	}
	return best, nil
}
