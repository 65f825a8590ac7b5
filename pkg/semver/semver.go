package semver

import (
	"regexp"
	"strings"

	sv "github.com/Masterminds/semver"
)

type Version = sv.Version

// Parse is sv.NewVersion that also accepts versions with a non-standard
// suffix like "1.2.3.4" or "2.4pre20210908_3c56f62". The suffix becomes the
// pre-release part.
func Parse(s string) (*Version, error) {
	fixedS := nonSemverWorkaround(strings.TrimSpace(s))

	return sv.NewVersion(fixedS)
}

var (
	versionRegex = regexp.MustCompile(`^v?([0-9]+)(\.[0-9]+)?(\.[0-9]+)?` + `(.*)$`)
	invalidPre   = regexp.MustCompile(`[^0-9A-Za-z.\-]+`)
)

func nonSemverWorkaround(s string) string {
	matches := versionRegex.FindStringSubmatch(s)
	if matches == nil {
		return s
	}

	preLike := matches[4]

	if preLike == "" || preLike[0] == '-' || preLike[0] == '+' {
		return s
	}

	core := strings.Join(matches[1:4], "")

	pre := invalidPre.ReplaceAllString(strings.TrimPrefix(preLike, "."), "-")
	pre = strings.Trim(pre, "-.")

	if pre == "" {
		return core
	}

	return core + "-" + pre
}
