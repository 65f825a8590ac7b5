package flake

import (
	"strings"

	"github.com/variantdev/deploy/pkg/deployerr"
)

// Target is a parsed flake reference of the form repo[#node[.profile]].
// Node and Profile are empty when not given.
type Target struct {
	Repo    string
	Node    string
	Profile string
}

func Parse(ref string) (Target, error) {
	var t Target

	if ref == "" {
		return t, deployerr.New(deployerr.Parse, "empty flake reference")
	}

	repo, fragment, hasFragment := cut(ref, "#")
	if repo == "" {
		return t, deployerr.Newf(deployerr.Parse, "flake reference %q has no repository", ref)
	}
	t.Repo = repo

	if !hasFragment {
		return t, nil
	}

	if strings.Contains(fragment, "#") {
		return t, deployerr.Newf(deployerr.Parse, "flake reference %q has more than one '#'", ref)
	}

	segments := strings.Split(fragment, ".")
	switch len(segments) {
	case 1:
		t.Node = segments[0]
	case 2:
		t.Node, t.Profile = segments[0], segments[1]
		if t.Profile == "" {
			return Target{}, deployerr.Newf(deployerr.Parse, "flake reference %q has an empty profile name", ref)
		}
	default:
		return Target{}, deployerr.Newf(deployerr.Parse, "flake reference %q: expected at most one '.' after '#', got %d", ref, len(segments)-1)
	}

	if t.Node == "" {
		return Target{}, deployerr.Newf(deployerr.Parse, "flake reference %q has an empty node name", ref)
	}

	return t, nil
}

func (t Target) String() string {
	s := t.Repo
	if t.Node != "" {
		s += "#" + t.Node
		if t.Profile != "" {
			s += "." + t.Profile
		}
	}
	return s
}

func cut(s, sep string) (string, string, bool) {
	if i := strings.Index(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}
