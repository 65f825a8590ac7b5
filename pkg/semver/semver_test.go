package semver

import (
	"testing"
)

func TestParse(t *testing.T) {
	testcases := []struct {
		in   string
		want string
	}{
		{in: "2.3.16", want: "2.3.16"},
		{in: "v1.2.3", want: "1.2.3"},
		{in: " 2.18.1+1\n", want: "2.18.1+1"},
		{in: "1.2.3.4", want: "1.2.3-4"},
		{in: "2.4pre20210908_3c56f62", want: "2.4.0-pre20210908-3c56f62"},
		{in: "2.0", want: "2.0.0"},
		{in: "1.2.3-rc.1", want: "1.2.3-rc.1"},
	}

	for _, tc := range testcases {
		v, err := Parse(tc.in)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tc.in, err)
			continue
		}
		if got := v.String(); got != tc.want {
			t.Errorf("%q: unexpected version: expected=%s, got=%s", tc.in, tc.want, got)
		}
	}
}

func TestParsePreReleaseOrdering(t *testing.T) {
	pre, err := Parse("2.4pre20210908_3c56f62")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	min, err := Parse("2.0.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pre.LessThan(min) {
		t.Errorf("expected %s to be newer than %s", pre, min)
	}

	final, _ := Parse("2.4.0")
	if !pre.LessThan(final) {
		t.Errorf("expected %s to be older than %s", pre, final)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "nix", "unknown-version"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("%q: expected error, got none", in)
		}
	}
}
