package target

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/variantdev/deploy/pkg/deploydata"
	"github.com/variantdev/deploy/pkg/deployerr"
)

const fleet = `{
  "nodes": {
    "web": {
      "profilesOrder": ["system", "app"],
      "profiles": {
        "monitoring": {"path": "/nix/store/m"},
        "app": {"path": "/nix/store/a"},
        "system": {"path": "/nix/store/s"}
      }
    },
    "db": {
      "profiles": {
        "system": {"path": "/nix/store/s"},
        "backup": {"path": "/nix/store/b"}
      }
    },
    "bare": {}
  }
}`

func mustDecode(t *testing.T, s string) *deploydata.Data {
	t.Helper()

	d, err := deploydata.Decode([]byte(s))
	if err != nil {
		t.Fatalf("decoding fixture: %v", err)
	}

	return d
}

func TestSelect(t *testing.T) {
	data := mustDecode(t, fleet)

	testcases := []struct {
		name          string
		node, profile string
		want          []Pair
		kind          deployerr.Kind
	}{
		{
			name: "node and profile",
			node: "db", profile: "backup",
			want: []Pair{{"db", "backup"}},
		},
		{
			name: "node only uses profilesOrder first",
			node: "web",
			want: []Pair{{"web", "system"}, {"web", "app"}, {"web", "monitoring"}},
		},
		{
			name: "node only without profilesOrder",
			node: "db",
			want: []Pair{{"db", "system"}, {"db", "backup"}},
		},
		{
			name: "everything",
			want: []Pair{
				{"web", "system"}, {"web", "app"}, {"web", "monitoring"},
				{"db", "system"}, {"db", "backup"},
			},
		},
		{
			name: "node without profiles",
			node: "bare",
			want: []Pair{},
		},
		{
			name:    "profile without node",
			profile: "system",
			kind:    deployerr.Config,
		},
		{
			name: "unknown node",
			node: "mail",
			kind: deployerr.Lookup,
		},
		{
			name: "unknown node with profile",
			node: "mail", profile: "system",
			kind: deployerr.Lookup,
		},
		{
			name: "unknown profile",
			node: "web", profile: "backup",
			kind: deployerr.Lookup,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Select(data, tc.node, tc.profile)

			if tc.kind != "" {
				if err == nil {
					t.Fatalf("expected %s error, got pairs %v", tc.kind, got)
				}
				if k := deployerr.KindOf(err); k != tc.kind {
					t.Fatalf("unexpected error kind: expected=%s, got=%s (%v)", tc.kind, k, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("unexpected pairs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProfileOrder(t *testing.T) {
	testcases := []struct {
		name string
		in   string
		want []string
		kind deployerr.Kind
	}{
		{
			name: "duplicates count once",
			in:   `{"nodes": {"n": {"profilesOrder": ["b", "a", "b"], "profiles": {"a": {"path": "/a"}, "b": {"path": "/b"}, "c": {"path": "/c"}}}}}`,
			want: []string{"b", "a", "c"},
		},
		{
			name: "empty profilesOrder",
			in:   `{"nodes": {"n": {"profilesOrder": [], "profiles": {"z": {"path": "/z"}, "a": {"path": "/a"}}}}}`,
			want: []string{"z", "a"},
		},
		{
			name: "missing entry",
			in:   `{"nodes": {"n": {"profilesOrder": ["a", "ghost"], "profiles": {"a": {"path": "/a"}}}}}`,
			kind: deployerr.Lookup,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			data := mustDecode(t, tc.in)

			got, err := ProfileOrder("n", data.Node("n"))

			if tc.kind != "" {
				if k := deployerr.KindOf(err); k != tc.kind {
					t.Fatalf("unexpected error kind: expected=%s, got=%s (%v)", tc.kind, k, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("unexpected order (-want +got):\n%s", diff)
			}
		})
	}
}

// The selection never contains a pair twice and always lists every profile.
func TestSelectCoversEveryProfileOnce(t *testing.T) {
	data := mustDecode(t, fleet)

	pairs, err := Select(data, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := map[Pair]bool{}
	for _, p := range pairs {
		if seen[p] {
			t.Errorf("pair selected twice: %s", p)
		}
		seen[p] = true
	}

	total := 0
	for _, n := range data.Nodes.Keys() {
		total += data.Node(n).Profiles.Len()
	}

	if len(pairs) != total {
		t.Errorf("unexpected number of pairs: expected=%d, got=%d", total, len(pairs))
	}
}
