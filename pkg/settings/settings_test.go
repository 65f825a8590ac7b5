package settings

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolve(t *testing.T) {
	testcases := []struct {
		name                  string
		global, node, profile Record
		want                  Record
	}{
		{
			name: "empty",
		},
		{
			name:    "global wins over node and profile",
			global:  Record{SSHUser: String("deploy")},
			node:    Record{SSHUser: String("admin")},
			profile: Record{SSHUser: String("root")},
			want:    Record{SSHUser: String("deploy")},
		},
		{
			name:    "node wins over profile",
			node:    Record{User: String("alice")},
			profile: Record{User: String("bob")},
			want:    Record{User: String("alice")},
		},
		{
			name:    "profile fills what is unset above",
			global:  Record{SSHUser: String("deploy")},
			node:    Record{Hostname: String("web-1.example.com")},
			profile: Record{AutoRollback: Bool(true), SSHOpts: []string{"-p", "2222"}},
			want: Record{
				SSHUser:      String("deploy"),
				Hostname:     String("web-1.example.com"),
				AutoRollback: Bool(true),
				SSHOpts:      []string{"-p", "2222"},
			},
		},
		{
			name:    "explicit false at global is kept",
			global:  Record{FastConnection: Bool(false), AutoRollback: Bool(false)},
			node:    Record{FastConnection: Bool(true)},
			profile: Record{AutoRollback: Bool(true)},
			want:    Record{FastConnection: Bool(false), AutoRollback: Bool(false)},
		},
		{
			name:    "explicit empty string at node is kept",
			node:    Record{User: String("")},
			profile: Record{User: String("bob")},
			want:    Record{User: String("")},
		},
		{
			name:    "ssh options are not concatenated",
			global:  Record{SSHOpts: []string{"-A"}},
			node:    Record{SSHOpts: []string{"-p", "2222"}},
			want:    Record{SSHOpts: []string{"-A"}},
		},
		{
			name:    "empty ssh options count as unset",
			global:  Record{SSHOpts: []string{}},
			profile: Record{SSHOpts: []string{"-p", "2222"}},
			want:    Record{SSHOpts: []string{"-p", "2222"}},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(tc.global, tc.node, tc.profile)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("unexpected record (-want +got):\n%s", diff)
			}
		})
	}
}

// Every combination of set/unset over the three layers must keep the global
// value whenever one is set.
func TestResolveNeverOverridesGlobal(t *testing.T) {
	values := []*bool{nil, Bool(false), Bool(true)}

	for _, g := range values {
		for _, n := range values {
			for _, p := range values {
				got := Resolve(Record{AutoRollback: g}, Record{AutoRollback: n}, Record{AutoRollback: p})

				var want *bool
				switch {
				case g != nil:
					want = g
				case n != nil:
					want = n
				default:
					want = p
				}

				if !cmp.Equal(want, got.AutoRollback) {
					t.Errorf("global=%v node=%v profile=%v: expected %v, got %v", show(g), show(n), show(p), show(want), show(got.AutoRollback))
				}
			}
		}
	}
}

func TestResolveDoesNotMutateInputs(t *testing.T) {
	f := false
	global := Record{FastConnection: &f}
	node := Record{FastConnection: Bool(true), SSHUser: String("admin")}

	Resolve(global, node, Record{})

	if f {
		t.Errorf("global value was overwritten through its pointer")
	}
	if global.SSHUser != nil {
		t.Errorf("global record was modified: %+v", global)
	}
}

func show(b *bool) string {
	if b == nil {
		return "unset"
	}
	if *b {
		return "true"
	}
	return "false"
}
