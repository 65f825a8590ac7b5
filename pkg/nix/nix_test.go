package nix

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/google/go-cmp/cmp"
	"github.com/kylelemons/godebug/diff"
	"github.com/variantdev/deploy/pkg/deploycoordinator"
	"github.com/variantdev/deploy/pkg/deploydata"
	"github.com/variantdev/deploy/pkg/deployerr"
	"github.com/variantdev/deploy/pkg/settings"
	"github.com/variantdev/deploy/pkg/shell"
)

const deployJSON = `{"sshUser":"root","nodes":{"web":{"hostname":"web.example.com","profiles":{"system":{"path":"/nix/store/abc-system"}}}}}`

var (
	probe      = shell.NewFakeInput("nix", []string{"eval", "--expr", "builtins.getFlake"}, nil)
	legacyExpr = "let r = import ./fleet/.; in if builtins.isFunction r then (r {}).deploy else r.deploy"
)

func newNix(t *testing.T, fake *shell.Fake, opts ...Option) *Nix {
	t.Helper()

	opts = append([]Option{Logger(testr.New(t)), Exec(fake.Exec), DefaultUser("alice")}, opts...)

	n, err := New(opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return n
}

func TestEvaluateModern(t *testing.T) {
	fake := &shell.Fake{
		Expectations: map[shell.FakeInput]shell.FakeOutput{
			probe: {Stdout: "<PRIMOP>\n"},
			shell.NewFakeInput("nix", []string{"eval", "--json", ".#deploy", "--impure"}, nil): {Stdout: deployJSON + "\n"},
		},
	}

	n := newNix(t, fake)

	if !n.SupportsModernInterface(context.Background()) {
		t.Fatal("expected flakes to be supported")
	}

	d, err := n.Evaluate(context.Background(), ".", []string{"--impure"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"web"}, d.Nodes.Keys()); diff != "" {
		t.Errorf("unexpected nodes (-want +got):\n%s", diff)
	}

	if len(fake.Calls) != 2 {
		t.Errorf("expected the probe to run once, got calls %v", fake.Calls)
	}
}

func TestEvaluateLegacy(t *testing.T) {
	fake := &shell.Fake{
		Expectations: map[shell.FakeInput]shell.FakeOutput{
			probe: {Stderr: "error: unrecognised flag '--expr'", ExitStatus: 1},
			shell.NewFakeInput("nix-instantiate", []string{"--strict", "--read-write-mode", "--json", "--eval", "-E", legacyExpr}, nil): {
				Stdout: deployJSON,
			},
		},
	}

	n := newNix(t, fake)

	d, err := n.Evaluate(context.Background(), "./fleet", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.Node("web") == nil {
		t.Error("node web not decoded")
	}
}

func TestEvaluateErrors(t *testing.T) {
	testcases := []struct {
		name string
		out  shell.FakeOutput
	}{
		{name: "command fails", out: shell.FakeOutput{Stderr: "error: attribute 'deploy' missing", ExitStatus: 1}},
		{name: "invalid payload", out: shell.FakeOutput{Stdout: `{"nodes": 3}`}},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &shell.Fake{
				Expectations: map[shell.FakeInput]shell.FakeOutput{
					probe: {},
					shell.NewFakeInput("nix", []string{"eval", "--json", ".#deploy"}, nil): tc.out,
				},
			}

			_, err := newNix(t, fake).Evaluate(context.Background(), ".", nil)
			if k := deployerr.KindOf(err); k != deployerr.Evaluation {
				t.Fatalf("unexpected error kind: expected=%s, got=%s (%v)", deployerr.Evaluation, k, err)
			}
		})
	}
}

func target(s settings.Record) *deploycoordinator.EffectiveTarget {
	return &deploycoordinator.EffectiveTarget{
		Node:     "web",
		Profile:  "system",
		Settings: s,
		Payload:  &deploydata.Profile{Payload: map[string]interface{}{"path": "/nix/store/abc-system"}},
	}
}

func TestPush(t *testing.T) {
	attr := `deploy.nodes."web".profiles."system".path`

	testcases := []struct {
		name      string
		modern    bool
		checkSigs bool
		s         settings.Record
		calls     []shell.FakeInput
	}{
		{
			name:   "flakes",
			modern: true,
			s:      settings.Record{SSHUser: settings.String("root"), Hostname: settings.String("web.example.com"), SSHOpts: []string{"-p", "2222"}},
			calls: []shell.FakeInput{
				shell.NewFakeInput("nix", []string{"build", "--no-link", ".#" + attr, "--option", "cores", "2"}, nil),
				shell.NewFakeInput("nix", []string{"copy", "--no-check-sigs", "--substitute-on-destination", "--to", "ssh://root@web.example.com", "/nix/store/abc-system"},
					map[string]string{"NIX_SSHOPTS": "-p 2222"}),
			},
		},
		{
			name:      "legacy with signatures over a fast connection",
			checkSigs: true,
			s:         settings.Record{Hostname: settings.String("web.example.com"), FastConnection: settings.Bool(true)},
			calls: []shell.FakeInput{
				shell.NewFakeInput("nix-build", []string{".", "-A", attr, "--no-out-link", "--option", "cores", "2"}, nil),
				shell.NewFakeInput("nix", []string{"copy", "--to", "ssh://alice@web.example.com", "/nix/store/abc-system"},
					map[string]string{"NIX_SSHOPTS": ""}),
			},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			expectations := map[shell.FakeInput]shell.FakeOutput{}
			for _, c := range tc.calls {
				expectations[c] = shell.FakeOutput{}
			}
			fake := &shell.Fake{Expectations: expectations}

			n := newNix(t, fake, ExtraBuildArgs([]string{"--option", "cores", "2"}))

			if err := n.Push(context.Background(), tc.modern, tc.checkSigs, ".", target(tc.s)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(tc.calls, fake.Calls); diff != "" {
				t.Errorf("unexpected calls (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPushFailure(t *testing.T) {
	fake := &shell.Fake{Expectations: map[shell.FakeInput]shell.FakeOutput{}}

	n := newNix(t, fake)

	err := n.Push(context.Background(), true, false, ".", target(settings.Record{Hostname: settings.String("web")}))
	if k := deployerr.KindOf(err); k != deployerr.Push {
		t.Fatalf("unexpected error kind: expected=%s, got=%s (%v)", deployerr.Push, k, err)
	}

	if len(fake.Calls) != 1 {
		t.Errorf("expected to stop after the failed build, got calls %v", fake.Calls)
	}
}

func TestCheckVersion(t *testing.T) {
	testcases := []struct {
		out  string
		min  string
		fail bool
	}{
		{out: "nix (Nix) 2.3.16", min: "2.0.0"},
		{out: "nix (Nix) 2.4pre20210908_3c56f62", min: "2.0.0"},
		{out: "nix (Nix) 1.11.16", min: "2.0.0", fail: true},
		{out: "nix (Nix) 2.3.16", min: "2.4.0", fail: true},
	}

	for _, tc := range testcases {
		fake := &shell.Fake{
			Expectations: map[shell.FakeInput]shell.FakeOutput{
				shell.NewFakeInput("nix", []string{"--version"}, nil): {Stdout: tc.out + "\n"},
			},
		}

		err := newNix(t, fake, MinVersion(tc.min)).CheckVersion(context.Background())
		if tc.fail {
			if k := deployerr.KindOf(err); k != deployerr.Config {
				t.Errorf("%s >= %s: unexpected error kind: expected=%s, got=%s (%v)", tc.out, tc.min, deployerr.Config, k, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s >= %s: unexpected error: %v", tc.out, tc.min, err)
		}
	}
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("nix (Lix, like Nix) 2.90.0\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.String() != "2.90.0" {
		t.Errorf("unexpected version: expected=2.90.0, got=%s", v)
	}

	if _, err := ParseVersion(""); err == nil {
		t.Error("expected error for empty output")
	}
}

func TestLastLines(t *testing.T) {
	var in []string
	for i := 1; i <= 12; i++ {
		in = append(in, fmt.Sprintf("line %d", i))
	}

	expected := strings.Join(in[2:], "\n")
	actual := lastLines(strings.Join(in, "\n")+"\n\n", 10)
	if d := diff.Diff(expected, actual); d != "" {
		t.Errorf("unexpected tail:\n%s", d)
	}

	if actual := lastLines("only\n", 10); actual != "only" {
		t.Errorf("unexpected tail: expected=only, got=%q", actual)
	}
}
