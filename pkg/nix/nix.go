// Package nix drives the Nix command line tools: it evaluates the deployment
// description of a repository and builds and copies profiles to targets.
package nix

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/variantdev/deploy/pkg/activate"
	"github.com/variantdev/deploy/pkg/deploycoordinator"
	"github.com/variantdev/deploy/pkg/deploydata"
	"github.com/variantdev/deploy/pkg/deployerr"
	"github.com/variantdev/deploy/pkg/loginfra"
	"github.com/variantdev/deploy/pkg/semver"
	"github.com/variantdev/deploy/pkg/shell"
)

// DefaultMinVersion is the oldest Nix with "nix copy".
const DefaultMinVersion = "2.0.0"

type Nix struct {
	Logger logr.Logger

	sh             *shell.Shell
	minVersion     string
	extraBuildArgs []string
	defaultUser    string

	modern *bool
}

func New(opts ...Option) (*Nix, error) {
	n := &Nix{}

	for _, o := range opts {
		if err := o.SetOption(n); err != nil {
			return nil, err
		}
	}

	if n.Logger.GetSink() == nil {
		n.Logger = loginfra.NewLogger()
	}

	if n.sh == nil {
		n.sh = shell.New()
	}

	if n.minVersion == "" {
		n.minVersion = DefaultMinVersion
	}

	if n.defaultUser == "" {
		u, err := activate.CurrentUser()
		if err != nil {
			return nil, err
		}
		n.defaultUser = u
	}

	return n, nil
}

// SupportsModernInterface reports whether this Nix understands flakes.
// The answer is probed once and remembered.
func (n *Nix) SupportsModernInterface(ctx context.Context) bool {
	if n.modern != nil {
		return *n.modern
	}

	_, err := n.capture(ctx, &shell.Command{Name: "nix", Args: []string{"eval", "--expr", "builtins.getFlake"}})
	modern := err == nil
	n.modern = &modern

	return modern
}

// Version returns the version of the nix binary on PATH.
func (n *Nix) Version(ctx context.Context) (*semver.Version, error) {
	out, err := n.capture(ctx, &shell.Command{Name: "nix", Args: []string{"--version"}})
	if err != nil {
		return nil, err
	}

	return ParseVersion(out)
}

// ParseVersion reads the output of "nix --version", e.g.
// "nix (Nix) 2.4pre20210908_3c56f62".
func ParseVersion(out string) (*semver.Version, error) {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return nil, fmt.Errorf("parsing nix version: empty output")
	}

	v, err := semver.Parse(fields[len(fields)-1])
	if err != nil {
		return nil, fmt.Errorf("parsing nix version %q: %w", out, err)
	}

	return v, nil
}

// CheckVersion fails with a Config error when the installed Nix is older
// than the configured minimum.
func (n *Nix) CheckVersion(ctx context.Context) error {
	min, err := semver.Parse(n.minVersion)
	if err != nil {
		return deployerr.Wrapf(err, deployerr.Config, "invalid minimum nix version %q", n.minVersion)
	}

	v, err := n.Version(ctx)
	if err != nil {
		return deployerr.Wrap(err, deployerr.Config, "checking nix version")
	}

	if v.LessThan(min) {
		return deployerr.Newf(deployerr.Config, "nix %s is older than the required %s", v, min)
	}

	n.Logger.V(1).Info("found nix", "version", v.String())

	return nil
}

func (n *Nix) Evaluate(ctx context.Context, repo string, extraArgs []string) (*deploydata.Data, error) {
	var cmd *shell.Command

	if n.SupportsModernInterface(ctx) {
		cmd = &shell.Command{Name: "nix", Args: []string{"eval", "--json", repo + "#deploy"}}
	} else {
		expr := fmt.Sprintf("let r = import %s/.; in if builtins.isFunction r then (r {}).deploy else r.deploy", repo)
		cmd = &shell.Command{Name: "nix-instantiate", Args: []string{"--strict", "--read-write-mode", "--json", "--eval", "-E", expr}}
	}
	cmd.Args = append(cmd.Args, extraArgs...)

	n.Logger.Info("evaluating deployment data", "repo", repo)

	out, err := n.capture(ctx, cmd)
	if err != nil {
		return nil, deployerr.Wrapf(err, deployerr.Evaluation, "evaluating %s", repo)
	}

	return deploydata.Decode([]byte(out))
}

// Push builds the profile of t and copies the closure to the target host.
func (n *Nix) Push(ctx context.Context, supportsModern, checkSigs bool, repo string, t *deploycoordinator.EffectiveTarget) error {
	defs, err := activate.NewDefs(t, n.defaultUser)
	if err != nil {
		return err
	}

	attr := fmt.Sprintf("deploy.nodes.%q.profiles.%q.path", t.Node, t.Profile)

	var build *shell.Command
	if supportsModern {
		build = &shell.Command{Name: "nix", Args: []string{"build", "--no-link", repo + "#" + attr}}
	} else {
		build = &shell.Command{Name: "nix-build", Args: []string{repo, "-A", attr, "--no-out-link"}}
	}
	build.Args = append(build.Args, n.extraBuildArgs...)

	n.Logger.Info("building profile", "node", t.Node, "profile", t.Profile)

	if _, err := n.capture(ctx, build); err != nil {
		return deployerr.Wrapf(err, deployerr.Push, "building %s", t)
	}

	n.Logger.Info("copying profile", "node", t.Node, "profile", t.Profile, "to", defs.Hostname)

	if _, err := n.capture(ctx, CopyCommand(defs, checkSigs)); err != nil {
		return deployerr.Wrapf(err, deployerr.Push, "copying %s to %s", t, defs.Hostname)
	}

	return nil
}

// CopyCommand copies the store path of d to its host.
func CopyCommand(d *activate.Defs, checkSigs bool) *shell.Command {
	args := []string{"copy"}
	if !checkSigs {
		args = append(args, "--no-check-sigs")
	}
	if !d.FastConnection {
		args = append(args, "--substitute-on-destination")
	}
	args = append(args, "--to", fmt.Sprintf("ssh://%s@%s", d.SSHUser, d.Hostname), d.StorePath)

	return &shell.Command{
		Name: "nix",
		Args: args,
		Env:  map[string]string{"NIX_SSHOPTS": strings.Join(d.SSHOpts, " ")},
	}
}

func (n *Nix) capture(ctx context.Context, cmd *shell.Command) (string, error) {
	n.Logger.V(2).Info("running", "command", cmd.String())

	res, err := n.sh.Capture(ctx, cmd, shell.CaptureOpts{
		LogStderr: func(s string) { n.Logger.V(1).Info(s, "command", cmd.Name) },
	})
	if err != nil {
		var stderr string
		if res != nil {
			stderr = lastLines(res.Stderr, 10)
		}
		return "", fmt.Errorf("running %s: %w\n%s", cmd.String(), err, stderr)
	}

	return res.Stdout, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
