// Package activate switches a target's profile to the pushed build and runs
// its activation script, rolling back on failure when asked to.
package activate

import (
	"context"
	"strings"

	"github.com/go-logr/logr"
	"github.com/kballard/go-shellquote"
	"github.com/variantdev/deploy/pkg/deploycoordinator"
	"github.com/variantdev/deploy/pkg/deployerr"
	"github.com/variantdev/deploy/pkg/loginfra"
	"github.com/variantdev/deploy/pkg/remote"
)

// ActivateScript is the executable every profile ships at its root.
const ActivateScript = "deploy-rs-activate"

type Deployer struct {
	Logger logr.Logger

	runner      remote.Runner
	defaultUser string
}

type Option interface {
	SetOption(d *Deployer) error
}

func Logger(logger logr.Logger) Option {
	return &loggerOption{l: logger}
}

type loggerOption struct {
	l logr.Logger
}

func (s *loggerOption) SetOption(d *Deployer) error {
	d.Logger = s.l
	return nil
}

// DefaultUser sets the SSH user used when no level of the deployment data
// sets one. It defaults to the current user.
func DefaultUser(u string) Option {
	return &defaultUserOption{u: u}
}

type defaultUserOption struct {
	u string
}

func (s *defaultUserOption) SetOption(d *Deployer) error {
	d.defaultUser = s.u
	return nil
}

func New(r remote.Runner, opts ...Option) (*Deployer, error) {
	d := &Deployer{runner: r}

	for _, o := range opts {
		if err := o.SetOption(d); err != nil {
			return nil, err
		}
	}

	if d.Logger.GetSink() == nil {
		d.Logger = loginfra.NewLogger()
	}

	if d.defaultUser == "" {
		u, err := CurrentUser()
		if err != nil {
			return nil, err
		}
		d.defaultUser = u
	}

	return d, nil
}

func (d *Deployer) Deploy(ctx context.Context, t *deploycoordinator.EffectiveTarget) error {
	defs, err := NewDefs(t, d.defaultUser)
	if err != nil {
		return err
	}

	h := remote.Host{User: defs.SSHUser, Hostname: defs.Hostname, Opts: defs.SSHOpts}
	log := d.Logger.WithValues("node", t.Node, "profile", t.Profile)

	log.V(1).Info("activating", "path", defs.StorePath, "profilePath", defs.ProfilePath, "user", defs.ProfileUser)

	// A failed switch leaves the running generation in place, so there is
	// nothing to roll back.
	if _, err := d.runner.Run(ctx, h, SetCommand(defs)); err != nil {
		return deployerr.Wrapf(err, deployerr.Deploy, "switching profile of %s on %s", t, defs.Hostname)
	}

	out, err := d.runner.Run(ctx, h, ActivateCommand(defs))
	if err == nil {
		if out != "" {
			log.V(1).Info(out)
		}
		log.Info("activation succeeded")
		return nil
	}

	if !defs.AutoRollback {
		return deployerr.Wrapf(err, deployerr.Deploy, "activating %s on %s", t, defs.Hostname)
	}

	log.Info("activation failed, rolling back to the previous generation", "error", err.Error())

	if _, rerr := d.runner.Run(ctx, h, RollbackCommand(defs)); rerr != nil {
		return deployerr.Wrapf(err, deployerr.Deploy, "activating %s on %s (rollback failed too: %v)", t, defs.Hostname, rerr)
	}

	return deployerr.Wrapf(err, deployerr.Deploy, "activating %s on %s, rolled back", t, defs.Hostname)
}

// SetCommand points the profile at the new build, creating a generation.
func SetCommand(d *Defs) string {
	return command(d, "nix-env", "-p", d.ProfilePath, "--set", d.StorePath)
}

// ActivateCommand runs the activation script of the profile's current
// generation.
func ActivateCommand(d *Defs) string {
	return command(d, d.ProfilePath+"/"+ActivateScript)
}

// RollbackCommand switches the profile back one generation and activates it.
func RollbackCommand(d *Defs) string {
	return strings.Join([]string{
		command(d, "nix-env", "-p", d.ProfilePath, "--rollback"),
		ActivateCommand(d),
	}, " && ")
}

func command(d *Defs, args ...string) string {
	return shellquote.Join(append(append([]string{}, d.SudoCmd...), args...)...)
}
