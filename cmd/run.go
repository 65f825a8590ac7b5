package cmd

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/variantdev/deploy/pkg/activate"
	"github.com/variantdev/deploy/pkg/config"
	"github.com/variantdev/deploy/pkg/deploycoordinator"
	"github.com/variantdev/deploy/pkg/flake"
	"github.com/variantdev/deploy/pkg/nix"
	"github.com/variantdev/deploy/pkg/overrides"
	"github.com/variantdev/deploy/pkg/remote"
	"github.com/variantdev/deploy/pkg/shell"
	"github.com/variantdev/deploy/pkg/telemetry"
)

// Run wires the real evaluator, pusher and deployer and runs one deployment.
func Run(ctx context.Context, log logr.Logger, o *Options) error {
	t, err := flake.Parse(o.Flake)
	if err != nil {
		return err
	}

	// Unsafe overrides are rejected before any external tool is run.
	if _, err := overrides.Validate(o.Overrides.Purity(), t.Node, t.Profile); err != nil {
		return err
	}

	conf, err := loadConfig(o)
	if err != nil {
		return err
	}

	extraArgs := append(append([]string{}, conf.ExtraBuildArgs...), o.ExtraArgs...)

	user, err := activate.CurrentUser()
	if err != nil {
		return err
	}

	sh := shell.New()

	n, err := nix.New(
		nix.Logger(log.WithName("nix")),
		nix.MinVersion(conf.Nix.MinVersion),
		nix.ExtraBuildArgs(extraArgs),
		nix.DefaultUser(user),
	)
	if err != nil {
		return err
	}

	if err := n.CheckVersion(ctx); err != nil {
		return err
	}

	var runner remote.Runner
	switch conf.SSHTransport {
	case config.TransportNative:
		runner = remote.NewNativeRunner(log.WithName("ssh"), conf.KnownHostsFile)
	default:
		runner = remote.NewExecRunner(sh, log.WithName("ssh"))
	}

	d, err := activate.New(runner, activate.Logger(log.WithName("activate")), activate.DefaultUser(user))
	if err != nil {
		return err
	}

	runID := uuid.NewString()

	var recorder telemetry.Recorder = telemetry.Nop{}

	if conf.Metrics.Pushgateway != "" {
		m := telemetry.NewDeployMetrics(runID)
		recorder = m

		defer func() {
			if err := m.Push(conf.Metrics.Pushgateway, conf.Metrics.Job); err != nil {
				log.Error(err, "pushing metrics")
			}
		}()
	}

	c, err := deploycoordinator.New(n, n, d,
		deploycoordinator.Logger(log),
		deploycoordinator.Recorder(recorder),
		deploycoordinator.RunID(runID),
	)
	if err != nil {
		return err
	}

	log.V(1).Info("starting deployment", "run", c.RunID(), "target", t.String())

	return c.Deploy(ctx, deploycoordinator.Request{
		Target:    t,
		Overrides: o.Overrides,
		CheckSigs: conf.CheckSigs,
		ExtraArgs: extraArgs,
	})
}

// loadConfig reads the config file and applies the flags that override it.
func loadConfig(o *Options) (*config.Config, error) {
	conf, err := config.Load(config.Path(o.ConfigFile))
	if err != nil {
		return nil, err
	}

	if o.CheckSigs != nil {
		conf.CheckSigs = *o.CheckSigs
	}
	if o.SSHTransport != "" {
		conf.SSHTransport = o.SSHTransport
	}
	if o.Pushgateway != "" {
		conf.Metrics.Pushgateway = o.Pushgateway
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return conf, nil
}
