package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
	"github.com/variantdev/deploy/pkg/deployerr"
	"github.com/variantdev/deploy/pkg/loginfra"
	"github.com/variantdev/deploy/pkg/overrides"
	"github.com/variantdev/deploy/pkg/settings"
)

// Options is everything taken from the command line.
type Options struct {
	Flake     string
	ExtraArgs []string
	Overrides overrides.CmdOverrides

	// CheckSigs is nil unless the flag was given.
	CheckSigs    *bool
	ConfigFile   string
	SSHTransport string
	Pushgateway  string
}

type RunFunc func(ctx context.Context, log logr.Logger, o *Options) error

func Execute() {
	goFlags, err := loginfra.Init()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := loginfra.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd := New(log, goFlags, Run)

	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		log.Error(err, "deployment failed", "kind", string(deployerr.KindOf(err)))
		os.Exit(1)
	}

	stop()
}

func New(log logr.Logger, goFlags *flag.FlagSet, run RunFunc) *cobra.Command {
	var (
		checkSigs      bool
		sshUser        string
		profileUser    string
		sshOpts        string
		fastConnection bool
		autoRollback   bool
		hostname       string
	)

	o := &Options{}

	cmd := &cobra.Command{
		Use:   "deploy [flake] [-- extra build args...]",
		Short: "Deploy Nix profiles to a fleet of machines",
		Long: `Deploy evaluates the deployment description of a flake and pushes and
activates the selected profiles.

The flake reference is REPO, REPO#NODE or REPO#NODE.PROFILE and defaults to ".".
Arguments after -- are passed to nix as is.`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			positional, extra := args, []string(nil)
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				positional, extra = args[:dash], args[dash:]
			}
			if len(positional) > 1 {
				return deployerr.Newf(deployerr.Parse, "unexpected arguments %q: pass extra build arguments after --", positional[1:])
			}

			o.Flake = "."
			if len(positional) == 1 {
				o.Flake = positional[0]
			}
			if len(extra) > 0 {
				o.ExtraArgs = extra
			}

			fs := cmd.Flags()

			if fs.Changed("checksigs") {
				o.CheckSigs = &checkSigs
			}
			if fs.Changed("ssh-user") {
				o.Overrides.SSHUser = settings.String(sshUser)
			}
			if fs.Changed("profile-user") {
				o.Overrides.ProfileUser = settings.String(profileUser)
			}
			if fs.Changed("ssh-opts") {
				opts, err := shellquote.Split(sshOpts)
				if err != nil {
					return deployerr.Wrap(err, deployerr.Parse, "parsing --ssh-opts")
				}
				if opts == nil {
					opts = []string{}
				}
				o.Overrides.SSHOpts = opts
			}
			if fs.Changed("fast-connection") {
				o.Overrides.FastConnection = settings.Bool(fastConnection)
			}
			if fs.Changed("auto-rollback") {
				o.Overrides.AutoRollback = settings.Bool(autoRollback)
			}
			if fs.Changed("hostname") {
				o.Overrides.Hostname = settings.String(hostname)
			}

			return run(cmd.Context(), log, o)
		},
	}

	fs := cmd.Flags()

	fs.BoolVarP(&checkSigs, "checksigs", "c", false, "Check signatures when copying to the target")
	fs.StringVar(&sshUser, "ssh-user", "", "Override the user to connect as")
	fs.StringVar(&profileUser, "profile-user", "", "Override the user owning the profile")
	fs.StringVar(&sshOpts, "ssh-opts", "", "Override the ssh options, split like a shell would")
	fs.BoolVar(&fastConnection, "fast-connection", false, "Override whether to copy everything from here instead of substituting on the target")
	fs.BoolVar(&autoRollback, "auto-rollback", false, "Override whether to roll back when activation fails")
	fs.StringVar(&hostname, "hostname", "", "Override the hostname to deploy to")

	fs.StringVar(&o.ConfigFile, "config", "", "Config file (default: ./deploy.yaml when present)")
	fs.StringVar(&o.SSHTransport, "ssh-transport", "", "How to reach targets: exec (the ssh binary) or native")
	fs.StringVar(&o.Pushgateway, "metrics-pushgateway", "", "Push run metrics to this Prometheus pushgateway")

	if goFlags != nil {
		// Hand parsing of klog flags to pflags and cobra
		fs.AddGoFlagSet(goFlags)
	}

	return cmd
}
