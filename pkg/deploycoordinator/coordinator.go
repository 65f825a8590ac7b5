// Package deploycoordinator runs a deployment: it checks the command line
// overrides, evaluates the deployment data, selects the targets and then
// pushes and activates every target in order.
package deploycoordinator

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/variantdev/deploy/pkg/deploydata"
	"github.com/variantdev/deploy/pkg/deployerr"
	"github.com/variantdev/deploy/pkg/flake"
	"github.com/variantdev/deploy/pkg/loginfra"
	"github.com/variantdev/deploy/pkg/overrides"
	"github.com/variantdev/deploy/pkg/settings"
	"github.com/variantdev/deploy/pkg/target"
	"github.com/variantdev/deploy/pkg/telemetry"
)

type Evaluator interface {
	// SupportsModernInterface reports whether the flake-based command line
	// interface of the evaluator is available.
	SupportsModernInterface(ctx context.Context) bool
	Evaluate(ctx context.Context, repo string, extraArgs []string) (*deploydata.Data, error)
}

type Pusher interface {
	Push(ctx context.Context, supportsModern, checkSigs bool, repo string, t *EffectiveTarget) error
}

type Deployer interface {
	Deploy(ctx context.Context, t *EffectiveTarget) error
}

// EffectiveTarget is a node/profile pair with its final settings.
type EffectiveTarget struct {
	Node    string
	Profile string
	// Settings is the merged record with the command line overrides applied.
	Settings settings.Record
	Payload  *deploydata.Profile
}

func (t *EffectiveTarget) String() string {
	return t.Node + "." + t.Profile
}

// NewEffectiveTarget resolves the settings of one pair against data.
func NewEffectiveTarget(data *deploydata.Data, p target.Pair, o overrides.CmdOverrides) (*EffectiveTarget, error) {
	node := data.Node(p.Node)
	if node == nil {
		return nil, deployerr.Newf(deployerr.Lookup, "no such node: %s", p.Node)
	}

	profile := node.Profile(p.Profile)
	if profile == nil {
		return nil, deployerr.Newf(deployerr.Lookup, "no such profile %q on node %s", p.Profile, p.Node)
	}

	merged := settings.Resolve(data.Settings, node.Settings, profile.Settings)

	final, err := o.Apply(merged)
	if err != nil {
		return nil, deployerr.Wrapf(err, deployerr.Config, "applying overrides to %s", p)
	}

	return &EffectiveTarget{
		Node:     p.Node,
		Profile:  p.Profile,
		Settings: final,
		Payload:  profile,
	}, nil
}

type Request struct {
	Target    flake.Target
	Overrides overrides.CmdOverrides
	CheckSigs bool
	// ExtraArgs are passed to the evaluator as is.
	ExtraArgs []string
}

// Plan is the input of the push and deploy phases.
type Plan struct {
	Repo           string
	SupportsModern bool
	CheckSigs      bool
	Data           *deploydata.Data
	Pairs          []target.Pair
	Overrides      overrides.CmdOverrides
}

type Coordinator struct {
	Logger logr.Logger

	evaluator Evaluator
	pusher    Pusher
	deployer  Deployer

	recorder telemetry.Recorder
	runID    string
	now      func() time.Time
}

func New(ev Evaluator, p Pusher, d Deployer, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		evaluator: ev,
		pusher:    p,
		deployer:  d,
	}

	for _, o := range opts {
		if err := o.SetOption(c); err != nil {
			return nil, err
		}
	}

	if c.Logger.GetSink() == nil {
		c.Logger = loginfra.NewLogger()
	}

	if c.recorder == nil {
		c.recorder = telemetry.Nop{}
	}

	if c.runID == "" {
		c.runID = uuid.NewString()
	}

	if c.now == nil {
		c.now = time.Now
	}

	c.Logger = c.Logger.WithValues("run", c.runID)

	return c, nil
}

func (c *Coordinator) RunID() string {
	return c.runID
}

// Deploy runs the whole pipeline for one command line invocation.
// Overrides are checked before the evaluator is consulted.
func (c *Coordinator) Deploy(ctx context.Context, req Request) error {
	purity := req.Overrides.Purity()

	warn, err := overrides.Validate(purity, req.Target.Node, req.Target.Profile)
	if err != nil {
		return err
	}
	if warn {
		c.Logger.Info("WARNING: overrides were given without a target node, they will apply to every node", "purity", purity.String())
	}

	supportsModern := c.evaluator.SupportsModernInterface(ctx)
	c.Logger.V(1).Info("probed evaluator", "modern", supportsModern)

	start := c.now()
	data, err := c.evaluator.Evaluate(ctx, req.Target.Repo, req.ExtraArgs)
	c.recorder.Observe(telemetry.PhaseEvaluate, "", "", start, c.now(), err)
	if err != nil {
		return ensureKind(err, deployerr.Evaluation, "evaluating "+req.Target.Repo)
	}

	pairs, err := target.Select(data, req.Target.Node, req.Target.Profile)
	if err != nil {
		return err
	}

	c.Logger.V(1).Info("selected targets", "count", len(pairs))

	return c.Run(ctx, &Plan{
		Repo:           req.Target.Repo,
		SupportsModern: supportsModern,
		CheckSigs:      req.CheckSigs,
		Data:           data,
		Pairs:          pairs,
		Overrides:      req.Overrides,
	})
}

// Run pushes every target and, once all pushes succeeded, deploys them in the
// same order. The first failure stops the run.
func (c *Coordinator) Run(ctx context.Context, plan *Plan) error {
	targets := make([]*EffectiveTarget, 0, len(plan.Pairs))

	for _, p := range plan.Pairs {
		if err := ctx.Err(); err != nil {
			return err
		}

		t, err := NewEffectiveTarget(plan.Data, p, plan.Overrides)
		if err != nil {
			return err
		}

		targets = append(targets, t)

		c.Logger.Info("pushing profile", "node", t.Node, "profile", t.Profile)

		err = c.step(telemetry.PhasePush, t, func() error {
			return c.pusher.Push(ctx, plan.SupportsModern, plan.CheckSigs, plan.Repo, t)
		})
		if err != nil {
			return ensureKind(err, deployerr.Push, "pushing "+t.String())
		}
	}

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.Logger.Info("activating profile", "node", t.Node, "profile", t.Profile)

		err := c.step(telemetry.PhaseDeploy, t, func() error {
			return c.deployer.Deploy(ctx, t)
		})
		if err != nil {
			return ensureKind(err, deployerr.Deploy, "deploying "+t.String())
		}
	}

	return nil
}

func (c *Coordinator) step(phase string, t *EffectiveTarget, f func() error) error {
	start := c.now()
	err := f()
	end := c.now()

	c.recorder.Observe(phase, t.Node, t.Profile, start, end, err)
	c.Logger.V(1).Info("finished "+phase, "node", t.Node, "profile", t.Profile, "duration", end.Sub(start).String())

	return err
}

// ensureKind keeps errors that already carry a kind and wraps the others.
func ensureKind(err error, kind deployerr.Kind, msg string) error {
	if deployerr.KindOf(err) != "" {
		return err
	}
	return deployerr.Wrap(err, kind, msg)
}
