package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/variantdev/deploy/pkg/shell"
)

// ExecRunner runs commands through the ssh binary, so the user's ssh
// configuration and every ssh option apply.
type ExecRunner struct {
	Logger logr.Logger
	Shell  *shell.Shell
}

func NewExecRunner(sh *shell.Shell, logger logr.Logger) *ExecRunner {
	return &ExecRunner{Logger: logger, Shell: sh}
}

func (r *ExecRunner) Run(ctx context.Context, h Host, command string) (string, error) {
	args := append(append([]string{}, h.Opts...), h.Destination(), command)

	cmd := &shell.Command{Name: "ssh", Args: args}

	r.Logger.V(2).Info("running", "command", cmd.String())

	res, err := r.Shell.Capture(ctx, cmd, shell.CaptureOpts{
		LogStdout: func(s string) { r.Logger.V(1).Info(s, "host", h.Hostname) },
		LogStderr: func(s string) { r.Logger.V(1).Info(s, "host", h.Hostname, "stream", "stderr") },
	})
	if err != nil {
		var stderr string
		if res != nil {
			stderr = strings.TrimSpace(res.Stderr)
		}
		return "", fmt.Errorf("running %q on %s: %w: %s", command, h.Destination(), err, stderr)
	}

	return res.Stdout, nil
}
