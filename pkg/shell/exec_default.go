package shell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"syscall"
)

// DefaultExec runs the command as a child process. Cancelling ctx kills it.
func DefaultExec(ctx context.Context, c *Command) Result {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Env = environ(c.Env)
	cmd.Dir = c.Dir
	if c.Stdin != nil {
		cmd.Stdin = c.Stdin
	}
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}
	if c.Stderr != nil {
		cmd.Stderr = c.Stderr
	}
	if err := cmd.Start(); err != nil {
		return Result{ExitStatus: 1, Error: err}
	}
	if err := cmd.Wait(); err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			waitStatus := exitError.Sys().(syscall.WaitStatus)
			return Result{ExitStatus: waitStatus.ExitStatus(), Error: exitError}
		} else {
			return Result{ExitStatus: 1, Error: err}
		}
	}
	waitStatus := cmd.ProcessState.Sys().(syscall.WaitStatus)
	return Result{ExitStatus: waitStatus.ExitStatus(), Error: nil}
}

func environ(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil
	}

	env := os.Environ()

	names := make([]string, 0, len(extra))
	for n := range extra {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		env = append(env, fmt.Sprintf("%s=%s", n, extra[n]))
	}

	return env
}
