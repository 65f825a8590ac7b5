package shell

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
)

type FakeInput struct {
	Name string
	Args string
	Env  string
}

type FakeOutput struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}

func NewFakeInput(name string, args []string, env map[string]string) FakeInput {
	envs := []string{}
	for k, v := range env {
		envs = append(envs, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(envs)
	input := FakeInput{
		Name: name,
		Args: strings.Join(args, ","),
		Env:  strings.Join(envs, ","),
	}
	return input
}

// Fake answers commands from a fixed set of expectations and records every
// command it was asked to run.
type Fake struct {
	Expectations map[FakeInput]FakeOutput
	Calls        []FakeInput
}

func NewFake(expectations map[FakeInput]FakeOutput) Exec {
	f := &Fake{Expectations: expectations}
	return f.Exec
}

func (f *Fake) Exec(ctx context.Context, cmd *Command) Result {
	input := NewFakeInput(cmd.Name, cmd.Args, cmd.Env)
	f.Calls = append(f.Calls, input)

	if err := ctx.Err(); err != nil {
		return Result{ExitStatus: 1, Error: err}
	}

	output, ok := f.Expectations[input]
	if !ok {
		err := fmt.Errorf("unexpected input: %v", input)
		return Result{ExitStatus: 1, Error: err}
	}

	if err := writeAll(cmd.Stdout, output.Stdout); err != nil {
		return Result{ExitStatus: 1, Error: fmt.Errorf("writing stdout: %w", err)}
	}

	if err := writeAll(cmd.Stderr, output.Stderr); err != nil {
		return Result{ExitStatus: 1, Error: fmt.Errorf("writing stderr: %w", err)}
	}

	if output.ExitStatus != 0 {
		return Result{ExitStatus: output.ExitStatus, Error: fmt.Errorf("exit status %d", output.ExitStatus)}
	}

	return Result{ExitStatus: 0, Error: nil}
}

func writeAll(w io.Writer, s string) error {
	if w == nil || s == "" {
		return nil
	}

	n, err := io.WriteString(w, s)
	if err != nil {
		return err
	}

	if n != len(s) {
		return fmt.Errorf("insufficient write: wrote only %d of %d", n, len(s))
	}

	return nil
}
