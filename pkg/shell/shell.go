package shell

import (
	"context"
)

type Shell struct {
	Exec Exec
}

func New() *Shell {
	return &Shell{Exec: DefaultExec}
}

// Wait runs the command and wait until it returns
func (s *Shell) Wait(ctx context.Context, cmd *Command) Result {
	return s.Exec(ctx, cmd)
}
