package shell

import (
	"context"
	"io"
	"strings"
)

type Command struct {
	Name           string
	Args           []string
	Stdout, Stderr io.Writer
	Stdin          io.Reader
	// Env is added to the environment inherited from the current process.
	Env map[string]string

	// Dir is the working directory of this command
	Dir string
}

// String renders the command line for logging. Arguments are not quoted.
func (c *Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

type Exec func(context.Context, *Command) Result

type Result struct {
	ExitStatus int
	Error      error
}
