// Package remote runs commands on deployment targets over SSH.
package remote

import (
	"context"
)

type Host struct {
	User     string
	Hostname string
	// Opts are ssh(1) command line options.
	Opts []string
}

// Destination renders the host in user@hostname form.
func (h Host) Destination() string {
	if h.User == "" {
		return h.Hostname
	}
	return h.User + "@" + h.Hostname
}

// Runner runs a shell command line on a host and returns its standard output.
type Runner interface {
	Run(ctx context.Context, h Host, command string) (string, error)
}
