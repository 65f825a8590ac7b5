package nix

import (
	"github.com/go-logr/logr"
	"github.com/variantdev/deploy/pkg/shell"
)

type Option interface {
	SetOption(n *Nix) error
}

func Logger(logger logr.Logger) Option {
	return &loggerOption{l: logger}
}

type loggerOption struct {
	l logr.Logger
}

func (s *loggerOption) SetOption(n *Nix) error {
	n.Logger = s.l
	return nil
}

func Exec(e shell.Exec) Option {
	return &execOption{e: e}
}

type execOption struct {
	e shell.Exec
}

func (s *execOption) SetOption(n *Nix) error {
	n.sh = &shell.Shell{Exec: s.e}
	return nil
}

func MinVersion(v string) Option {
	return &minVersionOption{v: v}
}

type minVersionOption struct {
	v string
}

func (s *minVersionOption) SetOption(n *Nix) error {
	n.minVersion = s.v
	return nil
}

// ExtraBuildArgs are appended to every build command.
func ExtraBuildArgs(args []string) Option {
	return &extraBuildArgsOption{args: args}
}

type extraBuildArgsOption struct {
	args []string
}

func (s *extraBuildArgsOption) SetOption(n *Nix) error {
	n.extraBuildArgs = append([]string{}, s.args...)
	return nil
}

func DefaultUser(u string) Option {
	return &defaultUserOption{u: u}
}

type defaultUserOption struct {
	u string
}

func (s *defaultUserOption) SetOption(n *Nix) error {
	n.defaultUser = s.u
	return nil
}
