// Package deployerr defines the error kinds a deployment run can fail with.
//
// Every error is fatal to the invocation. Callers inspect the kind with
// KindOf or errors.Is against a template created by New.
package deployerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// Parse means the flake reference given on the command line is malformed.
	Parse Kind = "PARSE"
	// Lookup means a named node or profile does not exist in the deployment data.
	Lookup Kind = "LOOKUP"
	// Config means the combination of inputs is not supported.
	Config Kind = "CONFIG"
	// Purity means a command line override is unsafe for the selected scope.
	Purity Kind = "PURITY"
	// Evaluation means the build description could not be evaluated or decoded.
	Evaluation Kind = "EVALUATION"
	Push       Kind = "PUSH"
	Deploy     Kind = "DEPLOY"
)

type Reason string

const (
	NodeRequired    Reason = "NODE_REQUIRED"
	ProfileRequired Reason = "PROFILE_REQUIRED"
)

type Error struct {
	Kind   Kind
	Reason Reason
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. A target with a
// reason only matches errors carrying that reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns nil when err is nil.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Wrapf(err error, kind Kind, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// WithReason returns a copy of e carrying the given reason.
func (e *Error) WithReason(r Reason) *Error {
	c := *e
	c.Reason = r
	return &c
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" if
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
