package overrides

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/variantdev/deploy/pkg/deployerr"
	"github.com/variantdev/deploy/pkg/settings"
)

// CmdOverrides are settings forced from the command line. They take
// precedence over every layer of the deployment data for the fields they
// set.
type CmdOverrides struct {
	SSHUser        *string  `json:"sshUser,omitempty"`
	ProfileUser    *string  `json:"user,omitempty"`
	SSHOpts        []string `json:"sshOpts,omitempty"`
	FastConnection *bool    `json:"fastConnection,omitempty"`
	AutoRollback   *bool    `json:"autoRollback,omitempty"`
	Hostname       *string  `json:"hostname,omitempty"`
}

type Purity int

const (
	Pure Purity = iota
	// Warn overrides are safe to apply to many nodes but worth a warning.
	Warn
	// Error overrides identify a single machine and need an explicit node.
	Error
	// ErrorProfile overrides identify a single profile and need an explicit profile.
	ErrorProfile
)

func (p Purity) String() string {
	switch p {
	case Pure:
		return "pure"
	case Warn:
		return "warn"
	case Error:
		return "error"
	case ErrorProfile:
		return "error-profile"
	}
	return fmt.Sprintf("purity(%d)", int(p))
}

// Purity classifies the overrides by the narrowest scope they are safe for.
func (o CmdOverrides) Purity() Purity {
	if o.ProfileUser != nil {
		return ErrorProfile
	}
	if o.Hostname != nil || o.SSHUser != nil {
		return Error
	}
	if o.SSHOpts != nil || o.FastConnection != nil || o.AutoRollback != nil {
		return Warn
	}
	return Pure
}

func (o CmdOverrides) IsEmpty() bool {
	return o.SSHUser == nil && o.ProfileUser == nil && o.SSHOpts == nil &&
		o.FastConnection == nil && o.AutoRollback == nil && o.Hostname == nil
}

// Validate checks purity against the scope selected on the command line.
// warn is true when the run may proceed but the caller should warn the user.
func Validate(purity Purity, node, profile string) (warn bool, err error) {
	switch {
	case purity == ErrorProfile && profile == "":
		return false, deployerr.New(deployerr.Purity,
			"you have specified an override not suitable for deploying to multiple profiles, please specify your target profile explicitly").
			WithReason(deployerr.ProfileRequired)
	case purity == Error && node == "":
		return false, deployerr.New(deployerr.Purity,
			"you have specified an override not suitable for deploying to multiple nodes, please specify your target node explicitly").
			WithReason(deployerr.NodeRequired)
	case purity == Warn && node == "":
		return true, nil
	}
	return false, nil
}

// Apply returns r with every field set in o replaced by the override value.
// The overrides are applied as a JSON merge patch, so unset overrides leave
// the record untouched.
func (o CmdOverrides) Apply(r settings.Record) (settings.Record, error) {
	if o.IsEmpty() {
		return r, nil
	}

	doc, err := json.Marshal(r)
	if err != nil {
		return r, fmt.Errorf("marshalling settings: %w", err)
	}

	patch, err := o.mergePatch()
	if err != nil {
		return r, fmt.Errorf("marshalling overrides: %w", err)
	}

	patched, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return r, fmt.Errorf("applying overrides: %w", err)
	}

	var out settings.Record
	if err := json.Unmarshal(patched, &out); err != nil {
		return r, fmt.Errorf("unmarshalling patched settings: %w", err)
	}

	return out, nil
}

// mergePatch renders o as a merge patch document. An explicitly empty list of
// SSH options is kept so that it clears the options coming from the data.
func (o CmdOverrides) mergePatch() ([]byte, error) {
	bs, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	if o.SSHOpts == nil || len(o.SSHOpts) > 0 {
		return bs, nil
	}

	m := map[string]interface{}{}
	if err := json.Unmarshal(bs, &m); err != nil {
		return nil, err
	}
	m["sshOpts"] = []string{}

	return json.Marshal(m)
}
