package settings

import (
	"fmt"

	"github.com/imdario/mergo"
)

// Record holds the connection and activation settings that can be given at
// the global, node and profile level. A nil field is unset. An empty SSHOpts
// list is treated as unset.
type Record struct {
	SSHUser        *string  `yaml:"sshUser,omitempty" json:"sshUser,omitempty"`
	User           *string  `yaml:"user,omitempty" json:"user,omitempty"`
	SSHOpts        []string `yaml:"sshOpts,omitempty" json:"sshOpts,omitempty"`
	FastConnection *bool    `yaml:"fastConnection,omitempty" json:"fastConnection,omitempty"`
	AutoRollback   *bool    `yaml:"autoRollback,omitempty" json:"autoRollback,omitempty"`
	Hostname       *string  `yaml:"hostname,omitempty" json:"hostname,omitempty"`
}

// Resolve merges the three layers into one record.
//
// The merge fills unset fields only, in the order global, node, profile.
// A field set at the global level therefore wins over the same field set on
// a node or profile, and a node value wins over a profile value. This is the
// opposite of "most specific wins" and is relied upon by existing fleets.
func Resolve(global, node, profile Record) Record {
	merged := global
	fill(&merged, node)
	fill(&merged, profile)
	return merged
}

// fill copies every field of src into dst that is unset in dst. Pointers
// are compared by nil-ness only, so an explicit false or "" counts as set.
func fill(dst *Record, src Record) {
	if err := mergo.Merge(dst, src, mergo.WithoutDereference); err != nil {
		// Merge only fails on mismatched argument types.
		panic(fmt.Sprintf("settings: merging records: %v", err))
	}
}

func String(s string) *string { return &s }

func Bool(b bool) *bool { return &b }

// StringValue returns the pointed-to value or def when p is nil.
func StringValue(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func BoolValue(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
