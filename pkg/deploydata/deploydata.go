// Package deploydata holds the deployment description produced by the
// evaluator and decodes it from its JSON wire format.
//
// Node and profile order follows the order of keys in the document.
package deploydata

import (
	"fmt"

	"github.com/PaesslerAG/jsonpath"
	"github.com/variantdev/deploy/pkg/settings"
)

type Data struct {
	Settings settings.Record
	Nodes    Map[*Node]
}

type Node struct {
	Settings      settings.Record
	Profiles      Map[*Profile]
	ProfilesOrder []string
}

type Profile struct {
	Settings settings.Record
	// Payload is the whole profile object as decoded. It is passed through
	// to the push and activation steps untouched.
	Payload map[string]interface{}
}

// Node returns the named node or nil.
func (d *Data) Node(name string) *Node {
	n, _ := d.Nodes.Get(name)
	return n
}

func (n *Node) Profile(name string) *Profile {
	p, _ := n.Profiles.Get(name)
	return p
}

// StringField reads a top-level string member of the payload.
// ok is false when the member is absent or is not a string.
func (p *Profile) StringField(name string) (v string, ok bool) {
	if p == nil || p.Payload == nil {
		return "", false
	}

	r, err := jsonpath.Get(fmt.Sprintf("$[%q]", name), p.Payload)
	if err != nil {
		return "", false
	}

	v, ok = r.(string)

	return v, ok
}
