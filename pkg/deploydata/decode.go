package deploydata

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/variantdev/deploy/pkg/deployerr"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	})
	return schema, schemaErr
}

// Decode validates the evaluator output and decodes it.
// Every failure is an Evaluation error.
func Decode(bs []byte) (*Data, error) {
	if err := Validate(bs); err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(bs, &doc); err != nil {
		return nil, deployerr.Wrap(err, deployerr.Evaluation, "parsing deployment data")
	}

	d, err := decodeData(&doc)
	if err != nil {
		return nil, deployerr.Wrap(err, deployerr.Evaluation, "decoding deployment data")
	}

	return d, nil
}

// Validate checks bs against the deployment data schema.
func Validate(bs []byte) error {
	s, err := loadSchema()
	if err != nil {
		return deployerr.Wrap(err, deployerr.Evaluation, "loading deployment data schema")
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(bs))
	if err != nil {
		return deployerr.Wrap(err, deployerr.Evaluation, "validating deployment data")
	}

	if result.Valid() {
		return nil
	}

	var msgs []string
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}

	return deployerr.Newf(deployerr.Evaluation, "invalid deployment data: %s", strings.Join(msgs, "; "))
}

func decodeData(doc *yaml.Node) (*Data, error) {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}

	d := &Data{}

	if err := root.Decode(&d.Settings); err != nil {
		return nil, fmt.Errorf("global settings: %w", err)
	}

	nodes, err := member(root, "nodes")
	if err != nil {
		return nil, err
	}

	err = eachPair(nodes, func(name string, v *yaml.Node) error {
		n, err := decodeNode(v)
		if err != nil {
			return fmt.Errorf("node %q: %w", name, err)
		}
		d.Nodes.Set(name, n)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return d, nil
}

func decodeNode(v *yaml.Node) (*Node, error) {
	n := &Node{}

	if err := v.Decode(&n.Settings); err != nil {
		return nil, err
	}

	order, err := member(v, "profilesOrder")
	if err != nil {
		return nil, err
	}
	if order != nil {
		if err := order.Decode(&n.ProfilesOrder); err != nil {
			return nil, fmt.Errorf("profilesOrder: %w", err)
		}
	}

	profiles, err := member(v, "profiles")
	if err != nil {
		return nil, err
	}

	err = eachPair(profiles, func(name string, pv *yaml.Node) error {
		p := &Profile{}
		if err := pv.Decode(&p.Settings); err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
		if err := pv.Decode(&p.Payload); err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
		n.Profiles.Set(name, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return n, nil
}

// member returns the value of key in the mapping m, or nil if absent.
func member(m *yaml.Node, key string) (*yaml.Node, error) {
	var found *yaml.Node

	err := eachPair(m, func(k string, v *yaml.Node) error {
		if k == key {
			found = v
		}
		return nil
	})

	return found, err
}

// eachPair calls f for every key/value pair of the mapping m in document
// order. A nil m has no pairs.
func eachPair(m *yaml.Node, f func(string, *yaml.Node) error) error {
	if m == nil {
		return nil
	}
	if m.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected an object", m.Line)
	}

	seen := map[string]bool{}

	for i := 0; i+1 < len(m.Content); i += 2 {
		k := m.Content[i].Value
		if seen[k] {
			return fmt.Errorf("line %d: duplicate key %q", m.Content[i].Line, k)
		}
		seen[k] = true

		if err := f(k, m.Content[i+1]); err != nil {
			return err
		}
	}

	return nil
}
