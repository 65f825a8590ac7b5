// Package target expands a command line selection into the ordered list of
// node/profile pairs to deploy.
package target

import (
	"github.com/variantdev/deploy/pkg/deploydata"
	"github.com/variantdev/deploy/pkg/deployerr"
)

type Pair struct {
	Node    string
	Profile string
}

func (p Pair) String() string {
	return p.Node + "." + p.Profile
}

// Select returns the pairs to deploy for the given node and profile names.
// Empty names mean "not given".
func Select(data *deploydata.Data, node, profile string) ([]Pair, error) {
	switch {
	case node == "" && profile != "":
		return nil, deployerr.Newf(deployerr.Config, "profile %q was given without a node", profile)
	case node != "" && profile != "":
		n := data.Node(node)
		if n == nil {
			return nil, deployerr.Newf(deployerr.Lookup, "no such node: %s", node)
		}
		if !n.Profiles.Has(profile) {
			return nil, deployerr.Newf(deployerr.Lookup, "no such profile %q on node %s", profile, node)
		}
		return []Pair{{Node: node, Profile: profile}}, nil
	case node != "":
		n := data.Node(node)
		if n == nil {
			return nil, deployerr.Newf(deployerr.Lookup, "no such node: %s", node)
		}
		return expand(node, n)
	}

	var pairs []Pair

	for _, name := range data.Nodes.Keys() {
		ps, err := expand(name, data.Node(name))
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, ps...)
	}

	return pairs, nil
}

func expand(name string, n *deploydata.Node) ([]Pair, error) {
	order, err := ProfileOrder(name, n)
	if err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, len(order))
	for _, p := range order {
		pairs = append(pairs, Pair{Node: name, Profile: p})
	}

	return pairs, nil
}

// ProfileOrder returns the profiles of n in deployment order: the
// profilesOrder entries first, then every other profile in document order.
// Repeated profilesOrder entries count once. An entry naming a profile the
// node does not have is a Lookup error.
func ProfileOrder(name string, n *deploydata.Node) ([]string, error) {
	seen := map[string]bool{}

	var order []string

	for _, p := range n.ProfilesOrder {
		if seen[p] {
			continue
		}
		if !n.Profiles.Has(p) {
			return nil, deployerr.Newf(deployerr.Lookup, "profilesOrder of node %s lists unknown profile %q", name, p)
		}
		seen[p] = true
		order = append(order, p)
	}

	for _, p := range n.Profiles.Keys() {
		if !seen[p] {
			order = append(order, p)
		}
	}

	return order, nil
}
