// Package truncate removes parts of the graph: small disconnected
// components and everything outside the study extent.
package truncate

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

// FilterKind selects which weakly connected components survive
type FilterKind string

const (
	Largest FilterKind = "largest"
	TopK    FilterKind = "top_k"
	LeastK  FilterKind = "least_k"
	KeepAll FilterKind = "keep_all"
)

// ComponentFilter keeps components by size
type ComponentFilter struct {
	Kind FilterKind `yaml:"type" toml:"type" json:"type"`
	K    int        `yaml:"k,omitempty" toml:"k,omitempty" json:"k,omitempty"`
}

func (f ComponentFilter) String() string {
	switch f.Kind {
	case TopK:
		return fmt.Sprintf("top-%d", f.K)
	case LeastK:
		return fmt.Sprintf("least-%d", f.K)
	case KeepAll:
		return "keep all"
	default:
		return "largest"
	}
}

// ParseComponentFilter reads "largest", "keep_all", "top_k:<n>" or
// "least_k:<n>".
func ParseComponentFilter(s string) (ComponentFilter, error) {
	name, arg, hasArg := strings.Cut(strings.TrimSpace(s), ":")
	f := ComponentFilter{Kind: FilterKind(name)}
	switch f.Kind {
	case "", Largest:
		f.Kind = Largest
	case KeepAll:
	case TopK, LeastK:
		if !hasArg {
			return f, osmgraph.Errorf(osmgraph.KindConfiguration, "component filter %q needs a count, e.g. %s:3", s, name)
		}
		k, err := strconv.Atoi(arg)
		if err != nil {
			return f, osmgraph.Wrap(osmgraph.KindConfiguration, err, "component filter %q", s)
		}
		f.K = k
	default:
		return f, osmgraph.Errorf(osmgraph.KindConfiguration, "unknown component filter %q", s)
	}
	return f, f.Validate()
}

// Validate checks the count of top_k and least_k filters
func (f ComponentFilter) Validate() error {
	if (f.Kind == TopK || f.Kind == LeastK) && f.K < 1 {
		return osmgraph.Errorf(osmgraph.KindConfiguration, "component filter %s needs k >= 1, got %d", f.Kind, f.K)
	}
	return nil
}

// Assign returns the components kept by the filter, in their input order.
// Ties in size go to the component that comes first.
func (f ComponentFilter) Assign(components [][]osmgraph.NodeID) [][]osmgraph.NodeID {
	var k int
	switch f.Kind {
	case KeepAll:
		return components
	case TopK, LeastK:
		k = f.K
	default:
		k = 1
	}
	if k >= len(components) {
		return components
	}

	order := make([]int, len(components))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		c := cmp.Compare(len(components[b]), len(components[a]))
		if f.Kind == LeastK {
			c = -c
		}
		return c
	})
	keep := order[:k]
	slices.Sort(keep)

	out := make([][]osmgraph.NodeID, 0, k)
	for _, i := range keep {
		out = append(out, components[i])
	}
	return out
}

// FilterResult summarises a component filter pass
type FilterResult struct {
	Components   int
	Kept         int
	Disconnected int
}

// FilterComponents disconnects every node outside the components the
// filter keeps.
func FilterComponents(g *osmgraph.Graph, f ComponentFilter) (FilterResult, error) {
	var res FilterResult
	components, err := g.WeaklyConnectedComponents()
	if err != nil {
		return res, err
	}
	kept := f.Assign(components)
	res.Components = len(components)
	res.Kept = len(kept)

	keep := make(map[osmgraph.NodeID]struct{})
	for _, c := range kept {
		for _, id := range c {
			keep[id] = struct{}{}
		}
	}
	for _, id := range g.ConnectedNodeIDs() {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := g.DisconnectNode(id, false); err != nil {
			return res, err
		}
		res.Disconnected++
	}
	return res, nil
}
