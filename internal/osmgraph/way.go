package osmgraph

import (
	"fmt"
	"strings"
)

// TagKeys is the whitelist of way tags retained from the input. Anything
// else is discarded at read time.
var TagKeys = []string{
	"access", "area", "bridge", "est_width", "highway", "sidewalk", "footway",
	"junction", "landuse", "lanes", "maxspeed", "name", "oneway", "ref",
	"service", "tunnel", "width",
}

// NodeTagKeys is the whitelist of node tags retained from the input
var NodeTagKeys = []string{"highway", "ele", "junction", "railway", "ref"}

// Tags holds the whitelisted way attributes. Empty string means absent.
type Tags struct {
	Access   string
	Area     string
	Bridge   string
	EstWidth string
	Highway  string
	Sidewalk string
	Footway  string
	Junction string
	Landuse  string
	Lanes    string
	Maxspeed string
	Name     string
	Oneway   string
	Ref      string
	Service  string
	Tunnel   string
	Width    string
}

func (t *Tags) field(key string) *string {
	switch key {
	case "access":
		return &t.Access
	case "area":
		return &t.Area
	case "bridge":
		return &t.Bridge
	case "est_width":
		return &t.EstWidth
	case "highway":
		return &t.Highway
	case "sidewalk":
		return &t.Sidewalk
	case "footway":
		return &t.Footway
	case "junction":
		return &t.Junction
	case "landuse":
		return &t.Landuse
	case "lanes":
		return &t.Lanes
	case "maxspeed":
		return &t.Maxspeed
	case "name":
		return &t.Name
	case "oneway":
		return &t.Oneway
	case "ref":
		return &t.Ref
	case "service":
		return &t.Service
	case "tunnel":
		return &t.Tunnel
	case "width":
		return &t.Width
	}
	return nil
}

// Get returns the value stored under a whitelisted key
func (t *Tags) Get(key string) (string, error) {
	p := t.field(key)
	if p == nil {
		return "", Errorf(KindInternal, "unknown way field %q", key)
	}
	return *p, nil
}

// Set stores a trimmed value under key. It returns false for keys outside
// the whitelist.
func (t *Tags) Set(key, value string) bool {
	p := t.field(key)
	if p == nil {
		return false
	}
	*p = strings.TrimSpace(value)
	return true
}

// Map returns the non-empty tags as a map
func (t *Tags) Map() map[string]string {
	m := make(map[string]string, len(TagKeys))
	for _, k := range TagKeys {
		if v := *t.field(k); v != "" {
			m[k] = v
		}
	}
	return m
}

// Way is a way record. Nodes never contain consecutive duplicates.
type Way struct {
	ID    WayID
	Nodes []NodeID
	Tags  Tags

	// WayIDs lists the original ways this record aggregates. Empty unless
	// the record was produced by simplification or edge collapsing.
	WayIDs []WayID
}

// NewWay creates a way, dropping consecutive duplicate node references
func NewWay(id WayID, nodes []NodeID, tags Tags) *Way {
	return &Way{ID: id, Nodes: DedupeConsecutive(nodes), Tags: tags}
}

// Clone returns a deep copy
func (w *Way) Clone() *Way {
	c := *w
	c.Nodes = append([]NodeID(nil), w.Nodes...)
	if w.WayIDs != nil {
		c.WayIDs = append([]WayID(nil), w.WayIDs...)
	}
	return &c
}

// Constituents returns the original way IDs this record stands for
func (w *Way) Constituents() []WayID {
	if len(w.WayIDs) == 0 {
		return []WayID{w.ID}
	}
	return w.WayIDs
}

// IsOneway follows the OSM oneway conventions; roundabouts are implied one-way.
func (w *Way) IsOneway() bool {
	switch w.Tags.Oneway {
	case "yes", "true", "1", "-1", "reverse", "T", "F":
		return true
	}
	return w.Tags.Junction == "roundabout"
}

// IsReversed reports a one-way way whose travel direction runs against the
// order of its nodes.
func (w *Way) IsReversed() bool {
	switch w.Tags.Oneway {
	case "-1", "reverse", "T":
		return true
	}
	return false
}

// Reversed returns a copy with the node order flipped
func (w *Way) Reversed() *Way {
	c := w.Clone()
	for i, j := 0, len(c.Nodes)-1; i < j; i, j = i+1, j-1 {
		c.Nodes[i], c.Nodes[j] = c.Nodes[j], c.Nodes[i]
	}
	return c
}

// SubPath returns the node run from the first occurrence of src through the
// first occurrence of dst after it.
func (w *Way) SubPath(src, dst NodeID) ([]NodeID, bool) {
	return ExtractBetween(src, dst, w.Nodes)
}

func (w *Way) String() string {
	return fmt.Sprintf("Way(%d highway=%s nodes=%d)", w.ID, w.Tags.Highway, len(w.Nodes))
}

// ExtractBetween returns nodes[i..=j] where i is the first index of src and
// j the first index of dst at or after i.
func ExtractBetween(src, dst NodeID, nodes []NodeID) ([]NodeID, bool) {
	start := -1
	for i, n := range nodes {
		if n == src {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, false
	}
	for j := start; j < len(nodes); j++ {
		if nodes[j] == dst {
			return nodes[start : j+1], true
		}
	}
	return nil, false
}

// DedupeConsecutive drops repeated adjacent IDs
func DedupeConsecutive(nodes []NodeID) []NodeID {
	out := make([]NodeID, 0, len(nodes))
	for i, n := range nodes {
		if i > 0 && nodes[i-1] == n {
			continue
		}
		out = append(out, n)
	}
	return out
}
