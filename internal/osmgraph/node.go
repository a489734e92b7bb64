package osmgraph

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeID is an OSM node identifier
type NodeID int64

// WayID is an OSM way identifier
type WayID int64

// ValueDelimiter joins aggregated tag values inside the graph. It does not
// collide with ';', which OSM itself uses inside tag values.
const ValueDelimiter = "#"

// Status is the lifecycle state of a node record
type Status uint8

const (
	Active Status = iota
	Retired
)

func (s Status) String() string {
	if s == Retired {
		return "retired"
	}
	return "active"
}

// Node is a node record. Lon/Lat are kept in single precision, matching the
// resolution of OSM coordinates.
type Node struct {
	ID       NodeID
	Lon      float32
	Lat      float32
	Highway  string
	Ele      string
	Junction string
	Railway  string
	Ref      string

	// ConsolidatedIDs lists every original node absorbed into this one.
	// Only set on merge survivors.
	ConsolidatedIDs []NodeID

	Status       Status
	SupersededBy NodeID
}

// Clone returns a deep copy
func (n *Node) Clone() *Node {
	c := *n
	if n.ConsolidatedIDs != nil {
		c.ConsolidatedIDs = append([]NodeID(nil), n.ConsolidatedIDs...)
	}
	return &c
}

// IsActive reports whether the node is still part of the live topology
func (n *Node) IsActive() bool {
	return n.Status == Active
}

// Elevation returns the mean of the (possibly aggregated) ele values in meters.
// "ele:ft" style values carrying a "ft" suffix are converted.
func (n *Node) Elevation() (float64, bool) {
	if n.Ele == "" {
		return 0, false
	}
	var sum float64
	var count int
	for _, raw := range strings.Split(n.Ele, ValueDelimiter) {
		v, ok := parseElevation(raw)
		if !ok {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

func parseElevation(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	factor := 1.0
	switch {
	case strings.HasSuffix(s, "ft"):
		s = strings.TrimSpace(strings.TrimSuffix(s, "ft"))
		factor = 0.3048
	case strings.HasSuffix(s, "m"):
		s = strings.TrimSpace(strings.TrimSuffix(s, "m"))
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v * factor, true
}

func (n *Node) String() string {
	return fmt.Sprintf("Node(%d %s @ %f,%f)", n.ID, n.Status, n.Lon, n.Lat)
}
