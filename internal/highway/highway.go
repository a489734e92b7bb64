// Package highway implements the OSM road classification hierarchy used to
// pick a single class when several ways collapse into one edge.
package highway

import (
	"fmt"
	"strings"
)

// Class is an OSM highway value. Lower rank means more important.
type Class string

// hierarchy lists classes from most to least important
var hierarchy = []Class{
	"motorway",
	"trunk",
	"primary",
	"secondary",
	"tertiary",
	"unclassified",
	"residential",
	"motorway_link",
	"trunk_link",
	"primary_link",
	"secondary_link",
	"tertiary_link",
	"living_street",
	"service",
	"road",
	"busway",
	"bus_guideway",
	"escape",
	"raceway",
	"track",
	"pedestrian",
	"footway",
	"bridleway",
	"cycleway",
	"path",
	"steps",
	"corridor",
	"elevator",
	"platform",
	"construction",
	"proposed",
	"planned",
	"abandoned",
	"razed",
	"no",
}

var ranks = func() map[Class]int {
	m := make(map[Class]int, len(hierarchy))
	for i, c := range hierarchy {
		m[c] = i + 1
	}
	return m
}()

// Classes returns every known class in hierarchy order
func Classes() []Class {
	return append([]Class(nil), hierarchy...)
}

// Parse validates a single highway value against the hierarchy
func Parse(s string) (Class, error) {
	c := Class(strings.TrimSpace(s))
	if !c.Known() {
		return "", fmt.Errorf("unknown highway tag %q", s)
	}
	return c, nil
}

// Classify accepts any highway value. Values outside the hierarchy are kept
// as they are and rank below every known class.
func Classify(s string) Class {
	return Class(strings.TrimSpace(s))
}

// Known reports whether c is part of the hierarchy
func (c Class) Known() bool {
	_, ok := ranks[c]
	return ok
}

// Rank returns the position of c in the hierarchy, starting at 1. Unknown
// classes share the rank after the last known one.
func (c Class) Rank() int {
	if r, ok := ranks[c]; ok {
		return r
	}
	return len(hierarchy) + 1
}

// Outranks reports whether c is strictly more important than other
func (c Class) Outranks(other Class) bool {
	return c.Rank() < other.Rank()
}

func (c Class) String() string { return string(c) }

// Top returns the highest-ranked class among values, skipping empty
// entries. Each value may itself hold several classes joined by delim.
// Among unknown classes the first one seen wins. ok is false when no class
// was found.
func Top(values []string, delim string) (top Class, ok bool) {
	for _, v := range values {
		for _, part := range strings.Split(v, delim) {
			c := Classify(part)
			if c == "" {
				continue
			}
			if !ok || c.Outranks(top) {
				top, ok = c, true
			}
		}
	}
	return top, ok
}
