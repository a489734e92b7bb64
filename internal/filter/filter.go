// Package filter decides which OSM ways enter the graph. Nodes are never
// filtered here; they are dropped later when no accepted way uses them.
package filter

import (
	"fmt"
	"strings"

	"github.com/wegman-software/osm2graph-go/internal/highway"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

// Type names an element filter
type Type string

const (
	NoFilter    Type = "no_filter"
	AllPublic   Type = "all_public"
	HighwayTags Type = "highway_tags"
	Style       Type = "style"
	Lua         Type = "lua"
)

// Config selects and parameterises an element filter
type Config struct {
	Type Type `yaml:"type" toml:"type"`
	// Tags lists the accepted highway classes for highway_tags
	Tags []string `yaml:"tags,omitempty" toml:"tags,omitempty"`
	// Path is the rules file for style or the script for lua
	Path string `yaml:"path,omitempty" toml:"path,omitempty"`
}

// Filter accepts or rejects a way by its raw tags
type Filter interface {
	AcceptWay(id int64, tags map[string]string) (bool, error)
	Close() error
}

// New builds the filter named by cfg
func New(cfg Config) (Filter, error) {
	switch cfg.Type {
	case "", NoFilter:
		return acceptAll{}, nil
	case AllPublic:
		return allPublic{}, nil
	case HighwayTags:
		return NewHighwayTags(cfg.Tags)
	case Style:
		if cfg.Path == "" {
			return nil, osmgraph.Errorf(osmgraph.KindConfiguration, "style filter needs a rules file path")
		}
		return LoadRules(cfg.Path)
	case Lua:
		if cfg.Path == "" {
			return nil, osmgraph.Errorf(osmgraph.KindConfiguration, "lua filter needs a script path")
		}
		return LoadScript(cfg.Path)
	default:
		return nil, osmgraph.Errorf(osmgraph.KindConfiguration, "unknown element filter %q", cfg.Type)
	}
}

type acceptAll struct{}

func (acceptAll) AcceptWay(int64, map[string]string) (bool, error) { return true, nil }
func (acceptAll) Close() error                                      { return nil }

// notInUse holds highway values rejected by all_public
var notInUse = map[string]struct{}{
	"abandoned":    {},
	"construction": {},
	"no":           {},
	"planned":      {},
	"platform":     {},
	"proposed":     {},
	"raceway":      {},
	"razed":        {},
}

// allPublic mirrors the OSMnx all_public network filter
type allPublic struct{}

func (allPublic) AcceptWay(_ int64, tags map[string]string) (bool, error) {
	hw, ok := tags["highway"]
	if !ok {
		return false, nil
	}
	if _, err := highway.Parse(hw); err != nil {
		return false, nil
	}
	if _, ok := notInUse[hw]; ok {
		return false, nil
	}
	if tags["area"] == "yes" || tags["access"] == "private" || tags["service"] == "private" {
		return false, nil
	}
	return true, nil
}

func (allPublic) Close() error { return nil }

type highwayTags struct {
	accept map[highway.Class]struct{}
}

// NewHighwayTags accepts ways whose highway tag is one of classes
func NewHighwayTags(classes []string) (Filter, error) {
	if len(classes) == 0 {
		return nil, osmgraph.Errorf(osmgraph.KindConfiguration, "highway_tags filter needs at least one class")
	}
	f := highwayTags{accept: make(map[highway.Class]struct{}, len(classes))}
	for _, s := range classes {
		c, err := highway.Parse(s)
		if err != nil {
			return nil, osmgraph.Wrap(osmgraph.KindConfiguration, err, "highway_tags filter")
		}
		f.accept[c] = struct{}{}
	}
	return f, nil
}

func (f highwayTags) AcceptWay(_ int64, tags map[string]string) (bool, error) {
	c, err := highway.Parse(tags["highway"])
	if err != nil {
		return false, nil
	}
	_, ok := f.accept[c]
	return ok, nil
}

func (highwayTags) Close() error { return nil }

func (f highwayTags) String() string {
	names := make([]string, 0, len(f.accept))
	for _, c := range highway.Classes() {
		if _, ok := f.accept[c]; ok {
			names = append(names, string(c))
		}
	}
	return fmt.Sprintf("highway_tags[%s]", strings.Join(names, ","))
}
