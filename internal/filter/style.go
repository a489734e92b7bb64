package filter

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

// Rules filters ways by tag keys and values.
//
//	require_any: [highway]
//	include:
//	  highway: [primary, secondary, residential]
//	exclude:
//	  access: [private]
//	  area: []
type Rules struct {
	// Include lists accepted values per key; an empty list accepts any value.
	// When set, at least one entry must match.
	Include map[string][]string `yaml:"include,omitempty"`
	// Exclude rejects a way when any entry matches. Applied after include.
	Exclude map[string][]string `yaml:"exclude,omitempty"`
	// RequireAny needs at least one of these keys present
	RequireAny []string `yaml:"require_any,omitempty"`
}

// LoadRules reads style rules from a YAML file
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, osmgraph.Wrap(osmgraph.KindConfiguration, err, "failed to read style file")
	}
	return ParseRules(data)
}

// ParseRules decodes style rules from YAML
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, osmgraph.Wrap(osmgraph.KindConfiguration, err, "failed to parse style YAML")
	}
	return &r, nil
}

// AcceptWay implements Filter
func (r *Rules) AcceptWay(_ int64, tags map[string]string) (bool, error) {
	return r.Match(tags), nil
}

// Close implements Filter
func (r *Rules) Close() error { return nil }

// Match checks tags against the rules
func (r *Rules) Match(tags map[string]string) bool {
	if len(r.RequireAny) > 0 {
		found := false
		for _, key := range r.RequireAny {
			if _, ok := tags[key]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(r.Include) > 0 {
		matched := false
		for key, values := range r.Include {
			if v, ok := tags[key]; ok && valueMatches(values, v) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for key, values := range r.Exclude {
		if v, ok := tags[key]; ok && valueMatches(values, v) {
			return false
		}
	}
	return true
}

// valueMatches treats an empty list or "*" as a wildcard
func valueMatches(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	for _, want := range values {
		if want == v || want == "*" {
			return true
		}
	}
	return false
}
