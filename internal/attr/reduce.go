package attr

import (
	"strings"

	"github.com/wegman-software/osm2graph-go/internal/highway"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

// OutputDelimiter joins multi-valued fields in output tables
const OutputDelimiter = ";"

// Split breaks an aggregated value on the internal delimiter, dropping
// empty parts.
func Split(value string) []string {
	var out []string
	for _, p := range strings.Split(value, osmgraph.ValueDelimiter) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinDistinct joins the distinct non-empty values in first-seen order.
// Values that are themselves aggregates are flattened first.
func JoinDistinct(values []string, delim string) string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		for _, p := range Split(v) {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return strings.Join(out, delim)
}

// Unique rewrites an aggregated categorical value for output
func Unique(value string) string {
	return JoinDistinct([]string{value}, OutputDelimiter)
}

// MinMeasure returns the smallest parseable measure in an aggregated value
func MinMeasure(value string) (float64, bool) {
	return foldMeasure(value, func(a, b float64) bool { return a < b })
}

// MaxMeasure returns the largest parseable measure in an aggregated value
func MaxMeasure(value string) (float64, bool) {
	return foldMeasure(value, func(a, b float64) bool { return a > b })
}

func foldMeasure(value string, better func(a, b float64) bool) (float64, bool) {
	var best float64
	var ok bool
	for _, p := range Split(value) {
		v, parsed := ParseMeasure(p)
		if !parsed {
			continue
		}
		if !ok || better(v, best) {
			best, ok = v, true
		}
	}
	return best, ok
}

// MinSpeed returns the minimum normalised speed in kph across an
// aggregated maxspeed value. Chains and parallel edges both use it.
func MinSpeed(value string, ignoreInvalid bool) (float64, bool, error) {
	var best float64
	var ok bool
	for _, p := range Split(value) {
		v, found, err := ParseSpeed(p, ignoreInvalid)
		if err != nil {
			return 0, false, err
		}
		if found && (!ok || v < best) {
			best, ok = v, true
		}
	}
	return best, ok, nil
}

// TopHighway returns the single highest-ranked class in an aggregated
// highway value. ok is false when the way carries no highway tag.
func TopHighway(value string) (highway.Class, bool) {
	return highway.Top([]string{value}, osmgraph.ValueDelimiter)
}
