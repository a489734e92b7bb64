// Package attr parses OSM tag values and reduces aggregated tag values
// into the single values written to output tables.
package attr

import (
	"math"
	"strconv"
	"strings"

	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

const (
	// MphToKph converts miles per hour to kilometres per hour
	MphToKph = 1.609344

	// WalkSpeedKph is the speed assigned to maxspeed=walk
	WalkSpeedKph = 5.0
)

// placeholders are maxspeed values OSM mappers use for "no posted limit"
var placeholders = map[string]struct{}{
	"unposted": {},
	"unknown":  {},
	"default":  {},
	"variable": {},
	"national": {},
	"none":     {},
	"signals":  {},
}

var unitFactors = map[string]float64{
	"kph":  1,
	"km/h": 1,
	"kmh":  1,
	"mph":  MphToKph,
}

// ParseSpeed normalises a maxspeed value to kph. Multiple entries
// separated by ',' or ';' resolve to their minimum. ok is false when the
// value carries no usable speed. With ignoreInvalid set, malformed entries
// are treated as absent instead of returning an error.
func ParseSpeed(s string, ignoreInvalid bool) (kph float64, ok bool, err error) {
	entries := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	if len(entries) == 0 {
		return 0, false, nil
	}
	kph = math.Inf(1)
	for _, e := range entries {
		v, found, err := parseSpeedEntry(strings.TrimSpace(e), ignoreInvalid)
		if err != nil {
			return 0, false, err
		}
		if found && v < kph {
			kph, ok = v, true
		}
	}
	if !ok {
		return 0, false, nil
	}
	return kph, true, nil
}

func parseSpeedEntry(entry string, ignoreInvalid bool) (float64, bool, error) {
	if entry == "" {
		return 0, false, nil
	}
	if _, skip := placeholders[entry]; skip {
		return 0, false, nil
	}
	if entry == "walk" {
		return WalkSpeedKph, true, nil
	}

	fields := strings.Fields(entry)
	var num, unit string
	switch len(fields) {
	case 1:
		num, unit = splitUnitSuffix(fields[0])
	case 2:
		num, unit = fields[0], fields[1]
	default:
		return invalid(ignoreInvalid, "unexpected maxspeed entry %q", entry)
	}

	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return invalid(ignoreInvalid, "speed value %q not a valid number", num)
	}
	if v == 0 {
		return 0, false, nil
	}
	factor := 1.0
	if unit != "" {
		f, known := unitFactors[unit]
		if !known {
			return invalid(ignoreInvalid, "unknown speed unit %q with value %v", unit, v)
		}
		factor = f
	}
	return v * factor, true, nil
}

// splitUnitSuffix separates values like "25mph" into number and unit
func splitUnitSuffix(s string) (string, string) {
	for unit := range unitFactors {
		if strings.HasSuffix(s, unit) && len(s) > len(unit) {
			return s[:len(s)-len(unit)], unit
		}
	}
	return s, ""
}

func invalid(ignore bool, format string, args ...any) (float64, bool, error) {
	if ignore {
		return 0, false, nil
	}
	return 0, false, osmgraph.Errorf(osmgraph.KindMalformedInput, format, args...)
}

// ParseMeasure parses a width-like value in meters. Feet ("ft" suffix or a
// trailing ') are converted.
func ParseMeasure(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	factor := 1.0
	switch {
	case strings.HasSuffix(s, "ft"):
		s, factor = strings.TrimSuffix(s, "ft"), 0.3048
	case strings.HasSuffix(s, "'"):
		s, factor = strings.TrimSuffix(s, "'"), 0.3048
	case strings.HasSuffix(s, "m"):
		s = strings.TrimSuffix(s, "m")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v * factor, true
}
