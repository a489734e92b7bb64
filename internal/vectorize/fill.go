package vectorize

import (
	"slices"

	"github.com/wegman-software/osm2graph-go/internal/highway"
)

// FillLookup holds length-weighted average maxspeeds per highway class,
// used to fill edges without an explicit maxspeed.
type FillLookup struct {
	byClass   map[highway.Class]float64
	global    float64
	hasGlobal bool
}

// NewFillLookup averages the explicit maxspeed of edges per class,
// weighting each edge by its length.
func NewFillLookup(edges []Edge) *FillLookup {
	type sum struct{ num, den float64 }
	buckets := make(map[highway.Class]*sum)
	var total sum
	for _, e := range edges {
		if !e.HasMaxspeed || e.LengthMeters <= 0 {
			continue
		}
		total.num += e.MaxspeedKph * e.LengthMeters
		total.den += e.LengthMeters
		// class-less edges only feed the global average
		if e.Highway == "" {
			continue
		}
		b, ok := buckets[e.Highway]
		if !ok {
			b = &sum{}
			buckets[e.Highway] = b
		}
		b.num += e.MaxspeedKph * e.LengthMeters
		b.den += e.LengthMeters
	}

	f := &FillLookup{byClass: make(map[highway.Class]float64, len(buckets))}
	for c, b := range buckets {
		f.byClass[c] = b.num / b.den
	}
	if total.den > 0 {
		f.global = total.num / total.den
		f.hasGlobal = true
	}
	return f
}

// Get returns the class average, falling back to the global average.
// ok is false when no edge had a maxspeed at all.
func (f *FillLookup) Get(c highway.Class) (kph float64, ok bool) {
	if v, found := f.byClass[c]; found {
		return v, true
	}
	return f.global, f.hasGlobal
}

// Speed returns the edge's explicit maxspeed or the fill value
func (f *FillLookup) Speed(e Edge) (float64, bool) {
	if e.HasMaxspeed {
		return e.MaxspeedKph, true
	}
	return f.Get(e.Highway)
}

// Defaults lists the fill value for every class in hierarchy order,
// followed by observed classes outside the hierarchy sorted by name.
func (f *FillLookup) Defaults() []ClassSpeed {
	if !f.hasGlobal {
		return nil
	}
	out := make([]ClassSpeed, 0, len(highway.Classes()))
	for _, c := range highway.Classes() {
		v, _ := f.Get(c)
		_, observed := f.byClass[c]
		out = append(out, ClassSpeed{Class: c, Kph: v, Observed: observed})
	}
	var other []highway.Class
	for c := range f.byClass {
		if !c.Known() {
			other = append(other, c)
		}
	}
	slices.Sort(other)
	for _, c := range other {
		out = append(out, ClassSpeed{Class: c, Kph: f.byClass[c], Observed: true})
	}
	return out
}

// ClassSpeed is one row of the default speed table
type ClassSpeed struct {
	Class    highway.Class
	Kph      float64
	Observed bool
}
