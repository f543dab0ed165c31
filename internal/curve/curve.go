// Package curve tabulates the model over mission duration for charting and
// export: one attenuation series per material and one cumulative dose series
// for a selected material.
//
// Series are lazy. Nothing is materialized until a caller asks for it, each
// point is addressable by day in constant time, and iteration can be
// restarted any number of times.
package curve

import (
	"encoding/json"
	"fmt"
	"iter"

	"radiation.space/internal/dose"
	"radiation.space/internal/shielding"
)

// Point is one day of a series. Days start at 1.
type Point struct {
	Day   int     `json:"day"`
	Value float64 `json:"value"`
}

// Series is a day-indexed curve of fixed length.
type Series struct {
	Material string
	Label    string
	length   int
	value    func(day int) float64
}

// Len returns the number of points, which is also the last day.
func (s Series) Len() int {
	return s.length
}

// At returns the point for day in [1, Len].
func (s Series) At(day int) (Point, error) {
	if day < 1 || day > s.length {
		return Point{}, &dose.ParameterError{
			Field:  "day",
			Value:  day,
			Reason: fmt.Sprintf("must be between 1 and %d", s.length),
		}
	}
	return Point{Day: day, Value: s.value(day)}, nil
}

// Points yields (day, value) for day 1..Len.
func (s Series) Points() iter.Seq2[int, float64] {
	return func(yield func(int, float64) bool) {
		for day := 1; day <= s.length; day++ {
			if !yield(day, s.value(day)) {
				return
			}
		}
	}
}

// Values materializes the series. Index 0 holds day 1.
func (s Series) Values() []float64 {
	out := make([]float64, 0, s.length)
	for _, v := range s.Points() {
		out = append(out, v)
	}
	return out
}

// MarshalJSON encodes the series with its values materialized.
func (s Series) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Material string    `json:"material"`
		Label    string    `json:"label"`
		Days     int       `json:"days"`
		Values   []float64 `json:"values"`
	}{
		Material: s.Material,
		Label:    s.Label,
		Days:     s.length,
		Values:   s.Values(),
	})
}

// Highlight returns the point marking the current mission duration.
func Highlight(s Series, day int) (Point, error) {
	return s.At(day)
}

func validateMaxDays(maxDays int) error {
	if maxDays < 1 {
		return &dose.ParameterError{Field: "max_days", Value: maxDays, Reason: "must be at least 1"}
	}
	return nil
}

// AttenuationCurves returns one series per catalog entry, in catalog order.
// Attenuation does not depend on duration, so every point of a series carries
// the material's factor.
func AttenuationCurves(catalog *shielding.Catalog, maxDays int) ([]Series, error) {
	if err := validateMaxDays(maxDays); err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = shielding.Default()
	}

	all := catalog.All()
	out := make([]Series, len(all))
	for i, m := range all {
		factor := m.Factor
		out[i] = Series{
			Material: m.Name,
			Label:    m.Name,
			length:   maxDays,
			value:    func(int) float64 { return factor },
		}
	}
	return out, nil
}

// DoseLabel is the export column heading for a dose series.
func DoseLabel(material string) string {
	return fmt.Sprintf("Total Dose [%s] (mSv)", material)
}

// DoseCurve returns the cumulative dose series for one material. The point
// at day d is dose.Compute(flux, factor, d).TotalDoseMSv.
func DoseCurve(catalog *shielding.Catalog, material string, flux float64, maxDays int) (Series, error) {
	if err := validateMaxDays(maxDays); err != nil {
		return Series{}, err
	}
	if catalog == nil {
		catalog = shielding.Default()
	}
	factor, err := catalog.AttenuationOf(material)
	if err != nil {
		return Series{}, err
	}
	// Validate once so the per-point closure cannot fail.
	if _, err := dose.Compute(flux, factor, 1); err != nil {
		return Series{}, err
	}

	return Series{
		Material: material,
		Label:    DoseLabel(material),
		length:   maxDays,
		value: func(day int) float64 {
			r, _ := dose.Compute(flux, factor, day)
			return r.TotalDoseMSv
		},
	}, nil
}
