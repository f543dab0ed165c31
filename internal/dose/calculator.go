package dose

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"radiation.space/internal/shielding"
)

// MissionParameters is one calculation request.
type MissionParameters struct {
	DurationDays int    `json:"duration_days"`
	Material     string `json:"material"`
}

// Calculator binds the dose model to a catalog and a duration bound.
type Calculator struct {
	catalog *shielding.Catalog
	maxDays int
}

// NewCalculator creates a calculator. A maxDays below 1 falls back to MaxDays.
func NewCalculator(catalog *shielding.Catalog, maxDays int) *Calculator {
	if catalog == nil {
		catalog = shielding.Default()
	}
	if maxDays < 1 {
		maxDays = MaxDays
	}
	return &Calculator{catalog: catalog, maxDays: maxDays}
}

// Catalog returns the catalog the calculator resolves materials against.
func (c *Calculator) Catalog() *shielding.Catalog {
	return c.catalog
}

// MaxDays returns the configured duration bound.
func (c *Calculator) MaxDays() int {
	return c.maxDays
}

// ValidateDays checks 1 <= days <= MaxDays.
func (c *Calculator) ValidateDays(field string, days int) error {
	if days < 1 || days > c.maxDays {
		return &ParameterError{
			Field:  field,
			Value:  days,
			Reason: fmt.Sprintf("must be between 1 and %d", c.maxDays),
		}
	}
	return nil
}

// Calculate validates the mission parameters and evaluates the model for the
// selected material. Material must be a canonical identifier.
func (c *Calculator) Calculate(flux float64, p MissionParameters) (Result, error) {
	if err := c.ValidateDays("duration_days", p.DurationDays); err != nil {
		return Result{}, err
	}
	factor, err := c.catalog.AttenuationOf(p.Material)
	if err != nil {
		return Result{}, err
	}
	return Compute(flux, factor, p.DurationDays)
}

// Comparison is one row of a material ranking.
type Comparison struct {
	Material shielding.Material `json:"material"`
	Result   Result             `json:"result"`
	// ReductionPercent is the dose saved relative to no shielding.
	ReductionPercent float64 `json:"reduction_percent"`
}

// Compare evaluates every catalog entry for the same flux and duration and
// returns them ordered from most to least protective. Ties keep catalog order.
func (c *Calculator) Compare(flux float64, days int) ([]Comparison, error) {
	if err := c.ValidateDays("duration_days", days); err != nil {
		return nil, err
	}

	all := c.catalog.All()
	results := make([]Result, len(all))
	totals := make([]float64, len(all))
	for i, m := range all {
		r, err := Compute(flux, m.Factor, days)
		if err != nil {
			return nil, fmt.Errorf("compare %s: %w", m.Name, err)
		}
		results[i] = r
		totals[i] = r.TotalDoseMSv
	}

	baseline, err := Compute(flux, 1.0, days)
	if err != nil {
		return nil, err
	}

	// Argsort sorts in place; rank on a copy so totals stays catalog ordered.
	sorted := make([]float64, len(totals))
	copy(sorted, totals)
	order := make([]int, len(sorted))
	floats.ArgsortStable(sorted, order)

	out := make([]Comparison, len(order))
	for rank, i := range order {
		reduction := 0.0
		if baseline.TotalDoseMSv > 0 {
			reduction = (1 - totals[i]/baseline.TotalDoseMSv) * 100
		}
		out[rank] = Comparison{
			Material:         all[i],
			Result:           results[i],
			ReductionPercent: reduction,
		}
	}
	return out, nil
}
