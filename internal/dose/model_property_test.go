package dose

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"radiation.space/internal/shielding"
)

func catalogFactors() []interface{} {
	all := shielding.Default().All()
	out := make([]interface{}, len(all))
	for i, m := range all {
		out[i] = m.Factor
	}
	return out
}

// Property: total == flux*ScaleConstant*factor*days for every valid input.
func TestTotalDoseMatchesFormula(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("total dose follows the linear model", prop.ForAll(
		func(flux, factor float64, days int) bool {
			r, err := Compute(flux, factor, days)
			if err != nil {
				return false
			}
			return r.TotalDoseMSv == flux*ScaleConstant*factor*float64(days) &&
				r.RiskPercent == (r.TotalDoseMSv/1000.0)*RiskCoefficient
		},
		gen.Float64Range(0, 1e6),
		gen.Float64Range(1e-6, 1),
		gen.IntRange(1, MaxDays),
	))

	properties.TestingRun(t)
}

// Property: for flux > 0 the cumulative dose strictly increases with duration.
func TestTotalDoseStrictlyIncreasing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("day d+1 exceeds day d", prop.ForAll(
		func(flux, factor float64, days int) bool {
			a, errA := Compute(flux, factor, days)
			b, errB := Compute(flux, factor, days+1)
			return errA == nil && errB == nil && b.TotalDoseMSv > a.TotalDoseMSv
		},
		gen.Float64Range(1e-3, 1e6),
		gen.OneConstOf(catalogFactors()...),
		gen.IntRange(1, MaxDays-1),
	))

	properties.TestingRun(t)
}

// Property: no material yields more dose than no shielding at all.
func TestUnshieldedIsMaximal(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("None bounds every material", prop.ForAll(
		func(flux float64, days int) bool {
			baseline, err := Compute(flux, 1.0, days)
			if err != nil {
				return false
			}
			for _, m := range shielding.Default().All() {
				r, err := Compute(flux, m.Factor, days)
				if err != nil || r.TotalDoseMSv > baseline.TotalDoseMSv {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0, 1e6),
		gen.IntRange(1, MaxDays),
	))

	properties.TestingRun(t)
}

// Property: zero flux means zero dose and zero risk everywhere.
func TestZeroFluxYieldsZero(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("zero flux", prop.ForAll(
		func(factor float64, days int) bool {
			r, err := Compute(0, factor, days)
			return err == nil && r.TotalDoseMSv == 0 && r.RiskPercent == 0 && r.DailyDoseMSv == 0
		},
		gen.OneConstOf(catalogFactors()...),
		gen.IntRange(1, MaxDays),
	))

	properties.TestingRun(t)
}
