// Package dose turns a proton flux reading, a shielding attenuation factor and
// a mission duration into daily dose, cumulative dose and excess cancer risk.
//
// The model is GCR-dominated and linear in mission length. Risk uses the
// ICRP-60 excess relative risk coefficient of 5% per Sv.
package dose

import (
	"errors"
	"fmt"
	"math"
)

// Model constants
const (
	ScaleConstant   = 5.0e-5 // mSv/day per unit of >=10 MeV proton flux
	RiskCoefficient = 5.0    // % excess risk per Sv
	MaxDays         = 1000   // default upper bound for mission duration and curve length
	FallbackFlux    = 100.0  // p cm^-2 s^-1 sr^-1, used when the live source is unavailable
	mSvPerSv        = 1000.0
)

// ErrInvalidParameter is matched by every out-of-domain input error.
var ErrInvalidParameter = errors.New("invalid parameter")

// ParameterError names the field that was outside its domain.
type ParameterError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidParameter) match.
func (e *ParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// Result is the outcome of one dose calculation. Values are unrounded.
type Result struct {
	DailyDoseMSv float64 `json:"daily_dose_msv"`
	TotalDoseMSv float64 `json:"total_dose_msv"`
	RiskPercent  float64 `json:"risk_percent"`
}

// Rounded returns a copy with every value rounded to two decimals for display.
func (r Result) Rounded() Result {
	return Result{
		DailyDoseMSv: round2(r.DailyDoseMSv),
		TotalDoseMSv: round2(r.TotalDoseMSv),
		RiskPercent:  round2(r.RiskPercent),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BaseDoseRate converts a flux value to the unshielded daily dose in mSv.
func BaseDoseRate(flux float64) float64 {
	return flux * ScaleConstant
}

// Compute evaluates the dose model. Operation order is fixed so results are
// reproducible bit for bit.
func Compute(flux, factor float64, days int) (Result, error) {
	if err := ValidateFlux(flux); err != nil {
		return Result{}, err
	}
	if err := ValidateFactor(factor); err != nil {
		return Result{}, err
	}
	if days < 1 {
		return Result{}, &ParameterError{Field: "duration_days", Value: days, Reason: "must be at least 1"}
	}

	base := BaseDoseRate(flux)
	daily := base * factor
	total := daily * float64(days)
	risk := (total / mSvPerSv) * RiskCoefficient

	return Result{
		DailyDoseMSv: daily,
		TotalDoseMSv: total,
		RiskPercent:  risk,
	}, nil
}

// ValidateFlux rejects negative and non-finite flux values.
func ValidateFlux(flux float64) error {
	if math.IsNaN(flux) || math.IsInf(flux, 0) {
		return &ParameterError{Field: "flux", Value: flux, Reason: "must be finite"}
	}
	if flux < 0 {
		return &ParameterError{Field: "flux", Value: flux, Reason: "must be non-negative"}
	}
	return nil
}

// ValidateFactor requires factor to lie in (0, 1].
func ValidateFactor(factor float64) error {
	if math.IsNaN(factor) || factor <= 0 || factor > 1 {
		return &ParameterError{Field: "attenuation_factor", Value: factor, Reason: "must be in (0, 1]"}
	}
	return nil
}
