package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"radiation.space/internal/curve"
	"radiation.space/internal/dose"
	"radiation.space/internal/flux"
	"radiation.space/internal/shielding"
)

// DefaultDays is the mission duration used when a request omits days.
const DefaultDays = 180

type fluxResponse struct {
	flux.Reading
	Formatted string `json:"formatted"`
	Message   string `json:"message"`
}

func newFluxResponse(r flux.Reading) fluxResponse {
	return fluxResponse{
		Reading:   r,
		Formatted: fmt.Sprintf("%.2e", r.Value),
		Message:   r.Message(),
	}
}

type doseResponse struct {
	Material     shielding.Material `json:"material"`
	DurationDays int                `json:"duration_days"`
	Flux         fluxResponse       `json:"flux"`
	Result       dose.Result        `json:"result"`
	Display      dose.Result        `json:"display"`
}

type compareResponse struct {
	DurationDays int               `json:"duration_days"`
	Flux         fluxResponse      `json:"flux"`
	Materials    []dose.Comparison `json:"materials"`
}

type highlightedPoint struct {
	Material string `json:"material"`
	curve.Point
}

type attenuationResponse struct {
	MaxDays    int                `json:"max_days"`
	Day        int                `json:"day"`
	Series     []curve.Series     `json:"series"`
	Highlights []highlightedPoint `json:"highlights"`
}

type doseCurveResponse struct {
	MaxDays   int          `json:"max_days"`
	Flux      fluxResponse `json:"flux"`
	Series    curve.Series `json:"series"`
	Highlight curve.Point  `json:"highlight"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "radiation-dose",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleMaterials(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"default":   shielding.DefaultMaterial,
		"materials": s.calc.Catalog().All(),
	})
}

func (s *Server) handleFlux(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, newFluxResponse(s.flux.Flux(r.Context())))
}

func (s *Server) handleDose(w http.ResponseWriter, r *http.Request) {
	material, err := s.materialParam(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	days, err := intParam(r, "days", DefaultDays)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	reading := s.flux.Flux(r.Context())
	result, err := s.calc.Calculate(reading.Value, dose.MissionParameters{
		DurationDays: days,
		Material:     material.Name,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.metrics.RecordCalculation(material.Name)

	s.writeJSON(w, http.StatusOK, doseResponse{
		Material:     material,
		DurationDays: days,
		Flux:         newFluxResponse(reading),
		Result:       result,
		Display:      result.Rounded(),
	})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", DefaultDays)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	reading := s.flux.Flux(r.Context())
	rows, err := s.calc.Compare(reading.Value, days)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	for _, row := range rows {
		s.metrics.RecordCalculation(row.Material.Name)
	}

	s.writeJSON(w, http.StatusOK, compareResponse{
		DurationDays: days,
		Flux:         newFluxResponse(reading),
		Materials:    rows,
	})
}

func (s *Server) handleAttenuationCurves(w http.ResponseWriter, r *http.Request) {
	maxDays, err := s.maxDaysParam(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	day, err := intParam(r, "days", min(DefaultDays, maxDays))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	series, err := curve.AttenuationCurves(s.calc.Catalog(), maxDays)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	highlights := make([]highlightedPoint, 0, len(series))
	for _, sr := range series {
		p, err := curve.Highlight(sr, day)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		highlights = append(highlights, highlightedPoint{Material: sr.Material, Point: p})
	}

	s.writeJSON(w, http.StatusOK, attenuationResponse{
		MaxDays:    maxDays,
		Day:        day,
		Series:     series,
		Highlights: highlights,
	})
}

func (s *Server) handleDoseCurve(w http.ResponseWriter, r *http.Request) {
	material, err := s.materialParam(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	maxDays, err := s.maxDaysParam(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	day, err := intParam(r, "days", min(DefaultDays, maxDays))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	reading := s.flux.Flux(r.Context())
	series, err := curve.DoseCurve(s.calc.Catalog(), material.Name, reading.Value, maxDays)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	highlight, err := curve.Highlight(series, day)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, doseCurveResponse{
		MaxDays:   maxDays,
		Flux:      newFluxResponse(reading),
		Series:    series,
		Highlight: highlight,
	})
}

func (s *Server) handleExportDose(w http.ResponseWriter, r *http.Request) {
	material, err := s.materialParam(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	maxDays, err := s.maxDaysParam(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	reading := s.flux.Flux(r.Context())
	series, err := curve.DoseCurve(s.calc.Catalog(), material.Name, reading.Value, maxDays)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := curve.WriteCSV(&buf, series); err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", curve.FileName(material.Name)))
	w.Header().Set("X-Flux-Provenance", string(reading.Provenance))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.log.Warn().Err(err).Msg("Failed to write CSV export")
	}
}

// materialParam resolves ?material= against the catalog, accepting legacy
// spellings. An absent parameter selects the default material.
func (s *Server) materialParam(r *http.Request) (shielding.Material, error) {
	id := r.URL.Query().Get("material")
	if id == "" {
		id = shielding.DefaultMaterial
	}
	return s.calc.Catalog().Resolve(id)
}

// maxDaysParam reads ?max_days=, bounded by the configured maximum.
func (s *Server) maxDaysParam(r *http.Request) (int, error) {
	maxDays, err := intParam(r, "max_days", s.calc.MaxDays())
	if err != nil {
		return 0, err
	}
	if err := s.calc.ValidateDays("max_days", maxDays); err != nil {
		return 0, err
	}
	return maxDays, nil
}

func intParam(r *http.Request, name string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &dose.ParameterError{Field: name, Value: raw, Reason: "must be an integer"}
	}
	return v, nil
}

// writeDomainError maps model errors onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shielding.ErrUnknownMaterial):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, dose.ErrInvalidParameter):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("Request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
