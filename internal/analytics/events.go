// Package analytics tracks how the estimator is used. The HTTP layer records a
// PredictionEvent after each served query; the Collector ships events to
// Kafka and the Aggregator folds the topic into running statistics.
package analytics

import (
	"time"

	"github.com/hrdatainsights/salary-platform/internal/estimator"
)

type EventType string

const (
	EventHistory  EventType = "history"
	EventPredict  EventType = "predict"
	EventEstimate EventType = "estimate"
)

type PredictionEvent struct {
	Type              EventType `json:"type"`
	Country           string    `json:"country"`
	EducationLevel    string    `json:"education_level"`
	ResolvedCountry   string    `json:"resolved_country"`
	ResolvedEducation string    `json:"resolved_education"`
	CountryFallback   bool      `json:"country_fallback"`
	EducationFallback bool      `json:"education_fallback"`
	YearsExperience   int       `json:"years_experience"`
	MatchedRecords    int       `json:"matched_records"`
	NoData            bool      `json:"no_data"`
	PointEstimate     float64   `json:"point_estimate,omitempty"`
	LatencyUs         int64     `json:"latency_us"`
	Failed            bool      `json:"failed"`
	Timestamp         time.Time `json:"timestamp"`
	RequestID         string    `json:"request_id"`
}

// NewEvent starts an event for a served query. Resolution details are filled
// in by the With* helpers.
func NewEvent(t EventType, q estimator.Query, latency time.Duration, requestID string) PredictionEvent {
	return PredictionEvent{
		Type:            t,
		Country:         q.Country,
		EducationLevel:  q.EducationLevel,
		YearsExperience: q.YearsExperience,
		LatencyUs:       latency.Microseconds(),
		Timestamp:       time.Now().UTC(),
		RequestID:       requestID,
	}
}

// WithHistory records the lookup outcome.
func (e PredictionEvent) WithHistory(h estimator.History) PredictionEvent {
	e.ResolvedCountry = h.Country
	e.ResolvedEducation = h.EducationLevel
	e.CountryFallback = h.Country != e.Country
	e.EducationFallback = h.EducationLevel != e.EducationLevel
	e.MatchedRecords = h.Count
	e.NoData = h.NoData()
	return e
}

// WithPrediction records the model outcome.
func (e PredictionEvent) WithPrediction(p estimator.Prediction) PredictionEvent {
	e.ResolvedCountry = p.Country
	e.ResolvedEducation = p.EducationLevel
	e.CountryFallback = p.CountryFallback
	e.EducationFallback = p.EducationFallback
	e.PointEstimate = p.PointEstimate
	return e
}

// WithError marks the query as failed.
func (e PredictionEvent) WithError() PredictionEvent {
	e.Failed = true
	return e
}
