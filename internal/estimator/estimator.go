// Package estimator answers salary queries: descriptive statistics over the
// historical survey records matching a (country, education, experience)
// triple, and a model-based point prediction with a forward projection over
// the following years of experience.
//
// An Estimator is built once from an immutable Context and holds no mutable
// state, so a single instance serves concurrent requests without locking.
package estimator

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/hrdatainsights/salary-platform/internal/dataset"
	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
)

// DefaultProjectionYears is how many years past the queried experience the
// projection covers.
const DefaultProjectionYears = 10

// Model is the pre-fit regressor. Features are, in order: country code,
// education code, years of experience.
type Model interface {
	Predict(features []float64) (float64, error)
}

// Context is everything the estimator needs, loaded once at startup.
type Context struct {
	Table      *dataset.Table
	Countries  *CategoryEncoding
	Educations *CategoryEncoding
	Model      Model

	// ProjectionYears defaults to DefaultProjectionYears when zero.
	ProjectionYears int
	// BaseYear labels projection points with calendar years when positive:
	// the queried experience maps to BaseYear.
	BaseYear int
}

// Query is one user request.
type Query struct {
	Country         string `json:"country"`
	EducationLevel  string `json:"education_level"`
	YearsExperience int    `json:"years_experience"`
}

// Resolved is a query after category resolution. Lookup and prediction both
// consume the same Resolved value.
type Resolved struct {
	Query     Query      `json:"query"`
	Country   Resolution `json:"country"`
	Education Resolution `json:"education"`
}

type historyKey struct {
	country   string
	education string
	years     int
}

// Estimator is safe for concurrent use.
type Estimator struct {
	countries       *CategoryEncoding
	educations      *CategoryEncoding
	model           Model
	projectionYears int
	baseYear        int

	index         map[historyKey][]float64
	countryLabels []string
}

// New validates the context and indexes the historical table by resolved
// (country, education, years).
func New(c Context) (*Estimator, error) {
	if c.Table == nil || c.Countries == nil || c.Educations == nil || c.Model == nil {
		return nil, fmt.Errorf("estimator context is incomplete")
	}
	for _, enc := range []*CategoryEncoding{c.Countries, c.Educations} {
		if !enc.Contains(FallbackLabel) {
			return nil, fmt.Errorf("%w: %s encoding has no %q entry", apperrors.ErrUnknownCategory, enc.Name(), FallbackLabel)
		}
	}
	years := c.ProjectionYears
	if years == 0 {
		years = DefaultProjectionYears
	}
	if years < 0 {
		return nil, fmt.Errorf("projection years must be non-negative, got %d", years)
	}

	e := &Estimator{
		countries:       c.Countries,
		educations:      c.Educations,
		model:           c.Model,
		projectionYears: years,
		baseYear:        c.BaseYear,
		index:           make(map[historyKey][]float64),
		countryLabels:   c.Table.Countries(),
	}
	var indexErr error
	c.Table.Each(func(r dataset.Record) {
		if indexErr != nil {
			return
		}
		country, err := c.Countries.Encode(r.Country)
		if err != nil {
			indexErr = err
			return
		}
		ed, err := c.Educations.Encode(r.EducationLevel)
		if err != nil {
			indexErr = err
			return
		}
		k := historyKey{country: country.Label, education: ed.Label, years: r.YearsExperience}
		e.index[k] = append(e.index[k], r.Salary)
	})
	if indexErr != nil {
		return nil, indexErr
	}
	return e, nil
}

// Options lists the selectable inputs: every country present in the
// historical table (unseen ones fall back to "Other" when queried) and the
// education vocabulary of the model.
type Options struct {
	Countries       []string `json:"countries"`
	EducationLevels []string `json:"education_levels"`
	ProjectionYears int      `json:"projection_years"`
}

// Options returns a copy of the selectable inputs.
func (e *Estimator) Options() Options {
	countries := make([]string, len(e.countryLabels))
	copy(countries, e.countryLabels)
	return Options{
		Countries:       countries,
		EducationLevels: e.educations.Classes(),
		ProjectionYears: e.projectionYears,
	}
}

// Resolve validates q and encodes both categories exactly once.
func (e *Estimator) Resolve(q Query) (Resolved, error) {
	if strings.TrimSpace(q.Country) == "" {
		return Resolved{}, fmt.Errorf("%w: country is required", apperrors.ErrInvalidInput)
	}
	if strings.TrimSpace(q.EducationLevel) == "" {
		return Resolved{}, fmt.Errorf("%w: education level is required", apperrors.ErrInvalidInput)
	}
	if q.YearsExperience < 0 {
		return Resolved{}, fmt.Errorf("%w: years of experience must be non-negative, got %d", apperrors.ErrInvalidInput, q.YearsExperience)
	}
	if q.YearsExperience > math.MaxInt-e.projectionYears {
		return Resolved{}, fmt.Errorf("%w: years of experience %d leaves no room for a %d-year projection", apperrors.ErrInvalidInput, q.YearsExperience, e.projectionYears)
	}
	country, err := e.countries.Encode(q.Country)
	if err != nil {
		return Resolved{}, err
	}
	ed, err := e.educations.Encode(q.EducationLevel)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Query: q, Country: country, Education: ed}, nil
}

// LookupHistory summarizes the historical salaries matching q.
func (e *Estimator) LookupHistory(q Query) (History, error) {
	r, err := e.Resolve(q)
	if err != nil {
		return History{}, err
	}
	return e.LookupResolved(r), nil
}

// LookupResolved summarizes the historical salaries matching r.
func (e *Estimator) LookupResolved(r Resolved) History {
	salaries := e.index[historyKey{
		country:   r.Country.Label,
		education: r.Education.Label,
		years:     r.Query.YearsExperience,
	}]
	return History{
		Country:         r.Country.Label,
		EducationLevel:  r.Education.Label,
		YearsExperience: r.Query.YearsExperience,
		Count:           len(salaries),
		Summary:         summarize(salaries),
	}
}

// Predict returns the model's point estimate for q and its projection.
func (e *Estimator) Predict(q Query) (Prediction, error) {
	r, err := e.Resolve(q)
	if err != nil {
		return Prediction{}, err
	}
	return e.PredictResolved(r)
}

// PredictResolved runs the model for r. Model failures are returned wrapped
// in ErrModelInvocation; nothing is retried.
func (e *Estimator) PredictResolved(r Resolved) (Prediction, error) {
	years := r.Query.YearsExperience
	point, err := e.invoke(r, years)
	if err != nil {
		return Prediction{}, err
	}

	projection := make([]ProjectionPoint, 0, e.projectionYears+1)
	for i := 0; i <= e.projectionYears; i++ {
		y := years + i
		v, err := e.invoke(r, y)
		if err != nil {
			return Prediction{}, err
		}
		p := ProjectionPoint{YearsExperience: y, PredictedSalary: v}
		if e.baseYear > 0 {
			p.Year = e.baseYear + i
		}
		projection = append(projection, p)
	}

	return Prediction{
		Country:           r.Country.Label,
		EducationLevel:    r.Education.Label,
		CountryFallback:   r.Country.Fallback,
		EducationFallback: r.Education.Fallback,
		YearsExperience:   years,
		PointEstimate:     point,
		Projection:        projection,
	}, nil
}

func (e *Estimator) invoke(r Resolved, years int) (float64, error) {
	features := []float64{float64(r.Country.Code), float64(r.Education.Code), float64(years)}
	v, err := e.model.Predict(features)
	if err != nil {
		if errors.Is(err, apperrors.ErrModelInvocation) {
			return 0, fmt.Errorf("predicting at %d years: %w", years, err)
		}
		return 0, fmt.Errorf("%w: predicting at %d years: %w", apperrors.ErrModelInvocation, years, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite prediction at %d years", apperrors.ErrModelInvocation, years)
	}
	return v, nil
}

// Estimate is the combined answer for one query: the lookup and the
// prediction share a single category resolution.
type Estimate struct {
	Resolved   Resolved   `json:"resolved"`
	History    History    `json:"history"`
	Prediction Prediction `json:"prediction"`
}

// Estimate resolves q once and runs both the lookup and the prediction.
func (e *Estimator) Estimate(q Query) (Estimate, error) {
	r, err := e.Resolve(q)
	if err != nil {
		return Estimate{}, err
	}
	pred, err := e.PredictResolved(r)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{
		Resolved:   r,
		History:    e.LookupResolved(r),
		Prediction: pred,
	}, nil
}
