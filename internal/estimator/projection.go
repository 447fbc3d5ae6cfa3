package estimator

// ProjectionPoint is the predicted salary at one year of experience. Year is
// the calendar year label, zero when no base year is configured.
type ProjectionPoint struct {
	YearsExperience int     `json:"years_experience"`
	Year            int     `json:"year,omitempty"`
	PredictedSalary float64 `json:"predicted_salary"`
}

// Prediction is the model output for a resolved query. Projection is ordered
// by ascending experience and starts at YearsExperience.
type Prediction struct {
	Country           string            `json:"country"`
	EducationLevel    string            `json:"education_level"`
	CountryFallback   bool              `json:"country_fallback"`
	EducationFallback bool              `json:"education_fallback"`
	YearsExperience   int               `json:"years_experience"`
	PointEstimate     float64           `json:"point_estimate"`
	Projection        []ProjectionPoint `json:"projection"`
}

// Extremes returns the lowest and highest projected points. Ties go to the
// earliest point.
func (p Prediction) Extremes() (lowest, highest ProjectionPoint) {
	if len(p.Projection) == 0 {
		return ProjectionPoint{}, ProjectionPoint{}
	}
	lowest, highest = p.Projection[0], p.Projection[0]
	for _, pt := range p.Projection[1:] {
		if pt.PredictedSalary < lowest.PredictedSalary {
			lowest = pt
		}
		if pt.PredictedSalary > highest.PredictedSalary {
			highest = pt
		}
	}
	return lowest, highest
}
