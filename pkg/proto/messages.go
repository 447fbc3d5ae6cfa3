// Package proto defines the message types exchanged over the platform's
// JSON-over-TCP RPC layer (see pkg/rpc).
//
// The types are hand-written with JSON struct tags and carry no behavior, so
// clients can depend on them without pulling in the estimator.
package proto

// RPC method names served by the estimator service.
const (
	MethodEstimate = "SalaryEstimator.Estimate"
	MethodOptions  = "SalaryEstimator.Options"
)

// ---------- SalaryEstimator ----------

// EstimateRequest asks for the historical lookup and the prediction for one
// (country, education level, years of experience) triple.
type EstimateRequest struct {
	Country         string `json:"country"`
	EducationLevel  string `json:"education_level"`
	YearsExperience int32  `json:"years_experience"`
}

// HistoryStats summarizes the matching survey records. The numeric fields
// are zero and NoData is set when nothing matched; StdDev is absent for a
// single match. The *Text fields are ready for display.
type HistoryStats struct {
	MatchedRecords int32    `json:"matched_records"`
	NoData         bool     `json:"no_data"`
	Min            float64  `json:"min,omitempty"`
	Max            float64  `json:"max,omitempty"`
	Mean           float64  `json:"mean,omitempty"`
	StdDev         *float64 `json:"stddev,omitempty"`
	MinText        string   `json:"min_text"`
	MaxText        string   `json:"max_text"`
	AverageText    string   `json:"average_text"`
}

// ProjectionPoint is one predicted salary on the projection curve.
type ProjectionPoint struct {
	YearsExperience int32   `json:"years_experience"`
	Year            int32   `json:"year,omitempty"`
	PredictedSalary float64 `json:"predicted_salary"`
}

// EstimateResponse is the combined answer. Resolved* fields hold the labels
// the query was answered for, which differ from the request when a category
// fell back to "Other".
type EstimateResponse struct {
	Country           string            `json:"country"`
	EducationLevel    string            `json:"education_level"`
	ResolvedCountry   string            `json:"resolved_country"`
	ResolvedEducation string            `json:"resolved_education"`
	CountryFallback   bool              `json:"country_fallback"`
	EducationFallback bool              `json:"education_fallback"`
	YearsExperience   int32             `json:"years_experience"`
	History           HistoryStats      `json:"history"`
	PointEstimate     float64           `json:"point_estimate"`
	Projection        []ProjectionPoint `json:"projection"`
	Lowest            ProjectionPoint   `json:"lowest"`
	Highest           ProjectionPoint   `json:"highest"`
}

// OptionsRequest is empty; Options takes no parameters.
type OptionsRequest struct{}

// OptionsResponse lists the selectable inputs.
type OptionsResponse struct {
	Countries       []string `json:"countries"`
	EducationLevels []string `json:"education_levels"`
	ProjectionYears int32    `json:"projection_years"`
}
