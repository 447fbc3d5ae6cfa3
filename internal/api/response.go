package api

import (
	"github.com/hrdatainsights/salary-platform/internal/estimator"
	"github.com/hrdatainsights/salary-platform/pkg/proto"
)

type historyResponse struct {
	Country           string             `json:"country"`
	EducationLevel    string             `json:"education_level"`
	ResolvedCountry   string             `json:"resolved_country"`
	ResolvedEducation string             `json:"resolved_education"`
	YearsExperience   int                `json:"years_experience"`
	History           proto.HistoryStats `json:"history"`
}

type predictionResponse struct {
	estimator.Prediction
	Lowest  estimator.ProjectionPoint `json:"lowest"`
	Highest estimator.ProjectionPoint `json:"highest"`
}

func historyStats(h estimator.History) proto.HistoryStats {
	s := proto.HistoryStats{
		MatchedRecords: int32(h.Count),
		NoData:         h.NoData(),
		MinText:        h.MinText(),
		MaxText:        h.MaxText(),
		AverageText:    h.AverageText(),
	}
	if h.Summary != nil {
		s.Min = h.Summary.Min
		s.Max = h.Summary.Max
		s.Mean = h.Summary.Mean
		s.StdDev = h.Summary.StdDev
	}
	return s
}

func projectionPoint(p estimator.ProjectionPoint) proto.ProjectionPoint {
	return proto.ProjectionPoint{
		YearsExperience: int32(p.YearsExperience),
		Year:            int32(p.Year),
		PredictedSalary: p.PredictedSalary,
	}
}

func estimateResponse(e estimator.Estimate) proto.EstimateResponse {
	q := e.Resolved.Query
	resp := proto.EstimateResponse{
		Country:           q.Country,
		EducationLevel:    q.EducationLevel,
		ResolvedCountry:   e.Resolved.Country.Label,
		ResolvedEducation: e.Resolved.Education.Label,
		CountryFallback:   e.Resolved.Country.Fallback,
		EducationFallback: e.Resolved.Education.Fallback,
		YearsExperience:   int32(q.YearsExperience),
		History:           historyStats(e.History),
		PointEstimate:     e.Prediction.PointEstimate,
		Projection:        make([]proto.ProjectionPoint, 0, len(e.Prediction.Projection)),
	}
	for _, p := range e.Prediction.Projection {
		resp.Projection = append(resp.Projection, projectionPoint(p))
	}
	lowest, highest := e.Prediction.Extremes()
	resp.Lowest = projectionPoint(lowest)
	resp.Highest = projectionPoint(highest)
	return resp
}

func optionsResponse(o estimator.Options) proto.OptionsResponse {
	return proto.OptionsResponse{
		Countries:       o.Countries,
		EducationLevels: o.EducationLevels,
		ProjectionYears: int32(o.ProjectionYears),
	}
}
