package estimator

import (
	"fmt"
	"math"
	"strconv"
)

// NoDataText is shown in place of a statistic when no record matches.
const NoDataText = "No available data"

// History holds descriptive statistics of the historical records matching a
// resolved query. Summary is nil when nothing matched.
type History struct {
	Country         string   `json:"country"`
	EducationLevel  string   `json:"education_level"`
	YearsExperience int      `json:"years_experience"`
	Count           int      `json:"count"`
	Summary         *Summary `json:"summary,omitempty"`
}

// Summary is the salary distribution of a non-empty match. StdDev is nil
// when it is undefined (a single record).
type Summary struct {
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
	Mean   float64  `json:"mean"`
	StdDev *float64 `json:"stddev,omitempty"`
}

// NoData reports whether the lookup matched zero records.
func (h History) NoData() bool {
	return h.Summary == nil
}

// MinText renders the minimum salary for display.
func (h History) MinText() string {
	if h.NoData() {
		return NoDataText
	}
	return "$" + formatAmount(h.Summary.Min)
}

// MaxText renders the maximum salary for display.
func (h History) MaxText() string {
	if h.NoData() {
		return NoDataText
	}
	return "$" + formatAmount(h.Summary.Max)
}

// AverageText renders "mean +- stddev" rounded to whole units, or the mean
// alone when the deviation is undefined.
func (h History) AverageText() string {
	if h.NoData() {
		return NoDataText
	}
	if h.Summary.StdDev == nil {
		return "$" + formatAmount(h.Summary.Mean)
	}
	return fmt.Sprintf("$%.0f +- %.0f", math.RoundToEven(h.Summary.Mean), math.RoundToEven(*h.Summary.StdDev))
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// summarize computes min, max, mean and the sample standard deviation.
func summarize(salaries []float64) *Summary {
	if len(salaries) == 0 {
		return nil
	}
	s := &Summary{Min: salaries[0], Max: salaries[0]}
	var sum float64
	for _, v := range salaries {
		sum += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	n := float64(len(salaries))
	s.Mean = sum / n
	if len(salaries) < 2 {
		return s
	}
	var sq float64
	for _, v := range salaries {
		d := v - s.Mean
		sq += d * d
	}
	sd := math.Sqrt(sq / (n - 1))
	s.StdDev = &sd
	return s
}
