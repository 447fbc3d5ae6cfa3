// Package overview computes the exploratory views over the historical survey
// table: distribution summaries, group means, a country by education pivot,
// histograms, box plots and bubble counts.
//
// Every function is a pure read of an immutable *dataset.Table. Results are
// plain structs meant to be serialized as JSON and cached by the caller.
package overview

import (
	"fmt"
	"math"
	"sort"

	"github.com/hrdatainsights/salary-platform/internal/dataset"
	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
)

// DefaultHistogramBins matches the exploration dashboard.
const DefaultHistogramBins = 50

// ColumnSummary describes one numeric column.
type ColumnSummary struct {
	Count int      `json:"count"`
	Mean  float64  `json:"mean"`
	Std   *float64 `json:"std,omitempty"`
	Min   float64  `json:"min"`
	P25   float64  `json:"p25"`
	P50   float64  `json:"p50"`
	P75   float64  `json:"p75"`
	Max   float64  `json:"max"`
}

// TableSummary describes the numeric columns of the table.
type TableSummary struct {
	Records         int           `json:"records"`
	Salary          ColumnSummary `json:"salary"`
	YearsExperience ColumnSummary `json:"years_experience"`
}

func describe(values []float64) ColumnSummary {
	if len(values) == 0 {
		return ColumnSummary{}
	}
	s := sortedCopy(values)
	out := ColumnSummary{
		Count: len(s),
		Mean:  mean(s),
		Min:   s[0],
		P25:   quantile(s, 0.25),
		P50:   quantile(s, 0.5),
		P75:   quantile(s, 0.75),
		Max:   s[len(s)-1],
	}
	if sd := sampleStdDev(s); !math.IsNaN(sd) {
		out.Std = &sd
	}
	return out
}

// Summary describes salary and years of experience.
func Summary(t *dataset.Table) TableSummary {
	salaries := make([]float64, 0, t.Len())
	years := make([]float64, 0, t.Len())
	t.Each(func(r dataset.Record) {
		salaries = append(salaries, r.Salary)
		years = append(years, float64(r.YearsExperience))
	})
	return TableSummary{
		Records:         t.Len(),
		Salary:          describe(salaries),
		YearsExperience: describe(years),
	}
}

// CountryShare is the number and percentage of respondents from a country.
type CountryShare struct {
	Country string  `json:"country"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// CountryDistribution returns respondent counts per country, most frequent
// first. Ties are ordered by name.
func CountryDistribution(t *dataset.Table) []CountryShare {
	counts := make(map[string]int)
	t.Each(func(r dataset.Record) { counts[r.Country]++ })
	out := make([]CountryShare, 0, len(counts))
	total := float64(t.Len())
	for c, n := range counts {
		out = append(out, CountryShare{Country: c, Count: n, Percent: 100 * float64(n) / total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Country < out[j].Country
	})
	return out
}

// GroupMean is the mean salary of one group.
type GroupMean struct {
	Group string  `json:"group"`
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
}

// GroupMeans is a set of group means in ascending order with the global
// average and the extremes.
type GroupMeans struct {
	Groups        []GroupMean `json:"groups"`
	GlobalAverage float64     `json:"global_average"`
	Min           *GroupMean  `json:"min,omitempty"`
	Max           *GroupMean  `json:"max,omitempty"`
}

func groupMeans(t *dataset.Table, key func(dataset.Record) string) GroupMeans {
	buckets := make(map[string][]float64)
	var all []float64
	t.Each(func(r dataset.Record) {
		k := key(r)
		buckets[k] = append(buckets[k], r.Salary)
		all = append(all, r.Salary)
	})
	groups := make([]GroupMean, 0, len(buckets))
	for k, v := range buckets {
		groups = append(groups, GroupMean{Group: k, Count: len(v), Mean: mean(v)})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Mean != groups[j].Mean {
			return groups[i].Mean < groups[j].Mean
		}
		return groups[i].Group < groups[j].Group
	})
	out := GroupMeans{Groups: groups, GlobalAverage: mean(all)}
	if len(groups) > 0 {
		lo, hi := groups[0], groups[len(groups)-1]
		out.Min, out.Max = &lo, &hi
	}
	return out
}

// SalaryByCountry returns the mean salary per country.
func SalaryByCountry(t *dataset.Table) GroupMeans {
	return groupMeans(t, func(r dataset.Record) string { return r.Country })
}

// SalaryByEducation returns the mean salary per education level.
func SalaryByEducation(t *dataset.Table) GroupMeans {
	return groupMeans(t, func(r dataset.Record) string { return r.EducationLevel })
}

// ExperiencePoint is the mean salary at one year of experience.
type ExperiencePoint struct {
	YearsExperience int     `json:"years_experience"`
	Count           int     `json:"count"`
	Mean            float64 `json:"mean"`
	Trend           float64 `json:"trend"`
}

// ExperienceCurve is the mean salary by years of experience with its
// least-squares trend line.
type ExperienceCurve struct {
	Points    []ExperiencePoint `json:"points"`
	Slope     float64           `json:"slope"`
	Intercept float64           `json:"intercept"`
	Min       *ExperiencePoint  `json:"min,omitempty"`
	Max       *ExperiencePoint  `json:"max,omitempty"`
}

// SalaryByExperience returns the mean salary per years of experience in
// ascending order of experience. The trend is fit on the means.
func SalaryByExperience(t *dataset.Table) ExperienceCurve {
	buckets := make(map[int][]float64)
	t.Each(func(r dataset.Record) {
		buckets[r.YearsExperience] = append(buckets[r.YearsExperience], r.Salary)
	})
	points := make([]ExperiencePoint, 0, len(buckets))
	for y, v := range buckets {
		points = append(points, ExperiencePoint{YearsExperience: y, Count: len(v), Mean: mean(v)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].YearsExperience < points[j].YearsExperience })

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = float64(p.YearsExperience), p.Mean
	}
	slope, intercept := linearFit(xs, ys)
	curve := ExperienceCurve{Points: points, Slope: slope, Intercept: intercept}
	for i := range points {
		points[i].Trend = intercept + slope*xs[i]
	}
	for i := range points {
		p := points[i]
		if curve.Min == nil || p.Mean < curve.Min.Mean {
			curve.Min = &p
		}
		if curve.Max == nil || p.Mean > curve.Max.Mean {
			curve.Max = &p
		}
	}
	return curve
}

// HeatmapCell is the mean salary for one country and education level.
// Combinations without respondents are omitted.
type HeatmapCell struct {
	Country        string  `json:"country"`
	EducationLevel string  `json:"education_level"`
	Count          int     `json:"count"`
	Mean           float64 `json:"mean"`
}

// HeatmapGrid is the country by education pivot of mean salary.
type HeatmapGrid struct {
	Countries       []string      `json:"countries"`
	EducationLevels []string      `json:"education_levels"`
	Cells           []HeatmapCell `json:"cells"`
}

// Heatmap pivots mean salary by country (rows) and education level (columns).
func Heatmap(t *dataset.Table) HeatmapGrid {
	type cellKey struct{ country, education string }
	buckets := make(map[cellKey][]float64)
	t.Each(func(r dataset.Record) {
		k := cellKey{r.Country, r.EducationLevel}
		buckets[k] = append(buckets[k], r.Salary)
	})
	grid := HeatmapGrid{
		Countries:       t.Countries(),
		EducationLevels: t.EducationLevels(),
		Cells:           make([]HeatmapCell, 0, len(buckets)),
	}
	for _, c := range grid.Countries {
		for _, ed := range grid.EducationLevels {
			v, ok := buckets[cellKey{c, ed}]
			if !ok {
				continue
			}
			grid.Cells = append(grid.Cells, HeatmapCell{Country: c, EducationLevel: ed, Count: len(v), Mean: mean(v)})
		}
	}
	return grid
}

// Filter restricts a view to the listed countries and education levels.
// An empty list selects everything.
type Filter struct {
	Countries       []string `json:"countries,omitempty"`
	EducationLevels []string `json:"education_levels,omitempty"`
}

func (f Filter) keep() func(dataset.Record) bool {
	countries := toSet(f.Countries)
	educations := toSet(f.EducationLevels)
	return func(r dataset.Record) bool {
		if countries != nil && !countries[r.Country] {
			return false
		}
		if educations != nil && !educations[r.EducationLevel] {
			return false
		}
		return true
	}
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// Bin is one histogram bucket covering [Lower, Upper). The last bin also
// includes its upper edge.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// SalaryHistogram is the salary distribution of the filtered records.
type SalaryHistogram struct {
	Filter Filter `json:"filter"`
	Total  int    `json:"total"`
	Bins   []Bin  `json:"bins"`
}

// Histogram buckets the salaries of the filtered records into bins of equal
// width spanning [min, max]. bins <= 0 selects DefaultHistogramBins.
func Histogram(t *dataset.Table, f Filter, bins int) (SalaryHistogram, error) {
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	if bins > 1000 {
		return SalaryHistogram{}, fmt.Errorf("%w: at most 1000 bins, got %d", apperrors.ErrInvalidInput, bins)
	}
	records := t.Filter(f.keep())
	h := SalaryHistogram{Filter: f, Total: len(records), Bins: []Bin{}}
	if len(records) == 0 {
		return h, nil
	}
	lo, hi := records[0].Salary, records[0].Salary
	for _, r := range records {
		lo = math.Min(lo, r.Salary)
		hi = math.Max(hi, r.Salary)
	}
	if hi == lo {
		h.Bins = []Bin{{Lower: lo, Upper: hi, Count: len(records)}}
		return h, nil
	}
	width := (hi - lo) / float64(bins)
	h.Bins = make([]Bin, bins)
	for i := range h.Bins {
		h.Bins[i] = Bin{Lower: lo + float64(i)*width, Upper: lo + float64(i+1)*width}
	}
	h.Bins[bins-1].Upper = hi
	for _, r := range records {
		i := int((r.Salary - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		h.Bins[i].Count++
	}
	return h, nil
}

// Grouping selects the category a box plot splits on.
type Grouping string

const (
	ByCountry   Grouping = "country"
	ByEducation Grouping = "education"
)

// ParseGrouping accepts "country" or "education".
func ParseGrouping(s string) (Grouping, error) {
	switch Grouping(s) {
	case ByCountry, ByEducation:
		return Grouping(s), nil
	case "":
		return ByCountry, nil
	default:
		return "", fmt.Errorf("%w: unknown grouping %q", apperrors.ErrInvalidInput, s)
	}
}

func (g Grouping) key(r dataset.Record) string {
	if g == ByEducation {
		return r.EducationLevel
	}
	return r.Country
}

// Box is the five-number summary of one group with Tukey whiskers and a
// notch around the median.
type Box struct {
	Group        string    `json:"group"`
	Count        int       `json:"count"`
	Q1           float64   `json:"q1"`
	Median       float64   `json:"median"`
	Q3           float64   `json:"q3"`
	LowerWhisker float64   `json:"lower_whisker"`
	UpperWhisker float64   `json:"upper_whisker"`
	NotchLow     float64   `json:"notch_low"`
	NotchHigh    float64   `json:"notch_high"`
	Outliers     []float64 `json:"outliers"`
}

// BoxPlot computes one box per group of the filtered records, ordered by
// group name. Whiskers reach the most extreme values within 1.5 IQR of the
// quartiles; everything beyond is an outlier.
func BoxPlot(t *dataset.Table, g Grouping, f Filter) []Box {
	buckets := make(map[string][]float64)
	for _, r := range t.Filter(f.keep()) {
		k := g.key(r)
		buckets[k] = append(buckets[k], r.Salary)
	}
	names := make([]string, 0, len(buckets))
	for k := range buckets {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]Box, 0, len(names))
	for _, name := range names {
		out = append(out, box(name, buckets[name]))
	}
	return out
}

func box(name string, values []float64) Box {
	s := sortedCopy(values)
	b := Box{
		Group:    name,
		Count:    len(s),
		Q1:       quantile(s, 0.25),
		Median:   quantile(s, 0.5),
		Q3:       quantile(s, 0.75),
		Outliers: []float64{},
	}
	iqr := b.Q3 - b.Q1
	lowFence, highFence := b.Q1-1.5*iqr, b.Q3+1.5*iqr
	b.LowerWhisker, b.UpperWhisker = b.Q1, b.Q3
	for _, v := range s {
		if v < lowFence || v > highFence {
			b.Outliers = append(b.Outliers, v)
			continue
		}
		if v < b.LowerWhisker {
			b.LowerWhisker = v
		}
		if v > b.UpperWhisker {
			b.UpperWhisker = v
		}
	}
	half := 1.57 * iqr / math.Sqrt(float64(len(s)))
	b.NotchLow, b.NotchHigh = b.Median-half, b.Median+half
	return b
}

// Bubble is the number of respondents sharing one (years, salary, country).
type Bubble struct {
	YearsExperience int     `json:"years_experience"`
	Salary          float64 `json:"salary"`
	Country         string  `json:"country"`
	Count           int     `json:"count"`
}

// Bubbles counts respondents per (years, salary, country) over the filtered
// records, ordered by years, salary and country.
func Bubbles(t *dataset.Table, f Filter) []Bubble {
	type bubbleKey struct {
		years   int
		salary  float64
		country string
	}
	counts := make(map[bubbleKey]int)
	for _, r := range t.Filter(f.keep()) {
		counts[bubbleKey{r.YearsExperience, r.Salary, r.Country}]++
	}
	out := make([]Bubble, 0, len(counts))
	for k, n := range counts {
		out = append(out, Bubble{YearsExperience: k.years, Salary: k.salary, Country: k.country, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.YearsExperience != b.YearsExperience {
			return a.YearsExperience < b.YearsExperience
		}
		if a.Salary != b.Salary {
			return a.Salary < b.Salary
		}
		return a.Country < b.Country
	})
	return out
}
