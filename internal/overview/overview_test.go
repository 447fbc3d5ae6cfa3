package overview

import (
	"errors"
	"math"
	"testing"

	"github.com/hrdatainsights/salary-platform/internal/dataset"
	apperrors "github.com/hrdatainsights/salary-platform/pkg/errors"
)

func sampleTable() *dataset.Table {
	return dataset.NewTable([]dataset.Record{
		{Country: "Germany", EducationLevel: "Master's degree", YearsExperience: 2, Salary: 50000},
		{Country: "Germany", EducationLevel: "Bachelor's degree", YearsExperience: 4, Salary: 70000},
		{Country: "Spain", EducationLevel: "Bachelor's degree", YearsExperience: 2, Salary: 30000},
		{Country: "United States", EducationLevel: "Bachelor's degree", YearsExperience: 4, Salary: 110000},
		{Country: "United States", EducationLevel: "Master's degree", YearsExperience: 6, Salary: 130000},
		{Country: "United States", EducationLevel: "Master's degree", YearsExperience: 6, Salary: 130000},
	})
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSummary(t *testing.T) {
	s := Summary(sampleTable())
	if s.Records != 6 || s.Salary.Count != 6 {
		t.Fatalf("counts = %d/%d", s.Records, s.Salary.Count)
	}
	if s.Salary.Min != 30000 || s.Salary.Max != 130000 {
		t.Errorf("min/max = %v/%v", s.Salary.Min, s.Salary.Max)
	}
	if !approx(s.Salary.Mean, 520000.0/6) {
		t.Errorf("mean = %v", s.Salary.Mean)
	}
	// sorted: 30k 50k 70k 110k 130k 130k; 25% at position 1.25.
	if !approx(s.Salary.P25, 55000) || !approx(s.Salary.P50, 90000) || !approx(s.Salary.P75, 125000) {
		t.Errorf("quartiles = %v %v %v", s.Salary.P25, s.Salary.P50, s.Salary.P75)
	}
	if s.Salary.Std == nil {
		t.Error("std should be defined")
	}
	if s.YearsExperience.Max != 6 {
		t.Errorf("years max = %v", s.YearsExperience.Max)
	}
}

func TestSummaryEmpty(t *testing.T) {
	s := Summary(dataset.NewTable(nil))
	if s.Records != 0 || s.Salary.Count != 0 {
		t.Errorf("empty summary = %+v", s)
	}
}

func TestCountryDistribution(t *testing.T) {
	got := CountryDistribution(sampleTable())
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Country != "United States" || got[0].Count != 3 || !approx(got[0].Percent, 50) {
		t.Errorf("first = %+v", got[0])
	}
	// Germany (2) before Spain (1).
	if got[1].Country != "Germany" || got[2].Country != "Spain" {
		t.Errorf("order = %v", got)
	}
}

func TestSalaryByCountry(t *testing.T) {
	got := SalaryByCountry(sampleTable())
	wantOrder := []string{"Spain", "Germany", "United States"}
	for i, g := range got.Groups {
		if g.Group != wantOrder[i] {
			t.Errorf("group %d = %s, want %s", i, g.Group, wantOrder[i])
		}
	}
	if got.Min.Group != "Spain" || got.Max.Group != "United States" {
		t.Errorf("extremes = %s/%s", got.Min.Group, got.Max.Group)
	}
	if !approx(got.Max.Mean, 370000.0/3) {
		t.Errorf("US mean = %v", got.Max.Mean)
	}
	if !approx(got.GlobalAverage, 520000.0/6) {
		t.Errorf("global = %v", got.GlobalAverage)
	}
}

func TestSalaryByEducation(t *testing.T) {
	got := SalaryByEducation(sampleTable())
	if len(got.Groups) != 2 || got.Groups[0].Group != "Bachelor's degree" {
		t.Errorf("groups = %+v", got.Groups)
	}
}

func TestSalaryByExperience(t *testing.T) {
	got := SalaryByExperience(sampleTable())
	if len(got.Points) != 3 {
		t.Fatalf("points = %d", len(got.Points))
	}
	// means: 2 -> 40000, 4 -> 90000, 6 -> 130000
	if got.Points[0].YearsExperience != 2 || got.Points[0].Mean != 40000 {
		t.Errorf("first point = %+v", got.Points[0])
	}
	if !approx(got.Slope, 22500) || math.Abs(got.Intercept+10000.0/3) > 1e-6 {
		t.Errorf("trend = %v x + %v", got.Slope, got.Intercept)
	}
	if !approx(got.Points[1].Trend, got.Intercept+4*got.Slope) {
		t.Errorf("trend value = %v", got.Points[1].Trend)
	}
	if got.Min.YearsExperience != 2 || got.Max.YearsExperience != 6 {
		t.Errorf("extremes at %d/%d", got.Min.YearsExperience, got.Max.YearsExperience)
	}
}

func TestHeatmap(t *testing.T) {
	got := Heatmap(sampleTable())
	if len(got.Countries) != 3 || len(got.EducationLevels) != 2 {
		t.Fatalf("axes = %v x %v", got.Countries, got.EducationLevels)
	}
	// Spain has no Master's respondents.
	if len(got.Cells) != 5 {
		t.Errorf("cells = %d, want 5", len(got.Cells))
	}
	for _, c := range got.Cells {
		if c.Country == "United States" && c.EducationLevel == "Master's degree" && (c.Count != 2 || c.Mean != 130000) {
			t.Errorf("US master's cell = %+v", c)
		}
	}
}

func TestHistogram(t *testing.T) {
	h, err := Histogram(sampleTable(), Filter{}, 10)
	if err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	if len(h.Bins) != 10 || h.Total != 6 {
		t.Fatalf("bins = %d total = %d", len(h.Bins), h.Total)
	}
	if h.Bins[0].Lower != 30000 || h.Bins[9].Upper != 130000 {
		t.Errorf("range = %v..%v", h.Bins[0].Lower, h.Bins[9].Upper)
	}
	var sum int
	for _, b := range h.Bins {
		sum += b.Count
	}
	if sum != 6 {
		t.Errorf("binned %d records, want 6", sum)
	}
	if h.Bins[9].Count != 2 {
		t.Errorf("max salary should land in last bin, got %d", h.Bins[9].Count)
	}
}

func TestHistogramFilterAndDefaults(t *testing.T) {
	h, err := Histogram(sampleTable(), Filter{Countries: []string{"Germany"}, EducationLevels: []string{"Master's degree"}}, 0)
	if err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	if h.Total != 1 || len(h.Bins) != 1 || h.Bins[0].Count != 1 {
		t.Errorf("single value histogram = %+v", h)
	}

	h, err = Histogram(sampleTable(), Filter{Countries: []string{"Atlantis"}}, 0)
	if err != nil || h.Total != 0 || len(h.Bins) != 0 {
		t.Errorf("empty histogram = %+v, %v", h, err)
	}

	h, _ = Histogram(sampleTable(), Filter{}, 0)
	if len(h.Bins) != DefaultHistogramBins {
		t.Errorf("default bins = %d", len(h.Bins))
	}

	if _, err := Histogram(sampleTable(), Filter{}, 5000); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBoxPlot(t *testing.T) {
	tbl := dataset.NewTable([]dataset.Record{
		{Country: "A", Salary: 10}, {Country: "A", Salary: 20}, {Country: "A", Salary: 30},
		{Country: "A", Salary: 40}, {Country: "A", Salary: 50}, {Country: "A", Salary: 500},
		{Country: "B", Salary: 7},
	})
	boxes := BoxPlot(tbl, ByCountry, Filter{})
	if len(boxes) != 2 || boxes[0].Group != "A" {
		t.Fatalf("boxes = %+v", boxes)
	}
	a := boxes[0]
	// sorted 10 20 30 40 50 500: q1 at 1.25 -> 22.5, median 35, q3 at 3.75 -> 47.5
	if !approx(a.Q1, 22.5) || !approx(a.Median, 35) || !approx(a.Q3, 47.5) {
		t.Errorf("quartiles = %v %v %v", a.Q1, a.Median, a.Q3)
	}
	if len(a.Outliers) != 1 || a.Outliers[0] != 500 {
		t.Errorf("outliers = %v", a.Outliers)
	}
	if a.LowerWhisker != 10 || a.UpperWhisker != 50 {
		t.Errorf("whiskers = %v..%v", a.LowerWhisker, a.UpperWhisker)
	}
	half := 1.57 * 25 / math.Sqrt(6)
	if !approx(a.NotchLow, 35-half) || !approx(a.NotchHigh, 35+half) {
		t.Errorf("notch = %v..%v", a.NotchLow, a.NotchHigh)
	}

	b := boxes[1]
	if b.Count != 1 || b.Median != 7 || b.NotchLow != 7 {
		t.Errorf("single-value box = %+v", b)
	}
}

func TestBoxPlotByEducation(t *testing.T) {
	boxes := BoxPlot(sampleTable(), ByEducation, Filter{Countries: []string{"United States"}})
	if len(boxes) != 2 {
		t.Fatalf("boxes = %d", len(boxes))
	}
	if boxes[1].Group != "Master's degree" || boxes[1].Count != 2 {
		t.Errorf("box = %+v", boxes[1])
	}
}

func TestParseGrouping(t *testing.T) {
	if g, err := ParseGrouping(""); err != nil || g != ByCountry {
		t.Errorf("default = %v, %v", g, err)
	}
	if g, err := ParseGrouping("education"); err != nil || g != ByEducation {
		t.Errorf("education = %v, %v", g, err)
	}
	if _, err := ParseGrouping("age"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBubbles(t *testing.T) {
	got := Bubbles(sampleTable(), Filter{})
	if len(got) != 5 {
		t.Fatalf("bubbles = %d, want 5", len(got))
	}
	last := got[len(got)-1]
	if last.YearsExperience != 6 || last.Salary != 130000 || last.Count != 2 {
		t.Errorf("last bubble = %+v", last)
	}
	if got[0].Salary != 30000 {
		t.Errorf("first bubble = %+v", got[0])
	}
}
