// Package benchmark measures the hot paths of the estimator service on a
// synthetic survey table the size of a yearly export.
//
// Run with:
//
//	go test -bench=. -benchmem ./test/benchmark/...
package benchmark

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/hrdatainsights/salary-platform/internal/dataset"
	"github.com/hrdatainsights/salary-platform/internal/estimator"
	"github.com/hrdatainsights/salary-platform/internal/model"
	"github.com/hrdatainsights/salary-platform/internal/overview"
)

var (
	countries = []string{
		"Australia", "Brazil", "Canada", "France", "Germany", "India", "Italy",
		"Netherlands", "Other", "Poland", "Spain", "Sweden", "United Kingdom", "United States",
	}
	educations = []string{
		"Bachelor's degree", "Less than a Bachelors", "Master's degree", "Other", "Post grad",
	}
)

// syntheticTable returns n deterministic records spread over every country,
// education level and 0..50 years of experience.
func syntheticTable(n int) *dataset.Table {
	rng := rand.New(rand.NewSource(42))
	records := make([]dataset.Record, n)
	for i := range records {
		years := rng.Intn(51)
		records[i] = dataset.Record{
			Country:         countries[rng.Intn(len(countries))],
			EducationLevel:  educations[rng.Intn(len(educations))],
			YearsExperience: years,
			Salary:          float64(20000 + years*2500 + rng.Intn(40000)),
		}
	}
	return dataset.NewTable(records)
}

func newEstimator(b *testing.B, table *dataset.Table) *estimator.Estimator {
	b.Helper()
	countryEnc, err := estimator.NewCategoryEncoding("country", countries)
	if err != nil {
		b.Fatal(err)
	}
	educationEnc, err := estimator.NewCategoryEncoding("education", educations)
	if err != nil {
		b.Fatal(err)
	}
	est, err := estimator.New(estimator.Context{
		Table:      table,
		Countries:  countryEnc,
		Educations: educationEnc,
		Model:      &model.Linear{Intercept: 30000, Coefficients: []float64{800, 4000, 2100}},
		BaseYear:   2023,
	})
	if err != nil {
		b.Fatal(err)
	}
	return est
}

// BenchmarkEstimatorNew measures startup indexing for tables of varying size.
func BenchmarkEstimatorNew(b *testing.B) {
	for _, n := range []int{1000, 10000, 50000} {
		table := syntheticTable(n)
		b.Run(fmt.Sprintf("records_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				newEstimator(b, table)
			}
		})
	}
}

// BenchmarkLookupHistory measures the historical lookup with and without a
// category fallback.
func BenchmarkLookupHistory(b *testing.B) {
	est := newEstimator(b, syntheticTable(50000))
	queries := []struct {
		name string
		q    estimator.Query
	}{
		{"known", estimator.Query{Country: "Germany", EducationLevel: "Master's degree", YearsExperience: 5}},
		{"fallback", estimator.Query{Country: "Atlantis", EducationLevel: "Bachelor's degree", YearsExperience: 5}},
		{"no_data", estimator.Query{Country: "Germany", EducationLevel: "Master's degree", YearsExperience: 49}},
	}
	for _, tc := range queries {
		b.Run(tc.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := est.LookupHistory(tc.q); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkPredict measures the point estimate plus the 11-point projection.
func BenchmarkPredict(b *testing.B) {
	est := newEstimator(b, syntheticTable(10000))
	q := estimator.Query{Country: "United States", EducationLevel: "Bachelor's degree", YearsExperience: 5}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := est.Predict(q); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEstimateParallel measures the combined query under concurrent
// load, the way the HTTP server drives a shared estimator.
func BenchmarkEstimateParallel(b *testing.B) {
	est := newEstimator(b, syntheticTable(50000))
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			q := estimator.Query{
				Country:         countries[i%len(countries)],
				EducationLevel:  educations[i%len(educations)],
				YearsExperience: i % 40,
			}
			if _, err := est.Estimate(q); err != nil {
				b.Fatal(err)
			}
			i++
		}
	})
}

// BenchmarkOverview measures the uncached overview views.
func BenchmarkOverview(b *testing.B) {
	table := syntheticTable(50000)
	filter := overview.Filter{Countries: []string{"Germany", "France", "Poland"}}
	views := []struct {
		name string
		fn   func()
	}{
		{"summary", func() { overview.Summary(table) }},
		{"salary_by_country", func() { overview.SalaryByCountry(table) }},
		{"salary_by_experience", func() { overview.SalaryByExperience(table) }},
		{"heatmap", func() { overview.Heatmap(table) }},
		{"histogram", func() { overview.Histogram(table, filter, overview.DefaultHistogramBins) }},
		{"boxplot", func() { overview.BoxPlot(table, overview.ByEducation, overview.Filter{}) }},
		{"bubbles", func() { overview.Bubbles(table, filter) }},
	}
	for _, v := range views {
		b.Run(v.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				v.fn()
			}
		})
	}
}

// BenchmarkParseCSV measures loading a survey export.
func BenchmarkParseCSV(b *testing.B) {
	var buf bytes.Buffer
	buf.WriteString("Country,EdLevel,YearsCodePro,Salary\n")
	syntheticTable(10000).Each(func(r dataset.Record) {
		fmt.Fprintf(&buf, "%s,%s,%d,%.0f\n", r.Country, r.EducationLevel, r.YearsExperience, r.Salary)
	})
	data := buf.Bytes()

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, _, err := dataset.ParseCSV(bytes.NewReader(data), dataset.LoadOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}
