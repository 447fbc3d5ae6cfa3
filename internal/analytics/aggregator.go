package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hrdatainsights/salary-platform/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalQueries       int64            `json:"total_queries"`
	ByType             map[string]int64 `json:"by_type"`
	FailedQueries      int64            `json:"failed_queries"`
	CountryFallbacks   int64            `json:"country_fallbacks"`
	EducationFallbacks int64            `json:"education_fallbacks"`
	FallbackRate       float64          `json:"fallback_rate"`
	NoDataLookups      int64            `json:"no_data_lookups"`
	NoDataRate         float64          `json:"no_data_rate"`
	AvgLatencyUs       float64          `json:"avg_latency_us"`
	P50LatencyUs       int64            `json:"p50_latency_us"`
	P95LatencyUs       int64            `json:"p95_latency_us"`
	P99LatencyUs       int64            `json:"p99_latency_us"`
	TopCountries       []LabelCount     `json:"top_countries"`
	TopEducation       []LabelCount     `json:"top_education_levels"`
	QueriesPerMinute   float64          `json:"queries_per_minute"`
}

type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// Consumer is the subset of kafka.Consumer the aggregator drives.
type Consumer interface {
	Start(ctx context.Context) error
}

type Aggregator struct {
	mu             sync.RWMutex
	total          int64
	byType         map[string]int64
	failed         int64
	countryFB      int64
	educationFB    int64
	anyFallback    int64
	lookups        int64
	noData         int64
	latencies      []int64
	next           int
	countryCounts  map[string]int64
	educationCount map[string]int64
	startTime      time.Time
	logger         *slog.Logger
}

// NewAggregator creates an empty aggregator. Events arrive through a
// consumer passed to Start, or directly through Record.
func NewAggregator() *Aggregator {
	return &Aggregator{
		byType:         make(map[string]int64),
		latencies:      make([]int64, 0, 1024),
		countryCounts:  make(map[string]int64),
		educationCount: make(map[string]int64),
		startTime:      time.Now(),
		logger:         slog.Default().With("component", "analytics-aggregator"),
	}
}

// Start drives consumer until ctx is cancelled. The consumer's handler is
// expected to be HandleEvent(a).
func (a *Aggregator) Start(ctx context.Context, consumer Consumer) error {
	a.logger.Info("analytics aggregator starting")
	return consumer.Start(ctx)
}

// HandleEvent decodes prediction events for the Kafka consumer. Undecodable
// messages are logged and acknowledged so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[PredictionEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode prediction event", "key", string(key), "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Track records event without a broker round trip, for single-process
// deployments where Kafka is disabled.
func (a *Aggregator) Track(event PredictionEvent) {
	a.Record(event)
}

// Record folds one event into the running statistics.
func (a *Aggregator) Record(event PredictionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.byType[string(event.Type)]++
	if event.Failed {
		a.failed++
		return
	}
	if event.CountryFallback {
		a.countryFB++
	}
	if event.EducationFallback {
		a.educationFB++
	}
	if event.CountryFallback || event.EducationFallback {
		a.anyFallback++
	}
	if event.Type != EventPredict {
		a.lookups++
		if event.NoData {
			a.noData++
		}
	}

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyUs)
	} else {
		a.latencies[a.next] = event.LatencyUs
		a.next = (a.next + 1) % maxLatencySamples
	}
	if event.ResolvedCountry != "" {
		a.countryCounts[event.ResolvedCountry]++
	}
	if event.ResolvedEducation != "" {
		a.educationCount[event.ResolvedEducation]++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQueries:       a.total,
		ByType:             make(map[string]int64, len(a.byType)),
		FailedQueries:      a.failed,
		CountryFallbacks:   a.countryFB,
		EducationFallbacks: a.educationFB,
		NoDataLookups:      a.noData,
	}
	for k, v := range a.byType {
		stats.ByType[k] = v
	}
	if served := a.total - a.failed; served > 0 {
		stats.FallbackRate = float64(a.anyFallback) / float64(served)
	}
	if a.lookups > 0 {
		stats.NoDataRate = float64(a.noData) / float64(a.lookups)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyUs = float64(sum) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	stats.TopCountries = topN(a.countryCounts, 10)
	stats.TopEducation = topN(a.educationCount, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []LabelCount {
	result := make([]LabelCount, 0, len(counts))
	for label, count := range counts {
		result = append(result, LabelCount{Label: label, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Label < result[j].Label
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
