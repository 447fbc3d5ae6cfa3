package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hrdatainsights/salary-platform/internal/estimator"
	"github.com/hrdatainsights/salary-platform/pkg/kafka"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	calls  int
	err    error
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) count() (events, calls int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events), p.calls
}

func event(t EventType, country string, fallback, noData bool, latencyUs int64) PredictionEvent {
	return PredictionEvent{
		Type:              t,
		Country:           country,
		ResolvedCountry:   country,
		ResolvedEducation: "Bachelor's degree",
		CountryFallback:   fallback,
		NoData:            noData,
		LatencyUs:         latencyUs,
		Timestamp:         time.Now().UTC(),
	}
}

func TestCollectorFlushesOnClose(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, CollectorConfig{BufferSize: 10, BatchSize: 100, FlushInterval: time.Hour}, nil)
	c.Start(context.Background())
	for i := 0; i < 3; i++ {
		c.Track(event(EventEstimate, "Germany", false, false, 10))
	}
	c.Close()

	n, calls := pub.count()
	if n != 3 || calls != 1 {
		t.Errorf("published %d events in %d calls, want 3 in 1", n, calls)
	}
	if pub.events[0].Key != string(EventEstimate) {
		t.Errorf("key = %q", pub.events[0].Key)
	}
}

func TestCollectorBatchSize(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, CollectorConfig{BufferSize: 10, BatchSize: 2, FlushInterval: time.Hour}, nil)
	c.Start(context.Background())
	for i := 0; i < 5; i++ {
		c.Track(event(EventHistory, "Spain", false, true, 5))
	}
	c.Close()

	n, calls := pub.count()
	if n != 5 || calls != 3 {
		t.Errorf("published %d events in %d calls, want 5 in 3", n, calls)
	}
}

func TestCollectorTrackAfterClose(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, CollectorConfig{BufferSize: 10, BatchSize: 100, FlushInterval: time.Hour}, nil)
	c.Start(context.Background())
	c.Track(event(EventEstimate, "Germany", false, false, 10))
	c.Close()

	c.Track(event(EventEstimate, "Germany", false, false, 10))
	c.Close()

	if n, _ := pub.count(); n != 1 {
		t.Errorf("published %d events, want 1", n)
	}
}

func TestCollectorConcurrentTrackAndClose(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, CollectorConfig{BufferSize: 1000, BatchSize: 10, FlushInterval: time.Hour}, nil)
	c.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Track(event(EventPredict, "Spain", false, false, 5))
			}
		}()
	}
	c.Close()
	wg.Wait()

	if n, _ := pub.count(); n > 800 {
		t.Errorf("published %d events, want at most 800", n)
	}
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, CollectorConfig{BufferSize: 2, BatchSize: 10, FlushInterval: time.Hour}, nil)
	// Not started: the buffer fills and further events are dropped.
	for i := 0; i < 5; i++ {
		c.Track(event(EventPredict, "Spain", false, false, 5))
	}
	if got := len(c.eventCh); got != 2 {
		t.Errorf("buffered %d events, want 2", got)
	}
}

func TestCollectorBreakerOpens(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	c := NewCollector(pub, CollectorConfig{BufferSize: 10, BatchSize: 1, FlushInterval: time.Hour}, nil)
	c.Start(context.Background())
	for i := 0; i < 6; i++ {
		c.Track(event(EventEstimate, "Spain", false, false, 5))
	}
	c.Close()

	// Three failures trip the breaker; the rest are rejected without a call.
	if _, calls := pub.count(); calls != 3 {
		t.Errorf("publisher called %d times, want 3", calls)
	}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.Record(event(EventEstimate, "Germany", false, false, 100))
	agg.Record(event(EventEstimate, "Germany", false, true, 200))
	agg.Record(event(EventHistory, "Other", true, false, 300))
	agg.Record(event(EventPredict, "Spain", false, false, 400))
	failed := event(EventEstimate, "Spain", false, false, 50).WithError()
	agg.Record(failed)

	s := agg.Stats()
	if s.TotalQueries != 5 || s.FailedQueries != 1 {
		t.Errorf("totals = %d/%d", s.TotalQueries, s.FailedQueries)
	}
	if s.ByType["estimate"] != 3 || s.ByType["predict"] != 1 {
		t.Errorf("by type = %v", s.ByType)
	}
	if s.CountryFallbacks != 1 || s.FallbackRate != 0.25 {
		t.Errorf("fallbacks = %d rate %v", s.CountryFallbacks, s.FallbackRate)
	}
	// three lookups (two estimates, one history), one without data.
	if s.NoDataLookups != 1 || s.NoDataRate != 1.0/3 {
		t.Errorf("no data = %d rate %v", s.NoDataLookups, s.NoDataRate)
	}
	if s.AvgLatencyUs != 250 || s.P50LatencyUs != 300 || s.P99LatencyUs != 400 {
		t.Errorf("latency avg=%v p50=%v p99=%v", s.AvgLatencyUs, s.P50LatencyUs, s.P99LatencyUs)
	}
	if len(s.TopCountries) != 3 || s.TopCountries[0].Label != "Germany" || s.TopCountries[0].Count != 2 {
		t.Errorf("top countries = %v", s.TopCountries)
	}
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	value, _ := json.Marshal(event(EventEstimate, "Germany", false, false, 10))
	if err := handle(context.Background(), []byte("estimate"), value); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := handle(context.Background(), nil, []byte("{not json")); err != nil {
		t.Errorf("corrupt message should be acknowledged, got %v", err)
	}
	if got := agg.Stats().TotalQueries; got != 1 {
		t.Errorf("total = %d, want 1", got)
	}
}

func TestEventFromResults(t *testing.T) {
	q := estimator.Query{Country: "Atlantis", EducationLevel: "Bachelor's degree", YearsExperience: 5}
	e := NewEvent(EventEstimate, q, 1500*time.Microsecond, "req-1").
		WithHistory(estimator.History{Country: "Other", EducationLevel: "Bachelor's degree", Count: 0}).
		WithPrediction(estimator.Prediction{Country: "Other", EducationLevel: "Bachelor's degree", CountryFallback: true, PointEstimate: 42000})
	if !e.CountryFallback || e.EducationFallback {
		t.Errorf("fallback flags = %v/%v", e.CountryFallback, e.EducationFallback)
	}
	if !e.NoData || e.PointEstimate != 42000 || e.LatencyUs != 1500 || e.RequestID != "req-1" {
		t.Errorf("event = %+v", e)
	}
}

type fakeLister struct{ snaps []Snapshot }

func (f fakeLister) ListSnapshots(_ context.Context, limit int) ([]Snapshot, error) {
	if limit < len(f.snaps) {
		return f.snaps[:limit], nil
	}
	return f.snaps, nil
}

func TestHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Record(event(EventEstimate, "Germany", false, false, 10))
	lister := fakeLister{snaps: []Snapshot{{Stats: AggregatedStats{TotalQueries: 9}}, {}, {}}}
	h := NewHandler(agg, lister)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	var stats AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil || stats.TotalQueries != 1 {
		t.Errorf("stats = %+v, %v", stats, err)
	}

	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=2", nil))
	var body struct {
		Snapshots []Snapshot `json:"snapshots"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || len(body.Snapshots) != 2 {
		t.Errorf("snapshots = %+v, %v", body, err)
	}

	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewHandler(agg, nil).Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled status = %d", rec.Code)
	}
}
