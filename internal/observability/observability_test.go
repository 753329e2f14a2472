package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// TestNewMetricsConcurrency verifies that NewMetrics can be called
// concurrently without causing race conditions
func TestNewMetricsConcurrency(t *testing.T) {
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for range numGoroutines {
		go func() {
			defer wg.Done()

			metrics, err := NewMetrics()
			if err != nil {
				t.Errorf("NewMetrics failed: %v", err)
				return
			}
			if metrics == nil {
				t.Error("NewMetrics returned nil")
				return
			}

			if metrics.registry == nil {
				t.Error("metrics.registry is nil")
			}
			if metrics.HTTP == nil {
				t.Error("metrics.HTTP is nil")
			}
			if metrics.Journal == nil {
				t.Error("metrics.Journal is nil")
			}
		}()
	}

	wg.Wait()
}

// TestMetricsExposition records a request and store counts, then scrapes
// the handler and checks both collectors show up in the exposition.
func TestMetricsExposition(t *testing.T) {
	metrics, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	metrics.HTTP.RecordRequest("GET", 200, 0.004)
	metrics.Journal.SetCounts(12, 40, 9)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("scrape returned status %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("reading scrape body: %v", err)
	}

	for _, want := range []string{
		`http_requests_total{code="200",method="GET"} 1`,
		`http_request_duration_seconds_count{method="GET"} 1`,
		"journal_sightings_total 12",
		"journal_quick_logged_total 40",
		"journal_species_total 9",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

// TestMetricsRegistriesAreIndependent guards against accidental use of the
// global default registry, which would make two servers in one process
// collide on registration.
func TestMetricsRegistriesAreIndependent(t *testing.T) {
	first, err := NewMetrics()
	if err != nil {
		t.Fatalf("first NewMetrics failed: %v", err)
	}
	second, err := NewMetrics()
	if err != nil {
		t.Fatalf("second NewMetrics failed: %v", err)
	}

	first.HTTP.RecordRequest("GET", 200, 0.001)

	rec := httptest.NewRecorder()
	second.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if strings.Contains(string(body), `http_requests_total{code="200",method="GET"} 1`) {
		t.Error("second registry saw the first registry's request count")
	}
}
