package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// JournalMetrics exposes the journal's store sizes as gauges.
type JournalMetrics struct {
	sightingsTotal   prometheus.Gauge
	quickLoggedTotal prometheus.Gauge
	speciesTotal     prometheus.Gauge
}

// NewJournalMetrics creates and registers the journal gauges.
func NewJournalMetrics(registry *prometheus.Registry) (*JournalMetrics, error) {
	m := &JournalMetrics{
		sightingsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "journal_sightings_total",
			Help: "Number of photographed sightings in the store",
		}),
		quickLoggedTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "journal_quick_logged_total",
			Help: "Number of quick-logged observations across all days",
		}),
		speciesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "journal_species_total",
			Help: "Number of distinct species across sightings and quick logs",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// SetCounts updates all journal gauges at once.
func (m *JournalMetrics) SetCounts(sightings, quickLogged, species int) {
	m.sightingsTotal.Set(float64(sightings))
	m.quickLoggedTotal.Set(float64(quickLogged))
	m.speciesTotal.Set(float64(species))
}

// Describe implements the prometheus.Collector interface
func (m *JournalMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.sightingsTotal.Describe(ch)
	m.quickLoggedTotal.Describe(ch)
	m.speciesTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *JournalMetrics) Collect(ch chan<- prometheus.Metric) {
	m.sightingsTotal.Collect(ch)
	m.quickLoggedTotal.Collect(ch)
	m.speciesTotal.Collect(ch)
}
