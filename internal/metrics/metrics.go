package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LevelSwitchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statmap_level_switches_total",
		Help: "Admin level switches by target level",
	}, []string{"level"})
	MetricActivationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statmap_metric_activations_total",
		Help: "Metric activations by metric id",
	}, []string{"metric"})
	SelectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statmap_selections_total",
		Help: "Feature clicks by layer",
	}, []string{"layer"})
	ChartFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "statmap_chart_failures_total",
		Help: "Chart bindings that failed and left the chart unchanged",
	})
	RegistryLoadFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "statmap_registry_load_failures_total",
		Help: "Manufacturer registry loads that fell back to an empty registry",
	})
	LayerLoadFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statmap_layer_load_failures_total",
		Help: "GeoJSON layers that failed to load",
	}, []string{"layer"})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "statmap_sessions_active",
		Help: "Live dashboard sessions",
	})
	SessionsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "statmap_sessions_created_total",
		Help: "Dashboard sessions created",
	})
	IngestObservationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statmap_ingest_observations_total",
		Help: "Observations staged by ingest, by key prefix",
	}, []string{"prefix"})
)

func init() {
	prometheus.MustRegister(LevelSwitchesTotal)
	prometheus.MustRegister(MetricActivationsTotal)
	prometheus.MustRegister(SelectionsTotal)
	prometheus.MustRegister(ChartFailuresTotal)
	prometheus.MustRegister(RegistryLoadFailuresTotal)
	prometheus.MustRegister(LayerLoadFailuresTotal)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(SessionsCreatedTotal)
	prometheus.MustRegister(IngestObservationsTotal)
}

// Handler exposes the registered metrics for scraping at /metrics.
func Handler() http.Handler { return promhttp.Handler() }
