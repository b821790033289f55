package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics tracks the scheduling and persistence side of the engine.
type EngineMetrics struct {
	intentsScheduled *prometheus.CounterVec
	intentsCanceled  *prometheus.CounterVec
	portFailures     *prometheus.CounterVec
	persistFailures  prometheus.Counter
	monitoredRegions prometheus.Gauge
	proximityAlerts  *prometheus.CounterVec
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	intentsScheduled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dontforget",
		Name:      "notification_intents_scheduled",
		Help:      "Notification intents handed to the delivery port.",
	}, []string{"kind"})
	intentsCanceled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dontforget",
		Name:      "notification_intents_canceled",
		Help:      "Notification intents canceled at the delivery port.",
	}, []string{"kind"})
	portFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dontforget",
		Name:      "port_failures",
		Help:      "Failed calls to an outbound port.",
	}, []string{"port"})
	persistFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dontforget",
		Name:      "persist_failures",
		Help:      "Snapshot writes that did not reach the datastore.",
	})
	monitoredRegions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dontforget",
		Name:      "monitored_regions",
		Help:      "Regions currently registered with the geofence port.",
	})
	proximityAlerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dontforget",
		Name:      "proximity_alerts",
		Help:      "Proximity alerts emitted, by debounce outcome.",
	}, []string{"outcome"})
	reg.MustRegister(intentsScheduled, intentsCanceled, portFailures, persistFailures, monitoredRegions, proximityAlerts)
	return &EngineMetrics{
		intentsScheduled: intentsScheduled,
		intentsCanceled:  intentsCanceled,
		portFailures:     portFailures,
		persistFailures:  persistFailures,
		monitoredRegions: monitoredRegions,
		proximityAlerts:  proximityAlerts,
	}
}

// IncScheduled increments the scheduled counter for the intent kind.
func (m *EngineMetrics) IncScheduled(kind string) {
	if m == nil || m.intentsScheduled == nil {
		return
	}
	m.intentsScheduled.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncCanceled increments the canceled counter for the intent kind.
func (m *EngineMetrics) IncCanceled(kind string) {
	if m == nil || m.intentsCanceled == nil {
		return
	}
	m.intentsCanceled.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncPortFailure increments the failure counter for the named port.
func (m *EngineMetrics) IncPortFailure(port string) {
	if m == nil || m.portFailures == nil {
		return
	}
	m.portFailures.WithLabelValues(normalizeLabel(port)).Inc()
}

// IncPersistFailure counts a snapshot write that failed.
func (m *EngineMetrics) IncPersistFailure() {
	if m == nil || m.persistFailures == nil {
		return
	}
	m.persistFailures.Inc()
}

// SetMonitoredRegions records the current region count.
func (m *EngineMetrics) SetMonitoredRegions(n int) {
	if m == nil || m.monitoredRegions == nil {
		return
	}
	m.monitoredRegions.Set(float64(n))
}

// IncProximityAlert counts a proximity alert by debounce outcome.
func (m *EngineMetrics) IncProximityAlert(outcome string) {
	if m == nil || m.proximityAlerts == nil {
		return
	}
	m.proximityAlerts.WithLabelValues(normalizeLabel(outcome)).Inc()
}
