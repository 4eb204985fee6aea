package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pzhenzhou/respd/pkg/common"

	"github.com/gin-gonic/gin"
	gometrics "github.com/hashicorp/go-metrics"
	"github.com/hashicorp/go-metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ExposeMetricSink string

const (
	InMemorySink    ExposeMetricSink = "in-memory"
	PrometheusSink  ExposeMetricSink = "prometheus"
	AllMetricsSink  ExposeMetricSink = "all"
	ExposeMetricURL                  = "/metrics"
)

var (
	logger = common.InitLogger().WithName("respd-metrics")

	instance      ServerMetricsCollector
	collectorOnce sync.Once
)

// ServerMetricsCollector defines the interface for collecting metrics
type ServerMetricsCollector interface {
	// RecordDecodeLatency records how long decoding one chunk took, labelled by the outcome kind
	RecordDecodeLatency(kind string, duration time.Duration)

	// RecordOverallLatency records the latency of a whole traffic event (read, decode, reply)
	RecordOverallLatency(duration time.Duration)

	// IncrementActiveConnections Concurrency metrics
	IncrementActiveConnections()
	DecrementActiveConnections()

	// IncrementDecodeCounter counts decoded values per value kind
	IncrementDecodeCounter(kind string)
	// IncrementCounter Generic counter metrics
	IncrementCounter(label string)
	// AddBytes adds n to the byte counter of the given direction ("in" or "out")
	AddBytes(direction string, n int)

	// IncrementErrorCounter Error metrics
	IncrementErrorCounter(errorType string)

	// Shutdown the metrics collector
	Shutdown()

	// Handler returns a Gin handler function for exposing metrics
	Handler() gin.HandlerFunc
}

// Config holds configuration for metrics
type Config struct {
	// Metrics prefix for namespacing
	ServiceName string

	// Time interval for in-memory metrics aggregation
	AggregationInterval time.Duration

	// Retention period for metrics
	RetentionPeriod time.Duration

	// ExposeSink determines which metrics sink to expose
	ExposeSink ExposeMetricSink

	// MetricsEndpoint is the HTTP path for metrics
	MetricsEndpoint string
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		AggregationInterval: 5 * time.Second,
		RetentionPeriod:     10 * time.Minute,
		MetricsEndpoint:     ExposeMetricURL,
		ExposeSink:          InMemorySink,
	}
}

func newPrometheusSink() (*prometheus.PrometheusSink, error) {
	// Create a new Prometheus sink
	promSink, err := prometheus.NewPrometheusSink()
	if err != nil {
		return nil, err
	}
	return promSink, nil
}

func newInMemSink(config *Config) *gometrics.InmemSink {
	return gometrics.NewInmemSink(
		config.AggregationInterval,
		config.RetentionPeriod,
	)
}

// ConfigFromServer maps the command line metrics options onto a collector Config.
func ConfigFromServer(serviceName string, cfg *common.MetricsConfig) *Config {
	config := DefaultConfig()
	config.ServiceName = serviceName
	config.ExposeSink = ExposeMetricSink(cfg.MetricsSinkType)
	if cfg.MetricsPath != "" {
		config.MetricsEndpoint = cfg.MetricsPath
	}
	return config
}

// NewMetricsCollector returns the process wide collector, creating it from config
// on the first call. Later calls ignore config.
func NewMetricsCollector(config *Config) (ServerMetricsCollector, error) {
	var initErr error
	collectorOnce.Do(func() {
		var c *hashicorpMetricsCollector
		c, initErr = newCollector(config)
		if initErr != nil {
			return
		}
		instance = c
		logger.Info("Metrics collector initialized",
			"serviceName", c.serviceName,
			"sink", c.exposeSink,
			"endpoint", c.metricsEndpoint)
	})
	return instance, initErr
}

func newCollector(config *Config) (*hashicorpMetricsCollector, error) {
	if config == nil {
		config = DefaultConfig()
	}
	metricsConf := gometrics.DefaultConfig(config.ServiceName)
	metricsConf.EnableHostname = false
	// Create a fanout sink that will send metrics to multiple sinks if needed
	sink := &fanoutSink{sinks: make([]gometrics.MetricSink, 0)}
	var inm *gometrics.InmemSink
	var promSink *prometheus.PrometheusSink
	var err error
	switch config.ExposeSink {
	case InMemorySink:
		inm = newInMemSink(config)
		sink.sinks = append(sink.sinks, inm)
	case PrometheusSink:
		promSink, err = newPrometheusSink()
		if err != nil {
			return nil, err
		}
		sink.sinks = append(sink.sinks, promSink)
	case AllMetricsSink:
		inm = newInMemSink(config)
		promSink, err = newPrometheusSink()
		if err != nil {
			return nil, err
		}
		sink.sinks = append(sink.sinks, inm, promSink)
	default:
		return nil, fmt.Errorf("unknown metrics sink: %s", config.ExposeSink)
	}

	metricsImpl, err := gometrics.New(metricsConf, sink)
	if err != nil {
		return nil, err
	}
	return &hashicorpMetricsCollector{
		metrics:          metricsImpl,
		inm:              inm,
		promSink:         promSink,
		exposeSink:       config.ExposeSink,
		metricsEndpoint:  config.MetricsEndpoint,
		serviceName:      config.ServiceName,
		serviceLabel:     gometrics.Label{Name: "service", Value: config.ServiceName},
		kindLabelPrefix:  "kind",
		errorLabelPrefix: "type",
	}, nil
}

// hashicorpMetricsCollector implements ServerMetricsCollector using hashicorp/go-metrics
type hashicorpMetricsCollector struct {
	metrics         *gometrics.Metrics
	inm             *gometrics.InmemSink
	promSink        *prometheus.PrometheusSink
	exposeSink      ExposeMetricSink
	metricsEndpoint string
	serviceName     string

	activeConns atomic.Int64

	// Pre-created labels for better performance
	serviceLabel     gometrics.Label
	kindLabelPrefix  string
	errorLabelPrefix string
}

// labels builds a fresh label slice for every call. The in-memory sink keeps the
// slice it is given, so it must not be shared or reused.
func (h *hashicorpMetricsCollector) labels(extra ...gometrics.Label) []gometrics.Label {
	labels := make([]gometrics.Label, 0, len(extra)+1)
	labels = append(labels, h.serviceLabel)
	return append(labels, extra...)
}

// RecordDecodeLatency records the time spent decoding one chunk
func (h *hashicorpMetricsCollector) RecordDecodeLatency(kind string, duration time.Duration) {
	labels := h.labels(gometrics.Label{Name: h.kindLabelPrefix, Value: kind})

	h.metrics.AddSampleWithLabels([]string{"decode", "latency"}, float32(duration.Microseconds()), labels)
}

// RecordOverallLatency records the latency of a traffic event across all connections
func (h *hashicorpMetricsCollector) RecordOverallLatency(duration time.Duration) {
	labels := h.labels()

	h.metrics.AddSampleWithLabels([]string{"overall", "traffic_latency"}, float32(duration.Microseconds()), labels)
}

// IncrementActiveConnections raises the active connections gauge
func (h *hashicorpMetricsCollector) IncrementActiveConnections() {
	h.setActiveConnections(h.activeConns.Add(1))
}

// DecrementActiveConnections lowers the active connections gauge
func (h *hashicorpMetricsCollector) DecrementActiveConnections() {
	h.setActiveConnections(h.activeConns.Add(-1))
}

func (h *hashicorpMetricsCollector) setActiveConnections(n int64) {
	labels := h.labels()

	h.metrics.SetGaugeWithLabels([]string{"connections", "active"}, float32(n), labels)
}

// IncrementDecodeCounter increments the counter for a decoded value kind
func (h *hashicorpMetricsCollector) IncrementDecodeCounter(kind string) {
	labels := h.labels(gometrics.Label{Name: h.kindLabelPrefix, Value: kind})

	h.metrics.IncrCounterWithLabels([]string{"decode", "count"}, 1, labels)
}

// AddBytes adds to the byte counter of one traffic direction
func (h *hashicorpMetricsCollector) AddBytes(direction string, n int) {
	labels := h.labels(gometrics.Label{Name: "direction", Value: direction})

	h.metrics.IncrCounterWithLabels([]string{"traffic", "bytes"}, float32(n), labels)
}

// IncrementCounter increments a counter with a custom label
func (h *hashicorpMetricsCollector) IncrementCounter(label string) {
	labels := h.labels()

	h.metrics.IncrCounterWithLabels([]string{label, "count"}, 1, labels)
}

// IncrementErrorCounter increments the counter for a specific error type
func (h *hashicorpMetricsCollector) IncrementErrorCounter(errorType string) {
	labels := h.labels(gometrics.Label{Name: h.errorLabelPrefix, Value: errorType})

	h.metrics.IncrCounterWithLabels([]string{"errors"}, 1, labels)
}

// CollectorHandler returns an HTTP handler for metrics based on the configured sink
func (h *hashicorpMetricsCollector) CollectorHandler() http.Handler {
	logger.Info("Creating metrics handler", "sink", h.exposeSink)
	switch h.exposeSink {
	case PrometheusSink:
		return promHandler()
	case InMemorySink:
		return h.InMemoryHandler()
	case AllMetricsSink:
		return promHandler()
	default:
		return http.NotFoundHandler()
	}
}

// InMemoryHandler returns an HTTP handler for in-memory metrics
func (h *hashicorpMetricsCollector) InMemoryHandler() http.Handler {
	if h.inm == nil {
		logger.Error(nil, "In-memory sink is nil, cannot serve metrics")
		return http.NotFoundHandler()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// DisplayMetrics returns the summary instead of writing it
		data, err := h.inm.DisplayMetrics(w, r)
		if err != nil {
			logger.Error(err, "Failed to display metrics")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if data == nil {
			_, _ = w.Write([]byte("{}"))
			return
		}
		jsonData, err := json.Marshal(data)
		if err != nil {
			logger.Error(err, "Failed to marshal metrics data to JSON")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(jsonData)
	})
}

// fanoutSink implements a sink that forwards to multiple sinks
type fanoutSink struct {
	sinks []gometrics.MetricSink
}

func (f *fanoutSink) SetGauge(key []string, val float32) {
	for _, s := range f.sinks {
		s.SetGauge(key, val)
	}
}

func (f *fanoutSink) SetGaugeWithLabels(key []string, val float32, labels []gometrics.Label) {
	for _, s := range f.sinks {
		s.SetGaugeWithLabels(key, val, labels)
	}
}

func (f *fanoutSink) EmitKey(key []string, val float32) {
	for _, s := range f.sinks {
		s.EmitKey(key, val)
	}
}

func (f *fanoutSink) IncrCounter(key []string, val float32) {
	for _, s := range f.sinks {
		s.IncrCounter(key, val)
	}
}

func (f *fanoutSink) IncrCounterWithLabels(key []string, val float32, labels []gometrics.Label) {
	for _, s := range f.sinks {
		s.IncrCounterWithLabels(key, val, labels)
	}
}

func (f *fanoutSink) AddSample(key []string, val float32) {
	for _, s := range f.sinks {
		s.AddSample(key, val)
	}
}

func (f *fanoutSink) AddSampleWithLabels(key []string, val float32, labels []gometrics.Label) {
	for _, s := range f.sinks {
		s.AddSampleWithLabels(key, val, labels)
	}
}

// promHandler returns the Prometheus HTTP handler. The go-metrics prometheus
// sink registers its collector with the default registry.
func promHandler() http.Handler {
	return promhttp.Handler()
}

// Shutdown stops the metrics collector
func (h *hashicorpMetricsCollector) Shutdown() {
	h.metrics.Shutdown()
}

// Handler returns a Gin handler function for exposing metrics
func (h *hashicorpMetricsCollector) Handler() gin.HandlerFunc {
	handler := h.CollectorHandler()
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}
