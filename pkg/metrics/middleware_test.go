package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/gnet/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pzhenzhou/respd/pkg/common"
	"github.com/pzhenzhou/respd/pkg/respio"
)

type recordingCollector struct {
	mu         sync.Mutex
	counters   map[string]int
	decodes    map[string]int
	errors     map[string]int
	bytes      map[string]int
	latencies  []string
	active     int
	trafficObs int
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{
		counters: map[string]int{},
		decodes:  map[string]int{},
		errors:   map[string]int{},
		bytes:    map[string]int{},
	}
}

func (r *recordingCollector) RecordDecodeLatency(kind string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencies = append(r.latencies, kind)
}

func (r *recordingCollector) RecordOverallLatency(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trafficObs++
}

func (r *recordingCollector) IncrementActiveConnections() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active++
}

func (r *recordingCollector) DecrementActiveConnections() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active--
}

func (r *recordingCollector) IncrementDecodeCounter(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decodes[kind]++
}

func (r *recordingCollector) IncrementCounter(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[label]++
}

func (r *recordingCollector) AddBytes(direction string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bytes[direction] += n
}

func (r *recordingCollector) IncrementErrorCounter(errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[errorType]++
}

func (r *recordingCollector) Shutdown() {}

func (r *recordingCollector) Handler() gin.HandlerFunc {
	return func(c *gin.Context) { c.Status(http.StatusOK) }
}

var _ ServerMetricsCollector = (*recordingCollector)(nil)

func TestServerMetricsMiddleWare_WrapDecode(t *testing.T) {
	collector := newRecordingCollector()
	m := NewServerMetricsMiddleware(collector)

	inputs := []string{"+OK\r\n", ":1\r\n", ":2\r\n", "*1\r\n", "+OK\n"}
	for _, in := range inputs {
		_, _ = m.WrapDecode(func() (respio.Value, error) {
			return respio.DecodeOne([]byte(in))
		})
	}

	assert.Equal(t, 1, collector.decodes["simple_string"])
	assert.Equal(t, 2, collector.decodes["integer"])
	assert.Equal(t, 1, collector.errors["decode_unsupported_type"])
	assert.Equal(t, 1, collector.errors["decode_bad_termination"])
	assert.Len(t, collector.latencies, len(inputs))
}

func TestServerMetricsMiddleWare_Traffic(t *testing.T) {
	collector := newRecordingCollector()
	m := NewServerMetricsMiddleware(collector)

	m.OnConnectionOpen()
	m.OnConnectionOpen()
	m.OnConnectionClose()
	m.TrackRead(12)
	m.TrackRead(30)
	m.TrackReply(7)
	action := m.WrapTraffic(func() gnet.Action { return gnet.Close })

	assert.Equal(t, gnet.Close, action)
	assert.Equal(t, 1, collector.active)
	assert.Equal(t, 2, collector.counters["connections_accepted"])
	assert.Equal(t, 2, collector.counters["reads"])
	assert.Equal(t, 42, collector.bytes["in"])
	assert.Equal(t, 7, collector.bytes["out"])
	assert.Equal(t, 1, collector.trafficObs)
}

func TestInMemoryCollector_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	collector, err := newCollector(ConfigFromServer("respd_test", &common.MetricsConfig{
		MetricsSinkType: string(InMemorySink),
	}))
	require.NoError(t, err)
	defer collector.Shutdown()

	collector.IncrementActiveConnections()
	collector.IncrementDecodeCounter("integer")
	collector.RecordDecodeLatency("integer", time.Millisecond)

	r := gin.New()
	r.GET(ExposeMetricURL, collector.Handler())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ExposeMetricURL, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "decode.count")
}

func TestInMemoryCollector_KeepsLabelsPerKind(t *testing.T) {
	collector, err := newCollector(ConfigFromServer("respd_test", &common.MetricsConfig{
		MetricsSinkType: string(InMemorySink),
	}))
	require.NoError(t, err)
	defer collector.Shutdown()

	collector.IncrementDecodeCounter("simple_string")
	collector.IncrementDecodeCounter("integer")
	collector.IncrementDecodeCounter("simple_string")
	collector.IncrementErrorCounter("bad_termination")

	counts := map[string]int{}
	for _, interval := range collector.inm.Data() {
		for _, sv := range interval.Counters {
			if !strings.HasSuffix(sv.Name, "decode.count") {
				continue
			}
			var kind string
			for _, label := range sv.Labels {
				if label.Name == "kind" {
					kind = label.Value
				}
			}
			counts[kind] += sv.Count
		}
	}
	assert.Equal(t, map[string]int{"simple_string": 2, "integer": 1}, counts)
}

func TestNewCollector_UnknownSink(t *testing.T) {
	_, err := newCollector(&Config{ServiceName: "x", ExposeSink: "statsd"})
	assert.Error(t, err)
}
