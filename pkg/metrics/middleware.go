package metrics

import (
	"time"

	"github.com/panjf2000/gnet/v2"

	"github.com/pzhenzhou/respd/pkg/respio"
)

// ServerMetricsMiddleWare provides metrics collection for the RESP server
type ServerMetricsMiddleWare struct {
	collector ServerMetricsCollector
}

// NewServerMetricsMiddleware creates a new server metrics middleware
func NewServerMetricsMiddleware(collector ServerMetricsCollector) *ServerMetricsMiddleWare {
	return &ServerMetricsMiddleWare{
		collector: collector,
	}
}

// OnConnectionOpen tracks metrics when a connection is opened
func (m *ServerMetricsMiddleWare) OnConnectionOpen() {
	m.collector.IncrementActiveConnections()
	m.collector.IncrementCounter("connections_accepted")
}

// OnConnectionClose tracks metrics when a connection is closed
func (m *ServerMetricsMiddleWare) OnConnectionClose() {
	m.collector.DecrementActiveConnections()
}

// TrackRead counts one read chunk and its size
func (m *ServerMetricsMiddleWare) TrackRead(n int) {
	m.collector.IncrementCounter("reads")
	m.collector.AddBytes("in", n)
}

// TrackReply counts the bytes of one reply
func (m *ServerMetricsMiddleWare) TrackReply(n int) {
	m.collector.AddBytes("out", n)
}

// TrackError increments the error counter for a specific error type
func (m *ServerMetricsMiddleWare) TrackError(errorType string) {
	m.collector.IncrementErrorCounter(errorType)
}

// WrapDecode wraps one decode call. Successful decodes are counted by value kind,
// failures by decode error kind.
func (m *ServerMetricsMiddleWare) WrapDecode(fn func() (respio.Value, error)) (respio.Value, error) {
	start := time.Now()
	v, err := fn()
	kind := v.Kind()
	if err != nil {
		kind = respio.ErrorKind(err)
		m.TrackError("decode_" + kind)
	} else {
		m.collector.IncrementDecodeCounter(kind)
	}
	m.collector.RecordDecodeLatency(kind, time.Since(start))
	return v, err
}

// WrapTraffic wraps the entire traffic handling process with metrics
func (m *ServerMetricsMiddleWare) WrapTraffic(fn func() gnet.Action) gnet.Action {
	start := time.Now()
	rs := fn()
	m.collector.RecordOverallLatency(time.Since(start))
	return rs
}
