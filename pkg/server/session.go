package server

import (
	"sync/atomic"
	"time"

	"github.com/panjf2000/gnet/v2"

	"github.com/pzhenzhou/respd/pkg/respio"
)

const (
	sessionWriteBufferSize = 512
)

// Session is the state kept for one client connection. It is owned by the event
// loop serving the connection; the counters are atomics because the admin API
// reads them from other goroutines.
type Session struct {
	Id         string
	RemoteAddr string
	OpenedAt   time.Time

	reads        atomic.Uint64
	bytesIn      atomic.Uint64
	decodeErrors atomic.Uint64
	lastValue    atomic.Value
	lastError    atomic.Value

	writer *respio.RespWriter
}

// SessionInfo is a point in time copy of a Session for reporting. LastValueKind
// is the kind of the last value that decoded and LastErrorKind the kind of the
// last decode failure; they are tracked separately.
type SessionInfo struct {
	Id            string    `json:"id"`
	RemoteAddr    string    `json:"remote_addr"`
	OpenedAt      time.Time `json:"opened_at"`
	Reads         uint64    `json:"reads"`
	BytesIn       uint64    `json:"bytes_in"`
	DecodeErrors  uint64    `json:"decode_errors"`
	LastValueKind string    `json:"last_value_kind,omitempty"`
	LastErrorKind string    `json:"last_error_kind,omitempty"`
}

func NewSession(id string, c gnet.Conn) *Session {
	s := &Session{
		Id:       id,
		OpenedAt: time.Now(),
		writer:   respio.NewRespWriterSize(c, sessionWriteBufferSize),
	}
	if addr := c.RemoteAddr(); addr != nil {
		s.RemoteAddr = addr.String()
	}
	return s
}

func (s *Session) recordRead(n int) {
	s.reads.Add(1)
	s.bytesIn.Add(uint64(n))
}

func (s *Session) recordValue(v respio.Value) {
	s.lastValue.Store(v.Kind())
}

func (s *Session) recordDecodeError(err error) {
	s.decodeErrors.Add(1)
	s.lastError.Store(respio.ErrorKind(err))
}

// Reply queues v; it reaches the peer on Flush.
func (s *Session) Reply(v respio.Value) error {
	return s.writer.Write(v)
}

func (s *Session) Flush() error {
	return s.writer.Flush()
}

func (s *Session) Info() SessionInfo {
	info := SessionInfo{
		Id:           s.Id,
		RemoteAddr:   s.RemoteAddr,
		OpenedAt:     s.OpenedAt,
		Reads:        s.reads.Load(),
		BytesIn:      s.bytesIn.Load(),
		DecodeErrors: s.decodeErrors.Load(),
	}
	if kind, ok := s.lastValue.Load().(string); ok {
		info.LastValueKind = kind
	}
	if kind, ok := s.lastError.Load().(string); ok {
		info.LastErrorKind = kind
	}
	return info
}
