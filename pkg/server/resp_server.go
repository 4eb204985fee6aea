package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/gnet/v2"

	"github.com/pzhenzhou/respd/pkg/common"
	"github.com/pzhenzhou/respd/pkg/metrics"
	"github.com/pzhenzhou/respd/pkg/respio"
)

const (
	Banner = `
                                    __
   ________  _________  ____  _____/ /
  / ___/ _ \/ ___/ __ \/ __ \/ __  /
 / /  /  __(__  ) /_/ / /_/ / /_/ /
/_/   \___/____/ .___/\____/\__,_/
              /_/

`
)

var (
	logger = common.InitLogger().WithName("resp-srv")

	ErrNotStarted = errors.New("resp server is not running")

	pongSize = len(respio.AppendValue(nil, respio.Pong))
)

// inbound is the part of gnet.Conn used to take bytes off a connection.
type inbound interface {
	InboundBuffered() int
	Next(n int) ([]byte, error)
}

// RespServer accepts RESP clients and answers every read with +PONG. Each
// connection is registered on one of gnet's event loops, so clients are served
// independently of each other. Inbound bytes are decoded for logging and
// metrics; the decoded value never changes the reply.
type RespServer struct {
	gnet.BuiltinEventEngine

	mu                sync.Mutex
	eng               gnet.Engine
	running           bool
	booted            chan struct{}
	config            *common.ServerConfig
	decoder           *respio.Decoder
	sessionMgr        *SessionManager
	metricsMiddleware *metrics.ServerMetricsMiddleWare
}

func NewRespServer(config *common.ServerConfig) *RespServer {
	var opts []respio.DecoderOption
	if config.Decoder.LenientBulkLength {
		opts = append(opts, respio.WithLenientBulkLength())
	}
	return &RespServer{
		config:     config,
		decoder:    respio.NewDecoder(opts...),
		sessionMgr: NewSessionManager(),
		booted:     make(chan struct{}),
	}
}

func (p *RespServer) SetMetricsMiddleware(middleware *metrics.ServerMetricsMiddleWare) {
	p.metricsMiddleware = middleware
}

func (p *RespServer) SessionManager() *SessionManager {
	return p.sessionMgr
}

func (p *RespServer) Decoder() *respio.Decoder {
	return p.decoder
}

// Booted is closed once the listener is up and the event loops are running.
func (p *RespServer) Booted() <-chan struct{} {
	return p.booted
}

// Start blocks until the server stops.
func (p *RespServer) Start() error {
	opts := p.config.GNetOptions()
	opts = append(opts,
		gnet.WithReuseAddr(true),
		gnet.WithLogger(common.RawZapLogger().Sugar()),
	)
	addr := fmt.Sprintf("tcp://%s", p.config.RespAddr())
	logger.Info("Starting RESP server", "address", addr, "readChunkSize", p.config.ReadChunkSize)
	return gnet.Run(p, addr, opts...)
}

func (p *RespServer) OnBoot(eng gnet.Engine) gnet.Action {
	p.mu.Lock()
	p.eng = eng
	p.running = true
	p.mu.Unlock()
	close(p.booted)
	return gnet.None
}

func (p *RespServer) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	session := p.sessionMgr.OpenSession(c)
	c.SetContext(session)
	if p.metricsMiddleware != nil {
		p.metricsMiddleware.OnConnectionOpen()
	}
	logger.Info("Accepted connection", "sessionId", session.Id, "remote", session.RemoteAddr)
	return nil, gnet.None
}

func (p *RespServer) OnTraffic(c gnet.Conn) gnet.Action {
	session, ok := c.Context().(*Session)
	if !ok {
		logger.Info("Traffic on a connection without session", "remote", c.RemoteAddr())
		return gnet.Close
	}
	if p.metricsMiddleware != nil {
		return p.metricsMiddleware.WrapTraffic(func() gnet.Action {
			return p.onEvent(c, session)
		})
	}
	return p.onEvent(c, session)
}

func (p *RespServer) onEvent(c inbound, session *Session) gnet.Action {
	err := drainChunks(c, p.config.ReadChunkSize, func(chunk []byte) error {
		return p.handleChunk(session, chunk)
	})
	if err == nil {
		err = session.Flush()
	}
	if err != nil {
		if common.IsPeerGone(err) {
			logger.V(1).Info("Peer went away", "sessionId", session.Id, "err", err)
		} else {
			logger.Error(err, "Error serving connection", "sessionId", session.Id)
		}
		return gnet.Close
	}
	return gnet.None
}

// drainChunks takes everything buffered on in, at most chunkSize bytes at a time.
func drainChunks(in inbound, chunkSize int, fn func(chunk []byte) error) error {
	for in.InboundBuffered() > 0 {
		n := min(in.InboundBuffered(), chunkSize)
		chunk, err := in.Next(n)
		if err != nil {
			return err
		}
		if err := fn(chunk); err != nil {
			return err
		}
	}
	return nil
}

// handleChunk treats one chunk as one read: decode it, then answer +PONG. A chunk
// that does not decode is logged and counted, and the connection carries on.
func (p *RespServer) handleChunk(session *Session, chunk []byte) error {
	session.recordRead(len(chunk))
	if p.metricsMiddleware != nil {
		p.metricsMiddleware.TrackRead(len(chunk))
	}

	v, err := p.decode(chunk)
	if err != nil {
		session.recordDecodeError(err)
		logger.V(1).Info("Discarding undecodable chunk", "sessionId", session.Id,
			"kind", respio.ErrorKind(err), "err", err.Error(), "size", len(chunk))
	} else {
		session.recordValue(v)
		logger.V(1).Info("Decoded value", "sessionId", session.Id, "value", v.String())
	}

	if err := session.Reply(respio.Pong); err != nil {
		return err
	}
	if p.metricsMiddleware != nil {
		p.metricsMiddleware.TrackReply(pongSize)
	}
	return nil
}

func (p *RespServer) decode(chunk []byte) (respio.Value, error) {
	if p.metricsMiddleware != nil {
		return p.metricsMiddleware.WrapDecode(func() (respio.Value, error) {
			return p.decoder.Decode(chunk)
		})
	}
	return p.decoder.Decode(chunk)
}

func (p *RespServer) OnClose(c gnet.Conn, err error) gnet.Action {
	session, ok := c.Context().(*Session)
	if !ok {
		return gnet.None
	}
	p.sessionMgr.CloseSession(session.Id)
	if p.metricsMiddleware != nil {
		p.metricsMiddleware.OnConnectionClose()
	}
	if err != nil && !common.IsPeerGone(err) {
		logger.Error(err, "Connection closed with error", "sessionId", session.Id)
	} else {
		logger.Info("Connection closed", "sessionId", session.Id, "reads", session.reads.Load())
	}
	return gnet.None
}

func (p *RespServer) OnShutdown(_ gnet.Engine) {
	logger.Info("RESP server is shutting down. cleaning up sessions", "open", p.sessionMgr.Count())
	p.sessionMgr.Clear()
}

func (p *RespServer) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	eng, running := p.eng, p.running
	p.running = false
	p.mu.Unlock()
	if !running {
		return ErrNotStarted
	}
	if err := eng.Stop(ctx); err != nil {
		logger.Error(err, "Failed to stop RESP server")
		return err
	}
	logger.Info("RESP server stopped")
	return nil
}
