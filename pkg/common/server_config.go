package common

import (
	"fmt"
	"net"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/panjf2000/gnet/v2"
)

const (
	DefaultReadChunkSize = 512
)

type WebServerConfig struct {
	EnablePprof bool `help:"Enable pprof for the admin web server" name:"pprof" default:"true"`
}

type DecoderConfig struct {
	LenientBulkLength bool `help:"Do not check a bulk string's declared length against its content" name:"lenient-bulk-length" default:"false"`
}

type NodeConfig struct {
	NodeId string `help:"Node identity" name:"id" default:"local_respd"`
}

type MetricsConfig struct {
	EnableMetrics   bool   `help:"Enable metrics collection" name:"enable" default:"false"`
	MetricsPath     string `help:"Metrics path" name:"path" default:"/metrics"`
	MetricsSinkType string `help:"Metrics sink type. support prometheus, in-memory and all." name:"sink" default:"prometheus"`
}

type ServerConfig struct {
	Config        kong.ConfigFlag `help:"Path to a TOML config file" type:"path"`
	Host          string          `help:"Address the RESP listener binds to" name:"host" default:"127.0.0.1"`
	Port          int             `help:"Port of the RESP listener" name:"port" default:"6379"`
	ServicePort   int             `help:"Port of the admin http server" name:"service-port" default:"7080"`
	ReadChunkSize int             `help:"Max bytes handed to the handler per read" name:"read-chunk-size" default:"512"`
	MultiCore     bool            `help:"Enable multi-core support" default:"true"`
	CoreNum       int             `help:"Number of event loops to use" default:"0"`
	Decoder       DecoderConfig   `embed:"" prefix:"decoder."`
	WebServer     WebServerConfig `embed:"" prefix:"web-server."`
	Node          NodeConfig      `embed:"" prefix:"node."`
	Metrics       MetricsConfig   `embed:"" prefix:"metrics."`
}

func (c *ServerConfig) RespAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *ServerConfig) ServiceListener() (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf(":%d", c.ServicePort))
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.Port)
	}
	if c.ServicePort <= 0 || c.ServicePort > 65535 {
		return fmt.Errorf("invalid service port number: %d", c.ServicePort)
	}
	if c.ServicePort == c.Port {
		return fmt.Errorf("service port %d must differ from the RESP port", c.ServicePort)
	}
	if c.ReadChunkSize <= 0 {
		return fmt.Errorf("invalid read chunk size: %d", c.ReadChunkSize)
	}
	if net.ParseIP(c.Host) == nil && c.Host != "localhost" {
		return fmt.Errorf("invalid host: %s", c.Host)
	}
	return c.Metrics.Validate()
}

func (m *MetricsConfig) Validate() error {
	switch m.MetricsSinkType {
	case "prometheus", "in-memory", "all":
		return nil
	default:
		return fmt.Errorf("invalid metrics sink: %s (must be 'prometheus', 'in-memory' or 'all')", m.MetricsSinkType)
	}
}

func (c *ServerConfig) GNetOptions() []gnet.Option {
	var ops []gnet.Option
	if c.MultiCore {
		ops = append(ops, gnet.WithMulticore(true))
	}
	if c.CoreNum > 0 {
		ops = append(ops, gnet.WithNumEventLoop(c.CoreNum))
	}
	return ops
}

// DefaultServerConfig mirrors the kong defaults, for callers that build a config
// without parsing flags.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:          "127.0.0.1",
		Port:          6379,
		ServicePort:   7080,
		ReadChunkSize: DefaultReadChunkSize,
		MultiCore:     true,
		WebServer:     WebServerConfig{EnablePprof: true},
		Node:          NodeConfig{NodeId: "local_respd"},
		Metrics: MetricsConfig{
			MetricsPath:     "/metrics",
			MetricsSinkType: "prometheus",
		},
	}
}
