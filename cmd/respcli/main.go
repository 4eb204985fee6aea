package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/alecthomas/kong"

	"github.com/pzhenzhou/respd/pkg/common"
	"github.com/pzhenzhou/respd/pkg/respio"
)

var (
	logger = common.InitLogger().WithName("[respcli]")
)

type CliConfig struct {
	Addr    string        `help:"Address of the RESP server" name:"addr" default:"127.0.0.1:6379"`
	Value   string        `help:"Value to send, with Go escapes (e.g. '+PING\\r\\n')" name:"value" default:"*1\\r\\n$4\\r\\nPING\\r\\n"`
	Type    string        `help:"How to send --value: raw sends it as is, the others encode it as that RESP type" name:"type" enum:"raw,simple,error,int,bulk" default:"raw"`
	Count   int           `help:"How many times to send the value" name:"count" default:"1"`
	Timeout time.Duration `help:"Per request timeout" name:"timeout" default:"5s"`
	Retry   time.Duration `help:"How long to keep retrying the initial dial" name:"retry" default:"10s"`
	Lenient bool          `help:"Do not check a bulk reply's declared length against its content" name:"lenient-bulk-length" default:"false"`
}

func (c *CliConfig) Validate() error {
	if c.Count <= 0 {
		return fmt.Errorf("invalid count: %d", c.Count)
	}
	return nil
}

// Payload turns the escaped --value into the bytes sent on the wire.
func (c *CliConfig) Payload() ([]byte, error) {
	unquoted, err := strconv.Unquote(`"` + c.Value + `"`)
	if err != nil {
		return nil, fmt.Errorf("invalid --value %q: %w", c.Value, err)
	}
	var v respio.Value
	switch c.Type {
	case "", "raw":
		return []byte(unquoted), nil
	case "simple":
		v = respio.SimpleString(unquoted)
	case "error":
		v = respio.SimpleError(unquoted)
	case "int":
		n, err := strconv.ParseInt(unquoted, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --value %q for type int: %w", c.Value, err)
		}
		v = respio.Integer(n)
	case "bulk":
		v = respio.BulkString(unquoted)
	default:
		return nil, fmt.Errorf("invalid --type %q", c.Type)
	}
	return respio.AppendValue(nil, v), nil
}

func main() {
	var cfg CliConfig
	kctx := kong.Parse(&cfg, kong.Name("respcli"),
		kong.Description("Send a raw RESP value and print the decoded reply."))
	kctx.FatalIfErrorf(run(&cfg))
}

func run(cfg *CliConfig) error {
	payload, err := cfg.Payload()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Retry)
	defer cancel()
	conn, err := common.DialWithRetry(ctx, cfg.Addr, cfg.Retry)
	if err != nil {
		logger.Error(err, "Failed to connect", "Addr", cfg.Addr)
		return err
	}
	defer conn.Close()

	reader := respio.NewRespReader(conn)
	if cfg.Lenient {
		reader.WithDecoder(respio.NewDecoder(respio.WithLenientBulkLength()))
	}
	for i := 0; i < cfg.Count; i++ {
		if err := conn.SetDeadline(time.Now().Add(cfg.Timeout)); err != nil {
			return err
		}
		start := time.Now()
		if _, err := conn.Write(payload); err != nil {
			return err
		}
		reply, err := reader.Read()
		if err != nil {
			logger.Error(err, "Failed to read reply", "Addr", cfg.Addr)
			return err
		}
		fmt.Fprintf(os.Stdout, "%d) %s (%s)\n", i+1, reply, time.Since(start))
	}
	return nil
}
