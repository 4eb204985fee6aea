package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	cmux2 "github.com/soheilhy/cmux"

	"github.com/pzhenzhou/respd/pkg/common"
	"github.com/pzhenzhou/respd/pkg/metrics"
	"github.com/pzhenzhou/respd/pkg/server"
	"github.com/pzhenzhou/respd/pkg/web_service"
)

var (
	logger    = common.InitLogger().WithName("main")
	serverCfg common.ServerConfig
)

func main() {
	ctx := kong.Parse(&serverCfg,
		kong.Name("respd"),
		kong.Description("A RESP server that answers every read with +PONG."),
		kong.Configuration(common.TomlConfigLoader, common.DefaultConfigPaths...),
	)
	if err := serverCfg.Validate(); err != nil {
		ctx.FatalIfErrorf(err)
	}
	fmt.Print(server.Banner)
	logger.Info("RespServer ", "Config", serverCfg)
	if err := SetupAllServer(); err != nil {
		os.Exit(-1)
	}
}

func SetupAllServer() error {
	srvListener, err := serverCfg.ServiceListener()
	if err != nil {
		logger.Error(err, "Failed to listen on service port", "ServicePort", serverCfg.ServicePort)
		return err
	}
	m := cmux2.New(srvListener)

	respSrv := server.NewRespServer(&serverCfg)
	var collector metrics.ServerMetricsCollector
	if serverCfg.Metrics.EnableMetrics {
		collector, err = metrics.NewMetricsCollector(metrics.ConfigFromServer("respd", &serverCfg.Metrics))
		if err != nil {
			logger.Error(err, "Failed to initialize metrics collector")
			return err
		}
		defer collector.Shutdown()
		respSrv.SetMetricsMiddleware(metrics.NewServerMetricsMiddleware(collector))
	}
	httpSrv := web_service.NewWebServer(&serverCfg, respSrv, collector)

	signChan := make(chan os.Signal, 1)
	signal.Notify(signChan, os.Interrupt, syscall.SIGQUIT, syscall.SIGTERM)
	errChan := make(chan error, 3)
	// start resp tcp server
	go func() {
		if err := respSrv.Start(); err != nil {
			errChan <- err
		}
	}()
	// start admin http server
	go func() {
		if err := httpSrv.Start(m); err != nil {
			errChan <- err
		}
	}()

	go func() {
		logger.Info("Starting cmux server...", "ServiceAddr", srvListener.Addr())
		if err := m.Serve(); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		logger.Error(err, "An error occurred when the server started.")
		return err
	case sig := <-signChan:
		logger.Info("Received signal, shutting down...", "Sigs", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		httpSrv.Shutdown(ctx)
		m.Close()
		if err := respSrv.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
