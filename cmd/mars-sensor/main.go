// Package main implements the mars-sensor daemon: it loads the device
// configuration, builds the protocol adapter and exposes it over the
// configured transports until interrupted.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ZeMeny/Mars-Sensor/adapter"
	"github.com/ZeMeny/Mars-Sensor/config"
	"github.com/ZeMeny/Mars-Sensor/errors"
	"github.com/ZeMeny/Mars-Sensor/metric"
	"github.com/ZeMeny/Mars-Sensor/mrs"
	"github.com/ZeMeny/Mars-Sensor/transport"
	"github.com/ZeMeny/Mars-Sensor/transport/natsrpc"
	"github.com/ZeMeny/Mars-Sensor/transport/tcpserver"
	"github.com/ZeMeny/Mars-Sensor/transport/wsserver"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "mars-sensor"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.LogLevel != "" {
		cfg.Logging.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Logging.Format = cliCfg.LogFormat
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		logger.Info("configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	logger.Info("starting", "version", Version, "config_path", cliCfg.ConfigPath)

	deviceCfg, deviceStatus, err := loadDeviceDocuments(cfg)
	if err != nil {
		return err
	}

	var metrics *metric.Registry
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metrics = metric.NewRegistry()
		metricsServer = serveMetrics(cfg.Metrics.Addr, metrics, logger)
	}

	a, err := adapter.New(deviceCfg, deviceStatus, adapterOptions(cfg, logger, metrics))
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return err
	}
	defer func() { _ = a.Stop() }()

	ctx := context.Background()
	servers, err := startTransports(ctx, cfg, a, logger)
	if err != nil {
		stopTransports(ctx, servers, logger)
		return err
	}
	defer stopTransports(ctx, servers, logger)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	logger.Info("shutting down", "signal", received.String())

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, cliCfg.ShutdownTimeout)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return nil
}

// loadDeviceDocuments reads the device configuration and initial status
// payloads referenced by the daemon config.
func loadDeviceDocuments(cfg *config.Config) (*mrs.DeviceConfiguration, *mrs.DeviceStatusReport, error) {
	cfgData, err := os.ReadFile(cfg.Device.ConfigurationFile)
	if err != nil {
		return nil, nil, errors.WrapFatal(err, "main", "loadDeviceDocuments", cfg.Device.ConfigurationFile)
	}
	var deviceCfg mrs.DeviceConfiguration
	if err := json.Unmarshal(cfgData, &deviceCfg); err != nil {
		return nil, nil, errors.WrapFatal(err, "main", "loadDeviceDocuments",
			fmt.Sprintf("parse %s", cfg.Device.ConfigurationFile))
	}

	statusData, err := os.ReadFile(cfg.Device.StatusFile)
	if err != nil {
		return nil, nil, errors.WrapFatal(err, "main", "loadDeviceDocuments", cfg.Device.StatusFile)
	}
	var status mrs.DeviceStatusReport
	if err := json.Unmarshal(statusData, &status); err != nil {
		return nil, nil, errors.WrapFatal(err, "main", "loadDeviceDocuments",
			fmt.Sprintf("parse %s", cfg.Device.StatusFile))
	}
	return &deviceCfg, &status, nil
}

func adapterOptions(cfg *config.Config, logger *slog.Logger, metrics *metric.Registry) adapter.Options {
	opts := adapter.DefaultOptions()
	opts.ValidateMessages = cfg.Adapter.ValidateMessages
	opts.ValidateClients = cfg.Adapter.ValidateClients
	opts.AutoHeartbeat = cfg.Adapter.AutoHeartbeat
	opts.HeartbeatInterval = cfg.Adapter.HeartbeatInterval.Std()
	opts.FullStatusInterval = cfg.Adapter.FullStatusInterval.Std()
	opts.CanTimeout = cfg.Adapter.CanTimeout
	opts.SessionTimeout = cfg.Adapter.SessionTimeout.Std()
	opts.MaxIndicationBatch = cfg.Adapter.MaxIndicationBatch
	opts.InboundRate = cfg.Adapter.InboundRate
	opts.InboundBurst = cfg.Adapter.InboundBurst
	opts.Logger = logger
	opts.Metrics = metrics
	return opts
}

// startTransports builds and starts every enabled wire binding, feeding
// frames to the adapter's dispatcher.
func startTransports(ctx context.Context, cfg *config.Config, a *adapter.Adapter, logger *slog.Logger) ([]transport.Server, error) {
	var servers []transport.Server

	if cfg.Transports.Websocket.Enabled {
		opts := wsserver.DefaultOptions(cfg.Transports.Websocket.Addr)
		opts.Path = cfg.Transports.Websocket.Path
		opts.Logger = logger
		srv := wsserver.New(opts, a.HandleMessage)
		if err := srv.Start(ctx); err != nil {
			return servers, err
		}
		servers = append(servers, srv)
	}

	if cfg.Transports.NATS.Enabled {
		opts := natsrpc.DefaultOptions(cfg.Transports.NATS.URL)
		opts.Subject = cfg.Transports.NATS.Subject
		opts.Logger = logger
		srv := natsrpc.New(opts, a.HandleMessage)
		if err := srv.Start(ctx); err != nil {
			return servers, err
		}
		servers = append(servers, srv)
	}

	if cfg.Transports.TCP.Enabled {
		opts := tcpserver.DefaultOptions(cfg.Transports.TCP.Addr)
		opts.Logger = logger
		srv := tcpserver.New(opts, a.HandleMessage)
		if err := srv.Start(ctx); err != nil {
			return servers, err
		}
		servers = append(servers, srv)
	}

	return servers, nil
}

func stopTransports(ctx context.Context, servers []transport.Server, logger *slog.Logger) {
	for _, srv := range servers {
		if err := srv.Stop(ctx); err != nil {
			logger.Warn("transport stop failed", "addr", srv.Addr(), "error", err)
		}
	}
}

// serveMetrics exposes the Prometheus registry on its own listener.
func serveMetrics(addr string, registry *metric.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("metrics listening", "addr", addr)
	return srv
}
