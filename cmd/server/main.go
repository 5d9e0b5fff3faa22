// Command server bootstraps the network manager, binds the configured
// listener socket, and runs the select(2) loop until signaled to stop.
// Grounded on server.go's Listen/Accept bootstrap, generalized from a
// single-protocol accept loop into the signal-driven repeated-process
// loop shown in the original network manager's repeated-callback example.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iosb-ics/opcua-gonm/config"
	"github.com/iosb-ics/opcua-gonm/metrics"
	"github.com/iosb-ics/opcua-gonm/netmgr"
	"github.com/iosb-ics/opcua-gonm/session"
	"github.com/iosb-ics/opcua-gonm/socket"
	"github.com/iosb-ics/opcua-gonm/types"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// No logger exists yet to route this through; a failed config
		// load is a startup-time condition, not a runtime event.
		os.Stderr.WriteString("server: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	m := metrics.NewMetrics()
	mgr := netmgr.New(netmgr.WithLogger(logger), netmgr.WithObserver(m))

	if cfg.MetricsAddress != "" {
		go serveMetrics(cfg.MetricsAddress, mgr, logger)
	}

	listener, st := socket.ListenTCP(cfg.ListenAddress, cfg.RecvBufferSize, cfg.SendBufferSize, logger)
	if st.IsBad() {
		logger.Fatal("server: failed to bind listener", zap.Stringer("status", st))
	}

	table := types.NewBuiltinTable()
	handler := session.NewConnectionHandler(table, &session.EchoService{Logger: logger}, cfg.SendBufferSize, logger)
	handler.SetExchangeObserver(m)
	listener.SetMessageHandler(session.NewMessageHandler(handler))

	if st := mgr.RegisterSocket(listener); st.IsBad() {
		logger.Fatal("server: failed to register listener", zap.Stringer("status", st))
	}
	logger.Info("server: listening", zap.String("address", cfg.ListenAddress))

	running := &atomic.Bool{}
	running.Store(true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for running.Load() {
		select {
		case <-ctx.Done():
			logger.Info("server: shutdown signal received")
			running.Store(false)
		default:
			if st := mgr.Process(cfg.SelectTimeout); st.IsBad() {
				logger.Error("server: process pass failed", zap.Stringer("status", st))
			}
		}
	}

	logger.Info("server: shutting down", zap.Int("open_sockets", mgr.Len()))
	mgr.DeleteMembers()
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zap.DebugLevel
	case "warn":
		lvl = zap.WarnLevel
	case "error":
		lvl = zap.ErrorLevel
	default:
		lvl = zap.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func serveMetrics(addr string, counter metrics.SocketCounter, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", metrics.HealthHandler())
	mux.Handle("/readyz", metrics.ReadinessHandler(counter))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	logger.Info("server: metrics endpoint listening", zap.String("address", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server: metrics server failed", zap.Error(err))
	}
}
