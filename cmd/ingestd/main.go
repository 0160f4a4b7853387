// Command ingestd runs the APRS STOMP ingest worker: it subscribes to a
// broker destination, resolves and injects every packet line through the
// two-tier cache/SQL store, and republishes errors/rejects/duplicates and
// message notifications to their own topics.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aprsworld/ingestd/internal/config"
	"github.com/aprsworld/ingestd/pkg/broker"
	"github.com/aprsworld/ingestd/pkg/cache"
	"github.com/aprsworld/ingestd/pkg/dbi"
	"github.com/aprsworld/ingestd/pkg/metrics"
	"github.com/aprsworld/ingestd/pkg/store"
	"github.com/aprsworld/ingestd/pkg/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML configuration file")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics on")
	flag.Parse()

	log := logrus.New()
	entry := logrus.NewEntry(log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		entry.WithError(err).Fatal("failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetricsWithRegistry("ingestd", registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			entry.WithError(err).Error("metrics server stopped unexpectedly")
		}
	}()

	redisCache := cache.NewRedisCache(&redis.Options{Addr: cfg.Cache.Addr}, entry)
	breakerCache := cache.NewBreakerCache(redisCache, entry)

	db, err := dbi.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.UseUUIDPacketIDs)
	if err != nil {
		entry.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	st := store.New(breakerCache, db, cfg.Cache.DefaultTTL, entry)

	if len(cfg.Broker.Hosts) == 0 {
		entry.Fatal("no broker hosts configured")
	}
	b, err := broker.Dial(ctx, cfg.Broker.Hosts[0], cfg.Broker.Login, cfg.Broker.Passcode, entry)
	if err != nil {
		entry.WithError(err).Fatal("failed to connect to broker")
	}
	defer b.Close()

	w := worker.New(b, st, db, worker.Config{
		SubscriptionID:       "ingestd-0",
		Destination:          cfg.Broker.Destination,
		Prefetch:             cfg.Broker.Prefetch,
		HeartBeat:            cfg.Broker.HeartBeat,
		DropDefer:            cfg.Worker.DropDefer,
		ReportInterval:       cfg.Worker.ReportInterval,
		TelemetryInterval:    cfg.Worker.TelemetryInterval,
		LocatorFlushInterval: cfg.Worker.LocatorFlushInterval,
	}, entry, m)

	entry.WithField("destination", cfg.Broker.Destination).Info("starting ingest worker")
	if err := w.Run(ctx); err != nil {
		entry.WithError(err).Error("worker stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		entry.WithError(err).Warn("metrics server shutdown error")
	}
}
