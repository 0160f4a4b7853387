// Package worker implements the single cooperative ingest pipeline loop
// (spec.md §4.5, §5): receive a broker frame, split it into packet lines,
// drive each line through parse -> checkForDuplicates ->
// checkForPositionErrors -> preprocess -> inject -> process, and ack the
// frame once every line has reached a terminal status.
package worker

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aprsworld/ingestd/internal/logging"
	"github.com/aprsworld/ingestd/pkg/aprs"
	"github.com/aprsworld/ingestd/pkg/broker"
	"github.com/aprsworld/ingestd/pkg/dbi"
	"github.com/aprsworld/ingestd/pkg/metrics"
	"github.com/aprsworld/ingestd/pkg/store"
)

// Status mirrors the per-packet state machine in spec.md §4.5.
type Status string

const (
	StatusNone       Status = "None"
	StatusRejected   Status = "Rejected"
	StatusDuplicate  Status = "Duplicate"
	StatusDeferred   Status = "Deferred"
	StatusPositError Status = "PositError"
	StatusOk         Status = "Ok"
)

// maxAttempts/retryBackoff implement "retried ... up to retries < 3 with
// a 3s backoff per retry" (spec.md §4.5).
const (
	maxAttempts  = 3
	retryBackoff = 3 * time.Second
)

// Result is the per-line pipeline record, carrying its terminal status and
// (on failure) the reason.
type Result struct {
	Line      string
	ArrivedAt time.Time
	Packet    *aprs.Packet
	Status    Status
	Reason    string
}

// Config carries the worker-tunable policy knobs spec.md §6 leaves to the
// surrounding runtime.
type Config struct {
	SubscriptionID       string
	Destination          string
	Prefetch             int
	HeartBeat            string
	DropDefer            bool
	ReportInterval       time.Duration
	TelemetryInterval    time.Duration
	LocatorFlushInterval time.Duration
}

// Worker owns one broker subscription, one DBI connection, and one Store
// (cache handle), per spec.md §5 ("each owns its own ... no mutable state
// is shared between Workers").
type Worker struct {
	broker  broker.Broker
	store   *store.Store
	db      *dbi.DBI
	cfg     Config
	log     *logrus.Entry
	metrics *metrics.Metrics

	locatorsSeen map[string]struct{}
}

// New constructs a Worker. Run(ctx) must be called to actually process
// frames. m may be nil, in which case the worker runs without Prometheus
// instrumentation (e.g. in tests).
func New(b broker.Broker, s *store.Store, db *dbi.DBI, cfg Config, log *logrus.Entry, m *metrics.Metrics) *Worker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Worker{
		broker:       b,
		store:        s,
		db:           db,
		cfg:          cfg,
		log:          log.WithField("component", "worker"),
		metrics:      m,
		locatorsSeen: make(map[string]struct{}),
	}
}

// Run blocks on broker receive and drives every packet line through the
// pipeline until ctx is cancelled. Suspension points match spec.md §5:
// broker receive, SQL/cache round-trips, the 3s retry sleep, and the
// locator-flush/report/telemetry tickers.
func (w *Worker) Run(ctx context.Context) error {
	frames, err := w.broker.Subscribe(ctx, w.cfg.Destination, w.cfg.SubscriptionID, w.cfg.Prefetch, w.cfg.HeartBeat)
	if err != nil {
		return err
	}

	locatorTicker := time.NewTicker(w.cfg.LocatorFlushInterval)
	defer locatorTicker.Stop()
	reportTicker := time.NewTicker(w.cfg.ReportInterval)
	defer reportTicker.Stop()
	telemetryTicker := time.NewTicker(w.cfg.TelemetryInterval)
	defer telemetryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			w.handleFrame(ctx, frame)

		case <-locatorTicker.C:
			w.flushLocators(ctx)

		case <-reportTicker.C:
			w.logReport()
			w.store.ResetStats()

		case <-telemetryTicker.C:
			w.emitTelemetry()
		}
	}
}

// handleFrame processes every line in frame's body in source order, then
// acks the frame once (spec.md §5 "Acks to the broker are issued in
// frame-receive order").
func (w *Worker) handleFrame(ctx context.Context, frame broker.Frame) {
	arrivedAt := time.Now().UTC()

	for _, line := range strings.Split(frame.Body, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		result := w.processLine(ctx, line, arrivedAt)
		w.log.WithFields(logging.NewFields().
			Component("worker").
			Operation("processLine")).
			WithField("status", string(result.Status)).
			Debug("processed packet line")
	}

	if err := w.broker.Ack(ctx, frame.MessageID, frame.SubscriptionID); err != nil {
		w.log.WithError(err).Warn("failed to ack frame")
		if w.metrics != nil {
			w.metrics.BrokerErrorsTotal.WithLabelValues("ack").Inc()
		}
	}
}

// processLine drives one packet line through the full pipeline.
func (w *Worker) processLine(ctx context.Context, line string, arrivedAt time.Time) Result {
	result := Result{Line: line, ArrivedAt: arrivedAt, Status: StatusNone}

	p, err := aprs.Parse(line, arrivedAt)
	if err != nil {
		result.Status = StatusRejected
		result.Reason = err.Error()
		w.publishError(ctx, line, result.Reason)
		w.recordResult("", result)
		return result
	}
	result.Packet = p

	if w.store.CheckDuplicate(ctx, p.Source, p.Body, arrivedAt) {
		result.Status = StatusDuplicate
		w.publishDuplicate(ctx, p)
		w.recordResult(p.PacketType, result)
		return result
	}

	if p.PacketType == aprs.PacketTypePosition && !p.IsObject() {
		if rejected, reason := w.checkForPositionErrors(ctx, p, arrivedAt); rejected {
			result.Status = StatusPositError
			result.Reason = reason
			w.publishReject(ctx, p, reason)
			w.recordResult(p.PacketType, result)
			return result
		}
	}

	// Retries block this line only; other lines in later frames are still
	// sequential with it (spec.md §5's single cooperative loop), matching
	// the original's handle_results, where a result that is not dropped
	// stays at the front of the queue and keeps being retried
	// (Worker.cpp:385-412, shouldDrop is the only exit that pops it).
	for attempt := 1; ; attempt++ {
		ok, reason := w.preprocessAndInject(ctx, p, arrivedAt)
		if ok {
			result.Status = StatusOk
			w.process(ctx, p)
			w.recordResult(p.PacketType, result)
			return result
		}
		result.Reason = reason

		if attempt >= maxAttempts {
			if w.cfg.DropDefer {
				result.Status = StatusDeferred
				w.publishDeferred(ctx, p, result.Reason)
				w.log.WithField("reason", result.Reason).Warn("dropping deferred packet after exhausting retries")
				w.recordResult(p.PacketType, result)
				return result
			}
			if attempt%maxAttempts == 0 {
				w.log.WithField("reason", result.Reason).WithField("attempt", attempt).
					Warn("still retrying packet, drop_defer is false")
			}
		}

		select {
		case <-ctx.Done():
			result.Status = StatusDeferred
			result.Reason = "worker shutting down while retrying: " + result.Reason
			w.recordResult(p.PacketType, result)
			return result
		case <-time.After(retryBackoff):
		}
	}
}

// recordResult feeds one terminal pipeline outcome into the Prometheus
// counters, if metrics are wired in.
func (w *Worker) recordResult(packetType aprs.PacketType, result Result) {
	if w.metrics == nil {
		return
	}
	w.metrics.PacketsTotal.WithLabelValues(string(packetType), strings.ToLower(string(result.Status))).Inc()
	if result.Reason != "" {
		w.metrics.RejectsTotal.WithLabelValues(result.Reason).Inc()
	}
}

// flushLocators writes the batch of grid squares witnessed since the last
// flush and clears it (spec.md §4.5 "Locator flush").
func (w *Worker) flushLocators(ctx context.Context) {
	if w.metrics != nil {
		w.metrics.LocatorsSeenGauge.Set(float64(len(w.locatorsSeen)))
	}
	if len(w.locatorsSeen) == 0 {
		return
	}
	locators := make([]string, 0, len(w.locatorsSeen))
	for l := range w.locatorsSeen {
		locators = append(locators, l)
	}
	w.store.FlushLocatorsSeen(ctx, locators)
	w.locatorsSeen = make(map[string]struct{})
}

func (w *Worker) logReport() {
	for ns, stats := range w.store.StatsSnapshot() {
		w.log.WithFields(logrus.Fields{
			"namespace": ns,
			"tries":     stats.Tries,
			"hits":      stats.Hits,
			"misses":    stats.Misses,
			"stored":    stats.Stored,
			"failed":    stats.Failed,
		}).Info("cache/sql stats report")

		if w.metrics == nil {
			continue
		}
		w.metrics.ResolveTotal.WithLabelValues(ns, metrics.ResultHit).Add(float64(stats.Hits))
		w.metrics.ResolveTotal.WithLabelValues(ns, metrics.ResultMiss).Add(float64(stats.Misses))
		w.metrics.ResolveTotal.WithLabelValues(ns, metrics.ResultStored).Add(float64(stats.Stored))
		w.metrics.ResolveTotal.WithLabelValues(ns, metrics.ResultFailed).Add(float64(stats.Failed))
	}

	for ns, profile := range w.store.ProfileSnapshot() {
		w.log.WithFields(logrus.Fields{
			"namespace":    ns,
			"mean_ms":      profile.Mean,
			"sample_count": profile.Count,
		}).Info("cache/sql latency report")
	}
}

// emitTelemetry reports the 5s-window counters and latency means, then
// resets that window so the next emission covers only the following 5s
// (spec.md §3's "two independently-reset copies" of the stats registry).
func (w *Worker) emitTelemetry() {
	profiles := w.store.TelemetryProfileSnapshot()
	for ns, profile := range profiles {
		w.log.WithFields(logrus.Fields{
			"namespace":    ns,
			"mean_ms":      profile.Mean,
			"sample_count": profile.Count,
		}).Debug("telemetry emit")

		if w.metrics != nil {
			w.metrics.ResolveDuration.WithLabelValues(ns).Observe(profile.Mean / 1000)
		}
	}

	// ResolveTotal is fed from logReport's report-window snapshot only
	// (every hit/miss/etc. counted exactly once); this cycle only resets
	// the telemetry window's own counters so the next 5s window starts
	// clean.
	w.store.ResetTelemetryStats()
}
