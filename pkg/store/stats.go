package store

import (
	"sync"
	"time"
)

// NamespaceStats is the cache-tries/hits/misses/stored/failed bookkeeping
// spec.md §4.2/§4.4 requires per namespace.
type NamespaceStats struct {
	Tries  uint64
	Hits   uint64
	Misses uint64
	Stored uint64
	Failed uint64
}

// ProfileBucket is a running mean, updated via the CALC_PROFILE formula
// from spec.md §4.4 ("mean += (newSample - mean) / ++count") so latency
// tracking drifts toward the arithmetic mean without unbounded growth.
type ProfileBucket struct {
	Mean  float64
	Count uint64
}

func (b *ProfileBucket) record(sample float64) {
	b.Count++
	b.Mean += (sample - b.Mean) / float64(b.Count)
}

// statEntry is the table-driven description of one namespace's counters.
// Per spec.md §3 ("Two copies of each... Both reset to zero at their
// respective reporting boundary"), every namespace carries two
// independent counter/profile pairs: report (reset on the 3600s
// log-report cadence) and telemetry (reset on the 5s telemetry-emit
// cadence). Both are fed by the same try/hit/miss/stored/failed/
// recordLatency calls; only their reset boundaries differ.
type statEntry struct {
	namespace        string
	reportStats      *NamespaceStats
	reportProfile    *ProfileBucket
	telemetryStats   *NamespaceStats
	telemetryProfile *ProfileBucket
}

// statsRegistry owns every namespace's report and telemetry counter pairs.
type statsRegistry struct {
	mu      sync.Mutex
	entries map[string]*statEntry
}

func newStatsRegistry() *statsRegistry {
	return &statsRegistry{entries: make(map[string]*statEntry)}
}

func (r *statsRegistry) entry(namespace string) *statEntry {
	e, ok := r.entries[namespace]
	if !ok {
		e = &statEntry{
			namespace:        namespace,
			reportStats:      &NamespaceStats{},
			reportProfile:    &ProfileBucket{},
			telemetryStats:   &NamespaceStats{},
			telemetryProfile: &ProfileBucket{},
		}
		r.entries[namespace] = e
	}
	return e
}

func (r *statsRegistry) try(namespace string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(namespace)
	e.reportStats.Tries++
	e.telemetryStats.Tries++
}

func (r *statsRegistry) hit(namespace string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(namespace)
	e.reportStats.Hits++
	e.telemetryStats.Hits++
}

func (r *statsRegistry) miss(namespace string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(namespace)
	e.reportStats.Misses++
	e.telemetryStats.Misses++
}

func (r *statsRegistry) stored(namespace string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(namespace)
	e.reportStats.Stored++
	e.telemetryStats.Stored++
}

func (r *statsRegistry) failed(namespace string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(namespace)
	e.reportStats.Failed++
	e.telemetryStats.Failed++
}

// recordLatency feeds one sample (in milliseconds) into a namespace's
// report and telemetry profile buckets. Intended for SQL/cache
// round-trip timing hooks.
func (r *statsRegistry) recordLatency(namespace string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sample := float64(d.Microseconds()) / 1000.0
	e := r.entry(namespace)
	e.reportProfile.record(sample)
	e.telemetryProfile.record(sample)
}

// reportSnapshot copies every namespace's report-window counters for the
// 3600s log-report cycle, without holding the lock during the caller's
// own processing.
func (r *statsRegistry) reportSnapshot() map[string]NamespaceStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]NamespaceStats, len(r.entries))
	for ns, e := range r.entries {
		out[ns] = *e.reportStats
	}
	return out
}

// reportProfileSnapshot copies every namespace's report-window latency
// bucket.
func (r *statsRegistry) reportProfileSnapshot() map[string]ProfileBucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]ProfileBucket, len(r.entries))
	for ns, e := range r.entries {
		out[ns] = *e.reportProfile
	}
	return out
}

// telemetrySnapshot copies every namespace's telemetry-window counters
// for the 5s telemetry-emit cycle.
func (r *statsRegistry) telemetrySnapshot() map[string]NamespaceStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]NamespaceStats, len(r.entries))
	for ns, e := range r.entries {
		out[ns] = *e.telemetryStats
	}
	return out
}

// telemetryProfileSnapshot copies every namespace's telemetry-window
// latency bucket.
func (r *statsRegistry) telemetryProfileSnapshot() map[string]ProfileBucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]ProfileBucket, len(r.entries))
	for ns, e := range r.entries {
		out[ns] = *e.telemetryProfile
	}
	return out
}

// reset clears every namespace's report-window counters and profile.
// Called after the 3600s log-report cycle reads its snapshot.
func (r *statsRegistry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.reportStats = &NamespaceStats{}
		e.reportProfile = &ProfileBucket{}
	}
}

// resetTelemetry clears every namespace's telemetry-window counters and
// profile. Called after the 5s telemetry-emit cycle reads its snapshot,
// so the next emission reflects only the following 5s window.
func (r *statsRegistry) resetTelemetry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.telemetryStats = &NamespaceStats{}
		e.telemetryProfile = &ProfileBucket{}
	}
}
