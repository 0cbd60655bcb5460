package telemetry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Counter struct {
	val atomic.Int64
}

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

type Gauge struct {
	val atomic.Int64
}

func (g *Gauge) Set(v int64)   { g.val.Store(v) }
func (g *Gauge) Inc()          { g.val.Add(1) }
func (g *Gauge) Dec()          { g.val.Add(-1) }
func (g *Gauge) Value() int64  { return g.val.Load() }

// LatencyTracker keeps the most recent maxKeep samples.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	maxKeep int
}

func NewLatencyTracker(maxKeep int) *LatencyTracker {
	return &LatencyTracker{maxKeep: maxKeep}
}

func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.samples = append(lt.samples, d)
	if len(lt.samples) > lt.maxKeep {
		lt.samples = lt.samples[len(lt.samples)-lt.maxKeep:]
	}
}

func (lt *LatencyTracker) P50() time.Duration { return lt.percentile(0.50) }
func (lt *LatencyTracker) P99() time.Duration { return lt.percentile(0.99) }

func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return len(lt.samples)
}

func (lt *LatencyTracker) percentile(p float64) time.Duration {
	lt.mu.Lock()
	sorted := append([]time.Duration(nil), lt.samples...)
	lt.mu.Unlock()
	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[int(float64(len(sorted)-1)*p)]
}

// Metrics is the global metrics registry.
var Metrics = struct {
	FramesReceived       Counter
	DecodeErrors         Counter
	EventsDispatched     Counter
	DuplicateEvents      Counter
	CommandsSent         Counter
	CommandRejections    Counter
	SuppressedRejections Counter
	Reconnects           Counter
	OpenChannels         Gauge
	InboxStalls          Counter
	InvokeLatency        *LatencyTracker
	APILatency           *LatencyTracker
}{
	InvokeLatency: NewLatencyTracker(1000),
	APILatency:    NewLatencyTracker(1000),
}

// Summary renders the counters as one log line.
func Summary() string {
	m := &Metrics
	return fmt.Sprintf(
		"frames=%d decode_err=%d events=%d dup=%d cmds=%d rejected=%d suppressed=%d reconnects=%d inbox_stalls=%d invoke_p50=%s invoke_p99=%s",
		m.FramesReceived.Value(), m.DecodeErrors.Value(), m.EventsDispatched.Value(),
		m.DuplicateEvents.Value(), m.CommandsSent.Value(), m.CommandRejections.Value(),
		m.SuppressedRejections.Value(), m.Reconnects.Value(), m.InboxStalls.Value(),
		m.InvokeLatency.P50(), m.InvokeLatency.P99(),
	)
}
