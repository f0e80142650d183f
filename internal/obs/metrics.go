package obs

import (
	"sync/atomic"
	"time"

	"main/internal/schema"
)

const (
	maxEventType     = int(schema.EventCommitRecord)
	maxOverlayReason = int(schema.OverlayReasonSanction)
	maxOverlayAction = int(schema.OverlayActionFlatten)
	maxRegimeBand    = int(schema.BandCritical)
)

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	eventCounts         [maxEventType + 1]uint64
	overlayReasonCounts [maxOverlayReason + 1]uint64
	overlayActionCounts [maxOverlayAction + 1]uint64
	bandCounts          [maxRegimeBand + 1]uint64
	personaErrors       uint64
	queueDrops          uint64
	queueClosed         uint64

	eventLatency    LatencyStats
	pipelineLatency LatencyStats
	personaLatency  LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts         map[schema.EventType]uint64
	OverlayReasonCounts map[schema.OverlayReason]uint64
	OverlayActionCounts map[schema.OverlayAction]uint64
	BandCounts          map[schema.RegimeBand]uint64
	PersonaErrors       uint64
	QueueDrops          uint64
	QueueClosed         uint64
	EventLatency        LatencySnapshot
	PipelineLatency     LatencySnapshot
	PersonaLatency      LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent increments counters and tracks event latency when timestamps are present.
func (m *Metrics) ObserveEvent(header schema.EventHeader) {
	if m == nil {
		return
	}
	idx := int(header.Type)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
	if header.TsEvent > 0 && header.TsRecv > 0 {
		delta := header.TsRecv - header.TsEvent
		if delta >= 0 {
			m.eventLatency.Observe(time.Duration(delta))
		}
	}
}

// IncOverlayReason increments the overlay reason counter.
func (m *Metrics) IncOverlayReason(reason schema.OverlayReason) {
	if m == nil {
		return
	}
	idx := int(reason)
	if idx >= 0 && idx < len(m.overlayReasonCounts) {
		atomic.AddUint64(&m.overlayReasonCounts[idx], 1)
	}
}

// IncOverlayAction increments the overlay action counter.
func (m *Metrics) IncOverlayAction(action schema.OverlayAction) {
	if m == nil {
		return
	}
	idx := int(action)
	if idx >= 0 && idx < len(m.overlayActionCounts) {
		atomic.AddUint64(&m.overlayActionCounts[idx], 1)
	}
}

// IncBand increments the regime band counter.
func (m *Metrics) IncBand(band schema.RegimeBand) {
	if m == nil {
		return
	}
	idx := int(band)
	if idx >= 0 && idx < len(m.bandCounts) {
		atomic.AddUint64(&m.bandCounts[idx], 1)
	}
}

// IncPersonaError records a persona proposal failure.
func (m *Metrics) IncPersonaError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.personaErrors, 1)
}

// IncQueueDrop records a queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// ObservePipeline measures end-to-end decision pipeline latency.
func (m *Metrics) ObservePipeline(d time.Duration) {
	if m == nil {
		return
	}
	m.pipelineLatency.Observe(d)
}

// ObservePersonaEval measures persona evaluation latency.
func (m *Metrics) ObservePersonaEval(d time.Duration) {
	if m == nil {
		return
	}
	m.personaLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[schema.EventType]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[schema.EventType(i)] = v
		}
	}
	reasonCounts := make(map[schema.OverlayReason]uint64)
	for i := range m.overlayReasonCounts {
		if v := atomic.LoadUint64(&m.overlayReasonCounts[i]); v > 0 {
			reasonCounts[schema.OverlayReason(i)] = v
		}
	}
	actionCounts := make(map[schema.OverlayAction]uint64)
	for i := range m.overlayActionCounts {
		if v := atomic.LoadUint64(&m.overlayActionCounts[i]); v > 0 {
			actionCounts[schema.OverlayAction(i)] = v
		}
	}
	bandCounts := make(map[schema.RegimeBand]uint64)
	for i := range m.bandCounts {
		if v := atomic.LoadUint64(&m.bandCounts[i]); v > 0 {
			bandCounts[schema.RegimeBand(i)] = v
		}
	}
	return Snapshot{
		EventCounts:         eventCounts,
		OverlayReasonCounts: reasonCounts,
		OverlayActionCounts: actionCounts,
		BandCounts:          bandCounts,
		PersonaErrors:       atomic.LoadUint64(&m.personaErrors),
		QueueDrops:          atomic.LoadUint64(&m.queueDrops),
		QueueClosed:         atomic.LoadUint64(&m.queueClosed),
		EventLatency:        m.eventLatency.Snapshot(),
		PipelineLatency:     m.pipelineLatency.Snapshot(),
		PersonaLatency:      m.personaLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
