package base

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// DefaultReportInterval is how often a progress line is logged during a sync
const DefaultReportInterval = 10 * time.Second

// ProgressReporter counts emitted and filtered records per stream and logs
// a progress line at most once per interval. It is driven inline by the
// sync loop, so it needs no goroutine or locking.
type ProgressReporter struct {
	logger *zap.Logger
	now    func() time.Time

	emitted  map[string]int64
	filtered map[string]int64

	startTime      time.Time
	lastReportTime time.Time
	reportInterval time.Duration
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter(logger *zap.Logger) *ProgressReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now()
	return &ProgressReporter{
		logger:         logger,
		now:            time.Now,
		emitted:        make(map[string]int64),
		filtered:       make(map[string]int64),
		startTime:      now,
		lastReportTime: now,
		reportInterval: DefaultReportInterval,
	}
}

// SetReportInterval sets the progress reporting interval
func (pr *ProgressReporter) SetReportInterval(interval time.Duration) {
	pr.reportInterval = interval
}

// RecordEmitted counts one emitted record
func (pr *ProgressReporter) RecordEmitted(stream string) {
	pr.emitted[stream]++
	pr.maybeReport()
}

// RecordFiltered counts one record dropped by the watermark
func (pr *ProgressReporter) RecordFiltered(stream string) {
	pr.filtered[stream]++
	pr.maybeReport()
}

func (pr *ProgressReporter) maybeReport() {
	now := pr.now()
	if pr.reportInterval <= 0 || now.Sub(pr.lastReportTime) < pr.reportInterval {
		return
	}
	pr.lastReportTime = now

	snap := pr.GetSnapshot()
	pr.logger.Info("progress update",
		zap.Int64("emitted", snap.Emitted),
		zap.Int64("filtered", snap.Filtered),
		zap.Float64("throughput", snap.Throughput),
		zap.Duration("elapsed", snap.ElapsedTime))
}

// ProgressSnapshot represents a point-in-time progress snapshot
type ProgressSnapshot struct {
	Timestamp   time.Time
	Emitted     int64
	Filtered    int64
	PerStream   map[string]int64
	Throughput  float64
	ElapsedTime time.Duration
}

// GetSnapshot returns a progress snapshot
func (pr *ProgressReporter) GetSnapshot() *ProgressSnapshot {
	now := pr.now()
	snap := &ProgressSnapshot{
		Timestamp:   now,
		PerStream:   make(map[string]int64, len(pr.emitted)),
		ElapsedTime: now.Sub(pr.startTime),
	}
	for stream, n := range pr.emitted {
		snap.Emitted += n
		snap.PerStream[stream] = n
	}
	for _, n := range pr.filtered {
		snap.Filtered += n
	}
	if secs := snap.ElapsedTime.Seconds(); secs > 0 {
		snap.Throughput = float64(snap.Emitted) / secs
	}
	return snap
}

// Emitted returns the number of records emitted for a stream
func (pr *ProgressReporter) Emitted(stream string) int64 {
	return pr.emitted[stream]
}

// Filtered returns the number of records filtered for a stream
func (pr *ProgressReporter) Filtered(stream string) int64 {
	return pr.filtered[stream]
}

// ReportFinal logs the summary of a finished sync
func (pr *ProgressReporter) ReportFinal() *ProgressSnapshot {
	snap := pr.GetSnapshot()

	streams := make([]string, 0, len(snap.PerStream))
	for s := range snap.PerStream {
		streams = append(streams, s)
	}
	sort.Strings(streams)

	fields := []zap.Field{
		zap.Int64("total_emitted", snap.Emitted),
		zap.Int64("total_filtered", snap.Filtered),
		zap.Duration("total_time", snap.ElapsedTime),
		zap.Float64("avg_throughput", snap.Throughput),
	}
	for _, s := range streams {
		fields = append(fields, zap.Int64("records."+s, snap.PerStream[s]))
	}
	pr.logger.Info("sync completed", fields...)
	return snap
}
