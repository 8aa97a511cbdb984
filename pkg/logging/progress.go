package logging

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/eunmann/ste-extract/pkg/humanfmt"
)

// DefaultProgressInterval is the minimum time between progress events.
const DefaultProgressInterval = 5 * time.Second

// ProgressTracker reports progress through a known number of records.
// It is meant for the goroutine driving the scan and is not safe for
// concurrent use.
type ProgressTracker struct {
	phase    string
	total    int64
	done     int64
	bytes    int64
	start    time.Time
	lastLog  time.Time
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewProgressTracker creates a tracker for total records. interval <= 0
// selects DefaultProgressInterval.
func NewProgressTracker(phase string, total int64, interval time.Duration, log zerolog.Logger) *ProgressTracker {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	start := time.Now()
	return &ProgressTracker{
		phase:    phase,
		total:    total,
		start:    start,
		lastLog:  start,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Add records n more completed records covering the given bytes.
func (pt *ProgressTracker) Add(n, bytes int64) {
	pt.done += n
	pt.bytes += bytes
}

// Done returns the number of completed records.
func (pt *ProgressTracker) Done() int64 {
	return pt.done
}

// Total returns the total count.
func (pt *ProgressTracker) Total() int64 {
	return pt.total
}

// Remaining returns how many records are left.
func (pt *ProgressTracker) Remaining() int64 {
	return max(pt.total-pt.done, 0)
}

// Elapsed returns time since tracking started.
func (pt *ProgressTracker) Elapsed() time.Duration {
	return pt.now().Sub(pt.start)
}

// ETA extrapolates the remaining time from the average rate so far.
func (pt *ProgressTracker) ETA() time.Duration {
	remaining := pt.Remaining()
	if pt.done == 0 || remaining == 0 {
		return 0
	}
	perRecord := pt.Elapsed() / time.Duration(pt.done)
	return perRecord * time.Duration(remaining)
}

// MaybeLog emits a progress event if the interval has passed since the
// last one. It reports whether an event was written.
func (pt *ProgressTracker) MaybeLog() bool {
	now := pt.now()
	if now.Sub(pt.lastLog) < pt.interval {
		return false
	}
	pt.lastLog = now

	NewCompletionEvent(pt.log, "progress", pt.phase, pt.Elapsed()).
		Progress(pt.done, pt.total, pt.ETA()).
		Throughput(pt.bytes).
		Log("extraction progress")
	return true
}

// field is one key/value pair of a CompletionEvent, kept in insertion
// order so log lines are stable between runs.
type field struct {
	key string
	val interface{}
}

// CompletionEvent helps build consistent completion log events.
type CompletionEvent struct {
	log     zerolog.Logger
	event   string
	phase   string
	elapsed time.Duration
	fields  []field
}

// NewCompletionEvent creates a new completion event builder.
func NewCompletionEvent(log zerolog.Logger, event, phase string, elapsed time.Duration) *CompletionEvent {
	return &CompletionEvent{
		log:     log,
		event:   event,
		phase:   phase,
		elapsed: elapsed,
	}
}

func (ce *CompletionEvent) add(key string, val interface{}) *CompletionEvent {
	ce.fields = append(ce.fields, field{key, val})
	return ce
}

// Str adds a string field.
func (ce *CompletionEvent) Str(key, val string) *CompletionEvent {
	return ce.add(key, val)
}

// Int adds an int field.
func (ce *CompletionEvent) Int(key string, val int) *CompletionEvent {
	return ce.add(key, val)
}

// Int64 adds an int64 field.
func (ce *CompletionEvent) Int64(key string, val int64) *CompletionEvent {
	return ce.add(key, val)
}

// Hex adds a uint64 rendered as fixed-width hex, for digests.
func (ce *CompletionEvent) Hex(key string, val uint64) *CompletionEvent {
	return ce.add(key, humanfmt.Hex64(val))
}

// Bytes adds byte count with optional human-readable companion.
func (ce *CompletionEvent) Bytes(key string, bytes int64) *CompletionEvent {
	ce.add(key, bytes)
	if IsPrettyMode() {
		ce.add(key+"_h", humanfmt.Bytes(bytes))
	}
	return ce
}

// Count adds count with optional human-readable companion.
func (ce *CompletionEvent) Count(key string, n int64) *CompletionEvent {
	ce.add(key, n)
	if IsPrettyMode() {
		ce.add(key+"_h", humanfmt.Count(n))
	}
	return ce
}

// Progress adds progress fields (done, total, percentage, optional ETA).
func (ce *CompletionEvent) Progress(done, total int64, eta time.Duration) *CompletionEvent {
	ce.add("done", done)
	ce.add("total", total)
	if total > 0 {
		ce.add("progress_pct", float64(done)*100.0/float64(total))
		if IsPrettyMode() {
			ce.add("progress_h", humanfmt.Count(done)+"/"+humanfmt.Count(total))
		}
	}
	if ce.elapsed > 0 && IsPrettyMode() {
		ce.add("rate_h", humanfmt.Rate(done, ce.elapsed))
	}
	if eta > 0 {
		ce.add("eta_ms", eta.Milliseconds())
		if IsPrettyMode() {
			ce.add("eta_h", humanfmt.Duration(eta))
		}
	}
	return ce
}

// Throughput adds throughput fields.
func (ce *CompletionEvent) Throughput(bytes int64) *CompletionEvent {
	if ce.elapsed > 0 {
		ce.add("throughput_bps", float64(bytes)/ce.elapsed.Seconds())
		if IsPrettyMode() {
			ce.add("throughput_h", humanfmt.Throughput(bytes, ce.elapsed))
		}
	}
	return ce
}

// Log emits the completion event.
func (ce *CompletionEvent) Log(msg string) {
	ce.emit(ce.log.Info(), msg)
}

// LogDebug emits the completion event at debug level.
func (ce *CompletionEvent) LogDebug(msg string) {
	ce.emit(ce.log.Debug(), msg)
}

func (ce *CompletionEvent) emit(e *zerolog.Event, msg string) {
	e = e.Str("event", ce.event).
		Str("phase", ce.phase).
		Int64("duration_ms", ce.elapsed.Milliseconds())

	if IsPrettyMode() {
		e = e.Str("duration_h", humanfmt.Duration(ce.elapsed))
	}

	for _, f := range ce.fields {
		e = e.Interface(f.key, f.val)
	}

	e.Msg(msg)
}

// PhaseComplete logs a phase completion event.
func PhaseComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "phase_completed", phase, elapsed)
}

// FileCreated logs a file creation completion event.
func FileCreated(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "file_created", phase, elapsed)
}
