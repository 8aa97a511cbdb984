package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeClock lets tests move a tracker's notion of time.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker(total int64, interval time.Duration, buf *bytes.Buffer) (*ProgressTracker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	pt := NewProgressTracker("extract", total, interval, zerolog.New(buf))
	pt.start = clock.t
	pt.lastLog = clock.t
	pt.now = clock.now
	return pt, clock
}

func TestProgressTracker_BasicOperations(t *testing.T) {
	var buf bytes.Buffer
	pt, _ := newTestTracker(10, time.Second, &buf)

	pt.Add(3, 300)
	if pt.Done() != 3 || pt.Total() != 10 {
		t.Errorf("Done/Total = %d/%d, want 3/10", pt.Done(), pt.Total())
	}
	if remaining := pt.Remaining(); remaining != 7 {
		t.Errorf("expected remaining=7, got %d", remaining)
	}

	pt.Add(20, 0)
	if pt.Remaining() != 0 {
		t.Errorf("Remaining went negative: %d", pt.Remaining())
	}
}

func TestProgressTracker_ETA(t *testing.T) {
	var buf bytes.Buffer
	pt, clock := newTestTracker(10, time.Second, &buf)

	if pt.ETA() != 0 {
		t.Errorf("ETA before any progress = %v, want 0", pt.ETA())
	}
	clock.advance(200 * time.Millisecond)
	pt.Add(2, 0)

	if eta := pt.ETA(); eta != 800*time.Millisecond {
		t.Errorf("expected ETA 800ms, got %v", eta)
	}
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	pt, _ := newTestTracker(0, time.Second, &buf)

	if remaining := pt.Remaining(); remaining != 0 {
		t.Errorf("expected nothing remaining for zero total, got %d", remaining)
	}
	if eta := pt.ETA(); eta != 0 {
		t.Errorf("expected 0 ETA for zero total, got %v", eta)
	}
}

func TestProgressTracker_MaybeLogHonorsInterval(t *testing.T) {
	var buf bytes.Buffer
	pt, clock := newTestTracker(100, 5*time.Second, &buf)

	pt.Add(10, 1000)
	if pt.MaybeLog() {
		t.Fatal("logged before the interval elapsed")
	}
	clock.advance(5 * time.Second)
	if !pt.MaybeLog() {
		t.Fatal("did not log after the interval elapsed")
	}
	if pt.MaybeLog() {
		t.Fatal("logged twice without time passing")
	}

	out := buf.String()
	for _, want := range []string{`"event":"progress"`, `"phase":"extract"`, `"done":10`, `"total":100`, `"throughput_bps":200`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("expected exactly one line, got %q", out)
	}
}

func TestCompletionEvent_FieldOrder(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	PhaseComplete(log, "nodes", 1500*time.Millisecond).
		Count("nodes", 42).
		Str("path", "out.nodes").
		Hex("digest", 0xabc).
		Int("workers", 2).
		Int64("max_node_id", 99).
		Log("nodes written")

	out := buf.String()
	order := []string{`"event":"phase_completed"`, `"phase":"nodes"`, `"duration_ms":1500`, `"nodes":42`, `"path":"out.nodes"`, `"digest":"0000000000000abc"`, `"workers":2`, `"max_node_id":99`, `"message":"nodes written"`}
	last := -1
	for _, want := range order {
		idx := strings.Index(out, want)
		if idx < 0 {
			t.Fatalf("missing %s in %s", want, out)
		}
		if idx < last {
			t.Errorf("%s out of order in %s", want, out)
		}
		last = idx
	}
}

func TestCompletionEvent_PrettyCompanions(t *testing.T) {
	pretty = true
	defer func() { pretty = false }()

	var buf bytes.Buffer
	FileCreated(zerolog.New(&buf), "elements", 2*time.Second).
		Bytes("bytes", 3*1024*1024).
		Count("rows", 1500).
		Throughput(4 * 1024 * 1024).
		Log("elements written")

	out := buf.String()
	for _, want := range []string{`"event":"file_created"`, `"bytes_h":"3.00 MiB"`, `"rows_h":"1.50K"`, `"throughput_h":"2.00 MiB/s"`, `"duration_h":"2.00s"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestCompletionEvent_PrettyProgress(t *testing.T) {
	pretty = true
	defer func() { pretty = false }()

	var buf bytes.Buffer
	NewCompletionEvent(zerolog.New(&buf), "progress", "extract", 4*time.Second).
		Progress(50_000, 200_000, 12*time.Second).
		Log("extraction progress")

	out := buf.String()
	for _, want := range []string{`"progress_pct":25`, `"progress_h":"50.00K/200.00K"`, `"rate_h":"12.50K/s"`, `"eta_h":"12.00s"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestCompletionEvent_LogDebug(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.InfoLevel)

	PhaseComplete(log, "header", time.Millisecond).Int("x", 1).LogDebug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug event written at info level: %s", buf.String())
	}

	log = zerolog.New(&buf).Level(zerolog.DebugLevel)
	PhaseComplete(log, "header", time.Millisecond).Int("x", 1).LogDebug("shown")
	if !strings.Contains(buf.String(), `"level":"debug"`) {
		t.Errorf("expected debug event, got %s", buf.String())
	}
}
