package scan

import (
	"testing"
	"time"

	"github.com/leminhvu/packtrace-backend/pkg/clock"
)

type stubDecoder struct {
	payload string
}

func (s *stubDecoder) Decode(frame []byte) (string, bool) {
	if s.payload == "" {
		return "", false
	}
	return s.payload, true
}

type stubBeeper struct {
	pulses int
}

func (s *stubBeeper) Beep() {
	s.pulses++
}

type scanRecorder struct {
	detections []DetectionEvent
	unlocks    []UnlockEvent
}

func (r *scanRecorder) record(ev Event) {
	switch e := ev.(type) {
	case DetectionEvent:
		r.detections = append(r.detections, e)
	case UnlockEvent:
		r.unlocks = append(r.unlocks, e)
	}
}

func newEngineForTests(t *testing.T) (*Engine, *clock.Fake, *stubDecoder, *stubBeeper, *scanRecorder) {
	t.Helper()
	fc := clock.NewFake(time.Date(2025, 10, 20, 10, 0, 0, 0, time.UTC))
	dec := &stubDecoder{}
	beeper := &stubBeeper{}
	engine, err := New(Params{
		Clock:          fc,
		Decoder:        dec,
		Beeper:         beeper,
		LockDuration:   3 * time.Second,
		SampleInterval: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := &scanRecorder{}
	engine.Subscribe(rec.record)
	return engine, fc, dec, beeper, rec
}

func TestSampleThrottlesByInterval(t *testing.T) {
	engine, fc, dec, _, _ := newEngineForTests(t)
	dec.payload = "ABC123"

	if _, ok := engine.Sample(nil); !ok {
		t.Fatalf("first sample should decode")
	}
	// Within the interval: no decode attempt.
	fc.Advance(50 * time.Millisecond)
	if _, ok := engine.Sample(nil); ok {
		t.Fatalf("sample inside the interval must be dropped")
	}
	fc.Advance(60 * time.Millisecond)
	if _, ok := engine.Sample(nil); !ok {
		t.Fatalf("sample after the interval should decode")
	}
}

func TestProcessLocksAndSuppressesDuplicates(t *testing.T) {
	engine, fc, _, beeper, rec := newEngineForTests(t)

	engine.Process("ABC123")
	if !engine.Locked() {
		t.Fatalf("expected lock after detection")
	}
	if len(rec.detections) != 1 || rec.detections[0].DistinctCount != 1 {
		t.Fatalf("unexpected detections %+v", rec.detections)
	}
	if beeper.pulses != 1 {
		t.Fatalf("expected one beep, got %d", beeper.pulses)
	}

	// Same code while locked: full no-op.
	fc.Advance(time.Second)
	engine.Process("ABC123")
	if len(rec.detections) != 1 || beeper.pulses != 1 || engine.DistinctCount() != 1 {
		t.Fatalf("duplicate inside lock must not change state")
	}
}

func TestSampleSkipsDecodeWhileLockedAndUnlocksOnce(t *testing.T) {
	engine, fc, dec, _, rec := newEngineForTests(t)
	dec.payload = "ABC123"

	engine.Process("ABC123")

	fc.Advance(time.Second)
	if _, ok := engine.Sample(nil); ok {
		t.Fatalf("no decode attempt while the lock window is open")
	}

	// Past the lock window the next sample unlocks, exactly once.
	fc.Advance(3 * time.Second)
	if _, ok := engine.Sample(nil); !ok {
		t.Fatalf("expected decode after unlock")
	}
	if len(rec.unlocks) != 1 || rec.unlocks[0].Code != "ABC123" {
		t.Fatalf("expected a single unlock event, got %+v", rec.unlocks)
	}
	fc.Advance(time.Second)
	engine.Sample(nil)
	if len(rec.unlocks) != 1 {
		t.Fatalf("unlock must fire once per lock cycle")
	}
}

func TestDistinctCodesFirstSeenSemantics(t *testing.T) {
	engine, fc, _, _, rec := newEngineForTests(t)

	engine.Process("ABC123")
	fc.Advance(4 * time.Second)
	engine.Sample(nil) // lazy unlock
	engine.Process("XYZ999")
	fc.Advance(4 * time.Second)
	engine.Sample(nil)
	// Re-scan of a code seen earlier in the session: locks again but does not
	// inflate the count.
	engine.Process("ABC123")

	if got := engine.DistinctCount(); got != 2 {
		t.Fatalf("distinct count = %d, want 2", got)
	}
	codes := engine.Codes()
	if len(codes) != 2 || codes[0] != "ABC123" || codes[1] != "XYZ999" {
		t.Fatalf("unexpected insertion order %v", codes)
	}
	last := rec.detections[len(rec.detections)-1]
	if last.Code != "ABC123" || last.DistinctCount != 2 {
		t.Fatalf("re-detection should carry the unchanged count, got %+v", last)
	}
}

func TestDifferentCodeWhileLockedStartsNewLock(t *testing.T) {
	engine, fc, _, _, rec := newEngineForTests(t)

	engine.Process("ABC123")
	fc.Advance(time.Second)
	engine.Process("XYZ999")

	if len(rec.detections) != 2 {
		t.Fatalf("a different code is not a duplicate, got %+v", rec.detections)
	}
	if !engine.Locked() {
		t.Fatalf("new detection must re-lock")
	}
	// The fresh lock runs from the second detection.
	fc.Advance(2500 * time.Millisecond)
	if !engine.Locked() {
		t.Fatalf("lock should still be open 2.5s after re-detection")
	}
}

func TestResetSessionClearsEverything(t *testing.T) {
	engine, _, _, _, _ := newEngineForTests(t)

	engine.Process("ABC123")
	engine.ResetSession()

	if engine.Locked() || engine.DistinctCount() != 0 {
		t.Fatalf("reset must clear lock and code set")
	}
	// The same code right after reset is a fresh first sight.
	engine.Process("ABC123")
	if engine.DistinctCount() != 1 {
		t.Fatalf("post-reset detection should count again")
	}
}

func TestDistinctCountNeverDecreases(t *testing.T) {
	engine, fc, _, _, _ := newEngineForTests(t)

	prev := 0
	inputs := []string{"A", "A", "B", "A", "C", "B", "C"}
	for _, code := range inputs {
		engine.Process(code)
		if got := engine.DistinctCount(); got < prev {
			t.Fatalf("distinct count decreased from %d to %d", prev, got)
		} else {
			prev = got
		}
		fc.Advance(4 * time.Second)
		engine.Sample(nil)
	}
	if prev != 3 {
		t.Fatalf("expected 3 distinct codes, got %d", prev)
	}
}
