package scan

import (
	"fmt"
	"sync"
	"time"

	"github.com/leminhvu/packtrace-backend/pkg/clock"
	"github.com/leminhvu/packtrace-backend/pkg/metrics"
)

// Decoder extracts a QR/barcode payload from one camera frame. The actual
// symbology decode lives in the capture collaborator.
type Decoder interface {
	Decode(frame []byte) (string, bool)
}

// Beeper plays the audible detection pulse.
type Beeper interface {
	Beep()
}

// Event is a typed scan notification.
type Event interface {
	scanEvent()
}

// DetectionEvent fires when a payload is accepted. DistinctCount is the size
// of the session's deduplicated code set after this detection.
type DetectionEvent struct {
	Code          string
	DistinctCount int
}

// UnlockEvent fires exactly once per lock cycle, when the lock window lapses.
type UnlockEvent struct {
	Code string
}

func (DetectionEvent) scanEvent() {}
func (UnlockEvent) scanEvent()    {}

// Params configure the scan engine.
type Params struct {
	Clock          clock.Clock
	Decoder        Decoder
	Beeper         Beeper                  // optional
	Metrics        *metrics.SessionMetrics // optional
	LockDuration   time.Duration
	SampleInterval time.Duration
}

// Engine owns per-frame detection cadence, the duplicate-suppression lock,
// and the session's distinct-code set.
type Engine struct {
	clock          clock.Clock
	dec            Decoder
	beeper         Beeper
	metrics        *metrics.SessionMetrics
	lockDuration   time.Duration
	sampleInterval time.Duration

	mu         sync.Mutex
	lastSample time.Time
	locked     bool
	lockUntil  time.Time
	lastCode   string
	codes      []string
	seen       map[string]struct{}
	subs       []func(Event)
}

// New builds a scan engine.
func New(params Params) (*Engine, error) {
	if params.Clock == nil {
		return nil, fmt.Errorf("clock required")
	}
	if params.Decoder == nil {
		return nil, fmt.Errorf("decoder required")
	}
	if params.LockDuration <= 0 {
		return nil, fmt.Errorf("lock duration must be positive")
	}
	if params.SampleInterval <= 0 {
		return nil, fmt.Errorf("sample interval must be positive")
	}
	return &Engine{
		clock:          params.Clock,
		dec:            params.Decoder,
		beeper:         params.Beeper,
		metrics:        params.Metrics,
		lockDuration:   params.LockDuration,
		sampleInterval: params.SampleInterval,
		seen:           map[string]struct{}{},
	}, nil
}

// Subscribe registers an event listener. Not safe to call concurrently with
// Sample/Process.
func (e *Engine) Subscribe(fn func(Event)) {
	e.subs = append(e.subs, fn)
}

func (e *Engine) emit(events []Event) {
	for _, ev := range events {
		for _, fn := range e.subs {
			fn(ev)
		}
	}
}

// Sample rate-limits decode attempts and skips them entirely while the lock
// window is open. Unlock is evaluated lazily here, once per lock cycle.
func (e *Engine) Sample(frame []byte) (string, bool) {
	e.mu.Lock()
	now := e.clock.Now()
	if !e.lastSample.IsZero() && now.Sub(e.lastSample) < e.sampleInterval {
		e.mu.Unlock()
		return "", false
	}
	e.lastSample = now

	var events []Event
	if e.locked {
		if now.Before(e.lockUntil) {
			e.mu.Unlock()
			return "", false
		}
		e.locked = false
		events = append(events, UnlockEvent{Code: e.lastCode})
	}
	e.mu.Unlock()
	e.emit(events)

	return e.dec.Decode(frame)
}

// Process runs duplicate suppression and, on acceptance, starts a fresh lock
// window, records first-seen codes, pulses the beeper, and emits a detection
// event.
func (e *Engine) Process(raw string) {
	if raw == "" {
		return
	}

	e.mu.Lock()
	now := e.clock.Now()
	if e.locked && now.Before(e.lockUntil) && raw == e.lastCode {
		e.mu.Unlock()
		if e.metrics != nil {
			e.metrics.IncDuplicateSuppressed()
		}
		return
	}

	e.lastCode = raw
	e.locked = true
	e.lockUntil = now.Add(e.lockDuration)
	if _, ok := e.seen[raw]; !ok {
		e.seen[raw] = struct{}{}
		e.codes = append(e.codes, raw)
	}
	count := len(e.codes)
	e.mu.Unlock()

	if e.beeper != nil {
		e.beeper.Beep()
	}
	if e.metrics != nil {
		e.metrics.IncDetection()
	}
	e.emit([]Event{DetectionEvent{Code: raw, DistinctCount: count}})
}

// Locked reports whether the lock window is currently open.
func (e *Engine) Locked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locked && e.clock.Now().Before(e.lockUntil)
}

// DistinctCount returns the size of the session's deduplicated code set.
func (e *Engine) DistinctCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.codes)
}

// Codes returns the distinct codes in first-seen order.
func (e *Engine) Codes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.codes))
	copy(out, e.codes)
	return out
}

// ResetCodes clears the distinct-code set but leaves the lock window intact.
// Used when a detection is refused, so the refused code neither lingers in the
// set nor re-fires on every sample.
func (e *Engine) ResetCodes() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.codes = nil
	e.seen = map[string]struct{}{}
}

// ResetSession clears lock, last code, and the distinct-code set. Called when
// a recording session ends, not on a mere unlock.
func (e *Engine) ResetSession() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locked = false
	e.lockUntil = time.Time{}
	e.lastCode = ""
	e.codes = nil
	e.seen = map[string]struct{}{}
}
