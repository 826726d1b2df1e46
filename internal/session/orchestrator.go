package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leminhvu/packtrace-backend/internal/orders"
	"github.com/leminhvu/packtrace-backend/internal/recording"
	"github.com/leminhvu/packtrace-backend/internal/scan"
	"github.com/leminhvu/packtrace-backend/pkg/clock"
	"github.com/leminhvu/packtrace-backend/pkg/errors"
	"github.com/leminhvu/packtrace-backend/pkg/logger"
	"github.com/leminhvu/packtrace-backend/pkg/metrics"
)

// Phase is the orchestrator's lifecycle state.
type Phase string

const (
	// PhaseIdle means the camera is off and frames are ignored.
	PhaseIdle Phase = "idle"
	// PhaseArmed means the camera is on and the next detection starts a recording.
	PhaseArmed Phase = "armed"
	// PhaseRecording means a recording is in progress and the scanner is locked
	// or was recently locked.
	PhaseRecording Phase = "recording"
	// PhasePostBuffer means the scanner has unlocked and the stop timer is the
	// only thing keeping the recording open.
	PhasePostBuffer Phase = "post_buffer"
)

type licenseGate interface {
	CanScanMore(ctx context.Context) bool
	RecordUsage(ctx context.Context)
}

type scanner interface {
	Sample(frame []byte) (string, bool)
	Process(raw string)
	Subscribe(fn func(scan.Event))
	Locked() bool
	DistinctCount() int
	ResetCodes()
	ResetSession()
}

type orderStore interface {
	Add(ctx context.Context, input orders.AddInput) (orders.Order, error)
}

// Event is a typed session notification.
type Event interface {
	sessionEvent()
}

// PhaseChangedEvent fires on every phase transition.
type PhaseChangedEvent struct {
	From Phase
	To   Phase
}

// QuotaDeniedEvent fires when a detection is refused because the daily free
// quota is exhausted. The recording never starts.
type QuotaDeniedEvent struct {
	Code string
}

// OrderCommittedEvent fires after a finished recording has been stored as an
// order and usage has been recorded.
type OrderCommittedEvent struct {
	Order orders.Order
}

func (PhaseChangedEvent) sessionEvent()   {}
func (QuotaDeniedEvent) sessionEvent()    {}
func (OrderCommittedEvent) sessionEvent() {}

// Params configure the orchestrator.
type Params struct {
	Clock      clock.Clock
	Logger     *logger.Logger
	Metrics    *metrics.SessionMetrics // optional
	License    licenseGate
	Scanner    scanner
	Recorder   recording.Recorder
	Orders     orderStore
	PostBuffer time.Duration
}

// Orchestrator drives the scan-to-order lifecycle. It wires the scan engine,
// the recorder, the license gate, and the order store into one state machine:
// a detection while armed starts a recording, further detections extend it,
// and the post-buffer timer finalizes it into exactly one order.
type Orchestrator struct {
	clock      clock.Clock
	log        *logger.Logger
	metrics    *metrics.SessionMetrics
	license    licenseGate
	scanner    scanner
	recorder   recording.Recorder
	orders     orderStore
	postBuffer time.Duration

	mu        sync.Mutex
	phase     Phase
	stopTimer clock.Timer
	subs      []func(Event)
}

// New validates dependencies, subscribes to scanner and recorder events, and
// returns an idle orchestrator.
func New(params Params) (*Orchestrator, error) {
	if params.Clock == nil {
		return nil, fmt.Errorf("clock required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.License == nil {
		return nil, fmt.Errorf("license gate required")
	}
	if params.Scanner == nil {
		return nil, fmt.Errorf("scanner required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("recorder required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.PostBuffer <= 0 {
		return nil, fmt.Errorf("post buffer must be positive")
	}

	o := &Orchestrator{
		clock:      params.Clock,
		log:        params.Logger,
		metrics:    params.Metrics,
		license:    params.License,
		scanner:    params.Scanner,
		recorder:   params.Recorder,
		orders:     params.Orders,
		postBuffer: params.PostBuffer,
		phase:      PhaseIdle,
	}
	o.scanner.Subscribe(o.onScanEvent)
	o.recorder.Subscribe(o.onSaved)
	return o, nil
}

// Subscribe registers an event listener. Not safe to call once frames are
// flowing.
func (o *Orchestrator) Subscribe(fn func(Event)) {
	o.subs = append(o.subs, fn)
}

func (o *Orchestrator) emit(events []Event) {
	for _, ev := range events {
		for _, fn := range o.subs {
			fn(ev)
		}
	}
}

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// StartCamera turns the camera on and arms the scanner. A failure leaves the
// orchestrator idle.
func (o *Orchestrator) StartCamera(ctx context.Context, deviceID string) error {
	o.mu.Lock()
	if o.phase != PhaseIdle {
		o.mu.Unlock()
		return errors.New(errors.CodeStateConflict, "camera already running")
	}
	o.mu.Unlock()

	if err := o.recorder.StartCamera(ctx, deviceID); err != nil {
		if errors.As(err) == nil {
			err = errors.Wrap(errors.CodeCameraUnavailable, err, "camera start failed")
		}
		o.log.Error(ctx, "camera start failed", err)
		return err
	}

	o.mu.Lock()
	events := o.setPhaseLocked(PhaseArmed)
	o.mu.Unlock()
	o.emit(events)
	o.log.Info(ctx, "camera started, scanner armed")
	return nil
}

// StopCamera tears the session down: cancels the stop timer, finalizes any
// in-flight recording, resets the scanner, and turns the camera off.
func (o *Orchestrator) StopCamera(ctx context.Context) error {
	o.mu.Lock()
	if o.phase == PhaseIdle {
		o.mu.Unlock()
		return nil
	}
	o.cancelStopTimerLocked()
	inFlight := o.phase == PhaseRecording || o.phase == PhasePostBuffer
	o.mu.Unlock()

	if inFlight {
		o.finalize(ctx)
	}

	err := o.recorder.StopCamera(ctx)
	o.scanner.ResetSession()

	o.mu.Lock()
	events := o.setPhaseLocked(PhaseIdle)
	o.mu.Unlock()
	o.emit(events)

	if err != nil {
		o.log.Error(ctx, "camera stop failed", err)
		return err
	}
	o.log.Info(ctx, "camera stopped")
	return nil
}

// HandleFrame feeds one camera frame through the scan engine. Frames are
// ignored while idle.
func (o *Orchestrator) HandleFrame(ctx context.Context, frame []byte) {
	o.mu.Lock()
	idle := o.phase == PhaseIdle
	o.mu.Unlock()
	if idle {
		return
	}

	raw, ok := o.scanner.Sample(frame)
	if ok {
		o.scanner.Process(raw)
	}
}

func (o *Orchestrator) onScanEvent(ev scan.Event) {
	switch e := ev.(type) {
	case scan.DetectionEvent:
		o.onDetection(e)
	case scan.UnlockEvent:
		o.onUnlock()
	}
}

func (o *Orchestrator) onDetection(ev scan.DetectionEvent) {
	ctx := o.log.WithQRCode(context.Background(), ev.Code)

	o.mu.Lock()
	switch o.phase {
	case PhaseArmed:
		if !o.license.CanScanMore(ctx) {
			o.mu.Unlock()
			if o.metrics != nil {
				o.metrics.IncQuotaDenied()
			}
			// The lock window keeps the refused code from re-firing every
			// sample; only the code set is cleared.
			o.scanner.ResetCodes()
			o.emit([]Event{QuotaDeniedEvent{Code: ev.Code}})
			o.log.Warn(ctx, "detection refused, daily quota exhausted")
			return
		}
		if err := o.recorder.StartRecording(ctx, ev.Code); err != nil {
			o.mu.Unlock()
			o.scanner.ResetCodes()
			o.log.Error(ctx, "recording start failed", err)
			return
		}
		o.armStopTimerLocked()
		events := o.setPhaseLocked(PhaseRecording)
		o.mu.Unlock()
		if o.metrics != nil {
			o.metrics.IncRecordingStarted()
		}
		o.emit(events)
		o.log.Info(ctx, "recording started")

	case PhaseRecording, PhasePostBuffer:
		// Every accepted detection restarts the post-buffer countdown.
		o.armStopTimerLocked()
		events := o.setPhaseLocked(PhaseRecording)
		o.mu.Unlock()
		o.emit(events)

	default:
		o.mu.Unlock()
	}
}

func (o *Orchestrator) onUnlock() {
	o.mu.Lock()
	var events []Event
	if o.phase == PhaseRecording && o.stopTimer != nil {
		events = o.setPhaseLocked(PhasePostBuffer)
	}
	o.mu.Unlock()
	o.emit(events)
}

// handleStopTimer runs when the post-buffer countdown lapses. A still-locked
// scanner means the stop is premature: either a later detection superseded
// this timer, or the lock window simply outlasts the post buffer. Re-arming
// keeps the stop pending either way, so the recording cannot strand with no
// timer left to finalize it.
func (o *Orchestrator) handleStopTimer() {
	o.mu.Lock()
	if o.phase != PhaseRecording && o.phase != PhasePostBuffer {
		o.mu.Unlock()
		return
	}
	if o.scanner.Locked() {
		o.armStopTimerLocked()
		o.mu.Unlock()
		return
	}
	o.stopTimer = nil
	o.mu.Unlock()

	o.finalize(context.Background())
}

// finalize stops the recording with the session's distinct-code count. The
// recorder's save event lands in onSaved, which commits the order, records
// usage, and re-arms, all before StopRecording returns.
func (o *Orchestrator) finalize(ctx context.Context) {
	meta := recording.Metadata{ProductCount: o.scanner.DistinctCount()}
	if err := o.recorder.StopRecording(ctx, meta); err != nil {
		o.log.Error(ctx, "recording stop failed", err)
	}
}

func (o *Orchestrator) onSaved(ev recording.SavedEvent) {
	ctx := o.log.WithQRCode(context.Background(), ev.Tag)

	order, err := o.orders.Add(ctx, orders.AddInput{
		QRCode:          ev.Tag,
		DurationSeconds: ev.DurationSeconds,
		SizeMB:          ev.SizeMB,
		ProductCount:    ev.ProductCount,
		Filename:        ev.Filename,
	})
	if err != nil {
		o.log.Error(ctx, "order commit failed", err)
	} else {
		o.license.RecordUsage(ctx)
		if o.metrics != nil {
			o.metrics.IncOrderCommitted()
			o.metrics.ObserveRecordingSeconds(float64(ev.DurationSeconds))
		}
	}

	o.scanner.ResetSession()

	o.mu.Lock()
	o.cancelStopTimerLocked()
	var events []Event
	if o.phase == PhaseRecording || o.phase == PhasePostBuffer {
		events = o.setPhaseLocked(PhaseArmed)
	}
	o.mu.Unlock()

	if err == nil {
		events = append(events, OrderCommittedEvent{Order: order})
	}
	o.emit(events)
	o.log.Info(ctx, "session finalized")
}

func (o *Orchestrator) armStopTimerLocked() {
	if o.stopTimer != nil {
		o.stopTimer.Stop()
	}
	o.stopTimer = o.clock.AfterFunc(o.postBuffer, o.handleStopTimer)
}

func (o *Orchestrator) cancelStopTimerLocked() {
	if o.stopTimer != nil {
		o.stopTimer.Stop()
		o.stopTimer = nil
	}
}

func (o *Orchestrator) setPhaseLocked(next Phase) []Event {
	if o.phase == next {
		return nil
	}
	prev := o.phase
	o.phase = next
	return []Event{PhaseChangedEvent{From: prev, To: next}}
}
