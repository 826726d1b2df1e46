package recording

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/leminhvu/packtrace-backend/pkg/clock"
	pkgerrors "github.com/leminhvu/packtrace-backend/pkg/errors"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// FileRecorder is the shipped Recorder: it tracks camera and recording
// lifecycle and emits one SavedEvent per completed recording with a
// wall-clock duration and an estimated file size. The actual media pipeline
// (capture, compositing, encoding) runs in the external capture process.
type FileRecorder struct {
	clock       clock.Clock
	outputDir   string
	bitrateMbps float64

	mu        sync.Mutex
	cameraOn  bool
	recording bool
	tag       string
	startedAt time.Time
	subs      []func(SavedEvent)
}

// NewFileRecorder builds the recorder.
func NewFileRecorder(clk clock.Clock, outputDir string, bitrateMbps float64) (*FileRecorder, error) {
	if clk == nil {
		return nil, fmt.Errorf("clock required")
	}
	if bitrateMbps <= 0 {
		return nil, fmt.Errorf("bitrate must be positive")
	}
	return &FileRecorder{clock: clk, outputDir: outputDir, bitrateMbps: bitrateMbps}, nil
}

// Subscribe registers a save-event listener.
func (r *FileRecorder) Subscribe(fn func(SavedEvent)) {
	r.subs = append(r.subs, fn)
}

func (r *FileRecorder) StartCamera(ctx context.Context, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cameraOn {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "camera already started")
	}
	r.cameraOn = true
	return nil
}

func (r *FileRecorder) StopCamera(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cameraOn = false
	return nil
}

func (r *FileRecorder) StartRecording(ctx context.Context, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.cameraOn {
		return pkgerrors.New(pkgerrors.CodeCameraUnavailable, "camera is not running")
	}
	if r.recording {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "recording already in progress")
	}
	r.recording = true
	r.tag = tag
	r.startedAt = r.clock.Now()
	return nil
}

func (r *FileRecorder) StopRecording(ctx context.Context, meta Metadata) error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no recording in progress")
	}
	now := r.clock.Now()
	seconds := int(now.Sub(r.startedAt).Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	event := SavedEvent{
		Filename:        r.filename(r.tag, now),
		SizeMB:          float64(seconds) * r.bitrateMbps / 8,
		DurationSeconds: seconds,
		Tag:             r.tag,
		ProductCount:    meta.ProductCount,
	}
	r.recording = false
	r.tag = ""
	subs := r.subs
	r.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
	return nil
}

func (r *FileRecorder) filename(tag string, now time.Time) string {
	safe := unsafeFilenameChars.ReplaceAllString(tag, "_")
	name := fmt.Sprintf("packtrace_%s_%s.webm", safe, now.Format("20060102_150405"))
	if r.outputDir == "" {
		return name
	}
	return r.outputDir + "/" + name
}
