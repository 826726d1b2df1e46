package recording

import "context"

// Metadata is passed to StopRecording when the orchestrator finalizes a
// session.
type Metadata struct {
	ProductCount int
}

// SavedEvent is emitted exactly once per completed recording. Duration is
// measured from the start call to the stop call.
type SavedEvent struct {
	Filename        string
	SizeMB          float64
	DurationSeconds int
	Tag             string
	ProductCount    int
}

// Recorder is the camera/recorder collaborator boundary. Implementations own
// camera lifecycle, frame compositing, and file emission; the orchestrator
// only drives start/stop and consumes save events.
type Recorder interface {
	StartCamera(ctx context.Context, deviceID string) error
	StopCamera(ctx context.Context) error
	StartRecording(ctx context.Context, tag string) error
	StopRecording(ctx context.Context, meta Metadata) error
	Subscribe(fn func(SavedEvent))
}
