package recording

import (
	"context"
	"os"
	"path/filepath"
	"sort"
)

// FrameSource yields camera frames for the scan loop.
type FrameSource interface {
	// NextFrame returns the next available frame, or ok=false when none is
	// pending right now.
	NextFrame(ctx context.Context) (frame []byte, ok bool, err error)
}

// SpoolSource reads frames dropped into a spool directory by the capture
// process, oldest first, deleting each file after it is consumed.
type SpoolSource struct {
	dir string
}

// NewSpoolSource builds a directory-backed frame source.
func NewSpoolSource(dir string) (*SpoolSource, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &SpoolSource{dir: dir}, nil
}

func (s *SpoolSource) NextFrame(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, false, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, false, nil
	}
	sort.Strings(names)

	path := filepath.Join(s.dir, names[0])
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	_ = os.Remove(path)
	return data, true, nil
}
