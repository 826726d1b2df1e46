package scan

import "strings"

// PassthroughDecoder treats each frame as an already-decoded payload. Capture
// collaborators that run their own symbology decode hand the engine plain
// payload bytes, so nothing further is extracted here.
type PassthroughDecoder struct{}

func (PassthroughDecoder) Decode(frame []byte) (string, bool) {
	payload := strings.TrimSpace(string(frame))
	if payload == "" {
		return "", false
	}
	return payload, true
}
