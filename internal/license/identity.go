package license

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/leminhvu/packtrace-backend/pkg/kv"
)

const keyVisitorID = "visitor_id"

// Identity is the stable device identity attached to remote activation
// requests.
type Identity struct {
	VisitorID         string
	DeviceFingerprint string
	ScreenDescriptor  string
	Timezone          string
}

// LoadIdentity returns the installation's identity, minting and persisting a
// visitor id on first use.
func LoadIdentity(ctx context.Context, gw kv.Gateway) Identity {
	visitor := ""
	if raw, ok, err := gw.Get(ctx, keyVisitorID); err == nil && ok {
		visitor = string(raw)
	}
	if visitor == "" {
		visitor = uuid.NewString()
		// Best effort; a new id per run only weakens dedup on the remote side.
		_ = gw.Set(ctx, keyVisitorID, []byte(visitor))
	}

	host, _ := os.Hostname()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", host, runtime.GOOS, runtime.GOARCH)))

	zone, _ := time.Now().Zone()
	return Identity{
		VisitorID:         visitor,
		DeviceFingerprint: hex.EncodeToString(sum[:]),
		ScreenDescriptor:  "headless",
		Timezone:          zone,
	}
}
