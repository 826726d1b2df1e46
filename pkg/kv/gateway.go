package kv

import "context"

// Well-known gateway keys.
const (
	KeyLicenseRecord = "license_record"
	KeyGraceMarker   = "grace_marker"
	KeyDailyUsage    = "daily_usage"
	KeyOrders        = "orders"
)

// Gateway is the abstract key-value store behind every persisted entity.
// Implementations carry no business logic.
type Gateway interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}
