package license

import "time"

// Phase tracks where the license lifecycle currently sits.
type Phase string

const (
	// PhaseFree is the default tier: no record, no grace marker.
	PhaseFree Phase = "free"
	// PhaseActive means a stored record is unexpired.
	PhaseActive Phase = "active"
	// PhaseGrace means the record expired but the grace window is still open.
	PhaseGrace Phase = "grace"
	// PhaseExpiredCleared is the terminal state of one premium cycle: grace
	// exhausted, history purged.
	PhaseExpiredCleared Phase = "expired_cleared"
)

// State is the derived license view. It is computed from the persisted
// record, grace marker, and daily usage; never persisted directly.
type State struct {
	Phase         Phase      `json:"phase"`
	IsPremium     bool       `json:"is_premium"`
	LicenseKey    string     `json:"license_key,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	DaysRemaining int        `json:"days_remaining"`
	TodayUsed     int        `json:"today_used"`
	TodayDate     string     `json:"today_date"`
	DailyLimit    int        `json:"daily_limit"`
}

// Record is the persisted license entity.
type Record struct {
	LicenseKey  string    `json:"license_key"`
	ExpiresAt   time.Time `json:"expires_at"`
	ActivatedAt time.Time `json:"activated_at"`
}

// GraceMarker is created once when a premium license is found expired. At
// most one marker exists per installation.
type GraceMarker struct {
	ExpiredAt  time.Time `json:"expired_at"`
	GraceEndAt time.Time `json:"grace_end_at"`
}

// DailyUsage is the persisted free-tier scan counter.
type DailyUsage struct {
	Date string `json:"date"`
	Used int    `json:"used"`
}

// Event is a typed license notification delivered to subscribers.
type Event interface {
	licenseEvent()
}

// RenewalWarningEvent fires when an active license nears expiry. DaysRemaining
// is 0 when the license just expired and -1 while inside the grace window.
type RenewalWarningEvent struct {
	DaysRemaining int
}

// GraceExpiredEvent fires exactly once when the grace window closes and the
// installation is cleared back to the free tier.
type GraceExpiredEvent struct{}

// LimitReachedEvent fires when a free-tier user hits the daily scan cap.
type LimitReachedEvent struct {
	Used int
}

func (RenewalWarningEvent) licenseEvent() {}
func (GraceExpiredEvent) licenseEvent()   {}
func (LimitReachedEvent) licenseEvent()   {}
