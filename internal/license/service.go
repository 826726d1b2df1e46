package license

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/leminhvu/packtrace-backend/pkg/clock"
	pkgerrors "github.com/leminhvu/packtrace-backend/pkg/errors"
	"github.com/leminhvu/packtrace-backend/pkg/kv"
	"github.com/leminhvu/packtrace-backend/pkg/logger"
)

const usageDateLayout = "2006-01-02"

type orderPurger interface {
	Purge(ctx context.Context) error
}

// Activator performs a remote activation for a license key.
type Activator interface {
	Activate(ctx context.Context, key string) (*ActivationResponse, error)
}

// ServiceParams configure the license service.
type ServiceParams struct {
	Gateway            kv.Gateway
	Purger             orderPurger
	Clock              clock.Clock
	Logger             *logger.Logger
	Remote             Activator // optional; remote activation fails with CONNECTION_ERROR when absent
	DailyFreeLimit     int
	RenewalWarningDays int
	GracePeriod        time.Duration
}

// Service owns premium/free status, the daily quota, the grace transition,
// and license activation.
type Service struct {
	gw       kv.Gateway
	purger   orderPurger
	clock    clock.Clock
	logg     *logger.Logger
	remote   Activator
	limit    int
	warnDays int
	grace    time.Duration

	mu    sync.Mutex
	state State
	subs  []func(Event)
}

// NewService builds the license engine.
func NewService(params ServiceParams) (*Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if params.Purger == nil {
		return nil, fmt.Errorf("order purger required")
	}
	if params.Clock == nil {
		return nil, fmt.Errorf("clock required")
	}
	if params.DailyFreeLimit <= 0 {
		return nil, fmt.Errorf("daily free limit must be positive")
	}
	if params.GracePeriod <= 0 {
		return nil, fmt.Errorf("grace period must be positive")
	}
	return &Service{
		gw:       params.Gateway,
		purger:   params.Purger,
		clock:    params.Clock,
		logg:     params.Logger,
		remote:   params.Remote,
		limit:    params.DailyFreeLimit,
		warnDays: params.RenewalWarningDays,
		grace:    params.GracePeriod,
		state:    State{Phase: PhaseFree, DailyLimit: params.DailyFreeLimit},
	}, nil
}

// Subscribe registers an event listener. Not safe to call concurrently with
// event-producing operations.
func (s *Service) Subscribe(fn func(Event)) {
	s.subs = append(s.subs, fn)
}

func (s *Service) emit(events []Event) {
	for _, ev := range events {
		for _, fn := range s.subs {
			fn(ev)
		}
	}
}

// State returns the last computed license state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsPremium reports whether the last evaluation found an active (or grace)
// premium license.
func (s *Service) IsPremium() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsPremium
}

// Evaluate recomputes the license state from the persisted record and grace
// marker. Persistence failures are swallowed: the engine fails open to the
// free tier rather than crashing.
func (s *Service) Evaluate(ctx context.Context) State {
	s.mu.Lock()
	now := s.clock.Now()
	usage := s.loadUsage(ctx)

	st := State{
		Phase:      PhaseFree,
		TodayUsed:  usage.Used,
		TodayDate:  usage.Date,
		DailyLimit: s.limit,
	}

	var events []Event
	rec := s.loadRecord(ctx)
	if rec != nil && rec.ExpiresAt.After(now) {
		st.Phase = PhaseActive
		st.IsPremium = true
		st.LicenseKey = rec.LicenseKey
		expires := rec.ExpiresAt
		st.ExpiresAt = &expires
		st.DaysRemaining = daysRemaining(now, rec.ExpiresAt)
		s.removeKey(ctx, kv.KeyGraceMarker)
		if s.warnDays > 0 && st.DaysRemaining <= s.warnDays {
			events = append(events, RenewalWarningEvent{DaysRemaining: st.DaysRemaining})
		}
	} else {
		marker := s.loadMarker(ctx)
		switch {
		case rec != nil && marker == nil:
			// Just expired: open the grace window and drop the record.
			m := GraceMarker{ExpiredAt: rec.ExpiresAt, GraceEndAt: rec.ExpiresAt.Add(s.grace)}
			s.saveJSON(ctx, kv.KeyGraceMarker, m)
			s.removeKey(ctx, kv.KeyLicenseRecord)
			st.Phase = PhaseGrace
			st.IsPremium = true
			st.LicenseKey = rec.LicenseKey
			events = append(events, RenewalWarningEvent{DaysRemaining: 0})
		case marker != nil && now.Before(marker.GraceEndAt):
			st.Phase = PhaseGrace
			st.IsPremium = true
			events = append(events, RenewalWarningEvent{DaysRemaining: -1})
		case marker != nil:
			// Grace exhausted: premium and history are gone for this cycle.
			if err := s.purger.Purge(ctx); err != nil {
				s.warn(ctx, "purging orders on grace exhaustion", err)
			}
			s.removeKey(ctx, kv.KeyGraceMarker)
			s.removeKey(ctx, kv.KeyLicenseRecord)
			st.Phase = PhaseExpiredCleared
			events = append(events, GraceExpiredEvent{})
		}
	}

	s.state = st
	s.mu.Unlock()

	s.emit(events)
	return st
}

// Activate unconditionally stores a new license record and clears any grace
// marker.
func (s *Service) Activate(ctx context.Context, key string, expiresAt time.Time) (State, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return State{}, pkgerrors.New(pkgerrors.CodeInvalidLicense, "license key is required")
	}

	s.mu.Lock()
	s.activateLocked(ctx, key, expiresAt)
	s.mu.Unlock()
	return s.Evaluate(ctx), nil
}

func (s *Service) activateLocked(ctx context.Context, key string, expiresAt time.Time) {
	rec := Record{LicenseKey: key, ExpiresAt: expiresAt, ActivatedAt: s.clock.Now()}
	s.saveJSON(ctx, kv.KeyLicenseRecord, rec)
	s.removeKey(ctx, kv.KeyGraceMarker)
}

// ActivateRemote activates the key against the remote endpoint. A stored
// record with the same key (case-insensitive) that is still unexpired is
// treated as already active and skips the network call.
func (s *Service) ActivateRemote(ctx context.Context, key string) (State, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return State{}, pkgerrors.New(pkgerrors.CodeInvalidLicense, "license key is required")
	}

	s.mu.Lock()
	rec := s.loadRecord(ctx)
	now := s.clock.Now()
	if rec != nil && strings.EqualFold(rec.LicenseKey, key) && rec.ExpiresAt.After(now) {
		s.mu.Unlock()
		return s.Evaluate(ctx), nil
	}
	s.mu.Unlock()

	if s.remote == nil {
		return State{}, pkgerrors.New(pkgerrors.CodeConnection, "no activation endpoint configured")
	}
	resp, err := s.remote.Activate(ctx, key)
	if err != nil {
		return State{}, err
	}

	s.mu.Lock()
	s.activateLocked(ctx, resp.LicenseKey, resp.ExpiresAt)
	s.mu.Unlock()
	return s.Evaluate(ctx), nil
}

// CheckDailyQuota rolls the usage counter over to today when the stored date
// is stale. Free-tier rollover also purges the order history: free data does
// not persist day-to-day.
func (s *Service) CheckDailyQuota(ctx context.Context) {
	s.mu.Lock()
	usage := s.loadUsage(ctx)
	now := s.clock.Now()
	today := now.Format(usageDateLayout)
	if usage.Date == today {
		s.state.TodayUsed = usage.Used
		s.state.TodayDate = usage.Date
		s.mu.Unlock()
		return
	}

	usage = DailyUsage{Date: today, Used: 0}
	s.saveJSON(ctx, kv.KeyDailyUsage, usage)
	s.state.TodayUsed = 0
	s.state.TodayDate = today
	premium := s.premiumLocked(ctx, now)
	s.mu.Unlock()

	if !premium {
		if err := s.purger.Purge(ctx); err != nil {
			s.warn(ctx, "purging orders on daily rollover", err)
		}
	}
}

// CanScanMore reports whether another scan is allowed right now.
func (s *Service) CanScanMore(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsPremium {
		return true
	}
	return s.state.TodayUsed < s.limit
}

// RecordUsage increments the persisted daily counter for free-tier users and
// emits a limit-reached event when the cap is hit. Premium usage is not
// metered.
func (s *Service) RecordUsage(ctx context.Context) {
	s.mu.Lock()
	if s.state.IsPremium {
		s.mu.Unlock()
		return
	}

	usage := s.loadUsage(ctx)
	today := s.clock.Now().Format(usageDateLayout)
	if usage.Date != today {
		usage = DailyUsage{Date: today}
	}
	usage.Used++
	s.saveJSON(ctx, kv.KeyDailyUsage, usage)
	s.state.TodayUsed = usage.Used
	s.state.TodayDate = usage.Date

	var events []Event
	if usage.Used == s.limit {
		events = append(events, LimitReachedEvent{Used: usage.Used})
	}
	s.mu.Unlock()

	s.emit(events)
}

func daysRemaining(now, expiresAt time.Time) int {
	diff := expiresAt.Sub(now)
	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// premiumLocked reads premium standing straight from the stored record and
// grace marker. The cached state is not trusted here: before the first
// Evaluate of a process it still holds the free-tier default, and a rollover
// that believed it would purge a premium station's history.
func (s *Service) premiumLocked(ctx context.Context, now time.Time) bool {
	if rec := s.loadRecord(ctx); rec != nil && now.Before(rec.ExpiresAt.Add(s.grace)) {
		return true
	}
	if marker := s.loadMarker(ctx); marker != nil && now.Before(marker.GraceEndAt) {
		return true
	}
	return false
}

func (s *Service) loadRecord(ctx context.Context) *Record {
	var rec Record
	if !s.loadJSON(ctx, kv.KeyLicenseRecord, &rec) {
		return nil
	}
	if rec.LicenseKey == "" || rec.ExpiresAt.IsZero() {
		return nil
	}
	return &rec
}

func (s *Service) loadMarker(ctx context.Context) *GraceMarker {
	var m GraceMarker
	if !s.loadJSON(ctx, kv.KeyGraceMarker, &m) {
		return nil
	}
	if m.GraceEndAt.IsZero() {
		return nil
	}
	return &m
}

func (s *Service) loadUsage(ctx context.Context) DailyUsage {
	var usage DailyUsage
	if !s.loadJSON(ctx, kv.KeyDailyUsage, &usage) {
		return DailyUsage{Date: s.clock.Now().Format(usageDateLayout)}
	}
	return usage
}

// loadJSON reads and decodes a key. Missing, unreadable, or corrupt values
// all report false: the caller treats them as "no record".
func (s *Service) loadJSON(ctx context.Context, key string, dest any) bool {
	raw, ok, err := s.gw.Get(ctx, key)
	if err != nil {
		s.warn(ctx, "reading "+key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.warn(ctx, "decoding "+key, err)
		return false
	}
	return true
}

func (s *Service) saveJSON(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.warn(ctx, "encoding "+key, err)
		return
	}
	if err := s.gw.Set(ctx, key, raw); err != nil {
		s.warn(ctx, "writing "+key, err)
	}
}

func (s *Service) removeKey(ctx context.Context, key string) {
	if err := s.gw.Remove(ctx, key); err != nil {
		s.warn(ctx, "removing "+key, err)
	}
}

func (s *Service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
