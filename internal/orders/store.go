package orders

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

const (
	dateLayout  = "02/01/2006"
	timeLayout  = "15:04:05"
	queryLayout = "2006-01-02"
)

// Order is one finalized packing recording. Immutable once created except
// for deletion.
type Order struct {
	ID              int64     `json:"id"`
	QRCode          string    `json:"qr_code"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationSeconds int       `json:"duration_seconds"`
	SizeMB          float64   `json:"size_mb"`
	ProductCount    int       `json:"product_count"`
	Filename        string    `json:"filename"`
	CreatedAt       time.Time `json:"created_at"`
}

// AddInput carries the fields taken from a recording save event.
type AddInput struct {
	QRCode          string
	DurationSeconds int
	SizeMB          float64
	ProductCount    int
	Filename        string
}

// Stats aggregates the in-memory order list.
type Stats struct {
	Total                int     `json:"total"`
	Today                int     `json:"today"`
	TotalDurationSeconds int     `json:"total_duration_seconds"`
	TotalSizeMB          float64 `json:"total_size_mb"`
	TotalProducts        int     `json:"total_products"`
}

// Store owns the order history list: most-recent-first, capped, persisted as
// one blob through the gateway.
type Store struct {
	gw    kv.Gateway
	clock clock.Clock
	logg  *logger.Logger
	max   int

	mu     sync.Mutex
	orders []Order
	lastID int64
}

// NewStore loads the persisted list and returns the store. A corrupt or
// unreadable payload is treated as an empty history.
func NewStore(ctx context.Context, gw kv.Gateway, clk clock.Clock, logg *logger.Logger, max int) (*Store, error) {
	if gw == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock required")
	}
	if max <= 0 {
		return nil, fmt.Errorf("max orders must be positive")
	}
	s := &Store{gw: gw, clock: clk, logg: logg, max: max}
	s.load(ctx)
	return s, nil
}

func (s *Store) load(ctx context.Context) {
	raw, ok, err := s.gw.Get(ctx, kv.KeyOrders)
	if err != nil {
		s.warn(ctx, "loading order history", err)
		return
	}
	if !ok {
		return
	}
	var list []Order
	if err := json.Unmarshal(raw, &list); err != nil {
		s.warn(ctx, "decoding order history", err)
		return
	}
	s.orders = list
	for _, o := range list {
		if o.ID > s.lastID {
			s.lastID = o.ID
		}
	}
}

// Add assigns an id and timestamps, inserts at the head, evicts beyond the
// cap, and persists the list.
func (s *Store) Add(ctx context.Context, input AddInput) (Order, error) {
	if strings.TrimSpace(input.QRCode) == "" {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "qr code is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id

	order := Order{
		ID:              id,
		QRCode:          input.QRCode,
		Date:            now.Format(dateLayout),
		Time:            now.Format(timeLayout),
		DurationSeconds: input.DurationSeconds,
		SizeMB:          input.SizeMB,
		ProductCount:    input.ProductCount,
		Filename:        input.Filename,
		CreatedAt:       now,
	}

	s.orders = append([]Order{order}, s.orders...)
	if len(s.orders) > s.max {
		s.orders = s.orders[:s.max]
	}
	s.persist(ctx)
	return order, nil
}

// List returns a copy of the full history, most recent first.
func (s *Store) List() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Search does a case-insensitive substring match against code, date, and
// time. An empty query returns the unfiltered list.
func (s *Store) Search(query string) []Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return s.snapshot()
	}
	needle := strings.ToLower(trimmed)
	var out []Order
	for _, o := range s.orders {
		if strings.Contains(strings.ToLower(o.QRCode), needle) ||
			strings.Contains(o.Date, needle) ||
			strings.Contains(o.Time, needle) {
			out = append(out, o)
		}
	}
	return out
}

// FilterByDate keeps orders created inside the inclusive range. The end day
// is extended to end-of-day. Malformed bounds fail closed by returning the
// unfiltered list.
func (s *Store) FilterByDate(start, end string) []Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := time.ParseInLocation(queryLayout, start, s.clock.Now().Location())
	if err != nil {
		return s.snapshot()
	}
	to, err := time.ParseInLocation(queryLayout, end, s.clock.Now().Location())
	if err != nil {
		return s.snapshot()
	}
	to = to.Add(24*time.Hour - time.Nanosecond)

	var out []Order
	for _, o := range s.orders {
		if !o.CreatedAt.Before(from) && !o.CreatedAt.After(to) {
			out = append(out, o)
		}
	}
	return out
}

// Delete removes a single order by id and persists the change.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, o := range s.orders {
		if o.ID == id {
			s.orders = append(s.orders[:i], s.orders[i+1:]...)
			s.persist(ctx)
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

// Purge drops the full history. Used on grace exhaustion and free-tier daily
// rollover.
func (s *Store) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = nil
	if err := s.gw.Remove(ctx, kv.KeyOrders); err != nil {
		s.warn(ctx, "purging order history", err)
	}
	return nil
}

// CleanupStale removes orders older than the retention window and returns
// how many were dropped.
func (s *Store) CleanupStale(ctx context.Context, retentionDays int) int {
	if retentionDays <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().AddDate(0, 0, -retentionDays)
	kept := s.orders[:0]
	removed := 0
	for _, o := range s.orders {
		if o.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	if removed == 0 {
		return 0
	}
	s.orders = kept
	s.persist(ctx)
	return removed
}

// Stats reduces the in-memory list into aggregate counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.clock.Now().Format(dateLayout)
	stats := Stats{Total: len(s.orders)}
	for _, o := range s.orders {
		if o.Date == today {
			stats.Today++
		}
		stats.TotalDurationSeconds += o.DurationSeconds
		stats.TotalSizeMB += o.SizeMB
		stats.TotalProducts += o.ProductCount
	}
	return stats
}

func (s *Store) snapshot() []Order {
	out := make([]Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// persist writes the whole list. Storage failures are logged and swallowed;
// the in-memory list stays authoritative for the session.
func (s *Store) persist(ctx context.Context) {
	raw, err := json.Marshal(s.orders)
	if err != nil {
		s.warn(ctx, "encoding order history", err)
		return
	}
	if err := s.gw.Set(ctx, kv.KeyOrders, raw); err != nil {
		s.warn(ctx, "persisting order history", err)
	}
}

func (s *Store) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
