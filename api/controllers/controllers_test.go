package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leminhvu/packtrace-backend/internal/license"
	"github.com/leminhvu/packtrace-backend/internal/orders"
	"github.com/leminhvu/packtrace-backend/internal/session"
	pkgerrors "github.com/leminhvu/packtrace-backend/pkg/errors"
)

type stubLicenseService struct {
	state       license.State
	activateErr error
	remoteErr   error
	gotKey      string
}

func (s *stubLicenseService) Evaluate(context.Context) license.State { return s.state }

func (s *stubLicenseService) Activate(_ context.Context, key string, _ time.Time) (license.State, error) {
	s.gotKey = key
	if s.activateErr != nil {
		return license.State{}, s.activateErr
	}
	return s.state, nil
}

func (s *stubLicenseService) ActivateRemote(_ context.Context, key string) (license.State, error) {
	s.gotKey = key
	if s.remoteErr != nil {
		return license.State{}, s.remoteErr
	}
	return s.state, nil
}

func (s *stubLicenseService) CheckDailyQuota(context.Context) {}

func (s *stubLicenseService) State() license.State { return s.state }

func TestLicenseStateReturnsEvaluation(t *testing.T) {
	svc := &stubLicenseService{state: license.State{Phase: license.PhaseActive, IsPremium: true, DaysRemaining: 12}}
	rec := httptest.NewRecorder()

	LicenseState(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/license", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var envelope struct {
		Data license.State `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.IsPremium || envelope.Data.DaysRemaining != 12 {
		t.Fatalf("unexpected state %+v", envelope.Data)
	}
}

func TestLicenseActivateRejectsShortKey(t *testing.T) {
	svc := &stubLicenseService{}
	body := bytes.NewBufferString(`{"license_key":"ab"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/license/activate", body)
	rec := httptest.NewRecorder()

	LicenseActivate(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if svc.gotKey != "" {
		t.Fatalf("service must not be called on validation failure")
	}
}

func TestLicenseActivateRemoteMapsDeviceMismatch(t *testing.T) {
	svc := &stubLicenseService{remoteErr: pkgerrors.New(pkgerrors.CodeDeviceMismatch, "bound elsewhere")}
	body := bytes.NewBufferString(`{"license_key":"PT-GOLD-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/license/activate/remote", body)
	rec := httptest.NewRecorder()

	LicenseActivateRemote(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != "DEVICE_MISMATCH" {
		t.Fatalf("expected DEVICE_MISMATCH got %s", envelope.Error.Code)
	}
}

type stubOrderStore struct {
	list       []orders.Order
	deleted    []int64
	deleteErr  error
	searchedBy string
}

func (s *stubOrderStore) List() []orders.Order { return s.list }

func (s *stubOrderStore) Search(query string) []orders.Order {
	s.searchedBy = query
	return s.list
}

func (s *stubOrderStore) FilterByDate(_, _ string) []orders.Order { return s.list }

func (s *stubOrderStore) Delete(_ context.Context, id int64) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubOrderStore) Stats() orders.Stats {
	return orders.Stats{Total: len(s.list)}
}

func TestOrderListUsesSearchQuery(t *testing.T) {
	store := &stubOrderStore{list: []orders.Order{{ID: 1, QRCode: "PKG-1"}}}
	req := httptest.NewRequest(http.MethodGet, "/v1/orders?q=PKG", nil)
	rec := httptest.NewRecorder()

	OrderList(store, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if store.searchedBy != "PKG" {
		t.Fatalf("expected search by PKG, got %q", store.searchedBy)
	}
}

func TestOrderListPagesNewestFirst(t *testing.T) {
	store := &stubOrderStore{list: []orders.Order{
		{ID: 30, QRCode: "PKG-30"},
		{ID: 20, QRCode: "PKG-20"},
		{ID: 10, QRCode: "PKG-10"},
	}}
	req := httptest.NewRequest(http.MethodGet, "/v1/orders?limit=2", nil)
	rec := httptest.NewRecorder()

	OrderList(store, nil).ServeHTTP(rec, req)

	var envelope struct {
		Data struct {
			Orders     []orders.Order `json:"orders"`
			NextCursor string         `json:"next_cursor"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Orders) != 2 || envelope.Data.Orders[0].ID != 30 {
		t.Fatalf("unexpected first page %+v", envelope.Data.Orders)
	}
	if envelope.Data.NextCursor == "" {
		t.Fatalf("expected next cursor on truncated page")
	}

	// Second page resumes below the cursor.
	req = httptest.NewRequest(http.MethodGet, "/v1/orders?limit=2&cursor="+envelope.Data.NextCursor, nil)
	rec = httptest.NewRecorder()
	OrderList(store, nil).ServeHTTP(rec, req)

	var second struct {
		Data struct {
			Orders     []orders.Order `json:"orders"`
			NextCursor string         `json:"next_cursor"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&second); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(second.Data.Orders) != 1 || second.Data.Orders[0].ID != 10 {
		t.Fatalf("unexpected second page %+v", second.Data.Orders)
	}
	if second.Data.NextCursor != "" {
		t.Fatalf("expected no cursor on final page")
	}
}

func TestOrderListRejectsMalformedDate(t *testing.T) {
	store := &stubOrderStore{}
	req := httptest.NewRequest(http.MethodGet, "/v1/orders?from=13-2026", nil)
	rec := httptest.NewRecorder()

	OrderList(store, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestOrderExportWritesHeader(t *testing.T) {
	store := &stubOrderStore{list: []orders.Order{{
		ID: 1, QRCode: "PKG-1", Date: "14/03/2026", Time: "09:00:00",
		DurationSeconds: 5, SizeMB: 1.5, ProductCount: 1,
	}}}
	rec := httptest.NewRecorder()

	OrderExport(store, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/orders/export", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "STT,Mã QR,Ngày,Giờ,Thời lượng (s),Dung lượng (MB),Số sản phẩm") {
		t.Fatalf("unexpected export header: %q", body)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/csv") {
		t.Fatalf("expected csv content type, got %s", got)
	}
}

func TestOrderDeleteParsesID(t *testing.T) {
	store := &stubOrderStore{}
	router := chi.NewRouter()
	router.Delete("/v1/orders/{orderId}", OrderDelete(store, nil))

	req := httptest.NewRequest(http.MethodDelete, "/v1/orders/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != 42 {
		t.Fatalf("expected delete of 42, got %v", store.deleted)
	}
}

func TestOrderDeleteMapsNotFound(t *testing.T) {
	store := &stubOrderStore{deleteErr: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	router := chi.NewRouter()
	router.Delete("/v1/orders/{orderId}", OrderDelete(store, nil))

	req := httptest.NewRequest(http.MethodDelete, "/v1/orders/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

type stubOrchestrator struct {
	phase    session.Phase
	startErr error
	stops    int
	device   string
}

func (s *stubOrchestrator) StartCamera(_ context.Context, deviceID string) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.device = deviceID
	s.phase = session.PhaseArmed
	return nil
}

func (s *stubOrchestrator) StopCamera(context.Context) error {
	s.stops++
	s.phase = session.PhaseIdle
	return nil
}

func (s *stubOrchestrator) Phase() session.Phase { return s.phase }

type stubScanReader struct {
	codes []string
}

func (s *stubScanReader) DistinctCount() int { return len(s.codes) }

func (s *stubScanReader) Codes() []string { return s.codes }

func TestSessionCameraStartUsesDefaultDevice(t *testing.T) {
	orch := &stubOrchestrator{phase: session.PhaseIdle}
	req := httptest.NewRequest(http.MethodPost, "/v1/session/camera/start", nil)
	rec := httptest.NewRecorder()

	SessionCameraStart(orch, "cam-default", nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if orch.device != "cam-default" {
		t.Fatalf("expected default device, got %q", orch.device)
	}
}

func TestSessionCameraStartMapsCameraUnavailable(t *testing.T) {
	orch := &stubOrchestrator{startErr: pkgerrors.New(pkgerrors.CodeCameraUnavailable, "device busy")}
	req := httptest.NewRequest(http.MethodPost, "/v1/session/camera/start", nil)
	rec := httptest.NewRecorder()

	SessionCameraStart(orch, "", nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}

func TestSessionStateReportsCodes(t *testing.T) {
	orch := &stubOrchestrator{phase: session.PhaseRecording}
	scanner := &stubScanReader{codes: []string{"PKG-1", "PKG-2"}}
	rec := httptest.NewRecorder()

	SessionState(orch, scanner, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/session", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var envelope struct {
		Data struct {
			Phase         string   `json:"phase"`
			DistinctCount int      `json:"distinct_count"`
			Codes         []string `json:"codes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Phase != "recording" || envelope.Data.DistinctCount != 2 {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}
