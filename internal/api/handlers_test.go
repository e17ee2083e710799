package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/payout-service/internal/app"
	"github.com/transfa/payout-service/internal/domain"
	"github.com/transfa/payout-service/internal/store"
)

type apiRepoStub struct {
	store.Repository

	payouts      map[int64]*domain.Payout
	nextID       int64
	forcedStatus map[int64]string
}

func newAPIRepoStub() *apiRepoStub {
	return &apiRepoStub{
		payouts:      make(map[int64]*domain.Payout),
		nextID:       1,
		forcedStatus: make(map[int64]string),
	}
}

func (s *apiRepoStub) CreatePayout(ctx context.Context, p *domain.Payout) error {
	p.ID = s.nextID
	s.nextID++
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.payouts[p.ID] = &cp
	return nil
}

func (s *apiRepoStub) FindPayoutByID(ctx context.Context, id int64, includeDeleted bool) (*domain.Payout, error) {
	p, ok := s.payouts[id]
	if !ok || (!includeDeleted && p.Deleted) {
		return nil, store.ErrPayoutNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *apiRepoStub) ListPayouts(ctx context.Context, opts store.ListPayoutsOptions) ([]domain.Payout, error) {
	out := make([]domain.Payout, 0)
	for _, p := range s.payouts {
		if !p.Deleted {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *apiRepoStub) SetPayoutStatus(ctx context.Context, id int64, status string) error {
	s.forcedStatus[id] = status
	if p, ok := s.payouts[id]; ok {
		p.Status = status
	}
	return nil
}

func (s *apiRepoStub) UpdatePayoutFields(ctx context.Context, id int64, status, comment *string) (*domain.Payout, error) {
	p, ok := s.payouts[id]
	if !ok || p.Deleted {
		return nil, store.ErrPayoutNotFound
	}
	if status != nil {
		p.Status = *status
	}
	if comment != nil {
		p.Comment = comment
	}
	cp := *p
	return &cp, nil
}

func (s *apiRepoStub) SoftDeletePayout(ctx context.Context, id int64) (bool, error) {
	p, ok := s.payouts[id]
	if !ok {
		return false, store.ErrPayoutNotFound
	}
	if p.Deleted {
		return false, nil
	}
	p.Deleted = true
	return true, nil
}

type apiEnqueuerStub struct {
	err   error
	calls int
}

func (e *apiEnqueuerStub) Submit(ctx context.Context, payoutID int64, delay time.Duration) (uuid.UUID, error) {
	e.calls++
	if e.err != nil {
		return uuid.Nil, e.err
	}
	return uuid.New(), nil
}

func newTestServer(repo *apiRepoStub, enq *apiEnqueuerStub) http.Handler {
	service := app.NewService(repo, enq, time.Second)
	handlers := NewPayoutHandlers(service, nil, 0)
	return PayoutRoutes(handlers, nil)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func validCreateBody() map[string]any {
	return map[string]any{
		"amount":            1000,
		"currency":          "USD",
		"recipient_details": "Acme Corp, account 12345",
	}
}

func TestCreatePayoutEndpoint_Success(t *testing.T) {
	repo := newAPIRepoStub()
	handler := newTestServer(repo, &apiEnqueuerStub{})

	rec := doJSON(t, handler, http.MethodPost, "/api/payouts", validCreateBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var payout domain.Payout
	if err := json.Unmarshal(rec.Body.Bytes(), &payout); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payout.ID == 0 || payout.Status != domain.StatusPending {
		t.Fatalf("unexpected response payout: %+v", payout)
	}
}

func TestCreatePayoutEndpoint_ValidationErrorShape(t *testing.T) {
	handler := newTestServer(newAPIRepoStub(), &apiEnqueuerStub{})

	body := validCreateBody()
	body["amount"] = -5
	rec := doJSON(t, handler, http.MethodPost, "/api/payouts", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp struct {
		Code   int                 `json:"code"`
		Detail string              `json:"detail"`
		Errors map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected code field 400, got %d", resp.Code)
	}
	if _, ok := resp.Errors["amount"]; !ok {
		t.Fatalf("expected field error for amount, got %v", resp.Errors)
	}
}

func TestCreatePayoutEndpoint_EnqueueFailureReturns503AndForcesFailed(t *testing.T) {
	repo := newAPIRepoStub()
	enq := &apiEnqueuerStub{err: app.ErrEnqueueUnavailable}
	handler := newTestServer(repo, enq)

	rec := doJSON(t, handler, http.MethodPost, "/api/payouts", validCreateBody())
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
	if repo.forcedStatus[1] != domain.StatusFailed {
		t.Fatalf("expected payout forced to failed, got %q", repo.forcedStatus[1])
	}
}

func TestGetPayoutEndpoint_NotFoundForMissingAndDeleted(t *testing.T) {
	repo := newAPIRepoStub()
	handler := newTestServer(repo, &apiEnqueuerStub{})

	rec := doJSON(t, handler, http.MethodGet, "/api/payouts/99", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing payout, got %d", rec.Code)
	}

	doJSON(t, handler, http.MethodPost, "/api/payouts", validCreateBody())
	doJSON(t, handler, http.MethodDelete, "/api/payouts/1", nil)

	rec = doJSON(t, handler, http.MethodGet, "/api/payouts/1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for soft-deleted payout, got %d", rec.Code)
	}
}

func TestUpdatePayoutEndpoint_RejectsForbiddenFields(t *testing.T) {
	repo := newAPIRepoStub()
	handler := newTestServer(repo, &apiEnqueuerStub{})
	doJSON(t, handler, http.MethodPost, "/api/payouts", validCreateBody())

	rec := doJSON(t, handler, http.MethodPatch, "/api/payouts/1", map[string]any{
		"amount":  9999,
		"comment": "new comment",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for forbidden field, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdatePayoutEndpoint_AllowsStatusAndComment(t *testing.T) {
	repo := newAPIRepoStub()
	handler := newTestServer(repo, &apiEnqueuerStub{})
	doJSON(t, handler, http.MethodPost, "/api/payouts", validCreateBody())

	rec := doJSON(t, handler, http.MethodPatch, "/api/payouts/1", map[string]any{
		"status":  "completed",
		"comment": "manually reconciled",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payout domain.Payout
	if err := json.Unmarshal(rec.Body.Bytes(), &payout); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payout.Status != domain.StatusCompleted || payout.Comment == nil || *payout.Comment != "manually reconciled" {
		t.Fatalf("unexpected updated payout: %+v", payout)
	}
}

func TestDeletePayoutEndpoint_IsIdempotent(t *testing.T) {
	repo := newAPIRepoStub()
	handler := newTestServer(repo, &apiEnqueuerStub{})
	doJSON(t, handler, http.MethodPost, "/api/payouts", validCreateBody())

	first := doJSON(t, handler, http.MethodDelete, "/api/payouts/1", nil)
	if first.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on first delete, got %d", first.Code)
	}
	second := doJSON(t, handler, http.MethodDelete, "/api/payouts/1", nil)
	if second.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on repeated delete, got %d", second.Code)
	}
}

func TestListPayoutsEndpoint_HidesDeleted(t *testing.T) {
	repo := newAPIRepoStub()
	handler := newTestServer(repo, &apiEnqueuerStub{})
	doJSON(t, handler, http.MethodPost, "/api/payouts", validCreateBody())
	doJSON(t, handler, http.MethodPost, "/api/payouts", validCreateBody())
	doJSON(t, handler, http.MethodDelete, "/api/payouts/1", nil)

	rec := doJSON(t, handler, http.MethodGet, "/api/payouts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payouts []domain.Payout
	if err := json.Unmarshal(rec.Body.Bytes(), &payouts); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payouts) != 1 || payouts[0].ID != 2 {
		t.Fatalf("expected only the active payout, got %+v", payouts)
	}
}
