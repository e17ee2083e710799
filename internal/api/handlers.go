/**
 * @description
 * This file contains the HTTP handlers for the payout-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * Error responses use a single JSON shape:
 *   {"code": <http status>, "detail": "...", "errors": {field: [messages]}}
 *
 * @dependencies
 * - encoding/json, errors, log, net/http, strconv, strings: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/transfa/payout-service/internal/app"
	"github.com/transfa/payout-service/internal/domain"
	"github.com/transfa/payout-service/internal/store"
)

// RateLimiter counts a request for a subject within a scope and reports the
// running count plus the retry-after hint. Satisfied by app.RedisRateLimiter.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// PayoutHandlers holds the application service that handlers will use.
type PayoutHandlers struct {
	service          *app.Service
	limiter          RateLimiter
	createLimitPerMn int
}

// NewPayoutHandlers creates a new instance of PayoutHandlers. A nil limiter
// or non-positive limit disables rate limiting on the create endpoint.
func NewPayoutHandlers(service *app.Service, limiter RateLimiter, createLimitPerMinute int) *PayoutHandlers {
	return &PayoutHandlers{
		service:          service,
		limiter:          limiter,
		createLimitPerMn: createLimitPerMinute,
	}
}

type errorResponse struct {
	Code   int                 `json:"code"`
	Detail string              `json:"detail"`
	Errors map[string][]string `json:"errors"`
}

func (h *PayoutHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses in the unified shape.
func (h *PayoutHandlers) writeError(w http.ResponseWriter, status int, detail string, fieldErrors map[string][]string) {
	if fieldErrors == nil {
		fieldErrors = map[string][]string{}
	}
	h.writeJSON(w, status, errorResponse{Code: status, Detail: detail, Errors: fieldErrors})
}

func (h *PayoutHandlers) writeServiceError(w http.ResponseWriter, err error, context string) {
	var verr *app.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, "Validation failed", verr.Fields)
	case errors.Is(err, store.ErrPayoutNotFound):
		h.writeError(w, http.StatusNotFound, "Payout not found", nil)
	case errors.Is(err, app.ErrEnqueueUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "Background processing is unavailable. Please try again later.", nil)
	default:
		log.Printf("level=error component=api msg=\"%s\" err=%v", context, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func payoutIDFromURL(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid payout id %q", raw)
	}
	return id, nil
}

func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// CreatePayoutHandler handles POST /api/payouts.
func (h *PayoutHandlers) CreatePayoutHandler(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && h.createLimitPerMn > 0 {
		count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), "payout_create", clientIP(r), h.createLimitPerMn, time.Minute)
		if err != nil {
			log.Printf("level=warn component=api msg=\"rate limiter unavailable, allowing request\" err=%v", err)
		} else if count > h.createLimitPerMn {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			h.writeError(w, http.StatusTooManyRequests, "Too many payout requests. Please slow down.", nil)
			return
		}
	}

	var req domain.CreatePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	payout, err := h.service.CreatePayout(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "payout creation failed")
		return
	}

	h.writeJSON(w, http.StatusCreated, payout)
}

// ListPayoutsHandler handles GET /api/payouts. Soft-deleted payouts are
// never listed.
func (h *PayoutHandlers) ListPayoutsHandler(w http.ResponseWriter, r *http.Request) {
	opts := store.ListPayoutsOptions{}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			opts.Limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			opts.Offset = v
		}
	}

	payouts, err := h.service.ListPayouts(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, err, "payout listing failed")
		return
	}
	h.writeJSON(w, http.StatusOK, payouts)
}

// GetPayoutHandler handles GET /api/payouts/{id}.
func (h *PayoutHandlers) GetPayoutHandler(w http.ResponseWriter, r *http.Request) {
	id, err := payoutIDFromURL(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid payout id", nil)
		return
	}

	payout, err := h.service.GetPayout(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "payout lookup failed")
		return
	}
	h.writeJSON(w, http.StatusOK, payout)
}

var allowedUpdateFields = map[string]bool{
	"status":  true,
	"comment": true,
}

// UpdatePayoutHandler handles PATCH /api/payouts/{id}. Only status and
// comment may be changed; requests naming any other field are rejected.
func (h *PayoutHandlers) UpdatePayoutHandler(w http.ResponseWriter, r *http.Request) {
	id, err := payoutIDFromURL(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid payout id", nil)
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	illegal := make([]string, 0)
	for field := range raw {
		if !allowedUpdateFields[field] {
			illegal = append(illegal, field)
		}
	}
	if len(illegal) > 0 {
		h.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Fields not allowed: %s", strings.Join(illegal, ", ")), nil)
		return
	}

	var req domain.UpdatePayoutRequest
	if rawStatus, ok := raw["status"]; ok {
		if err := json.Unmarshal(rawStatus, &req.Status); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid status value", nil)
			return
		}
	}
	if rawComment, ok := raw["comment"]; ok {
		if err := json.Unmarshal(rawComment, &req.Comment); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid comment value", nil)
			return
		}
	}

	payout, err := h.service.UpdatePayout(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, err, "payout update failed")
		return
	}
	h.writeJSON(w, http.StatusOK, payout)
}

// DeletePayoutHandler handles DELETE /api/payouts/{id}. Deletion is soft and
// idempotent: repeating it returns 204 without changes.
func (h *PayoutHandlers) DeletePayoutHandler(w http.ResponseWriter, r *http.Request) {
	id, err := payoutIDFromURL(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid payout id", nil)
		return
	}

	if err := h.service.DeletePayout(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "payout deletion failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
