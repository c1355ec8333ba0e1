package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bsltours/tours-bff/internal/errs"
	"github.com/bsltours/tours-bff/internal/inquiry"
	"github.com/bsltours/tours-bff/internal/netutil"
	"github.com/bsltours/tours-bff/internal/obs"
)

// DefaultMaxBodyBytes bounds inquiry request bodies when no limit is configured.
const DefaultMaxBodyBytes = 64 << 10

// Handler wraps the inquiry workflows and provides HTTP handlers
type Handler struct {
	inquiries    *inquiry.Service
	providerName string
	maxBodyBytes int64
}

// NewHandler creates a new API handler. providerName is reported by the
// health endpoint.
func NewHandler(inquiries *inquiry.Service, providerName string, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		inquiries:    inquiries,
		providerName: providerName,
		maxBodyBytes: maxBodyBytes,
	}
}

// RegisterRoutes registers all API routes on the given mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/inquiries", h.SubmitLegacy)
	mux.HandleFunc("POST /api/inquiries/dynamic", h.SubmitDynamic)
	mux.HandleFunc("POST /api/inquiries/comprehensive", h.SubmitComprehensive)
	mux.HandleFunc("POST /api/contact/send", h.SendContact)
	mux.HandleFunc("GET /healthz", h.Health)
}

// MessageResponse is the acknowledgement for an accepted inquiry.
type MessageResponse struct {
	Message string `json:"message"`
}

// SuccessResponse is the acknowledgement for a contact form.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// HealthResponse reports liveness and the active email transport.
type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationResponse lists field-level problems.
type ValidationResponse struct {
	Error  string                   `json:"error"`
	Errors inquiry.ValidationErrors `json:"errors"`
}

// RejectionResponse is returned when the bot check fails.
type RejectionResponse struct {
	Error   string           `json:"error"`
	Details RejectionDetails `json:"details"`
}

// RejectionDetails carries operator diagnostics for a failed bot check.
type RejectionDetails struct {
	TokenLength int    `json:"tokenLength"`
	ClientIP    string `json:"clientIp"`
	Timestamp   string `json:"timestamp"`
}

// SubmitLegacy handles POST /api/inquiries
func (h *Handler) SubmitLegacy(w http.ResponseWriter, r *http.Request) {
	var p inquiry.LegacyInquiry
	if !h.decode(w, r, &p) {
		return
	}
	h.submit(w, r, &p)
}

// SubmitDynamic handles POST /api/inquiries/dynamic
func (h *Handler) SubmitDynamic(w http.ResponseWriter, r *http.Request) {
	var p inquiry.DynamicInquiry
	if !h.decode(w, r, &p) {
		return
	}
	h.submit(w, r, &p)
}

// SubmitComprehensive handles POST /api/inquiries/comprehensive
func (h *Handler) SubmitComprehensive(w http.ResponseWriter, r *http.Request) {
	var p inquiry.ComprehensiveInquiry
	if !h.decode(w, r, &p) {
		return
	}
	h.submit(w, r, &p)
}

// SendContact handles POST /api/contact/send
func (h *Handler) SendContact(w http.ResponseWriter, r *http.Request) {
	var form inquiry.ContactForm
	if !h.decode(w, r, &form) {
		return
	}
	// Sends finish even if the browser goes away.
	ctx := context.WithoutCancel(r.Context())
	if _, err := h.inquiries.SubmitContact(ctx, &form); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Provider: h.providerName})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, p inquiry.Payload) {
	ctx := context.WithoutCancel(r.Context())
	out, err := h.inquiries.Submit(ctx, p, netutil.ClientIP(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: out.Message})
}

// decode reads a bounded JSON body into dst. Malformed bodies are reported
// in the same shape as field validation errors.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		problem := "The request body is not valid JSON: " + err.Error()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			problem = fmt.Sprintf("The request body exceeds %d bytes.", tooLarge.Limit)
		}
		writeJSON(w, http.StatusBadRequest, ValidationResponse{
			Error:  "validation failed",
			Errors: inquiry.ValidationErrors{"body": {problem}},
		})
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs inquiry.ValidationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, ValidationResponse{Error: "validation failed", Errors: verrs})
		return
	}

	var rejected *inquiry.RejectedError
	if errors.As(err, &rejected) {
		writeJSON(w, http.StatusBadRequest, RejectionResponse{
			Error: errs.MessageOf(err),
			Details: RejectionDetails{
				TokenLength: rejected.TokenLength,
				ClientIP:    rejected.ClientIP,
				Timestamp:   rejected.Timestamp.UTC().Format(time.RFC3339),
			},
		})
		return
	}

	status := errs.HTTPStatus(errs.CodeOf(err))
	if status >= http.StatusInternalServerError {
		obs.From(r.Context()).With("pkg", "api").Error("request_failed",
			"path", r.URL.Path, "code", string(errs.CodeOf(err)), "error", err)
	}
	writeError(w, status, errs.MessageOf(err))
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with the given status code
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
