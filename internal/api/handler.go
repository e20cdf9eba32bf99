// Package api exposes HTTP handlers for the workload service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"example.com/workload/internal/auth"
	"example.com/workload/internal/calendar"
	"example.com/workload/internal/domain"
)

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	plans   *domain.PlanService
	actuals *domain.ActualService
	reports *domain.Aggregator
}

// NewHandler builds a Handler.
func NewHandler(plans *domain.PlanService, actuals *domain.ActualService, reports *domain.Aggregator) *Handler {
	return &Handler{plans: plans, actuals: actuals, reports: reports}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/plans", h.plansCollection)
	mux.HandleFunc("/v1/plans/calendar", h.planCalendar)
	mux.HandleFunc("/v1/plans/", h.planByID)
	mux.HandleFunc("/v1/actuals", h.actualsCollection)
	mux.HandleFunc("/v1/actuals/", h.actualByID)
	mux.HandleFunc("/v1/distributions/", h.distributionByID)
	mux.HandleFunc("/v1/reports/projects", h.projectReport)
	mux.HandleFunc("/v1/reports/employees", h.employeeReport)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// principal extracts the authenticated actor from the request context.
func principal(r *http.Request) (domain.Principal, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		return domain.Principal{}, false
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return domain.Principal{}, false
	}
	return domain.Principal{ID: claims.Subject, Role: role}, true
}

// parseRange reads optional from/to query parameters into a date range.
// Both must be present or both absent.
func parseRange(query url.Values) (*calendar.Range, error) {
	from := query.Get("from")
	to := query.Get("to")
	if from == "" && to == "" {
		return nil, nil
	}
	if from == "" || to == "" {
		return nil, errors.New("from and to must be supplied together")
	}
	fromDate, err := calendar.ParseDate(from)
	if err != nil {
		return nil, err
	}
	toDate, err := calendar.ParseDate(to)
	if err != nil {
		return nil, err
	}
	if toDate.Before(fromDate) {
		return nil, errors.New("to must not precede from")
	}
	return &calendar.Range{From: fromDate, To: toDate}, nil
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
