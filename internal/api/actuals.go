package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/workload/internal/calendar"
	"example.com/workload/internal/domain"
	"example.com/workload/internal/persistence"
)

const (
	defaultActualPageSize = 50
	maxActualPageSize     = 200
)

func (h *Handler) actualsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createActual(w, r)
	case http.MethodGet:
		h.listActuals(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) actualByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/actuals/")
	if rest == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing actual id")
		return
	}

	// POST /v1/actuals/{id}/distributions attributes hours to a project.
	if id, ok := strings.CutSuffix(rest, "/distributions"); ok {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.addDistribution(w, r, id)
		return
	}

	if strings.Contains(rest, "/") {
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
		return
	}

	switch r.Method {
	case http.MethodPut:
		h.updateActual(w, r, rest)
	case http.MethodDelete:
		h.deleteActual(w, r, rest)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) distributionByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/distributions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing distribution id")
		return
	}
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	actor, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if actor.Role == domain.RoleTrial {
		writeError(w, http.StatusForbidden, "forbidden", "trial accounts cannot modify reports")
		return
	}

	if err := h.actuals.RemoveDistribution(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createActual(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if actor.Role == domain.RoleTrial {
		writeError(w, http.StatusForbidden, "forbidden", "trial accounts cannot report hours")
		return
	}

	var req CreateActualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	input, err := req.ToInput(actor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	actual, err := h.actuals.Create(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActualView(*actual))
}

func (h *Handler) updateActual(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if actor.Role == domain.RoleTrial {
		writeError(w, http.StatusForbidden, "forbidden", "trial accounts cannot modify reports")
		return
	}

	var req UpdateActualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	actual, err := h.actuals.Update(r.Context(), id, domain.ActualPatch{
		HoursWorked: req.HoursWorked,
		Note:        req.Note,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActualView(*actual))
}

func (h *Handler) deleteActual(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if actor.Role == domain.RoleTrial {
		writeError(w, http.StatusForbidden, "forbidden", "trial accounts cannot modify reports")
		return
	}

	if err := h.actuals.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addDistribution(w http.ResponseWriter, r *http.Request, actualID string) {
	actor, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if actor.Role == domain.RoleTrial {
		writeError(w, http.StatusForbidden, "forbidden", "trial accounts cannot modify reports")
		return
	}

	var req DistributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "project_id is required")
		return
	}

	dist, err := h.actuals.AddDistribution(r.Context(), actualID, domain.DistributionInput{
		ProjectID:   req.ProjectID,
		Hours:       req.Hours,
		Description: req.Description,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDistributionView(*dist))
}

func (h *Handler) listActuals(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	rng, err := parseRange(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	filter := domain.ActualFilter{
		EmployeeID: r.URL.Query().Get("employee_id"),
		Range:      rng,
	}
	if actor.Role == domain.RoleTrial || actor.Role == domain.RoleEmployee {
		filter.EmployeeID = actor.ID
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	limit := defaultActualPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxActualPageSize {
		limit = maxActualPageSize
	}

	actuals, next, err := h.actuals.List(r.Context(), filter, cursor, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]ActualView, 0, len(actuals))
	for _, actual := range actuals {
		items = append(items, toActualView(actual))
	}
	writeJSON(w, http.StatusOK, ListActualsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

// CreateActualRequest is the payload for POST /v1/actuals.
type CreateActualRequest struct {
	EmployeeID    string                `json:"employee_id"`
	Date          string                `json:"date"`
	HoursWorked   float64               `json:"hours_worked"`
	Note          string                `json:"note"`
	Distributions []DistributionRequest `json:"distributions"`
}

// ToInput validates the request and converts it for the service. Callers
// without a management role may only report for themselves.
func (r CreateActualRequest) ToInput(actor domain.Principal) (domain.CreateActualInput, error) {
	employeeID := r.EmployeeID
	if employeeID == "" {
		employeeID = actor.ID
	}
	if !actor.CanManagePlans() && employeeID != actor.ID {
		return domain.CreateActualInput{}, errors.New("cannot report hours for another employee")
	}

	date, err := calendar.ParseDate(r.Date)
	if err != nil {
		return domain.CreateActualInput{}, err
	}

	input := domain.CreateActualInput{
		EmployeeID:  employeeID,
		Date:        date,
		HoursWorked: r.HoursWorked,
		Note:        r.Note,
	}
	for _, d := range r.Distributions {
		if strings.TrimSpace(d.ProjectID) == "" {
			return domain.CreateActualInput{}, errors.New("distribution project_id is required")
		}
		input.Distributions = append(input.Distributions, domain.DistributionInput{
			ProjectID:   d.ProjectID,
			Hours:       d.Hours,
			Description: d.Description,
		})
	}
	return input, nil
}

// UpdateActualRequest is the payload for PUT /v1/actuals/{id}. Absent
// fields are untouched.
type UpdateActualRequest struct {
	HoursWorked *float64 `json:"hours_worked"`
	Note        *string  `json:"note"`
}

// DistributionRequest attributes hours to a project inside a create or
// add call.
type DistributionRequest struct {
	ProjectID   string  `json:"project_id"`
	Hours       float64 `json:"hours"`
	Description string  `json:"description"`
}

// ActualView exposes full details about a reported day.
type ActualView struct {
	ActualID      string             `json:"actual_id"`
	EmployeeID    string             `json:"employee_id"`
	Date          string             `json:"date"`
	HoursWorked   float64            `json:"hours_worked"`
	Note          string             `json:"note,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	Distributions []DistributionView `json:"distributions"`
	Employee      *EmployeeView      `json:"employee,omitempty"`
}

// DistributionView exposes a single project attribution.
type DistributionView struct {
	DistributionID string       `json:"distribution_id"`
	ActualID       string       `json:"actual_id"`
	ProjectID      string       `json:"project_id"`
	Hours          float64      `json:"hours"`
	Description    string       `json:"description,omitempty"`
	Project        *ProjectView `json:"project,omitempty"`
}

// ListActualsResponse packages a page of actuals.
type ListActualsResponse struct {
	Items      []ActualView `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func toActualView(actual domain.Actual) ActualView {
	dists := make([]DistributionView, 0, len(actual.Distributions))
	for _, d := range actual.Distributions {
		dists = append(dists, toDistributionView(d))
	}
	return ActualView{
		ActualID:      actual.ID,
		EmployeeID:    actual.EmployeeID,
		Date:          actual.Date.String(),
		HoursWorked:   actual.HoursWorked,
		Note:          actual.Note,
		CreatedAt:     actual.CreatedAt,
		UpdatedAt:     actual.UpdatedAt,
		Distributions: dists,
		Employee:      toEmployeeView(actual.Employee),
	}
}

func toDistributionView(dist domain.Distribution) DistributionView {
	return DistributionView{
		DistributionID: dist.ID,
		ActualID:       dist.ActualID,
		ProjectID:      dist.ProjectID,
		Hours:          dist.Hours,
		Description:    dist.Description,
		Project:        toProjectView(dist.Project),
	}
}
