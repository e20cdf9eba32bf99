package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"example.com/workload/internal/calendar"
	"example.com/workload/internal/domain"
)

func (h *Handler) plansCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createPlan(w, r)
	case http.MethodGet:
		h.listPlans(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) planByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/plans/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing plan id")
		return
	}

	switch r.Method {
	case http.MethodPut:
		h.updatePlan(w, r, id)
	case http.MethodDelete:
		h.deletePlan(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createPlan(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	input, err := req.ToInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	plan, err := h.plans.Create(r.Context(), input, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanView(*plan))
}

func (h *Handler) updatePlan(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var req UpdatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	patch, err := req.ToPatch()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	plan, err := h.plans.Update(r.Context(), id, patch, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanView(*plan))
}

func (h *Handler) deletePlan(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	if err := h.plans.Delete(r.Context(), id, actor); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPlans(w http.ResponseWriter, r *http.Request) {
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

	filter := domain.PlanFilter{
		EmployeeID: r.URL.Query().Get("employee_id"),
		ProjectID:  r.URL.Query().Get("project_id"),
		Range:      rng,
	}
	// Trial accounts only see their own schedule.
	if actor.Role == domain.RoleTrial {
		filter.EmployeeID = actor.ID
	}

	plans, err := h.plans.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]PlanView, 0, len(plans))
	for _, plan := range plans {
		items = append(items, toPlanView(plan))
	}
	writeJSON(w, http.StatusOK, ListPlansResponse{Items: items})
}

func (h *Handler) planCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

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
	if rng == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "from and to are required")
		return
	}

	filter := domain.PlanFilter{
		EmployeeID: r.URL.Query().Get("employee_id"),
		ProjectID:  r.URL.Query().Get("project_id"),
	}
	if actor.Role == domain.RoleTrial {
		filter.EmployeeID = actor.ID
	}

	days, err := h.plans.CalendarView(r.Context(), *rng, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := CalendarResponse{Days: make(map[string][]PlanView, len(days))}
	for _, day := range days {
		views := make([]PlanView, 0, len(day.Plans))
		for _, plan := range day.Plans {
			views = append(views, toPlanView(plan))
		}
		resp.Days[day.Date.String()] = views
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreatePlanRequest is the payload for POST /v1/plans.
type CreatePlanRequest struct {
	EmployeeID string `json:"employee_id"`
	ProjectID  string `json:"project_id"`
	Date       string `json:"date"`
}

// ToInput validates the request and converts it for the service.
func (r CreatePlanRequest) ToInput() (domain.CreatePlanInput, error) {
	if strings.TrimSpace(r.EmployeeID) == "" {
		return domain.CreatePlanInput{}, errors.New("employee_id is required")
	}
	if strings.TrimSpace(r.ProjectID) == "" {
		return domain.CreatePlanInput{}, errors.New("project_id is required")
	}
	date, err := calendar.ParseDate(r.Date)
	if err != nil {
		return domain.CreatePlanInput{}, err
	}
	return domain.CreatePlanInput{
		EmployeeID: r.EmployeeID,
		ProjectID:  r.ProjectID,
		Date:       date,
	}, nil
}

// UpdatePlanRequest is the payload for PUT /v1/plans/{id}. Absent fields
// are untouched.
type UpdatePlanRequest struct {
	ProjectID *string `json:"project_id"`
	Date      *string `json:"date"`
}

// ToPatch validates the request and converts it for the service.
func (r UpdatePlanRequest) ToPatch() (domain.PlanPatch, error) {
	patch := domain.PlanPatch{ProjectID: r.ProjectID}
	if r.Date != nil {
		date, err := calendar.ParseDate(*r.Date)
		if err != nil {
			return domain.PlanPatch{}, err
		}
		patch.Date = &date
	}
	return patch, nil
}

// PlanView exposes full details about a plan.
type PlanView struct {
	PlanID     string        `json:"plan_id"`
	EmployeeID string        `json:"employee_id"`
	ProjectID  string        `json:"project_id"`
	ManagerID  string        `json:"manager_id"`
	Date       string        `json:"date"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Employee   *EmployeeView `json:"employee,omitempty"`
	Project    *ProjectView  `json:"project,omitempty"`
	Manager    *EmployeeView `json:"manager,omitempty"`
}

// ListPlansResponse packages list results.
type ListPlansResponse struct {
	Items []PlanView `json:"items"`
}

// CalendarResponse maps civil-date keys to each day's plans.
type CalendarResponse struct {
	Days map[string][]PlanView `json:"days"`
}

// EmployeeView is the directory summary attached to responses.
type EmployeeView struct {
	EmployeeID string `json:"employee_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
}

// ProjectView is the directory summary attached to responses.
type ProjectView struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
}

func toPlanView(plan domain.Plan) PlanView {
	return PlanView{
		PlanID:     plan.ID,
		EmployeeID: plan.EmployeeID,
		ProjectID:  plan.ProjectID,
		ManagerID:  plan.CreatedBy,
		Date:       plan.Date.String(),
		CreatedAt:  plan.CreatedAt,
		UpdatedAt:  plan.UpdatedAt,
		Employee:   toEmployeeView(plan.Employee),
		Project:    toProjectView(plan.Project),
		Manager:    toEmployeeView(plan.Manager),
	}
}

func toEmployeeView(summary *domain.EmployeeSummary) *EmployeeView {
	if summary == nil {
		return nil
	}
	return &EmployeeView{
		EmployeeID: summary.ID,
		FirstName:  summary.FirstName,
		LastName:   summary.LastName,
		Email:      summary.Email,
		Role:       string(summary.Role),
	}
}

func toProjectView(summary *domain.ProjectSummary) *ProjectView {
	if summary == nil {
		return nil
	}
	return &ProjectView{
		ProjectID: summary.ID,
		Name:      summary.Name,
		Status:    summary.Status,
	}
}
