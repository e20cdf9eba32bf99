package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/workload/internal/auth"
	"example.com/workload/internal/calendar"
	"example.com/workload/internal/domain"
)

type stubClock struct {
	now time.Time
}

func (c stubClock) Now() time.Time { return c.now }

var handlerClock = stubClock{now: time.Date(2026, time.June, 10, 12, 0, 0, 0, time.UTC)}

type stubPlanRepo struct {
	plans map[string]domain.Plan
}

func newStubPlanRepo(plans ...domain.Plan) *stubPlanRepo {
	repo := &stubPlanRepo{plans: make(map[string]domain.Plan)}
	for _, p := range plans {
		repo.plans[p.ID] = p
	}
	return repo
}

func (m *stubPlanRepo) Create(ctx context.Context, plan domain.Plan) error {
	m.plans[plan.ID] = plan
	return nil
}

func (m *stubPlanRepo) Get(ctx context.Context, id string) (*domain.Plan, error) {
	if plan, ok := m.plans[id]; ok {
		return &plan, nil
	}
	return nil, nil
}

func (m *stubPlanRepo) FindByEmployeeAndDate(ctx context.Context, employeeID string, d calendar.Date) (*domain.Plan, error) {
	for _, plan := range m.plans {
		if plan.EmployeeID == employeeID && plan.Date.Compare(d) == 0 {
			return &plan, nil
		}
	}
	return nil, nil
}

func (m *stubPlanRepo) Update(ctx context.Context, plan domain.Plan) error {
	m.plans[plan.ID] = plan
	return nil
}

func (m *stubPlanRepo) Delete(ctx context.Context, id string) error {
	delete(m.plans, id)
	return nil
}

func (m *stubPlanRepo) List(ctx context.Context, filter domain.PlanFilter) ([]domain.Plan, error) {
	var out []domain.Plan
	for _, plan := range m.plans {
		if filter.EmployeeID != "" && plan.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.ProjectID != "" && plan.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Range != nil && !filter.Range.Contains(plan.Date) {
			continue
		}
		out = append(out, plan)
	}
	return out, nil
}

type stubActualRepo struct {
	actuals   map[string]domain.Actual
	lastLimit int
}

func newStubActualRepo(actuals ...domain.Actual) *stubActualRepo {
	repo := &stubActualRepo{actuals: make(map[string]domain.Actual)}
	for _, a := range actuals {
		repo.actuals[a.ID] = a
	}
	return repo
}

func (m *stubActualRepo) Create(ctx context.Context, actual domain.Actual) error {
	m.actuals[actual.ID] = actual
	return nil
}

func (m *stubActualRepo) Get(ctx context.Context, id string) (*domain.Actual, error) {
	if actual, ok := m.actuals[id]; ok {
		return &actual, nil
	}
	return nil, nil
}

func (m *stubActualRepo) FindByEmployeeAndDate(ctx context.Context, employeeID string, d calendar.Date) (*domain.Actual, error) {
	for _, actual := range m.actuals {
		if actual.EmployeeID == employeeID && actual.Date.Compare(d) == 0 {
			return &actual, nil
		}
	}
	return nil, nil
}

func (m *stubActualRepo) Update(ctx context.Context, actual domain.Actual) error {
	m.actuals[actual.ID] = actual
	return nil
}

func (m *stubActualRepo) Delete(ctx context.Context, id string) error {
	delete(m.actuals, id)
	return nil
}

func (m *stubActualRepo) AddDistribution(ctx context.Context, dist domain.Distribution) error {
	actual := m.actuals[dist.ActualID]
	actual.Distributions = append(actual.Distributions, dist)
	m.actuals[dist.ActualID] = actual
	return nil
}

func (m *stubActualRepo) RemoveDistribution(ctx context.Context, id string) error {
	for actualID, actual := range m.actuals {
		for i, dist := range actual.Distributions {
			if dist.ID == id {
				actual.Distributions = append(actual.Distributions[:i], actual.Distributions[i+1:]...)
				m.actuals[actualID] = actual
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

func (m *stubActualRepo) ListForEmployee(ctx context.Context, employeeID string, rng calendar.Range) ([]domain.Actual, error) {
	var out []domain.Actual
	for _, actual := range m.actuals {
		if actual.EmployeeID == employeeID && rng.Contains(actual.Date) {
			out = append(out, actual)
		}
	}
	return out, nil
}

func (m *stubActualRepo) List(ctx context.Context, filter domain.ActualFilter, cursor *domain.Cursor, limit int) ([]domain.Actual, *domain.Cursor, error) {
	m.lastLimit = limit
	var out []domain.Actual
	for _, actual := range m.actuals {
		if filter.EmployeeID != "" && actual.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Range != nil && !filter.Range.Contains(actual.Date) {
			continue
		}
		out = append(out, actual)
	}
	return out, nil, nil
}

type stubDirectory struct{}

func (stubDirectory) Get(ctx context.Context, id string) (*domain.EmployeeSummary, error) {
	known := map[string]domain.EmployeeSummary{
		"emp-1": {ID: "emp-1", FirstName: "Olena", LastName: "Bondar", Email: "olena@corp.test", Role: domain.RoleEmployee},
		"mgr-1": {ID: "mgr-1", FirstName: "Iryna", LastName: "Koval", Email: "iryna@corp.test", Role: domain.RoleManager},
	}
	if summary, ok := known[id]; ok {
		return &summary, nil
	}
	return nil, nil
}

func (stubDirectory) ListByRole(ctx context.Context, roles ...domain.Role) ([]domain.EmployeeSummary, error) {
	return []domain.EmployeeSummary{
		{ID: "emp-1", FirstName: "Olena", LastName: "Bondar", Email: "olena@corp.test", Role: domain.RoleEmployee},
	}, nil
}

type stubProjects struct{}

func (stubProjects) Get(ctx context.Context, id string) (*domain.ProjectSummary, error) {
	if id == "proj-1" {
		return &domain.ProjectSummary{ID: "proj-1", Name: "Atlas", Status: domain.ProjectStatusActive}, nil
	}
	return nil, nil
}

func (stubProjects) List(ctx context.Context) ([]domain.ProjectSummary, error) {
	return []domain.ProjectSummary{{ID: "proj-1", Name: "Atlas", Status: domain.ProjectStatusActive}}, nil
}

type stubAnalyticsRepo struct{}

func (stubAnalyticsRepo) ProjectPlanFacts(ctx context.Context, rng *calendar.Range) ([]domain.ProjectPlanFacts, error) {
	return []domain.ProjectPlanFacts{{ProjectID: "proj-1", PlannedDays: 5, Headcount: 1}}, nil
}

func (stubAnalyticsRepo) ProjectActualHours(ctx context.Context, rng *calendar.Range) (map[string]float64, error) {
	return map[string]float64{"proj-1": 20}, nil
}

func (stubAnalyticsRepo) EmployeeWorkedHours(ctx context.Context, rng calendar.Range) (map[string]float64, error) {
	return map[string]float64{"emp-1": 32}, nil
}

func newTestHandler(planRepo *stubPlanRepo, actualRepo *stubActualRepo) *Handler {
	plans := domain.NewPlanService(planRepo, stubDirectory{}, stubProjects{}, handlerClock, time.UTC)
	actuals := domain.NewActualService(actualRepo, stubDirectory{}, stubProjects{}, handlerClock)
	reports := domain.NewAggregator(stubAnalyticsRepo{}, stubProjects{}, stubDirectory{}, calendar.DefaultWorkweek(), handlerClock, time.UTC)
	return NewHandler(plans, actuals, reports)
}

func authed(r *http.Request, subject, role string) *http.Request {
	claims := &auth.Claims{
		Subject:   subject,
		Role:      role,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return r.WithContext(auth.WithClaims(r.Context(), claims))
}

func TestCreatePlanSuccess(t *testing.T) {
	handler := newTestHandler(newStubPlanRepo(), newStubActualRepo())

	body := `{"employee_id":"emp-1","project_id":"proj-1","date":"2026-06-11"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/plans", strings.NewReader(body)), "mgr-1", "manager")
	rr := httptest.NewRecorder()
	handler.plansCollection(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp PlanView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.PlanID == "" {
		t.Fatalf("expected generated plan id")
	}
	if resp.Date != "2026-06-11" {
		t.Fatalf("unexpected date %s", resp.Date)
	}
	if resp.ManagerID != "mgr-1" {
		t.Fatalf("expected manager mgr-1 got %s", resp.ManagerID)
	}
	if resp.Employee == nil || resp.Employee.LastName != "Bondar" {
		t.Fatalf("expected decorated employee")
	}
}

func TestCreatePlanPastDateRejected(t *testing.T) {
	handler := newTestHandler(newStubPlanRepo(), newStubActualRepo())

	body := `{"employee_id":"emp-1","project_id":"proj-1","date":"2026-06-09"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/plans", strings.NewReader(body)), "mgr-1", "manager")
	rr := httptest.NewRecorder()
	handler.plansCollection(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreatePlanForbiddenForEmployee(t *testing.T) {
	handler := newTestHandler(newStubPlanRepo(), newStubActualRepo())

	body := `{"employee_id":"emp-1","project_id":"proj-1","date":"2026-06-11"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/plans", strings.NewReader(body)), "emp-1", "employee")
	rr := httptest.NewRecorder()
	handler.plansCollection(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreatePlanConflict(t *testing.T) {
	repo := newStubPlanRepo(domain.Plan{
		ID:         "plan-1",
		EmployeeID: "emp-1",
		ProjectID:  "proj-1",
		CreatedBy:  "mgr-1",
		Date:       calendar.Date{Year: 2026, Month: time.June, Day: 11},
	})
	handler := newTestHandler(repo, newStubActualRepo())

	body := `{"employee_id":"emp-1","project_id":"proj-1","date":"2026-06-11"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/plans", strings.NewReader(body)), "mgr-1", "manager")
	rr := httptest.NewRecorder()
	handler.plansCollection(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["type"] != "conflict" {
		t.Fatalf("expected conflict type got %s", resp["type"])
	}
}

func TestCalendarRequiresRange(t *testing.T) {
	handler := newTestHandler(newStubPlanRepo(), newStubActualRepo())

	req := authed(httptest.NewRequest(http.MethodGet, "/v1/plans/calendar", nil), "mgr-1", "manager")
	rr := httptest.NewRecorder()
	handler.planCalendar(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestCalendarGroupsByDate(t *testing.T) {
	repo := newStubPlanRepo(domain.Plan{
		ID:         "plan-1",
		EmployeeID: "emp-1",
		ProjectID:  "proj-1",
		CreatedBy:  "mgr-1",
		Date:       calendar.Date{Year: 2026, Month: time.June, Day: 11},
	})
	handler := newTestHandler(repo, newStubActualRepo())

	req := authed(httptest.NewRequest(http.MethodGet, "/v1/plans/calendar?from=2026-06-10&to=2026-06-12", nil), "mgr-1", "manager")
	rr := httptest.NewRecorder()
	handler.planCalendar(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp CalendarResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	plansOnDay, ok := resp.Days["2026-06-11"]
	if !ok || len(plansOnDay) != 1 {
		t.Fatalf("expected one plan under 2026-06-11, got %+v", resp.Days)
	}
}

func TestCreateActualDefaultsToSelf(t *testing.T) {
	handler := newTestHandler(newStubPlanRepo(), newStubActualRepo())

	body := `{"date":"2026-06-09","hours_worked":7.5,"distributions":[{"project_id":"proj-1","hours":6}]}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/actuals", strings.NewReader(body)), "emp-1", "employee")
	rr := httptest.NewRecorder()
	handler.actualsCollection(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ActualView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.EmployeeID != "emp-1" {
		t.Fatalf("expected own employee id got %s", resp.EmployeeID)
	}
	if len(resp.Distributions) != 1 || resp.Distributions[0].Hours != 6 {
		t.Fatalf("unexpected distributions %+v", resp.Distributions)
	}
}

func TestCreateActualForOthersRequiresManagement(t *testing.T) {
	handler := newTestHandler(newStubPlanRepo(), newStubActualRepo())

	body := `{"employee_id":"emp-1","date":"2026-06-09","hours_worked":8}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/actuals", strings.NewReader(body)), "emp-2", "employee")
	rr := httptest.NewRecorder()
	handler.actualsCollection(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateActualTrialForbidden(t *testing.T) {
	handler := newTestHandler(newStubPlanRepo(), newStubActualRepo())

	body := `{"date":"2026-06-09","hours_worked":8}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/actuals", strings.NewReader(body)), "trial-1", "trial")
	rr := httptest.NewRecorder()
	handler.actualsCollection(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAddDistributionRoute(t *testing.T) {
	repo := newStubActualRepo(domain.Actual{
		ID:          "act-1",
		EmployeeID:  "emp-1",
		Date:        calendar.Date{Year: 2026, Month: time.June, Day: 9},
		HoursWorked: 8,
	})
	handler := newTestHandler(newStubPlanRepo(), repo)

	body := `{"project_id":"proj-1","hours":3,"description":"code review"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/actuals/act-1/distributions", strings.NewReader(body)), "emp-1", "employee")
	rr := httptest.NewRecorder()
	handler.actualByID(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp DistributionView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ActualID != "act-1" || resp.Hours != 3 {
		t.Fatalf("unexpected distribution %+v", resp)
	}
}

func TestAddDistributionOverBudget(t *testing.T) {
	repo := newStubActualRepo(domain.Actual{
		ID:          "act-1",
		EmployeeID:  "emp-1",
		Date:        calendar.Date{Year: 2026, Month: time.June, Day: 9},
		HoursWorked: 4,
		Distributions: []domain.Distribution{
			{ID: "dist-1", ActualID: "act-1", ProjectID: "proj-1", Hours: 3},
		},
	})
	handler := newTestHandler(newStubPlanRepo(), repo)

	body := `{"project_id":"proj-1","hours":2}`
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/actuals/act-1/distributions", strings.NewReader(body)), "emp-1", "employee")
	rr := httptest.NewRecorder()
	handler.actualByID(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestListActualsScopedToEmployee(t *testing.T) {
	repo := newStubActualRepo(
		domain.Actual{ID: "act-1", EmployeeID: "emp-1", Date: calendar.Date{Year: 2026, Month: time.June, Day: 9}, HoursWorked: 8},
		domain.Actual{ID: "act-2", EmployeeID: "emp-2", Date: calendar.Date{Year: 2026, Month: time.June, Day: 9}, HoursWorked: 6},
	)
	handler := newTestHandler(newStubPlanRepo(), repo)

	// An employee asking for someone else's data still only sees their own.
	req := authed(httptest.NewRequest(http.MethodGet, "/v1/actuals?employee_id=emp-2", nil), "emp-1", "employee")
	rr := httptest.NewRecorder()
	handler.actualsCollection(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ListActualsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ActualID != "act-1" {
		t.Fatalf("expected only own actual, got %+v", resp.Items)
	}
}

func TestListActualsClampsPageSize(t *testing.T) {
	repo := newStubActualRepo()
	handler := newTestHandler(newStubPlanRepo(), repo)

	req := authed(httptest.NewRequest(http.MethodGet, "/v1/actuals?limit=5000", nil), "mgr-1", "manager")
	rr := httptest.NewRecorder()
	handler.actualsCollection(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if repo.lastLimit != maxActualPageSize {
		t.Fatalf("expected page size clamped to %d, got %d", maxActualPageSize, repo.lastLimit)
	}
}

func TestReportsRequireManagementRole(t *testing.T) {
	handler := newTestHandler(newStubPlanRepo(), newStubActualRepo())

	req := authed(httptest.NewRequest(http.MethodGet, "/v1/reports/projects", nil), "emp-1", "employee")
	rr := httptest.NewRecorder()
	handler.projectReport(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}

	req = authed(httptest.NewRequest(http.MethodGet, "/v1/reports/employees", nil), "trial-1", "trial")
	rr = httptest.NewRecorder()
	handler.employeeReport(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestProjectReportSuccess(t *testing.T) {
	handler := newTestHandler(newStubPlanRepo(), newStubActualRepo())

	req := authed(httptest.NewRequest(http.MethodGet, "/v1/reports/projects?from=2026-06-08&to=2026-06-12", nil), "mgr-1", "manager")
	rr := httptest.NewRecorder()
	handler.projectReport(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ProjectReportView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Rows) != 1 {
		t.Fatalf("expected 1 row got %d", len(resp.Rows))
	}
	// 20 of 40 expected hours.
	if resp.Rows[0].ProgressPercent != 50 {
		t.Fatalf("expected 50%% progress got %d", resp.Rows[0].ProgressPercent)
	}
}

func TestEmployeeReportSuccess(t *testing.T) {
	handler := newTestHandler(newStubPlanRepo(), newStubActualRepo())

	req := authed(httptest.NewRequest(http.MethodGet, "/v1/reports/employees?from=2026-06-08&to=2026-06-12", nil), "mgr-1", "manager")
	rr := httptest.NewRecorder()
	handler.employeeReport(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp EmployeeReportView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.From != "2026-06-08" || resp.To != "2026-06-12" {
		t.Fatalf("unexpected range %s..%s", resp.From, resp.To)
	}
	if len(resp.Rows) != 1 {
		t.Fatalf("expected 1 row got %d", len(resp.Rows))
	}
	// 32 worked against 40 expected.
	if resp.Rows[0].Deviation != -8 {
		t.Fatalf("expected deviation -8 got %g", resp.Rows[0].Deviation)
	}
	if resp.Summary.Underworking != 0 {
		t.Fatalf("deviation of exactly -8 must not count as underworking")
	}
}

func TestRangeValidation(t *testing.T) {
	handler := newTestHandler(newStubPlanRepo(), newStubActualRepo())

	// from without to
	req := authed(httptest.NewRequest(http.MethodGet, "/v1/plans?from=2026-06-01", nil), "mgr-1", "manager")
	rr := httptest.NewRecorder()
	handler.plansCollection(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}

	// inverted range
	req = authed(httptest.NewRequest(http.MethodGet, "/v1/plans?from=2026-06-10&to=2026-06-01", nil), "mgr-1", "manager")
	rr = httptest.NewRecorder()
	handler.plansCollection(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}
