// Package domain defines the workload reconciliation business logic.
package domain

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"example.com/workload/internal/calendar"
)

// Plan assigns one employee to one project on one civil date. At most one
// plan exists per (employee, date). A plan dated today or later is mutable
// by its creating manager or an admin; once its date has passed it is
// immutable history for everyone.
type Plan struct {
	ID         string
	EmployeeID string
	ProjectID  string
	CreatedBy  string
	Date       calendar.Date
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Directory decorations, populated on read paths.
	Employee *EmployeeSummary
	Project  *ProjectSummary
	Manager  *EmployeeSummary
}

// PlanFilter narrows plan queries. Zero fields match everything.
type PlanFilter struct {
	EmployeeID string
	ProjectID  string
	Range      *calendar.Range
}

// PlanRepository captures plan persistence. Create and Update must surface
// the store's uniqueness violation on (employee, date) wrapped as
// ErrConflict; the check-then-insert in the service is only a fast path.
type PlanRepository interface {
	Create(ctx context.Context, plan Plan) error
	Get(ctx context.Context, id string) (*Plan, error)
	FindByEmployeeAndDate(ctx context.Context, employeeID string, date calendar.Date) (*Plan, error)
	Update(ctx context.Context, plan Plan) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter PlanFilter) ([]Plan, error)
}

// PlanService enforces the planning rules in front of the repository.
type PlanService struct {
	repo      PlanRepository
	employees EmployeeDirectory
	projects  ProjectDirectory
	clock     calendar.Clock
	loc       *time.Location
}

// NewPlanService constructs a PlanService.
func NewPlanService(repo PlanRepository, employees EmployeeDirectory, projects ProjectDirectory, clock calendar.Clock, loc *time.Location) *PlanService {
	return &PlanService{repo: repo, employees: employees, projects: projects, clock: clock, loc: loc}
}

// CreatePlanInput captures the payload for plan creation.
type CreatePlanInput struct {
	EmployeeID string
	ProjectID  string
	Date       calendar.Date
}

// PlanPatch carries optional plan mutations. Nil fields are untouched.
type PlanPatch struct {
	ProjectID *string
	Date      *calendar.Date
}

// Create persists a new plan on behalf of actor.
func (s *PlanService) Create(ctx context.Context, input CreatePlanInput, actor Principal) (*Plan, error) {
	if !actor.CanManagePlans() {
		return nil, forbiddenf("role %s cannot create plans", actor.Role)
	}
	if input.Date.IsZero() {
		return nil, validationf("date is required")
	}

	today := calendar.Today(s.clock, s.loc)
	if input.Date.Before(today) {
		return nil, validationf("plan date %s is in the past", input.Date)
	}

	employee, err := s.employees.Get(ctx, input.EmployeeID)
	if err != nil {
		return nil, err
	}
	if employee == nil {
		return nil, notFoundf("employee %s", input.EmployeeID)
	}

	project, err := s.projects.Get(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, notFoundf("project %s", input.ProjectID)
	}

	// Resolved up front so decoration cannot fail a committed write.
	manager, err := s.employees.Get(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	// Fast path; the unique index violation from Create is authoritative.
	if existing, err := s.repo.FindByEmployeeAndDate(ctx, input.EmployeeID, input.Date); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, conflictf("plan for employee %s on %s", input.EmployeeID, input.Date)
	}

	now := s.clock.Now().UTC()
	plan := Plan{
		ID:         uuid.NewString(),
		EmployeeID: input.EmployeeID,
		ProjectID:  input.ProjectID,
		CreatedBy:  actor.ID,
		Date:       input.Date,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, err
	}

	plan.Employee = employee
	plan.Project = project
	plan.Manager = manager
	return &plan, nil
}

// Update mutates a plan's project or date under the temporal and
// authorization rules.
func (s *PlanService) Update(ctx context.Context, id string, patch PlanPatch, actor Principal) (*Plan, error) {
	plan, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, notFoundf("plan %s", id)
	}

	today := calendar.Today(s.clock, s.loc)
	if plan.Date.Before(today) {
		return nil, validationf("plan dated %s is immutable history", plan.Date)
	}
	if err := s.authorize(*plan, actor); err != nil {
		return nil, err
	}

	if patch.Date != nil && patch.Date.Compare(plan.Date) != 0 {
		if patch.Date.Before(today) {
			return nil, validationf("plan date %s is in the past", *patch.Date)
		}
		other, err := s.repo.FindByEmployeeAndDate(ctx, plan.EmployeeID, *patch.Date)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != plan.ID {
			return nil, conflictf("plan for employee %s on %s", plan.EmployeeID, *patch.Date)
		}
		plan.Date = *patch.Date
	}

	if patch.ProjectID != nil && *patch.ProjectID != plan.ProjectID {
		project, err := s.projects.Get(ctx, *patch.ProjectID)
		if err != nil {
			return nil, err
		}
		if project == nil {
			return nil, notFoundf("project %s", *patch.ProjectID)
		}
		plan.ProjectID = *patch.ProjectID
	}

	plan.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, *plan); err != nil {
		return nil, err
	}
	decorated := []Plan{*plan}
	if err := s.decoratePlans(ctx, decorated); err != nil {
		return nil, err
	}
	return &decorated[0], nil
}

// Delete removes a plan under the same temporal and authorization rules as
// Update.
func (s *PlanService) Delete(ctx context.Context, id string, actor Principal) error {
	plan, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if plan == nil {
		return notFoundf("plan %s", id)
	}

	today := calendar.Today(s.clock, s.loc)
	if plan.Date.Before(today) {
		return validationf("plan dated %s is immutable history", plan.Date)
	}
	if err := s.authorize(*plan, actor); err != nil {
		return err
	}

	return s.repo.Delete(ctx, id)
}

// List returns plans matching the filter ordered by date ascending,
// decorated with directory summaries.
func (s *PlanService) List(ctx context.Context, filter PlanFilter) ([]Plan, error) {
	plans, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := s.decoratePlans(ctx, plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// CalendarDay is one day's worth of plans in the calendar view.
type CalendarDay struct {
	Date  calendar.Date
	Plans []Plan
}

// CalendarView groups plans in the range by civil date. Days are ordered
// ascending; plans within a day are ordered by employee surname then given
// name. The grouping key comes from calendar fields, never from a
// timestamp's UTC rendering.
func (s *PlanService) CalendarView(ctx context.Context, rng calendar.Range, filter PlanFilter) ([]CalendarDay, error) {
	filter.Range = &rng
	plans, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := s.decoratePlans(ctx, plans); err != nil {
		return nil, err
	}

	byDate := make(map[calendar.Date][]Plan)
	for _, plan := range plans {
		byDate[plan.Date] = append(byDate[plan.Date], plan)
	}

	days := make([]CalendarDay, 0, len(byDate))
	for date, group := range byDate {
		sort.SliceStable(group, func(i, j int) bool {
			a, b := group[i].Employee, group[j].Employee
			if a == nil || b == nil {
				return a != nil
			}
			if a.LastName != b.LastName {
				return a.LastName < b.LastName
			}
			return a.FirstName < b.FirstName
		})
		days = append(days, CalendarDay{Date: date, Plans: group})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}

func (s *PlanService) authorize(plan Plan, actor Principal) error {
	if actor.IsAdmin() || actor.ID == plan.CreatedBy {
		return nil
	}
	return forbiddenf("plan %s belongs to manager %s", plan.ID, plan.CreatedBy)
}

func (s *PlanService) decoratePlans(ctx context.Context, plans []Plan) error {
	employees := make(map[string]*EmployeeSummary)
	projects := make(map[string]*ProjectSummary)

	lookupEmployee := func(id string) (*EmployeeSummary, error) {
		if summary, ok := employees[id]; ok {
			return summary, nil
		}
		summary, err := s.employees.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		employees[id] = summary
		return summary, nil
	}

	for i := range plans {
		var err error
		if plans[i].Employee, err = lookupEmployee(plans[i].EmployeeID); err != nil {
			return err
		}
		if plans[i].Manager, err = lookupEmployee(plans[i].CreatedBy); err != nil {
			return err
		}
		if summary, ok := projects[plans[i].ProjectID]; ok {
			plans[i].Project = summary
			continue
		}
		summary, err := s.projects.Get(ctx, plans[i].ProjectID)
		if err != nil {
			return err
		}
		projects[plans[i].ProjectID] = summary
		plans[i].Project = summary
	}
	return nil
}
