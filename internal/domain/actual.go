package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"example.com/workload/internal/calendar"
)

// MaxDailyHours caps a single day's reported hours.
const MaxDailyHours = 24

// Actual is one employee's report of hours worked on one civil date. At
// most one actual exists per (employee, date). It owns its distributions;
// deleting the actual removes them.
type Actual struct {
	ID          string
	EmployeeID  string
	Date        calendar.Date
	HoursWorked float64
	Note        string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Distributions []Distribution
	Employee      *EmployeeSummary
}

// DistributedHours sums the hours attributed to projects. Undistributed
// time is allowed and represents unaccounted/general work.
func (a Actual) DistributedHours() float64 {
	var sum float64
	for _, d := range a.Distributions {
		sum += d.Hours
	}
	return sum
}

// Distribution attributes a portion of an actual's hours to a project.
type Distribution struct {
	ID          string
	ActualID    string
	ProjectID   string
	Hours       float64
	Description string

	Project *ProjectSummary
}

// ActualFilter narrows actual queries. Zero fields match everything.
type ActualFilter struct {
	EmployeeID string
	Range      *calendar.Range
}

// Cursor is the pagination token for actual listings, ordered by
// (work date, id) descending.
type Cursor struct {
	Date calendar.Date
	ID   string
}

// ActualRepository captures actual persistence. Create inserts the actual
// and its distributions in one transaction and surfaces the uniqueness
// violation on (employee, date) wrapped as ErrConflict.
type ActualRepository interface {
	Create(ctx context.Context, actual Actual) error
	Get(ctx context.Context, id string) (*Actual, error)
	FindByEmployeeAndDate(ctx context.Context, employeeID string, date calendar.Date) (*Actual, error)
	Update(ctx context.Context, actual Actual) error
	Delete(ctx context.Context, id string) error
	AddDistribution(ctx context.Context, dist Distribution) error
	RemoveDistribution(ctx context.Context, id string) error
	ListForEmployee(ctx context.Context, employeeID string, rng calendar.Range) ([]Actual, error)
	List(ctx context.Context, filter ActualFilter, cursor *Cursor, limit int) ([]Actual, *Cursor, error)
}

// ActualService enforces the reporting rules in front of the repository.
type ActualService struct {
	repo      ActualRepository
	employees EmployeeDirectory
	projects  ProjectDirectory
	clock     calendar.Clock
}

// NewActualService constructs an ActualService.
func NewActualService(repo ActualRepository, employees EmployeeDirectory, projects ProjectDirectory, clock calendar.Clock) *ActualService {
	return &ActualService{repo: repo, employees: employees, projects: projects, clock: clock}
}

// DistributionInput captures one per-project attribution in a create or
// add call.
type DistributionInput struct {
	ProjectID   string
	Hours       float64
	Description string
}

// CreateActualInput captures the payload for reporting a day's hours.
type CreateActualInput struct {
	EmployeeID    string
	Date          calendar.Date
	HoursWorked   float64
	Note          string
	Distributions []DistributionInput
}

// ActualPatch carries optional actual mutations. Nil fields are untouched.
type ActualPatch struct {
	HoursWorked *float64
	Note        *string
}

// Create records a day's hours together with its distributions. The write
// is all-or-nothing: an actual without its supplied distributions is never
// observable.
func (s *ActualService) Create(ctx context.Context, input CreateActualInput) (*Actual, error) {
	if input.Date.IsZero() {
		return nil, validationf("date is required")
	}
	if input.HoursWorked <= 0 || input.HoursWorked > MaxDailyHours {
		return nil, validationf("hours worked must be in (0, %d], got %g", MaxDailyHours, input.HoursWorked)
	}

	employee, err := s.employees.Get(ctx, input.EmployeeID)
	if err != nil {
		return nil, err
	}
	if employee == nil {
		return nil, notFoundf("employee %s", input.EmployeeID)
	}

	var distributed float64
	for _, in := range input.Distributions {
		if in.Hours <= 0 {
			return nil, validationf("distribution hours must be positive, got %g", in.Hours)
		}
		project, err := s.projects.Get(ctx, in.ProjectID)
		if err != nil {
			return nil, err
		}
		if project == nil {
			return nil, notFoundf("project %s", in.ProjectID)
		}
		distributed += in.Hours
	}
	if distributed > input.HoursWorked {
		return nil, validationf("distributed hours %g exceed hours worked %g", distributed, input.HoursWorked)
	}

	// Fast path; the unique index violation from Create is authoritative.
	if existing, err := s.repo.FindByEmployeeAndDate(ctx, input.EmployeeID, input.Date); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, conflictf("actual for employee %s on %s", input.EmployeeID, input.Date)
	}

	now := s.clock.Now().UTC()
	actual := Actual{
		ID:          uuid.NewString(),
		EmployeeID:  input.EmployeeID,
		Date:        input.Date,
		HoursWorked: input.HoursWorked,
		Note:        input.Note,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, in := range input.Distributions {
		actual.Distributions = append(actual.Distributions, Distribution{
			ID:          uuid.NewString(),
			ActualID:    actual.ID,
			ProjectID:   in.ProjectID,
			Hours:       in.Hours,
			Description: in.Description,
		})
	}

	if err := s.repo.Create(ctx, actual); err != nil {
		return nil, err
	}

	actual.Employee = employee
	if err := s.decorateDistributions(ctx, actual.Distributions); err != nil {
		return nil, err
	}
	return &actual, nil
}

// Update mutates hours worked or the note. Reducing hours below the
// already-distributed sum is rejected so an over-distributed actual can
// never be produced by this path.
func (s *ActualService) Update(ctx context.Context, id string, patch ActualPatch) (*Actual, error) {
	actual, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actual == nil {
		return nil, notFoundf("actual %s", id)
	}

	if patch.HoursWorked != nil {
		hours := *patch.HoursWorked
		if hours <= 0 || hours > MaxDailyHours {
			return nil, validationf("hours worked must be in (0, %d], got %g", MaxDailyHours, hours)
		}
		// Fast path; the repository re-checks under the row lock.
		if distributed := actual.DistributedHours(); hours < distributed {
			return nil, validationf("hours worked %g below distributed hours %g", hours, distributed)
		}
		actual.HoursWorked = hours
	}
	if patch.Note != nil {
		actual.Note = *patch.Note
	}

	actual.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, *actual); err != nil {
		return nil, err
	}
	decorated := []Actual{*actual}
	if err := s.decorateActuals(ctx, decorated); err != nil {
		return nil, err
	}
	return &decorated[0], nil
}

// Delete removes an actual and, by cascade, its distributions.
func (s *ActualService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// AddDistribution attributes hours from an existing actual to a project.
// The write is rejected when it would push the distributed sum past the
// actual's hours worked.
func (s *ActualService) AddDistribution(ctx context.Context, actualID string, input DistributionInput) (*Distribution, error) {
	if input.Hours <= 0 {
		return nil, validationf("distribution hours must be positive, got %g", input.Hours)
	}

	actual, err := s.repo.Get(ctx, actualID)
	if err != nil {
		return nil, err
	}
	if actual == nil {
		return nil, notFoundf("actual %s", actualID)
	}

	project, err := s.projects.Get(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, notFoundf("project %s", input.ProjectID)
	}

	// Fast path; the repository re-checks under the parent row lock.
	if sum := actual.DistributedHours() + input.Hours; sum > actual.HoursWorked {
		return nil, validationf("distributed hours %g would exceed hours worked %g", sum, actual.HoursWorked)
	}

	dist := Distribution{
		ID:          uuid.NewString(),
		ActualID:    actualID,
		ProjectID:   input.ProjectID,
		Hours:       input.Hours,
		Description: input.Description,
	}
	if err := s.repo.AddDistribution(ctx, dist); err != nil {
		return nil, err
	}
	dist.Project = project
	return &dist, nil
}

// RemoveDistribution deletes a single distribution by id.
func (s *ActualService) RemoveDistribution(ctx context.Context, id string) error {
	return s.repo.RemoveDistribution(ctx, id)
}

// FindByEmployeeAndDate returns the actual for (employee, date), or nil.
func (s *ActualService) FindByEmployeeAndDate(ctx context.Context, employeeID string, date calendar.Date) (*Actual, error) {
	actual, err := s.repo.FindByEmployeeAndDate(ctx, employeeID, date)
	if err != nil || actual == nil {
		return actual, err
	}
	actuals := []Actual{*actual}
	if err := s.decorateActuals(ctx, actuals); err != nil {
		return nil, err
	}
	return &actuals[0], nil
}

// ListForEmployee returns an employee's actuals in the range, decorated.
func (s *ActualService) ListForEmployee(ctx context.Context, employeeID string, rng calendar.Range) ([]Actual, error) {
	actuals, err := s.repo.ListForEmployee(ctx, employeeID, rng)
	if err != nil {
		return nil, err
	}
	if err := s.decorateActuals(ctx, actuals); err != nil {
		return nil, err
	}
	return actuals, nil
}

// List returns actuals matching the filter with cursor pagination.
func (s *ActualService) List(ctx context.Context, filter ActualFilter, cursor *Cursor, limit int) ([]Actual, *Cursor, error) {
	actuals, next, err := s.repo.List(ctx, filter, cursor, limit)
	if err != nil {
		return nil, nil, err
	}
	if err := s.decorateActuals(ctx, actuals); err != nil {
		return nil, nil, err
	}
	return actuals, next, nil
}

func (s *ActualService) decorateActuals(ctx context.Context, actuals []Actual) error {
	employees := make(map[string]*EmployeeSummary)
	for i := range actuals {
		summary, ok := employees[actuals[i].EmployeeID]
		if !ok {
			var err error
			summary, err = s.employees.Get(ctx, actuals[i].EmployeeID)
			if err != nil {
				return err
			}
			employees[actuals[i].EmployeeID] = summary
		}
		actuals[i].Employee = summary
		if err := s.decorateDistributions(ctx, actuals[i].Distributions); err != nil {
			return err
		}
	}
	return nil
}

func (s *ActualService) decorateDistributions(ctx context.Context, dists []Distribution) error {
	projects := make(map[string]*ProjectSummary)
	for i := range dists {
		summary, ok := projects[dists[i].ProjectID]
		if !ok {
			var err error
			summary, err = s.projects.Get(ctx, dists[i].ProjectID)
			if err != nil {
				return err
			}
			projects[dists[i].ProjectID] = summary
		}
		dists[i].Project = summary
	}
	return nil
}
