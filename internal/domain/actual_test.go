package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"example.com/workload/internal/calendar"
)

type mockActualRepo struct {
	actuals map[string]Actual
	created []Actual
	dists   []Distribution
}

func newMockActualRepo(actuals ...Actual) *mockActualRepo {
	repo := &mockActualRepo{actuals: make(map[string]Actual)}
	for _, a := range actuals {
		repo.actuals[a.ID] = a
	}
	return repo
}

func (m *mockActualRepo) Create(ctx context.Context, actual Actual) error {
	m.created = append(m.created, actual)
	m.actuals[actual.ID] = actual
	return nil
}

func (m *mockActualRepo) Get(ctx context.Context, id string) (*Actual, error) {
	if actual, ok := m.actuals[id]; ok {
		return &actual, nil
	}
	return nil, nil
}

func (m *mockActualRepo) FindByEmployeeAndDate(ctx context.Context, employeeID string, d calendar.Date) (*Actual, error) {
	for _, actual := range m.actuals {
		if actual.EmployeeID == employeeID && actual.Date.Compare(d) == 0 {
			return &actual, nil
		}
	}
	return nil, nil
}

func (m *mockActualRepo) Update(ctx context.Context, actual Actual) error {
	stored, ok := m.actuals[actual.ID]
	if !ok {
		return errors.New("missing actual")
	}
	actual.Distributions = stored.Distributions
	m.actuals[actual.ID] = actual
	return nil
}

func (m *mockActualRepo) Delete(ctx context.Context, id string) error {
	delete(m.actuals, id)
	return nil
}

func (m *mockActualRepo) AddDistribution(ctx context.Context, dist Distribution) error {
	actual, ok := m.actuals[dist.ActualID]
	if !ok {
		return errors.New("missing actual")
	}
	actual.Distributions = append(actual.Distributions, dist)
	m.actuals[dist.ActualID] = actual
	m.dists = append(m.dists, dist)
	return nil
}

func (m *mockActualRepo) RemoveDistribution(ctx context.Context, id string) error {
	for actualID, actual := range m.actuals {
		for i, dist := range actual.Distributions {
			if dist.ID == id {
				actual.Distributions = append(actual.Distributions[:i], actual.Distributions[i+1:]...)
				m.actuals[actualID] = actual
				return nil
			}
		}
	}
	return ErrNotFound
}

func (m *mockActualRepo) ListForEmployee(ctx context.Context, employeeID string, rng calendar.Range) ([]Actual, error) {
	var out []Actual
	for _, actual := range m.actuals {
		if actual.EmployeeID == employeeID && rng.Contains(actual.Date) {
			out = append(out, actual)
		}
	}
	return out, nil
}

func (m *mockActualRepo) List(ctx context.Context, filter ActualFilter, cursor *Cursor, limit int) ([]Actual, *Cursor, error) {
	var out []Actual
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

func newActualService(repo *mockActualRepo) *ActualService {
	dir := newMockDirectory()
	return NewActualService(repo, dir, mockProjects{dir: dir}, testClock)
}

func TestActualCreateSuccess(t *testing.T) {
	repo := newMockActualRepo()
	service := newActualService(repo)

	actual, err := service.Create(context.Background(), CreateActualInput{
		EmployeeID:  "emp-1",
		Date:        date(2026, time.June, 9),
		HoursWorked: 8.5,
		Note:        "release prep",
		Distributions: []DistributionInput{
			{ProjectID: "proj-1", Hours: 6, Description: "feature work"},
			{ProjectID: "proj-2", Hours: 2, Description: "handover"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if actual.DistributedHours() != 8 {
		t.Fatalf("expected 8 distributed hours got %g", actual.DistributedHours())
	}
	if len(actual.Distributions) != 2 {
		t.Fatalf("expected 2 distributions got %d", len(actual.Distributions))
	}
	if actual.Distributions[0].Project == nil || actual.Distributions[0].Project.Name != "Atlas" {
		t.Fatalf("expected decorated distribution project")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one atomic create, got %d", len(repo.created))
	}
}

func TestActualCreateHoursBounds(t *testing.T) {
	service := newActualService(newMockActualRepo())

	for _, hours := range []float64{0, -1, 24.5} {
		_, err := service.Create(context.Background(), CreateActualInput{
			EmployeeID:  "emp-1",
			Date:        date(2026, time.June, 9),
			HoursWorked: hours,
		})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("hours %g: expected validation error got %v", hours, err)
		}
	}

	// 24 exactly is allowed.
	_, err := service.Create(context.Background(), CreateActualInput{
		EmployeeID:  "emp-1",
		Date:        date(2026, time.June, 9),
		HoursWorked: 24,
	})
	if err != nil {
		t.Fatalf("unexpected error for 24 hours: %v", err)
	}
}

func TestActualCreateRejectsOverDistribution(t *testing.T) {
	service := newActualService(newMockActualRepo())

	_, err := service.Create(context.Background(), CreateActualInput{
		EmployeeID:  "emp-1",
		Date:        date(2026, time.June, 9),
		HoursWorked: 6,
		Distributions: []DistributionInput{
			{ProjectID: "proj-1", Hours: 4},
			{ProjectID: "proj-2", Hours: 3},
		},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestActualCreateConflictOnSameDay(t *testing.T) {
	repo := newMockActualRepo(Actual{
		ID:          "act-1",
		EmployeeID:  "emp-1",
		Date:        date(2026, time.June, 9),
		HoursWorked: 8,
	})
	service := newActualService(repo)

	_, err := service.Create(context.Background(), CreateActualInput{
		EmployeeID:  "emp-1",
		Date:        date(2026, time.June, 9),
		HoursWorked: 4,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict got %v", err)
	}
}

func TestAddDistributionEnforcesBudget(t *testing.T) {
	repo := newMockActualRepo(Actual{
		ID:          "act-1",
		EmployeeID:  "emp-1",
		Date:        date(2026, time.June, 9),
		HoursWorked: 8,
		Distributions: []Distribution{
			{ID: "dist-1", ActualID: "act-1", ProjectID: "proj-1", Hours: 6},
		},
	})
	service := newActualService(repo)

	// 6 + 3 > 8 is rejected.
	_, err := service.AddDistribution(context.Background(), "act-1", DistributionInput{ProjectID: "proj-2", Hours: 3})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error got %v", err)
	}

	// 6 + 2 = 8 fits exactly.
	dist, err := service.AddDistribution(context.Background(), "act-1", DistributionInput{ProjectID: "proj-2", Hours: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dist.Project == nil || dist.Project.Name != "Beacon" {
		t.Fatalf("expected decorated project, got %+v", dist.Project)
	}
}

func TestActualUpdateCannotUndercutDistributions(t *testing.T) {
	repo := newMockActualRepo(Actual{
		ID:          "act-1",
		EmployeeID:  "emp-1",
		Date:        date(2026, time.June, 9),
		HoursWorked: 8,
		Distributions: []Distribution{
			{ID: "dist-1", ActualID: "act-1", ProjectID: "proj-1", Hours: 6},
		},
	})
	service := newActualService(repo)

	below := 5.0
	_, err := service.Update(context.Background(), "act-1", ActualPatch{HoursWorked: &below})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error got %v", err)
	}

	exact := 6.0
	actual, err := service.Update(context.Background(), "act-1", ActualPatch{HoursWorked: &exact})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actual.HoursWorked != 6 {
		t.Fatalf("expected 6 hours got %g", actual.HoursWorked)
	}
}

func TestActualUpdateNote(t *testing.T) {
	repo := newMockActualRepo(Actual{
		ID:          "act-1",
		EmployeeID:  "emp-1",
		Date:        date(2026, time.June, 9),
		HoursWorked: 8,
	})
	service := newActualService(repo)

	note := "corrected entry"
	actual, err := service.Update(context.Background(), "act-1", ActualPatch{Note: &note})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actual.Note != note {
		t.Fatalf("expected note update, got %q", actual.Note)
	}
	if actual.Employee == nil || actual.Employee.ID != "emp-1" {
		t.Fatalf("expected decorated employee")
	}
}

func TestActualUpdateNotFound(t *testing.T) {
	service := newActualService(newMockActualRepo())
	note := "x"
	if _, err := service.Update(context.Background(), "missing", ActualPatch{Note: &note}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestAddDistributionUnknownProject(t *testing.T) {
	repo := newMockActualRepo(Actual{
		ID:          "act-1",
		EmployeeID:  "emp-1",
		Date:        date(2026, time.June, 9),
		HoursWorked: 8,
	})
	service := newActualService(repo)

	_, err := service.AddDistribution(context.Background(), "act-1", DistributionInput{ProjectID: "ghost", Hours: 1})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}
