package domain

import (
	"context"
	"math"
	"sort"
	"time"

	"example.com/workload/internal/calendar"
)

// HoursPerWorkday converts planned days and working days into expected
// hours.
const HoursPerWorkday = 8

// deviationThresholdHours separates normal variance from under/over-work
// in the employee report summary.
const deviationThresholdHours = 8

// ProjectPlanFacts is the raw per-project planning aggregate read from the
// store: distinct planned dates and distinct planned employees.
type ProjectPlanFacts struct {
	ProjectID   string
	PlannedDays int
	Headcount   int
}

// AnalyticsRepository reads the raw aggregates the reports are derived
// from. A nil range means all time. Reads are snapshot-consistent only;
// reporting tolerates writes in flight.
type AnalyticsRepository interface {
	ProjectPlanFacts(ctx context.Context, rng *calendar.Range) ([]ProjectPlanFacts, error)
	ProjectActualHours(ctx context.Context, rng *calendar.Range) (map[string]float64, error)
	EmployeeWorkedHours(ctx context.Context, rng calendar.Range) (map[string]float64, error)
}

// ProjectWorkloadRow is one project's reconciliation of planned versus
// reported hours.
type ProjectWorkloadRow struct {
	Project         ProjectSummary
	PlannedDays     int
	Headcount       int
	ExpectedHours   float64
	ActualHours     float64
	ProgressPercent int
}

// ProjectWorkloadSummary aggregates the project report.
type ProjectWorkloadSummary struct {
	TotalProjects     int
	ActiveProjects    int
	CompletedProjects int
	TotalActualHours  float64
}

// ProjectWorkloadReport is the management-facing project view.
type ProjectWorkloadReport struct {
	Rows    []ProjectWorkloadRow
	Summary ProjectWorkloadSummary
}

// EmployeeHoursRow is one employee's reconciliation of reported versus
// expected hours over the report range.
type EmployeeHoursRow struct {
	Employee         EmployeeSummary
	TotalHoursWorked float64
	ExpectedHours    float64
	Deviation        float64
	DeviationPercent int
}

// EmployeeHoursSummary aggregates the employee report.
type EmployeeHoursSummary struct {
	WorkingDays              int
	ExpectedHoursPerEmployee float64
	Underworking             int
	Overworking              int
	AverageHoursWorked       float64
}

// EmployeeHoursReport is the management-facing employee view.
type EmployeeHoursReport struct {
	Range   calendar.Range
	Rows    []EmployeeHoursRow
	Summary EmployeeHoursSummary
}

// Aggregator derives the two reconciliation reports on demand. Nothing is
// materialized; every call recomputes from store aggregates.
type Aggregator struct {
	repo      AnalyticsRepository
	projects  ProjectDirectory
	employees EmployeeDirectory
	workweek  calendar.WorkweekPolicy
	clock     calendar.Clock
	loc       *time.Location
}

// NewAggregator constructs an Aggregator.
func NewAggregator(repo AnalyticsRepository, projects ProjectDirectory, employees EmployeeDirectory, workweek calendar.WorkweekPolicy, clock calendar.Clock, loc *time.Location) *Aggregator {
	return &Aggregator{repo: repo, projects: projects, employees: employees, workweek: workweek, clock: clock, loc: loc}
}

// ReportProjects computes planned days, headcount, reported hours, and
// progress for every project in the directory. A nil range covers all
// time.
func (a *Aggregator) ReportProjects(ctx context.Context, rng *calendar.Range) (*ProjectWorkloadReport, error) {
	projects, err := a.projects.List(ctx)
	if err != nil {
		return nil, err
	}
	facts, err := a.repo.ProjectPlanFacts(ctx, rng)
	if err != nil {
		return nil, err
	}
	actualHours, err := a.repo.ProjectActualHours(ctx, rng)
	if err != nil {
		return nil, err
	}

	factsByProject := make(map[string]ProjectPlanFacts, len(facts))
	for _, f := range facts {
		factsByProject[f.ProjectID] = f
	}

	report := &ProjectWorkloadReport{Rows: make([]ProjectWorkloadRow, 0, len(projects))}
	var totalActual float64
	for _, project := range projects {
		f := factsByProject[project.ID]
		actual := actualHours[project.ID]
		totalActual += actual

		expected := float64(f.PlannedDays * HoursPerWorkday)
		progress := 0
		if expected > 0 {
			progress = roundPercent(actual / expected * 100)
			if progress > 100 {
				progress = 100
			}
		}

		report.Rows = append(report.Rows, ProjectWorkloadRow{
			Project:         project,
			PlannedDays:     f.PlannedDays,
			Headcount:       f.Headcount,
			ExpectedHours:   expected,
			ActualHours:     roundHours(actual),
			ProgressPercent: progress,
		})

		switch project.Status {
		case ProjectStatusActive:
			report.Summary.ActiveProjects++
		case ProjectStatusCompleted:
			report.Summary.CompletedProjects++
		}
	}

	report.Summary.TotalProjects = len(projects)
	report.Summary.TotalActualHours = roundHours(totalActual)
	return report, nil
}

// ReportEmployees computes per-employee deviation between reported and
// expected hours. A nil range defaults to the current calendar month. Only
// employees with the employee or manager role are listed, sorted most
// under-worked first.
func (a *Aggregator) ReportEmployees(ctx context.Context, rng *calendar.Range) (*EmployeeHoursReport, error) {
	reportRange := calendar.MonthOf(calendar.Today(a.clock, a.loc))
	if rng != nil {
		reportRange = *rng
	}

	workingDays := a.workweek.WorkingDays(reportRange)
	expected := float64(workingDays * HoursPerWorkday)

	staff, err := a.employees.ListByRole(ctx, RoleEmployee, RoleManager)
	if err != nil {
		return nil, err
	}
	worked, err := a.repo.EmployeeWorkedHours(ctx, reportRange)
	if err != nil {
		return nil, err
	}

	report := &EmployeeHoursReport{
		Range: reportRange,
		Rows:  make([]EmployeeHoursRow, 0, len(staff)),
		Summary: EmployeeHoursSummary{
			WorkingDays:              workingDays,
			ExpectedHoursPerEmployee: expected,
		},
	}

	var totalWorked float64
	for _, employee := range staff {
		total := worked[employee.ID]
		totalWorked += total
		deviation := total - expected

		pct := 0
		if expected > 0 {
			pct = roundPercent(deviation / expected * 100)
		}

		report.Rows = append(report.Rows, EmployeeHoursRow{
			Employee:         employee,
			TotalHoursWorked: roundHours(total),
			ExpectedHours:    expected,
			Deviation:        roundHours(deviation),
			DeviationPercent: pct,
		})

		if deviation < -deviationThresholdHours {
			report.Summary.Underworking++
		} else if deviation > deviationThresholdHours {
			report.Summary.Overworking++
		}
	}

	sort.SliceStable(report.Rows, func(i, j int) bool {
		return report.Rows[i].Deviation < report.Rows[j].Deviation
	})

	if len(report.Rows) > 0 {
		report.Summary.AverageHoursWorked = roundHours(totalWorked / float64(len(report.Rows)))
	}
	return report, nil
}

// roundHours rounds an hour quantity to one decimal, half away from zero.
// Rounding is applied once to the full-precision sum, never accumulated
// from pre-rounded intermediates.
func roundHours(hours float64) float64 {
	return math.Round(hours*10) / 10
}

// roundPercent rounds a percentage to the nearest integer, half away from
// zero.
func roundPercent(pct float64) int {
	return int(math.Round(pct))
}
