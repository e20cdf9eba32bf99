package api

import (
	"net/http"

	"example.com/workload/internal/domain"
)

func (h *Handler) projectReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	actor, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !actor.CanManagePlans() {
		writeError(w, http.StatusForbidden, "forbidden", "reports require a management role")
		return
	}

	rng, err := parseRange(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	report, err := h.reports.ReportProjects(r.Context(), rng)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectReportView(report))
}

func (h *Handler) employeeReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	actor, ok := principal(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !actor.CanManagePlans() {
		writeError(w, http.StatusForbidden, "forbidden", "reports require a management role")
		return
	}

	rng, err := parseRange(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	report, err := h.reports.ReportEmployees(r.Context(), rng)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeReportView(report))
}

// ProjectReportRowView is one project line in the project workload report.
type ProjectReportRowView struct {
	Project         ProjectView `json:"project"`
	PlannedDays     int         `json:"planned_days"`
	Headcount       int         `json:"headcount"`
	ExpectedHours   float64     `json:"expected_hours"`
	ActualHours     float64     `json:"actual_hours"`
	ProgressPercent int         `json:"progress_percent"`
}

// ProjectReportView is the full project workload report payload.
type ProjectReportView struct {
	Rows    []ProjectReportRowView `json:"rows"`
	Summary ProjectSummaryView     `json:"summary"`
}

// ProjectSummaryView aggregates the project report.
type ProjectSummaryView struct {
	TotalProjects     int     `json:"total_projects"`
	ActiveProjects    int     `json:"active_projects"`
	CompletedProjects int     `json:"completed_projects"`
	TotalActualHours  float64 `json:"total_actual_hours"`
}

// EmployeeReportRowView is one employee line in the hours report.
type EmployeeReportRowView struct {
	Employee         EmployeeView `json:"employee"`
	TotalHoursWorked float64      `json:"total_hours_worked"`
	ExpectedHours    float64      `json:"expected_hours"`
	Deviation        float64      `json:"deviation"`
	DeviationPercent int          `json:"deviation_percent"`
}

// EmployeeReportView is the full employee hours report payload.
type EmployeeReportView struct {
	From    string                  `json:"from"`
	To      string                  `json:"to"`
	Rows    []EmployeeReportRowView `json:"rows"`
	Summary EmployeeSummaryView     `json:"summary"`
}

// EmployeeSummaryView aggregates the employee report.
type EmployeeSummaryView struct {
	WorkingDays              int     `json:"working_days"`
	ExpectedHoursPerEmployee float64 `json:"expected_hours_per_employee"`
	Underworking             int     `json:"underworking"`
	Overworking              int     `json:"overworking"`
	AverageHoursWorked       float64 `json:"average_hours_worked"`
}

func toProjectReportView(report *domain.ProjectWorkloadReport) ProjectReportView {
	rows := make([]ProjectReportRowView, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, ProjectReportRowView{
			Project:         *toProjectView(&row.Project),
			PlannedDays:     row.PlannedDays,
			Headcount:       row.Headcount,
			ExpectedHours:   row.ExpectedHours,
			ActualHours:     row.ActualHours,
			ProgressPercent: row.ProgressPercent,
		})
	}
	return ProjectReportView{
		Rows: rows,
		Summary: ProjectSummaryView{
			TotalProjects:     report.Summary.TotalProjects,
			ActiveProjects:    report.Summary.ActiveProjects,
			CompletedProjects: report.Summary.CompletedProjects,
			TotalActualHours:  report.Summary.TotalActualHours,
		},
	}
}

func toEmployeeReportView(report *domain.EmployeeHoursReport) EmployeeReportView {
	rows := make([]EmployeeReportRowView, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, EmployeeReportRowView{
			Employee:         *toEmployeeView(&row.Employee),
			TotalHoursWorked: row.TotalHoursWorked,
			ExpectedHours:    row.ExpectedHours,
			Deviation:        row.Deviation,
			DeviationPercent: row.DeviationPercent,
		})
	}
	return EmployeeReportView{
		From: report.Range.From.String(),
		To:   report.Range.To.String(),
		Rows: rows,
		Summary: EmployeeSummaryView{
			WorkingDays:              report.Summary.WorkingDays,
			ExpectedHoursPerEmployee: report.Summary.ExpectedHoursPerEmployee,
			Underworking:             report.Summary.Underworking,
			Overworking:              report.Summary.Overworking,
			AverageHoursWorked:       report.Summary.AverageHoursWorked,
		},
	}
}
