package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/workload/internal/calendar"
	"example.com/workload/internal/domain"
)

// AnalyticsRepository reads the raw aggregates behind the reconciliation
// reports. Queries run outside any transaction; report reads tolerate
// writes in flight.
type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository constructs an AnalyticsRepository.
func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

// ProjectPlanFacts returns, per project, the count of distinct planned
// dates and distinct planned employees. A nil range covers all time.
func (r *AnalyticsRepository) ProjectPlanFacts(ctx context.Context, rng *calendar.Range) ([]domain.ProjectPlanFacts, error) {
	query := `SELECT project_id, COUNT(DISTINCT plan_date), COUNT(DISTINCT employee_id)
        FROM workload_plans`
	args := []interface{}{}
	if rng != nil {
		args = append(args, rng.From.String(), rng.To.String())
		query += ` WHERE plan_date BETWEEN $1 AND $2`
	}
	query += ` GROUP BY project_id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []domain.ProjectPlanFacts
	for rows.Next() {
		var f domain.ProjectPlanFacts
		if err := rows.Scan(&f.ProjectID, &f.PlannedDays, &f.Headcount); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// ProjectActualHours returns, per project, the full-precision sum of
// distribution hours attributed to it. A nil range covers all time.
func (r *AnalyticsRepository) ProjectActualHours(ctx context.Context, rng *calendar.Range) (map[string]float64, error) {
	query := `SELECT d.project_id, SUM(d.hours)
        FROM project_distributions d
        JOIN workload_actuals a ON a.actual_id = d.actual_id`
	args := []interface{}{}
	if rng != nil {
		args = append(args, rng.From.String(), rng.To.String())
		query += ` WHERE a.work_date BETWEEN $1 AND $2`
	}
	query += ` GROUP BY d.project_id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hours := make(map[string]float64)
	for rows.Next() {
		var projectID string
		var sum float64
		if err := rows.Scan(&projectID, &sum); err != nil {
			return nil, err
		}
		hours[projectID] = sum
	}
	return hours, rows.Err()
}

// EmployeeWorkedHours returns, per employee, the full-precision sum of
// reported hours inside the range.
func (r *AnalyticsRepository) EmployeeWorkedHours(ctx context.Context, rng calendar.Range) (map[string]float64, error) {
	const query = `SELECT employee_id, SUM(hours_worked)
        FROM workload_actuals
        WHERE work_date BETWEEN $1 AND $2
        GROUP BY employee_id`

	rows, err := r.pool.Query(ctx, query, rng.From.String(), rng.To.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hours := make(map[string]float64)
	for rows.Next() {
		var employeeID string
		var sum float64
		if err := rows.Scan(&employeeID, &sum); err != nil {
			return nil, err
		}
		hours[employeeID] = sum
	}
	return hours, rows.Err()
}
