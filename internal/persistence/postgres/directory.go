package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/workload/internal/domain"
)

// EmployeeDirectory reads the externally managed employee records used to
// decorate results and drive the employee report.
type EmployeeDirectory struct {
	pool *pgxpool.Pool
}

// NewEmployeeDirectory constructs an EmployeeDirectory.
func NewEmployeeDirectory(pool *pgxpool.Pool) *EmployeeDirectory {
	return &EmployeeDirectory{pool: pool}
}

// Get resolves an employee id, or (nil, nil) when absent.
func (d *EmployeeDirectory) Get(ctx context.Context, id string) (*domain.EmployeeSummary, error) {
	const query = `SELECT employee_id, first_name, last_name, email, role FROM employees WHERE employee_id=$1`

	var summary domain.EmployeeSummary
	err := d.pool.QueryRow(ctx, query, id).Scan(&summary.ID, &summary.FirstName, &summary.LastName, &summary.Email, &summary.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

// ListByRole returns employees holding any of the given roles ordered by
// surname then given name.
func (d *EmployeeDirectory) ListByRole(ctx context.Context, roles ...domain.Role) ([]domain.EmployeeSummary, error) {
	const query = `SELECT employee_id, first_name, last_name, email, role FROM employees
        WHERE role = ANY($1) ORDER BY last_name, first_name`

	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}

	rows, err := d.pool.Query(ctx, query, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.EmployeeSummary
	for rows.Next() {
		var summary domain.EmployeeSummary
		if err := rows.Scan(&summary.ID, &summary.FirstName, &summary.LastName, &summary.Email, &summary.Role); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// ProjectDirectory reads the externally managed project records.
type ProjectDirectory struct {
	pool *pgxpool.Pool
}

// NewProjectDirectory constructs a ProjectDirectory.
func NewProjectDirectory(pool *pgxpool.Pool) *ProjectDirectory {
	return &ProjectDirectory{pool: pool}
}

// Get resolves a project id, or (nil, nil) when absent.
func (d *ProjectDirectory) Get(ctx context.Context, id string) (*domain.ProjectSummary, error) {
	const query = `SELECT project_id, name, status FROM projects WHERE project_id=$1`

	var summary domain.ProjectSummary
	err := d.pool.QueryRow(ctx, query, id).Scan(&summary.ID, &summary.Name, &summary.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

// List returns all projects ordered by name.
func (d *ProjectDirectory) List(ctx context.Context) ([]domain.ProjectSummary, error) {
	const query = `SELECT project_id, name, status FROM projects ORDER BY name`

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.ProjectSummary
	for rows.Next() {
		var summary domain.ProjectSummary
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.Status); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
