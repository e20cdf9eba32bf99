package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/workload/internal/calendar"
	"example.com/workload/internal/domain"
	"example.com/workload/internal/events"
	"example.com/workload/internal/observability"
)

const planColumns = `plan_id, employee_id, project_id, created_by, plan_date, created_at, updated_at`

// PlanRepository provides Postgres-backed persistence for workload plans.
// The unique index on (employee_id, plan_date) enforces the one-plan-per-
// day invariant under concurrent writers.
type PlanRepository struct {
	pool *pgxpool.Pool
}

// NewPlanRepository constructs a PlanRepository.
func NewPlanRepository(pool *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{pool: pool}
}

// Create persists the plan and records the change event inside a single
// transaction.
func (r *PlanRepository) Create(ctx context.Context, plan domain.Plan) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO workload_plans (plan_id, employee_id, project_id, created_by, plan_date, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err = tx.Exec(ctx, stmt,
		plan.ID,
		plan.EmployeeID,
		plan.ProjectID,
		plan.CreatedBy,
		plan.Date.String(),
		plan.CreatedAt,
		plan.UpdatedAt,
	)
	if err != nil {
		err = mapConflict(err, fmt.Sprintf("plan for employee %s on %s", plan.EmployeeID, plan.Date))
		return err
	}

	if err = r.insertPlanEvent(ctx, tx, plan, events.ActionCreated, plan.CreatedAt); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordPlanPersisted(plan.UpdatedAt)
	return nil
}

// Get retrieves a plan by id, or (nil, nil) when absent.
func (r *PlanRepository) Get(ctx context.Context, id string) (*domain.Plan, error) {
	const query = `SELECT ` + planColumns + ` FROM workload_plans WHERE plan_id=$1`
	return r.queryOne(ctx, query, id)
}

// FindByEmployeeAndDate retrieves the plan for (employee, date), or
// (nil, nil) when absent.
func (r *PlanRepository) FindByEmployeeAndDate(ctx context.Context, employeeID string, date calendar.Date) (*domain.Plan, error) {
	const query = `SELECT ` + planColumns + ` FROM workload_plans WHERE employee_id=$1 AND plan_date=$2`
	return r.queryOne(ctx, query, employeeID, date.String())
}

// Update rewrites the plan's project and date and records the change
// event. A move onto an occupied (employee, date) surfaces as a conflict.
func (r *PlanRepository) Update(ctx context.Context, plan domain.Plan) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `UPDATE workload_plans SET project_id=$2, plan_date=$3, updated_at=$4 WHERE plan_id=$1`

	tag, err := tx.Exec(ctx, stmt, plan.ID, plan.ProjectID, plan.Date.String(), plan.UpdatedAt)
	if err != nil {
		err = mapConflict(err, fmt.Sprintf("plan for employee %s on %s", plan.EmployeeID, plan.Date))
		return err
	}
	if tag.RowsAffected() == 0 {
		err = fmt.Errorf("%w: plan %s", domain.ErrNotFound, plan.ID)
		return err
	}

	if err = r.insertPlanEvent(ctx, tx, plan, events.ActionUpdated, plan.UpdatedAt); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordPlanPersisted(plan.UpdatedAt)
	return nil
}

// Delete removes a plan and records the change event.
func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const query = `SELECT ` + planColumns + ` FROM workload_plans WHERE plan_id=$1 FOR UPDATE`
	row := tx.QueryRow(ctx, query, id)
	plan, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = fmt.Errorf("%w: plan %s", domain.ErrNotFound, id)
		}
		return err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM workload_plans WHERE plan_id=$1`, id); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err = r.insertPlanEvent(ctx, tx, *plan, events.ActionDeleted, now); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// List returns plans matching the filter ordered by date ascending.
func (r *PlanRepository) List(ctx context.Context, filter domain.PlanFilter) ([]domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM workload_plans WHERE 1=1`
	args := []interface{}{}

	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		query += fmt.Sprintf(` AND employee_id=$%d`, len(args))
	}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		query += fmt.Sprintf(` AND project_id=$%d`, len(args))
	}
	if filter.Range != nil {
		args = append(args, filter.Range.From.String(), filter.Range.To.String())
		query += fmt.Sprintf(` AND plan_date BETWEEN $%d AND $%d`, len(args)-1, len(args))
	}

	query += ` ORDER BY plan_date ASC, created_at ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

func (r *PlanRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*domain.Plan, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	plan, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return plan, nil
}

func (r *PlanRepository) insertPlanEvent(ctx context.Context, tx pgx.Tx, plan domain.Plan, action string, occurredAt time.Time) error {
	payload := events.PlanChanged{
		PlanID:     plan.ID,
		EmployeeID: plan.EmployeeID,
		ProjectID:  plan.ProjectID,
		ManagerID:  plan.CreatedBy,
		Date:       plan.Date.String(),
		Action:     action,
		OccurredAt: occurredAt,
	}
	dedupeKey := fmt.Sprintf("%s:%s:%d", plan.ID, action, occurredAt.UnixNano())
	return insertOutbox(ctx, tx, "workload_plan", plan.ID, "workload.plan_changed", plan.EmployeeID, dedupeKey, payload)
}

func scanPlan(row pgx.Row) (*domain.Plan, error) {
	var plan domain.Plan
	var date time.Time
	if err := row.Scan(&plan.ID, &plan.EmployeeID, &plan.ProjectID, &plan.CreatedBy, &date, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
		return nil, err
	}
	plan.Date = calendar.DateOf(date, time.UTC)
	return &plan, nil
}
