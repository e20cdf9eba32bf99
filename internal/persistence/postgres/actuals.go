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

const actualColumns = `actual_id, employee_id, work_date, hours_worked, note, created_at, updated_at`

const distributionColumns = `distribution_id, actual_id, project_id, hours, description`

// ActualRepository provides Postgres-backed persistence for workload
// actuals and their project distributions. The unique index on
// (employee_id, work_date) enforces the one-report-per-day invariant;
// distributions cascade on delete with their parent actual.
type ActualRepository struct {
	pool *pgxpool.Pool
}

// NewActualRepository constructs an ActualRepository.
func NewActualRepository(pool *pgxpool.Pool) *ActualRepository {
	return &ActualRepository{pool: pool}
}

// Create persists the actual together with its distributions and the
// change event in one transaction; a partially applied actual is never
// observable.
func (r *ActualRepository) Create(ctx context.Context, actual domain.Actual) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO workload_actuals (actual_id, employee_id, work_date, hours_worked, note, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err = tx.Exec(ctx, stmt,
		actual.ID,
		actual.EmployeeID,
		actual.Date.String(),
		actual.HoursWorked,
		nullIfEmpty(actual.Note),
		actual.CreatedAt,
		actual.UpdatedAt,
	)
	if err != nil {
		err = mapConflict(err, fmt.Sprintf("actual for employee %s on %s", actual.EmployeeID, actual.Date))
		return err
	}

	for _, dist := range actual.Distributions {
		if err = insertDistribution(ctx, tx, dist); err != nil {
			return err
		}
	}

	if err = r.insertActualEvent(ctx, tx, actual, events.ActionRecorded, actual.CreatedAt); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordActualPersisted(actual.UpdatedAt)
	return nil
}

// Get retrieves an actual with its distributions, or (nil, nil) when
// absent.
func (r *ActualRepository) Get(ctx context.Context, id string) (*domain.Actual, error) {
	const query = `SELECT ` + actualColumns + ` FROM workload_actuals WHERE actual_id=$1`
	return r.queryOne(ctx, query, id)
}

// FindByEmployeeAndDate retrieves the actual for (employee, date), or
// (nil, nil) when absent.
func (r *ActualRepository) FindByEmployeeAndDate(ctx context.Context, employeeID string, date calendar.Date) (*domain.Actual, error) {
	const query = `SELECT ` + actualColumns + ` FROM workload_actuals WHERE employee_id=$1 AND work_date=$2`
	return r.queryOne(ctx, query, employeeID, date.String())
}

// Update rewrites hours worked and the note and records the change event.
// The row is locked first; new hours below the distributed sum already on
// disk are rejected so a concurrent distribution insert cannot be
// undercut.
func (r *ActualRepository) Update(ctx context.Context, actual domain.Actual) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	current, err := r.lockActual(ctx, tx, actual.ID)
	if err != nil {
		return err
	}
	if distributed := current.DistributedHours(); actual.HoursWorked < distributed {
		err = fmt.Errorf("%w: hours worked %g below distributed hours %g", domain.ErrValidation, actual.HoursWorked, distributed)
		return err
	}

	const stmt = `UPDATE workload_actuals SET hours_worked=$2, note=$3, updated_at=$4 WHERE actual_id=$1`

	if _, err = tx.Exec(ctx, stmt, actual.ID, actual.HoursWorked, nullIfEmpty(actual.Note), actual.UpdatedAt); err != nil {
		return err
	}

	actual.Distributions = current.Distributions
	if err = r.insertActualEvent(ctx, tx, actual, events.ActionUpdated, actual.UpdatedAt); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordActualPersisted(actual.UpdatedAt)
	return nil
}

// Delete removes an actual; its distributions go with it via the cascade.
func (r *ActualRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	actual, err := r.lockActual(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM workload_actuals WHERE actual_id=$1`, id); err != nil {
		return err
	}

	if err = r.insertActualEvent(ctx, tx, *actual, events.ActionDeleted, time.Now().UTC()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AddDistribution appends a distribution to an existing actual. The parent
// row is locked for the duration of the insert so concurrent additions to
// the same actual serialize, and the hours budget is re-checked under that
// lock.
func (r *ActualRepository) AddDistribution(ctx context.Context, dist domain.Distribution) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	actual, err := r.lockActual(ctx, tx, dist.ActualID)
	if err != nil {
		return err
	}

	// The service pre-check reads an unlocked snapshot; this check under
	// the row lock is authoritative.
	if sum := actual.DistributedHours() + dist.Hours; sum > actual.HoursWorked {
		err = fmt.Errorf("%w: distributed hours %g would exceed hours worked %g", domain.ErrValidation, sum, actual.HoursWorked)
		return err
	}

	if err = insertDistribution(ctx, tx, dist); err != nil {
		return err
	}

	actual.Distributions = append(actual.Distributions, dist)
	if err = r.insertActualEvent(ctx, tx, *actual, events.ActionUpdated, time.Now().UTC()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RemoveDistribution deletes one distribution by id.
func (r *ActualRepository) RemoveDistribution(ctx context.Context, id string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	// Lock the parent before touching the child so concurrent distribution
	// writes against one actual always acquire locks in the same order.
	var actualID string
	err = tx.QueryRow(ctx, `SELECT actual_id FROM project_distributions WHERE distribution_id=$1`, id).Scan(&actualID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = fmt.Errorf("%w: distribution %s", domain.ErrNotFound, id)
		}
		return err
	}

	actual, err := r.lockActual(ctx, tx, actualID)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM project_distributions WHERE distribution_id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = fmt.Errorf("%w: distribution %s", domain.ErrNotFound, id)
		return err
	}

	remaining := actual.Distributions[:0]
	for _, dist := range actual.Distributions {
		if dist.ID != id {
			remaining = append(remaining, dist)
		}
	}
	actual.Distributions = remaining
	if err = r.insertActualEvent(ctx, tx, *actual, events.ActionUpdated, time.Now().UTC()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListForEmployee returns an employee's actuals in the range ordered by
// date ascending.
func (r *ActualRepository) ListForEmployee(ctx context.Context, employeeID string, rng calendar.Range) ([]domain.Actual, error) {
	const query = `SELECT ` + actualColumns + ` FROM workload_actuals
        WHERE employee_id=$1 AND work_date BETWEEN $2 AND $3
        ORDER BY work_date ASC`

	rows, err := r.pool.Query(ctx, query, employeeID, rng.From.String(), rng.To.String())
	if err != nil {
		return nil, err
	}
	actuals, err := collectActuals(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachDistributions(ctx, actuals); err != nil {
		return nil, err
	}
	return actuals, nil
}

// List returns actuals matching the filter ordered by (work_date, id)
// descending with cursor pagination.
func (r *ActualRepository) List(ctx context.Context, filter domain.ActualFilter, cursor *domain.Cursor, limit int) ([]domain.Actual, *domain.Cursor, error) {
	query := `SELECT ` + actualColumns + ` FROM workload_actuals WHERE 1=1`
	args := []interface{}{}

	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		query += fmt.Sprintf(` AND employee_id=$%d`, len(args))
	}
	if filter.Range != nil {
		args = append(args, filter.Range.From.String(), filter.Range.To.String())
		query += fmt.Sprintf(` AND work_date BETWEEN $%d AND $%d`, len(args)-1, len(args))
	}
	if cursor != nil {
		args = append(args, cursor.Date.String(), cursor.ID)
		query += fmt.Sprintf(` AND (work_date, actual_id) < ($%d, $%d)`, len(args)-1, len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY work_date DESC, actual_id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	actuals, err := collectActuals(rows)
	if err != nil {
		return nil, nil, err
	}
	if err := r.attachDistributions(ctx, actuals); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(actuals) == limit {
		last := actuals[len(actuals)-1]
		next = &domain.Cursor{Date: last.Date, ID: last.ID}
	}
	return actuals, next, nil
}

func (r *ActualRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*domain.Actual, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	actual, err := scanActual(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	actuals := []domain.Actual{*actual}
	if err := r.attachDistributions(ctx, actuals); err != nil {
		return nil, err
	}
	return &actuals[0], nil
}

// lockActual fetches the actual with its distributions under FOR UPDATE of
// the parent row.
func (r *ActualRepository) lockActual(ctx context.Context, tx pgx.Tx, id string) (*domain.Actual, error) {
	const query = `SELECT ` + actualColumns + ` FROM workload_actuals WHERE actual_id=$1 FOR UPDATE`
	row := tx.QueryRow(ctx, query, id)
	actual, err := scanActual(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: actual %s", domain.ErrNotFound, id)
		}
		return nil, err
	}

	rows, err := tx.Query(ctx, `SELECT `+distributionColumns+` FROM project_distributions WHERE actual_id=$1 ORDER BY distribution_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var dist domain.Distribution
		var description *string
		if err := rows.Scan(&dist.ID, &dist.ActualID, &dist.ProjectID, &dist.Hours, &description); err != nil {
			return nil, err
		}
		if description != nil {
			dist.Description = *description
		}
		actual.Distributions = append(actual.Distributions, dist)
	}
	return actual, rows.Err()
}

// attachDistributions loads the distributions for the given actuals in one
// query.
func (r *ActualRepository) attachDistributions(ctx context.Context, actuals []domain.Actual) error {
	if len(actuals) == 0 {
		return nil
	}

	ids := make([]string, 0, len(actuals))
	index := make(map[string]int, len(actuals))
	for i := range actuals {
		ids = append(ids, actuals[i].ID)
		index[actuals[i].ID] = i
	}

	const query = `SELECT ` + distributionColumns + ` FROM project_distributions
        WHERE actual_id = ANY($1) ORDER BY distribution_id`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var dist domain.Distribution
		var description *string
		if err := rows.Scan(&dist.ID, &dist.ActualID, &dist.ProjectID, &dist.Hours, &description); err != nil {
			return err
		}
		if description != nil {
			dist.Description = *description
		}
		i := index[dist.ActualID]
		actuals[i].Distributions = append(actuals[i].Distributions, dist)
	}
	return rows.Err()
}

func (r *ActualRepository) insertActualEvent(ctx context.Context, tx pgx.Tx, actual domain.Actual, action string, occurredAt time.Time) error {
	payload := events.ActualChanged{
		ActualID:         actual.ID,
		EmployeeID:       actual.EmployeeID,
		Date:             actual.Date.String(),
		HoursWorked:      actual.HoursWorked,
		DistributedHours: actual.DistributedHours(),
		Action:           action,
		OccurredAt:       occurredAt,
	}
	dedupeKey := fmt.Sprintf("%s:%s:%d", actual.ID, action, occurredAt.UnixNano())
	return insertOutbox(ctx, tx, "workload_actual", actual.ID, "workload.actual_changed", actual.EmployeeID, dedupeKey, payload)
}

func insertDistribution(ctx context.Context, tx pgx.Tx, dist domain.Distribution) error {
	const stmt = `INSERT INTO project_distributions (distribution_id, actual_id, project_id, hours, description)
        VALUES ($1,$2,$3,$4,$5)`
	_, err := tx.Exec(ctx, stmt, dist.ID, dist.ActualID, dist.ProjectID, dist.Hours, nullIfEmpty(dist.Description))
	return err
}

func collectActuals(rows pgx.Rows) ([]domain.Actual, error) {
	defer rows.Close()
	var actuals []domain.Actual
	for rows.Next() {
		actual, err := scanActual(rows)
		if err != nil {
			return nil, err
		}
		actuals = append(actuals, *actual)
	}
	return actuals, rows.Err()
}

func scanActual(row pgx.Row) (*domain.Actual, error) {
	var actual domain.Actual
	var date time.Time
	var note *string
	if err := row.Scan(&actual.ID, &actual.EmployeeID, &date, &actual.HoursWorked, &note, &actual.CreatedAt, &actual.UpdatedAt); err != nil {
		return nil, err
	}
	actual.Date = calendar.DateOf(date, time.UTC)
	if note != nil {
		actual.Note = *note
	}
	return &actual, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
