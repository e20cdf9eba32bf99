package domain

import "context"

// Project lifecycle states carried by the project directory.
const (
	ProjectStatusActive    = "active"
	ProjectStatusCompleted = "completed"
)

// EmployeeSummary is the directory view of an employee attached to plans,
// actuals, and report rows.
type EmployeeSummary struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Role      Role
}

// ProjectSummary is the directory view of a project.
type ProjectSummary struct {
	ID     string
	Name   string
	Status string
}

// EmployeeDirectory resolves employee ids. Get returns (nil, nil) when the
// employee does not exist.
type EmployeeDirectory interface {
	Get(ctx context.Context, id string) (*EmployeeSummary, error)
	ListByRole(ctx context.Context, roles ...Role) ([]EmployeeSummary, error)
}

// ProjectDirectory resolves project ids. Get returns (nil, nil) when the
// project does not exist.
type ProjectDirectory interface {
	Get(ctx context.Context, id string) (*ProjectSummary, error)
	List(ctx context.Context) ([]ProjectSummary, error)
}
