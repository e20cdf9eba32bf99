// Package events defines the payloads published for downstream consumers.
package events

import "time"

// Actions carried on change events.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionRecorded = "recorded"
)

// PlanChanged is emitted whenever a workload plan is created, updated, or
// deleted.
type PlanChanged struct {
	PlanID     string    `json:"plan_id"`
	EmployeeID string    `json:"employee_id"`
	ProjectID  string    `json:"project_id"`
	ManagerID  string    `json:"manager_id"`
	Date       string    `json:"date"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActualChanged is emitted whenever a workload actual or its distributions
// change.
type ActualChanged struct {
	ActualID         string    `json:"actual_id"`
	EmployeeID       string    `json:"employee_id"`
	Date             string    `json:"date"`
	HoursWorked      float64   `json:"hours_worked"`
	DistributedHours float64   `json:"distributed_hours"`
	Action           string    `json:"action"`
	OccurredAt       time.Time `json:"occurred_at"`
}
