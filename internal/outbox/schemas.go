package outbox

const planChangedSchema = `{
  "type": "object",
  "title": "WorkloadPlanChanged",
  "properties": {
    "plan_id": {"type": "string"},
    "employee_id": {"type": "string"},
    "project_id": {"type": "string"},
    "manager_id": {"type": "string"},
    "date": {"type": "string", "format": "date"},
    "action": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["plan_id", "employee_id", "project_id", "manager_id", "date", "action", "occurred_at"],
  "additionalProperties": false
}`

const actualChangedSchema = `{
  "type": "object",
  "title": "WorkloadActualChanged",
  "properties": {
    "actual_id": {"type": "string"},
    "employee_id": {"type": "string"},
    "date": {"type": "string", "format": "date"},
    "hours_worked": {"type": "number"},
    "distributed_hours": {"type": "number"},
    "action": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["actual_id", "employee_id", "date", "hours_worked", "distributed_hours", "action", "occurred_at"],
  "additionalProperties": false
}`
