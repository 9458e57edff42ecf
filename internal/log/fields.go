package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"

	FieldGroupID      = "group_id"
	FieldMemberID     = "member_id"
	FieldExpenseID    = "expense_id"
	FieldSettlementID = "settlement_id"
	FieldAmountCents  = "amount_cents"
	FieldChangeKind   = "change_kind"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentNotify    = "notify"
	ComponentRateLimit = "rate_limit"
)
