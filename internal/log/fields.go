package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"

	FieldOwner  = "owner"
	FieldMonth  = "month"
	FieldItemID = "item_id"
	FieldDebtID = "debt_id"
	FieldScope  = "scope"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentStorage = "storage"
	ComponentWorker  = "worker"
	ComponentTrace   = "trace"
)
