package logger

// Standard field names for consistent logging.
const (
	FieldService   = "service"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldUserID    = "user_id"
	FieldPhone     = "phone"
	FieldJID       = "jid"
	FieldState     = "state"
	FieldCause     = "cause"
)
