package log

import "registri/internal/core"

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldOperation   = "operation"
	FieldTenantID    = "tenant_id"
	FieldAccountID   = "account_id"
	FieldMovementID  = "movement_id"
	FieldAmountCents = "amount_cents"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldRows        = "rows"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentLedger  = "ledger"
	ComponentSession = "session"
	ComponentStorage = "storage"
	ComponentRemote  = "remote"
	ComponentAMQP    = "amqp"
	ComponentCache   = "cache"
	ComponentSheets  = "sheets"
	ComponentWorker  = "worker"
	ComponentBackend = "backend"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpTransfer = "transfer"
	OpRefresh  = "refresh"
	OpExport   = "export"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeLocked     = "locked_error"
	ErrorTypeTransport  = "transport_error"
	ErrorTypePartial    = "partial_transfer"
	ErrorTypeNotFound   = "not_found_error"
	ErrorTypeInternal   = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithScope adds the tenant. The credential is never logged.
func (f LogFields) WithScope(scope core.Scope) LogFields {
	f[FieldTenantID] = scope.TenantID
	return f
}

func (f LogFields) WithAccount(id string) LogFields {
	f[FieldAccountID] = id
	return f
}

func (f LogFields) WithMovement(id string) LogFields {
	if id != "" {
		f[FieldMovementID] = id
	}
	return f
}

func (f LogFields) WithAmount(m core.Money) LogFields {
	f[FieldAmountCents] = m.Cents
	return f
}

// WithError adds the error message and its category.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = ErrorType(err)
	}
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
