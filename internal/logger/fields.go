package logger

// Fields is a set of structured log fields.
type Fields map[string]interface{}

// Tracing fields, propagated through ctx.
const (
	FieldRequestID = "request_id"
	FieldRunID     = "run_id"
	FieldIdeaID    = "idea_id"
	FieldComponent = "component"
	FieldPlatform  = "platform"
)

// Metric fields, attached per entry for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
	FieldScore      = "score"
	FieldThreshold  = "threshold"
)
