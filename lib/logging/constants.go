package logging

// Common log field keys used throughout the application
const (
	FieldCount        = "count"
	FieldError        = "error"
	FieldField        = "field"
	FieldGroup        = "group"
	FieldIdentifier   = "identifier"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldResourceID   = "resource_id"
	FieldResourceType = "resource_type"
	FieldRole         = "role"
	FieldStatusCode   = "status_code"
	FieldSubject      = "subject"
	FieldUrl          = "url"
)
