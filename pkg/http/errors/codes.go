package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"
	ErrCodePayloadTooLarge  = "payload_too_large"

	// Package assembly errors
	ErrCodeTemplateInvalid  = "template_invalid"
	ErrCodeTemplateRequired = "template_required"
	ErrCodeAssemblyFailed   = "assembly_failed"

	// Import errors
	ErrCodeResultsInvalid   = "results_invalid"
	ErrCodeImportFailed     = "import_failed"
	ErrCodeImportNotFound   = "import_not_found"
	ErrCodeImportNotPending = "import_not_pending"
	ErrCodeInvalidImportID  = "invalid_import_id"
	ErrCodeInvalidDirective = "invalid_directive"
	ErrCodeResolutionFailed = "resolution_failed"

	// WebSocket errors
	ErrCodeUnknownMessageType = "unknown_message_type"
	ErrCodeInvalidPayload     = "invalid_payload"

	// Server errors
	ErrCodeInternalError = "internal_error"
	ErrCodeUpstreamError = "upstream_error"
)
