package apperrors

type ErrorCode string

const (
	ErrCodeInternalError      ErrorCode = "internal_error"
	ErrCodeInvalidRequest     ErrorCode = "invalid_request"
	ErrCodeInvalidURLParam    ErrorCode = "invalid_url_param"
	ErrCodeMalformedBody      ErrorCode = "malformed_body"
	ErrCodeRateLimitExceeded  ErrorCode = "rate_limit_exceeded"
	ErrCodeRequestTooLarge    ErrorCode = "request_too_large"
	ErrCodeResourceNotFound   ErrorCode = "resource_not_found"
	ErrCodeUpstreamError      ErrorCode = "upstream_error"
	ErrCodeValidationFailed   ErrorCode = "validation_failed"
	ErrCodeUnsupportedLang    ErrorCode = "unsupported_language"
	ErrCodeConfigurationError ErrorCode = "configuration_error"
)
