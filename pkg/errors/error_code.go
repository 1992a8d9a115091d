package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidWindow        ErrorCode = 102
	ErrCodeInvalidAggregation   ErrorCode = 103
	ErrCodeInvalidGraph         ErrorCode = 104
	ErrCodeInsufficientData     ErrorCode = 105

	// Not found errors (200-299)
	ErrCodeStrategyNotFound   ErrorCode = 200
	ErrCodeParamNotFound      ErrorCode = 201
	ErrCodeIndicatorNotFound  ErrorCode = 202
	ErrCodeInstrumentNotFound ErrorCode = 203
	ErrCodeTableNotFound      ErrorCode = 204
	ErrCodeNodeValueNotFound  ErrorCode = 205
	ErrCodeManifestNotFound   ErrorCode = 206

	// Calendar errors (300-399)
	ErrCodeNotATradingDay ErrorCode = 300
	ErrCodeRangeExceeded  ErrorCode = 301
	ErrCodeCalendarEmpty  ErrorCode = 302

	// Market data errors (400-499)
	ErrCodeIncompleteUpstreamData ErrorCode = 400
	ErrCodeMarketDataFetchFailed  ErrorCode = 401
	ErrCodeCacheQueryFailed       ErrorCode = 402
	ErrCodeCacheWriteFailed       ErrorCode = 403
	ErrCodeInvalidProvider        ErrorCode = 404

	// Evaluation errors (500-599)
	ErrCodeCellEvaluationFailure ErrorCode = 500
	ErrCodeIndicatorCalculation  ErrorCode = 501

	// Output errors (600-699)
	ErrCodeOutputWriteFailed ErrorCode = 600
	ErrCodeManifestVersion   ErrorCode = 601
)
