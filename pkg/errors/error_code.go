package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeInvalidStopLoss      ErrorCode = 103
	ErrCodeInsufficientData     ErrorCode = 104
	ErrCodeInvalidPeriod        ErrorCode = 105
	ErrCodeInvalidTimeframe     ErrorCode = 106
	ErrCodeInvalidSide          ErrorCode = 107

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeSeriesMisaligned      ErrorCode = 203

	// Indicator errors (300-399)
	ErrCodeIndicatorNotFound    ErrorCode = 300
	ErrCodeIndicatorCalculation ErrorCode = 301

	// Strategy errors (400-499)
	ErrCodeStrategyConfigError  ErrorCode = 400
	ErrCodeStrategyRuntimeError ErrorCode = 401
	ErrCodeUnsupportedStrategy  ErrorCode = 402

	// Trading errors (500-599)
	ErrCodeOrderFailed        ErrorCode = 500
	ErrCodePositionNotFound   ErrorCode = 501
	ErrCodeVenueUnavailable   ErrorCode = 502
	ErrCodeInsufficientFunds  ErrorCode = 503
	ErrCodeDuplicatePosition  ErrorCode = 504
	ErrCodeMarketDataMissing  ErrorCode = 505
	ErrCodeOrderNotCancelable ErrorCode = 506

	// Backtest errors (600-699)
	ErrCodeBacktestConfigError ErrorCode = 600
	ErrCodeBacktestNoData      ErrorCode = 601
	ErrCodeBacktestWindowError ErrorCode = 602

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataParseFailed ErrorCode = 701
	ErrCodeStreamClosed          ErrorCode = 702
)
