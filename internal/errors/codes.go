package errors

const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrNotImplemented  ErrorCode = "not_implemented"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidSchedule ErrorCode = "invalid_schedule"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Lifecycle errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Device errors
	ErrDeviceFailure  ErrorCode = "device_failure"
	ErrSerialMismatch ErrorCode = "serial_mismatch"

	// Capture errors
	ErrDeadlineMissed ErrorCode = "deadline_missed"
	ErrFlushOverrun   ErrorCode = "flush_overrun"
	ErrSinkWrite      ErrorCode = "sink_write_failed"
	ErrTimeout        ErrorCode = "operation_timeout"

	// Metrics errors
	ErrInitMetrics    ErrorCode = "init_metrics_failed"
	ErrCollectMetrics ErrorCode = "collect_metrics_failed"
	ErrCloseMetrics   ErrorCode = "close_metrics_failed"
)

var errorMessages = map[ErrorCode]string{
	ErrInternal:        "Internal error occurred",
	ErrInvalidArgument: "Invalid argument provided",
	ErrNotImplemented:  "Operation not implemented",
	ErrInvalidConfig:   "Invalid configuration",
	ErrReadConfig:      "Failed to read configuration",
	ErrInvalidSchedule: "Invalid sampling schedule",
	ErrInvalidLogLevel: "Invalid log level",
	ErrInitFailed:      "Initialization failed",
	ErrShutdownFailed:  "Shutdown failed",
	ErrAlreadyRunning:  "Another instance is already running",
	ErrDeviceFailure:   "Imager device failure",
	ErrSerialMismatch:  "Imager serial number does not match configuration",
	ErrDeadlineMissed:  "Sampling deadline missed, reduce sampling rate or frame count",
	ErrFlushOverrun:    "I/O blocked a sample",
	ErrSinkWrite:       "Failed to write sample file",
	ErrTimeout:         "Operation timed out",
	ErrInitMetrics:     "Failed to initialize metrics",
	ErrCollectMetrics:  "Failed to collect metrics data",
	ErrCloseMetrics:    "Failed to close metrics connection",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
