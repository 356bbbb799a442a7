package hostprobe

import (
	"codeberg.org/mutker/irsampler/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	ErrUnknownKind    = errors.ErrorCode("hostprobe_unknown_kind")
	ErrNotInitialized = errors.ErrorCode("hostprobe_not_initialized")
	ErrInitFailed     = errors.ErrorCode("hostprobe_init_failed")
	ErrShutdownFailed = errors.ErrorCode("hostprobe_shutdown_failed")
	ErrDeviceNotFound = errors.ErrorCode("hostprobe_device_not_found")
	ErrReadFailed     = errors.ErrorCode("hostprobe_read_failed")
	ErrParseFailed    = errors.ErrorCode("hostprobe_parse_failed")
)

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

// IsNVMLSuccess checks if a Return value indicates success
func IsNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}
