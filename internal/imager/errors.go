package imager

import "codeberg.org/mutker/irsampler/internal/errors"

const (
	ErrUnknownDevice  = errors.ErrorCode("imager_unknown_device")
	ErrUnsupported    = errors.ErrorCode("imager_unsupported_build")
	ErrNotInitialized = errors.ErrorCode("imager_not_initialized")
	ErrUSBInit        = errors.ErrorCode("imager_usb_init_failed")
	ErrImageSize      = errors.ErrorCode("imager_image_size_failed")
	ErrSerial         = errors.ErrorCode("imager_serial_failed")
	ErrShutterMode    = errors.ErrorCode("imager_shutter_mode_failed")
	ErrCaptureFailed  = errors.ErrorCode("imager_capture_failed")
	ErrTerminate      = errors.ErrorCode("imager_terminate_failed")

	ErrConfigRead  = errors.ErrReadConfig
	ErrConfigParse = errors.ErrorCode("imager_config_parse_failed")
)
