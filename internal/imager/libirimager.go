//go:build irimager && cgo

package imager

/*
#cgo LDFLAGS: -lirdirectsdk
#include <stdlib.h>

typedef struct {
	unsigned int counter;
	unsigned int counterHW;
	long long timestamp;
	long long timestampMedia;
	unsigned int flagState;
	float tempChip;
	float tempFlag;
	float tempBox;
} EvoIRFrameMetadata;

int evo_irimager_usb_init(const char* xml_config, const char* formats_def, const char* log_file);
int evo_irimager_terminate(void);
int evo_irimager_get_serial(unsigned long* serial);
int evo_irimager_get_thermal_image_size(int* w, int* h);
int evo_irimager_get_thermal_image_metadata(int* w, int* h, unsigned short* data, EvoIRFrameMetadata* meta);
int evo_irimager_set_shutter_mode(int mode);
int evo_irimager_trigger_shutter_flag(void);
*/
import "C"

import (
	"context"
	"sync"
	"unsafe"

	"codeberg.org/mutker/irsampler/internal/burst"
	"codeberg.org/mutker/irsampler/internal/errors"
)

// The vendor library keeps a single global connection.
var libMu sync.Mutex

type libIRImager struct {
	initialized bool
}

// NewLibIRImager returns a Device backed by the vendor direct SDK.
func NewLibIRImager() (Device, error) {
	return &libIRImager{}, nil
}

func callError(code errors.ErrorCode, fn string, ret C.int) error {
	return errors.New().WithData(code, struct {
		Call   string
		Status int
	}{fn, int(ret)})
}

func (d *libIRImager) Init(configPath string) error {
	libMu.Lock()
	defer libMu.Unlock()

	path := C.CString(configPath)
	defer C.free(unsafe.Pointer(path))

	if ret := C.evo_irimager_usb_init(path, nil, nil); ret != 0 {
		return callError(ErrUSBInit, "evo_irimager_usb_init", ret)
	}
	d.initialized = true

	return nil
}

func (d *libIRImager) ThermalImageSize() (int, int, error) {
	libMu.Lock()
	defer libMu.Unlock()

	if !d.initialized {
		return 0, 0, errors.New().New(ErrNotInitialized)
	}

	var w, h C.int
	if ret := C.evo_irimager_get_thermal_image_size(&w, &h); ret != 0 {
		return 0, 0, callError(ErrImageSize, "evo_irimager_get_thermal_image_size", ret)
	}

	return int(w), int(h), nil
}

func (d *libIRImager) Serial() (int, error) {
	libMu.Lock()
	defer libMu.Unlock()

	if !d.initialized {
		return 0, errors.New().New(ErrNotInitialized)
	}

	var serial C.ulong
	if ret := C.evo_irimager_get_serial(&serial); ret != 0 {
		return 0, callError(ErrSerial, "evo_irimager_get_serial", ret)
	}

	return int(serial), nil
}

func (d *libIRImager) SetShutterMode(mode ShutterMode) error {
	libMu.Lock()
	defer libMu.Unlock()

	if !d.initialized {
		return errors.New().New(ErrNotInitialized)
	}
	if ret := C.evo_irimager_set_shutter_mode(C.int(mode)); ret != 0 {
		return callError(ErrShutterMode, "evo_irimager_set_shutter_mode", ret)
	}

	return nil
}

func (d *libIRImager) TriggerShutter() (int, error) {
	libMu.Lock()
	defer libMu.Unlock()

	if !d.initialized {
		return 0, errors.New().New(ErrNotInitialized)
	}

	return int(C.evo_irimager_trigger_shutter_flag()), nil
}

// Capture blocks in the vendor library until the next frame is available.
func (d *libIRImager) Capture(ctx context.Context, width, height int) (burst.Frame, burst.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return burst.Frame{}, burst.Metadata{}, err
	}

	libMu.Lock()
	defer libMu.Unlock()

	if !d.initialized {
		return burst.Frame{}, burst.Metadata{}, errors.New().New(ErrNotInitialized)
	}

	frame := burst.NewFrame(width, height)
	if len(frame.Pix) == 0 {
		return burst.Frame{}, burst.Metadata{}, errors.New().WithData(ErrImageSize, struct {
			Width  int
			Height int
		}{width, height})
	}
	w, h := C.int(width), C.int(height)
	var meta C.EvoIRFrameMetadata

	ret := C.evo_irimager_get_thermal_image_metadata(&w, &h, (*C.ushort)(unsafe.Pointer(&frame.Pix[0])), &meta)
	if ret != 0 {
		return burst.Frame{}, burst.Metadata{}, callError(ErrCaptureFailed, "evo_irimager_get_thermal_image_metadata", ret)
	}

	return frame, burst.Metadata{
		Counter:        uint32(meta.counter),
		CounterHW:      uint32(meta.counterHW),
		Timestamp:      int64(meta.timestamp),
		TimestampMedia: int64(meta.timestampMedia),
		FlagState:      uint32(meta.flagState),
		TempChip:       float32(meta.tempChip),
		TempFlag:       float32(meta.tempFlag),
		TempBox:        float32(meta.tempBox),
	}, nil
}

func (d *libIRImager) Terminate() error {
	libMu.Lock()
	defer libMu.Unlock()

	d.initialized = false
	if ret := C.evo_irimager_terminate(); ret != 0 {
		return callError(ErrTerminate, "evo_irimager_terminate", ret)
	}

	return nil
}
