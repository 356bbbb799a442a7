//go:build !irimager || !cgo

package imager

import "codeberg.org/mutker/irsampler/internal/errors"

// NewLibIRImager fails in builds without the vendor SDK; build with
// -tags irimager and cgo enabled.
func NewLibIRImager() (Device, error) {
	return nil, errors.New().WithMessage(ErrUnsupported, "built without libirimager support (use -tags irimager)")
}
