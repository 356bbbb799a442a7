package archive

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"

	"codeberg.org/mutker/irsampler/internal/errors"
)

// EncodePlane packs an image plane as zlib-compressed little-endian uint16.
func EncodePlane(pix []uint16) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if err := binary.Write(zw, binary.LittleEndian, pix); err != nil {
		return nil, errors.New().Wrap(ErrEncodePlane, err)
	}
	if err := zw.Close(); err != nil {
		return nil, errors.New().Wrap(ErrEncodePlane, err)
	}

	return buf.Bytes(), nil
}

// DecodePlane reverses EncodePlane for a plane of n samples.
func DecodePlane(blob []byte, n int) ([]uint16, error) {
	errFactory := errors.New()

	zr, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, errFactory.Wrap(ErrDecodePlane, err)
	}
	defer zr.Close()

	pix := make([]uint16, n)
	if err := binary.Read(zr, binary.LittleEndian, pix); err != nil {
		return nil, errFactory.Wrap(ErrDecodePlane, err)
	}
	// Trailing data means n was wrong.
	if extra, _ := io.Copy(io.Discard, zr); extra != 0 {
		return nil, errFactory.WithData(ErrDecodePlane, struct {
			Samples    int
			ExtraBytes int64
		}{n, extra})
	}

	return pix, nil
}
