package archive

import "codeberg.org/mutker/irsampler/internal/errors"

const (
	ErrInvalidOptions    = errors.ErrInvalidConfig
	ErrOpenFailed        = errors.ErrorCode("archive_open_failed")
	ErrSchemaInitFailed  = errors.ErrorCode("archive_schema_init_failed")
	ErrSchemaMismatch    = errors.ErrorCode("archive_schema_mismatch")
	ErrTransactionFailed = errors.ErrorCode("archive_transaction_failed")
	ErrEncodePlane       = errors.ErrorCode("archive_encode_plane_failed")
	ErrDecodePlane       = errors.ErrorCode("archive_decode_plane_failed")
	ErrReadFailed        = errors.ErrorCode("archive_read_failed")
)
