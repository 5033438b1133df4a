package codec

import (
	"errors"

	"playcast/internal/core/domain"
	apperrors "playcast/pkg/errors"
)

// CodeFor maps a decode error onto its error code for logs and
// counters. Errors outside the codec's vocabulary classify as plain
// invalid input.
func CodeFor(err error) apperrors.ErrorCode {
	switch {
	case errors.Is(err, domain.ErrMalformedPacket):
		return apperrors.ErrCodeMalformedPacket
	case errors.Is(err, domain.ErrUnknownCommand):
		return apperrors.ErrCodeUnknownCommand
	default:
		return apperrors.ErrCodeInvalidInput
	}
}
