package protocol

import (
	"errors"

	"github.com/danmuck/imagedb/internal/protocol/frame"
)

var (
	ErrUnknownExtension   = errors.New("protocol: unknown image extension")
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")
	ErrInvalidVersion     = errors.New("protocol: version does not fit 4 bits")
	ErrNameTooLong        = errors.New("protocol: image name too long")
	ErrPayloadTooLarge    = errors.New("protocol: payload too large")
	ErrInvalidFileName    = errors.New("protocol: invalid image file name")

	// ErrTruncated is shared with frame so receive and parse paths report
	// short packets the same way.
	ErrTruncated = frame.ErrTruncated
)
