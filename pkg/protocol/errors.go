package protocol

import (
	"errors"
	"fmt"
)

// ErrProtocol classifies every codec rejection
var ErrProtocol = errors.New("protocol error")

var (
	ErrBufferTooSmall        = fmt.Errorf("%w: buffer too small", ErrProtocol)
	ErrChecksumMismatch      = fmt.Errorf("%w: checksum mismatch", ErrProtocol)
	ErrMessageTypeMismatch   = fmt.Errorf("%w: message type mismatch", ErrProtocol)
	ErrUnsupportedVersion    = fmt.Errorf("%w: unsupported version", ErrProtocol)
	ErrPayloadLengthMismatch = fmt.Errorf("%w: payload length mismatch", ErrProtocol)
)
