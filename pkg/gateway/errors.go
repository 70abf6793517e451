package gateway

import (
	"errors"
	"fmt"

	"github.com/picogrid/skyguard-c2/pkg/protocol"
)

// Transport operations named in TransportError
const (
	OpCreate  = "create"
	OpBind    = "bind"
	OpSend    = "send"
	OpReceive = "receive"
)

var (
	ErrNotInitialized = errors.New("gateway: channel not initialized")
	ErrShortWrite     = errors.New("gateway: short write")
	// ErrDatagramSize is a protocol error: the datagram is not a whole message
	ErrDatagramSize = fmt.Errorf("%w: unexpected datagram size", protocol.ErrProtocol)
)

// TransportError reports a socket-level failure
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
