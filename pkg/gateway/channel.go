// Package gateway carries protocol messages between the C2 node and the
// fire-control peer over UDP.
package gateway

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/picogrid/skyguard-c2/pkg/protocol"
)

// DefaultPollWindow bounds how long Receive waits for a pending datagram
const DefaultPollWindow = time.Millisecond

// receiveBufferSize is larger than any message so oversized datagrams are detected
const receiveBufferSize = 512

// Channel owns one send socket and one receive socket. It has no internal
// locking and must be driven by a single goroutine.
type Channel struct {
	sendHost   string
	pollWindow time.Duration

	sendConn *net.UDPConn
	recvConn *net.UDPConn

	sendBuf [protocol.TargetAssignmentSize]byte
	recvBuf [receiveBufferSize]byte
}

// Option customizes a Channel
type Option func(*Channel)

// WithSendHost changes the assignment destination host (default 127.0.0.1)
func WithSendHost(host string) Option {
	return func(c *Channel) {
		if host != "" {
			c.sendHost = host
		}
	}
}

// WithPollWindow changes how long Receive waits before reporting no message
func WithPollWindow(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.pollWindow = d
		}
	}
}

// New returns an uninitialized channel
func New(opts ...Option) *Channel {
	c := &Channel{
		sendHost:   "127.0.0.1",
		pollWindow: DefaultPollWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize opens the send socket toward sendHost:sendPort and binds the
// receive socket on recvPort across all interfaces. On failure the channel is
// left uninitialized. Calling it again replaces the existing sockets.
func (c *Channel) Initialize(sendPort, recvPort int) error {
	if c.IsInitialized() {
		_ = c.Shutdown()
	}

	raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(c.sendHost, strconv.Itoa(sendPort)))
	if err != nil {
		return &TransportError{Op: OpCreate, Err: err}
	}
	sendConn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return &TransportError{Op: OpCreate, Err: err}
	}

	recvConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: recvPort})
	if err != nil {
		sendConn.Close()
		return &TransportError{Op: OpBind, Err: err}
	}

	c.sendConn = sendConn
	c.recvConn = recvConn
	return nil
}

// IsInitialized reports whether both sockets are open
func (c *Channel) IsInitialized() bool {
	return c.sendConn != nil && c.recvConn != nil
}

// ReceiveAddr returns the bound receive address, or nil when uninitialized
func (c *Channel) ReceiveAddr() *net.UDPAddr {
	if c.recvConn == nil {
		return nil
	}
	addr, _ := c.recvConn.LocalAddr().(*net.UDPAddr)
	return addr
}

// SendAddr returns the assignment destination, or nil when uninitialized
func (c *Channel) SendAddr() *net.UDPAddr {
	if c.sendConn == nil {
		return nil
	}
	addr, _ := c.sendConn.RemoteAddr().(*net.UDPAddr)
	return addr
}

// Send transmits one assignment datagram. A partial write is a failure and is
// not retried.
func (c *Channel) Send(a protocol.TargetAssignment) error {
	if !c.IsInitialized() {
		return ErrNotInitialized
	}

	n, err := a.MarshalTo(c.sendBuf[:])
	if err != nil {
		return fmt.Errorf("serialize target assignment: %w", err)
	}

	written, err := c.sendConn.Write(c.sendBuf[:n])
	if err != nil {
		return &TransportError{Op: OpSend, Err: err}
	}
	if written != n {
		return &TransportError{Op: OpSend, Err: fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, written, n)}
	}
	return nil
}

// Receive makes one read attempt. ok is false with a nil error when no datagram
// is pending. At most one datagram is consumed per call.
func (c *Channel) Receive() (status protocol.EngagementStatus, ok bool, err error) {
	if !c.IsInitialized() {
		return status, false, ErrNotInitialized
	}

	if err := c.recvConn.SetReadDeadline(time.Now().Add(c.pollWindow)); err != nil {
		return status, false, &TransportError{Op: OpReceive, Err: err}
	}

	n, _, err := c.recvConn.ReadFromUDP(c.recvBuf[:])
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return status, false, nil
		}
		return status, false, &TransportError{Op: OpReceive, Err: err}
	}

	if n != protocol.EngagementStatusSize {
		return status, false, fmt.Errorf("%w: got %d bytes, want %d", ErrDatagramSize, n, protocol.EngagementStatusSize)
	}

	status, err = protocol.DecodeEngagementStatus(c.recvBuf[:n])
	if err != nil {
		return status, false, fmt.Errorf("decode engagement status: %w", err)
	}
	return status, true, nil
}

// Shutdown closes both sockets. It is safe to call more than once and on a
// channel that was never initialized.
func (c *Channel) Shutdown() error {
	var errs []error
	if c.sendConn != nil {
		if err := c.sendConn.Close(); err != nil {
			errs = append(errs, err)
		}
		c.sendConn = nil
	}
	if c.recvConn != nil {
		if err := c.recvConn.Close(); err != nil {
			errs = append(errs, err)
		}
		c.recvConn = nil
	}
	return errors.Join(errs...)
}
