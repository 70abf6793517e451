// Package protocol implements the fixed-size binary messages exchanged with the
// fire-control peer.
//
// Every message starts with a 6-byte header:
//
//	type:u8 | version:u8 | payload_len:u16 BE | checksum:u16 BE
//
// Integer fields are big-endian. Float fields are copied in host byte order, so
// both ends must share a float representation.
package protocol

import "fmt"

// MessageType is the first header byte
type MessageType uint8

const (
	TypeTargetAssignment MessageType = 1
	TypeEngagementStatus MessageType = 2
	// TypeSafetyInterlock and TypeHeartbeat are reserved and have no codec
	TypeSafetyInterlock MessageType = 3
	TypeHeartbeat       MessageType = 4
)

func (t MessageType) String() string {
	switch t {
	case TypeTargetAssignment:
		return "TARGET_ASSIGNMENT"
	case TypeEngagementStatus:
		return "ENGAGEMENT_STATUS"
	case TypeSafetyInterlock:
		return "SAFETY_INTERLOCK"
	case TypeHeartbeat:
		return "HEARTBEAT"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}

// Version is the only protocol version this codec speaks
const Version uint8 = 1

// Wire sizes in bytes
const (
	HeaderSize = 6

	TargetAssignmentPayloadSize = 37
	TargetAssignmentSize        = HeaderSize + TargetAssignmentPayloadSize

	EngagementStatusPayloadSize = 22
	EngagementStatusSize        = HeaderSize + EngagementStatusPayloadSize
)

// Header field offsets
const (
	offType       = 0
	offVersion    = 1
	offPayloadLen = 2
	offChecksum   = 4
)

// Header is the decoded common message header
type Header struct {
	Type       MessageType
	Version    uint8
	PayloadLen uint16
	Checksum   uint16
}

// TargetAssignment directs the peer to engage one track
type TargetAssignment struct {
	TargetID     uint32
	RangeM       float64
	AzimuthRad   float64
	ElevationRad float64
	VelocityMs   float64
	Priority     uint8
}

// EngagementStatus reports the peer's disposition toward a target
type EngagementStatus struct {
	TargetID      uint32
	State         uint8
	Firing        bool
	LeadAngleRad  float64
	TimeToImpactS float64
}
