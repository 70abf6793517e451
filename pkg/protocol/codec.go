package protocol

import (
	"encoding/binary"
	"math"
)

// Peek returns the message type of an encoded message without validating it
func Peek(buf []byte) (MessageType, error) {
	if len(buf) < HeaderSize {
		return 0, ErrBufferTooSmall
	}
	return MessageType(buf[offType]), nil
}

// DecodeHeader reads the common header from buf
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrBufferTooSmall
	}
	return Header{
		Type:       MessageType(buf[offType]),
		Version:    buf[offVersion],
		PayloadLen: binary.BigEndian.Uint16(buf[offPayloadLen:]),
		Checksum:   binary.BigEndian.Uint16(buf[offChecksum:]),
	}, nil
}

func putHeader(buf []byte, t MessageType, payloadLen int) {
	buf[offType] = byte(t)
	buf[offVersion] = Version
	binary.BigEndian.PutUint16(buf[offPayloadLen:], uint16(payloadLen))
	binary.BigEndian.PutUint16(buf[offChecksum:], 0)
}

func sealChecksum(msg []byte) {
	binary.BigEndian.PutUint16(msg[offChecksum:], Checksum(msg))
}

// verify checks a fixed-size message in order: size, checksum, type, version,
// payload length. It returns the message trimmed to size.
func verify(buf []byte, want MessageType, size int) ([]byte, error) {
	if len(buf) < size {
		return nil, ErrBufferTooSmall
	}
	msg := buf[:size]
	h, _ := DecodeHeader(msg)
	if Checksum(msg) != h.Checksum {
		return nil, ErrChecksumMismatch
	}
	if h.Type != want {
		return nil, ErrMessageTypeMismatch
	}
	if h.Version != Version {
		return nil, ErrUnsupportedVersion
	}
	if int(h.PayloadLen) != size-HeaderSize {
		return nil, ErrPayloadLengthMismatch
	}
	return msg, nil
}

func putFloat64(buf []byte, v float64) {
	binary.NativeEndian.PutUint64(buf, math.Float64bits(v))
}

func float64At(buf []byte) float64 {
	return math.Float64frombits(binary.NativeEndian.Uint64(buf))
}

// MarshalTo writes the assignment into buf and returns the bytes written
func (a TargetAssignment) MarshalTo(buf []byte) (int, error) {
	if len(buf) < TargetAssignmentSize {
		return 0, ErrBufferTooSmall
	}
	msg := buf[:TargetAssignmentSize]
	putHeader(msg, TypeTargetAssignment, TargetAssignmentPayloadSize)

	p := msg[HeaderSize:]
	binary.BigEndian.PutUint32(p[0:], a.TargetID)
	putFloat64(p[4:], a.RangeM)
	putFloat64(p[12:], a.AzimuthRad)
	putFloat64(p[20:], a.ElevationRad)
	putFloat64(p[28:], a.VelocityMs)
	p[36] = a.Priority

	sealChecksum(msg)
	return TargetAssignmentSize, nil
}

// MarshalBinary implements encoding.BinaryMarshaler
func (a TargetAssignment) MarshalBinary() ([]byte, error) {
	buf := make([]byte, TargetAssignmentSize)
	if _, err := a.MarshalTo(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (a *TargetAssignment) UnmarshalBinary(data []byte) error {
	msg, err := verify(data, TypeTargetAssignment, TargetAssignmentSize)
	if err != nil {
		return err
	}

	p := msg[HeaderSize:]
	*a = TargetAssignment{
		TargetID:     binary.BigEndian.Uint32(p[0:]),
		RangeM:       float64At(p[4:]),
		AzimuthRad:   float64At(p[12:]),
		ElevationRad: float64At(p[20:]),
		VelocityMs:   float64At(p[28:]),
		Priority:     p[36],
	}
	return nil
}

// DecodeTargetAssignment parses a TargetAssignment from buf
func DecodeTargetAssignment(buf []byte) (TargetAssignment, error) {
	var a TargetAssignment
	err := a.UnmarshalBinary(buf)
	return a, err
}

// MarshalTo writes the status into buf and returns the bytes written
func (s EngagementStatus) MarshalTo(buf []byte) (int, error) {
	if len(buf) < EngagementStatusSize {
		return 0, ErrBufferTooSmall
	}
	msg := buf[:EngagementStatusSize]
	putHeader(msg, TypeEngagementStatus, EngagementStatusPayloadSize)

	p := msg[HeaderSize:]
	binary.BigEndian.PutUint32(p[0:], s.TargetID)
	p[4] = s.State
	p[5] = 0
	if s.Firing {
		p[5] = 1
	}
	putFloat64(p[6:], s.LeadAngleRad)
	putFloat64(p[14:], s.TimeToImpactS)

	sealChecksum(msg)
	return EngagementStatusSize, nil
}

// MarshalBinary implements encoding.BinaryMarshaler
func (s EngagementStatus) MarshalBinary() ([]byte, error) {
	buf := make([]byte, EngagementStatusSize)
	if _, err := s.MarshalTo(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (s *EngagementStatus) UnmarshalBinary(data []byte) error {
	msg, err := verify(data, TypeEngagementStatus, EngagementStatusSize)
	if err != nil {
		return err
	}

	p := msg[HeaderSize:]
	*s = EngagementStatus{
		TargetID:      binary.BigEndian.Uint32(p[0:]),
		State:         p[4],
		Firing:        p[5] != 0,
		LeadAngleRad:  float64At(p[6:]),
		TimeToImpactS: float64At(p[14:]),
	}
	return nil
}

// DecodeEngagementStatus parses an EngagementStatus from buf
func DecodeEngagementStatus(buf []byte) (EngagementStatus, error) {
	var s EngagementStatus
	err := s.UnmarshalBinary(buf)
	return s, err
}
