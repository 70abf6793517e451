package protocol

// Checksum sums every byte of msg except the checksum field, modulo 2^16.
// It is a detection code only and must stay byte-compatible with the peer.
func Checksum(msg []byte) uint16 {
	var sum uint16
	for i, b := range msg {
		if i == offChecksum || i == offChecksum+1 {
			continue
		}
		sum += uint16(b)
	}
	return sum
}
