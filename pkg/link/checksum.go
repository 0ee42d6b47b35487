package link

import "hash/fnv"

// Digest hashes data with 64-bit FNV-1a and folds the sum into one byte
// by XOR-ing its eight bytes. Both peers must agree on it bit for bit.
func Digest(data ...[]byte) uint8 {
	h := fnv.New64a()
	for _, p := range data {
		h.Write(p)
	}
	sum := h.Sum64()
	var folded uint8
	for i := 0; i < 8; i++ {
		folded ^= uint8(sum >> (8 * uint(i)))
	}
	return folded
}

// CommandChecksum is the checksum of a Command: payload followed by id.
func CommandChecksum(payload []byte, id ID) uint8 {
	return Digest(payload, []byte{byte(id)})
}

// AckChecksum is the checksum of an Ack: the id alone.
func AckChecksum(id ID) uint8 {
	return Digest([]byte{byte(id)})
}
