package internal

// FrameHeader is the decoded header of an inbound client frame.
type FrameHeader struct {
	// FIN, RSV1-3 and opcode exactly as received
	FinOpcode byte
	// 1 bit
	IsMasked bool
	// 7 bits, or 7+16 bits
	PayloadLength uint16
	// 4 bytes, always present on client frames
	MaskingKey [4]byte
}

func (h FrameHeader) IsFinalFrame() bool {
	fin, _ := SplitFinOpcode(h.FinOpcode)
	return fin
}

func (h FrameHeader) Opcode() Opcode {
	_, op := SplitFinOpcode(h.FinOpcode)
	return op
}
