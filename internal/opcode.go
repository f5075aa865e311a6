package internal

type Opcode uint8

const (
	OpcodeContinuationFrame Opcode = 0x0
	OpcodeTextFrame         Opcode = 0x1
	OpcodeBinaryFrame       Opcode = 0x2
	OpcodeConnectionClose   Opcode = 0x8
	OpcodePing              Opcode = 0x9
	OpcodePong              Opcode = 0xA
)

const (
	finBit     byte = 0b1_000_0000
	opcodeBits byte = 0b0_000_1111
)

// FinalFrame composes the first header byte of an unfragmented frame.
func FinalFrame(c Opcode) byte {
	return finBit | byte(c)
}

// SplitFinOpcode breaks the first header byte into its FIN flag and opcode.
// RSV bits are ignored.
func SplitFinOpcode(b byte) (isFinal bool, opcode Opcode) {
	return b&finBit == finBit, Opcode(b & opcodeBits)
}

func (c Opcode) IsControl() bool {
	return c == OpcodeConnectionClose ||
		c == OpcodePing ||
		c == OpcodePong
}

func (c Opcode) String() string {
	switch c {
	case OpcodeContinuationFrame:
		return "continuation"
	case OpcodeTextFrame:
		return "text"
	case OpcodeBinaryFrame:
		return "binary"
	case OpcodeConnectionClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	}
	return "reserved"
}
