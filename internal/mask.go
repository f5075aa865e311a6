package internal

// Mask XORs bytes in place with the repeating 4-byte key.
// Applying it twice with the same key restores the input.
func Mask(bytes []byte, key [4]byte) {
	MaskOffset(bytes, key, 0)
}

func MaskOffset(bytes []byte, key [4]byte, offset int) {
	for i, b := range bytes {
		pos := i + offset
		bytes[i] = b ^ key[pos%4]
	}
}
