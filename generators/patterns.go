package generators

import "github.com/23skdu/vsakit/dsg"

// NoisePattern returns size reproducible pseudo-random bytes: the top byte of
// each successive DSG word.
func NoisePattern(size int, seed uint64) []byte {
	if size <= 0 {
		return []byte{}
	}
	data := make([]byte, size)
	state := seed
	for i := range data {
		state, _ = dsg.Next(state)
		data[i] = byte(state >> 56)
	}
	return data
}

// GradientPattern returns a width*height image-like buffer, row-major, with a
// linear ramp from the top-left towards the bottom-right corner.
func GradientPattern(width, height int) []byte {
	if width <= 0 || height <= 0 {
		return []byte{}
	}
	data := make([]byte, 0, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			data = append(data, byte(((x+y)*255)/(width+height)))
		}
	}
	return data
}

// elfHeader is a 64-bit little-endian SYSV ELF identification prefix.
var elfHeader = [16]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0}

// BinaryBlob returns an executable-like buffer: an ELF identification header
// when size >= 16, followed by 256-byte runs cycling through NOP slides,
// sequential bytes, zero fill and INT3 padding.
func BinaryBlob(size int) []byte {
	if size <= 0 {
		return []byte{}
	}
	data := make([]byte, size)
	offset := 0
	if size >= len(elfHeader) {
		offset = copy(data, elfHeader[:])
	}
	for ; offset < size; offset++ {
		switch (offset / 256) % 4 {
		case 0:
			data[offset] = 0x90
		case 1:
			data[offset] = byte(offset & 0xFF)
		case 2:
			data[offset] = 0x00
		default:
			data[offset] = 0xCC
		}
	}
	return data
}
