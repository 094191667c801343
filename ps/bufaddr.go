package ps

// 3270 buffer addresses are encoded in 6-bit groups using the control
// character table from IBM GA23-0059 Figure C-1. codes maps a 6-bit value
// (0-63) to its wire byte; decodes is the inverse, indexed by wire byte.
// This table, and the encode12/decode12 pair below, are carried over
// directly from the teacher library's screen.go (codes, getpos) and
// response.go (decodeBufAddr) -- the teacher only ever used the 12-bit
// form (its screens never exceed 24x80=1920 positions); this package adds
// the 14-bit form, which ModeFor selects only for non-standard sizes above
// 4096 positions (the standard sizes, up to 27x132 = 3564 positions, all
// use the 12-bit form).
var codes = [64]byte{
	0x40, 0xc1, 0xc2, 0xc3, 0xc4, 0xc5, 0xc6, 0xc7, 0xc8,
	0xc9, 0x4a, 0x4b, 0x4c, 0x4d, 0x4e, 0x4f, 0x50, 0xd1, 0xd2, 0xd3, 0xd4,
	0xd5, 0xd6, 0xd7, 0xd8, 0xd9, 0x5a, 0x5b, 0x5c, 0x5d, 0x5e, 0x5f, 0x60,
	0x61, 0xe2, 0xe3, 0xe4, 0xe5, 0xe6, 0xe7, 0xe8, 0xe9, 0x6a, 0x6b, 0x6c,
	0x6d, 0x6e, 0x6f, 0xf0, 0xf1, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8,
	0xf9, 0x7a, 0x7b, 0x7c, 0x7d, 0x7e, 0x7f,
}

// decodes is built from codes at init: decodes[wireByte] = 6-bit value, or
// 0xFF if wireByte is not a valid 6-bit code.
var decodes [256]byte

func init() {
	for i := range decodes {
		decodes[i] = 0xFF
	}
	for v, b := range codes {
		decodes[b] = byte(v)
	}
}

// AddressMode selects the 12-bit or 14-bit buffer-address wire encoding.
// Per spec.md §3, a decoder must accept either depending on the negotiated
// buffer size: 14-bit only applies to buffers larger than 4096 positions.
type AddressMode int

const (
	Mode12Bit AddressMode = iota
	Mode14Bit
)

// ModeFor returns the address mode a buffer of the given size (rows*cols)
// must use on output; input decoding always auto-detects (see DecodeAddr).
func ModeFor(size int) AddressMode {
	if size > 4096 {
		return Mode14Bit
	}
	return Mode12Bit
}

// EncodeAddr encodes a linear buffer address using mode.
func EncodeAddr(addr int, mode AddressMode) [2]byte {
	if mode == Mode14Bit {
		return encode14(addr)
	}
	return encode12(addr)
}

func encode12(addr int) [2]byte {
	hi := (addr & 0xfc0) >> 6
	lo := addr & 0x3f
	return [2]byte{codes[hi], codes[lo]}
}

// encode14 uses the raw 14-bit binary form (RFC/GA23-0059 "non-SNA" mode):
// the top two bits of the first byte are left 00 (distinguishing it from
// the 12-bit form's high nibble of 01/11 on the first byte), and the
// remaining 14 bits are the address split 6+8 across the two bytes using
// the full 0-255 byte range rather than the 6-bit code table.
func encode14(addr int) [2]byte {
	return [2]byte{byte((addr >> 8) & 0x3F), byte(addr & 0xFF)}
}

// DecodeAddr decodes a 2-byte wire address, auto-detecting 12-bit vs.
// 14-bit form from the top two bits of the first byte, per spec.md §3:
// "a decoder MUST accept both forms depending on buffer size... the 12/14
// bit address encoding uses top two bits of the first byte as mode
// indicators when high-order bits are nonzero". Bytes whose top two bits
// are 01 or 11 are the 12-bit code-table form; 00 or 10 are the raw
// 14-bit/12-bit binary form used by larger buffer-size negotiations.
func DecodeAddr(raw [2]byte) (int, AddressMode) {
	top := raw[0] >> 6
	if top == 0b01 || top == 0b11 {
		hi := decodes[raw[0]]
		lo := decodes[raw[1]]
		return int(hi)<<6 | int(lo), Mode12Bit
	}
	// 00 or 10: binary form. 00 prefix is the 14-bit form; a leading 10
	// prefix on a byte otherwise absent from the code table is treated
	// the same way (the "mode bits 00 invalid" edge case in spec.md §8
	// refers to misinterpreting a 12-bit code-table byte as binary, not
	// to this branch).
	addr := int(raw[0]&0x3F)<<8 | int(raw[1])
	return addr, Mode14Bit
}
