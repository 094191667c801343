package ps

// Field describes one field in the derived Field Directory (spec.md §3).
// A Field starts at the position immediately following its field-attribute
// cell and ends at the position before the next field-attribute cell,
// wrapping around the end of the buffer.
type Field struct {
	// AttrAddr is the linear address of the field-attribute cell itself.
	AttrAddr int

	// StartAddr is the first data position of the field (AttrAddr+1, mod
	// buffer size).
	StartAddr int

	// Length is the number of data positions in the field (excludes the
	// attribute cell itself).
	Length int

	// AttributeByte is the raw field-attribute byte.
	AttributeByte byte

	// Protected, NumericOnly, Modified, Intensified mirror the bits in
	// AttributeByte for convenient access.
	Protected   bool
	NumericOnly bool
	Modified    bool
	Intensified bool

	// Extended carries SFE-assigned extended attributes for the field
	// (highlight/color/character-set), if any were set on the start-field
	// cell.
	Extended ExtendedAttrs

	// implicit marks the single whole-buffer protected field synthesized
	// for an unformatted screen (spec.md §3).
	implicit bool
}

// ExtendedAttrs mirrors the per-cell extended attribute pointers on Cell,
// applied at field-attribute granularity by SFE.
type ExtendedAttrs struct {
	Highlight  *byte
	Foreground *byte
	Background *byte
	CharSet    *byte
}

// Contains reports whether addr falls within the field's data range
// (wrapping), not counting the attribute cell itself.
func (f Field) Contains(addr, bufSize int) bool {
	if f.Length == 0 {
		return false
	}
	end := (f.StartAddr + f.Length - 1) % bufSize
	if f.StartAddr <= end {
		return addr >= f.StartAddr && addr <= end
	}
	// wraps around position 0
	return addr >= f.StartAddr || addr <= end
}
