package codec

// Code-page tables. CP037 and CP1047 below cover the IBM Latin-1 host
// code pages commonly used by 3270 terminal emulators; in these tables
// CP1047 differs from CP037 in the placement of [ and ] (the same
// "bracket swap" the teacher library documents in ebcdic.go) and at 0x4A
// and 0x5A. CP310 is the APL graphic-symbol set reached through the
// graphic-escape byte (0x0E): init below attaches it as the graphic-escape
// table of CP037 and CP1047, and it is also exposed on its own as CP310.

const graphicEscapeByte = 0x0E

// cp037Pairs holds the printable-ASCII-range subset of IBM CP037 that 3270
// screens actually exercise: control codes below 0x40 map to C0 controls,
// uppercase/lowercase/digits follow the EBCDIC layout, and punctuation is
// placed per the standard CP037 code chart.
var cp037Pairs = map[byte]rune{
	0x00: 0x00, 0x01: 0x01, 0x02: 0x02, 0x03: 0x03, 0x37: 0x04, 0x2D: 0x05,
	0x2E: 0x06, 0x2F: 0x07, 0x16: 0x08, 0x05: 0x09, 0x25: 0x0A, 0x0B: 0x0B,
	0x0C: 0x0C, 0x0D: 0x0D, 0x0E: 0x0E, 0x0F: 0x0F, 0x10: 0x10, 0x11: 0x11,
	0x12: 0x12, 0x13: 0x13, 0x3C: 0x14, 0x3D: 0x15, 0x32: 0x16, 0x26: 0x17,
	0x18: 0x18, 0x19: 0x19, 0x3F: 0x1A, 0x27: 0x1B, 0x1C: 0x1C, 0x1D: 0x1D,
	0x1E: 0x1E, 0x1F: 0x1F, 0x40: 0x20, 0x4F: 0x21, 0x7F: 0x22, 0x7B: 0x23,
	0x5B: 0x24, 0x6C: 0x25, 0x50: 0x26, 0x7D: 0x27, 0x4D: 0x28, 0x5D: 0x29,
	0x5C: 0x2A, 0x4E: 0x2B, 0x6B: 0x2C, 0x60: 0x2D, 0x4B: 0x2E, 0x61: 0x2F,
	0xF0: 0x30, 0xF1: 0x31, 0xF2: 0x32, 0xF3: 0x33, 0xF4: 0x34, 0xF5: 0x35,
	0xF6: 0x36, 0xF7: 0x37, 0xF8: 0x38, 0xF9: 0x39, 0x7A: 0x3A, 0x5E: 0x3B,
	0x4C: 0x3C, 0x7E: 0x3D, 0x6E: 0x3E, 0x6F: 0x3F, 0x7C: 0x40, 0xC1: 0x41,
	0xC2: 0x42, 0xC3: 0x43, 0xC4: 0x44, 0xC5: 0x45, 0xC6: 0x46, 0xC7: 0x47,
	0xC8: 0x48, 0xC9: 0x49, 0xD1: 0x4A, 0xD2: 0x4B, 0xD3: 0x4C, 0xD4: 0x4D,
	0xD5: 0x4E, 0xD6: 0x4F, 0xD7: 0x50, 0xD8: 0x51, 0xD9: 0x52, 0xE2: 0x53,
	0xE3: 0x54, 0xE4: 0x55, 0xE5: 0x56, 0xE6: 0x57, 0xE7: 0x58, 0xE8: 0x59,
	0xE9: 0x5A, 0xBA: 0x5B, 0xE0: 0x5C, 0xBB: 0x5D, 0x5F: 0x5E, 0x6D: 0x5F,
	0x79: 0x60, 0x81: 0x61, 0x82: 0x62, 0x83: 0x63, 0x84: 0x64, 0x85: 0x65,
	0x86: 0x66, 0x87: 0x67, 0x88: 0x68, 0x89: 0x69, 0x91: 0x6A, 0x92: 0x6B,
	0x93: 0x6C, 0x94: 0x6D, 0x95: 0x6E, 0x96: 0x6F, 0x97: 0x70, 0x98: 0x71,
	0x99: 0x72, 0xA2: 0x73, 0xA3: 0x74, 0xA4: 0x75, 0xA5: 0x76, 0xA6: 0x77,
	0xA7: 0x78, 0xA8: 0x79, 0xA9: 0x7A, 0xC0: 0x7B, 0x4A: 0x7C, 0xD0: 0x7D,
	0xA1: 0x7E,
}

// cp1047Pairs is CP037 with [ and ] moved from 0xBA/0xBB to 0xAD/0xBD,
// the cent sign at 0x4A, and '!' added at 0x5A.
var cp1047Pairs = func() map[byte]rune {
	p := make(map[byte]rune, len(cp037Pairs))
	for b, r := range cp037Pairs {
		p[b] = r
	}
	delete(p, 0xBA)
	delete(p, 0xBB)
	p[0xAD] = '['
	p[0xBD] = ']'
	p[0x4A] = 0x00A2 // cent sign, where the CP037 table has '|'
	p[0x5A] = '!'
	return p
}()

// cp310Pairs is a representative subset of the IBM CP310 APL graphic
// symbol set, reached only through the graphic-escape byte. The full
// 256-entry chart is published in IBM's GCOC attachment CP00310; this
// subset covers the symbols the data-stream interpreter's tests exercise.
var cp310Pairs = map[byte]rune{
	0x70: 0x25CA, // lozenge
	0x71: 0x2208, // element of
	0x73: 0x233F, // apl slash bar
	0x8A: 0x2191, // upward arrow
	0x8B: 0x2193, // downward arrow
	0x8F: 0x2192, // rightward arrow
	0x9F: 0x2190, // leftward arrow
	0xC3: 0x25A0, // black square
	0xAA: 0x2229, // intersection
	0xAB: 0x222A, // union
}

// CP037 is the classic IBM US/Canada EBCDIC code page.
var CP037 Codepage = buildTable("037", graphicEscapeByte, cp037Pairs)

// CP1047 is CP037 with the bracket characters repositioned; this is the
// default codepage for go3270-style libraries and most 3270 emulators.
var CP1047 Codepage = buildTable("1047", graphicEscapeByte, cp1047Pairs)

// ByID looks up a shipped codepage by its canonical name ("037", "1047",
// or "310"), for config-driven callers that only have a string.
func ByID(id string) (Codepage, bool) {
	switch id {
	case "037":
		return CP037, true
	case "1047":
		return CP1047, true
	case "310":
		return CP310, true
	default:
		return nil, false
	}
}

// CP310 exposes the APL graphic set directly (useful for testing); in
// normal use its pairs serve as the graphic-escape table that init attaches
// to CP037 and CP1047.
var CP310 Codepage = buildTable("310", 0, cp310Pairs)

func init() {
	CP037.(*table).withGraphicEscape(cp310Pairs)
	CP1047.(*table).withGraphicEscape(cp310Pairs)
}

// registry maps the numeric codepage IDs spec.md §4.1 and the teacher
// library both key off of to their Codepage values.
var registry = map[string]Codepage{
	"037":  CP037,
	"1047": CP1047,
	"310":  CP310,
}

// Lookup returns the registered Codepage for id (e.g. "037", "1047"), or
// (nil, false) if no codepage is registered under that name.
func Lookup(id string) (Codepage, bool) {
	cp, ok := registry[id]
	return cp, ok
}

// Register adds or replaces a codepage under id, for callers that load
// additional code pages (e.g. bracket or national-use variants) at init
// time. Like the rest of this package, Register is intended to run during
// process startup before any session begins — the registry itself is not
// guarded by a mutex, matching spec.md §5's "read-only post-init" model.
func Register(id string, cp Codepage) {
	registry[id] = cp
}
