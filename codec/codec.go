// Package codec provides bidirectional EBCDIC<->Unicode translation for the
// 3270 data stream, one codepage at a time. The package is stateless and
// table-driven: every Codepage is built once at init and is safe to share
// across sessions (see spec.md §5, "Shared resources").
//
// No golang.org/x/text charmap covers the IBM host code pages or the CP310
// APL graphic-escape set, so the package exposes its own Decode/Encode
// methods and the tables are hand-built from the teacher library's
// codepage design.
package codec

import (
	"unicode/utf8"

	"github.com/opentn3270/tn3270/errs"
)

// replacementRune is substituted by Decode for EBCDIC bytes with no Unicode
// mapping in a given codepage, including a byte following the graphic
// escape that has no mapping in the escape table.
const replacementRune = '�'

// Codepage is a named, bidirectional EBCDIC<->Unicode mapping. Decode is
// always total; Encode fails with an *errs.Error (KindEncode) for runes the
// codepage cannot represent, unless a Substitute byte has been configured.
type Codepage interface {
	// Decode converts host (EBCDIC) bytes into a Unicode string. Bytes with
	// no mapping become U+FFFD. A graphic-escape byte switches the next
	// single byte into the codepage's graphic character set (CP310-style).
	Decode(host []byte) string

	// Encode converts a Unicode string into host bytes. An unmappable rune
	// returns an *errs.Error of KindEncode unless Substitute is configured
	// on the underlying table.
	Encode(text string) ([]byte, error)

	// ID returns the codepage's canonical name, e.g. "037" or "1047".
	ID() string
}

// table is the concrete Codepage implementation: two parallel arrays for
// the 0x00-0xFF range, plus an optional graphic-escape table for codepoints
// accessed via the "graphic escape" byte (0x0E in every codepage we ship,
// per IBM GA23-0059).
type table struct {
	id  string
	ge  byte // graphic escape introducer byte
	sub byte // EBCDIC substitute character, used on encode of unmappable runes and has an explicit "no substitution configured" bit

	e2u    [256]rune // EBCDIC byte -> Unicode
	e2uSet [256]bool // whether e2u[b] is an explicit mapping (vs. unmapped)
	u2e    map[rune]byte

	geE2U    [256]rune // graphic-escape EBCDIC byte -> Unicode
	geE2USet [256]bool
	geU2E    map[rune]byte

	substituteOnEncode bool
}

func (t *table) ID() string { return t.id }

func (t *table) Decode(host []byte) string {
	buf := make([]rune, 0, len(host))
	escaped := false
	for _, b := range host {
		if escaped {
			escaped = false
			if t.geE2USet[b] {
				buf = append(buf, t.geE2U[b])
			} else {
				buf = append(buf, replacementRune)
			}
			continue
		}
		if b == t.ge && t.hasGraphicEscape() {
			escaped = true
			continue
		}
		if t.e2uSet[b] {
			buf = append(buf, t.e2u[b])
			continue
		}
		buf = append(buf, replacementRune)
	}
	return string(buf)
}

func (t *table) hasGraphicEscape() bool {
	return t.geU2E != nil
}

func (t *table) Encode(text string) ([]byte, error) {
	out := make([]byte, 0, len(text))
	for len(text) > 0 {
		r, size := utf8.DecodeRuneInString(text)
		if r == utf8.RuneError && size <= 1 {
			return nil, errs.Encode(r, t.id)
		}
		text = text[size:]

		if b, ok := t.u2e[r]; ok {
			out = append(out, b)
			continue
		}
		if t.hasGraphicEscape() {
			if b, ok := t.geU2E[r]; ok {
				out = append(out, t.ge, b)
				continue
			}
		}
		if t.substituteOnEncode {
			out = append(out, t.sub)
			continue
		}
		return nil, errs.Encode(r, t.id)
	}
	return out, nil
}

// WithSubstitute returns a copy of cp that substitutes b for any rune it
// cannot encode instead of returning an error, matching spec.md §4.1's
// "unless a substitution is configured" clause.
func WithSubstitute(cp Codepage, b byte) Codepage {
	t, ok := cp.(*table)
	if !ok {
		return cp
	}
	clone := *t
	clone.sub = b
	clone.substituteOnEncode = true
	return &clone
}

func buildTable(id string, ge byte, e2uPairs map[byte]rune) *table {
	t := &table{id: id, ge: ge, sub: 0x6F}
	t.u2e = make(map[rune]byte, len(e2uPairs))
	for b, r := range e2uPairs {
		t.e2u[b] = r
		t.e2uSet[b] = true
		t.u2e[r] = b
	}
	return t
}

func (t *table) withGraphicEscape(geU2EPairs map[byte]rune) *table {
	t.geU2E = make(map[rune]byte, len(geU2EPairs))
	for b, r := range geU2EPairs {
		t.geE2U[b] = r
		t.geE2USet[b] = true
		t.geU2E[r] = b
	}
	return t
}
