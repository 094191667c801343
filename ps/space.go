// Package ps implements the presentation space: the row x col buffer of
// character cells with attributes, its derived field directory, cursor,
// and keyboard/AID state (spec.md §3/§4.4). It is pure data-structure
// logic -- no I/O -- so the data-stream interpreter and session controller
// can each mutate it without either owning the wire.
package ps

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/opentn3270/tn3270/errs"
)

// Size is a row x col screen dimension. spec.md §3 lists the standard set
// plus "a non-standard alternate".
type Size struct {
	Rows, Cols int
}

func (s Size) Positions() int { return s.Rows * s.Cols }

// Standard 3270 screen sizes (spec.md §3).
var (
	Size24x80  = Size{24, 80}
	Size32x80  = Size{32, 80}
	Size43x80  = Size{43, 80}
	Size27x132 = Size{27, 132}
)

// KeyboardState is one of the four keyboard/input conditions spec.md §3
// names.
type KeyboardState int

const (
	KeyboardUnlocked KeyboardState = iota
	KeyboardLockedWaiting
	KeyboardSystemLocked
	KeyboardInputInhibited
)

// Keyboard carries the AID/keyboard state in spec.md §3.
type Keyboard struct {
	State      KeyboardState
	Insert     bool
	LastAID    byte
}

// PresentationSpace is the row x col cell buffer plus its derived field
// directory, cursor, and keyboard state.
type PresentationSpace struct {
	size  Size
	cells []Cell

	fields      []*Field
	fieldsDirty bool

	cursor int
	kb     Keyboard

	log *logrus.Entry
}

// New creates a PresentationSpace of the given size, cleared to nulls with
// one implicit whole-screen protected field (spec.md §3, "unformatted
// screen").
func New(size Size, log *logrus.Entry) *PresentationSpace {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	p := &PresentationSpace{size: size, log: log}
	p.clear()
	return p
}

// Size returns the current screen dimensions.
func (p *PresentationSpace) Size() Size { return p.size }

// AddressMode reports the buffer-address wire encoding this size requires.
func (p *PresentationSpace) AddressMode() AddressMode {
	return ModeFor(p.size.Positions())
}

func (p *PresentationSpace) clear() {
	p.cells = make([]Cell, p.size.Positions())
	p.cursor = 0
	p.fields = nil
	p.fieldsDirty = true
	p.rebuildFieldsLocked()
}

// Resize clears the presentation space and adopts a new size. Per
// spec.md §4.4, callers outside the interpreter (e.g. a UI requesting a
// different default size before CONNECT) should only call this before a
// session reaches ACTIVE; the data-stream interpreter itself calls this
// for Erase/Write Alternate, which is always permitted.
func (p *PresentationSpace) Resize(size Size) {
	p.size = size
	p.clear()
}

// Cells returns a read-only snapshot of the cell buffer, in linear address
// order, for outbound response construction (spec.md §4.5) and screen
// rendering by external callers.
func (p *PresentationSpace) Cells() []Cell {
	out := make([]Cell, len(p.cells))
	copy(out, p.cells)
	return out
}

func (p *PresentationSpace) wrap(addr int) int {
	n := len(p.cells)
	addr %= n
	if addr < 0 {
		addr += n
	}
	return addr
}

// WriteCell applies a host data write at addr (spec.md §4.4's
// write_cell). It never enforces field-protection rules -- those only
// apply to the keystroke-editing API below -- because the host is always
// permitted to write protected positions.
func (p *PresentationSpace) WriteCell(addr int, codePoint byte, ext ExtendedAttrs) {
	addr = p.wrap(addr)
	c := &p.cells[addr]
	c.CodePoint = codePoint
	c.IsFieldAttribute = false
	c.ExtendedHighlight = ext.Highlight
	c.ForegroundColor = ext.Foreground
	c.BackgroundColor = ext.Background
	c.CharacterSet = ext.CharSet
}

// WriteFieldAttr starts a field at addr (spec.md §4.4's write_field_attr).
// Writing a field attribute anywhere always invalidates the field
// directory (spec.md §3 invariant), so this method marks fields dirty
// rather than incrementally patching the directory; RebuildFields (or the
// next call requiring it) recomputes it lazily.
func (p *PresentationSpace) WriteFieldAttr(addr int, attrByte byte, ext ExtendedAttrs) {
	addr = p.wrap(addr)
	c := &p.cells[addr]
	*c = Cell{
		CodePoint:          0x00,
		CharacterAttribute: attrByte,
		IsFieldAttribute:   true,
		ExtendedHighlight:  ext.Highlight,
		ForegroundColor:    ext.Foreground,
		BackgroundColor:    ext.Background,
		CharacterSet:       ext.CharSet,
	}
	p.fieldsDirty = true
}

// Cursor returns the current cursor address.
func (p *PresentationSpace) Cursor() int { return p.cursor }

// SetCursor moves the cursor, wrapping into [0, rows*cols).
func (p *PresentationSpace) SetCursor(addr int) { p.cursor = p.wrap(addr) }

// LockKeyboard and UnlockKeyboard implement spec.md §4.4's
// keyboard_lock/unlock.
func (p *PresentationSpace) LockKeyboard(state KeyboardState) {
	if state == KeyboardUnlocked {
		state = KeyboardLockedWaiting
	}
	p.kb.State = state
}

func (p *PresentationSpace) UnlockKeyboard() {
	p.kb.State = KeyboardUnlocked
}

func (p *PresentationSpace) KeyboardLocked() bool {
	return p.kb.State != KeyboardUnlocked
}

func (p *PresentationSpace) Keyboard() Keyboard { return p.kb }

func (p *PresentationSpace) SetInsertMode(on bool) { p.kb.Insert = on }

func (p *PresentationSpace) SetLastAID(aid byte) { p.kb.LastAID = aid }

// RebuildFields recomputes the field directory with a single O(rows*cols)
// scan, per spec.md §4.4. It is safe (and a no-op) to call when the
// directory isn't dirty.
func (p *PresentationSpace) RebuildFields() {
	if !p.fieldsDirty {
		return
	}
	p.rebuildFieldsLocked()
}

func (p *PresentationSpace) rebuildFieldsLocked() {
	n := len(p.cells)
	var attrAddrs []int
	for i, c := range p.cells {
		if c.IsFieldAttribute {
			attrAddrs = append(attrAddrs, i)
		}
	}

	if len(attrAddrs) == 0 {
		// Unformatted screen: one implicit protected field covering the
		// whole buffer (spec.md §3).
		p.fields = []*Field{{
			AttrAddr:  -1,
			StartAddr: 0,
			Length:    n,
			Protected: true,
			implicit:  true,
		}}
		p.fieldsDirty = false
		return
	}

	fields := make([]*Field, 0, len(attrAddrs))
	for i, a := range attrAddrs {
		start := p.wrap(a + 1)
		var end int
		if i+1 < len(attrAddrs) {
			end = p.wrap(attrAddrs[i+1] - 1)
		} else {
			end = p.wrap(attrAddrs[0] - 1)
		}
		length := p.wrap(end-start) + 1
		if end == p.wrap(start-1) {
			// field attribute immediately followed by another: zero-length
			length = 0
		}
		attrByte := p.cells[a].CharacterAttribute
		f := &Field{
			AttrAddr:      a,
			StartAddr:     start,
			Length:        length,
			AttributeByte: attrByte,
			Protected:     attrByte&AttrProtected != 0,
			NumericOnly:   attrByte&AttrNumericOnly != 0,
			Modified:      attrByte&AttrModified != 0,
			Intensified:   attrByte&AttrIntensityHi != 0,
			Extended: ExtendedAttrs{
				Highlight:  p.cells[a].ExtendedHighlight,
				Foreground: p.cells[a].ForegroundColor,
				Background: p.cells[a].BackgroundColor,
				CharSet:    p.cells[a].CharacterSet,
			},
		}
		fields = append(fields, f)
	}
	p.fields = fields
	p.fieldsDirty = false
}

// Fields returns the field directory, rebuilding it first if dirty.
func (p *PresentationSpace) Fields() []*Field {
	p.RebuildFields()
	out := make([]*Field, len(p.fields))
	copy(out, p.fields)
	return out
}

// FindField returns the field containing addr (spec.md §4.4's
// find_field). Every position belongs to exactly one field (the
// whole-screen implicit field on an unformatted screen), so this never
// returns nil for a valid addr.
func (p *PresentationSpace) FindField(addr int) *Field {
	p.RebuildFields()
	addr = p.wrap(addr)
	n := len(p.cells)
	for _, f := range p.fields {
		if f.implicit {
			return f
		}
		if f.Contains(addr, n) {
			return f
		}
	}
	// addr is itself a field-attribute position: conventionally belongs
	// to no data field; return the field that starts right after it.
	for _, f := range p.fields {
		if f.AttrAddr == addr {
			return f
		}
	}
	return p.fields[0]
}

// NextUnprotected returns the first unprotected data position strictly
// after addr (wrapping), or addr itself if no unprotected field exists.
func (p *PresentationSpace) NextUnprotected(addr int) int {
	p.RebuildFields()
	n := len(p.cells)
	addr = p.wrap(addr)
	for i := 1; i <= n; i++ {
		candidate := p.wrap(addr + i)
		if p.cells[candidate].IsFieldAttribute {
			continue
		}
		f := p.FindField(candidate)
		if !f.Protected {
			return candidate
		}
	}
	return addr
}

// EraseEOF clears from cursorAddr to the end of its containing field
// (spec.md §4.4).
func (p *PresentationSpace) EraseEOF(cursorAddr int) {
	f := p.FindField(cursorAddr)
	if f.Length == 0 {
		return
	}
	n := len(p.cells)
	end := p.wrap(f.StartAddr + f.Length - 1)
	for a := p.wrap(cursorAddr); ; a = p.wrap(a + 1) {
		p.cells[a] = Cell{}
		if a == end {
			break
		}
		if a == p.wrap(end+1) {
			break // safety against malformed field bounds
		}
		_ = n
	}
	p.markFieldModified(f)
}

// EraseInput clears all unprotected fields, resets cursor to the first
// unprotected position (spec.md §4.4). MDT is cleared on every field
// touched, matching the "clear, reset MDT" semantics of Erase-Input.
func (p *PresentationSpace) EraseInput() {
	p.RebuildFields()
	for _, f := range p.fields {
		if f.Protected || f.implicit {
			continue
		}
		p.clearField(f)
	}
	p.cursor = p.NextUnprotected(-1)
}

// EraseAllUnprotected implements the EAU command: clears unprotected
// fields, resets their MDT, unlocks the keyboard, and moves the cursor to
// the first unprotected position (spec.md §4.5). Applying it twice is
// idempotent (spec.md §8).
func (p *PresentationSpace) EraseAllUnprotected() {
	p.EraseInput()
	p.UnlockKeyboard()
}

// ResetAllMDT clears the modified-data-tag bit on every field, per the
// Write Control Character's reset-MDT bit (spec.md §4.5). Unlike
// EraseInput, field contents are left untouched.
func (p *PresentationSpace) ResetAllMDT() {
	p.RebuildFields()
	for _, f := range p.fields {
		if f.AttrAddr < 0 {
			continue
		}
		p.cells[f.AttrAddr].setModified(false)
	}
}

func (p *PresentationSpace) clearField(f *Field) {
	for i := 0; i < f.Length; i++ {
		p.cells[p.wrap(f.StartAddr+i)] = Cell{}
	}
	if f.AttrAddr >= 0 {
		p.cells[f.AttrAddr].setModified(false)
		p.fieldsDirty = true
	}
}

func (p *PresentationSpace) markFieldModified(f *Field) {
	if f.AttrAddr < 0 {
		return
	}
	p.cells[f.AttrAddr].setModified(true)
	p.fieldsDirty = true
}

// --- Keystroke-editing API (spec.md §4.4 "Input rules") ---

// validNumeric matches the characters a numeric-only field accepts:
// 0-9, '.', '-', '+', and DUP (represented here as the byte 0x1C, the
// EBCDIC DUP graphic's conventional placeholder in host byte form; callers
// translate an actual keyboard DUP key to this byte before calling Type).
const dupByte = 0x1C

func isNumericAllowed(hostByte byte) bool {
	switch hostByte {
	case dupByte:
		return true
	}
	// caller is responsible for encoding '.', '-', '+', '0'-'9' through
	// the active codepage; we only see host bytes here, so we check the
	// codepage-independent CP1047/CP037 encodings of those characters,
	// which are stable across the code pages this package ships.
	switch hostByte {
	case 0x4B, 0x60, 0x4E, 0xF0, 0xF1, 0xF2, 0xF3, 0xF4, 0xF5, 0xF6, 0xF7, 0xF8, 0xF9:
		return true // '.', '-', '+', '0'-'9' in CP037/CP1047
	}
	return false
}

// Type writes one host byte at the cursor, honoring field-protection,
// numeric-only, and insert-mode rules, and sets MDT on success
// (spec.md §4.4). On success the cursor advances one position. It returns
// the new cursor position.
func (p *PresentationSpace) Type(hostByte byte) (int, error) {
	next, err := p.TypeAt(p.cursor, hostByte)
	if err != nil {
		return next, err
	}
	p.cursor = next
	return next, nil
}

// TypeAt is Type but at an explicit address; unlike Type it leaves the
// cursor where it is. It returns the position after addr on success.
func (p *PresentationSpace) TypeAt(addr int, hostByte byte) (int, error) {
	f := p.FindField(addr)
	if f.Protected {
		p.LockKeyboard(KeyboardInputInhibited)
		return addr, errs.ProtectedField("field starting at buffer address")
	}
	if f.NumericOnly && !isNumericAllowed(hostByte) {
		p.LockKeyboard(KeyboardInputInhibited)
		return addr, errs.NumericOnly("field starting at buffer address")
	}

	if p.kb.Insert {
		if err := p.insertInField(f, addr, hostByte); err != nil {
			return addr, err
		}
	} else {
		p.cells[p.wrap(addr)] = Cell{CodePoint: hostByte}
	}

	p.markFieldModified(f)
	next := p.wrap(addr + 1)
	return next, nil
}

// insertInField shifts cells right within f starting at addr until a
// trailing null/space is found to absorb the shift, failing with
// FieldFull if the field has no room (spec.md §4.4).
func (p *PresentationSpace) insertInField(f *Field, addr int, hostByte byte) error {
	n := len(p.cells)
	end := p.wrap(f.StartAddr + f.Length - 1)

	// Find a blank (null or EBCDIC space) cell to absorb the shift,
	// scanning from end backward to addr.
	blank := -1
	for i, a := 0, end; i < f.Length; i, a = i+1, p.wrap(a-1) {
		c := p.cells[a]
		if !c.IsFieldAttribute && (c.CodePoint == 0x00 || c.CodePoint == 0x40) {
			blank = a
			break
		}
		if a == p.wrap(addr-1) {
			break
		}
	}
	if blank == -1 {
		return errs.FieldFull("field starting at buffer address")
	}

	for a := blank; a != addr; a = p.wrap(a - 1) {
		prev := p.wrap(a - 1)
		p.cells[a] = p.cells[prev]
	}
	p.cells[p.wrap(addr)] = Cell{CodePoint: hostByte}
	_ = n
	return nil
}
