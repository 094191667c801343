package ps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentn3270/tn3270/errs"
)

func TestUnformattedScreenIsOneImplicitField(t *testing.T) {
	p := New(Size24x80, nil)
	fields := p.Fields()
	require.Len(t, fields, 1)
	assert.True(t, fields[0].Protected)
	assert.Equal(t, 24*80, fields[0].Length)
}

func TestEveryPositionBelongsToExactlyOneField(t *testing.T) {
	p := New(Size24x80, nil)
	p.WriteFieldAttr(5, AttrProtected, ExtendedAttrs{})
	p.WriteFieldAttr(20, 0, ExtendedAttrs{})
	p.WriteFieldAttr(1919, AttrProtected, ExtendedAttrs{})

	n := p.Size().Positions()
	cells := p.Cells()
	fields := p.Fields()
	for addr := 0; addr < n; addr++ {
		f := p.FindField(addr)
		require.NotNil(t, f)
		if cells[addr].IsFieldAttribute {
			continue // attribute cells hold no data of their own
		}
		count := 0
		for _, g := range fields {
			if g.Contains(addr, n) {
				count++
			}
		}
		assert.Equal(t, 1, count, "position %d", addr)
	}
}

func TestWriteFieldAttrSplitsUnprotectedField(t *testing.T) {
	p := New(Size24x80, nil)
	p.WriteFieldAttr(10, 0, ExtendedAttrs{})  // unprotected field starts at 11
	p.WriteFieldAttr(20, AttrProtected, ExtendedAttrs{})

	unprotected := p.FindField(15)
	assert.False(t, unprotected.Protected)
	assert.Equal(t, 11, unprotected.StartAddr)
	assert.Equal(t, 9, unprotected.Length)

	protected := p.FindField(25)
	assert.True(t, protected.Protected)
}

func TestFieldWrapsAroundPositionZero(t *testing.T) {
	p := New(Size24x80, nil)
	n := p.Size().Positions()
	p.WriteFieldAttr(n-5, 0, ExtendedAttrs{})
	f := p.FindField(0)
	assert.False(t, f.Protected)
	assert.Equal(t, n-4, f.StartAddr)
	assert.True(t, f.Contains(0, n))
	assert.True(t, f.Contains(n-1, n))
}

func TestTypeIntoProtectedFieldFails(t *testing.T) {
	p := New(Size24x80, nil)
	p.WriteFieldAttr(0, AttrProtected, ExtendedAttrs{})
	_, err := p.TypeAt(1, 0xC1)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindProtectedField))
	assert.True(t, p.KeyboardLocked())
}

func TestTypeSetsMDT(t *testing.T) {
	p := New(Size24x80, nil)
	p.WriteFieldAttr(0, 0, ExtendedAttrs{})
	f := p.FindField(1)
	assert.False(t, f.Modified)

	_, err := p.TypeAt(1, 0xC1)
	require.NoError(t, err)

	f = p.FindField(1)
	assert.True(t, f.Modified)
}

func TestTypeNumericOnlyRejectsAlpha(t *testing.T) {
	p := New(Size24x80, nil)
	p.WriteFieldAttr(0, AttrNumericOnly, ExtendedAttrs{})
	_, err := p.TypeAt(1, 0xC1) // 'A' in CP037
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNumericOnly))
}

func TestTypeNumericOnlyAcceptsDigits(t *testing.T) {
	p := New(Size24x80, nil)
	p.WriteFieldAttr(0, AttrNumericOnly, ExtendedAttrs{})
	_, err := p.TypeAt(1, 0xF5) // '5' in CP037/CP1047
	require.NoError(t, err)
}

func TestInsertModeShiftsAndFailsWhenFull(t *testing.T) {
	p := New(Size24x80, nil)
	p.WriteFieldAttr(0, 0, ExtendedAttrs{}) // unprotected, length 79 to end of row
	// The protected attribute at 80 ends that field at position 79.
	p.WriteFieldAttr(80, AttrProtected, ExtendedAttrs{})
	p.SetInsertMode(true)

	for i := 1; i <= 79; i++ {
		p.cells[i] = Cell{CodePoint: 0xF1}
	}
	p.fieldsDirty = true

	_, err := p.TypeAt(1, 0xF2)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindFieldFull))
}

func TestEraseAllUnprotectedIsIdempotent(t *testing.T) {
	p := New(Size24x80, nil)
	p.WriteFieldAttr(0, 0, ExtendedAttrs{})
	_, _ = p.TypeAt(1, 0xC1)
	p.LockKeyboard(KeyboardSystemLocked)

	p.EraseAllUnprotected()
	first := p.Cells()
	assert.False(t, p.KeyboardLocked())

	p.EraseAllUnprotected()
	second := p.Cells()
	assert.Equal(t, first, second)
}

func TestEraseEOFClearsToFieldEnd(t *testing.T) {
	p := New(Size24x80, nil)
	p.WriteFieldAttr(0, 0, ExtendedAttrs{})
	for i := 1; i <= 5; i++ {
		p.cells[i] = Cell{CodePoint: 0xC1}
	}

	p.EraseEOF(3)

	assert.Equal(t, byte(0xC1), p.Cells()[1].CodePoint)
	assert.Equal(t, byte(0xC1), p.Cells()[2].CodePoint)
	assert.Equal(t, byte(0x00), p.Cells()[3].CodePoint)
	assert.Equal(t, byte(0x00), p.Cells()[5].CodePoint)
}

func TestCursorAlwaysInBounds(t *testing.T) {
	p := New(Size24x80, nil)
	n := p.Size().Positions()
	p.SetCursor(-1)
	assert.Equal(t, n-1, p.Cursor())
	p.SetCursor(n + 5)
	assert.Equal(t, 5, p.Cursor())
}

func TestNextUnprotectedSkipsProtectedFields(t *testing.T) {
	p := New(Size24x80, nil)
	p.WriteFieldAttr(0, AttrProtected, ExtendedAttrs{})
	p.WriteFieldAttr(10, 0, ExtendedAttrs{})
	p.WriteFieldAttr(20, AttrProtected, ExtendedAttrs{})

	addr := p.NextUnprotected(0)
	assert.Equal(t, 11, addr)
}

func TestResizeClearsBuffer(t *testing.T) {
	p := New(Size24x80, nil)
	p.WriteFieldAttr(0, 0, ExtendedAttrs{})
	_, _ = p.TypeAt(1, 0xC1)

	p.Resize(Size32x80)
	assert.Equal(t, 32*80, p.Size().Positions())
	fields := p.Fields()
	require.Len(t, fields, 1)
	assert.True(t, fields[0].Protected)
}
