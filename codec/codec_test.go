package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIsTotal(t *testing.T) {
	// Every byte value must decode to something, even if it's U+FFFD. The
	// graphic-escape byte 0x0E yields no rune of its own: it turns the
	// following byte (0x0F) into one graphic rune, so 256 bytes decode to
	// 255 runes.
	host := make([]byte, 256)
	for i := range host {
		host[i] = byte(i)
	}
	text := CP1047.Decode(host)
	assert.Equal(t, 255, len([]rune(text)))
}

func TestRoundTripASCIILetters(t *testing.T) {
	text := "HELLO world 123"
	host, err := CP1047.Encode(text)
	require.NoError(t, err)
	back := CP1047.Decode(host)
	assert.Equal(t, text, back)
}

func TestEncodeUnmappableFailsWithoutSubstitute(t *testing.T) {
	_, err := CP1047.Encode("中") // a CJK character, not in the table
	require.Error(t, err)
}

func TestEncodeUnmappableSubstitutes(t *testing.T) {
	withSub := WithSubstitute(CP1047, 0x6F) // '?' in CP1047
	host, err := withSub.Encode("中")
	require.NoError(t, err)
	require.Len(t, host, 1)
	assert.Equal(t, byte(0x6F), host[0])
}

func TestGraphicEscapeRoundTrip(t *testing.T) {
	host, err := CP1047.Encode(string(rune(0x2191))) // upward arrow, CP310
	require.NoError(t, err)
	require.Len(t, host, 2)
	assert.Equal(t, byte(graphicEscapeByte), host[0])
	back := CP1047.Decode(host)
	assert.Equal(t, string(rune(0x2191)), back)
}

func TestLookup(t *testing.T) {
	cp, ok := Lookup("1047")
	require.True(t, ok)
	assert.Equal(t, "1047", cp.ID())

	_, ok = Lookup("9999")
	assert.False(t, ok)
}

func TestCP037AndCP1047Differ(t *testing.T) {
	// EBCDIC byte 0x4A decodes differently between the two code pages
	// ('|' in the CP037 table, the cent sign in CP1047).
	assert.NotEqual(t, CP037.Decode([]byte{0x4A}), CP1047.Decode([]byte{0x4A}))
}
