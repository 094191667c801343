package telnet

import (
	"context"
	"crypto/tls"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTransport is an in-memory transport.Transport for engine tests: bytes
// written by the engine land in toHost; bytes enqueued via feed() are
// returned by Read, simulating the remote host's side of the wire.
type memTransport struct {
	toHost   []byte
	fromHost []byte
}

func (m *memTransport) Read(ctx context.Context, buf []byte) (int, error) {
	if len(m.fromHost) == 0 {
		return 0, io.EOF
	}
	n := copy(buf, m.fromHost)
	m.fromHost = m.fromHost[n:]
	return n, nil
}

func (m *memTransport) Write(ctx context.Context, b []byte) error {
	m.toHost = append(m.toHost, b...)
	return nil
}

func (m *memTransport) Close() error { return nil }

func (m *memTransport) ConnectionState() (tls.ConnectionState, bool) {
	return tls.ConnectionState{}, false
}

func (m *memTransport) feed(b []byte) { m.fromHost = append(m.fromHost, b...) }

func TestEscapeUnescapeIAC(t *testing.T) {
	data := []byte{0x01, IAC, 0x02, IAC, IAC, 0x03}
	escaped := EscapeIAC(data)
	assert.Contains(t, string(escaped), string([]byte{IAC, IAC}))
	unescaped := UnescapeIAC(escaped)
	assert.Equal(t, data, unescaped)
}

func TestEscapeNoIACIsNoCopy(t *testing.T) {
	data := []byte{1, 2, 3}
	out := EscapeIAC(data)
	assert.Equal(t, data, out)
	assert.Same(t, &data[0], &out[0])
}

func TestNegotiatePlainTN3270(t *testing.T) {
	tr := &memTransport{}
	// Host agrees to every offered option and never sends TN3270E.
	tr.feed([]byte{
		IAC, WILL, OptTermType,
		IAC, WILL, OptEOR,
		IAC, WILL, OptBinary,
		IAC, DO, OptEOR,
		IAC, DO, OptBinary,
		IAC, SB, OptTermType, TTypeSend, IAC, SE,
	})

	e := New(tr, Options{TerminalType: "IBM-3278-2-E"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := e.Negotiate(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateActive, e.State())
	assert.False(t, e.Negotiated().TN3270E)
}

func TestRecordRoundTripPlainTN3270(t *testing.T) {
	tr := &memTransport{}
	e := &Engine{tr: tr, state: StateActive, log: Options{}.logger(), pending: map[byte]bool{}}

	payload := []byte{0xF5, 0xC3, 0x11, IAC, 0x40}
	require.NoError(t, e.WriteRecord(context.Background(), payload, nil))

	tr.feed(tr.toHost)
	got, hdr, err := e.ReadRecord(context.Background())
	require.NoError(t, err)
	assert.Nil(t, hdr)
	assert.Equal(t, payload, got)
}

func TestRecordRoundTripTN3270E(t *testing.T) {
	tr := &memTransport{}
	e := &Engine{tr: tr, state: StateActive, log: Options{}.logger(), pending: map[byte]bool{}}
	e.negotiated.TN3270E = true

	hdr := &RecordHeader{DataType: DataType3270Data, SeqNumber: 7}
	payload := []byte{0xF5, 0xC3}
	require.NoError(t, e.WriteRecord(context.Background(), payload, hdr))

	tr.feed(tr.toHost)
	got, gotHdr, err := e.ReadRecord(context.Background())
	require.NoError(t, err)
	require.NotNil(t, gotHdr)
	assert.Equal(t, payload, got)
	assert.Equal(t, uint16(7), gotHdr.SeqNumber)
}

func TestReadRecordRejectsClosed(t *testing.T) {
	tr := &memTransport{}
	e := &Engine{tr: tr, state: StateClosed}
	_, _, err := e.ReadRecord(context.Background())
	require.Error(t, err)
}
