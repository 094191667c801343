package session

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentn3270/tn3270/codec"
	"github.com/opentn3270/tn3270/datastream"
	"github.com/opentn3270/tn3270/ps"
	"github.com/opentn3270/tn3270/session/filexfer"
	"github.com/opentn3270/tn3270/telnet"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := New(Options{Codepage: codec.CP037, Size: ps.Size24x80, Alt: ps.Size43x80})
	space := ps.New(ps.Size24x80, nil)
	s.in = datastream.New(space, ps.Size24x80, ps.Size43x80, nil)
	s.xfer = filexfer.New(space, false, nil)
	runCmdDispatcher(t, s)
	t.Cleanup(func() { Unregister(s.id) })
	return s
}

// runCmdDispatcher drains s.cmds on its own goroutine for the lifetime of
// the test, standing in for the dispatch half of Session.loop so
// SendKeys/SendAID's Submit-routed closures actually run without a full
// Connect/ReadRecord loop.
func runCmdDispatcher(t *testing.T, s *Session) {
	t.Helper()
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case fn := <-s.cmds:
				fn()
			case <-stop:
				return
			}
		}
	}()
	t.Cleanup(func() { close(stop) })
}

func TestNewRegistersSession(t *testing.T) {
	s := newTestSession(t)
	found, ok := Lookup(s.ID())
	require.True(t, ok)
	assert.Same(t, s, found)
}

func TestSendKeysHonorsFieldRules(t *testing.T) {
	s := newTestSession(t)
	s.in.Space.WriteFieldAttr(0, ps.AttrProtected, ps.ExtendedAttrs{})
	s.in.Space.WriteFieldAttr(10, 0, ps.ExtendedAttrs{})
	s.in.Space.SetCursor(11)

	err := s.SendKeys("HI")
	require.NoError(t, err)

	cells := s.in.Space.Cells()
	want, _ := codec.CP037.Encode("HI")
	assert.Equal(t, want[0], cells[11].CodePoint)
	assert.Equal(t, want[1], cells[12].CodePoint)
}

func TestSendKeysIntoProtectedFieldFails(t *testing.T) {
	s := newTestSession(t)
	s.in.Space.WriteFieldAttr(0, ps.AttrProtected, ps.ExtendedAttrs{})
	s.in.Space.SetCursor(1)

	err := s.SendKeys("X")
	require.Error(t, err)
}

func TestScreenTextDecodesRow(t *testing.T) {
	s := newTestSession(t)
	want, err := codec.CP037.Encode("HELLO")
	require.NoError(t, err)
	for i, b := range want {
		s.in.Space.WriteCell(i, b, ps.ExtendedAttrs{})
	}

	text := s.ScreenText(0)
	assert.Contains(t, text, "HELLO")
}

func TestValidateFieldsMustChange(t *testing.T) {
	rules := Rules{5: {MustChange: true, ErrorText: "must change"}}
	original := map[int]string{5: "old"}

	_, msg, ok := ValidateFields(rules, original, map[int]string{5: "old"})
	assert.False(t, ok)
	assert.Equal(t, "must change", msg)

	_, _, ok = ValidateFields(rules, original, map[int]string{5: "new"})
	assert.True(t, ok)
}

func TestValidateFieldsValidator(t *testing.T) {
	rules := Rules{5: {Validator: IsInteger}}
	_, _, ok := ValidateFields(rules, nil, map[int]string{5: "abc"})
	assert.False(t, ok)

	_, _, ok = ValidateFields(rules, nil, map[int]string{5: "42"})
	assert.True(t, ok)
}

func TestFileTransferStateDefaultsIdle(t *testing.T) {
	s := newTestSession(t)
	assert.Equal(t, FileTransferIdle, s.FileTransferState())
}

// memTransport is an in-memory transport.Transport: bytes written by the
// engine land in toHost; bytes enqueued via feed() are returned by Read,
// simulating the remote host's side of the wire.
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

// negotiatedTN3270ESession builds a Session whose telnet engine has
// completed TN3270E negotiation with the RESPONSES function active,
// wired to tr so the test can inspect what gets transmitted.
func negotiatedTN3270ESession(t *testing.T, tr *memTransport) *Session {
	t.Helper()
	tr.feed([]byte{
		telnet.IAC, telnet.WILL, telnet.OptTermType,
		telnet.IAC, telnet.WILL, telnet.OptEOR,
		telnet.IAC, telnet.WILL, telnet.OptBinary,
		telnet.IAC, telnet.DO, telnet.OptEOR,
		telnet.IAC, telnet.DO, telnet.OptBinary,
		telnet.IAC, telnet.WILL, telnet.OptTN3270E,
		telnet.IAC, telnet.SB, telnet.OptTermType, telnet.TTypeSend, telnet.IAC, telnet.SE,
		telnet.IAC, telnet.SB, telnet.OptTN3270E, telnet.TN3270EFunctions, telnet.TN3270ERequest, telnet.FuncResponses, telnet.IAC, telnet.SE,
		telnet.IAC, telnet.SB, telnet.OptTN3270E, telnet.TN3270ESend, telnet.TN3270EDeviceType, telnet.IAC, telnet.SE,
		telnet.IAC, telnet.SB, telnet.OptTN3270E, telnet.TN3270EDeviceType, telnet.TN3270EIs,
	})
	tr.fromHost = append(tr.fromHost, []byte("IBM-3278-2-E")...)
	tr.fromHost = append(tr.fromHost, telnet.TN3270EConnect)
	tr.fromHost = append(tr.fromHost, []byte("LU1")...)
	tr.fromHost = append(tr.fromHost, telnet.IAC, telnet.SE)

	eng := telnet.New(tr, telnet.Options{TerminalType: "IBM-3278-2-E", RequestTN3270E: true, Functions: []byte{telnet.FuncResponses}})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, eng.Negotiate(ctx))
	require.True(t, eng.Negotiated().Functions[telnet.FuncResponses])

	s := New(Options{Codepage: codec.CP037, Size: ps.Size24x80, Alt: ps.Size43x80})
	space := ps.New(ps.Size24x80, nil)
	s.in = datastream.New(space, ps.Size24x80, ps.Size43x80, nil)
	s.xfer = filexfer.New(space, false, nil)
	s.eng = eng
	t.Cleanup(func() { Unregister(s.id) })
	return s
}

// A malformed order inside a Write record, once TN3270E RESPONSES is
// negotiated and the inbound header asked for a response, locks the
// keyboard and transmits a 5-byte TN3270E negative response record
// (spec.md §4.5's ProtocolError row).
func TestHandleRecordSendsNegativeResponseOnProtocolError(t *testing.T) {
	tr := &memTransport{}
	s := negotiatedTN3270ESession(t, tr)

	before := len(tr.toHost)
	header := &telnet.RecordHeader{RequestFlag: telnet.ResponseFlagAlwaysResp}
	malformed := []byte{byte(datastream.CmdWrite), 0x00, 0x3F}

	err := s.handleRecord(context.Background(), malformed, header)
	require.Error(t, err)
	assert.True(t, s.in.Space.KeyboardLocked())

	sent := tr.toHost[before:]
	unescaped := telnet.UnescapeIAC(bytes.TrimSuffix(sent, []byte{telnet.IAC, telnet.EOR}))
	require.Len(t, unescaped, 6) // 5-byte header + 1-byte negative-response body
	assert.Equal(t, telnet.DataTypeResponse, unescaped[0])
	assert.Equal(t, telnet.ResponseFlagErrorResp, unescaped[2])
	assert.Equal(t, telnet.NegativeResponse, unescaped[5])
}

// When RESPONSES wasn't negotiated, a malformed record still locks the
// keyboard but sends nothing.
func TestHandleRecordNoResponseRecordWithoutFuncResponses(t *testing.T) {
	tr := &memTransport{}
	s := newTestSession(t)
	eng := telnet.New(tr, telnet.Options{})
	s.eng = eng

	before := len(tr.toHost)
	malformed := []byte{byte(datastream.CmdWrite), 0x00, 0x3F}
	err := s.handleRecord(context.Background(), malformed, nil)
	require.Error(t, err)
	assert.True(t, s.in.Space.KeyboardLocked())
	assert.Equal(t, before, len(tr.toHost))
}
