package telnet

import (
	"bytes"
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/opentn3270/tn3270/errs"
	"github.com/opentn3270/tn3270/transport"
)

// State is a node in the negotiation lifecycle described in spec.md §4.3.
type State int

const (
	StateOffering State = iota
	StateNegotiatingTType
	StateNegotiatingTN3270E
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOffering:
		return "OFFERING"
	case StateNegotiatingTType:
		return "NEGOTIATING_TTYPE"
	case StateNegotiatingTN3270E:
		return "NEGOTIATING_TN3270E"
	case StateActive:
		return "ACTIVE"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Options configures an Engine's negotiation behavior.
type Options struct {
	// TerminalType is the string sent in response to TERMINAL-TYPE SEND,
	// e.g. "IBM-3279-4-E" or "IBM-DYNAMIC".
	TerminalType string

	// RequestTN3270E, when true, attempts to negotiate the TN3270E option
	// (device-type and functions subnegotiation) before falling back to
	// plain TN3270 (BINARY+EOR only).
	RequestTN3270E bool

	// Functions lists the TN3270E function bits this engine wants
	// (FuncBindImage, FuncResponses, FuncSysreq, FuncSCSCtlCodes, ...).
	Functions []byte

	Log *logrus.Entry
}

func (o Options) logger() *logrus.Entry {
	if o.Log != nil {
		return o.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// Negotiated summarizes the outcome of a completed negotiation.
type Negotiated struct {
	TN3270E          bool
	DeviceType       string
	Functions        map[byte]bool
	RefusedOptions   []byte
}

// RecordHeader is the 5-byte TN3270E header prefixed to every record once
// TN3270E is negotiated (RFC 2355 §3).
type RecordHeader struct {
	DataType     byte
	RequestFlag  byte
	ResponseFlag byte
	SeqNumber    uint16
}

func (h RecordHeader) encode() []byte {
	return []byte{h.DataType, h.RequestFlag, h.ResponseFlag,
		byte(h.SeqNumber >> 8), byte(h.SeqNumber)}
}

func decodeHeader(b []byte) RecordHeader {
	return RecordHeader{
		DataType:     b[0],
		RequestFlag:  b[1],
		ResponseFlag: b[2],
		SeqNumber:    uint16(b[3])<<8 | uint16(b[4]),
	}
}

// Engine drives Telnet option negotiation and 3270 record framing over a
// transport.Transport. Negotiate must finish before any other call. After
// that the session controller (spec.md §4.6/§5) calls ReadRecord from its
// reader goroutine and WriteRecord from its dispatch goroutine; neither
// call changes engine state that the other one uses.
type Engine struct {
	tr    transport.Transport
	opts  Options
	log   *logrus.Entry
	state State

	negotiated  Negotiated
	seq         uint16
	pending     map[byte]bool // options we've offered and are awaiting a reply for
	inbuf       bytes.Buffer  // bytes read from the transport, not yet consumed
}

// New constructs an Engine for the given transport.
func New(tr transport.Transport, opts Options) *Engine {
	return &Engine{
		tr:      tr,
		opts:    opts,
		log:     opts.logger(),
		state:   StateOffering,
		pending: make(map[byte]bool),
		negotiated: Negotiated{
			Functions: make(map[byte]bool),
		},
	}
}

// State reports the engine's current lifecycle state.
func (e *Engine) State() State { return e.state }

// Negotiated reports the outcome of a completed Negotiate call.
func (e *Engine) Negotiated() Negotiated { return e.negotiated }

// Negotiate drives telnet/TN3270E option negotiation to completion,
// transitioning Offering -> NegotiatingTType -> [NegotiatingTN3270E] ->
// Active. Returns an *errs.Error(KindNegotiation) if BINARY or EOR is
// refused (both are mandatory for 3270 records to flow), or
// KindProtocol for a malformed subnegotiation.
func (e *Engine) Negotiate(ctx context.Context) error {
	e.state = StateNegotiatingTType

	// Offer the options a 3270 session requires. We DO (ask host to send)
	// terminal-type, EOR, and BINARY, and WILL (offer to ourselves do)
	// BINARY and EOR -- both directions are mandatory per spec.md §4.3.
	offers := [][]byte{
		{IAC, DO, OptTermType},
		{IAC, DO, OptEOR},
		{IAC, DO, OptBinary},
		{IAC, WILL, OptEOR},
		{IAC, WILL, OptBinary},
	}
	if e.opts.RequestTN3270E {
		offers = append(offers, []byte{IAC, DO, OptTN3270E})
	}
	for _, o := range offers {
		e.pending[o[2]] = true
		if err := e.tr.Write(ctx, o); err != nil {
			return err
		}
	}

	haveBinaryIn, haveBinaryOut := false, false
	haveEORIn, haveEOROut := false, false
	ttypeSent := false

	for {
		cmd, opt, sub, err := e.readTelnetUnit(ctx)
		if err != nil {
			return err
		}

		switch cmd {
		case WILL:
			switch opt {
			case OptBinary:
				haveBinaryIn = true
			case OptEOR:
				haveEORIn = true
			case OptTermType, OptTN3270E:
				// Host offering to send; we don't need to ack further
				// here, the SEND subnegotiation drives this.
			default:
				e.tr.Write(ctx, []byte{IAC, DONT, opt})
			}
		case WONT:
			e.negotiated.RefusedOptions = append(e.negotiated.RefusedOptions, opt)
			if opt == OptTN3270E {
				e.opts.RequestTN3270E = false
			}
		case DO:
			switch opt {
			case OptBinary:
				haveBinaryOut = true
			case OptEOR:
				haveEOROut = true
			case OptTermType:
				// nothing to do until SEND subnegotiation arrives
			default:
				e.tr.Write(ctx, []byte{IAC, WONT, opt})
			}
		case DONT:
			e.negotiated.RefusedOptions = append(e.negotiated.RefusedOptions, opt)
		case SB:
			if err := e.handleSubnegotiation(ctx, opt, sub, &ttypeSent); err != nil {
				return err
			}
		}

		if e.refused(OptBinary) || e.refused(OptEOR) {
			break
		}
		if haveBinaryIn && haveBinaryOut && haveEORIn && haveEOROut && ttypeSent {
			if !e.opts.RequestTN3270E || e.negotiated.TN3270E || e.refused(OptTN3270E) {
				break
			}
		}
	}

	if !(haveBinaryIn && haveBinaryOut) || !(haveEORIn && haveEOROut) {
		e.state = StateClosed
		return errs.Negotiation("host refused mandatory BINARY/EOR option")
	}

	e.state = StateActive
	e.log.WithFields(logrus.Fields{
		"tn3270e":    e.negotiated.TN3270E,
		"deviceType": e.negotiated.DeviceType,
	}).Debug("telnet negotiation complete")
	return nil
}

func (e *Engine) refused(opt byte) bool {
	for _, o := range e.negotiated.RefusedOptions {
		if o == opt {
			return true
		}
	}
	return false
}

// handleSubnegotiation processes the body of an IAC SB <opt> ... IAC SE
// sequence already split into opt and sub (sub excludes the terminating
// IAC SE).
func (e *Engine) handleSubnegotiation(ctx context.Context, opt byte, sub []byte, ttypeSent *bool) error {
	switch opt {
	case OptTermType:
		if len(sub) < 1 {
			return errs.Protocol("empty TERMINAL-TYPE subnegotiation")
		}
		if sub[0] == TTypeSend {
			reply := append([]byte{IAC, SB, OptTermType, TTypeIS},
				[]byte(e.opts.TerminalType)...)
			reply = append(reply, IAC, SE)
			if err := e.tr.Write(ctx, reply); err != nil {
				return err
			}
			*ttypeSent = true
		}
		return nil
	case OptTN3270E:
		return e.handleTN3270ESub(ctx, sub)
	default:
		return errs.Protocol("unexpected subnegotiation for option")
	}
}

func (e *Engine) handleTN3270ESub(ctx context.Context, sub []byte) error {
	if len(sub) < 1 {
		return errs.Protocol("empty TN3270E subnegotiation")
	}
	switch sub[0] {
	case TN3270ESend:
		if len(sub) < 2 {
			return errs.Protocol("malformed TN3270E SEND")
		}
		if sub[1] == TN3270EDeviceType {
			devType := e.opts.TerminalType
			reply := []byte{IAC, SB, OptTN3270E, TN3270EDeviceType, TN3270ERequest}
			reply = append(reply, []byte(devType)...)
			reply = append(reply, IAC, SE)
			return e.tr.Write(ctx, reply)
		}
		return nil
	case TN3270EDeviceType:
		if len(sub) < 2 {
			return errs.Protocol("malformed TN3270E DEVICE-TYPE reply")
		}
		switch sub[1] {
		case TN3270EIs:
			// Body: IS <device-type> CONNECT <lu-name>
			body := sub[2:]
			if i := bytes.IndexByte(body, TN3270EConnect); i >= 0 {
				e.negotiated.DeviceType = string(body[:i])
			} else {
				e.negotiated.DeviceType = string(body)
			}
			e.negotiated.TN3270E = true
			// Follow up by requesting functions.
			reply := []byte{IAC, SB, OptTN3270E, TN3270EFunctions, TN3270ERequest}
			reply = append(reply, e.opts.Functions...)
			reply = append(reply, IAC, SE)
			return e.tr.Write(ctx, reply)
		case TN3270ERejected:
			e.opts.RequestTN3270E = false
			e.negotiated.RefusedOptions = append(e.negotiated.RefusedOptions, OptTN3270E)
			return nil
		}
		return nil
	case TN3270EFunctions:
		if len(sub) < 2 {
			return errs.Protocol("malformed TN3270E FUNCTIONS reply")
		}
		switch sub[1] {
		case TN3270EIs:
			for _, f := range sub[2:] {
				e.negotiated.Functions[f] = true
			}
		case TN3270ERequest:
			// Host is proposing its own function set; accept it as-is.
			for _, f := range sub[2:] {
				e.negotiated.Functions[f] = true
			}
			reply := []byte{IAC, SB, OptTN3270E, TN3270EFunctions, TN3270EIs}
			reply = append(reply, sub[2:]...)
			reply = append(reply, IAC, SE)
			return e.tr.Write(ctx, reply)
		}
		return nil
	}
	return nil
}

// readTelnetUnit reads exactly one telnet command unit from the
// transport: either a two-byte IAC <cmd>, a three-byte IAC <cmd> <opt>, or
// a full IAC SB <opt> ... IAC SE subnegotiation (whose body is returned in
// sub, IAC-unescaped).
func (e *Engine) readTelnetUnit(ctx context.Context) (cmd, opt byte, sub []byte, err error) {
	b0, err := e.readByte(ctx)
	if err != nil {
		return 0, 0, nil, err
	}
	if b0 != IAC {
		// Stray non-telnet byte before negotiation completes; ignore it
		// (a chatty host may send a banner before options are settled).
		return e.readTelnetUnit(ctx)
	}

	cmd, err = e.readByte(ctx)
	if err != nil {
		return 0, 0, nil, err
	}

	switch cmd {
	case WILL, WONT, DO, DONT:
		opt, err = e.readByte(ctx)
		return cmd, opt, nil, err
	case SB:
		opt, err = e.readByte(ctx)
		if err != nil {
			return 0, 0, nil, err
		}
		body, err := e.readUntilSE(ctx)
		return SB, opt, body, err
	case IAC:
		// Escaped 0xFF data byte seen outside of 3270 record reading;
		// harmless during negotiation, ignore and read the next unit.
		return e.readTelnetUnit(ctx)
	default:
		return e.readTelnetUnit(ctx)
	}
}

func (e *Engine) readUntilSE(ctx context.Context) ([]byte, error) {
	var body []byte
	for {
		b, err := e.readByte(ctx)
		if err != nil {
			return nil, err
		}
		if b == IAC {
			b2, err := e.readByte(ctx)
			if err != nil {
				return nil, err
			}
			if b2 == SE {
				return body, nil
			}
			if b2 == IAC {
				body = append(body, IAC)
				continue
			}
			return nil, errs.Protocol("malformed subnegotiation terminator")
		}
		body = append(body, b)
	}
}

func (e *Engine) readByte(ctx context.Context) (byte, error) {
	if e.inbuf.Len() == 0 {
		buf := make([]byte, 256)
		n, err := e.tr.Read(ctx, buf)
		if err != nil {
			return 0, err
		}
		e.inbuf.Write(buf[:n])
	}
	return e.inbuf.ReadByte()
}

// EscapeIAC doubles every 0xFF byte in data so it survives telnet framing
// unchanged (RFC 854).
func EscapeIAC(data []byte) []byte {
	if bytes.IndexByte(data, IAC) == -1 {
		return data
	}
	out := make([]byte, 0, len(data)+4)
	for _, b := range data {
		out = append(out, b)
		if b == IAC {
			out = append(out, IAC)
		}
	}
	return out
}

// UnescapeIAC collapses doubled 0xFF bytes back to single bytes. It does
// not stop at an EOR marker; callers delimit records before unescaping.
func UnescapeIAC(data []byte) []byte {
	if bytes.IndexByte(data, IAC) == -1 {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		out = append(out, data[i])
		if data[i] == IAC && i+1 < len(data) && data[i+1] == IAC {
			i++
		}
	}
	return out
}

// WriteRecord frames data as one 3270 record: IAC-escaped payload
// (prefixed with the TN3270E header, if negotiated), terminated by
// IAC EOR.
func (e *Engine) WriteRecord(ctx context.Context, data []byte, header *RecordHeader) error {
	if e.state != StateActive {
		return errs.SessionClosed()
	}
	var out bytes.Buffer
	if e.negotiated.TN3270E && header != nil {
		out.Write(header.encode())
	}
	out.Write(EscapeIAC(data))
	out.Write([]byte{IAC, EOR})
	return e.tr.Write(ctx, out.Bytes())
}

// ReadRecord reads one complete 3270 record delimited by IAC EOR,
// unescaping IAC IAC pairs and splitting off the TN3270E header when
// negotiated. A non-3270 telnet command unit encountered mid-record
// (renegotiation) is processed and skipped transparently.
func (e *Engine) ReadRecord(ctx context.Context) ([]byte, *RecordHeader, error) {
	if e.state != StateActive {
		return nil, nil, errs.SessionClosed()
	}

	var raw []byte
	for {
		b, err := e.readByte(ctx)
		if err != nil {
			return nil, nil, err
		}
		if b != IAC {
			raw = append(raw, b)
			continue
		}
		b2, err := e.readByte(ctx)
		if err != nil {
			return nil, nil, err
		}
		switch b2 {
		case IAC:
			raw = append(raw, IAC)
		case EOR:
			return e.splitHeader(raw)
		default:
			// An option renegotiation arrived mid-stream; handle it as
			// best-effort and continue accumulating the record.
			if err := e.handleMidStreamCommand(ctx, b2); err != nil {
				return nil, nil, err
			}
		}
	}
}

func (e *Engine) splitHeader(raw []byte) ([]byte, *RecordHeader, error) {
	if !e.negotiated.TN3270E {
		return raw, nil, nil
	}
	if len(raw) < 5 {
		return nil, nil, errs.Protocol("record shorter than TN3270E header")
	}
	h := decodeHeader(raw[:5])
	return raw[5:], &h, nil
}

func (e *Engine) handleMidStreamCommand(ctx context.Context, cmd byte) error {
	switch cmd {
	case WILL, WONT, DO, DONT:
		if _, err := e.readByte(ctx); err != nil {
			return err
		}
		return nil
	case SB:
		if _, err := e.readByte(ctx); err != nil {
			return err
		}
		_, err := e.readUntilSE(ctx)
		return err
	default:
		return nil
	}
}

// Close transitions the engine to Closed. Idempotent.
func (e *Engine) Close() {
	e.state = StateClosed
}
