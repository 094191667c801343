package datastream

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opentn3270/tn3270/errs"
	"github.com/opentn3270/tn3270/ps"
)

// GECharSet marks a Cell's CharacterSet field as "interpret via the
// graphic-escape codepage table", the tag a Graphic Escape order leaves
// behind since a Cell holds one byte and no inline escape marker
// (spec.md §4.5's GE order).
const GECharSet byte = 0x01

// recognizedOrders is the set of order bytes this interpreter dispatches.
// Any other byte below 0x40 -- the control range real 3270 data streams
// reserve for orders -- is a malformed order rather than data and aborts
// the record, except NUL (0x00), which is data (Read Buffer emits unused
// positions as NULs); bytes at or above 0x40 are always plain data.
var recognizedOrders = map[byte]bool{
	byte(OrderPT):  true,
	byte(OrderGE):  true,
	byte(OrderSBA): true,
	byte(OrderEUA): true,
	byte(OrderIC):  true,
	byte(OrderSF):  true,
	byte(OrderSA):  true,
	byte(OrderSFE): true,
	byte(OrderMF):  true,
	byte(OrderRA):  true,
}

// Interpreter ties a presentation space to the command/order/structured
// field grammar (spec.md §4.5). It holds no transport state; the session
// controller calls ApplyRecord with full records off the telnet engine
// and, for Read commands, transmits back whatever ApplyRecord returns.
type Interpreter struct {
	Space         *ps.PresentationSpace
	DefaultSize   ps.Size
	AlternateSize ps.Size

	// FileTransferCapable, when true, advertises IND$FILE support in a
	// Query Reply. Set by the session controller from its own
	// configuration; the interpreter itself has no opinion on whether a
	// deployment wants file transfer enabled.
	FileTransferCapable bool

	// OnInboundFileChunk, when set, receives the payload of every inbound
	// Outbound-3270DS structured field (spec.md §4.5/§4.6) -- an
	// IND$FILE download chunk, empty for the end-of-transfer marker. Set
	// by the session controller; the interpreter has no opinion on where
	// the bytes end up.
	OnInboundFileChunk func(payload []byte)

	replyMode  ReplyMode
	lastAID    AID
	currentExt ps.ExtendedAttrs
	log        *logrus.Entry
}

// New builds an Interpreter over space, using defaultSize/alternateSize
// for EW/EWA.
func New(space *ps.PresentationSpace, defaultSize, alternateSize ps.Size, log *logrus.Entry) *Interpreter {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Interpreter{
		Space:         space,
		DefaultSize:   defaultSize,
		AlternateSize: alternateSize,
		replyMode:     ReplyModeField,
		log:           log,
	}
}

// SetLastAID records the AID the session controller is about to send, so
// a later RB/RM/RMA command embedded in the same turn (or the structured
// Outbound-3270DS path) reports it correctly.
func (in *Interpreter) SetLastAID(aid AID) { in.lastAID = aid }

// ApplyRecord interprets one full data-stream record. For the three Read
// commands it returns the outbound response payload to transmit; for
// every other command it returns nil and mutates the presentation space
// in place.
func (in *Interpreter) ApplyRecord(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errs.Protocol("empty data-stream record")
	}
	cmd := Command(data[0])
	switch cmd {
	case CmdNOP:
		return nil, nil
	case CmdWrite:
		return nil, in.applyWrite(data[1:], false, ps.Size{})
	case CmdEraseWrite:
		return nil, in.applyWrite(data[1:], true, in.DefaultSize)
	case CmdEraseWriteAlt:
		return nil, in.applyWrite(data[1:], true, in.AlternateSize)
	case CmdEraseAllUnprotect:
		in.Space.EraseAllUnprotected()
		return nil, nil
	case CmdReadBuffer:
		return in.BuildReadBuffer(), nil
	case CmdReadModified:
		return in.BuildReadModified(false), nil
	case CmdReadModifiedAll:
		return in.BuildReadModified(true), nil
	case CmdWriteStructured:
		return in.applyStructuredFields(data[1:])
	default:
		return nil, errs.Protocol(fmt.Sprintf("unrecognized command 0x%02X", data[0]))
	}
}

func (in *Interpreter) applyWrite(rest []byte, erase bool, size ps.Size) error {
	if erase {
		in.Space.Resize(size)
	}
	if len(rest) == 0 {
		return errs.Protocol("write record missing WCC")
	}
	wcc := WCC(rest[0])
	in.currentExt = ps.ExtendedAttrs{}
	if err := in.applyOrders(rest[1:]); err != nil {
		return err
	}
	if wcc.ResetMDT() {
		in.Space.ResetAllMDT()
	}
	if wcc.KeyboardRestore() {
		in.Space.UnlockKeyboard()
	}
	if wcc.SoundAlarm() {
		in.log.Debug("WCC requested sound-alarm (no-op: no terminal bell to ring)")
	}
	if wcc.StartPrinter() {
		in.log.Debug("WCC requested start-printer (no-op: no attached printer session)")
	}
	return nil
}

func (in *Interpreter) applyOrders(b []byte) error {
	addr := in.Space.Cursor()
	dataWritten := false
	i := 0
	for i < len(b) {
		o := b[i]
		if o < 0x40 && o != 0x00 && !recognizedOrders[o] {
			return errs.Protocol(fmt.Sprintf("unrecognized order byte 0x%02X", o))
		}

		switch Order(o) {
		case OrderSBA:
			if i+2 >= len(b) {
				return errs.Protocol("SBA truncated")
			}
			a, _ := ps.DecodeAddr([2]byte{b[i+1], b[i+2]})
			addr = a
			dataWritten = false
			i += 3

		case OrderSF:
			if i+1 >= len(b) {
				return errs.Protocol("SF truncated")
			}
			in.Space.WriteFieldAttr(addr, b[i+1], ps.ExtendedAttrs{})
			addr = wrapAddr(addr+1, in.Space)
			i += 2
			in.currentExt = ps.ExtendedAttrs{}

		case OrderSFE:
			if i+1 >= len(b) {
				return errs.Protocol("SFE truncated")
			}
			count := int(b[i+1])
			pairs, consumed, err := parseAttrPairs(b[i+2:], count)
			if err != nil {
				return err
			}
			attrByte, ext := pairsToField(pairs)
			in.Space.WriteFieldAttr(addr, attrByte, ext)
			addr = wrapAddr(addr+1, in.Space)
			i += 2 + consumed
			in.currentExt = ps.ExtendedAttrs{}

		case OrderSA:
			if i+2 >= len(b) {
				return errs.Protocol("SA truncated")
			}
			applyAttrPair(&in.currentExt, b[i+1], b[i+2])
			i += 3

		case OrderIC:
			in.Space.SetCursor(addr)
			dataWritten = false
			i++

		case OrderPT:
			// spec.md §4.5: PT following a data write nulls the
			// remainder of the field being left before tabbing.
			if dataWritten {
				in.nullFieldTail(addr)
			}
			addr = in.Space.NextUnprotected(addr)
			dataWritten = false
			i++

		case OrderRA:
			if i+3 >= len(b) {
				return errs.Protocol("RA truncated")
			}
			stop, _ := ps.DecodeAddr([2]byte{b[i+1], b[i+2]})
			consumed := 3
			fillByte := b[i+3]
			charSet := byte(0)
			if fillByte == graphicEscapeMarker && i+4 < len(b) {
				fillByte = b[i+4]
				charSet = GECharSet
				consumed = 4
			}
			addr = in.repeatToAddress(addr, stop, fillByte, charSet)
			i += 1 + consumed

		case OrderEUA:
			if i+2 >= len(b) {
				return errs.Protocol("EUA truncated")
			}
			stop, _ := ps.DecodeAddr([2]byte{b[i+1], b[i+2]})
			in.eraseUnprotectedToAddress(addr, stop)
			i += 3

		case OrderMF:
			if i+1 >= len(b) {
				return errs.Protocol("MF truncated")
			}
			count := int(b[i+1])
			pairs, consumed, err := parseAttrPairs(b[i+2:], count)
			if err != nil {
				return err
			}
			f := in.Space.FindField(addr)
			if f.AttrAddr >= 0 {
				attrByte, ext := pairsToField(pairs)
				in.Space.WriteFieldAttr(f.AttrAddr, attrByte, ext)
			}
			i += 2 + consumed

		case OrderGE:
			if i+1 >= len(b) {
				return errs.Protocol("GE truncated")
			}
			ext := in.currentExt
			ext.CharSet = bytePtr(GECharSet)
			in.Space.WriteCell(addr, b[i+1], ext)
			addr = wrapAddr(addr+1, in.Space)
			dataWritten = true
			i += 2

		default:
			// plain data byte
			in.Space.WriteCell(addr, o, in.currentExt)
			addr = wrapAddr(addr+1, in.Space)
			dataWritten = true
			i++
		}
	}
	return nil
}

const graphicEscapeMarker = 0x0E

func wrapAddr(addr int, space *ps.PresentationSpace) int {
	n := space.Size().Positions()
	addr %= n
	if addr < 0 {
		addr += n
	}
	return addr
}

func bytePtr(b byte) *byte { return &b }

// repeatToAddress fills from start up to but not including stop
// (spec.md §8 scenario 4), wrapping once through the whole buffer if
// stop equals start (spec.md §8 boundary behavior: "RA stop address
// equal to current address repeats once, filling the entire buffer").
func (in *Interpreter) repeatToAddress(start, stop int, fillByte, charSet byte) int {
	n := in.Space.Size().Positions()
	ext := in.currentExt
	if charSet != 0 {
		ext.CharSet = bytePtr(charSet)
	}
	if start == stop {
		for a := 0; a < n; a++ {
			in.Space.WriteCell(a, fillByte, ext)
		}
		return stop
	}
	for a := start; a != stop; a = (a + 1) % n {
		in.Space.WriteCell(a, fillByte, ext)
	}
	return stop
}

// nullFieldTail fills the current field from addr through its last data
// position with nulls, for a PT order that leaves a field data was just
// written into (spec.md §4.5).
func (in *Interpreter) nullFieldTail(addr int) {
	f := in.Space.FindField(addr)
	if f.Length == 0 {
		return
	}
	n := in.Space.Size().Positions()
	end := (f.StartAddr + f.Length - 1) % n
	for a := addr; ; a = (a + 1) % n {
		in.Space.WriteCell(a, 0x00, ps.ExtendedAttrs{})
		if a == end {
			break
		}
	}
}

func (in *Interpreter) eraseUnprotectedToAddress(start, stop int) {
	n := in.Space.Size().Positions()
	for a := start; ; a = (a + 1) % n {
		f := in.Space.FindField(a)
		if !f.Protected {
			in.Space.WriteCell(a, 0x00, ps.ExtendedAttrs{})
		}
		if a == stop {
			break
		}
	}
}

// parseAttrPairs reads count (type, value) pairs used by SFE/MF,
// returning them plus the number of bytes consumed.
func parseAttrPairs(b []byte, count int) ([][2]byte, int, error) {
	need := count * 2
	if len(b) < need {
		return nil, 0, errs.Protocol("attribute pair list truncated")
	}
	pairs := make([][2]byte, count)
	for i := 0; i < count; i++ {
		pairs[i] = [2]byte{b[i*2], b[i*2+1]}
	}
	return pairs, need, nil
}

const xaBasicAttribute byte = 0xC0

func pairsToField(pairs [][2]byte) (byte, ps.ExtendedAttrs) {
	var attrByte byte
	var ext ps.ExtendedAttrs
	for _, p := range pairs {
		if p[0] == xaBasicAttribute {
			attrByte = p[1]
			continue
		}
		applyAttrPair(&ext, p[0], p[1])
	}
	return attrByte, ext
}

func applyAttrPair(ext *ps.ExtendedAttrs, typ, value byte) {
	switch typ {
	case XAHighlight:
		ext.Highlight = bytePtr(value)
	case XAForeground:
		ext.Foreground = bytePtr(value)
	case XABackground:
		ext.Background = bytePtr(value)
	case XACharSet:
		ext.CharSet = bytePtr(value)
	}
}
