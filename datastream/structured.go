package datastream

import (
	"encoding/binary"

	"github.com/opentn3270/tn3270/errs"
)

// SFID identifies a structured field's type, the byte following its
// 2-byte length (spec.md §4.5's "selected" structured-field subset).
type SFID byte

const (
	SFReadPartition     SFID = 0x01
	SFEraseReset        SFID = 0x03
	SFSetReplyMode      SFID = 0x09
	SFCreatePartition   SFID = 0x0C
	SFActivatePartition SFID = 0x0E
	SFOutbound3270DS    SFID = 0x40
	SFQueryReply        SFID = 0x81
)

// Read-Partition subtypes (payload[1], after the partition-id byte in
// payload[0]).
const (
	RPQuery     byte = 0x02
	RPQueryList byte = 0x03
)

// ReplyMode selects how RM/RMA format their response, set by
// Set-Reply-Mode.
type ReplyMode byte

const (
	ReplyModeField         ReplyMode = 0x00
	ReplyModeExtendedField ReplyMode = 0x01
	ReplyModeCharacter     ReplyMode = 0x02
)

// Query-Reply query codes (GA23-0059 chapter 7, the subset spec.md §4.5
// names).
const (
	QCodeSummary                byte = 0x80
	QCodeUsableArea              byte = 0x81
	QCodeAlphanumericPartitions  byte = 0x84
	QCodeCharacterSets           byte = 0x85
	QCodeColor                   byte = 0x86
	QCodeHighlight               byte = 0x87
	QCodeReplyModes              byte = 0x88
	QCodeImplicitPartition       byte = 0xA6
	QCodeIBMFileTransfer         byte = 0x95
)

func (in *Interpreter) applyStructuredFields(data []byte) ([]byte, error) {
	var response []byte
	i := 0
	for i < len(data) {
		if i+2 > len(data) {
			return nil, errs.Protocol("structured field length truncated")
		}
		length := int(binary.BigEndian.Uint16(data[i : i+2]))
		if length == 0 {
			length = len(data) - i
		}
		if i+length > len(data) || length < 3 {
			return nil, errs.Protocol("structured field length out of range")
		}
		id := SFID(data[i+2])
		payload := data[i+3 : i+length]

		switch id {
		case SFReadPartition:
			reply, err := in.handleReadPartition(payload)
			if err != nil {
				return nil, err
			}
			response = append(response, reply...)

		case SFEraseReset:
			in.Space.Resize(in.DefaultSize)

		case SFSetReplyMode:
			if len(payload) >= 2 {
				in.replyMode = ReplyMode(payload[1])
			}

		case SFCreatePartition, SFActivatePartition:
			in.log.Debug("partition structured field accepted as a no-op: only the implicit partition is modeled")

		case SFOutbound3270DS:
			if in.OnInboundFileChunk != nil {
				in.OnInboundFileChunk(payload)
			} else {
				in.log.Debug("received Outbound-3270DS structured field with no file-transfer handler registered")
			}

		default:
			return nil, errs.Protocol("unrecognized structured field id")
		}

		i += length
	}
	return response, nil
}

func (in *Interpreter) handleReadPartition(payload []byte) ([]byte, error) {
	if len(payload) < 2 {
		return nil, errs.Protocol("read-partition structured field truncated")
	}
	subtype := payload[1]
	switch subtype {
	case RPQuery:
		return in.BuildQueryReply(in.allQueryCodes()...), nil
	case RPQueryList:
		codes := payload[2:]
		if len(codes) == 0 {
			codes = in.allQueryCodes()
		}
		return in.BuildQueryReply(codes...), nil
	default:
		return nil, errs.Protocol("unrecognized read-partition subtype")
	}
}

func (in *Interpreter) allQueryCodes() []byte {
	codes := []byte{
		QCodeUsableArea,
		QCodeAlphanumericPartitions,
		QCodeCharacterSets,
		QCodeColor,
		QCodeHighlight,
		QCodeReplyModes,
		QCodeImplicitPartition,
	}
	if in.FileTransferCapable {
		codes = append(codes, QCodeIBMFileTransfer)
	}
	return codes
}

func sfBytes(id SFID, qcode byte, body []byte) []byte {
	total := 3 + 1 + len(body) // length field + id + qcode + body
	out := make([]byte, 0, total)
	out = append(out, 0, 0, byte(id), qcode)
	out = append(out, body...)
	binary.BigEndian.PutUint16(out[0:2], uint16(len(out)))
	return out
}

// BuildQueryReply assembles a Summary query reply plus one reply per
// requested query code, the response to a Read-Partition Query(-List)
// (spec.md §4.5).
func (in *Interpreter) BuildQueryReply(codes ...byte) []byte {
	var out []byte
	out = append(out, sfBytes(SFQueryReply, QCodeSummary, codes)...)
	for _, c := range codes {
		out = append(out, in.buildQueryReplyBody(c)...)
	}
	return out
}

func (in *Interpreter) buildQueryReplyBody(code byte) []byte {
	switch code {
	case QCodeUsableArea:
		size := in.Space.Size()
		body := []byte{
			0x01, 0x00, // 12/14-bit addressing flags, unit = cells
			byte(size.Cols >> 8), byte(size.Cols),
			byte(size.Rows >> 8), byte(size.Rows),
		}
		return sfBytes(SFQueryReply, QCodeUsableArea, body)
	case QCodeAlphanumericPartitions:
		size := in.Space.Size()
		body := []byte{0x00, byte(size.Rows), byte(size.Cols)}
		return sfBytes(SFQueryReply, QCodeAlphanumericPartitions, body)
	case QCodeCharacterSets:
		body := []byte{0x00, 0xF1} // default character set id
		return sfBytes(SFQueryReply, QCodeCharacterSets, body)
	case QCodeColor:
		body := []byte{0x00, 0x08} // 8 colors supported
		return sfBytes(SFQueryReply, QCodeColor, body)
	case QCodeHighlight:
		body := []byte{0x02, 0x00, 0x00, 0xF1, 0xF1} // default + blink
		return sfBytes(SFQueryReply, QCodeHighlight, body)
	case QCodeReplyModes:
		body := []byte{byte(ReplyModeField), byte(ReplyModeExtendedField), byte(ReplyModeCharacter)}
		return sfBytes(SFQueryReply, QCodeReplyModes, body)
	case QCodeImplicitPartition:
		size := in.Space.Size()
		body := []byte{
			0x00, 0x00,
			byte(size.Cols >> 8), byte(size.Cols),
			byte(size.Rows >> 8), byte(size.Rows),
		}
		return sfBytes(SFQueryReply, QCodeImplicitPartition, body)
	case QCodeIBMFileTransfer:
		return sfBytes(SFQueryReply, QCodeIBMFileTransfer, []byte{0x01})
	default:
		return nil
	}
}
