// Package datastream interprets and constructs 3270 data-stream records:
// commands, the write-control character, orders, and structured fields
// (spec.md §4.5). It owns no I/O; the session controller feeds it records
// read off the telnet engine and sends back what it builds.
package datastream

// AID identifies which key the operator pressed to trigger a Read (3270
// Action ID byte), grounded on the teacher's response.go AID table and
// extended with PF/PA key codes the teacher never exercised.
type AID byte

const (
	AIDNone  AID = 0x60
	AIDEnter AID = 0x7D
	AIDClear AID = 0x6D
	AIDPA1   AID = 0x6C
	AIDPA2   AID = 0x6E
	AIDPA3   AID = 0x6B
	AIDPF1   AID = 0xF1
	AIDPF2   AID = 0xF2
	AIDPF3   AID = 0xF3
	AIDPF4   AID = 0xF4
	AIDPF5   AID = 0xF5
	AIDPF6   AID = 0xF6
	AIDPF7   AID = 0xF7
	AIDPF8   AID = 0xF8
	AIDPF9   AID = 0xF9
	AIDPF10  AID = 0x7A
	AIDPF11  AID = 0x7B
	AIDPF12  AID = 0x7C
	AIDPF13  AID = 0xC1
	AIDPF14  AID = 0xC2
	AIDPF15  AID = 0xC3
	AIDPF16  AID = 0xC4
	AIDPF17  AID = 0xC5
	AIDPF18  AID = 0xC6
	AIDPF19  AID = 0xC7
	AIDPF20  AID = 0xC8
	AIDPF21  AID = 0xC9
	AIDPF22  AID = 0x4A
	AIDPF23  AID = 0x4B
	AIDPF24  AID = 0x4C
)

// IsPAOrClear reports whether aid is one of the "no data follows" action
// IDs -- PA1/PA2/PA3/Clear read just the AID with no field data, per the
// teacher's response.go special case.
func (a AID) IsPAOrClear() bool {
	return a == AIDClear || a == AIDPA1 || a == AIDPA2 || a == AIDPA3
}

// Valid reports whether b is a recognized AID byte, for scanning an
// inbound byte stream the way the teacher's readAID does.
func Valid(b byte) bool {
	switch {
	case b == byte(AIDNone):
		return true
	case b >= 0x6b && b <= 0x6e:
		return true
	case b >= 0x7a && b <= 0x7d:
		return true
	case b >= 0x4a && b <= 0x4c:
		return true
	case b >= 0xf1 && b <= 0xf9:
		return true
	case b >= 0xc1 && b <= 0xc9:
		return true
	}
	return false
}
