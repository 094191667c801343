// Package telnet implements RFC 854/855 IAC framing plus the TN3270E
// options needed to carry 3270 data streams (RFC 1576/2355): BINARY,
// END-OF-RECORD, TERMINAL-TYPE, and TN3270E device-type/function
// subnegotiation (spec.md §4.3).
package telnet

// Telnet command bytes (RFC 854). Constant names and the full command set
// are grounded on the IAC/option constant table in
// other_examples/ed09a400_rcornwell-S370__telnet-telnet.go, which (unlike
// the teacher library's inlined magic numbers in telnet.go) names every
// byte the negotiation state machine needs.
const (
	IAC  byte = 255 // interpret as command
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250 // subnegotiation begin
	GA   byte = 249 // go ahead
	EL   byte = 248
	EC   byte = 247
	AYT  byte = 246
	AO   byte = 245
	IP   byte = 244 // interrupt process
	BRK  byte = 243
	SE   byte = 240 // subnegotiation end
	EOR  byte = 239 // end of record (RFC 885), only valid after IAC
	NOP  byte = 241
)

// Telnet option codes relevant to TN3270(E).
const (
	OptBinary   byte = 0  // RFC 856
	OptEcho     byte = 1
	OptSGA      byte = 3
	OptTermType byte = 24 // RFC 1091
	OptEOR      byte = 25 // RFC 885
	OptNAWS     byte = 31
	OptTN3270E  byte = 40 // RFC 1647 / RFC 2355
)

// TERMINAL-TYPE subnegotiation sub-commands.
const (
	TTypeIS   byte = 0
	TTypeSend byte = 1
)

// TN3270E subnegotiation sub-commands (RFC 2355 §4).
const (
	TN3270EAssociate    byte = 0
	TN3270EConnect      byte = 1
	TN3270EDeviceType   byte = 2
	TN3270EFunctions    byte = 3
	TN3270EIs           byte = 4
	TN3270EReason       byte = 5
	TN3270ERejected     byte = 6
	TN3270ERequest      byte = 7
	TN3270ESend         byte = 8
)

// TN3270E function bits negotiable via FUNCTIONS (RFC 2355 §4.4).
const (
	FuncBindImage    byte = 0
	FuncDataStreamCtl byte = 1
	FuncResponses    byte = 2
	FuncSCSCtlCodes  byte = 3
	FuncSysreq       byte = 4
)

// TN3270E data-type values carried in the 5-byte record header.
const (
	DataType3270Data    byte = 0
	DataTypeSCSData     byte = 1
	DataTypeResponse    byte = 2
	DataTypeBindImage   byte = 3
	DataTypeUnbind      byte = 4
	DataTypeNVTData     byte = 5
	DataTypeRequest     byte = 6
	DataTypeSSCPLUData  byte = 7
	DataTypePrintEOJ    byte = 8
)

// TN3270E response-flag values.
const (
	ResponseFlagNoResponse  byte = 0
	ResponseFlagErrorResp   byte = 1
	ResponseFlagAlwaysResp  byte = 2
)

// Positive/negative response-type values inside a RESPONSE data-type record.
const (
	PositiveResponse byte = 0
	NegativeResponse byte = 1
)
