package datastream

import "github.com/opentn3270/tn3270/ps"

// BuildReadBuffer constructs an RB response: AID, encoded cursor address,
// then every position with SF orders re-inserted at each field-attribute
// cell (spec.md §4.5 "Outbound construction").
func (in *Interpreter) BuildReadBuffer() []byte {
	mode := in.Space.AddressMode()
	out := make([]byte, 0, in.Space.Size().Positions()+8)
	out = append(out, byte(in.lastAID))
	cur := ps.EncodeAddr(in.Space.Cursor(), mode)
	out = append(out, cur[0], cur[1])

	for _, c := range in.Space.Cells() {
		if c.IsFieldAttribute {
			out = append(out, byte(OrderSF), c.CharacterAttribute)
			continue
		}
		out = append(out, c.CodePoint)
	}
	return out
}

// BuildReadModified constructs an RM (includeAll=false) or RMA
// (includeAll=true) response: AID, cursor, then SBA + field start address
// + field content for each qualifying field, with trailing nulls dropped
// per spec.md §4.5.
func (in *Interpreter) BuildReadModified(includeAll bool) []byte {
	mode := in.Space.AddressMode()
	out := make([]byte, 0, 64)
	out = append(out, byte(in.lastAID))
	cur := ps.EncodeAddr(in.Space.Cursor(), mode)
	out = append(out, cur[0], cur[1])

	if in.lastAID.IsPAOrClear() && !includeAll {
		return out
	}

	cells := in.Space.Cells()
	n := len(cells)
	for _, f := range in.Space.Fields() {
		if f.Protected || f.Length == 0 {
			continue
		}
		if !includeAll && !f.Modified {
			continue
		}
		data := make([]byte, 0, f.Length)
		for i := 0; i < f.Length; i++ {
			data = append(data, cells[(f.StartAddr+i)%n].CodePoint)
		}
		for len(data) > 0 && data[len(data)-1] == 0x00 {
			data = data[:len(data)-1]
		}

		addrBytes := ps.EncodeAddr(f.StartAddr, mode)
		out = append(out, byte(OrderSBA), addrBytes[0], addrBytes[1])
		out = append(out, data...)
	}
	return out
}
