package bridge

import (
	"encoding/binary"
	"math/bits"

	"github.com/crab2313/pcie-tlp/internal/tlp"
)

// nibbleLeadingZeros counts leading zero bits of the low nibble of v,
// treating it as a 4-bit quantity rather than an 8-bit one: 0b1000 has zero
// leading zeros, 0b0000 has four. bits.LeadingZeros8 operates on the full
// byte, so the nibble is shifted into the top of the byte before counting,
// and the all-zero nibble is special-cased since LeadingZeros8(0) is 8.
func nibbleLeadingZeros(v uint8) int {
	v &= 0x0f
	if v == 0 {
		return 4
	}
	return bits.LeadingZeros8(v << 4)
}

// reassembleCompletion turns a CompletionData reply's DWORD payload into the
// byte slice the original MemoryRead caller asked for (spec §4.4). offset is
// the byte alignment of the request within dw[0], taken from the
// completion's lower address; k is how many bytes of the final DWORD belong
// to the transfer, derived from the completion's last-DW byte-enable nibble
// per the spec's own formula `4 - leading_zeros(last_nibble | 0x08)`. Forcing
// bit 3 on before counting guards the all-zero nibble (the reference
// device's single-DWORD completions carry one) from underflowing; it also
// means k is 4 for every other nibble value, since any set bit 3 makes the
// leading-zero count 0 — partial last-DWORD trims are not distinguishable
// through this field as specified. The single-DWORD case falls out of the
// same loop: dw[0] is simultaneously first and last, so both trims apply.
func reassembleCompletion(pkt tlp.Packet) []byte {
	n := len(pkt.Data)
	if n == 0 {
		return nil
	}

	offset := int(pkt.Header.Completion.LowerAddress & 0b11)
	k := 4 - nibbleLeadingZeros(pkt.Header.LastDWBE()|0x08)

	out := make([]byte, 0, n*4)
	for i, dw := range pkt.Data {
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], dw)

		lo, hi := 0, 4
		if i == 0 {
			lo = offset
		}
		if i == n-1 {
			hi = k
		}
		out = append(out, buf[lo:hi]...)
	}
	return out
}
