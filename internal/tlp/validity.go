package tlp

// Valid reports whether p satisfies the header validity predicate of
// spec §4.1. It is not enforced at Build time: the Bridge is trusted to
// only ever emit valid TLPs by construction, and Valid exists so tests (and
// a paranoid caller) can check that trust is warranted.
func Valid(p Packet) bool {
	if !validByteEnable(p.Header) {
		return false
	}
	if p.Header.Type.isRequestClass() {
		if p.Header.Type == Config0Read || p.Header.Type == Config0Write ||
			p.Header.Type == Config1Read || p.Header.Type == Config1Write {
			if p.Header.TrafficClass != TC0 {
				return false
			}
			if p.Header.RelaxedOrdering || p.Header.NoSnoop {
				return false
			}
			if p.Header.Length != 1 {
				return false
			}
		}
	}
	return true
}

// validByteEnable implements the byte-enable rule: a single-DWORD payload
// must have a zero last-DW nibble and a non-zero first-DW nibble; a
// multi-DWORD payload must have both nibbles non-zero. Non-contiguous
// byte-enable patterns are accepted (the PCIe spec allows them under
// constraints this core does not enforce).
func validByteEnable(h Header) bool {
	switch h.Length {
	case 0:
		return true
	case 1:
		return h.LastDWBE() == 0 && h.FirstDWBE() != 0
	default:
		return h.LastDWBE() != 0 && h.FirstDWBE() != 0
	}
}
