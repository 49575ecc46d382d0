package tlp

// Builder assembles a Packet starting from a zero-initialized, Unknown-typed
// header. Constructors below fix the packet type and any type-mandated
// defaults (e.g. length = 1 DW for single-DWORD request types); everything
// else is set by the With* methods. Build does not validate the result —
// callers that must emit only valid TLPs call Valid explicitly (the Bridge
// does this by construction, never by checking).
type Builder struct {
	header Header
	data   []uint32
}

// NewBuilder returns a builder seeded with a zero header of type Unknown.
func NewBuilder() *Builder {
	return &Builder{header: Header{Type: Unknown, Fmt: FmtDw3NoData}}
}

func (b *Builder) packet(t PacketType, fmtValue Fmt) *Builder {
	b.header.Type = t
	b.header.Fmt = fmtValue
	return b
}

// Config0Read builds a type-0 configuration read. Length is fixed at 1 DW.
func Config0Read(extra ConfigExtra) *Builder {
	b := NewBuilder().packet(Config0Read, FmtDw3NoData)
	b.header.Config = &extra
	b.header.Length = 1
	return b
}

// Config0Write builds a type-0 configuration write. Length is fixed at 1 DW;
// callers set the payload DWORD with WithData.
func Config0Write(extra ConfigExtra) *Builder {
	b := NewBuilder().packet(Config0Write, FmtDw3)
	b.header.Config = &extra
	b.header.Length = 1
	return b
}

// Config1Read builds a type-1 configuration read (bridge-to-bridge traffic).
func Config1Read(extra ConfigExtra) *Builder {
	b := NewBuilder().packet(Config1Read, FmtDw3NoData)
	b.header.Config = &extra
	b.header.Length = 1
	return b
}

// Config1Write builds a type-1 configuration write.
func Config1Write(extra ConfigExtra) *Builder {
	b := NewBuilder().packet(Config1Write, FmtDw3)
	b.header.Config = &extra
	b.header.Length = 1
	return b
}

// MemoryRead32 builds a 32-bit-addressed memory read. The caller sets
// Length separately via WithLength, since it depends on the request size.
func MemoryRead32(extra MemoryExtra) *Builder {
	b := NewBuilder().packet(MemoryRead32, FmtDw3NoData)
	b.header.Memory = &extra
	return b
}

// MemoryRead64 builds a 64-bit-addressed memory read.
func MemoryRead64(extra MemoryExtra) *Builder {
	b := NewBuilder().packet(MemoryRead64, FmtDw4NoData)
	b.header.Memory = &extra
	return b
}

// MemoryWrite32 builds a 32-bit-addressed memory write.
func MemoryWrite32(extra MemoryExtra) *Builder {
	b := NewBuilder().packet(MemoryWrite32, FmtDw3)
	b.header.Memory = &extra
	return b
}

// MemoryWrite64 builds a 64-bit-addressed memory write.
func MemoryWrite64(extra MemoryExtra) *Builder {
	b := NewBuilder().packet(MemoryWrite64, FmtDw4)
	b.header.Memory = &extra
	return b
}

// CompletionPacket builds a data-less completion.
func CompletionPacket(extra CompletionExtra) *Builder {
	b := NewBuilder().packet(Completion, FmtDw3NoData)
	b.header.Completion = &extra
	return b
}

// CompletionData builds a completion carrying a DWORD payload. Length is
// derived from the data set via WithData; if no data is attached before
// Build, length remains 0.
func CompletionData(extra CompletionExtra) *Builder {
	b := NewBuilder().packet(CompletionData, FmtDw3)
	b.header.Completion = &extra
	return b
}

// CompletionLockedPacket builds a data-less locked completion.
func CompletionLockedPacket(extra CompletionExtra) *Builder {
	b := NewBuilder().packet(CompletionLocked, FmtDw3NoData)
	b.header.Completion = &extra
	return b
}

// CompletionLockedData builds a locked completion carrying a DWORD payload.
func CompletionLockedData(extra CompletionExtra) *Builder {
	b := NewBuilder().packet(CompletionLockedData, FmtDw3)
	b.header.Completion = &extra
	return b
}

// WithData replaces the payload and updates Length to match len(dwords).
func (b *Builder) WithData(dwords []uint32) *Builder {
	b.data = dwords
	b.header.Length = uint16(len(dwords))
	return b
}

// WithLength sets the DWORD length without attaching a payload; used by
// read requests, which carry no data of their own.
func (b *Builder) WithLength(length uint16) *Builder {
	b.header.Length = length
	return b
}

// WithByteEnable overwrites the byte-enable byte verbatim (low nibble =
// first DW, high nibble = last DW).
func (b *Builder) WithByteEnable(be uint8) *Builder {
	b.header.ByteEnable = be
	return b
}

// WithTrafficClass sets the traffic class.
func (b *Builder) WithTrafficClass(tc TrafficClass) *Builder {
	b.header.TrafficClass = tc
	return b
}

// WithAddressType sets the address-type field.
func (b *Builder) WithAddressType(at AddressType) *Builder {
	b.header.AddressType = at
	return b
}

// WithAttributes sets the three architectural attribute bits.
func (b *Builder) WithAttributes(relaxedOrdering, noSnoop, idOrdering bool) *Builder {
	b.header.RelaxedOrdering = relaxedOrdering
	b.header.NoSnoop = noSnoop
	b.header.IDOrdering = idOrdering
	return b
}

// Build finalizes the packet. Validity is the caller's responsibility.
func (b *Builder) Build() Packet {
	return Packet{Header: b.header, Data: b.data}
}
