// Package tlp models PCIe Transaction Layer Packets in memory: header bit
// fields, the packet-type tagged union, and the builder used to assemble
// request and completion packets on the lane.
package tlp

// Fmt is the three-bit FMT field (byte 0 bits 7:5) that, together with the
// five-bit TYPE field, selects the packet type and whether a payload
// follows.
type Fmt uint8

const (
	FmtDw3NoData Fmt = iota
	FmtDw4NoData
	FmtDw3
	FmtDw4
	FmtPrefix
)

// TrafficClass is the three-bit TC field, byte 1 bits 6:4.
type TrafficClass uint8

const (
	TC0 TrafficClass = iota
	TC1
	TC2
	TC3
	TC4
	TC5
	TC6
	TC7
)

// AddressType is the two-bit AT field.
type AddressType uint8

const (
	AddressDefault AddressType = iota
	AddressTranslationRequest
	AddressTranslated
	AddressReserved
)

// PacketType is the tagged-union discriminant. The payload carried by each
// variant lives in the matching Header.* field (Memory, Config, Completion,
// Message) rather than in the PacketType value itself, since Go has no
// native sum type.
type PacketType uint8

const (
	Unknown PacketType = iota
	MemoryRead32
	MemoryRead64
	MemoryReadLock32
	MemoryReadLock64
	MemoryWrite32
	MemoryWrite64
	IoRead
	IoWrite
	Config0Read
	Config0Write
	Config1Read
	Config1Write
	Completion
	CompletionData
	CompletionLocked
	CompletionLockedData
	Message
	MessageData
	FetchAddAtomic
	SwapAtomic
	CasAtomic
	LocalPrefix
	EndToEndPrefix
)

func (t PacketType) String() string {
	switch t {
	case MemoryRead32:
		return "MemoryRead32"
	case MemoryRead64:
		return "MemoryRead64"
	case MemoryReadLock32:
		return "MemoryReadLock32"
	case MemoryReadLock64:
		return "MemoryReadLock64"
	case MemoryWrite32:
		return "MemoryWrite32"
	case MemoryWrite64:
		return "MemoryWrite64"
	case IoRead:
		return "IoRead"
	case IoWrite:
		return "IoWrite"
	case Config0Read:
		return "Config0Read"
	case Config0Write:
		return "Config0Write"
	case Config1Read:
		return "Config1Read"
	case Config1Write:
		return "Config1Write"
	case Completion:
		return "Completion"
	case CompletionData:
		return "CompletionData"
	case CompletionLocked:
		return "CompletionLocked"
	case CompletionLockedData:
		return "CompletionLockedData"
	case Message:
		return "Message"
	case MessageData:
		return "MessageData"
	case FetchAddAtomic:
		return "FetchAddAtomic"
	case SwapAtomic:
		return "SwapAtomic"
	case CasAtomic:
		return "CasAtomic"
	case LocalPrefix:
		return "LocalPrefix"
	case EndToEndPrefix:
		return "EndToEndPrefix"
	default:
		return "Unknown"
	}
}

// isRequestClass reports whether t is one of the type-0/type-1 config
// requests that carry a ConfigExtra and participate in transaction-id
// matching.
func (t PacketType) isRequestClass() bool {
	switch t {
	case Config0Read, Config0Write, Config1Read, Config1Write:
		return true
	default:
		return false
	}
}

// isCompletionClass reports whether t carries a CompletionExtra.
func (t PacketType) isCompletionClass() bool {
	switch t {
	case Completion, CompletionData, CompletionLocked, CompletionLockedData:
		return true
	default:
		return false
	}
}

// MemoryExtra is the descriptor carried by MemoryRead{32,64},
// MemoryReadLock{32,64} and MemoryWrite{32,64}.
type MemoryExtra struct {
	Requester uint16
	Tag       uint8
	Addr      uint64
}

// ConfigExtra is the descriptor carried by Config{0,1}{Read,Write}.
type ConfigExtra struct {
	Requester uint16
	Completer uint16
	Tag       uint8
	Reg       uint16
}

// CompletionExtra is the descriptor carried by Completion, CompletionData,
// CompletionLocked and CompletionLockedData.
type CompletionExtra struct {
	Requester    uint16
	Completer    uint16
	Tag          uint8
	Status       uint8
	BCM          bool
	ByteCount    uint16
	LowerAddress uint8
}

// MessageExtra carries the message route field for Message/MessageData.
type MessageExtra struct {
	Route uint8
}

// Header is the fixed portion of a TLP, independent of payload.
type Header struct {
	Type PacketType
	Fmt  Fmt

	TrafficClass TrafficClass
	AddressType  AddressType

	// Three architectural attribute bits.
	RelaxedOrdering bool
	NoSnoop         bool
	IDOrdering      bool

	Poisoned       bool
	Digest         bool
	ProcessingHint bool

	// ByteEnable packs the first-DW BE in the low nibble and the
	// last-DW BE in the high nibble.
	ByteEnable uint8

	// Length is the payload length in DWORDs (10 bits architecturally).
	Length uint16

	Memory     *MemoryExtra
	Config     *ConfigExtra
	Completion *CompletionExtra
	Message    *MessageExtra
}

// FirstDWBE returns the byte-enable nibble for the first DWORD.
func (h Header) FirstDWBE() uint8 { return h.ByteEnable & 0x0f }

// LastDWBE returns the byte-enable nibble for the last DWORD.
func (h Header) LastDWBE() uint8 { return (h.ByteEnable >> 4) & 0x0f }

// Packet is a TLP header plus its optional DWORD payload. Payload length,
// when present, must equal Header.Length.
type Packet struct {
	Header Header
	Data   []uint32
}
