package adapter

import "github.com/crab2313/pcie-tlp/internal/hvface"

// MMIORegion describes one BAR's decoded address-space window (spec §3). A
// region is created by ScanBARs with Start left at zero and gains its Start
// once AllocateBARs assigns it a live address.
type MMIORegion struct {
	Start       hvface.GuestAddress
	Length      hvface.GuestSize
	Type        hvface.BarType
	BarRegIndex int
	SlotMapped  bool

	// MemSlot and HostAddr/MMapSize describe the shared-memory fast path for
	// prefetchable regions (spec §4.5 step 5, §9 open question 6). Neither
	// this module nor any caller wires them up; they exist so a future
	// revision can populate a region descriptor without changing its shape.
	MemSlot  *uint32
	HostAddr *uint64
	MMapSize *uint64
}

// regionType decodes the low bits of a sized BAR readback per spec §6's BAR
// register conventions: bit 0 selects I/O; otherwise bits 2:1 distinguish
// 32- and 64-bit memory.
func regionType(sized uint32) hvface.BarType {
	if sized&0x1 != 0 {
		return hvface.BarIO
	}
	if sized&0x6 == 0x4 {
		return hvface.BarMem64
	}
	return hvface.BarMem32
}

func prefetchable(sized uint32) bool {
	return sized&0x8 != 0
}
