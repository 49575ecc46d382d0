package adapter

import (
	"encoding/binary"

	"github.com/crab2313/pcie-tlp/internal/hvface"
)

const (
	memoryAlign = 0x10
	ioAlign     = 0x4
)

// detectBAR runs the write-ones/read-back/restore sizing protocol (spec
// §4.5 step 1, §8 invariant 1) against the BAR register at reg, leaving its
// programmed value unchanged.
func (a *Adapter) detectBAR(reg int) (uint32, error) {
	orig, err := a.ConfigRead(reg)
	if err != nil {
		return 0, err
	}
	if err := a.ConfigWrite(reg, 0, []byte{0xff, 0xff, 0xff, 0xff}); err != nil {
		return 0, err
	}
	sized, err := a.ConfigRead(reg)
	if err != nil {
		return 0, err
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], orig)
	if err := a.ConfigWrite(reg, 0, buf[:]); err != nil {
		return 0, err
	}
	return sized, nil
}

// ScanBARs walks BAR registers 4..9 (spec §4.5 scan_bar), sizing each and
// decoding its type, prefetchability, and length. Unconfigured BARs (sized
// value 0) are skipped. The discovered regions are also cached on a and
// consulted by BarMmioRead once their Start is assigned by AllocateBARs.
func (a *Adapter) ScanBARs() ([]MMIORegion, error) {
	var regions []MMIORegion
	for i := barBaseReg; i < barBaseReg+barCount; {
		sized, err := a.detectBAR(i)
		if err != nil {
			return nil, err
		}
		if sized == 0 {
			i++
			continue
		}

		regIndex := i
		t := regionType(sized)
		pf := prefetchable(sized)

		var length uint64
		switch t {
		case hvface.BarIO:
			length = uint64(^(sized & ioSizeMask)) + 1
			i++
		case hvface.BarMem32:
			length = uint64(^(sized & memorySizeMask)) + 1
			i++
		case hvface.BarMem64:
			upperSized, err := a.detectBAR(i + 1)
			if err != nil {
				return nil, err
			}
			combined := uint64(upperSized)<<32 | uint64(sized&memorySizeMask)
			length = ^combined + 1
			i += 2
		}

		regions = append(regions, MMIORegion{
			Length:      hvface.GuestSize(length),
			Type:        t,
			BarRegIndex: regIndex,
			SlotMapped:  t != hvface.BarIO && pf,
		})
	}
	a.regions = regions
	return regions, nil
}

// AllocateBARs implements hvface.PCIDevice: it scans the BARs, requests a
// range for each from the matching allocator pool, and programs the
// assigned address back into the device's BAR registers (spec §4.5
// allocate_bars). For 64-bit BARs the lower half is programmed before the
// upper half — spec §9 open question 3 leaves either order acceptable; this
// is the order a real guest's own firmware would use.
func (a *Adapter) AllocateBARs(alloc hvface.Allocator) ([]hvface.AllocatedBAR, error) {
	regions, err := a.ScanBARs()
	if err != nil {
		return nil, err
	}

	var allocated []hvface.AllocatedBAR
	for i := range regions {
		r := &regions[i]
		var addr hvface.GuestAddress
		var ok bool
		switch r.Type {
		case hvface.BarIO:
			addr, ok = alloc.AllocateIOAddresses(0, r.Length, ioAlign)
		case hvface.BarMem32:
			addr, ok = alloc.AllocateMMIOHoleAddresses(0, r.Length, memoryAlign)
		case hvface.BarMem64:
			addr, ok = alloc.AllocateMMIOAddresses(0, r.Length, memoryAlign)
		}
		if !ok {
			return nil, &hvface.ErrIOAllocationFailed{Length: r.Length}
		}
		r.Start = addr

		if err := a.programBAR(r, addr); err != nil {
			return nil, err
		}

		allocated = append(allocated, hvface.AllocatedBAR{Addr: addr, Size: r.Length, Type: r.Type})
	}
	a.regions = regions
	return allocated, nil
}

func (a *Adapter) programBAR(r *MMIORegion, addr hvface.GuestAddress) error {
	var lo [4]byte
	binary.LittleEndian.PutUint32(lo[:], uint32(addr))
	if err := a.ConfigWrite(r.BarRegIndex, 0, lo[:]); err != nil {
		return err
	}
	if r.Type == hvface.BarMem64 {
		var hi [4]byte
		binary.LittleEndian.PutUint32(hi[:], uint32(addr>>32))
		if err := a.ConfigWrite(r.BarRegIndex+1, 0, hi[:]); err != nil {
			return err
		}
	}
	return nil
}

// FreeBARs implements hvface.PCIDevice: it returns every allocated region's
// range to its matching pool and forgets the adapter's region list.
func (a *Adapter) FreeBARs(alloc hvface.Allocator) {
	for _, r := range a.regions {
		switch r.Type {
		case hvface.BarIO:
			alloc.FreeIOAddresses(r.Start, r.Length)
		case hvface.BarMem32:
			alloc.FreeMMIOHoleAddresses(r.Start, r.Length)
		case hvface.BarMem64:
			alloc.FreeMMIOAddresses(r.Start, r.Length)
		}
	}
	a.regions = nil
}
