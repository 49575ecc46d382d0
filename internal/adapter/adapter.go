// Package adapter implements the synchronous front end the hypervisor's PCI
// bus drives (spec §4.5, C5): config-space proxy, BAR probing/allocation,
// and the MMIO read proxy, all built on top of a bridge.Bridge.
package adapter

import (
	"encoding/binary"
	"log/slog"

	"github.com/crab2313/pcie-tlp/internal/bridge"
	"github.com/crab2313/pcie-tlp/internal/hvface"
	"github.com/crab2313/pcie-tlp/internal/simdevice"
)

const (
	barBaseReg = 4
	barCount   = 6

	// bar register layout bitmasks (spec §6).
	memorySizeMask = 0xffff_fff0
	ioSizeMask     = 0xffff_fffc

	// maxMMIOReadSize is the largest access bar_mmio_read will forward to
	// the lane (spec §4.5, §7 error table).
	maxMMIOReadSize = 8
)

// Adapter is the PCI device object the hypervisor's bus holds: it satisfies
// hvface.PCIDevice by translating every call into bridge.Bridge traffic
// against a backing SimDevice.
type Adapter struct {
	b       *bridge.Bridge
	log     *slog.Logger
	regions []MMIORegion
}

var _ hvface.PCIDevice = (*Adapter)(nil)

// New brings up a Bridge and SimDevice pair and returns an Adapter ready to
// serve the hypervisor's calls.
func New(dev simdevice.SimDevice, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{b: bridge.New(dev, log), log: log}
}

// ConfigRead posts a config-space read and blocks for the reply.
func (a *Adapter) ConfigRead(reg int) (uint32, error) {
	return a.b.PostConfigRead(reg)
}

// ReadConfigRegister implements hvface.PCIDevice, discarding the error the
// bridge can only return once it has already shut down — callers that care
// about shutdown use ConfigRead directly.
func (a *Adapter) ReadConfigRegister(regIndex int) uint32 {
	v, _ := a.ConfigRead(regIndex)
	return v
}

// ConfigWrite encodes dataBytes (1-4 bytes, little-endian) into a single
// DWORD and posts a byte-enabled config write at byte offset within reg.
func (a *Adapter) ConfigWrite(reg int, offset int, dataBytes []byte) error {
	var buf [4]byte
	copy(buf[:], dataBytes)
	data := binary.LittleEndian.Uint32(buf[:])
	return a.b.PostConfigWrite(reg, uint8(offset), uint8(len(dataBytes)), data)
}

// WriteConfigRegister implements hvface.PCIDevice. The bridge's writes never
// need caller synchronization, so it always returns a nil Barrier.
func (a *Adapter) WriteConfigRegister(regIndex int, offset uint64, data []byte) hvface.Barrier {
	_ = a.ConfigWrite(regIndex, int(offset), data)
	return nil
}

// BarMmioRead implements bar_mmio_read (spec §4.5): bounds-checks addr
// against every registered region, logging and filling out with 0xff for an
// unmapped address or an access wider than maxMMIOReadSize, warning (but
// still performing the TLP read) for a slot-mapped region, and otherwise
// proxying the read through the bridge.
func (a *Adapter) BarMmioRead(addr uint64, out []byte) error {
	if len(out) > maxMMIOReadSize {
		a.log.Error("bar_mmio_read: access too large", "addr", addr, "size", len(out))
		fill(out)
		return nil
	}

	region, ok := a.regionContaining(addr, len(out))
	if !ok {
		a.log.Warn("bar_mmio_read: unmapped address", "addr", addr)
		fill(out)
		return nil
	}
	if region.SlotMapped {
		a.log.Warn("bar_mmio_read: reading slot-mapped region through TLP path", "addr", addr)
	}

	data, err := a.b.PostMemoryRead(addr, len(out))
	if err != nil {
		return err
	}
	copy(out, data)
	return nil
}

// ReadBAR implements hvface.PCIDevice's bus-facing read. base+offset is the
// guest physical address; errors (bridge shutdown) are swallowed into a
// 0xff-filled buffer, matching the unmapped-read policy.
func (a *Adapter) ReadBAR(base hvface.GuestAddress, offset hvface.GuestSize, out []byte) {
	if err := a.BarMmioRead(uint64(base)+uint64(offset), out); err != nil {
		fill(out)
	}
}

// WriteBAR is declared by hvface.PCIDevice but BAR writes are not wired to
// any TLP emission in this core (spec §9 open question 5's MemoryWrite
// counterpart); it is a no-op returning no barrier.
func (a *Adapter) WriteBAR(hvface.GuestAddress, hvface.GuestSize, []byte) hvface.Barrier {
	return nil
}

// Read implements hvface.BusDevice by delegating to ReadBAR.
func (a *Adapter) Read(base hvface.GuestAddress, offset hvface.GuestSize, out []byte) {
	a.ReadBAR(base, offset, out)
}

// Write implements hvface.BusDevice by delegating to WriteBAR.
func (a *Adapter) Write(base hvface.GuestAddress, offset hvface.GuestSize, data []byte) hvface.Barrier {
	return a.WriteBAR(base, offset, data)
}

func (a *Adapter) regionContaining(addr uint64, size int) (MMIORegion, bool) {
	for _, r := range a.regions {
		start := uint64(r.Start)
		end := start + uint64(r.Length)
		if addr >= start && addr+uint64(size) <= end {
			return r, true
		}
	}
	return MMIORegion{}, false
}

func fill(out []byte) {
	for i := range out {
		out[i] = 0xff
	}
}

// Stop requests the bridge to shut down.
func (a *Adapter) Stop() { a.b.Stop() }

// Join blocks until the bridge has shut down.
func (a *Adapter) Join() { a.b.Wait() }
