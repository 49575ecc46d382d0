package simdevice

import (
	"log/slog"
	"math/bits"

	"github.com/crab2313/pcie-tlp/internal/lane"
	"github.com/crab2313/pcie-tlp/internal/tlp"
)

// Reference identification and BAR layout for the built-in test device
// (spec §4.3): vendor 0x1234, device 0x5678, subsystem 0x5555/0x6666, BAR0
// a 1 MiB 64-bit non-prefetchable memory region, BAR2 a 256 B I/O region.
const (
	ReferenceVendorID    = 0x1234
	ReferenceDeviceID    = 0x5678
	ReferenceSubVendorID = 0x5555
	ReferenceSubDeviceID = 0x6666

	referenceBAR0Index = 0
	referenceBAR0Size  = 1 << 20 // 1 MiB

	referenceBAR2Index = 2
	referenceBAR2Size  = 256

	referenceFillDWord = 0x12345678
)

// ReferenceDevice is the SimDevice used by the test suite and by scenario
// fixtures: a minimal type-0 endpoint whose memory space always reads back
// referenceFillDWord.
type ReferenceDevice struct {
	Config *PCIConfiguration
	Log    *slog.Logger
}

// NewReferenceDevice returns a ready-to-run ReferenceDevice with the
// identification and BARs described in spec §4.3.
func NewReferenceDevice() *ReferenceDevice {
	cfg := NewPCIConfiguration(ReferenceVendorID, ReferenceDeviceID, ReferenceSubVendorID, ReferenceSubDeviceID)
	cfg.AddBAR(referenceBAR0Index, referenceBAR0Size, BARMemory64, false)
	cfg.AddBAR(referenceBAR2Index, referenceBAR2Size, BARIO, false)
	return &ReferenceDevice{Config: cfg, Log: slog.Default()}
}

var _ SimDevice = (*ReferenceDevice)(nil)

// Run implements SimDevice. It consumes TLPs until the lane's receive side
// fails (adapter shutdown) and answers config and memory-read requests per
// spec §4.3. Any other request type it does not recognize is a fatal
// programming error in this reference, per §7's "unhandled TLP type"
// policy — real devices are free to respond or drop per their own policy.
func (d *ReferenceDevice) Run(l lane.Endpoint) {
	for {
		req, ok := l.Recv()
		if !ok {
			return
		}
		d.handle(l, req)
	}
}

func (d *ReferenceDevice) handle(l lane.Endpoint, req tlp.Packet) {
	switch req.Header.Type {
	case tlp.Config0Read:
		d.handleConfig0Read(l, req)
	case tlp.Config0Write:
		d.handleConfig0Write(l, req)
	case tlp.Config1Read, tlp.Config1Write:
		// Type-1 traffic is bridge-to-bridge; this leaf function ignores it.
	case tlp.MemoryRead64:
		d.handleMemoryRead64(l, req)
	default:
		d.Log.Error("reference device: unhandled TLP type", "type", req.Header.Type.String())
		panic("simdevice: unhandled TLP type " + req.Header.Type.String())
	}
}

func (d *ReferenceDevice) handleConfig0Read(l lane.Endpoint, req tlp.Packet) {
	extra := req.Header.Config
	value := d.Config.ReadConfigRegister(int(extra.Reg))
	reply := tlp.CompletionData(tlp.CompletionExtra{
		Requester: extra.Requester,
		Completer: extra.Completer,
		Tag:       extra.Tag,
		Status:    0,
		BCM:       false,
		ByteCount: 4,
	}).WithData([]uint32{value}).Build()
	l.Send(reply)
}

func (d *ReferenceDevice) handleConfig0Write(l lane.Endpoint, req tlp.Packet) {
	extra := req.Header.Config
	var value uint32
	if len(req.Data) > 0 {
		value = req.Data[0]
	}
	be := req.Header.FirstDWBE()
	offset := uint64(bits.TrailingZeros8(be))
	if offset > 3 {
		offset = 0
	}
	length := 8 - bits.LeadingZeros8(be) - int(offset)
	if length < 0 {
		length = 0
	}
	if length > 4-int(offset) {
		length = 4 - int(offset)
	}

	shifted := value >> (offset * 8)
	data := make([]byte, length)
	for i := 0; i < length; i++ {
		data[i] = byte(shifted >> (8 * i))
	}
	d.Config.WriteConfigRegister(int(extra.Reg), offset, data)

	reply := tlp.CompletionData(tlp.CompletionExtra{
		Requester: extra.Requester,
		Completer: extra.Completer,
		Tag:       extra.Tag,
		Status:    0,
		BCM:       false,
		ByteCount: 4,
	}).WithData([]uint32{value}).Build()
	l.Send(reply)
}

func (d *ReferenceDevice) handleMemoryRead64(l lane.Endpoint, req tlp.Packet) {
	extra := req.Header.Memory
	length := req.Header.Length
	if length == 0 {
		length = 1
	}

	lowerAddress := uint8(extra.Addr&0x7c) | uint8(bits.TrailingZeros8(req.Header.FirstDWBE())%4)
	byteEnable := uint8(0xff)
	if length == 1 {
		byteEnable = 0x0f
	}

	data := make([]uint32, length)
	for i := range data {
		data[i] = referenceFillDWord
	}

	reply := tlp.CompletionData(tlp.CompletionExtra{
		Requester:    extra.Requester,
		Tag:          extra.Tag,
		Status:       0,
		BCM:          false,
		ByteCount:    0,
		LowerAddress: lowerAddress,
	}).WithByteEnable(byteEnable).WithData(data).Build()
	l.Send(reply)
}
