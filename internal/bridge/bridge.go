// Package bridge implements the adapter-side state machine (spec §4.4): a
// single-task event loop that multiplexes a synchronous command queue
// against asynchronous completions arriving on a lane, using a pending
// table to route each completion back to the caller that requested it.
package bridge

import (
	"errors"
	"log/slog"

	"github.com/crab2313/pcie-tlp/internal/lane"
	"github.com/crab2313/pcie-tlp/internal/simdevice"
	"github.com/crab2313/pcie-tlp/internal/tlp"
)

// ErrStopped is returned by every Post* method once the bridge's event loop
// has exited, whether from an explicit Stop or a lane failure. It is the Go
// analog of the "caller observes the reply channel closed" behavior from
// spec §5/§7: rather than close per-reaction reply channels individually, a
// shared done channel is raced against the reply in every Post* select, so
// a caller blocked on either send already unblocks the moment the loop ends.
var ErrStopped = errors.New("bridge: stopped")

const commandQueueSize = 1 << 12

// bdf packs a bus/device/function triple into the 16-bit requester/completer
// id fields TLPs carry: `(bus<<8) | (device<<5) | (function & 7)` (spec
// GLOSSARY "BDF").
func bdf(bus, device, function uint8) uint16 {
	return uint16(bus)<<8 | uint16(device)<<5 | uint16(function&7)
}

var (
	adapterBDF   = bdf(0, 2, 0)
	completerBDF = bdf(0, 3, 0)
)

// reaction is what the pending table remembers about an outstanding
// request, so handleCompletion knows how to turn the matching completion
// into the caller's reply. It mirrors the original's Reaction enum
// (NotifyDone / DeliverDword / DeliverBytes) as three concrete types behind
// one interface, Go's usual stand-in for a closed sum type.
type reaction interface {
	fulfil(pkt tlp.Packet)
}

type notifyDone struct{ reply chan<- struct{} }

func (r notifyDone) fulfil(tlp.Packet) { r.reply <- struct{}{} }

type deliverDword struct{ reply chan<- uint32 }

func (r deliverDword) fulfil(pkt tlp.Packet) {
	var v uint32
	if len(pkt.Data) > 0 {
		v = pkt.Data[0]
	}
	r.reply <- v
}

type deliverBytes struct{ reply chan<- []byte }

func (r deliverBytes) fulfil(pkt tlp.Packet) {
	r.reply <- reassembleCompletion(pkt)
}

// Bridge owns the lane to a SimDevice and the pending table correlating
// outstanding requests with their completions. Callers never touch the lane
// or the pending table directly; they post commands and block on a
// per-call reply channel.
type Bridge struct {
	cmdCh chan command
	lane  lane.Endpoint
	log   *slog.Logger

	done chan struct{}

	nextTag uint8
	pending map[uint32]reaction
}

// New starts dev on one side of a fresh lane and starts the bridge's event
// loop on the other. The returned Bridge is ready to accept Post* calls
// immediately.
func New(dev simdevice.SimDevice, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	deviceSide, bridgeSide := lane.Pair()
	b := &Bridge{
		cmdCh:   make(chan command, commandQueueSize),
		lane:    bridgeSide,
		log:     log,
		done:    make(chan struct{}),
		pending: make(map[uint32]reaction),
	}
	go dev.Run(deviceSide)
	go b.run()
	return b
}

func (b *Bridge) run() {
	defer close(b.done)
	// Closing the send side lets the SimDevice's Recv fail and Run return.
	defer b.lane.Close()
	for {
		select {
		case cmd, ok := <-b.cmdCh:
			if !ok {
				return
			}
			if _, isExit := cmd.(exitCmd); isExit {
				return
			}
			b.handleCommand(cmd)
		case pkt, ok := <-b.lane.Chan():
			if !ok {
				b.log.Warn("bridge: device lane closed unexpectedly")
				return
			}
			b.handleCompletion(pkt)
		}
	}
}

func (b *Bridge) allocTag() uint8 {
	t := b.nextTag
	b.nextTag++
	return t
}

func (b *Bridge) transactionID(tag uint8) uint32 {
	return uint32(tag) | uint32(adapterBDF)<<16
}

func (b *Bridge) handleCommand(cmd command) {
	switch c := cmd.(type) {
	case configReadCmd:
		tag := b.allocTag()
		b.pending[b.transactionID(tag)] = deliverDword{reply: c.reply}
		pkt := tlp.Config0Read(tlp.ConfigExtra{
			Requester: adapterBDF,
			Completer: completerBDF,
			Tag:       tag,
			Reg:       uint16(c.reg),
		}).WithByteEnable(0x0f).Build()
		b.lane.Send(pkt)

	case configWriteCmd:
		tag := b.allocTag()
		b.pending[b.transactionID(tag)] = notifyDone{reply: c.reply}
		be := configWriteByteEnable(c.offset, c.length)
		data := uint32(c.data) << (uint(c.offset) * 8)
		pkt := tlp.Config0Write(tlp.ConfigExtra{
			Requester: adapterBDF,
			Completer: completerBDF,
			Tag:       tag,
			Reg:       uint16(c.reg),
		}).WithByteEnable(be).WithData([]uint32{data}).Build()
		b.lane.Send(pkt)

	case memoryReadCmd:
		tag := b.allocTag()
		b.pending[b.transactionID(tag)] = deliverBytes{reply: c.reply}
		dwLen := (int(c.addr&3) + c.size + 3) / 4
		if dwLen < 1 {
			dwLen = 1
		}
		firstBE := (uint8(0xff) << (uint(c.addr) & 3)) & 0x0f
		var lastBE uint8
		if dwLen > 1 {
			lastBE = 0x0f
		}
		pkt := tlp.MemoryRead64(tlp.MemoryExtra{
			Requester: adapterBDF,
			Tag:       tag,
			Addr:      c.addr,
		}).WithLength(uint16(dwLen)).WithByteEnable(firstBE | lastBE<<4).Build()
		b.lane.Send(pkt)

	case memoryWriteCmd:
		c.reply <- struct{}{}
	case ioReadCmd:
		c.reply <- 0
	case ioWriteCmd:
		c.reply <- struct{}{}
	}
}

// configWriteByteEnable builds a contiguous mask of length bits starting at
// bit offset (spec §4.4): `(^(0xff << length)) << offset`, computed in a
// wider type so the uint8 shift by up to 8 bits never overflows.
func configWriteByteEnable(offset, length uint8) uint8 {
	mask := ^(uint32(0xff) << uint(length)) & 0xff
	return uint8((mask << uint(offset)) & 0xff)
}

func (b *Bridge) handleCompletion(pkt tlp.Packet) {
	if pkt.Header.Type != tlp.CompletionData {
		return
	}
	id, ok := tlp.TransactionID(pkt.Header)
	if !ok {
		return
	}
	r, ok := b.pending[id]
	if !ok {
		b.log.Debug("bridge: completion for unknown or stale transaction", "id", id)
		return
	}
	delete(b.pending, id)
	r.fulfil(pkt)
}

// PostConfigRead reads one DWORD-sized configuration register.
func (b *Bridge) PostConfigRead(reg int) (uint32, error) {
	reply := make(chan uint32, 1)
	if err := b.post(configReadCmd{reg: reg, reply: reply}); err != nil {
		return 0, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-b.done:
		return 0, ErrStopped
	}
}

// PostConfigWrite writes length bytes of data starting at byte offset within
// reg. offset+length must not exceed 4.
func (b *Bridge) PostConfigWrite(reg int, offset, length uint8, data uint32) error {
	reply := make(chan struct{}, 1)
	if err := b.post(configWriteCmd{reg: reg, offset: offset, length: length, data: data, reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-b.done:
		return ErrStopped
	}
}

// PostMemoryRead reads size bytes starting at addr from the device's memory
// space and returns exactly size bytes.
func (b *Bridge) PostMemoryRead(addr uint64, size int) ([]byte, error) {
	reply := make(chan []byte, 1)
	if err := b.post(memoryReadCmd{addr: addr, size: size, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case bs := <-reply:
		if len(bs) > size {
			bs = bs[:size]
		}
		return bs, nil
	case <-b.done:
		return nil, ErrStopped
	}
}

func (b *Bridge) post(cmd command) error {
	select {
	case b.cmdCh <- cmd:
		return nil
	case <-b.done:
		return ErrStopped
	}
}

// Stop requests the event loop to exit. It does not wait for in-flight
// Post* calls to observe the stop; use Wait for that.
func (b *Bridge) Stop() {
	select {
	case b.cmdCh <- exitCmd{}:
	case <-b.done:
	}
}

// Wait blocks until the event loop has exited.
func (b *Bridge) Wait() {
	<-b.done
}
