// Package lane implements the full-duplex TLP channel connecting the Bridge
// to a SimDevice: a pair of ordered, reliable FIFOs, each a buffered channel
// of unboundedSize packets, carrying tlp.Packet values in opposite
// directions between exactly two endpoints.
package lane

import "github.com/crab2313/pcie-tlp/internal/tlp"

// Endpoint is one side of a Lane. Send does not block while fewer than
// unboundedSize packets are queued toward the peer; Recv blocks until a packet arrives or the peer's send side is
// closed, at which point it returns ok=false permanently. This is how a
// SimDevice observes adapter shutdown.
type Endpoint struct {
	tx chan tlp.Packet
	rx chan tlp.Packet
}

// Send enqueues p for the peer. The backing channel holds at most
// unboundedSize packets; once that many are queued and not yet received,
// Send blocks until the peer receives one.
func (e Endpoint) Send(p tlp.Packet) {
	e.tx <- p
}

// Recv blocks until the next packet arrives, or returns ok=false once the
// peer has closed its send side and the queue has drained.
func (e Endpoint) Recv() (p tlp.Packet, ok bool) {
	p, ok = <-e.rx
	return p, ok
}

// Chan exposes the receive side as a raw channel so callers (the Bridge's
// event loop) can select on it alongside other sources.
func (e Endpoint) Chan() <-chan tlp.Packet {
	return e.rx
}

// Close shuts down this endpoint's send side. The peer's next Recv past the
// last buffered packet observes ok=false.
func (e Endpoint) Close() {
	close(e.tx)
}

// unboundedSize is generous slack so Send does not block under the volumes
// this core expects (single-digit outstanding requests); Go channels are not
// unbounded, so each direction is a deep but finite buffered channel. See
// Pair.
const unboundedSize = 1 << 16

// Pair returns two endpoints of a new lane: sending on one is visible to
// receiving on the other, with no reordering, duplication, or loss.
func Pair() (a, b Endpoint) {
	c1 := make(chan tlp.Packet, unboundedSize)
	c2 := make(chan tlp.Packet, unboundedSize)
	a = Endpoint{tx: c1, rx: c2}
	b = Endpoint{tx: c2, rx: c1}
	return a, b
}
