// Package simdevice defines the contract simulated PCIe devices implement
// to sit on the far side of a Bridge's lane, plus a reference test device
// exercising that contract end to end.
package simdevice

import "github.com/crab2313/pcie-tlp/internal/lane"

// SimDevice is any entity exposing a single blocking entry point that
// consumes TLPs on lane's receive side and emits response TLPs on its send
// side, returning once the receive side fails (the Bridge has shut down).
// The Bridge never inspects a SimDevice's internal state — this is the only
// contract between the two.
type SimDevice interface {
	Run(l lane.Endpoint)
}
