package scenario

import (
	"testing"

	"github.com/crab2313/pcie-tlp/internal/adapter"
	"github.com/crab2313/pcie-tlp/internal/simdevice"
)

func newScenarioAdapter(t *testing.T) *adapter.Adapter {
	t.Helper()
	a := adapter.New(simdevice.NewReferenceDevice(), nil)
	t.Cleanup(func() {
		a.Stop()
		a.Join()
	})
	return a
}

func runFixture(t *testing.T, path string) {
	t.Helper()
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%s): %v", path, err)
	}
	Run(t, s, newScenarioAdapter(t))
}

func TestS1VendorDeviceReadback(t *testing.T) {
	runFixture(t, "../../testdata/scenarios/s1_vendor_device_readback.yaml")
}

func TestS2BARSizing(t *testing.T) {
	runFixture(t, "../../testdata/scenarios/s2_bar_sizing.yaml")
}

func TestS5UnmappedMMIO(t *testing.T) {
	runFixture(t, "../../testdata/scenarios/s5_unmapped_mmio.yaml")
}

// TestFullRegisterSweep is the supplementary scenario from SPEC_FULL.md,
// grounded on the original Rust suite's `for i in 0..64 { config_read(i) }`
// loop: every register must answer without panicking or hanging, including
// the BAR registers in their unprogrammed reset state.
func TestFullRegisterSweep(t *testing.T) {
	runFixture(t, "../../testdata/scenarios/full_register_sweep.yaml")
}
