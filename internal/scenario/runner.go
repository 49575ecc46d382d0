package scenario

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crab2313/pcie-tlp/internal/adapter"
)

// Run executes every step of s against a, using require so the first failing
// assertion stops the scenario with a clear message naming the step index.
func Run(t *testing.T, s *Scenario, a *adapter.Adapter) {
	t.Helper()
	for i, step := range s.Steps {
		switch {
		case step.ConfigRead != nil:
			runConfigRead(t, a, i, step.ConfigRead)
		case step.ConfigWrite != nil:
			runConfigWrite(t, a, i, step.ConfigWrite)
		case step.BarMmioRead != nil:
			runBarMmioRead(t, a, i, step.BarMmioRead)
		default:
			t.Fatalf("%s: step %d: empty step", s.Name, i)
		}
	}
}

func runConfigRead(t *testing.T, a *adapter.Adapter, i int, s *ConfigReadStep) {
	t.Helper()
	v, err := a.ConfigRead(s.Reg)
	require.NoErrorf(t, err, "step %d: config_read(%d)", i, s.Reg)
	if s.Expect != nil {
		require.Equalf(t, *s.Expect, v, "step %d: config_read(%d)", i, s.Reg)
	}
}

func runConfigWrite(t *testing.T, a *adapter.Adapter, i int, s *ConfigWriteStep) {
	t.Helper()
	err := a.ConfigWrite(s.Reg, s.Offset, s.Data)
	require.NoErrorf(t, err, "step %d: config_write(%d, %d, %#v)", i, s.Reg, s.Offset, s.Data)
}

func runBarMmioRead(t *testing.T, a *adapter.Adapter, i int, s *BarMmioReadStep) {
	t.Helper()
	out := make([]byte, s.Size)
	err := a.BarMmioRead(s.Addr, out)
	require.NoErrorf(t, err, "step %d: bar_mmio_read(%#x, %d)", i, s.Addr, s.Size)
	if s.Expect != nil {
		require.Equalf(t, s.Expect, out, "step %d: bar_mmio_read(%#x, %d)", i, s.Addr, s.Size)
	}
}
