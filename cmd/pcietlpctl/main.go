// Command pcietlpctl brings up an Adapter backed by the reference
// simulated device (or a scenario fixture) and exercises it from the
// command line, for manual poking during development.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/crab2313/pcie-tlp/internal/adapter"
	"github.com/crab2313/pcie-tlp/internal/scenario"
	"github.com/crab2313/pcie-tlp/internal/simdevice"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pcietlpctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		scenarioPath = pflag.StringP("scenario", "s", "", "run a scenario fixture and exit")
		configRead   = pflag.String("config-read", "", "read a config register, given its DWORD index")
		configWrite  = pflag.String("config-write", "", "write a config register: reg:offset:hex-bytes")
		barRead      = pflag.String("bar-read", "", "read from the BAR mmio space: addr:size")
		verbose      = pflag.BoolP("verbose", "v", false, "enable debug logging")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: pcietlpctl [flags]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *scenarioPath != "" {
		return runScenario(*scenarioPath)
	}

	a := adapter.New(simdevice.NewReferenceDevice(), log)
	defer func() {
		a.Stop()
		a.Join()
	}()

	switch {
	case *configRead != "":
		return doConfigRead(a, *configRead)
	case *configWrite != "":
		return doConfigWrite(a, *configWrite)
	case *barRead != "":
		return doBarRead(a, *barRead)
	default:
		pflag.Usage()
		return nil
	}
}

func doConfigRead(a *adapter.Adapter, arg string) error {
	reg, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("config-read: bad register index %q: %w", arg, err)
	}
	v, err := a.ConfigRead(reg)
	if err != nil {
		return fmt.Errorf("config-read: %w", err)
	}
	fmt.Printf("register %d = %#08x\n", reg, v)
	return nil
}

func doConfigWrite(a *adapter.Adapter, arg string) error {
	parts := strings.SplitN(arg, ":", 3)
	if len(parts) != 3 {
		return fmt.Errorf("config-write: want reg:offset:hex-bytes, got %q", arg)
	}
	reg, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("config-write: bad register index %q: %w", parts[0], err)
	}
	offset, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("config-write: bad offset %q: %w", parts[1], err)
	}
	data, err := hexBytes(parts[2])
	if err != nil {
		return fmt.Errorf("config-write: %w", err)
	}
	if err := a.ConfigWrite(reg, offset, data); err != nil {
		return fmt.Errorf("config-write: %w", err)
	}
	return nil
}

func doBarRead(a *adapter.Adapter, arg string) error {
	parts := strings.SplitN(arg, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("bar-read: want addr:size, got %q", arg)
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(parts[0], "0x"), 16, 64)
	if err != nil {
		return fmt.Errorf("bar-read: bad address %q: %w", parts[0], err)
	}
	size, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("bar-read: bad size %q: %w", parts[1], err)
	}
	out := make([]byte, size)
	if err := a.BarMmioRead(addr, out); err != nil {
		return fmt.Errorf("bar-read: %w", err)
	}
	fmt.Printf("%#x: % x\n", addr, out)
	return nil
}

func hexBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex byte %q", s[i*2:i*2+2])
		}
		out[i] = byte(v)
	}
	// ConfigWrite expects little-endian byte order matching the register
	// layout, so a hex string typed most-significant-byte-first is reversed.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// runScenario loads a fixture and executes its steps directly, printing
// each as it runs. scenario.Run (used by the test suite) dispatches the
// same step kinds against a *testing.T instead, since a real *testing.T
// cannot be constructed outside `go test`.
func runScenario(path string) error {
	s, err := scenario.Load(path)
	if err != nil {
		return err
	}
	a := adapter.New(simdevice.NewReferenceDevice(), slog.Default())
	defer func() {
		a.Stop()
		a.Join()
	}()

	for i, step := range s.Steps {
		switch {
		case step.ConfigRead != nil:
			v, err := a.ConfigRead(step.ConfigRead.Reg)
			if err != nil {
				return fmt.Errorf("step %d: config_read(%d): %w", i, step.ConfigRead.Reg, err)
			}
			if step.ConfigRead.Expect != nil && v != *step.ConfigRead.Expect {
				return fmt.Errorf("step %d: config_read(%d) = %#x, want %#x", i, step.ConfigRead.Reg, v, *step.ConfigRead.Expect)
			}
			fmt.Printf("step %d: register %d = %#08x\n", i, step.ConfigRead.Reg, v)
		case step.ConfigWrite != nil:
			if err := a.ConfigWrite(step.ConfigWrite.Reg, step.ConfigWrite.Offset, step.ConfigWrite.Data); err != nil {
				return fmt.Errorf("step %d: config_write: %w", i, err)
			}
		case step.BarMmioRead != nil:
			out := make([]byte, step.BarMmioRead.Size)
			if err := a.BarMmioRead(step.BarMmioRead.Addr, out); err != nil {
				return fmt.Errorf("step %d: bar_mmio_read: %w", i, err)
			}
			if step.BarMmioRead.Expect != nil && !bytesEqual(out, step.BarMmioRead.Expect) {
				return fmt.Errorf("step %d: bar_mmio_read(%#x) = % x, want % x", i, step.BarMmioRead.Addr, out, step.BarMmioRead.Expect)
			}
			fmt.Printf("step %d: %#x: % x\n", i, step.BarMmioRead.Addr, out)
		default:
			return fmt.Errorf("step %d: empty step", i)
		}
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
