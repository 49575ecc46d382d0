package simdevice

import "testing"

func TestVendorDeviceReadback(t *testing.T) {
	cfg := NewPCIConfiguration(ReferenceVendorID, ReferenceDeviceID, ReferenceSubVendorID, ReferenceSubDeviceID)
	if got := cfg.ReadConfigRegister(vendorReg); got != 0x5678_1234 {
		t.Fatalf("ReadConfigRegister(0) = %#x, want 0x56781234", got)
	}
}

func TestVendorDeviceWriteIgnored(t *testing.T) {
	cfg := NewPCIConfiguration(ReferenceVendorID, ReferenceDeviceID, ReferenceSubVendorID, ReferenceSubDeviceID)
	cfg.WriteConfigRegister(vendorReg, 0, []byte{0x22, 0x22, 0x11, 0x11})
	if got := cfg.ReadConfigRegister(vendorReg); got != 0x5678_1234 {
		t.Fatalf("ReadConfigRegister(0) after write = %#x, want unchanged 0x56781234", got)
	}
}

func TestGenericRegisterRoundTrips(t *testing.T) {
	cfg := NewPCIConfiguration(1, 2, 3, 4)
	cfg.WriteConfigRegister(20, 0, []byte{0xef, 0xbe, 0xad, 0xde})
	if got := cfg.ReadConfigRegister(20); got != 0xdead_beef {
		t.Fatalf("ReadConfigRegister(20) = %#x, want 0xdeadbeef", got)
	}
}

func TestBARSizingRoundTrip(t *testing.T) {
	cfg := NewPCIConfiguration(1, 2, 3, 4)
	cfg.AddBAR(0, 1<<20, BARMemory64, false)
	cfg.AddBAR(2, 256, BARIO, false)

	cfg.WriteConfigRegister(4, 0, []byte{0xff, 0xff, 0xff, 0xff})
	cfg.WriteConfigRegister(5, 0, []byte{0xff, 0xff, 0xff, 0xff})
	cfg.WriteConfigRegister(6, 0, []byte{0x00, 0xff, 0x00, 0x00})

	if got := cfg.ReadConfigRegister(4); got != 0xfff0_0004 {
		t.Fatalf("BAR4 = %#x, want 0xfff00004", got)
	}
	if got := cfg.ReadConfigRegister(5); got != 0xffff_ffff {
		t.Fatalf("BAR5 = %#x, want 0xffffffff", got)
	}
	if got := cfg.ReadConfigRegister(6); got != 0x0000_ff01 {
		t.Fatalf("BAR6 = %#x, want 0x0000ff01", got)
	}
}

func TestBARProgrammingClearsOutOfSizingMode(t *testing.T) {
	cfg := NewPCIConfiguration(1, 2, 3, 4)
	cfg.AddBAR(0, 1<<20, BARMemory64, false)

	cfg.WriteConfigRegister(4, 0, []byte{0xff, 0xff, 0xff, 0xff})
	cfg.WriteConfigRegister(4, 0, []byte{0x00, 0x00, 0x00, 0x70})
	cfg.WriteConfigRegister(5, 0, []byte{0x01, 0x00, 0x00, 0x00})

	if got := cfg.ReadConfigRegister(4); got != 0x7000_0004 {
		t.Fatalf("BAR4 after programming = %#x, want 0x70000004", got)
	}
	if got := cfg.ReadConfigRegister(5); got != 0x0000_0001 {
		t.Fatalf("BAR5 after programming = %#x, want 0x00000001", got)
	}
}

func TestDetectLeavesRegisterUnchanged(t *testing.T) {
	// Invariant 1 (spec §8): detect (write all-ones, read back, restore)
	// leaves the register's steady-state value unchanged.
	cfg := NewPCIConfiguration(1, 2, 3, 4)
	cfg.AddBAR(0, 1<<20, BARMemory64, false)

	cfg.WriteConfigRegister(4, 0, []byte{0x00, 0x00, 0x00, 0x70})
	before := cfg.ReadConfigRegister(4)

	cfg.WriteConfigRegister(4, 0, []byte{0xff, 0xff, 0xff, 0xff})
	_ = cfg.ReadConfigRegister(4)
	var buf [4]byte
	buf[0] = byte(before)
	buf[1] = byte(before >> 8)
	buf[2] = byte(before >> 16)
	buf[3] = byte(before >> 24)
	cfg.WriteConfigRegister(4, 0, buf[:])

	if got := cfg.ReadConfigRegister(4); got != before {
		t.Fatalf("ReadConfigRegister(4) after detect = %#x, want restored %#x", got, before)
	}
}
