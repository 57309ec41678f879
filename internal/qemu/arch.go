// Package qemu locates the QEMU host tooling a VM descriptor depends on:
// the qemu-system-* binary, the UEFI firmware pair that ships next to it, and
// qemu-img for disk provisioning.
package qemu

import (
	"fmt"
	"strings"
)

// Arch is a guest architecture.
type Arch string

const (
	// ArchAArch64 is 64-bit ARM
	ArchAArch64 Arch = "aarch64"
	// ArchX8664 is 64-bit x86
	ArchX8664 Arch = "x86_64"
)

// SupportedArchs lists every architecture qvm can create VMs for.
var SupportedArchs = []Arch{ArchAArch64, ArchX8664}

// ParseArch validates s as a guest architecture.
func ParseArch(s string) (Arch, error) {
	a := Arch(strings.TrimSpace(s))
	if !a.Valid() {
		return "", &UnsupportedArchError{Arch: s}
	}
	return a, nil
}

// Valid reports whether a is one of SupportedArchs.
func (a Arch) Valid() bool {
	switch a {
	case ArchAArch64, ArchX8664:
		return true
	}
	return false
}

func (a Arch) String() string {
	return string(a)
}

// SystemBinaryName returns the qemu-system executable name for a.
func (a Arch) SystemBinaryName() string {
	return "qemu-system-" + string(a)
}

// DefaultMachine returns the machine type recorded for new VMs.
func (a Arch) DefaultMachine() string {
	if a == ArchAArch64 {
		return "virt,gic-version=3"
	}
	return "q35"
}

// DefaultAccel returns the acceleration backend recorded for new VMs.
func (a Arch) DefaultAccel() string {
	if a == ArchAArch64 {
		return "hvf"
	}
	return "kvm"
}

// NormalizeCPUModel replaces the "host" CPU model with the portable qemu64
// model on x86_64. A host model is only meaningful for the native
// architecture of the machine that later launches the VM.
func NormalizeCPUModel(arch Arch, model string) string {
	if arch == ArchX8664 && model == "host" {
		return "qemu64"
	}
	return model
}

// ArchNames returns SupportedArchs as strings, for flag help and completion.
func ArchNames() []string {
	names := make([]string, 0, len(SupportedArchs))
	for _, a := range SupportedArchs {
		names = append(names, string(a))
	}
	return names
}

// UnsupportedArchError is returned for any architecture outside SupportedArchs.
type UnsupportedArchError struct {
	Arch string
}

func (e *UnsupportedArchError) Error() string {
	return fmt.Sprintf("Unsupported arch '%s' (supported: %s)", e.Arch, strings.Join(ArchNames(), ", "))
}
