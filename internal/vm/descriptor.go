package vm

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/tnk4on/qvm/internal/qemu"
)

// DescriptorVersion is the schema version written into meta.version.
const DescriptorVersion = 1

// Defaults applied when a VM is created.
const (
	DefaultDiskName  = "disk.qcow2"
	DefaultEFIVars   = "efi_vars.fd"
	DefaultVNCSock   = "vnc.sock"
	DefaultSPICESock = "spice.sock"

	// DefaultSMP is the vCPU count used when no topology is requested.
	DefaultSMP = 4
)

// NetworkMode selects how the hypervisor attaches the guest NIC.
type NetworkMode string

const (
	NetworkVmnetShared  NetworkMode = "vmnet-shared"
	NetworkVmnetBridged NetworkMode = "vmnet-bridged"
	NetworkUser         NetworkMode = "user"
)

// NetworkModes lists every accepted network mode.
var NetworkModes = []NetworkMode{NetworkVmnetShared, NetworkVmnetBridged, NetworkUser}

// ParseNetworkMode validates a network mode name.
func ParseNetworkMode(s string) (NetworkMode, error) {
	m := NetworkMode(strings.TrimSpace(s))
	if !m.Valid() {
		return "", fmt.Errorf("invalid network mode '%s' (valid: %s)", s, joinModes(NetworkModes))
	}
	return m, nil
}

// Valid reports whether m is a known network mode.
func (m NetworkMode) Valid() bool {
	for _, known := range NetworkModes {
		if m == known {
			return true
		}
	}
	return false
}

// DisplayMode selects the guest display frontend.
type DisplayMode string

const (
	DisplayCocoa    DisplayMode = "cocoa"
	DisplayVNC      DisplayMode = "vnc"
	DisplaySPICE    DisplayMode = "spice"
	DisplayHeadless DisplayMode = "headless"
)

// DisplayModes lists every accepted display mode.
var DisplayModes = []DisplayMode{DisplayCocoa, DisplayVNC, DisplaySPICE, DisplayHeadless}

// ParseDisplayMode validates a display mode name.
func ParseDisplayMode(s string) (DisplayMode, error) {
	m := DisplayMode(strings.TrimSpace(s))
	if !m.Valid() {
		return "", fmt.Errorf("invalid display mode '%s' (valid: %s)", s, joinModes(DisplayModes))
	}
	return m, nil
}

// Valid reports whether m is a known display mode.
func (m DisplayMode) Valid() bool {
	for _, known := range DisplayModes {
		if m == known {
			return true
		}
	}
	return false
}

func joinModes[T ~string](modes []T) string {
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// Descriptor is the persisted definition of a single VM (vm.json).
type Descriptor struct {
	Meta     Meta     `json:"meta" yaml:"meta"`
	Paths    VMPaths  `json:"paths" yaml:"paths"`
	Hardware Hardware `json:"hardware" yaml:"hardware"`
	Firmware Firmware `json:"firmware" yaml:"firmware"`
	Network  Network  `json:"network" yaml:"network"`
	Display  Display  `json:"display" yaml:"display"`
}

// Meta identifies the descriptor and the VM it belongs to.
type Meta struct {
	Version   int       `json:"version" yaml:"version"`
	Generated string    `json:"generated" yaml:"generated"`
	Name      string    `json:"name" yaml:"name"`
	Arch      qemu.Arch `json:"arch" yaml:"arch"`
	UUID      string    `json:"uuid" yaml:"uuid"`
}

// VMPaths holds the VM directory and the files inside it.
// Disk and EFIVars may be relative to Root.
type VMPaths struct {
	Root    string `json:"root" yaml:"root"`
	Disk    string `json:"disk" yaml:"disk"`
	EFIVars string `json:"efi_vars" yaml:"efi_vars"`
}

// Hardware describes the virtual machine model.
type Hardware struct {
	CPUModel string `json:"cpu_model" yaml:"cpu_model"`
	Sockets  int    `json:"sockets" yaml:"sockets"`
	Cores    int    `json:"cores" yaml:"cores"`
	Threads  int    `json:"threads" yaml:"threads"`
	MemMB    int    `json:"mem_mb" yaml:"mem_mb"`
	Machine  string `json:"machine" yaml:"machine"`
	Accel    string `json:"accel" yaml:"accel"`
	MAC      string `json:"mac" yaml:"mac"`
}

// VCPUs returns the total vCPU count.
func (h Hardware) VCPUs() int {
	return h.Sockets * h.Cores * h.Threads
}

// Firmware records the UEFI code image and the template for per-VM variables.
type Firmware struct {
	Code         string `json:"code" yaml:"code"`
	VarsTemplate string `json:"vars_template" yaml:"vars_template"`
}

// Network records the guest network attachment. It is opaque to qvm.
type Network struct {
	Mode     NetworkMode `json:"mode" yaml:"mode"`
	BridgeIf string      `json:"bridge_if" yaml:"bridge_if"`
	Forwards Forwards    `json:"forwards" yaml:"forwards"`
}

// Forwards holds host port forwards used in user-mode networking.
type Forwards struct {
	SSH  int `json:"ssh" yaml:"ssh"`
	MEye int `json:"meye" yaml:"meye"`
}

// Display records the display frontend. Both sub-records are always kept,
// only the one matching Mode is active.
type Display struct {
	Mode  DisplayMode `json:"mode" yaml:"mode"`
	VNC   VNC         `json:"vnc" yaml:"vnc"`
	SPICE SPICE       `json:"spice" yaml:"spice"`
}

// VNC display settings.
type VNC struct {
	UseUnix bool   `json:"use_unix" yaml:"use_unix"`
	Host    string `json:"host" yaml:"host"`
	Display int    `json:"display" yaml:"display"`
	Sock    string `json:"sock" yaml:"sock"`
}

// SPICE display settings.
type SPICE struct {
	UseUnix          bool   `json:"use_unix" yaml:"use_unix"`
	Addr             string `json:"addr" yaml:"addr"`
	Port             int    `json:"port" yaml:"port"`
	DisableTicketing bool   `json:"disable_ticketing" yaml:"disable_ticketing"`
	Sock             string `json:"sock" yaml:"sock"`
}

// DiskPath returns the absolute disk image path.
func (d *Descriptor) DiskPath() string {
	return ResolveUnderRoot(d.Paths.Root, d.Paths.Disk)
}

// EFIVarsPath returns the absolute path of the per-VM UEFI variable store.
func (d *Descriptor) EFIVarsPath() string {
	return ResolveUnderRoot(d.Paths.Root, d.Paths.EFIVars)
}

// Validate checks the fields every consumer of a descriptor relies on.
func (d *Descriptor) Validate() error {
	var errs []error
	if d.Meta.Version < 1 {
		errs = append(errs, fmt.Errorf("meta.version must be >= 1, got %d", d.Meta.Version))
	}
	if d.Meta.Name == "" {
		errs = append(errs, errors.New("meta.name is required"))
	}
	if !d.Meta.Arch.Valid() {
		errs = append(errs, fmt.Errorf("meta.arch '%s' is not supported", d.Meta.Arch))
	}
	if d.Meta.UUID == "" {
		errs = append(errs, errors.New("meta.uuid is required"))
	}
	if d.Meta.Generated == "" {
		errs = append(errs, errors.New("meta.generated is required"))
	}
	if d.Paths.Root == "" {
		errs = append(errs, errors.New("paths.root is required"))
	}
	if d.Paths.Disk == "" {
		errs = append(errs, errors.New("paths.disk is required"))
	}
	if d.Paths.EFIVars == "" {
		errs = append(errs, errors.New("paths.efi_vars is required"))
	}
	if d.Hardware.MemMB <= 0 {
		errs = append(errs, fmt.Errorf("hardware.mem_mb must be > 0, got %d", d.Hardware.MemMB))
	}
	for _, f := range []struct{ field, value string }{
		{"hardware.machine", d.Hardware.Machine},
		{"hardware.accel", d.Hardware.Accel},
		{"hardware.mac", d.Hardware.MAC},
		{"firmware.code", d.Firmware.Code},
		{"firmware.vars_template", d.Firmware.VarsTemplate},
	} {
		if f.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", f.field))
		}
	}
	if d.Hardware.Sockets < 1 || d.Hardware.Cores < 1 || d.Hardware.Threads < 1 {
		errs = append(errs, fmt.Errorf("hardware topology must be >= 1, got sockets=%d cores=%d threads=%d",
			d.Hardware.Sockets, d.Hardware.Cores, d.Hardware.Threads))
	}
	if !d.Network.Mode.Valid() {
		errs = append(errs, fmt.Errorf("network.mode '%s' is not valid", d.Network.Mode))
	}
	if !d.Display.Mode.Valid() {
		errs = append(errs, fmt.Errorf("display.mode '%s' is not valid", d.Display.Mode))
	}
	return errors.Join(errs...)
}

// Topology is a vCPU layout. Zero fields are unset.
type Topology struct {
	SMP     int
	Sockets int
	Cores   int
	Threads int
}

// Resolve returns the sockets/cores/threads triple to persist.
// Any explicit topology field wins over SMP, which wins over the default.
func (t Topology) Resolve() (sockets, cores, threads int) {
	if t.Sockets > 0 || t.Cores > 0 || t.Threads > 0 {
		return orOne(t.Sockets), orOne(t.Cores), orOne(t.Threads)
	}
	if t.SMP > 0 {
		return 1, t.SMP, 1
	}
	return 1, DefaultSMP, 1
}

func orOne(n int) int {
	if n > 0 {
		return n
	}
	return 1
}

// GenerateMAC returns a locally administered MAC in the QEMU 52:54:00 range.
func GenerateMAC() (string, error) {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("failed to generate MAC address: %w", err)
	}
	return fmt.Sprintf("52:54:00:%02x:%02x:%02x", b[0], b[1], b[2]), nil
}
