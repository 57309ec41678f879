package vm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tnk4on/qvm/internal/qemu"
)

// BinaryLocator finds the qemu-system binary for an architecture.
type BinaryLocator interface {
	Pick(arch qemu.Arch) (string, error)
}

// FirmwareLocator finds the UEFI firmware pair that matches a QEMU binary.
type FirmwareLocator interface {
	Locate(qemuBin string, arch qemu.Arch) (qemu.FirmwarePair, error)
}

// DiskCreator provisions qcow2 disk images.
type DiskCreator interface {
	CreateQcow2(ctx context.Context, path, size string) error
}

// Manager creates, inspects, and deletes VM definitions.
type Manager struct {
	Paths    *Paths
	Store    *Store
	Liveness *LivenessChecker
	Binaries BinaryLocator
	Firmware FirmwareLocator
	Disks    DiskCreator

	// In and Out carry the delete confirmation dialogue.
	In  io.Reader
	Out io.Writer

	// Now stamps meta.generated. Defaults to time.Now.
	Now func() time.Time
}

// NewManager returns a Manager backed by the host tooling.
func NewManager(p *Paths) *Manager {
	return &Manager{
		Paths:    p,
		Store:    NewStore(p),
		Liveness: NewLivenessChecker(p),
		Binaries: qemu.NewBinaryLocator(),
		Firmware: qemu.NewFirmwareLocator(),
		Disks:    qemu.NewImageTool(),
		In:       os.Stdin,
		Out:      os.Stdout,
		Now:      time.Now,
	}
}

// CreateOptions holds everything needed to define a new VM.
// Zero values fall back to the defaults noted on each field.
type CreateOptions struct {
	Name     string
	Arch     qemu.Arch
	CPUModel string // default "host"
	Topology Topology
	MemMB    int

	// Disk defaults to disk.qcow2 inside the VM directory.
	Disk string
	// DiskSize triggers qemu-img when set and the disk does not exist yet.
	DiskSize string

	NetMode  NetworkMode
	BridgeIf string
	Forwards Forwards

	DisplayMode DisplayMode
	VNC         VNC
	SPICE       SPICE
}

func (o *CreateOptions) validate() error {
	if err := ValidateName(o.Name); err != nil {
		return err
	}
	if !o.Arch.Valid() {
		return &qemu.UnsupportedArchError{Arch: string(o.Arch)}
	}
	if o.MemMB <= 0 {
		return fmt.Errorf("memory must be positive, got %d MB", o.MemMB)
	}
	if o.Topology.SMP < 0 || o.Topology.Sockets < 0 || o.Topology.Cores < 0 || o.Topology.Threads < 0 {
		return errors.New("CPU topology values must not be negative")
	}
	if !o.NetMode.Valid() {
		return fmt.Errorf("invalid network mode '%s' (valid: %s)", o.NetMode, joinModes(NetworkModes))
	}
	if !o.DisplayMode.Valid() {
		return fmt.Errorf("invalid display mode '%s' (valid: %s)", o.DisplayMode, joinModes(DisplayModes))
	}
	return checkForwards(o.Forwards)
}

// Create provisions the VM directory, its disk when requested, and writes
// the descriptor. Re-using an existing name overwrites its descriptor.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Descriptor, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	root := m.Paths.VMRoot(opts.Name)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, &IOError{Op: "create directory", Path: root, Err: err}
	}
	if _, err := os.Stat(DescriptorPath(root)); err == nil {
		logrus.Warnf("VM '%s' already exists, its descriptor will be overwritten", opts.Name)
	}

	disk := opts.Disk
	if disk == "" {
		disk = DefaultDiskName
	}
	diskPath := ResolveUnderRoot(root, disk)
	if _, err := os.Stat(diskPath); os.IsNotExist(err) {
		if opts.DiskSize != "" {
			logrus.Debugf("Creating %s disk at %s", opts.DiskSize, diskPath)
			if err := m.Disks.CreateQcow2(ctx, diskPath, opts.DiskSize); err != nil {
				return nil, err
			}
		} else {
			logrus.Warnf("Disk %s does not exist and no size was given, create it before starting the VM", diskPath)
		}
	}

	cpuModel := opts.CPUModel
	if cpuModel == "" {
		cpuModel = "host"
	}
	cpuModel = qemu.NormalizeCPUModel(opts.Arch, cpuModel)
	sockets, cores, threads := opts.Topology.Resolve()

	qemuBin, err := m.Binaries.Pick(opts.Arch)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("Using %s", qemuBin)

	fw, err := m.Firmware.Locate(qemuBin, opts.Arch)
	if err != nil {
		fw = qemu.DefaultFirmware(opts.Arch)
		logrus.Warnf("%v; falling back to %s and %s (not verified)", err, fw.Code, fw.VarsTemplate)
	}

	mac, err := GenerateMAC()
	if err != nil {
		return nil, err
	}

	vnc := opts.VNC
	if vnc.Sock == "" {
		vnc.Sock = DefaultVNCSock
	}
	spice := opts.SPICE
	if spice.Sock == "" {
		spice.Sock = DefaultSPICESock
	}

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}

	d := &Descriptor{
		Meta: Meta{
			Version:   DescriptorVersion,
			Generated: now().UTC().Format(time.RFC3339),
			Name:      opts.Name,
			Arch:      opts.Arch,
			UUID:      uuid.New().String(),
		},
		Paths: VMPaths{
			Root:    root,
			Disk:    disk,
			EFIVars: DefaultEFIVars,
		},
		Hardware: Hardware{
			CPUModel: cpuModel,
			Sockets:  sockets,
			Cores:    cores,
			Threads:  threads,
			MemMB:    opts.MemMB,
			Machine:  opts.Arch.DefaultMachine(),
			Accel:    opts.Arch.DefaultAccel(),
			MAC:      mac,
		},
		Firmware: Firmware{
			Code:         fw.Code,
			VarsTemplate: fw.VarsTemplate,
		},
		Network: Network{
			Mode:     opts.NetMode,
			BridgeIf: opts.BridgeIf,
			Forwards: opts.Forwards,
		},
		Display: Display{
			Mode:  opts.DisplayMode,
			VNC:   vnc,
			SPICE: spice,
		},
	}

	if err := m.Store.Save(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Delete removes a stopped VM and everything in its directory.
// Unless force is set the user is asked to confirm; a declined prompt
// returns false with no error.
func (m *Manager) Delete(ctx context.Context, name string, force bool) (bool, error) {
	root, err := m.Paths.FindVMDir(name)
	if err != nil {
		return false, err
	}

	running, err := m.Liveness.IsRunning(name)
	if err != nil {
		return false, err
	}
	if running {
		return false, &VMRunningError{Name: name, PID: m.Liveness.PID(name)}
	}

	d, err := m.Store.LoadFromDir(root)
	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			return false, &ParseError{Path: DescriptorPath(root), Err: err}
		}
		return false, err
	}

	if !force {
		confirmed, err := m.confirmDelete(name, root, d)
		if err != nil {
			return false, err
		}
		if !confirmed {
			fmt.Fprintln(m.Out, "Deletion cancelled.")
			return false, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := os.RemoveAll(root); err != nil {
		return false, &IOError{Op: "remove", Path: root, Err: err}
	}
	logrus.Debugf("Removed %s", root)
	return true, nil
}

func (m *Manager) confirmDelete(name, root string, d *Descriptor) (bool, error) {
	fmt.Fprintf(m.Out, "About to delete VM '%s':\n", name)
	fmt.Fprintf(m.Out, "  VM Directory: %s\n", root)
	fmt.Fprintf(m.Out, "  Disk: %s\n", ResolveUnderRoot(root, d.Paths.Disk))
	fmt.Fprintf(m.Out, "  EFI Vars: %s\n", ResolveUnderRoot(root, d.Paths.EFIVars))
	fmt.Fprintln(m.Out)
	fmt.Fprint(m.Out, "Are you sure you want to delete this VM? [y/N]: ")

	line, err := bufio.NewReader(m.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// DisplayUpdate changes a VM's display settings. Nil fields are left as is.
type DisplayUpdate struct {
	Mode DisplayMode

	VNCUseUnix *bool
	VNCHost    *string
	VNCDisplay *int
	VNCSock    *string

	SPICEUseUnix          *bool
	SPICEAddr             *string
	SPICEPort             *int
	SPICEDisableTicketing *bool
	SPICESock             *string
}

// SetDisplay switches the display mode of a VM and rewrites its descriptor.
func (m *Manager) SetDisplay(name string, u DisplayUpdate) (*Descriptor, error) {
	if !u.Mode.Valid() {
		return nil, fmt.Errorf("invalid display mode '%s' (valid: %s)", u.Mode, joinModes(DisplayModes))
	}
	d, err := m.Store.Load(name)
	if err != nil {
		return nil, err
	}

	d.Display.Mode = u.Mode
	vnc := &d.Display.VNC
	setIf(&vnc.UseUnix, u.VNCUseUnix)
	setIf(&vnc.Host, u.VNCHost)
	setIf(&vnc.Display, u.VNCDisplay)
	setIf(&vnc.Sock, u.VNCSock)
	spice := &d.Display.SPICE
	setIf(&spice.UseUnix, u.SPICEUseUnix)
	setIf(&spice.Addr, u.SPICEAddr)
	setIf(&spice.Port, u.SPICEPort)
	setIf(&spice.DisableTicketing, u.SPICEDisableTicketing)
	setIf(&spice.Sock, u.SPICESock)

	if err := m.Store.Save(d); err != nil {
		return nil, err
	}
	return d, nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Describe loads the descriptor of an existing VM.
func (m *Manager) Describe(name string) (*Descriptor, error) {
	root, err := m.Paths.FindVMDir(name)
	if err != nil {
		return nil, err
	}
	return m.Store.LoadFromDir(root)
}

// State is the liveness of a VM as shown by list.
type State string

const (
	StateRunning State = "Running"
	StateStopped State = "Stopped"
)

// Summary pairs a descriptor with its liveness.
type Summary struct {
	State      State       `json:"state" yaml:"state"`
	Descriptor *Descriptor `json:"descriptor" yaml:"descriptor"`
}

// List returns every VM under the storage root.
func (m *Manager) List() ([]Summary, error) {
	descriptors, err := m.Store.List()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(descriptors))
	for _, d := range descriptors {
		state := StateStopped
		running, err := m.Liveness.IsRunning(d.Meta.Name)
		if err != nil {
			logrus.Debugf("Liveness check for %s failed: %v", d.Meta.Name, err)
		} else if running {
			state = StateRunning
		}
		out = append(out, Summary{Descriptor: d, State: state})
	}
	return out, nil
}

// Names returns the names of every VM, for shell completion.
func (m *Manager) Names() []string {
	summaries, err := m.List()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(summaries))
	for _, s := range summaries {
		names = append(names, s.Descriptor.Meta.Name)
	}
	return names
}
