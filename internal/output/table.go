package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"

	"github.com/tnk4on/qvm/internal/vm"
)

// TableFormatter formats descriptors as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool

	// now is used to compute AGE; tests pin it.
	now func() time.Time
}

// FormatVM formats a single descriptor as a key/value listing.
func (f *TableFormatter) FormatVM(d *vm.Descriptor) (string, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	row := func(k, v string) { _, _ = fmt.Fprintf(w, "%s:\t%s\n", k, v) }
	row("Name", d.Meta.Name)
	row("UUID", d.Meta.UUID)
	row("Arch", string(d.Meta.Arch))
	row("Root", d.Paths.Root)
	row("Disk", d.DiskPath())
	row("EFI Vars", d.EFIVarsPath())
	row("CPU", fmt.Sprintf("%s (%d sockets x %d cores x %d threads)",
		d.Hardware.CPUModel, d.Hardware.Sockets, d.Hardware.Cores, d.Hardware.Threads))
	row("Memory", memory(d.Hardware.MemMB))
	row("Machine", fmt.Sprintf("%s, accel=%s", d.Hardware.Machine, d.Hardware.Accel))
	row("MAC", d.Hardware.MAC)
	row("Firmware", d.Firmware.Code)
	row("Network", network(d))
	row("Display", display(d))

	_ = w.Flush()
	return buf.String(), nil
}

// FormatVMList formats a list of VMs as a table.
func (f *TableFormatter) FormatVMList(vms []vm.Summary) (string, error) {
	if len(vms) == 0 {
		return "No VMs found\n", nil
	}

	now := time.Now
	if f.now != nil {
		now = f.now
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tSTATE\tARCH\tVCPUS\tMEMORY\tNETWORK\tDISPLAY\tAGE")
	}

	for _, s := range vms {
		d := s.Descriptor
		age := "-"
		if created, err := time.Parse(time.RFC3339, d.Meta.Generated); err == nil {
			age = formatAge(now().Sub(created))
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			d.Meta.Name, s.State, d.Meta.Arch, d.Hardware.VCPUs(), memory(d.Hardware.MemMB),
			d.Network.Mode, d.Display.Mode, age)
	}

	_ = w.Flush()
	return buf.String(), nil
}

func memory(mb int) string {
	return units.BytesSize(float64(mb) * units.MiB)
}

func network(d *vm.Descriptor) string {
	if d.Network.Mode == vm.NetworkVmnetBridged && d.Network.BridgeIf != "" {
		return fmt.Sprintf("%s (%s)", d.Network.Mode, d.Network.BridgeIf)
	}
	return string(d.Network.Mode)
}

func display(d *vm.Descriptor) string {
	switch d.Display.Mode {
	case vm.DisplayVNC:
		vnc := d.Display.VNC
		if vnc.UseUnix {
			return "vnc unix:" + vm.ResolveUnderRoot(d.Paths.Root, vnc.Sock)
		}
		return fmt.Sprintf("vnc %s:%d", vnc.Host, vnc.Display)
	case vm.DisplaySPICE:
		spice := d.Display.SPICE
		if spice.UseUnix {
			return "spice unix:" + vm.ResolveUnderRoot(d.Paths.Root, spice.Sock)
		}
		return fmt.Sprintf("spice %s:%d", spice.Addr, spice.Port)
	}
	return string(d.Display.Mode)
}

// formatAge formats a duration as a human-readable age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}
	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}
	weeks := days / 7
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}
	if years := days / 365; years > 0 {
		return fmt.Sprintf("%dy", years)
	}
	return fmt.Sprintf("%dd", days)
}
