package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tnk4on/qvm/internal/config"
	"github.com/tnk4on/qvm/internal/qemu"
	"github.com/tnk4on/qvm/internal/vm"
)

var createOpts struct {
	arch     string
	cpuModel string
	smp      int
	sockets  int
	cores    int
	threads  int
	mem      int
	netMode  string
	bridgeIf string
	display  string
	disk     string
	diskSize string
	sshPort  string
	meyePort string

	vncHost    string
	vncDisplay int
	vncSock    string
	vncUnix    bool

	spiceAddr             string
	spicePort             int
	spiceSock             string
	spiceUnix             bool
	spiceDisableTicketing bool
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new VM",
	Long: `Create a new VM definition under <storage>/<name>.qvm/.

The qemu-system binary for the chosen architecture must be installed; its
UEFI firmware is discovered automatically. With --disk-size, a qcow2 disk is
created with qemu-img when the disk does not exist yet.

Defaults for every flag can be set in the create section of the config file.`,
	Example: `  qvm create demo --disk-size 64G
  qvm create builder --arch x86_64 --sockets 1 --cores 4 --threads 2 --mem 8192
  qvm create desk --display-mode spice --spice-unix`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	flags := createCmd.Flags()
	flags.StringVar(&createOpts.arch, "arch", config.DefaultArch, "guest architecture (aarch64|x86_64)")
	flags.StringVar(&createOpts.cpuModel, "cpu-model", config.DefaultCPUModel, "CPU model (e.g. host, qemu64, max)")
	flags.IntVar(&createOpts.smp, "smp", 0, "vCPU count (ignored if --sockets/--cores/--threads is set)")
	flags.IntVar(&createOpts.sockets, "sockets", 0, "CPU topology: sockets")
	flags.IntVar(&createOpts.cores, "cores", 0, "CPU topology: cores per socket")
	flags.IntVar(&createOpts.threads, "threads", 0, "CPU topology: threads per core")
	flags.IntVar(&createOpts.mem, "mem", config.DefaultMemMB, "memory in MB")
	flags.StringVar(&createOpts.netMode, "net-mode", config.DefaultNetMode, "network mode (vmnet-shared|vmnet-bridged|user)")
	flags.StringVar(&createOpts.bridgeIf, "bridge-if", config.DefaultBridgeIf, "bridge interface (when vmnet-bridged)")
	flags.StringVar(&createOpts.display, "display-mode", config.DefaultDisplayMode, "display mode (cocoa|vnc|spice|headless)")
	flags.StringVar(&createOpts.disk, "disk", "", "disk path (qcow2); relative paths are under the VM directory (default disk.qcow2)")
	flags.StringVar(&createOpts.diskSize, "disk-size", "", "create a qcow2 disk of this size if absent (e.g. 64G)")
	flags.StringVar(&createOpts.sshPort, "ssh-port", "", "host port forwarded to guest SSH in user networking (number or auto)")
	flags.StringVar(&createOpts.meyePort, "meye-port", "", "host port for the meye forward in user networking (number or auto)")

	flags.StringVar(&createOpts.vncHost, "vnc-host", config.DefaultVNCHost, "VNC listen host")
	flags.IntVar(&createOpts.vncDisplay, "vnc-display", config.DefaultVNCDisplay, "VNC display number")
	flags.StringVar(&createOpts.vncSock, "vnc-sock", "", "VNC UNIX socket path (default vnc.sock)")
	flags.BoolVar(&createOpts.vncUnix, "vnc-unix", false, "use a UNIX socket for VNC")

	flags.StringVar(&createOpts.spiceAddr, "spice-addr", config.DefaultSPICEAddr, "SPICE listen address")
	flags.IntVar(&createOpts.spicePort, "spice-port", config.DefaultSPICEPort, "SPICE port")
	flags.StringVar(&createOpts.spiceSock, "spice-sock", "", "SPICE UNIX socket path (default spice.sock)")
	flags.BoolVar(&createOpts.spiceUnix, "spice-unix", false, "use a UNIX socket for SPICE")
	flags.BoolVar(&createOpts.spiceDisableTicketing, "spice-disable-ticketing", config.DefaultSPICEDisableTicketing, "disable SPICE authentication")

	_ = createCmd.RegisterFlagCompletionFunc("arch", cobra.FixedCompletions(qemu.ArchNames(), cobra.ShellCompDirectiveNoFileComp))
	_ = createCmd.RegisterFlagCompletionFunc("net-mode", cobra.FixedCompletions(modeNames(vm.NetworkModes), cobra.ShellCompDirectiveNoFileComp))
	_ = createCmd.RegisterFlagCompletionFunc("display-mode", cobra.FixedCompletions(modeNames(vm.DisplayModes), cobra.ShellCompDirectiveNoFileComp))
}

func runCreate(cmd *cobra.Command, args []string) error {
	opts, err := buildCreateOptions(cmd, args[0], getConfig())
	if err != nil {
		return err
	}

	m, err := newManager(cmd)
	if err != nil {
		return err
	}

	d, err := m.Create(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if jsonOut {
		return printFormatted(cmd, "json", d)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created VM '%s' at %s\n", d.Meta.Name, d.Paths.Root)
	return nil
}

// buildCreateOptions merges flags over the config defaults. A flag only wins
// when it was set on the command line.
func buildCreateOptions(cmd *cobra.Command, name string, c *config.Config) (vm.CreateOptions, error) {
	flags := cmd.Flags()
	pick := func(flag, fromFlag, fromConfig string) string {
		if flags.Changed(flag) || fromConfig == "" {
			return fromFlag
		}
		return fromConfig
	}
	pickInt := func(flag string, fromFlag, fromConfig int) int {
		if flags.Changed(flag) || fromConfig == 0 {
			return fromFlag
		}
		return fromConfig
	}

	arch, err := qemu.ParseArch(pick("arch", createOpts.arch, c.Create.Arch))
	if err != nil {
		return vm.CreateOptions{}, err
	}
	netMode, err := vm.ParseNetworkMode(pick("net-mode", createOpts.netMode, c.Create.NetMode))
	if err != nil {
		return vm.CreateOptions{}, err
	}
	displayMode, err := vm.ParseDisplayMode(pick("display-mode", createOpts.display, c.Create.DisplayMode))
	if err != nil {
		return vm.CreateOptions{}, err
	}

	sshPort, err := parseForwardPort("ssh-port", createOpts.sshPort, vm.DefaultSSHForwardPort)
	if err != nil {
		return vm.CreateOptions{}, err
	}
	meyePort, err := parseForwardPort("meye-port", createOpts.meyePort, vm.DefaultMEyeForwardPort)
	if err != nil {
		return vm.CreateOptions{}, err
	}

	disableTicketing := c.SPICETicketingDisabled()
	if flags.Changed("spice-disable-ticketing") {
		disableTicketing = createOpts.spiceDisableTicketing
	}

	return vm.CreateOptions{
		Name:     name,
		Arch:     arch,
		CPUModel: pick("cpu-model", createOpts.cpuModel, c.Create.CPUModel),
		Topology: vm.Topology{
			SMP:     pickInt("smp", createOpts.smp, c.Create.SMP),
			Sockets: createOpts.sockets,
			Cores:   createOpts.cores,
			Threads: createOpts.threads,
		},
		MemMB:       pickInt("mem", createOpts.mem, c.Create.MemMB),
		Disk:        createOpts.disk,
		DiskSize:    pick("disk-size", createOpts.diskSize, c.Create.DiskSize),
		NetMode:     netMode,
		BridgeIf:    pick("bridge-if", createOpts.bridgeIf, c.Create.BridgeIf),
		Forwards:    vm.Forwards{SSH: sshPort, MEye: meyePort},
		DisplayMode: displayMode,
		VNC: vm.VNC{
			UseUnix: createOpts.vncUnix,
			Host:    pick("vnc-host", createOpts.vncHost, c.Create.VNCHost),
			Display: pickInt("vnc-display", createOpts.vncDisplay, c.Create.VNCDisplay),
			Sock:    createOpts.vncSock,
		},
		SPICE: vm.SPICE{
			UseUnix:          createOpts.spiceUnix,
			Addr:             pick("spice-addr", createOpts.spiceAddr, c.Create.SPICEAddr),
			Port:             pickInt("spice-port", createOpts.spicePort, c.Create.SPICEPort),
			DisableTicketing: disableTicketing,
			Sock:             createOpts.spiceSock,
		},
	}, nil
}

// parseForwardPort reads a forward flag: empty means none, "auto" picks the
// first free host port at or above base.
func parseForwardPort(flag, value string, base int) (int, error) {
	switch value {
	case "":
		return 0, nil
	case "auto":
		return vm.FindAvailablePort(base)
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s %q: expected a port number or auto", flag, value)
	}
	return port, nil
}

func modeNames[T ~string](modes []T) []string {
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return names
}
