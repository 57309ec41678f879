package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tnk4on/qvm/internal/vm"
)

var setDisplayOpts struct {
	vncUnix    bool
	vncHost    string
	vncDisplay int
	vncSock    string

	spiceUnix             bool
	spiceAddr             string
	spicePort             int
	spiceSock             string
	spiceDisableTicketing bool
}

var setDisplayCmd = &cobra.Command{
	Use:   "set-display <name> <cocoa|vnc|spice|headless>",
	Short: "Persist display settings in vm.json",
	Long: `Switch a VM's display mode and optionally update its VNC or SPICE
settings. Only the flags given are changed; the rest of the descriptor is
left untouched.`,
	Example: `  qvm set-display demo vnc --vnc-display 2
  qvm set-display demo spice --spice-unix
  qvm set-display demo headless`,
	Args: cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 1 {
			return modeNames(vm.DisplayModes), cobra.ShellCompDirectiveNoFileComp
		}
		return completeVMNames(cmd, args, toComplete)
	},
	RunE: runSetDisplay,
}

func init() {
	flags := setDisplayCmd.Flags()
	flags.BoolVar(&setDisplayOpts.vncUnix, "vnc-unix", false, "use a UNIX socket for VNC")
	flags.StringVar(&setDisplayOpts.vncHost, "vnc-host", "", "VNC listen host")
	flags.IntVar(&setDisplayOpts.vncDisplay, "vnc-display", 0, "VNC display number")
	flags.StringVar(&setDisplayOpts.vncSock, "vnc-sock", "", "VNC UNIX socket path")
	flags.BoolVar(&setDisplayOpts.spiceUnix, "spice-unix", false, "use a UNIX socket for SPICE")
	flags.StringVar(&setDisplayOpts.spiceAddr, "spice-addr", "", "SPICE listen address")
	flags.IntVar(&setDisplayOpts.spicePort, "spice-port", 0, "SPICE port")
	flags.StringVar(&setDisplayOpts.spiceSock, "spice-sock", "", "SPICE UNIX socket path")
	flags.BoolVar(&setDisplayOpts.spiceDisableTicketing, "spice-disable-ticketing", false, "disable SPICE authentication")
}

func runSetDisplay(cmd *cobra.Command, args []string) error {
	mode, err := vm.ParseDisplayMode(args[1])
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	u := vm.DisplayUpdate{
		Mode:                  mode,
		VNCUseUnix:            changed(flags, "vnc-unix", setDisplayOpts.vncUnix),
		VNCHost:               changed(flags, "vnc-host", setDisplayOpts.vncHost),
		VNCDisplay:            changed(flags, "vnc-display", setDisplayOpts.vncDisplay),
		VNCSock:               changed(flags, "vnc-sock", setDisplayOpts.vncSock),
		SPICEUseUnix:          changed(flags, "spice-unix", setDisplayOpts.spiceUnix),
		SPICEAddr:             changed(flags, "spice-addr", setDisplayOpts.spiceAddr),
		SPICEPort:             changed(flags, "spice-port", setDisplayOpts.spicePort),
		SPICEDisableTicketing: changed(flags, "spice-disable-ticketing", setDisplayOpts.spiceDisableTicketing),
		SPICESock:             changed(flags, "spice-sock", setDisplayOpts.spiceSock),
	}

	m, err := newManager(cmd)
	if err != nil {
		return err
	}
	d, err := m.SetDisplay(args[0], u)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Display for VM '%s' set to %s\n", d.Meta.Name, d.Display.Mode)
	return nil
}

// changed returns &v when the flag was given on the command line.
func changed[T any](flags *pflag.FlagSet, name string, v T) *T {
	if !flags.Changed(name) {
		return nil
	}
	return &v
}
