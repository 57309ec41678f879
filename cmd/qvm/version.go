package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tnk4on/qvm/internal/qemu"
)

// These variables are set at build time via ldflags
var (
	commit    = "unknown"
	buildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print detailed version information including:
  - Version number
  - Git commit hash
  - Build date
  - Go version
  - OS/Architecture
  - The QEMU found for the host architecture`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := collectVersion(cmd)
		if jsonOut {
			return printVersionJSON(cmd.OutOrStdout(), info)
		}
		printVersion(cmd.OutOrStdout(), info)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

type versionInfo struct {
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	BuildDate   string `json:"buildDate"`
	GoVersion   string `json:"goVersion"`
	OS          string `json:"os"`
	Arch        string `json:"arch"`
	QEMUBinary  string `json:"qemuBinary,omitempty"`
	QEMUVersion string `json:"qemuVersion,omitempty"`
	QEMUWarning string `json:"qemuWarning,omitempty"`
}

// hostArch maps GOARCH onto the guest architecture that runs natively.
func hostArch() qemu.Arch {
	switch runtime.GOARCH {
	case "arm64":
		return qemu.ArchAArch64
	case "amd64":
		return qemu.ArchX8664
	}
	return ""
}

func collectVersion(cmd *cobra.Command) versionInfo {
	info := versionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	arch := hostArch()
	if arch == "" {
		return info
	}
	bin, err := qemu.NewBinaryLocator().Pick(arch)
	if err != nil {
		info.QEMUWarning = err.Error()
		return info
	}
	info.QEMUBinary = bin
	v, err := qemu.Version(cmd.Context(), bin)
	if err != nil {
		info.QEMUWarning = err.Error()
		return info
	}
	info.QEMUVersion = v
	if err := qemu.CheckVersion(v); err != nil {
		info.QEMUWarning = err.Error()
	}
	return info
}

func printVersion(w io.Writer, info versionInfo) {
	fmt.Fprintf(w, "qvm version %s\n", info.Version)
	fmt.Fprintf(w, "  Commit:     %s\n", info.Commit)
	fmt.Fprintf(w, "  Build Date: %s\n", info.BuildDate)
	fmt.Fprintf(w, "  Go Version: %s\n", info.GoVersion)
	fmt.Fprintf(w, "  OS/Arch:    %s/%s\n", info.OS, info.Arch)
	if info.QEMUVersion != "" {
		fmt.Fprintf(w, "  QEMU:       %s (%s)\n", info.QEMUVersion, info.QEMUBinary)
	}
	if info.QEMUWarning != "" {
		fmt.Fprintf(w, "  Warning:    %s\n", info.QEMUWarning)
	}
}

func printVersionJSON(w io.Writer, info versionInfo) error {
	output, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal version info: %w", err)
	}
	fmt.Fprintln(w, string(output))
	return nil
}
