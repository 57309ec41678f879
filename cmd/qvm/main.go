package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tnk4on/qvm/internal/qemu"
	"github.com/tnk4on/qvm/internal/vm"
)

var version = "dev"

func main() {
	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	if err := ExecuteWithContext(ctx); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError prints err and, for the errors qvm knows about, a hint on how
// to recover.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)

	var (
		notFound    *vm.NotFoundError
		running     *vm.VMRunningError
		parseErr    *vm.ParseError
		envErr      *vm.EnvironmentError
		binErr      *qemu.BinaryNotFoundError
		firmwareErr *qemu.FirmwareNotFoundError
		diskErr     *qemu.DiskProvisioningError
	)
	switch {
	case errors.As(err, &running):
		fmt.Fprintf(w, "\nHint: stop the VM first with 'qvm stop %s'\n", running.Name)
	case errors.As(err, &parseErr):
		fmt.Fprintf(w, "\nHint: %s is not a valid descriptor; inspect or remove it manually\n", parseErr.Path)
	case errors.As(err, &notFound):
		fmt.Fprintln(w, "\nHint: run 'qvm list' to see available VMs")
	case errors.As(err, &envErr):
		fmt.Fprintln(w, "\nHint: set HOME, or set paths.storage in the config file (or QVM_STORAGE)")
	case errors.As(err, &binErr):
		fmt.Fprintf(w, "\nHint: install QEMU or put %s on PATH\n", binErr.Arch.SystemBinaryName())
	case errors.As(err, &firmwareErr):
		fmt.Fprintf(w, "\nSearched:\n  %s\n", strings.Join(firmwareErr.Searched, "\n  "))
	case errors.As(err, &diskErr):
		if out := strings.TrimSpace(diskErr.Output); out != "" {
			fmt.Fprintf(w, "\nqemu-img output:\n  %s\n", out)
		}
	}
}
