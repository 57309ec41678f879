package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tnk4on/qvm/internal/config"
	"github.com/tnk4on/qvm/internal/qemu"
	"github.com/tnk4on/qvm/internal/vm"
)

type stubBinaries struct{}

func (stubBinaries) Pick(arch qemu.Arch) (string, error) {
	if !arch.Valid() {
		return "", &qemu.UnsupportedArchError{Arch: string(arch)}
	}
	return "/opt/qemu/bin/" + arch.SystemBinaryName(), nil
}

type stubFirmware struct{}

func (stubFirmware) Locate(string, qemu.Arch) (qemu.FirmwarePair, error) {
	return qemu.FirmwarePair{Code: "/fw/code.fd", VarsTemplate: "/fw/vars.fd"}, nil
}

type stubDisks struct{}

func (stubDisks) CreateQcow2(_ context.Context, path, _ string) error {
	return os.WriteFile(path, []byte("qcow2"), 0644)
}

type stubProcesses map[int]bool

func (s stubProcesses) ProcessExists(pid int) bool {
	return s[pid]
}

// resetFlags restores every flag to its default; cobra keeps flag state
// between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// setupCommandTest isolates HOME and the QVM_* environment and points the
// manager at a temporary storage root with stubbed host tooling.
func setupCommandTest(t *testing.T, live stubProcesses) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	for _, env := range []string{
		config.EnvConfig, config.EnvStorage, config.EnvArch,
		config.EnvMemMB, config.EnvDisplayMode, config.EnvNetMode,
	} {
		t.Setenv(env, "")
	}

	root := filepath.Join(home, "qvm")
	origManager := newManager
	origCfg := cfg
	t.Cleanup(func() {
		newManager = origManager
		cfg = origCfg
	})

	newManager = func(cmd *cobra.Command) (*vm.Manager, error) {
		p := vm.NewPaths(root)
		return &vm.Manager{
			Paths:    p,
			Store:    vm.NewStore(p),
			Liveness: &vm.LivenessChecker{Paths: p, Processes: live},
			Binaries: stubBinaries{},
			Firmware: stubFirmware{},
			Disks:    stubDisks{},
			In:       cmd.InOrStdin(),
			Out:      cmd.OutOrStdout(),
			Now:      time.Now,
		}, nil
	}
	return root
}

func execute(t *testing.T, input string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(input))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func showDescriptor(t *testing.T, name string) vm.Descriptor {
	t.Helper()
	out, _, err := execute(t, "", "show", name)
	if err != nil {
		t.Fatalf("show %s: %v", name, err)
	}
	var d vm.Descriptor
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("show output is not JSON: %v\n%s", err, out)
	}
	return d
}

func TestCreateShowListDelete(t *testing.T) {
	root := setupCommandTest(t, stubProcesses{})

	out, _, err := execute(t, "", "create", "demo", "--disk-size", "8G")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	vmRoot := filepath.Join(root, "demo.qvm")
	if want := fmt.Sprintf("Created VM 'demo' at %s\n", vmRoot); out != want {
		t.Errorf("create output = %q, want %q", out, want)
	}
	if _, err := os.Stat(filepath.Join(vmRoot, "disk.qcow2")); err != nil {
		t.Errorf("disk not provisioned: %v", err)
	}

	d := showDescriptor(t, "demo")
	if d.Meta.Name != "demo" {
		t.Errorf("meta.name = %q, want demo", d.Meta.Name)
	}
	if d.Meta.Arch != qemu.ArchAArch64 {
		t.Errorf("meta.arch = %q, want aarch64", d.Meta.Arch)
	}
	if d.Hardware.VCPUs() != 4 {
		t.Errorf("vcpus = %d, want 4", d.Hardware.VCPUs())
	}
	if d.Hardware.MemMB != config.DefaultMemMB {
		t.Errorf("mem_mb = %d, want %d", d.Hardware.MemMB, config.DefaultMemMB)
	}
	if d.Firmware.Code != "/fw/code.fd" {
		t.Errorf("firmware.code = %q", d.Firmware.Code)
	}

	out, _, err = execute(t, "", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "NAME") || !strings.Contains(out, "demo") || !strings.Contains(out, "Stopped") {
		t.Errorf("list output missing VM row:\n%s", out)
	}

	out, _, err = execute(t, "n\n", "delete", "demo")
	if err != nil {
		t.Fatalf("delete (declined): %v", err)
	}
	if !strings.Contains(out, "Are you sure you want to delete this VM? [y/N]: ") {
		t.Errorf("missing confirmation prompt:\n%s", out)
	}
	if !strings.Contains(out, "Deletion cancelled.") {
		t.Errorf("missing cancellation message:\n%s", out)
	}
	if _, err := os.Stat(vmRoot); err != nil {
		t.Fatalf("VM directory removed after declined prompt: %v", err)
	}

	out, _, err = execute(t, "", "delete", "demo", "--force")
	if err != nil {
		t.Fatalf("delete --force: %v", err)
	}
	if out != "Successfully deleted VM 'demo'\n" {
		t.Errorf("delete output = %q", out)
	}
	if _, err := os.Stat(vmRoot); !os.IsNotExist(err) {
		t.Errorf("VM directory still exists after delete")
	}

	out, _, err = execute(t, "", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out != "No VMs found\n" {
		t.Errorf("list output after delete = %q", out)
	}
}

func TestCreateWithTopologyAndJSON(t *testing.T) {
	setupCommandTest(t, stubProcesses{})

	out, _, err := execute(t, "", "create", "builder", "--json",
		"--arch", "x86_64", "--cpu-model", "host",
		"--sockets", "1", "--cores", "4", "--threads", "2", "--mem", "8192")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var d vm.Descriptor
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("create --json output is not JSON: %v\n%s", err, out)
	}
	if d.Hardware.Sockets != 1 || d.Hardware.Cores != 4 || d.Hardware.Threads != 2 {
		t.Errorf("topology = %d/%d/%d, want 1/4/2", d.Hardware.Sockets, d.Hardware.Cores, d.Hardware.Threads)
	}
	if d.Hardware.CPUModel != "qemu64" {
		t.Errorf("cpu_model = %q, want qemu64 on x86_64", d.Hardware.CPUModel)
	}
	if d.Hardware.MemMB != 8192 {
		t.Errorf("mem_mb = %d, want 8192", d.Hardware.MemMB)
	}
}

func TestCreateRejectsInvalidMode(t *testing.T) {
	setupCommandTest(t, stubProcesses{})

	if _, _, err := execute(t, "", "create", "demo", "--display-mode", "x11"); err == nil {
		t.Error("expected error for unknown display mode")
	}
	if _, _, err := execute(t, "", "create", "demo", "--arch", "riscv64"); err == nil {
		t.Error("expected error for unsupported arch")
	}
}

func TestSetDisplay(t *testing.T) {
	setupCommandTest(t, stubProcesses{})

	if _, _, err := execute(t, "", "create", "desk"); err != nil {
		t.Fatalf("create: %v", err)
	}

	out, _, err := execute(t, "", "set-display", "desk", "vnc", "--vnc-display", "3")
	if err != nil {
		t.Fatalf("set-display: %v", err)
	}
	if out != "Display for VM 'desk' set to vnc\n" {
		t.Errorf("set-display output = %q", out)
	}

	d := showDescriptor(t, "desk")
	if d.Display.Mode != vm.DisplayVNC {
		t.Errorf("display.mode = %q, want vnc", d.Display.Mode)
	}
	if d.Display.VNC.Display != 3 {
		t.Errorf("vnc.display = %d, want 3", d.Display.VNC.Display)
	}
	if d.Display.VNC.Host != config.DefaultVNCHost {
		t.Errorf("vnc.host changed to %q", d.Display.VNC.Host)
	}

	if _, _, err := execute(t, "", "set-display", "desk", "sdl"); err == nil {
		t.Error("expected error for unknown display mode")
	}
}

func TestDeleteRunningVM(t *testing.T) {
	root := setupCommandTest(t, stubProcesses{4242: true})

	if _, _, err := execute(t, "", "create", "busy"); err != nil {
		t.Fatalf("create: %v", err)
	}
	vmRoot := filepath.Join(root, "busy.qvm")
	if err := os.WriteFile(filepath.Join(vmRoot, vm.PIDFile), []byte("4242\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, err := execute(t, "", "delete", "busy", "--force")
	var running *vm.VMRunningError
	if !errors.As(err, &running) {
		t.Fatalf("delete error = %v, want VMRunningError", err)
	}
	if running.PID != 4242 {
		t.Errorf("PID = %d, want 4242", running.PID)
	}
	if _, err := os.Stat(vmRoot); err != nil {
		t.Errorf("running VM directory was touched: %v", err)
	}

	out, _, err := execute(t, "", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Running") {
		t.Errorf("list should report the VM as running:\n%s", out)
	}
}

func TestDeleteMissingVM(t *testing.T) {
	setupCommandTest(t, stubProcesses{})

	_, _, err := execute(t, "", "delete", "ghost", "--force")
	var notFound *vm.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("delete error = %v, want NotFoundError", err)
	}
}

func TestShowFormats(t *testing.T) {
	setupCommandTest(t, stubProcesses{})

	if _, _, err := execute(t, "", "create", "demo"); err != nil {
		t.Fatalf("create: %v", err)
	}

	out, _, err := execute(t, "", "show", "demo", "-o", "yaml")
	if err != nil {
		t.Fatalf("show -o yaml: %v", err)
	}
	if !strings.Contains(out, "name: demo") {
		t.Errorf("yaml output missing name:\n%s", out)
	}

	if _, _, err := execute(t, "", "show", "demo", "-o", "xml"); err == nil {
		t.Error("expected error for unsupported output format")
	}
}

func TestBuildCreateOptionsPrecedence(t *testing.T) {
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	if err := createCmd.ParseFlags([]string{"--mem", "2048", "--sockets", "2", "--arch", "aarch64"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	c := config.DefaultConfig()
	c.Create.Arch = "x86_64"
	c.Create.MemMB = 8192
	c.Create.DisplayMode = "vnc"
	c.Create.SPICEPort = 6000
	disabled := false
	c.Create.SPICEDisableTicketing = &disabled

	opts, err := buildCreateOptions(createCmd, "demo", c)
	if err != nil {
		t.Fatalf("buildCreateOptions: %v", err)
	}

	if opts.Arch != qemu.ArchAArch64 {
		t.Errorf("Arch = %q, want flag value aarch64", opts.Arch)
	}
	if opts.MemMB != 2048 {
		t.Errorf("MemMB = %d, want flag value 2048", opts.MemMB)
	}
	if opts.DisplayMode != vm.DisplayVNC {
		t.Errorf("DisplayMode = %q, want config value vnc", opts.DisplayMode)
	}
	if opts.SPICE.Port != 6000 {
		t.Errorf("SPICE.Port = %d, want config value 6000", opts.SPICE.Port)
	}
	if opts.SPICE.DisableTicketing {
		t.Error("SPICE.DisableTicketing should follow config")
	}
	if opts.Topology.Sockets != 2 {
		t.Errorf("Topology.Sockets = %d, want 2", opts.Topology.Sockets)
	}
}

func TestParseForwardPort(t *testing.T) {
	tests := []struct {
		value   string
		want    int
		wantErr bool
	}{
		{value: "", want: 0},
		{value: "2222", want: 2222},
		{value: "ssh", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseForwardPort("ssh-port", tt.value, 2222)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseForwardPort(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseForwardPort(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}

	port, err := parseForwardPort("ssh-port", "auto", 20000)
	if err != nil {
		t.Fatalf("auto: %v", err)
	}
	if port < 20000 || port >= 20100 {
		t.Errorf("auto picked %d, want a port in [20000, 20100)", port)
	}
}

func TestPrintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "plain",
			err:  errors.New("boom"),
			want: []string{"Error: boom\n"},
		},
		{
			name: "running",
			err:  &vm.VMRunningError{Name: "demo", PID: 42},
			want: []string{"Error: Cannot delete VM 'demo'", "qvm stop demo"},
		},
		{
			name: "not found",
			err:  &vm.NotFoundError{Name: "ghost", StorageRoot: "/vms"},
			want: []string{"VM 'ghost' not found in /vms", "qvm list"},
		},
		{
			name: "wrapped parse error",
			err:  fmt.Errorf("load: %w", &vm.ParseError{Path: "/vms/x.qvm/vm.json", Err: errors.New("bad")}),
			want: []string{"/vms/x.qvm/vm.json is not a valid descriptor"},
		},
		{
			name: "binary",
			err:  &qemu.BinaryNotFoundError{Arch: qemu.ArchX8664},
			want: []string{"put qemu-system-x86_64 on PATH"},
		},
		{
			name: "firmware",
			err:  &qemu.FirmwareNotFoundError{Arch: qemu.ArchAArch64, Searched: []string{"/a", "/b"}},
			want: []string{"Searched:\n  /a\n  /b\n"},
		},
		{
			name: "disk",
			err:  &qemu.DiskProvisioningError{Size: "8G", Path: "/d", Output: "no space\n", Err: errors.New("exit 1")},
			want: []string{"qemu-img output:\n  no space\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printError(&buf, tt.err)
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output %q does not contain %q", buf.String(), w)
				}
			}
		})
	}
}

func TestCompletionCommand(t *testing.T) {
	setupCommandTest(t, stubProcesses{})

	for _, shell := range completionShells {
		t.Run(shell, func(t *testing.T) {
			out, _, err := execute(t, "", "completion", shell)
			if err != nil {
				t.Fatalf("completion %s: %v", shell, err)
			}
			if !strings.Contains(out, "qvm") {
				t.Errorf("%s completion does not mention qvm", shell)
			}
		})
	}

	if _, _, err := execute(t, "", "completion", "tcsh"); err == nil {
		t.Error("expected error for unsupported shell")
	}
}

func TestCompletionToFile(t *testing.T) {
	setupCommandTest(t, stubProcesses{})

	path := filepath.Join(t.TempDir(), "qvm.bash")
	_, stderr, err := execute(t, "", "completion", "bash", "--file", path)
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	if !strings.Contains(stderr, path) {
		t.Errorf("stderr = %q, want path", stderr)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("completion file not written: %v", err)
	}
}

func TestInstallFish(t *testing.T) {
	setupCommandTest(t, stubProcesses{})
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	out, _, err := execute(t, "", "install-fish")
	if err != nil {
		t.Fatalf("install-fish: %v", err)
	}
	path := filepath.Join(xdg, "fish", "completions", "qvm.fish")
	if out != "Fish completions installed to: "+path+"\n" {
		t.Errorf("install-fish output = %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("fish completions not written: %v", err)
	}
	if !strings.Contains(string(data), "complete -c qvm") {
		t.Error("fish completions do not target qvm")
	}
}

func TestFishCompletionPathDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	path, err := fishCompletionPath()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".config", "fish", "completions", "qvm.fish"); path != want {
		t.Errorf("fishCompletionPath() = %q, want %q", path, want)
	}
}

func TestManPage(t *testing.T) {
	setupCommandTest(t, stubProcesses{})

	out, _, err := execute(t, "", "man-page")
	if err != nil {
		t.Fatalf("man-page: %v", err)
	}
	if !strings.Contains(out, ".TH") || !strings.Contains(out, "QVM") {
		t.Errorf("man page missing title header:\n%s", out)
	}
	if !strings.Contains(out, "create") {
		t.Error("man page does not list subcommands")
	}
}

func TestConfigInitAndPath(t *testing.T) {
	setupCommandTest(t, stubProcesses{})

	out, stderr, err := execute(t, "", "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	path := strings.TrimSpace(out)
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("config path = %q", path)
	}
	if !strings.Contains(stderr, "(file does not exist)") {
		t.Errorf("stderr = %q, want missing-file note", stderr)
	}

	out, _, err = execute(t, "", "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if out != "Configuration written to "+path+"\n" {
		t.Errorf("config init output = %q", out)
	}
	if _, err := config.Load(path); err != nil {
		t.Errorf("written config does not load: %v", err)
	}

	if _, _, err := execute(t, "", "config", "init"); err == nil {
		t.Error("second config init should refuse to overwrite")
	}
	if _, _, err := execute(t, "", "config", "init", "--force"); err != nil {
		t.Errorf("config init --force: %v", err)
	}
}

func TestConfigShow(t *testing.T) {
	setupCommandTest(t, stubProcesses{})
	t.Setenv(config.EnvMemMB, "1024")

	out, _, err := execute(t, "", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "mem_mb: 1024") {
		t.Errorf("config show does not reflect %s:\n%s", config.EnvMemMB, out)
	}

	out, _, err = execute(t, "", "config", "show", "--json")
	if err != nil {
		t.Fatalf("config show --json: %v", err)
	}
	var c config.Config
	if err := json.Unmarshal([]byte(out), &c); err != nil {
		t.Fatalf("config show --json is not JSON: %v", err)
	}
	if c.Create.MemMB != 1024 {
		t.Errorf("mem_mb = %d, want 1024", c.Create.MemMB)
	}
}

func TestVersionCommand(t *testing.T) {
	setupCommandTest(t, stubProcesses{})

	out, _, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "qvm version "+version) {
		t.Errorf("version output = %q", out)
	}

	out, _, err = execute(t, "", "version", "--json")
	if err != nil {
		t.Fatalf("version --json: %v", err)
	}
	var info versionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("version --json is not JSON: %v", err)
	}
	if info.Version != version {
		t.Errorf("version = %q, want %q", info.Version, version)
	}
}
