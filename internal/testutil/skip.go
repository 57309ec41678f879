package testutil

import (
	"os"
	"os/exec"
	"runtime"
	"testing"
)

// SkipIfWindows skips tests that rely on POSIX shell scripts or signals.
func SkipIfWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("Test requires a POSIX host")
	}
}

// SkipIfRoot skips the test if running as root.
func SkipIfRoot(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "windows" && os.Geteuid() == 0 {
		t.Skip("Test should not run as root")
	}
}

// SkipIfQEMUUnavailable skips unless qemu-img and the given qemu-system
// binary are on PATH.
func SkipIfQEMUUnavailable(t *testing.T, systemBinary string) {
	t.Helper()
	for _, bin := range []string{"qemu-img", systemBinary} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available, skipping test", bin)
		}
	}
}
