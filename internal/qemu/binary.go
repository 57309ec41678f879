package qemu

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// NixSystemProfile is the NixOS system profile that carries qemu and its
// firmware when QEMU is installed system-wide.
const NixSystemProfile = "/run/current-system/sw"

// BinaryNotFoundError is returned when no qemu-system candidate resolves.
type BinaryNotFoundError struct {
	Arch Arch
}

func (e *BinaryNotFoundError) Error() string {
	return fmt.Sprintf("%s not found (install QEMU or add it to PATH)", e.Arch.SystemBinaryName())
}

// BinaryLocator picks the hypervisor executable for a guest architecture.
type BinaryLocator struct {
	// Candidates are tried in order. Absolute entries are used as-is, bare
	// names are resolved with LookPath.
	Candidates map[Arch][]string
	// LookPath resolves bare executable names (default: exec.LookPath).
	LookPath func(file string) (string, error)
}

// DefaultBinaryCandidates returns the search order for each architecture:
// the Nix system profile first, then PATH.
func DefaultBinaryCandidates() map[Arch][]string {
	candidates := make(map[Arch][]string, len(SupportedArchs))
	for _, a := range SupportedArchs {
		candidates[a] = []string{
			filepath.Join(NixSystemProfile, "bin", a.SystemBinaryName()),
			a.SystemBinaryName(),
		}
	}
	return candidates
}

// NewBinaryLocator returns a locator using DefaultBinaryCandidates and PATH.
func NewBinaryLocator() *BinaryLocator {
	return &BinaryLocator{
		Candidates: DefaultBinaryCandidates(),
		LookPath:   exec.LookPath,
	}
}

// Pick returns the first candidate for arch that exists and is a regular file.
func (l *BinaryLocator) Pick(arch Arch) (string, error) {
	if !arch.Valid() {
		return "", &UnsupportedArchError{Arch: string(arch)}
	}

	lookPath := l.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	for _, c := range l.Candidates[arch] {
		p := c
		if !filepath.IsAbs(c) {
			resolved, err := lookPath(c)
			if err != nil {
				logrus.Debugf("qemu binary candidate %s not in PATH: %v", c, err)
				continue
			}
			p = resolved
		}
		if isRegularFile(p) {
			logrus.Debugf("Using qemu binary %s", p)
			return p, nil
		}
		logrus.Debugf("qemu binary candidate %s is not a regular file", p)
	}

	return "", &BinaryNotFoundError{Arch: arch}
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
