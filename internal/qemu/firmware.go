package qemu

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultFirmwareDir is the firmware directory of the Nix system profile.
	DefaultFirmwareDir = NixSystemProfile + "/share/qemu"
	// NixProfileFirmwareDir is the same directory reached through the
	// system profile symlink chain.
	NixProfileFirmwareDir = "/nix/var/nix/profiles/system/sw/share/qemu"
	// NixStoreRoot is scanned for qemu store paths as a last resort.
	NixStoreRoot = "/nix/store"
)

// FirmwarePair is a UEFI code image and the template its per-VM variable
// store is copied from.
type FirmwarePair struct {
	Code         string
	VarsTemplate string
}

type firmwareNames struct {
	code string
	vars string
}

// firmwareNamesByArch is in preference order; the first pair present in a
// directory wins.
var firmwareNamesByArch = map[Arch][]firmwareNames{
	ArchAArch64: {
		{code: "edk2-aarch64-code.fd", vars: "edk2-arm-vars.fd"},
		{code: "edk2-aarch64-code.fd", vars: "edk2-aarch64-vars.fd"},
	},
	ArchX8664: {
		{code: "OVMF_CODE.fd", vars: "OVMF_VARS.fd"},
		{code: "edk2-x86_64-code.fd", vars: "edk2-x86_64-vars.fd"},
		{code: "edk2-x86_64-code.fd", vars: "edk2-i386-vars.fd"},
	},
}

// FirmwareNotFoundError is returned when no directory holds a complete pair.
type FirmwareNotFoundError struct {
	Arch Arch
	// Searched lists the directories that were probed, in order.
	Searched []string
}

func (e *FirmwareNotFoundError) Error() string {
	return fmt.Sprintf("UEFI firmware not found for %s (searched %d directories)", e.Arch, len(e.Searched))
}

// SearchProvider contributes candidate firmware directories for a qemu binary.
type SearchProvider interface {
	Dirs(qemuBin string, arch Arch) []string
}

// DerivedShareProvider derives .../share/qemu from the qemu binary location,
// following symlinks so that profile links resolve to the real install prefix.
type DerivedShareProvider struct {
	// Fallback is used when no directory can be derived from the binary.
	Fallback string
}

func (p DerivedShareProvider) Dirs(qemuBin string, arch Arch) []string {
	resolved, err := filepath.EvalSymlinks(qemuBin)
	if err != nil {
		resolved = qemuBin
	}

	if strings.Contains(resolved, "/bin/qemu-system-") {
		return []string{strings.Replace(resolved, "/bin/"+arch.SystemBinaryName(), "/share/qemu", 1)}
	}

	if !filepath.IsAbs(qemuBin) {
		return []string{p.Fallback}
	}
	prefix := filepath.Dir(filepath.Dir(qemuBin))
	return []string{filepath.Join(prefix, "share", "qemu")}
}

// StaticProvider returns a fixed list of directories.
type StaticProvider []string

func (p StaticProvider) Dirs(string, Arch) []string {
	return p
}

// StoreScanProvider scans a package store for entries whose name contains
// Match and yields their share/qemu directory. A missing or unreadable store
// contributes nothing.
type StoreScanProvider struct {
	Root  string
	Match string
}

func (p StoreScanProvider) Dirs(string, Arch) []string {
	entries, err := os.ReadDir(p.Root)
	if err != nil {
		logrus.Debugf("Skipping firmware store scan of %s: %v", p.Root, err)
		return nil
	}

	var dirs []string
	for _, e := range entries {
		if !strings.Contains(e.Name(), p.Match) {
			continue
		}
		d := filepath.Join(p.Root, e.Name(), "share", "qemu")
		if isDir(d) {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// FirmwareLocator finds the firmware pair for a qemu binary by walking the
// directories of its providers in order.
type FirmwareLocator struct {
	Providers []SearchProvider
}

// NewFirmwareLocator returns the default search order: the directory derived
// from the binary, the two Nix system profile paths, then the Nix store.
func NewFirmwareLocator() *FirmwareLocator {
	return &FirmwareLocator{
		Providers: []SearchProvider{
			DerivedShareProvider{Fallback: DefaultFirmwareDir},
			StaticProvider{DefaultFirmwareDir, NixProfileFirmwareDir},
			StoreScanProvider{Root: NixStoreRoot, Match: "-qemu-"},
		},
	}
}

// SearchDirs returns the candidate directories for qemuBin, in probe order.
func (l *FirmwareLocator) SearchDirs(qemuBin string, arch Arch) []string {
	var dirs []string
	for _, p := range l.Providers {
		dirs = append(dirs, p.Dirs(qemuBin, arch)...)
	}
	return dirs
}

// Locate returns the first directory × pair combination where both files are
// regular files. Directories are walked in SearchDirs order and pairs in
// preference order within each directory.
func (l *FirmwareLocator) Locate(qemuBin string, arch Arch) (FirmwarePair, error) {
	names, ok := firmwareNamesByArch[arch]
	if !ok {
		return FirmwarePair{}, &UnsupportedArchError{Arch: string(arch)}
	}

	dirs := l.SearchDirs(qemuBin, arch)
	logrus.Debugf("firmware search dirs for %s = %v", arch, dirs)

	for _, d := range dirs {
		if !isDir(d) {
			continue
		}
		for _, n := range names {
			code := filepath.Join(d, n.code)
			vars := filepath.Join(d, n.vars)
			if isRegularFile(code) && isRegularFile(vars) {
				return FirmwarePair{Code: code, VarsTemplate: vars}, nil
			}
		}
	}

	return FirmwarePair{}, &FirmwareNotFoundError{Arch: arch, Searched: dirs}
}

// DefaultFirmware returns the fixed pair used when discovery fails. The files
// are not checked for existence.
func DefaultFirmware(arch Arch) FirmwarePair {
	if arch == ArchAArch64 {
		return FirmwarePair{
			Code:         filepath.Join(DefaultFirmwareDir, "edk2-aarch64-code.fd"),
			VarsTemplate: filepath.Join(DefaultFirmwareDir, "edk2-arm-vars.fd"),
		}
	}
	return FirmwarePair{
		Code:         filepath.Join(DefaultFirmwareDir, "OVMF_CODE.fd"),
		VarsTemplate: filepath.Join(DefaultFirmwareDir, "OVMF_VARS.fd"),
	}
}
