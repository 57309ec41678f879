// Package vm manages the on-disk lifecycle of qvm virtual machine
// definitions: where they live, how their descriptors are stored, whether a
// VM is currently running, and how definitions are created and destroyed.
package vm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// StorageDirName is the directory under the user's home holding all VMs.
	StorageDirName = "qvm"
	// VMDirSuffix is appended to a VM name to form its directory.
	VMDirSuffix = ".qvm"
	// DescriptorFile is the descriptor file name inside a VM directory.
	DescriptorFile = "vm.json"
	// PIDFile is the liveness marker written by the hypervisor launcher.
	PIDFile = "vm.pid"
)

// StorageRoot returns the default storage root, <home>/qvm.
func StorageRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", &EnvironmentError{Err: err}
	}
	if home == "" {
		return "", &EnvironmentError{Err: errors.New("home directory is empty")}
	}
	return filepath.Join(home, StorageDirName), nil
}

// Paths resolves VM directories under a storage root.
type Paths struct {
	StorageRoot string
}

// NewPaths returns a Paths rooted at root.
func NewPaths(root string) *Paths {
	return &Paths{StorageRoot: root}
}

// DefaultPaths returns a Paths rooted at the default storage root.
func DefaultPaths() (*Paths, error) {
	root, err := StorageRoot()
	if err != nil {
		return nil, err
	}
	return NewPaths(root), nil
}

// VMRoot returns the directory for the named VM. It does not touch the
// filesystem.
func (p *Paths) VMRoot(name string) string {
	return filepath.Join(p.StorageRoot, name+VMDirSuffix)
}

// FindVMDir returns the directory of an existing VM. Names that would
// escape the storage root are rejected before any filesystem access.
func (p *Paths) FindVMDir(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	root := p.VMRoot(name)
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &NotFoundError{Name: name, StorageRoot: p.StorageRoot}
		}
		return "", &IOError{Op: "stat", Path: root, Err: err}
	}
	if !info.IsDir() {
		return "", &NotFoundError{Name: name, StorageRoot: p.StorageRoot}
	}
	return root, nil
}

// ResolveUnderRoot returns path unchanged when absolute, otherwise joined
// onto root.
func ResolveUnderRoot(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// DescriptorPath returns the descriptor location inside a VM directory.
func DescriptorPath(root string) string {
	return filepath.Join(root, DescriptorFile)
}

// PIDPath returns the liveness marker location inside a VM directory.
func PIDPath(root string) string {
	return filepath.Join(root, PIDFile)
}

// ValidateName rejects names that cannot safely become a directory name.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("VM name is required")
	}
	if name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("invalid VM name '%s': must not contain path separators", name)
	}
	return nil
}
