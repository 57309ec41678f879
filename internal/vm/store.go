package vm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Store reads and writes VM descriptors.
type Store struct {
	Paths *Paths
}

// NewStore returns a Store over p.
func NewStore(p *Paths) *Store {
	return &Store{Paths: p}
}

// Save writes d to <paths.root>/vm.json, replacing any existing descriptor.
func (s *Store) Save(d *Descriptor) error {
	path := DescriptorPath(d.Paths.Root)
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return &IOError{Op: "encode", Path: path, Err: err}
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	logrus.Debugf("Wrote descriptor %s", path)
	return nil
}

// Load reads the descriptor of the named VM.
func (s *Store) Load(name string) (*Descriptor, error) {
	root, err := s.Paths.FindVMDir(name)
	if err != nil {
		return nil, err
	}
	return s.LoadFromDir(root)
}

// LoadFromDir reads the descriptor stored in a VM directory.
func (s *Store) LoadFromDir(root string) (*Descriptor, error) {
	path := DescriptorPath(root)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Name: strings.TrimSuffix(filepath.Base(root), VMDirSuffix), StorageRoot: s.Paths.StorageRoot, Path: path}
		}
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if err := d.Validate(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &d, nil
}

// List loads every VM under the storage root, sorted by directory name.
// Directories whose descriptor cannot be loaded are skipped.
func (s *Store) List() ([]*Descriptor, error) {
	entries, err := os.ReadDir(s.Paths.StorageRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &IOError{Op: "read", Path: s.Paths.StorageRoot, Err: err}
	}

	var out []*Descriptor
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), VMDirSuffix) {
			continue
		}
		d, err := s.LoadFromDir(s.Paths.VMRoot(strings.TrimSuffix(entry.Name(), VMDirSuffix)))
		if err != nil {
			logrus.Debugf("Skipping %s: %v", entry.Name(), err)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
