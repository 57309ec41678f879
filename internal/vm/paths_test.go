package vm

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnk4on/qvm/internal/testutil"
)

func TestStorageRoot(t *testing.T) {
	home := testutil.SetHome(t)

	root, err := StorageRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "qvm"), root)

	p, err := DefaultPaths()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "qvm", "demo.qvm"), p.VMRoot("demo"))
}

func TestResolveUnderRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vm.qvm")
	abs := filepath.Join(t.TempDir(), "elsewhere", "disk.qcow2")

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "absolute is unchanged", path: abs, want: abs},
		{name: "relative joins root", path: "disk.qcow2", want: filepath.Join(root, "disk.qcow2")},
		{name: "nested relative", path: filepath.Join("sub", "efi_vars.fd"), want: filepath.Join(root, "sub", "efi_vars.fd")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveUnderRoot(root, tt.path))
		})
	}
}

func TestMarkerPaths(t *testing.T) {
	root := filepath.Join("store", "demo.qvm")
	assert.Equal(t, filepath.Join(root, "vm.json"), DescriptorPath(root))
	assert.Equal(t, filepath.Join(root, "vm.pid"), PIDPath(root))
}

func TestFindVMDir(t *testing.T) {
	p := NewPaths(t.TempDir())
	testutil.CreateDir(t, p.VMRoot("present"))
	testutil.WriteFile(t, p.StorageRoot, "file.qvm", "not a directory")

	got, err := p.FindVMDir("present")
	require.NoError(t, err)
	assert.Equal(t, p.VMRoot("present"), got)

	for _, name := range []string{"absent", "file"} {
		t.Run(name, func(t *testing.T) {
			_, err := p.FindVMDir(name)
			var notFound *NotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, name, notFound.Name)
			assert.Equal(t, p.StorageRoot, notFound.StorageRoot)
		})
	}

	// A sibling of the storage root must not be reachable through "..".
	outside := NewPaths(filepath.Dir(p.StorageRoot))
	testutil.CreateDir(t, outside.VMRoot("sibling"))
	for _, name := range []string{"../sibling", "..", ""} {
		_, err := p.FindVMDir(name)
		require.Error(t, err, name)
		var notFound *NotFoundError
		assert.False(t, errors.As(err, &notFound), name)
	}
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"demo", "my-vm_01", "a.b"} {
		assert.NoError(t, ValidateName(name), name)
	}
	for _, name := range []string{"", ".", "..", "a/b", "../x"} {
		assert.Error(t, ValidateName(name), name)
	}
}
