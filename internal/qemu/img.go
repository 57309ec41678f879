package qemu

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
)

// DiskProvisioningError is returned when a qcow2 image cannot be created.
type DiskProvisioningError struct {
	Size   string // as requested, before conversion to bytes
	Path   string
	Output string
	Err    error
}

func (e *DiskProvisioningError) Error() string {
	msg := fmt.Sprintf("qemu-img failed to create disk %s (size: %s)", e.Path, e.Size)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\nOutput: " + out
	}
	return msg
}

func (e *DiskProvisioningError) Unwrap() error {
	return e.Err
}

// ParseDiskSize converts a human size such as "64G" or "512MiB" to bytes.
// Suffixes are binary (1G = 1024^3), matching qemu-img.
func ParseDiskSize(size string) (int64, error) {
	n, err := units.RAMInBytes(strings.TrimSpace(size))
	if err != nil {
		return 0, fmt.Errorf("invalid disk size %q: %w", size, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid disk size %q: must be greater than zero", size)
	}
	return n, nil
}

// ImageTool runs qemu-img.
type ImageTool struct {
	// Binary is the qemu-img executable (default: "qemu-img" from PATH).
	Binary string
}

// NewImageTool returns an ImageTool using qemu-img from PATH.
func NewImageTool() *ImageTool {
	return &ImageTool{Binary: "qemu-img"}
}

// CreateQcow2 creates an empty qcow2 image of the given size at path.
// The size is parsed with go-units (RAMInBytes, binary multiples) and handed
// to qemu-img as a plain byte count, so qemu-img never interprets the suffix.
// A DiskProvisioningError carries the size string as the caller wrote it.
func (t *ImageTool) CreateQcow2(ctx context.Context, path, size string) error {
	bytes, err := ParseDiskSize(size)
	if err != nil {
		return &DiskProvisioningError{Size: size, Path: path, Err: err}
	}

	bin := t.Binary
	if bin == "" {
		bin = "qemu-img"
	}

	cmd := exec.CommandContext(ctx, bin, "create", "-f", "qcow2", path, strconv.FormatInt(bytes, 10))
	logrus.Debugf("Running %v", cmd.Args)
	if out, err := cmd.CombinedOutput(); err != nil {
		return &DiskProvisioningError{Size: size, Path: path, Output: string(out), Err: err}
	}
	return nil
}
