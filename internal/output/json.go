package output

import (
	"encoding/json"
	"fmt"

	"github.com/tnk4on/qvm/internal/vm"
)

// JSONFormatter formats descriptors as JSON.
type JSONFormatter struct{}

// FormatVM formats a single descriptor as JSON, in the same shape as vm.json.
func (f *JSONFormatter) FormatVM(d *vm.Descriptor) (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal VM to JSON: %w", err)
	}
	return string(data) + "\n", nil
}

// FormatVMList formats a list of VMs as a JSON array.
func (f *JSONFormatter) FormatVMList(vms []vm.Summary) (string, error) {
	if len(vms) == 0 {
		return "[]\n", nil
	}

	data, err := json.MarshalIndent(vms, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal VMs to JSON: %w", err)
	}
	return string(data) + "\n", nil
}
