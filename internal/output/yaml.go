package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tnk4on/qvm/internal/vm"
)

// YAMLFormatter formats descriptors as YAML.
type YAMLFormatter struct{}

// FormatVM formats a single descriptor as YAML.
func (f *YAMLFormatter) FormatVM(d *vm.Descriptor) (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal VM to YAML: %w", err)
	}
	return string(data), nil
}

// FormatVMList formats a list of VMs as a YAML stream, one document per VM.
func (f *YAMLFormatter) FormatVMList(vms []vm.Summary) (string, error) {
	var buf bytes.Buffer
	for i, s := range vms {
		data, err := yaml.Marshal(s)
		if err != nil {
			return "", fmt.Errorf("failed to marshal VM %s to YAML: %w", s.Descriptor.Meta.Name, err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}
	return buf.String(), nil
}
