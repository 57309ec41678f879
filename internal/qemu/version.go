package qemu

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"unicode"
)

// MinVersion is the oldest QEMU release whose edk2 firmware layout qvm
// knows how to find.
const MinVersion = "7.0.0"

// Version runs `<bin> --version` and returns the dotted release number,
// e.g. "9.0.2" from "QEMU emulator version 9.0.2".
func Version(ctx context.Context, bin string) (string, error) {
	out, err := exec.CommandContext(ctx, bin, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to run %s --version: %w", bin, err)
	}
	v := extractVersion(string(out))
	if v == "" {
		return "", fmt.Errorf("cannot parse version from %s output", bin)
	}
	return v, nil
}

// extractVersion returns the first token that looks like N.N[.N], ignoring a
// leading "v" and any trailing distro suffix such as "(qemu-9.0.2-1.fc40)".
func extractVersion(s string) string {
	for _, part := range strings.Fields(s) {
		clean := strings.TrimPrefix(strings.TrimRight(part, ",:"), "v")
		if len(clean) >= 3 && unicode.IsDigit(rune(clean[0])) && strings.Contains(clean, ".") {
			return clean
		}
	}
	return ""
}

// CompareVersions compares two dotted versions.
// Returns: -1 if a < b, 0 if a == b, 1 if a > b.
func CompareVersions(a, b string) int {
	aParts := strings.Split(strings.TrimPrefix(a, "v"), ".")
	bParts := strings.Split(strings.TrimPrefix(b, "v"), ".")

	for i := 0; i < 3; i++ {
		var aNum, bNum int
		if i < len(aParts) {
			fmt.Sscanf(aParts[i], "%d", &aNum)
		}
		if i < len(bParts) {
			fmt.Sscanf(bParts[i], "%d", &bNum)
		}
		if aNum < bNum {
			return -1
		}
		if aNum > bNum {
			return 1
		}
	}
	return 0
}

// CheckVersion reports an error when version is older than MinVersion.
func CheckVersion(version string) error {
	if CompareVersions(version, MinVersion) < 0 {
		return fmt.Errorf("QEMU %s is too old (required: >=%s)", version, MinVersion)
	}
	return nil
}
