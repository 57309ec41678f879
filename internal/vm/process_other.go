//go:build !unix && !windows

package vm

func processExists(int) bool {
	return false
}
