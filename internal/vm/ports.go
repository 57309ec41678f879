package vm

import (
	"fmt"
	"net"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Default host ports for user-mode forwards.
const (
	DefaultSSHForwardPort  = 2222
	DefaultMEyeForwardPort = 5555

	portSearchRange = 100
)

// IsLocalPortAvailable checks if a TCP port on the loopback interface can be bound.
func IsLocalPortAvailable(port int) bool {
	if port <= 0 || port > 65535 {
		return false
	}

	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	l.Close()
	return true
}

// FindAvailablePort returns the first free port in [startPort, startPort+100).
// The port is not held, so it may be taken again before the VM starts.
func FindAvailablePort(startPort int) (int, error) {
	for port := startPort; port < startPort+portSearchRange && port <= 65535; port++ {
		if IsLocalPortAvailable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no free port in %d-%d", startPort, startPort+portSearchRange-1)
}

// checkForwards rejects out-of-range forward ports and warns about host ports
// that are already taken. Zero means no forward.
func checkForwards(f Forwards) error {
	for _, fw := range []struct {
		name string
		port int
	}{
		{"ssh", f.SSH},
		{"meye", f.MEye},
	} {
		if fw.port == 0 {
			continue
		}
		if fw.port < 0 || fw.port > 65535 {
			return fmt.Errorf("invalid %s forward port: %d", fw.name, fw.port)
		}
		if !IsLocalPortAvailable(fw.port) {
			logrus.Warnf("Host port %d for the %s forward is in use", fw.port, fw.name)
		}
	}
	return nil
}
