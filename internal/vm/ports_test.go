package vm

import (
	"net"
	"testing"
)

func TestIsLocalPortAvailable(t *testing.T) {
	tests := []struct {
		name     string
		port     int
		expected bool
	}{
		{
			name:     "invalid port zero",
			port:     0,
			expected: false,
		},
		{
			name:     "invalid port negative",
			port:     -1,
			expected: false,
		},
		{
			name:     "invalid port too large",
			port:     70000,
			expected: false,
		},
		{
			name:     "available port",
			port:     0, // will be set dynamically
			expected: true,
		},
		{
			name:     "unavailable port",
			port:     0, // will be set dynamically
			expected: false,
		},
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	availablePort := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	busyListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create busy listener: %v", err)
	}
	busyPort := busyListener.Addr().(*net.TCPAddr).Port
	defer busyListener.Close()

	tests[3].port = availablePort
	tests[4].port = busyPort

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsLocalPortAvailable(tt.port)
			if result != tt.expected {
				t.Errorf("IsLocalPortAvailable(%d) = %v, want %v", tt.port, result, tt.expected)
			}
		})
	}
}

func TestFindAvailablePortSkipsBusyPort(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create busy listener: %v", err)
	}
	defer busy.Close()
	busyPort := busy.Addr().(*net.TCPAddr).Port

	port, err := FindAvailablePort(busyPort)
	if err != nil {
		t.Fatalf("FindAvailablePort(%d) error: %v", busyPort, err)
	}
	if port == busyPort {
		t.Errorf("FindAvailablePort returned the busy port %d", busyPort)
	}
	if port < busyPort || port >= busyPort+portSearchRange {
		t.Errorf("FindAvailablePort(%d) = %d, expected in range [%d, %d)",
			busyPort, port, busyPort, busyPort+portSearchRange)
	}
}

func TestFindAvailablePortExhausted(t *testing.T) {
	if _, err := FindAvailablePort(70000); err == nil {
		t.Error("expected error when the search range is outside valid ports")
	}
}

func TestCheckForwards(t *testing.T) {
	tests := []struct {
		name    string
		f       Forwards
		wantErr bool
	}{
		{"none", Forwards{}, false},
		{"valid", Forwards{SSH: 2222, MEye: 5555}, false},
		{"negative", Forwards{SSH: -1}, true},
		{"too large", Forwards{MEye: 65536}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkForwards(tt.f)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkForwards(%+v) error = %v, wantErr %v", tt.f, err, tt.wantErr)
			}
		})
	}
}
