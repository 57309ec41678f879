package config

// Environment variables that override configuration values.
const (
	EnvConfig      = "QVM_CONFIG"
	EnvStorage     = "QVM_STORAGE"
	EnvArch        = "QVM_ARCH"
	EnvMemMB       = "QVM_MEM_MB"
	EnvDisplayMode = "QVM_DISPLAY_MODE"
	EnvNetMode     = "QVM_NET_MODE"
)

// Config file locations, lowest priority first.
const (
	// SystemDefaultConfigPath is the system default config file path
	SystemDefaultConfigPath = "/usr/share/qvm/config.yaml"
	// SystemAdminConfigPath is the system admin config file path
	SystemAdminConfigPath = "/etc/qvm/config.yaml"
	// UserConfigFileName is the user config file name (relative to ~/.config)
	UserConfigFileName = "qvm/config.yaml"
)

// Defaults for qvm create.
const (
	DefaultArch        = "aarch64"
	DefaultCPUModel    = "host"
	DefaultMemMB       = 4096
	DefaultNetMode     = "vmnet-shared"
	DefaultBridgeIf    = "en0"
	DefaultDisplayMode = "cocoa"

	DefaultVNCHost    = "127.0.0.1"
	DefaultVNCDisplay = 1
	// VNCBasePort is the TCP port of VNC display :0.
	VNCBasePort = 5900

	DefaultSPICEAddr             = "127.0.0.1"
	DefaultSPICEPort             = 5930
	DefaultSPICEDisableTicketing = true
)
