// Package config provides configuration management for qvm.
// Config files are layered: system defaults, system admin, then user, with
// environment variable overrides applied last.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/tnk4on/qvm/internal/qemu"
	"github.com/tnk4on/qvm/internal/vm"
)

// Config represents the qvm configuration
type Config struct {
	Paths  PathsConfig  `yaml:"paths" json:"paths"`
	Create CreateConfig `yaml:"create" json:"create"`
}

// PathsConfig contains path settings
type PathsConfig struct {
	// Storage root holding <name>.qvm directories (default: ~/qvm)
	Storage string `yaml:"storage,omitempty" json:"storage,omitempty"`
}

// CreateConfig holds the defaults used by qvm create
type CreateConfig struct {
	Arch        string `yaml:"arch" json:"arch"`
	CPUModel    string `yaml:"cpu_model" json:"cpu_model"`
	MemMB       int    `yaml:"mem_mb" json:"mem_mb"`
	SMP         int    `yaml:"smp,omitempty" json:"smp,omitempty"`
	DiskSize    string `yaml:"disk_size,omitempty" json:"disk_size,omitempty"`
	NetMode     string `yaml:"net_mode" json:"net_mode"`
	BridgeIf    string `yaml:"bridge_if" json:"bridge_if"`
	DisplayMode string `yaml:"display_mode" json:"display_mode"`

	VNCHost    string `yaml:"vnc_host" json:"vnc_host"`
	VNCDisplay int    `yaml:"vnc_display" json:"vnc_display"`

	SPICEAddr string `yaml:"spice_addr" json:"spice_addr"`
	SPICEPort int    `yaml:"spice_port" json:"spice_port"`
	// Pointer so that an explicit false in a file is distinguishable from unset
	SPICEDisableTicketing *bool `yaml:"spice_disable_ticketing,omitempty" json:"spice_disable_ticketing,omitempty"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	disableTicketing := DefaultSPICEDisableTicketing
	return &Config{
		Create: CreateConfig{
			Arch:                  DefaultArch,
			CPUModel:              DefaultCPUModel,
			MemMB:                 DefaultMemMB,
			NetMode:               DefaultNetMode,
			BridgeIf:              DefaultBridgeIf,
			DisplayMode:           DefaultDisplayMode,
			VNCHost:               DefaultVNCHost,
			VNCDisplay:            DefaultVNCDisplay,
			SPICEAddr:             DefaultSPICEAddr,
			SPICEPort:             DefaultSPICEPort,
			SPICEDisableTicketing: &disableTicketing,
		},
	}
}

// configPaths returns the list of config file paths to check, in order of priority
// (later files override earlier ones)
func configPaths() []string {
	paths := []string{SystemDefaultConfigPath, SystemAdminConfigPath}
	if path, err := UserConfigPath(); err == nil {
		paths = append(paths, path)
	}
	return paths
}

// Load reads configuration from files and applies environment overrides.
// An explicit path (or QVM_CONFIG) replaces the file layers entirely.
func Load(explicitPath string) (*Config, error) {
	cfg := DefaultConfig()

	if explicitPath == "" {
		explicitPath = os.Getenv(EnvConfig)
	}
	if explicitPath != "" {
		logrus.Debugf("Loading config from %s", explicitPath)
		if err := loadFile(cfg, explicitPath); err != nil {
			return nil, err
		}
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	var loadedAny bool
	for _, path := range configPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		logrus.Debugf("Loading config from %s", path)
		if err := loadFile(cfg, path); err != nil {
			logrus.Warnf("Failed to load config from %s: %v", path, err)
			continue
		}
		loadedAny = true
	}
	if !loadedAny {
		logrus.Debug("No config files found, using defaults")
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// loadFile loads a single config file and merges it into the existing config
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	mergeConfig(cfg, &fileCfg)
	return nil
}

// mergeConfig merges src into dst, only overwriting non-zero values
func mergeConfig(dst, src *Config) {
	if src.Paths.Storage != "" {
		dst.Paths.Storage = src.Paths.Storage
	}

	s, d := &src.Create, &dst.Create
	mergeString(&d.Arch, s.Arch)
	mergeString(&d.CPUModel, s.CPUModel)
	mergeInt(&d.MemMB, s.MemMB)
	mergeInt(&d.SMP, s.SMP)
	mergeString(&d.DiskSize, s.DiskSize)
	mergeString(&d.NetMode, s.NetMode)
	mergeString(&d.BridgeIf, s.BridgeIf)
	mergeString(&d.DisplayMode, s.DisplayMode)
	mergeString(&d.VNCHost, s.VNCHost)
	mergeInt(&d.VNCDisplay, s.VNCDisplay)
	mergeString(&d.SPICEAddr, s.SPICEAddr)
	mergeInt(&d.SPICEPort, s.SPICEPort)
	if s.SPICEDisableTicketing != nil {
		v := *s.SPICEDisableTicketing
		d.SPICEDisableTicketing = &v
	}
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvStorage); v != "" {
		cfg.Paths.Storage = v
	}
	if v := os.Getenv(EnvArch); v != "" {
		cfg.Create.Arch = v
	}
	if v := os.Getenv(EnvMemMB); v != "" {
		if mem, err := strconv.Atoi(v); err == nil {
			cfg.Create.MemMB = mem
		} else {
			logrus.Warnf("Ignoring %s=%q: %v", EnvMemMB, v, err)
		}
	}
	if v := os.Getenv(EnvDisplayMode); v != "" {
		cfg.Create.DisplayMode = v
	}
	if v := os.Getenv(EnvNetMode); v != "" {
		cfg.Create.NetMode = v
	}
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# qvm configuration file
#
# Configuration is loaded in the following order (later overrides earlier):
# 1. /usr/share/qvm/config.yaml (system default)
# 2. /etc/qvm/config.yaml (system admin)
# 3. ~/.config/qvm/config.yaml (user)
# 4. Environment variables (QVM_*)
# 5. Command-line flags
#
`)
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []string

	if _, err := qemu.ParseArch(c.Create.Arch); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := vm.ParseNetworkMode(c.Create.NetMode); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := vm.ParseDisplayMode(c.Create.DisplayMode); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Create.MemMB <= 0 {
		errs = append(errs, fmt.Sprintf("invalid memory size: %d MB", c.Create.MemMB))
	}
	if c.Create.SMP < 0 {
		errs = append(errs, fmt.Sprintf("invalid smp: %d", c.Create.SMP))
	}
	if c.Create.VNCDisplay < 0 || VNCBasePort+c.Create.VNCDisplay > 65535 {
		errs = append(errs, fmt.Sprintf("invalid VNC display: %d", c.Create.VNCDisplay))
	}
	if c.Create.SPICEPort < 1 || c.Create.SPICEPort > 65535 {
		errs = append(errs, fmt.Sprintf("invalid SPICE port: %d", c.Create.SPICEPort))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SPICETicketingDisabled reports the effective spice_disable_ticketing value.
func (c *Config) SPICETicketingDisabled() bool {
	if c.Create.SPICEDisableTicketing == nil {
		return DefaultSPICEDisableTicketing
	}
	return *c.Create.SPICEDisableTicketing
}

// UserConfigPath returns the path to the user's config file
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", UserConfigFileName), nil
}

// StorageRoot returns the absolute VM storage root, expanding a leading ~.
// Relative settings resolve against the working directory. An empty setting
// means the default <home>/qvm.
func (c *Config) StorageRoot() (string, error) {
	storage := c.Paths.Storage
	if storage == "" {
		return vm.StorageRoot()
	}
	if storage == "~" || strings.HasPrefix(storage, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", &vm.EnvironmentError{Err: err}
		}
		storage = filepath.Join(home, storage[1:])
	}
	abs, err := filepath.Abs(storage)
	if err != nil {
		return "", &vm.EnvironmentError{Err: fmt.Errorf("resolving storage root %s: %w", storage, err)}
	}
	return abs, nil
}
