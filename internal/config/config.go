package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	// DirName is the per-user and per-project configuration directory.
	DirName = ".bibnote"
	// FileName is the config file inside DirName.
	FileName = "config.toml"

	defaultRecordFolder = "Bibliographic"
	defaultHost         = HostAuto
	defaultLogLevel     = "info"
	defaultServiceName  = "bibnote"
)

// Dialog host selections.
const (
	HostAuto  = "auto"
	HostTUI   = "tui"
	HostStdio = "stdio"
)

// Config stores runtime settings loaded from TOML files.
type Config struct {
	VaultDir     string
	RecordFolder string
	Host         string
	LogLevel     string
	LogDir       string
	Telemetry    TelemetryConfig
}

// TelemetryConfig controls trace export.
type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

type fileConfig struct {
	VaultDir     *string          `toml:"vault_dir"`
	RecordFolder *string          `toml:"record_folder"`
	Host         *string          `toml:"host"`
	LogLevel     *string          `toml:"log_level"`
	LogDir       *string          `toml:"log_dir"`
	Telemetry    *telemetryConfig `toml:"telemetry"`
}

type telemetryConfig struct {
	Enabled     *bool   `toml:"enabled"`
	Endpoint    *string `toml:"endpoint"`
	ServiceName *string `toml:"service_name"`
}

// Load reads config from ~/.bibnote/config.toml and overlays a project-local
// .bibnote/config.toml.
func Load(ctx context.Context) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	workingDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	cfg := defaults(homeDir, workingDir)
	paths := []string{
		filepath.Join(homeDir, DirName, FileName),
		filepath.Join(workingDir, DirName, FileName),
	}
	for _, path := range paths {
		if err := overlayFromFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	_ = ctx
	return &cfg, nil
}

func defaults(homeDir, workingDir string) Config {
	return Config{
		VaultDir:     workingDir,
		RecordFolder: defaultRecordFolder,
		Host:         defaultHost,
		LogLevel:     defaultLogLevel,
		LogDir:       filepath.Join(homeDir, DirName, "logs"),
		Telemetry: TelemetryConfig{
			ServiceName: defaultServiceName,
		},
	}
}

// Validate checks values that cannot be repaired by defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config must not be nil")
	}
	if strings.TrimSpace(c.VaultDir) == "" {
		return errors.New("vault_dir must not be empty")
	}
	folder := strings.TrimSpace(c.RecordFolder)
	if folder == "" {
		return errors.New("record_folder must not be empty")
	}
	if filepath.IsAbs(folder) {
		return fmt.Errorf("record_folder %q must be relative to the vault", folder)
	}
	for _, part := range strings.Split(filepath.ToSlash(folder), "/") {
		if part == ".." {
			return fmt.Errorf("record_folder %q must stay inside the vault", folder)
		}
	}
	switch c.Host {
	case HostAuto, HostTUI, HostStdio:
	default:
		return fmt.Errorf("host %q must be one of %s, %s, %s", c.Host, HostAuto, HostTUI, HostStdio)
	}
	return nil
}

// RecordDir returns the absolute directory holding bibliographic notes.
func (c *Config) RecordDir() string {
	if c == nil {
		return ""
	}
	return filepath.Join(c.VaultDir, filepath.FromSlash(c.RecordFolder))
}

func overlayFromFile(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config must not be nil")
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config file %q: %w", path, err)
	}

	var decoded fileConfig
	metadata, err := toml.DecodeFile(path, &decoded)
	if err != nil {
		return fmt.Errorf("decode config file %q: %w", path, err)
	}
	if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("decode config file %q: unsupported key %q", path, undecoded[0].String())
	}

	applyScalarOverrides(cfg, decoded, filepath.Dir(filepath.Dir(path)))
	applyTelemetryOverrides(cfg, decoded)
	return nil
}

// applyScalarOverrides resolves a relative vault_dir against base, the directory
// that owns the config file's .bibnote folder.
func applyScalarOverrides(cfg *Config, decoded fileConfig, base string) {
	if decoded.VaultDir != nil {
		vault := strings.TrimSpace(*decoded.VaultDir)
		if vault != "" && !filepath.IsAbs(vault) {
			vault = filepath.Join(base, vault)
		}
		cfg.VaultDir = vault
	}
	if decoded.RecordFolder != nil {
		cfg.RecordFolder = strings.Trim(strings.TrimSpace(*decoded.RecordFolder), "/")
	}
	if decoded.Host != nil {
		cfg.Host = normalizeKey(*decoded.Host)
	}
	if decoded.LogLevel != nil {
		cfg.LogLevel = normalizeKey(*decoded.LogLevel)
	}
	if decoded.LogDir != nil {
		cfg.LogDir = strings.TrimSpace(*decoded.LogDir)
	}
}

func applyTelemetryOverrides(cfg *Config, decoded fileConfig) {
	if decoded.Telemetry == nil {
		return
	}
	if decoded.Telemetry.Enabled != nil {
		cfg.Telemetry.Enabled = *decoded.Telemetry.Enabled
	}
	if decoded.Telemetry.Endpoint != nil {
		cfg.Telemetry.Endpoint = strings.TrimSpace(*decoded.Telemetry.Endpoint)
	}
	if decoded.Telemetry.ServiceName != nil {
		if name := strings.TrimSpace(*decoded.Telemetry.ServiceName); name != "" {
			cfg.Telemetry.ServiceName = name
		}
	}
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
