// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < env < flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all TraceMine configuration.
type Config struct {
	Version int `yaml:"version"`

	Mining     MiningConfig     `yaml:"mining"`
	Output     OutputConfig     `yaml:"output"`
	Storage    StorageConfig    `yaml:"storage"`
	Watch      WatchConfig      `yaml:"watch"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// MiningConfig controls how event logs are built and analyzed.
type MiningConfig struct {
	Strict              bool    `yaml:"strict"`               // fail on missing timestamps
	BottleneckThreshold float64 `yaml:"bottleneck_threshold"` // fraction of total time
	Parallel            bool    `yaml:"parallel"`             // run analyzers concurrently
}

// OutputConfig controls default export behavior.
type OutputConfig struct {
	Compression string `yaml:"compression"` // snappy | zstd | gzip | none
	BatchSize   int    `yaml:"batch_size"`
}

// StorageConfig for persistence.
type StorageConfig struct {
	Database      string        `yaml:"database"`
	RunsRetention time.Duration `yaml:"runs_retention"`
	CacheDir      string        `yaml:"cache_dir"`
}

// WatchConfig for directory watching.
type WatchConfig struct {
	DebounceDelay time.Duration `yaml:"debounce_delay"`
	Patterns      []string      `yaml:"patterns"`
}

// CheckpointConfig for resumable batch runs.
type CheckpointConfig struct {
	Backend  string `yaml:"backend"` // memory | redis
	RedisURL string `yaml:"redis_url"`
}

// TelemetryConfig for optional metrics.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	appDir := filepath.Join(homeDir, ".tracemine")

	return &Config{
		Version: 1,
		Mining: MiningConfig{
			Strict:              false,
			BottleneckThreshold: 0.20,
			Parallel:            true,
		},
		Output: OutputConfig{
			Compression: "snappy",
			BatchSize:   8192,
		},
		Storage: StorageConfig{
			Database:      filepath.Join(appDir, "tracemine.db"),
			RunsRetention: 30 * 24 * time.Hour,
			CacheDir:      filepath.Join(appDir, "cache"),
		},
		Watch: WatchConfig{
			DebounceDelay: 2 * time.Second,
			Patterns:      []string{"*.json", "*.jsonl", "*.json.gz", "*.jsonl.gz"},
		},
		Checkpoint: CheckpointConfig{
			Backend: "memory",
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
		},
	}
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // Paths that were loaded
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
	}
}

// Load loads configuration from all sources in priority order.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Start with defaults
	m.config = Default()

	// Load from paths in order (later overrides earlier)
	paths := m.getConfigPaths()
	for _, path := range paths {
		if err := m.loadFile(path); err != nil {
			// Ignore missing files, but report errors for existing files
			if !os.IsNotExist(err) {
				return err
			}
		} else {
			m.paths = append(m.paths, path)
		}
	}

	// Override with environment variables
	m.loadEnv()

	// Ensure directories exist
	m.ensureDirs()

	return nil
}

// getConfigPaths returns config file paths in priority order.
func (m *Manager) getConfigPaths() []string {
	var paths []string

	// System config
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/tracemine/config.yaml")
	}

	// User config
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".tracemine", "config.yaml"))
	}

	// Project config (current directory)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".tracemine.yaml"))
	}

	return paths
}

// loadFile loads a single config file and merges it.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return err
	}

	// Merge non-zero values
	m.merge(&partial)
	return nil
}

// merge merges non-zero values from src into config.
func (m *Manager) merge(src *Config) {
	// Mining
	if src.Mining.Strict {
		m.config.Mining.Strict = true
	}
	if src.Mining.BottleneckThreshold != 0 {
		m.config.Mining.BottleneckThreshold = src.Mining.BottleneckThreshold
	}

	// Output
	if src.Output.Compression != "" {
		m.config.Output.Compression = src.Output.Compression
	}
	if src.Output.BatchSize != 0 {
		m.config.Output.BatchSize = src.Output.BatchSize
	}

	// Storage
	if src.Storage.Database != "" {
		m.config.Storage.Database = src.Storage.Database
	}
	if src.Storage.CacheDir != "" {
		m.config.Storage.CacheDir = src.Storage.CacheDir
	}
	if src.Storage.RunsRetention != 0 {
		m.config.Storage.RunsRetention = src.Storage.RunsRetention
	}

	// Watch
	if src.Watch.DebounceDelay != 0 {
		m.config.Watch.DebounceDelay = src.Watch.DebounceDelay
	}
	if len(src.Watch.Patterns) > 0 {
		m.config.Watch.Patterns = src.Watch.Patterns
	}

	// Checkpoint
	if src.Checkpoint.Backend != "" {
		m.config.Checkpoint.Backend = src.Checkpoint.Backend
	}
	if src.Checkpoint.RedisURL != "" {
		m.config.Checkpoint.RedisURL = src.Checkpoint.RedisURL
	}

	// Telemetry
	if src.Telemetry.Enabled {
		m.config.Telemetry.Enabled = true
	}
	if src.Telemetry.Endpoint != "" {
		m.config.Telemetry.Endpoint = src.Telemetry.Endpoint
	}
}

// loadEnv loads configuration from environment variables.
func (m *Manager) loadEnv() {
	// TRACEMINE_STRICT
	if v := os.Getenv("TRACEMINE_STRICT"); v == "1" || v == "true" {
		m.config.Mining.Strict = true
	}

	// TRACEMINE_COMPRESSION
	if v := os.Getenv("TRACEMINE_COMPRESSION"); v != "" {
		m.config.Output.Compression = v
	}

	// TRACEMINE_BOTTLENECK_THRESHOLD
	if v := os.Getenv("TRACEMINE_BOTTLENECK_THRESHOLD"); v != "" {
		var t float64
		if _, err := fmt.Sscanf(v, "%f", &t); err == nil {
			m.config.Mining.BottleneckThreshold = t
		}
	}

	// TRACEMINE_DATABASE
	if v := os.Getenv("TRACEMINE_DATABASE"); v != "" {
		m.config.Storage.Database = v
	}

	// TRACEMINE_REDIS_URL
	if v := os.Getenv("TRACEMINE_REDIS_URL"); v != "" {
		m.config.Checkpoint.RedisURL = v
		m.config.Checkpoint.Backend = "redis"
	}
}

// ensureDirs creates necessary directories.
func (m *Manager) ensureDirs() {
	dirs := []string{
		filepath.Dir(m.config.Storage.Database),
		m.config.Storage.CacheDir,
	}

	for _, dir := range dirs {
		os.MkdirAll(dir, 0755)
	}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// Save writes the current config to the user config file.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(home, ".tracemine")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0644)
}

// Global instance
var (
	globalManager *Manager
	globalOnce    sync.Once
)

// Global returns the global configuration manager.
func Global() *Manager {
	globalOnce.Do(func() {
		globalManager = NewManager()
		globalManager.Load()
	})
	return globalManager
}
