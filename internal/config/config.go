package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all application configuration.
type Config struct {
	// Backup creation
	Backup BackupConfig `mapstructure:"backup" json:"backup"`

	// Backup restoration
	Restore RestoreConfig `mapstructure:"restore" json:"restore"`

	// Local file limits
	Storage StorageConfig `mapstructure:"storage" json:"storage"`

	// Backup catalog
	State StateConfig `mapstructure:"state" json:"state"`

	// Logging
	Log LogConfig `mapstructure:"log" json:"log"`
}

// BackupConfig for archive creation.
type BackupConfig struct {
	VaultPath  string `mapstructure:"vault_path" json:"vault_path"`
	OutputDir  string `mapstructure:"output_dir" json:"output_dir"`   // Where finished backups land
	NamePrefix string `mapstructure:"name_prefix" json:"name_prefix"` // File name prefix
	Format     string `mapstructure:"format" json:"format"`           // tar.gz, zip
	Encrypt    bool   `mapstructure:"encrypt" json:"encrypt"`
	Password   string `mapstructure:"password" json:"-"`
	Level      int    `mapstructure:"compression_level" json:"compression_level"`
}

// RestoreConfig for decryption of sealed backups.
type RestoreConfig struct {
	OutputDir     string `mapstructure:"output_dir" json:"output_dir"` // Empty = next to the sealed file
	Overwrite     bool   `mapstructure:"overwrite" json:"overwrite"`
	VerifyArchive bool   `mapstructure:"verify_archive" json:"verify_archive"`
}

// StorageConfig for local file handling.
type StorageConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size" json:"max_file_size"` // Max file size in bytes
}

// StateConfig for the backup catalog.
type StateConfig struct {
	Driver string `mapstructure:"driver" json:"driver"` // json, sqlite, none
	Dir    string `mapstructure:"dir" json:"dir"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" json:"format"` // text, json
	File   string `mapstructure:"file" json:"file"`     // Log file path (empty = stderr)
	Color  bool   `mapstructure:"color" json:"color"`
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".obsbackup"
	if homeDir, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(homeDir, ".obsbackup")
	}

	return &Config{
		Backup: BackupConfig{
			VaultPath:  "~/obsidian",
			OutputDir:  ".",
			NamePrefix: "obsidian_backup",
			Format:     "tar.gz",
			Level:      -1,
		},
		Restore: RestoreConfig{
			VerifyArchive: true,
		},
		Storage: StorageConfig{
			MaxFileSize: 2 << 30, // 2GB, whole files are held in memory
		},
		State: StateConfig{
			Driver: "json",
			Dir:    filepath.Join(dataDir, "state"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Color:  true,
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Storage.MaxFileSize <= 0 {
		return errors.New("storage.max_file_size must be positive")
	}

	if c.Backup.NamePrefix == "" {
		return errors.New("backup.name_prefix is required")
	}

	validFormats := map[string]bool{"tar.gz": true, "zip": true}
	if !validFormats[c.Backup.Format] {
		return fmt.Errorf("invalid backup format: %s", c.Backup.Format)
	}

	if c.Backup.Level < -2 || c.Backup.Level > 9 {
		return fmt.Errorf("invalid compression level: %d", c.Backup.Level)
	}

	validDrivers := map[string]bool{"json": true, "sqlite": true, "none": true}
	if !validDrivers[c.State.Driver] {
		return fmt.Errorf("invalid state driver: %s", c.State.Driver)
	}

	if c.State.Driver != "none" && c.State.Dir == "" {
		return errors.New("state.dir is required")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	var dirs []string

	if c.State.Driver != "none" {
		dirs = append(dirs, c.State.Dir)
	}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || len(path) > 1 && path[0] == '~' && os.IsPathSeparator(path[1]) {
		if homeDir, err := os.UserHomeDir(); err == nil {
			return filepath.Join(homeDir, path[1:])
		}
	}
	return path
}
