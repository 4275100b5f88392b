package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix is the prefix for environment overrides, e.g. OBSBACKUP_LOG_LEVEL.
const EnvPrefix = "OBSBACKUP"

// ErrFixedSetting is returned when a file or the environment sets a value
// that is part of the sealed file format.
var ErrFixedSetting = errors.New("setting is fixed by the sealed file format")

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	envFile    string
	usedFile   string
}

// NewLoader creates a config loader. An empty configPath searches the default locations.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envFile:    ".env",
	}
}

// SetEnvFile changes the dotenv file read before the environment. Empty disables it.
func (l *Loader) SetEnvFile(path string) {
	l.envFile = path
}

// Load reads configuration from defaults, file, dotenv and environment, in that order of precedence.
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDotenv(); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	if l.configPath != "" {
		v.SetConfigFile(l.configPath)
	} else {
		v.SetConfigName("obsbackup")
		for _, dir := range l.defaultDirs() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		l.usedFile = v.ConfigFileUsed()
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	// Sealed files do not record the PBKDF2 iteration count.
	if v.IsSet("crypto.iterations") {
		return nil, fmt.Errorf("invalid config: crypto.iterations: %w", ErrFixedSetting)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Backup.VaultPath = ExpandPath(cfg.Backup.VaultPath)
	cfg.Backup.OutputDir = ExpandPath(cfg.Backup.OutputDir)
	cfg.Restore.OutputDir = ExpandPath(cfg.Restore.OutputDir)
	cfg.State.Dir = ExpandPath(cfg.State.Dir)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ConfigFile returns the path of the file used by the last Load, if any.
func (l *Loader) ConfigFile() string {
	return l.usedFile
}

func (l *Loader) loadDotenv() error {
	if l.envFile == "" {
		return nil
	}
	err := gotenv.Load(l.envFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (l *Loader) defaultDirs() []string {
	dirs := []string{"."}

	if homeDir, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(homeDir, ".config", "obsbackup"),
			filepath.Join(homeDir, ".obsbackup"),
		)
	}

	return dirs
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("backup.vault_path", cfg.Backup.VaultPath)
	v.SetDefault("backup.output_dir", cfg.Backup.OutputDir)
	v.SetDefault("backup.name_prefix", cfg.Backup.NamePrefix)
	v.SetDefault("backup.format", cfg.Backup.Format)
	v.SetDefault("backup.encrypt", cfg.Backup.Encrypt)
	v.SetDefault("backup.password", cfg.Backup.Password)
	v.SetDefault("backup.compression_level", cfg.Backup.Level)

	v.SetDefault("restore.output_dir", cfg.Restore.OutputDir)
	v.SetDefault("restore.overwrite", cfg.Restore.Overwrite)
	v.SetDefault("restore.verify_archive", cfg.Restore.VerifyArchive)

	v.SetDefault("storage.max_file_size", cfg.Storage.MaxFileSize)

	v.SetDefault("state.driver", cfg.State.Driver)
	v.SetDefault("state.dir", cfg.State.Dir)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.color", cfg.Log.Color)
}

// bindLegacyEnv accepts the unprefixed names used by existing .env files.
func bindLegacyEnv(v *viper.Viper) error {
	legacy := map[string]string{
		"backup.vault_path": "VAULT_PATH",
		"backup.output_dir": "BACKUP_DIR",
		"backup.password":   "BACKUP_PASSWORD",
	}
	for key, name := range legacy {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, name); err != nil {
			return err
		}
	}
	return nil
}

// SaveExample writes an example config file.
func SaveExample(path string) error {
	cfg := DefaultConfig()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}
