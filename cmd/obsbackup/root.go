package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/obsbackup/internal/client"
	"github.com/TheMichaelB/obsbackup/internal/config"
	"github.com/TheMichaelB/obsbackup/internal/events"
)

var (
	cfgFile    string
	envFile    string
	jsonOutput bool
	verbose    bool
	noColor    bool
	overwrite  bool

	cfg       *config.Config
	logger    *events.Logger
	apiClient *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "obsbackup",
	Short: "Password-protected backups for Obsidian vaults",
	Long: `obsbackup archives an Obsidian vault and seals the archive with a
password. Sealed files hold a random 16-byte salt followed by a Fernet
token, so any Fernet implementation can open them given the same key
derivation.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initialize,
}

// skipInit marks commands that run without loading configuration.
const skipInit = "skip_init"

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "",
		"Config file (default: ./obsbackup.*, ~/.config/obsbackup/obsbackup.*)")
	flags.StringVar(&envFile, "env-file", ".env",
		"Dotenv file read before the environment (empty to disable)")
	flags.BoolVar(&jsonOutput, "json", false,
		"Output results as JSON")
	flags.BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
	flags.BoolVar(&noColor, "no-color", false,
		"Disable colored output")
}

func initialize(cmd *cobra.Command, args []string) error {
	if noColor || jsonOutput {
		color.NoColor = true
	}
	if cmd.Annotations[skipInit] == "true" {
		return nil
	}

	loader := config.NewLoader(cfgFile)
	loader.SetEnvFile(envFile)

	var err error
	cfg, err = loader.Load()
	if err != nil {
		return err
	}

	if verbose {
		cfg.Log.Level = "debug"
	}
	if noColor {
		cfg.Log.Color = false
	}
	if overwrite {
		cfg.Restore.Overwrite = true
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	events.SetDefault(logger)

	if file := loader.ConfigFile(); file != "" {
		logger.WithField("file", file).Debug("Loaded config file")
	}

	apiClient, err = client.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	return nil
}

// shutdown releases what initialize opened. It runs after every command,
// including failed ones.
func shutdown() {
	if apiClient != nil {
		if err := apiClient.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close catalog")
		}
	}
	if logger != nil {
		_ = logger.Close()
	}
}
