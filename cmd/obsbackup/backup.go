package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/obsbackup/internal/services/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup [vault-path]",
	Short: "Archive a vault, optionally sealed with a password",
	Long: `Backup writes the vault into <prefix>_<YYYYMMDD_HHMMSS>.tar.gz in the
output directory. With --encrypt the archive is sealed and gets a .enc suffix.
An existing backup with the same name is never replaced.

The vault path defaults to backup.vault_path (VAULT_PATH), the output
directory to backup.output_dir (BACKUP_DIR).`,
	Example: `  obsbackup backup ~/Documents/Notes
  obsbackup backup --encrypt --output /mnt/usb
  BACKUP_PASSWORD=secret obsbackup backup -e --format zip`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBackup,
}

var (
	backupOutput   string
	backupFormat   string
	backupEncrypt  bool
	backupPassword string
)

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "",
		"Output directory (default: backup.output_dir)")
	backupCmd.Flags().StringVar(&backupFormat, "format", "",
		"Archive format: tar.gz or zip (default: backup.format)")
	backupCmd.Flags().BoolVarP(&backupEncrypt, "encrypt", "e", false,
		"Seal the archive with a password")
	backupCmd.Flags().StringVarP(&backupPassword, "password", "p", "",
		"Password (default: BACKUP_PASSWORD, then prompt)")
}

func runBackup(cmd *cobra.Command, args []string) error {
	vaultPath := ""
	if len(args) == 1 {
		vaultPath = args[0]
	}

	encrypt := backupEncrypt || cfg.Backup.Encrypt
	password := ""
	if encrypt {
		var err error
		password, err = resolvePassword(backupPassword, cfg.Backup.Password, "Backup password: ", true)
		if err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	s := startSpinner("Archiving vault")
	files := 0
	opts := backup.Options{
		Encrypt:   encrypt,
		Password:  password,
		OutputDir: backupOutput,
		Format:    backupFormat,
		OnEvent: func(ev backup.Event) {
			switch ev.Type {
			case backup.EventEntryAdded:
				if !ev.Entry.IsDirectory {
					files++
					updateSpinner(s, "Archiving vault ("+formatCount(files)+" files)")
				}
			case backup.EventSealing:
				updateSpinner(s, "Deriving key and encrypting archive")
			}
		},
	}

	result, err := apiClient.Backup.Create(ctx, vaultPath, opts)
	stopSpinner(s)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":     true,
			"record":      result.Record,
			"summary":     result.Summary,
			"duration_ms": result.Duration.Milliseconds(),
		})
		return nil
	}

	printSuccess("Backup created: %s", result.Path)
	printField("Vault", result.Record.VaultPath)
	printField("Files", formatCount(result.Summary.Files))
	printField("Vault size", formatBytes(result.Summary.Bytes))
	printField("Backup size", formatBytes(result.Record.Size))
	printField("Encrypted", result.Record.Encrypted)
	printField("SHA-256", result.Record.SHA256)
	printField("Duration", result.Duration.Round(time.Millisecond))
	return nil
}

// signalContext is cancelled on the first interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		select {
		case <-sigChan:
			printWarning("\nInterrupted, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
