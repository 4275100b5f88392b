package main

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/obsbackup/internal/services/restore"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <backup.enc>",
	Short: "Decrypt a sealed backup",
	Long: `Restore decrypts a sealed backup next to itself, or into --output or
restore.output_dir, dropping the .enc suffix. With --extract the decrypted
archive is also unpacked.`,
	Example: `  obsbackup restore obsidian_backup_20240309_140507.tar.gz.enc
  obsbackup restore backup.tar.gz.enc --output ./restored --extract`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

var (
	restoreOutput    string
	restorePassword  string
	restoreExtract   bool
	restoreExtractTo string
)

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().StringVarP(&restoreOutput, "output", "o", "",
		"Output directory (default: restore.output_dir, then the backup's directory)")
	restoreCmd.Flags().StringVarP(&restorePassword, "password", "p", "",
		"Password (default: BACKUP_PASSWORD, then prompt)")
	restoreCmd.Flags().BoolVarP(&restoreExtract, "extract", "x", false,
		"Unpack the decrypted archive")
	restoreCmd.Flags().StringVar(&restoreExtractTo, "extract-to", "",
		"Directory to unpack into (default: the output directory)")
	restoreCmd.Flags().BoolVarP(&overwrite, "force", "f", false,
		"Replace an existing decrypted archive")
}

func runRestore(cmd *cobra.Command, args []string) error {
	password, err := resolvePassword(restorePassword, cfg.Backup.Password, "Backup password: ", false)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	s := startSpinner("Deriving key and decrypting " + filepath.Base(args[0]))
	result, err := apiClient.Restore.Restore(ctx, args[0], restore.Options{
		Password:   password,
		OutputDir:  restoreOutput,
		Extract:    restoreExtract || restoreExtractTo != "",
		ExtractDir: restoreExtractTo,
	})
	stopSpinner(s)
	if err != nil {
		return err
	}

	if jsonOutput {
		out := map[string]interface{}{
			"success":     true,
			"record":      result.Record,
			"summary":     result.Summary,
			"extracted":   result.Extracted,
			"duration_ms": result.Duration.Milliseconds(),
		}
		if result.VerifyErr != nil {
			out["verify_error"] = result.VerifyErr.Error()
		}
		printJSON(out)
		return nil
	}

	printSuccess("Backup decrypted: %s", result.Path)
	printField("Size", formatBytes(result.Record.Size))
	if result.Summary != nil {
		printField("Files", formatCount(result.Summary.Files))
	}
	if result.Extracted != "" {
		printField("Extracted", result.Extracted)
	}
	printField("Duration", result.Duration.Round(time.Millisecond))
	if result.VerifyErr != nil {
		printWarning("Decrypted file is not a readable archive: %v", result.VerifyErr)
	}
	return nil
}
