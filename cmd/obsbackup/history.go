package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/obsbackup/internal/models"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded backups and restores",
	Example: `  obsbackup history
  obsbackup history --kind backup --limit 5 --json`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var forgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Remove an entry from the history (files are kept)",
	Args:  cobra.ExactArgs(1),
	RunE:  runForget,
}

var (
	historyKind  string
	historyVault string
	historyLimit int
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(forgetCmd)

	historyCmd.Flags().StringVar(&historyKind, "kind", "",
		"Only show backup or restore entries")
	historyCmd.Flags().StringVar(&historyVault, "vault", "",
		"Only show backups of this vault path")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20,
		"Maximum entries to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	filter := models.RecordFilter{
		VaultPath: historyVault,
		Limit:     historyLimit,
	}
	switch historyKind {
	case "":
	case string(models.KindBackup), string(models.KindRestore):
		filter.Kind = models.RecordKind(historyKind)
	default:
		return &usageError{msg: fmt.Sprintf("invalid --kind %q: want backup or restore", historyKind)}
	}

	records, err := apiClient.History.List(filter)
	if err != nil {
		return err
	}

	if jsonOutput {
		if records == nil {
			records = []*models.BackupRecord{}
		}
		printJSON(records)
		return nil
	}

	if len(records) == 0 {
		printInfo("No backups recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tWHEN\tSIZE\tENC\tPATH")
	for _, r := range records {
		enc := "-"
		if r.Encrypted {
			enc = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ID), r.Kind, formatAge(r.CreatedAt), formatBytes(r.Size), enc, r.ArchivePath)
	}
	return w.Flush()
}

func runForget(cmd *cobra.Command, args []string) error {
	id, err := resolveRecordID(args[0])
	if err != nil {
		return err
	}
	if err := apiClient.History.Forget(id); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "id": id})
		return nil
	}
	printSuccess("Forgot %s", id)
	return nil
}

// resolveRecordID expands a unique ID prefix, as printed by history.
func resolveRecordID(prefix string) (string, error) {
	if rec, err := apiClient.History.Get(prefix); err == nil {
		return rec.ID, nil
	}

	records, err := apiClient.History.List(models.RecordFilter{})
	if err != nil {
		return "", err
	}

	var matches []string
	for _, r := range records {
		if len(r.ID) >= len(prefix) && r.ID[:len(prefix)] == prefix {
			matches = append(matches, r.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", models.ErrRecordNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", &usageError{msg: fmt.Sprintf("id prefix %q is ambiguous (%d matches)", prefix, len(matches))}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
