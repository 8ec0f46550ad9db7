package commands

import (
	"context"
	"fmt"

	"github.com/brightpath-solar/siteimg/pkg/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recently produced artifacts from the history ledger",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum rows to show (0 for all)")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.HistoryDB == "" {
		fmt.Println("History ledger disabled (set --history-db or SITEIMG_HISTORY_DB)")
		return nil
	}

	repo, _, err := openHistory(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer repo.Close()

	records, err := repo.List(context.Background(), listLimit)
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	if len(records) == 0 {
		fmt.Println("No artifacts recorded")
		return nil
	}

	fmt.Printf("%-10s %-9s %-40s %-10s %-10s %-20s\n", "RUN", "TOOL", "NAME", "STATUS", "SIZE", "CREATED")
	fmt.Println("------------------------------------------------------------------------------------------------------")

	for _, rec := range records {
		size := "-"
		if rec.Size > 0 {
			size = humanize.IBytes(uint64(rec.Size))
		}
		runID := rec.RunID
		if len(runID) > 8 {
			runID = runID[:8]
		}

		fmt.Printf("%-10s %-9s %-40s %-10s %-10s %-20s\n",
			runID, rec.Tool, rec.Name, rec.Status, size, rec.CreatedAt)
		if rec.ErrorMessage != "" {
			fmt.Printf("           ↳ %s\n", rec.ErrorMessage)
		}
	}

	return nil
}
