package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/brokerdesk/coverage-cli/internal/model"
	"github.com/brokerdesk/coverage-cli/internal/store"
)

var (
	runsCase   string
	runsStatus string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List extraction runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := st.ListRuns(ctx, store.RunFilter{
			CaseID: runsCase,
			Status: model.RunStatus(runsStatus),
			Limit:  runsLimit,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsCase, "case", "", "filter by case id")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (queued|running|complete|failed)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 50, "max number of runs to list")
	rootCmd.AddCommand(runsCmd)
}
