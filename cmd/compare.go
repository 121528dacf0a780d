package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brokerdesk/coverage-cli/internal/matrix"
)

var (
	compareCase   string
	compareXLSX   string
	compareSorted bool
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Build the comparison matrix for a case",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		catalog, err := loadCatalog()
		if err != nil {
			return eris.Wrap(err, "load row catalogue")
		}

		records, err := st.ListOffers(ctx, compareCase)
		if err != nil {
			return err
		}

		m := matrix.Build(catalog, records)
		if compareSorted {
			m.Columns = m.SortColumnsByPremium()
		}

		zap.L().Info("comparison built",
			zap.String("case_id", compareCase),
			zap.Int("columns", len(m.Columns)),
			zap.Int("rows", len(m.Rows)),
		)

		if compareXLSX != "" {
			if err := matrix.WriteXLSX(m, compareXLSX); err != nil {
				return err
			}
			zap.L().Info("spreadsheet written", zap.String("path", compareXLSX))
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareCase, "case", "", "case id to compare (required)")
	compareCmd.Flags().StringVar(&compareXLSX, "xlsx", "", "write spreadsheet to this path instead of JSON to stdout")
	compareCmd.Flags().BoolVar(&compareSorted, "sort-premium", false, "order columns by ascending annual premium")
	_ = compareCmd.MarkFlagRequired("case")
	rootCmd.AddCommand(compareCmd)
}
