package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	extractCase   string
	extractVendor string
	extractFile   string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract offer records from a single document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.ProcessDocument(ctx, extractCase, extractVendor, extractFile)
		if err != nil {
			return err
		}

		zap.L().Info("extraction complete",
			zap.String("run_id", result.RunID),
			zap.Int("records", len(result.Records)),
			zap.Int("attempts", result.Attempts),
			zap.Int("warnings", len(result.Warnings)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractCase, "case", "", "case id grouping competing offers (required)")
	extractCmd.Flags().StringVar(&extractVendor, "vendor", "", "insurer name for this document (required)")
	extractCmd.Flags().StringVar(&extractFile, "file", "", "offer document path (required)")
	_ = extractCmd.MarkFlagRequired("case")
	_ = extractCmd.MarkFlagRequired("vendor")
	_ = extractCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(extractCmd)
}
