package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brokerdesk/coverage-cli/internal/pipeline"
)

var (
	batchCase  string
	batchDir   string
	batchLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Extract all offer documents in a directory under one case",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		docs, err := collectDocuments(batchDir)
		if err != nil {
			return err
		}

		return processBatch(ctx, docs, batchLimit, cfg.Batch.MaxConcurrentDocuments, func(ctx context.Context, doc batchDocument) (*pipeline.DocumentResult, error) {
			return env.Pipeline.ProcessDocument(ctx, batchCase, doc.Vendor, doc.Path)
		})
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchCase, "case", "", "case id grouping the offers (required)")
	batchCmd.Flags().StringVar(&batchDir, "dir", "", "directory of offer documents (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of documents to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("case")
	_ = batchCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(batchCmd)
}

// batchDocument is one document queued for extraction.
type batchDocument struct {
	Path   string
	Vendor string
}

// collectDocuments lists offer documents in dir, deriving the vendor name
// from each filename stem ("allianz_gewerbe.pdf" → "allianz gewerbe").
func collectDocuments(dir string) ([]batchDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read directory %s", dir)
	}

	var docs []batchDocument
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		docs = append(docs, batchDocument{
			Path:   filepath.Join(dir, entry.Name()),
			Vendor: vendorFromFilename(entry.Name()),
		})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

// vendorFromFilename turns a document filename into a provisional vendor
// name. The extraction itself supplies the real one; this only labels the
// run.
func vendorFromFilename(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = strings.ReplaceAll(stem, "_", " ")
	stem = strings.ReplaceAll(stem, "-", " ")
	return strings.TrimSpace(stem)
}

// extractFunc is the callback signature for processing one document.
type extractFunc func(ctx context.Context, doc batchDocument) (*pipeline.DocumentResult, error)

// processBatch applies limit, then processes documents concurrently. An
// individual failure never aborts the batch; its run record carries the
// error.
func processBatch(ctx context.Context, docs []batchDocument, limit, concurrency int, fn extractFunc) error {
	if len(docs) == 0 {
		zap.L().Info("no documents found")
		return nil
	}

	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("documents", len(docs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, doc := range docs {
		g.Go(func() error {
			log := zap.L().With(zap.String("file", doc.Path))

			result, err := fn(gctx, doc)
			if err != nil {
				failed.Add(1)
				log.Error("extraction failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			log.Info("extraction complete",
				zap.String("run_id", result.RunID),
				zap.Int("records", len(result.Records)),
				zap.Int("attempts", result.Attempts),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
