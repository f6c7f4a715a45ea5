package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ppiankov/factgate/internal/pipeline"
	"github.com/ppiankov/factgate/internal/worker"
)

var (
	batchWorkers   int
	batchOutputDir string
	batchTimeout   time.Duration
	batchMode      string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Verify many texts or URLs from a file in parallel",
	Long: `Batch reads one input per line and verifies them concurrently.
Lines starting with http:// or https:// are fetched; any other line is
verified as text. Blank lines and lines starting with # are skipped.

A JSON report is written per line, named after its line number.

Example:
  factgate batch claims.txt
  factgate batch pages.txt --workers 8 --output-dir ./reports --mode consensus`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "concurrent workers (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&batchOutputDir, "output-dir", "./factgate-reports", "directory for JSON reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for the batch")
	batchCmd.Flags().StringVar(&batchMode, "mode", "single", "verification mode (single, consensus)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	mode, err := parseMode(batchMode)
	if err != nil {
		return err
	}
	workers := batchWorkers
	if workers <= 0 {
		workers = appConfig.Concurrency.Workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  factgate batch verification\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Mode:         %s\n", mode)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", batchOutputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(batchOutputDir, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	p, err := newPipeline(st, mode)
	if err != nil {
		return err
	}

	results, err := worker.NewBatchProcessor(p, workers).ProcessFile(ctx, file)
	if err != nil {
		return err
	}

	var succeeded, failed int
	var totals [4]int
	for _, result := range results {
		if result.Error != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ line %d: %v\n", result.Item.Line, result.Error)
			continue
		}

		path := filepath.Join(batchOutputDir, "line-"+strconv.Itoa(result.Item.Line)+".json")
		if err := writeReport(path, result); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ line %d: %v\n", result.Item.Line, err)
			continue
		}

		succeeded++
		s := result.Report.Summary
		totals[0] += s.Verified
		totals[1] += s.Close
		totals[2] += s.Mismatch
		totals[3] += s.Unknown
		fmt.Fprintf(os.Stderr, "✓ line %d: %d claims (%d verified, %d mismatch)\n",
			result.Item.Line, s.Total, s.Verified, s.Mismatch)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Inputs:    %d\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", succeeded)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failed)
	fmt.Fprintf(os.Stderr, "  Verdicts:  %d verified, %d close, %d mismatch, %d unknown\n",
		totals[0], totals[1], totals[2], totals[3])
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

func writeReport(path string, result *worker.BatchResult) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create report file")
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(closeErr, "close report file")
		}
	}()
	return pipeline.RenderJSON(f, result.Report)
}
