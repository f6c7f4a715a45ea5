package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/factgate/internal/config"
	"github.com/ppiankov/factgate/internal/gate"
)

var (
	gateWatch    bool
	gateInterval time.Duration
	gateJSON     bool
)

// gateCmd represents the gate command
var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Run pending evaluations through the promotion gate",
	Long: `Gate classifies every pending evaluation into a risk tier and checks it
against that tier's criteria: source count, trust score, age, assay and
consensus agreement. Passing evaluations are promoted into the trusted
facts; failing ones stay pending. Every decision is logged.

With --watch the gate runs every --interval until interrupted, and edits
to the promotion policy file take effect on the next run.

Example:
  factgate gate
  factgate gate --watch --interval 5m`,
	Args: cobra.NoArgs,
	RunE: runGate,
}

func init() {
	rootCmd.AddCommand(gateCmd)

	gateCmd.Flags().BoolVar(&gateWatch, "watch", false, "keep running and reload the policy when it changes")
	gateCmd.Flags().DurationVar(&gateInterval, "interval", time.Minute, "time between runs with --watch")
	gateCmd.Flags().BoolVar(&gateJSON, "json", false, "print decisions as JSON")
}

func runGate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	g, policies := newGate(st)
	// Fail fast on a broken policy before touching any evaluation
	if _, err := policies.Policy(); err != nil {
		return err
	}
	tolerances, err := config.LoadTolerances(appConfig.Tables.Tolerances)
	if err != nil {
		return err
	}
	promoter := gate.NewPromoter(g, st, st, gate.WithTolerances(tolerances))
	out := cmd.OutOrStdout()

	if !gateWatch {
		return promoteOnce(ctx, promoter, out)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return gate.NewPolicyWatcher(appConfig.Tables.Policy, policies, logger).Run(ctx)
	})
	group.Go(func() error {
		ticker := time.NewTicker(gateInterval)
		defer ticker.Stop()
		for {
			if err := promoteOnce(ctx, promoter, out); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warnw("Promotion run failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	logger.Infow("Watching for pending evaluations", "interval", gateInterval, "policy", appConfig.Tables.Policy)
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func promoteOnce(ctx context.Context, promoter *gate.Promoter, out io.Writer) error {
	summary, err := promoter.Run(ctx)
	if err != nil {
		return err
	}

	if gateJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(summary), "encode decisions")
	}

	for _, d := range summary.Decisions {
		mark := "✗"
		if d.Passed {
			mark = "✓"
		}
		fmt.Fprintf(out, "%s #%d %s/%s: %s\n", mark, d.EvaluationID, d.Entity, d.Attribute, d.Reason)
	}
	fmt.Fprintf(out, "Evaluated: %d  Promoted: %d  Held: %d\n", summary.Evaluated, summary.Promoted, summary.Held)
	return nil
}
