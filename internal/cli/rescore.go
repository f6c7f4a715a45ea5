package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/ppiankov/factgate/internal/score"
	"github.com/ppiankov/factgate/internal/store"
)

var rescoreSchedule string

// rescoreCmd represents the rescore command
var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Recompute trust scores of pending evaluations",
	Long: `Rescore recomputes source trust, recency and the weighted trust score
of every pending evaluation. Recency decays as evaluations age, so scores
drift below the gate's thresholds unless they are refreshed.

With --schedule the pass repeats on a cron schedule until interrupted.

Example:
  factgate rescore
  factgate rescore --schedule "@every 6h"
  factgate rescore --schedule "0 3 * * *"`,
	Args: cobra.NoArgs,
	RunE: runRescore,
}

func init() {
	rootCmd.AddCommand(rescoreCmd)

	rescoreCmd.Flags().StringVar(&rescoreSchedule, "schedule", "", "cron spec for repeated runs (e.g. \"@daily\")")
}

func runRescore(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	scorer := newScorer(st)

	if rescoreSchedule == "" {
		return rescoreOnce(ctx, cmd, scorer, st)
	}

	c := cron.New()
	_, err = c.AddFunc(rescoreSchedule, func() {
		if err := rescoreOnce(ctx, cmd, scorer, st); err != nil {
			logger.Warnw("Scheduled rescore failed", "error", err)
		}
	})
	if err != nil {
		return errors.Wrapf(err, "invalid schedule %q", rescoreSchedule)
	}

	c.Start()
	logger.Infow("Rescoring on schedule", "schedule", rescoreSchedule)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func rescoreOnce(ctx context.Context, cmd *cobra.Command, scorer *score.Scorer, st *store.Store) error {
	summary, err := scorer.RescoreAll(ctx, st)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rescored: %d  Changed: %d\n", summary.Rescored, summary.Changed)
	return nil
}
