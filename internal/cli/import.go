package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/store"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load facts, evaluations or source ratings from JSON files",
	Long: `Import loads a JSON array of records into the database.

  facts        trusted facts, replacing any existing (entity, attribute)
  evaluations  candidate facts; each is scored on import and waits for the gate
  sources      curated trust ratings of source domains

Example:
  factgate import sources sources.json
  factgate import evaluations imf-2024.json`,
}

var importFactsCmd = &cobra.Command{
	Use:   "facts <file.json>",
	Short: "Import trusted facts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var facts []model.FactRecord
		return importFile(cmd, args[0], &facts, func(ctx context.Context, st *store.Store) (int, error) {
			for i, fact := range facts {
				if fact.Entity == "" || fact.Attribute == "" || fact.Value == "" {
					return i, errors.Newf("record %d: entity, attribute and value are required", i)
				}
				if _, err := st.SaveFact(ctx, fact); err != nil {
					return i, err
				}
			}
			return len(facts), nil
		})
	},
}

var importEvaluationsCmd = &cobra.Command{
	Use:   "evaluations <file.json>",
	Short: "Import and score candidate evaluations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var evs []model.FactsEvaluation
		return importFile(cmd, args[0], &evs, func(ctx context.Context, st *store.Store) (int, error) {
			scorer := newScorer(st)
			for i, ev := range evs {
				if ev.Entity == "" || ev.Attribute == "" || ev.Value == "" || ev.SourceURL == "" {
					return i, errors.Newf("record %d: entity, attribute, value and source_url are required", i)
				}
				if ev.EvaluatedAt.IsZero() {
					ev.EvaluatedAt = time.Now().UTC()
				}
				if ev.ConsensusScore == 0 {
					ev.ConsensusScore = appConfig.Scoring.DefaultConsensusScore
				}
				ev.Status = model.StatusEvaluating

				scored, err := scorer.Rescore(ctx, ev)
				if err != nil {
					return i, err
				}
				if _, err := st.SaveEvaluation(ctx, scored); err != nil {
					return i, err
				}
			}
			return len(evs), nil
		})
	},
}

var importSourcesCmd = &cobra.Command{
	Use:   "sources <file.json>",
	Short: "Import source domain ratings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var sources []model.SourceMetrics
		return importFile(cmd, args[0], &sources, func(ctx context.Context, st *store.Store) (int, error) {
			for i, m := range sources {
				if err := st.SaveSource(ctx, m); err != nil {
					return i, err
				}
			}
			return len(sources), nil
		})
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importFactsCmd, importEvaluationsCmd, importSourcesCmd)
}

// importFile decodes path into dst and hands the records to save
func importFile(cmd *cobra.Command, path string, dst any, save func(context.Context, *store.Store) (int, error)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	n, err := save(ctx, st)
	if err != nil {
		return errors.Wrapf(err, "import %s (stopped after %d records)", path, n)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d %s from %s\n", n, cmd.Name(), path)
	return nil
}
