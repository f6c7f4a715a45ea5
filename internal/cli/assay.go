package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ppiankov/factgate/internal/model"
)

var (
	assayYear    int
	assayJSON    bool
	assayTimeout time.Duration
)

// assayCmd represents the assay command
var assayCmd = &cobra.Command{
	Use:   "assay <entity> <attribute> <value>",
	Short: "Run a verification assay for one claimed value",
	Long: `Assay checks one claimed value and records the result with full
provenance, for use by the promotion gate's require_assay criterion.

With assay.provider configured the live assay is asked first; otherwise,
or when it fails, stored evaluations are used (database_fallback).

Example:
  factgate assay Japan population "125 million" --year 2023
  factgate assay France gdp 3.1T --json`,
	Args: cobra.ExactArgs(3),
	RunE: runAssay,
}

func init() {
	rootCmd.AddCommand(assayCmd)

	assayCmd.Flags().IntVar(&assayYear, "year", 0, "year the value refers to")
	assayCmd.Flags().BoolVar(&assayJSON, "json", false, "print the full result as JSON")
	assayCmd.Flags().DurationVar(&assayTimeout, "timeout", time.Minute, "overall timeout")
}

func runAssay(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), assayTimeout)
	defer cancel()

	req := model.AssayRequest{Entity: args[0], Attribute: args[1], ClaimedValue: args[2]}
	if assayYear != 0 {
		if assayYear < 1000 || assayYear > 9999 {
			return errors.Newf("invalid year %d", assayYear)
		}
		year := assayYear
		req.Year = &year
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	runner, err := newAssayRunner(st)
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if assayJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(result), "encode assay result")
	}

	verdict := "NOT VERIFIED"
	if result.Verified {
		verdict = "VERIFIED"
	}
	c := result.ConsensusResult
	fmt.Fprintf(out, "%s  %s %s = %s\n", verdict, req.Entity, req.Attribute, req.ClaimedValue)
	fmt.Fprintf(out, "  Assay:      %s (%s)\n", result.Assay, result.AssayID)
	fmt.Fprintf(out, "  Agreement:  %.2f (threshold %.2f, %d of %d sources)\n",
		c.Agreement, c.Threshold, c.AgreeingSources, c.TotalSources)
	if result.Consensus != nil {
		fmt.Fprintf(out, "  Consensus:  %s\n", strconv.FormatFloat(*result.Consensus, 'f', -1, 64))
	}
	if len(result.ParsedValues) == 0 {
		fmt.Fprintln(os.Stderr, "No stored evaluations matched this request")
	}
	return nil
}
