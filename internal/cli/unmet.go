package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	unmetLimit int
	unmetJSON  bool
)

// unmetCmd represents the unmet command
var unmetCmd = &cobra.Command{
	Use:   "unmet",
	Short: "List the claims most often asked about with no stored data",
	Long: `Consensus verification records every (entity, attribute) pair it had no
evaluations for. This lists them by how often they were requested, which
is a good place to start collecting new sources.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		rows, err := st.ListUnmetRequests(ctx, unmetLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if unmetJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		if len(rows) == 0 {
			fmt.Fprintln(out, "No unmet requests recorded")
			return nil
		}
		fmt.Fprintf(out, "%-24s %-20s %6s  %s\n", "ENTITY", "ATTRIBUTE", "COUNT", "LAST VALUE")
		for _, r := range rows {
			fmt.Fprintf(out, "%-24s %-20s %6d  %s\n", r.Entity, r.Attribute, r.Count, r.LastValue)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unmetCmd)

	unmetCmd.Flags().IntVar(&unmetLimit, "limit", 20, "maximum rows to show")
	unmetCmd.Flags().BoolVar(&unmetJSON, "json", false, "output JSON")
}
