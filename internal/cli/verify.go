package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/pipeline"
)

var (
	verifyURL     string
	verifyStdin   bool
	verifyMode    string
	verifyJSON    bool
	verifyTimeout time.Duration
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify [text]",
	Short: "Verify the numeric claims in a piece of text",
	Long: `Verify extracts numeric claims from text, works out which entity and
attribute each claim is about, and checks it against recorded facts.

Modes:
  single     compare with the trusted fact for the entity and attribute
  consensus  compare with the range reported by all credible evaluations

Example:
  factgate verify "Japan has a population of 125 million"
  factgate verify --url https://en.wikipedia.org/wiki/Japan --mode consensus
  echo "Germany's GDP is 4.5 trillion" | factgate verify --stdin --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyURL, "url", "", "fetch the page at URL and verify its text")
	verifyCmd.Flags().BoolVar(&verifyStdin, "stdin", false, "read the text from stdin")
	verifyCmd.Flags().StringVar(&verifyMode, "mode", string(model.ModeSingle), "verification mode (single, consensus)")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "print the report as JSON")
	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", 2*time.Minute, "overall timeout")
}

func parseMode(s string) (model.VerificationMode, error) {
	switch mode := model.VerificationMode(strings.ToLower(s)); mode {
	case model.ModeSingle, model.ModeConsensus:
		return mode, nil
	default:
		return "", errors.Newf("unknown mode %q (supported: single, consensus)", s)
	}
}

// verifyInput picks exactly one of the argument, --stdin or --url
func verifyInput(args []string, stdin io.Reader) (text string, err error) {
	sources := 0
	if len(args) == 1 {
		sources++
		text = args[0]
	}
	if verifyStdin {
		sources++
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", errors.Wrap(err, "read stdin")
		}
		text = string(data)
	}
	if verifyURL != "" {
		sources++
	}

	if sources != 1 {
		return "", errors.New("provide exactly one of: text argument, --stdin, --url")
	}
	return text, nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	mode, err := parseMode(verifyMode)
	if err != nil {
		return err
	}
	text, err := verifyInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	p, err := newPipeline(st, mode)
	if err != nil {
		return err
	}

	var report *model.Report
	if verifyURL != "" {
		logger.Infow("Verifying page", "url", verifyURL, "mode", mode)
		report, err = p.VerifyURL(ctx, verifyURL)
	} else {
		report, err = p.VerifyText(ctx, text)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if verifyJSON {
		return pipeline.RenderJSON(out, report)
	}
	pipeline.RenderSummary(out, report)
	if report.Summary.Total == 0 {
		fmt.Fprintln(os.Stderr, "No numeric claims found")
	}
	return nil
}
