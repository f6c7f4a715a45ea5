package pipeline

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/factgate/internal/model"
)

var statusMarks = map[model.Status]string{
	model.StatusVerified: "✓",
	model.StatusClose:    "≈",
	model.StatusMismatch: "✗",
	model.StatusUnknown:  "?",
}

// RenderJSON writes the report as indented JSON
func RenderJSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return errors.Wrap(err, "encode report")
	}
	return nil
}

// RenderSummary writes a human-readable report
func RenderSummary(w io.Writer, report *model.Report) {
	fmt.Fprintln(w, "════════════════════════════════════════")
	if report.SourceURL != "" {
		fmt.Fprintf(w, "Source:  %s\n", report.SourceURL)
	}
	entity := report.Entity
	if entity == "" {
		entity = "(none recognised)"
	}
	fmt.Fprintf(w, "Entity:  %s\n", entity)
	fmt.Fprintf(w, "Mode:    %s\n", report.Mode)
	fmt.Fprintln(w, "════════════════════════════════════════")

	for _, c := range report.Claims {
		attr := c.Attribute
		if attr == "" {
			attr = "-"
		}
		fmt.Fprintf(w, "%s %-16s %-20s %s\n", statusMarks[c.Status], c.Claim.Value, attr, c.Tooltip)
	}
	if len(report.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped %d year mention(s)\n", len(report.Skipped))
	}

	s := report.Summary
	fmt.Fprintf(w, "\nTotal: %d  Verified: %d  Close: %d  Mismatch: %d  Unknown: %d\n",
		s.Total, s.Verified, s.Close, s.Mismatch, s.Unknown)
}
