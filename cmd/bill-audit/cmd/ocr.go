package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/bill-audit/internal/app"
	"github.com/joseph-ayodele/bill-audit/internal/matching"
)

var ocrJSON bool

var ocrCmd = &cobra.Command{
	Use:   "ocr <file>",
	Short: "Print the OCR candidates and normalized text of one bill file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := app.LoadRules(cfg.Audit)
		if err != nil {
			return err
		}
		backend, closer, err := app.NewOCRBackend(cfg.OCR, logger)
		if err != nil {
			return err
		}
		if closer != nil {
			defer closer.Close()
		}

		pages, err := backend.ExtractDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if ocrJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(pages)
		}
		for _, p := range pages {
			text := matching.Aggregate(p.Candidates)
			fmt.Fprintf(w, "== page %d (%d passes, %d chars", p.Page, len(p.Candidates), len(text))
			if matching.IsLowConfidence(text, rules.MinUsableChars) {
				fmt.Fprint(w, ", low confidence")
			}
			fmt.Fprintln(w, ")")
			fmt.Fprintln(w, text)
		}
		return nil
	},
}

func init() {
	ocrCmd.Flags().BoolVar(&ocrJSON, "json", false, "print raw per-pass candidates as JSON")
}
