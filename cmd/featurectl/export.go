package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"event-feature-lab/internal/reporting"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		ticker string
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored feature records",
		Long: `Export feature records as flat CSV training rows or a markdown summary.

Examples:
  featurectl export --format csv --output features.csv
  featurectl export --format markdown --ticker AAPL`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openStores(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer s.Close()

			var w io.Writer = os.Stdout
			if output != "" && output != "-" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer file.Close()
				w = file
			}
			bw := bufio.NewWriter(w)

			ticker = strings.ToUpper(strings.TrimSpace(ticker))
			switch strings.ToLower(format) {
			case "csv":
				records, err := s.features.List(cmd.Context(), ticker)
				if err != nil {
					return err
				}
				if err := reporting.WriteCSV(bw, records); err != nil {
					return err
				}
			case "markdown", "md":
				report, err := reporting.NewGenerator(s.features).Generate(cmd.Context(), ticker, nil, 0)
				if err != nil {
					return err
				}
				if _, err := bw.WriteString(reporting.RenderMarkdown(report)); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q: use csv or markdown", format)
			}
			return bw.Flush()
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&ticker, "ticker", "", "Only records for this ticker")
	fs.StringVar(&format, "format", "csv", "Output format: csv or markdown")
	fs.StringVarP(&output, "output", "o", "-", "Output file, - for stdout")
	return cmd
}
