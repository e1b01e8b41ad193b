package cli

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"covidstats/internal/casedata"
	"covidstats/internal/columnar"
	"covidstats/internal/pipeline"
	"covidstats/internal/stats"
	"covidstats/internal/subset"
)

const defaultRowLimit = 20

func newStatsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the statistics bundle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, s, err := session(cmd, false)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetEscapeHTML(false)
				enc.SetIndent("", "  ")
				return enc.Encode(s.Bundle)
			}
			renderBundle(cmd.OutOrStdout(), s.Bundle)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the bundle as JSON")
	return cmd
}

// addRowFlags registers the flags shared by commands that yield a row subset.
func addRowFlags(cmd *cobra.Command, limit *int, out *string) {
	cmd.Flags().IntVar(limit, "limit", defaultRowLimit, "Rows to print")
	cmd.Flags().StringVar(out, "out", "", "Also write the rows to this Parquet file")
}

// emitRows prints a subset of the session table and optionally saves it.
func emitRows(cmd *cobra.Command, s *pipeline.Session, rows *casedata.Table, limit int, out string) error {
	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "%d of %d rows\n", rows.Len(), s.Table.Len())
	renderRecords(w, rows, limit)
	if out == "" {
		return nil
	}
	var fingerprint string
	if s.Source != nil {
		fingerprint = s.Source.Fingerprint
	}
	if _, err := columnar.Save(out, rows, fingerprint); err != nil {
		return fmt.Errorf("save %s: %w", out, err)
	}
	_, _ = fmt.Fprintf(w, "wrote %s\n", out)
	return nil
}

func newSampleCommand() *cobra.Command {
	var (
		limit int
		out   string
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Draw a reproducible random sample of rows",
		Example: `  covidstats sample -n 500 --seed 7 --out muestra.parquet`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, s, err := session(cmd, false)
			if err != nil {
				return err
			}
			rows := subset.Sample(s.Table, a.cfg.SampleSize, a.cfg.SampleSeed)
			return emitRows(cmd, s, rows, limit, out)
		},
	}
	cmd.Flags().IntP("size", "n", subset.DefaultSampleSize, "Sample size")
	cmd.Flags().Uint64("seed", subset.DefaultSeed, "Random seed")
	addRowFlags(cmd, &limit, &out)
	return cmd
}

func newFilterCommand() *cobra.Command {
	var (
		start, end, field string
		limit             int
		out               string
	)
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Keep the rows whose date falls in an inclusive range",
		Example: `  covidstats filter --start 2021-01-01 --end 2021-01-31
  covidstats filter --field fecha_de_muerte --start 2021-06-01`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, err := parseDateFlag("start", start)
			if err != nil {
				return err
			}
			to, err := parseDateFlag("end", end)
			if err != nil {
				return err
			}
			f, ok := casedata.Lookup(casedata.NormalizeHeader(field))
			if !ok || f.Kind() != casedata.KindDate {
				return fmt.Errorf("--field %q is not a date column", field)
			}
			_, s, err := session(cmd, false)
			if err != nil {
				return err
			}
			rows := subset.FilterByDate(s.Table, from, to, field)
			return emitRows(cmd, s, rows, limit, out)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "First date (inclusive)")
	cmd.Flags().StringVar(&end, "end", "", "Last date (inclusive)")
	cmd.Flags().StringVar(&field, "field", casedata.FieldNotificationDate.Name(), "Date column to filter on")
	addRowFlags(cmd, &limit, &out)
	return cmd
}

func parseDateFlag(name, v string) (casedata.Date, error) {
	if v == "" {
		return casedata.NullDate, nil
	}
	d := casedata.ParseDate(v)
	if !d.Valid() {
		return casedata.NullDate, fmt.Errorf("invalid --%s date %q", name, v)
	}
	return d, nil
}

func newGroupCommand() *cobra.Command {
	var (
		by     []string
		metric string
		column string
	)
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Aggregate rows by one or more columns",
		Example: `  covidstats group --by nombre_departamento
  covidstats group --by sexo,estado --metric mean --column edad`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := stats.ParseMetric(metric)
			if err != nil {
				return err
			}
			_, s, err := session(cmd, false)
			if err != nil {
				return err
			}
			g, err := stats.Group(s.Table, by, m, column)
			if err != nil {
				return err
			}
			header := table.Row{}
			for _, k := range g.By {
				header = append(header, k)
			}
			label := string(g.Metric)
			if g.Column != "" {
				label += "(" + g.Column + ")"
			}
			header = append(header, label)

			t := newTable(cmd.OutOrStdout(), "", header)
			for _, r := range g.Rows {
				row := table.Row{}
				for _, k := range r.Keys {
					row = append(row, k)
				}
				t.AppendRow(append(row, formatMetric(g.Metric, r.Value)))
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&by, "by", nil, "Columns to group by")
	cmd.Flags().StringVar(&metric, "metric", string(stats.MetricSize), "size|count|sum|mean|nunique")
	cmd.Flags().StringVar(&column, "column", "", "Column the metric applies to")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func formatMetric(m stats.Metric, v float64) string {
	if m == stats.MetricMean {
		if math.IsNaN(v) {
			return ""
		}
		return formatFloat(v)
	}
	return fmt.Sprintf("%.0f", v)
}

func newCrossTabCommand() *cobra.Command {
	var (
		rows, cols string
		normalize  bool
	)
	cmd := &cobra.Command{
		Use:     "crosstab",
		Short:   "Count rows by a pair of columns",
		Example: `  covidstats crosstab --rows nombre_departamento --cols estado --normalize`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, s, err := session(cmd, false)
			if err != nil {
				return err
			}
			ct, err := stats.CrossTab(s.Table, rows, cols, normalize)
			if err != nil {
				return err
			}
			header := table.Row{ct.RowField + " \\ " + ct.ColField}
			for _, c := range ct.Cols {
				header = append(header, c)
			}
			t := newTable(cmd.OutOrStdout(), "", header)
			for i, rv := range ct.Rows {
				row := table.Row{rv}
				for _, v := range ct.Cells[i] {
					if normalize {
						row = append(row, formatFraction(v))
					} else {
						row = append(row, fmt.Sprintf("%.0f", v))
					}
				}
				t.AppendRow(row)
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&rows, "rows", "", "Row column")
	cmd.Flags().StringVar(&cols, "cols", "", "Column column")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "Divide each row by its total")
	_ = cmd.MarkFlagRequired("rows")
	_ = cmd.MarkFlagRequired("cols")
	return cmd
}

func newSummaryCommand() *cobra.Command {
	var columns []string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the most frequent values of categorical columns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, s, err := session(cmd, false)
			if err != nil {
				return err
			}
			sums, err := stats.CategoricalSummary(s.Table, columns, a.cfg.TopN)
			if err != nil {
				return err
			}
			for _, cs := range sums {
				title := fmt.Sprintf("%s (%d distinct, %d missing)", cs.Column, cs.Distinct, cs.Missing)
				t := newTable(cmd.OutOrStdout(), title, table.Row{"valor", "casos", "fraccion"})
				for _, sh := range cs.Top {
					t.AppendRow(table.Row{sh.Value, sh.Count, formatFraction(sh.Fraction)})
				}
				t.Render()
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to summarize (default: every categorical column)")
	return cmd
}
