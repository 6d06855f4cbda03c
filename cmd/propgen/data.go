package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/comrade-coop/blockchain-predictor/internal/importer"
	"github.com/comrade-coop/blockchain-predictor/internal/storage"
	"github.com/comrade-coop/blockchain-predictor/internal/storage/types"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		period   string
		tsColumn string
	)

	cmd := &cobra.Command{
		Use:   "import <series> <file.csv>",
		Short: "Load a raw series from a CSV file, replacing any stored rows",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, path := args[0], args[1]

			p := a.cfg.Storage.DefaultPeriod
			if period != "" {
				p = period
			}
			chunkPeriod, err := types.ParsePeriod(p)
			if err != nil {
				return err
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := importer.ReadCSV(f, importer.Options{TimestampColumn: tsColumn})
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Import(cmd.Context(), name, rows, chunkPeriod); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s rows into %s (period %s)\n",
				humanize.Comma(int64(len(rows))), name, chunkPeriod)
			return nil
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "chunk period: D, W, M or Y (default: storage.default_period)")
	cmd.Flags().StringVar(&tsColumn, "timestamp-column", "", "name of the date column (default: timestamp, date or time)")
	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [series]",
		Short: "List stored series, or show the chunks and fields of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 0 {
				return listSeries(cmd, store)
			}
			return inspectSeries(cmd, store, args[0])
		},
	}
}

func newTable(out io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)
	return tbl
}

func formatMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}

func listSeries(cmd *cobra.Command, store *storage.Store) error {
	entries, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	usage := store.DiskUsage()

	tbl := newTable(cmd.OutOrStdout())
	tbl.AppendHeader(table.Row{"Series", "Period", "Rows", "Chunks", "First", "Last", "Size", "Updated"})

	var total int64
	for _, e := range entries {
		size := usage[e.Name].TotalSize
		total += size
		tbl.AppendRow(table.Row{
			e.Name,
			e.Period,
			humanize.Comma(e.Rows),
			e.Chunks,
			formatMs(e.Start),
			formatMs(e.End),
			humanize.IBytes(uint64(size)),
			humanize.Time(e.UpdatedAt),
		})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d series", len(entries)), "", "", "", "", "", humanize.IBytes(uint64(total)), ""})
	tbl.Render()
	return nil
}

func inspectSeries(cmd *cobra.Command, store *storage.Store, name string) error {
	info, err := store.Inspect(cmd.Context(), name)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s: %s rows in %d chunks, %s, period %s, generation %d\n",
		name, humanize.Comma(info.Entry.Rows), len(info.Chunks), humanize.IBytes(uint64(info.Size)),
		info.Entry.Period, info.Entry.Generation)

	chunks := newTable(out)
	chunks.AppendHeader(table.Row{"Chunk start", "Chunk end", "Rows", "Size"})
	for _, ch := range info.Chunks {
		chunks.AppendRow(table.Row{formatMs(ch.Start), formatMs(ch.End), humanize.Comma(ch.Rows), humanize.IBytes(uint64(ch.Size))})
	}
	chunks.Render()

	if s := info.Summary; s != nil && s.Rows > 0 {
		fmt.Fprintf(out, "\nRows %s .. %s\n", formatMs(s.FirstTs), formatMs(s.LastTs))

		fields := newTable(out)
		fields.AppendHeader(table.Row{"Field", "Count", "Min", "Max", "Mean"})
		for _, f := range s.Fields {
			fields.AppendRow(table.Row{f.Name, humanize.Comma(f.Count), f.Min, f.Max, f.Mean})
		}
		fields.Render()
	}
	return nil
}

func newQueryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a DuckDB SQL query, e.g. over read_parquet('data/series/*/*/*.parquet')",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			rows, truncated, err := store.ExecuteSQL(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var columns []string
			if len(rows) > 0 {
				for c := range rows[0] {
					columns = append(columns, c)
				}
				sort.Strings(columns)
			}

			tbl := newTable(cmd.OutOrStdout())
			header := make(table.Row, len(columns))
			for i, c := range columns {
				header[i] = c
			}
			tbl.AppendHeader(header)
			for _, r := range rows {
				row := make(table.Row, len(columns))
				for i, c := range columns {
					row[i] = r[c]
				}
				tbl.AppendRow(row)
			}
			tbl.Render()

			if truncated {
				fmt.Fprintf(cmd.OutOrStdout(), "(truncated to %d rows)\n", len(rows))
			}
			return nil
		},
	}
}

func newPruneCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete chunk generations no longer referenced by the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := store.Prune(cmd.Context(), dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			verb := "Removed"
			if dryRun {
				verb = "Would remove"
			}
			for _, dir := range result.Removed {
				fmt.Fprintf(out, "  %s\n", dir)
			}
			fmt.Fprintf(out, "%s %d generations, %s\n", verb, len(result.Removed), humanize.IBytes(uint64(result.BytesFreed)))

			for _, e := range result.Errors {
				log.Warn("prune error", "error", e)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only list what would be removed")
	return cmd
}
