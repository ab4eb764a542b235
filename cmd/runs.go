package main

import (
	"context"
	"strconv"

	"github.com/desertthunder/catalogx/internal/models"
	"github.com/desertthunder/catalogx/internal/repositories"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v3"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// RunsList prints recent runs, newest first.
func (r *Runner) RunsList(ctx context.Context, cmd *cli.Command) error {
	criteria := map[string]any{"limit": cmd.Int("limit")}
	if k := cmd.String("kind"); k != "" {
		kind, err := models.ParseKind(k)
		if err != nil {
			return err
		}
		criteria["kind"] = string(kind)
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	runs, err := repositories.NewRunRepository(db).List(criteria)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return r.writePlain("No runs recorded yet.\n")
	}

	headers := []string{"#", "Kind", "Mode", "Status", "Start", "Last", "Found", "Skipped", "Started", "Error"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		mode := "dry run"
		if run.Commit() {
			mode = "add"
		}
		rows = append(rows, []string{
			strconv.Itoa(run.Sequence()),
			run.Kind().String(),
			mode,
			string(run.Status()),
			strconv.Itoa(run.StartIndex()),
			strconv.Itoa(run.LastIndex()),
			strconv.Itoa(run.Found()),
			strconv.Itoa(run.Skipped()),
			humanize.Time(run.StartedAt()),
			truncate(run.ErrorMessage(), 48),
		})
	}

	return r.writePlain("%s\n", renderTable(headers, rows, aligns))
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		tr := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				tr[i] = row[i]
			} else {
				tr[i] = ""
			}
		}
		tw.AppendRow(tr)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
