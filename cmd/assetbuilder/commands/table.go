package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

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
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func printReport(w io.Writer, r *pipeline.BuildReport) {
	_, _ = fmt.Fprintln(w, r.Summary())
	if len(r.Assets) > 0 {
		rows := make([][]string, 0, len(r.Assets))
		for _, cat := range r.SortedCategories() {
			rows = append(rows, []string{cat, strconv.Itoa(r.Assets[cat])})
		}
		_, _ = fmt.Fprintln(w, renderTable([]string{"Category", "Assets"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
	for _, warn := range r.Warnings {
		_, _ = fmt.Fprintln(w, "warning:", warn)
	}
}
