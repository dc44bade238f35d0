package sitebuild

import (
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderSummary writes res as a table to w.
func RenderSummary(w io.Writer, res *Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Build " + res.Version)

	t.AppendHeader(table.Row{"File", "Action", "Replacements", "Bytes"})
	total := 0
	for _, f := range res.Files {
		t.AppendRow(table.Row{f.Path, f.Action, f.Replacements, f.Bytes})
		total += f.Bytes
	}
	t.AppendFooter(table.Row{strconv.Itoa(len(res.Files)) + " files", "", "", total})

	t.Render()
}
