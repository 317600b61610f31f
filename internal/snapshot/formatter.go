package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// VisualFormat selects a human-facing rendering for visualizeChanges.
type VisualFormat string

const (
	VisualTree VisualFormat = "tree"
	VisualList VisualFormat = "list"
)

// ExportFormat selects a machine/document rendering for exportComparison.
type ExportFormat string

const (
	ExportJSON     ExportFormat = "json"
	ExportHTML     ExportFormat = "html"
	ExportMarkdown ExportFormat = "md"
)

// Visualize renders a Diff the way spec.md §4.8's visualizeChanges does.
// The list format is a go-pretty/table rendering, the way the teacher's
// report formatter does (internal/analyzers/common/formatter.go in the
// pack's Sumatoshi-tech-codefang repo); the tree format is plain indented
// text built without go-pretty.
func Visualize(diff *Diff, format VisualFormat) (string, error) {
	switch format {
	case VisualList:
		return visualizeList(diff), nil
	case VisualTree:
		return visualizeTree(diff), nil
	default:
		return "", fmt.Errorf("snapshot: unknown visual format %q", format)
	}
}

func visualizeList(diff *Diff) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Atom", "Op", "Old", "New"})
	for _, c := range diff.Changes {
		tbl.AppendRow(table.Row{c.AtomName, string(c.Op), describe(c.OldValue), describe(c.NewValue)})
	}
	return tbl.Render()
}

func visualizeTree(diff *Diff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "diff %s -> %s\n", diff.FromID, diff.ToID)
	byOp := map[ChangeOp][]Change{}
	for _, c := range diff.Changes {
		byOp[c.Op] = append(byOp[c.Op], c)
	}
	for _, op := range []ChangeOp{OpAdd, OpModify, OpRemove} {
		changes := byOp[op]
		if len(changes) == 0 {
			continue
		}
		fmt.Fprintf(&b, "+-- %s (%d)\n", op, len(changes))
		for _, c := range changes {
			fmt.Fprintf(&b, "|   +-- %s: %s -> %s\n", c.AtomName, describe(c.OldValue), describe(c.NewValue))
		}
	}
	return b.String()
}

func describe(e *Entry) string {
	if e == nil {
		return "<none>"
	}
	return fmt.Sprintf("%v", e.Value.Data)
}

// Export renders a Diff in a document/machine format (spec.md §4.8
// exportComparison).
func Export(diff *Diff, format ExportFormat) (string, error) {
	switch format {
	case ExportJSON:
		b, err := json.MarshalIndent(diff, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	case ExportHTML:
		return exportHTML(diff), nil
	case ExportMarkdown:
		return exportMarkdown(diff), nil
	default:
		return "", fmt.Errorf("snapshot: unknown export format %q", format)
	}
}

func exportHTML(diff *Diff) string {
	var b strings.Builder
	b.WriteString("<table>\n<tr><th>Atom</th><th>Op</th><th>Old</th><th>New</th></tr>\n")
	for _, c := range diff.Changes {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			c.AtomName, c.Op, describe(c.OldValue), describe(c.NewValue))
	}
	b.WriteString("</table>\n")
	return b.String()
}

func exportMarkdown(diff *Diff) string {
	var b strings.Builder
	b.WriteString("| Atom | Op | Old | New |\n|---|---|---|---|\n")
	for _, c := range diff.Changes {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", c.AtomName, c.Op, describe(c.OldValue), describe(c.NewValue))
	}
	return b.String()
}
