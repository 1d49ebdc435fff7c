// Package view renders records as plain text. Rendering is a pure function
// of the kind, the mode, the record and the pending inputs.
package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/mesh-intelligence/magsav/pkg/editor"
	"github.com/mesh-intelligence/magsav/pkg/types"
)

// absent is shown for fields with no value.
const absent = "-"

// defaultListColumns is the number of fields after the id shown by List when
// no columns are given.
const defaultListColumns = 3

// Record writes one record. In edit mode editable fields show their pending
// input in brackets, marked with * when it differs from the stored value.
// Fields the kind does not declare follow the declared ones in record order.
func Record(w io.Writer, spec types.KindSpec, mode types.Mode, rec types.Record, inputs map[string]string) error {
	type line struct{ name, value string }

	var lines []line
	declared := make(map[string]bool, len(spec.Fields))
	editable := make(map[string]bool)
	if mode == types.ModeEdit {
		for _, f := range spec.Editable() {
			editable[f.Name] = true
		}
	}
	for _, f := range spec.Fields {
		declared[f.Name] = true
		v, ok := rec.Get(f.Name)
		if editable[f.Name] {
			in := inputs[f.Name]
			value := "[" + in + "]"
			if in != f.FormatInput(v) {
				value += " *"
			}
			lines = append(lines, line{f.Name, value})
			continue
		}
		lines = append(lines, line{f.Name, display(v, ok)})
	}
	for _, k := range rec.Keys() {
		if declared[k] {
			continue
		}
		v, ok := rec.Get(k)
		lines = append(lines, line{k, display(v, ok)})
	}

	width := 0
	for _, l := range lines {
		width = max(width, len(l.name))
	}

	var b strings.Builder
	id, ok := rec.GetString(spec.ID())
	if !ok || id == "" {
		id = "<no id>"
	}
	fmt.Fprintf(&b, "%s %s [%s]\n", spec.Name, id, mode)
	for _, l := range lines {
		fmt.Fprintf(&b, "  %-*s  %s\n", width, l.name, l.value)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Editor writes the editor's current state.
func Editor(w io.Writer, ed *editor.Editor) error {
	return Record(w, ed.Spec(), ed.Mode(), ed.Record(), ed.Inputs())
}

// List writes records as a table. With no columns the id and the first few
// declared fields after it are shown.
func List(w io.Writer, spec types.KindSpec, recs []types.Record, columns ...string) error {
	if len(columns) == 0 {
		columns = defaultColumns(spec)
	}
	rows := make([][]string, 0, len(recs)+1)
	rows = append(rows, columns)
	for _, rec := range recs {
		row := make([]string, len(columns))
		for i, c := range columns {
			v, ok := rec.Get(c)
			row[i] = display(v, ok)
		}
		rows = append(rows, row)
	}

	widths := make([]int, len(columns))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	var b strings.Builder
	for _, row := range rows {
		var line strings.Builder
		for i, cell := range row {
			if i > 0 {
				line.WriteString("  ")
			}
			fmt.Fprintf(&line, "%-*s", widths[i], cell)
		}
		b.WriteString(strings.TrimRight(line.String(), " "))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "(%d %s)\n", len(recs), plural(len(recs), "record"))
	_, err := io.WriteString(w, b.String())
	return err
}

func defaultColumns(spec types.KindSpec) []string {
	cols := []string{spec.ID()}
	for _, f := range spec.Fields {
		if len(cols) > defaultListColumns {
			break
		}
		if f.Name == spec.ID() || f.ReadOnly {
			continue
		}
		cols = append(cols, f.Name)
	}
	return cols
}

// Result writes a propagation summary.
func Result(w io.Writer, r types.BulkUpdateResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s\n", r.Kind, r.Criterion, r.Outcome)
	if r.Err != nil {
		fmt.Fprintf(&b, "  %-10s %v\n", "error", r.Err)
	}
	fmt.Fprintf(&b, "  %-10s %d\n", "attempted", r.Attempted)
	fmt.Fprintf(&b, "  %-10s %d\n", "succeeded", r.Succeeded)
	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, "  %-10s %d\n", "failed", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "    %s: %s\n", f.RecordID, f.Message)
		}
	}
	if r.Invalidated {
		fmt.Fprintf(&b, "  %-10s %s\n", "cache", "invalidated")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func display(v types.Value, ok bool) string {
	if !ok {
		return absent
	}
	s, ok := types.FormatValue(v)
	if !ok || s == "" {
		return absent
	}
	return s
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
