package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"henry/internal/errors"
	"henry/internal/output"
)

// Format is an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatPlain Format = "plain"
	FormatJSON  Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatPlain, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", errors.Newf(errors.ScopeInvalid, "unsupported format %q: use table, plain or json", s)
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

// Render writes r to w in the given format.
func Render(w io.Writer, r *Report, format Format) error {
	switch format {
	case FormatTable:
		return renderTable(w, r)
	case FormatPlain:
		return renderPlain(w, r)
	case FormatJSON:
		return renderJSON(w, r)
	default:
		return errors.Newf(errors.ScopeInvalid, "unsupported format %q", format)
	}
}

func renderTable(w io.Writer, r *Report) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(r.Columns()...).
		Rows(r.Cells("\n")...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// renderPlain writes one tab-separated line per record with no header.
func renderPlain(w io.Writer, r *Report) error {
	for _, row := range r.Cells(",") {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func renderJSON(w io.Writer, r *Report) error {
	data, err := output.DeterministicEncodeIndented(r, "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
