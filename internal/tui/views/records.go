// Package views renders the non-interactive command output: record tables,
// notes and doctor reports.
package views

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bibnote/bibnote/internal/records"
	"github.com/bibnote/bibnote/internal/tui/theme"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const minTableWidth = 60

// RenderRecordTable renders records as a table sized to width.
func RenderRecordTable(entries []records.Record, width int) string {
	if len(entries) == 0 {
		return theme.HintStyle.Render("No bibliographic records yet.")
	}

	width = max(minTableWidth, width)
	columns := []table.Column{
		{Title: "Title", Width: max(16, (width-10)*2/5)},
		{Title: "Authors", Width: max(12, (width-10)*3/10)},
		{Title: "Year", Width: 6},
		{Title: "Tags", Width: max(10, (width-10)*3/10-6)},
	}

	rows := make([]table.Row, 0, len(entries))
	for _, entry := range entries {
		year := "-"
		if entry.Year != 0 {
			year = strconv.Itoa(entry.Year)
		}
		rows = append(rows, table.Row{
			entry.Title,
			orDash(strings.Join(entry.Authors, ", ")),
			year,
			orDash(strings.Join(entry.Tags, " ")),
		})
	}

	matrix := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+3),
		table.WithFocused(false),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(theme.SaffronColor).Bold(true)
	styles.Cell = styles.Cell.Foreground(theme.ParchmentColor)
	styles.Selected = styles.Cell
	matrix.SetStyles(styles)

	footer := theme.HintStyle.Render(fmt.Sprintf("%d record(s)", len(entries)))
	return lipgloss.JoinVertical(lipgloss.Left, matrix.View(), footer)
}

// RenderNote renders note markdown for the terminal. Rendering failures fall
// back to the raw markdown.
func RenderNote(markdown string, width int) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(40, width)),
	)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return rendered
}

// RecordMarkdown returns the markdown shown for a record: its body, or a
// generated summary for notes without one.
func RecordMarkdown(record records.Record) string {
	if body := strings.TrimSpace(record.Body); body != "" {
		return body
	}
	content, err := records.Render(record)
	if err != nil {
		return "# " + record.Title
	}
	parsed, err := records.Parse(content)
	if err != nil {
		return "# " + record.Title
	}
	return parsed.Body
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
