// package formatter renders dataset frames to download formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/khukmani/bettervisuals/internal/dataset"
)

// Cell renders a single frame cell as text. String lists are joined with
// "; " and times use the artifact time format.
func Cell(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case bool:
		return strconv.FormatBool(value)
	case time.Time:
		return value.UTC().Format(dataset.TimeLayout)
	case []string:
		return strings.Join(value, "; ")
	default:
		return fmt.Sprintf("%v", value)
	}
}

// ExportToCSV converts a frame to CSV with the column names as the header row.
func ExportToCSV(frame *dataset.Frame) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	columns := frame.Columns()
	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.Name
	}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	record := make([]string, len(columns))
	for i := 0; i < frame.Len(); i++ {
		for j := range columns {
			record[j] = Cell(frame.ValueAt(i, j))
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a frame to a Markdown document with a title
// heading, a row count line, and a pipe table.
func ExportToMarkdown(frame *dataset.Frame, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title != "" {
		buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	}
	buf.WriteString(fmt.Sprintf("**Rows**: %d\n\n", frame.Len()))

	columns := frame.Columns()
	if len(columns) == 0 {
		return buf.Bytes(), nil
	}

	names := make([]string, len(columns))
	rules := make([]string, len(columns))
	for i, col := range columns {
		names[i] = escapeMarkdownCell(col.Name)
		rules[i] = "---"
	}
	buf.WriteString("| " + strings.Join(names, " | ") + " |\n")
	buf.WriteString("| " + strings.Join(rules, " | ") + " |\n")

	cells := make([]string, len(columns))
	for i := 0; i < frame.Len(); i++ {
		for j := range columns {
			cells[j] = escapeMarkdownCell(Cell(frame.ValueAt(i, j)))
		}
		buf.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts a frame to plain text, one tab-separated row per line.
func ExportToText(frame *dataset.Frame, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title != "" {
		buf.WriteString(fmt.Sprintf("%s\n", title))
	}
	buf.WriteString(fmt.Sprintf("Rows: %d\n\n", frame.Len()))

	columns := frame.Columns()
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}
	buf.WriteString(strings.Join(names, "\t") + "\n")

	cells := make([]string, len(columns))
	for i := 0; i < frame.Len(); i++ {
		for j := range columns {
			cells[j] = Cell(frame.ValueAt(i, j))
		}
		buf.WriteString(strings.Join(cells, "\t") + "\n")
	}

	return buf.Bytes(), nil
}

// escapeMarkdownCell keeps pipes and newlines inside cell text from breaking
// the table layout.
func escapeMarkdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// ContentType returns the MIME type for an export format, or "" when the
// format is unknown.
func ContentType(format string) string {
	switch format {
	case "csv":
		return "text/csv"
	case "markdown":
		return "text/markdown"
	case "text":
		return "text/plain"
	default:
		return ""
	}
}

// Export renders a frame in the named format.
func Export(frame *dataset.Frame, format, title string) ([]byte, error) {
	switch format {
	case "csv":
		return ExportToCSV(frame)
	case "markdown":
		return ExportToMarkdown(frame, title)
	case "text":
		return ExportToText(frame, title)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
