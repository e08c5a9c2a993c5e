// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tracking.
//
// go-tracking is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-tracking/pkg/service"
)

// OutputFormat defines the output format type.
type OutputFormat string

const (
	FormatText  OutputFormat = "text"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatTable OutputFormat = "table"
)

// OperationResult holds the result of an operation.
type OperationResult struct {
	Success bool   `json:"success" yaml:"success"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
	Data    any    `json:"data,omitempty" yaml:"data,omitempty"`
}

// FormatOperationResult formats an operation result in the specified format.
func FormatOperationResult(result *OperationResult, format OutputFormat) string {
	switch format {
	case FormatJSON, FormatYAML:
		return formatStructured(result, format)
	case FormatTable:
		return formatResultTable(result)
	default:
		return formatResultText(result)
	}
}

// FormatError formats an error message in the specified format.
func FormatError(err error, format OutputFormat) string {
	return FormatOperationResult(&OperationResult{Success: false, Error: err.Error()}, format)
}

// FormatContent formats a rendered tracking record.
func FormatContent(dto *service.ContentDTO, format OutputFormat) string {
	switch format {
	case FormatJSON, FormatYAML:
		return formatStructured(dto, format)
	case FormatTable:
		return formatContentTable(dto)
	default:
		return formatContentText(dto)
	}
}

// FormatIDs formats a tracking id listing.
func FormatIDs(ids service.TrackingIDs, format OutputFormat) string {
	switch format {
	case FormatJSON, FormatYAML:
		return formatStructured(ids, format)
	case FormatTable:
		rows := make([][]string, 0, len(ids.Sealed))
		for _, id := range ids.Sealed {
			rows = append(rows, []string{id, "sealed"})
		}
		return formatTable([]string{"Tracking ID", "State"}, rows) +
			fmt.Sprintf("Total: %d id(s)\n", len(rows))
	default:
		if ids.IsEmpty() {
			return "No tracking ids found\n"
		}
		return strings.Join(ids.Sealed, "\n") + "\n"
	}
}

func formatResultText(result *OperationResult) string {
	if result.Success {
		if result.Message != "" {
			return result.Message + "\n"
		}
		return "Operation completed successfully\n"
	}
	return fmt.Sprintf("Error: %s\n", result.Error)
}

func formatResultTable(result *OperationResult) string {
	status, text := "SUCCESS", result.Message
	if !result.Success {
		status, text = "FAILED", result.Error
	}

	output := "┌────────────────────────────────────────────────────────┐\n"
	output += "│ Operation Result                                       │\n"
	output += "├────────────────────────────────────────────────────────┤\n"
	output += fmt.Sprintf("│ Status: %-46s │\n", status)
	if text != "" {
		for _, line := range wrapText(text, 54) {
			output += fmt.Sprintf("│ %-54s │\n", line)
		}
	}
	output += "└────────────────────────────────────────────────────────┘\n"
	return output
}

func formatContentText(dto *service.ContentDTO) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tracking ID: %s\n", dto.Key.ID())
	writeEntries := func(title string, entries []service.EntryDTO) {
		fmt.Fprintf(&b, "%s (%d):\n", title, len(entries))
		for _, e := range entries {
			fmt.Fprintf(&b, "  %s %s\n", e.StoreKey, e.Path)
			fmt.Fprintf(&b, "    Size: %s\n", formatSize(e.Size))
			if e.SHA256 != "" {
				fmt.Fprintf(&b, "    SHA256: %s\n", e.SHA256)
			}
			if e.OriginURL != "" {
				fmt.Fprintf(&b, "    Origin: %s\n", e.OriginURL)
			}
			if e.LocalURL != "" {
				fmt.Fprintf(&b, "    Local: %s\n", e.LocalURL)
			}
		}
	}
	writeEntries("Uploads", dto.Uploads)
	writeEntries("Downloads", dto.Downloads)
	return b.String()
}

func formatContentTable(dto *service.ContentDTO) string {
	rows := make([][]string, 0, len(dto.Uploads)+len(dto.Downloads))
	for _, e := range dto.Uploads {
		rows = append(rows, []string{"UPLOAD", e.StoreKey.String(), truncate(e.Path, 48), formatSize(e.Size)})
	}
	for _, e := range dto.Downloads {
		rows = append(rows, []string{"DOWNLOAD", e.StoreKey.String(), truncate(e.Path, 48), formatSize(e.Size)})
	}
	return fmt.Sprintf("Tracking ID: %s\n", dto.Key.ID()) +
		formatTable([]string{"Effect", "Store", "Path", "Size"}, rows) +
		fmt.Sprintf("Total: %d entry(ies)\n", len(rows))
}

func formatStructured(v any, format OutputFormat) string {
	if format == FormatYAML {
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: failed to marshal YAML: %s\n", err)
		}
		return string(data)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": \"failed to marshal JSON: %s\"}\n", err)
	}
	return string(data) + "\n"
}

// formatTable draws rows in a box sized to the widest cell of each column.
func formatTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); i < len(widths) && n > widths[i] {
				widths[i] = n
			}
		}
	}

	border := func(left, mid, right string) string {
		parts := make([]string, len(widths))
		for i, w := range widths {
			parts[i] = strings.Repeat("─", w+2)
		}
		return left + strings.Join(parts, mid) + right + "\n"
	}
	line := func(cells []string) string {
		parts := make([]string, len(widths))
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = " " + cell + strings.Repeat(" ", w-utf8.RuneCountInString(cell)) + " "
		}
		return "│" + strings.Join(parts, "│") + "│\n"
	}

	var b strings.Builder
	b.WriteString(border("┌", "┬", "┐"))
	b.WriteString(line(headers))
	b.WriteString(border("├", "┼", "┤"))
	for _, row := range rows {
		b.WriteString(line(row))
	}
	b.WriteString(border("└", "┴", "┘"))
	return b.String()
}

// formatSize formats a byte size into a human-readable string.
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

// truncate shortens s to maxLen runes, marking the cut with "...".
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// wrapText wraps text to fit within maxWidth characters.
func wrapText(text string, maxWidth int) []string {
	if len(text) <= maxWidth {
		return []string{text}
	}

	if !strings.Contains(text, " ") {
		var lines []string
		for len(text) > maxWidth {
			lines = append(lines, text[:maxWidth])
			text = text[maxWidth:]
		}
		if len(text) > 0 {
			lines = append(lines, text)
		}
		return lines
	}

	var lines []string
	var currentLine string
	for _, word := range strings.Fields(text) {
		switch {
		case currentLine == "":
			currentLine = word
		case len(currentLine)+1+len(word) <= maxWidth:
			currentLine += " " + word
		default:
			lines = append(lines, currentLine)
			currentLine = word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}
	return lines
}
