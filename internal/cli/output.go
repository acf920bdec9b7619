package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"tradeguard/pkg/utils"
)

// Styles for terminal output
var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
	boldStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	gainStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	lossStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	bannerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates a new Output instance.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	return &Output{
		writer:       cmd.OutOrStdout(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && !noColor && isTerminal(cmd.OutOrStdout()),
	}
}

// isTerminal checks if w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.styled(successStyle, format, args...)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.styled(errorStyle, format, args...)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.styled(warningStyle, format, args...)
}

// Info prints an info message in blue.
func (o *Output) Info(format string, args ...interface{}) {
	o.styled(infoStyle, format, args...)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.styled(boldStyle, format, args...)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.styled(dimStyle, format, args...)
}

func (o *Output) styled(style lipgloss.Style, format string, args ...interface{}) {
	fmt.Fprintln(o.writer, o.render(style, fmt.Sprintf(format, args...)))
}

func (o *Output) render(style lipgloss.Style, text string) string {
	if !o.colorEnabled {
		return text
	}
	return style.Render(text)
}

// Banner prints text inside a rounded box, tinted by level ("error",
// "warning" or "success").
func (o *Output) Banner(level, text string) {
	if !o.colorEnabled {
		lines := strings.Split(text, "\n")
		width := 0
		for _, l := range lines {
			if w := lipgloss.Width(l); w > width {
				width = w
			}
		}
		border := "+" + strings.Repeat("-", width+2) + "+"
		o.Println(border)
		for _, l := range lines {
			o.Printf("| %s%s |\n", l, strings.Repeat(" ", width-lipgloss.Width(l)))
		}
		o.Println(border)
		return
	}

	color := lipgloss.Color("#10B981")
	switch level {
	case "error":
		color = lipgloss.Color("#EF4444")
	case "warning":
		color = lipgloss.Color("#F59E0B")
	}
	o.Println(bannerStyle.BorderForeground(color).Foreground(color).Render(text))
}

// FormatPnL formats P&L with sign and gain/loss color.
func (o *Output) FormatPnL(pnl decimal.Decimal) string {
	formatted := utils.FormatSignedUSD(pnl)
	switch {
	case pnl.IsPositive():
		return o.render(gainStyle, formatted)
	case pnl.IsNegative():
		return o.render(lossStyle, formatted)
	}
	return formatted
}

// Table represents a simple table for output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		headers: headers,
		rows:    make([][]string, 0),
		output:  output,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	// Calculate column widths
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				if w := lipgloss.Width(cell); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}

	t.printRow(t.headers, widths, true)
	t.printSeparator(widths)
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, isHeader bool) {
	var parts []string
	for i, cell := range cells {
		if i < len(widths) {
			padding := widths[i] - lipgloss.Width(cell)
			if padding < 0 {
				padding = 0
			}
			padded := cell + strings.Repeat(" ", padding)
			if isHeader {
				padded = t.output.render(boldStyle, padded)
			}
			parts = append(parts, padded)
		}
	}
	t.output.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

func (t *Table) printSeparator(widths []int) {
	var parts []string
	for _, w := range widths {
		parts = append(parts, strings.Repeat("─", w))
	}
	t.output.Println(t.output.render(dimStyle, strings.Join(parts, "──")))
}
