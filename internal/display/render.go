// Package display renders extraction results for the terminal.
package display

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zombor/invoice-extract/internal/invoice"
	"github.com/zombor/invoice-extract/internal/scanning"
)

var (
	accent = lipgloss.Color("#06B6D4") // cyan
	dim    = lipgloss.Color("#6B7280") // muted gray
	warn   = lipgloss.Color("#F59E0B") // amber

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)

	titleStyle  = lipgloss.NewStyle().Foreground(accent)
	numberStyle = titleStyle.Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(dim).Width(10)
	dimStyle    = lipgloss.NewStyle().Foreground(dim)
	warnStyle   = lipgloss.NewStyle().Foreground(warn)
)

// RenderInvoice renders an invoice as a titled panel
func RenderInvoice(inv *scanning.Invoice) string {
	title := titleStyle.Render("Invoice Number: ") + numberStyle.Render(inv.Number)

	amount := inv.Amount.String()
	if !inv.Amount.Parsed {
		amount += " " + warnStyle.Render("(unparsed)")
	}
	currency := inv.Currency
	if currency == "" {
		currency = dimStyle.Render("-")
	}

	lines := []string{
		title,
		"",
		labelStyle.Render("number") + inv.Number,
		labelStyle.Render("amount") + amount,
		labelStyle.Render("currency") + currency,
		"",
		lipgloss.PlaceHorizontal(30, lipgloss.Right, dimStyle.Render("Thank You")),
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// RenderDocument renders the raw result of an asynchronous extraction
func RenderDocument(ext *invoice.Extraction) string {
	if ext.State == scanning.PollExhausted {
		return warnStyle.Render(fmt.Sprintf("Retries exceeded for document %s", ext.DocumentID))
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, ext.Document, "", "  "); err != nil {
		return string(ext.Document)
	}
	return buf.String()
}

// RenderExtraction picks the renderer matching the extraction's provider
func RenderExtraction(ext *invoice.Extraction) string {
	if ext.Invoice != nil {
		return RenderInvoice(ext.Invoice)
	}
	return RenderDocument(ext)
}

// RenderHistory renders one line per stored extraction
func RenderHistory(extractions []*invoice.Extraction) string {
	if len(extractions) == 0 {
		return dimStyle.Render("No extractions yet.")
	}

	var b strings.Builder
	for _, ext := range extractions {
		summary := string(ext.State)
		if ext.Invoice != nil {
			summary = fmt.Sprintf("%s  %s %s", ext.Invoice.Number, ext.Invoice.Amount, ext.Invoice.Currency)
		}
		fmt.Fprintf(&b, "%s  %s  %-9s  %s  %s\n",
			dimStyle.Render(ext.CreatedAt.Format("2006-01-02 15:04")),
			ext.ID,
			ext.Provider,
			ext.Filename,
			strings.TrimSpace(summary),
		)
	}
	return b.String()
}
