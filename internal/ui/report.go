package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/thesavant42/warc-dedup/internal/dedup"
	"github.com/thesavant42/warc-dedup/internal/models"
)

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Println(SuccessStyle.Render(message))
}

// PrintError prints an error message to stderr
func PrintError(message string) {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: "+message))
}

// PrintSummary prints the outcome of a deduplication run
func PrintSummary(stats models.DedupStats, target string) {
	fmt.Print(RenderSummary(stats, target))
}

// RenderSummary formats the outcome of a deduplication run.
//
// This is a CLI report (non-interactive), so the host table is built with
// string formatting. Lipgloss is used only for colors.
func RenderSummary(stats models.DedupStats, target string) string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(TitleStyle.Render("Deduplication summary"))
	sb.WriteString("\n")

	line := func(label string, value int) {
		sb.WriteString(fmt.Sprintf("  %-22s %s\n", label, StatStyle.Render(fmt.Sprintf("%d", value))))
	}
	line("Records", stats.Records)
	line("Responses", stats.Responses())
	line("Revisits written", stats.Matched)
	line("Passed through", stats.Passthrough)
	line("  no prior capture", stats.NoPrior)
	line("  lookup failed", stats.Failed)

	if responses := stats.Responses(); responses > 0 {
		pct := float64(stats.Matched) * 100 / float64(responses)
		sb.WriteString(fmt.Sprintf("  %-22s %s\n", "Deduplicated", AccentStyle.Render(fmt.Sprintf("%.1f%%", pct))))
	}
	sb.WriteString("\n")

	hosts := stats.TopHosts(HostTableRows)
	if len(hosts) > 0 {
		sb.WriteString(renderHostTable(hosts))
		sb.WriteString("\n")
	}

	if target != "" {
		sb.WriteString(SummaryStyle.Render("Output: " + target))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderHostTable draws the per-host counts as a bordered table
func renderHostTable(hosts []models.HostStats) string {
	colWidths := []int{32, 10, 12} // Host, Revisits, Passthrough
	totalWidth := 2
	for _, w := range colWidths {
		totalWidth += w + 3
	}
	totalWidth -= 1

	separator := strings.Repeat("─", totalWidth-2)

	var sb strings.Builder
	sb.WriteString(TableBorderStyle.Render("┌"+separator+"┐") + "\n")
	header := fmt.Sprintf("│ %-*s │ %-*s │ %-*s │",
		colWidths[0], "Host",
		colWidths[1], "Revisits",
		colWidths[2], "Passthrough")
	sb.WriteString(AccentStyle.Render(header) + "\n")
	sb.WriteString(TableBorderStyle.Render("├"+separator+"┤") + "\n")

	for _, h := range hosts {
		host := h.Host
		if len(host) > colWidths[0] {
			host = host[:colWidths[0]-3] + "..."
		}
		row := fmt.Sprintf("│ %-*s │ %*d │ %*d │",
			colWidths[0], host,
			colWidths[1], h.Matched,
			colWidths[2], h.Passthrough)
		sb.WriteString(NormalStyle.Render(row) + "\n")
	}

	sb.WriteString(TableBorderStyle.Render("└"+separator+"┘") + "\n")
	return sb.String()
}

// ProgressTitle formats a one-line status of a running pipeline for the
// spinner
func ProgressTitle(p dedup.Progress) string {
	var text string
	switch p.Phase {
	case dedup.PhaseScan:
		text = fmt.Sprintf("Scanning source... %d records, %d keys", p.Records, p.Keys)
	case dedup.PhaseLookup:
		text = fmt.Sprintf("Looking up captures... %d/%d keys resolved", p.Resolved, p.Keys)
	case dedup.PhaseRewrite:
		text = fmt.Sprintf("Writing deduplicated WARC... %d records", p.Records)
	case dedup.PhaseDone:
		text = "Done"
	default:
		text = "Starting..."
	}
	return ProgressStyle.Render(text)
}
