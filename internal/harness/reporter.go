package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"fssim/internal/simulation"

	"github.com/charmbracelet/lipgloss"
)

const rule = "───────────────────────────────────────────────────────────────"

// Reporter formats and outputs run results.
type Reporter struct {
	writer io.Writer
	format string // "console" or "json"

	title lipgloss.Style
	pass  lipgloss.Style
	fail  lipgloss.Style
	muted lipgloss.Style
}

// NewReporter creates a new reporter. Colours are only emitted when writer
// is a terminal.
func NewReporter(writer io.Writer, format string) *Reporter {
	re := lipgloss.NewRenderer(writer)
	return &Reporter{
		writer: writer,
		format: format,
		title: re.NewStyle().
			Bold(true).
			Border(lipgloss.DoubleBorder(), true, false).
			Padding(0, 2),
		pass:  re.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A")),
		fail:  re.NewStyle().Bold(true).Foreground(lipgloss.Color("#e53935")),
		muted: re.NewStyle().Foreground(lipgloss.Color("#2a3850")),
	}
}

// Report outputs one run's result.
func (r *Reporter) Report(result *simulation.Result) error {
	if r.format == "json" {
		return r.reportJSON(result)
	}
	return r.reportConsole(result)
}

func (r *Reporter) reportJSON(v any) error {
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (r *Reporter) status(ok bool) string {
	if ok {
		return r.pass.Render("✓ VERIFIED")
	}
	return r.fail.Render("✗ NOT VERIFIED")
}

func (r *Reporter) reportConsole(result *simulation.Result) error {
	var sb strings.Builder

	sb.WriteString(r.title.Render(fmt.Sprintf("FSSIM RUN %s (seed %d)", result.RunID, result.Seed)))
	sb.WriteString("\n\n")
	sb.WriteString("STATUS: " + r.status(result.Verified) + "\n\n")

	sb.WriteString("OPERATIONS:\n")
	sb.WriteString(r.muted.Render(rule) + "\n")
	sb.WriteString(fmt.Sprintf("  Steps:     %d\n", result.Steps))
	sb.WriteString(fmt.Sprintf("  Seeded:    %d\n", result.Seeded))
	sb.WriteString(fmt.Sprintf("  Executed:  %d\n", result.Executed))
	sb.WriteString(fmt.Sprintf("  Skipped:   %d\n", result.Skipped))
	sb.WriteString(fmt.Sprintf("  Warnings:  %d\n", result.Warnings))
	sb.WriteString(fmt.Sprintf("  Duration:  %v\n", result.Duration))
	sb.WriteString("\n")

	if len(result.PerAction) > 0 {
		names := make([]string, 0, len(result.PerAction))
		for name := range result.PerAction {
			names = append(names, name)
		}
		sort.Strings(names)

		sb.WriteString("PER ACTION:\n")
		sb.WriteString(r.muted.Render(rule) + "\n")
		for _, name := range names {
			st := result.PerAction[name]
			sb.WriteString(fmt.Sprintf("  %-18s executed=%-5d skipped=%-5d warnings=%-4d avg=%v\n",
				name, st.Executed, st.Skipped, st.Warnings, st.AvgLatency))
		}
		sb.WriteString("\n")
	}

	if result.Report != nil {
		sb.WriteString("USERS:\n")
		sb.WriteString(r.muted.Render(rule) + "\n")
		for _, u := range result.Report.Users {
			mark := r.pass.Render("✓")
			if !u.Verified {
				mark = r.fail.Render("✗")
			}
			sb.WriteString(fmt.Sprintf("%s %s  paths=%d files=%d\n", mark, u.User, u.Paths, u.Files))
		}
		sb.WriteString("\n")

		if len(result.Report.Failures) > 0 {
			sb.WriteString("FAILURES:\n")
			sb.WriteString(r.muted.Render(rule) + "\n")
			for i, f := range result.Report.Failures {
				sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, f.String()))
			}
			sb.WriteString("\n")
		}
	}

	_, err := r.writer.Write([]byte(sb.String()))
	return err
}

// Summary is the JSON shape of ReportSummary.
type Summary struct {
	Total    int                  `json:"total"`
	Verified int                  `json:"verified"`
	Failed   int                  `json:"failed"`
	Runs     []*simulation.Result `json:"runs"`
}

// ReportSummary outputs a summary of several runs.
func (r *Reporter) ReportSummary(results []*simulation.Result) error {
	summary := Summary{Total: len(results), Runs: results}
	for _, res := range results {
		if res.Verified {
			summary.Verified++
		} else {
			summary.Failed++
		}
	}
	if r.format == "json" {
		return r.reportJSON(summary)
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(r.title.Render("FSSIM SOAK SUMMARY"))
	sb.WriteString("\n\n")
	for _, res := range results {
		sb.WriteString(fmt.Sprintf("%s  seed=%d run=%s failures=%d\n",
			r.status(res.Verified), res.Seed, res.RunID, failureCount(res)))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Total: %d | Verified: %d | Failed: %d\n", summary.Total, summary.Verified, summary.Failed))

	_, err := r.writer.Write([]byte(sb.String()))
	return err
}

func failureCount(res *simulation.Result) int {
	if res.Report == nil {
		return 0
	}
	return len(res.Report.Failures)
}
