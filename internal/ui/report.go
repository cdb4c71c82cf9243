package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/tchow-twistedxcom/agent-pulse/internal/fixture"
	"github.com/tchow-twistedxcom/agent-pulse/internal/monitor"
	"github.com/tchow-twistedxcom/agent-pulse/internal/status"
)

// MaxNameWidth bounds the fixture and target columns.
const MaxNameWidth = 48

const noPattern = "(none)"

// truncate shortens s to width display cells.
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

// pad right-fills s to width display cells. Wide runes count double.
func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}

func patternName(r status.Result) string {
	if r.MatchedPattern == "" {
		return noPattern
	}
	return r.MatchedPattern
}

// RenderFixtureReport writes one line per fixture and a summary box.
// verbose adds the expectation source and per-fixture timing.
func RenderFixtureReport(w io.Writer, rep fixture.Report, verbose bool) error {
	nameWidth := 0
	for _, o := range rep.Outcomes {
		nameWidth = max(nameWidth, runewidth.StringWidth(truncate(o.Name, MaxNameWidth)))
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Fixture regression run"))
	b.WriteString("\n\n")
	for _, o := range rep.Outcomes {
		mark := PassStyle.Render("✓ PASS")
		if !o.Passed {
			mark = FailStyle.Render("✗ FAIL")
		}
		name := pad(truncate(o.Name, MaxNameWidth), nameWidth)
		fmt.Fprintf(&b, "%s  %s  ", mark, TextStyle.Render(name))

		got := string(o.Result.Status)
		if got == "" {
			got = "-"
		}
		if o.Passed {
			fmt.Fprintf(&b, "%s", StatusStyle(o.Result.Status).Render(pad(got, 7)))
		} else {
			fmt.Fprintf(&b, "expected %s got %s",
				StatusStyle(status.Status(o.Expected)).Render(o.Expected),
				StatusStyle(o.Result.Status).Render(got))
		}
		fmt.Fprintf(&b, "  %.2f  %s", o.Result.Confidence, PatternStyle.Render(patternName(o.Result)))
		if verbose {
			fmt.Fprintf(&b, "  %s", DimStyle.Render(fmt.Sprintf("[%s, %s]", o.Source, o.Duration.Round(time.Microsecond))))
		}
		if o.Err != "" {
			fmt.Fprintf(&b, "  %s", FailStyle.Render(o.Err))
		}
		b.WriteString("\n")
	}

	summary := fmt.Sprintf("Passed %d/%d (%.1f%%)", rep.Passed, rep.Total(), rep.SuccessRate())
	if rep.Failed > 0 {
		summary += fmt.Sprintf(", %d failed", rep.Failed)
	}
	b.WriteString("\n")
	b.WriteString(SummaryStyle.Render(summary))
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderResult writes a single classification.
func RenderResult(w io.Writer, res status.Result) error {
	line := fmt.Sprintf("%s %s  %.2f  %s  %s\n",
		StatusStyle(res.Status).Render(StatusIcon(res.Status)),
		StatusStyle(res.Status).Render(string(res.Status)),
		res.Confidence,
		PatternStyle.Render(patternName(res)),
		DimStyle.Render(fmt.Sprintf("len=%d hash=%s", res.TextLen, shortHash(res.TextHash))))
	_, err := io.WriteString(w, line)
	return err
}

// RenderRules lists a library grouped by category in evaluation order. When
// only is given, just those categories are listed.
func RenderRules(w io.Writer, lib *status.Library, only ...status.Status) error {
	categories := status.Categories
	if len(only) > 0 {
		categories = only
	}
	var b strings.Builder
	idWidth := 0
	for _, r := range lib.Rules() {
		idWidth = max(idWidth, runewidth.StringWidth(r.ID))
	}
	for _, c := range categories {
		b.WriteString(HeaderStyle.Render(StatusIcon(c) + " " + string(c)))
		b.WriteString("\n")
		for _, r := range lib.Category(c) {
			fmt.Fprintf(&b, "  %5d  %s  %.2f  %s\n",
				r.Priority,
				PatternStyle.Render(pad(r.ID, idWidth)),
				r.Confidence,
				DimStyle.Render(r.Description))
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderTransition writes one watch line for a target whose confirmed status
// changed.
func RenderTransition(w io.Writer, tr monitor.Transition) error {
	prev := string(tr.From)
	if prev == "" {
		prev = "-"
	}
	line := fmt.Sprintf("%s  %s  %s → %s  %.2f  %s\n",
		DimStyle.Render(tr.At.Format("15:04:05")),
		TextStyle.Render(truncate(tr.Target, MaxNameWidth)),
		StatusStyle(tr.From).Render(prev),
		StatusStyle(tr.To).Render(StatusIcon(tr.To)+" "+string(tr.To)),
		tr.Result.Confidence,
		PatternStyle.Render(patternName(tr.Result)))
	_, err := io.WriteString(w, line)
	return err
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
