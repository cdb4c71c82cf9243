package main

import (
	"flag"
	"fmt"

	"github.com/tchow-twistedxcom/agent-pulse/internal/status"
	"github.com/tchow-twistedxcom/agent-pulse/internal/ui"
)

// ruleJSON is the -json shape of one rule.
type ruleJSON struct {
	ID          string        `json:"id"`
	Category    status.Status `json:"category"`
	Priority    int           `json:"priority"`
	Confidence  float64       `json:"confidence"`
	Matcher     string        `json:"matcher"`
	Description string        `json:"description,omitempty"`
}

func (a *app) handlePatterns(args []string) int {
	fs := flag.NewFlagSet("patterns", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	category := fs.String("category", "", "Only list rules of this status")

	fs.Usage = func() {
		fmt.Fprintln(a.stderr, "Usage: agent-pulse patterns [options]")
		fmt.Fprintln(a.stderr)
		fmt.Fprintln(a.stderr, "List the active pattern library in evaluation order.")
		fmt.Fprintln(a.stderr)
		fmt.Fprintln(a.stderr, "Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return exitUsage
	}
	out := NewCLIOutput(a.stdout, a.stderr, *jsonOutput, false)

	var only status.Status
	if *category != "" {
		s, ok := status.ParseStatus(*category)
		if !ok {
			out.Error(fmt.Sprintf("unknown category %q", *category), ErrCodeInvalidInput)
			return exitUsage
		}
		only = s
	}

	c, _ := a.classifier(out)
	lib := c.Library()

	if *jsonOutput {
		rules := make([]ruleJSON, 0, lib.Len())
		for _, r := range lib.Rules() {
			if only != "" && r.Category != only {
				continue
			}
			rules = append(rules, ruleJSON{
				ID:          r.ID,
				Category:    r.Category,
				Priority:    r.Priority,
				Confidence:  r.Confidence,
				Matcher:     r.Matcher.String(),
				Description: r.Description,
			})
		}
		out.Print("", rules)
		return exitOK
	}

	var cats []status.Status
	if only != "" {
		cats = append(cats, only)
	}
	if err := ui.RenderRules(a.stdout, lib, cats...); err != nil {
		out.Error(err.Error(), ErrCodeFailed)
		return exitFail
	}
	return exitOK
}
