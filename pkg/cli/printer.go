package cli

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
	"github.com/secmon-lab/stratagem/pkg/memory"
	"github.com/urfave/cli/v3"
)

func output(c *cli.Command) io.Writer {
	if w := c.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// printer renders summaries for a terminal
type printer struct {
	w      io.Writer
	title  *color.Color
	label  *color.Color
	good   *color.Color
	bad    *color.Color
	dimmed *color.Color
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:      w,
		title:  color.New(color.FgCyan, color.Bold),
		label:  color.New(color.Bold),
		good:   color.New(color.FgGreen),
		bad:    color.New(color.FgRed),
		dimmed: color.New(color.Faint),
	}
}

func (p *printer) kv(key string, format string, args ...any) {
	fmt.Fprintf(p.w, "  %s %s\n", p.label.Sprintf("%-15s", key+":"), fmt.Sprintf(format, args...))
}

func (p *printer) game(n int, g *model.GameSummary) {
	fmt.Fprintln(p.w, p.title.Sprintf("Game %d  %s", n, g.GameID))

	stop := string(g.StopReason)
	if g.TerminalDetail != "" {
		stop += " (" + g.TerminalDetail + ")"
	}
	p.kv("scenario", "%s", g.Scenario)
	p.kv("stopped", "%s", stop)
	p.kv("rounds", "%d (simulated time %.1f)", g.Rounds, g.Duration)
	p.kv("actions", "%d total, %s, %s", g.TotalActions,
		p.good.Sprintf("%d ok", g.SuccessfulActions),
		p.failures(g.FailedActions()))
	p.kv("cooperation", "%d", g.CooperationEvents)
	p.kv("communication", "%d", g.CommunicationEvents)
	p.kv("patterns", "%d", g.PatternEvents)

	if len(g.FailuresByKind) > 0 {
		kinds := make([]string, 0, len(g.FailuresByKind))
		for k, c := range g.FailuresByKind {
			kinds = append(kinds, fmt.Sprintf("%s=%d", k, c))
		}
		slices.Sort(kinds)
		p.kv("failures", "%s", strings.Join(kinds, " "))
	}

	names := make([]string, 0, len(g.Agents))
	for name := range g.Agents {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		p.kv(name, "%s", p.dimmed.Sprint(renderProps(g.Agents[name])))
	}

	if g.Persisted {
		p.kv("memory", "%s", p.good.Sprint("saved"))
	} else {
		p.kv("memory", "%s", p.bad.Sprint("not saved"))
	}
	fmt.Fprintln(p.w)
}

func (p *printer) failures(n int) string {
	if n == 0 {
		return p.dimmed.Sprint("0 failed")
	}
	return p.bad.Sprintf("%d failed", n)
}

func (p *printer) run(r *model.RunSummary, location string) {
	fmt.Fprintln(p.w, p.title.Sprintf("Run summary (%d games)", len(r.Games)))
	p.kv("memory", "%s", location)
	p.kv("events", "%d", r.TotalEvents)
	p.kv("patterns", "%d", r.TotalPatterns)
	p.kv("avg duration", "%.1f", r.AverageDuration())
	p.kv("cooperation", "%s", joinInts(r.CooperationTrend))
	p.kv("communication", "%s", joinInts(r.CommunicationTrend))

	switch r.Trend {
	case model.TrendEmerging:
		p.kv("trend", "%s (%.2f -> %.2f)", p.good.Sprint(r.Trend), r.EarlyCooperation, r.RecentCooperation)
	case model.TrendDeclining:
		p.kv("trend", "%s (%.2f -> %.2f)", p.bad.Sprint(r.Trend), r.EarlyCooperation, r.RecentCooperation)
	case model.TrendStable:
		p.kv("trend", "%s (%.2f -> %.2f)", r.Trend, r.EarlyCooperation, r.RecentCooperation)
	default:
		p.kv("trend", "%s", p.dimmed.Sprint(r.Trend))
	}
}

func (p *printer) stats(location string, s memory.Stats) {
	fmt.Fprintln(p.w, p.title.Sprint("Memory"))
	p.kv("location", "%s", location)
	p.kv("events", "%d", s.Events)
	p.kv("patterns", "%d", s.Patterns)
	p.kv("relationships", "%d", s.Relationships)
	p.kv("signals", "%d", s.Signals)
	fmt.Fprintln(p.w)
}

func (p *printer) patterns(patterns []*model.Pattern) {
	fmt.Fprintln(p.w, p.title.Sprintf("Recent patterns (%d)", len(patterns)))
	for _, pt := range patterns {
		fmt.Fprintf(p.w, "  %s %s %s\n",
			p.label.Sprintf("%.2f", pt.Confidence),
			pt.Description,
			p.dimmed.Sprintf("by %s, %d events", pt.Discoverer, len(pt.Support)))
	}
	fmt.Fprintln(p.w)
}

func (p *printer) events(title string, events []*model.MemoryEvent) {
	fmt.Fprintln(p.w, p.title.Sprintf("%s (%d)", title, len(events)))
	for _, ev := range events {
		status := p.good.Sprint("ok")
		if !ev.Success {
			status = p.bad.Sprint(string(ev.Failure))
		}
		fmt.Fprintf(p.w, "  %s %-8s %-8s %s\n",
			p.dimmed.Sprintf("t=%-6.1f", ev.Time), ev.Actor, ev.Tool, status)
	}
	fmt.Fprintln(p.w)
}

func (p *printer) hits(query string, memType types.MemoryType, hits []*model.SearchHit) {
	fmt.Fprintln(p.w, p.title.Sprintf("Search %q in %s (%d)", query, memType, len(hits)))
	for _, h := range hits {
		var text string
		switch {
		case h.Event != nil:
			text = fmt.Sprintf("%s %s %s", h.Event.Actor, h.Event.Tool, renderArgs(h.Event.Arguments))
		case h.Pattern != nil:
			text = h.Pattern.Description
		case h.Relationship != nil:
			text = fmt.Sprintf("%s strength=%.2f", h.Relationship.Key(), h.Relationship.Strength)
		}
		fmt.Fprintf(p.w, "  %s %s\n", p.label.Sprintf("%.3f", h.Score), text)
	}
	fmt.Fprintln(p.w)
}

func renderProps(props map[string]any) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, props[k]))
	}
	return strings.Join(parts, " ")
}

func renderArgs(args map[string]model.Value) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+args[k].String())
	}
	return strings.Join(parts, " ")
}

func joinInts(xs []int) string {
	if len(xs) == 0 {
		return "-"
	}
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, " ")
}
