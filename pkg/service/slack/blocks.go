package slack

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/slack-go/slack"
)

// Slack rejects section text longer than 3000 characters
const maxSectionBytes = 3000

func gameFallback(s *model.GameSummary) string {
	return fmt.Sprintf("Game %s finished: %s after %d actions", shortID(s.GameID), s.StopReason, s.TotalActions)
}

func runFallback(s *model.RunSummary) string {
	return fmt.Sprintf("Run finished: %d games, trend %s", len(s.Games), s.Trend)
}

func buildGameBlocks(title string, s *model.GameSummary) []slack.Block {
	header := fmt.Sprintf("%s: game %s on %s", title, shortID(s.GameID), s.Scenario)

	stop := string(s.StopReason)
	if s.TerminalDetail != "" {
		stop += " (" + s.TerminalDetail + ")"
	}
	fields := []*slack.TextBlockObject{
		markdown("*Stopped*\n" + stop),
		markdown(fmt.Sprintf("*Rounds*\n%d (time %.1f)", s.Rounds, s.Duration)),
		markdown(fmt.Sprintf("*Actions*\n%d ok / %d failed", s.SuccessfulActions, s.FailedActions())),
		markdown(fmt.Sprintf("*Cooperation*\n%d", s.CooperationEvents)),
		markdown(fmt.Sprintf("*Communication*\n%d", s.CommunicationEvents)),
		markdown(fmt.Sprintf("*Patterns*\n%d", s.PatternEvents)),
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, header, true, false)),
		slack.NewSectionBlock(nil, fields, nil),
	}

	if len(s.FailuresByKind) > 0 {
		kinds := make([]string, 0, len(s.FailuresByKind))
		for k, c := range s.FailuresByKind {
			kinds = append(kinds, fmt.Sprintf("`%s` %d", k, c))
		}
		slices.Sort(kinds)
		blocks = append(blocks, slack.NewSectionBlock(
			markdown("*Failures*  "+strings.Join(kinds, "  ")), nil, nil))
	}

	if len(s.Agents) > 0 {
		names := make([]string, 0, len(s.Agents))
		for name := range s.Agents {
			names = append(names, name)
		}
		slices.Sort(names)

		var sb strings.Builder
		for _, name := range names {
			fmt.Fprintf(&sb, "*%s* %s\n", name, renderProperties(s.Agents[name]))
		}
		blocks = append(blocks, slack.NewSectionBlock(
			markdown(truncateToMaxBytes(sb.String(), maxSectionBytes)), nil, nil))
	}

	persisted := ":floppy_disk: memory saved"
	if !s.Persisted {
		persisted = ":warning: memory not saved"
	}
	blocks = append(blocks, slack.NewContextBlock("",
		markdown(fmt.Sprintf("%s  |  game `%s`", persisted, s.GameID)),
	))
	return blocks
}

func buildRunBlocks(title string, s *model.RunSummary) []slack.Block {
	header := fmt.Sprintf("%s: run of %d games", title, len(s.Games))
	fields := []*slack.TextBlockObject{
		markdown(fmt.Sprintf("*Trend*\n%s", s.Trend)),
		markdown(fmt.Sprintf("*Memory*\n%d events / %d patterns", s.TotalEvents, s.TotalPatterns)),
		markdown("*Cooperation per game*\n" + joinInts(s.CooperationTrend)),
		markdown("*Communication per game*\n" + joinInts(s.CommunicationTrend)),
	}
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, header, true, false)),
		slack.NewSectionBlock(nil, fields, nil),
	}
	if s.Trend != model.TrendUnknown {
		blocks = append(blocks, slack.NewContextBlock("",
			markdown(fmt.Sprintf("early cooperation %.2f → recent %.2f", s.EarlyCooperation, s.RecentCooperation)),
		))
	}
	return blocks
}

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func renderProperties(props map[string]any) string {
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

func joinInts(xs []int) string {
	if len(xs) == 0 {
		return "-"
	}
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ", ")
}

func shortID(id model.GameID) string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// truncateToMaxBytes cuts s to at most maxBytes without splitting a UTF-8
// sequence
func truncateToMaxBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
