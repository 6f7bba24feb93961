package memory

import (
	"fmt"
	"sort"

	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

// DetectorName is the discoverer recorded on automatically detected patterns
const DetectorName = "system"

// Finding is a pattern candidate produced by the Detector
type Finding struct {
	Description string
	Confidence  float64
	Support     []model.EventID
}

// Detector scans recent memory events for recurring structures. It runs on
// the store's write path every Every events once MinEvents exist, over the
// last Window events of the game.
type Detector struct {
	Every     int
	MinEvents int
	Window    int
}

// NewDetector returns a detector with the default cadence
func NewDetector() *Detector {
	return &Detector{
		Every:     3,
		MinEvents: 5,
		Window:    10,
	}
}

// Due reports whether a scan should run after the count-th event of a game
func (d *Detector) Due(count int) bool {
	if d.Every <= 0 {
		return false
	}
	return count >= d.MinEvents && count%d.Every == 0
}

// Recent returns the tail of events the write-path scan considers
func (d *Detector) Recent(events []*model.MemoryEvent) []*model.MemoryEvent {
	if d.Window > 0 && len(events) > d.Window {
		return events[len(events)-d.Window:]
	}
	return events
}

// Scan returns every finding over events
func (d *Detector) Scan(events []*model.MemoryEvent) []Finding {
	var findings []Finding
	for _, rule := range []func([]*model.MemoryEvent) []Finding{
		detectCooperation,
		detectInformationGathering,
		detectCommunication,
		detectToolDiversity,
		detectBetrayal,
		detectReciprocity,
	} {
		findings = append(findings, rule(events)...)
	}
	return findings
}

func selectTools(events []*model.MemoryEvent, tools ...types.ToolName) []*model.MemoryEvent {
	var out []*model.MemoryEvent
	for _, ev := range events {
		name, ok := ev.ToolName()
		if !ok {
			continue
		}
		for _, t := range tools {
			if name == t {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}

func supportOf(events []*model.MemoryEvent) []model.EventID {
	ids := make([]model.EventID, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	return ids
}

func detectCooperation(events []*model.MemoryEvent) []Finding {
	coop := selectTools(events, types.ToolTransfer, types.ToolConnect, types.ToolSignal)
	if len(coop) < 3 {
		return nil
	}
	return []Finding{{
		Description: "Cooperation Emergence: agents are beginning to work together through communication and resource sharing",
		Confidence:  0.7,
		Support:     supportOf(coop),
	}}
}

func detectInformationGathering(events []*model.MemoryEvent) []Finding {
	explore := selectTools(events, types.ToolObserve, types.ToolQuery, types.ToolDetect)
	if len(explore) < 4 {
		return nil
	}
	return []Finding{{
		Description: "Information Gathering: agents are actively exploring and learning about their environment",
		Confidence:  0.6,
		Support:     supportOf(explore),
	}}
}

func detectCommunication(events []*model.MemoryEvent) []Finding {
	comm := selectTools(events, types.ToolSignal, types.ToolReceive)
	if len(comm) < 3 {
		return nil
	}
	actors := make(map[string]struct{})
	for _, ev := range comm {
		actors[ev.Actor] = struct{}{}
	}
	if len(actors) < 2 {
		return nil
	}
	return []Finding{{
		Description: "Communication Network: multiple agents are engaging in information exchange",
		Confidence:  0.8,
		Support:     supportOf(comm),
	}}
}

func detectToolDiversity(events []*model.MemoryEvent) []Finding {
	used := make(map[types.ToolName]struct{})
	var valid []*model.MemoryEvent
	for _, ev := range events {
		if name, ok := ev.ToolName(); ok {
			used[name] = struct{}{}
			valid = append(valid, ev)
		}
	}
	if len(used) < 5 {
		return nil
	}
	return []Finding{{
		Description: "Tool Diversity: agents are using a wide variety of capabilities, indicating adaptive behavior",
		Confidence:  0.7,
		Support:     supportOf(valid),
	}}
}

func argText(ev *model.MemoryEvent, key string) string {
	v, ok := ev.Arguments[key]
	if !ok {
		return ""
	}
	return v.String()
}

func argNumber(ev *model.MemoryEvent, key string) (float64, bool) {
	v, ok := ev.Arguments[key]
	if !ok {
		return 0, false
	}
	return v.AsNumber()
}

// detectBetrayal finds actors that connected to the same target with a
// positive strength and later with a negative one
func detectBetrayal(events []*model.MemoryEvent) []Finding {
	trusted := make(map[string]*model.MemoryEvent)
	var findings []Finding

	for _, ev := range selectTools(events, types.ToolConnect) {
		if !ev.Success {
			continue
		}
		a, b := argText(ev, "entity_a"), argText(ev, "entity_b")
		strength, ok := argNumber(ev, "strength")
		if a == "" || b == "" || !ok {
			continue
		}
		key := a + "->" + b
		switch {
		case strength > 0:
			trusted[key] = ev
		case strength < 0:
			if prior, ok := trusted[key]; ok {
				findings = append(findings, Finding{
					Description: fmt.Sprintf("Betrayal: %s withdrew trust from %s", a, b),
					Confidence:  0.75,
					Support:     []model.EventID{prior.ID, ev.ID},
				})
				delete(trusted, key)
			}
		}
	}
	return findings
}

// detectReciprocity finds pairs of entities that transferred resources to
// each other successfully
func detectReciprocity(events []*model.MemoryEvent) []Finding {
	type pair struct{ from, to string }
	first := make(map[pair]*model.MemoryEvent)
	reported := make(map[pair]struct{})
	var findings []Finding

	for _, ev := range selectTools(events, types.ToolTransfer) {
		if !ev.Success {
			continue
		}
		p := pair{from: argText(ev, "from"), to: argText(ev, "to")}
		if p.from == "" || p.to == "" || p.from == p.to {
			continue
		}
		if _, ok := first[p]; !ok {
			first[p] = ev
		}

		reverse := pair{from: p.to, to: p.from}
		prior, ok := first[reverse]
		if !ok {
			continue
		}
		names := []string{p.from, p.to}
		sort.Strings(names)
		canonical := pair{from: names[0], to: names[1]}
		if _, done := reported[canonical]; done {
			continue
		}
		reported[canonical] = struct{}{}
		findings = append(findings, Finding{
			Description: fmt.Sprintf("Reciprocity: %s and %s exchanged resources in both directions", names[0], names[1]),
			Confidence:  0.8,
			Support:     []model.EventID{prior.ID, ev.ID},
		})
	}
	return findings
}
