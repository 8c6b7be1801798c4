package diamond

import (
	"fmt"
	"log"
	"slices"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region repair-types

// RepairKind names a structural fix applied by ValidatePaths.
type RepairKind string

const (
	RepairForcedEnding    RepairKind = "forced_ending"
	RepairClearedEnding   RepairKind = "cleared_ending"
	RepairAddedDecision   RepairKind = "added_decision"
	RepairDanglingTarget  RepairKind = "dangling_target"
	RepairOrphanRelinked  RepairKind = "orphan_relinked"
	RepairOrphanUnreached RepairKind = "orphan_unreached"
)

// Repair records a single in-place fix.
type Repair struct {
	Kind       RepairKind
	SceneID    string
	DecisionID string
	Detail     string
}

// Report collects every repair made by one validation pass.
type Report struct {
	Repairs []Repair
}

// Changed reports whether the pass mutated the graph.
func (r Report) Changed() bool {
	for _, rep := range r.Repairs {
		if rep.Kind != RepairOrphanUnreached {
			return true
		}
	}
	return false
}

// Count returns the number of repairs of the given kind.
func (r Report) Count(kind RepairKind) int {
	n := 0
	for _, rep := range r.Repairs {
		if rep.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Report) add(kind RepairKind, sceneID, decisionID, detail string) {
	r.Repairs = append(r.Repairs, Repair{Kind: kind, SceneID: sceneID, DecisionID: decisionID, Detail: detail})
	log.Printf("[VALIDATE] %s scene=%s decision=%s %s", kind, sceneID, decisionID, detail)
}

// #endregion repair-types

// #region validate-paths
// ValidatePaths closes the graph in place: last-level scenes become
// endings with no decisions, every other scene keeps at least one
// decision, and every LeadsTo points at a scene of the next level.
// Running it on an already valid graph changes nothing.
func ValidatePaths(st *story.GenerationState) Report {
	var report Report
	last := len(st.ScenesByLevel) - 1
	if last < 0 {
		return report
	}

	for level, ids := range st.ScenesByLevel {
		for _, id := range ids {
			sc := st.Scenes[id]
			if sc == nil {
				continue
			}
			if level == last {
				enforceEnding(sc, &report)
				continue
			}
			if sc.IsEnding {
				sc.IsEnding = false
				switch {
				case level == 0:
					sc.Type = story.SceneIntro
				case sc.Type == story.SceneEnding:
					sc.Type = story.SceneBranch
				}
				report.add(RepairClearedEnding, sc.ID, "", fmt.Sprintf("level %d is not terminal", level))
			}
			repairDecisions(st, sc, &report)
		}
	}

	relinkOrphans(st, &report)
	return report
}

func enforceEnding(sc *story.Scene, report *Report) {
	if sc.IsEnding && sc.Type == story.SceneEnding && len(sc.Decisions) == 0 && sc.Decisions != nil {
		return
	}
	changed := !sc.IsEnding || sc.Type != story.SceneEnding || len(sc.Decisions) > 0
	sc.IsEnding = true
	sc.Type = story.SceneEnding
	sc.Decisions = []story.Decision{}
	if changed {
		report.add(RepairForcedEnding, sc.ID, "", "terminal level")
	}
}

func repairDecisions(st *story.GenerationState, sc *story.Scene, report *Report) {
	next := st.Level(sc.Level + 1)
	if len(next) == 0 {
		return
	}
	if len(sc.Decisions) == 0 {
		d := story.Decision{
			ID:      story.DecisionID(sc.ID, 1),
			Text:    "Continue",
			LeadsTo: next[0],
			Order:   1,
		}
		sc.Decisions = append(sc.Decisions, d)
		report.add(RepairAddedDecision, sc.ID, d.ID, "scene had no decisions")
		return
	}
	for i := range sc.Decisions {
		d := &sc.Decisions[i]
		if slices.Contains(next, d.LeadsTo) {
			continue
		}
		prev := d.LeadsTo
		d.LeadsTo = next[0]
		report.add(RepairDanglingTarget, sc.ID, d.ID, fmt.Sprintf("%q -> %s", prev, next[0]))
	}
}

// #endregion validate-paths

// #region orphans
// relinkOrphans gives every unreached scene below level 0 an inbound decision
// by redirecting a predecessor decision whose target is reached more than once.
func relinkOrphans(st *story.GenerationState, report *Report) {
	for level := 1; level < len(st.ScenesByLevel); level++ {
		sources := st.Level(level - 1)
		inbound := inboundCounts(st, sources)

		for _, id := range st.ScenesByLevel[level] {
			if inbound[id] > 0 {
				continue
			}
			target := st.Scenes[id]
			if target == nil {
				continue
			}
			src, idx := donorDecision(st, target, sources, inbound)
			if src == nil {
				report.add(RepairOrphanUnreached, id, "", "no redirectable decision")
				continue
			}
			d := &src.Decisions[idx]
			inbound[d.LeadsTo]--
			prev := d.LeadsTo
			d.LeadsTo = id
			inbound[id]++
			if !slices.Contains(target.Incoming, src.ID) {
				target.Incoming = append(target.Incoming, src.ID)
			}
			report.add(RepairOrphanRelinked, src.ID, d.ID, fmt.Sprintf("%s -> %s", prev, id))
		}
	}
}

func inboundCounts(st *story.GenerationState, sources []string) map[string]int {
	counts := make(map[string]int)
	for _, sID := range sources {
		if s := st.Scenes[sID]; s != nil {
			for _, d := range s.Decisions {
				counts[d.LeadsTo]++
			}
		}
	}
	return counts
}

// donorDecision prefers sources listed in the orphan's incoming set.
func donorDecision(st *story.GenerationState, target *story.Scene, sources []string, inbound map[string]int) (*story.Scene, int) {
	ordered := make([]string, 0, len(sources))
	for _, sID := range sources {
		if slices.Contains(target.Incoming, sID) {
			ordered = append(ordered, sID)
		}
	}
	for _, sID := range sources {
		if !slices.Contains(target.Incoming, sID) {
			ordered = append(ordered, sID)
		}
	}

	for _, sID := range ordered {
		src := st.Scenes[sID]
		if src == nil {
			continue
		}
		for i := len(src.Decisions) - 1; i >= 0; i-- {
			if inbound[src.Decisions[i].LeadsTo] > 1 {
				return src, i
			}
		}
	}
	return nil, -1
}

// #endregion orphans
