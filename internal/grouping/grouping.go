// Package grouping clusters boundary candidates into groups that depict
// the same logical slide, absorbing encoder noise, animation build-ups and
// cursor movement between captures.
package grouping

import (
	"github.com/kdimtricp/slidecap/internal/detector"
	"github.com/kdimtricp/slidecap/internal/fingerprint"
)

// Ungrouped is the group id used when grouping is disabled.
const Ungrouped = -1

// Group is a cluster of candidates judged to be the same slide. Members
// keep discovery order and the set is frozen once grouping finishes.
type Group struct {
	ID      int
	Members []detector.Candidate
}

// Representative returns the fingerprint this group is compared by: its
// first member's. The first member never changes, so the representative is
// stable under appends, which keeps the passes deterministic.
func (g *Group) Representative() fingerprint.Fingerprint {
	return g.Members[0].Fingerprint
}

// Grouper assigns candidates to similarity groups.
type Grouper struct {
	threshold float64
	weights   fingerprint.Weights
}

// New builds a grouper. The threshold is the grouping threshold, stricter
// than boundary detection: it asks "are these the same slide", not "did
// something change".
func New(threshold float64, weights fingerprint.Weights) *Grouper {
	return &Grouper{threshold: threshold, weights: weights}
}

// Group runs the greedy single pass. Because slide decks are temporally
// ordered, only the currently open group needs comparing: a candidate
// similar enough joins it, anything else closes it and opens the next.
// Group ids are dense from 0 in first-seen order.
func (g *Grouper) Group(candidates []detector.Candidate) []Group {
	if len(candidates) == 0 {
		return nil
	}

	groups := []Group{{ID: 0, Members: []detector.Candidate{candidates[0]}}}
	for _, cand := range candidates[1:] {
		open := &groups[len(groups)-1]
		if fingerprint.Similarity(cand.Fingerprint, open.Representative(), g.weights) >= g.threshold {
			open.Members = append(open.Members, cand)
			continue
		}
		groups = append(groups, Group{ID: len(groups), Members: []detector.Candidate{cand}})
	}
	return groups
}

// Remerge unifies groups whose representatives are near-duplicates,
// handling a return to an earlier slide after a cutaway. The earlier id
// wins; the later group's members are appended in discovery order. The
// pass is idempotent: representatives are first members and never change,
// so a second run finds nothing new to merge.
func (g *Grouper) Remerge(groups []Group) []Group {
	var merged []Group
	for _, grp := range groups {
		target := -1
		for i := range merged {
			if fingerprint.Similarity(grp.Representative(), merged[i].Representative(), g.weights) >= g.threshold {
				target = i
				break
			}
		}
		if target >= 0 {
			merged[target].Members = append(merged[target].Members, grp.Members...)
			continue
		}
		merged = append(merged, grp)
	}
	return merged
}

// Ungroup wraps each candidate in its own group with the Ungrouped id,
// used when grouping is disabled.
func Ungroup(candidates []detector.Candidate) []Group {
	groups := make([]Group, 0, len(candidates))
	for _, cand := range candidates {
		groups = append(groups, Group{ID: Ungrouped, Members: []detector.Candidate{cand}})
	}
	return groups
}
