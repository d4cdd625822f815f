// Package selector picks the single frame that stands in for a similarity
// group in the final output.
package selector

import (
	"sort"

	"github.com/kdimtricp/slidecap/internal/detector"
	"github.com/kdimtricp/slidecap/internal/fingerprint"
	"github.com/kdimtricp/slidecap/internal/grouping"
)

// partialRenderPenalty is applied to members whose edge density falls far
// below the group median, the signature of a transitional or half-drawn
// frame.
const partialRenderPenalty = 0.5

// Representative records the choice of one member for a group. Selection
// never alters candidate or group data.
type Representative struct {
	GroupID   int
	Candidate detector.Candidate

	// MemberIndex is the chosen member's 1-based position within the
	// group, used in output filenames.
	MemberIndex int

	// Sharpness is the penalized score the member won with.
	Sharpness float64
}

// Select scores each member by Laplacian variance, penalizes likely
// partial renders, and picks the maximum. Ties go to the earliest
// timestamp so the result is reproducible for identical input.
func Select(group grouping.Group) Representative {
	median := medianEdgeDensity(group.Members)

	best := 0
	bestScore := -1.0
	for i, m := range group.Members {
		score := fingerprint.Sharpness(m.Frame.Image)
		if median > 0 && m.Fingerprint.EdgeDensity < median*0.5 {
			score *= partialRenderPenalty
		}
		if score > bestScore {
			best = i
			bestScore = score
		}
	}

	return Representative{
		GroupID:     group.ID,
		Candidate:   group.Members[best],
		MemberIndex: best + 1,
		Sharpness:   bestScore,
	}
}

// SelectAll maps Select over all groups, preserving group order.
func SelectAll(groups []grouping.Group) []Representative {
	reps := make([]Representative, 0, len(groups))
	for _, g := range groups {
		reps = append(reps, Select(g))
	}
	return reps
}

func medianEdgeDensity(members []detector.Candidate) float64 {
	if len(members) == 0 {
		return 0
	}
	densities := make([]float64, len(members))
	for i, m := range members {
		densities[i] = m.Fingerprint.EdgeDensity
	}
	sort.Float64s(densities)
	mid := len(densities) / 2
	if len(densities)%2 == 0 {
		return (densities[mid-1] + densities[mid]) / 2
	}
	return densities[mid]
}
