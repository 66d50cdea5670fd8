package geometry

import "math"

// MatchThreshold is the minimum overlap score for a detected quad to be
// considered aligned with a reference guide.
const MatchThreshold = 0.6

// Area computes the quad area via the shoelace formula over the four
// ordered corners. Degenerate quads yield 0.
func Area(q Quad) float64 {
	pts := q.Points()
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(sum) / 2
}

// IntersectionArea approximates the overlap between two quads using
// their axis-aligned bounding boxes. This deliberately avoids exact
// polygon clipping; it can overestimate overlap for rotated quads, which
// is acceptable for guide matching where both quads are near
// axis-aligned.
func IntersectionArea(a, b Quad) float64 {
	return a.BoundingBox().IntersectionArea(b.BoundingBox())
}

// MatchScore returns how well a detected quad overlaps a reference guide
// quad, as intersection area over the larger of the two areas, clamped
// to [0, 1]. Degenerate inputs score 0.
func MatchScore(detected, guide Quad) float64 {
	detArea := Area(detected)
	guideArea := Area(guide)
	denom := math.Max(detArea, guideArea)
	if denom <= 0 {
		return 0
	}
	score := IntersectionArea(detected, guide) / denom
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Matches reports whether the detected quad overlaps the guide strongly
// enough to count as aligned.
func Matches(detected, guide Quad) bool {
	return MatchScore(detected, guide) > MatchThreshold
}
