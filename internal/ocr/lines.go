package ocr

import "sort"

// DefaultLineOverlap is the vertical overlap ratio at which a word joins a line.
const DefaultLineOverlap = 0.5

// GroupLines arranges words into lines. A word joins a line when its vertical
// overlap with the line is at least overlap times the smaller of the two
// heights. Lines are ordered top to bottom, words left to right.
func GroupLines(words []Word, overlap float64) []Line {
	if len(words) == 0 {
		return nil
	}
	if overlap <= 0 || overlap > 1 {
		overlap = DefaultLineOverlap
	}

	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Rect.TopLeft, sorted[j].Rect.TopLeft
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	type group struct {
		bounds Rect
		words  []Word
	}
	var groups []*group
	for _, w := range sorted {
		var best *group
		bestOverlap := 0.0
		for _, g := range groups {
			ov := verticalOverlap(g.bounds, w.Rect)
			if ov >= overlap && ov > bestOverlap {
				best, bestOverlap = g, ov
			}
		}
		if best == nil {
			groups = append(groups, &group{bounds: w.Rect, words: []Word{w}})
			continue
		}
		best.words = append(best.words, w)
		best.bounds = best.bounds.Union(w.Rect)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].bounds.TopLeft.Y < groups[j].bounds.TopLeft.Y
	})

	lines := make([]Line, 0, len(groups))
	for _, g := range groups {
		sort.SliceStable(g.words, func(i, j int) bool {
			return g.words[i].Rect.TopLeft.X < g.words[j].Rect.TopLeft.X
		})
		lines = append(lines, NewLine(g.words...))
	}
	return lines
}

// verticalOverlap returns the shared height of a and b relative to the
// smaller height.
func verticalOverlap(a, b Rect) float64 {
	top := max(a.TopLeft.Y, b.TopLeft.Y)
	bottom := min(a.BottomRight.Y, b.BottomRight.Y)
	shorter := min(a.Height(), b.Height())
	if bottom <= top || shorter <= 0 {
		return 0
	}
	return float64(bottom-top) / float64(shorter)
}
