package detector

import (
	"image"
	"math"
	"sort"

	"github.com/MeKo-Tech/trackscan/internal/mempool"
)

// Region is one detected text area in original image coordinates.
type Region struct {
	Box        image.Rectangle
	Confidence float64 // mean probability over the component
}

type compStats struct {
	count      int
	sum        float64
	minX, minY int
	maxX, maxY int
}

func binarize(prob []float32, t float32) []bool {
	mask := mempool.GetBool(len(prob))
	for i, p := range prob {
		mask[i] = p >= t
	}
	return mask
}

// connectedComponents labels 4-connected foreground pixels.
func connectedComponents(mask []bool, prob []float32, w, h int) []compStats {
	visited := mempool.GetBool(w * h)
	defer mempool.PutBool(visited)
	var comps []compStats
	queue := make([]int, 0, 64)

	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}
		sx, sy := start%w, start/w
		st := compStats{minX: sx, minY: sy, maxX: sx, maxY: sy}
		visited[start] = true
		queue = append(queue[:0], start)

		for len(queue) > 0 {
			ci := queue[0]
			queue = queue[1:]
			cx, cy := ci%w, ci/w

			st.count++
			st.sum += float64(prob[ci])
			st.minX, st.maxX = min(st.minX, cx), max(st.maxX, cx)
			st.minY, st.maxY = min(st.minY, cy), max(st.maxY, cy)

			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := cx+d[0], cy+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := ny*w + nx
				if mask[ni] && !visited[ni] {
					visited[ni] = true
					queue = append(queue, ni)
				}
			}
		}
		comps = append(comps, st)
	}
	return comps
}

// extractRegions turns a WxH probability map into regions scaled to an
// origW x origH image. Regions are sorted top to bottom, then left to right.
func extractRegions(prob []float32, w, h, origW, origH int, cfg Config) []Region {
	if len(prob) < w*h || w <= 0 || h <= 0 {
		return nil
	}
	prob = prob[:w*h]
	mask := binarize(prob, cfg.DbThresh)
	comps := connectedComponents(mask, prob, w, h)
	mempool.PutBool(mask)

	sx := float64(origW) / float64(w)
	sy := float64(origH) / float64(h)
	bounds := image.Rect(0, 0, origW, origH)

	regions := make([]Region, 0, len(comps))
	for _, c := range comps {
		if c.count < cfg.MinRegionArea {
			continue
		}
		mean := c.sum / float64(c.count)
		if mean < float64(cfg.DbBoxThresh) {
			continue
		}
		box := image.Rect(
			int(math.Floor(float64(c.minX)*sx)),
			int(math.Floor(float64(c.minY)*sy)),
			int(math.Ceil(float64(c.maxX+1)*sx)),
			int(math.Ceil(float64(c.maxY+1)*sy)),
		).Intersect(bounds)
		if box.Empty() {
			continue
		}
		regions = append(regions, Region{Box: box, Confidence: mean})
	}

	sort.SliceStable(regions, func(i, j int) bool {
		a, b := regions[i].Box.Min, regions[j].Box.Min
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return regions
}
