// Package mock builds synthetic model outputs for postprocessing tests.
package mock

// ImageMap is a detection probability map with NCHW shape [1,1,H,W].
type ImageMap struct {
	Data   []float32
	Width  int
	Height int
}

// Shape returns the NCHW shape of the map.
func (m ImageMap) Shape() []int64 {
	return []int64{1, 1, int64(m.Height), int64(m.Width)}
}

// NewUniformMap creates a WxH map filled with value.
func NewUniformMap(w, h int, value float32) ImageMap {
	if w <= 0 || h <= 0 {
		return ImageMap{}
	}
	data := make([]float32, w*h)
	for i := range data {
		data[i] = clamp01(value)
	}
	return ImageMap{Data: data, Width: w, Height: h}
}

// Box is a half-open pixel rectangle [X0,X1) x [Y0,Y1).
type Box struct {
	X0, Y0, X1, Y1 int
}

// NewBoxMap paints each box with hi on a background of lo, mimicking the
// word blobs a text detector emits.
func NewBoxMap(w, h int, boxes []Box, hi, lo float32) ImageMap {
	m := NewUniformMap(w, h, lo)
	if m.Data == nil {
		return m
	}
	for _, b := range boxes {
		for y := max(b.Y0, 0); y < min(b.Y1, h); y++ {
			for x := max(b.X0, 0); x < min(b.X1, w); x++ {
				m.Data[y*w+x] = clamp01(hi)
			}
		}
	}
	return m
}

// Logits is a synthetic recognition output with shape [N,T,C] or [N,C,T].
type Logits struct {
	Data  []float32
	Shape []int64
}

// NewGreedyPathLogits builds logits for one sequence whose greedy argmax
// yields indices. classesFirst selects [1,C,T] instead of [1,T,C].
func NewGreedyPathLogits(indices []int, classes int, classesFirst bool, high, low float32) Logits {
	if classes <= 0 || len(indices) == 0 {
		return Logits{Shape: []int64{}}
	}
	t := len(indices)
	data := make([]float32, t*classes)
	for ti, c := range indices {
		for cls := range classes {
			v := low
			if cls == c {
				v = high
			}
			if classesFirst {
				data[cls*t+ti] = v
			} else {
				data[ti*classes+cls] = v
			}
		}
	}
	if classesFirst {
		return Logits{Data: data, Shape: []int64{1, int64(classes), int64(t)}}
	}
	return Logits{Data: data, Shape: []int64{1, int64(t), int64(classes)}}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
