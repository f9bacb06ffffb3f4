package recognizer

import (
	"fmt"
	"math"
)

// Decoded is the greedy CTC path of one sequence after collapsing.
type Decoded struct {
	Classes []int
	Probs   []float64
}

// Confidence is the mean per-character probability, 0 for an empty path.
func (d Decoded) Confidence() float64 {
	if len(d.Probs) == 0 {
		return 0
	}
	var sum float64
	for _, p := range d.Probs {
		sum += p
	}
	return sum / float64(len(d.Probs))
}

// DecodeGreedy decodes the first sequence of a [N,T,C] (or [N,C,T] when
// classesFirst) logits tensor. Repeated classes collapse and blanks drop.
func DecodeGreedy(logits []float32, shape []int64, blank int, classesFirst bool) (Decoded, error) {
	if len(shape) != 3 {
		return Decoded{}, fmt.Errorf("expected rank 3 logits, got shape %v", shape)
	}
	steps, classes := int(shape[1]), int(shape[2])
	if classesFirst {
		steps, classes = classes, steps
	}
	if steps <= 0 || classes <= 0 || len(logits) < steps*classes {
		return Decoded{}, fmt.Errorf("logits length %d does not fit shape %v", len(logits), shape)
	}

	at := func(t, c int) float32 {
		if classesFirst {
			return logits[c*steps+t]
		}
		return logits[t*classes+c]
	}

	var out Decoded
	prev := -1
	row := make([]float32, classes)
	for t := range steps {
		for c := range classes {
			row[c] = at(t, c)
		}
		best := argmax(row)
		if best != blank && best != prev {
			out.Classes = append(out.Classes, best)
			out.Probs = append(out.Probs, probOf(row, best))
		}
		prev = best
	}
	return out, nil
}

func argmax(v []float32) int {
	idx := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[idx] {
			idx = i
		}
	}
	return idx
}

// probOf returns v[idx] if v already looks like a distribution and the
// softmax probability otherwise.
func probOf(v []float32, idx int) float64 {
	var sum float64
	lo, hi := v[0], v[0]
	for _, x := range v {
		sum += float64(x)
		lo, hi = min(lo, x), max(hi, x)
	}
	if sum > 0.99 && sum < 1.01 && lo >= 0 && hi <= 1 {
		return float64(v[idx])
	}
	var denom float64
	for _, x := range v {
		denom += math.Exp(float64(x - hi))
	}
	return math.Exp(float64(v[idx]-hi)) / denom
}
