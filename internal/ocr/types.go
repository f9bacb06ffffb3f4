package ocr

import (
	"image"
	"strings"
)

// Point is an integer pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rect is an axis-aligned bounding box in pixel coordinates.
type Rect struct {
	TopLeft     Point `json:"top_left"`
	BottomRight Point `json:"bottom_right"`
}

// RectFromImage converts an image.Rectangle into a Rect.
func RectFromImage(r image.Rectangle) Rect {
	r = r.Canon()
	return Rect{
		TopLeft:     Point{X: r.Min.X, Y: r.Min.Y},
		BottomRight: Point{X: r.Max.X, Y: r.Max.Y},
	}
}

// Image returns the rectangle as an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.TopLeft.X, r.TopLeft.Y, r.BottomRight.X, r.BottomRight.Y)
}

// Width returns the horizontal extent.
func (r Rect) Width() int { return r.BottomRight.X - r.TopLeft.X }

// Height returns the vertical extent.
func (r Rect) Height() int { return r.BottomRight.Y - r.TopLeft.Y }

// Union returns the smallest rectangle containing both r and o.
func (r Rect) Union(o Rect) Rect {
	return RectFromImage(r.Image().Union(o.Image()))
}

// Word is one recognized word with its bounding box.
type Word struct {
	Text       string  `json:"text"`
	Rect       Rect    `json:"rect"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Line is one recognized line of text. Words are ordered left to right.
type Line struct {
	Text  string `json:"text"`
	Words []Word `json:"words,omitempty"`
}

// NewLine builds a line whose text is its words joined by single spaces.
func NewLine(words ...Word) Line {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if w.Text != "" {
			parts = append(parts, w.Text)
		}
	}
	return Line{Text: strings.Join(parts, " "), Words: words}
}

// FirstWordRect returns the bounding box of the first word, if any.
func (l Line) FirstWordRect() (Rect, bool) {
	if len(l.Words) == 0 {
		return Rect{}, false
	}
	return l.Words[0].Rect, true
}

// Bounds returns the union of all word boxes.
func (l Line) Bounds() Rect {
	if len(l.Words) == 0 {
		return Rect{}
	}
	b := l.Words[0].Rect
	for _, w := range l.Words[1:] {
		b = b.Union(w.Rect)
	}
	return b
}
