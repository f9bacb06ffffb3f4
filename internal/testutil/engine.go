package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/trackscan/internal/ocr"
)

// scriptMarker tags the blue channel of images produced by ScriptedEngine.Add.
const scriptMarker = 77

// Scenario is what ScriptedEngine does for one image.
type Scenario struct {
	Lines []ocr.Line
	Err   error
	Panic bool
	Delay time.Duration
}

// ScriptedEngine is an ocr.Engine whose output is chosen per image. Each
// image returned by Add carries its scenario index in its pixels, so the
// engine can be driven through the real decode path.
type ScriptedEngine struct {
	mu        sync.RWMutex
	scenarios []Scenario
	calls     atomic.Int64
	closed    atomic.Bool
}

// NewScriptedEngine returns an empty engine.
func NewScriptedEngine() *ScriptedEngine {
	return &ScriptedEngine{}
}

// Add registers a scenario and returns PNG bytes that select it.
func (e *ScriptedEngine) Add(s Scenario) []byte {
	e.mu.Lock()
	idx := len(e.scenarios)
	e.scenarios = append(e.scenarios, s)
	e.mu.Unlock()

	if idx > 0xFFFF {
		panic("too many scenarios")
	}
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	c := color.NRGBA{R: uint8(idx & 0xFF), G: uint8(idx >> 8), B: scriptMarker, A: 255}
	for y := range 4 {
		for x := range 4 {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// AddText registers lines built from plain texts.
func (e *ScriptedEngine) AddText(texts ...string) []byte {
	return e.Add(Scenario{Lines: LinesFromText(texts...)})
}

// Recognize implements ocr.Engine.
func (e *ScriptedEngine) Recognize(img *image.NRGBA) ([]ocr.Line, error) {
	e.calls.Add(1)
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("empty image")
	}
	p := img.NRGBAAt(img.Bounds().Min.X, img.Bounds().Min.Y)
	if p.B != scriptMarker {
		return nil, fmt.Errorf("image is not scripted (pixel %v)", p)
	}
	idx := int(p.R) | int(p.G)<<8

	e.mu.RLock()
	if idx >= len(e.scenarios) {
		e.mu.RUnlock()
		return nil, fmt.Errorf("unknown scenario %d", idx)
	}
	s := e.scenarios[idx]
	e.mu.RUnlock()

	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	if s.Panic {
		panic(fmt.Sprintf("scripted panic for scenario %d", idx))
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Lines, nil
}

// Calls returns how many images the engine has seen.
func (e *ScriptedEngine) Calls() int64 { return e.calls.Load() }

// Closed reports whether Close was called.
func (e *ScriptedEngine) Closed() bool { return e.closed.Load() }

// Close implements ocr.Engine.
func (e *ScriptedEngine) Close() error {
	e.closed.Store(true)
	return nil
}

// LinesFromText builds lines with synthetic word geometry: 10px per rune,
// 20px line pitch, one space between words.
func LinesFromText(texts ...string) []ocr.Line {
	lines := make([]ocr.Line, 0, len(texts))
	for i, text := range texts {
		y := 10 + i*20
		x := 10
		var words []ocr.Word
		for _, w := range strings.Fields(text) {
			width := 10 * len([]rune(w))
			words = append(words, ocr.Word{
				Text: w,
				Rect: ocr.Rect{
					TopLeft:     ocr.Point{X: x, Y: y},
					BottomRight: ocr.Point{X: x + width, Y: y + 16},
				},
			})
			x += width + 10
		}
		line := ocr.NewLine(words...)
		line.Text = text
		lines = append(lines, line)
	}
	return lines
}
