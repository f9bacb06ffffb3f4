package extract

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/MeKo-Tech/trackscan/internal/ocr"
	"github.com/MeKo-Tech/trackscan/internal/parser"
)

// Processor runs decode, recognition and parsing for one image. It keeps no
// per-image state and is safe for concurrent use.
type Processor struct {
	recognizer Recognizer
	parser     *parser.Parser
}

// NewProcessor builds a processor around a shared recognizer.
func NewProcessor(recognizer Recognizer, p *parser.Parser) (*Processor, error) {
	if recognizer == nil {
		return nil, errors.New("recognizer is nil")
	}
	if p == nil {
		p = parser.New(parser.DefaultKeyword)
	}
	return &Processor{recognizer: recognizer, parser: p}, nil
}

// Parser returns the field parser.
func (p *Processor) Parser() *parser.Parser { return p.parser }

// ProcessImage returns exactly one outcome for in. Errors are logged with the
// image id and folded into a failed outcome; panics are recovered the same way.
func (p *Processor) ProcessImage(ctx context.Context, in ImageInput) (out Outcome) {
	start := time.Now()
	logger := Logger(ctx).With("id", in.ID)

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{ID: in.ID, Err: fmt.Errorf("panic: %v", r), Stage: StagePanic}
			logger.Error("Image processing panicked",
				"stage", StagePanic,
				"error", out.Err,
				"stack", string(debug.Stack()))
		}
		recordOutcome(out, time.Since(start).Seconds())
	}()

	out = p.process(in)
	if out.Err != nil {
		level := logger.Warn
		if errors.Is(out.Err, ErrNoMatch) {
			level = logger.Info
		}
		level("Image failed",
			"stage", out.Stage,
			"error", out.Err,
			"duration_ms", time.Since(start).Milliseconds())
		return out
	}

	logger.Debug("Image succeeded",
		"track_number", out.Record.TrackNumber,
		"duration_ms", time.Since(start).Milliseconds())
	return out
}

func (p *Processor) process(in ImageInput) Outcome {
	fail := func(stage string, err error) Outcome {
		return Outcome{ID: in.ID, Err: err, Stage: stage}
	}

	lines, err := p.recognizer.Recognize(in.Bytes)
	if err != nil {
		var de *ocr.DecodeError
		if errors.As(err, &de) {
			return fail(StageDecode, err)
		}
		return fail(StageRecognize, err)
	}

	res := p.parser.Explain(lines)
	if !res.Found {
		return fail(StageParse, fmt.Errorf("%w (%s, %d lines)", ErrNoMatch, res.Reason, len(lines)))
	}
	if !parser.IsTrackNumber(res.Match.TrackNumber) {
		return fail(StageValidate, fmt.Errorf("%w: %q", ErrInvalidTrackNumber, res.Match.TrackNumber))
	}

	return Outcome{
		ID: in.ID,
		Record: &SuccessRecord{
			ID:          in.ID,
			TrackNumber: res.Match.TrackNumber,
			Rect:        res.Match.Rect,
		},
	}
}
