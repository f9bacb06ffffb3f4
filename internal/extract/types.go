// Package extract runs tracking number extraction over single images and
// whole batches.
package extract

import (
	"errors"

	"github.com/MeKo-Tech/trackscan/internal/ocr"
)

// ErrNoMatch means recognition succeeded but no tracking number was found.
// It never leaves the package boundary as an error: the image is reported in
// the fail list instead.
var ErrNoMatch = errors.New("no tracking number found")

// ErrInvalidTrackNumber means the parser produced a value that is not
// exactly 14 digits.
var ErrInvalidTrackNumber = errors.New("tracking number is not 14 digits")

// Processing stages reported for failed images.
const (
	StageDecode    = "decode"
	StageRecognize = "recognize"
	StageParse     = "parse"
	StageValidate  = "validate"
	StagePanic     = "panic"
)

// ImageInput is one submitted image.
type ImageInput struct {
	ID    string `json:"id"`
	Bytes []byte `json:"bytes"`
}

// SuccessRecord is a confirmed tracking number for one image.
type SuccessRecord struct {
	ID          string    `json:"id"`
	TrackNumber string    `json:"track_number"`
	Rect        *ocr.Rect `json:"rect,omitempty"`
}

// BatchResult partitions a batch into successes and failed identifiers.
type BatchResult struct {
	Success []SuccessRecord `json:"success"`
	Fail    []string        `json:"fail"`
}

// Len returns the number of images covered by the result.
func (r BatchResult) Len() int { return len(r.Success) + len(r.Fail) }

// Outcome is the result of processing one image: exactly one of Record or
// Err is set.
type Outcome struct {
	ID     string
	Record *SuccessRecord
	Err    error
	Stage  string
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Record != nil }

// Recognizer turns an encoded image into recognized lines.
// *ocr.Adapter satisfies it.
type Recognizer interface {
	Recognize(data []byte) ([]ocr.Line, error)
}

// ProgressFunc observes how many images of a batch have completed.
type ProgressFunc func(done, total int)
