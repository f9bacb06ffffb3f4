package ocr

import "fmt"

// DecodeError reports that a buffer could not be decoded as a supported image.
type DecodeError struct {
	Size int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %d bytes: %v", e.Size, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RecognitionError reports that the engine rejected or failed on a decoded image.
type RecognitionError struct {
	Width  int
	Height int
	Err    error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognize %dx%d image: %v", e.Width, e.Height, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }
