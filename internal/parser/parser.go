// Package parser locates the tracking number field in recognized label text.
//
// The parser is a single pass, two state machine. It looks for a line that
// contains the label keyword and reads the value after the colon. When the
// value is missing it makes exactly one attempt on the next candidate line.
package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/MeKo-Tech/trackscan/internal/ocr"
)

// DefaultKeyword marks the line holding (or preceding) the tracking number.
const DefaultKeyword = "Sendungs"

// TrackNumberLength is the exact rune length of a tracking number.
const TrackNumberLength = 14

// State is the parser state.
type State int

const (
	// Scanning looks for a line containing the keyword.
	Scanning State = iota
	// AwaitingNextLine tests the next candidate line as the value.
	AwaitingNextLine
)

func (s State) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case AwaitingNextLine:
		return "awaiting_next_line"
	default:
		return "unknown"
	}
}

// Reason explains how a parse ended.
type Reason string

const (
	ReasonMatched          Reason = "matched"
	ReasonMatchedNextLine  Reason = "matched_next_line"
	ReasonKeywordNotFound  Reason = "keyword_not_found"
	ReasonBadValueLength   Reason = "bad_value_length"
	ReasonNextLineNotDigit Reason = "next_line_not_numeric"
	ReasonNoNextLine       Reason = "no_next_line"
)

// Match is a located tracking number.
type Match struct {
	TrackNumber string
	// Rect is the first word of the line the number was read from, nil when
	// that line carries no word geometry.
	Rect *ocr.Rect
	// Line is the index into the input lines.
	Line int
}

// Result is the full outcome of a parse.
type Result struct {
	Match  Match
	Found  bool
	Reason Reason
}

// Parser extracts tracking numbers. It holds no per-call state and is safe
// for concurrent use.
type Parser struct {
	keyword    string
	keywordLen int
}

// New returns a parser for keyword; an empty keyword selects DefaultKeyword.
func New(keyword string) *Parser {
	if keyword == "" {
		keyword = DefaultKeyword
	}
	return &Parser{keyword: keyword, keywordLen: utf8.RuneCountInString(keyword)}
}

// Keyword returns the label keyword.
func (p *Parser) Keyword() string { return p.keyword }

// Parse returns the tracking number in lines, if any.
func (p *Parser) Parse(lines []ocr.Line) (Match, bool) {
	r := p.Explain(lines)
	return r.Match, r.Found
}

// Explain runs the state machine and reports why it stopped.
func (p *Parser) Explain(lines []ocr.Line) Result {
	state := Scanning
	for i, line := range lines {
		text := line.Text
		if utf8.RuneCountInString(text) < p.keywordLen {
			continue
		}

		if state == AwaitingNextLine {
			if IsNumeric(text) {
				return Result{Match: newMatch(text, line, i), Found: true, Reason: ReasonMatchedNextLine}
			}
			return Result{Reason: ReasonNextLineNotDigit}
		}

		if !strings.Contains(text, p.keyword) {
			continue
		}

		tokens := splitNonEmpty(text, ':')
		if len(tokens) != 2 {
			state = AwaitingNextLine
			continue
		}
		value := strings.TrimSpace(tokens[1])
		if utf8.RuneCountInString(value) != TrackNumberLength {
			return Result{Reason: ReasonBadValueLength}
		}
		if IsNumeric(value) {
			return Result{Match: newMatch(value, line, i), Found: true, Reason: ReasonMatched}
		}
		state = AwaitingNextLine
	}

	if state == AwaitingNextLine {
		return Result{Reason: ReasonNoNextLine}
	}
	return Result{Reason: ReasonKeywordNotFound}
}

func newMatch(number string, line ocr.Line, index int) Match {
	m := Match{TrackNumber: number, Line: index}
	if r, ok := line.FirstWordRect(); ok {
		m.Rect = &r
	}
	return m
}

func splitNonEmpty(s string, sep rune) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == sep })
}

// IsNumeric reports whether s is non-empty and consists only of ASCII digits.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsTrackNumber reports whether s is exactly TrackNumberLength ASCII digits.
func IsTrackNumber(s string) bool {
	return len(s) == TrackNumberLength && IsNumeric(s)
}
