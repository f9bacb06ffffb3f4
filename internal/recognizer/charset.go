package recognizer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Charset maps model class indices to tokens. Class 0 is the CTC blank, so
// class i corresponds to Tokens[i-1].
type Charset struct {
	Tokens []string
}

// LoadCharset reads a dictionary file with one token per non-empty line.
func LoadCharset(path string) (*Charset, error) {
	if path == "" {
		return nil, errors.New("dictionary path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // G304: dictionary path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("Error closing dictionary file", "path", path, "error", err)
		}
	}()

	cs, err := ReadCharset(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, path)
	}
	return cs, nil
}

// ReadCharset parses a dictionary from r. A UTF-8 BOM on the first line is dropped.
func ReadCharset(r io.Reader) (*Charset, error) {
	scanner := bufio.NewScanner(r)
	tokens := make([]string, 0, 128)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		tokens = append(tokens, strings.TrimSpace(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading dictionary: %w", err)
	}
	if len(tokens) == 0 {
		return nil, errors.New("dictionary is empty")
	}
	return &Charset{Tokens: tokens}, nil
}

// Size returns the number of tokens, excluding the blank.
func (c *Charset) Size() int { return len(c.Tokens) }

// Token returns the token for a model class index.
func (c *Charset) Token(class int) (string, bool) {
	i := class - 1
	if i < 0 || i >= len(c.Tokens) {
		return "", false
	}
	return c.Tokens[i], true
}
