package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
)

// DecodeError reports a state block whose JSON could not be read.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("failed to decode state block: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// Parser is responsible for converting raw message text into commands and
// for reading and writing the embedded state block.
type Parser struct {
	start string
	end   string
}

// Option configures a Parser.
type Option func(*Parser)

// WithMarkers overrides the state block delimiters.
func WithMarkers(start, end string) Option {
	return func(p *Parser) {
		if start != "" && end != "" {
			p.start, p.end = start, end
		}
	}
}

// NewParser creates a new parser instance using the default markers.
func NewParser(opts ...Option) *Parser {
	p := &Parser{start: domain.DefaultStartMarker, end: domain.DefaultEndMarker}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Markers returns the configured delimiters.
func (p *Parser) Markers() (start, end string) { return p.start, p.end }

// Commands returns the commands found in text outside of any state block.
func (p *Parser) Commands(text string) []domain.Command {
	return Tokenize(p.withoutBlocks(text))
}

// HasBlock reports whether text contains a complete state block.
func (p *Parser) HasBlock(text string) bool {
	_, _, ok := p.firstBlock(text)
	return ok
}

// Extract reads the first state block in text (first start marker to the
// nearest following end marker).
//
// found is false when there is no block or the block is empty. A block whose
// JSON cannot be decoded yields the Initial State and a *DecodeError.
func (p *Parser) Extract(text string) (state *domain.State, found bool, err error) {
	from, to, ok := p.firstBlock(text)
	if !ok {
		return nil, false, nil
	}
	body := bytes.TrimSpace([]byte(text[from:to]))
	if len(body) == 0 {
		return nil, false, nil
	}
	var s domain.State
	if err := json.Unmarshal(body, &s); err != nil {
		return domain.NewState(), true, &DecodeError{Err: err}
	}
	return s.Normalize(), true, nil
}

// Strip removes everything from the first start marker to the last end marker
// and trims the result.
func (p *Parser) Strip(text string) string {
	start := strings.Index(text, p.start)
	if start < 0 {
		return strings.TrimSpace(text)
	}
	end := strings.LastIndex(text, p.end)
	if end < start+len(p.start) {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:start] + text[end+len(p.end):])
}

// Embed strips any existing block from text and appends a fresh one for s.
func (p *Parser) Embed(text string, s *domain.State) (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}
	return p.Strip(text) + "\n\n" + p.start + "\n" + string(data) + "\n" + p.end, nil
}

// firstBlock returns the byte range of the first block's body.
func (p *Parser) firstBlock(text string) (from, to int, ok bool) {
	start := strings.Index(text, p.start)
	if start < 0 {
		return 0, 0, false
	}
	from = start + len(p.start)
	rel := strings.Index(text[from:], p.end)
	if rel < 0 {
		return 0, 0, false
	}
	return from, from + rel, true
}

// withoutBlocks drops every complete block, keeping text between blocks.
func (p *Parser) withoutBlocks(text string) string {
	var b strings.Builder
	for {
		start := strings.Index(text, p.start)
		if start < 0 {
			break
		}
		rel := strings.Index(text[start+len(p.start):], p.end)
		if rel < 0 {
			break
		}
		b.WriteString(text[:start])
		text = text[start+len(p.start)+rel+len(p.end):]
	}
	b.WriteString(text)
	return b.String()
}
