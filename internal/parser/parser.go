// Package parser turns a dictated transcript into challan line items.
//
// A transcript is split on commas; each segment yields at most one item. The
// leftmost token that reads as a number (a spoken number word or digits) is the
// quantity and everything after it is the description. Segments without a
// quantity or without a description are skipped, never reported as errors.
package parser

import (
	"strconv"
	"strings"

	"github.com/yoockh/voicechallan/internal/models"
)

// Parser is immutable after New and safe for concurrent use.
type Parser struct {
	numerals  map[string]int
	fractions []fractionRule
}

type Option func(*parserOptions)

type parserOptions struct {
	numerals  map[string]int
	fractions []Fraction
}

// WithNumerals replaces the numeral table. Keys are matched lower-case.
func WithNumerals(m map[string]int) Option {
	return func(o *parserOptions) { o.numerals = m }
}

// WithFractions replaces the fraction table. Order matters: each rule runs over
// the output of the previous one.
func WithFractions(fs []Fraction) Option {
	return func(o *parserOptions) { o.fractions = fs }
}

func New(opts ...Option) *Parser {
	o := parserOptions{numerals: defaultNumerals, fractions: defaultFractions}
	for _, opt := range opts {
		opt(&o)
	}

	numerals := make(map[string]int, len(o.numerals))
	for k, v := range o.numerals {
		numerals[strings.ToLower(k)] = v
	}
	return &Parser{numerals: numerals, fractions: compileFractions(o.fractions)}
}

var std = New()

// Parse runs the default parser.
func Parse(transcript string) []models.Item { return std.Parse(transcript) }

// Parse returns the items found in transcript, in segment order. The result is
// never nil.
func (p *Parser) Parse(transcript string) []models.Item {
	items, _ := p.ParseCount(transcript)
	return items
}

// ParseCount is Parse plus the number of comma-delimited segments examined.
func (p *Parser) ParseCount(transcript string) ([]models.Item, int) {
	items := []models.Item{}
	if transcript == "" {
		return items, 0
	}

	segments := strings.Split(transcript, ",")
	for _, seg := range segments {
		if it, ok := p.ParseSegment(seg); ok {
			items = append(items, it)
		}
	}
	return items, len(segments)
}

// ParseSegment parses one comma-free segment. ok is false when the segment has no
// quantity token or nothing after it.
func (p *Parser) ParseSegment(segment string) (item models.Item, ok bool) {
	text := p.replaceFractions(segment)
	words := strings.Split(strings.TrimSpace(text), " ")

	start := -1
	var qty int
	for i, w := range words {
		if n, found := p.quantity(w); found {
			qty, start = n, i+1
			break
		}
	}
	if start < 0 {
		return models.Item{}, false
	}

	desc := strings.Join(words[start:], " ")
	desc = strings.ReplaceAll(desc, "M M", "mm")
	desc = strings.ReplaceAll(desc, "Intu", "inch")
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return models.Item{}, false
	}
	return models.Item{Quantity: qty, Description: desc}, true
}

func (p *Parser) replaceFractions(s string) string {
	for _, r := range p.fractions {
		s = r.re.ReplaceAllLiteralString(s, r.replacement)
	}
	return s
}

func (p *Parser) quantity(word string) (int, bool) {
	if word == "" {
		return 0, false
	}
	if n, ok := p.numerals[strings.ToLower(word)]; ok {
		return n, true
	}
	n, err := strconv.Atoi(word)
	if err != nil {
		return 0, false
	}
	return n, true
}
