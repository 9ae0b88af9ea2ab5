package parser

import "regexp"

// Spoken number words recognised as quantities. Only these exact words; compounds
// such as "twenty-one" or "hundred" are not numbers here.
var defaultNumerals = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50, "sixty": 60,
	"seventy": 70, "eighty": 80, "ninety": 90,
}

// Fraction is a spoken fraction phrase and the text it is rewritten to.
type Fraction struct {
	Phrase      string
	Replacement string
}

// Applied in this order. "Sawaka" and "Pune ka" are how the speech service spells
// the Hindi "sawa" (1/4) and "paune" (3/4).
var defaultFractions = []Fraction{
	{Phrase: "half", Replacement: "1/2"},
	{Phrase: "Sawaka", Replacement: "1/4"},
	{Phrase: "Pune ka", Replacement: "3/4"},
}

type fractionRule struct {
	re          *regexp.Regexp
	replacement string
}

func compileFractions(fs []Fraction) []fractionRule {
	rules := make([]fractionRule, 0, len(fs))
	for _, f := range fs {
		if f.Phrase == "" {
			continue
		}
		rules = append(rules, fractionRule{
			re:          regexp.MustCompile(`(?i)` + regexp.QuoteMeta(f.Phrase)),
			replacement: f.Replacement,
		})
	}
	return rules
}

// DefaultNumerals returns a copy of the built-in numeral table.
func DefaultNumerals() map[string]int {
	out := make(map[string]int, len(defaultNumerals))
	for k, v := range defaultNumerals {
		out[k] = v
	}
	return out
}

// DefaultFractions returns a copy of the built-in fraction table, in order.
func DefaultFractions() []Fraction {
	return append([]Fraction(nil), defaultFractions...)
}
