// Package stringmatch provides declarative string patterns and ordered
// string transformation pipelines. URL classes compose these to describe
// path components and query parameters without custom code per site.
package stringmatch

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// MatchType selects how a StringMatch tests its input.
type MatchType string

const (
	// MatchAny passes everything, subject only to length bounds.
	MatchAny MatchType = "any"
	// MatchFixed passes exactly one string.
	MatchFixed MatchType = "fixed"
	// MatchFlexible passes strings made entirely of one character class.
	MatchFlexible MatchType = "flexible"
	// MatchRegex passes strings the pattern is found in.
	MatchRegex MatchType = "regex"
)

// FlexibleKind is the character class of a MatchFlexible rule.
type FlexibleKind string

const (
	Alpha        FlexibleKind = "alpha"
	Alphanumeric FlexibleKind = "alphanumeric"
	Numeric      FlexibleKind = "numeric"
	Hex          FlexibleKind = "hex"
)

var flexiblePatterns = map[FlexibleKind]*regexp.Regexp{
	Alpha:        regexp.MustCompile(`^[a-zA-Z]+$`),
	Alphanumeric: regexp.MustCompile(`^[a-zA-Z0-9]+$`),
	Numeric:      regexp.MustCompile(`^[0-9]+$`),
	Hex:          regexp.MustCompile(`^[0-9a-fA-F]+$`),
}

// StringMatch is a declarative test over strings. The zero value matches
// nothing useful; build one with the constructors or deserialize one.
//
// Min and Max bound the length in runes; zero means unbounded. Example is a
// sample string the rule is expected to pass, carried for UI and rule-pack
// readability.
type StringMatch struct {
	Type    MatchType    `json:"type"`
	Value   string       `json:"value,omitempty"`
	Kind    FlexibleKind `json:"kind,omitempty"`
	Min     int          `json:"min,omitempty"`
	Max     int          `json:"max,omitempty"`
	Example string       `json:"example,omitempty"`
}

// Any matches every string.
func Any() StringMatch {
	return StringMatch{Type: MatchAny}
}

// Fixed matches exactly value.
func Fixed(value string) StringMatch {
	return StringMatch{Type: MatchFixed, Value: value, Example: value}
}

// Flexible matches non-empty strings drawn entirely from kind.
func Flexible(kind FlexibleKind, example string) StringMatch {
	return StringMatch{Type: MatchFlexible, Kind: kind, Example: example}
}

// Regex matches strings the pattern can be found in. The pattern is
// validated lazily, at Test time.
func Regex(pattern, example string) StringMatch {
	return StringMatch{Type: MatchRegex, Value: pattern, Example: example}
}

// MatchError reports why a string failed a rule.
type MatchError struct {
	Input string
	Rule  string
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("%q did not match %s", e.Input, e.Rule)
}

// Test returns nil when s satisfies the rule, or a *MatchError naming the
// failed constraint. Length bounds are checked before the pattern.
func (m StringMatch) Test(s string) error {
	n := utf8.RuneCountInString(s)
	if m.Min > 0 && n < m.Min {
		return &MatchError{Input: s, Rule: fmt.Sprintf("minimum length %d", m.Min)}
	}
	if m.Max > 0 && n > m.Max {
		return &MatchError{Input: s, Rule: fmt.Sprintf("maximum length %d", m.Max)}
	}

	switch m.Type {
	case MatchAny:
		return nil
	case MatchFixed:
		if s != m.Value {
			return &MatchError{Input: s, Rule: fmt.Sprintf("fixed text %q", m.Value)}
		}
		return nil
	case MatchFlexible:
		pattern, ok := flexiblePatterns[m.Kind]
		if !ok {
			return &MatchError{Input: s, Rule: fmt.Sprintf("unknown character class %q", m.Kind)}
		}
		if !pattern.MatchString(s) {
			return &MatchError{Input: s, Rule: fmt.Sprintf("%s characters", m.Kind)}
		}
		return nil
	case MatchRegex:
		rx, err := regexp.Compile(m.Value)
		if err != nil {
			return &MatchError{Input: s, Rule: fmt.Sprintf("broken regex %q", m.Value)}
		}
		if !rx.MatchString(s) {
			return &MatchError{Input: s, Rule: fmt.Sprintf("regex %q", m.Value)}
		}
		return nil
	}
	return &MatchError{Input: s, Rule: fmt.Sprintf("unknown match type %q", m.Type)}
}

// Matches reports whether s satisfies the rule.
func (m StringMatch) Matches(s string) bool {
	return m.Test(s) == nil
}

// String describes the rule for logs and error messages.
func (m StringMatch) String() string {
	switch m.Type {
	case MatchAny:
		return "any text"
	case MatchFixed:
		return fmt.Sprintf("fixed text %q", m.Value)
	case MatchFlexible:
		return fmt.Sprintf("%s characters", m.Kind)
	case MatchRegex:
		return fmt.Sprintf("regex %q", m.Value)
	}
	return "unknown rule"
}
