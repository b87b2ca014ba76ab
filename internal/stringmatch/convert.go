package stringmatch

import (
	"fmt"
	"regexp"

	"github.com/sieve-urls/sieve/internal/urlnorm"
)

// ConversionType is one step kind in a StringConverter pipeline.
type ConversionType string

const (
	ConvPrepend             ConversionType = "prepend"
	ConvAppend              ConversionType = "append"
	ConvRemoveFromBeginning ConversionType = "remove_from_beginning"
	ConvRemoveFromEnd       ConversionType = "remove_from_end"
	ConvClipFromBeginning   ConversionType = "clip_from_beginning"
	ConvClipFromEnd         ConversionType = "clip_from_end"
	ConvRegexSub            ConversionType = "regex_sub"
	ConvEncodeURL           ConversionType = "encode_url"
	ConvDecodeURL           ConversionType = "decode_url"
)

// Conversion is a single transformation step. Text carries the literal for
// prepend/append and the pattern for regex_sub; Replacement is the regex_sub
// substitution; Chars is the count for the remove and clip steps.
type Conversion struct {
	Type        ConversionType `json:"type"`
	Text        string         `json:"text,omitempty"`
	Replacement string         `json:"replacement,omitempty"`
	Chars       int            `json:"chars,omitempty"`
}

// StringConverter applies an ordered pipeline of conversions. The zero value
// is the identity converter.
type StringConverter struct {
	Conversions []Conversion `json:"conversions,omitempty"`
	Example     string       `json:"example,omitempty"`
}

// MakesChanges reports whether the pipeline has any steps. An identity
// converter on an API lookup means the class has no real API redirect.
func (c StringConverter) MakesChanges() bool {
	return len(c.Conversions) > 0
}

// Convert runs s through the pipeline. The clip steps keep the first or last
// Chars runes; the remove steps drop them. A regex_sub with a pattern that
// does not compile is an error; everything else is total.
func (c StringConverter) Convert(s string) (string, error) {
	for i, conv := range c.Conversions {
		var err error
		s, err = conv.apply(s)
		if err != nil {
			return "", fmt.Errorf("conversion step %d (%s): %w", i+1, conv.Type, err)
		}
	}
	return s, nil
}

func (conv Conversion) apply(s string) (string, error) {
	switch conv.Type {
	case ConvPrepend:
		return conv.Text + s, nil
	case ConvAppend:
		return s + conv.Text, nil
	case ConvRemoveFromBeginning:
		runes := []rune(s)
		if conv.Chars >= len(runes) {
			return "", nil
		}
		return string(runes[conv.Chars:]), nil
	case ConvRemoveFromEnd:
		runes := []rune(s)
		if conv.Chars >= len(runes) {
			return "", nil
		}
		return string(runes[:len(runes)-conv.Chars]), nil
	case ConvClipFromBeginning:
		runes := []rune(s)
		if conv.Chars >= len(runes) {
			return s, nil
		}
		return string(runes[:conv.Chars]), nil
	case ConvClipFromEnd:
		runes := []rune(s)
		if conv.Chars >= len(runes) {
			return s, nil
		}
		return string(runes[len(runes)-conv.Chars:]), nil
	case ConvRegexSub:
		rx, err := regexp.Compile(conv.Text)
		if err != nil {
			return "", fmt.Errorf("compiling %q: %w", conv.Text, err)
		}
		return rx.ReplaceAllString(s, conv.Replacement), nil
	case ConvEncodeURL:
		return urlnorm.PercentEncode(s, ""), nil
	case ConvDecodeURL:
		decoded, err := urlnorm.PercentDecode(s)
		if err != nil {
			// Malformed escapes pass through unchanged rather than
			// poisoning the pipeline.
			return s, nil
		}
		return decoded, nil
	}
	return "", fmt.Errorf("unknown conversion type %q", conv.Type)
}
