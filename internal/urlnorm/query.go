package urlnorm

import (
	"fmt"
	"sort"
	"strings"
)

// queryUnsafe are the characters whose decoded form would change the meaning
// of a query string. A percent-encoded token that decodes to any of these
// stays encoded.
const queryUnsafe = "&=/?#;+"

// OrderToken records one slot in a query string's original parameter
// ordering. Key tokens refer back into Query.Dict; single-value tokens are
// positional placeholders consumed in order from Query.SingleValueParams.
type OrderToken struct {
	Key         string
	SingleValue bool
}

// Query is the decomposed form of a query string.
//
// Dict holds key=value pairs. When the same key appears more than once the
// last occurrence wins, mirroring how most boorus and galleries treat
// duplicates. SingleValueParams holds bare tokens with no '='.
// ParamOrder preserves the original left-to-right ordering; it is nil when
// the ordering could not be trusted (duplicate keys), in which case
// re-encoding falls back to alphabetical.
type Query struct {
	Dict              map[string]string
	SingleValueParams []string
	ParamOrder        []OrderToken
}

// ParseQuery decomposes a query string.
//
// Tokens split on '&'. Empty tokens are dropped. A token with '=' splits on
// the first '=' into key and value; a token without '=' becomes a
// single-value param. All of them are percent-decoded only when the decode
// is provably reversible (see DecodeReversible).
func ParseQuery(queryText string) Query {
	q := Query{
		Dict:       map[string]string{},
		ParamOrder: []OrderToken{},
	}

	for _, token := range strings.Split(queryText, "&") {
		if token == "" {
			continue
		}

		if !strings.Contains(token, "=") {
			q.SingleValueParams = append(q.SingleValueParams, DecodeReversible(token))
			if q.ParamOrder != nil {
				q.ParamOrder = append(q.ParamOrder, OrderToken{SingleValue: true})
			}
			continue
		}

		kv := strings.SplitN(token, "=", 2)
		key := DecodeReversible(kv[0])
		value := DecodeReversible(kv[1])

		if _, dup := q.Dict[key]; dup {
			// Ordering is ambiguous once a key repeats. Drop it and let
			// re-encoding alphabetise.
			q.ParamOrder = nil
		} else if q.ParamOrder != nil {
			q.ParamOrder = append(q.ParamOrder, OrderToken{Key: key})
		}

		q.Dict[key] = value
	}

	return q
}

// Encode reassembles the query in original order when ParamOrder is known,
// otherwise alphabetically with single-value params appended sorted.
func (q Query) Encode() string {
	if q.ParamOrder == nil {
		return q.EncodeCanonical()
	}

	singles := q.SingleValueParams
	pairs := make([]string, 0, len(q.ParamOrder))
	for _, tok := range q.ParamOrder {
		if tok.SingleValue {
			if len(singles) > 0 {
				pairs = append(pairs, singles[0])
				singles = singles[1:]
			}
			continue
		}
		if value, ok := q.Dict[tok.Key]; ok {
			pairs = append(pairs, tok.Key+"="+value)
		}
	}
	return strings.Join(pairs, "&")
}

// EncodeCanonical reassembles the query alphabetically by key, with
// single-value params sorted and appended after the key=value pairs.
func (q Query) EncodeCanonical() string {
	keys := make([]string, 0, len(q.Dict))
	for key := range q.Dict {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)+len(q.SingleValueParams))
	for _, key := range keys {
		pairs = append(pairs, key+"="+q.Dict[key])
	}

	singles := append([]string(nil), q.SingleValueParams...)
	sort.Strings(singles)
	pairs = append(pairs, singles...)

	return strings.Join(pairs, "&")
}

// DecodeReversible percent-decodes s only when doing so is provably safe:
// the decoded form must contain none of the query-structural characters and
// must re-encode to the exact original bytes. Anything else, including
// malformed percent sequences, is returned untouched.
//
// The classic trap is "6%2Bgirls+skirt": decoding yields "6+girls+skirt",
// and re-encoding cannot tell the literal plus from the separator plus. That
// token stays encoded.
func DecodeReversible(s string) string {
	decoded, err := PercentDecode(s)
	if err != nil {
		return s
	}
	if strings.ContainsAny(decoded, queryUnsafe) {
		return s
	}
	if PercentEncode(decoded, "/") != s {
		return s
	}
	return decoded
}

// PercentDecode resolves %XX escapes. '+' is left alone: this is path-style
// decoding, not form decoding. Malformed escapes are an error.
func PercentDecode(s string) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("truncated percent escape at offset %d", i)
		}
		hi, ok1 := unhex(s[i+1])
		lo, ok2 := unhex(s[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("invalid percent escape %q at offset %d", s[i:i+3], i)
		}
		b.WriteByte(hi<<4 | lo)
		i += 2
	}
	return b.String(), nil
}

// PercentEncode escapes every byte outside the unreserved set
// (A-Z a-z 0-9 - . _ ~) except those listed in safe. Pass "/" to keep path
// separators, "" to encode everything.
func PercentEncode(s, safe string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || strings.IndexByte(safe, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0xf])
	}
	return b.String()
}

const upperhex = "0123456789ABCDEF"

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
