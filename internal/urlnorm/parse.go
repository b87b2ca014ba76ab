// Package urlnorm provides lenient URL tokenization, Unicode-safe netloc
// normalization, ordered query-string conversion, and domain helpers.
//
// The parser is deliberately forgiving: malformed input produces a
// best-effort Parts rather than an error. Strictness lives in the callers
// (URL Class matchers), not here.
package urlnorm

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Parts is the structured form of a URL: scheme://netloc/path?query#fragment.
type Parts struct {
	Scheme   string
	Netloc   string
	Path     string
	Query    string
	Fragment string
}

// netlocForbidden are characters that must never appear in a netloc. A
// malformed host containing them would desync the split, so they are
// replaced with '_' during parsing.
const netlocForbidden = "?#"

// Parse tokenizes a raw URL string into Parts.
//
// Surrounding whitespace is stripped. file: URLs pass through with no
// normalization. For everything else the netloc is NFKC-normalized (lookalike
// and combining characters collapse to canonical forms) and any '?' or '#'
// that leaked into it is replaced with '_'. Path and query are never
// normalized: they may carry percent-encoded binary-ish segments that NFKC
// would corrupt.
//
// Parse does not fail. Nonsense input yields nonsense (but stable) Parts.
func Parse(raw string) Parts {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "file:") {
		return splitParts(raw)
	}

	return splitParts(normalizeNetloc(raw))
}

// normalizeNetloc applies NFKC to the netloc portion of raw, leaving scheme,
// path and everything after untouched.
func normalizeNetloc(raw string) string {
	const schemeSep = "://"

	i := strings.Index(raw, schemeSep)
	if i < 0 {
		return raw
	}

	scheme := raw[:i]
	rest := raw[i+len(schemeSep):]

	netloc := rest
	tail := ""
	hasTail := false
	if j := strings.Index(rest, "/"); j >= 0 {
		netloc = rest[:j]
		tail = rest[j+1:]
		hasTail = true
	}

	netloc = norm.NFKC.String(netloc)
	netloc = strings.Map(func(r rune) rune {
		if strings.ContainsRune(netlocForbidden, r) {
			return '_'
		}
		return r
	}, netloc)

	if !hasTail {
		return scheme + schemeSep + netloc
	}
	return scheme + schemeSep + netloc + "/" + tail
}

// splitParts performs the raw 5-way split. It is pure string surgery, with
// no decoding, so round trips are byte-exact.
func splitParts(raw string) Parts {
	var p Parts

	rest := raw
	if i := strings.Index(rest, "#"); i >= 0 {
		p.Fragment = rest[i+1:]
		rest = rest[:i]
	}

	if i := strings.Index(rest, "://"); i >= 0 {
		p.Scheme = rest[:i]
		rest = rest[i+len("://"):]
		if j := strings.Index(rest, "/"); j >= 0 {
			p.Netloc = rest[:j]
			rest = rest[j:]
		} else if j := strings.Index(rest, "?"); j >= 0 {
			// No path but a query: "https://host?a=b".
			p.Netloc = rest[:j]
			rest = rest[j:]
		} else {
			p.Netloc = rest
			rest = ""
		}
	}

	if i := strings.Index(rest, "?"); i >= 0 {
		p.Query = rest[i+1:]
		rest = rest[:i]
	}

	p.Path = rest
	return p
}

// String reassembles the Parts into a URL string. Empty query and fragment
// are omitted entirely (no dangling '?' or '#').
func (p Parts) String() string {
	url := p.Path
	if p.Netloc != "" || strings.HasPrefix(url, "/") {
		url = "//" + p.Netloc + url
	}
	if p.Scheme != "" {
		url = p.Scheme + ":" + url
	}
	if p.Query != "" {
		url += "?" + p.Query
	}
	if p.Fragment != "" {
		url += "#" + p.Fragment
	}
	return url
}

// PathComponents splits the path into its slash-separated components with
// leading slashes stripped. "/post/show/123" yields ["post", "show", "123"].
// An empty path yields [""], matching the positional-matcher convention that
// a bare root path has one empty component.
func PathComponents(path string) []string {
	for strings.HasPrefix(path, "/") {
		path = path[1:]
	}
	return strings.Split(path, "/")
}
