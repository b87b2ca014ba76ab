// Package gug implements gallery URL generators: templates that turn a
// human search query into the gallery URL that runs that search.
package gug

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sieve-urls/sieve/internal/urlnorm"
)

// ErrBadTemplate means the generator's template and replacement phrase do
// not line up, so no URL can be produced.
var ErrBadTemplate = errors.New("gallery url generator template is broken")

// termUnsafe are the characters that force a search term to be
// percent-encoded even when the phrase sits in the query string, where most
// characters ride along fine.
const termUnsafe = "&=/?#;"

// Generator produces gallery search URLs from query text.
//
// URLTemplate contains ReplacementPhrase exactly where the encoded search
// phrase belongs, e.g. "https://example.com/index.php?tags=%tags%&pid=0"
// with phrase "%tags%". SearchTermsSeparator joins the space-split terms of
// the query, typically "+" or " ".
type Generator struct {
	Key  uuid.UUID `json:"key"`
	Name string    `json:"name"`

	URLTemplate          string `json:"url_template"`
	ReplacementPhrase    string `json:"replacement_phrase"`
	SearchTermsSeparator string `json:"search_terms_separator"`

	InitialSearchText string `json:"initial_search_text,omitempty"`
	ExampleSearchText string `json:"example_search_text,omitempty"`
}

// New returns a generator with fresh identity.
func New(name, urlTemplate, replacementPhrase, separator string) *Generator {
	return &Generator{
		Key:                  uuid.New(),
		Name:                 name,
		URLTemplate:          urlTemplate,
		ReplacementPhrase:    replacementPhrase,
		SearchTermsSeparator: separator,
	}
}

// RegenerateKey assigns a fresh key.
func (g *Generator) RegenerateKey() {
	g.Key = uuid.New()
}

// GenerateGalleryURL builds the search URL for queryText.
//
// The query splits on spaces into terms. Terms are decoded first, so a
// user pasting an already-encoded query does not get double encoding. When the replacement phrase sits before the first '?' the
// phrase lands in the path and every term is fully percent-encoded; in the
// query string only terms carrying the separator or a structural character
// are encoded, preserving readable searches.
func (g *Generator) GenerateGalleryURL(queryText string) (string, error) {
	if g.ReplacementPhrase == "" {
		return "", fmt.Errorf("%w: %q has no replacement phrase", ErrBadTemplate, g.Name)
	}
	if !strings.Contains(g.URLTemplate, g.ReplacementPhrase) {
		return "", fmt.Errorf("%w: %q does not contain %q", ErrBadTemplate, g.URLTemplate, g.ReplacementPhrase)
	}

	inPath := true
	if i := strings.Index(g.URLTemplate, "?"); i >= 0 {
		inPath = strings.Contains(g.URLTemplate[:i], g.ReplacementPhrase)
	}

	terms := strings.Split(queryText, " ")
	encoded := make([]string, 0, len(terms))
	for _, term := range terms {
		if decoded, err := urlnorm.PercentDecode(term); err == nil {
			term = decoded
		}
		if inPath || strings.Contains(term, g.SearchTermsSeparator) || strings.ContainsAny(term, termUnsafe) {
			term = urlnorm.PercentEncode(term, "")
		}
		encoded = append(encoded, term)
	}

	searchPhrase := strings.Join(encoded, g.SearchTermsSeparator)
	return strings.Replace(g.URLTemplate, g.ReplacementPhrase, searchPhrase, 1), nil
}

// ExampleURL is the URL the example search text generates, used for linking
// generators to the URL class that claims their output.
func (g *Generator) ExampleURL() (string, error) {
	return g.GenerateGalleryURL(g.ExampleSearchText)
}

// Reference names another generator by identity and, as a fallback, name.
type Reference struct {
	Key  uuid.UUID `json:"key"`
	Name string    `json:"name"`
}

// NestedGenerator fans one query out across several generators, for
// searching many sites at once.
type NestedGenerator struct {
	Key  uuid.UUID `json:"key"`
	Name string    `json:"name"`

	References []Reference `json:"references,omitempty"`

	InitialSearchText string `json:"initial_search_text,omitempty"`
}

// NewNested returns a nested generator with fresh identity.
func NewNested(name string, refs []Reference) *NestedGenerator {
	return &NestedGenerator{Key: uuid.New(), Name: name, References: refs}
}

// RegenerateKey assigns a fresh key.
func (n *NestedGenerator) RegenerateKey() {
	n.Key = uuid.New()
}

// Resolve finds a referenced generator by key first, then by name. Both
// lookups failing means the reference is dead.
func (r Reference) Resolve(available []*Generator) (*Generator, bool) {
	for _, g := range available {
		if g.Key == r.Key {
			return g, true
		}
	}
	for _, g := range available {
		if g.Name == r.Name {
			return g, true
		}
	}
	return nil, false
}

// GenerateGalleryURLs builds one URL per live reference. Dead references
// and generators that fail on this query are skipped, so a partially broken
// nest still searches the sites it can.
func (n *NestedGenerator) GenerateGalleryURLs(queryText string, available []*Generator) []string {
	var urls []string
	for _, ref := range n.References {
		g, ok := ref.Resolve(available)
		if !ok {
			continue
		}
		url, err := g.GenerateGalleryURL(queryText)
		if err != nil {
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

// Repair re-binds every reference against the available generators,
// updating stale keys and names and dropping references nothing satisfies.
func (n *NestedGenerator) Repair(available []*Generator) {
	var kept []Reference
	for _, ref := range n.References {
		g, ok := ref.Resolve(available)
		if !ok {
			continue
		}
		kept = append(kept, Reference{Key: g.Key, Name: g.Name})
	}
	n.References = kept
}
