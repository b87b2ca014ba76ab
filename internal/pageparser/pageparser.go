// Package pageparser holds the registry's view of a page parser: identity,
// the URLs it claims to understand, and what it produces. The actual
// content-parsing machinery lives with the fetch pipeline; the registry
// only needs enough to route a URL class to the right parser.
package pageparser

import "github.com/google/uuid"

// Parser identifies one page parser and the example URLs it was written
// against. ExampleURLs drive automatic linking: a URL class whose example
// URL a parser's example matches is a candidate for that parser.
type Parser struct {
	Key  uuid.UUID `json:"key"`
	Name string    `json:"name"`

	ExampleURLs []string `json:"example_urls,omitempty"`

	// Namespaces names the kinds of content the parser emits, e.g.
	// "creator" or "title". Informational, carried for the UI and for
	// rule-pack readability.
	Namespaces []string `json:"namespaces,omitempty"`
}

// New returns a parser binding with fresh identity.
func New(name string, exampleURLs []string) *Parser {
	return &Parser{
		Key:         uuid.New(),
		Name:        name,
		ExampleURLs: exampleURLs,
	}
}

// RegenerateKey assigns a fresh key.
func (p *Parser) RegenerateKey() {
	p.Key = uuid.New()
}
