package registry

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/sieve-urls/sieve/internal/pageparser"
	"github.com/sieve-urls/sieve/internal/urlclass"
)

// APIPair records that matching From redirects fetching to a URL that To
// matches. From never gets its own parser link: its content arrives via To.
type APIPair struct {
	From *urlclass.URLClass
	To   *urlclass.URLClass
}

// ConvertURLClassesIntoAPIPairs finds the (redirecting, target) class pairs
// by converting each redirecting class's example URL and asking which other
// class claims the result.
func ConvertURLClassesIntoAPIPairs(classes []*urlclass.URLClass) []APIPair {
	var pairs []APIPair
	for _, from := range classes {
		if !from.UsesAPIURL() {
			continue
		}
		apiURL, err := from.APIURL(from.ExampleURL)
		if err != nil {
			continue
		}
		for _, to := range classes {
			if to == from {
				continue
			}
			if to.Matches(apiURL) {
				pairs = append(pairs, APIPair{From: from, To: to})
				break
			}
		}
	}
	return pairs
}

// LinkURLClassesAndParsers computes parser links for classes that lack one.
//
// Parsers are taken in name order; each parser's example URLs are
// classified, and the most specific matching class gets linked to that
// parser unless it is unparsable, already linked, or the redirecting half
// of an API pair. Existing links always win over inferred ones.
func LinkURLClassesAndParsers(classes []*urlclass.URLClass, parsers []*pageparser.Parser, existing map[uuid.UUID]uuid.UUID) map[uuid.UUID]uuid.UUID {
	ordered := append([]*urlclass.URLClass(nil), classes...)
	urlclass.SortByComplexity(ordered)

	parsersByName := append([]*pageparser.Parser(nil), parsers...)
	sort.SliceStable(parsersByName, func(i, j int) bool { return parsersByName[i].Name < parsersByName[j].Name })

	links := map[uuid.UUID]uuid.UUID{}
	for classKey, parserKey := range existing {
		links[classKey] = parserKey
	}

	redirecting := map[uuid.UUID]bool{}
	for _, pair := range ConvertURLClassesIntoAPIPairs(ordered) {
		redirecting[pair.From.Key] = true
	}

	for _, parser := range parsersByName {
		for _, exampleURL := range parser.ExampleURLs {
			for _, u := range ordered {
				if !u.Matches(exampleURL) {
					continue
				}
				// Most specific match found; link it or leave it, but do
				// not let a broader class steal this example.
				if u.IsParsable() && !redirecting[u.Key] {
					if _, linked := links[u.Key]; !linked {
						links[u.Key] = parser.Key
					}
				}
				break
			}
		}
	}

	return links
}

// TryToLinkURLClassesAndParsers infers missing parser links from the
// current rule set and keeps every link that already exists.
func (r *Registry) TryToLinkURLClassesAndParsers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tryToLinkLocked()
}

func (r *Registry) tryToLinkLocked() {
	links := LinkURLClassesAndParsers(r.urlClasses, r.parsers, r.classKeyToParserKey)
	if len(links) == len(r.classKeyToParserKey) {
		same := true
		for k, v := range links {
			if r.classKeyToParserKey[k] != v {
				same = false
				break
			}
		}
		if same {
			return
		}
	}
	r.classKeyToParserKey = links
	r.setDirtyLocked()
}

// OverwriteParserLink points a class at a specific parser, replacing any
// existing link. Both sides must exist in the registry.
func (r *Registry) OverwriteParserLink(classKey, parserKey uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasClassLocked(classKey) {
		return fmt.Errorf("no url class with key %s", classKey)
	}
	if _, ok := r.parserKeysToParsers[parserKey]; !ok {
		return fmt.Errorf("no parser with key %s", parserKey)
	}

	r.classKeyToParserKey[classKey] = parserKey
	r.setDirtyLocked()
	return nil
}

// DissolveParserLink removes a class's parser link, if any.
func (r *Registry) DissolveParserLink(classKey uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.classKeyToParserKey[classKey]; !ok {
		return
	}
	delete(r.classKeyToParserKey, classKey)
	r.setDirtyLocked()
}

// SetURLClassKeysToParserKeys replaces the whole link table. Links naming
// keys the registry does not hold are dropped.
func (r *Registry) SetURLClassKeysToParserKeys(links map[uuid.UUID]uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.classKeyToParserKey = map[uuid.UUID]uuid.UUID{}
	for classKey, parserKey := range links {
		if !r.hasClassLocked(classKey) {
			continue
		}
		if _, ok := r.parserKeysToParsers[parserKey]; !ok {
			continue
		}
		r.classKeyToParserKey[classKey] = parserKey
	}
	r.setDirtyLocked()
}

// GetURLClassKeysToParserKeys copies the link table out.
func (r *Registry) GetURLClassKeysToParserKeys() map[uuid.UUID]uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[uuid.UUID]uuid.UUID, len(r.classKeyToParserKey))
	for k, v := range r.classKeyToParserKey {
		out[k] = v
	}
	return out
}

func (r *Registry) hasClassLocked(key uuid.UUID) bool {
	for _, u := range r.urlClasses {
		if u.Key == key {
			return true
		}
	}
	return false
}
