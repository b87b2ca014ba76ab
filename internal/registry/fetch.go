package registry

import (
	"errors"
	"fmt"

	"github.com/sieve-urls/sieve/internal/pageparser"
	"github.com/sieve-urls/sieve/internal/urlclass"
)

var (
	// ErrNoURLClass means no class in the registry matches the URL.
	ErrNoURLClass = errors.New("no url class matches this url")

	// ErrUnknownAPIURL means an API redirect produced a URL no class
	// matches, so the chain dead-ends.
	ErrUnknownAPIURL = errors.New("api url is not matched by any url class")

	// ErrAPILoop means following API redirects revisited a class.
	ErrAPILoop = errors.New("api url chain loops")

	// ErrNoParser means the resolved class has no linked parser.
	ErrNoParser = errors.New("no parser is linked to this url class")
)

// GetURLToFetchAndParser resolves what to actually download for url and
// which parser understands the result.
//
// Classes that redirect to an API are followed transitively: the URL is
// converted, re-normalized, re-classified, and the walk repeats until a
// class with no redirect is reached. A visited set catches configuration
// loops; the error distinguishes a self-loop, a two-class cycle, and a
// longer chain, because those are different rule-pack mistakes.
func (r *Registry) GetURLToFetchAndParser(url string) (string, *pageparser.Parser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	urlToFetch, err := r.normaliseURLLocked(url)
	if err != nil {
		return "", nil, err
	}

	u, ok := r.getURLClassLocked(urlToFetch)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrNoURLClass, url)
	}

	var visited []*urlclass.URLClass
	for u.UsesAPIURL() {
		visited = append(visited, u)

		apiURL, err := u.APIURL(urlToFetch)
		if err != nil {
			return "", nil, err
		}
		apiURL, err = r.normaliseURLLocked(apiURL)
		if err != nil {
			return "", nil, err
		}

		next, ok := r.getURLClassLocked(apiURL)
		if !ok {
			return "", nil, fmt.Errorf("%w: %q converts to %q", ErrUnknownAPIURL, u.Name, apiURL)
		}

		for _, seen := range visited {
			if seen.Key != next.Key {
				continue
			}
			switch len(visited) {
			case 1:
				return "", nil, fmt.Errorf("%w: the api url for %q refers back to itself", ErrAPILoop, next.Name)
			case 2:
				return "", nil, fmt.Errorf("%w: %q and %q point api urls at each other", ErrAPILoop, visited[0].Name, visited[1].Name)
			default:
				return "", nil, fmt.Errorf("%w: following api urls from %q revisits %q after %d hops", ErrAPILoop, visited[0].Name, next.Name, len(visited))
			}
		}

		urlToFetch = apiURL
		u = next
	}

	parserKey, ok := r.classKeyToParserKey[u.Key]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrNoParser, u.Name)
	}
	parser, ok := r.parserKeysToParsers[parserKey]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q links to a missing parser", ErrNoParser, u.Name)
	}

	return urlToFetch, parser, nil
}

// ParseCapability is the answer to "can this URL be worked with".
type ParseCapability struct {
	CanParse          bool
	CannotParseReason string
}

// GetURLParseCapability reports whether url can currently be fetched and
// parsed, with a human-readable reason when it cannot. File URLs can always
// be worked with: they are downloaded directly, no parser involved.
func (r *Registry) GetURLParseCapability(url string) ParseCapability {
	if u, ok := r.GetURLClass(url); ok && u.Type == urlclass.TypeFile {
		return ParseCapability{CanParse: true}
	}

	if _, _, err := r.GetURLToFetchAndParser(url); err != nil {
		return ParseCapability{CannotParseReason: err.Error()}
	}
	return ParseCapability{CanParse: true}
}
