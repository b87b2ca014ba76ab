package registry

import (
	"sort"

	"github.com/sieve-urls/sieve/internal/urlclass"
	"github.com/sieve-urls/sieve/internal/urlnorm"
)

// GetURLClass finds the most specific class matching url. Classes are
// bucketed by registrable domain and tried in descending complexity, so a
// narrow rule always beats a broad one.
func (r *Registry) GetURLClass(url string) (*urlclass.URLClass, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getURLClassLocked(url)
}

func (r *Registry) getURLClassLocked(url string) (*urlclass.URLClass, bool) {
	sld, err := urlnorm.URLSecondLevelDomain(url)
	if err != nil {
		return nil, false
	}

	for _, u := range r.sldToClasses[sld] {
		if u.Matches(url) {
			return u, true
		}
	}
	return nil, false
}

// NormaliseURL converts url to canonical text: class normalization when a
// class matches, otherwise a generic cleanup (fragment dropped, query
// alphabetized). Results are memoized until the rule set changes.
func (r *Registry) NormaliseURL(url string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.normaliseURLLocked(url)
}

func (r *Registry) normaliseURLLocked(url string) (string, error) {
	if r.hasCache {
		if canonical, ok := r.normCache.Get(url); ok {
			return canonical, nil
		}
	}

	canonical, err := r.computeNormalisedLocked(url)
	if err != nil {
		return "", err
	}

	if r.hasCache {
		r.normCache.Set(url, canonical)
	}
	return canonical, nil
}

func (r *Registry) computeNormalisedLocked(url string) (string, error) {
	if u, ok := r.getURLClassLocked(url); ok {
		return u.Normalise(url)
	}

	p := urlnorm.Parse(url)
	p.Query = urlnorm.ParseQuery(p.Query).EncodeCanonical()
	p.Fragment = ""
	return p.String(), nil
}

// GetSearchURLs returns every URL text this url might be recorded under:
// the raw and normalized forms, plus scheme, www, and trailing-slash
// variants of each. Callers use it for "do we already know this URL"
// lookups. The result is sorted and duplicate free.
func (r *Registry) GetSearchURLs(url string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := map[string]bool{url: true}
	if canonical, err := r.normaliseURLLocked(url); err == nil {
		seen[canonical] = true
	}

	expand := func(variant func(string) string) {
		for _, u := range keys(seen) {
			if v := variant(u); v != "" {
				seen[v] = true
			}
		}
	}
	expand(urlnorm.SchemeVariant)
	expand(urlnorm.WWWVariant)
	expand(urlnorm.TrailingSlashVariant)

	urls := keys(seen)
	sort.Strings(urls)
	return urls
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// URLHash fingerprints the canonical form of url.
func (r *Registry) URLHash(url string) (urlnorm.Hash, error) {
	canonical, err := r.NormaliseURL(url)
	if err != nil {
		return urlnorm.Hash{}, err
	}
	return urlnorm.HashURL(canonical), nil
}

// ShouldAssociateURLWithFiles reports whether url is worth recording as a
// known source. Unmatched URLs default to yes: better to keep a source we
// do not understand than to lose one.
func (r *Registry) ShouldAssociateURLWithFiles(url string) bool {
	u, ok := r.GetURLClass(url)
	if !ok {
		return true
	}
	return u.ShouldAssociateWithFiles()
}

// URLCanReferToMultipleFiles reports whether url may cover several files.
func (r *Registry) URLCanReferToMultipleFiles(url string) bool {
	u, ok := r.GetURLClass(url)
	if !ok {
		return false
	}
	return u.CanReferToMultipleFiles()
}

// URLDefinitelyRefersToOneFile reports whether url covers exactly one file.
func (r *Registry) URLDefinitelyRefersToOneFile(url string) bool {
	u, ok := r.GetURLClass(url)
	if !ok {
		return false
	}
	return u.RefersToOneFile()
}

// GetURLClassHeaders returns the per-class header overrides for url, nil
// when no class matches or the class has none.
func (r *Registry) GetURLClassHeaders(url string) map[string]string {
	u, ok := r.GetURLClass(url)
	if !ok || len(u.HeaderOverrides) == 0 {
		return nil
	}
	out := make(map[string]string, len(u.HeaderOverrides))
	for k, v := range u.HeaderOverrides {
		out[k] = v
	}
	return out
}

// GetReferralURL applies the matched class's referral policy, passing the
// caller's value through when no class matches.
func (r *Registry) GetReferralURL(url, provided string) string {
	u, ok := r.GetURLClass(url)
	if !ok {
		return provided
	}
	return u.ReferralURL(url, provided)
}

// GetNextGalleryPage advances url to the next results page via its class.
func (r *Registry) GetNextGalleryPage(url string) (string, error) {
	u, ok := r.GetURLClass(url)
	if !ok {
		return "", ErrNoURLClass
	}
	return u.NextGalleryPage(url)
}
