package urlclass

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sieve-urls/sieve/internal/urlnorm"
)

// Normalise converts a matching URL to its canonical text.
//
// The scheme is forced to PreferredScheme and the fragment dropped unless
// KeepFragment. When ClippingIsAppropriate, undeclared baggage goes too: the
// netloc collapses to the class netloc (unless KeepMatchedSubdomains), the
// path is cut to the declared components with defaults filling gaps, and the
// query keeps only declared parameters plus defaults. Otherwise everything
// given is kept and only missing defaults are fleshed in.
//
// Normalise is idempotent: applying it to its own output is a no-op.
func (u *URLClass) Normalise(url string) (string, error) {
	p := urlnorm.Parse(url)

	out := urlnorm.Parts{Scheme: u.PreferredScheme}

	if u.KeepFragment {
		out.Fragment = p.Fragment
	}

	if u.ClippingIsAppropriate() {
		out.Netloc = u.clipNetloc(p.Netloc)
		path, err := u.clipAndFleshPath(p.Path)
		if err != nil {
			return "", err
		}
		query, err := u.clipAndFleshQuery(p.Query)
		if err != nil {
			return "", err
		}
		out.Path = path
		out.Query = query
	} else {
		out.Netloc = p.Netloc
		out.Path = u.fleshPath(p.Path)
		out.Query = u.fleshQuery(p.Query)
	}

	return out.String(), nil
}

func (u *URLClass) clipNetloc(netloc string) string {
	if u.KeepMatchedSubdomains {
		return netloc
	}
	return u.Netloc
}

// clipAndFleshPath keeps exactly one component per declared rule: the URL's
// value when present, the rule default otherwise. A defaultless rule with no
// component to fill it is an error, since the clipped URL would be missing a
// piece the class requires.
func (u *URLClass) clipAndFleshPath(path string) (string, error) {
	given := urlnorm.PathComponents(path)

	var components []string
	for i, rule := range u.PathComponents {
		switch {
		case i < len(given):
			components = append(components, given[i])
		case rule.Default != nil:
			components = append(components, *rule.Default)
		default:
			return "", fmt.Errorf("cannot normalise: path %q is missing required component %d (%s)", path, i+1, rule.Match)
		}
	}
	return "/" + strings.Join(components, "/"), nil
}

// fleshPath keeps every given component and appends defaults for declared
// rules beyond the URL's length.
func (u *URLClass) fleshPath(path string) string {
	components := urlnorm.PathComponents(path)
	if len(components) == 1 && components[0] == "" {
		components = nil
	}

	for i := len(components); i < len(u.PathComponents); i++ {
		rule := u.PathComponents[i]
		if rule.Default == nil {
			break
		}
		components = append(components, *rule.Default)
	}
	return "/" + strings.Join(components, "/")
}

// clipAndFleshQuery keeps declared parameters only, filling in defaults for
// the missing ones. A required parameter absent from the URL is an error.
// Valueless parameters survive when the class allows them.
func (u *URLClass) clipAndFleshQuery(query string) (string, error) {
	given := urlnorm.ParseQuery(query)

	out := urlnorm.Query{Dict: map[string]string{}}
	for _, key := range sortedParameterKeys(u.Parameters) {
		rule := u.Parameters[key]
		value, ok := given.Dict[key]
		switch {
		case ok:
			out.Dict[key] = value
		case rule.Default != nil:
			out.Dict[key] = *rule.Default
		default:
			return "", fmt.Errorf("cannot normalise: query is missing required parameter %q", key)
		}
	}

	if u.AllowSingleValueParams {
		out.SingleValueParams = given.SingleValueParams
	}

	return u.encodeQuery(out, given.ParamOrder), nil
}

// fleshQuery keeps everything given, declared or not, and adds missing
// defaults.
func (u *URLClass) fleshQuery(query string) string {
	given := urlnorm.ParseQuery(query)

	out := urlnorm.Query{Dict: map[string]string{}}
	for key, value := range given.Dict {
		out.Dict[key] = value
	}
	for _, key := range sortedParameterKeys(u.Parameters) {
		rule := u.Parameters[key]
		if _, ok := out.Dict[key]; !ok && rule.Default != nil {
			out.Dict[key] = *rule.Default
		}
	}

	if u.AllowSingleValueParams {
		out.SingleValueParams = given.SingleValueParams
	}

	return u.encodeQuery(out, given.ParamOrder)
}

// encodeQuery picks the output ordering: alphabetical by default, the URL's
// original interleaved order when the class opts out of alphabetizing.
// Parameters fleshed in from defaults have no original slot and go on the
// end, sorted.
func (u *URLClass) encodeQuery(q urlnorm.Query, givenOrder []urlnorm.OrderToken) string {
	if u.AlphabetiseGetParameters || givenOrder == nil {
		return q.EncodeCanonical()
	}

	order := make([]urlnorm.OrderToken, 0, len(q.Dict)+len(q.SingleValueParams))
	seen := map[string]bool{}
	for _, tok := range givenOrder {
		if tok.SingleValue {
			if u.AllowSingleValueParams {
				order = append(order, tok)
			}
			continue
		}
		if _, kept := q.Dict[tok.Key]; kept {
			order = append(order, tok)
			seen[tok.Key] = true
		}
	}

	var fleshed []string
	for key := range q.Dict {
		if !seen[key] {
			fleshed = append(fleshed, key)
		}
	}
	sort.Strings(fleshed)
	for _, key := range fleshed {
		order = append(order, urlnorm.OrderToken{Key: key})
	}

	q.ParamOrder = order
	return q.Encode()
}

// APIURL rewrites a URL through the API lookup converter. Callers pass the
// normalized form so the converter sees stable input.
func (u *URLClass) APIURL(url string) (string, error) {
	converted, err := u.APILookupConverter.Convert(url)
	if err != nil {
		return "", fmt.Errorf("api lookup conversion for %q: %w", url, err)
	}
	return converted, nil
}

// ReferralURL decides the Referer for fetching url. provided is what the
// caller already has, "" for none. A "" result means send no referral. When
// the converter fails, the provided value is the fallback.
func (u *URLClass) ReferralURL(url, provided string) string {
	switch u.ReferralPolicy {
	case ReferralNever:
		return ""
	case ReferralConverterIfNoneProvided:
		if provided != "" {
			return provided
		}
		if converted, err := u.ReferralConverter.Convert(url); err == nil {
			return converted
		}
		return provided
	case ReferralOnlyConverter:
		if converted, err := u.ReferralConverter.Convert(url); err == nil {
			return converted
		}
		return provided
	default:
		return provided
	}
}

// SortingComplexityKey orders classes so the most specific rule wins when
// several match one URL. Higher is more specific. The first and third
// elements are both the required-parameter count; the duplication is
// long-standing and baked into existing rule orderings, so it stays.
func (u *URLClass) SortingComplexityKey() [5]int {
	numRequiredParams := 0
	for _, rule := range u.Parameters {
		if rule.Default == nil {
			numRequiredParams++
		}
	}

	example := u.ExampleURL
	if normalized, err := u.Normalise(example); err == nil {
		example = normalized
	}

	return [5]int{
		numRequiredParams,
		len(u.PathComponents),
		numRequiredParams,
		len(u.Parameters),
		len(example),
	}
}

// SortByComplexity orders classes most specific first, with name as the
// final tiebreaker so equal-complexity rules sort deterministically.
func SortByComplexity(classes []*URLClass) {
	sort.SliceStable(classes, func(i, j int) bool {
		a, b := classes[i].SortingComplexityKey(), classes[j].SortingComplexityKey()
		for k := range a {
			if a[k] != b[k] {
				return a[k] > b[k]
			}
		}
		return classes[i].Name < classes[j].Name
	})
}
