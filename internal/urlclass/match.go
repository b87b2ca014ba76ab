package urlclass

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sieve-urls/sieve/internal/urlnorm"
)

// sortedParameterKeys gives rule iteration a stable order so error messages
// and normalization are deterministic.
func sortedParameterKeys(params map[string]Parameter) []string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Test reports whether url belongs to this class. nil means it matches;
// otherwise the error names the first rule the URL broke, netloc first,
// then positional path components, then query parameters.
func (u *URLClass) Test(url string) error {
	p := urlnorm.Parse(url)

	if err := u.testNetloc(p.Netloc); err != nil {
		return err
	}
	if err := u.testPath(p.Path); err != nil {
		return err
	}
	return u.testQuery(p.Query)
}

// Matches reports whether url belongs to this class.
func (u *URLClass) Matches(url string) bool {
	return u.Test(url) == nil
}

func (u *URLClass) testNetloc(netloc string) error {
	if u.MatchSubdomains {
		if netloc != u.Netloc && !strings.HasSuffix(netloc, "."+u.Netloc) {
			return fmt.Errorf("%q is not %q or a subdomain of it", netloc, u.Netloc)
		}
		return nil
	}

	if !urlnorm.EqualsForgivingWWW(netloc, u.Netloc) {
		return fmt.Errorf("%q is not %q", netloc, u.Netloc)
	}
	return nil
}

func (u *URLClass) testPath(path string) error {
	components := urlnorm.PathComponents(path)

	for i, rule := range u.PathComponents {
		if i < len(components) {
			if err := rule.Match.Test(components[i]); err != nil {
				return fmt.Errorf("path component %d: %w", i+1, err)
			}
			continue
		}
		if rule.Default == nil {
			return fmt.Errorf("path %q is missing required component %d (%s)", path, i+1, rule.Match)
		}
		// A default exists, so every later rule must have one too; the
		// remaining checks would all pass the same way.
		break
	}
	return nil
}

func (u *URLClass) testQuery(query string) error {
	q := urlnorm.ParseQuery(query)

	for _, key := range sortedParameterKeys(u.Parameters) {
		rule := u.Parameters[key]
		value, ok := q.Dict[key]
		if !ok {
			if rule.Default == nil {
				return fmt.Errorf("query is missing required parameter %q", key)
			}
			continue
		}
		if err := rule.Match.Test(value); err != nil {
			return fmt.Errorf("parameter %q: %w", key, err)
		}
	}

	// Valueless tokens are undeclared baggage unless the class asks for
	// them, in which case at least one must be present and pass.
	if u.AllowSingleValueParams {
		if len(q.SingleValueParams) == 0 {
			return fmt.Errorf("query is missing its valueless parameter")
		}
		for _, param := range q.SingleValueParams {
			if err := u.SingleValueMatch.Test(param); err != nil {
				return fmt.Errorf("valueless parameter: %w", err)
			}
		}
	}
	return nil
}
