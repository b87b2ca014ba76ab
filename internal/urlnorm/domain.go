package urlnorm

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ipLike matches IPv4 addresses, IPv6 addresses, and host:port forms of
// either. Anything it matches is treated as an opaque host with no domain
// hierarchy.
var ipLike = regexp.MustCompile(`^[\d\.:]+$`)

// IsOpaqueHost reports whether domain has no dot-separated hierarchy worth
// walking: IP addresses and single-label hosts like "localhost".
func IsOpaqueHost(domain string) bool {
	return !strings.Contains(domain, ".") || ipLike.MatchString(domain)
}

// RemoveWWW strips a leading www-style label ("www.", "www2.", and friends)
// when at least two labels would remain.
func RemoveWWW(domain string) string {
	if strings.Count(domain, ".") > 1 && strings.HasPrefix(domain, "www") {
		if next, err := NextLevelDomain(domain); err == nil {
			return next
		}
	}
	return domain
}

// NextLevelDomain drops the leftmost label: "a.b.example.com" becomes
// "b.example.com". It fails when there is no label left to drop.
func NextLevelDomain(domain string) (string, error) {
	i := strings.Index(domain, ".")
	if i < 0 {
		return "", fmt.Errorf("domain %q has no higher level", domain)
	}
	return domain[i+1:], nil
}

// EqualsForgivingWWW reports whether test equals wwwable either exactly or
// with one extra leading www-style label (www., www2., wwwfoo.).
func EqualsForgivingWWW(test, wwwable string) bool {
	if test == wwwable {
		return true
	}
	i := strings.Index(test, ".")
	return i > 0 && strings.HasPrefix(test, "www") && test[i+1:] == wwwable
}

// SecondLevelDomain reduces a host to its registrable base using the public
// suffix list, so "sub.example.co.uk" maps to "example.co.uk". Opaque hosts
// (IPs, localhost) map to themselves. Hosts the suffix list cannot place
// fall back to their last two labels. The empty string is an error.
func SecondLevelDomain(domain string) (string, error) {
	if domain == "" {
		return "", fmt.Errorf("cannot get second-level domain of an empty host")
	}
	if IsOpaqueHost(domain) {
		return domain, nil
	}
	if base, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
		return base, nil
	}
	// Unknown suffix, or the host is itself a public suffix. Take the last
	// two labels so lookups stay stable.
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return domain, nil
	}
	return strings.Join(labels[len(labels)-2:], "."), nil
}

// AllApplicableDomains enumerates the domain and every ancestor down to the
// registrable base, most specific first. Opaque hosts yield themselves
// alone. With discardWWW a leading www-style label is stripped before the
// walk, so "www.a.example.com" and "a.example.com" share one chain.
func AllApplicableDomains(domain string, discardWWW bool) []string {
	if IsOpaqueHost(domain) {
		return []string{domain}
	}

	if discardWWW {
		domain = RemoveWWW(domain)
	}

	base, baseErr := publicsuffix.EffectiveTLDPlusOne(domain)

	var domains []string
	for strings.Contains(domain, ".") {
		domains = append(domains, domain)
		if baseErr == nil && domain == base {
			break
		}
		next, err := NextLevelDomain(domain)
		if err != nil {
			break
		}
		domain = next
	}
	return domains
}

// URLDomain extracts the netloc of a URL. Schemeless input is an error:
// without the scheme the netloc cannot be told apart from a path.
func URLDomain(raw string) (string, error) {
	p := Parse(raw)
	if p.Scheme == "" || p.Netloc == "" {
		return "", fmt.Errorf("could not extract a domain from %q, did you forget the http:// or https://?", raw)
	}
	return p.Netloc, nil
}

// URLSecondLevelDomain extracts the netloc of a URL and reduces it to its
// registrable base.
func URLSecondLevelDomain(raw string) (string, error) {
	domain, err := URLDomain(raw)
	if err != nil {
		return "", err
	}
	return SecondLevelDomain(domain)
}
