// Package netctx identifies the scope a piece of network configuration
// applies to. Custom headers hang off these contexts: one global context,
// and one per domain.
package netctx

import (
	"fmt"

	"github.com/sieve-urls/sieve/internal/urlnorm"
)

// Scope is the kind of a Context.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeDomain Scope = "domain"
)

// Context is a comparable scope identifier, usable directly as a map key.
// Data is empty for the global scope and the domain name otherwise.
type Context struct {
	Scope Scope  `json:"scope"`
	Data  string `json:"data,omitempty"`
}

// Global returns the context every request falls under.
func Global() Context {
	return Context{Scope: ScopeGlobal}
}

// Domain returns the context for one domain.
func Domain(domain string) Context {
	return Context{Scope: ScopeDomain, Data: domain}
}

func (c Context) String() string {
	if c.Scope == ScopeGlobal {
		return "global"
	}
	return fmt.Sprintf("%s %q", c.Scope, c.Data)
}

// ContextsForURL returns the contexts applicable to a URL, least specific
// first: global, then the registrable base domain, then the full domain when
// it differs. URLs with no extractable domain get just the global context.
func ContextsForURL(url string) []Context {
	contexts := []Context{Global()}

	domain, err := urlnorm.URLDomain(url)
	if err != nil {
		return contexts
	}

	sld, err := urlnorm.SecondLevelDomain(domain)
	if err == nil && sld != domain {
		contexts = append(contexts, Domain(sld))
	}
	contexts = append(contexts, Domain(domain))

	return contexts
}
