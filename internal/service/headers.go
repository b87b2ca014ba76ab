package service

import (
	"fmt"
	"strings"

	"github.com/sieve-urls/sieve/internal/netctx"
	"github.com/sieve-urls/sieve/internal/registry"
)

func parseContext(scope, domain string) (netctx.Context, *ServiceError) {
	switch netctx.Scope(scope) {
	case netctx.ScopeGlobal:
		if domain != "" {
			return netctx.Context{}, invalidArg("domain must be empty for the global scope")
		}
		return netctx.Global(), nil
	case netctx.ScopeDomain:
		domain = strings.TrimSpace(domain)
		if domain == "" {
			return netctx.Context{}, invalidArg("domain is required for the domain scope")
		}
		return netctx.Domain(domain), nil
	default:
		return netctx.Context{}, invalidArg(fmt.Sprintf("unknown scope %q", scope))
	}
}

func parseApproval(approval string) (registry.Approval, *ServiceError) {
	if approval == "" {
		return registry.ApprovalApproved, nil
	}
	a := registry.Approval(approval)
	switch a {
	case registry.ApprovalUnknown, registry.ApprovalApproved, registry.ApprovalDenied:
		return a, nil
	default:
		return "", invalidArg(fmt.Sprintf("unknown approval state %q", approval))
	}
}

// HeadersForURL flattens the approved headers that a fetch of url should
// carry, including the matched class's per-class overrides.
func (s *Service) HeadersForURL(url string) (map[string]string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, invalidArg("url is required")
	}
	return s.Registry.GetHeadersForURL(url), nil
}

// SetCustomHeader stores a header under a scope. Headers set through the
// API are approved unless the request says otherwise; imported packs go
// through the unknown state instead.
func (s *Service) SetCustomHeader(scope, domain, name, value, approval, reason string) error {
	ctx, serr := parseContext(scope, domain)
	if serr != nil {
		return serr
	}
	a, serr := parseApproval(approval)
	if serr != nil {
		return serr
	}
	if err := s.Registry.SetCustomHeader(ctx, name, value, a, reason); err != nil {
		return invalidArg(err.Error())
	}
	return nil
}

// DeleteCustomHeader removes a header from a scope.
func (s *Service) DeleteCustomHeader(scope, domain, name string) error {
	ctx, serr := parseContext(scope, domain)
	if serr != nil {
		return serr
	}
	s.Registry.DeleteCustomHeader(ctx, name)
	return nil
}

// PendingHeaders lists every header still awaiting an approval decision.
func (s *Service) PendingHeaders() []registry.PendingHeader {
	pending := s.Registry.GetAllUnknownHeaders()
	if pending == nil {
		pending = []registry.PendingHeader{}
	}
	return pending
}

// DecideHeader records an approve or deny decision on a held header.
func (s *Service) DecideHeader(scope, domain, name string, approve bool) error {
	ctx, serr := parseContext(scope, domain)
	if serr != nil {
		return serr
	}
	approval := registry.ApprovalDenied
	if approve {
		approval = registry.ApprovalApproved
	}
	if err := s.Registry.SetHeaderApproval(ctx, name, approval); err != nil {
		return notFound(err.Error())
	}
	return nil
}

// SetGlobalUserAgent installs the User-Agent sent with every request.
func (s *Service) SetGlobalUserAgent(value string) error {
	if strings.TrimSpace(value) == "" {
		return invalidArg("user agent is required")
	}
	if err := s.Registry.SetGlobalUserAgent(value); err != nil {
		return invalidArg(err.Error())
	}
	return nil
}
