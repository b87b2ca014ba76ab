package service

import "strings"

// DomainOKResponse answers "is this domain healthy enough to hit".
type DomainOKResponse struct {
	URL string `json:"url"`
	OK  bool   `json:"ok"`
}

// DomainOK consults the domain error breaker for url's registrable domain.
func (s *Service) DomainOK(url string) (*DomainOKResponse, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, invalidArg("url is required")
	}
	return &DomainOKResponse{URL: url, OK: s.Registry.DomainOK(url)}, nil
}

// ReportDomainError records an infrastructure-level failure against url's
// registrable domain.
func (s *Service) ReportDomainError(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return invalidArg("url is required")
	}
	s.Registry.ReportNetworkInfrastructureError(url)
	return nil
}

// ScrubDomainErrors forgets the recorded failures for url's domain,
// re-opening it immediately.
func (s *Service) ScrubDomainErrors(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return invalidArg("url is required")
	}
	s.Registry.ScrubDomainErrors(url)
	return nil
}
