package service

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/sieve-urls/sieve/internal/registry"
	"github.com/sieve-urls/sieve/internal/urlclass"
)

// URLInfoResponse is everything the engine knows about one URL.
type URLInfoResponse struct {
	RequestURL    string `json:"request_url"`
	NormalisedURL string `json:"normalised_url"`
	Hash          string `json:"hash"`

	Matched   bool             `json:"matched"`
	ClassKey  *uuid.UUID       `json:"class_key,omitempty"`
	ClassName string           `json:"class_name,omitempty"`
	URLType   urlclass.URLType `json:"url_type"`

	CanParse          bool   `json:"can_parse"`
	CannotParseReason string `json:"cannot_parse_reason,omitempty"`

	ShouldAssociateWithFiles bool `json:"should_associate_with_files"`
	CanReferToMultipleFiles  bool `json:"can_refer_to_multiple_files"`
	RefersToOneFile          bool `json:"refers_to_one_file"`

	SearchURLs []string          `json:"search_urls"`
	Headers    map[string]string `json:"headers"`
}

// URLInfo classifies, normalizes, and fingerprints a URL in one shot.
func (s *Service) URLInfo(url string) (*URLInfoResponse, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, invalidArg("url is required")
	}

	canonical, err := s.Registry.NormaliseURL(url)
	if err != nil {
		return nil, invalidArg(err.Error())
	}
	hash, err := s.Registry.URLHash(url)
	if err != nil {
		return nil, invalidArg(err.Error())
	}

	resp := &URLInfoResponse{
		RequestURL:               url,
		NormalisedURL:            canonical,
		Hash:                     hash.Hex(),
		URLType:                  urlclass.TypeUnknown,
		ShouldAssociateWithFiles: s.Registry.ShouldAssociateURLWithFiles(url),
		CanReferToMultipleFiles:  s.Registry.URLCanReferToMultipleFiles(url),
		RefersToOneFile:          s.Registry.URLDefinitelyRefersToOneFile(url),
		SearchURLs:               s.Registry.GetSearchURLs(url),
		Headers:                  s.Registry.GetHeadersForURL(url),
	}

	if u, ok := s.Registry.GetURLClass(url); ok {
		key := u.Key
		resp.Matched = true
		resp.ClassKey = &key
		resp.ClassName = u.Name
		resp.URLType = u.Type
	}

	capability := s.Registry.GetURLParseCapability(url)
	resp.CanParse = capability.CanParse
	resp.CannotParseReason = capability.CannotParseReason

	return resp, nil
}

// FetchTargetResponse names what to download for a URL and which parser
// understands the result.
type FetchTargetResponse struct {
	RequestURL string    `json:"request_url"`
	URLToFetch string    `json:"url_to_fetch"`
	ParserKey  uuid.UUID `json:"parser_key"`
	ParserName string    `json:"parser_name"`
}

// FetchTarget resolves the fetch URL and parser, following API redirects.
func (s *Service) FetchTarget(url string) (*FetchTargetResponse, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, invalidArg("url is required")
	}

	urlToFetch, parser, err := s.Registry.GetURLToFetchAndParser(url)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrNoURLClass):
			return nil, notFound(err.Error())
		case errors.Is(err, registry.ErrNoParser),
			errors.Is(err, registry.ErrUnknownAPIURL),
			errors.Is(err, registry.ErrAPILoop):
			return nil, conflict(err.Error())
		default:
			return nil, invalidArg(err.Error())
		}
	}

	return &FetchTargetResponse{
		RequestURL: url,
		URLToFetch: urlToFetch,
		ParserKey:  parser.Key,
		ParserName: parser.Name,
	}, nil
}

// NextGalleryPageResponse is one pagination step.
type NextGalleryPageResponse struct {
	RequestURL string `json:"request_url"`
	NextURL    string `json:"next_url"`
}

// NextGalleryPage advances a gallery URL to its next results page.
func (s *Service) NextGalleryPage(url string) (*NextGalleryPageResponse, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, invalidArg("url is required")
	}

	next, err := s.Registry.GetNextGalleryPage(url)
	if err != nil {
		if errors.Is(err, registry.ErrNoURLClass) {
			return nil, notFound(err.Error())
		}
		return nil, conflict(err.Error())
	}
	return &NextGalleryPageResponse{RequestURL: url, NextURL: next}, nil
}

// ReferralResponse is the Referer value a fetch of the URL should carry.
type ReferralResponse struct {
	RequestURL  string `json:"request_url"`
	ReferralURL string `json:"referral_url"`
}

// Referral applies the matched class's referral policy.
func (s *Service) Referral(url, provided string) (*ReferralResponse, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, invalidArg("url is required")
	}
	return &ReferralResponse{
		RequestURL:  url,
		ReferralURL: s.Registry.GetReferralURL(url, provided),
	}, nil
}

// GalleryURLsResponse is the fan-out of one search query.
type GalleryURLsResponse struct {
	Generator string   `json:"generator"`
	Query     string   `json:"query"`
	URLs      []string `json:"urls"`
}

// GenerateGalleryURLs runs a search query through a generator, nested or
// plain, addressed by key or name.
func (s *Service) GenerateGalleryURLs(keyOrName, query string) (*GalleryURLsResponse, error) {
	keyOrName = strings.TrimSpace(keyOrName)
	if keyOrName == "" {
		if g, ok := s.Registry.GetDefaultGUG(); ok {
			keyOrName = g.Key.String()
		} else {
			return nil, invalidArg("generator is required and no default is set")
		}
	}

	urls, err := s.Registry.GenerateGalleryURLs(keyOrName, query)
	if err != nil {
		if _, ok := s.Registry.GetGUG(keyOrName); !ok {
			if _, nested := s.Registry.GetNestedGUG(keyOrName); !nested {
				return nil, notFound(err.Error())
			}
		}
		return nil, conflict(err.Error())
	}
	if urls == nil {
		urls = []string{}
	}
	return &GalleryURLsResponse{Generator: keyOrName, Query: query, URLs: urls}, nil
}
