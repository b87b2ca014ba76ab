// Package urlclass implements the URL classification rule: a declarative
// description of one kind of URL on one site, with matching, normalization,
// API redirection, referral policy, and gallery pagination.
package urlclass

import (
	"github.com/google/uuid"

	"github.com/sieve-urls/sieve/internal/stringmatch"
)

// URLType is the semantic role of a matched URL.
type URLType string

const (
	// TypePost is a page for one logical work, possibly with several files.
	TypePost URLType = "post"
	// TypeGallery is a search or index page that lists thumbnails.
	TypeGallery URLType = "gallery"
	// TypeFile is a raw file URL.
	TypeFile URLType = "file"
	// TypeWatchable is a thread-style page that updates over time.
	TypeWatchable URLType = "watchable"
	// TypeUnknown is the fallback for URLs no class claims.
	TypeUnknown URLType = "unknown"
)

// ReferralPolicy controls what Referer a fetch of a matched URL should send.
type ReferralPolicy string

const (
	// ReferralOnlyIfProvided passes through whatever the caller has.
	ReferralOnlyIfProvided ReferralPolicy = "only_if_provided"
	// ReferralNever suppresses the referral outright.
	ReferralNever ReferralPolicy = "never"
	// ReferralConverterIfNoneProvided synthesizes one from the URL when the
	// caller has nothing.
	ReferralConverterIfNoneProvided ReferralPolicy = "converter_if_none_provided"
	// ReferralOnlyConverter always synthesizes, ignoring the caller's value.
	ReferralOnlyConverter ReferralPolicy = "only_converter"
)

// PathComponent is one positional path rule. A nil Default makes the
// component required; a non-nil Default fills in when the URL is short.
type PathComponent struct {
	Match   stringmatch.StringMatch `json:"match"`
	Default *string                 `json:"default,omitempty"`
}

// Parameter is one named query parameter rule, with the same required vs
// defaulted split as PathComponent.
type Parameter struct {
	Match   stringmatch.StringMatch `json:"match"`
	Default *string                 `json:"default,omitempty"`
}

// GalleryIndexKind says where in the URL the page index lives.
type GalleryIndexKind string

const (
	GalleryIndexPathComponent GalleryIndexKind = "path_component"
	GalleryIndexParameter     GalleryIndexKind = "parameter"
)

// GalleryIndex locates the page number inside a gallery URL and how far one
// "next page" step moves it. PathIndex positions count path components with
// leading slashes stripped.
type GalleryIndex struct {
	Kind          GalleryIndexKind `json:"kind"`
	PathIndex     int              `json:"path_index,omitempty"`
	ParameterName string           `json:"parameter_name,omitempty"`
	Delta         int              `json:"delta"`
}

// URLClass is one URL classification rule.
//
// Key is stable identity; Name is for humans and must be unique within a
// registry. Classes are value-heavy and treated as immutable once handed to
// a registry: mutate a copy and swap it in.
type URLClass struct {
	Key  uuid.UUID `json:"key"`
	Name string    `json:"name"`
	Type URLType   `json:"url_type"`

	PreferredScheme string `json:"preferred_scheme"`
	Netloc          string `json:"netloc"`

	MatchSubdomains             bool `json:"match_subdomains"`
	KeepMatchedSubdomains       bool `json:"keep_matched_subdomains"`
	AlphabetiseGetParameters    bool `json:"alphabetise_get_parameters"`
	CanProduceMultipleFiles     bool `json:"can_produce_multiple_files"`
	ShouldBeAssociatedWithFiles bool `json:"should_be_associated_with_files"`
	KeepFragment                bool `json:"keep_fragment"`

	PathComponents []PathComponent      `json:"path_components,omitempty"`
	Parameters     map[string]Parameter `json:"parameters,omitempty"`

	AllowSingleValueParams bool                    `json:"allow_single_value_params"`
	SingleValueMatch       stringmatch.StringMatch `json:"single_value_match,omitempty"`

	HeaderOverrides map[string]string `json:"header_overrides,omitempty"`

	APILookupConverter stringmatch.StringConverter `json:"api_lookup_converter,omitempty"`

	ReferralPolicy    ReferralPolicy              `json:"referral_policy"`
	ReferralConverter stringmatch.StringConverter `json:"referral_converter,omitempty"`

	GalleryIndex *GalleryIndex `json:"gallery_index,omitempty"`

	ExampleURL string `json:"example_url"`
}

// New returns a class with fresh identity and the defaults a blank rule
// starts from: https, alphabetized parameters, pass-through referral.
func New(name string, urlType URLType, netloc string) *URLClass {
	return &URLClass{
		Key:                      uuid.New(),
		Name:                     name,
		Type:                     urlType,
		PreferredScheme:          "https",
		Netloc:                   netloc,
		AlphabetiseGetParameters: true,
		ReferralPolicy:           ReferralOnlyIfProvided,
	}
}

// RegenerateKey assigns a fresh key. Used when duplicating a rule so the
// copy gets its own identity.
func (u *URLClass) RegenerateKey() {
	u.Key = uuid.New()
}

// SetKey overwrites the key. Only sensible when restoring serialized state
// or deliberately re-binding identity.
func (u *URLClass) SetKey(key uuid.UUID) {
	u.Key = key
}

// UsesAPIURL reports whether matched URLs redirect to an API endpoint for
// fetching. An identity converter means no redirect.
func (u *URLClass) UsesAPIURL() bool {
	return u.APILookupConverter.MakesChanges()
}

// IsPost reports whether this class matches post pages.
func (u *URLClass) IsPost() bool { return u.Type == TypePost }

// IsGallery reports whether this class matches gallery pages.
func (u *URLClass) IsGallery() bool { return u.Type == TypeGallery }

// IsWatchable reports whether this class matches watchable pages.
func (u *URLClass) IsWatchable() bool { return u.Type == TypeWatchable }

// IsParsable reports whether content parsing makes sense for this class.
// File URLs are fetched, not parsed.
func (u *URLClass) IsParsable() bool {
	switch u.Type {
	case TypePost, TypeGallery, TypeWatchable:
		return true
	}
	return false
}

// CanReferToMultipleFiles reports whether one matched URL may cover several
// files. Gallery pages always can; post pages only when flagged.
func (u *URLClass) CanReferToMultipleFiles() bool {
	if u.IsGallery() {
		return true
	}
	return u.IsPost() && u.CanProduceMultipleFiles
}

// RefersToOneFile reports whether a matched URL definitely covers exactly
// one file.
func (u *URLClass) RefersToOneFile() bool {
	if u.Type == TypeFile {
		return true
	}
	return u.IsPost() && !u.CanProduceMultipleFiles
}

// CanGenerateNextGalleryPage reports whether NextGalleryPage can work:
// gallery type with a configured page index.
func (u *URLClass) CanGenerateNextGalleryPage() bool {
	return u.IsGallery() && u.GalleryIndex != nil
}

// ShouldAssociateWithFiles reports whether matched URLs are worth recording
// as known sources against imported files.
func (u *URLClass) ShouldAssociateWithFiles() bool {
	return u.ShouldBeAssociatedWithFiles
}

// ClippingIsAppropriate reports whether normalization may drop undeclared
// URL baggage. Only safe for URLs used as durable identities (associated
// with files) or rewritten through an API anyway; gallery and other
// ephemeral URLs keep their extras.
func (u *URLClass) ClippingIsAppropriate() bool {
	return u.ShouldBeAssociatedWithFiles || u.UsesAPIURL()
}
