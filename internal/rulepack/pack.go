// Package rulepack reads and writes portable rule packs: YAML documents
// carrying URL classes, parsers, gallery URL generators, and the links
// between them. Packs identify rules by name, not key, so a pack made on
// one install can be imported on another.
package rulepack

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/google/uuid"

	"github.com/sieve-urls/sieve/internal/gug"
	"github.com/sieve-urls/sieve/internal/pageparser"
	"github.com/sieve-urls/sieve/internal/registry"
	"github.com/sieve-urls/sieve/internal/stringmatch"
	"github.com/sieve-urls/sieve/internal/urlclass"
)

// FormatVersion is the pack document version this build writes.
const FormatVersion = 1

type packDoc struct {
	FormatVersion int            `yaml:"format_version"`
	URLClasses    []urlClassDoc  `yaml:"url_classes,omitempty"`
	Parsers       []parserDoc    `yaml:"parsers,omitempty"`
	GUGs          []gugDoc       `yaml:"gugs,omitempty"`
	NestedGUGs    []nestedGUGDoc `yaml:"nested_gugs,omitempty"`
	Links         []linkDoc      `yaml:"links,omitempty"`
	DefaultGUG    string         `yaml:"default_gug,omitempty"`
}

type urlClassDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"url_type"`

	PreferredScheme string `yaml:"preferred_scheme,omitempty"`
	Netloc          string `yaml:"netloc"`

	MatchSubdomains             bool  `yaml:"match_subdomains,omitempty"`
	KeepMatchedSubdomains       bool  `yaml:"keep_matched_subdomains,omitempty"`
	AlphabetiseGetParameters    *bool `yaml:"alphabetise_get_parameters,omitempty"`
	CanProduceMultipleFiles     bool  `yaml:"can_produce_multiple_files,omitempty"`
	ShouldBeAssociatedWithFiles bool  `yaml:"should_be_associated_with_files,omitempty"`
	KeepFragment                bool  `yaml:"keep_fragment,omitempty"`

	PathComponents []pathComponentDoc      `yaml:"path_components,omitempty"`
	Parameters     map[string]parameterDoc `yaml:"parameters,omitempty"`

	AllowSingleValueParams bool            `yaml:"allow_single_value_params,omitempty"`
	SingleValueMatch       *stringMatchDoc `yaml:"single_value_match,omitempty"`

	HeaderOverrides map[string]string `yaml:"header_overrides,omitempty"`

	APILookupConverter *converterDoc `yaml:"api_lookup_converter,omitempty"`

	ReferralPolicy    string        `yaml:"referral_policy,omitempty"`
	ReferralConverter *converterDoc `yaml:"referral_converter,omitempty"`

	GalleryIndex *galleryIndexDoc `yaml:"gallery_index,omitempty"`

	ExampleURL string `yaml:"example_url,omitempty"`
}

type pathComponentDoc struct {
	Match   stringMatchDoc `yaml:"match"`
	Default *string        `yaml:"default,omitempty"`
}

type parameterDoc struct {
	Match   stringMatchDoc `yaml:"match"`
	Default *string        `yaml:"default,omitempty"`
}

type stringMatchDoc struct {
	Type    string `yaml:"type"`
	Value   string `yaml:"value,omitempty"`
	Kind    string `yaml:"kind,omitempty"`
	Min     int    `yaml:"min,omitempty"`
	Max     int    `yaml:"max,omitempty"`
	Example string `yaml:"example,omitempty"`
}

type converterDoc struct {
	Conversions []conversionDoc `yaml:"conversions,omitempty"`
	Example     string          `yaml:"example,omitempty"`
}

type conversionDoc struct {
	Type        string `yaml:"type"`
	Text        string `yaml:"text,omitempty"`
	Replacement string `yaml:"replacement,omitempty"`
	Chars       int    `yaml:"chars,omitempty"`
}

type galleryIndexDoc struct {
	Kind          string `yaml:"kind"`
	PathIndex     int    `yaml:"path_index,omitempty"`
	ParameterName string `yaml:"parameter_name,omitempty"`
	Delta         int    `yaml:"delta"`
}

type parserDoc struct {
	Name        string   `yaml:"name"`
	ExampleURLs []string `yaml:"example_urls,omitempty"`
	Namespaces  []string `yaml:"namespaces,omitempty"`
}

type gugDoc struct {
	Name                 string `yaml:"name"`
	URLTemplate          string `yaml:"url_template"`
	ReplacementPhrase    string `yaml:"replacement_phrase"`
	SearchTermsSeparator string `yaml:"search_terms_separator,omitempty"`
	InitialSearchText    string `yaml:"initial_search_text,omitempty"`
	ExampleSearchText    string `yaml:"example_search_text,omitempty"`
}

type nestedGUGDoc struct {
	Name              string   `yaml:"name"`
	GUGs              []string `yaml:"gugs"`
	InitialSearchText string   `yaml:"initial_search_text,omitempty"`
}

type linkDoc struct {
	URLClass string `yaml:"url_class"`
	Parser   string `yaml:"parser"`
}

// Parse decodes a YAML rule pack into a snapshot with fresh keys. Names
// must be unique per rule kind, and links, nested generator references,
// and the default generator must all resolve by name.
func Parse(data []byte) (registry.Snapshot, error) {
	var doc packDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return registry.Snapshot{}, fmt.Errorf("rulepack: decode: %w", err)
	}
	if doc.FormatVersion > FormatVersion {
		return registry.Snapshot{}, fmt.Errorf("rulepack: format version %d is newer than this build understands (%d)", doc.FormatVersion, FormatVersion)
	}

	snap := registry.Snapshot{
		ClassKeyToParserKey: make(map[uuid.UUID]uuid.UUID),
	}

	classKeys := make(map[string]uuid.UUID, len(doc.URLClasses))
	for _, cd := range doc.URLClasses {
		if cd.Name == "" {
			return registry.Snapshot{}, fmt.Errorf("rulepack: url class with no name")
		}
		if _, dup := classKeys[cd.Name]; dup {
			return registry.Snapshot{}, fmt.Errorf("rulepack: duplicate url class name %q", cd.Name)
		}
		u, err := cd.toURLClass()
		if err != nil {
			return registry.Snapshot{}, fmt.Errorf("rulepack: url class %q: %w", cd.Name, err)
		}
		classKeys[u.Name] = u.Key
		snap.URLClasses = append(snap.URLClasses, u)
		snap.DisplayedClassKeys = append(snap.DisplayedClassKeys, u.Key)
	}

	parserKeys := make(map[string]uuid.UUID, len(doc.Parsers))
	for _, pd := range doc.Parsers {
		if pd.Name == "" {
			return registry.Snapshot{}, fmt.Errorf("rulepack: parser with no name")
		}
		if _, dup := parserKeys[pd.Name]; dup {
			return registry.Snapshot{}, fmt.Errorf("rulepack: duplicate parser name %q", pd.Name)
		}
		p := pageparser.New(pd.Name, pd.ExampleURLs)
		p.Namespaces = pd.Namespaces
		parserKeys[p.Name] = p.Key
		snap.Parsers = append(snap.Parsers, p)
	}

	gugKeys := make(map[string]uuid.UUID, len(doc.GUGs))
	for _, gd := range doc.GUGs {
		if gd.Name == "" {
			return registry.Snapshot{}, fmt.Errorf("rulepack: gallery url generator with no name")
		}
		if _, dup := gugKeys[gd.Name]; dup {
			return registry.Snapshot{}, fmt.Errorf("rulepack: duplicate gallery url generator name %q", gd.Name)
		}
		g := gug.New(gd.Name, gd.URLTemplate, gd.ReplacementPhrase, gd.SearchTermsSeparator)
		g.InitialSearchText = gd.InitialSearchText
		g.ExampleSearchText = gd.ExampleSearchText
		gugKeys[g.Name] = g.Key
		snap.GUGs = append(snap.GUGs, g)
		snap.DisplayedGUGKeys = append(snap.DisplayedGUGKeys, g.Key)
	}

	for _, nd := range doc.NestedGUGs {
		if nd.Name == "" {
			return registry.Snapshot{}, fmt.Errorf("rulepack: nested gallery url generator with no name")
		}
		refs := make([]gug.Reference, 0, len(nd.GUGs))
		for _, name := range nd.GUGs {
			key, ok := gugKeys[name]
			if !ok {
				return registry.Snapshot{}, fmt.Errorf("rulepack: nested generator %q references unknown generator %q", nd.Name, name)
			}
			refs = append(refs, gug.Reference{Key: key, Name: name})
		}
		n := gug.NewNested(nd.Name, refs)
		n.InitialSearchText = nd.InitialSearchText
		snap.NestedGUGs = append(snap.NestedGUGs, n)
	}

	for _, ld := range doc.Links {
		classKey, ok := classKeys[ld.URLClass]
		if !ok {
			return registry.Snapshot{}, fmt.Errorf("rulepack: link references unknown url class %q", ld.URLClass)
		}
		parserKey, ok := parserKeys[ld.Parser]
		if !ok {
			return registry.Snapshot{}, fmt.Errorf("rulepack: link references unknown parser %q", ld.Parser)
		}
		snap.ClassKeyToParserKey[classKey] = parserKey
	}

	if doc.DefaultGUG != "" {
		key, ok := gugKeys[doc.DefaultGUG]
		if !ok {
			return registry.Snapshot{}, fmt.Errorf("rulepack: default generator %q is not in the pack", doc.DefaultGUG)
		}
		snap.DefaultGUGKey = key
	}

	return snap, nil
}

// Encode renders a snapshot as a YAML rule pack. Keys are dropped; rules
// travel by name. Links whose endpoints are not in the snapshot are
// silently skipped.
func Encode(snap registry.Snapshot) ([]byte, error) {
	doc := packDoc{FormatVersion: FormatVersion}

	classNames := make(map[uuid.UUID]string, len(snap.URLClasses))
	for _, u := range snap.URLClasses {
		classNames[u.Key] = u.Name
		doc.URLClasses = append(doc.URLClasses, fromURLClass(u))
	}

	parserNames := make(map[uuid.UUID]string, len(snap.Parsers))
	for _, p := range snap.Parsers {
		parserNames[p.Key] = p.Name
		doc.Parsers = append(doc.Parsers, parserDoc{
			Name:        p.Name,
			ExampleURLs: p.ExampleURLs,
			Namespaces:  p.Namespaces,
		})
	}

	gugNames := make(map[uuid.UUID]string, len(snap.GUGs))
	for _, g := range snap.GUGs {
		gugNames[g.Key] = g.Name
		doc.GUGs = append(doc.GUGs, gugDoc{
			Name:                 g.Name,
			URLTemplate:          g.URLTemplate,
			ReplacementPhrase:    g.ReplacementPhrase,
			SearchTermsSeparator: g.SearchTermsSeparator,
			InitialSearchText:    g.InitialSearchText,
			ExampleSearchText:    g.ExampleSearchText,
		})
	}

	for _, n := range snap.NestedGUGs {
		nd := nestedGUGDoc{Name: n.Name, InitialSearchText: n.InitialSearchText}
		for _, ref := range n.References {
			if name, ok := gugNames[ref.Key]; ok {
				nd.GUGs = append(nd.GUGs, name)
			} else if ref.Name != "" {
				nd.GUGs = append(nd.GUGs, ref.Name)
			}
		}
		doc.NestedGUGs = append(doc.NestedGUGs, nd)
	}

	for _, u := range snap.URLClasses {
		parserKey, ok := snap.ClassKeyToParserKey[u.Key]
		if !ok {
			continue
		}
		parserName, ok := parserNames[parserKey]
		if !ok {
			continue
		}
		doc.Links = append(doc.Links, linkDoc{URLClass: u.Name, Parser: parserName})
	}

	if name, ok := gugNames[snap.DefaultGUGKey]; ok {
		doc.DefaultGUG = name
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("rulepack: encode: %w", err)
	}
	return out, nil
}

func (cd urlClassDoc) toURLClass() (*urlclass.URLClass, error) {
	urlType := urlclass.URLType(cd.Type)
	switch urlType {
	case urlclass.TypePost, urlclass.TypeGallery, urlclass.TypeFile, urlclass.TypeWatchable, urlclass.TypeUnknown:
	default:
		return nil, fmt.Errorf("unknown url type %q", cd.Type)
	}

	u := urlclass.New(cd.Name, urlType, cd.Netloc)
	if cd.PreferredScheme != "" {
		u.PreferredScheme = cd.PreferredScheme
	}
	u.MatchSubdomains = cd.MatchSubdomains
	u.KeepMatchedSubdomains = cd.KeepMatchedSubdomains
	if cd.AlphabetiseGetParameters != nil {
		u.AlphabetiseGetParameters = *cd.AlphabetiseGetParameters
	}
	u.CanProduceMultipleFiles = cd.CanProduceMultipleFiles
	u.ShouldBeAssociatedWithFiles = cd.ShouldBeAssociatedWithFiles
	u.KeepFragment = cd.KeepFragment

	for _, pc := range cd.PathComponents {
		u.PathComponents = append(u.PathComponents, urlclass.PathComponent{
			Match:   pc.Match.toStringMatch(),
			Default: pc.Default,
		})
	}
	if len(cd.Parameters) > 0 {
		u.Parameters = make(map[string]urlclass.Parameter, len(cd.Parameters))
		for name, pd := range cd.Parameters {
			u.Parameters[name] = urlclass.Parameter{
				Match:   pd.Match.toStringMatch(),
				Default: pd.Default,
			}
		}
	}

	u.AllowSingleValueParams = cd.AllowSingleValueParams
	if cd.SingleValueMatch != nil {
		u.SingleValueMatch = cd.SingleValueMatch.toStringMatch()
	}

	u.HeaderOverrides = cd.HeaderOverrides

	if cd.APILookupConverter != nil {
		u.APILookupConverter = cd.APILookupConverter.toConverter()
	}
	if cd.ReferralPolicy != "" {
		policy := urlclass.ReferralPolicy(cd.ReferralPolicy)
		switch policy {
		case urlclass.ReferralOnlyIfProvided, urlclass.ReferralNever,
			urlclass.ReferralConverterIfNoneProvided, urlclass.ReferralOnlyConverter:
			u.ReferralPolicy = policy
		default:
			return nil, fmt.Errorf("unknown referral policy %q", cd.ReferralPolicy)
		}
	}
	if cd.ReferralConverter != nil {
		u.ReferralConverter = cd.ReferralConverter.toConverter()
	}

	if cd.GalleryIndex != nil {
		kind := urlclass.GalleryIndexKind(cd.GalleryIndex.Kind)
		switch kind {
		case urlclass.GalleryIndexPathComponent, urlclass.GalleryIndexParameter:
		default:
			return nil, fmt.Errorf("unknown gallery index kind %q", cd.GalleryIndex.Kind)
		}
		u.GalleryIndex = &urlclass.GalleryIndex{
			Kind:          kind,
			PathIndex:     cd.GalleryIndex.PathIndex,
			ParameterName: cd.GalleryIndex.ParameterName,
			Delta:         cd.GalleryIndex.Delta,
		}
	}

	u.ExampleURL = cd.ExampleURL
	return u, nil
}

func fromURLClass(u *urlclass.URLClass) urlClassDoc {
	cd := urlClassDoc{
		Name:                        u.Name,
		Type:                        string(u.Type),
		PreferredScheme:             u.PreferredScheme,
		Netloc:                      u.Netloc,
		MatchSubdomains:             u.MatchSubdomains,
		KeepMatchedSubdomains:       u.KeepMatchedSubdomains,
		CanProduceMultipleFiles:     u.CanProduceMultipleFiles,
		ShouldBeAssociatedWithFiles: u.ShouldBeAssociatedWithFiles,
		KeepFragment:                u.KeepFragment,
		AllowSingleValueParams:      u.AllowSingleValueParams,
		HeaderOverrides:             u.HeaderOverrides,
		ExampleURL:                  u.ExampleURL,
	}

	alphabetise := u.AlphabetiseGetParameters
	cd.AlphabetiseGetParameters = &alphabetise

	for _, pc := range u.PathComponents {
		cd.PathComponents = append(cd.PathComponents, pathComponentDoc{
			Match:   fromStringMatch(pc.Match),
			Default: pc.Default,
		})
	}
	if len(u.Parameters) > 0 {
		cd.Parameters = make(map[string]parameterDoc, len(u.Parameters))
		for name, p := range u.Parameters {
			cd.Parameters[name] = parameterDoc{
				Match:   fromStringMatch(p.Match),
				Default: p.Default,
			}
		}
	}

	if u.AllowSingleValueParams {
		svm := fromStringMatch(u.SingleValueMatch)
		cd.SingleValueMatch = &svm
	}
	if u.APILookupConverter.MakesChanges() {
		conv := fromConverter(u.APILookupConverter)
		cd.APILookupConverter = &conv
	}
	cd.ReferralPolicy = string(u.ReferralPolicy)
	if u.ReferralConverter.MakesChanges() {
		conv := fromConverter(u.ReferralConverter)
		cd.ReferralConverter = &conv
	}
	if u.GalleryIndex != nil {
		cd.GalleryIndex = &galleryIndexDoc{
			Kind:          string(u.GalleryIndex.Kind),
			PathIndex:     u.GalleryIndex.PathIndex,
			ParameterName: u.GalleryIndex.ParameterName,
			Delta:         u.GalleryIndex.Delta,
		}
	}
	return cd
}

func (sd stringMatchDoc) toStringMatch() stringmatch.StringMatch {
	return stringmatch.StringMatch{
		Type:    stringmatch.MatchType(sd.Type),
		Value:   sd.Value,
		Kind:    stringmatch.FlexibleKind(sd.Kind),
		Min:     sd.Min,
		Max:     sd.Max,
		Example: sd.Example,
	}
}

func fromStringMatch(m stringmatch.StringMatch) stringMatchDoc {
	return stringMatchDoc{
		Type:    string(m.Type),
		Value:   m.Value,
		Kind:    string(m.Kind),
		Min:     m.Min,
		Max:     m.Max,
		Example: m.Example,
	}
}

func (cd converterDoc) toConverter() stringmatch.StringConverter {
	conv := stringmatch.StringConverter{Example: cd.Example}
	for _, step := range cd.Conversions {
		conv.Conversions = append(conv.Conversions, stringmatch.Conversion{
			Type:        stringmatch.ConversionType(step.Type),
			Text:        step.Text,
			Replacement: step.Replacement,
			Chars:       step.Chars,
		})
	}
	return conv
}

func fromConverter(c stringmatch.StringConverter) converterDoc {
	doc := converterDoc{Example: c.Example}
	for _, step := range c.Conversions {
		doc.Conversions = append(doc.Conversions, conversionDoc{
			Type:        string(step.Type),
			Text:        step.Text,
			Replacement: step.Replacement,
			Chars:       step.Chars,
		})
	}
	return doc
}
