package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sieve-urls/sieve/internal/gug"
	"github.com/sieve-urls/sieve/internal/pageparser"
	"github.com/sieve-urls/sieve/internal/rulepack"
	"github.com/sieve-urls/sieve/internal/urlclass"
)

// ------------------------------------------------------------------
// URL classes
// ------------------------------------------------------------------

// ListURLClasses returns every class, name-sorted.
func (s *Service) ListURLClasses() []*urlclass.URLClass {
	return s.Registry.GetURLClasses()
}

// GetURLClass finds one class by key.
func (s *Service) GetURLClass(key uuid.UUID) (*urlclass.URLClass, error) {
	for _, u := range s.Registry.GetURLClasses() {
		if u.Key == key {
			return u, nil
		}
	}
	return nil, notFound(fmt.Sprintf("no url class with key %s", key))
}

func validateURLClass(u *urlclass.URLClass) *ServiceError {
	if strings.TrimSpace(u.Name) == "" {
		return invalidArg("url class name is required")
	}
	if strings.TrimSpace(u.Netloc) == "" {
		return invalidArg(fmt.Sprintf("url class %q: netloc is required", u.Name))
	}
	switch u.Type {
	case urlclass.TypePost, urlclass.TypeGallery, urlclass.TypeFile, urlclass.TypeWatchable, urlclass.TypeUnknown:
	default:
		return invalidArg(fmt.Sprintf("url class %q: unknown url type %q", u.Name, u.Type))
	}
	if u.ExampleURL != "" && !u.Matches(u.ExampleURL) {
		return invalidArg(fmt.Sprintf("url class %q does not match its own example url", u.Name))
	}
	return nil
}

// CreateURLClasses adds classes with fresh keys and deduplicated names,
// returning them as stored.
func (s *Service) CreateURLClasses(classes []*urlclass.URLClass) ([]*urlclass.URLClass, error) {
	if len(classes) == 0 {
		return nil, invalidArg("at least one url class is required")
	}
	for _, u := range classes {
		if err := validateURLClass(u); err != nil {
			return nil, err
		}
	}
	s.Registry.AddURLClasses(classes)
	return classes, nil
}

// ReplaceURLClasses swaps in a whole new class list.
func (s *Service) ReplaceURLClasses(classes []*urlclass.URLClass) error {
	names := map[string]bool{}
	for _, u := range classes {
		if err := validateURLClass(u); err != nil {
			return err
		}
		if names[u.Name] {
			return conflict(fmt.Sprintf("duplicate url class name %q", u.Name))
		}
		names[u.Name] = true
	}
	s.Registry.SetURLClasses(classes)
	return nil
}

// DeleteURLClass removes one class and its parser link.
func (s *Service) DeleteURLClass(key uuid.UUID) error {
	if _, err := s.GetURLClass(key); err != nil {
		return err
	}
	s.Registry.DeleteURLClasses(key)
	return nil
}

// ------------------------------------------------------------------
// Parsers
// ------------------------------------------------------------------

// ListParsers returns every parser, name-sorted.
func (s *Service) ListParsers() []*pageparser.Parser {
	return s.Registry.GetParsers()
}

// GetParser finds one parser by key.
func (s *Service) GetParser(key uuid.UUID) (*pageparser.Parser, error) {
	for _, p := range s.Registry.GetParsers() {
		if p.Key == key {
			return p, nil
		}
	}
	return nil, notFound(fmt.Sprintf("no parser with key %s", key))
}

// CreateParsers adds parsers and re-infers links against them.
func (s *Service) CreateParsers(parsers []*pageparser.Parser) ([]*pageparser.Parser, error) {
	if len(parsers) == 0 {
		return nil, invalidArg("at least one parser is required")
	}
	for _, p := range parsers {
		if strings.TrimSpace(p.Name) == "" {
			return nil, invalidArg("parser name is required")
		}
	}
	s.Registry.AddParsers(parsers)
	return parsers, nil
}

// DeleteParser removes one parser; links pointing at it dissolve.
func (s *Service) DeleteParser(key uuid.UUID) error {
	existing := s.Registry.GetParsers()
	kept := make([]*pageparser.Parser, 0, len(existing))
	found := false
	for _, p := range existing {
		if p.Key == key {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return notFound(fmt.Sprintf("no parser with key %s", key))
	}
	s.Registry.SetParsers(kept)
	return nil
}

// ------------------------------------------------------------------
// Gallery URL generators
// ------------------------------------------------------------------

// GUGListResponse bundles plain and nested generators.
type GUGListResponse struct {
	GUGs       []*gug.Generator       `json:"gugs"`
	NestedGUGs []*gug.NestedGenerator `json:"nested_gugs"`
	DefaultKey *uuid.UUID             `json:"default_key,omitempty"`
}

// ListGUGs returns every generator, name-sorted, with the default marked.
func (s *Service) ListGUGs() GUGListResponse {
	resp := GUGListResponse{
		GUGs:       s.Registry.GetGUGs(),
		NestedGUGs: s.Registry.GetNestedGUGs(),
	}
	if g, ok := s.Registry.GetDefaultGUG(); ok {
		key := g.Key
		resp.DefaultKey = &key
	}
	return resp
}

// CreateGUGs adds generators with fresh keys and deduplicated names.
func (s *Service) CreateGUGs(gugs []*gug.Generator) ([]*gug.Generator, error) {
	if len(gugs) == 0 {
		return nil, invalidArg("at least one generator is required")
	}
	for _, g := range gugs {
		if strings.TrimSpace(g.Name) == "" {
			return nil, invalidArg("generator name is required")
		}
		if g.ReplacementPhrase == "" || !strings.Contains(g.URLTemplate, g.ReplacementPhrase) {
			return nil, invalidArg(fmt.Sprintf("generator %q: template does not contain its replacement phrase", g.Name))
		}
	}
	s.Registry.AddGUGs(gugs)
	return gugs, nil
}

// ReplaceGUGs swaps in new generator lists; nested references are repaired
// against the new plain generators.
func (s *Service) ReplaceGUGs(gugs []*gug.Generator, nested []*gug.NestedGenerator) error {
	names := map[string]bool{}
	for _, g := range gugs {
		if strings.TrimSpace(g.Name) == "" {
			return invalidArg("generator name is required")
		}
		if names[g.Name] {
			return conflict(fmt.Sprintf("duplicate generator name %q", g.Name))
		}
		names[g.Name] = true
	}
	s.Registry.SetGUGs(gugs, nested)
	return nil
}

// DeleteGUG removes one generator, repairing nested references.
func (s *Service) DeleteGUG(key uuid.UUID) error {
	if _, ok := s.Registry.GetGUG(key.String()); !ok {
		return notFound(fmt.Sprintf("no gallery url generator with key %s", key))
	}
	s.Registry.DeleteGUGs(key)
	return nil
}

// SetDefaultGUG points new searches at an existing generator.
func (s *Service) SetDefaultGUG(key uuid.UUID) error {
	if err := s.Registry.SetDefaultGUG(key); err != nil {
		return notFound(err.Error())
	}
	return nil
}

// ------------------------------------------------------------------
// Class to parser links
// ------------------------------------------------------------------

// LinkResponse is one class-to-parser binding, named at both ends.
type LinkResponse struct {
	ClassKey   uuid.UUID `json:"class_key"`
	ClassName  string    `json:"class_name"`
	ParserKey  uuid.UUID `json:"parser_key"`
	ParserName string    `json:"parser_name"`
}

// ListLinks returns the current class-to-parser bindings.
func (s *Service) ListLinks() []LinkResponse {
	links := s.Registry.GetURLClassKeysToParserKeys()

	classNames := map[uuid.UUID]string{}
	for _, u := range s.Registry.GetURLClasses() {
		classNames[u.Key] = u.Name
	}
	parserNames := map[uuid.UUID]string{}
	for _, p := range s.Registry.GetParsers() {
		parserNames[p.Key] = p.Name
	}

	out := make([]LinkResponse, 0, len(links))
	for _, u := range s.Registry.GetURLClasses() {
		parserKey, ok := links[u.Key]
		if !ok {
			continue
		}
		out = append(out, LinkResponse{
			ClassKey:   u.Key,
			ClassName:  classNames[u.Key],
			ParserKey:  parserKey,
			ParserName: parserNames[parserKey],
		})
	}
	return out
}

// InferLinks fills in missing class-to-parser links from parser example
// URLs and returns the resulting bindings.
func (s *Service) InferLinks() []LinkResponse {
	s.Registry.TryToLinkURLClassesAndParsers()
	return s.ListLinks()
}

// SetLink binds one class to one parser, replacing any existing binding.
func (s *Service) SetLink(classKey, parserKey uuid.UUID) error {
	if err := s.Registry.OverwriteParserLink(classKey, parserKey); err != nil {
		return notFound(err.Error())
	}
	return nil
}

// DeleteLink unbinds a class from its parser.
func (s *Service) DeleteLink(classKey uuid.UUID) error {
	if _, err := s.GetURLClass(classKey); err != nil {
		return err
	}
	s.Registry.DissolveParserLink(classKey)
	return nil
}

// ------------------------------------------------------------------
// Rule packs
// ------------------------------------------------------------------

// ExportRulePack renders the whole registry as a portable YAML pack.
func (s *Service) ExportRulePack() ([]byte, error) {
	data, err := rulepack.Encode(s.Registry.Export())
	if err != nil {
		return nil, internal("encode rule pack", err)
	}
	return data, nil
}

// ImportSummary reports what a rule pack import added.
type ImportSummary struct {
	URLClasses int `json:"url_classes"`
	Parsers    int `json:"parsers"`
	GUGs       int `json:"gugs"`
	NestedGUGs int `json:"nested_gugs"`
	Links      int `json:"links"`
}

// ImportRulePack merges a YAML pack into the registry. Imports are
// additive: incoming rules get fresh keys, colliding names get suffixes,
// and existing rules are never overwritten.
func (s *Service) ImportRulePack(data []byte) (*ImportSummary, error) {
	snap, err := rulepack.Parse(data)
	if err != nil {
		return nil, invalidArg(err.Error())
	}

	summary := &ImportSummary{
		URLClasses: len(snap.URLClasses),
		Parsers:    len(snap.Parsers),
		GUGs:       len(snap.GUGs),
		NestedGUGs: len(snap.NestedGUGs),
		Links:      len(snap.ClassKeyToParserKey),
	}

	// Adds mint fresh keys in place, so remember which object carried which
	// pack key to rebind the pack's links afterwards.
	classByPackKey := make(map[uuid.UUID]*urlclass.URLClass, len(snap.URLClasses))
	for _, u := range snap.URLClasses {
		classByPackKey[u.Key] = u
	}
	parserByPackKey := make(map[uuid.UUID]*pageparser.Parser, len(snap.Parsers))
	for _, p := range snap.Parsers {
		parserByPackKey[p.Key] = p
	}

	if len(snap.URLClasses) > 0 {
		s.Registry.AddURLClasses(snap.URLClasses)
	}
	if len(snap.Parsers) > 0 {
		s.Registry.AddParsers(snap.Parsers)
	}
	if len(snap.GUGs) > 0 {
		s.Registry.AddGUGs(snap.GUGs)
	}
	if len(snap.NestedGUGs) > 0 {
		// Nested references re-resolve by name during the set's repair pass.
		nested := append(s.Registry.GetNestedGUGs(), snap.NestedGUGs...)
		s.Registry.SetGUGs(s.Registry.GetGUGs(), nested)
	}

	for packClassKey, packParserKey := range snap.ClassKeyToParserKey {
		u := classByPackKey[packClassKey]
		p := parserByPackKey[packParserKey]
		if u == nil || p == nil {
			summary.Links--
			continue
		}
		if err := s.Registry.OverwriteParserLink(u.Key, p.Key); err != nil {
			summary.Links--
		}
	}

	return summary, nil
}
