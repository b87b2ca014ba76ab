// Package registry is the authoritative in-memory store of URL classes,
// parsers, and gallery URL generators, plus the derived lookup caches that
// make classification fast. One registry serves a whole process.
//
// Concurrency model: one mutex guards all rule state. Reads are cheap map
// and slice walks, mutations are rare and always followed by a full cache
// recompute, so finer locking buys nothing. The domain error breaker is the
// exception: it sits on a concurrent map outside the mutex because error
// reporting is hot-path and touches no rule state.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maypok86/otter"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/sieve-urls/sieve/internal/gug"
	"github.com/sieve-urls/sieve/internal/netctx"
	"github.com/sieve-urls/sieve/internal/pageparser"
	"github.com/sieve-urls/sieve/internal/urlclass"
	"github.com/sieve-urls/sieve/internal/urlnorm"
)

// Config carries the registry's tunables.
type Config struct {
	// NormalisationCacheCapacity bounds the rawURL -> canonical cache.
	// Zero or negative disables the cache.
	NormalisationCacheCapacity int

	// DomainErrorThreshold is how many recent infrastructure errors mark a
	// domain as not OK. Zero disables the breaker entirely.
	DomainErrorThreshold int

	// DomainErrorWindow is how far back errors count.
	DomainErrorWindow time.Duration
}

// Registry holds the rule set and its derived caches.
type Registry struct {
	cfg Config

	mu sync.Mutex

	urlClasses []*urlclass.URLClass
	parsers    []*pageparser.Parser
	gugs       []*gug.Generator
	nestedGUGs []*gug.NestedGenerator

	classKeyToParserKey map[uuid.UUID]uuid.UUID

	headers map[netctx.Context]map[string]HeaderEntry

	displayedClassKeys map[uuid.UUID]bool
	displayedGUGKeys   map[uuid.UUID]bool

	defaultGUGKey uuid.UUID

	dirty bool

	// Derived, rebuilt wholesale by recalcCache.
	sldToClasses        map[string][]*urlclass.URLClass
	parserKeysToParsers map[uuid.UUID]*pageparser.Parser
	gugKeysToGUGs       map[uuid.UUID]*gug.Generator
	gugNamesToGUGs      map[string]*gug.Generator

	normCache otter.Cache[string, string]
	hasCache  bool

	domainErrors *xsync.Map[string, *errorLog]
	clock        func() time.Time
}

// New constructs an empty registry. Call Install to load state, or start
// adding rules directly.
func New(cfg Config) (*Registry, error) {
	r := &Registry{
		cfg:                 cfg,
		classKeyToParserKey: map[uuid.UUID]uuid.UUID{},
		headers:             map[netctx.Context]map[string]HeaderEntry{},
		displayedClassKeys:  map[uuid.UUID]bool{},
		displayedGUGKeys:    map[uuid.UUID]bool{},
		domainErrors:        xsync.NewMap[string, *errorLog](),
		clock:               time.Now,
	}

	if cfg.NormalisationCacheCapacity > 0 {
		cache, err := otter.MustBuilder[string, string](cfg.NormalisationCacheCapacity).Build()
		if err != nil {
			return nil, err
		}
		r.normCache = cache
		r.hasCache = true
	}

	r.recalcCacheLocked()
	return r, nil
}

// Snapshot is the registry's full persistable state.
type Snapshot struct {
	URLClasses []*urlclass.URLClass
	Parsers    []*pageparser.Parser
	GUGs       []*gug.Generator
	NestedGUGs []*gug.NestedGenerator

	ClassKeyToParserKey map[uuid.UUID]uuid.UUID

	Headers map[netctx.Context]map[string]HeaderEntry

	DisplayedClassKeys []uuid.UUID
	DisplayedGUGKeys   []uuid.UUID

	DefaultGUGKey uuid.UUID
}

// Install replaces all registry state with a loaded snapshot. It does not
// mark the registry dirty: installing what was just read from disk is not a
// change worth writing back.
func (r *Registry) Install(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.urlClasses = append([]*urlclass.URLClass(nil), s.URLClasses...)
	r.parsers = append([]*pageparser.Parser(nil), s.Parsers...)
	r.gugs = append([]*gug.Generator(nil), s.GUGs...)
	r.nestedGUGs = append([]*gug.NestedGenerator(nil), s.NestedGUGs...)

	r.classKeyToParserKey = map[uuid.UUID]uuid.UUID{}
	for k, v := range s.ClassKeyToParserKey {
		r.classKeyToParserKey[k] = v
	}

	r.headers = map[netctx.Context]map[string]HeaderEntry{}
	for ctx, entries := range s.Headers {
		m := map[string]HeaderEntry{}
		for name, entry := range entries {
			m[name] = entry
		}
		r.headers[ctx] = m
	}

	r.displayedClassKeys = map[uuid.UUID]bool{}
	for _, key := range s.DisplayedClassKeys {
		r.displayedClassKeys[key] = true
	}
	r.displayedGUGKeys = map[uuid.UUID]bool{}
	for _, key := range s.DisplayedGUGKeys {
		r.displayedGUGKeys[key] = true
	}

	r.defaultGUGKey = s.DefaultGUGKey

	r.recalcCacheLocked()
	r.dirty = false
}

// Export copies the registry's persistable state out.
func (r *Registry) Export() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		URLClasses:          append([]*urlclass.URLClass(nil), r.urlClasses...),
		Parsers:             append([]*pageparser.Parser(nil), r.parsers...),
		GUGs:                append([]*gug.Generator(nil), r.gugs...),
		NestedGUGs:          append([]*gug.NestedGenerator(nil), r.nestedGUGs...),
		ClassKeyToParserKey: map[uuid.UUID]uuid.UUID{},
		Headers:             map[netctx.Context]map[string]HeaderEntry{},
		DefaultGUGKey:       r.defaultGUGKey,
	}
	for k, v := range r.classKeyToParserKey {
		s.ClassKeyToParserKey[k] = v
	}
	for ctx, entries := range r.headers {
		m := map[string]HeaderEntry{}
		for name, entry := range entries {
			m[name] = entry
		}
		s.Headers[ctx] = m
	}
	for key := range r.displayedClassKeys {
		s.DisplayedClassKeys = append(s.DisplayedClassKeys, key)
	}
	for key := range r.displayedGUGKeys {
		s.DisplayedGUGKeys = append(s.DisplayedGUGKeys, key)
	}
	sortKeys(s.DisplayedClassKeys)
	sortKeys(s.DisplayedGUGKeys)

	return s
}

func sortKeys(keys []uuid.UUID) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
}

// IsDirty reports whether registry state has changed since the last
// SetClean. The snapshot flusher polls this.
func (r *Registry) IsDirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// SetClean clears the dirty flag after a successful snapshot write.
func (r *Registry) SetClean() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = false
}

// recalcCacheLocked rebuilds every derived structure from the master lists.
// Callers hold r.mu. It runs after every structural mutation; partial
// updates are never attempted.
func (r *Registry) recalcCacheLocked() {
	sort.SliceStable(r.urlClasses, func(i, j int) bool { return r.urlClasses[i].Name < r.urlClasses[j].Name })
	sort.SliceStable(r.parsers, func(i, j int) bool { return r.parsers[i].Name < r.parsers[j].Name })
	sort.SliceStable(r.gugs, func(i, j int) bool { return r.gugs[i].Name < r.gugs[j].Name })
	sort.SliceStable(r.nestedGUGs, func(i, j int) bool { return r.nestedGUGs[i].Name < r.nestedGUGs[j].Name })

	r.sldToClasses = map[string][]*urlclass.URLClass{}
	for _, u := range r.urlClasses {
		sld, err := urlnorm.SecondLevelDomain(u.Netloc)
		if err != nil {
			continue
		}
		r.sldToClasses[sld] = append(r.sldToClasses[sld], u)
	}
	for _, classes := range r.sldToClasses {
		urlclass.SortByComplexity(classes)
	}

	r.parserKeysToParsers = map[uuid.UUID]*pageparser.Parser{}
	for _, p := range r.parsers {
		r.parserKeysToParsers[p.Key] = p
	}

	r.gugKeysToGUGs = map[uuid.UUID]*gug.Generator{}
	r.gugNamesToGUGs = map[string]*gug.Generator{}
	for _, g := range r.gugs {
		r.gugKeysToGUGs[g.Key] = g
		r.gugNamesToGUGs[g.Name] = g
	}

	if r.hasCache {
		r.normCache.Clear()
	}
}

// setDirtyLocked marks state changed. Callers hold r.mu.
func (r *Registry) setDirtyLocked() {
	r.dirty = true
}
