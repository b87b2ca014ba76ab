package registry

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sieve-urls/sieve/internal/gug"
	"github.com/sieve-urls/sieve/internal/pageparser"
	"github.com/sieve-urls/sieve/internal/urlclass"
)

// GetURLClasses copies the class list out, name-sorted.
func (r *Registry) GetURLClasses() []*urlclass.URLClass {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*urlclass.URLClass(nil), r.urlClasses...)
}

// GetParsers copies the parser list out, name-sorted.
func (r *Registry) GetParsers() []*pageparser.Parser {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*pageparser.Parser(nil), r.parsers...)
}

// GetGUGs copies the generator list out, name-sorted.
func (r *Registry) GetGUGs() []*gug.Generator {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*gug.Generator(nil), r.gugs...)
}

// GetNestedGUGs copies the nested generator list out, name-sorted.
func (r *Registry) GetNestedGUGs() []*gug.NestedGenerator {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*gug.NestedGenerator(nil), r.nestedGUGs...)
}

// SetURLClasses replaces the class list. Parser links and display flags
// belonging to classes that no longer exist are cleaned up; flags for
// surviving keys are preserved, and new post classes start displayed.
func (r *Registry) SetURLClasses(classes []*urlclass.URLClass) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.urlClasses = append([]*urlclass.URLClass(nil), classes...)

	kept := map[uuid.UUID]*urlclass.URLClass{}
	for _, u := range r.urlClasses {
		kept[u.Key] = u
	}

	for classKey := range r.classKeyToParserKey {
		if _, ok := kept[classKey]; !ok {
			delete(r.classKeyToParserKey, classKey)
		}
	}

	displayed := map[uuid.UUID]bool{}
	for _, u := range r.urlClasses {
		if was, had := r.displayedClassKeys[u.Key]; had {
			displayed[u.Key] = was
		} else if u.IsPost() {
			displayed[u.Key] = true
		}
	}
	r.displayedClassKeys = displayed

	r.recalcCacheLocked()
	r.setDirtyLocked()
}

// SetParsers replaces the parser list. Links to removed parsers dissolve,
// then missing links are re-inferred against the new parsers.
func (r *Registry) SetParsers(parsers []*pageparser.Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.parsers = append([]*pageparser.Parser(nil), parsers...)

	kept := map[uuid.UUID]bool{}
	for _, p := range r.parsers {
		kept[p.Key] = true
	}
	for classKey, parserKey := range r.classKeyToParserKey {
		if !kept[parserKey] {
			delete(r.classKeyToParserKey, classKey)
		}
	}

	r.recalcCacheLocked()
	r.tryToLinkLocked()
	r.setDirtyLocked()
}

// SetGUGs replaces the generator lists and repairs nested references
// against the new generators. Display flags for surviving keys are
// preserved; new generators start displayed.
func (r *Registry) SetGUGs(gugs []*gug.Generator, nested []*gug.NestedGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gugs = append([]*gug.Generator(nil), gugs...)
	r.nestedGUGs = append([]*gug.NestedGenerator(nil), nested...)

	for _, n := range r.nestedGUGs {
		n.Repair(r.gugs)
	}

	displayed := map[uuid.UUID]bool{}
	for _, g := range r.gugs {
		if was, had := r.displayedGUGKeys[g.Key]; had {
			displayed[g.Key] = was
		} else {
			displayed[g.Key] = true
		}
	}
	r.displayedGUGKeys = displayed

	if _, ok := r.gugKeyLocked(r.defaultGUGKey); !ok {
		r.defaultGUGKey = uuid.UUID{}
	}

	r.recalcCacheLocked()
	r.setDirtyLocked()
}

func (r *Registry) gugKeyLocked(key uuid.UUID) (*gug.Generator, bool) {
	for _, g := range r.gugs {
		if g.Key == key {
			return g, true
		}
	}
	return nil, false
}

// AddURLClasses appends classes with fresh keys. Names colliding with
// existing classes get a numeric suffix, so adds never silently replace.
func (r *Registry) AddURLClasses(classes []*urlclass.URLClass) {
	r.mu.Lock()
	defer r.mu.Unlock()

	taken := map[string]bool{}
	for _, u := range r.urlClasses {
		taken[u.Name] = true
	}

	for _, u := range classes {
		u.RegenerateKey()
		u.Name = dedupName(u.Name, taken)
		taken[u.Name] = true
		r.urlClasses = append(r.urlClasses, u)
		if u.IsPost() {
			r.displayedClassKeys[u.Key] = true
		}
	}

	r.recalcCacheLocked()
	r.setDirtyLocked()
}

// AddParsers appends parsers with fresh keys and name dedup, then infers
// links for them.
func (r *Registry) AddParsers(parsers []*pageparser.Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	taken := map[string]bool{}
	for _, p := range r.parsers {
		taken[p.Name] = true
	}

	for _, p := range parsers {
		p.RegenerateKey()
		p.Name = dedupName(p.Name, taken)
		taken[p.Name] = true
		r.parsers = append(r.parsers, p)
	}

	r.recalcCacheLocked()
	r.tryToLinkLocked()
	r.setDirtyLocked()
}

// AddGUGs appends generators with fresh keys and name dedup.
func (r *Registry) AddGUGs(gugs []*gug.Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	taken := map[string]bool{}
	for _, g := range r.gugs {
		taken[g.Name] = true
	}

	for _, g := range gugs {
		g.RegenerateKey()
		g.Name = dedupName(g.Name, taken)
		taken[g.Name] = true
		r.gugs = append(r.gugs, g)
		r.displayedGUGKeys[g.Key] = true
	}

	r.recalcCacheLocked()
	r.setDirtyLocked()
}

// DeleteURLClasses removes classes by key, along with their links and
// display flags.
func (r *Registry) DeleteURLClasses(keys ...uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doomed := map[uuid.UUID]bool{}
	for _, key := range keys {
		doomed[key] = true
	}

	var kept []*urlclass.URLClass
	for _, u := range r.urlClasses {
		if !doomed[u.Key] {
			kept = append(kept, u)
		}
	}
	r.urlClasses = kept

	for key := range doomed {
		delete(r.classKeyToParserKey, key)
		delete(r.displayedClassKeys, key)
	}

	r.recalcCacheLocked()
	r.setDirtyLocked()
}

// DeleteGUGs removes generators by key. Nested generators are repaired so
// references to the deleted generators drop out.
func (r *Registry) DeleteGUGs(keys ...uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doomed := map[uuid.UUID]bool{}
	for _, key := range keys {
		doomed[key] = true
	}

	var kept []*gug.Generator
	for _, g := range r.gugs {
		if !doomed[g.Key] {
			kept = append(kept, g)
		}
	}
	r.gugs = kept

	for key := range doomed {
		delete(r.displayedGUGKeys, key)
	}
	for _, n := range r.nestedGUGs {
		n.Repair(r.gugs)
	}
	if doomed[r.defaultGUGKey] {
		r.defaultGUGKey = uuid.UUID{}
	}

	r.recalcCacheLocked()
	r.setDirtyLocked()
}

// OverwriteDefaultURLClasses installs default rules, replacing same-named
// classes while keeping their keys so parser links and display flags
// survive the update.
func (r *Registry) OverwriteDefaultURLClasses(defaults []*urlclass.URLClass) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existingByName := map[string]*urlclass.URLClass{}
	for _, u := range r.urlClasses {
		existingByName[u.Name] = u
	}

	replaced := map[string]bool{}
	for _, d := range defaults {
		if old, ok := existingByName[d.Name]; ok {
			d.SetKey(old.Key)
		}
		replaced[d.Name] = true
	}

	var kept []*urlclass.URLClass
	for _, u := range r.urlClasses {
		if !replaced[u.Name] {
			kept = append(kept, u)
		}
	}
	r.urlClasses = append(kept, defaults...)

	for _, u := range r.urlClasses {
		if _, had := r.displayedClassKeys[u.Key]; !had && u.IsPost() {
			r.displayedClassKeys[u.Key] = true
		}
	}

	r.recalcCacheLocked()
	r.setDirtyLocked()
}

// OverwriteDefaultParsers installs default parsers with the same key
// preservation as OverwriteDefaultURLClasses, then re-infers links.
func (r *Registry) OverwriteDefaultParsers(defaults []*pageparser.Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existingByName := map[string]*pageparser.Parser{}
	for _, p := range r.parsers {
		existingByName[p.Name] = p
	}

	replaced := map[string]bool{}
	for _, d := range defaults {
		if old, ok := existingByName[d.Name]; ok {
			d.Key = old.Key
		}
		replaced[d.Name] = true
	}

	var kept []*pageparser.Parser
	for _, p := range r.parsers {
		if !replaced[p.Name] {
			kept = append(kept, p)
		}
	}
	r.parsers = append(kept, defaults...)

	r.recalcCacheLocked()
	r.tryToLinkLocked()
	r.setDirtyLocked()
}

// OverwriteDefaultGUGs installs default generators, preserving keys by
// name, and repairs nested references.
func (r *Registry) OverwriteDefaultGUGs(defaults []*gug.Generator, nested []*gug.NestedGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existingByName := map[string]*gug.Generator{}
	for _, g := range r.gugs {
		existingByName[g.Name] = g
	}
	replaced := map[string]bool{}
	for _, d := range defaults {
		if old, ok := existingByName[d.Name]; ok {
			d.Key = old.Key
		}
		replaced[d.Name] = true
	}
	var kept []*gug.Generator
	for _, g := range r.gugs {
		if !replaced[g.Name] {
			kept = append(kept, g)
		}
	}
	r.gugs = append(kept, defaults...)

	nestedByName := map[string]*gug.NestedGenerator{}
	for _, n := range r.nestedGUGs {
		nestedByName[n.Name] = n
	}
	replacedNested := map[string]bool{}
	for _, d := range nested {
		if old, ok := nestedByName[d.Name]; ok {
			d.Key = old.Key
		}
		replacedNested[d.Name] = true
	}
	var keptNested []*gug.NestedGenerator
	for _, n := range r.nestedGUGs {
		if !replacedNested[n.Name] {
			keptNested = append(keptNested, n)
		}
	}
	r.nestedGUGs = append(keptNested, nested...)

	for _, n := range r.nestedGUGs {
		n.Repair(r.gugs)
	}
	for _, g := range r.gugs {
		if _, had := r.displayedGUGKeys[g.Key]; !had {
			r.displayedGUGKeys[g.Key] = true
		}
	}

	r.recalcCacheLocked()
	r.setDirtyLocked()
}

// GetDisplayedGUGKeys lists the generators the UI should offer.
func (r *Registry) GetDisplayedGUGKeys() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var keys []uuid.UUID
	for key, on := range r.displayedGUGKeys {
		if on {
			keys = append(keys, key)
		}
	}
	sortKeys(keys)
	return keys
}

// SetGUGDisplay flips one generator's display flag.
func (r *Registry) SetGUGDisplay(key uuid.UUID, displayed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.displayedGUGKeys[key] = displayed
	r.setDirtyLocked()
}

// GetDisplayedClassKeys lists the post classes whose URLs the UI surfaces.
func (r *Registry) GetDisplayedClassKeys() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var keys []uuid.UUID
	for key, on := range r.displayedClassKeys {
		if on {
			keys = append(keys, key)
		}
	}
	sortKeys(keys)
	return keys
}

// SetClassDisplay flips one class's display flag.
func (r *Registry) SetClassDisplay(key uuid.UUID, displayed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.displayedClassKeys[key] = displayed
	r.setDirtyLocked()
}

// dedupName suffixes name with " (1)", " (2)", ... until it is free.
func dedupName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		if !taken[candidate] {
			return candidate
		}
	}
}
