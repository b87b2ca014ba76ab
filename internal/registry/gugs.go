package registry

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sieve-urls/sieve/internal/gug"
)

// GetGUG resolves a generator by key string first, then by name. The
// key-then-name order matters: names are mutable, keys are not.
func (r *Registry) GetGUG(keyOrName string) (*gug.Generator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getGUGLocked(keyOrName)
}

func (r *Registry) getGUGLocked(keyOrName string) (*gug.Generator, bool) {
	if key, err := uuid.Parse(keyOrName); err == nil {
		if g, ok := r.gugKeysToGUGs[key]; ok {
			return g, true
		}
	}
	g, ok := r.gugNamesToGUGs[keyOrName]
	return g, ok
}

// GetNestedGUG resolves a nested generator by key string or name.
func (r *Registry) GetNestedGUG(keyOrName string) (*gug.NestedGenerator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getNestedGUGLocked(keyOrName)
}

func (r *Registry) getNestedGUGLocked(keyOrName string) (*gug.NestedGenerator, bool) {
	key, keyErr := uuid.Parse(keyOrName)
	if keyErr == nil {
		for _, n := range r.nestedGUGs {
			if n.Key == key {
				return n, true
			}
		}
	}
	for _, n := range r.nestedGUGs {
		if n.Name == keyOrName {
			return n, true
		}
	}
	return nil, false
}

// GenerateGalleryURLs produces the search URLs for a query against the
// named generator. A nested generator fans out across its references; a
// plain generator yields one URL.
func (r *Registry) GenerateGalleryURLs(keyOrName, queryText string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.getNestedGUGLocked(keyOrName); ok {
		return n.GenerateGalleryURLs(queryText, r.gugs), nil
	}

	g, ok := r.getGUGLocked(keyOrName)
	if !ok {
		return nil, fmt.Errorf("no gallery url generator called %q", keyOrName)
	}
	url, err := g.GenerateGalleryURL(queryText)
	if err != nil {
		return nil, err
	}
	return []string{url}, nil
}

// GetInitialSearchText returns the placeholder text for a generator's
// search box.
func (r *Registry) GetInitialSearchText(keyOrName string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.getGUGLocked(keyOrName); ok {
		return g.InitialSearchText
	}
	if n, ok := r.getNestedGUGLocked(keyOrName); ok {
		return n.InitialSearchText
	}
	return ""
}

// GetDefaultGUG returns the generator new search pages start with.
func (r *Registry) GetDefaultGUG() (*gug.Generator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gugKeyLocked(r.defaultGUGKey)
}

// SetDefaultGUG points the default at an existing generator.
func (r *Registry) SetDefaultGUG(key uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.gugKeyLocked(key); !ok {
		return fmt.Errorf("no gallery url generator with key %s", key)
	}
	r.defaultGUGKey = key
	r.setDirtyLocked()
	return nil
}
