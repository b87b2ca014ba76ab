package gug

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func tagSearch() *Generator {
	g := New("example tag search",
		"https://example.com/index.php?page=post&s=list&tags=%tags%&pid=0",
		"%tags%", "+")
	g.ExampleSearchText = "blue_eyes blonde_hair"
	g.InitialSearchText = "search tags"
	return g
}

func pathSearch() *Generator {
	g := New("example path search",
		"https://example.com/tag/%tags%/1",
		"%tags%", "+")
	g.ExampleSearchText = "blue_eyes"
	return g
}

func TestGenerateGalleryURL(t *testing.T) {
	tests := []struct {
		name  string
		g     *Generator
		query string
		want  string
	}{
		{
			"plain terms join with separator",
			tagSearch(), "blue_eyes blonde_hair",
			"https://example.com/index.php?page=post&s=list&tags=blue_eyes+blonde_hair&pid=0",
		},
		{
			"query-string terms stay readable",
			tagSearch(), "skirt",
			"https://example.com/index.php?page=post&s=list&tags=skirt&pid=0",
		},
		{
			"term carrying the separator gets encoded",
			tagSearch(), "6+girls skirt",
			"https://example.com/index.php?page=post&s=list&tags=6%2Bgirls+skirt&pid=0",
		},
		{
			"term carrying structural characters gets encoded",
			tagSearch(), "a=b",
			"https://example.com/index.php?page=post&s=list&tags=a%3Db&pid=0",
		},
		{
			"pre-encoded input is not double encoded",
			tagSearch(), "6%2Bgirls skirt",
			"https://example.com/index.php?page=post&s=list&tags=6%2Bgirls+skirt&pid=0",
		},
		{
			"path phrase encodes everything",
			pathSearch(), "blue eyes",
			"https://example.com/tag/blue+eyes/1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.g.GenerateGalleryURL(tt.query)
			if err != nil {
				t.Fatalf("GenerateGalleryURL(%q) error: %v", tt.query, err)
			}
			if got != tt.want {
				t.Errorf("GenerateGalleryURL(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestGenerateGalleryURLBadTemplate(t *testing.T) {
	missing := New("broken", "https://example.com/search", "%tags%", "+")
	if _, err := missing.GenerateGalleryURL("skirt"); !errors.Is(err, ErrBadTemplate) {
		t.Errorf("template without phrase: error = %v, want ErrBadTemplate", err)
	}

	empty := New("broken", "https://example.com/search", "", "+")
	if _, err := empty.GenerateGalleryURL("skirt"); !errors.Is(err, ErrBadTemplate) {
		t.Errorf("empty phrase: error = %v, want ErrBadTemplate", err)
	}
}

func TestExampleURL(t *testing.T) {
	got, err := tagSearch().ExampleURL()
	if err != nil {
		t.Fatalf("ExampleURL error: %v", err)
	}
	want := "https://example.com/index.php?page=post&s=list&tags=blue_eyes+blonde_hair&pid=0"
	if got != want {
		t.Errorf("ExampleURL = %q, want %q", got, want)
	}
}

func TestNestedGenerate(t *testing.T) {
	a := tagSearch()
	b := pathSearch()
	available := []*Generator{a, b}

	nest := NewNested("both sites", []Reference{
		{Key: a.Key, Name: a.Name},
		{Key: uuid.New(), Name: b.Name}, // stale key, resolves by name
		{Key: uuid.New(), Name: "gone"}, // dead, skipped
	})

	got := nest.GenerateGalleryURLs("skirt", available)
	want := []string{
		"https://example.com/index.php?page=post&s=list&tags=skirt&pid=0",
		"https://example.com/tag/skirt/1",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GenerateGalleryURLs = %v, want %v", got, want)
	}
}

func TestNestedRepair(t *testing.T) {
	a := tagSearch()
	b := pathSearch()

	nest := NewNested("both sites", []Reference{
		{Key: uuid.New(), Name: a.Name}, // stale key
		{Key: b.Key, Name: "old name"},  // stale name
		{Key: uuid.New(), Name: "gone"}, // dead
	})

	nest.Repair([]*Generator{a, b})

	want := []Reference{
		{Key: a.Key, Name: a.Name},
		{Key: b.Key, Name: b.Name},
	}
	if !reflect.DeepEqual(nest.References, want) {
		t.Errorf("Repair left %v, want %v", nest.References, want)
	}
}
