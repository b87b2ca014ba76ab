package urlclass

import (
	"errors"
	"testing"

	"github.com/sieve-urls/sieve/internal/stringmatch"
)

func TestNextGalleryPageParameter(t *testing.T) {
	u := galleryClass()

	got, err := u.NextGalleryPage("https://example.com/index.php?page=post&pid=40&s=list&tags=skirt")
	if err != nil {
		t.Fatalf("NextGalleryPage error: %v", err)
	}
	want := "https://example.com/index.php?page=post&pid=80&s=list&tags=skirt"
	if got != want {
		t.Errorf("NextGalleryPage = %q, want %q", got, want)
	}
}

func TestNextGalleryPagePathComponent(t *testing.T) {
	u := New("paged search", TypeGallery, "example.com")
	u.PathComponents = []PathComponent{
		{Match: stringmatch.Fixed("tag")},
		{Match: stringmatch.Any()},
		{Match: stringmatch.Flexible(stringmatch.Numeric, "1")},
	}
	u.GalleryIndex = &GalleryIndex{Kind: GalleryIndexPathComponent, PathIndex: 2, Delta: 1}
	u.ExampleURL = "https://example.com/tag/skirt/1"

	got, err := u.NextGalleryPage("https://example.com/tag/skirt/3")
	if err != nil {
		t.Fatalf("NextGalleryPage error: %v", err)
	}
	if got != "https://example.com/tag/skirt/4" {
		t.Errorf("NextGalleryPage = %q, want incremented path component", got)
	}
}

func TestNextGalleryPageSynthesisesDefaultedIndex(t *testing.T) {
	u := galleryClass()

	// pid defaults to 0, so a first-page URL without it still steps to 40.
	got, err := u.NextGalleryPage("https://example.com/index.php?page=post&s=list&tags=skirt")
	if err != nil {
		t.Fatalf("NextGalleryPage error: %v", err)
	}
	want := "https://example.com/index.php?page=post&pid=40&s=list&tags=skirt"
	if got != want {
		t.Errorf("NextGalleryPage = %q, want %q", got, want)
	}
}

func TestNextGalleryPageErrors(t *testing.T) {
	gallery := galleryClass()

	// pid with no default cannot be synthesised, so it must be in the URL.
	required := galleryClass()
	required.Parameters["pid"] = Parameter{Match: stringmatch.Flexible(stringmatch.Numeric, "40")}

	pathIndexed := New("paged", TypeGallery, "example.com")
	pathIndexed.GalleryIndex = &GalleryIndex{Kind: GalleryIndexPathComponent, PathIndex: 5, Delta: 1}

	noIndex := galleryClass()
	noIndex.GalleryIndex = nil

	tests := []struct {
		name  string
		class *URLClass
		url   string
		want  error
	}{
		{"no index configured", noIndex, "https://example.com/index.php?pid=40", ErrCannotGenerateNextPage},
		{"parameter absent", required, "https://example.com/index.php?page=post&s=list", ErrGalleryIndexAbsent},
		{"parameter not integer", gallery, "https://example.com/index.php?pid=first", ErrGalleryIndexNotInteger},
		{"path component absent", pathIndexed, "https://example.com/tag/skirt", ErrGalleryIndexAbsent},
		{"path component not integer", pathIndexed, "https://example.com/a/b/c/d/e/last", ErrGalleryIndexNotInteger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.class.NextGalleryPage(tt.url)
			if !errors.Is(err, tt.want) {
				t.Errorf("NextGalleryPage error = %v, want %v", err, tt.want)
			}
		})
	}
}
