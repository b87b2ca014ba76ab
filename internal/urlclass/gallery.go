package urlclass

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sieve-urls/sieve/internal/urlnorm"
)

var (
	// ErrCannotGenerateNextPage means the class has no gallery index
	// configured (or is not a gallery class at all).
	ErrCannotGenerateNextPage = errors.New("url class cannot generate a next gallery page")

	// ErrGalleryIndexAbsent means the configured index position does not
	// exist in the given URL.
	ErrGalleryIndexAbsent = errors.New("gallery page index not found in url")

	// ErrGalleryIndexNotInteger means the index position exists but does
	// not hold a whole number.
	ErrGalleryIndexNotInteger = errors.New("gallery page index is not an integer")
)

// NextGalleryPage computes the URL of the following results page by adding
// the configured delta to the page index, wherever the class says it lives.
// The URL is normalised first, so a defaulted page parameter the caller left
// off still exists to be stepped. Everything else is carried over unchanged.
func (u *URLClass) NextGalleryPage(url string) (string, error) {
	if !u.CanGenerateNextGalleryPage() {
		return "", fmt.Errorf("%w: %q", ErrCannotGenerateNextPage, u.Name)
	}

	normalised, err := u.Normalise(url)
	if err != nil {
		return "", err
	}

	p := urlnorm.Parse(normalised)
	idx := u.GalleryIndex

	switch idx.Kind {
	case GalleryIndexPathComponent:
		components := urlnorm.PathComponents(p.Path)
		if idx.PathIndex >= len(components) {
			return "", fmt.Errorf("%w: path %q has no component %d", ErrGalleryIndexAbsent, p.Path, idx.PathIndex)
		}
		page, err := strconv.Atoi(components[idx.PathIndex])
		if err != nil {
			return "", fmt.Errorf("%w: path component %q", ErrGalleryIndexNotInteger, components[idx.PathIndex])
		}
		components[idx.PathIndex] = strconv.Itoa(page + idx.Delta)
		p.Path = "/" + strings.Join(components, "/")

	case GalleryIndexParameter:
		q := urlnorm.ParseQuery(p.Query)
		value, ok := q.Dict[idx.ParameterName]
		if !ok {
			return "", fmt.Errorf("%w: no %q parameter", ErrGalleryIndexAbsent, idx.ParameterName)
		}
		page, err := strconv.Atoi(value)
		if err != nil {
			return "", fmt.Errorf("%w: parameter %q holds %q", ErrGalleryIndexNotInteger, idx.ParameterName, value)
		}
		q.Dict[idx.ParameterName] = strconv.Itoa(page + idx.Delta)
		p.Query = q.Encode()

	default:
		return "", fmt.Errorf("%w: unknown index kind %q", ErrCannotGenerateNextPage, idx.Kind)
	}

	return p.String(), nil
}
