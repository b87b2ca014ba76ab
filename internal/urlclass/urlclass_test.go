package urlclass

import (
	"strings"
	"testing"

	"github.com/sieve-urls/sieve/internal/stringmatch"
)

func strptr(s string) *string { return &s }

// postClass models a booru-style post page: /post/show/<digits> on
// example.com, with an optional lang parameter.
func postClass() *URLClass {
	u := New("example file page", TypePost, "example.com")
	u.PathComponents = []PathComponent{
		{Match: stringmatch.Fixed("post")},
		{Match: stringmatch.Fixed("show")},
		{Match: stringmatch.Flexible(stringmatch.Numeric, "123456")},
	}
	u.Parameters = map[string]Parameter{
		"lang": {Match: stringmatch.Flexible(stringmatch.Alpha, "en"), Default: strptr("en")},
	}
	u.ShouldBeAssociatedWithFiles = true
	u.ExampleURL = "https://example.com/post/show/123456"
	return u
}

// galleryClass models a tag search: /index.php?page=post&s=list&tags=...&pid=N.
func galleryClass() *URLClass {
	u := New("example gallery page", TypeGallery, "example.com")
	u.PathComponents = []PathComponent{
		{Match: stringmatch.Fixed("index.php")},
	}
	u.Parameters = map[string]Parameter{
		"page": {Match: stringmatch.Fixed("post")},
		"s":    {Match: stringmatch.Fixed("list")},
		"tags": {Match: stringmatch.Any()},
		"pid":  {Match: stringmatch.Flexible(stringmatch.Numeric, "40"), Default: strptr("0")},
	}
	u.GalleryIndex = &GalleryIndex{Kind: GalleryIndexParameter, ParameterName: "pid", Delta: 40}
	u.ExampleURL = "https://example.com/index.php?page=post&s=list&tags=blue_eyes"
	return u
}

func TestTest(t *testing.T) {
	tests := []struct {
		name  string
		class *URLClass
		url   string
		ok    bool
	}{
		{"exact match", postClass(), "https://example.com/post/show/123456", true},
		{"www is forgiven", postClass(), "https://www.example.com/post/show/123456", true},
		{"other scheme still matches", postClass(), "http://example.com/post/show/123456", true},
		{"wrong domain", postClass(), "https://other.com/post/show/123456", false},
		{"subdomain rejected without flag", postClass(), "https://img.example.com/post/show/123456", false},
		{"wrong fixed component", postClass(), "https://example.com/post/view/123456", false},
		{"non-numeric id", postClass(), "https://example.com/post/show/abc", false},
		{"missing required component", postClass(), "https://example.com/post/show", false},
		{"extra path components ignored", postClass(), "https://example.com/post/show/123456/extra", true},
		{"defaulted parameter may be absent", postClass(), "https://example.com/post/show/123456", true},
		{"declared parameter must match", postClass(), "https://example.com/post/show/123456?lang=123", false},
		{"undeclared parameters ignored", postClass(), "https://example.com/post/show/123456?utm=x", true},
		{"valueless parameter ignored by default", postClass(), "https://example.com/post/show/123456?login", true},
		{"gallery requires its parameters", galleryClass(), "https://example.com/index.php?page=post&s=list&tags=skirt", true},
		{"gallery missing tags", galleryClass(), "https://example.com/index.php?page=post&s=list", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.class.Test(tt.url)
			if tt.ok && err != nil {
				t.Errorf("Test(%q) = %v, want match", tt.url, err)
			}
			if !tt.ok && err == nil {
				t.Errorf("Test(%q) matched, want failure", tt.url)
			}
		})
	}
}

func TestTestMatchSubdomains(t *testing.T) {
	u := postClass()
	u.MatchSubdomains = true

	if !u.Matches("https://img3.example.com/post/show/123456") {
		t.Error("subdomain should match with MatchSubdomains")
	}
	if !u.Matches("https://example.com/post/show/123456") {
		t.Error("apex should still match with MatchSubdomains")
	}
	if u.Matches("https://notexample.com/post/show/123456") {
		t.Error("suffix lookalike must not match")
	}
}

func TestTestSingleValueParams(t *testing.T) {
	u := galleryClass()
	u.AllowSingleValueParams = true
	u.SingleValueMatch = stringmatch.Flexible(stringmatch.Alpha, "list")

	if !u.Matches("https://example.com/index.php?page=post&s=list&tags=x&json") {
		t.Error("allowed valueless parameter should match")
	}
	if u.Matches("https://example.com/index.php?page=post&s=list&tags=x&123") {
		t.Error("valueless parameter failing its matcher must not match")
	}
	if u.Matches("https://example.com/index.php?page=post&s=list&tags=x") {
		t.Error("class expecting a valueless parameter must not match without one")
	}
}

func TestTestErrorNamesTheRule(t *testing.T) {
	err := postClass().Test("https://example.com/post/view/123456")
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(err.Error(), "path component 2") {
		t.Errorf("error %q should locate the failing component", err)
	}
}

func TestPredicates(t *testing.T) {
	post := postClass()
	gallery := galleryClass()

	if !post.IsPost() || post.IsGallery() {
		t.Error("post class type predicates wrong")
	}
	if !gallery.IsGallery() || gallery.IsPost() {
		t.Error("gallery class type predicates wrong")
	}
	if !post.IsParsable() || !gallery.IsParsable() {
		t.Error("post and gallery pages are parsable")
	}

	file := New("example direct file", TypeFile, "cdn.example.com")
	if file.IsParsable() {
		t.Error("file URLs are not parsable")
	}
	if !file.RefersToOneFile() {
		t.Error("a file URL is exactly one file")
	}

	if !gallery.CanReferToMultipleFiles() {
		t.Error("gallery pages cover multiple files")
	}
	if post.CanReferToMultipleFiles() {
		t.Error("plain post page covers one file")
	}
	if !post.RefersToOneFile() {
		t.Error("plain post page covers exactly one file")
	}

	multi := postClass()
	multi.CanProduceMultipleFiles = true
	if !multi.CanReferToMultipleFiles() || multi.RefersToOneFile() {
		t.Error("multi-file post predicates wrong")
	}

	if !gallery.CanGenerateNextGalleryPage() {
		t.Error("gallery with index can paginate")
	}
	gallery.GalleryIndex = nil
	if gallery.CanGenerateNextGalleryPage() {
		t.Error("gallery without index cannot paginate")
	}
}

func TestKeyManagement(t *testing.T) {
	u := postClass()
	orig := u.Key

	u.RegenerateKey()
	if u.Key == orig {
		t.Error("RegenerateKey should change the key")
	}

	u.SetKey(orig)
	if u.Key != orig {
		t.Error("SetKey should restore the key")
	}
}

func TestUsesAPIURL(t *testing.T) {
	u := postClass()
	if u.UsesAPIURL() {
		t.Error("identity converter means no api url")
	}

	u.APILookupConverter = stringmatch.StringConverter{Conversions: []stringmatch.Conversion{
		{Type: stringmatch.ConvRegexSub, Text: `/post/show/(\d+)`, Replacement: "/api/post/$1.json"},
	}}
	if !u.UsesAPIURL() {
		t.Error("real converter means api url")
	}
}
