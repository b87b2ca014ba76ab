package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/sieve-urls/sieve/internal/gug"
	"github.com/sieve-urls/sieve/internal/pageparser"
	"github.com/sieve-urls/sieve/internal/stringmatch"
	"github.com/sieve-urls/sieve/internal/urlclass"
)

func strptr(s string) *string { return &s }

func postClass() *urlclass.URLClass {
	u := urlclass.New("example file page", urlclass.TypePost, "example.com")
	u.PathComponents = []urlclass.PathComponent{
		{Match: stringmatch.Fixed("post")},
		{Match: stringmatch.Fixed("show")},
		{Match: stringmatch.Flexible(stringmatch.Numeric, "123456")},
	}
	u.ShouldBeAssociatedWithFiles = true
	u.ExampleURL = "https://example.com/post/show/123456"
	return u
}

func galleryClass() *urlclass.URLClass {
	u := urlclass.New("example gallery page", urlclass.TypeGallery, "example.com")
	u.PathComponents = []urlclass.PathComponent{
		{Match: stringmatch.Fixed("index.php")},
	}
	u.Parameters = map[string]urlclass.Parameter{
		"page": {Match: stringmatch.Fixed("post")},
		"s":    {Match: stringmatch.Fixed("list")},
		"tags": {Match: stringmatch.Any()},
		"pid":  {Match: stringmatch.Flexible(stringmatch.Numeric, "40"), Default: strptr("0")},
	}
	u.GalleryIndex = &urlclass.GalleryIndex{Kind: urlclass.GalleryIndexParameter, ParameterName: "pid", Delta: 40}
	u.ExampleURL = "https://example.com/index.php?page=post&s=list&tags=blue_eyes"
	return u
}

// apiClass redirects post pages to a JSON endpoint that apiTargetClass
// matches.
func apiClass() *urlclass.URLClass {
	u := postClass()
	u.Name = "example file page (api redirect)"
	u.APILookupConverter = stringmatch.StringConverter{Conversions: []stringmatch.Conversion{
		{Type: stringmatch.ConvRegexSub, Text: `example\.com/post/show/(\d+).*`, Replacement: "example.com/api/post/$1.json"},
	}}
	return u
}

func apiTargetClass() *urlclass.URLClass {
	u := urlclass.New("example api post", urlclass.TypePost, "example.com")
	u.PathComponents = []urlclass.PathComponent{
		{Match: stringmatch.Fixed("api")},
		{Match: stringmatch.Fixed("post")},
		{Match: stringmatch.Regex(`^\d+\.json$`, "123456.json")},
	}
	u.ShouldBeAssociatedWithFiles = true
	u.ExampleURL = "https://example.com/api/post/123456.json"
	return u
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(Config{NormalisationCacheCapacity: 128})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestGetURLClassPrefersMostSpecific(t *testing.T) {
	r := newTestRegistry(t)

	broad := urlclass.New("example anything", urlclass.TypeGallery, "example.com")
	broad.ExampleURL = "https://example.com/"

	r.SetURLClasses([]*urlclass.URLClass{broad, postClass()})

	got, ok := r.GetURLClass("https://example.com/post/show/123456")
	if !ok {
		t.Fatal("expected a match")
	}
	if got.Name != "example file page" {
		t.Errorf("matched %q, want the narrower class", got.Name)
	}

	got, ok = r.GetURLClass("https://example.com/somewhere/else")
	if !ok || got.Name != "example anything" {
		t.Errorf("fallthrough should hit the broad class, got %v", got)
	}

	if _, ok := r.GetURLClass("https://other.com/post/show/1"); ok {
		t.Error("unrelated domain should not match")
	}
}

func TestGetURLClassMatchesAcrossSubdomains(t *testing.T) {
	r := newTestRegistry(t)
	u := postClass()
	u.MatchSubdomains = true
	r.SetURLClasses([]*urlclass.URLClass{u})

	// The bucket key is the registrable domain, so a deep subdomain still
	// finds the rule.
	if _, ok := r.GetURLClass("https://img3.example.com/post/show/123456"); !ok {
		t.Error("subdomain URL should reach the class via its registrable domain")
	}
}

func TestNormaliseURL(t *testing.T) {
	r := newTestRegistry(t)
	r.SetURLClasses([]*urlclass.URLClass{postClass()})

	got, err := r.NormaliseURL("http://www.example.com/post/show/123456?utm=x#frag")
	if err != nil {
		t.Fatalf("NormaliseURL error: %v", err)
	}
	if got != "https://example.com/post/show/123456" {
		t.Errorf("NormaliseURL = %q", got)
	}

	// No class: generic cleanup only.
	got, err = r.NormaliseURL("https://unknown.com/page?b=2&a=1#frag")
	if err != nil {
		t.Fatalf("NormaliseURL error: %v", err)
	}
	if got != "https://unknown.com/page?a=1&b=2" {
		t.Errorf("generic NormaliseURL = %q", got)
	}
}

func TestNormaliseURLCacheInvalidatedOnMutation(t *testing.T) {
	r := newTestRegistry(t)
	const url = "http://example.com/post/show/123456"

	before, err := r.NormaliseURL(url)
	if err != nil {
		t.Fatalf("NormaliseURL error: %v", err)
	}
	if before != "http://example.com/post/show/123456" {
		t.Errorf("classless NormaliseURL = %q", before)
	}

	r.SetURLClasses([]*urlclass.URLClass{postClass()})

	after, err := r.NormaliseURL(url)
	if err != nil {
		t.Fatalf("NormaliseURL error: %v", err)
	}
	if after != "https://example.com/post/show/123456" {
		t.Errorf("post-mutation NormaliseURL = %q, stale cache?", after)
	}
}

func TestGetURLToFetchAndParser(t *testing.T) {
	r := newTestRegistry(t)

	api := apiClass()
	target := apiTargetClass()
	r.SetURLClasses([]*urlclass.URLClass{api, target})

	parser := pageparser.New("example api parser", []string{"https://example.com/api/post/123456.json"})
	r.SetParsers([]*pageparser.Parser{parser})

	urlToFetch, gotParser, err := r.GetURLToFetchAndParser("http://www.example.com/post/show/654321")
	if err != nil {
		t.Fatalf("GetURLToFetchAndParser error: %v", err)
	}
	if urlToFetch != "https://example.com/api/post/654321.json" {
		t.Errorf("urlToFetch = %q", urlToFetch)
	}
	if gotParser.Key != parser.Key {
		t.Errorf("parser = %q, want %q", gotParser.Name, parser.Name)
	}
}

func TestGetURLToFetchAndParserErrors(t *testing.T) {
	r := newTestRegistry(t)

	if _, _, err := r.GetURLToFetchAndParser("https://example.com/post/show/1"); !errors.Is(err, ErrNoURLClass) {
		t.Errorf("empty registry: error = %v, want ErrNoURLClass", err)
	}

	// Class present, no parser linked.
	r.SetURLClasses([]*urlclass.URLClass{postClass()})
	if _, _, err := r.GetURLToFetchAndParser("https://example.com/post/show/1"); !errors.Is(err, ErrNoParser) {
		t.Errorf("unlinked class: error = %v, want ErrNoParser", err)
	}
}

func TestGetURLToFetchAndParserSelfLoop(t *testing.T) {
	r := newTestRegistry(t)

	// The api conversion output still matches the same class.
	u := postClass()
	u.APILookupConverter = stringmatch.StringConverter{Conversions: []stringmatch.Conversion{
		{Type: stringmatch.ConvAppend, Text: ""},
		{Type: stringmatch.ConvRegexSub, Text: `show/(\d+)`, Replacement: "show/$1"},
	}}
	r.SetURLClasses([]*urlclass.URLClass{u})

	_, _, err := r.GetURLToFetchAndParser("https://example.com/post/show/1")
	if !errors.Is(err, ErrAPILoop) {
		t.Fatalf("error = %v, want ErrAPILoop", err)
	}
	if !strings.Contains(err.Error(), "itself") {
		t.Errorf("self-loop message should say so: %v", err)
	}
}

func TestGetURLToFetchAndParserTwoClassCycle(t *testing.T) {
	r := newTestRegistry(t)

	a := urlclass.New("cycle a", urlclass.TypePost, "example.com")
	a.PathComponents = []urlclass.PathComponent{{Match: stringmatch.Fixed("a")}}
	a.ShouldBeAssociatedWithFiles = true
	a.ExampleURL = "https://example.com/a"
	a.APILookupConverter = stringmatch.StringConverter{Conversions: []stringmatch.Conversion{
		{Type: stringmatch.ConvRegexSub, Text: `/a$`, Replacement: "/b"},
	}}

	b := urlclass.New("cycle b", urlclass.TypePost, "example.com")
	b.PathComponents = []urlclass.PathComponent{{Match: stringmatch.Fixed("b")}}
	b.ShouldBeAssociatedWithFiles = true
	b.ExampleURL = "https://example.com/b"
	b.APILookupConverter = stringmatch.StringConverter{Conversions: []stringmatch.Conversion{
		{Type: stringmatch.ConvRegexSub, Text: `/b$`, Replacement: "/a"},
	}}

	r.SetURLClasses([]*urlclass.URLClass{a, b})

	_, _, err := r.GetURLToFetchAndParser("https://example.com/a")
	if !errors.Is(err, ErrAPILoop) {
		t.Fatalf("error = %v, want ErrAPILoop", err)
	}
	if !strings.Contains(err.Error(), "each other") {
		t.Errorf("two-class cycle message should say so: %v", err)
	}
}

func TestGetURLParseCapability(t *testing.T) {
	r := newTestRegistry(t)

	cap := r.GetURLParseCapability("https://example.com/post/show/1")
	if cap.CanParse || cap.CannotParseReason == "" {
		t.Error("unknown URL should be unparsable with a reason")
	}

	file := urlclass.New("example direct file", urlclass.TypeFile, "cdn.example.com")
	file.ExampleURL = "https://cdn.example.com/full/abc.jpg"
	r.SetURLClasses([]*urlclass.URLClass{file, postClass()})

	if cap := r.GetURLParseCapability("https://cdn.example.com/anything"); !cap.CanParse {
		t.Errorf("file URLs need no parser: %+v", cap)
	}

	parser := pageparser.New("example post parser", []string{"https://example.com/post/show/123456"})
	r.SetParsers([]*pageparser.Parser{parser})

	if cap := r.GetURLParseCapability("https://example.com/post/show/1"); !cap.CanParse {
		t.Errorf("linked post URL should be parsable: %+v", cap)
	}
}

func TestLinkInference(t *testing.T) {
	r := newTestRegistry(t)

	api := apiClass()
	target := apiTargetClass()
	gallery := galleryClass()
	r.SetURLClasses([]*urlclass.URLClass{api, target, gallery})

	postParser := pageparser.New("example api parser", []string{"https://example.com/api/post/123456.json"})
	galleryParser := pageparser.New("example gallery parser", []string{"https://example.com/index.php?page=post&s=list&tags=x"})
	r.SetParsers([]*pageparser.Parser{postParser, galleryParser})

	links := r.GetURLClassKeysToParserKeys()

	if links[target.Key] != postParser.Key {
		t.Error("api target class should link to the api parser")
	}
	if links[gallery.Key] != galleryParser.Key {
		t.Error("gallery class should link to the gallery parser")
	}
	if _, ok := links[api.Key]; ok {
		t.Error("the redirecting half of an api pair must not get a parser")
	}
}

func TestLinkInferencePreservesExistingLinks(t *testing.T) {
	r := newTestRegistry(t)

	gallery := galleryClass()
	r.SetURLClasses([]*urlclass.URLClass{gallery})

	first := pageparser.New("a first parser", []string{"https://example.com/index.php?page=post&s=list&tags=x"})
	r.SetParsers([]*pageparser.Parser{first})

	second := pageparser.New("b second parser", []string{"https://example.com/index.php?page=post&s=list&tags=y"})
	r.AddParsers([]*pageparser.Parser{second})

	if got := r.GetURLClassKeysToParserKeys()[gallery.Key]; got != first.Key {
		t.Error("an established link must not be stolen by a new parser")
	}
}

func TestSetParsersCleansOrphanLinks(t *testing.T) {
	r := newTestRegistry(t)
	gallery := galleryClass()
	r.SetURLClasses([]*urlclass.URLClass{gallery})

	parser := pageparser.New("example gallery parser", []string{"https://example.com/index.php?page=post&s=list&tags=x"})
	r.SetParsers([]*pageparser.Parser{parser})
	if len(r.GetURLClassKeysToParserKeys()) != 1 {
		t.Fatal("expected one link")
	}

	r.SetParsers(nil)
	if len(r.GetURLClassKeysToParserKeys()) != 0 {
		t.Error("links to removed parsers should dissolve")
	}
}

func TestAddURLClassesDedupsNames(t *testing.T) {
	r := newTestRegistry(t)
	r.SetURLClasses([]*urlclass.URLClass{postClass()})

	dup := postClass()
	r.AddURLClasses([]*urlclass.URLClass{dup})

	names := map[string]bool{}
	for _, u := range r.GetURLClasses() {
		if names[u.Name] {
			t.Fatalf("duplicate name %q survived", u.Name)
		}
		names[u.Name] = true
	}
	if !names["example file page (1)"] {
		t.Error("expected the added class to get a (1) suffix")
	}
}

func TestDirtyTracking(t *testing.T) {
	r := newTestRegistry(t)
	if r.IsDirty() {
		t.Error("fresh registry should be clean")
	}

	r.SetURLClasses([]*urlclass.URLClass{postClass()})
	if !r.IsDirty() {
		t.Error("mutation should mark dirty")
	}

	r.SetClean()
	if r.IsDirty() {
		t.Error("SetClean should clear the flag")
	}

	snap := r.Export()
	r2 := newTestRegistry(t)
	r2.Install(snap)
	if r2.IsDirty() {
		t.Error("installing a snapshot is not a change")
	}
}

func TestInstallExportRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	r.SetURLClasses([]*urlclass.URLClass{postClass(), galleryClass()})

	parser := pageparser.New("example gallery parser", []string{"https://example.com/index.php?page=post&s=list&tags=x"})
	r.SetParsers([]*pageparser.Parser{parser})

	g := gug.New("example tag search", "https://example.com/index.php?page=post&s=list&tags=%tags%&pid=0", "%tags%", "+")
	r.SetGUGs([]*gug.Generator{g}, nil)
	if err := r.SetDefaultGUG(g.Key); err != nil {
		t.Fatalf("SetDefaultGUG: %v", err)
	}

	r2 := newTestRegistry(t)
	r2.Install(r.Export())

	if len(r2.GetURLClasses()) != 2 || len(r2.GetParsers()) != 1 || len(r2.GetGUGs()) != 1 {
		t.Fatal("snapshot did not carry the rule set")
	}
	if _, ok := r2.GetURLClass("https://example.com/post/show/1"); !ok {
		t.Error("installed registry should classify")
	}
	def, ok := r2.GetDefaultGUG()
	if !ok || def.Key != g.Key {
		t.Error("default generator should survive the round trip")
	}
	if len(r2.GetURLClassKeysToParserKeys()) != len(r.GetURLClassKeysToParserKeys()) {
		t.Error("links should survive the round trip")
	}
}

func TestGetSearchURLs(t *testing.T) {
	r := newTestRegistry(t)
	r.SetURLClasses([]*urlclass.URLClass{postClass()})

	urls := r.GetSearchURLs("http://www.example.com/post/show/123456")

	want := []string{
		"https://example.com/post/show/123456",
		"http://example.com/post/show/123456",
		"https://www.example.com/post/show/123456",
		"https://example.com/post/show/123456/",
	}
	set := map[string]bool{}
	for _, u := range urls {
		set[u] = true
	}
	for _, w := range want {
		if !set[w] {
			t.Errorf("GetSearchURLs missing %q in %v", w, urls)
		}
	}
}

func TestRegistryGUGOperations(t *testing.T) {
	r := newTestRegistry(t)

	g := gug.New("example tag search", "https://example.com/index.php?page=post&s=list&tags=%tags%&pid=0", "%tags%", "+")
	g.InitialSearchText = "search tags"
	other := gug.New("example path search", "https://example.com/tag/%tags%/1", "%tags%", "+")
	r.SetGUGs([]*gug.Generator{g, other}, nil)

	nest := gug.NewNested("example everywhere", []gug.Reference{
		{Key: g.Key, Name: g.Name},
		{Key: other.Key, Name: other.Name},
	})
	r.SetGUGs([]*gug.Generator{g, other}, []*gug.NestedGenerator{nest})

	if _, ok := r.GetGUG(g.Key.String()); !ok {
		t.Error("lookup by key string should work")
	}
	if _, ok := r.GetGUG("example tag search"); !ok {
		t.Error("lookup by name should work")
	}
	if got := r.GetInitialSearchText("example tag search"); got != "search tags" {
		t.Errorf("GetInitialSearchText = %q", got)
	}

	urls, err := r.GenerateGalleryURLs("example everywhere", "skirt")
	if err != nil {
		t.Fatalf("GenerateGalleryURLs error: %v", err)
	}
	if len(urls) != 2 {
		t.Errorf("nested generation produced %v", urls)
	}

	urls, err = r.GenerateGalleryURLs("example tag search", "skirt")
	if err != nil || len(urls) != 1 {
		t.Errorf("single generation produced %v, %v", urls, err)
	}

	if _, err := r.GenerateGalleryURLs("nope", "skirt"); err == nil {
		t.Error("unknown generator should error")
	}
}
