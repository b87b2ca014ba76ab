package urlnorm

import (
	"reflect"
	"testing"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantDict    map[string]string
		wantSingles []string
		wantOrder   []OrderToken
	}{
		{
			name:      "simple pairs keep order",
			input:     "b=2&a=1",
			wantDict:  map[string]string{"b": "2", "a": "1"},
			wantOrder: []OrderToken{{Key: "b"}, {Key: "a"}},
		},
		{
			name:        "single value params hold their slot",
			input:       "page=2&login",
			wantDict:    map[string]string{"page": "2"},
			wantSingles: []string{"login"},
			wantOrder:   []OrderToken{{Key: "page"}, {SingleValue: true}},
		},
		{
			name:      "duplicate key keeps last value and drops ordering",
			input:     "a=1&b=2&a=3",
			wantDict:  map[string]string{"a": "3", "b": "2"},
			wantOrder: nil,
		},
		{
			name:      "empty tokens dropped",
			input:     "a=1&&b=2&",
			wantDict:  map[string]string{"a": "1", "b": "2"},
			wantOrder: []OrderToken{{Key: "a"}, {Key: "b"}},
		},
		{
			name:      "reversible escapes decode",
			input:     "tags=blue%20eyes",
			wantDict:  map[string]string{"tags": "blue eyes"},
			wantOrder: []OrderToken{{Key: "tags"}},
		},
		{
			name:        "reversible escapes decode in single value params",
			input:       "blue%20eyes",
			wantDict:    map[string]string{},
			wantSingles: []string{"blue eyes"},
			wantOrder:   []OrderToken{{SingleValue: true}},
		},
		{
			name:        "ambiguous single value params stay encoded",
			input:       "6%2Bgirls",
			wantDict:    map[string]string{},
			wantSingles: []string{"6%2Bgirls"},
			wantOrder:   []OrderToken{{SingleValue: true}},
		},
		{
			name:      "plus-ambiguous escapes stay encoded",
			input:     "tags=6%2Bgirls+skirt",
			wantDict:  map[string]string{"tags": "6%2Bgirls+skirt"},
			wantOrder: []OrderToken{{Key: "tags"}},
		},
		{
			name:      "empty query",
			input:     "",
			wantDict:  map[string]string{},
			wantOrder: []OrderToken{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseQuery(tt.input)
			if !reflect.DeepEqual(got.Dict, tt.wantDict) {
				t.Errorf("Dict = %v, want %v", got.Dict, tt.wantDict)
			}
			if !reflect.DeepEqual(got.SingleValueParams, tt.wantSingles) {
				t.Errorf("SingleValueParams = %v, want %v", got.SingleValueParams, tt.wantSingles)
			}
			if !reflect.DeepEqual(got.ParamOrder, tt.wantOrder) {
				t.Errorf("ParamOrder = %v, want %v", got.ParamOrder, tt.wantOrder)
			}
		})
	}
}

func TestQueryEncode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"preserves original order", "b=2&a=1&z", "b=2&a=1&z"},
		{"duplicate keys re-encode alphabetically", "b=2&a=1&b=3", "a=1&b=3"},
		{"ambiguous plus survives round trip", "tags=6%2Bgirls+skirt", "tags=6%2Bgirls+skirt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseQuery(tt.input).Encode(); got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQueryEncodeCanonical(t *testing.T) {
	q := ParseQuery("z=26&a=1&mode&login")
	want := "a=1&z=26&login&mode"
	if got := q.EncodeCanonical(); got != want {
		t.Errorf("EncodeCanonical() = %q, want %q", got, want)
	}
}

func TestDecodeReversible(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"blue%20eyes", "blue eyes"},
		{"plain", "plain"},
		{"6%2Bgirls+skirt", "6%2Bgirls+skirt"}, // decodes to a '+', structural
		{"a%3Db", "a%3Db"},                     // decodes to '=', structural
		{"a%2Fb", "a%2Fb"},                     // decodes to '/', structural
		{"100%", "100%"},                       // malformed escape
		{"%ZZ", "%ZZ"},                         // malformed escape
		{"100%25", "100%"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := DecodeReversible(tt.input); got != tt.want {
				t.Errorf("DecodeReversible(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPercentEncode(t *testing.T) {
	tests := []struct {
		input string
		safe  string
		want  string
	}{
		{"blue eyes", "/", "blue%20eyes"},
		{"a/b", "/", "a/b"},
		{"a/b", "", "a%2Fb"},
		{"6+girls", "", "6%2Bgirls"},
		{"safe-._~", "", "safe-._~"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := PercentEncode(tt.input, tt.safe); got != tt.want {
				t.Errorf("PercentEncode(%q, %q) = %q, want %q", tt.input, tt.safe, got, tt.want)
			}
		})
	}
}
