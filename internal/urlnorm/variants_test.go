package urlnorm

import "testing"

func TestSchemeVariant(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"http://example.com/x", "https://example.com/x"},
		{"https://example.com/x", "http://example.com/x"},
		{"file:///tmp/x", ""},
		{"example.com/x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SchemeVariant(tt.input); got != tt.want {
				t.Errorf("SchemeVariant(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestWWWVariant(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://example.com/x", "https://www.example.com/x"},
		{"https://www.example.com/x", "https://example.com/x"},
		{"https://www2.example.com/x", "https://example.com/x"},
		{"https://localhost/x", ""},
		{"https://192.168.1.1/x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := WWWVariant(tt.input); got != tt.want {
				t.Errorf("WWWVariant(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
