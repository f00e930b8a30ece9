package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "basic trim",
			input: "  hello  ",
			want:  "hello",
		},
		{
			name:  "multiple spaces",
			input: "hello    world",
			want:  "hello world",
		},
		{
			name:  "tabs and newlines",
			input: "hello\t\nworld",
			want:  "hello world",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   ",
			want:  "",
		},
		{
			name:  "preserve special characters",
			input: " Spin Studio™ ",
			want:  "Spin Studio™",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeNameForComparison(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "convert to lowercase",
			input: "Main Pool",
			want:  "main pool",
		},
		{
			name:  "collapse multiple spaces",
			input: "Main   Pool",
			want:  "main pool",
		},
		{
			name:  "trim and lowercase",
			input: "  GROUP  Room  ",
			want:  "group room",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeNameForComparison(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeNameForComparison(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
