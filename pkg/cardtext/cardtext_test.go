package cardtext

import (
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			"simple paragraph",
			"<p>Bonjour le monde</p>",
			"Bonjour le monde",
		},
		{
			"strips citations",
			"<p>Paris<sup>[1]</sup> is the capital.</p>",
			"Paris is the capital.",
		},
		{
			"strips style and script",
			"<style>.x{}</style><p>Hello</p><script>alert(1)</script>",
			"Hello",
		},
		{
			"block boundaries become spaces",
			"<div>first</div><div>second</div>",
			"first second",
		},
		{
			"collapses whitespace",
			"<p>  a \n\t b  </p>",
			"a b",
		},
		{
			"skips hint elements",
			`<p>Answer</p><span class="hint-text">don't read this</span>`,
			"Answer",
		},
		{
			"skips media elements",
			`<p>Word</p><img src="x.png"><audio src="a.mp3"></audio>`,
			"Word",
		},
		{
			"list items",
			"<ul><li>one</li><li>two</li></ul>",
			"one two",
		},
		{
			"plain text passthrough",
			"just text",
			"just text",
		},
		{
			"empty fragment",
			"",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.html)
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Extract(%q) = %q, want %q", tt.html, got, tt.expected)
			}
		})
	}
}
