package htmltomarkdown_test

import (
	"testing"

	"github.com/blacker-cz/mangascraper"
	"github.com/blacker-cz/mangascraper/htmltomarkdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ mangascraper.Converter = (*htmltomarkdown.Converter)(nil)

func TestConverter_Convert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want []string
	}{
		{
			name: "paragraph",
			html: `<p>The wind howled across the pass.</p>`,
			want: []string{"The wind howled across the pass."},
		},
		{
			name: "headings",
			html: `<h1>Volume 1</h1><h2>Chapter 3</h2><h3>Part One</h3>`,
			want: []string{"# Volume 1", "## Chapter 3", "### Part One"},
		},
		{
			name: "links",
			html: `<p>Read <a href="https://example.com/novel/4">the next chapter</a> now.</p>`,
			want: []string{"[the next chapter](https://example.com/novel/4)"},
		},
		{
			name: "lists",
			html: `<ul><li>Sword</li><li>Shield</li></ul><ol><li>First</li><li>Second</li></ol>`,
			want: []string{"- Sword", "- Shield", "1. First", "2. Second"},
		},
		{
			name: "emphasis",
			html: `<p><strong>Bold</strong> and <em>italic</em> and <del>struck</del></p>`,
			want: []string{"**Bold**", "*italic*", "~~struck~~"},
		},
		{
			name: "blockquote",
			html: `<blockquote><p>This is a quote.</p></blockquote>`,
			want: []string{"> This is a quote."},
		},
		{
			name: "status table",
			html: `<table><thead><tr><th>Stat</th><th>Value</th></tr></thead><tbody><tr><td>Strength</td><td>12</td></tr></tbody></table>`,
			want: []string{"Stat", "Value", "Strength", "|", "---"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			md, err := htmltomarkdown.NewConverter().Convert(tt.html)

			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, md, want)
			}
		})
	}
}

func TestConverter_Convert_Domain(t *testing.T) {
	t.Parallel()

	conv := htmltomarkdown.NewConverter(htmltomarkdown.WithDomain("https://example.com"))

	md, err := conv.Convert(`<p>Continue to <a href="/novel/2">chapter 2</a>.</p>`)

	require.NoError(t, err)
	assert.Contains(t, md, "[chapter 2](https://example.com/novel/2)")
}

func TestConverter_Convert_Empty(t *testing.T) {
	t.Parallel()

	_, err := htmltomarkdown.NewConverter().Convert("   ")

	require.Error(t, err)
	assert.Equal(t, mangascraper.EINVALID, mangascraper.ErrorCode(err))
}
