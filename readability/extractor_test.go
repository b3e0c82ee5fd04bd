package readability_test

import (
	"testing"

	"github.com/blacker-cz/mangascraper"
	"github.com/blacker-cz/mangascraper/readability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_RejectsEmptyInput(t *testing.T) {
	t.Parallel()

	_, err := readability.NewExtractor().Extract("")

	require.Error(t, err)
	assert.Equal(t, mangascraper.EINVALID, mangascraper.ErrorCode(err))
}

func TestExtractor_ExtractsTitle(t *testing.T) {
	t.Parallel()

	html := `<!DOCTYPE html>
<html>
<head><title>Chapter 7</title></head>
<body><article><p>Content</p></article></body>
</html>`

	result, err := readability.NewExtractor().Extract(html)

	require.NoError(t, err)
	assert.Equal(t, "Chapter 7", result.Title)
}

func TestExtractor_RemovesReaderChrome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		chrome string
		text   string
	}{
		{
			name:   "navigation",
			chrome: `<nav><a href="/novel/6">Previous Chapter Link</a><a href="/novel/8">Next Chapter Link</a></nav>`,
			text:   "Previous Chapter Link",
		},
		{
			name:   "footer",
			chrome: `<footer><p>Footer copyright text 2024</p></footer>`,
			text:   "Footer copyright text",
		},
		{
			name:   "sidebar",
			chrome: `<aside class="sidebar"><p>Sidebar chapter list</p></aside>`,
			text:   "Sidebar chapter list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			html := `<!DOCTYPE html>
<html>
<head><title>Test</title></head>
<body>
` + tt.chrome + `
<article><p>This is the main chapter content that should be preserved in the output.</p></article>
</body>
</html>`

			result, err := readability.NewExtractor().Extract(html)

			require.NoError(t, err)
			assert.Contains(t, result.ContentHTML, "main chapter content")
			assert.NotContains(t, result.ContentHTML, tt.text)
		})
	}
}

func TestExtractor_PreservesHeadings(t *testing.T) {
	t.Parallel()

	// go-readability may demote h1 to h2, but heading text is preserved
	html := `<!DOCTYPE html>
<html>
<head><title>Test</title></head>
<body>
<article>
<h1>Chapter One</h1>
<p>Some intro text here.</p>
<h2>Interlude</h2>
<p>More story under the interlude.</p>
</article>
</body>
</html>`

	result, err := readability.NewExtractor().Extract(html)

	require.NoError(t, err)
	assert.Contains(t, result.ContentHTML, "Chapter One")
	assert.Contains(t, result.ContentHTML, "Interlude")
	assert.Contains(t, result.ContentHTML, "<h2")
}

func TestExtractor_PreservesParagraphs(t *testing.T) {
	t.Parallel()

	html := `<!DOCTYPE html>
<html>
<head><title>Test</title></head>
<body>
<article>
<p>First paragraph of the chapter.</p>
<p>Second paragraph of the chapter.</p>
</article>
</body>
</html>`

	result, err := readability.NewExtractor().Extract(html)

	require.NoError(t, err)
	assert.Contains(t, result.ContentHTML, "<p")
}

func TestExtractor_ResolvesRelativeLinks(t *testing.T) {
	t.Parallel()

	html := `<!DOCTYPE html>
<html>
<head><title>Test</title></head>
<body>
<article>
<p>Continue with <a href="/novel/chapter-2">the next chapter</a> when ready.</p>
</article>
</body>
</html>`

	result, err := readability.NewExtractor(readability.WithBaseURL("https://example.com/novel/chapter-1")).Extract(html)

	require.NoError(t, err)
	assert.Contains(t, result.ContentHTML, "https://example.com/novel/chapter-2")
}
