package trafilatura_test

import (
	"testing"

	"github.com/blacker-cz/mangascraper"
	"github.com/blacker-cz/mangascraper/trafilatura"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ mangascraper.Extractor = (*trafilatura.Extractor)(nil)

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	t.Run("extracts title from meta tags", func(t *testing.T) {
		t.Parallel()

		html := `<!DOCTYPE html>
<html>
<head>
<title>Chapter 12 - The Long Road</title>
<meta property="og:title" content="Chapter 12: The Long Road">
</head>
<body>
<nav>Navigation here</nav>
<main>
<h1>Chapter 12</h1>
<p>The caravan left the city before dawn, wheels creaking over the frozen road.</p>
</main>
<footer>Footer content</footer>
</body>
</html>`

		result, err := trafilatura.NewExtractor().Extract(html)

		require.NoError(t, err)
		assert.NotEmpty(t, result.Title)
	})

	t.Run("extracts chapter body", func(t *testing.T) {
		t.Parallel()

		html := `<!DOCTYPE html>
<html>
<head><title>Chapter 3</title></head>
<body>
<nav><a href="/">Home</a><a href="/novels">Novels</a></nav>
<article>
<h1>Chapter 3</h1>
<p>She opened the letter slowly, knowing that its contents would change everything.</p>
<p>Outside, the rain had not stopped for three days.</p>
</article>
<aside>Sidebar content</aside>
<footer>Copyright 2024</footer>
</body>
</html>`

		result, err := trafilatura.NewExtractor().Extract(html)

		require.NoError(t, err)
		assert.Contains(t, result.ContentHTML, "opened the letter slowly")
		assert.Contains(t, result.ContentHTML, "rain had not stopped")
	})

	t.Run("removes reader navigation", func(t *testing.T) {
		t.Parallel()

		html := `<!DOCTYPE html>
<html>
<head><title>Test</title></head>
<body>
<nav class="chapter-nav">
<ul>
<li><a href="/novel/1">Previous</a></li>
<li><a href="/novel">Index</a></li>
<li><a href="/novel/3">Next</a></li>
</ul>
</nav>
<main>
<h1>Chapter 2</h1>
<p>This paragraph contains the actual story text we want.</p>
</main>
</body>
</html>`

		result, err := trafilatura.NewExtractor().Extract(html)

		require.NoError(t, err)
		assert.Contains(t, result.ContentHTML, "actual story text we want")
		assert.NotContains(t, result.ContentHTML, "chapter-nav")
	})

	t.Run("removes footer boilerplate", func(t *testing.T) {
		t.Parallel()

		html := `<!DOCTYPE html>
<html>
<head><title>Test</title></head>
<body>
<article>
<h1>Chapter Title</h1>
<p>Chapter body with substantive content for readers.</p>
</article>
<footer>
<p>Copyright 2024 Example Translations</p>
<nav>Privacy | Terms | Contact</nav>
</footer>
</body>
</html>`

		result, err := trafilatura.NewExtractor().Extract(html)

		require.NoError(t, err)
		assert.Contains(t, result.ContentHTML, "substantive content")
		assert.NotContains(t, result.ContentHTML, "Copyright 2024 Example Translations")
	})

	t.Run("handles reader layout with sidebar", func(t *testing.T) {
		t.Parallel()

		html := `<!DOCTYPE html>
<html>
<head>
<title>Prologue | Tower Climber</title>
<meta property="og:title" content="Prologue">
</head>
<body>
<nav class="navbar">
<a href="/">Tower Climber</a>
<a href="/chapters">Chapters</a>
<a href="/forum">Forum</a>
</nav>
<div class="sidebar">
<ul>
<li><a href="/chapters/prologue">Prologue</a></li>
<li><a href="/chapters/1">Chapter 1</a></li>
</ul>
</div>
<main class="reader">
<article>
<h1>Prologue</h1>
<p>Welcome to the tower. Nobody who entered it had ever returned the same.</p>
<h2>The First Floor</h2>
<p>Before you begin, make sure you have your sword sharpened.</p>
</article>
</main>
<footer class="footer">
<p>Translated by volunteers</p>
</footer>
</body>
</html>`

		result, err := trafilatura.NewExtractor().Extract(html)

		require.NoError(t, err)
		assert.Contains(t, result.ContentHTML, "Welcome to the tower")
		assert.Contains(t, result.ContentHTML, "The First Floor")
	})

	t.Run("returns error for empty input", func(t *testing.T) {
		t.Parallel()

		_, err := trafilatura.NewExtractor().Extract("  ")

		assert.Equal(t, mangascraper.EINVALID, mangascraper.ErrorCode(err))
	})

	t.Run("handles minimal valid HTML", func(t *testing.T) {
		t.Parallel()

		html := `<html><body><p>Simple content</p></body></html>`

		result, err := trafilatura.NewExtractor(trafilatura.WithImages()).Extract(html)

		require.NoError(t, err)
		assert.Contains(t, result.ContentHTML, "Simple content")
	})
}
