package goquery_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blacker-cz/mangascraper"
	"github.com/blacker-cz/mangascraper/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() goquery.Config {
	return goquery.Config{
		ID:                 "demo",
		Name:               "Demo Reader",
		BaseURL:            "https://example.com",
		SearchURL:          "https://example.com/search?q={query}",
		CollectionSelector: ".results a.title",
		ChapterSelector:    ".chapters a",
		PageSelector:       ".reader img",
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*goquery.Config)
		ok     bool
	}{
		{name: "valid", modify: func(*goquery.Config) {}, ok: true},
		{name: "text source needs no page selector", modify: func(c *goquery.Config) { c.Text = true; c.PageSelector = "" }, ok: true},
		{name: "missing ID", modify: func(c *goquery.Config) { c.ID = "" }},
		{name: "relative base URL", modify: func(c *goquery.Config) { c.BaseURL = "/manga" }},
		{name: "missing chapter selector", modify: func(c *goquery.Config) { c.ChapterSelector = "" }},
		{name: "missing page selector", modify: func(c *goquery.Config) { c.PageSelector = "" }},
		{name: "search URL without placeholder", modify: func(c *goquery.Config) { c.SearchURL = "https://example.com/search" }},
		{name: "search without collection selector", modify: func(c *goquery.Config) { c.CollectionSelector = "" }},
		{name: "bad collection pattern", modify: func(c *goquery.Config) { c.CollectionPattern = "([" }},
		{name: "bad chapter order", modify: func(c *goquery.Config) { c.ChapterOrder = "random" }},
		{name: "negative rate", modify: func(c *goquery.Config) { c.RequestsPerSecond = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.modify(&cfg)

			err := cfg.Validate()

			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, mangascraper.EINVALID, mangascraper.ErrorCode(err))
			}
		})
	}
}

func TestParseConfigs(t *testing.T) {
	t.Parallel()

	t.Run("reads sources", func(t *testing.T) {
		t.Parallel()

		configs, err := goquery.ParseConfigs(strings.NewReader(`[
			{"id": "demo", "baseUrl": "https://example.com", "chapterSelector": "a.ch", "pageSelector": "img"},
			{"id": "novels", "baseUrl": "https://novels.example.com", "chapterSelector": "a.ch", "text": true, "chapterOrder": "desc"}
		]`))

		require.NoError(t, err)
		require.Len(t, configs, 2)
		assert.Equal(t, "demo", configs[0].ID)
		assert.True(t, configs[1].Text)
		assert.Equal(t, goquery.OrderDescending, configs[1].ChapterOrder)
	})

	t.Run("rejects duplicate IDs", func(t *testing.T) {
		t.Parallel()

		_, err := goquery.ParseConfigs(strings.NewReader(`[
			{"id": "demo", "baseUrl": "https://example.com", "chapterSelector": "a", "pageSelector": "img"},
			{"id": "demo", "baseUrl": "https://example.org", "chapterSelector": "a", "pageSelector": "img"}
		]`))

		assert.Equal(t, mangascraper.EINVALID, mangascraper.ErrorCode(err))
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		t.Parallel()

		_, err := goquery.ParseConfigs(strings.NewReader(`[{"id": "demo", "chapterSelecter": "a"}]`))

		assert.Equal(t, mangascraper.EINVALID, mangascraper.ErrorCode(err))
	})
}

func TestLoadConfigs(t *testing.T) {
	t.Parallel()

	t.Run("reads file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "sources.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"id": "demo", "baseUrl": "https://example.com", "chapterSelector": "a", "pageSelector": "img"}]`), 0o644))

		configs, err := goquery.LoadConfigs(path)

		require.NoError(t, err)
		assert.Len(t, configs, 1)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := goquery.LoadConfigs(filepath.Join(t.TempDir(), "nope.json"))

		assert.Equal(t, mangascraper.ENOTFOUND, mangascraper.ErrorCode(err))
	})
}
