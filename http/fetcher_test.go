package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blacker-cz/mangascraper"
	mshttp "github.com/blacker-cz/mangascraper/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("returns HTML body from server", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body>Chapter list</body></html>"))
		}))
		defer server.Close()

		fetcher := mshttp.NewFetcher()
		defer fetcher.Close()

		html, err := fetcher.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "<html><body>Chapter list</body></html>", html)
	})

	t.Run("respects custom timeout option", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			_, _ = w.Write([]byte("response"))
		}))
		defer server.Close()

		fetcher := mshttp.NewFetcher(mshttp.WithTimeout(10 * time.Millisecond))

		_, err := fetcher.Fetch(context.Background(), server.URL)
		require.Error(t, err)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("response"))
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := mshttp.NewFetcher().Fetch(ctx, server.URL)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("returns fetch error for non-200 status codes", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer server.Close()

		_, err := mshttp.NewFetcher().Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.Equal(t, mangascraper.EFETCH, mangascraper.ErrorCode(err))
		assert.Contains(t, mangascraper.ErrorMessage(err), "404")
	})
}

func TestFetcher_FetchBytes(t *testing.T) {
	t.Parallel()

	t.Run("sends configured headers", func(t *testing.T) {
		t.Parallel()

		var gotUA, gotReferer string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			gotReferer = r.Header.Get("Referer")
			_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
		}))
		defer server.Close()

		fetcher := mshttp.NewFetcher(
			mshttp.WithUserAgent("reader/1.0"),
			mshttp.WithReferer("https://reader.example.com/"),
		)

		data, err := fetcher.FetchBytes(context.Background(), server.URL+"/001.jpg")
		require.NoError(t, err)
		assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)
		assert.Equal(t, "reader/1.0", gotUA)
		assert.Equal(t, "https://reader.example.com/", gotReferer)
	})

	t.Run("uses default user agent", func(t *testing.T) {
		t.Parallel()

		var gotUA string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
		}))
		defer server.Close()

		_, err := mshttp.NewFetcher(mshttp.WithClient(server.Client())).FetchBytes(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, mshttp.DefaultUserAgent, gotUA)
	})

	t.Run("invalid URL", func(t *testing.T) {
		t.Parallel()

		_, err := mshttp.NewFetcher().FetchBytes(context.Background(), "://bad")
		assert.Equal(t, mangascraper.EINVALID, mangascraper.ErrorCode(err))
	})
}
