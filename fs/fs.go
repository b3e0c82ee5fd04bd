// Package fs provides file system storage for downloaded chapters: the
// temporary page workspace, the folder packager and file naming helpers.
package fs

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/blacker-cz/mangascraper"
)

var (
	invalidChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots   = regexp.MustCompile(`\.+$`)
	repeatedSpaces = regexp.MustCompile(`\s+`)
)

// SanitizeFileName replaces characters that are invalid in file names on
// common platforms with underscores, strips trailing dots and collapses
// whitespace.
//
//	SanitizeFileName("Vol. 1: Ch/2...") // "Vol. 1_ Ch_2"
func SanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = repeatedSpaces.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// ChapterName returns the artifact base name for a chapter:
// "<collection> - <chapter>" sanitized for use as a file name.
// Falls back to the chapter ID when the name sanitizes to nothing.
func ChapterName(chapter *mangascraper.Chapter) string {
	name := SanitizeFileName(chapter.String())
	if name == "" {
		name = SanitizeFileName(chapter.ID())
	}
	if name == "" {
		name = "chapter"
	}
	return name
}

// PageFileName returns the workspace file name for a page, zero-padded so
// lexical order matches ordinal order. The extension is sniffed from data.
func PageFileName(ordinal int, data []byte) string {
	return fmt.Sprintf("%04d%s", ordinal, extension(data))
}

func extension(data []byte) string {
	contentType := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(contentType, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(contentType, "image/png"):
		return ".png"
	case strings.HasPrefix(contentType, "image/gif"):
		return ".gif"
	case strings.HasPrefix(contentType, "image/webp"):
		return ".webp"
	case strings.HasPrefix(contentType, "text/plain"):
		return ".md"
	case strings.HasPrefix(contentType, "text/html"):
		return ".html"
	default:
		return ".bin"
	}
}
