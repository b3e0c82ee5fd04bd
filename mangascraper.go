// Package mangascraper downloads chapters from paginated content sources and
// assembles them into folders or archives. It bounds concurrent downloads with
// a FIFO admission gate, caches listing results for a short time window and
// runs one-off blocking calls on a serialized work queue so an interactive
// caller is never blocked.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency or concern (e.g., sqlite/, goquery/, gate/).
package mangascraper
