package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/alecthomas/kong"
	"github.com/blacker-cz/mangascraper"
	"github.com/blacker-cz/mangascraper/goquery"
	"github.com/blacker-cz/mangascraper/workqueue"
)

// Describer returns the description of a collection.
type Describer interface {
	Describe(ctx context.Context, collection *mangascraper.Collection) (string, error)
}

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	Configs    []goquery.Config
	Sources    *mangascraper.SourceRegistry
	Describers map[string]Describer
	Records    mangascraper.RecordService

	// Queue runs listing calls off the command goroutine; Loop delivers
	// their results back to it.
	Queue *workqueue.Queue
	Loop  *workqueue.Loop

	// DiskFree reports the free bytes on the file system holding path.
	DiskFree func(path string) (uint64, error)
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config  kong.ConfigFlag `help:"Load flag defaults from a JSON file" type:"path"`
	DB      string          `help:"History database path" env:"MANGASCRAPER_DB" type:"path"`
	Sources string          `help:"Sources file (JSON array of site configs)" env:"MANGASCRAPER_SOURCES" type:"path"`
	Verbose bool            `short:"v" help:"Log debug output to stderr"`

	List     SourcesCmd  `cmd:"" name:"sources" help:"List configured sources"`
	Search   SearchCmd   `cmd:"" help:"Search a source for collections"`
	Chapters ChaptersCmd `cmd:"" help:"List the chapters of a collection"`
	Download DownloadCmd `cmd:"" help:"Download chapters of a collection"`
	History  HistoryCmd  `cmd:"" help:"Show download history"`
	Forget   ForgetCmd   `cmd:"" help:"Remove a download history record"`
}

// SourcesCmd is the "sources" subcommand.
type SourcesCmd struct{}

// SearchCmd is the "search" subcommand.
type SearchCmd struct {
	Source string `arg:"" help:"Source ID"`
	Query  string `arg:"" optional:"" help:"Search query (omit to list everything the source can enumerate)"`
	Limit  int    `short:"n" default:"50" help:"Maximum number of results"`
	Offset int    `help:"Number of results to skip"`
}

// ChaptersCmd is the "chapters" subcommand.
type ChaptersCmd struct {
	Source   string `arg:"" help:"Source ID"`
	URL      string `arg:"" help:"Collection URL"`
	Title    string `short:"t" help:"Collection title (defaults to the last URL segment)"`
	Describe bool   `short:"d" help:"Show the collection description"`
}

// DownloadCmd is the "download" subcommand.
type DownloadCmd struct {
	Source      string   `arg:"" help:"Source ID"`
	URL         string   `arg:"" help:"Collection URL"`
	Title       string   `short:"t" help:"Collection title (defaults to the last URL segment)"`
	Chapter     []string `short:"c" name:"chapter" help:"Download chapters whose name matches the regex (repeatable)"`
	Dest        string   `short:"o" default:"." type:"path" help:"Destination directory"`
	Format      string   `short:"f" default:"folder" enum:"folder,zip,cbz" help:"Output format (folder, zip, cbz)"`
	Concurrency int      `short:"j" default:"2" help:"Concurrent chapter downloads"`
	JPEG        bool     `help:"Re-encode pages as JPEG"`
	MaxHeight   int      `help:"Scale pages taller than this many pixels"`
	MinFree     int64    `default:"100" help:"Minimum free disk space in MiB"`
}

// HistoryCmd is the "history" subcommand.
type HistoryCmd struct {
	Source  string `short:"s" help:"Only show downloads from this source"`
	Outcome string `enum:"any,completed,cancelled,failed" default:"any" help:"Only show downloads with this outcome"`
	Limit   int    `short:"n" default:"20" help:"Maximum number of records"`
}

// ForgetCmd is the "forget" subcommand.
type ForgetCmd struct {
	ID string `arg:"" help:"Record ID"`
}
