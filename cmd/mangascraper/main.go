package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/blacker-cz/mangascraper"
	"github.com/blacker-cz/mangascraper/goquery"
	"github.com/blacker-cz/mangascraper/sqlite"
	msslog "github.com/blacker-cz/mangascraper/slog"
	"github.com/blacker-cz/mangascraper/workqueue"
	"github.com/shirou/gopsutil/v3/disk"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Paths used when the matching flag is not set. Set before calling Run().
	DBPath      string
	SourcesPath string
	ConfigPath  string

	// SQLite database used by SQLite service implementations.
	DB *sqlite.DB

	// Services for end-to-end testing.
	RecordService mangascraper.RecordService

	closers []io.Closer
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	dir := defaultDir()
	return &Main{
		DBPath:      filepath.Join(dir, "history.db"),
		SourcesPath: filepath.Join(dir, "sources.json"),
		ConfigPath:  filepath.Join(dir, "config.json"),
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	for i := len(m.closers) - 1; i >= 0; i-- {
		_ = m.closers[i].Close()
	}
	m.closers = nil
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("mangascraper"),
		kong.Description("Download manga and novel chapters from configured sites"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Configuration(kong.JSON, m.ConfigPath),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'mangascraper --help' to see available commands")
	}

	if cmd := args[0]; cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	deps.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cmd := strings.Fields(kongCtx.Command())[0]
	defer m.Close()

	// Wire command-specific dependencies.
	switch cmd {
	case "sources", "search", "chapters", "download":
		path := firstNonEmpty(cli.Sources, m.SourcesPath)
		if err := m.openSources(deps, path, cmd != "sources"); err != nil {
			if mangascraper.ErrorCode(err) == mangascraper.ENOTFOUND {
				fmt.Fprintf(stderr, "Hint: Create %s or set MANGASCRAPER_SOURCES\n", path)
			}
			return err
		}
	}

	switch cmd {
	case "download", "history", "forget":
		path := firstNonEmpty(cli.DB, m.DBPath)
		if err := m.openDB(deps, path); err != nil {
			fmt.Fprintf(stderr, "Hint: Set MANGASCRAPER_DB to use a different database path\n")
			return fmt.Errorf("failed to open database at %q: %w", path, err)
		}
	}

	if cmd == "download" {
		deps.DiskFree = diskFree
	}

	return kongCtx.Run(deps)
}

func (m *Main) openDB(deps *Dependencies, path string) error {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
	}
	m.DB = sqlite.NewDB(path)
	if err := m.DB.Open(); err != nil {
		return err
	}
	if m.RecordService == nil {
		m.RecordService = sqlite.NewRecordService(m.DB)
	}
	deps.Records = msslog.NewLoggingRecordService(m.RecordService, deps.Logger)
	return nil
}

// openSources loads the sources file. With build set it also creates the
// source registry and the work queue listing calls run on.
func (m *Main) openSources(deps *Dependencies, path string, build bool) error {
	configs, err := goquery.LoadConfigs(path)
	if err != nil {
		return err
	}
	deps.Configs = configs
	if !build {
		return nil
	}

	sources, err := buildSources(configs, deps.Logger)
	if err != nil {
		return err
	}
	m.closers = append(m.closers, sources)

	queue := workqueue.New(workqueue.WithLogger(deps.Logger))
	queue.Start()
	m.closers = append(m.closers, closerFunc(func() error {
		queue.Stop()
		return nil
	}))

	deps.Sources = sources.Registry
	deps.Describers = sources.Describers
	deps.Queue = queue
	deps.Loop = workqueue.NewLoop()
	return nil
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mangascraper"
	}
	return filepath.Join(home, ".mangascraper")
}
