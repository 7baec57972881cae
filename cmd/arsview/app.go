package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mmcdole/arsview/internal/adapter"
	"github.com/mmcdole/arsview/internal/aggregator"
	"github.com/mmcdole/arsview/internal/config"
	"github.com/mmcdole/arsview/internal/engine"
	"github.com/mmcdole/arsview/internal/log"
	"github.com/mmcdole/arsview/internal/poller"
	"github.com/mmcdole/arsview/internal/search"
	"github.com/mmcdole/arsview/internal/service"
	"github.com/mmcdole/arsview/internal/store"
	"github.com/mmcdole/arsview/internal/tui"
)

// errNotConfigured is returned when no aggregator URL is known
var errNotConfigured = errors.New("no aggregator configured: set server.url in the config file, ARSVIEW_SERVER_URL or --server")

// app holds what the commands share. It is filled in lazily: config and
// logging before any command runs, the aggregator stack on first use.
type app struct {
	// Flags
	configFile string
	serverURL  string
	debug      bool
	plain      bool

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer

	store    *store.QueryStore
	querySvc *service.QueryService
}

// setup loads configuration and installs the logger
func (a *app) setup(version string) error {
	cfg, err := config.LoadConfigFrom(a.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.serverURL != "" {
		cfg.Server.URL = a.serverURL
	}
	if a.debug {
		cfg.Logging.Level = "DEBUG"
	}
	a.cfg = cfg

	logger, closer, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	a.logger = logger
	a.logCloser = closer
	slog.SetDefault(logger)

	logger.Info("starting arsview", "version", version)
	return nil
}

// services builds the aggregator client, cache and query service
func (a *app) services() (*service.QueryService, error) {
	if a.querySvc != nil {
		return a.querySvc, nil
	}
	if !a.cfg.IsConfigured() {
		return nil, errNotConfigured
	}

	client := aggregator.NewClient(a.cfg.Server.URL, a.cfg.Server.Timeout, a.cfg.Polling.MaxElapsed, a.logger)

	st, err := store.NewQueryStore(a.cfg.CacheDir(), a.cfg.Server.URL)
	if err != nil {
		a.logger.Warn("cache unavailable, keeping results in memory", "error", err)
		st, _ = store.NewQueryStore("", "")
	}
	a.store = st

	p := poller.New(client, a.cfg.Polling.Interval, a.logger)
	a.querySvc = service.NewQueryService(client, st, p, a.logger)
	return a.querySvc, nil
}

// ranking returns the configured initial sort
func (a *app) ranking() search.View {
	return search.DefaultView(search.ParseSortField(a.cfg.UI.DefaultSort))
}

func (a *app) newEngine() *engine.Engine {
	return engine.New(a.ranking(), a.cfg.UI.PulsePeriod, a.logger)
}

// interactive reports whether the full-screen UI can be used
func (a *app) interactive() bool {
	return !a.plain && term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}

func (a *app) printer(out io.Writer, svc *service.QueryService) *tui.Printer {
	return &tui.Printer{
		Out:        out,
		QuerySvc:   svc,
		Engine:     a.newEngine(),
		ShowScores: a.cfg.UI.ShowScores,
	}
}

func (a *app) model(svc *service.QueryService) tui.Model {
	return tui.NewModel(svc, a.newEngine(), tui.Options{
		View:       a.ranking(),
		ShowScores: a.cfg.UI.ShowScores,
		Launcher:   a.launcher(),
	})
}

func (a *app) launcher() *adapter.Launcher {
	return adapter.NewLauncher(a.cfg.Browser.Command, a.cfg.Browser.Args, a.cfg.Browser.LinkTemplate, a.logger)
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.logger != nil {
			a.logger.Warn("failed to close cache", "error", err)
		}
	}
	if a.logger != nil {
		a.logger.Info("shutting down")
	}
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}

// queryText joins command arguments into one query
func queryText(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
