// Package internal wires configuration, logging and the novelpress commands.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/novelpress/internal/chapter"
	"github.com/starford/novelpress/internal/checksum"
	"github.com/starford/novelpress/internal/cleaner"
	"github.com/starford/novelpress/internal/ledger"
	"github.com/starford/novelpress/internal/preview"
	"github.com/starford/novelpress/internal/publisher"
	"github.com/starford/novelpress/internal/sse"
	"github.com/starford/novelpress/internal/storage"
	"github.com/starford/novelpress/internal/syncer"
	"github.com/starford/novelpress/internal/watch"
	"github.com/starford/novelpress/internal/wordpress"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.out == nil {
		app.out = os.Stdout
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
		slog.SetDefault(app.logger)
	}
	return app, nil
}

func (a *application) syncerConfig() syncer.Config {
	ws := a.config.Workspace
	return syncer.Config{
		ProjectsDir:     ws.Path(ws.ProjectsDir),
		ContentDir:      ws.Path(ws.ContentDir),
		PublicAssetsDir: ws.Path(ws.PublicAssetsDir),
		ChaptersDir:     ws.ChaptersDir,
		AssetsDir:       ws.AssetsDir,
	}
}

// RunClean strips authoring metadata from every chapter of novel.
func RunClean(_ context.Context, novel string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	ws := app.config.Workspace
	dir := filepath.Join(ws.Path(ws.ProjectsDir), novel, ws.ChaptersDir)

	store, err := storage.NewFS(dir)
	if err != nil {
		return fmt.Errorf("clean: %w", err)
	}
	app.logger.Debug("clean: started", slog.String("dir", dir))

	c := cleaner.New(app.config.Cleaner.Labels, app.out, app.logger)
	if _, err := c.CleanDir(store); err != nil {
		return fmt.Errorf("clean: %w", err)
	}
	return nil
}

// RunSync regenerates site content for novel. With watchMode it keeps
// re-syncing on source changes until interrupted.
func RunSync(ctx context.Context, novel string, watchMode bool, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.syncerConfig()
	s := syncer.New(cfg, app.out, app.logger)

	if _, err := s.Run(ctx, novel); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if !watchMode {
		return nil
	}

	project := filepath.Join(cfg.ProjectsDir, novel)
	w, err := watch.New(
		[]string{filepath.Join(project, cfg.ChaptersDir), filepath.Join(project, cfg.AssetsDir)},
		watch.WithLogger(app.logger),
		watch.WithFilter(func(p string) bool {
			return strings.EqualFold(filepath.Ext(p), ".md") || syncer.IsImage(p)
		}),
	)
	if err != nil {
		return fmt.Errorf("sync: watch: %w", err)
	}
	fmt.Fprintf(app.out, "\nWatching %s for changes (Ctrl+C to stop)\n", project)

	return runUntilSignal(ctx, app.logger, func(gCtx context.Context) error {
		return w.Run(gCtx, func(ctx context.Context, paths []string) {
			app.logger.Info("sync: change detected", slog.Int("files", len(paths)))
			if _, err := s.Run(ctx, novel); err != nil {
				app.logger.Error("sync: re-sync failed", slog.String("error", err.Error()))
				fmt.Fprintf(app.out, "✗ sync failed: %v\n", err)
			}
		})
	})
}

// RunPublish publishes chapter files to WordPress. Per-file failures are
// reported but do not make it return an error.
func RunPublish(ctx context.Context, paths []string, dryRun bool, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	var remote publisher.Remote
	if !dryRun {
		if err := cfg.WordPress.ValidateCredentials(); err != nil {
			return err
		}
		httpClient := app.httpClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: cfg.WordPress.Timeout}
		}
		remote = wordpress.NewClient(cfg.WordPress.URL, cfg.WordPress.User, cfg.WordPress.AppPassword, httpClient)
	}

	novels := make(map[string]publisher.Novel, len(cfg.Novels))
	for id, n := range cfg.Novels {
		novels[id] = publisher.Novel{Title: n.Title, Slug: n.Slug}
	}
	pubOpts := []publisher.Option{publisher.WithOutput(app.out), publisher.WithLogger(app.logger)}

	if !dryRun {
		db, err := ledger.Open(cfg.Workspace.Path(cfg.Ledger.Path))
		if err != nil {
			app.logger.Warn("publish: ledger unavailable", slog.String("error", err.Error()))
		} else {
			defer db.Close()
			pubOpts = append(pubOpts, publisher.WithRecorder(db))
		}
	}

	p := publisher.New(publisher.Config{
		ProjectsDir: cfg.Workspace.Path(cfg.Workspace.ProjectsDir),
		AssetsDir:   cfg.Workspace.AssetsDir,
		CoverDir:    cfg.Publish.CoverDir,
		SiteURL:     cfg.Site.URL,
		FullBody:    cfg.Publish.FullBody,
		DryRun:      dryRun,
		Novels:      novels,
	}, remote, pubOpts...)

	sum := p.PublishAll(ctx, paths)
	app.logger.Info("publish: done",
		slog.Int("total", sum.Total),
		slog.Int("published", sum.Published),
		slog.Int("skipped", sum.Skipped),
		slog.Int("failed", sum.Failed))
	return nil
}

// RunStatus prints the publish ledger for novel, or for every novel when
// novel is empty.
func RunStatus(_ context.Context, novel string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	db, err := ledger.Open(app.config.Workspace.Path(app.config.Ledger.Path))
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	defer db.Close()

	entries, err := db.List(novel)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(app.out, "Nothing published yet")
		return nil
	}
	return writeStatus(app.out, entries)
}

func writeStatus(out io.Writer, entries []ledger.Entry) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NOVEL\tSLUG\tPOST\tMEDIA\tPUBLISHED\tCHECKSUM\tSTATE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			e.Novel, e.Slug, e.PostID, e.MediaID, e.PublishedAt.Local().Format(time.DateTime),
			checksum.Short(e.Checksum), fileState(e))
	}
	return tw.Flush()
}

// fileState compares the chapter on disk with the published checksum.
func fileState(e ledger.Entry) string {
	data, err := os.ReadFile(e.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "missing"
	case err != nil:
		return "unreadable"
	case checksum.Sum(data) != e.Checksum:
		return "modified"
	default:
		return "current"
	}
}

// RunPreview serves the synced chapters of the content directory with live
// reload until interrupted. novel only selects the page announced on start.
func RunPreview(ctx context.Context, novel string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger
	contentDir := cfg.Workspace.Path(cfg.Workspace.ContentDir)

	if err := os.MkdirAll(contentDir, 0o755); err != nil {
		return fmt.Errorf("preview: create content dir: %w", err)
	}
	store, err := storage.NewFS(contentDir)
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc := preview.NewService(store, "")
	router := preview.NewRouter(svc, cfg.Workspace.Path(cfg.Workspace.PublicAssetsDir), broker, logger)

	w, err := watch.New([]string{contentDir},
		watch.WithLogger(logger),
		watch.WithFilter(func(p string) bool { return strings.EqualFold(filepath.Ext(p), ".md") }),
	)
	if err != nil {
		return fmt.Errorf("preview: watch: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Preview.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Fprintf(app.out, "Preview at http://localhost%s/novels/%s\n", cfg.Preview.Address(), novel)

	return runUntilSignal(ctx, logger,
		func(gCtx context.Context) error {
			return w.Run(gCtx, func(_ context.Context, paths []string) {
				for _, p := range paths {
					novel, ok := chapter.ProjectFromPath(p)
					if !ok {
						continue
					}
					_, statErr := os.Stat(p)
					broker.PublishChapter(sse.ChapterChange{
						Novel:   novel,
						Slug:    chapter.Slug(p),
						Path:    p,
						Removed: errors.Is(statErr, os.ErrNotExist),
					})
				}
			})
		},
		func(gCtx context.Context) error {
			logger.Info("Starting HTTP server", slog.String("address", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		},
		func(gCtx context.Context) error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
			return nil
		},
	)
}

// runUntilSignal runs tasks in an errgroup whose context is cancelled on
// SIGINT or SIGTERM, or as soon as any task returns.
func runUntilSignal(ctx context.Context, logger *slog.Logger, tasks ...func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			defer cancel()
			return task(gCtx)
		})
	}
	return g.Wait()
}
