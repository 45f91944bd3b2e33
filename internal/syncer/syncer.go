// Package syncer copies chapters from a project into the site content tree,
// regenerating their front matter, and mirrors the project's image assets.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/novelpress/internal/apperr"
	"github.com/starford/novelpress/internal/chapter"
	"github.com/starford/novelpress/internal/parser"
	"github.com/starford/novelpress/internal/storage"
)

// Fields copied from existing front matter when present. They are the only
// keys that survive across syncs; everything else is regenerated.
var preservedFields = []string{"cover", "cover_url", "cover_media_id"}

// Config locates the directories a sync reads from and writes to.
type Config struct {
	ProjectsDir     string // projects/
	ContentDir      string // site/src/content/novels/
	PublicAssetsDir string // site/public/assets/
	ChaptersDir     string // chapters, relative to a project
	AssetsDir       string // _assets, relative to a project
}

// Result summarizes a sync run.
type Result struct {
	Chapters int
	Assets   int
}

// Syncer regenerates site content for a novel.
type Syncer struct {
	cfg    Config
	out    io.Writer
	logger *slog.Logger
}

// New creates a Syncer.
func New(cfg Config, out io.Writer, logger *slog.Logger) *Syncer {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Syncer{cfg: cfg, out: out, logger: logger}
}

// Run syncs chapters and mirrors assets for novel. A missing project
// directory yields apperr.ErrProjectNotFound.
func (s *Syncer) Run(ctx context.Context, novel string) (Result, error) {
	var res Result
	projectDir := filepath.Join(s.cfg.ProjectsDir, novel)
	if info, err := os.Stat(projectDir); err != nil || !info.IsDir() {
		return res, fmt.Errorf("syncer: %s: %w", projectDir, apperr.ErrProjectNotFound)
	}

	n, err := s.SyncChapters(ctx, novel)
	res.Chapters = n
	if err != nil {
		return res, err
	}
	fmt.Fprintf(s.out, "\nSynced %d chapters\n", n)

	assetsSrc := filepath.Join(projectDir, s.cfg.AssetsDir)
	if _, err := os.Stat(assetsSrc); errors.Is(err, os.ErrNotExist) {
		s.logger.Info("syncer: no assets directory", slog.String("path", assetsSrc))
		return res, nil
	}
	res.Assets, err = MirrorAssets(assetsSrc, filepath.Join(s.cfg.PublicAssetsDir, novel))
	if err != nil {
		return res, fmt.Errorf("syncer: mirror assets: %w", err)
	}
	fmt.Fprintf(s.out, "Copied %d assets\n", res.Assets)
	return res, nil
}

// SyncChapters rewrites every chapter of novel into the content directory.
// The first read, parse or write error aborts the batch.
func (s *Syncer) SyncChapters(ctx context.Context, novel string) (int, error) {
	src, err := storage.NewFS(filepath.Join(s.cfg.ProjectsDir, novel, s.cfg.ChaptersDir))
	if err != nil {
		return 0, fmt.Errorf("syncer: chapters: %w", err)
	}
	destDir := filepath.Join(s.cfg.ContentDir, novel)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("syncer: mkdir: %w", err)
	}
	dest, err := storage.NewFS(destDir)
	if err != nil {
		return 0, fmt.Errorf("syncer: content: %w", err)
	}

	files, err := src.List("")
	if err != nil {
		return 0, fmt.Errorf("syncer: %w", err)
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	chapter.Sort(names)

	count := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		order, err := s.syncChapter(src, dest, name)
		if err != nil {
			return count, fmt.Errorf("syncer: %s: %w", name, err)
		}
		count++
		fmt.Fprintf(s.out, "✓ %s (order %d)\n", name, order)
	}
	return count, nil
}

func (s *Syncer) syncChapter(src, dest storage.Provider, name string) (int, error) {
	data, err := src.Read(name)
	if err != nil {
		return 0, err
	}
	doc, err := parser.Parse(data)
	if err != nil {
		return 0, err
	}

	existing := &parser.Document{Frontmatter: map[string]any{}}
	ok, err := dest.Exists(name)
	if err != nil {
		return 0, err
	}
	if ok {
		prev, err := dest.Read(name)
		if err != nil {
			return 0, err
		}
		if existing, err = parser.Parse(prev); err != nil {
			return 0, fmt.Errorf("existing destination: %w", err)
		}
	}

	fields := Merge(doc, existing, name)
	out, err := parser.Marshal(fields, doc.Body)
	if err != nil {
		return 0, err
	}
	if err := dest.Write(name, out); err != nil {
		return 0, err
	}
	s.logger.Debug("syncer: wrote chapter", slog.String("name", name), slog.Int("fields", len(fields)))
	return chapter.OrderKey(name), nil
}

// Merge builds the destination front matter for a chapter: title from the
// source, then the previous destination, then the filename; order always
// recomputed; cover fields carried from the source, else the destination.
func Merge(src, dest *parser.Document, name string) []parser.Field {
	title := src.String("title")
	if title == "" {
		title = dest.String("title")
	}
	if title == "" {
		title = chapter.DefaultTitle(name)
	}
	fields := []parser.Field{
		{Key: "title", Value: title},
		{Key: "order", Value: chapter.OrderKey(name)},
	}
	for _, key := range preservedFields {
		if v, ok := pick(src, key); ok {
			fields = append(fields, parser.Field{Key: key, Value: v})
		} else if v, ok := pick(dest, key); ok {
			fields = append(fields, parser.Field{Key: key, Value: v})
		}
	}
	return fields
}

func pick(d *parser.Document, key string) (any, bool) {
	v, ok := d.Frontmatter[key]
	if !ok || v == nil || v == "" {
		return nil, false
	}
	return v, true
}
