// Package publisher pushes chapters to WordPress as posts, one file at a
// time. A failure in one file is reported and the batch moves on.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/novelpress/internal/apperr"
	"github.com/starford/novelpress/internal/chapter"
	"github.com/starford/novelpress/internal/checksum"
	"github.com/starford/novelpress/internal/ledger"
	"github.com/starford/novelpress/internal/markdown"
	"github.com/starford/novelpress/internal/parser"
	"github.com/starford/novelpress/internal/wordpress"
)

// Remote is the subset of the WordPress API the publisher uses.
type Remote interface {
	FindPostBySlug(ctx context.Context, slug string) (*wordpress.Post, error)
	CreatePost(ctx context.Context, in wordpress.PostInput) (*wordpress.Post, error)
	UpdatePost(ctx context.Context, id int, in wordpress.PostInput) (*wordpress.Post, error)
	SearchMedia(ctx context.Context, term string) ([]wordpress.Media, error)
	UploadMedia(ctx context.Context, filename, contentType string, data []byte) (*wordpress.Media, error)
	UpdateMedia(ctx context.Context, id int, altText string) error
}

// Recorder stores successful publications.
type Recorder interface {
	Record(e ledger.Entry) error
}

// Novel is the display metadata of a configured project.
type Novel struct {
	Title string
	Slug  string
}

// Config controls how chapters are turned into posts.
type Config struct {
	ProjectsDir string // projects/
	AssetsDir   string // _assets, relative to a project
	CoverDir    string // covers, relative to AssetsDir
	SiteURL     string // public novel site
	FullBody    bool   // send the rendered chapter instead of the excerpt template
	DryRun      bool
	Novels      map[string]Novel
}

// Result describes one published chapter.
type Result struct {
	Path    string
	Novel   string
	Slug    string
	Title   string
	PostID  int
	MediaID int
	Action  string
}

// Summary counts the outcome of a batch.
type Summary struct {
	Total     int
	Published int
	Skipped   int
	Failed    int
}

// Publisher turns chapter files into WordPress posts.
type Publisher struct {
	cfg      Config
	remote   Remote
	recorder Recorder
	out      io.Writer
	logger   *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithOutput sets where progress lines are written.
func WithOutput(w io.Writer) Option {
	return func(p *Publisher) { p.out = w }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// WithRecorder records each successful publication.
func WithRecorder(r Recorder) Option {
	return func(p *Publisher) { p.recorder = r }
}

// New creates a Publisher. remote may be nil in dry-run mode.
func New(cfg Config, remote Remote, opts ...Option) *Publisher {
	p := &Publisher{
		cfg:    cfg,
		remote: remote,
		out:    io.Discard,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishAll publishes every .md path in order. Per-file errors are printed
// and counted; they never stop the batch.
func (p *Publisher) PublishAll(ctx context.Context, paths []string) Summary {
	var sum Summary
	for _, path := range paths {
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			continue
		}
		sum.Total++
		name := filepath.Base(path)

		res, err := p.PublishFile(ctx, path)
		switch {
		case errors.Is(err, apperr.ErrUnknownProject):
			sum.Skipped++
			p.logger.Warn("publisher: skipped", slog.String("path", path), slog.String("error", err.Error()))
			fmt.Fprintf(p.out, "⚠ skip %s: %v\n", name, err)
		case err != nil:
			sum.Failed++
			p.logger.Error("publisher: failed", slog.String("path", path), slog.String("error", err.Error()))
			fmt.Fprintf(p.out, "✗ %s: %v\n", name, err)
		case p.cfg.DryRun:
			sum.Published++
			fmt.Fprintf(p.out, "· dry-run %s → %s (%s)\n", name, res.Slug, res.Title)
		default:
			sum.Published++
			fmt.Fprintf(p.out, "✓ %s %s → post %d\n", res.Action, name, res.PostID)
		}
	}
	fmt.Fprintf(p.out, "\nPublished %d of %d chapters\n", sum.Published, sum.Total)
	return sum
}

// PublishFile publishes a single chapter file.
func (p *Publisher) PublishFile(ctx context.Context, path string) (*Result, error) {
	novelID, ok := chapter.ProjectFromPath(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, apperr.ErrUnknownProject)
	}
	novel, ok := p.cfg.Novels[novelID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", novelID, apperr.ErrUnknownProject)
	}
	if novel.Slug == "" {
		novel.Slug = novelID
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	doc, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}

	title := doc.String("title")
	if title == "" {
		title = chapter.Stem(path)
	}
	chapterSlug := chapter.Slug(path)
	res := &Result{
		Path:  path,
		Novel: novelID,
		Slug:  novel.Slug + "-" + chapterSlug,
		Title: fmt.Sprintf("[%s] %s", novel.Title, title),
	}

	in, err := p.buildPost(doc, novel, title, chapterSlug, res.Slug)
	if err != nil {
		return nil, err
	}
	if p.cfg.DryRun {
		return res, nil
	}
	if p.remote == nil {
		return nil, errors.New("publisher: no remote configured")
	}

	mediaID, err := p.coverMedia(ctx, path, novelID, doc, novel.Title+": "+title)
	if err != nil {
		return nil, fmt.Errorf("cover: %w", err)
	}
	in.Title = res.Title
	in.FeaturedMedia = mediaID
	res.MediaID = mediaID

	post, action, err := p.upsert(ctx, in)
	if err != nil {
		return nil, err
	}
	res.PostID, res.Action = post.ID, action

	if p.recorder != nil {
		recorded := path
		if abs, err := filepath.Abs(path); err == nil {
			recorded = abs
		}
		if err := p.recorder.Record(ledger.Entry{
			Path:     recorded,
			Novel:    novelID,
			Slug:     res.Slug,
			Title:    res.Title,
			PostID:   post.ID,
			MediaID:  mediaID,
			Checksum: checksum.Sum(data),
			Action:   action,
		}); err != nil {
			p.logger.Warn("publisher: ledger write failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	return res, nil
}

func (p *Publisher) buildPost(doc *parser.Document, novel Novel, title, chapterSlug, slug string) (wordpress.PostInput, error) {
	body := markdown.RewriteAssetLinks(doc.Body, p.cfg.SiteURL, novel.Slug)
	excerpt := markdown.Excerpt(body, markdown.ExcerptLimit)
	siteURL := strings.TrimRight(p.cfg.SiteURL, "/")

	var content string
	if p.cfg.FullBody {
		html, err := markdown.ToHTML([]byte(body))
		if err != nil {
			return wordpress.PostInput{}, err
		}
		content = string(html)
	} else {
		var err error
		content, err = renderPost(postView{
			Excerpt:      excerpt,
			URL:          fmt.Sprintf("%s/novels/%s/%s/", siteURL, novel.Slug, chapterSlug),
			ChapterTitle: title,
			NovelTitle:   novel.Title,
			SiteURL:      siteURL,
		})
		if err != nil {
			return wordpress.PostInput{}, fmt.Errorf("render post: %w", err)
		}
	}
	return wordpress.PostInput{
		Content: content,
		Excerpt: excerpt,
		Slug:    slug,
		Status:  wordpress.StatusPublish,
	}, nil
}

func (p *Publisher) upsert(ctx context.Context, in wordpress.PostInput) (*wordpress.Post, string, error) {
	existing, err := p.remote.FindPostBySlug(ctx, in.Slug)
	if err != nil {
		return nil, "", fmt.Errorf("lookup post: %w", err)
	}
	if existing != nil {
		post, err := p.remote.UpdatePost(ctx, existing.ID, in)
		if err != nil {
			return nil, "", fmt.Errorf("update post %d: %w", existing.ID, err)
		}
		return post, "updated", nil
	}
	post, err := p.remote.CreatePost(ctx, in)
	if err != nil {
		return nil, "", fmt.Errorf("create post: %w", err)
	}
	return post, "created", nil
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// coverMedia returns the media id to feature on the post, or 0 for none.
// A cover_media_id in the front matter is used as is. Otherwise the cover
// file is matched against existing media by name, and uploaded when nothing
// matches. The name match is a heuristic: it can miss (duplicate upload) or
// pick an unrelated item with a similar name.
func (p *Publisher) coverMedia(ctx context.Context, chapterPath, novelID string, doc *parser.Document, alt string) (int, error) {
	if v := doc.String("cover_media_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil && id > 0 {
			return id, nil
		}
	}
	cover := doc.String("cover")
	if cover == "" {
		return 0, nil
	}

	coverPath := p.resolveCover(chapterPath, novelID, cover)
	data, err := os.ReadFile(coverPath)
	if err != nil {
		p.logger.Warn("publisher: cover unreadable, skipping upload",
			slog.String("cover", coverPath), slog.String("error", err.Error()))
		fmt.Fprintf(p.out, "  ⚠ cover not readable: %s\n", coverPath)
		return 0, nil
	}

	filename := filepath.Base(coverPath)
	term := MediaSearchTerm(filename)
	if term != "" {
		items, err := p.remote.SearchMedia(ctx, term)
		if err != nil {
			return 0, fmt.Errorf("search media: %w", err)
		}
		for _, m := range items {
			if strings.Contains(nonAlnumRe.ReplaceAllString(strings.ToLower(m.Slug), ""), term) {
				p.logger.Debug("publisher: reusing media", slog.Int("id", m.ID), slog.String("slug", m.Slug))
				return m.ID, nil
			}
		}
	}

	m, err := p.remote.UploadMedia(ctx, filename, ContentType(filename), data)
	if err != nil {
		return 0, fmt.Errorf("upload %s: %w", filename, err)
	}
	if err := p.remote.UpdateMedia(ctx, m.ID, alt); err != nil {
		return 0, fmt.Errorf("set alt text: %w", err)
	}
	fmt.Fprintf(p.out, "  ↑ uploaded cover %s (media %d)\n", filename, m.ID)
	return m.ID, nil
}

// resolveCover maps a cover field to a path: a bare filename lives in the
// project's covers directory, anything else is relative to the chapter.
func (p *Publisher) resolveCover(chapterPath, novelID, cover string) string {
	if filepath.IsAbs(cover) {
		return cover
	}
	if !strings.ContainsAny(cover, `/\`) {
		return filepath.Join(p.cfg.ProjectsDir, novelID, p.cfg.AssetsDir, p.cfg.CoverDir, cover)
	}
	return filepath.Join(filepath.Dir(chapterPath), filepath.FromSlash(cover))
}

// MediaSearchTerm is the lower-cased, alphanumeric-only stem of filename.
func MediaSearchTerm(filename string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToLower(chapter.Stem(filename)), "")
}

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

// ContentType maps an image filename to its MIME type, defaulting to JPEG.
func ContentType(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "image/jpeg"
}
