// Package preview serves the synced content directory as browsable HTML so
// chapters can be proofread before publishing.
package preview

import (
	"cmp"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"slices"
	"strconv"

	"github.com/starford/novelpress/internal/apperr"
	"github.com/starford/novelpress/internal/chapter"
	"github.com/starford/novelpress/internal/markdown"
	"github.com/starford/novelpress/internal/parser"
	"github.com/starford/novelpress/internal/storage"
)

// Entry is one chapter in a novel's index.
type Entry struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Order int    `json:"order"`
	Cover string `json:"cover,omitempty"`
}

// Page is a rendered chapter.
type Page struct {
	Entry
	Novel string
	HTML  template.HTML
	Prev  *Entry
	Next  *Entry
}

// Service reads synced chapters from the content directory.
type Service struct {
	store   storage.Provider
	siteURL string
}

// NewService creates a Service over store, whose root is the content
// directory holding one folder per novel. siteURL prefixes rewritten
// asset links.
func NewService(store storage.Provider, siteURL string) *Service {
	return &Service{store: store, siteURL: siteURL}
}

// Chapters lists the chapters of novel ordered by their order field, then name.
func (s *Service) Chapters(novel string) ([]Entry, error) {
	if novel == "" || novel == "." || novel == ".." || novel != path.Base(novel) {
		return nil, fmt.Errorf("preview: novel %q: %w", novel, apperr.ErrNotFound)
	}
	metas, err := s.store.List(novel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("preview: novel %q: %w", novel, apperr.ErrNotFound)
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(metas))
	for _, m := range metas {
		doc, err := s.read(m.Path)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entryFor(m.Name, doc))
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return entries, nil
}

// Chapter renders the chapter of novel whose slug matches.
func (s *Service) Chapter(novel, slug string) (*Page, error) {
	entries, err := s.Chapters(novel)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(entries, func(e Entry) bool { return e.Slug == slug })
	if i < 0 {
		return nil, fmt.Errorf("preview: chapter %s/%s: %w", novel, slug, apperr.ErrNotFound)
	}

	doc, err := s.read(path.Join(novel, entries[i].Name))
	if err != nil {
		return nil, err
	}
	html, err := markdown.ToHTML([]byte(markdown.RewriteAssetLinks(doc.Body, s.siteURL, novel)))
	if err != nil {
		return nil, err
	}

	page := &Page{Entry: entries[i], Novel: novel, HTML: template.HTML(html)}
	if i > 0 {
		page.Prev = &entries[i-1]
	}
	if i+1 < len(entries) {
		page.Next = &entries[i+1]
	}
	return page, nil
}

func (s *Service) read(p string) (*parser.Document, error) {
	data, err := s.store.Read(p)
	if err != nil {
		return nil, err
	}
	doc, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("preview: %s: %w", p, err)
	}
	return doc, nil
}

func entryFor(name string, doc *parser.Document) Entry {
	e := Entry{
		Name:  name,
		Slug:  chapter.Slug(name),
		Title: doc.String("title"),
		Order: chapter.OrderKey(name),
		Cover: doc.String("cover_url"),
	}
	if e.Title == "" {
		e.Title = chapter.DefaultTitle(name)
	}
	if n, err := strconv.Atoi(doc.String("order")); err == nil {
		e.Order = n
	}
	return e
}
