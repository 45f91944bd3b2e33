package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/novelpress/internal/apperr"
	"github.com/starford/novelpress/internal/ledger"
	"github.com/starford/novelpress/internal/testutil"
	"github.com/starford/novelpress/internal/wordpress"
	"github.com/starford/novelpress/internal/wordpress/wptest"
)

const (
	novelID  = "2028ww3"
	siteURL  = "https://novel.example"
	chapterA = "Chap_01_AK_The_Long_Night.md"
)

type fixture struct {
	ws  *testutil.Workspace
	wp  *wptest.Server
	out *bytes.Buffer
	rec *memRecorder
	pub *Publisher
}

type memRecorder struct{ entries []ledger.Entry }

func (m *memRecorder) Record(e ledger.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		ws:  testutil.NewWorkspace(t),
		wp:  wptest.New(t, "editor", "app-pass"),
		out: &bytes.Buffer{},
		rec: &memRecorder{},
	}
	cfg := Config{
		ProjectsDir: f.ws.ProjectsDir(),
		AssetsDir:   "_assets",
		CoverDir:    "covers",
		SiteURL:     siteURL,
		Novels:      map[string]Novel{novelID: {Title: "2028: World War III", Slug: "2028ww3"}},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	client := wordpress.NewClient(f.wp.URL, "editor", "app-pass", f.wp.Client())
	f.pub = New(cfg, client, WithOutput(f.out), WithRecorder(f.rec))
	return f
}

func onlyPost(t *testing.T, wp *wptest.Server) wptest.Post {
	t.Helper()
	posts := wp.Posts()
	if len(posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(posts))
	}
	for _, p := range posts {
		return p
	}
	return wptest.Post{}
}

func TestPublishFile_CreatesPost(t *testing.T) {
	f := newFixture(t, nil)
	path := f.ws.WriteChapter(t, novelID, chapterA,
		"---\ntitle: \"The Long Night\"\n---\n\nSirens over the *harbor*. ![map](../_assets/map.png)\n")

	res, err := f.pub.PublishFile(context.Background(), path)
	if err != nil {
		t.Fatalf("PublishFile: %v", err)
	}
	if res.Action != "created" {
		t.Errorf("action = %q, want created", res.Action)
	}

	post := onlyPost(t, f.wp)
	if post.Slug != "2028ww3-chap-01-ak-the-long-night" {
		t.Errorf("slug = %q", post.Slug)
	}
	if post.Title != "[2028: World War III] The Long Night" {
		t.Errorf("title = %q", post.Title)
	}
	if post.Status != "publish" {
		t.Errorf("status = %q, want publish", post.Status)
	}
	if post.Excerpt != "Sirens over the harbor." {
		t.Errorf("excerpt = %q", post.Excerpt)
	}
	wantLink := `href="https://novel.example/novels/2028ww3/chap-01-ak-the-long-night/"`
	if !strings.Contains(post.Content, wantLink) {
		t.Errorf("content missing %s:\n%s", wantLink, post.Content)
	}
	if !strings.Contains(post.Content, "Continue reading") {
		t.Errorf("content missing continue link:\n%s", post.Content)
	}
	if post.FeaturedMedia != 0 {
		t.Errorf("featured_media = %d, want 0", post.FeaturedMedia)
	}

	if len(f.rec.entries) != 1 || f.rec.entries[0].PostID != post.ID || f.rec.entries[0].Action != "created" {
		t.Errorf("ledger entries = %+v", f.rec.entries)
	}
}

func TestPublishFile_UpdatesExistingPost(t *testing.T) {
	f := newFixture(t, nil)
	id := f.wp.SeedPost(wptest.Post{Slug: "2028ww3-chap-01-ak-the-long-night", Status: "draft", Title: "old"})
	path := f.ws.WriteChapter(t, novelID, chapterA, "Body text.\n")

	res, err := f.pub.PublishFile(context.Background(), path)
	if err != nil {
		t.Fatalf("PublishFile: %v", err)
	}
	if res.PostID != id || res.Action != "updated" {
		t.Errorf("result = %+v, want post %d updated", res, id)
	}
	if n := len(f.wp.CallsTo("POST /wp-json/wp/v2/posts")); n != 0 {
		t.Errorf("create calls = %d, want 0", n)
	}
	if n := len(f.wp.CallsTo("PUT /wp-json/wp/v2/posts/")); n != 1 {
		t.Errorf("update calls = %d, want 1", n)
	}

	post := f.wp.Posts()[id]
	if post.Title != "[2028: World War III] Chap_01_AK_The_Long_Night" {
		t.Errorf("title = %q, want stem fallback", post.Title)
	}
	if post.Status != "publish" {
		t.Errorf("status = %q, want publish", post.Status)
	}
}

func TestPublishFile_ReusesMatchingMedia(t *testing.T) {
	f := newFixture(t, nil)
	mediaID := f.wp.SeedMedia(wptest.Media{Slug: "city-night"})
	f.ws.WriteAsset(t, novelID, "covers/city_night.jpg", []byte("jpeg"))
	path := f.ws.WriteChapter(t, novelID, chapterA, "---\ncover: city_night.jpg\n---\nText.\n")

	res, err := f.pub.PublishFile(context.Background(), path)
	if err != nil {
		t.Fatalf("PublishFile: %v", err)
	}
	if res.MediaID != mediaID {
		t.Errorf("media = %d, want %d", res.MediaID, mediaID)
	}
	if n := len(f.wp.CallsTo("POST /wp-json/wp/v2/media")); n != 0 {
		t.Errorf("uploads = %d, want 0", n)
	}
	search := f.wp.CallsTo("GET /wp-json/wp/v2/media")
	if len(search) != 1 || search[0].Query != "search=citynight" {
		t.Errorf("search calls = %+v", search)
	}
	if post := onlyPost(t, f.wp); post.FeaturedMedia != mediaID {
		t.Errorf("featured_media = %d, want %d", post.FeaturedMedia, mediaID)
	}
}

func TestPublishFile_UploadsNewCover(t *testing.T) {
	f := newFixture(t, nil)
	f.ws.WriteAsset(t, novelID, "art/ruins.PNG", []byte("png-bytes"))
	path := f.ws.WriteChapter(t, novelID, chapterA,
		"---\ntitle: \"The Long Night\"\ncover: ../_assets/art/ruins.PNG\n---\nText.\n")

	res, err := f.pub.PublishFile(context.Background(), path)
	if err != nil {
		t.Fatalf("PublishFile: %v", err)
	}

	uploads := f.wp.CallsTo("POST /wp-json/wp/v2/media")
	if len(uploads) != 1 {
		t.Fatalf("uploads = %d, want 1", len(uploads))
	}
	if uploads[0].ContentType != "image/png" {
		t.Errorf("content type = %q, want image/png", uploads[0].ContentType)
	}
	m := f.wp.MediaItems()[res.MediaID]
	if string(m.Data) != "png-bytes" {
		t.Errorf("uploaded data = %q", m.Data)
	}
	if m.AltText != "2028: World War III: The Long Night" {
		t.Errorf("alt text = %q", m.AltText)
	}
	if post := onlyPost(t, f.wp); post.FeaturedMedia != res.MediaID {
		t.Errorf("featured_media = %d, want %d", post.FeaturedMedia, res.MediaID)
	}
}

func TestPublishFile_CoverMediaIDSkipsUpload(t *testing.T) {
	f := newFixture(t, nil)
	path := f.ws.WriteChapter(t, novelID, chapterA, "---\ncover: missing.jpg\ncover_media_id: 77\n---\nText.\n")

	res, err := f.pub.PublishFile(context.Background(), path)
	if err != nil {
		t.Fatalf("PublishFile: %v", err)
	}
	if res.MediaID != 77 {
		t.Errorf("media = %d, want 77", res.MediaID)
	}
	if n := len(f.wp.CallsTo("GET /wp-json/wp/v2/media")) + len(f.wp.CallsTo("POST /wp-json/wp/v2/media")); n != 0 {
		t.Errorf("media calls = %d, want 0", n)
	}
}

func TestPublishFile_UnreadableCoverIsSkipped(t *testing.T) {
	f := newFixture(t, nil)
	path := f.ws.WriteChapter(t, novelID, chapterA, "---\ncover: nowhere.jpg\n---\nText.\n")

	res, err := f.pub.PublishFile(context.Background(), path)
	if err != nil {
		t.Fatalf("PublishFile: %v", err)
	}
	if res.MediaID != 0 {
		t.Errorf("media = %d, want 0", res.MediaID)
	}
	if !strings.Contains(f.out.String(), "cover not readable") {
		t.Errorf("output = %q", f.out.String())
	}
}

func TestPublishFile_UnknownProject(t *testing.T) {
	f := newFixture(t, nil)
	path := f.ws.WriteChapter(t, "other-novel", chapterA, "Text.\n")

	_, err := f.pub.PublishFile(context.Background(), path)
	if !errors.Is(err, apperr.ErrUnknownProject) {
		t.Fatalf("err = %v, want ErrUnknownProject", err)
	}
	if n := len(f.wp.Calls()); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
}

func TestPublishAll_IsolatesFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.wp.FailOn("POST /wp-json/wp/v2/media", http.StatusInternalServerError)
	f.ws.WriteAsset(t, novelID, "covers/storm.jpg", []byte("jpeg"))

	paths := []string{
		f.ws.WriteChapter(t, novelID, "Chap_01_AK_One.md", "One.\n"),
		f.ws.WriteChapter(t, novelID, "Chap_02_AK_Two.md", "---\ncover: storm.jpg\n---\nTwo.\n"),
		f.ws.WriteChapter(t, novelID, "Chap_03_AK_Three.md", "Three.\n"),
		filepath.Join(f.ws.ProjectsDir(), novelID, "chapters", "notes.txt"),
	}

	sum := f.pub.PublishAll(context.Background(), paths)
	want := Summary{Total: 3, Published: 2, Failed: 1}
	if diff := cmp.Diff(want, sum); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if n := len(f.wp.Posts()); n != 2 {
		t.Errorf("posts = %d, want 2", n)
	}

	out := f.out.String()
	for _, line := range []string{
		"✓ created Chap_01_AK_One.md",
		"✗ Chap_02_AK_Two.md:",
		"✓ created Chap_03_AK_Three.md",
		"Published 2 of 3 chapters",
	} {
		if !strings.Contains(out, line) {
			t.Errorf("output missing %q:\n%s", line, out)
		}
	}
}

func TestPublishAll_SkipsUnknownProject(t *testing.T) {
	f := newFixture(t, nil)
	paths := []string{
		f.ws.WriteChapter(t, "elsewhere", "Chap_01_AK_One.md", "One.\n"),
		f.ws.WriteChapter(t, novelID, "Chap_02_AK_Two.md", "Two.\n"),
	}

	sum := f.pub.PublishAll(context.Background(), paths)
	want := Summary{Total: 2, Published: 1, Skipped: 1}
	if diff := cmp.Diff(want, sum); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(f.out.String(), "⚠ skip Chap_01_AK_One.md") {
		t.Errorf("output = %q", f.out.String())
	}
}

func TestPublishAll_DryRunMakesNoCalls(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.DryRun = true })
	path := f.ws.WriteChapter(t, novelID, chapterA, "---\ntitle: \"Night\"\ncover: x.jpg\n---\nText.\n")

	sum := f.pub.PublishAll(context.Background(), []string{path})
	if sum.Published != 1 {
		t.Errorf("published = %d, want 1", sum.Published)
	}
	if n := len(f.wp.Calls()); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
	if len(f.rec.entries) != 0 {
		t.Errorf("ledger entries = %d, want 0", len(f.rec.entries))
	}
	if !strings.Contains(f.out.String(), "dry-run Chap_01_AK_The_Long_Night.md → 2028ww3-chap-01-ak-the-long-night") {
		t.Errorf("output = %q", f.out.String())
	}
}

func TestPublishFile_FullBody(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.FullBody = true })
	path := f.ws.WriteChapter(t, novelID, chapterA, "# Heading\n\nSee ![map](../_assets/map.png).\n")

	if _, err := f.pub.PublishFile(context.Background(), path); err != nil {
		t.Fatalf("PublishFile: %v", err)
	}
	calls := f.wp.CallsTo("POST /wp-json/wp/v2/posts")
	if len(calls) != 1 {
		t.Fatalf("create calls = %d, want 1", len(calls))
	}
	var in wordpress.PostInput
	if err := json.Unmarshal(calls[0].Body, &in); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(in.Content, "<h1>Heading</h1>") {
		t.Errorf("content = %q, want rendered heading", in.Content)
	}
	if !strings.Contains(in.Content, `src="https://novel.example/assets/2028ww3/map.png"`) {
		t.Errorf("content = %q, want rewritten asset", in.Content)
	}
	if strings.Contains(in.Content, "Continue reading") {
		t.Errorf("full body should not use the excerpt template")
	}
}

func TestMediaSearchTerm(t *testing.T) {
	tests := map[string]string{
		"city_night.jpg":    "citynight",
		"Cover-Art 2.PNG":   "coverart2",
		"covers/ruins.webp": "ruins",
		"___.png":           "",
	}
	for in, want := range tests {
		if got := MediaSearchTerm(in); got != want {
			t.Errorf("MediaSearchTerm(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"a.png":  "image/png",
		"a.JPG":  "image/jpeg",
		"a.webp": "image/webp",
		"a.svg":  "image/svg+xml",
		"a.bmp":  "image/jpeg",
	}
	for in, want := range tests {
		if got := ContentType(in); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", in, got, want)
		}
	}
}
