// Package wptest runs an in-memory WordPress REST API for tests.
package wptest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Call is one request the fake server received.
type Call struct {
	Method      string
	Path        string
	Query       string
	ContentType string
	Body        []byte
}

// Post is a stored post.
type Post struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Excerpt       string `json:"excerpt"`
	Slug          string `json:"slug"`
	Status        string `json:"status"`
	FeaturedMedia int    `json:"featured_media"`
}

// Media is a stored media item.
type Media struct {
	ID       int    `json:"id"`
	Slug     string `json:"slug"`
	AltText  string `json:"alt_text"`
	Filename string `json:"-"`
	Data     []byte `json:"-"`
}

// Server is a fake WordPress site.
type Server struct {
	*httptest.Server
	User     string
	Password string

	mu     sync.Mutex
	nextID int
	calls  []Call
	posts  map[int]*Post
	media  map[int]*Media
	failOn map[string]int
}

// New starts a fake site accepting user/password and stops it when the test ends.
func New(t *testing.T, user, password string) *Server {
	t.Helper()
	s := &Server{
		User:     user,
		Password: password,
		nextID:   100,
		posts:    map[int]*Post{},
		media:    map[int]*Media{},
		failOn:   map[string]int{},
	}

	r := chi.NewRouter()
	r.Use(s.record, s.auth)
	r.Route("/wp-json/wp/v2", func(r chi.Router) {
		r.Get("/posts", s.listPosts)
		r.Post("/posts", s.createPost)
		r.Put("/posts/{id}", s.updatePost)
		r.Get("/media", s.searchMedia)
		r.Post("/media", s.uploadMedia)
		r.Put("/media/{id}", s.updateMedia)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// SeedPost stores a post and returns its id.
func (s *Server) SeedPost(p Post) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	s.posts[p.ID] = &p
	return p.ID
}

// SeedMedia stores a media item and returns its id.
func (s *Server) SeedMedia(m Media) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	s.media[m.ID] = &m
	return m.ID
}

// FailOn makes requests matching "METHOD /path" answer with status.
func (s *Server) FailOn(methodPath string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[methodPath] = status
}

// Calls returns the requests received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the requests whose "METHOD path" starts with prefix.
func (s *Server) CallsTo(prefix string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if strings.HasPrefix(c.Method+" "+c.Path, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Posts returns a copy of the stored posts keyed by id.
func (s *Server) Posts() map[int]Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]Post, len(s.posts))
	for id, p := range s.posts {
		out[id] = *p
	}
	return out
}

// MediaItems returns a copy of the stored media keyed by id.
func (s *Server) MediaItems() map[int]Media {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]Media, len(s.media))
	for id, m := range s.media {
		out[id] = *m
	}
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method:      r.Method,
			Path:        r.URL.Path,
			Query:       r.URL.RawQuery,
			ContentType: r.Header.Get("Content-Type"),
			Body:        body,
		})
		status := s.failOn[r.Method+" "+r.URL.Path]
		s.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"code": "fake_error", "message": "forced failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.User || pass != s.Password {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "rest_not_logged_in", "message": "bad credentials"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	statuses := strings.Split(r.URL.Query().Get("status"), ",")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Post{}
	for _, p := range s.posts {
		if p.Slug != slug {
			continue
		}
		for _, st := range statuses {
			if st == p.Status {
				out = append(out, *p)
				break
			}
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var p Post
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	s.mu.Lock()
	s.nextID++
	p.ID = s.nextID
	s.posts[p.ID] = &p
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	var p Post
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "rest_post_invalid_id", "message": "Invalid post ID."})
		return
	}
	p.ID = id
	s.posts[id] = &p
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) searchMedia(w http.ResponseWriter, r *http.Request) {
	term := strings.ToLower(r.URL.Query().Get("search"))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Media{}
	for _, m := range s.media {
		if strings.Contains(strings.ReplaceAll(strings.ToLower(m.Slug), "-", ""), term) {
			out = append(out, *m)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) uploadMedia(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	filename := strings.TrimSuffix(strings.TrimPrefix(r.Header.Get("Content-Disposition"), `attachment; filename="`), `"`)
	slug := strings.ToLower(strings.TrimSuffix(filename, filenameExt(filename)))
	slug = strings.NewReplacer("_", "-", " ", "-", ".", "-").Replace(slug)

	s.mu.Lock()
	s.nextID++
	m := &Media{ID: s.nextID, Slug: slug, Filename: filename, Data: data}
	s.media[m.ID] = m
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) updateMedia(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	var in struct {
		AltText string `json:"alt_text"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.media[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Invalid media ID."})
		return
	}
	m.AltText = in.AltText
	writeJSON(w, http.StatusOK, m)
}

func filenameExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
