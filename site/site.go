// Package site keeps every page of the blog rendered in memory and
// refreshes the index whenever a post changes.
package site

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"inkwell/logging"
	"inkwell/markdown"
	"inkwell/metrics"
	"inkwell/model"
	"inkwell/storage"
	"inkwell/styleconfig"
)

// PageKind selects what a render produces.
type PageKind string

const (
	KindNotFound PageKind = "not_found"
	KindPost     PageKind = "post"
	KindRoot     PageKind = "root"
)

const (
	publicPrefix     = "/public/"
	liveURL          = "/ws"
	notFoundMarkdown = "# 404\nPage not found."
	excerptRunes     = 160
)

// Change describes a post that was added, updated or removed.
type Change struct {
	Name    string `json:"name"`
	Removed bool   `json:"removed"`
}

// Site holds the rendered pages.
type Site struct {
	tmpl     *template.Template
	renderer *markdown.Renderer
	store    *storage.Store
	tokens   model.ThemeTokens
	log      zerolog.Logger

	mu       sync.RWMutex
	posts    map[string]model.Post
	about    string
	notFound string
	root     string
	onChange func(Change)
}

// Theme tokens the page template reads.
const (
	coreColorToken = "core"
	monoFontToken  = "jetbrains"
)

// New creates an empty site. Call Build to populate it from the store.
// The document must validate and define the tokens the page template uses;
// only validated values are trusted as CSS.
func New(tmpl *template.Template, renderer *markdown.Renderer, store *storage.Store, doc styleconfig.Document) (*Site, error) {
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("stylesheet document: %w", err)
	}
	core, ok := doc.Color(coreColorToken)
	if !ok {
		return nil, fmt.Errorf("stylesheet document: missing color token %q", coreColorToken)
	}
	mono := doc.FontStack(monoFontToken)
	if mono == "" {
		return nil, fmt.Errorf("stylesheet document: missing font token %q", monoFontToken)
	}

	return &Site{
		tmpl:     tmpl,
		renderer: renderer,
		store:    store,
		tokens:   model.ThemeTokens{Core: template.CSS(core), FontMono: template.CSS(mono)},
		log:      logging.WithComponent("site"),
		posts:    make(map[string]model.Post),
	}, nil
}

// SetOnChange registers a callback run after every Upsert or Remove.
func (s *Site) SetOnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Build renders every post in the store along with the fixed pages.
func (s *Site) Build(ctx context.Context) error {
	if err := s.store.EnsureDirs(); err != nil {
		return fmt.Errorf("ensure posts dir: %w", err)
	}
	entries, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list posts: %w", err)
	}

	posts := make(map[string]model.Post, len(entries))
	var about string
	for _, e := range entries {
		post, err := s.renderPost(e)
		if err != nil {
			return err
		}
		if e.OriginalName == model.AboutName {
			about = post.RenderedPage
			continue
		}
		posts[e.OriginalName] = post
	}

	notFound, err := s.renderMarkdown(KindNotFound, "404", []byte(notFoundMarkdown))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = posts
	s.about = about
	s.notFound = notFound
	if err := s.refreshRootLocked(); err != nil {
		return err
	}

	s.log.Info().
		Str("event", "site.built").
		Int("posts", len(posts)).
		Bool("about", about != "").
		Msg("rendered site")
	return nil
}

// Upsert renders a post entry and refreshes the index.
func (s *Site) Upsert(e storage.Entry) error {
	post, err := s.renderPost(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if e.OriginalName == model.AboutName {
		s.about = post.RenderedPage
	} else {
		s.posts[e.OriginalName] = post
	}
	err = s.refreshRootLocked()
	onChange := s.onChange
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if onChange != nil {
		onChange(Change{Name: e.OriginalName})
	}
	return nil
}

// Remove drops a post and refreshes the index. It reports whether the
// post was present.
func (s *Site) Remove(name string) (bool, error) {
	s.mu.Lock()
	var found bool
	if name == model.AboutName {
		found = s.about != ""
		s.about = ""
	} else {
		_, found = s.posts[name]
		delete(s.posts, name)
	}
	err := s.refreshRootLocked()
	onChange := s.onChange
	s.mu.Unlock()

	if err != nil {
		return found, err
	}
	if found && onChange != nil {
		onChange(Change{Name: name, Removed: true})
	}
	return found, nil
}

// Post returns the rendered page for a post name.
func (s *Site) Post(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[name]
	return p.RenderedPage, ok
}

// About returns the about page, if an about post exists.
func (s *Site) About() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.about, s.about != ""
}

func (s *Site) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

func (s *Site) NotFound() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notFound
}

// Count returns the number of listed posts.
func (s *Site) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// Previews returns the index listing, newest first.
func (s *Site) Previews() []model.PreviewPost {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previewsLocked()
}

func (s *Site) previewsLocked() []model.PreviewPost {
	posts := make([]model.Post, 0, len(s.posts))
	for _, p := range s.posts {
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool {
		a, b := posts[i].Created, posts[j].Created
		if !a.Equal(b) {
			return a.After(b)
		}
		return posts[i].Name < posts[j].Name
	})

	out := make([]model.PreviewPost, len(posts))
	for i, p := range posts {
		out[i] = model.PreviewPost{
			Date:         p.Date(),
			Description:  p.Description,
			EncodedName:  p.EncodedName,
			OriginalName: p.Name,
		}
	}
	return out
}

func (s *Site) refreshRootLocked() error {
	page, err := s.execute(KindRoot, model.Page{
		Title:  "Home",
		IsRoot: true,
		Posts:  s.previewsLocked(),
	})
	if err != nil {
		return err
	}
	s.root = page
	metrics.SetPostsTotal(len(s.posts))
	return nil
}

func (s *Site) renderPost(e storage.Entry) (model.Post, error) {
	page, err := s.renderMarkdown(KindPost, e.OriginalName, e.Contents)
	if err != nil {
		return model.Post{}, fmt.Errorf("render %s: %w", e.OriginalName, err)
	}
	return model.Post{
		Name:         e.OriginalName,
		EncodedName:  e.EncodedName,
		Created:      e.ModTime,
		Description:  s.renderer.Excerpt(e.Contents, excerptRunes),
		RenderedPage: page,
	}, nil
}

func (s *Site) renderMarkdown(kind PageKind, title string, src []byte) (string, error) {
	contents, err := s.renderer.Render(src)
	if err != nil {
		metrics.RecordRender(string(kind), err)
		return "", err
	}
	return s.execute(kind, model.Page{Title: title, Contents: contents})
}

func (s *Site) execute(kind PageKind, page model.Page) (string, error) {
	page.Public = publicPrefix
	page.LiveURL = liveURL
	page.Theme = s.tokens

	var buf bytes.Buffer
	err := s.tmpl.Execute(&buf, page)
	metrics.RecordRender(string(kind), err)
	if err != nil {
		return "", fmt.Errorf("execute %s template: %w", kind, err)
	}
	return buf.String(), nil
}
