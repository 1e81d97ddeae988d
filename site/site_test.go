package site

import (
	"context"
	"html/template"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/markdown"
	"inkwell/model"
	"inkwell/storage"
	"inkwell/styleconfig"
)

const testTemplate = `<title>{{ .Title }}</title><style>{{ .Theme.Core }}</style>` +
	`{{ if .IsRoot }}{{ range .Posts }}[{{ .OriginalName }}|{{ .Description }}]{{ else }}empty{{ end }}` +
	`{{ else }}{{ .Contents }}{{ end }}`

func newTestSite(t *testing.T) (*Site, *storage.Store) {
	t.Helper()
	store := storage.New(filepath.Join(t.TempDir(), "posts"))
	tmpl := template.Must(template.New("page").Parse(testTemplate))
	s, err := New(tmpl, markdown.New("monokai"), store, styleconfig.Load())
	require.NoError(t, err)
	return s, store
}

func TestNewRejectsUnusableDocument(t *testing.T) {
	tmpl := template.Must(template.New("page").Parse(testTemplate))
	store := storage.New(t.TempDir())

	tests := []struct {
		name    string
		mutate  func(*styleconfig.Document)
		wantErr string
	}{
		{"missing core color", func(d *styleconfig.Document) { delete(d.Theme.Extend.Colors, "core") }, `missing color token "core"`},
		{"missing mono font", func(d *styleconfig.Document) { delete(d.Theme.Extend.FontFamily, "jetbrains") }, `missing font token "jetbrains"`},
		{"markup in color", func(d *styleconfig.Document) {
			d.Theme.Extend.Colors["core"] = "rgb(0;}</style><script>alert(1)</script><style>{)"
		}, "invalid color"},
		{"markup in font name", func(d *styleconfig.Document) {
			d.Theme.Extend.FontFamily["jetbrains"] = []string{`Mono"; } </style><script>`}
		}, "invalid family name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := styleconfig.Load()
			tt.mutate(&doc)
			s, err := New(tmpl, markdown.New("monokai"), store, doc)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func writePost(t *testing.T, store *storage.Store, name, body string, mod time.Time) storage.Entry {
	t.Helper()
	require.NoError(t, store.Save(name+".md", []byte(body)))
	path := filepath.Join(store.Dir(), name+".md")
	require.NoError(t, os.Chtimes(path, mod, mod))
	entry, err := store.Read(path)
	require.NoError(t, err)
	return entry
}

func TestBuild(t *testing.T) {
	s, store := newTestSite(t)
	require.NoError(t, store.EnsureDirs())

	now := time.Now()
	writePost(t, store, "older", "# Older\n\nFirst words.", now.Add(-time.Hour))
	writePost(t, store, "newer", "# Newer\n\nLatest words.", now)
	writePost(t, store, "about", "# About me", now)

	require.NoError(t, s.Build(context.Background()))

	assert.Equal(t, 2, s.Count())
	root := s.Root()
	assert.Contains(t, root, "[newer|Latest words.][older|First words.]")
	assert.NotContains(t, root, "[about|")
	assert.Contains(t, root, "#111010")

	about, ok := s.About()
	require.True(t, ok)
	assert.Contains(t, about, `<h1 id="header-about-me">About me</h1>`)

	page, ok := s.Post("older")
	require.True(t, ok)
	assert.Contains(t, page, "<title>older</title>")
	assert.Contains(t, page, "<p>First words.</p>")

	assert.Contains(t, s.NotFound(), `<h1 id="header-404">404</h1>`)
}

func TestBuildEmpty(t *testing.T) {
	s, _ := newTestSite(t)
	require.NoError(t, s.Build(context.Background()))

	assert.Zero(t, s.Count())
	assert.Contains(t, s.Root(), "empty")
	_, ok := s.About()
	assert.False(t, ok)
}

func TestUpsertAndRemove(t *testing.T) {
	s, store := newTestSite(t)
	require.NoError(t, s.Build(context.Background()))

	var changes []Change
	s.SetOnChange(func(c Change) { changes = append(changes, c) })

	entry := writePost(t, store, "hello", "Hello there.", time.Now())
	require.NoError(t, s.Upsert(entry))
	assert.Equal(t, 1, s.Count())
	assert.Contains(t, s.Root(), "[hello|Hello there.]")

	found, err := s.Remove("hello")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Zero(t, s.Count())
	assert.Contains(t, s.Root(), "empty")

	found, err = s.Remove("hello")
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, []Change{{Name: "hello"}, {Name: "hello", Removed: true}}, changes)
}

func TestUpsertAbout(t *testing.T) {
	s, store := newTestSite(t)
	require.NoError(t, s.Build(context.Background()))

	require.NoError(t, s.Upsert(writePost(t, store, model.AboutName, "Who I am.", time.Now())))
	assert.Zero(t, s.Count())
	about, ok := s.About()
	require.True(t, ok)
	assert.Contains(t, about, "Who I am.")

	found, err := s.Remove(model.AboutName)
	require.NoError(t, err)
	assert.True(t, found)
	_, ok = s.About()
	assert.False(t, ok)
}

func TestPreviewsOrdering(t *testing.T) {
	s, store := newTestSite(t)
	require.NoError(t, s.Build(context.Background()))

	same := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Upsert(writePost(t, store, "b", "B.", same)))
	require.NoError(t, s.Upsert(writePost(t, store, "a", "A.", same)))
	require.NoError(t, s.Upsert(writePost(t, store, "c", "C.", same.Add(time.Minute))))

	previews := s.Previews()
	require.Len(t, previews, 3)
	assert.Equal(t, "c", previews[0].OriginalName)
	assert.Equal(t, "a", previews[1].OriginalName)
	assert.Equal(t, "b", previews[2].OriginalName)
	assert.Equal(t, model.FormatDate(same.Local()), previews[1].Date)
}
