package api

import (
	"bytes"
	"context"
	"encoding/json"
	"html/template"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/markdown"
	"inkwell/site"
	"inkwell/storage"
	"inkwell/styleconfig"
	"inkwell/theme"
)

const testToken = "0123456789abcdef0123"

type testEnv struct {
	handler http.Handler
	site    *site.Site
	store   *storage.Store
	hub     *LiveReloadHub
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()

	store := storage.New(filepath.Join(t.TempDir(), "posts"))
	require.NoError(t, store.EnsureDirs())
	require.NoError(t, store.Save("hello world.md", []byte("# Hello\n\nFirst post.")))

	tmpl := template.Must(template.New("page").Parse(
		`{{ if .IsRoot }}{{ range .Posts }}<a href="/posts/{{ .EncodedName }}">{{ .OriginalName }}</a>{{ end }}{{ else }}{{ .Contents }}{{ end }}`))
	s, err := site.New(tmpl, markdown.New("monokai"), store, styleconfig.Load())
	require.NoError(t, err)
	require.NoError(t, s.Build(context.Background()))

	themes, err := theme.NewManager("monokai")
	require.NoError(t, err)

	hub := NewLiveReloadHub()
	t.Cleanup(hub.Close)

	srv := NewServer(Options{
		Site:   s,
		Store:  store,
		Themes: themes,
		Hub:    hub,
		Static: fstest.MapFS{
			"styles.css": &fstest.MapFile{Data: []byte("body{}")},
			"img/a.png":  &fstest.MapFile{Data: []byte("png")},
		},
		Token: token,
	})
	return &testEnv{handler: srv.Routes(), site: s, store: store, hub: hub}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

type formFile struct {
	field, name, content string
}

func orderedMultipartBody(t *testing.T, files []formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, token string, files map[string]string) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, files)
	req := httptest.NewRequest(http.MethodPost, "/api/post", body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestRenderRoutes(t *testing.T) {
	env := newTestEnv(t, testToken)

	rec := env.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<a href="/posts/hello&#43;world">hello world</a>`)

	rec = env.get("/posts/hello+world")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<p>First post.</p>")

	rec = env.get("/posts/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found.")

	rec = env.get("/about")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.get("/nowhere/at/all")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found.")
}

func TestStaticFiles(t *testing.T) {
	env := newTestEnv(t, testToken)

	rec := env.get("/public/styles.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())

	rec = env.get("/public/img/a.png")
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, p := range []string{"/public/missing.css", "/public/img", "/public/../go.mod"} {
		rec = env.get(p)
		assert.Equal(t, http.StatusNotFound, rec.Code, p)
		assert.Contains(t, rec.Body.String(), "Page not found.", p)
	}

	rec = env.get("/public/highlight.css?style=github")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".chroma")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testToken)

	rec := env.get("/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string `json:"status"`
		Posts  int    `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Posts)
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t, testToken)

	rec := env.do(uploadRequest(t, "", map[string]string{"new.md": "# New"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(uploadRequest(t, "wrong-token-wrong-token", map[string]string{"new.md": "# New"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(uploadRequest(t, testToken, map[string]string{"new.md": "# New\n\nFresh."}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"new.md"}, resp.Saved)

	page, ok := env.site.Post("new")
	require.True(t, ok)
	assert.Contains(t, page, "Fresh.")
	assert.Equal(t, 2, env.site.Count())
}

func TestUploadRejects(t *testing.T) {
	env := newTestEnv(t, testToken)

	rec := env.do(uploadRequest(t, testToken, map[string]string{"notes.txt": "text"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid markdown file", errorMessage(t, rec))

	rec = env.do(uploadRequest(t, testToken, map[string]string{"empty.md": ""}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `Empty file: "empty.md"`, errorMessage(t, rec))

	req := httptest.NewRequest(http.MethodPost, "/api/post", strings.NewReader("not multipart"))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec = env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadOrderIsDeterministic(t *testing.T) {
	files := []formFile{
		{"c", "third.md", "# Third"},
		{"a", "first.md", "# First"},
		{"b", "second.md", "# Second"},
		{"a", "also-first.md", "# Also"},
	}

	for i := 0; i < 5; i++ {
		env := newTestEnv(t, testToken)
		body, contentType := orderedMultipartBody(t, files)
		req := httptest.NewRequest(http.MethodPost, "/api/post", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+testToken)

		rec := env.do(req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var resp uploadResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"first.md", "also-first.md", "second.md", "third.md"}, resp.Saved)
	}
}

func TestUploadStopsAtFirstRejectedField(t *testing.T) {
	for i := 0; i < 5; i++ {
		env := newTestEnv(t, testToken)
		body, contentType := orderedMultipartBody(t, []formFile{
			{"b", "notes.txt", "text"},
			{"a", "good.md", "# Good"},
			{"c", "later.md", "# Later"},
		})
		req := httptest.NewRequest(http.MethodPost, "/api/post", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+testToken)

		rec := env.do(req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid markdown file", errorMessage(t, rec))

		_, ok := env.site.Post("good")
		assert.True(t, ok)
		_, ok = env.site.Post("later")
		assert.False(t, ok)
	}
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t, testToken)

	del := func(id, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/api/posts/"+id, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return env.do(req)
	}

	assert.Equal(t, http.StatusUnauthorized, del("hello+world", "").Code)

	rec := del("hello+world", testToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, ok := env.site.Post("hello world")
	assert.False(t, ok)
	assert.Zero(t, env.site.Count())

	rec = del("hello+world", testToken)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "File not found", errorMessage(t, rec))
}

func TestWriteRoutesDisabledWithoutToken(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(uploadRequest(t, "", map[string]string{"new.md": "# New"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/posts/hello+world", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1, env.site.Count())
}

func TestLiveReloadBroadcast(t *testing.T) {
	env := newTestEnv(t, testToken)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	env.hub.Broadcast(site.Change{Name: "hello world"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got site.Change
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, site.Change{Name: "hello world"}, got)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return env.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
