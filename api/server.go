// Package api exposes the blog over HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"inkwell/logging"
	"inkwell/markdown"
	"inkwell/metrics"
	"inkwell/site"
	"inkwell/storage"
	"inkwell/theme"
)

const (
	// DefaultRequestTimeout bounds every page and API request.
	DefaultRequestTimeout = 5 * time.Second

	maxUploadBytes  = 10 << 20
	apiRequestLimit = 60
	apiWindow       = time.Minute
)

// Options configures a Server.
type Options struct {
	Site   *site.Site
	Store  *storage.Store
	Themes *theme.Manager
	Hub    *LiveReloadHub
	// Static holds the files served under /public/.
	Static fs.FS
	// Token enables the write API when non-empty.
	Token          string
	RequestTimeout time.Duration
}

// Server routes requests to the rendered site and the post API.
type Server struct {
	site    *site.Site
	store   *storage.Store
	themes  *theme.Handler
	hub     *LiveReloadHub
	static  fs.FS
	token   string
	timeout time.Duration
	logger  zerolog.Logger
}

func NewServer(opts Options) *Server {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Server{
		site:    opts.Site,
		store:   opts.Store,
		themes:  theme.NewHandler(opts.Themes),
		hub:     opts.Hub,
		static:  opts.Static,
		token:   opts.Token,
		timeout: timeout,
		logger:  logging.WithComponent("api"),
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(accessLog(s.logger))

	r.NotFound(s.handleNotFound)

	// Long-lived, so kept out of the timeout and compression stack.
	r.Get("/ws", s.hub.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(s.timeout))
		r.Use(chimw.Compress(5))

		r.Get("/", s.handleRoot)
		r.Get("/about", s.handleAbout)
		r.Get("/posts/{id}", s.handlePost)
		r.Get("/public/highlight.css", s.themes.HandleCSS)
		r.Get("/public/*", s.handleStatic)

		r.Get("/api/health", s.handleHealth)
		r.Get("/api/styles", s.themes.HandleStyles)

		if s.token == "" {
			s.logger.Warn().
				Str("event", "api.write_disabled").
				Msg("no api token configured, upload and delete routes are disabled")
			return
		}
		r.Group(func(r chi.Router) {
			r.Use(rateLimit(apiRequestLimit, apiWindow))
			r.Use(requireToken(s.token))
			r.Post("/api/post", s.handleUpload)
			r.Delete("/api/posts/{id}", s.handleDelete)
		})
	})

	return r
}

// ---------- pages ----------

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, http.StatusOK, s.site.Root())
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	page, ok := s.site.About()
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	writeHTML(w, http.StatusOK, page)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	id, err := url.QueryUnescape(chi.URLParam(r, "id"))
	if err != nil {
		s.handleNotFound(w, r)
		return
	}
	page, ok := s.site.Post(id)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	writeHTML(w, http.StatusOK, page)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, http.StatusNotFound, s.site.NotFound())
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + chi.URLParam(r, "*"))[1:]
	if name == "" || s.static == nil {
		s.handleNotFound(w, r)
		return
	}

	f, err := s.static.Open(name)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.handleNotFound(w, r)
		return
	}

	content, ok := f.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(f)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Something went wrong...")
			return
		}
		content = bytes.NewReader(data)
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), content)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"posts":        s.site.Count(),
		"live_clients": s.hub.Count(),
	})
}

// ---------- post API ----------

type uploadResponse struct {
	Saved []string `json:"saved"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		metrics.RecordUpload(err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	// Fields are taken in name order, each field's files in request order.
	fields := make([]string, 0, len(r.MultipartForm.File))
	for field := range r.MultipartForm.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	var files []*multipart.FileHeader
	for _, field := range fields {
		files = append(files, r.MultipartForm.File[field]...)
	}

	saved := make([]string, 0, len(files))
	for _, fh := range files {
		name, err := s.savePart(fh)
		metrics.RecordUpload(err)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("event", "api.upload_rejected").
				Str("file", fh.Filename).
				Msg("rejected uploaded post")
			writeError(w, http.StatusBadRequest, uploadMessage(err, fh.Filename))
			return
		}
		saved = append(saved, name)
	}

	s.logger.Info().
		Str("event", "api.upload").
		Strs("files", saved).
		Msg("uploaded posts")
	writeJSON(w, http.StatusCreated, uploadResponse{Saved: saved})
}

var errInvalidMarkdown = errors.New("invalid markdown file")

// savePart stores one uploaded file and renders it into the site.
func (s *Server) savePart(fh *multipart.FileHeader) (string, error) {
	name, ok := markdown.FileName(fh.Filename)
	if !ok {
		return "", errInvalidMarkdown
	}

	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		return "", err
	}

	if err := s.store.Save(name, data); err != nil {
		return "", err
	}
	entry, err := s.store.Read(filepath.Join(s.store.Dir(), name))
	if err != nil {
		return "", err
	}
	if err := s.site.Upsert(entry); err != nil {
		return "", err
	}
	return name, nil
}

func uploadMessage(err error, fileName string) string {
	switch {
	case errors.Is(err, errInvalidMarkdown):
		return "Invalid markdown file"
	case errors.Is(err, storage.ErrEmptyFile):
		if name, ok := markdown.FileName(fileName); ok {
			return fmt.Sprintf("Empty file: %q", name)
		}
		return "Empty file"
	default:
		return "File creation failed"
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := url.QueryUnescape(chi.URLParam(r, "id"))
	if err != nil || strings.TrimSpace(id) == "" {
		metrics.RecordDelete("not_found")
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	err = s.store.Delete(id)
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidName):
		metrics.RecordDelete("not_found")
		writeError(w, http.StatusNotFound, "File not found")
		return
	case err != nil:
		metrics.RecordDelete("failure")
		s.logger.Error().Err(err).Str("event", "api.delete_failed").Str("post", id).Msg("failed to delete post")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := s.site.Remove(id); err != nil {
		metrics.RecordDelete("failure")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.RecordDelete("success")
	s.logger.Info().Str("event", "api.delete").Str("post", id).Msg("deleted post")
	w.WriteHeader(http.StatusOK)
}

// ---------- helpers ----------

func writeHTML(w http.ResponseWriter, status int, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, page)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		l := logging.WithComponent("api")
		l.Error().Err(err).Msg("writeJSON error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
