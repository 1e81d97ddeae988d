package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

const postExt = ".md"

var (
	// ErrNotFound is returned when a post file does not exist.
	ErrNotFound = errors.New("post not found")
	// ErrEmptyFile is returned when saving a post without content.
	ErrEmptyFile = errors.New("empty file")
	// ErrInvalidName is returned for names that would escape the posts directory.
	ErrInvalidName = errors.New("invalid post name")
)

// Descriptor identifies a post file by its names.
type Descriptor struct {
	OriginalName string
	EncodedName  string
	Path         string
}

// Describe derives a Descriptor from a file path. Paths without a usable
// file stem are described as "unnamed".
func Describe(path string) Descriptor {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if base == "." || base == string(filepath.Separator) || stem == "" {
		return Descriptor{OriginalName: "unnamed", EncodedName: "unnamed", Path: path}
	}
	return Descriptor{
		OriginalName: stem,
		EncodedName:  url.QueryEscape(stem),
		Path:         path,
	}
}

// Entry is one post file as found on disk.
type Entry struct {
	Descriptor
	ModTime  time.Time
	Contents []byte
}

// Store provides access to the posts directory.
type Store struct {
	baseDir string
	mu      sync.Mutex
}

// New creates a new Store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Dir returns the posts directory.
func (s *Store) Dir() string { return s.baseDir }

// EnsureDirs creates the posts directory if needed.
func (s *Store) EnsureDirs() error {
	return os.MkdirAll(s.baseDir, 0o755)
}

// List reads every regular file in the posts directory.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirEntries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		entry, err := s.read(filepath.Join(s.baseDir, de.Name()))
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Read loads a single post file by path.
func (s *Store) Read(path string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(path)
}

func (s *Store) read(path string) (Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return Entry{}, err
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Descriptor: Describe(path),
		ModTime:    info.ModTime(),
		Contents:   contents,
	}, nil
}

// Save writes a post atomically under fileName, replacing any existing file.
func (s *Store) Save(fileName string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: %q", ErrEmptyFile, fileName)
	}
	if err := checkName(fileName); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return renameio.WriteFile(filepath.Join(s.baseDir, fileName), data, 0o644)
}

// Delete removes the post whose stem is id.
func (s *Store) Delete(id string) error {
	if err := checkName(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(filepath.Join(s.baseDir, id+postExt))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
