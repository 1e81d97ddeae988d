package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/renameio/v2"
)

// FileName is the config file looked up in the data directory.
const FileName = "inkwell.config"

type Config struct {
	DataDir         string `json:"data_dir" validate:"required"`
	ListenAddr      string `json:"listen_addr" validate:"required,hostname_port"`
	PostsDir        string `json:"posts_dir" validate:"required"`
	PublicDir       string `json:"public_dir,omitempty"`
	APIToken        string `json:"api_token,omitempty" validate:"omitempty,min=16"`
	TLSCert         string `json:"tls_cert,omitempty" validate:"required_with=TLSKey"`
	TLSKey          string `json:"tls_key,omitempty" validate:"required_with=TLSCert"`
	LogLevel        string `json:"log_level" validate:"oneof=debug info warn error"`
	HighlightStyle  string `json:"highlight_style" validate:"required"`
	TailwindFile    string `json:"tailwind_file,omitempty"`
	WatchDebounceMS int    `json:"watch_debounce_ms" validate:"gte=0,lte=10000"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Default() Config {
	return Config{
		DataDir:         ".",
		ListenAddr:      "127.0.0.1:3443",
		PostsDir:        "posts",
		LogLevel:        "info",
		HighlightStyle:  "monokai",
		WatchDebounceMS: 200,
	}
}

// Load reads the config file from dataDir, falling back to defaults when it
// does not exist, then applies INKWELL_* environment overrides.
func Load(dataDir string) (Config, error) {
	cfg := Default()
	cfgPath := filepath.Join(dataDir, FileName)

	f, err := os.Open(cfgPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg.DataDir = dataDir
	case err != nil:
		return Config{}, err
	default:
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", cfgPath, err)
		}
	}

	fillDefaults(&cfg)
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fillDefaults(cfg *Config) {
	def := Default()
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.PostsDir == "" {
		cfg.PostsDir = def.PostsDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.HighlightStyle == "" {
		cfg.HighlightStyle = def.HighlightStyle
	}
}

func applyEnv(cfg *Config) error {
	overrides := map[string]*string{
		"INKWELL_DATA_DIR":        &cfg.DataDir,
		"INKWELL_LISTEN_ADDR":     &cfg.ListenAddr,
		"INKWELL_POSTS_DIR":       &cfg.PostsDir,
		"INKWELL_PUBLIC_DIR":      &cfg.PublicDir,
		"INKWELL_API_TOKEN":       &cfg.APIToken,
		"INKWELL_TLS_CERT":        &cfg.TLSCert,
		"INKWELL_TLS_KEY":         &cfg.TLSKey,
		"INKWELL_LOG_LEVEL":       &cfg.LogLevel,
		"INKWELL_HIGHLIGHT_STYLE": &cfg.HighlightStyle,
		"INKWELL_TAILWIND_FILE":   &cfg.TailwindFile,
	}
	for env, dst := range overrides {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("INKWELL_WATCH_DEBOUNCE_MS"); ok && v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("INKWELL_WATCH_DEBOUNCE_MS: %w", err)
		}
		cfg.WatchDebounceMS = ms
	}
	return nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// TLSEnabled reports whether both certificate and key are configured.
func (c Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// PostsPath resolves the posts directory against the data directory.
func (c Config) PostsPath() string {
	return c.resolve(c.PostsDir)
}

// PublicPath resolves the static override directory, or "" if unset.
func (c Config) PublicPath() string {
	if c.PublicDir == "" {
		return ""
	}
	return c.resolve(c.PublicDir)
}

// TailwindPath resolves the document override file, or "" if unset.
func (c Config) TailwindPath() string {
	if c.TailwindFile == "" {
		return ""
	}
	return c.resolve(c.TailwindFile)
}

func (c Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// Save writes cfg to its data directory atomically.
func Save(cfg Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	return renameio.WriteFile(filepath.Join(cfg.DataDir, FileName), data, 0o600)
}

// NewToken returns a random API token suitable for Config.APIToken.
func NewToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
