package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"inkwell/api"
	"inkwell/config"
	"inkwell/logging"
	"inkwell/markdown"
	"inkwell/site"
	"inkwell/storage"
	"inkwell/styleconfig"
	"inkwell/theme"
	"inkwell/watcher"
)

//go:embed public
var publicFS embed.FS

const pageTemplate = "public/index.html"

var (
	dataDir      string
	listen       string
	listenPort   int
	tlsCert      string
	tlsKey       string
	apiToken     string
	tailwindFile string
	contentRoot  string
	appVersion   = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:          "inkwell",
	Short:        "inkwell – markdown blog server",
	Long:         "Inkwell serves a directory of markdown posts as a blog and re-renders them as they change.",
	RunE:         run,
	SilenceUsage: true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  "Manage inkwell configuration files.",
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a default configuration file",
	Long:  "Generate a default inkwell.config file with a fresh API token in the specified data directory (or current directory if not specified).",
	RunE:  runConfigGenerate,
}

var tailwindCmd = &cobra.Command{
	Use:   "tailwind",
	Short: "Stylesheet tool configuration",
	Long:  "Inspect the configuration document handed to the stylesheet build.",
}

var tailwindPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the configuration as tailwind.config.js",
	RunE:  runTailwindPrint,
}

var tailwindCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and list the files its content globs match",
	RunE:  runTailwindCheck,
}

func init() {
	wd, _ := os.Getwd()
	rootCmd.Version = appVersion
	rootCmd.Flags().StringVar(&dataDir, "data-dir", wd, "Data directory (default: current directory)")
	rootCmd.Flags().StringVar(&listen, "listen", "127.0.0.1", "IP address to listen on, or \"all\"")
	rootCmd.Flags().IntVar(&listenPort, "listen-port", 3443, "Port to listen on")
	rootCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "TLS certificate file (PEM)")
	rootCmd.Flags().StringVar(&tlsKey, "tls-key", "", "TLS private key file (PEM)")
	rootCmd.Flags().StringVar(&apiToken, "token", "", "Bearer token for the upload and delete API")

	configGenerateCmd.Flags().StringVar(&dataDir, "data-dir", wd, "Data directory where config file will be created (default: current directory)")
	configCmd.AddCommand(configGenerateCmd)

	tailwindCmd.PersistentFlags().StringVar(&tailwindFile, "file", "", "Read the document from a JSON, YAML or TOML file instead of the built-in one")
	tailwindCheckCmd.Flags().StringVar(&contentRoot, "root", ".", "Directory the content globs are resolved against")
	tailwindCmd.AddCommand(tailwindPrintCmd, tailwindCheckCmd)

	rootCmd.AddCommand(configCmd, tailwindCmd)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override config with CLI flags only if they were explicitly provided
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if cmd.Flags().Changed("listen") || cmd.Flags().Changed("listen-port") {
		if listen != "" && listen != "all" {
			cfg.ListenAddr = net.JoinHostPort(listen, fmt.Sprint(listenPort))
		} else {
			cfg.ListenAddr = fmt.Sprintf(":%d", listenPort)
		}
	}
	if cmd.Flags().Changed("tls-cert") {
		cfg.TLSCert = tlsCert
	}
	if cmd.Flags().Changed("tls-key") {
		cfg.TLSKey = tlsKey
	}
	if cmd.Flags().Changed("token") {
		cfg.APIToken = apiToken
	}

	dataDirAbs, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = dataDirAbs

	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Configure(logging.Config{Level: cfg.LogLevel})
	logger := logging.WithComponent("main")

	doc, err := loadDocument(cfg.TailwindPath())
	if err != nil {
		return err
	}

	tmpl, err := template.ParseFS(publicFS, pageTemplate)
	if err != nil {
		return fmt.Errorf("parse page template: %w", err)
	}

	themes, err := theme.NewManager(cfg.HighlightStyle)
	if err != nil {
		return err
	}

	static, err := staticFiles(cfg.PublicPath())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := storage.New(cfg.PostsPath())
	blog, err := site.New(tmpl, markdown.New(cfg.HighlightStyle), store, doc)
	if err != nil {
		return err
	}
	if err := blog.Build(ctx); err != nil {
		return fmt.Errorf("build site: %w", err)
	}

	hub := api.NewLiveReloadHub()
	blog.SetOnChange(func(c site.Change) {
		hub.Broadcast(c)
	})

	postsWatcher := watcher.New(store, blog, time.Duration(cfg.WatchDebounceMS)*time.Millisecond)

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: api.NewServer(api.Options{
			Site:   blog,
			Store:  store,
			Themes: themes,
			Hub:    hub,
			Static: static,
			Token:  cfg.APIToken,
		}).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printListeningAddresses(logger, cfg.ListenAddr, cfg.TLSEnabled())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return postsWatcher.Run(gctx)
	})
	g.Go(func() error {
		var err error
		if cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Str("event", "server.shutdown").Msg("shutting down...")
		hub.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// loadDocument returns the built-in stylesheet document, or the one in path.
func loadDocument(path string) (styleconfig.Document, error) {
	if path == "" {
		return styleconfig.Load(), nil
	}
	doc, err := styleconfig.LoadFile(path)
	if err != nil {
		return styleconfig.Document{}, fmt.Errorf("load %s: %w", path, err)
	}
	return doc, nil
}

// staticFiles prefers a public directory on disk and falls back to the
// embedded one.
func staticFiles(dir string) (fs.FS, error) {
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("public dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("public dir %s is not a directory", dir)
		}
		return os.DirFS(dir), nil
	}
	return fs.Sub(publicFS, "public")
}

func runConfigGenerate(cmd *cobra.Command, args []string) error {
	dataDirAbs, err := filepath.Abs(dataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := config.Default()
	cfg.DataDir = dataDirAbs
	if cfg.APIToken, err = config.NewToken(); err != nil {
		return fmt.Errorf("generate api token: %w", err)
	}

	cfgPath := filepath.Join(dataDirAbs, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("config file already exists: %s", cfgPath)
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Generated default config file: %s\n", cfgPath)
	return nil
}

func runTailwindPrint(cmd *cobra.Command, args []string) error {
	doc, err := loadDocument(tailwindFile)
	if err != nil {
		return err
	}
	return doc.WriteJS(cmd.OutOrStdout())
}

func runTailwindCheck(cmd *cobra.Command, args []string) error {
	doc, err := loadDocument(tailwindFile)
	if err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	return checkContent(cmd.OutOrStdout(), doc, os.DirFS(contentRoot))
}

// checkContent prints the files each content pattern matches and fails if
// any pattern matches nothing.
func checkContent(w io.Writer, doc styleconfig.Document, fsys fs.FS) error {
	matches, err := doc.MatchContent(fsys)
	if err != nil {
		return err
	}

	var empty []string
	for _, pattern := range doc.Content {
		files := matches[pattern]
		fmt.Fprintf(w, "%s (%d)\n", pattern, len(files))
		for _, f := range files {
			fmt.Fprintf(w, "  %s\n", f)
		}
		if len(files) == 0 {
			empty = append(empty, pattern)
		}
	}
	if len(empty) > 0 {
		return fmt.Errorf("content patterns match no files: %v", empty)
	}
	return nil
}

func printListeningAddresses(logger zerolog.Logger, addr string, tls bool) {
	scheme := "http"
	if tls {
		scheme = "https"
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		logger.Info().Msgf("listening on %s://%s", scheme, addr)
		return
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		// Listening on all interfaces
		addrs, err := net.InterfaceAddrs()
		if err == nil {
			logger.Info().Msg("listening on:")
			for _, a := range addrs {
				if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
					if ipnet.IP.To4() != nil {
						logger.Info().Msgf("  %s://%s:%s", scheme, ipnet.IP.String(), port)
					}
				}
			}
			logger.Info().Msgf("  %s://localhost:%s", scheme, port)
			logger.Info().Msgf("  %s://127.0.0.1:%s", scheme, port)
		} else {
			logger.Info().Msgf("listening on %s://0.0.0.0:%s", scheme, port)
		}
	} else {
		logger.Info().Msgf("listening on %s://%s", scheme, net.JoinHostPort(host, port))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
