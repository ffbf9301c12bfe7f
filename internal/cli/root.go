// Package cli wires configuration, storage and endpoints into the ogpimage
// commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ogpimage/internal/cache"
	"ogpimage/internal/config"
	"ogpimage/internal/feed"
	"ogpimage/internal/fetcher"
	"ogpimage/internal/ogp"
	"ogpimage/internal/server"
)

// Version will be set during build
var Version = "dev"

type Options struct {
	Logger *log.Logger
	Out    io.Writer
	// Getter replaces the HTTP fetcher when set.
	Getter fetcher.Getter
	// Config replaces the environment lookup when set.
	Config func() config.Config
}

type flags struct {
	port       int
	store      string
	dbPath     string
	dataPath   string
	configFile string
}

// apply overrides cfg with the flags that were provided.
func (f *flags) apply(cfg config.Config) config.Config {
	if f.port > 0 {
		cfg.Port = f.port
	}
	if f.store != "" {
		cfg.Store = strings.ToLower(f.store)
	}
	if f.dbPath != "" {
		cfg.DBPath = f.dbPath
	}
	if f.dataPath != "" {
		cfg.DataPath = f.dataPath
	}
	if f.configFile != "" {
		cfg.ConfigFile = f.configFile
	}
	return cfg
}

func NewRootCommand(opts Options) *cobra.Command {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "ogpimage: ", log.LstdFlags|log.Lshortfile)
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Config == nil {
		opts.Config = config.GetConfig
	}

	f := &flags{}
	root := &cobra.Command{
		Use:           "ogpimage",
		Short:         "Serve cached Open Graph preview images.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.store, "store", "", "cache store: sqlite, bbolt or memory (default: sqlite or OGP_STORE)")
	root.PersistentFlags().StringVar(&f.dbPath, "db", "", "path to the sqlite cache (default: data/ogpimage.db or OGP_DB_PATH)")
	root.PersistentFlags().StringVar(&f.dataPath, "data", "", "path to the data directory (default: data or OGP_DATA_PATH)")
	root.PersistentFlags().StringVar(&f.configFile, "config", "", "endpoint file in yaml, toml or json (default: OGP_CONFIG)")

	load := func() (*app, error) {
		return newApp(f.apply(opts.Config()), opts.Logger, opts.Getter)
	}

	root.AddCommand(
		serveCommand(opts, f, load),
		renderCommand(opts, load),
		purgeCommand(opts, load),
		versionCommand(opts),
	)
	return root
}

func serveCommand(opts Options, f *flags, load func() (*app, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			logger := opts.Logger
			logger.Printf("Starting ogpimage v%s", Version)
			logger.Printf("Port: %d", a.cfg.Port)
			logger.Printf("Store: %s", a.cfg.Store)
			for _, ep := range a.endpoints {
				logger.Printf("Endpoint %s: %s", ep.Name(), ep.Path())
			}
			if a.cfg.GoogleFontsAPIKey == "" {
				logger.Printf("GOOGLE_FONTS_API_KEY is not set; endpoints using directory fonts will fail")
			}

			janitor := cache.NewJanitor(a.store, logger, time.Hour, cache.DefaultRetention)
			janitor.Start()
			defer janitor.Stop()

			if a.cfg.RefreshInterval > 0 {
				for _, r := range a.resolvers {
					refresher := feed.NewRefresher(r, logger, a.cfg.RefreshInterval)
					refresher.Start()
					defer refresher.Stop()
				}
			}

			srv, err := server.NewServer(logger, a.endpoints, server.Config{
				AutocertDomains: a.cfg.AutocertDomains,
				CacheDir:        a.cfg.DataPath,
				Health:          a.health,
			})
			if err != nil {
				return fmt.Errorf("failed to initialize server: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Start(ctx, a.cfg.GetAddress())
		},
	}
	cmd.Flags().IntVar(&f.port, "port", 0, "port to run the server on (default: 8080 or OGP_PORT)")
	return cmd
}

func renderCommand(opts Options, load func() (*app, error)) *cobra.Command {
	var (
		params  []string
		out     string
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "render <source>",
		Short: "Render one image to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseParams(params)
			if err != nil {
				return err
			}
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			ep, err := a.endpoint(args[0])
			if err != nil {
				return err
			}
			res, err := ep.Render(cmd.Context(), q, noCache)
			if err != nil {
				status, msg := ogp.Status(err)
				return fmt.Errorf("%d %s: %w", status, msg, err)
			}
			if out == "" {
				out = args[0] + ".png"
			}
			if err := os.WriteFile(out, res.Body, 0644); err != nil {
				return fmt.Errorf("error writing %s: %w", out, err)
			}

			source := "rendered"
			if res.Cached {
				source = "cached"
			}
			fmt.Fprintf(opts.Out, "%s %s (%d bytes, %s)\n", source, out, len(res.Body), res.Key)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "request parameter as name=value (can be repeated)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: <source>.png)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "skip the image cache read")
	return cmd
}

func parseParams(params []string) (url.Values, error) {
	q := url.Values{}
	for _, p := range params {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid param %q (want name=value)", p)
		}
		q.Set(name, value)
	}
	return q, nil
}

func purgeCommand(opts Options, load func() (*app, error)) *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete cache entries that expired before the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			janitor := cache.NewJanitor(a.store, opts.Logger, time.Hour, retention)
			n, err := janitor.PurgeOnce(cmd.Context(), time.Now())
			if err != nil {
				return fmt.Errorf("error purging cache: %w", err)
			}
			fmt.Fprintf(opts.Out, "purged %d entries\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", cache.DefaultRetention, "keep expired entries this long for stale fallback")
	return cmd
}

func versionCommand(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(opts.Out, "ogpimage version %s\n", Version)
		},
	}
}

// Execute runs the root command with the process environment.
func Execute() {
	root := NewRootCommand(Options{})
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
