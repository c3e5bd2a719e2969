package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-stat/internal/catalog"
	"github.com/joeblew999/plat-stat/internal/db"
	"github.com/joeblew999/plat-stat/internal/ingest"
	"github.com/joeblew999/plat-stat/internal/logger"
	"github.com/joeblew999/plat-stat/internal/server"
	"github.com/joeblew999/plat-stat/internal/source"
)

// Options defines all CLI flags and env vars for the dashboard server.
// Flags: --host, --port, --data-dir, --source, --s3-bucket, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_SOURCE, ...
type Options struct {
	Host        string        `doc:"Host to bind to" default:"0.0.0.0"`
	Port        int           `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir     string        `doc:"Directory with layer GeoJSON and exports (fs source)" default:"data"`
	StateDir    string        `doc:"Directory for the DuckDB warehouse" default:".data"`
	WebDir      string        `doc:"Path to web/ directory with static files and page templates" default:""`
	Catalog     string        `doc:"Catalog YAML file; the embedded catalog is used when empty" default:""`
	Registry    string        `doc:"Manufacturer registry file within the data source" default:"manufacturers.json"`
	Source      string        `doc:"Data source driver: fs or s3" enum:"fs,s3" default:"fs"`
	S3Bucket    string        `doc:"S3 bucket for the s3 source" default:""`
	S3Region    string        `doc:"S3 region" default:"us-east-1"`
	S3Endpoint  string        `doc:"Custom S3 endpoint, e.g. MinIO" default:""`
	S3Prefix    string        `doc:"Key prefix within the bucket" default:""`
	Duckdb      string        `doc:"DuckDB database name" default:"statmap"`
	LogLevel    string        `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat   string        `doc:"Log format: text or json" default:"text"`
	SessionIdle time.Duration `doc:"Idle time after which a dashboard session is dropped" default:"30m"`
}

func (o *Options) sourceConfig() source.Config {
	return source.Config{
		Driver: o.Source,
		Root:   o.DataDir,
		S3: source.S3Config{
			Bucket:    o.S3Bucket,
			Region:    o.S3Region,
			Endpoint:  o.S3Endpoint,
			Prefix:    o.S3Prefix,
			PathStyle: o.S3Endpoint != "",
		},
	}
}

func serverConfig(opts *Options) server.Config {
	return server.Config{
		Host:        opts.Host,
		Port:        fmt.Sprintf("%d", opts.Port),
		WebDir:      opts.WebDir,
		Catalog:     opts.Catalog,
		Registry:    opts.Registry,
		Source:      opts.sourceConfig(),
		StateDir:    opts.StateDir,
		DBName:      opts.Duckdb,
		SessionIdle: opts.SessionIdle,
	}
}

func main() {
	// .env is optional; real env vars win.
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		logger.Configure(opts.LogLevel, opts.LogFormat)
		ctx, cancel := context.WithCancel(context.Background())

		var srv *server.Server
		hooks.OnStart(func() {
			var err error
			srv, err = server.New(ctx, serverConfig(opts))
			if err != nil {
				log.Fatalf("Startup error: %v", err)
			}
			go srv.Sessions().Run(ctx)

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			loaded := 0
			for _, n := range srv.Status() {
				if n >= 0 {
					loaded++
				}
			}

			fmt.Println()
			fmt.Printf("plat-stat dashboard starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Source:  %s (%s)\n", opts.Source, opts.DataDir)
			fmt.Printf("  Layers:  %d of %d loaded\n", loaded, len(srv.Status()))
			fmt.Println()
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		})
		hooks.OnStop(func() {
			cancel()
			if srv != nil {
				srv.Close()
			}
		})
	})

	cli.Root().Use = "statmap"
	cli.Root().Short = "Thematic statistics dashboard for regional maps"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cfg := serverConfig(opts)
			cfg.Offline = true
			srv, err := server.New(cmd.Context(), cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error building server: %v\n", err)
				os.Exit(1)
			}
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// check subcommand: validate the catalog
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the metric catalog and print a summary",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cat, err := loadCatalog(opts.Catalog)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid catalog: %v\n", err)
				os.Exit(1)
			}
			metrics := 0
			for _, c := range cat.Categories {
				metrics += len(c.Metrics)
			}
			fmt.Printf("catalog ok: %d levels, %d layers, %d categories, %d metrics\n",
				len(cat.Levels), len(cat.Layers), len(cat.Categories), metrics)
		}),
	}
	cli.Root().AddCommand(checkCmd)

	// ingest subcommand: fold open-data exports into a layer
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Parse indicator exports, stage them in DuckDB and merge them into a layer",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			logger.Configure(opts.LogLevel, opts.LogFormat)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := runIngest(ctx, cmd, opts); err != nil {
				fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	ingestCmd.Flags().StringP("rules", "r", "", "Ingest rules YAML (built-in rules when empty)")
	ingestCmd.Flags().StringP("output", "o", "", "Output GeoJSON path (overrides the rules file)")
	ingestCmd.Flags().Bool("no-warehouse", false, "Merge in memory without staging in DuckDB")
	cli.Root().AddCommand(ingestCmd)

	cli.Run()
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}

func runIngest(ctx context.Context, cmd *cobra.Command, opts *Options) error {
	cfg := ingest.DefaultConfig()
	if rules, _ := cmd.Flags().GetString("rules"); rules != "" {
		var err error
		if cfg, err = ingest.LoadConfigFile(rules); err != nil {
			return err
		}
	}
	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = filepath.Join(opts.DataDir, cfg.Output)
	}

	cat, err := loadCatalog(opts.Catalog)
	if err != nil {
		return err
	}

	src, err := source.Open(ctx, opts.sourceConfig())
	if err != nil {
		return fmt.Errorf("open data source: %w", err)
	}

	var sink ingest.Sink
	if skip, _ := cmd.Flags().GetBool("no-warehouse"); !skip {
		conn, err := db.Get(db.Config{DataDir: opts.StateDir, DBName: opts.Duckdb})
		if err != nil {
			return fmt.Errorf("open warehouse: %w", err)
		}
		defer db.Close()
		if sink, err = db.NewObservations(ctx, conn); err != nil {
			return err
		}
	}

	fc, rep, err := ingest.Run(ctx, src, cfg, ingest.NewAliases(cat.RegionAliases), sink)
	if err != nil {
		return err
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode layer: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	fmt.Printf("ingest ok: %d observations, %d regions, %d features updated -> %s\n",
		rep.Observations, rep.Regions, rep.Updated, out)
	for _, name := range rep.Unmatched {
		fmt.Printf("  unmatched: %s\n", name)
	}
	for _, file := range rep.Skipped {
		fmt.Printf("  skipped:   %s\n", file)
	}
	return nil
}
