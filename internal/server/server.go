package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-stat/internal/api"
	"github.com/joeblew999/plat-stat/internal/api/panel"
	"github.com/joeblew999/plat-stat/internal/catalog"
	"github.com/joeblew999/plat-stat/internal/dashboard"
	"github.com/joeblew999/plat-stat/internal/db"
	"github.com/joeblew999/plat-stat/internal/feature"
	"github.com/joeblew999/plat-stat/internal/humastar"
	"github.com/joeblew999/plat-stat/internal/logger"
	"github.com/joeblew999/plat-stat/internal/metrics"
	"github.com/joeblew999/plat-stat/internal/registry"
	"github.com/joeblew999/plat-stat/internal/source"
	"github.com/joeblew999/plat-stat/internal/templates"
)

// DataPrefix is where layer files are served.
const DataPrefix = "/data/"

// Config holds the server configuration.
type Config struct {
	Host        string
	Port        string
	WebDir      string // static files and page templates; optional
	Catalog     string // catalog YAML file; empty uses the embedded one
	Registry    string // manufacturer registry file name within the source
	Source      source.Config
	StateDir    string // DuckDB location
	DBName      string
	SessionIdle time.Duration
	// Offline skips the data source and the warehouse. Used to export the
	// OpenAPI document without any data.
	Offline bool
}

// Server is the dashboard HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	db       *sql.DB
	src      source.Store
	services *api.Services
	renderer *templates.Renderer
}

// New loads the catalog, layers and registry and wires every route.
func New(ctx context.Context, cfg Config) (*Server, error) {
	cat, err := loadCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	renderer, err := templates.Default()
	if err != nil {
		return nil, fmt.Errorf("load fragments: %w", err)
	}
	if cfg.WebDir != "" {
		fragmentsDir := filepath.Join(cfg.WebDir, "templates", "fragments")
		if r, err := templates.New(fragmentsDir); err == nil {
			renderer = r
			logger.L().Info("fragments_loaded", "dir", fragmentsDir)
		}
	}

	s := &Server{config: cfg, mux: http.NewServeMux(), renderer: renderer}

	store := feature.NewStore(cat.Regions)
	reg := registry.Empty()
	if !cfg.Offline {
		src, err := source.Open(ctx, cfg.Source)
		if err != nil {
			return nil, fmt.Errorf("open data source: %w", err)
		}
		s.src = src
		if err := store.Load(ctx, src, cat.Layers); err != nil {
			return nil, err
		}
		reg = registry.Load(ctx, src, cfg.Registry)

		// The warehouse is optional; the dashboard works without it.
		if conn, err := db.Get(db.Config{DataDir: cfg.StateDir, DBName: cfg.DBName}); err != nil {
			logger.L().Warn("duckdb_unavailable", "err", err)
		} else if _, err := db.NewObservations(ctx, conn); err != nil {
			logger.L().Warn("duckdb_schema_failed", "err", err)
		} else {
			s.db = conn
		}
	}

	deps := dashboard.NewDeps(cat, store, reg, renderer)
	s.services = &api.Services{
		Deps:     deps,
		Sessions: dashboard.NewSessions(deps, cfg.SessionIdle),
		DataURL:  strings.TrimSuffix(DataPrefix, "/"),
	}

	humaConfig := huma.DefaultConfig("plat-stat API", api.Version)
	humaConfig.Info.Description = "Thematic statistics dashboard: metric catalog, per-session map styling, charts and popups."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, humastar.LinkTransformer())
	s.humaAPI = humago.New(s.mux, humaConfig)

	s.routes()
	s.handler = logger.AccessMiddleware(logger.L())(s.mux)
	return s, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return cat, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Sessions returns the session table, for the idle pruner.
func (s *Server) Sessions() *dashboard.Sessions {
	return s.services.Sessions
}

// Status reports the loaded feature count per layer.
func (s *Server) Status() map[string]int {
	return s.services.Deps.Store.Status()
}

// Close closes server resources.
func (s *Server) Close() error {
	return db.Close()
}

func (s *Server) routes() {
	// REST routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)

	location := s.config.Source.Root
	driver := s.config.Source.Driver
	if driver == "" {
		driver = string(source.DriverFilesystem)
	}
	if driver == string(source.DriverS3) {
		location = "s3://" + s.config.Source.S3.Bucket + "/" + s.config.Source.S3.Prefix
	}
	api.NewInfoHandler(api.InfoConfig{
		Source:   driver,
		DataDir:  location,
		DB:       s.db != nil,
		Sessions: s.services.Sessions.Len,
	}).RegisterRoutes(s.humaAPI)

	// Panel SSE routes using Huma + Datastar SDK
	panel.NewHandler(s.services.Sessions, s.services.Deps, s.renderer).RegisterRoutes(s.humaAPI)

	// Links are derived once every route exists.
	humastar.AutoLinks(s.humaAPI, "panel")

	s.mux.Handle(DataPrefix, http.StripPrefix(DataPrefix, s.handleData()))
	s.mux.Handle("/metrics", metrics.Handler())

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}
	s.mux.HandleFunc("/", s.handleRoot)
}

// handleData streams a layer or registry file from the data source.
func (s *Server) handleData() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.src == nil {
			http.Error(w, "No data source", http.StatusServiceUnavailable)
			return
		}
		name, err := source.CleanName(r.URL.Path)
		if err != nil {
			http.Error(w, "Invalid file name", http.StatusBadRequest)
			return
		}
		rc, err := s.src.Open(r.Context(), name)
		if err != nil {
			if errors.Is(err, source.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			logger.L().Error("data_open_failed", "file", name, "err", err)
			http.Error(w, "Failed to open file", http.StatusBadGateway)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", source.ContentType(name))
		w.Header().Set("Cache-Control", "public, max-age=300")
		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(w, rc); err != nil {
			logger.L().Warn("data_stream_aborted", "file", name, "err", err)
		}
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.config.WebDir != "" {
		page := filepath.Join(s.config.WebDir, "templates", "index.html")
		http.ServeFile(w, r, page)
		return
	}
	for _, link := range humastar.RootLinks() {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"service":  "plat-stat",
		"status":   "running",
		"sessions": s.services.Sessions.Len(),
	})
}
