package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joeblew999/plat-stat/internal/source"
)

const balanceJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"ADM1_EN":"Kostanay Region","ADM_2_rus":"КОСТАНАЙСКАЯ ОБЛАСТЬ","crime_2021":80},
 "geometry":{"type":"Polygon","coordinates":[[[60,50],[66,50],[66,54],[60,54],[60,50]]]}}
]}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "balance.geojson"), []byte(balanceJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := New(context.Background(), Config{
		Host:     "localhost",
		Port:     "8086",
		Source:   source.Config{Root: dir},
		StateDir: filepath.Join(dir, "state"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServer(t *testing.T) {
	s := newTestServer(t)

	t.Run("layer status", func(t *testing.T) {
		st := s.Status()
		if st["balance"] != 1 {
			t.Fatalf("balance=%d, want 1", st["balance"])
		}
		if st["fairs"] != -1 {
			t.Fatalf("fairs=%d, want -1 for a missing file", st["fairs"])
		}
	})

	t.Run("data file", func(t *testing.T) {
		w := get(s, "/data/balance.geojson")
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "geo+json") {
			t.Fatalf("content-type=%q, want geo+json", ct)
		}
		if !strings.Contains(w.Body.String(), "КОСТАНАЙСКАЯ ОБЛАСТЬ") {
			t.Fatalf("body=%s", w.Body.String())
		}
	})

	t.Run("missing data file", func(t *testing.T) {
		if w := get(s, "/data/nope.geojson"); w.Code != http.StatusNotFound {
			t.Fatalf("status=%d, want 404", w.Code)
		}
	})

	t.Run("health", func(t *testing.T) {
		w := get(s, "/health")
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d", w.Code)
		}
		var body struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Status != "degraded" {
			t.Fatalf("status=%q, want degraded with missing layers", body.Status)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		w := get(s, "/metrics")
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "statmap_") {
			t.Fatalf("no statmap metrics exported")
		}
	})

	t.Run("root", func(t *testing.T) {
		w := get(s, "/")
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d", w.Code)
		}
		if len(w.Header().Values("Link")) == 0 {
			t.Fatalf("root has no Link headers")
		}
		if w := get(s, "/unknown"); w.Code != http.StatusNotFound {
			t.Fatalf("status=%d, want 404", w.Code)
		}
	})

	t.Run("openapi", func(t *testing.T) {
		doc := s.OpenAPI()
		for _, p := range []string{"/api/v1/catalog", "/api/v1/sessions", "/api/v1/panel/levels"} {
			if doc.Paths[p] == nil {
				t.Fatalf("path %s not documented", p)
			}
		}
	})
}

func TestOffline(t *testing.T) {
	s, err := New(context.Background(), Config{Host: "localhost", Port: "8086", Offline: true})
	if err != nil {
		t.Fatal(err)
	}
	if w := get(s, "/data/balance.geojson"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503 without a source", w.Code)
	}
}
