// Package ingest folds open-data indicator exports into GeoJSON layer
// properties as "<prefix><suffix>_<year>" keys, the form the chart binder
// reads time series from.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Subtype maps records whose term names contain Keyword to a key suffix.
// When Term is set only that term name is checked.
type Subtype struct {
	Keyword string `yaml:"keyword"`
	Suffix  string `yaml:"suffix"`
	Term    *int   `yaml:"term,omitempty"`
}

// TermFilter keeps a record only when its term name at Index contains Contains.
type TermFilter struct {
	Index    int    `yaml:"index"`
	Contains string `yaml:"contains"`
}

// Rule describes how one export file is read.
type Rule struct {
	File           string       `yaml:"file"`
	Prefix         string       `yaml:"prefix"`
	Subtypes       []Subtype    `yaml:"subtypes,omitempty"`
	FilterKeywords []string     `yaml:"filterKeywords,omitempty"`
	TermFilters    []TermFilter `yaml:"termFilters,omitempty"`
}

// Config is an ingest job: the export rules and the layer they merge into.
type Config struct {
	Target  string `yaml:"target"`
	Output  string `yaml:"output"`
	Sources []Rule `yaml:"sources"`
}

// DefaultConfig mirrors the regional indicators the dashboard charts.
func DefaultConfig() Config {
	return Config{
		Target: "balance.geojson",
		Output: "balance_updated.geojson",
		Sources: []Rule{
			{File: "2709379-vvp-metodom-proizvodstva.json", Prefix: "vrp"},
			{File: "704767-kolichestvo-prestupleniy.json", Prefix: "crime", FilterKeywords: []string{"Декабрь", "год"}},
			{File: "potreb-rashody.json", Prefix: "expenses", Subtypes: []Subtype{
				{Keyword: "Всего", Suffix: "_total"},
				{Keyword: "сельская местность", Suffix: "_rural"},
				{Keyword: "городская местность", Suffix: "_urban"},
			}},
		},
	}
}

// LoadConfig reads an ingest job from YAML.
func LoadConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode ingest config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads an ingest job from a file.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read ingest config: %w", err)
	}
	return LoadConfig(bytes.NewReader(data))
}

// Validate checks that every rule names a file and a prefix.
func (c Config) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("ingest config: target layer file required")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("ingest config: no sources")
	}
	for i, r := range c.Sources {
		if r.File == "" || r.Prefix == "" {
			return fmt.Errorf("ingest config: source %d needs file and prefix", i)
		}
		for _, st := range r.Subtypes {
			if st.Keyword == "" {
				return fmt.Errorf("ingest config: source %s has an empty subtype keyword", r.File)
			}
		}
	}
	return nil
}
