package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"ogpimage/internal/feed"
	"ogpimage/internal/font"
)

// Source describes one image endpoint.
type Source struct {
	Name     string   `json:"name" yaml:"name" toml:"name"`
	Path     string   `json:"path" yaml:"path" toml:"path"`
	Template string   `json:"template" yaml:"template" toml:"template"`
	Params   []string `json:"params" yaml:"params" toml:"params"`
	KeyBase  string   `json:"key_base" yaml:"key_base" toml:"key_base"`

	// FeedURL enables post lookup by slug and date.
	FeedURL string `json:"feed_url,omitempty" yaml:"feed_url,omitempty" toml:"feed_url,omitempty"`
	// PageURL is a "{slug}" template for per-page lookup.
	PageURL   string                  `json:"page_url,omitempty" yaml:"page_url,omitempty" toml:"page_url,omitempty"`
	Selectors *feed.SelectorExtractor `json:"selectors,omitempty" yaml:"selectors,omitempty" toml:"selectors,omitempty"`

	Fonts font.Spec `json:"fonts" yaml:"fonts" toml:"fonts"`
}

type File struct {
	Sources []Source `json:"sources" yaml:"sources" toml:"sources"`
}

// DefaultSources are the blog and tools endpoints.
func DefaultSources() []Source {
	return []Source{
		{
			Name:     "blog",
			Path:     "/blog/image.png",
			Template: "blog",
			Params:   []string{"slug", "date"},
			KeyBase:  "https://ogp.kq5.jp/blog/image.png",
			FeedURL:  "https://kq5.jp/rss.xml",
			PageURL:  "https://kq5.jp/{slug}",
			Fonts: font.Spec{
				Family:  "M PLUS Rounded 1c",
				Origin:  font.OriginDirectory,
				Weights: []font.WeightSource{{Source: "regular"}, {Source: "700"}},
			},
		},
		{
			Name:     "tools",
			Path:     "/tools/image.png",
			Template: "tools",
			Params:   []string{"cat", "slug", "title"},
			KeyBase:  "https://ogp.t3x.jp/tools/image.png",
			Fonts: font.Spec{
				Family: "inconsolata",
				Origin: font.OriginStatic,
				Weights: []font.WeightSource{
					{Source: "https://tools.t3x.jp/fonts/Inconsolata-Bold.woff", Weight: font.Bold},
					{Source: "https://tools.t3x.jp/fonts/Inconsolata-Regular.woff", Weight: font.Regular},
				},
			},
		},
	}
}

// LoadFile decodes a sources file by extension: .yaml/.yml, .toml or .json.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("error reading config file: %w", err)
	}

	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".toml":
		err = toml.Unmarshal(data, &f)
	case ".json":
		err = json.Unmarshal(data, &f)
	default:
		return File{}, fmt.Errorf("unsupported config file type %q", ext)
	}
	if err != nil {
		return File{}, fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return f, nil
}

// Sources merges the file over the defaults. A file source replaces the
// default of the same name field by field; unknown names are added.
func (c Config) Sources() ([]Source, error) {
	sources := DefaultSources()
	if c.ConfigFile == "" {
		return sources, nil
	}
	f, err := LoadFile(c.ConfigFile)
	if err != nil {
		return nil, err
	}

	for _, override := range f.Sources {
		if override.Name == "" {
			return nil, fmt.Errorf("config file %s: source without name", c.ConfigFile)
		}
		merged := false
		for i := range sources {
			if sources[i].Name == override.Name {
				sources[i] = mergeSource(sources[i], override)
				merged = true
				break
			}
		}
		if !merged {
			sources = append(sources, override)
		}
	}

	for _, s := range sources {
		if err := s.validate(); err != nil {
			return nil, err
		}
	}
	return sources, nil
}

func mergeSource(base, o Source) Source {
	if o.Path != "" {
		base.Path = o.Path
	}
	if o.Template != "" {
		base.Template = o.Template
	}
	if len(o.Params) > 0 {
		base.Params = o.Params
	}
	if o.KeyBase != "" {
		base.KeyBase = o.KeyBase
	}
	if o.FeedURL != "" {
		base.FeedURL = o.FeedURL
	}
	if o.PageURL != "" {
		base.PageURL = o.PageURL
	}
	if o.Selectors != nil {
		base.Selectors = o.Selectors
	}
	if o.Fonts.Family != "" {
		base.Fonts = o.Fonts
	}
	return base
}

func (s Source) validate() error {
	switch {
	case !strings.HasPrefix(s.Path, "/"):
		return fmt.Errorf("source %s: path %q must start with /", s.Name, s.Path)
	case s.Template == "":
		return fmt.Errorf("source %s: template is required", s.Name)
	case len(s.Params) == 0:
		return fmt.Errorf("source %s: at least one param is required", s.Name)
	case s.KeyBase == "":
		return fmt.Errorf("source %s: key_base is required", s.Name)
	case s.Fonts.Family == "" || len(s.Fonts.Weights) == 0:
		return fmt.Errorf("source %s: fonts need a family and weights", s.Name)
	}
	if s.FeedURL != "" && !(slices.Contains(s.Params, "slug") && slices.Contains(s.Params, "date")) {
		return fmt.Errorf("source %s: feed lookup needs slug and date params", s.Name)
	}
	if s.PageURL != "" && s.FeedURL == "" {
		return fmt.Errorf("source %s: page_url needs feed_url", s.Name)
	}
	return nil
}
