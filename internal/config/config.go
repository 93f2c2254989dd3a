// Package config loads urlpdf settings from YAML files, a .env file and
// URLPDF_* environment variables, in that order of increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	urlpdf "github.com/porticus-lab/go-url-pdf"
	"github.com/porticus-lab/go-url-pdf/fetch"
	"github.com/porticus-lab/go-url-pdf/render"
)

// DefaultFile is read from the working directory when no file is named.
const DefaultFile = "urlpdf.yaml"

// Config holds every setting of the command.
type Config struct {
	OutputDir         string   `yaml:"output_dir"`
	SkipExisting      bool     `yaml:"skip_existing"`
	DetailedLog       bool     `yaml:"detailed_log"`
	Renderer          string   `yaml:"renderer"`
	DisabledRenderers []string `yaml:"disabled_renderers"`
	OnCollision       string   `yaml:"on_collision"`
	MaxNameLength     int      `yaml:"max_name_length"`
	Year              int      `yaml:"year"`
	SyllabusBase      string   `yaml:"syllabus_base"`
	LogLevel          string   `yaml:"log_level"`
	MetricsAddr       string   `yaml:"metrics_addr"`

	Fetch        FetchConfig        `yaml:"fetch"`
	CLITool      CLIToolConfig      `yaml:"cli_tool"`
	LayoutEngine LayoutEngineConfig `yaml:"layout_engine"`
	TextFallback TextFallbackConfig `yaml:"text_fallback"`
	Page         PageConfig         `yaml:"page"`
}

type FetchConfig struct {
	UserAgent        string        `yaml:"user_agent"`
	Timeout          time.Duration `yaml:"timeout"`
	CloudflareBypass bool          `yaml:"cloudflare_bypass"`
}

type CLIToolConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

type LayoutEngineConfig struct {
	ChromePath   string        `yaml:"chrome_path"`
	NoSandbox    bool          `yaml:"no_sandbox"`
	AutoDownload bool          `yaml:"auto_download"`
	Timeout      time.Duration `yaml:"timeout"`
}

type TextFallbackConfig struct {
	MaxParagraphs      int    `yaml:"max_paragraphs"`
	MaxParagraphLength int    `yaml:"max_paragraph_length"`
	FontPath           string `yaml:"font_path"`
}

type PageConfig struct {
	Size        string  `yaml:"size"`
	Orientation string  `yaml:"orientation"`
	MarginCM    float64 `yaml:"margin_cm"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		SkipExisting:  true,
		OnCollision:   string(urlpdf.CollisionSuffix),
		MaxNameLength: urlpdf.MaxNameLength,
		Year:          time.Now().Year(),
		SyllabusBase:  urlpdf.DefaultSyllabusBase,
		LogLevel:      "info",
		Fetch: FetchConfig{
			UserAgent: fetch.DefaultUserAgent,
			Timeout:   fetch.DefaultTimeout,
		},
		CLITool: CLIToolConfig{
			Path:    "wkhtmltopdf",
			Timeout: 60 * time.Second,
		},
		LayoutEngine: LayoutEngineConfig{
			Timeout: 30 * time.Second,
		},
		TextFallback: TextFallbackConfig{
			MaxParagraphs:      100,
			MaxParagraphLength: 500,
		},
		Page: PageConfig{
			Size:        "A4",
			Orientation: "portrait",
			MarginCM:    2.0,
		},
	}
}

// Loader reads a Config. The zero value reads DefaultFile and .env from
// the OS filesystem and the process environment.
type Loader struct {
	Fs afero.Fs
	// Path names the YAML file. When empty DefaultFile is used if present.
	Path string
	// EnvFile is a dotenv file, ".env" when empty. Variables already set
	// in the environment win over the file.
	EnvFile string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	Logger    *slog.Logger
}

// Load is Loader{Path: path}.Load().
func Load(path string) (*Config, error) {
	return Loader{Path: path}.Load()
}

// Load builds the Config: defaults, then the YAML file, then its
// <name>.local.<ext> sibling, then the environment. The result is not
// validated.
func (l Loader) Load() (*Config, error) {
	if l.Fs == nil {
		l.Fs = afero.NewOsFs()
	}
	if l.Logger == nil {
		l.Logger = slog.Default()
	}

	cfg := Default()
	path, required := l.Path, true
	if path == "" {
		path, required = DefaultFile, false
	}
	found, err := l.decodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if !found && required {
		return nil, fmt.Errorf("config: %s: %w", path, fs.ErrNotExist)
	}
	local := localPath(path)
	found, err = l.decodeFile(local, cfg)
	if err != nil {
		return nil, err
	}
	if found {
		l.Logger.Debug("merged local config overrides", "local", local)
	}

	lookup, err := l.environment()
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeFile decodes path onto cfg. Fields absent from the file keep
// their values.
func (l Loader) decodeFile(path string, cfg *Config) (bool, error) {
	data, err := afero.ReadFile(l.Fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return false, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return true, nil
}

// localPath returns dir/name.local.ext for dir/name.ext.
func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if _, err := render.ParseKind(c.Renderer); err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	for _, k := range c.DisabledRenderers {
		if k == "" {
			return fmt.Errorf("disabled renderers cannot contain an empty name")
		}
		if _, err := render.ParseKind(k); err != nil {
			return fmt.Errorf("disabled renderers: %w", err)
		}
	}
	if _, err := urlpdf.ParseCollisionPolicy(c.OnCollision); err != nil {
		return fmt.Errorf("on_collision: %w", err)
	}
	if c.MaxNameLength <= 0 {
		return fmt.Errorf("max name length must be positive")
	}
	if c.Year < urlpdf.MinYear {
		return fmt.Errorf("year must be %d or later, got %d", urlpdf.MinYear, c.Year)
	}
	u, err := url.Parse(c.SyllabusBase)
	if err != nil {
		return fmt.Errorf("invalid syllabus base: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("syllabus base must include a host")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.Fetch.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.CLITool.Path == "" {
		return fmt.Errorf("cli tool path cannot be empty")
	}
	if c.CLITool.Timeout <= 0 {
		return fmt.Errorf("cli tool timeout must be positive")
	}
	if c.LayoutEngine.Timeout <= 0 {
		return fmt.Errorf("layout engine timeout must be positive")
	}
	if c.TextFallback.MaxParagraphs <= 0 {
		return fmt.Errorf("max paragraphs must be positive")
	}
	if c.TextFallback.MaxParagraphLength <= 0 {
		return fmt.Errorf("max paragraph length must be positive")
	}
	if _, err := c.PageConfig(); err != nil {
		return err
	}
	return nil
}

// PageConfig converts the page section.
func (c *Config) PageConfig() (render.PageConfig, error) {
	pg := render.DefaultPageConfig()
	size, err := render.ParsePageSize(c.Page.Size)
	if err != nil {
		return pg, fmt.Errorf("page size: %w", err)
	}
	o, err := render.ParseOrientation(c.Page.Orientation)
	if err != nil {
		return pg, fmt.Errorf("page orientation: %w", err)
	}
	// A zero render.Margin means "use the default", so zero cannot be expressed.
	if c.Page.MarginCM <= 0 {
		return pg, fmt.Errorf("page margin must be positive")
	}
	pg.Size = size
	pg.Orientation = o
	pg.Margin = render.UniformMargin(c.Page.MarginCM)
	return pg, nil
}

// FetchOptions converts the fetch section.
func (c *Config) FetchOptions() fetch.Options {
	return fetch.Options{
		UserAgent:        c.Fetch.UserAgent,
		Timeout:          c.Fetch.Timeout,
		CloudflareBypass: c.Fetch.CloudflareBypass,
	}
}

// RenderSettings builds the renderer registry settings. f is shared by
// the renderers that download pages.
func (c *Config) RenderSettings(f render.Fetcher) (render.Settings, error) {
	pg, err := c.PageConfig()
	if err != nil {
		return render.Settings{}, err
	}
	s := render.Settings{
		Page:    pg,
		Fetcher: f,
		CLITool: render.CLIToolOptions{
			Path:    c.CLITool.Path,
			Timeout: c.CLITool.Timeout,
		},
		Chrome: []render.Option{render.WithTimeout(c.LayoutEngine.Timeout)},
		Text: render.TextOptions{
			MaxParagraphs:      c.TextFallback.MaxParagraphs,
			MaxParagraphLength: c.TextFallback.MaxParagraphLength,
			FontPath:           c.TextFallback.FontPath,
		},
	}
	for _, k := range c.DisabledRenderers {
		s.Disabled = append(s.Disabled, render.Kind(k))
	}
	if c.LayoutEngine.ChromePath != "" {
		s.Chrome = append(s.Chrome, render.WithChromePath(c.LayoutEngine.ChromePath))
	}
	if c.LayoutEngine.NoSandbox {
		s.Chrome = append(s.Chrome, render.WithNoSandbox())
	}
	if c.LayoutEngine.AutoDownload {
		s.Chrome = append(s.Chrome, render.WithAutoDownload())
	}
	return s, nil
}

// ConverterOptions returns the Converter options the settings control.
func (c *Config) ConverterOptions() []urlpdf.Option {
	policy, _ := urlpdf.ParseCollisionPolicy(c.OnCollision)
	return []urlpdf.Option{
		urlpdf.WithSkipExisting(c.SkipExisting),
		urlpdf.WithCollisionPolicy(policy),
		urlpdf.WithMaxNameLength(c.MaxNameLength),
	}
}
