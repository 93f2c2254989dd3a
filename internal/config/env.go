package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the package reads.
const EnvPrefix = "URLPDF_"

// Env looks up variables. Keys are given without EnvPrefix.
type Env func(key string) (string, bool)

// environment returns the process environment layered over the dotenv
// file, if one exists.
func (l Loader) environment() (Env, error) {
	lookup := l.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	name := l.EnvFile
	if name == "" {
		name = ".env"
	}

	file := map[string]string{}
	f, err := l.Fs.Open(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: %w", err)
	default:
		defer f.Close()
		if file, err = godotenv.Parse(f); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", name, err)
		}
	}

	return func(key string) (string, bool) {
		key = EnvPrefix + key
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}, nil
}

func (e Env) String(key string, dst *string) {
	if v, ok := e(key); ok {
		*dst = v
	}
}

func (e Env) Int(key string, dst *int) error {
	v, ok := e(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
	}
	*dst = n
	return nil
}

func (e Env) Bool(key string, dst *bool) error {
	v, ok := e(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
	}
	*dst = b
	return nil
}

func (e Env) Duration(key string, dst *time.Duration) error {
	v, ok := e(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
	}
	*dst = d
	return nil
}

// List reads a comma-separated value. Blank elements are dropped.
func (e Env) List(key string, dst *[]string) {
	v, ok := e(key)
	if !ok {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

func (c *Config) applyEnv(e Env) error {
	e.String("OUTPUT_DIR", &c.OutputDir)
	e.String("RENDERER", &c.Renderer)
	e.List("DISABLED_RENDERERS", &c.DisabledRenderers)
	e.String("ON_COLLISION", &c.OnCollision)
	e.String("SYLLABUS_BASE", &c.SyllabusBase)
	e.String("LOG_LEVEL", &c.LogLevel)
	e.String("METRICS_ADDR", &c.MetricsAddr)
	e.String("USER_AGENT", &c.Fetch.UserAgent)
	e.String("WKHTMLTOPDF", &c.CLITool.Path)
	e.String("CHROME_PATH", &c.LayoutEngine.ChromePath)
	e.String("FONT_PATH", &c.TextFallback.FontPath)
	e.String("PAGE_SIZE", &c.Page.Size)

	return errors.Join(
		e.Bool("SKIP_EXISTING", &c.SkipExisting),
		e.Bool("DETAILED_LOG", &c.DetailedLog),
		e.Int("MAX_NAME_LENGTH", &c.MaxNameLength),
		e.Int("YEAR", &c.Year),
		e.Duration("FETCH_TIMEOUT", &c.Fetch.Timeout),
		e.Bool("CLOUDFLARE_BYPASS", &c.Fetch.CloudflareBypass),
		e.Duration("CLI_TOOL_TIMEOUT", &c.CLITool.Timeout),
		e.Bool("NO_SANDBOX", &c.LayoutEngine.NoSandbox),
		e.Bool("AUTO_DOWNLOAD", &c.LayoutEngine.AutoDownload),
	)
}
