package render

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/go-rod/rod/lib/launcher"
)

// chromeConfig holds internal configuration for the layout engine.
type chromeConfig struct {
	chromePath   string
	timeout      time.Duration
	noSandbox    bool
	autoDownload bool
	headless     string
}

func defaultChromeConfig() chromeConfig {
	return chromeConfig{
		timeout:  30 * time.Second,
		headless: "new",
	}
}

// Option configures the layout engine ([Chrome]).
type Option func(*chromeConfig)

// WithChromePath sets the path to the Chrome or Chromium executable.
// By default standard locations are searched automatically.
func WithChromePath(path string) Option {
	return func(c *chromeConfig) {
		c.chromePath = path
	}
}

// WithTimeout sets the maximum duration for a single render, fetch
// included. Defaults to 30 seconds. A zero or negative value disables
// the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *chromeConfig) {
		c.timeout = d
	}
}

// WithNoSandbox disables the Chrome sandbox. This is required when
// running as root, for example inside Docker containers.
func WithNoSandbox() Option {
	return func(c *chromeConfig) {
		c.noSandbox = true
	}
}

// WithAutoDownload downloads a compatible Chromium build when no browser
// is installed. The binary is cached between runs.
func WithAutoDownload() Option {
	return func(c *chromeConfig) {
		c.autoDownload = true
	}
}

// chromeNames are the executable names searched in PATH.
var chromeNames = []string{
	"chromium-browser", "chromium", "google-chrome",
	"google-chrome-stable", "chrome",
}

func lookChrome() (string, bool) {
	for _, name := range chromeNames {
		if p, err := exec.LookPath(name); err == nil {
			return p, true
		}
	}
	return "", false
}

// probeChrome reports whether a browser is available to the layout engine
// without starting it.
func probeChrome(opts ...Option) error {
	cfg := defaultChromeConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.chromePath != "" {
		if _, err := os.Stat(cfg.chromePath); err != nil {
			return fmt.Errorf("chrome path: %w", err)
		}
		return nil
	}
	if cfg.autoDownload {
		return nil
	}
	if _, ok := lookChrome(); ok {
		return nil
	}
	return errors.New("no Chrome or Chromium executable found")
}

// executable returns the browser binary to launch. An explicit path wins,
// then PATH, then a Chromium build fetched into the rod cache
// (~/.cache/rod/browser) when auto-download is on. An empty result lets
// chromedp search on its own.
func (c *chromeConfig) executable() (string, error) {
	if c.chromePath != "" {
		return c.chromePath, nil
	}
	if p, ok := lookChrome(); ok {
		return p, nil
	}
	if !c.autoDownload {
		return "", nil
	}
	p, err := launcher.NewBrowser().Get()
	if err != nil {
		return "", fmt.Errorf("downloading browser: %w", err)
	}
	return p, nil
}
