package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	urlpdf "github.com/porticus-lab/go-url-pdf"
	"github.com/porticus-lab/go-url-pdf/fetch"
	"github.com/porticus-lab/go-url-pdf/internal/config"
	"github.com/porticus-lab/go-url-pdf/internal/console"
	"github.com/porticus-lab/go-url-pdf/render"
)

// app holds the flag values and the state shared by the commands.
type app struct {
	cfgPath     string
	verbose     bool
	logLevel    string
	metricsAddr string
	renderer    string
	skip        bool
	detailed    bool
	onCollision string
	noProgress  bool
	pause       bool

	cfg     *config.Config
	log     *slog.Logger
	metrics *urlpdf.Metrics
	stdin   *bufio.Reader
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "urlpdf [input_file] [output_dir]",
		Short: "urlpdf converts a list of web pages into PDF files.",
		Long: `urlpdf reads one URL per line from input_file and writes one PDF per URL
to output_dir. Blank lines are ignored. Existing files are skipped unless
--skip-existing=false is given.`,
		Args:              cobra.MaximumNArgs(2),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.convert(cmd, args, urlpdf.Request{Mode: urlpdf.ModeURLs})
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.cfgPath, "config", "", "config file (default urlpdf.yaml when present)")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	f.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	f.StringVar(&a.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	f.StringVar(&a.renderer, "renderer", "", "renderer: cli-tool, layout-engine, text-fallback or html (default first available)")
	f.BoolVar(&a.skip, "skip-existing", true, "skip items whose output file exists")
	f.BoolVar(&a.detailed, "detailed", false, "print detailed per-item log lines")
	f.StringVar(&a.onCollision, "on-collision", "", "duplicate output names: suffix or skip")
	f.BoolVar(&a.noProgress, "no-progress", false, "do not draw a progress bar")
	f.BoolVar(&a.pause, "pause", false, "wait for Enter before exiting")

	cmd.AddCommand(
		newCoursesCmd(a),
		newScanCmd(a),
		newInfoCmd(a),
		newRenderersCmd(a),
	)
	return cmd
}

// setup loads the configuration, applies the flags that were given and
// builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = a.metricsAddr
	}
	if flags.Changed("renderer") {
		cfg.Renderer = a.renderer
	}
	if flags.Changed("skip-existing") {
		cfg.SkipExisting = a.skip
	}
	if flags.Changed("detailed") {
		cfg.DetailedLog = a.detailed
	}
	if flags.Changed("on-collision") {
		cfg.OnCollision = a.onCollision
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := cfg.Level()
	a.log, _ = newLogger(os.Stderr, level, a.verbose)
	slog.SetDefault(a.log)
	a.cfg = cfg
	a.metrics = urlpdf.NewMetrics()
	a.stdin = bufio.NewReader(cmd.InOrStdin())
	return nil
}

// prompt asks for a value on the command's input.
func (a *app) prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), label)
	line, err := a.stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSpace(strings.TrimSuffix(label, ": ")), err)
	}
	return strings.Trim(strings.TrimSpace(line), `"'`), nil
}

// paths resolves the input file and output directory from the arguments,
// the configuration and, when still missing, the user. A blank output
// directory means the input file's directory.
func (a *app) paths(cmd *cobra.Command, args []string, inputLabel string) (string, string, error) {
	var input, output string
	if len(args) > 0 {
		input = args[0]
	}
	if len(args) > 1 {
		output = args[1]
	}
	if output == "" {
		output = a.cfg.OutputDir
	}

	var err error
	if input == "" {
		if input, err = a.prompt(cmd, inputLabel+": "); err != nil {
			return "", "", err
		}
	}
	if output == "" {
		output, err = a.prompt(cmd, "Output directory (blank for the input's directory): ")
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", err
		}
	}
	if output == "" {
		output = filepath.Dir(input)
	}
	return input, output, nil
}

// converter selects a renderer and builds a Converter around it. The
// returned function releases the renderer.
func (a *app) converter(ctx context.Context) (*urlpdf.Converter, func(), error) {
	fetcher := fetch.New(a.cfg.FetchOptions())
	settings, err := a.cfg.RenderSettings(fetcher)
	if err != nil {
		return nil, nil, err
	}
	want := render.Kind(a.cfg.Renderer)
	r, err := render.Select(ctx, want, settings)
	if err != nil {
		return nil, nil, err
	}
	if want != "" && r.Kind() != want {
		a.log.Warn("requested renderer unavailable, falling back", "requested", string(want), "using", string(r.Kind()))
	} else {
		a.log.Info("renderer selected", "renderer", string(r.Kind()))
	}

	opts := append(a.cfg.ConverterOptions(),
		urlpdf.WithLogger(a.log),
		urlpdf.WithMetrics(a.metrics),
	)
	release := func() {
		if err := r.Close(); err != nil {
			a.log.Error("closing renderer", "error", err)
		}
	}
	return urlpdf.NewConverter(r, opts...), release, nil
}

// serveMetrics starts the metrics endpoint when an address is configured
// and returns its shutdown function.
func (a *app) serveMetrics() func() {
	if a.cfg.MetricsAddr == "" {
		return func() {}
	}
	srv := &http.Server{
		Addr:    a.cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(a.metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server failed", "error", err)
		}
	}()
	a.log.Info("metrics server enabled", "addr", a.cfg.MetricsAddr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.log.Error("metrics server shutdown failed", "error", err)
		}
	}
}

func (a *app) printer(cmd *cobra.Command) *console.Printer {
	return console.New(cmd.OutOrStdout(), console.Options{
		Detailed: a.cfg.DetailedLog,
		Progress: !a.noProgress && isTerminal(os.Stdout),
	})
}

// waitForEnter implements --pause.
func (a *app) waitForEnter(cmd *cobra.Command) {
	if !a.pause {
		return
	}
	fmt.Fprint(cmd.OutOrStdout(), "Press Enter to exit...")
	a.stdin.ReadString('\n')
}

// failedErr turns failed items into exit status 2.
func failedErr(failed int) error {
	if failed == 0 {
		return nil
	}
	return &exitError{code: 2, err: fmt.Errorf("%d item(s) failed", failed)}
}
