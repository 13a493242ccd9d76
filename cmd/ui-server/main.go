package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Its-donkey/e-verify/internal/ui/config"
	"github.com/Its-donkey/e-verify/internal/ui/metrics"
	uiserver "github.com/Its-donkey/e-verify/internal/ui/server"
	"github.com/Its-donkey/e-verify/logging"
)

type cliFlags struct {
	configPath   string
	listen       string
	apiBase      string
	templatesDir string
	watch        bool
	logLevel     string
	logDir       string
}

func parseFlags(args []string) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("ui-server", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "config.yaml", "path to the UI server configuration (YAML or JSON)")
	fs.StringVar(&f.listen, "listen", "", "address to serve the E-verify UI (defaults to config server.addr+port)")
	fs.StringVar(&f.apiBase, "api", "", "base URL of the account backend (defaults to config api_base, then $"+config.APIBaseEnv+")")
	fs.StringVar(&f.templatesDir, "templates", "", "directory overriding the embedded templates")
	fs.BoolVar(&f.watch, "watch", false, "reload templates when files in -templates change")
	fs.StringVar(&f.logLevel, "log-level", "", "minimum log level (debug, info, warn, error)")
	fs.StringVar(&f.logDir, "logs", "", "directory for a rotating ui.log in addition to stdout")
	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	return f, nil
}

// applyFlags overlays explicitly passed flags on the file configuration.
func applyFlags(cfg config.Config, f cliFlags) (config.Config, error) {
	if f.listen != "" {
		cfg.Server.Addr = f.listen
		cfg.Server.Port = ""
	}
	if f.apiBase != "" {
		cfg.APIBase = f.apiBase
	}
	if f.templatesDir != "" {
		cfg.Templates.Dir = f.templatesDir
	}
	if f.watch {
		cfg.Templates.Watch = true
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logDir != "" {
		cfg.Log.Dir = f.logDir
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func buildOptions(cfg config.Config, logger *logging.Logger, recorder *metrics.PrometheusRecorder) uiserver.Options {
	var httpClient *http.Client
	if timeout := cfg.Transport.Timeout(); timeout > 0 {
		httpClient = &http.Client{Timeout: timeout}
	}
	return uiserver.Options{
		Listen:         cfg.Server.ListenAddr(),
		SiteName:       cfg.SiteName,
		CookieName:     cfg.Session.CookieName,
		SessionTTL:     cfg.Session.TTL(),
		TemplatesDir:   cfg.Templates.Dir,
		WatchTemplates: cfg.Templates.Watch,
		Logger:         logger,
		APIBase:        cfg.APIBase,
		HTTPClient:     httpClient,
		Metrics:        recorder,
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, err = applyFlags(cfg, flags)
	if err != nil {
		return err
	}

	writers := []io.Writer{stdout}
	if cfg.Log.Dir != "" {
		fw, err := logging.NewFileWriter(cfg.Log.Dir, "ui.log", 10, 5)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer fw.Close()
		writers = append(writers, fw)
	}
	logger := logging.New("ui-server", logging.ParseLevel(cfg.Log.Level), writers...)

	recorder := metrics.NewPrometheusRecorder()
	return uiserver.Run(ctx, buildOptions(cfg, logger, recorder))
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		// If a second signal arrives, force exit immediately.
		<-sigCh
		log.Println("second interrupt received, forcing shutdown")
		os.Exit(1)
	}()
	defer func() {
		signal.Stop(sigCh)
		cancel()
	}()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, flag.ErrHelp) {
		log.Fatalf("server error: %v", err)
	}
}
