package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ritzau/mfa-dashboard/pkg/config"
	"github.com/ritzau/mfa-dashboard/pkg/dashboard"
	"github.com/ritzau/mfa-dashboard/pkg/logging"
	"github.com/ritzau/mfa-dashboard/pkg/metrics"
	"github.com/ritzau/mfa-dashboard/pkg/output"
	"github.com/ritzau/mfa-dashboard/pkg/pubsub"
	"github.com/ritzau/mfa-dashboard/pkg/watcher"
	"github.com/ritzau/mfa-dashboard/pkg/web"
	"github.com/ritzau/mfa-dashboard/pkg/workbook"
	"github.com/spf13/pflag"
)

func main() {
	flags := config.Flags("mfa-dashboard")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	level, err := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	switch {
	case cfg.JSONLogs:
		logging.SetJSONOutput(level)
	case cfg.WebMode:
		logging.SetLevel(level)
	default:
		// The report owns stdout
		logging.SetOutput(os.Stderr, level)
	}

	if cfg.WriteSample != "" {
		if err := workbook.Save(cfg.WriteSample, workbook.Sample()); err != nil {
			logging.Fatal("failed to write sample workbook", "path", cfg.WriteSample, "error", err)
		}
		logging.Info("wrote sample workbook", "path", cfg.WriteSample)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := dashboard.Options{
		Workbook: cfg.Workbook,
		Factor:   cfg.Factor,
		Baseline: cfg.Baseline,
		Sectors:  cfg.Sectors,
	}

	if cfg.WebMode {
		if err := serve(ctx, cfg, opts); err != nil {
			logging.Fatal("web server failed", "error", err)
		}
		return
	}

	if err := report(ctx, cfg, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func report(ctx context.Context, cfg *config.Config, opts dashboard.Options) error {
	runner := dashboard.NewRunner(opts, nil, nil)
	if err := runner.Reload(ctx, "report"); err != nil {
		return err
	}

	model, err := runner.Recompute(cfg.Factor)
	if err != nil {
		return err
	}
	output.PrintReport(os.Stdout, cfg.Workbook, model)
	return nil
}

func serve(ctx context.Context, cfg *config.Config, opts dashboard.Options) error {
	publisher := pubsub.NewSSEPublisher()
	registry := metrics.NewRegistry()
	runner := dashboard.NewRunner(opts, publisher, registry)
	server := web.NewServer(runner, publisher, registry)

	// A failed first load is reported on the page; --watch may fix it later
	go func() {
		if err := runner.Reload(ctx, "initial load"); err != nil {
			logging.Warn("dashboard has no data until the workbook loads", "error", err)
		}
	}()

	if cfg.Watch {
		if err := watchWorkbook(ctx, runner, cfg.Workbook); err != nil {
			return err
		}
	}

	if cfg.OpenBrowser {
		url := fmt.Sprintf("http://localhost:%d", cfg.Port)
		go func() {
			// Wait a moment for the listener
			time.Sleep(500 * time.Millisecond)
			logging.Info("opening browser", "url", url)
			openBrowser(url)
		}()
	}

	return server.Start(ctx, cfg.Port)
}

func watchWorkbook(ctx context.Context, runner *dashboard.Runner, path string) error {
	fw, err := watcher.NewFileWatcher(path)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	debouncer := watcher.NewDebouncer(fw.Events(), 300*time.Millisecond, 2*time.Second)
	debouncer.Start(ctx)

	go func() {
		for event := range debouncer.Output() {
			switch watcher.Decide(event) {
			case watcher.ActionReload:
				if err := runner.Reload(ctx, "workbook changed"); err != nil {
					logging.Warn("reload failed, keeping last model", "error", err)
				}
			case watcher.ActionKeep:
				logging.Warn("workbook removed, keeping last model", "path", fw.Path())
			}
		}
	}()
	return nil
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		logging.Warn("cannot open browser on this platform", "os", runtime.GOOS)
		return
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		logging.Warn("failed to open browser", "error", err)
	}
}
