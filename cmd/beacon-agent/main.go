package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lugx/beacon/internal/beacon/browser"
	"github.com/lugx/beacon/internal/beacon/dispatcher"
	"github.com/lugx/beacon/internal/beacon/page"
	"github.com/lugx/beacon/internal/beacon/tracker"
	"github.com/lugx/beacon/internal/common/config"
	logutil "github.com/lugx/beacon/internal/common/logger"
)

func main() {
	configPath := flag.String("c", "configs/beacon-agent.yaml", "Path to agent configuration file")
	pageURL := flag.String("url", "", "Open this page in Chrome and track it")
	replay := flag.String("replay", "", "Replay a notification script instead of opening Chrome, e.g. load,scroll,click")
	path := flag.String("path", "/", "Document path used with -replay")
	interact := flag.Bool("interact", false, "Scroll and click the page after it loads (with -url)")
	duration := flag.Duration("duration", 0, "Stop tracking after this long (with -url); 0 waits for a signal")
	flag.Parse()

	initialLogger, err := logutil.NewDefaultLogger()
	if err != nil {
		panic(err)
	}

	if (*pageURL == "") == (*replay == "") {
		initialLogger.Fatal("Exactly one of -url or -replay is required")
	}

	initialLogger.Info("Loading configuration", zap.String("path", *configPath))
	absPath, err := config.GetConfigPath(*configPath)
	if err != nil {
		initialLogger.Fatal("Invalid config path", zap.Error(err))
	}
	cfg, err := config.LoadAgentConfig(absPath)
	if err != nil {
		initialLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	dynamicLogger, err := logutil.NewLoggerWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}
	logger := dynamicLogger.With(zap.String("session_id", uuid.NewString()))

	var d *dispatcher.Dispatcher
	if *replay != "" {
		d = runReplay(cfg, *replay, *path, logger, dynamicLogger)
	} else {
		d = runBrowser(cfg, *pageURL, *interact, *duration, logger, dynamicLogger)
	}

	dynamicLogger.EnsureInfoLevelForShutdown()

	drainCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.DrainTimeout))
	defer cancel()
	if err := d.Wait(drainCtx); err != nil {
		logger.Warn("Gave up waiting for in-flight events", zap.Error(err))
	}

	logger.Info("Beacon agent stopped")
	_ = logger.Sync()
}

func runReplay(cfg *config.AgentConfig, script, path string, logger *zap.Logger, dl *logutil.DynamicLogger) *dispatcher.Dispatcher {
	steps, err := page.ParseScript(script)
	if err != nil {
		logger.Fatal("Invalid replay script", zap.Error(err))
	}

	session := page.NewSession(path)
	d := dispatcher.New(cfg.Collector.URL, session, logger)
	tracker.New(d, logger).Attach(session)

	logger.Info("Replaying notifications",
		zap.String("endpoint", d.Endpoint()),
		zap.String("path", session.Path()),
		zap.Int("steps", len(steps)))
	dl.SwitchToConfiguredLevel()

	session.Replay(steps)
	return d
}

func runBrowser(cfg *config.AgentConfig, pageURL string, interact bool, duration time.Duration, logger *zap.Logger, dl *logutil.DynamicLogger) *dispatcher.Dispatcher {
	tab, err := browser.NewTab(browser.Options{
		Headless:        cfg.Browser.IsHeadless(),
		ExecPath:        cfg.Browser.ExecPath,
		NavigateTimeout: time.Duration(cfg.Browser.NavigateTimeout),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to start browser", zap.Error(err))
	}
	defer tab.Close()

	d := dispatcher.New(cfg.Collector.URL, tab, logger)
	// Scroll and click latches belong to one document, so each navigation gets a new tracker.
	tab.OnDocument(func(doc browser.Subscriber) {
		tracker.New(d, logger).Attach(doc)
	})

	if err := openPage(tab, pageURL); err != nil {
		logger.Fatal("Failed to open page", zap.Error(err))
	}
	logger.Info("Tracking page",
		zap.String("url", pageURL),
		zap.String("endpoint", d.Endpoint()))
	dl.SwitchToConfiguredLevel()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	if interact {
		if err := tab.Interact(ctx); err != nil {
			logger.Warn("Page interaction failed", zap.Error(err))
		}
	}

	<-ctx.Done()
	logger.Info("Stopping page tracking")
	return d
}

type pageOpener interface {
	Open(url string) error
	Close()
}

// openPage closes the tab when navigation fails. Callers exit via Fatal, which skips defers.
func openPage(tab pageOpener, pageURL string) error {
	if err := tab.Open(pageURL); err != nil {
		tab.Close()
		return err
	}
	return nil
}
