package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rdawcore/pkg/audiograph"
	"rdawcore/pkg/backend"
	"rdawcore/pkg/docwatch"
	"rdawcore/pkg/rpc"
)

// Config holds the application configuration. Unlike the teacher, no flag
// here is required (spec §6.4): omitting -document starts against a fresh,
// unsaved document, exactly as backend.New does.
type Config struct {
	DocumentPath string
	SampleRate   uint
	BufferSize   uint
	LogFormat    string
	LogLevel     slog.Level
}

func main() {
	cfg := &Config{}
	flag.StringVar(&cfg.DocumentPath, "document", os.Getenv("RDAW_DOCUMENT"), "Path to an existing document file (env: RDAW_DOCUMENT); omit to start unsaved")
	flag.UintVar(&cfg.SampleRate, "sample-rate", 48000, "Render sample rate in Hz")
	flag.UintVar(&cfg.BufferSize, "buffer-size", 512, "Render block size in frames")
	flag.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: 'text' or 'json'")
	flag.String("log-level", "info", "Log level: 'debug', 'info', 'warn', 'error'")
	flag.Parse()

	setupLogger(cfg)

	slog.Info("starting rdaw backend",
		"document", cfg.DocumentPath,
		"sample-rate", cfg.SampleRate,
		"buffer-size", cfg.BufferSize,
	)

	// --- Initialize the backend ---
	b, err := openOrCreate(cfg)
	if err != nil {
		slog.Error("failed to initialize backend", "error", err)
		os.Exit(1)
	}
	defer b.Document().Close()

	// --- Compiled render graph params, not yet fed real nodes (no device
	// I/O in scope, spec Non-goals) but kept live so a future node graph
	// compiles against the configured rate/block size without replumbing. ---
	renderParams := audiograph.Params{SampleRate: uint32(cfg.SampleRate), BufferSize: int(cfg.BufferSize)}
	renderGraph := audiograph.New(renderParams)
	if _, err := renderGraph.Compile(); err != nil {
		slog.Error("failed to compile render graph", "error", err)
		os.Exit(1)
	}

	// --- Wire the in-process transport pair and the single backend server ---
	clientTransport, serverTransport := rpc.Local[backend.Request, backend.Response, backend.TrackEvent](64)
	server := rpc.NewServer[backend.Request, backend.Response, backend.TrackEvent](serverTransport, b.Handle, slog.Default())
	client := rpc.NewClient[backend.Request, backend.Response, backend.TrackEvent](clientTransport)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// UI front-end placeholder: the client side of the local transport pair
	// is the seam a real front-end attaches to (spec §5, "backend and
	// front-end run in the same process"); front-end views/widgets are an
	// explicit Non-goal here, so only the client handle itself is started.
	go func() {
		if err := client.Run(ctx); err != nil {
			slog.Debug("rpc client stopped", "error", err)
		}
	}()
	go func() {
		if err := server.Run(ctx, b.HandleCloseStream); err != nil {
			slog.Debug("rpc server stopped", "error", err)
		}
	}()

	// Deliver is the cooperative event-loop tick (spec §5): flush whatever
	// track events accumulated since the last tick to the transport.
	go deliverLoop(ctx, b, serverTransport)

	if cfg.DocumentPath != "" {
		watcher, err := docwatch.Watch(cfg.DocumentPath, 0)
		if err != nil {
			slog.Warn("could not watch document file for external changes", "error", err)
		} else {
			defer watcher.Close()
			go watchLoop(ctx, watcher)
		}
	}

	waitForShutdown()
	slog.Info("shutting down")
}

func openOrCreate(cfg *Config) (*backend.Backend, error) {
	if cfg.DocumentPath == "" {
		return backend.New()
	}
	if _, err := os.Stat(cfg.DocumentPath); err == nil {
		return backend.Open(cfg.DocumentPath)
	}
	return backend.New()
}

func deliverLoop(ctx context.Context, b *backend.Backend, transport rpc.EventSender[backend.Response, backend.TrackEvent]) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.Deliver(ctx, transport); err != nil {
				slog.Debug("deliver stopped", "error", err)
				return
			}
		}
	}
}

func watchLoop(ctx context.Context, watcher *docwatch.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events():
			if !ok {
				return
			}
			slog.Info("document changed on disk", "path", ev.Path, "modified", ev.Modified)
		}
	}
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}

func setupLogger(cfg *Config) {
	logLevelFlag := flag.Lookup("log-level").Value.String()
	logLevelMap := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	level, exists := logLevelMap[strings.ToLower(logLevelFlag)]
	if !exists {
		level = slog.LevelInfo
	}
	cfg.LogLevel = level

	var logHandler slog.Handler
	if cfg.LogFormat == "json" {
		logHandler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})
	} else {
		logHandler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})
	}
	slog.SetDefault(slog.New(logHandler))
}
