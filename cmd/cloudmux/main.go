package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourcegraph/conc"

	"github.com/user/cloudmux/internal/api"
	"github.com/user/cloudmux/internal/cloudwatch"
	"github.com/user/cloudmux/internal/config"
	"github.com/user/cloudmux/internal/db"
	"github.com/user/cloudmux/internal/events"
	"github.com/user/cloudmux/internal/history"
	"github.com/user/cloudmux/internal/hub"
	"github.com/user/cloudmux/internal/logtail"
	"github.com/user/cloudmux/internal/presets"
	"github.com/user/cloudmux/internal/pty"
	"github.com/user/cloudmux/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			return
		}
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if cfg.PrintToken {
		fmt.Println(cfg.Token)
	}
	fmt.Printf("\ncloudmux running at http://localhost:%d?token=%s\n\n", cfg.Port, cfg.Token)

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	presetRegistry, err := presets.NewRegistry(cfg.PresetsDir)
	if err != nil {
		return err
	}
	if err := presetRegistry.Watch(ctx, nil); err != nil {
		slog.Warn("preset hot reload disabled", "error", err)
	}

	h := hub.New(cfg.Token)
	sinks := events.Multi{h}
	if cfg.NatsURL != "" {
		natsSink, err := events.DialNATS(cfg.NatsURL, "cloudmux")
		if err != nil {
			return err
		}
		defer natsSink.Close()
		sinks = append(sinks, natsSink)
		slog.Info("publishing events to nats", "url", cfg.NatsURL)
	}

	store := history.NewStore(database)
	sink := history.NewSink(sinks, store)

	terminals := pty.NewManager(pty.Options{
		Commands: pty.CommandConfig{
			AWSBinary: cfg.AWSBinary,
			Shell:     cfg.Shell,
			Profile:   cfg.Profile,
			Region:    cfg.Region,
		},
		Sink:     sink,
		OnCreate: store.TerminalCreated,
	})
	tails := logtail.NewRegistry(logtail.Options{
		Source:       cloudwatch.NewSource(cfg.AWSBinary),
		Sink:         sink,
		PollInterval: cfg.PollInterval,
		Lookback:     cfg.Lookback,
		Profile:      cfg.Profile,
		Region:       cfg.Region,
		OnStart:      store.TailStarted,
	})

	h.SetOnTerminalInput(terminals.Write)
	h.SetOnTerminalResize(func(id string, cols, rows int) error {
		if cols <= 0 || rows <= 0 || cols > 0xFFFF || rows > 0xFFFF {
			return fmt.Errorf("invalid terminal size %dx%d", cols, rows)
		}
		return terminals.Resize(id, uint16(cols), uint16(rows))
	})

	// Workers outlive ctx so the final closed and stopped events still reach
	// history during shutdown.
	workersCtx, cancelWorkers := context.WithCancel(context.Background())
	var workers conc.WaitGroup
	workers.Go(func() { h.Run(workersCtx) })
	workers.Go(func() { sink.Run(workersCtx) })
	defer func() {
		cancelWorkers()
		workers.Wait()
	}()

	apiHandler := api.NewRouter(api.Deps{
		Terminals: terminals,
		Tails:     tails,
		Presets:   presetRegistry,
		History:   store,
		Token:     cfg.Token,
	})
	srv := server.New(cfg, http.HandlerFunc(h.HandleWebSocket), apiHandler, func() map[string]any {
		return map[string]any{
			"terminal_sessions": terminals.Registry().Len(),
			"log_tails":         len(tails.List()),
			"ws_clients":        h.ClientCount(),
		}
	})

	err = srv.Start(ctx)

	slog.Info("closing sessions")
	live := terminals.List()
	terminals.CloseAll()
	tails.StopAll()
	for _, info := range live {
		if err := store.TerminalEnded(context.Background(), info.ID, pty.StatusClosed, "shutdown"); err != nil {
			slog.Warn("record terminal shutdown failed", "session", info.ID, "error", err)
		}
	}
	return err
}
