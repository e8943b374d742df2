// Package tui is the terminal chat client: sign in, pick a room, chat.
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"zerostack-chat/internal/config"
	"zerostack-chat/internal/logging"
	"zerostack-chat/internal/runtime"
)

const (
	sessionWatcherTask = "session watcher"
	shutdownTimeout    = 2 * time.Second
)

// Run wires the chat stack and blocks until the user quits or rootCtx is
// done. The logger stops writing to the terminal while the UI owns it.
func Run(rootCtx context.Context, buildVersion string, opts config.Options, logger *logging.Logger) error {
	if logger == nil {
		panic("tui.Run: logger must not be nil")
	}
	ctx, cancel := context.WithCancel(rootCtx)
	defer cancel()

	p := newPumps()
	svc, err := runtime.NewService(opts, logger, p.callbacks())
	if err != nil {
		return err
	}

	logger.SetTerminalOutputEnabled(false)
	defer logger.SetTerminalOutputEnabled(true)
	unsubscribe := logger.Subscribe(p.logSink)
	defer unsubscribe()
	logger.Info("starting chat TUI",
		logging.Field("version", buildVersion),
		logging.Field("api_url", svc.Endpoints.APIURL),
	)

	controller := runtime.NewController(ctx, logger)
	if err := controller.Start(sessionWatcherTask, svc.App.WatchSession, nil); err != nil {
		logger.Warn("session watcher not started", logging.Field("error", err))
	}

	m := newModel(ctx, svc.App, logger, p, buildVersion)
	m.onCleanup = func() {
		cancel()
		if !controller.StopAndWait(shutdownTimeout) {
			logger.Warn("background tasks did not stop in time")
		}
	}
	defer m.cleanup()

	zone.NewGlobal()
	defer zone.Close()
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run terminal UI: %w", err)
	}
	return nil
}
