package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"zerostack-chat/internal/config"
	"zerostack-chat/internal/logging"
	"zerostack-chat/internal/ui/tui"

	flags "github.com/jessevdk/go-flags"
)

var BuildVersion = "dev"

func main() {
	rootCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	opts, err := config.ParseOptions(nil)
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := logging.New(opts.Debug)
	if opts.LogFile {
		if err := logger.EnableFilePersistence(0); err != nil {
			fmt.Fprintln(os.Stderr, "log file disabled:", err)
		}
	}

	if err := tui.Run(rootCtx, BuildVersion, opts, logger); err != nil {
		logger.Error("chat client stopped", logging.Field("error", err))
		_ = logger.Close()
		os.Exit(1)
	}
	_ = logger.Close()
}
