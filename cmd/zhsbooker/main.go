// Package main provides the entry point for the zhsbooker application.
//
// zhsbooker books courses at the Zentraler Hochschulsport München the moment
// registration opens. It drives a Chrome window through the catalog, picks
// the configured slot, logs in and submits the payment form for every course
// listed in the configuration file.
//
// Commands:
//
//	zhsbooker            book every configured course (optionally at --start-at)
//	zhsbooker courses    list catalog courses or the slots of one course
//	zhsbooker init       write a configuration template
//	zhsbooker version    print build information
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

func main() {
	setupLogging(false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// newLogger writes human readable lines to w, coloured only on a terminal.
// Debug builds also carry the caller.
func newLogger(w io.Writer, debug bool) zerolog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !term.IsTerminal(int(f.Fd()))
	}

	ctx := zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor,
		TimeFormat: "15:04:05.000000",
	}).With().Timestamp()

	if !debug {
		return ctx.Logger().Level(zerolog.InfoLevel)
	}
	return ctx.Caller().Logger().Level(zerolog.DebugLevel)
}

func setupLogging(debug bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = newLogger(os.Stdout, debug)
	zerolog.DefaultContextLogger = &log.Logger
}
