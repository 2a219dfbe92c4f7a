package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/uberswe/zhsbooker/internal/booking"
	"github.com/uberswe/zhsbooker/internal/site"
	"github.com/uberswe/zhsbooker/pkg/browser"
	"github.com/uberswe/zhsbooker/pkg/config"
	"github.com/uberswe/zhsbooker/pkg/domain"
	"github.com/uberswe/zhsbooker/pkg/util"
	"golang.org/x/term"
)

type globalOptions struct {
	configFile string
	debug      bool
}

type bookOptions struct {
	startAt   string
	idle      bool
	keepAwake bool
	headless  bool
	dry       bool
	timeout   time.Duration
}

func newRootCmd() *cobra.Command {
	var (
		global globalOptions
		book   bookOptions
	)

	root := &cobra.Command{
		Use:          "zhsbooker",
		Short:        "Book ZHS courses the moment registration opens",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(global.debug)
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBooking(cmd.Context(), cmd.OutOrStdout(), global, book)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&global.configFile, "config", "c", config.DefaultConfigFileName, "Path to configuration file (.json is appended if missing)")
	pf.BoolVar(&global.debug, "debug", false, "Enable debug logging")

	f := root.Flags()
	f.StringVar(&book.startAt, "start-at", "", "Wait until this local time of day (HH:MM or HH:MM:SS) before booking")
	f.BoolVar(&book.idle, "idle", false, "Keep the browser open after the batch until interrupted")
	f.BoolVar(&book.keepAwake, "keep-awake", false, "Keep computer awake by moving mouse while waiting")
	f.BoolVar(&book.headless, "headless", false, "Run the browser without a window")
	f.BoolVar(&book.dry, "dry", false, "Dry-run: fill every form but do not submit the booking")
	f.DurationVar(&book.timeout, "timeout", browser.DefaultTimeout, "How long to wait for each page element")

	root.AddCommand(newCoursesCmd())
	root.AddCommand(newInitCmd(&global))
	root.AddCommand(newVersionCmd())

	return root
}

func runBooking(ctx context.Context, out io.Writer, global globalOptions, book bookOptions) error {
	cfg, err := loadConfig(global.configFile)
	if err != nil {
		return err
	}
	if err := site.ZHS.Validate(); err != nil {
		return err
	}

	var start time.Time
	if book.startAt != "" {
		clock, err := util.ParseClock(book.startAt)
		if err != nil {
			return fmt.Errorf("invalid --start-at: %w", err)
		}
		start = util.NextStart(time.Now(), clock)
	}

	// The browser is started before the gate so that the first step runs
	// right at the start time.
	sess, err := browser.Open(ctx, browser.Options{
		Headless:     book.headless,
		Timeout:      book.timeout,
		WindowWidth:  1920,
		WindowHeight: 1080,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	if !start.IsZero() {
		if err := waitForStart(ctx, start, book.keepAwake); err != nil {
			log.Warn().Err(err).Msg("Interrupted while waiting for start time")
			return nil
		}
	}

	runner := &booking.Runner{
		Sequencer: &booking.Sequencer{
			Page:   sess,
			Site:   site.ZHS,
			Config: cfg,
			DryRun: book.dry,
			Offers: booking.NewOffers(),
		},
		RunID: uuid.NewString(),
		Idle:  book.idle,
		Report: func(res domain.Result) {
			fmt.Fprintln(out, reportLine(res))
		},
	}
	if book.keepAwake {
		runner.KeepAwake = util.KeepAwake
	}

	runner.Run(ctx, cfg.Courses)
	return nil
}

func waitForStart(ctx context.Context, start time.Time, keepAwake bool) error {
	log.Info().
		Dur("wait_time", time.Until(start)).
		Str("start_time", start.Format(time.RFC3339)).
		Msg("Waiting until start time")

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if keepAwake {
		go util.KeepAwake(waitCtx)
	}

	if err := util.SleepUntil(waitCtx, start); err != nil {
		return err
	}
	log.Info().Msg("Start time reached")
	return nil
}

// loadConfig loads and validates the configuration, asking for the
// password on the terminal when neither the file nor the environment has
// one.
func loadConfig(path string) (*domain.Config, error) {
	cfg, err := config.Load(config.NormalizePath(path))
	if err != nil {
		return nil, err
	}

	if cfg.Login.Password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "Password for %s: ", cfg.Login.Mail)
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		cfg.Login.Password = strings.TrimSpace(string(pw))
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// reportLine is the plain per-course line printed next to the log.
func reportLine(res domain.Result) string {
	line := fmt.Sprintf("%s: %s", res.Course, res.Outcome)
	if res.Error != nil {
		line += fmt.Sprintf(" (%v)", res.Error)
	}
	return line
}
