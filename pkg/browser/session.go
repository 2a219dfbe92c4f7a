package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout is the wait budget applied to every WaitUntil.
	DefaultTimeout     = 5 * time.Second
	navigationTimeout  = 30 * time.Second
	windowPollInterval = 100 * time.Millisecond
)

// Options are the fixed startup settings of a Session.
type Options struct {
	Headless     bool
	Timeout      time.Duration
	WindowWidth  int
	WindowHeight int
}

// DefaultOptions returns a visible 1920x1080 browser with DefaultTimeout.
func DefaultOptions() Options {
	return Options{
		Timeout:      DefaultTimeout,
		WindowWidth:  1920,
		WindowHeight: 1080,
	}
}

// Session is a live Chrome instance driven over the DevTools protocol. It
// implements Page. The current window is switched only by SwitchToWindow.
type Session struct {
	timeout time.Duration
	profile string

	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	browser       context.Context // first tab, owns the browser process

	windows []target.ID
	tabs    map[target.ID]context.Context
	cancels []context.CancelFunc
	current context.Context
	active  int
	closed  bool
}

var _ Page = (*Session)(nil)

// Open starts Chrome with opts. The caller must Close the session.
//
// The browser lives on an uncancelled context: the first chromedp.Run
// allocates the process and binds it to the context it is given. Start-up is
// bounded by a timer and by ctx, both detached once the first tab is up.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	profile, err := prepareProfile()
	if err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts, profile)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Debug().Str("component", "chromedp").Msgf(format, args...)
		}),
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			log.Debug().Str("component", "chromedp").Msgf(format, args...)
		}),
	)

	timer := time.AfterFunc(navigationTimeout, browserCancel)
	stop := context.AfterFunc(ctx, browserCancel)

	// Run with no actions starts the browser and its first tab
	err = chromedp.Run(browserCtx)
	timedOut := !timer.Stop()
	interrupted := !stop()

	if err == nil && (timedOut || interrupted) {
		err = errors.New("start-up aborted")
	}
	if err != nil {
		browserCancel()
		allocCancel()
		removeProfile(profile)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if timedOut {
			return nil, fmt.Errorf("start browser: no tab within %s: %w", navigationTimeout, err)
		}
		return nil, fmt.Errorf("start browser: %w", err)
	}

	first := chromedp.FromContext(browserCtx).Target.TargetID
	s := &Session{
		timeout:       opts.Timeout,
		profile:       profile,
		allocCancel:   allocCancel,
		browserCancel: browserCancel,
		browser:       browserCtx,
		windows:       []target.ID{first},
		tabs:          map[target.ID]context.Context{first: browserCtx},
		current:       browserCtx,
	}

	log.Info().
		Bool("headless", opts.Headless).
		Dur("timeout", opts.Timeout).
		Str("profile", profile).
		Msg("Browser session started")

	return s, nil
}

// disabledFeatures extends chromedp's default list with the password
// manager and autofill services.
const disabledFeatures = "site-per-process,Translate,BlinkGenPropertyTrees," +
	"PasswordManagerOnboarding,AutofillServerCommunication"

// allocatorFlags is the Chrome command line on top of chromedp's defaults:
// no automation banner, no password manager prompts, fixed window size,
// quiet logging.
func allocatorFlags(opts Options) map[string]interface{} {
	return map[string]interface{}{
		"headless":               opts.Headless,
		"enable-automation":      false,
		"disable-blink-features": "AutomationControlled",
		"disable-infobars":       true,
		"disable-features":       disabledFeatures,
		"log-level":              "3",
		"window-size":            fmt.Sprintf("%d,%d", opts.WindowWidth, opts.WindowHeight),
	}
}

func allocatorOptions(opts Options, profile string) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range allocatorFlags(opts) {
		out = append(out, chromedp.Flag(name, value))
	}
	return append(out, chromedp.UserDataDir(profile))
}

// profilePreferences switch off credential saving in the throwaway profile.
// Chrome only reads these from the profile, there is no flag for them.
var profilePreferences = map[string]interface{}{
	"credentials_enable_service": false,
	"profile": map[string]interface{}{
		"password_manager_enabled": false,
	},
}

// prepareProfile creates a fresh user data dir whose default profile has
// the password manager disabled.
func prepareProfile() (string, error) {
	dir, err := os.MkdirTemp("", "zhsbooker-profile-")
	if err != nil {
		return "", fmt.Errorf("create browser profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "Default"), 0o700); err != nil {
		removeProfile(dir)
		return "", fmt.Errorf("create browser profile: %w", err)
	}
	data, err := json.Marshal(profilePreferences)
	if err != nil {
		removeProfile(dir)
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "Default", "Preferences"), data, 0o600); err != nil {
		removeProfile(dir)
		return "", fmt.Errorf("write browser preferences: %w", err)
	}
	return dir, nil
}

func removeProfile(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		log.Warn().Err(err).Str("profile", dir).Msg("Could not remove browser profile")
	}
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	for i := len(s.cancels) - 1; i >= 0; i-- {
		s.cancels[i]()
	}

	closeCtx, cancel := context.WithTimeout(s.browser, 5*time.Second)
	defer cancel()
	err := chromedp.Cancel(closeCtx)
	s.browserCancel()
	// the exec allocator's cancel waits for the process to exit
	s.allocCancel()
	removeProfile(s.profile)

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("Browser did not close cleanly")
		return err
	}
	log.Info().Msg("Browser session closed")
	return nil
}

// run executes actions on the current window, bounded by timeout and by
// the caller's ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if s.closed {
		return ErrSessionClosed
	}
	runCtx, cancel := context.WithTimeout(s.current, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, navigationTimeout, chromedp.Navigate(url)); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return &NavigationError{URL: url, Err: err}
	}
	return nil
}

func (s *Session) WaitUntil(ctx context.Context, loc Locator, cond Condition) ([]Element, error) {
	// Visibility is judged on the first match so that hidden siblings
	// cannot hold the wait open.
	first := loc.Nth(0).XPath

	var actions []chromedp.Action
	switch cond {
	case Present:
		actions = append(actions, chromedp.WaitReady(first, chromedp.BySearch))
	case Visible:
		actions = append(actions, chromedp.WaitVisible(first, chromedp.BySearch))
	case Clickable:
		actions = append(actions,
			chromedp.WaitVisible(first, chromedp.BySearch),
			chromedp.WaitEnabled(first, chromedp.BySearch),
		)
	default:
		return nil, fmt.Errorf("unknown condition %v", cond)
	}

	if err := s.run(ctx, s.timeout, actions...); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &WaitTimeoutError{Locator: loc, Condition: cond, Timeout: s.timeout}
		}
		return nil, fmt.Errorf("wait for %s: %w", loc, err)
	}

	return s.FindAll(ctx, loc)
}

func (s *Session) FindAll(ctx context.Context, loc Locator) ([]Element, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, s.timeout, chromedp.Nodes(loc.XPath, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, err)
	}
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Element{ID: n.NodeID})
	}
	return out, nil
}

func (s *Session) Find(ctx context.Context, loc Locator) (Element, bool, error) {
	els, err := s.FindAll(ctx, loc)
	if err != nil || len(els) == 0 {
		return Element{}, false, err
	}
	return els[0], true, nil
}

func (s *Session) Click(ctx context.Context, el Element) error {
	return s.run(ctx, s.timeout, chromedp.Click([]cdp.NodeID{el.ID}, chromedp.ByNodeID))
}

func (s *Session) TypeText(ctx context.Context, el Element, text string) error {
	return s.run(ctx, s.timeout, chromedp.SendKeys([]cdp.NodeID{el.ID}, text, chromedp.ByNodeID))
}

func (s *Session) Text(ctx context.Context, el Element) (string, error) {
	var text string
	err := s.run(ctx, s.timeout, chromedp.Text([]cdp.NodeID{el.ID}, &text, chromedp.ByNodeID))
	return text, err
}

func (s *Session) Value(ctx context.Context, el Element) (string, error) {
	var value string
	err := s.run(ctx, s.timeout, chromedp.Value([]cdp.NodeID{el.ID}, &value, chromedp.ByNodeID))
	return value, err
}

// Windows refreshes the list of page targets. Known windows keep their
// index; new ones are appended in the order they are discovered.
func (s *Session) Windows(ctx context.Context) (int, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}
	infos, err := chromedp.Targets(s.browser)
	if err != nil {
		return 0, fmt.Errorf("list windows: %w", err)
	}

	open := make(map[target.ID]bool, len(infos))
	for _, info := range infos {
		if info.Type == "page" {
			open[info.TargetID] = true
		}
	}

	kept := s.windows[:0]
	for _, id := range s.windows {
		if open[id] {
			kept = append(kept, id)
			delete(open, id)
		}
	}
	for _, info := range infos {
		if open[info.TargetID] {
			kept = append(kept, info.TargetID)
		}
	}
	s.windows = kept
	return len(s.windows), nil
}

func (s *Session) SwitchToWindow(ctx context.Context, index int) error {
	deadline := time.Now().Add(s.timeout)
	for {
		n, err := s.Windows(ctx)
		if err != nil {
			return err
		}
		if index < n {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: index %d of %d after %s", ErrWindowNotFound, index, n, s.timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(windowPollInterval):
		}
	}

	id := s.windows[index]
	tab, ok := s.tabs[id]
	if !ok {
		// Cancelling an attached tab context closes the tab, so attached
		// tabs live until Close.
		var cancel context.CancelFunc
		tab, cancel = chromedp.NewContext(s.browser, chromedp.WithTargetID(id))
		if err := chromedp.Run(tab); err != nil {
			cancel()
			return fmt.Errorf("attach to window %d: %w", index, err)
		}
		s.tabs[id] = tab
		s.cancels = append(s.cancels, cancel)
	}

	s.current = tab
	if s.active != index {
		log.Debug().Int("from", s.active).Int("to", index).Msg("Switched window")
	}
	s.active = index
	return nil
}
