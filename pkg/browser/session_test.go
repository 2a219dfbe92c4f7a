package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorFlags(t *testing.T) {
	flags := allocatorFlags(Options{Headless: true, WindowWidth: 1920, WindowHeight: 1080})

	assert.Equal(t, true, flags["headless"])
	assert.Equal(t, false, flags["enable-automation"])
	assert.Equal(t, "AutomationControlled", flags["disable-blink-features"])
	assert.Equal(t, "3", flags["log-level"])
	assert.Equal(t, "1920,1080", flags["window-size"])
	assert.Contains(t, flags["disable-features"], "PasswordManagerOnboarding")
	assert.Contains(t, flags["disable-features"], "AutofillServerCommunication")
	// chromedp's own defaults must survive the override
	assert.Contains(t, flags["disable-features"], "site-per-process")
	assert.NotContains(t, flags, "password-store")

	opts := allocatorOptions(Options{}, "/tmp/profile")
	assert.Len(t, opts, len(chromedp.DefaultExecAllocatorOptions)+len(flags)+1)
}

func TestPrepareProfile(t *testing.T) {
	dir, err := prepareProfile()
	require.NoError(t, err)
	t.Cleanup(func() { removeProfile(dir) })

	data, err := os.ReadFile(filepath.Join(dir, "Default", "Preferences"))
	require.NoError(t, err)

	var prefs struct {
		CredentialsEnableService *bool `json:"credentials_enable_service"`
		Profile                  struct {
			PasswordManagerEnabled *bool `json:"password_manager_enabled"`
		} `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(data, &prefs))
	require.NotNil(t, prefs.CredentialsEnableService)
	require.NotNil(t, prefs.Profile.PasswordManagerEnabled)
	assert.False(t, *prefs.CredentialsEnableService)
	assert.False(t, *prefs.Profile.PasswordManagerEnabled)

	removeProfile(dir)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

// chromeAvailable reports whether chromedp can find a browser binary.
func chromeAvailable() bool {
	for _, name := range []string{
		"headless_shell", "headless-shell", "chromium", "chromium-browser",
		"google-chrome", "google-chrome-stable", "google-chrome-beta",
	} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

const testPage = `<!doctype html>
<html><body>
<a id="open" href="/second" target="_blank">open</a>
<div id="shown">hello</div>
<div id="hidden" style="display:none">secret</div>
<button id="off" disabled>off</button>
<input id="name" value="">
</body></html>`

const secondPage = `<!doctype html>
<html><body><p id="second">second window</p></body></html>`

func openTestSession(t *testing.T) (*Session, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("starts a browser")
	}
	if !chromeAvailable() {
		t.Skip("no Chrome or headless-shell in PATH")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testPage)
	})
	mux.HandleFunc("/second", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, secondPage)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	opts := DefaultOptions()
	opts.Headless = true
	opts.Timeout = time.Second

	sess, err := Open(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess, srv.URL
}

func TestSessionOutlivesOpen(t *testing.T) {
	sess, url := openTestSession(t)
	ctx := context.Background()

	// Open has returned; the browser must still be running.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, sess.Navigate(ctx, url))
}

func TestSessionWaitConditions(t *testing.T) {
	sess, url := openTestSession(t)
	ctx := context.Background()
	require.NoError(t, sess.Navigate(ctx, url))

	els, err := sess.WaitUntil(ctx, Locator{Role: "hidden", XPath: `//div[@id="hidden"]`}, Present)
	require.NoError(t, err)
	assert.Len(t, els, 1)

	els, err = sess.WaitUntil(ctx, Locator{Role: "shown", XPath: `//div[@id="shown"]`}, Visible)
	require.NoError(t, err)
	require.Len(t, els, 1)
	text, err := sess.Text(ctx, els[0])
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	els, err = sess.WaitUntil(ctx, Locator{Role: "link", XPath: `//a[@id="open"]`}, Clickable)
	require.NoError(t, err)
	assert.Len(t, els, 1)

	_, err = sess.WaitUntil(ctx, Locator{Role: "missing", XPath: `//div[@id="missing"]`}, Present)
	var wt *WaitTimeoutError
	require.ErrorAs(t, err, &wt)
	assert.Equal(t, "missing", wt.Locator.Role)
	assert.Equal(t, time.Second, wt.Timeout)

	_, err = sess.WaitUntil(ctx, Locator{Role: "disabled", XPath: `//button[@id="off"]`}, Clickable)
	assert.True(t, IsWaitTimeout(err))

	none, err := sess.FindAll(ctx, Locator{XPath: `//div[@id="missing"]`})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSessionTypeText(t *testing.T) {
	sess, url := openTestSession(t)
	ctx := context.Background()
	require.NoError(t, sess.Navigate(ctx, url))

	els, err := sess.WaitUntil(ctx, Locator{XPath: `//input[@id="name"]`}, Visible)
	require.NoError(t, err)
	require.NoError(t, sess.TypeText(ctx, els[0], "DE89"))

	v, err := sess.Value(ctx, els[0])
	require.NoError(t, err)
	assert.Equal(t, "DE89", v)
}

func TestSessionSwitchesToNewWindow(t *testing.T) {
	sess, url := openTestSession(t)
	ctx := context.Background()
	require.NoError(t, sess.Navigate(ctx, url))

	n, err := sess.Windows(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	links, err := sess.WaitUntil(ctx, Locator{XPath: `//a[@id="open"]`}, Clickable)
	require.NoError(t, err)
	require.NoError(t, sess.Click(ctx, links[0]))

	require.NoError(t, sess.SwitchToWindow(ctx, n))
	els, err := sess.WaitUntil(ctx, Locator{XPath: `//p[@id="second"]`}, Visible)
	require.NoError(t, err)
	assert.Len(t, els, 1)

	n, err = sess.Windows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// the first window still holds the first document
	require.NoError(t, sess.SwitchToWindow(ctx, 0))
	_, err = sess.WaitUntil(ctx, Locator{XPath: `//div[@id="shown"]`}, Visible)
	require.NoError(t, err)

	err = sess.SwitchToWindow(ctx, 5)
	assert.ErrorIs(t, err, ErrWindowNotFound)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	sess, url := openTestSession(t)
	ctx := context.Background()
	require.NoError(t, sess.Navigate(ctx, url))
	profile := sess.profile

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())

	assert.ErrorIs(t, sess.Navigate(ctx, url), ErrSessionClosed)
	_, err := os.Stat(profile)
	assert.True(t, os.IsNotExist(err))
}
