// Package browsertest provides a scripted in-memory browser.Page.
//
// Documents are flat: each window maps an XPath string to the nodes it
// matches. Lookups compare XPaths literally, so tests register nodes under
// the same locators the code under test builds.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/uberswe/zhsbooker/pkg/browser"
)

// Node is one element of a scripted document.
type Node struct {
	Text     string
	Value    string
	Hidden   bool
	Disabled bool
}

type entry struct {
	node   *Node
	loc    browser.Locator
	window int
}

// Page is a fake browser.Page. It is not safe for concurrent use.
type Page struct {
	// Timeout is reported in WaitTimeoutErrors. Waits never block.
	Timeout time.Duration
	// NavigateErr, when set, is returned by every Navigate as the cause of
	// a *browser.NavigationError.
	NavigateErr error
	// Calls records every operation as "<op> <role or url>".
	Calls []string

	windows  []map[string][]*Node
	active   int
	onClick  map[string]func(*Page)
	elements map[cdp.NodeID]entry
	nextID   cdp.NodeID
}

var _ browser.Page = (*Page)(nil)

// New returns a page with one empty window.
func New() *Page {
	return &Page{
		Timeout:  browser.DefaultTimeout,
		windows:  []map[string][]*Node{{}},
		onClick:  map[string]func(*Page){},
		elements: map[cdp.NodeID]entry{},
	}
}

// Add appends nodes matched by loc in the active window.
func (p *Page) Add(loc browser.Locator, nodes ...*Node) *Page {
	return p.AddTo(p.active, loc, nodes...)
}

// AddTo appends nodes matched by loc in window.
func (p *Page) AddTo(window int, loc browser.Locator, nodes ...*Node) *Page {
	doc := p.windows[window]
	doc[loc.XPath] = append(doc[loc.XPath], nodes...)
	return p
}

// Set replaces the nodes matched by loc in the active window.
func (p *Page) Set(loc browser.Locator, nodes ...*Node) *Page {
	p.windows[p.active][loc.XPath] = nodes
	return p
}

// Remove drops every node matched by loc in the active window.
func (p *Page) Remove(loc browser.Locator) *Page {
	delete(p.windows[p.active], loc.XPath)
	return p
}

// OpenWindow adds an empty window and returns its index. The active window
// does not change.
func (p *Page) OpenWindow() int {
	p.windows = append(p.windows, map[string][]*Node{})
	return len(p.windows) - 1
}

// OnClick runs fn whenever an element found through loc is clicked.
func (p *Page) OnClick(loc browser.Locator, fn func(*Page)) *Page {
	p.onClick[loc.XPath] = fn
	return p
}

// Active returns the index of the current window.
func (p *Page) Active() int {
	return p.active
}

// Node returns the first node matched by loc in window, or nil.
func (p *Page) Node(window int, loc browser.Locator) *Node {
	if nodes := p.windows[window][loc.XPath]; len(nodes) > 0 {
		return nodes[0]
	}
	return nil
}

// Called reports whether op was recorded for loc.
func (p *Page) Called(op string, loc browser.Locator) bool {
	want := op + " " + name(loc)
	for _, c := range p.Calls {
		if c == want {
			return true
		}
	}
	return false
}

func name(loc browser.Locator) string {
	if loc.Role != "" {
		return loc.Role
	}
	return loc.XPath
}

func (p *Page) record(format string, args ...interface{}) {
	p.Calls = append(p.Calls, fmt.Sprintf(format, args...))
}

func (p *Page) lookup(loc browser.Locator) []browser.Element {
	nodes := p.windows[p.active][loc.XPath]
	out := make([]browser.Element, 0, len(nodes))
	for _, n := range nodes {
		p.nextID++
		p.elements[p.nextID] = entry{node: n, loc: loc, window: p.active}
		out = append(out, browser.Element{ID: p.nextID})
	}
	return out
}

func (p *Page) resolve(el browser.Element) (entry, error) {
	e, ok := p.elements[el.ID]
	if !ok {
		return entry{}, fmt.Errorf("unknown element %d", el.ID)
	}
	if e.window != p.active {
		return entry{}, fmt.Errorf("element %d belongs to window %d, current window is %d", el.ID, e.window, p.active)
	}
	return e, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.record("navigate %s", url)
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.NavigateErr != nil {
		return &browser.NavigationError{URL: url, Err: p.NavigateErr}
	}
	return nil
}

func (p *Page) WaitUntil(ctx context.Context, loc browser.Locator, cond browser.Condition) ([]browser.Element, error) {
	p.record("wait %s", name(loc))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nodes := p.windows[p.active][loc.XPath]
	if len(nodes) == 0 || !meets(nodes[0], cond) {
		return nil, &browser.WaitTimeoutError{Locator: loc, Condition: cond, Timeout: p.Timeout}
	}
	return p.lookup(loc), nil
}

func meets(n *Node, cond browser.Condition) bool {
	switch cond {
	case browser.Present:
		return true
	case browser.Visible:
		return !n.Hidden
	case browser.Clickable:
		return !n.Hidden && !n.Disabled
	}
	return false
}

func (p *Page) Find(ctx context.Context, loc browser.Locator) (browser.Element, bool, error) {
	els, err := p.FindAll(ctx, loc)
	if err != nil || len(els) == 0 {
		return browser.Element{}, false, err
	}
	return els[0], true, nil
}

func (p *Page) FindAll(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	p.record("find %s", name(loc))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.lookup(loc), nil
}

func (p *Page) Click(ctx context.Context, el browser.Element) error {
	e, err := p.resolve(el)
	if err != nil {
		return err
	}
	p.record("click %s", name(e.loc))
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.node.Hidden || e.node.Disabled {
		return fmt.Errorf("element %d is not interactable", el.ID)
	}
	if fn := p.onClick[e.loc.XPath]; fn != nil {
		fn(p)
	}
	return nil
}

// TypeText appends text to the node's value. A newline is a key press and
// does not end up in the value.
func (p *Page) TypeText(ctx context.Context, el browser.Element, text string) error {
	e, err := p.resolve(el)
	if err != nil {
		return err
	}
	p.record("type %s", name(e.loc))
	if err := ctx.Err(); err != nil {
		return err
	}
	e.node.Value += strings.ReplaceAll(text, "\n", "")
	return nil
}

func (p *Page) Text(ctx context.Context, el browser.Element) (string, error) {
	e, err := p.resolve(el)
	if err != nil {
		return "", err
	}
	return e.node.Text, ctx.Err()
}

func (p *Page) Value(ctx context.Context, el browser.Element) (string, error) {
	e, err := p.resolve(el)
	if err != nil {
		return "", err
	}
	return e.node.Value, ctx.Err()
}

func (p *Page) Windows(ctx context.Context) (int, error) {
	return len(p.windows), ctx.Err()
}

func (p *Page) SwitchToWindow(ctx context.Context, index int) error {
	p.record("switch %d", index)
	if err := ctx.Err(); err != nil {
		return err
	}
	if index < 0 || index >= len(p.windows) {
		return fmt.Errorf("%w: index %d of %d", browser.ErrWindowNotFound, index, len(p.windows))
	}
	p.active = index
	return nil
}
