package browser

import (
	"context"
	"fmt"
	"sync"
)

// Page is one node of a scripted site.
type Page struct {
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
	// Links maps selectors to the page they lead to.
	Links map[string]string `yaml:"links,omitempty"`
	// Fields holds text typed into selectors on this page.
	Fields map[string]string `yaml:"fields,omitempty"`
}

// ScriptedDriver replays a fixed site graph. It backs tests and
// offline runs where no real browser is attached.
type ScriptedDriver struct {
	mu      sync.Mutex
	pages   map[string]*Page
	current string
	visits  []string
}

// Compile-time interface check.
var _ Driver = (*ScriptedDriver)(nil)

// NewScriptedDriver creates a driver over the given site graph.
func NewScriptedDriver(pages map[string]*Page) *ScriptedDriver {
	if pages == nil {
		pages = make(map[string]*Page)
	}
	return &ScriptedDriver{pages: pages}
}

// State returns the current page observation. Before the first
// navigation the browser sits on an empty page.
func (d *ScriptedDriver) State(ctx context.Context) (*PageState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == "" {
		return &PageState{URL: BlankURL}, nil
	}
	page := d.pages[d.current]
	return &PageState{
		URL:     d.current,
		Title:   page.Title,
		Content: page.Content,
	}, nil
}

// Perform executes one action against the scripted site.
func (d *ScriptedDriver) Perform(ctx context.Context, action Action) (*ActionResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch action.Type {
	case ActionNavigate:
		if _, ok := d.pages[action.URL]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPage, action.URL)
		}
		d.current = action.URL
		d.visits = append(d.visits, action.URL)
		return &ActionResult{Content: "navigated to " + action.URL}, nil

	case ActionClick:
		page, err := d.currentPage()
		if err != nil {
			return nil, err
		}
		target, ok := page.Links[action.Selector]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSelector, action.Selector)
		}
		if _, ok := d.pages[target]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPage, target)
		}
		d.current = target
		d.visits = append(d.visits, target)
		return &ActionResult{Content: "clicked " + action.Selector}, nil

	case ActionType:
		page, err := d.currentPage()
		if err != nil {
			return nil, err
		}
		if page.Fields == nil {
			page.Fields = make(map[string]string)
		}
		page.Fields[action.Selector] = action.Text
		return &ActionResult{Content: "typed into " + action.Selector}, nil

	case ActionExtract:
		page, err := d.currentPage()
		if err != nil {
			return nil, err
		}
		return &ActionResult{Content: page.Content}, nil

	case ActionDone:
		return &ActionResult{Content: action.Result}, nil

	default:
		return nil, fmt.Errorf("browser: unsupported action %q", action.Type)
	}
}

// Close releases the scripted session.
func (d *ScriptedDriver) Close() error {
	return nil
}

// Visits returns the navigation log in order.
func (d *ScriptedDriver) Visits() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]string, len(d.visits))
	copy(out, d.visits)
	return out
}

// currentPage resolves the active page. Caller holds the lock.
func (d *ScriptedDriver) currentPage() (*Page, error) {
	if d.current == "" {
		return nil, ErrNoPage
	}
	return d.pages[d.current], nil
}
