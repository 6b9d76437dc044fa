// Package drivertest provides an in-memory driver.Page backed by a parsed
// HTML document, for executor and locator tests.
//
// Visibility: an element is visible unless it or an ancestor carries the
// `hidden` attribute or an inline `display:none`. Behavior is attached with
// On (click and dispatched events) and Later (timed DOM changes).
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hazyhaar/pagecheck/pagecheck/internal/driver"
	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// Handler mutates the document in response to an event on a matching node.
type Handler func(doc *goquery.Document, target *goquery.Selection)

type binding struct {
	css     string
	event   string
	handler Handler
}

// Page is a fake driver.Page.
type Page struct {
	mu       sync.Mutex
	doc      *goquery.Document
	sites    map[string]string
	bindings []binding
	shown    map[string]bool
	timers   []*time.Timer

	// ClickErr, when set, fails pointer clicks (simulates an overlay).
	ClickErr error
	// NavErr, when set, fails every navigation.
	NavErr error

	Navigations []string
	Clicks      []string // "mouse:<css>" / "dispatch:<event>"
	Closed      bool
}

// NewPage returns a page that serves the given URL → HTML map.
func NewPage(sites map[string]string) *Page {
	return &Page{sites: sites, shown: make(map[string]bool)}
}

// On binds a handler to event ("click" for both pointer and dispatch) on
// nodes matching css.
func (p *Page) On(css, event string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bindings = append(p.bindings, binding{css: css, event: event, handler: h})
}

// Later applies fn to the document after d.
func (p *Page) Later(d time.Duration, fn func(doc *goquery.Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timers = append(p.timers, time.AfterFunc(d, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.doc != nil {
			fn(p.doc)
		}
	}))
}

// MarkShown records css as rendered visible.
func (p *Page) MarkShown(css string) {
	p.mu.Lock()
	p.shown[css] = true
	p.mu.Unlock()
}

// Document runs fn with the current document under the page lock.
func (p *Page) Document(fn func(doc *goquery.Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.doc)
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigations = append(p.Navigations, url)
	if p.NavErr != nil {
		return p.NavErr
	}
	src, ok := p.sites[url]
	if !ok {
		return fmt.Errorf("net::ERR_FILE_NOT_FOUND %s", url)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return err
	}
	p.doc = doc
	return nil
}

func (p *Page) Query(_ context.Context, css string) ([]driver.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return nil, errors.New("drivertest: no document")
	}
	return p.wrap(p.doc.Find(css)), nil
}

func (p *Page) wrap(sel *goquery.Selection) []driver.Element {
	out := make([]driver.Element, 0, sel.Length())
	for _, n := range sel.Nodes {
		out = append(out, &Element{page: p, node: n})
	}
	return out
}

func (p *Page) Screenshot(_ context.Context, fullPage bool) ([]byte, error) {
	return []byte(fmt.Sprintf("\x89PNG page full=%t", fullPage)), nil
}

func (p *Page) HTML(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return "", nil
	}
	return p.doc.Find("body").Html()
}

func (p *Page) EverShown(_ context.Context, css string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shown[css], nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.timers {
		t.Stop()
	}
	p.Closed = true
	return nil
}

// fire runs the handlers bound to event on n. Caller holds p.mu.
func (p *Page) fire(n *html.Node, event string) {
	target := p.doc.FindNodes(n)
	for _, b := range p.bindings {
		if b.event == event && target.Is(b.css) {
			b.handler(p.doc, target)
		}
	}
}

// Element is a fake driver.Element.
type Element struct {
	page *Page
	node *html.Node
}

func (e *Element) sel() *goquery.Selection { return e.page.doc.FindNodes(e.node) }

func (e *Element) Query(_ context.Context, css string) ([]driver.Element, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.page.wrap(e.sel().Find(css)), nil
}

func (e *Element) Visible(_ context.Context) (bool, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	for n := e.node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		for _, a := range n.Attr {
			if a.Key == "hidden" {
				return false, nil
			}
			if a.Key == "style" && strings.Contains(strings.ReplaceAll(a.Val, " ", ""), "display:none") {
				return false, nil
			}
		}
	}
	// Detached nodes are not rendered.
	return e.page.doc.FindNodes(e.node).Closest("html").Length() > 0, nil
}

func (e *Element) Text(_ context.Context) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	s := e.sel()
	if goquery.NodeName(s) == "input" || goquery.NodeName(s) == "textarea" {
		if v, ok := s.Attr("value"); ok {
			return v, nil
		}
	}
	return s.Text(), nil
}

func (e *Element) AccessibleName(_ context.Context) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	s := e.sel()
	if v, ok := s.Attr("aria-label"); ok {
		return v, nil
	}
	if goquery.NodeName(s) == "input" {
		v, _ := s.Attr("value")
		return v, nil
	}
	return s.Text(), nil
}

func (e *Element) Fill(_ context.Context, value string) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.sel().SetAttr("value", value)
	e.page.fire(e.node, "input")
	return nil
}

func (e *Element) Click(_ context.Context) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if e.page.ClickErr != nil {
		return e.page.ClickErr
	}
	e.page.Clicks = append(e.page.Clicks, "mouse:"+goquery.NodeName(e.sel()))
	e.page.fire(e.node, "click")
	return nil
}

func (e *Element) Dispatch(_ context.Context, event string) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.page.Clicks = append(e.page.Clicks, "dispatch:"+event)
	e.page.fire(e.node, event)
	return nil
}

func (e *Element) Screenshot(_ context.Context) ([]byte, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return []byte("\x89PNG element " + goquery.NodeName(e.sel())), nil
}

// Launcher is a fake driver.Launcher handing out pages from NewPage.
type Launcher struct {
	mu      sync.Mutex
	NewPage func(opts driver.SessionOptions) (*Page, error)

	StartErr error
	Started  bool
	Closed   bool
	Sessions []driver.SessionOptions
	Pages    []*Page
}

func (l *Launcher) Start(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.StartErr != nil {
		return l.StartErr
	}
	l.Started = true
	return nil
}

func (l *Launcher) Open(_ context.Context, opts driver.SessionOptions) (driver.Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Sessions = append(l.Sessions, opts)
	p, err := l.NewPage(opts)
	if err != nil {
		return nil, err
	}
	l.Pages = append(l.Pages, p)
	for _, item := range opts.Storage {
		if opts.OnConsole != nil {
			opts.OnConsole(scenario.ConsoleMessage{Level: "debug", Text: "seeded " + item.Key})
		}
	}
	return p, nil
}

func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Closed = true
	return nil
}
