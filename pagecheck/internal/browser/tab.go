package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/pagecheck/pagecheck/internal/driver"
)

// Tab is the page a scenario runs in. It implements driver.Page.
type Tab struct {
	Page *rod.Page

	manager   *Manager
	context   *rod.Browser // incognito context, nil when shared
	hijack    *rod.HijackRouter
	stopEvent context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

var _ driver.Page = (*Tab)(nil)

// Open creates a page for one scenario: an incognito context when
// isolated, stealth when configured, then init scripts (storage seeding,
// visibility watch, caller scripts) and console forwarding, all before navigation.
func (m *Manager) Open(ctx context.Context, opts driver.SessionOptions) (driver.Page, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	t := &Tab{manager: m}
	if opts.Isolated {
		inc, err := b.Incognito()
		if err != nil {
			return nil, fmt.Errorf("browser: incognito context: %w", err)
		}
		t.context = inc
		b = inc
	}

	var page *rod.Page
	var err error
	if m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		t.disposeContext()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	t.Page = page
	m.track(t)

	if err := t.setup(ctx, opts); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *Tab) setup(ctx context.Context, opts driver.SessionOptions) error {
	cfg := t.manager.cfg

	if err := t.Page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.Width,
		Height:            cfg.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		cfg.Logger.Warn("browser: set viewport failed", "error", err)
	}

	if len(cfg.ResourceBlocking) > 0 {
		router, err := applyResourceBlocking(t.Page, cfg.ResourceBlocking)
		if err != nil {
			cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		} else {
			t.hijack = router
		}
	}

	scripts := []string{storageScript(opts.Storage), watchScript(opts.Watch)}
	scripts = append(scripts, opts.InitScripts...)
	for _, js := range scripts {
		if js == "" {
			continue
		}
		if _, err := t.Page.EvalOnNewDocument(js); err != nil {
			return fmt.Errorf("browser: register init script: %w", err)
		}
	}

	if opts.OnConsole != nil {
		evCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		t.stopEvent = cancel
		wait := t.Page.Context(evCtx).EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
			opts.OnConsole(consoleMessage(e))
		})
		go wait()
	}
	return nil
}

// Navigate loads url and waits for the load event. A load wait timeout is
// logged, not returned: the document is usable and assertions bound their
// own waits.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	if err := t.Page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := t.Page.Context(ctx).WaitLoad(); err != nil {
		t.manager.cfg.Logger.Warn("browser: wait load timeout", "url", url, "error", err)
	}
	return nil
}

func (t *Tab) Query(ctx context.Context, css string) ([]driver.Element, error) {
	els, err := t.Page.Context(ctx).Elements(css)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

func (t *Tab) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	return t.Page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (t *Tab) HTML(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(jsBodyHTML)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

func (t *Tab) EverShown(ctx context.Context, css string) (bool, error) {
	res, err := t.Page.Context(ctx).Eval(jsEverShown, css)
	if err != nil {
		return false, fmt.Errorf("browser: read watch: %w", err)
	}
	return res.Value.Bool(), nil
}

// Close closes the page and disposes its incognito context.
func (t *Tab) Close() error {
	t.closeOnce.Do(func() {
		if t.stopEvent != nil {
			t.stopEvent()
		}
		if t.hijack != nil {
			if err := t.hijack.Stop(); err != nil {
				t.manager.cfg.Logger.Debug("browser: stop hijack", "error", err)
			}
		}
		var errs []error
		if t.Page != nil {
			// Bound teardown so a hung renderer cannot block cleanup.
			if err := t.Page.Timeout(5 * time.Second).Close(); err != nil {
				errs = append(errs, fmt.Errorf("browser: close page: %w", err))
			}
		}
		if err := t.disposeContext(); err != nil {
			errs = append(errs, err)
		}
		t.manager.untrack(t)
		t.closeErr = errors.Join(errs...)
	})
	return t.closeErr
}

func (t *Tab) disposeContext() error {
	if t.context == nil {
		return nil
	}
	err := t.context.Close()
	t.context = nil
	if err != nil {
		return fmt.Errorf("browser: dispose context: %w", err)
	}
	return nil
}
