package browser

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/pagecheck/pagecheck/internal/driver"
)

// Element adapts a rod element to driver.Element. Every call is bound to
// the caller's context so waits inside rod honor step timeouts.
type Element struct {
	el *rod.Element
}

var _ driver.Element = (*Element)(nil)

func wrapElements(els rod.Elements) []driver.Element {
	out := make([]driver.Element, len(els))
	for i, el := range els {
		out[i] = &Element{el: el}
	}
	return out
}

func (e *Element) Query(ctx context.Context, css string) ([]driver.Element, error) {
	els, err := e.el.Context(ctx).Elements(css)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}

func (e *Element) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *Element) AccessibleName(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(jsAccessibleName)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// Fill replaces the current value: rod's Input inserts at the caret.
func (e *Element) Fill(ctx context.Context, value string) error {
	el := e.el.Context(ctx)
	if value == "" {
		_, err := el.Eval(jsClearValue)
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}

func (e *Element) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *Element) Dispatch(ctx context.Context, event string) error {
	_, err := e.el.Context(ctx).Eval(jsDispatch, event)
	return err
}

func (e *Element) Screenshot(ctx context.Context) ([]byte, error) {
	return e.el.Context(ctx).Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
}
