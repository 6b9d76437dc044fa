package browser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// storageScript writes items to localStorage. Registered with
// EvalOnNewDocument so it runs before the page's own scripts. Opaque
// origins (about:blank) throw on localStorage access, hence the guard.
func storageScript(items []scenario.StorageItem) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("(() => { try {\n")
	for _, it := range items {
		k, _ := json.Marshal(it.Key)
		v, _ := json.Marshal(it.Value)
		fmt.Fprintf(&b, "  window.localStorage.setItem(%s, %s);\n", k, v)
	}
	b.WriteString("} catch (e) {} })();")
	return b.String()
}

// watchScript records, per selector, whether a matching element was ever
// rendered visible. It samples in requestAnimationFrame callbacks only,
// which run right before each paint: a DOM state that scripts change
// before the first frame was never on screen. The visibility test is the
// one rod's Element.Visible uses, so the watch and expect_visible agree.
func watchScript(selectors []string) string {
	if len(selectors) == 0 {
		return ""
	}
	sels, _ := json.Marshal(selectors)
	return fmt.Sprintf(`(() => {
  const selectors = %s;
  const seen = window.__pagecheckShown = window.__pagecheckShown || {};
  const visible = (el) => {
    const box = el.getBoundingClientRect();
    const style = window.getComputedStyle(el);
    return style.display !== 'none' && style.visibility !== 'hidden' &&
      !!(box.top || box.bottom || box.width || box.height);
  };
  const frame = () => {
    for (const sel of selectors) {
      if (seen[sel]) continue;
      const el = document.querySelector(sel);
      if (el && visible(el)) seen[sel] = true;
    }
    window.requestAnimationFrame(frame);
  };
  window.requestAnimationFrame(frame);
})();`, sels)
}

const jsEverShown = `(sel) => !!(window.__pagecheckShown && window.__pagecheckShown[sel])`

const jsBodyHTML = `() => (document.body || document.documentElement).outerHTML`

// jsAccessibleName approximates the accessible name computation for the
// elements role locators target.
const jsAccessibleName = `() => {
  const el = this;
  const label = el.getAttribute('aria-label');
  if (label && label.trim()) return label;
  const by = el.getAttribute('aria-labelledby');
  if (by) {
    const text = by.split(/\s+/).map((id) => {
      const n = document.getElementById(id);
      return n ? n.textContent : '';
    }).join(' ').trim();
    if (text) return text;
  }
  const tag = el.tagName;
  if (tag === 'INPUT') {
    const type = (el.getAttribute('type') || 'text').toLowerCase();
    if (type === 'submit') return el.value || 'Submit';
    if (type === 'reset') return el.value || 'Reset';
    if (type === 'button') return el.value || '';
    if (type === 'image') return el.alt || '';
  }
  if (el.labels && el.labels.length) {
    return Array.from(el.labels).map((l) => l.textContent).join(' ');
  }
  if (tag === 'IMG') return el.alt || '';
  return el.innerText || el.textContent || el.getAttribute('title') || '';
}`

// jsDispatch fires a synthetic event on the element, bypassing hit testing.
const jsDispatch = `(type) => {
  const init = { bubbles: true, cancelable: true, composed: true };
  const mouse = /^(click|dblclick|auxclick|contextmenu|mouse)/.test(type);
  const ev = mouse ? new MouseEvent(type, Object.assign({ view: window }, init)) : new Event(type, init);
  this.dispatchEvent(ev);
}`

const jsClearValue = `() => {
  this.value = '';
  this.dispatchEvent(new Event('input', { bubbles: true }));
}`
