package viewport

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/playwright-community/playwright-go"

	"nammabody/internal/domain/section"
)

const (
	entriesBinding = "__nbSectionEntries"
	scrollBinding  = "__nbSectionScroll"
)

const installObserverJS = `([key, ids, rootMargin, thresholds]) => {
	window.__nbObservers = window.__nbObservers || {};
	const observer = new IntersectionObserver((entries) => {
		window.` + entriesBinding + `(key, entries.map((e) => ({
			id: e.target.id,
			intersecting: e.isIntersecting,
			ratio: e.intersectionRatio,
			top: e.boundingClientRect.top,
		})));
	}, { root: null, rootMargin, threshold: thresholds });
	for (const id of ids) {
		const el = document.getElementById(id);
		if (el) observer.observe(el);
	}
	window.__nbObservers[key] = observer;
}`

const disconnectObserverJS = `(key) => {
	const o = window.__nbObservers && window.__nbObservers[key];
	if (o) { o.disconnect(); delete window.__nbObservers[key]; }
}`

const installScrollJS = `() => {
	if (window.__nbScrollHooked) return;
	window.__nbScrollHooked = true;
	window.addEventListener('scroll', () => window.` + scrollBinding + `(), { passive: true });
}`

const resolveJS = `(ids) => ids.filter((id) => document.getElementById(id) !== null)`

const boundsJS = `(ids) => ids.flatMap((id) => {
	const el = document.getElementById(id);
	if (!el) return [];
	const r = el.getBoundingClientRect();
	return [{ id, top: r.top, bottom: r.bottom }];
})`

// Page observes sections of a live browser page through Playwright.
// Browser callbacks are queued and delivered to Go one at a time.
type Page struct {
	page playwright.Page

	mu        sync.Mutex
	observers map[int]func([]section.Entry)
	scrollFns map[int]func()
	nextKey   int

	events    chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// NewPage installs the Go bindings on page.
// PRE: page is open; bindings survive later navigations
// POST: Returns a ready Page; call Close to stop its dispatcher
func NewPage(page playwright.Page) (*Page, error) {
	p := &Page{
		page:      page,
		observers: make(map[int]func([]section.Entry)),
		scrollFns: make(map[int]func()),
		events:    make(chan func(), 256),
		done:      make(chan struct{}),
	}
	if err := page.ExposeFunction(entriesBinding, p.onEntries); err != nil {
		return nil, fmt.Errorf("expose %s: %w", entriesBinding, err)
	}
	if err := page.ExposeFunction(scrollBinding, p.onScroll); err != nil {
		return nil, fmt.Errorf("expose %s: %w", scrollBinding, err)
	}
	go p.dispatch()
	return p, nil
}

// Close stops event delivery. It does not close the underlying page.
func (p *Page) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

func (p *Page) dispatch() {
	for {
		select {
		case fn := <-p.events:
			fn()
		case <-p.done:
			return
		}
	}
}

func (p *Page) enqueue(fn func()) {
	select {
	case p.events <- fn:
	case <-p.done:
	}
}

// onEntries receives (key, entries) from the page.
func (p *Page) onEntries(args ...interface{}) interface{} {
	if len(args) != 2 {
		return nil
	}
	key := int(toFloat(args[0]))
	raw, _ := args[1].([]interface{})
	entries := make([]section.Entry, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		intersecting, _ := m["intersecting"].(bool)
		entries = append(entries, section.Entry{
			ID:           id,
			Intersecting: intersecting,
			Ratio:        toFloat(m["ratio"]),
			Top:          toFloat(m["top"]),
		})
	}
	p.enqueue(func() {
		p.mu.Lock()
		fn := p.observers[key]
		p.mu.Unlock()
		if fn != nil {
			fn(entries)
		}
	})
	return nil
}

func (p *Page) onScroll(args ...interface{}) interface{} {
	p.enqueue(func() {
		p.mu.Lock()
		fns := make([]func(), 0, len(p.scrollFns))
		for _, fn := range p.scrollFns {
			fns = append(fns, fn)
		}
		p.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	})
	return nil
}

// Resolve returns the ids that have an element in the document.
func (p *Page) Resolve(ids []string) []string {
	v, err := p.page.Evaluate(resolveJS, ids)
	if err != nil {
		slog.Warn("viewport_resolve_failed", "error", err)
		return nil
	}
	raw, _ := v.([]interface{})
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Observe installs a browser IntersectionObserver for ids.
// PRE: ids were returned by Resolve
// POST: fn receives batches until stop is called
func (p *Page) Observe(ids []string, opts section.Options, fn func([]section.Entry)) (func(), error) {
	p.mu.Lock()
	key := p.nextKey
	p.nextKey++
	p.observers[key] = fn
	p.mu.Unlock()

	if _, err := p.page.Evaluate(installObserverJS, []interface{}{key, ids, opts.RootMargin, opts.Thresholds}); err != nil {
		p.mu.Lock()
		delete(p.observers, key)
		p.mu.Unlock()
		return nil, fmt.Errorf("install observer: %w", err)
	}

	return func() {
		p.mu.Lock()
		delete(p.observers, key)
		p.mu.Unlock()
		if _, err := p.page.Evaluate(disconnectObserverJS, key); err != nil {
			slog.Debug("viewport_disconnect_failed", "error", err)
		}
	}, nil
}

// OnScroll subscribes fn to the window scroll event.
func (p *Page) OnScroll(fn func()) func() {
	p.mu.Lock()
	key := p.nextKey
	p.nextKey++
	p.scrollFns[key] = fn
	p.mu.Unlock()

	if _, err := p.page.Evaluate(installScrollJS); err != nil {
		slog.Warn("viewport_scroll_hook_failed", "error", err)
	}
	return func() {
		p.mu.Lock()
		delete(p.scrollFns, key)
		p.mu.Unlock()
	}
}

// Bounds measures each id with getBoundingClientRect.
func (p *Page) Bounds(ids []string) []section.Bounds {
	v, err := p.page.Evaluate(boundsJS, ids)
	if err != nil {
		slog.Warn("viewport_bounds_failed", "error", err)
		return nil
	}
	raw, _ := v.([]interface{})
	out := make([]section.Bounds, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		out = append(out, section.Bounds{
			ID:   id,
			Rect: section.Rect{Top: toFloat(m["top"]), Bottom: toFloat(m["bottom"])},
		})
	}
	return out
}

// ScrollToSection scrolls so the section top sits just under the sticky header.
func (p *Page) ScrollToSection(id string, headerOffset float64) error {
	_, err := p.page.Evaluate(`([id, offset]) => {
		const el = document.getElementById(id);
		if (!el) return;
		const y = el.getBoundingClientRect().top + window.pageYOffset - offset;
		window.scrollTo({ top: y, behavior: 'instant' });
	}`, []interface{}{id, headerOffset})
	if err != nil {
		return fmt.Errorf("scroll to %s: %w", id, err)
	}
	return nil
}

// toFloat converts a deserialized JS number.
func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	}
	return 0
}
