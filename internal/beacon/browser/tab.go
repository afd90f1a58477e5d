package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// BindingName is the window function the injected listeners call
const BindingName = "__beacon"

// listenerScript forwards DOM notifications with the path at the moment they happen.
// It runs once per document, so doc identifies the page lifecycle.
const listenerScript = `(() => {
  const doc = (window.crypto && crypto.randomUUID)
    ? crypto.randomUUID()
    : Date.now().toString(36) + Math.random().toString(36).slice(2);
  const send = (kind) => {
    try {
      window.` + BindingName + `(JSON.stringify({kind: kind, path: window.location.pathname, doc: doc}));
    } catch (e) {}
  };
  window.addEventListener("load", () => send("load"));
  window.addEventListener("scroll", () => send("scroll"), {passive: true});
  document.addEventListener("click", () => send("click"));
})();`

var (
	ErrBrowserStart = errors.New("failed to start browser")
	ErrNavigate     = errors.New("navigation failed")
	ErrTabClosed    = errors.New("tab is closed")
)

// Options configures the Chrome tab
type Options struct {
	Headless        bool
	ExecPath        string
	NavigateTimeout time.Duration
}

// notification is the payload sent through the binding
type notification struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
	Doc  string `json:"doc,omitempty"`
}

// Subscriber accepts notification handlers
type Subscriber interface {
	OnLoad(handler func())
	OnScroll(handler func())
	OnClick(handler func())
}

// document holds the handlers of one loaded document
type document struct {
	id       string
	mu       sync.Mutex
	handlers map[string][]func()
}

func newDocument(id string) *document {
	return &document{id: id, handlers: make(map[string][]func())}
}

func (d *document) OnLoad(handler func())   { d.subscribe(kindLoad, handler) }
func (d *document) OnScroll(handler func()) { d.subscribe(kindScroll, handler) }
func (d *document) OnClick(handler func())  { d.subscribe(kindClick, handler) }

func (d *document) subscribe(kind string, handler func()) {
	d.mu.Lock()
	d.handlers[kind] = append(d.handlers[kind], handler)
	d.mu.Unlock()
}

func (d *document) handlersFor(kind string) []func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]func(){}, d.handlers[kind]...)
}

// Tab is a headless Chrome page acting as a notification source and location
type Tab struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	path     string
	closed   bool
	handlers map[string][]func()
	hooks    []func(Subscriber)
	doc      *document
}

// NewTab launches Chrome and prepares a tab with the listener script installed
func NewTab(opts Options, logger *zap.Logger) (*Tab, error) {
	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-sync", true),
	}
	if opts.ExecPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(opts.ExecPath))
	}

	t := &Tab{
		opts:     opts,
		logger:   logger,
		path:     "/",
		handlers: make(map[string][]func()),
	}

	allocatorOpts := append(chromedp.DefaultExecAllocatorOptions[:], execOpts...)
	t.allocCtx, t.allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	t.ctx, t.cancel = chromedp.NewContext(t.allocCtx)

	chromedp.ListenTarget(t.ctx, func(ev interface{}) {
		if e, ok := ev.(*cdpruntime.EventBindingCalled); ok && e.Name == BindingName {
			t.handleBinding(e.Payload)
		}
	})

	err := chromedp.Run(t.ctx,
		cdpruntime.Enable(),
		cdpruntime.AddBinding(BindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := page.Enable().Do(ctx); err != nil {
				return err
			}
			_, err := page.AddScriptToEvaluateOnNewDocument(listenerScript).Do(ctx)
			return err
		}),
	)
	if err != nil {
		t.Close()
		return nil, errors.Join(ErrBrowserStart, err)
	}

	logger.Info("Browser tab ready", zap.Bool("headless", opts.Headless))
	return t, nil
}

// Open navigates the tab. Subscribe handlers or document hooks before calling Open or the load notification is missed.
func (t *Tab) Open(url string) error {
	if t.isClosed() {
		return ErrTabClosed
	}

	ctx := t.ctx
	if t.opts.NavigateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(t.ctx, t.opts.NavigateTimeout)
		defer cancel()
	}

	t.logger.Info("Opening page", zap.String("url", url))
	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		return errors.Join(ErrNavigate, fmt.Errorf("%s: %w", url, err))
	}
	return nil
}

// Interact scrolls the page and clicks the body, for smoke runs against a live collector
func (t *Tab) Interact(ctx context.Context) error {
	if t.isClosed() {
		return ErrTabClosed
	}

	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	return chromedp.Run(runCtx,
		chromedp.Evaluate(`window.scrollBy(0, Math.max(200, window.innerHeight / 2))`, nil),
		chromedp.Click("body", chromedp.ByQuery, chromedp.NodeVisible),
	)
}

// Path returns the pathname reported with the most recent notification
func (t *Tab) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.path
}

// OnLoad, OnScroll and OnClick subscribe for the lifetime of the tab
func (t *Tab) OnLoad(handler func())   { t.subscribe(kindLoad, handler) }
func (t *Tab) OnScroll(handler func()) { t.subscribe(kindScroll, handler) }
func (t *Tab) OnClick(handler func())  { t.subscribe(kindClick, handler) }

// OnDocument calls hook with a fresh Subscriber each time a new document starts
// reporting. Handlers added to that Subscriber only see that document's notifications.
func (t *Tab) OnDocument(hook func(doc Subscriber)) {
	t.mu.Lock()
	t.hooks = append(t.hooks, hook)
	t.mu.Unlock()
}

// Close shuts down the tab and the browser process
func (t *Tab) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	if t.allocCancel != nil {
		t.allocCancel()
	}
	t.logger.Debug("Browser tab closed")
}

const (
	kindLoad   = "load"
	kindScroll = "scroll"
	kindClick  = "click"
)

func (t *Tab) subscribe(kind string, handler func()) {
	t.mu.Lock()
	t.handlers[kind] = append(t.handlers[kind], handler)
	t.mu.Unlock()
}

func (t *Tab) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// handleBinding runs on the chromedp event goroutine; handlers must not issue CDP commands.
func (t *Tab) handleBinding(payload string) {
	n, err := parseNotification(payload)
	if err != nil {
		t.logger.Warn("Ignoring malformed binding payload",
			zap.String("payload", payload),
			zap.Error(err))
		return
	}

	t.mu.Lock()
	if n.Path != "" {
		t.path = n.Path
	}
	var started *document
	if n.Doc != "" && (t.doc == nil || t.doc.id != n.Doc) {
		started = newDocument(n.Doc)
		t.doc = started
	}
	doc := t.doc
	hooks := append([]func(Subscriber){}, t.hooks...)
	handlers := append([]func(){}, t.handlers[n.Kind]...)
	t.mu.Unlock()

	if started != nil {
		t.logger.Debug("New document", zap.String("doc", started.id), zap.String("path", n.Path))
		for _, hook := range hooks {
			hook(started)
		}
	}
	if doc != nil {
		handlers = append(handlers, doc.handlersFor(n.Kind)...)
	}

	t.logger.Debug("Page notification",
		zap.String("kind", n.Kind),
		zap.String("path", n.Path))

	for _, h := range handlers {
		h()
	}
}

func parseNotification(payload string) (notification, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return n, fmt.Errorf("decode payload: %w", err)
	}
	switch n.Kind {
	case kindLoad, kindScroll, kindClick:
		return n, nil
	default:
		return n, fmt.Errorf("unknown notification kind %q", n.Kind)
	}
}
