// File: internal/browser/chrome.go
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/go-json-experiment/json/jsontext"
	"go.uber.org/zap"

	"github.com/fairwaylabs/teesnipe/internal/config"
)

// Chrome drives a real Chrome instance over CDP and implements Driver.
type Chrome struct {
	ctx           context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	navTimeout    time.Duration
	logger        *zap.Logger
	closeOnce     sync.Once
}

// NewChrome launches a Chrome process and returns a Driver bound to a fresh
// tab. The process is started eagerly so misconfiguration surfaces here
// rather than on the first navigation.
func NewChrome(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Chrome, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	for _, arg := range cfg.Args {
		name := strings.TrimPrefix(arg, "--")
		if k, v, ok := strings.Cut(name, "="); ok {
			opts = append(opts, chromedp.Flag(k, v))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)

	sugar := logger.Named("cdp").Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Errorf),
	)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	navTimeout := cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 60 * time.Second
	}

	return &Chrome{
		ctx:           browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		navTimeout:    navTimeout,
		logger:        logger.Named("chrome"),
	}, nil
}

// run executes chromedp actions against the browser tab while honoring the
// caller's context. chromedp.Run needs the tab's own context for CDP values,
// so the two are combined.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(c.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// combineContext derives a context from parent that is also canceled when
// secondary is canceled. The derived context keeps parent's CDP values.
func combineContext(parent, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	c.logger.Info("Navigating.", zap.String("url", url))
	navCtx, cancel := context.WithTimeout(ctx, c.navTimeout)
	defer cancel()

	if err := c.run(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation to %s: %w", url, ErrPageLoadTimeout)
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (c *Chrome) Refresh(ctx context.Context) error {
	c.logger.Debug("Refreshing page.")
	navCtx, cancel := context.WithTimeout(ctx, c.navTimeout)
	defer cancel()

	if err := c.run(navCtx, chromedp.Reload()); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("page refresh: %w", ErrPageLoadTimeout)
		}
		return fmt.Errorf("page refresh failed: %w", err)
	}
	return nil
}

// nodes runs a single non-blocking DOM query for loc. AtLeast(0) stops
// chromedp from polling internally; an empty result returns immediately so
// the caller keeps ownership of retry pacing.
func (c *Chrome) nodes(ctx context.Context, loc Locator) ([]*cdp.Node, error) {
	opts := []chromedp.QueryOption{chromedp.AtLeast(0)}
	if loc.By == ByXPath {
		opts = append(opts, chromedp.BySearch)
	} else {
		opts = append(opts, chromedp.ByQueryAll)
	}

	var nodes []*cdp.Node
	if err := c.run(ctx, chromedp.Nodes(loc.Value, &nodes, opts...)); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("query %s failed: %w", loc, err)
	}
	return nodes, nil
}

func (c *Chrome) Probe(ctx context.Context, loc Locator, cond WaitCondition) (Element, error) {
	nodes, err := c.nodes(ctx, loc)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		el := &chromeElement{drv: c, node: n, loc: loc}
		ok, err := el.satisfies(ctx, cond)
		if err != nil {
			// A node that vanished between the query and the check is
			// equivalent to it never matching.
			if errors.Is(err, ErrStaleElement) {
				continue
			}
			return nil, err
		}
		if ok {
			return el, nil
		}
	}
	return nil, fmt.Errorf("%s (%s): %w", loc, cond, ErrElementNotFound)
}

func (c *Chrome) ProbeAll(ctx context.Context, loc Locator) ([]Element, error) {
	nodes, err := c.nodes(ctx, loc)
	if err != nil {
		return nil, err
	}
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &chromeElement{drv: c, node: n, loc: loc})
	}
	return elements, nil
}

func (c *Chrome) Eval(ctx context.Context, expr string, out any) error {
	res := out
	if res == nil {
		res = new(json.RawMessage)
	}
	err := c.run(ctx, chromedp.Evaluate(expr, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
	}))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("evaluate failed: %w", err)
	}
	return nil
}

func (c *Chrome) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := c.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// Close shuts the browser down gracefully, then tears down the contexts.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		if err := chromedp.Cancel(c.ctx); err != nil {
			c.logger.Debug("Graceful browser shutdown failed.", zap.Error(err))
		}
		c.browserCancel()
		c.allocCancel()
	})
	return nil
}

// callOnNode resolves a node to a remote object and invokes fnDecl with the
// node bound to `this`. The result is unmarshaled into out when non-nil.
// Stale node references map to ErrStaleElement.
func (c *Chrome) callOnNode(ctx context.Context, node *cdp.Node, fnDecl string, out any, args ...any) error {
	return c.run(ctx, chromedp.ActionFunc(func(cctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(node.NodeID).Do(cctx)
		if err != nil {
			if isStaleCDPError(err) {
				return ErrStaleElement
			}
			return fmt.Errorf("resolve node: %w", err)
		}
		defer func() {
			_ = runtime.ReleaseObject(obj.ObjectID).Do(cctx)
		}()

		callArgs := make([]*runtime.CallArgument, 0, len(args))
		for _, a := range args {
			encoded, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("encode call argument: %w", err)
			}
			callArgs = append(callArgs, &runtime.CallArgument{Value: jsontext.Value(encoded)})
		}

		res, exc, err := runtime.CallFunctionOn(fnDecl).
			WithObjectID(obj.ObjectID).
			WithArguments(callArgs).
			WithReturnByValue(true).
			WithSilent(true).
			Do(cctx)
		if err != nil {
			if isStaleCDPError(err) {
				return ErrStaleElement
			}
			return fmt.Errorf("call on node: %w", err)
		}
		if exc != nil {
			return fmt.Errorf("script exception: %s", exc.Text)
		}
		if out != nil && res != nil && res.Value != nil {
			return json.Unmarshal(res.Value, out)
		}
		return nil
	}))
}

// -- Element implementation --

type chromeElement struct {
	drv  *Chrome
	node *cdp.Node
	loc  Locator
}

func (e *chromeElement) Locator() Locator { return e.loc }

const jsIsVisible = `function() {
	const r = this.getBoundingClientRect();
	const s = window.getComputedStyle(this);
	return r.width > 0 && r.height > 0 &&
		s.visibility !== 'hidden' && s.display !== 'none';
}`

const jsIsClickable = `function() {
	const r = this.getBoundingClientRect();
	const s = window.getComputedStyle(this);
	if (r.width === 0 || r.height === 0 ||
		s.visibility === 'hidden' || s.display === 'none') return false;
	// The widget disables anchors and buttons by class alone.
	return this.disabled !== true && !this.classList.contains('disabled');
}`

// jsClickProbe classifies why a mouse click at the element's center would
// fail, mirroring the distinction between an element that cannot receive
// input at all and one merely covered by an overlay.
const jsClickProbe = `function() {
	const r = this.getBoundingClientRect();
	const s = window.getComputedStyle(this);
	if (r.width === 0 || r.height === 0 ||
		s.visibility === 'hidden' || s.display === 'none' ||
		s.pointerEvents === 'none' || this.disabled === true ||
		this.classList.contains('disabled')) {
		return 'not-interactable';
	}
	const hit = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
	if (hit && hit !== this && !this.contains(hit) && !hit.contains(this)) {
		return 'intercepted';
	}
	return 'ok';
}`

func (e *chromeElement) satisfies(ctx context.Context, cond WaitCondition) (bool, error) {
	switch cond {
	case Present:
		return true, nil
	case Visible:
		var visible bool
		if err := e.drv.callOnNode(ctx, e.node, jsIsVisible, &visible); err != nil {
			return false, err
		}
		return visible, nil
	case Clickable:
		var clickable bool
		if err := e.drv.callOnNode(ctx, e.node, jsIsClickable, &clickable); err != nil {
			return false, err
		}
		return clickable, nil
	default:
		return false, fmt.Errorf("unknown wait condition %d", int(cond))
	}
}

func (e *chromeElement) Click(ctx context.Context) error {
	var verdict string
	if err := e.drv.callOnNode(ctx, e.node, jsClickProbe, &verdict); err != nil {
		return err
	}
	switch verdict {
	case "not-interactable":
		return fmt.Errorf("%s: %w", e.loc, ErrNotInteractable)
	case "intercepted":
		return fmt.Errorf("%s: %w", e.loc, ErrClickIntercepted)
	}

	if err := e.drv.run(ctx, chromedp.MouseClickNode(e.node)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isStaleCDPError(err) {
			return fmt.Errorf("%s: %w", e.loc, ErrStaleElement)
		}
		return fmt.Errorf("click %s failed: %w", e.loc, err)
	}
	return nil
}

func (e *chromeElement) ScriptClick(ctx context.Context) error {
	return e.drv.callOnNode(ctx, e.node, `function() { this.click(); }`, nil)
}

func (e *chromeElement) ScrollIntoView(ctx context.Context) error {
	return e.drv.callOnNode(ctx, e.node,
		`function() { this.scrollIntoView({block: 'center', inline: 'center'}); }`, nil)
}

func (e *chromeElement) Clear(ctx context.Context) error {
	return e.drv.callOnNode(ctx, e.node, `function() {
		this.value = '';
		this.dispatchEvent(new Event('input', {bubbles: true}));
	}`, nil)
}

func (e *chromeElement) Type(ctx context.Context, text string) error {
	err := e.drv.run(ctx,
		chromedp.SendKeys([]cdp.NodeID{e.node.NodeID}, text, chromedp.ByNodeID),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isStaleCDPError(err) {
			return fmt.Errorf("%s: %w", e.loc, ErrStaleElement)
		}
		return fmt.Errorf("type into %s failed: %w", e.loc, err)
	}
	return nil
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.drv.callOnNode(ctx, e.node, `function() { return this.textContent; }`, &text); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	var value string
	var ok bool
	err := e.drv.run(ctx,
		chromedp.AttributeValue([]cdp.NodeID{e.node.NodeID}, name, &value, &ok, chromedp.ByNodeID),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		if isStaleCDPError(err) {
			return "", false, fmt.Errorf("%s: %w", e.loc, ErrStaleElement)
		}
		return "", false, fmt.Errorf("attribute %q of %s: %w", name, e.loc, err)
	}
	return value, ok, nil
}

func (e *chromeElement) Parent(ctx context.Context) (Element, error) {
	var parentID cdp.NodeID
	err := e.drv.run(ctx, chromedp.ActionFunc(func(cctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(cctx)
		if err != nil {
			if isStaleCDPError(err) {
				return ErrStaleElement
			}
			return fmt.Errorf("resolve node: %w", err)
		}
		defer func() {
			_ = runtime.ReleaseObject(obj.ObjectID).Do(cctx)
		}()

		// Without ReturnByValue the call yields a remote reference that can
		// be mapped back to a NodeID.
		res, exc, err := runtime.CallFunctionOn(`function() { return this.parentElement; }`).
			WithObjectID(obj.ObjectID).
			WithSilent(true).
			Do(cctx)
		if err != nil {
			if isStaleCDPError(err) {
				return ErrStaleElement
			}
			return fmt.Errorf("resolve parent: %w", err)
		}
		if exc != nil {
			return fmt.Errorf("script exception: %s", exc.Text)
		}
		if res == nil || res.ObjectID == "" {
			return fmt.Errorf("parent of %s: %w", e.loc, ErrElementNotFound)
		}
		defer func() {
			_ = runtime.ReleaseObject(res.ObjectID).Do(cctx)
		}()

		nid, err := dom.RequestNode(res.ObjectID).Do(cctx)
		if err != nil {
			return fmt.Errorf("request parent node: %w", err)
		}
		parentID = nid
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return &chromeElement{
		drv:  e.drv,
		node: &cdp.Node{NodeID: parentID},
		loc:  Locator{By: e.loc.By, Value: e.loc.Value + "/.."},
	}, nil
}

func (e *chromeElement) Query(ctx context.Context, selector string) (Element, error) {
	var childID cdp.NodeID
	err := e.drv.run(ctx, chromedp.ActionFunc(func(cctx context.Context) error {
		nid, err := dom.QuerySelector(e.node.NodeID, selector).Do(cctx)
		if err != nil {
			if isStaleCDPError(err) {
				return fmt.Errorf("%s: %w", e.loc, ErrStaleElement)
			}
			return fmt.Errorf("query %q under %s: %w", selector, e.loc, err)
		}
		childID = nid
		return nil
	}))
	if err != nil {
		return nil, err
	}
	// QuerySelector reports a miss as NodeID 0 rather than an error.
	if childID == 0 {
		return nil, fmt.Errorf("%q under %s: %w", selector, e.loc, ErrElementNotFound)
	}
	return &chromeElement{
		drv:  e.drv,
		node: &cdp.Node{NodeID: childID},
		loc:  Locator{By: ByCSS, Value: e.loc.Value + " " + selector},
	}, nil
}

func (e *chromeElement) Attached(ctx context.Context) (bool, error) {
	var connected bool
	err := e.drv.callOnNode(ctx, e.node, `function() { return this.isConnected === true; }`, &connected)
	if err != nil {
		if errors.Is(err, ErrStaleElement) {
			return false, nil
		}
		return false, err
	}
	return connected, nil
}
