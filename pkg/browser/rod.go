package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// pageSafeJS reports true once the document is loaded and neither jQuery nor
// AngularJS has requests in flight.
const pageSafeJS = `() => {
	if (document.readyState !== 'complete') return false;
	try {
		if (window.jQuery && window.jQuery.active > 0) return false;
		if (window.angular) {
			const injector = window.angular.element(document.body).injector();
			if (injector && injector.get('$http').pendingRequests.length > 0) return false;
		}
	} catch (e) {}
	return true;
}`

// LaunchOptions configures the rod-backed driver.
type LaunchOptions struct {
	// Bin is the Chrome binary. CHROME_BIN is used when empty.
	Bin string
	// ControlURL connects to an already running browser instead of launching one.
	ControlURL string
	Headless   bool
	// Flags are extra Chrome switches, either "name" or "name=value".
	Flags []string

	ElementTimeout  time.Duration
	PageSafeTimeout time.Duration
}

// DefaultLaunchOptions returns headless options with docker-safe flags.
func DefaultLaunchOptions() LaunchOptions {
	return LaunchOptions{
		Headless:        true,
		Flags:           []string{"no-sandbox", "disable-gpu", "disable-dev-shm-usage"},
		ElementTimeout:  10 * time.Second,
		PageSafeTimeout: 30 * time.Second,
	}
}

// RodDriver drives one Chrome tab through go-rod.
type RodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	opts     LaunchOptions
	logger   *zap.SugaredLogger
}

// Launch starts (or connects to) a browser and opens a blank tab. The browser
// keeps running after ctx ends; Close releases it.
func Launch(ctx context.Context, opts LaunchOptions, logger *zap.SugaredLogger) (*RodDriver, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := &RodDriver{opts: opts, logger: logger}

	controlURL := opts.ControlURL
	if controlURL == "" {
		// Not bound to ctx: the browser must outlive the call that started it.
		l := launcher.New()

		bin := opts.Bin
		if bin == "" {
			bin = os.Getenv("CHROME_BIN")
		}
		if bin != "" {
			l = l.Bin(bin)
		}
		l = l.Headless(opts.Headless)
		for _, f := range opts.Flags {
			name, value, hasValue := strings.Cut(f, "=")
			if hasValue {
				l = l.Set(flags.Flag(name), value)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		d.launcher = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		d.kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	d.browser = b

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	d.page = page

	logger.Infow("Browser session started", "headless", opts.Headless, "remote", opts.ControlURL != "")
	return d, nil
}

func (d *RodDriver) Navigate(ctx context.Context, url string) error {
	p := d.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return p.WaitLoad()
}

func (d *RodDriver) Refresh(ctx context.Context) error {
	p := d.page.Context(ctx)
	if err := p.Reload(); err != nil {
		return fmt.Errorf("reload page: %w", err)
	}
	return p.WaitLoad()
}

func (d *RodDriver) has(ctx context.Context, locator string) (bool, *rod.Element, error) {
	p := d.page.Context(ctx)
	if IsXPath(locator) {
		return p.HasX(locator)
	}
	return p.Has(locator)
}

func (d *RodDriver) Find(ctx context.Context, locator string) (Element, error) {
	var found *rod.Element
	err := Until(ctx, d.opts.ElementTimeout, locator, func(ctx context.Context) (bool, error) {
		ok, el, err := d.has(ctx, locator)
		if err != nil || !ok {
			return false, err
		}
		found = el
		return true, nil
	})
	if errors.Is(err, ErrWaitTimeout) {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, locator)
	}
	if err != nil {
		return nil, err
	}
	return &rodElement{el: found, timeout: d.opts.ElementTimeout}, nil
}

func (d *RodDriver) FindAll(ctx context.Context, locator string) ([]Element, error) {
	p := d.page.Context(ctx)
	var (
		els rod.Elements
		err error
	)
	if IsXPath(locator) {
		els, err = p.ElementsX(locator)
	} else {
		els, err = p.Elements(locator)
	}
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el, timeout: d.opts.ElementTimeout})
	}
	return out, nil
}

func (d *RodDriver) Exists(ctx context.Context, locator string) (bool, error) {
	ok, _, err := d.has(ctx, locator)
	return ok, err
}

func (d *RodDriver) EnsurePageSafe(ctx context.Context) error {
	return Until(ctx, d.opts.PageSafeTimeout, "page safe", func(ctx context.Context) (bool, error) {
		res, err := d.page.Context(ctx).Eval(pageSafeJS)
		if err != nil {
			return false, err
		}
		return res.Value.Bool(), nil
	})
}

func (d *RodDriver) URL(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (d *RodDriver) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := d.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return data, nil
}

func (d *RodDriver) Close() error {
	var err error
	if d.browser != nil {
		err = d.browser.Close()
	}
	d.kill()
	d.logger.Infow("Browser session closed")
	return err
}

func (d *RodDriver) kill() {
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher = nil
	}
}

// rodElement adapts *rod.Element to Element.
type rodElement struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *rodElement) bounded(ctx context.Context, what string, fn func(el *rod.Element) error) error {
	tctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	err := fn(e.el.Context(tctx))
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %s", ErrWaitTimeout, what)
	}
	return err
}

func (e *rodElement) Hover(ctx context.Context) error {
	return e.el.Context(ctx).Hover()
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) WaitVisible(ctx context.Context) error {
	return e.bounded(ctx, "element visible", func(el *rod.Element) error { return el.WaitVisible() })
}

func (e *rodElement) WaitEnabled(ctx context.Context) error {
	return e.bounded(ctx, "element enabled", func(el *rod.Element) error { return el.WaitEnabled() })
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Value(ctx context.Context) (string, error) {
	v, err := e.el.Context(ctx).Property("value")
	if err != nil {
		return "", err
	}
	return v.Str(), nil
}

func (e *rodElement) Fill(ctx context.Context, value string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return err
	}
	if value == "" {
		return el.Type(input.Backspace)
	}
	return el.Input(value)
}

func (e *rodElement) Checked(ctx context.Context) (bool, error) {
	v, err := e.el.Context(ctx).Property("checked")
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}

func (e *rodElement) SelectOption(ctx context.Context, text string) error {
	return e.el.Context(ctx).Select([]string{text}, true, rod.SelectorTypeText)
}
