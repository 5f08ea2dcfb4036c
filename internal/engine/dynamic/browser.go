// Package dynamic implements page.Page on headless Chrome through chromedp.
// Every Open launches its own browser process so sessions share nothing.
package dynamic

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/revscrape/internal/auth"
	"github.com/law-makers/revscrape/internal/config"
	"github.com/law-makers/revscrape/internal/netpolicy"
	"github.com/law-makers/revscrape/internal/page"
)

// Options configures every browser an Opener launches
type Options struct {
	Headless   bool
	ChromePath string
	UserAgent  string
	Proxy      string

	// Headers are sent with every request
	Headers map[string]string
	// Cookies are set before the first navigation
	Cookies []auth.Cookie
	// Policy decides which requests are blocked; nil allows everything
	Policy *netpolicy.Policy
	// ForwardConsole logs browser console messages and page errors at debug
	ForwardConsole bool

	ViewportWidth  int64
	ViewportHeight int64
	// IdleWindow is how long the network must stay quiet for Navigate to return
	IdleWindow time.Duration
	// IdleMaxInflight is the number of requests still counted as quiet
	IdleMaxInflight int
	// StartTimeout caps launching the browser and preparing the tab
	StartTimeout time.Duration
}

// DefaultOptions returns the options matching the widget's usual environment
func DefaultOptions() Options {
	return Options{
		Headless:        true,
		UserAgent:       config.DefaultUserAgent,
		ViewportWidth:   config.DefaultViewportWidth,
		ViewportHeight:  config.DefaultViewportHeight,
		IdleWindow:      500 * time.Millisecond,
		IdleMaxInflight: 2,
		StartTimeout:    30 * time.Second,
	}
}

// OptionsFromConfig derives Options from the application config
func OptionsFromConfig(cfg *config.Config, headers map[string]string, cookies []auth.Cookie, policy *netpolicy.Policy) Options {
	opts := DefaultOptions()
	opts.Headless = cfg.Headless
	opts.ChromePath = cfg.ChromePath
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}
	opts.Proxy = cfg.Proxy
	opts.Headers = headers
	opts.Cookies = cookies
	opts.Policy = policy
	opts.ForwardConsole = cfg.Diagnostics
	return opts
}

// Opener launches one headless Chrome per page session
type Opener struct {
	opts Options
}

var _ page.Opener = (*Opener)(nil)

// NewOpener creates an Opener
func NewOpener(opts Options) *Opener {
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	if opts.ViewportWidth <= 0 || opts.ViewportHeight <= 0 {
		opts.ViewportWidth, opts.ViewportHeight = config.DefaultViewportWidth, config.DefaultViewportHeight
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = 30 * time.Second
	}
	return &Opener{opts: opts}
}

// allocatorOptions builds the Chrome command line for one session
func (o *Opener) allocatorOptions(proxy string) []chromedp.ExecAllocatorOption {
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-ipc-flooding-protection", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("force-color-profile", "srgb"),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("safebrowsing-disable-auto-update", true),
		chromedp.Flag("disable-features", "site-per-process,TranslateUI,BlinkGenPropertyTrees"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(int(o.opts.ViewportWidth), int(o.opts.ViewportHeight)),
		chromedp.UserAgent(o.opts.UserAgent),
	}

	if chromePath := FindChrome(o.opts.ChromePath); chromePath != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(chromePath)}, allocOpts...)
	}

	if o.opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	if proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(proxy))
	}
	return allocOpts
}

// Open launches a browser, prepares a tab and returns it as a page.Page.
// The browser lives until the page is closed, independent of ctx.
func (o *Opener) Open(ctx context.Context, opts page.OpenOptions) (page.Page, error) {
	proxy := o.opts.Proxy
	if opts.Proxy != "" {
		proxy = opts.Proxy
	}

	start := time.Now()
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), o.allocatorOptions(proxy)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		log.Debug().Msgf("chromedp: "+format, args...)
	}))

	p := newPage(tabCtx, func() {
		tabCancel()
		allocCancel()
	}, o.opts)
	chromedp.ListenTarget(tabCtx, p.onEvent)

	setupCtx, cancel := context.WithTimeout(ctx, o.opts.StartTimeout)
	defer cancel()
	if err := p.run(setupCtx, o.setupActions()...); err != nil {
		p.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	log.Debug().
		Bool("headless", o.opts.Headless).
		Str("proxy", proxy).
		Int("cookies", len(o.opts.Cookies)).
		Dur("elapsed", time.Since(start)).
		Msg("Browser session ready")
	return p, nil
}

func (o *Opener) setupActions() []chromedp.Action {
	actions := []chromedp.Action{
		network.Enable(),
		runtime.Enable(),
		chromedp.EmulateViewport(o.opts.ViewportWidth, o.opts.ViewportHeight),
		runtime.AddBinding(removalBinding),
	}

	if len(o.opts.Headers) > 0 {
		headers := make(network.Headers, len(o.opts.Headers))
		for k, v := range o.opts.Headers {
			headers[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}

	if len(o.opts.Cookies) > 0 {
		actions = append(actions, network.SetCookies(cookieParams(o.opts.Cookies)))
	}

	if o.opts.Policy != nil {
		actions = append(actions, fetch.Enable().WithPatterns([]*fetch.RequestPattern{{URLPattern: "*"}}))
	}
	return actions
}

// cookieParams converts stored cookies to CDP parameters
func cookieParams(cookies []auth.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if param.Path == "" {
			param.Path = "/"
		}
		switch c.SameSite {
		case "Strict", "strict":
			param.SameSite = network.CookieSameSiteStrict
		case "Lax", "lax":
			param.SameSite = network.CookieSameSiteLax
		case "None", "none", "no_restriction":
			param.SameSite = network.CookieSameSiteNone
		}
		params = append(params, param)
	}
	return params
}
