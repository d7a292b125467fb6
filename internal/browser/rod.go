package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/article-enhancer/internal/config"
)

// RodFetcher drives headless Chrome through go-rod. Each Fetch launches (or
// connects to) its own browser session and tears it down before returning.
type RodFetcher struct {
	userAgent string
	headless  bool
	remoteURL string
	binPath   string
}

// NewRodFetcher creates a RodFetcher from browser config.
func NewRodFetcher(cfg config.BrowserConfig) *RodFetcher {
	return &RodFetcher{
		userAgent: cfg.UserAgent,
		headless:  cfg.Headless,
		remoteURL: cfg.RemoteURL,
		binPath:   cfg.BinPath,
	}
}

// closeTimeout bounds session teardown, which runs after the fetch deadline
// may already have passed.
const closeTimeout = 5 * time.Second

// session is one isolated browser plus its cleanup.
type session struct {
	browser *rod.Browser
	cleanup func()
}

func (f *RodFetcher) open(ctx context.Context) (*session, error) {
	if f.remoteURL != "" {
		root := rod.New().ControlURL(f.remoteURL).Context(ctx)
		if err := root.Connect(); err != nil {
			return nil, eris.Wrap(err, "browser: connect remote")
		}
		inc, err := root.Incognito()
		if err != nil {
			return nil, eris.Wrap(err, "browser: incognito context")
		}
		return &session{
			browser: inc,
			cleanup: func() {
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
				defer cancel()
				// Disposes only the incognito context; the remote browser keeps running.
				if err := inc.Context(closeCtx).Close(); err != nil {
					zap.L().Debug("browser: close incognito", zap.Error(err))
				}
			},
		}, nil
	}

	l := launcher.New().
		Headless(f.headless).
		Set("disable-blink-features", "AutomationControlled")
	if f.binPath != "" {
		l = l.Bin(f.binPath)
	}
	u, err := l.Context(ctx).Launch()
	if err != nil {
		l.Cleanup()
		return nil, eris.Wrap(err, "browser: launch")
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, eris.Wrap(err, "browser: connect")
	}
	return &session{
		browser: b,
		cleanup: func() {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
			defer cancel()
			if err := b.Context(closeCtx).Close(); err != nil {
				zap.L().Debug("browser: close", zap.Error(err))
			}
			l.Kill()
			l.Cleanup()
		},
	}, nil
}

// openWithin opens a session but gives up when ctx is done. The CDP
// handshake does not watch its context, so a stalled launch or remote
// endpoint is abandoned here and its session, if one arrives, is released in
// the background.
func (f *RodFetcher) openWithin(ctx context.Context) (*session, error) {
	type opened struct {
		sess *session
		err  error
	}
	ch := make(chan opened, 1)
	go func() {
		sess, err := f.open(ctx)
		ch <- opened{sess, err}
	}()

	select {
	case o := <-ch:
		return o.sess, o.err
	case <-ctx.Done():
		go func() {
			if o := <-ch; o.sess != nil {
				o.sess.cleanup()
			}
		}()
		return nil, eris.Wrap(ctx.Err(), "browser: open session")
	}
}

// Fetch navigates to url in a fresh stealth page and returns the document's
// outer HTML once the wait condition is met.
func (f *RodFetcher) Fetch(ctx context.Context, url string, opts FetchOptions) (string, error) {
	start := time.Now()
	log := zap.L().With(zap.String("url", url), zap.String("wait", opts.Wait.String()))

	// The timeout covers browser start as well as navigation.
	navCtx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	sess, err := f.openWithin(navCtx)
	if err != nil {
		if navCtx.Err() != nil {
			return "", navError(url, err)
		}
		return "", err
	}
	defer sess.cleanup()

	page, err := stealth.Page(sess.browser)
	if err != nil {
		return "", eris.Wrap(err, "browser: open page")
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("browser: close page", zap.Error(err))
		}
	}()

	if f.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: f.userAgent}); err != nil {
			return "", eris.Wrap(err, "browser: set user agent")
		}
	}

	p := page.Context(navCtx)

	var waitIdle func()
	if opts.Wait == WaitNetworkIdle {
		waitIdle = p.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	}

	if err := p.Navigate(url); err != nil {
		return "", navError(url, err)
	}

	switch opts.Wait {
	case WaitNetworkIdle:
		waitIdle()
	case WaitDOMStable:
		if err := p.WaitDOMStable(500*time.Millisecond, 0); err != nil {
			return "", navError(url, err)
		}
	default:
		if err := p.WaitLoad(); err != nil {
			return "", navError(url, err)
		}
	}

	if opts.WaitSelector != "" {
		if _, err := p.Element(opts.WaitSelector); err != nil {
			return "", navError(url, err)
		}
	}
	if err := navCtx.Err(); err != nil {
		return "", navError(url, err)
	}

	html, err := p.HTML()
	if err != nil {
		return "", navError(url, err)
	}

	log.Debug("browser: fetched page",
		zap.Int("bytes", len(html)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return html, nil
}
