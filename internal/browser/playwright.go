package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"grouplock/internal/logging"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// PlaywrightLauncher drives Chromium through playwright-go. The playwright
// driver process is started on first use and shared; every Open still gets its
// own browser process.
type PlaywrightLauncher struct {
	// Install downloads the driver and Chromium on first use when missing.
	Install bool

	mu sync.Mutex
	pw *playwright.Playwright
}

func (l *PlaywrightLauncher) ensure() (*playwright.Playwright, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pw != nil {
		return l.pw, nil
	}

	// Output is discarded so the driver cannot tear the dashboard.
	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if l.Install {
		if err := playwright.Install(opts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	l.pw = pw
	return pw, nil
}

// Open launches a Chromium process with a fresh context and page.
func (l *PlaywrightLauncher) Open(ctx context.Context, opts LaunchOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("launch", err)
	}
	pw, err := l.ensure()
	if err != nil {
		return nil, unavailable("driver", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.Args(),
	}
	if opts.Bin != "" {
		launchOpts.ExecutablePath = playwright.String(opts.Bin)
	}
	b, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, unavailable("launch chromium", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.width(),
			Height: opts.height(),
		},
	}
	if opts.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(opts.UserAgent)
	}
	bctx, err := b.NewContext(contextOpts)
	if err != nil {
		_ = b.Close()
		return nil, unavailable("create context", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = b.Close()
		return nil, unavailable("create page", err)
	}

	s := &playwrightSession{
		id:      uuid.NewString(),
		browser: b,
		context: bctx,
		page:    page,
	}
	logging.Get(logging.CategoryBrowser).Info("browser launched",
		zap.String("session", s.id), zap.String("driver", "playwright"))
	return s, nil
}

// Close stops the shared playwright driver.
func (l *PlaywrightLauncher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pw == nil {
		return nil
	}
	err := l.pw.Stop()
	l.pw = nil
	if err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

type playwrightSession struct {
	id      string
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	closeOnce sync.Once
	closeErr  error
}

func (s *playwrightSession) ID() string { return s.id }

func (s *playwrightSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.page.Goto(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *playwrightSession) Eval(ctx context.Context, js string, arg any, out any) error {
	if err := ctx.Err(); err != nil {
		return scriptErr(err)
	}
	var (
		v   interface{}
		err error
	)
	if arg != nil {
		v, err = s.page.Evaluate(js, arg)
	} else {
		v, err = s.page.Evaluate(js)
	}
	if err != nil {
		return scriptErr(err)
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return scriptErr(fmt.Errorf("marshal result: %w", err))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return scriptErr(fmt.Errorf("decode result: %w", err))
	}
	return nil
}

func (s *playwrightSession) AddCookie(ctx context.Context, c Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := c.Path
	if path == "" {
		path = "/"
	}
	return s.context.AddCookies([]playwright.OptionalCookie{{
		Name:   c.Name,
		Value:  c.Value,
		Domain: playwright.String(c.Domain),
		Path:   playwright.String(path),
	}})
}

func (s *playwrightSession) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page.Title()
}

func (s *playwrightSession) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page.URL(), nil
}

func (s *playwrightSession) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		s.closeErr = errors.Join(errs...)
		logging.Get(logging.CategoryBrowser).Info("browser closed", zap.String("session", s.id))
	})
	return s.closeErr
}
