package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"grouplock/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RodLauncher launches a dedicated Chrome process per session through go-rod.
type RodLauncher struct{}

// Open launches Chrome, connects over CDP and opens a blank page with the
// configured viewport and user agent.
func (RodLauncher) Open(ctx context.Context, opts LaunchOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("launch", err)
	}
	log := logging.Get(logging.CategoryBrowser)

	// The process outlives ctx; only Close terminates it.
	l := launcher.New().Headless(opts.Headless)
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	for _, f := range opts.Flags() {
		if f.Value != "" {
			l = l.Set(flags.Flag(f.Name), f.Value)
		} else {
			l = l.Set(flags.Flag(f.Name))
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, unavailable("launch chrome", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, unavailable("connect to chrome", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		l.Kill()
		l.Cleanup()
		return nil, unavailable("create page", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.width(),
		Height:            opts.height(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		log.Warn("failed to set viewport", zap.Error(err))
	}
	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			log.Warn("failed to set user agent", zap.Error(err))
		}
	}

	s := &rodSession{
		id:       uuid.NewString(),
		launcher: l,
		browser:  b,
		page:     page,
	}
	log.Info("browser launched", zap.String("session", s.id), zap.Int("pid", l.PID()))
	return s, nil
}

type rodSession struct {
	id       string
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	closeOnce sync.Once
	closeErr  error
}

func (s *rodSession) ID() string { return s.id }

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	// Load events on heavy single-page apps may never settle; the loops wait
	// fixed intervals afterwards anyway.
	tp := p.Timeout(30 * time.Second)
	_ = tp.WaitLoad()
	tp.CancelTimeout()
	return nil
}

func (s *rodSession) Eval(ctx context.Context, js string, arg any, out any) error {
	opts := &rod.EvalOptions{
		JS:           js,
		ByValue:      true,
		AwaitPromise: true,
		UserGesture:  true,
	}
	if arg != nil {
		opts.JSArgs = []interface{}{arg}
	}
	res, err := s.page.Context(ctx).Evaluate(opts)
	if err != nil {
		return scriptErr(err)
	}
	if out == nil || res == nil {
		return nil
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return scriptErr(fmt.Errorf("marshal result: %w", err))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return scriptErr(fmt.Errorf("decode result: %w", err))
	}
	return nil
}

func (s *rodSession) AddCookie(ctx context.Context, c Cookie) error {
	path := c.Path
	if path == "" {
		path = "/"
	}
	return s.page.Context(ctx).SetCookies([]*proto.NetworkCookieParam{{
		Name:   c.Name,
		Value:  c.Value,
		Domain: c.Domain,
		Path:   path,
	}})
}

func (s *rodSession) Title(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (s *rodSession) URL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// Close tears down the page, the CDP connection and the OS process, then
// removes the temporary profile directory.
func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
		s.closeErr = errors.Join(errs...)
		logging.Get(logging.CategoryBrowser).Info("browser closed", zap.String("session", s.id))
	})
	return s.closeErr
}
