// Package browser owns the remote browser process used by the automation loops.
// A Session is one headless Chrome process under exclusive control of a single
// loop; it is never shared. Two drivers implement Launcher: go-rod (default) and
// playwright-go.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrBrowserUnavailable means the browser process or its protocol
	// connection could not be started.
	ErrBrowserUnavailable = errors.New("browser unavailable")

	// ErrScriptExecution wraps any failure raised by a scripted DOM call.
	ErrScriptExecution = errors.New("script execution failed")
)

// Session is a live handle to one browser process.
type Session interface {
	// ID is a unique identifier assigned at launch.
	ID() string
	Navigate(ctx context.Context, url string) error
	// Eval runs js, a function expression taking a single argument, and
	// decodes its JSON result into out (which may be nil).
	Eval(ctx context.Context, js string, arg any, out any) error
	AddCookie(ctx context.Context, c Cookie) error
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	// Close terminates the process. It is safe to call more than once.
	Close() error
}

// Launcher starts browser processes.
type Launcher interface {
	Open(ctx context.Context, opts LaunchOptions) (Session, error)
}

// LaunchOptions configures a browser process.
type LaunchOptions struct {
	Bin            string
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	ExtraFlags     []string
}

// DefaultLaunchOptions returns a headless 1920x1080 desktop profile.
func DefaultLaunchOptions() LaunchOptions {
	return LaunchOptions{
		Headless:       true,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	}
}

// Flag is one Chromium command line switch.
type Flag struct {
	Name  string
	Value string
}

// Flags returns the Chromium switches for these options, excluding headless,
// which each driver sets through its own API.
func (o LaunchOptions) Flags() []Flag {
	fl := []Flag{
		{Name: "no-sandbox"},
		{Name: "disable-setuid-sandbox"},
		{Name: "disable-dev-shm-usage"},
		{Name: "disable-gpu"},
		{Name: "disable-extensions"},
		{Name: "window-size", Value: strconv.Itoa(o.width()) + "," + strconv.Itoa(o.height())},
	}
	if o.UserAgent != "" {
		fl = append(fl, Flag{Name: "user-agent", Value: o.UserAgent})
	}
	for _, raw := range o.ExtraFlags {
		name, val, _ := strings.Cut(strings.TrimLeft(raw, "-"), "=")
		if name == "" {
			continue
		}
		fl = append(fl, Flag{Name: name, Value: val})
	}
	return fl
}

// Args renders Flags as command line arguments.
func (o LaunchOptions) Args() []string {
	fl := o.Flags()
	args := make([]string, 0, len(fl))
	for _, f := range fl {
		if f.Value == "" {
			args = append(args, "--"+f.Name)
			continue
		}
		args = append(args, "--"+f.Name+"="+f.Value)
	}
	return args
}

func (o LaunchOptions) width() int {
	if o.ViewportWidth <= 0 {
		return 1920
	}
	return o.ViewportWidth
}

func (o LaunchOptions) height() int {
	if o.ViewportHeight <= 0 {
		return 1080
	}
	return o.ViewportHeight
}

// NewLauncher returns the launcher for a driver name ("rod" or "playwright").
func NewLauncher(driver string) (Launcher, error) {
	switch strings.ToLower(driver) {
	case "", "rod":
		return &RodLauncher{}, nil
	case "playwright":
		return &PlaywrightLauncher{Install: true}, nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", driver)
	}
}

func unavailable(stage string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrBrowserUnavailable, stage, err)
}

func scriptErr(err error) error {
	return fmt.Errorf("%w: %w", ErrScriptExecution, err)
}
