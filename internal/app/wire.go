package app

import (
	"fmt"

	"grouplock/internal/browser"
	"grouplock/internal/config"
	"grouplock/internal/dispatch"
	"grouplock/internal/heuristics"
	"grouplock/internal/locator"
	"grouplock/internal/watchdog"
)

// Loops builds the message dispatcher and the watchdog from configuration.
func Loops(cfg *config.Config, launcher browser.Launcher, profile *heuristics.Source) (*dispatch.Dispatcher, *watchdog.Watchdog) {
	opts := LaunchOptions(cfg)
	target := browser.Target{
		BaseURL:      cfg.Site.GetBaseURL(),
		CookieDomain: cfg.Site.GetCookieDomain(),
	}
	waits := browser.Waits{
		Landing: cfg.Timings.LandingWaitDuration(),
		Thread:  cfg.Timings.ThreadWaitDuration(),
	}

	d := &dispatch.Dispatcher{
		Launcher: launcher,
		Options:  opts,
		Target:   target,
		Waits:    waits,
		Locator: locator.Locator{
			Settle:      cfg.Timings.SettleDuration(),
			ScrollPause: cfg.Timings.ScrollPauseDuration(),
		},
		Pauses: dispatch.Pauses{
			Click: cfg.Timings.ClickPauseDuration(),
			Step:  cfg.Timings.StepPauseDuration(),
		},
		Profile: profile,
	}
	w := &watchdog.Watchdog{
		Launcher: launcher,
		Options:  opts,
		Target:   target,
		Waits:    waits,
		Interval: cfg.Timings.PollIntervalDuration(),
		Profile:  profile,
		Remediator: &watchdog.Reverter{Pauses: watchdog.Pauses{
			Info: cfg.Timings.InfoPauseDuration(),
			Step: cfg.Timings.StepPauseDuration(),
		}},
	}
	return d, w
}

// LaunchOptions maps the browser section of the configuration.
func LaunchOptions(cfg *config.Config) browser.LaunchOptions {
	return browser.LaunchOptions{
		Bin:            cfg.Browser.Bin,
		Headless:       cfg.Browser.IsHeadless(),
		ViewportWidth:  cfg.Browser.GetViewportWidth(),
		ViewportHeight: cfg.Browser.GetViewportHeight(),
		UserAgent:      cfg.Browser.GetUserAgent(),
		ExtraFlags:     cfg.Browser.ExtraFlags,
	}
}

// Launcher returns the configured browser driver.
func Launcher(cfg *config.Config) (browser.Launcher, error) {
	l, err := browser.NewLauncher(cfg.Browser.GetDriver())
	if err != nil {
		return nil, fmt.Errorf("browser driver: %w", err)
	}
	return l, nil
}
