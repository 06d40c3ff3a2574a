//go:build integration

package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"grouplock/internal/browser"

	"github.com/stretchr/testify/require"
)

func TestDrivers_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html><head><title>Inbox</title></head><body><h1>Team</h1></body></html>`)
	}))
	defer ts.Close()

	for _, driver := range []string{"rod", "playwright"} {
		t.Run(driver, func(t *testing.T) {
			l, err := browser.NewLauncher(driver)
			require.NoError(t, err)
			if c, ok := l.(interface{ Close() error }); ok {
				defer c.Close()
			}

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			s, err := l.Open(ctx, browser.DefaultLaunchOptions())
			require.NoError(t, err, "Failed to start browser")
			defer func() {
				require.NoError(t, s.Close())
				require.NoError(t, s.Close(), "Close must be idempotent")
			}()

			require.NoError(t, s.Navigate(ctx, ts.URL))

			title, err := s.Title(ctx)
			require.NoError(t, err)
			require.Equal(t, "Inbox", title)

			var heading string
			err = s.Eval(ctx, `(sel) => document.querySelector(sel).textContent`, "h1", &heading)
			require.NoError(t, err)
			require.Equal(t, "Team", heading)

			err = s.Eval(ctx, `() => { throw new Error("boom") }`, nil, nil)
			require.ErrorIs(t, err, browser.ErrScriptExecution)
		})
	}
}

func TestRod_RepeatedNavigation_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><title>%s</title></head><body></body></html>`, r.URL.Path)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	s, err := browser.RodLauncher{}.Open(ctx, browser.DefaultLaunchOptions())
	require.NoError(t, err, "Failed to start browser")
	defer s.Close()

	// Each load wait is released once the page has loaded; the session keeps
	// working with the caller's context afterwards.
	for _, path := range []string{"/a", "/b", "/c"} {
		require.NoError(t, s.Navigate(ctx, ts.URL+path))
		title, err := s.Title(ctx)
		require.NoError(t, err)
		require.Equal(t, path, title)
	}

	var n int
	require.NoError(t, s.Eval(ctx, `() => 1 + 1`, nil, &n))
	require.Equal(t, 2, n)
}
