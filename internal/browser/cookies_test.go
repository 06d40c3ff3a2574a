package browser_test

import (
	"context"
	"testing"

	"grouplock/internal/browser"
	"grouplock/internal/browser/browsertest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestParseCookies(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []browser.Cookie
	}{
		{
			name: "value keeps later equals signs",
			raw:  "a=1;b=2=3",
			want: []browser.Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2=3"}},
		},
		{
			name: "whitespace and empty segments dropped",
			raw:  " c_user = 100 ;;  ; xs=abc%3D ; ",
			want: []browser.Cookie{{Name: "c_user", Value: "100"}, {Name: "xs", Value: "abc%3D"}},
		},
		{
			name: "segments without equals or name dropped",
			raw:  "novalue; =orphan; ok=",
			want: []browser.Cookie{{Name: "ok", Value: ""}},
		},
		{
			name: "empty input",
			raw:  "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := browser.ParseCookies(tt.raw)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseCookies(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestInjectCookies_BestEffort(t *testing.T) {
	s := browsertest.NewSession()
	s.RejectCookie = "bad"

	rep := browser.InjectCookies(context.Background(), s, "a=1; bad=x; b=2", ".example.test")

	assert.Equal(t, browser.CookieReport{Added: 2, Failed: 1}, rep)
	want := []browser.Cookie{
		{Name: "a", Value: "1", Domain: ".example.test", Path: "/"},
		{Name: "b", Value: "2", Domain: ".example.test", Path: "/"},
	}
	if diff := cmp.Diff(want, s.Cookies()); diff != "" {
		t.Errorf("injected cookies mismatch (-want +got):\n%s", diff)
	}
}
