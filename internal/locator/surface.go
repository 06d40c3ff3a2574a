package locator

import (
	"context"

	"grouplock/internal/browser"
)

// Element describes a DOM node found by a query. Handle addresses the node in
// later Invoker calls.
type Element struct {
	Handle    string  `json:"handle"`
	Tag       string  `json:"tag"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Displayed bool    `json:"displayed"`
	Editable  bool    `json:"editable"`
	Label     string  `json:"label"`
}

// Visible reports whether the element is displayed with a non-zero size.
func (e Element) Visible() bool {
	return e.Displayed && e.Width > 0 && e.Height > 0
}

// Finder queries the live page.
type Finder interface {
	Query(ctx context.Context, selector string) ([]Element, error)
	Scroll(ctx context.Context, toBottom bool) error
	PageInfo(ctx context.Context) (title, url string)
}

// Invoker performs scripted actions on the live page.
type Invoker interface {
	Click(ctx context.Context, el Element) error
	Fill(ctx context.Context, el Element, text string) error
	PressEnter(ctx context.Context, el Element) error
	// ClickFirst clicks the first displayed match of selector and reports
	// whether there was one.
	ClickFirst(ctx context.Context, selector string) (bool, error)
	FillFirst(ctx context.Context, selector, text string) (bool, error)
	// FirstText returns the text of the first displayed, non-empty match.
	FirstText(ctx context.Context, selector string) (string, error)
}

// Surface is everything the loops need from a page.
type Surface interface {
	Finder
	Invoker
}

// ScriptSurface implements Surface by evaluating scripts in a browser session.
type ScriptSurface struct {
	s browser.Session
}

// NewScriptSurface binds a surface to s.
func NewScriptSurface(s browser.Session) *ScriptSurface {
	return &ScriptSurface{s: s}
}

// Bind adapts NewScriptSurface to the binder signature used by the loops.
func Bind(s browser.Session) Surface { return NewScriptSurface(s) }

func (ss *ScriptSurface) Query(ctx context.Context, selector string) ([]Element, error) {
	var out []Element
	if err := ss.s.Eval(ctx, queryScript, map[string]any{"selector": selector}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (ss *ScriptSurface) Scroll(ctx context.Context, toBottom bool) error {
	return ss.s.Eval(ctx, scrollScript, map[string]any{"bottom": toBottom}, nil)
}

func (ss *ScriptSurface) PageInfo(ctx context.Context) (string, string) {
	title, _ := ss.s.Title(ctx)
	url, _ := ss.s.URL(ctx)
	return title, url
}

func (ss *ScriptSurface) Click(ctx context.Context, el Element) error {
	return ss.s.Eval(ctx, clickScript, map[string]any{"handle": el.Handle}, nil)
}

func (ss *ScriptSurface) Fill(ctx context.Context, el Element, text string) error {
	return ss.s.Eval(ctx, fillScript, map[string]any{"handle": el.Handle, "text": text}, nil)
}

func (ss *ScriptSurface) PressEnter(ctx context.Context, el Element) error {
	return ss.s.Eval(ctx, enterScript, map[string]any{"handle": el.Handle}, nil)
}

func (ss *ScriptSurface) ClickFirst(ctx context.Context, selector string) (bool, error) {
	var ok bool
	err := ss.s.Eval(ctx, clickFirstScript, map[string]any{"selector": selector}, &ok)
	return ok, err
}

func (ss *ScriptSurface) FillFirst(ctx context.Context, selector, text string) (bool, error) {
	var ok bool
	err := ss.s.Eval(ctx, fillFirstScript, map[string]any{"selector": selector, "text": text}, &ok)
	return ok, err
}

func (ss *ScriptSurface) FirstText(ctx context.Context, selector string) (string, error) {
	var text string
	err := ss.s.Eval(ctx, firstTextScript, map[string]any{"selector": selector}, &text)
	return text, err
}
