// Package locatortest provides a scriptable in-memory locator.Surface.
package locatortest

import (
	"context"
	"sync"

	"grouplock/internal/locator"
)

// Call records one Invoker call.
type Call struct {
	Op       string // click, fill, enter, clickFirst, fillFirst
	Handle   string
	Selector string
	Text     string
}

// Surface is a fake locator.Surface. Zero value answers every query with no
// elements and every action with success.
type Surface struct {
	mu sync.Mutex

	// Elements answers Query by selector.
	Elements map[string][]locator.Element
	// QueryErr fails Query for the listed selectors.
	QueryErr map[string]error
	// Present lists selectors ClickFirst/FillFirst will find.
	Present map[string]bool
	// ActionErr fails ClickFirst/FillFirst for the listed selectors.
	ActionErr map[string]error
	// ClickErr fails Click, FillErr fails Fill.
	ClickErr error
	FillErr  error
	// TextFunc answers FirstText; nil returns "".
	TextFunc func(selector string) (string, error)

	Title, URL string

	queries []string
	calls   []Call
	scrolls int
}

func (s *Surface) Query(ctx context.Context, selector string) ([]locator.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, selector)
	if err := s.QueryErr[selector]; err != nil {
		return nil, err
	}
	return s.Elements[selector], nil
}

func (s *Surface) Scroll(ctx context.Context, toBottom bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrolls++
	return nil
}

func (s *Surface) PageInfo(ctx context.Context) (string, string) { return s.Title, s.URL }

func (s *Surface) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

func (s *Surface) Click(ctx context.Context, el locator.Element) error {
	s.record(Call{Op: "click", Handle: el.Handle})
	return s.ClickErr
}

func (s *Surface) Fill(ctx context.Context, el locator.Element, text string) error {
	s.record(Call{Op: "fill", Handle: el.Handle, Text: text})
	return s.FillErr
}

func (s *Surface) PressEnter(ctx context.Context, el locator.Element) error {
	s.record(Call{Op: "enter", Handle: el.Handle})
	return nil
}

func (s *Surface) ClickFirst(ctx context.Context, selector string) (bool, error) {
	s.record(Call{Op: "clickFirst", Selector: selector})
	if err := s.ActionErr[selector]; err != nil {
		return false, err
	}
	return s.Present[selector], nil
}

func (s *Surface) FillFirst(ctx context.Context, selector, text string) (bool, error) {
	s.record(Call{Op: "fillFirst", Selector: selector, Text: text})
	if err := s.ActionErr[selector]; err != nil {
		return false, err
	}
	return s.Present[selector], nil
}

func (s *Surface) FirstText(ctx context.Context, selector string) (string, error) {
	if s.TextFunc == nil {
		return "", nil
	}
	return s.TextFunc(selector)
}

// Queries returns queried selectors in order.
func (s *Surface) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// Calls returns recorded Invoker calls in order.
func (s *Surface) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsOf returns recorded calls with the given op.
func (s *Surface) CallsOf(op string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Scrolls reports how many scrolls were requested.
func (s *Surface) Scrolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrolls
}
