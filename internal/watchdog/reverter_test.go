package watchdog

import (
	"context"
	"errors"
	"testing"

	"grouplock/internal/browser"
	"grouplock/internal/heuristics"
	"grouplock/internal/locator/locatortest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selectorsOf(calls []locatortest.Call) []string {
	var out []string
	for _, c := range calls {
		out = append(out, c.Selector)
	}
	return out
}

func TestRevert_AllStepsApplied(t *testing.T) {
	steps := heuristics.Default().Revert
	present := map[string]bool{}
	for _, s := range steps {
		present[s.Selector] = true
	}
	surf := &locatortest.Surface{Present: present}

	res := (&Reverter{}).Revert(context.Background(), surf, steps, "Team", nil)

	require.Len(t, res, len(steps))
	assert.Equal(t, len(steps), res.Applied())
	assert.Zero(t, res.Failed())
	fills := surf.CallsOf("fillFirst")
	require.Len(t, fills, 1)
	assert.Equal(t, "Team", fills[0].Text)
}

func TestRevert_MissingControlDoesNotStopLaterSteps(t *testing.T) {
	steps := heuristics.Default().Revert
	present := map[string]bool{}
	for _, s := range steps[1:] {
		present[s.Selector] = true
	}
	surf := &locatortest.Surface{
		Present:   present,
		ActionErr: map[string]error{steps[3].Selector: browser.ErrScriptExecution},
	}
	var lines []string
	logf := func(format string, args ...any) { lines = append(lines, format) }

	res := (&Reverter{}).Revert(context.Background(), surf, steps, "Team", logf)

	wantSelectors := make([]string, 0, len(steps))
	for _, s := range steps {
		wantSelectors = append(wantSelectors, s.Selector)
	}
	assert.Equal(t, wantSelectors, selectorsOf(surf.Calls()), "every step is attempted in order")

	assert.True(t, errors.Is(res[0].Err, ErrStepSkipped))
	assert.True(t, res[1].Applied)
	assert.True(t, res[2].Applied)
	assert.ErrorIs(t, res[3].Err, browser.ErrScriptExecution)
	assert.True(t, res[4].Applied)
	assert.Equal(t, 3, res.Applied())
	assert.Equal(t, 2, res.Failed())
	assert.Len(t, lines, 2)
}

func TestRevert_OptionalStepAbsentIsNotAFailure(t *testing.T) {
	steps := []heuristics.Step{{Name: "close", Action: heuristics.ActionClick, Selector: "x", Optional: true}}
	res := (&Reverter{}).Revert(context.Background(), &locatortest.Surface{}, steps, "n", nil)
	require.Len(t, res, 1)
	assert.False(t, res[0].Applied)
	assert.NoError(t, res[0].Err)
}
