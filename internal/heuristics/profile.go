// Package heuristics holds the site-specific knowledge the loops rely on:
// composer selectors and keywords, the send control, the conversation heading
// and the remediation steps. All of it is data so it can be swapped when the
// remote markup changes.
package heuristics

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Action is what a remediation step does with the control it finds.
type Action string

const (
	ActionClick Action = "click"
	ActionFill  Action = "fill"
)

// Wait names the configured pause taken after a step.
type Wait string

const (
	WaitNone Wait = "none"
	WaitInfo Wait = "info" // timings.info_pause
	WaitStep Wait = "step" // timings.step_pause
)

// Step is one remediation action.
type Step struct {
	Name     string `yaml:"name"`
	Action   Action `yaml:"action"`
	Selector string `yaml:"selector"`
	Wait     Wait   `yaml:"wait"`
	// Optional steps are not reported as skipped when their control is absent.
	Optional bool `yaml:"optional"`
}

// Profile is the complete set of site heuristics.
type Profile struct {
	// Composer patterns in priority order, most specific first.
	ComposerSelectors []string `yaml:"composer_selectors"`
	// Label keywords, matched case-insensitively.
	ComposerKeywords []string `yaml:"composer_keywords"`
	// Patterns accepted without a keyword match.
	ComposerFallbacks []string `yaml:"composer_fallbacks"`
	SendButton        string   `yaml:"send_button"`
	Heading           string   `yaml:"heading"`
	Revert            []Step   `yaml:"revert"`
}

// Default returns the built-in profile for the Messenger web client.
func Default() *Profile {
	return &Profile{
		ComposerSelectors: []string{
			`div[contenteditable="true"][role="textbox"]`,
			`div[contenteditable="true"][data-lexical-editor="true"]`,
			`div[aria-label*="message" i][contenteditable="true"]`,
			`div[aria-label*="Message" i][contenteditable="true"]`,
			`div[contenteditable="true"][spellcheck="true"]`,
			`[role="textbox"][contenteditable="true"]`,
			`textarea[placeholder*="message" i]`,
			`div[aria-placeholder*="message" i]`,
			`div[data-placeholder*="message" i]`,
			`[contenteditable="true"]`,
			`textarea`,
			`input[type="text"]`,
		},
		ComposerKeywords:  []string{"message", "write", "type", "send", "chat", "msg", "reply", "text"},
		ComposerFallbacks: []string{`[contenteditable="true"]`, `textarea`},
		SendButton:        `[aria-label*="Send" i]:not([aria-label*="like" i]), [data-testid="send-button"]`,
		Heading:           `h1, [role="heading"]`,
		Revert: []Step{
			{Name: "info", Action: ActionClick, Wait: WaitInfo,
				Selector: `[aria-label*="conversation information" i], [aria-label*="group information" i], [aria-label*="info" i]`},
			{Name: "edit", Action: ActionClick, Wait: WaitStep,
				Selector: `[aria-label*="edit" i], [aria-label*="change" i]`},
			{Name: "name", Action: ActionFill, Wait: WaitStep,
				Selector: `input[type="text"], textarea`},
			{Name: "save", Action: ActionClick, Wait: WaitStep,
				Selector: `[aria-label*="save" i], button[type="submit"]`},
			{Name: "close", Action: ActionClick, Wait: WaitNone, Optional: true,
				Selector: `[aria-label*="close" i]`},
		},
	}
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	c := *p
	c.ComposerSelectors = append([]string(nil), p.ComposerSelectors...)
	c.ComposerKeywords = append([]string(nil), p.ComposerKeywords...)
	c.ComposerFallbacks = append([]string(nil), p.ComposerFallbacks...)
	c.Revert = append([]Step(nil), p.Revert...)
	return &c
}

// IsFallback reports whether pattern is accepted without a keyword match.
func (p *Profile) IsFallback(pattern string) bool {
	for _, f := range p.ComposerFallbacks {
		if f == pattern {
			return true
		}
	}
	return false
}

// MatchesKeyword reports whether label contains any composer keyword.
func (p *Profile) MatchesKeyword(label string) bool {
	label = strings.ToLower(label)
	if label == "" {
		return false
	}
	for _, kw := range p.ComposerKeywords {
		if kw != "" && strings.Contains(label, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Validate checks that the profile is usable.
func (p *Profile) Validate() error {
	var errs []string
	if len(p.ComposerSelectors) == 0 {
		errs = append(errs, "composer_selectors is empty")
	}
	if strings.TrimSpace(p.SendButton) == "" {
		errs = append(errs, "send_button is empty")
	}
	if strings.TrimSpace(p.Heading) == "" {
		errs = append(errs, "heading is empty")
	}
	for i, st := range p.Revert {
		if st.Name == "" {
			errs = append(errs, fmt.Sprintf("revert[%d]: name is empty", i))
		}
		if strings.TrimSpace(st.Selector) == "" {
			errs = append(errs, fmt.Sprintf("revert[%d]: selector is empty", i))
		}
		switch st.Action {
		case ActionClick, ActionFill:
		default:
			errs = append(errs, fmt.Sprintf("revert[%d]: unknown action %q", i, st.Action))
		}
		switch st.Wait {
		case "", WaitNone, WaitInfo, WaitStep:
		default:
			errs = append(errs, fmt.Sprintf("revert[%d]: unknown wait %q", i, st.Wait))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("heuristics: invalid profile: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Parse decodes YAML on top of the default profile, so fields absent from
// data keep their defaults.
func Parse(data []byte) (*Profile, error) {
	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("heuristics: failed to parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Load reads a profile file. An empty path yields the default profile.
func Load(path string) (*Profile, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("heuristics: failed to read profile: %w", err)
	}
	return Parse(data)
}
