package navigator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/terminwatch/terminwatch/internal/browser"
)

// State is a named position in the navigation state machine.
type State string

// Machine states. Error is absorbing and reachable from every non-terminal
// state.
const (
	StateInit             State = "init"
	StateCookieConsent    State = "cookie_consent"
	StateCategoryExpanded State = "category_expanded"
	StateServiceSelected  State = "service_selected"
	StateQuantitySet      State = "quantity_set"
	StateSubmitted        State = "submitted"
	StateResultReached    State = "result_reached"
	StateError            State = "error"
)

// action performs one interaction with the page using the chosen selector.
type action func(ctx context.Context, page browser.Page, sel browser.Selector) error

// step is one transition of the machine. Locator selectors are tried in
// priority order; the first one the page accepts wins.
type step struct {
	name     string
	to       State
	optional bool
	verify   bool // inspect the page for error markers after this step
	locators []browser.Selector
	run      action
}

// transitions builds the ordered transition table for one request. The
// selector priority per step is: attribute/CSS match, then visible-text
// match, then structural position.
func transitions(req Request) []step {
	click := func(ctx context.Context, page browser.Page, sel browser.Selector) error {
		return page.Click(ctx, sel)
	}

	return []step{
		{
			name:     "cookie_consent",
			to:       StateCookieConsent,
			optional: true, // absence of a consent prompt is not an error
			locators: []browser.Selector{
				browser.CSS(`#cookie-consent button.accept, button[data-consent="accept"]`),
				browser.Text("Alle akzeptieren"),
				browser.Text("Akzeptieren"),
				browser.Text("Zustimmen"),
			},
			run: click,
		},
		{
			name: "expand_category",
			to:   StateCategoryExpanded,
			locators: []browser.Selector{
				browser.CSS(fmt.Sprintf(`[aria-label=%q]`, req.Category)),
				browser.Text(req.Category),
				browser.XPath(`//form//h3[1]`),
			},
			run: click,
		},
		{
			name: "select_service",
			to:   StateServiceSelected,
			locators: []browser.Selector{
				browser.CSS(fmt.Sprintf(`li[data-service=%q]`, req.Service)),
				browser.Text(req.Service),
				browser.XPath(`//li[.//input[@type="number"]][1]`),
			},
			run: click,
		},
		{
			name: "set_quantity",
			to:   StateQuantitySet,
			locators: []browser.Selector{
				browser.CSS(`li.selected input[type="number"]`),
				browser.CSS(`input[type="number"]`),
				browser.XPath(`//input[@type="number"][1]`),
			},
			run: func(ctx context.Context, page browser.Page, sel browser.Selector) error {
				return page.Fill(ctx, sel, strconv.Itoa(req.Quantity))
			},
		},
		{
			name:   "submit",
			to:     StateSubmitted,
			verify: true,
			locators: []browser.Selector{
				browser.CSS(`button[type="submit"]:enabled`),
				browser.Text("Weiter"),
				browser.XPath(`//form//button[last()]`),
			},
			run: click,
		},
		{
			name:     "confirm_popup",
			to:       StateSubmitted,
			optional: true, // the confirmation dialog only appears sometimes
			locators: []browser.Selector{
				browser.CSS(`.modal button.confirm`),
				browser.Text("OK"),
				browser.Text("Fortfahren"),
				browser.Text("Bestätigen"),
			},
			run: click,
		},
		{
			name:   "submit_suggest",
			to:     StateResultReached,
			verify: true,
			locators: []browser.Selector{
				browser.CSS(`button[type="submit"]:enabled`),
				browser.Text("Weiter"),
				browser.XPath(`//form//button[last()]`),
			},
			run: click,
		},
	}
}
