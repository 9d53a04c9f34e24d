// File: internal/booking/selectors.go
package booking

import "github.com/fairwaylabs/teesnipe/internal/browser"

// Selector catalog for the booking widget. Each logical element carries its
// current selector first, followed by looser fallbacks that survived past
// markup revisions. Order matters: candidates are tried front to back.

// Sub-selectors resolved inside each tee-time container.
const (
	slotTagSelector  = "div.widget-teetime-tag"
	slotRateSelector = "a.widget-teetime-rate"
)

var (
	membersTab = browser.NewLocatorSet("members tab",
		browser.CSS("li.widget-auth-tab--member a"),
		browser.CSS("li.widget-auth-tab--member"),
		browser.XPath(`//a[contains(translate(text(), 'MEMBERS', 'members'), 'member')]`),
	)

	emailField = browser.NewLocatorSet("email field",
		browser.ID("email"),
		browser.Name("email"),
		browser.CSS(`input[type="email"]`),
	)

	passwordField = browser.NewLocatorSet("password field",
		browser.ID("password"),
		browser.Name("password"),
		browser.CSS(`input[type="password"]`),
	)

	loginButton = browser.NewLocatorSet("login button",
		browser.CSS(`input.fl-button-primary[type="submit"][value="Log in"]`),
		browser.CSS(`input[type="submit"]`),
		browser.CSS(`button[type="submit"]`),
	)

	// loginSuccessMarker only appears once the member session is live.
	loginSuccessMarker = browser.NewLocatorSet("logout link",
		browser.CSS("a.widget-auth-tab--logout"),
		browser.CSS(`a[ng-click*="logout"]`),
	)

	monthTitle = browser.NewLocatorSet("calendar month title",
		browser.CSS("button.btn.btn-default.btn-sm.uib-title strong"),
		browser.CSS("button.uib-title strong"),
	)

	monthNextButton = browser.NewLocatorSet("calendar next month",
		browser.CSS(`[ng-click*="move(1)"]`),
		browser.CSS("button.uib-right"),
	)

	monthPrevButton = browser.NewLocatorSet("calendar previous month",
		browser.CSS(`[ng-click*="move(-1)"]`),
		browser.CSS("button.uib-left"),
	)

	// dayCell is templated with the day-of-month label. Muted cells belong
	// to the adjacent month and must never match.
	dayCell = browser.NewLocatorSet("calendar day cell",
		browser.XPath(`//span[not(contains(@class, 'text-muted')) and text()='%s']`),
	)

	// playerCountButton is templated with the party size.
	playerCountButton = browser.NewLocatorSet("player count button",
		browser.XPath(`//a[contains(@class, 'toggler-heading') and @ng-model='step.nbPlayers' and contains(normalize-space(text()), '%d')]`),
		browser.XPath(`//a[contains(@class, 'toggler-heading') and contains(normalize-space(text()), '%d')]`),
	)

	continueButton = browser.NewLocatorSet("continue button",
		browser.CSS(`button.fl-button-primary[ng-click*="continue"]`),
		browser.CSS("button.fl-button-primary"),
	)

	timeSlotTags = browser.NewLocatorSet("time slot tags",
		browser.CSS("div.widget-teetime-tag"),
		browser.CSS("a.widget-teetime-rate"),
	)

	// timeSlotContainers are the per-slot tiles. Each holds a time tag (the
	// label) and a rate anchor (the bookable control).
	timeSlotContainers = browser.NewLocatorSet("time slot containers",
		browser.CSS("div.widget-teetime"),
	)

	finalContinueButton = browser.NewLocatorSet("final continue button",
		browser.CSS(`button.fl-button.fl-button-primary[ng-click="confirmStep()"]`),
		browser.CSS(`button[ng-click="confirmStep()"]`),
	)

	agreeTermsCheckbox = browser.NewLocatorSet("terms checkbox",
		browser.CSS(`input[ng-model="vm.acceptTermsAndConditions"][type="checkbox"]`),
		browser.CSS(`input[type="checkbox"][required]`),
	)

	confirmBookingButton = browser.NewLocatorSet("confirm booking button",
		browser.CSS(`button.fl-button-primary[type="submit"]`),
		browser.CSS(`button[type="submit"]`),
	)
)
