package selector

import "github.com/use-agent/farescout/browser"

// Ladders for the flight-search site. Order is priority: stable data-test
// hooks first, then class-name heuristics.
var (
	Consent = MustLadder("consent",
		browser.CSS(`#cookies_accept`),
		browser.CSS(`[data-test="CookiesPopup"] button`),
		browser.Text("button", `accept`),
		browser.Text("button", `i agree`),
		browser.CSS(`.cookie-banner button`),
		browser.CSS(`[id*="cookie"] button`),
		browser.CSS(`[class*="cookie"] button`),
	)

	NoResults = MustLadder("no_results",
		browser.CSS(`[data-test="NoResultsWrapper"]`),
		browser.CSS(`[data-test*="NoResults"]`),
		browser.CSS(`[class*="NoResults"]`),
		browser.Text("h1, h2, h3, p", `no (results|flights|connections) found`),
	)

	ResultCards = MustLadder("result_cards",
		browser.CSS(`[data-test="ResultCardWrapper"]`),
		browser.CSS(`.ResultCardWrapper`),
		browser.CSS(`[class*="ResultCard"]`),
		browser.CSS(`[data-test*="Result"]`),
	)

	// ResultPrice narrows price extraction to the price block of a result card.
	ResultPrice = MustLadder("result_price",
		browser.CSS(`[data-test="ResultCardPrice"] > div:nth-child(1)`),
		browser.CSS(`[data-test="ResultCardPrice"]`),
		browser.CSS(`[class*="price"]`),
	)

	DestinationCards = MustLadder("destination_cards",
		browser.CSS(`[data-test="PictureCard"]`),
		browser.CSS(`.PictureCard`),
		browser.CSS(`[class*="PictureCard"]`),
		browser.CSS(`[data-testid="PictureCard"]`),
	)
)
