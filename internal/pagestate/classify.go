// internal/pagestate/classify.go
package pagestate

import (
	"regexp"

	"github.com/mkarrick/flowpilot/api/schemas"
)

// typePatterns holds the URL/title patterns per page type. Matching runs
// in classifyOrder: the most specific funnel stages first, so "order
// confirmed" never classifies as payment just because it mentions "order".
var typePatterns = map[schemas.PageType][]*regexp.Regexp{
	schemas.PageConfirmation: compileAll(
		`confirm`,
		`thank`,
		`success`,
		`order.?placed`,
	),
	schemas.PagePayment: compileAll(
		`payment`,
		`\bpay\b`,
		`order`,
	),
	schemas.PageAddressEntry: compileAll(
		`address`,
		`delivery`,
		`shipping`,
	),
	schemas.PageCheckout: compileAll(
		`checkout`,
		`cart`,
		`\bbag\b`,
	),
	schemas.PageProductDetail: compileAll(
		`/p/`,
		`/product/`,
		`-p-\d`,
		`model`,
	),
	schemas.PageSearchResults: compileAll(
		`search\?`,
		`[?&]q=`,
	),
	schemas.PageListing: compileAll(
		`product.*list`,
		`category`,
		`listing`,
		`/c/`,
		`collections?/`,
		`search\?`,
	),
	schemas.PageHomepage: compileAll(
		`^https?://[^/]+/?$`,
		`^https?://[^/]+/[a-z]{2}/?$`,
	),
}

var classifyOrder = []schemas.PageType{
	schemas.PageConfirmation,
	schemas.PagePayment,
	schemas.PageAddressEntry,
	schemas.PageCheckout,
	schemas.PageProductDetail,
	schemas.PageSearchResults,
	schemas.PageListing,
	schemas.PageHomepage,
}

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(`(?i)` + p)
	}
	return res
}

// ClassifyPage maps URL and title onto a coarse page type. Homepage
// patterns only consider the URL; everything else matches URL and title.
func ClassifyPage(url, title string) schemas.PageType {
	combined := url + " " + title
	for _, pt := range classifyOrder {
		subject := combined
		if pt == schemas.PageHomepage {
			subject = url
		}
		for _, re := range typePatterns[pt] {
			if re.MatchString(subject) {
				return pt
			}
		}
	}
	return schemas.PageUnknown
}

// ExpectsProductGrid reports whether the page type warrants the lazy-load
// scroll sweep before scanning.
func ExpectsProductGrid(pt schemas.PageType) bool {
	return pt == schemas.PageListing || pt == schemas.PageSearchResults
}

// ExpectsForm reports whether the page type is a form-heavy funnel stage.
func ExpectsForm(pt schemas.PageType) bool {
	switch pt {
	case schemas.PageCheckout, schemas.PageAddressEntry, schemas.PagePayment:
		return true
	}
	return false
}
