package schemas

import "context"

// Page is the capability surface the engine needs from a driven browser
// tab. Any CDP or WebDriver style client can satisfy it; locators are the
// stable CSS paths stamped onto candidates at scan time.
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// Content returns the current document's outer HTML.
	Content(ctx context.Context) (string, error)
	// Evaluate runs a JavaScript expression and unmarshals its JSON result
	// into out. Pass nil when no result is expected.
	Evaluate(ctx context.Context, expr string, out any) error

	ScrollTo(ctx context.Context, y float64) error
	ScrollPosition(ctx context.Context) (float64, error)
	PageHeight(ctx context.Context) (float64, error)

	Click(ctx context.Context, locator string) error
	Fill(ctx context.Context, locator, value string) error
	Press(ctx context.Context, locator, key string) error
	SelectOption(ctx context.Context, locator, label string) error
	Check(ctx context.Context, locator string) error

	// ParentOf and NextSiblingOf read structural neighbours of a located
	// node without acting on them. They return nil when the neighbour does
	// not exist.
	ParentOf(ctx context.Context, locator string) (*ElementCandidate, error)
	NextSiblingOf(ctx context.Context, locator string) (*ElementCandidate, error)

	Close(ctx context.Context) error
}

// Browser creates pages. One run drives exactly one page.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Shutdown(ctx context.Context) error
}

// Planner turns a free-text instruction into an ordered step list. Opaque
// to the engine; only the returned step shape matters.
type Planner interface {
	Plan(ctx context.Context, instruction, currentURL string) ([]ExecutionStep, error)
}

// RecoveryAdvisor proposes alternative phrasings or waits after a failed
// step. The engine applies at most the first suggestion.
type RecoveryAdvisor interface {
	SuggestRecovery(ctx context.Context, action Action, target, errMsg string, availableTexts []string, pageContext string) ([]RecoverySuggestion, error)
}
