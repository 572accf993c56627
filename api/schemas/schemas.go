package schemas

import "time"

// Action is the kind of instruction a plan step asks the engine to perform.
type Action string

const (
	ActionNavigate Action = "NAVIGATE"
	ActionClick    Action = "CLICK"
	ActionType     Action = "TYPE"
	ActionSelect   Action = "SELECT"
	ActionWait     Action = "WAIT"
)

// ExecutionStep is one planned instruction. Target is free human text
// ("split air conditioners", "Search products"), never a selector.
type ExecutionStep struct {
	Action Action `json:"action"`
	Target string `json:"target"`
	Value  string `json:"value,omitempty"`
	Region string `json:"region,omitempty"`
}

// ActionResult records one attempt at an ExecutionStep.
type ActionResult struct {
	Step     ExecutionStep `json:"step"`
	Success  bool          `json:"success"`
	Matched  string        `json:"matched,omitempty"`
	Before   PageState     `json:"before"`
	After    PageState     `json:"after"`
	Error    string        `json:"error,omitempty"`
	Attempts int           `json:"attempts"`
	// Skipped is the number of plan steps this result covers when a
	// cached chain or shortcut replaced them. Zero for a normal step.
	Skipped int `json:"skipped,omitempty"`
}

// PageState is a cheap fingerprint of the page, captured before and after
// every action to decide whether the action had any observable effect.
type PageState struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Hash  string `json:"hash"`
}

// Equal reports whether two captures describe the same page state.
// Title is informational only and does not participate.
func (p PageState) Equal(other PageState) bool {
	return p.URL == other.URL && p.Hash == other.Hash
}

// PageType is the coarse classification of the current page, used by the
// state-shortcut table and the listing scroll sweep.
type PageType string

const (
	PageConfirmation  PageType = "confirmation"
	PagePayment       PageType = "payment"
	PageAddressEntry  PageType = "address_entry"
	PageCheckout      PageType = "checkout"
	PageProductDetail PageType = "product_detail"
	PageSearchResults PageType = "search_results"
	PageListing       PageType = "listing"
	PageHomepage      PageType = "homepage"
	PageUnknown       PageType = "unknown"
)

// FragmentStep is one recorded step inside a persisted flow fragment.
type FragmentStep struct {
	Action Action `json:"action"`
	Target string `json:"target"`
	Value  string `json:"value,omitempty"`
}

// FlowFragment is a persisted, replayable chain of successful steps.
// Identity for upsert purposes is (Site, StartURL, Steps, EndURL).
type FlowFragment struct {
	ID           string         `json:"id"`
	Site         string         `json:"site"`
	StartURL     string         `json:"start_url"`
	EndURL       string         `json:"end_url"`
	Steps        []FragmentStep `json:"steps"`
	SuccessCount int            `json:"success_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// RecoverySuggestion is one proposal from the recovery advisor.
type RecoverySuggestion struct {
	AlternativeTarget string  `json:"alternative_target,omitempty"`
	WaitSeconds       float64 `json:"wait_seconds,omitempty"`
}

// RunReport is the structured outcome of a whole run. It is the only
// surface downstream consumers (reporting, script generation) see.
type RunReport struct {
	RunID         string         `json:"run_id"`
	Instruction   string         `json:"instruction"`
	Steps         []ExecutionStep `json:"steps"`
	Results       []ActionResult `json:"results"`
	StepsExecuted int            `json:"steps_executed"`
	TotalSteps    int            `json:"total_steps"`
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
}
