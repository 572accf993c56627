package schemas

import "strings"

// BoundingBox is the element's layout rectangle in CSS pixels.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the rectangle's area.
func (b BoundingBox) Area() float64 { return b.Width * b.Height }

// ElementCandidate is one interactive unit lifted from the live page.
// Candidates are ephemeral: a navigation invalidates every live Locator.
type ElementCandidate struct {
	Tag          string      `json:"tag"`
	Role         string      `json:"role,omitempty"`
	Text         string      `json:"text"`
	AncestorText string      `json:"ancestorText,omitempty"`
	Placeholder  string      `json:"placeholder,omitempty"`
	AriaLabel    string      `json:"ariaLabel,omitempty"`
	Name         string      `json:"name,omitempty"`
	ID           string      `json:"id,omitempty"`
	Href         string      `json:"href,omitempty"`
	InputType    string      `json:"inputType,omitempty"`
	Locator      string      `json:"locator"`
	Box          BoundingBox `json:"box"`
	Visible      bool        `json:"visible"`
}

// CombinedText is the candidate's full searchable surface: its own text,
// surrounding ancestor text, and accessible attributes.
func (e ElementCandidate) CombinedText() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{e.Text, e.AncestorText, e.Placeholder, e.AriaLabel} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Descriptor is a short human-readable identity for logs and reports.
func (e ElementCandidate) Descriptor() string {
	var b strings.Builder
	b.WriteString(e.Tag)
	if e.ID != "" {
		b.WriteString("#")
		b.WriteString(e.ID)
	}
	text := e.Text
	if text == "" {
		text = e.AriaLabel
	}
	if text == "" {
		text = e.Placeholder
	}
	if len(text) > 60 {
		text = text[:60]
	}
	if text != "" {
		b.WriteString(" \"")
		b.WriteString(text)
		b.WriteString("\"")
	}
	return b.String()
}

// ComponentKind names the structural shape a candidate was classified as.
type ComponentKind string

const (
	KindProductCard ComponentKind = "product_card"
	KindFormInput   ComponentKind = "form_input"
	KindButton      ComponentKind = "button"
	KindNavItem     ComponentKind = "nav_item"
	KindModal       ComponentKind = "modal"
	KindRadioGroup  ComponentKind = "radio_group"
	KindCheckbox    ComponentKind = "checkbox"
)

// SemanticComponent is a classified grouping of one or more DOM nodes.
// Element is the primary actionable handle; for a product card that is the
// purchasable anchor, not the card container.
type SemanticComponent struct {
	Kind    ComponentKind    `json:"kind"`
	Label   string           `json:"label"`
	Element ElementCandidate `json:"element"`
}

// RankedCandidate pairs a candidate with its fused score. Ordering is by
// descending score; ties keep document order.
type RankedCandidate struct {
	Score     float64
	Candidate ElementCandidate
	Component *SemanticComponent
	Index     int
}
