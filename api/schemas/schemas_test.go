package schemas

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageStateEqual(t *testing.T) {
	a := PageState{URL: "https://shop.example/c/ac", Title: "ACs", Hash: "abc"}

	t.Run("same url and hash are equal regardless of title", func(t *testing.T) {
		b := a
		b.Title = "Air Conditioners"
		assert.True(t, a.Equal(b))
	})

	t.Run("hash change breaks equality", func(t *testing.T) {
		b := a
		b.Hash = "def"
		assert.False(t, a.Equal(b))
	})

	t.Run("url change breaks equality", func(t *testing.T) {
		b := a
		b.URL = "https://shop.example/c/tv"
		assert.False(t, a.Equal(b))
	})
}

func TestCombinedText(t *testing.T) {
	e := ElementCandidate{
		Text:         "Add to cart",
		AncestorText: "LG 5 Star Split AC",
		AriaLabel:    "add product",
	}
	combined := e.CombinedText()
	assert.Contains(t, combined, "Add to cart")
	assert.Contains(t, combined, "LG 5 Star Split AC")
	assert.Contains(t, combined, "add product")

	empty := ElementCandidate{}
	assert.Equal(t, "", empty.CombinedText())
}

func TestDescriptor(t *testing.T) {
	e := ElementCandidate{Tag: "button", ID: "buy-now", Text: "Buy Now"}
	assert.Equal(t, `button#buy-now "Buy Now"`, e.Descriptor())

	input := ElementCandidate{Tag: "input", Placeholder: "Search products"}
	assert.Equal(t, `input "Search products"`, input.Descriptor())
}

func TestFragmentStepRoundTrip(t *testing.T) {
	steps := []FragmentStep{
		{Action: ActionNavigate, Target: "https://shop.example"},
		{Action: ActionClick, Target: "home appliances"},
	}
	raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(steps)
	require.NoError(t, err)

	var decoded []FragmentStep
	require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &decoded))
	assert.Equal(t, steps, decoded)
}
