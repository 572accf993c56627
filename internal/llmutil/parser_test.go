package llmutil

import (
	"testing"

	"github.com/mkarrick/flowpilot/api/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONResponse(t *testing.T) {
	t.Run("plain JSON array of steps", func(t *testing.T) {
		raw := `[{"action":"NAVIGATE","target":"https://shop.example"},{"action":"CLICK","target":"home appliances"}]`
		steps, err := ParseJSONResponse[[]schemas.ExecutionStep](raw)
		require.NoError(t, err)
		require.Len(t, *steps, 2)
		assert.Equal(t, schemas.ActionClick, (*steps)[1].Action)
		assert.Equal(t, "home appliances", (*steps)[1].Target)
	})

	t.Run("markdown fenced object", func(t *testing.T) {
		raw := "```json\n{\"alternative_target\": \"water purifiers\", \"wait_seconds\": 2}\n```"
		s, err := ParseJSONResponse[schemas.RecoverySuggestion](raw)
		require.NoError(t, err)
		assert.Equal(t, "water purifiers", s.AlternativeTarget)
		assert.Equal(t, 2.0, s.WaitSeconds)
	})

	t.Run("JSON buried in conversational text", func(t *testing.T) {
		raw := `Sure, here is the plan: [{"action":"WAIT","target":"2s"}] hope that helps!`
		steps, err := ParseJSONResponse[[]schemas.ExecutionStep](raw)
		require.NoError(t, err)
		require.Len(t, *steps, 1)
		assert.Equal(t, schemas.ActionWait, (*steps)[0].Action)
	})

	t.Run("array of objects keeps its brackets", func(t *testing.T) {
		raw := `Here you go: [{"action":"CLICK","target":"add to cart"},{"action":"WAIT","target":"1s"}] anything else?`
		steps, err := ParseJSONResponse[[]schemas.ExecutionStep](raw)
		require.NoError(t, err)
		require.Len(t, *steps, 2)
		assert.Equal(t, schemas.ActionClick, (*steps)[0].Action)
	})

	t.Run("object buried in conversational text", func(t *testing.T) {
		raw := `I suggest the following: {"alternative_target": "Buy Now"} good luck!`
		s, err := ParseJSONResponse[schemas.RecoverySuggestion](raw)
		require.NoError(t, err)
		assert.Equal(t, "Buy Now", s.AlternativeTarget)
	})

	t.Run("markdown fenced array", func(t *testing.T) {
		raw := "Plan below.\n```json\n[{\"action\":\"NAVIGATE\",\"target\":\"https://shop.example\"}]\n```"
		steps, err := ParseJSONResponse[[]schemas.ExecutionStep](raw)
		require.NoError(t, err)
		require.Len(t, *steps, 1)
		assert.Equal(t, schemas.ActionNavigate, (*steps)[0].Action)
	})

	t.Run("garbage input returns an error", func(t *testing.T) {
		_, err := ParseJSONResponse[[]schemas.ExecutionStep]("no json here")
		require.Error(t, err)
	})
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", truncateString("abc", 10))
	assert.Equal(t, "ab...", truncateString("abcdef", 2))
	assert.Equal(t, "", truncateString("abc", 0))
}
