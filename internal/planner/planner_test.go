// internal/planner/planner_test.go
package planner

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
)

type stubClient struct {
	response string
	err      error
	prompts  []string
}

func (c *stubClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string, forceJSON bool) (string, error) {
	c.prompts = append(c.prompts, userPrompt)
	return c.response, c.err
}

func (c *stubClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("not implemented")
}

func TestPlanFromModelResponse(t *testing.T) {
	client := &stubClient{response: "```json\n[" +
		`{"action":"navigate","target":"https://shop.example"},` +
		`{"action":"click","target":"Air Conditioners"},` +
		`{"action":"HOVER","target":"nope"},` +
		`{"action":"TYPE","target":"search","value":"split ac"}` +
		"]\n```"}
	p := New(client, zap.NewNop())

	steps, err := p.Plan(context.Background(), "find a split ac", "https://shop.example")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, schemas.ActionNavigate, steps[0].Action)
	assert.Equal(t, schemas.ActionClick, steps[1].Action)
	assert.Equal(t, "Air Conditioners", steps[1].Target)
	assert.Equal(t, schemas.ActionType, steps[2].Action)
	assert.Equal(t, "split ac", steps[2].Value)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "https://shop.example")
	assert.Contains(t, client.prompts[0], "find a split ac")
}

func TestPlanRejectsUnparseableResponse(t *testing.T) {
	p := New(&stubClient{response: "I cannot help with that."}, zap.NewNop())
	_, err := p.Plan(context.Background(), "buy something", "")
	require.Error(t, err)
}

func TestPlanRejectsAllInvalidSteps(t *testing.T) {
	p := New(&stubClient{response: `[{"action":"SCROLL","target":"down"}]`}, zap.NewNop())
	_, err := p.Plan(context.Background(), "scroll", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable steps")
}

func TestPlanEmptyInstruction(t *testing.T) {
	p := New(nil, zap.NewNop())
	_, err := p.Plan(context.Background(), "   ", "")
	require.Error(t, err)
}

func TestHeuristicPlanURLAndQuotedPhrases(t *testing.T) {
	p := New(nil, zap.NewNop())
	steps, err := p.Plan(context.Background(),
		`go to https://shop.example/ then click "All Products" and "Blue Widget"`, "")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, schemas.ExecutionStep{Action: schemas.ActionNavigate, Target: "https://shop.example/"}, steps[0])
	assert.Equal(t, schemas.ExecutionStep{Action: schemas.ActionClick, Target: "All Products"}, steps[1])
	assert.Equal(t, schemas.ExecutionStep{Action: schemas.ActionClick, Target: "Blue Widget"}, steps[2])
}

func TestHeuristicPlanSkipsCurrentURL(t *testing.T) {
	p := New(nil, zap.NewNop())
	steps, err := p.Plan(context.Background(),
		`on https://shop.example click "Checkout"`, "https://shop.example/")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, schemas.ActionClick, steps[0].Action)
}

func TestHeuristicPlanBareInstruction(t *testing.T) {
	p := New(nil, zap.NewNop())
	steps, err := p.Plan(context.Background(), "Add to Cart", "https://shop.example/p/1")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, schemas.ExecutionStep{Action: schemas.ActionClick, Target: "Add to Cart"}, steps[0])
}
