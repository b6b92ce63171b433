package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/brightmesh/internal/testutil"
	"github.com/hupe1980/brightmesh/model"
	"github.com/hupe1980/brightmesh/tool"
)

func TestResolver_ProfessionalWithSources(t *testing.T) {
	r := NewResolver(model.NewMockModel("mock"))

	a := r.Resolve([]tool.Source{tool.StaticSource{}})
	require.IsType(t, &ModelAgent{}, a)

	ma := a.(*ModelAgent)
	assert.Equal(t, ProfessionalAgentName, ma.Name())
	assert.True(t, ma.HasSources())
	assert.Equal(t, ProfessionalInstruction, ma.instruction.text)
}

func TestResolver_BasicWithoutSources(t *testing.T) {
	r := NewResolver(model.NewMockModel("mock"))

	a := r.Resolve(nil)
	require.IsType(t, &ModelAgent{}, a)

	ma := a.(*ModelAgent)
	assert.Equal(t, BasicAgentName, ma.Name())
	assert.False(t, ma.HasSources())
	assert.Equal(t, BasicInstruction, ma.instruction.text)
}

func TestResolver_BasicAssistantAnswersWithoutTools(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.TextStep("I can still help."))
	a := NewResolver(llm).Resolve(nil)

	events, err := runAgent(t, a, "find flights")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "I can still help.", events[0].Content.Text())

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, BasicInstruction, reqs[0].Instructions)
	assert.Empty(t, reqs[0].Tools)
}
