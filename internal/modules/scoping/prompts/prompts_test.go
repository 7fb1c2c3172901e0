package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRendersTemplates(t *testing.T) {
	p, err := Build(PromptResearch, Input{UserRequest: "Migrate 500 users to Microsoft 365", SourceCount: 8})
	require.NoError(t, err)
	assert.Equal(t, "research", p.Name)
	assert.Equal(t, 1, p.Version)
	assert.Contains(t, p.User, "Migrate 500 users to Microsoft 365")
	assert.Contains(t, p.User, "Find 8 sources")
	assert.NotEmpty(t, p.System)
}

func TestBuildAppendsExtraInstructions(t *testing.T) {
	p, err := Build(PromptServices, Input{UserRequest: "x", PhasesCSV: "Initiation, Planning", Extra: "Prefer remote delivery."})
	require.NoError(t, err)
	assert.Contains(t, p.User, "Additional instructions:\nPrefer remote delivery.")
}

func TestBuildValidatesInput(t *testing.T) {
	_, err := Build(PromptResearch, Input{SourceCount: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UserRequest required")

	_, err = Build(PromptContextQuestions, Input{MissingCategories: "timeline"})
	assert.Error(t, err)

	_, err = Build("nope", Input{})
	assert.Error(t, err)
}

func TestMakeTemplateRejectsBadSpecs(t *testing.T) {
	_, err := MakeTemplate(Spec{Name: "x"})
	assert.Error(t, err)
	_, err = MakeTemplate(Spec{Name: "x", Version: 1, User: "{{.Broken"})
	assert.Error(t, err)
}
