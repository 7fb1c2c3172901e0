package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
)

func TestParseResponses(t *testing.T) {
	got := parseResponses(map[string]string{
		"user_count":        "500",
		"training_required": "true",
		"complexity":        " high ",
	})
	assert.Equal(t, map[string]any{
		"user_count":        500.0,
		"training_required": true,
		"complexity":        "high",
	}, got)
}

func TestReadInput(t *testing.T) {
	in, err := readInput("  Deploy Meraki ", nil)
	require.NoError(t, err)
	assert.Equal(t, "Deploy Meraki", in)

	in, err = readInput("-", strings.NewReader("Migrate mail\n"))
	require.NoError(t, err)
	assert.Equal(t, "Migrate mail", in)

	_, err = readInput("-", strings.NewReader("  "))
	require.Error(t, err)
}

func TestStepPrinter(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	sink := stepPrinter(&buf)
	sink(scoping.StreamingEvent{Type: scoping.EventStep, StepID: scoping.StepResearch, Status: scoping.StatusInProgress, Progress: 5})
	sink(scoping.StreamingEvent{Type: scoping.EventError, StepID: scoping.StepServices, Progress: 30, Error: "boom"})

	assert.Equal(t, "[  5%] research...\n[ 30%] services failed: boom\n", buf.String())
}

func TestGenerateOffline(t *testing.T) {
	t.Setenv("LLM_ENGINE", "")
	t.Setenv("SCOPE_CONFIG_PATH", "")
	color.NoColor = true

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"generate", "--offline", "--input", "Migrate 500 users to Microsoft 365", "--responses", "user_count=800"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `"technology": "Microsoft 365 Migration"`)
	assert.Contains(t, errOut.String(), "research done")
	assert.Contains(t, errOut.String(), "applied 1 responses")
}
