package normalization

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleJSON(t *testing.T) (string, any) {
	t.Helper()
	raw := `{"services":[{"name":"Assessment","hours":16,"subservices":[{"name":"Workshops","baseHours":8}]}],"confidence":0.8}`
	var want any
	require.NoError(t, json.Unmarshal([]byte(raw), &want))
	return raw, want
}

func TestParseRecoversWrappedJSON(t *testing.T) {
	raw, want := sampleJSON(t)
	inputs := map[string]string{
		"bare":             raw,
		"fenced":           "```json\n" + raw + "\n```",
		"fenced no lang":   "```\n" + raw + "\n```",
		"prose around":     "Sure! Here is the scope you asked for:\n" + raw + "\nLet me know if you need changes.",
		"prose and fence":  "Result below.\n```json\n" + raw + "\n```\nThanks",
		"missing close":    raw[:len(raw)-1],
		"unterminated fence": "```json\n" + raw[:len(raw)-1],
		"trailing commas":  `{"services":[{"name":"Assessment","hours":16,"subservices":[{"name":"Workshops","baseHours":8,},],},],"confidence":0.8,}`,
		"smart quotes":     `{“services”:[{“name”:“Assessment”,“hours”:16,“subservices”:[{“name”:“Workshops”,“baseHours”:8}]}],“confidence”:0.8}`,
		"bracket in prose": "Options [a] and [b] were considered. " + raw,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			got, err := Parse(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseTruncatedMidValue(t *testing.T) {
	got, err := Parse(`[{"name":"A","hours":4},{"name":"B","hou`)
	require.NoError(t, err)
	list, ok := got.([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].(map[string]any)["name"])
}

func TestParseTruncatedAfterColon(t *testing.T) {
	got, err := Parse(`{"summary":"x","confidence":`)
	require.NoError(t, err)
	m := got.(map[string]any)
	assert.Equal(t, "x", m["summary"])
	assert.Nil(t, m["confidence"])
}

func TestParseNoJSON(t *testing.T) {
	_, err := Parse("I could not find anything useful.")
	assert.ErrorIs(t, err, ErrNoJSON)
	_, err = Parse("")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestExtractJSON(t *testing.T) {
	got, ok := ExtractJSON(`prefix {"a":"}{","b":[1,2]} suffix {"c":1}`)
	require.True(t, ok)
	assert.Equal(t, `{"a":"}{","b":[1,2]}`, got)

	got, ok = ExtractJSON(`{"a":[1,2`)
	require.True(t, ok)
	assert.Equal(t, `{"a":[1,2]}`, got)

	_, ok = ExtractJSON("nothing here")
	assert.False(t, ok)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("  {\"a\":1}  "))
}

func TestParseIntoStruct(t *testing.T) {
	var out struct {
		Confidence float64 `json:"confidence"`
	}
	require.NoError(t, ParseInto("```json\n{\"confidence\": 0.7}\n```", &out))
	assert.Equal(t, 0.7, out.Confidence)
}
