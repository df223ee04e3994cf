package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced", "Here you go:\n```json\n{\"a\": 1}\n```\nthanks", `{"a": 1}`},
		{"fence without language", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around", `Sure! {"a": 1} hope this helps`, `{"a": 1}`},
		{"no object", "no json here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestExtractJSONCleansArtifacts(t *testing.T) {
	in := "```json\n{\n  \"url\": \"http://example.com\", // source\n  \"items\": [1, 2,],\n}\n```"
	out := ExtractJSON(in)

	var v struct {
		URL   string `json:"url"`
		Items []int  `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "http://example.com", v.URL)
	assert.Equal(t, []int{1, 2}, v.Items)
}

func TestExtractJSONKeepsCommasInStrings(t *testing.T) {
	in := `{"summary": "exits: north, }, south, ]", "quote": "say \"a, }\"", "list": ["x", ],}`
	out := ExtractJSON(in)

	var v struct {
		Summary string   `json:"summary"`
		Quote   string   `json:"quote"`
		List    []string `json:"list"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "exits: north, }, south, ]", v.Summary)
	assert.Equal(t, `say "a, }"`, v.Quote)
	assert.Equal(t, []string{"x"}, v.List)
}

func TestGeneratorFunc(t *testing.T) {
	g := GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		return "echo: " + prompt, nil
	})
	out, err := g.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out)
}

func TestConstructorsRequireKey(t *testing.T) {
	_, err := NewOpenAIGenerator("", Options{})
	assert.Error(t, err)
	_, err = NewGeminiGenerator(context.Background(), "", Options{})
	assert.Error(t, err)
}
