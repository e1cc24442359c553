package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain object", `{"a": 1}`, `{"a": 1}`},
		{"fenced json", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced without language", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around object", `Here is the result: {"a": 1}. Hope it helps!`, `{"a": 1}`},
		{"leading whitespace", "  \n\t{\"a\": 1}", `{"a": 1}`},
		{"no object at all", "just words", "just words"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.raw))
		})
	}
}

func TestFixJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already valid", `{"a": [1, 2]}`, `{"a": [1, 2]}`},
		{"unclosed object", `{"a": 1`, `{"a": 1}`},
		{"unclosed array and object", `{"a": [1, 2`, `{"a": [1, 2]}`},
		{"brackets inside string ignored", `{"a": "{[", "b": 1`, `{"a": "{[", "b": 1}`},
		{"escaped quote inside string", `{"a": "say \"hi{\"", "b": [1`, `{"a": "say \"hi{\"", "b": [1]}`},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FixJSON(tt.in)
			assert.Equal(t, tt.want, got)
			if tt.in != "" {
				assert.True(t, json.Valid([]byte(got)), "result must be valid JSON: %s", got)
			}
		})
	}
}

func TestSanitize_TruncatedModelOutput(t *testing.T) {
	// Обрыв вывода на лимите токенов: незакрытые массив и объект
	raw := "```json\n{\"title\": \"The Moon Trip\", \"tags\": [\"space\", \"night\""

	var parsed struct {
		Title string   `json:"title"`
		Tags  []string `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(Sanitize(raw), &parsed))
	assert.Equal(t, "The Moon Trip", parsed.Title)
	assert.Equal(t, []string{"space", "night"}, parsed.Tags)
}
