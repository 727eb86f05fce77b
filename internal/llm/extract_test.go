package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	t.Run("bare object", func(t *testing.T) {
		doc, err := ExtractJSONObject(`{"intent": "browsing"}`)
		require.NoError(t, err)
		assert.Equal(t, `{"intent": "browsing"}`, doc)
	})

	t.Run("object wrapped in prose", func(t *testing.T) {
		doc, err := ExtractJSONObject(`Sure! Here is the analysis: {"intent": "buying", "score": 7} Hope this helps.`)
		require.NoError(t, err)
		assert.Equal(t, `{"intent": "buying", "score": 7}`, doc)
	})

	t.Run("markdown fenced object", func(t *testing.T) {
		doc, err := ExtractJSONObject("```json\n{\"intent\": \"browsing\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, `{"intent": "browsing"}`, doc)
	})

	t.Run("nested braces", func(t *testing.T) {
		doc, err := ExtractJSONObject(`{"a": {"b": 1}, "c": 2} trailing`)
		require.NoError(t, err)
		assert.Equal(t, `{"a": {"b": 1}, "c": 2}`, doc)
	})

	t.Run("braces inside strings do not break balance", func(t *testing.T) {
		doc, err := ExtractJSONObject(`{"reason": "great {deal} for you"}`)
		require.NoError(t, err)
		assert.Equal(t, `{"reason": "great {deal} for you"}`, doc)
	})

	t.Run("prose only", func(t *testing.T) {
		_, err := ExtractJSONObject("I cannot produce recommendations right now.")
		assert.Error(t, err)
	})

	t.Run("unbalanced object", func(t *testing.T) {
		_, err := ExtractJSONObject(`{"intent": "browsing"`)
		assert.Error(t, err)
	})
}

func TestExtractJSONArray(t *testing.T) {
	t.Run("array wrapped in prose", func(t *testing.T) {
		doc, err := ExtractJSONArray(`Here you go: [{"product_id": "p1", "score": 90}]`)
		require.NoError(t, err)
		assert.Equal(t, `[{"product_id": "p1", "score": 90}]`, doc)
	})

	t.Run("empty array", func(t *testing.T) {
		doc, err := ExtractJSONArray(`[]`)
		require.NoError(t, err)
		assert.Equal(t, `[]`, doc)
	})

	t.Run("prose only", func(t *testing.T) {
		_, err := ExtractJSONArray("no recommendations available")
		assert.Error(t, err)
	})
}
