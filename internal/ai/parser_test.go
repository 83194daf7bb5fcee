package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStoryStart(t *testing.T) {
	t.Run("Valid JSON response", func(t *testing.T) {
		raw := `{"title": "Dragon City", "content": "The dragons circled above the spires.", "choices": ["Enter the gate", "Climb the wall", "Wait for nightfall"]}`

		result := ParseStoryStart(raw)

		assert.Equal(t, "Dragon City", result.Title)
		assert.Equal(t, "The dragons circled above the spires.", result.Content)
		assert.Equal(t, []string{"Enter the gate", "Climb the wall", "Wait for nightfall"}, result.Choices)
	})

	t.Run("JSON wrapped in markdown fences", func(t *testing.T) {
		raw := "```json\n{\"title\": \"Dragon City\", \"content\": \"Smoke over the spires.\", \"choices\": [\"Run\", \"Hide\", \"Fight\"]}\n```"

		result := ParseStoryStart(raw)

		assert.Equal(t, "Dragon City", result.Title)
		assert.Equal(t, "Smoke over the spires.", result.Content)
		assert.Equal(t, []string{"Run", "Hide", "Fight"}, result.Choices)
	})

	t.Run("Truncated JSON repaired by closing braces", func(t *testing.T) {
		// Массив закрыт, объект оборван - дописывание скобок спасает разбор
		raw := `{"title": "Lost Mine", "content": "The lantern flickered.", "choices": ["Go deeper", "Turn back", "Call out"]`

		result := ParseStoryStart(raw)

		assert.Equal(t, "Lost Mine", result.Title)
		assert.Equal(t, "The lantern flickered.", result.Content)
		assert.Equal(t, []string{"Go deeper", "Turn back", "Call out"}, result.Choices)
	})

	t.Run("Broken JSON falls back to regex extraction", func(t *testing.T) {
		// Оборвано внутри массива - JSON не восстановить, работают регулярки
		raw := `{"title": "Lost Mine", "content": "The lantern flickered.", "choices": ["Go deeper", "Turn ba`

		result := ParseStoryStart(raw)

		assert.Equal(t, "Lost Mine", result.Title)
		assert.Equal(t, "The lantern flickered.", result.Content)
		assert.Equal(t, DefaultChoices(), result.Choices)
	})

	t.Run("Regex extracts choices from array literal", func(t *testing.T) {
		raw := `Here is your story! title: 'Sky Pirates', content: 'The airship lurched.', choices: ['Board them', 'Dive', 'Surrender'] Enjoy!`

		result := ParseStoryStart(raw)

		assert.Equal(t, "Sky Pirates", result.Title)
		assert.Equal(t, "The airship lurched.", result.Content)
		assert.Equal(t, []string{"Board them", "Dive", "Surrender"}, result.Choices)
	})

	t.Run("Refusal text becomes content with defaults", func(t *testing.T) {
		raw := "Sorry, I cannot comply."

		result := ParseStoryStart(raw)

		assert.Equal(t, DefaultTitle, result.Title)
		assert.Equal(t, "Sorry, I cannot comply.", result.Content)
		assert.Equal(t, DefaultChoices(), result.Choices)
	})

	t.Run("Empty input gets full defaults", func(t *testing.T) {
		result := ParseStoryStart("")

		assert.Equal(t, DefaultTitle, result.Title)
		assert.Equal(t, DefaultStartContent, result.Content)
		assert.Equal(t, DefaultChoices(), result.Choices)
	})

	t.Run("Valid JSON with missing title gets default title", func(t *testing.T) {
		raw := `{"content": "A story without a name.", "choices": ["One", "Two", "Three"]}`

		result := ParseStoryStart(raw)

		assert.Equal(t, DefaultTitle, result.Title)
		assert.Equal(t, "A story without a name.", result.Content)
	})
}

func TestParseContinuation(t *testing.T) {
	t.Run("Valid JSON response", func(t *testing.T) {
		raw := `{"content": "You enter the gate.", "choices": ["Left", "Right", "Back"]}`

		result := ParseContinuation(raw)

		assert.Equal(t, "You enter the gate.", result.Content)
		assert.Equal(t, []string{"Left", "Right", "Back"}, result.Choices)
	})

	t.Run("Explicit empty choices array is preserved as story end", func(t *testing.T) {
		raw := `{"content": "And so the journey ended.", "choices": []}`

		result := ParseContinuation(raw)

		assert.Equal(t, "And so the journey ended.", result.Content)
		assert.NotNil(t, result.Choices)
		assert.Empty(t, result.Choices)
	})

	t.Run("Missing choices key gets defaults", func(t *testing.T) {
		raw := `{"content": "The road forked."}`

		result := ParseContinuation(raw)

		assert.Equal(t, "The road forked.", result.Content)
		assert.Equal(t, DefaultChoices(), result.Choices)
	})

	t.Run("Unparseable text becomes content with defaults", func(t *testing.T) {
		raw := "The hero walked on, unaware of the malformed payload."

		result := ParseContinuation(raw)

		assert.Equal(t, raw, result.Content)
		assert.Equal(t, DefaultChoices(), result.Choices)
	})

	t.Run("Empty input gets default content", func(t *testing.T) {
		result := ParseContinuation("   ")

		assert.Equal(t, DefaultContinuationContent, result.Content)
		assert.Equal(t, DefaultChoices(), result.Choices)
	})
}

func TestCleanAIResponse(t *testing.T) {
	t.Run("Strips fences and whitespace", func(t *testing.T) {
		assert.Equal(t, `{"a": 1}`, cleanAIResponse("```json\n{\"a\": 1}\n```"))
		assert.Equal(t, `{"a": 1}`, cleanAIResponse("  {\"a\": 1}  "))
	})

	t.Run("Appends missing closing braces", func(t *testing.T) {
		assert.Equal(t, `{"a": {"b": 1}}`, cleanAIResponse(`{"a": {"b": 1`))
	})
}
